package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kasolo/mafunzo/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(c course.Course) (course.Course, error) {
	const q = `
		INSERT INTO course (name, start_date, end_date, hotel_night1, hotel_night2, hotel_night3, created_at, updated_at)
		VALUES (:name, :start_date, :end_date, :hotel_night1, :hotel_night2, :hotel_night3, :created_at, :updated_at)
		RETURNING id`

	rows, err := repo.db.NamedQuery(q, c)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	defer rows.Close()
	if rows.Next() {
		if err = rows.Scan(&c.ID); err != nil {
			return course.Course{}, errors.Wrap(err, "scanning course id")
		}
	}
	return c, nil
}

func (repo *courseRepository) QueryAllCourses() ([]course.Course, error) {
	courses := make([]course.Course, 0)
	err := repo.db.Select(&courses, `SELECT * FROM course ORDER BY start_date`)
	return courses, errors.Wrap(err, "querying courses")
}

func (repo *courseRepository) GetCourseByID(id int) (course.Course, error) {
	var c course.Course
	err := repo.db.Get(&c, `SELECT * FROM course WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return course.Course{}, course.ErrNotFound
	}
	return c, errors.Wrap(err, "getting course")
}

func (repo *courseRepository) UpdateCourse(c course.Course) (course.Course, error) {
	const q = `
		UPDATE course
		SET name = :name, start_date = :start_date, end_date = :end_date,
		    hotel_night1 = :hotel_night1, hotel_night2 = :hotel_night2, hotel_night3 = :hotel_night3,
		    updated_at = :updated_at
		WHERE id = :id`

	res, err := repo.db.NamedExec(q, c)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo *courseRepository) DeleteCoursesByID(ids ...int) error {
	q, args, err := sqlx.In(`DELETE FROM course WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building course delete")
	}
	_, err = repo.db.Exec(repo.db.Rebind(q), args...)
	return errors.Wrap(err, "deleting courses")
}

func (repo *courseRepository) CreateQuestion(qs course.Question) (course.Question, error) {
	const q = `
		INSERT INTO custom_question (course_id, label, field_type, required, order_index)
		VALUES (:course_id, :label, :field_type, :required, :order_index)
		RETURNING id`

	rows, err := repo.db.NamedQuery(q, qs)
	if err != nil {
		return course.Question{}, errors.Wrap(err, "inserting question")
	}
	defer rows.Close()
	if rows.Next() {
		if err = rows.Scan(&qs.ID); err != nil {
			return course.Question{}, errors.Wrap(err, "scanning question id")
		}
	}
	return qs, nil
}

func (repo *courseRepository) GetQuestionByID(id int) (course.Question, error) {
	var qs course.Question
	err := repo.db.Get(&qs, `SELECT * FROM custom_question WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return course.Question{}, course.ErrQuestionNotFound
	}
	return qs, errors.Wrap(err, "getting question")
}

func (repo *courseRepository) QueryQuestions(courseID int) ([]course.Question, error) {
	questions := make([]course.Question, 0)
	err := repo.db.Select(&questions,
		`SELECT * FROM custom_question WHERE course_id = $1 ORDER BY order_index`, courseID)
	return questions, errors.Wrap(err, "querying questions")
}

func (repo *courseRepository) UpdateQuestion(qs course.Question) (course.Question, error) {
	const q = `
		UPDATE custom_question
		SET label = :label, field_type = :field_type, required = :required, order_index = :order_index
		WHERE id = :id`

	res, err := repo.db.NamedExec(q, qs)
	if err != nil {
		return course.Question{}, errors.Wrap(err, "updating question")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Question{}, course.ErrQuestionNotFound
	}
	return qs, nil
}

func (repo *courseRepository) DeleteQuestionsByID(ids ...int) error {
	q, args, err := sqlx.In(`DELETE FROM custom_question WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building question delete")
	}
	_, err = repo.db.Exec(repo.db.Rebind(q), args...)
	return errors.Wrap(err, "deleting questions")
}
