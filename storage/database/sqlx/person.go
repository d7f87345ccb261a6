package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/person"
)

type personRepository struct {
	db *sqlx.DB
}

var _ person.Repository = (*personRepository)(nil)

func NewPersonRepository(db *sqlx.DB) *personRepository {
	return &personRepository{db: db}
}

func (repo *personRepository) CreatePerson(p person.Person) (person.Person, error) {
	const q = `
		INSERT INTO person (course_id, email, first_name, last_name, role, status,
		                    attending_responded, token, info_completed, info_completed_at, created_at, updated_at)
		VALUES (:course_id, :email, :first_name, :last_name, :role, :status,
		        :attending_responded, :token, :info_completed, :info_completed_at, :created_at, :updated_at)
		RETURNING id`

	rows, err := repo.db.NamedQuery(q, p)
	if err != nil {
		return person.Person{}, errors.Wrap(err, "inserting person")
	}
	defer rows.Close()
	if rows.Next() {
		if err = rows.Scan(&p.ID); err != nil {
			return person.Person{}, errors.Wrap(err, "scanning person id")
		}
	}
	return p, nil
}

func (repo *personRepository) GetPersonByID(id int) (person.Person, error) {
	var p person.Person
	err := repo.db.Get(&p, `SELECT * FROM person WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return person.Person{}, person.ErrNotFound
	}
	return p, errors.Wrap(err, "getting person")
}

func (repo *personRepository) GetPersonByToken(token string) (person.Person, error) {
	var p person.Person
	err := repo.db.Get(&p, `SELECT * FROM person WHERE token = $1`, token)
	if err == sql.ErrNoRows {
		return person.Person{}, person.ErrNotFound
	}
	return p, errors.Wrap(err, "getting person by token")
}

func (repo *personRepository) GetPersonByEmail(courseID int, email string) (person.Person, error) {
	var p person.Person
	err := repo.db.Get(&p, `SELECT * FROM person WHERE course_id = $1 AND lower(email) = lower($2)`, courseID, email)
	if err == sql.ErrNoRows {
		return person.Person{}, person.ErrNotFound
	}
	return p, errors.Wrap(err, "getting person by email")
}

func (repo *personRepository) FilterPersons(filter person.QueryFilter, orderings ...core.DBOrdering) ([]person.Person, error) {
	query := `SELECT * FROM person`
	var clauses []string
	var args []interface{}

	if filter.CourseID != 0 {
		args = append(args, filter.CourseID)
		clauses = append(clauses, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", n, n, n))
	}
	if len(filter.Roles) > 0 {
		args = append(args, pq.StringArray(filter.Roles))
		clauses = append(clauses, fmt.Sprintf("role = ANY($%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, pq.StringArray(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	if len(orderings) > 0 {
		parts := make([]string, len(orderings))
		for i, o := range orderings {
			parts[i] = o.String()
		}
		query += " ORDER BY " + strings.Join(parts, ", ")
	} else {
		query += " ORDER BY id"
	}

	persons := make([]person.Person, 0)
	err := repo.db.Select(&persons, query, args...)
	return persons, errors.Wrap(err, "filtering persons")
}

func (repo *personRepository) UpdatePerson(p person.Person) (person.Person, error) {
	const q = `
		UPDATE person
		SET email = :email, first_name = :first_name, last_name = :last_name, role = :role,
		    status = :status, attending_responded = :attending_responded,
		    info_completed = :info_completed, info_completed_at = :info_completed_at,
		    updated_at = :updated_at
		WHERE id = :id`

	res, err := repo.db.NamedExec(q, p)
	if err != nil {
		return person.Person{}, errors.Wrap(err, "updating person")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return person.Person{}, person.ErrNotFound
	}
	return p, nil
}

func (repo *personRepository) DeletePersonsByID(ids ...int) error {
	q, args, err := sqlx.In(`DELETE FROM person WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building person delete")
	}
	_, err = repo.db.Exec(repo.db.Rebind(q), args...)
	return errors.Wrap(err, "deleting persons")
}

func (repo *personRepository) GetAnswers(personID int) ([]person.Answer, error) {
	answers := make([]person.Answer, 0)
	err := repo.db.Select(&answers, `SELECT * FROM answer WHERE person_id = $1 ORDER BY question_id`, personID)
	return answers, errors.Wrap(err, "querying answers")
}

func (repo *personRepository) SaveInfoSubmission(p person.Person, answers []person.Answer) error {
	tx, err := repo.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "starting tx")
	}
	defer func() { _ = tx.Rollback() }()

	const pq = `
		UPDATE person
		SET first_name = :first_name, last_name = :last_name,
		    info_completed = :info_completed, info_completed_at = :info_completed_at,
		    updated_at = :updated_at
		WHERE id = :id`
	res, err := tx.NamedExec(pq, p)
	if err != nil {
		return errors.Wrap(err, "updating person info")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return person.ErrNotFound
	}

	const aq = `
		INSERT INTO answer (person_id, question_id, answer_text, created_at, updated_at)
		VALUES (:person_id, :question_id, :answer_text, :created_at, :updated_at)
		ON CONFLICT (person_id, question_id)
		DO UPDATE SET answer_text = EXCLUDED.answer_text, updated_at = EXCLUDED.updated_at`
	for _, a := range answers {
		if _, err = tx.NamedExec(aq, a); err != nil {
			return errors.Wrap(err, "upserting answer")
		}
	}
	return errors.Wrap(tx.Commit(), "committing info submission")
}

func (repo *personRepository) GetHotelRequest(personID int) (person.HotelRequest, error) {
	var hr person.HotelRequest
	err := repo.db.Get(&hr, `SELECT * FROM hotel_request WHERE person_id = $1`, personID)
	if err == sql.ErrNoRows {
		return person.HotelRequest{}, person.ErrHotelNotFound
	}
	return hr, errors.Wrap(err, "getting hotel request")
}

func (repo *personRepository) QueryHotelRequests(courseID int) ([]person.HotelRequest, error) {
	hotels := make([]person.HotelRequest, 0)
	if courseID == 0 {
		err := repo.db.Select(&hotels, `SELECT * FROM hotel_request ORDER BY person_id`)
		return hotels, errors.Wrap(err, "querying hotel requests")
	}
	err := repo.db.Select(&hotels, `
		SELECT hr.* FROM hotel_request hr
		JOIN person p ON p.id = hr.person_id
		WHERE p.course_id = $1
		ORDER BY hr.person_id`, courseID)
	return hotels, errors.Wrap(err, "querying hotel requests")
}

func (repo *personRepository) SaveHotelRequest(hr person.HotelRequest) (person.HotelRequest, error) {
	const q = `
		INSERT INTO hotel_request (person_id, need_hotel, night1, night2, night3, completed, finalized, created_at, updated_at)
		VALUES (:person_id, :need_hotel, :night1, :night2, :night3, :completed, :finalized, :created_at, :updated_at)
		ON CONFLICT (person_id)
		DO UPDATE SET need_hotel = EXCLUDED.need_hotel,
		              night1 = EXCLUDED.night1, night2 = EXCLUDED.night2, night3 = EXCLUDED.night3,
		              completed = EXCLUDED.completed, finalized = EXCLUDED.finalized,
		              updated_at = EXCLUDED.updated_at
		RETURNING id`

	rows, err := repo.db.NamedQuery(q, hr)
	if err != nil {
		return person.HotelRequest{}, errors.Wrap(err, "saving hotel request")
	}
	defer rows.Close()
	if rows.Next() {
		if err = rows.Scan(&hr.ID); err != nil {
			return person.HotelRequest{}, errors.Wrap(err, "scanning hotel request id")
		}
	}
	return hr, nil
}

func (repo *personRepository) CreateFile(f person.File) (person.File, error) {
	const q = `
		INSERT INTO person_file (person_id, filename, original_name, size, content_type, created_at)
		VALUES (:person_id, :filename, :original_name, :size, :content_type, :created_at)
		RETURNING id`

	rows, err := repo.db.NamedQuery(q, f)
	if err != nil {
		return person.File{}, errors.Wrap(err, "inserting file")
	}
	defer rows.Close()
	if rows.Next() {
		if err = rows.Scan(&f.ID); err != nil {
			return person.File{}, errors.Wrap(err, "scanning file id")
		}
	}
	return f, nil
}

func (repo *personRepository) GetFileByID(id int) (person.File, error) {
	var f person.File
	err := repo.db.Get(&f, `SELECT * FROM person_file WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return person.File{}, person.ErrFileNotFound
	}
	return f, errors.Wrap(err, "getting file")
}

func (repo *personRepository) QueryFiles(personID int) ([]person.File, error) {
	files := make([]person.File, 0)
	err := repo.db.Select(&files, `SELECT * FROM person_file WHERE person_id = $1 ORDER BY id`, personID)
	return files, errors.Wrap(err, "querying files")
}
