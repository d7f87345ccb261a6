package inmemdb

import (
	"sort"

	"github.com/kasolo/mafunzo/core/course"
)

var _ course.Repository = (*DB)(nil)

func (db *DB) CreateCourse(c course.Course) (course.Course, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	c.ID = db.nextPK()
	db.courses[c.ID] = &c
	return c, nil
}

func (db *DB) QueryAllCourses() ([]course.Course, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(db.courses))
	for _, c := range db.courses {
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].StartDate.Before(courses[j].StartDate) })
	return courses, nil
}

func (db *DB) GetCourseByID(id int) (course.Course, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if c, ok := db.courses[id]; ok {
		return *c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (db *DB) UpdateCourse(c course.Course) (course.Course, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, ok := db.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	db.courses[c.ID] = &c
	return c, nil
}

func (db *DB) DeleteCoursesByID(ids ...int) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for _, id := range ids {
		delete(db.courses, id)
		for qid, q := range db.questions {
			if q.CourseID == id {
				delete(db.questions, qid)
			}
		}
	}
	return nil
}

func (db *DB) CreateQuestion(q course.Question) (course.Question, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	q.ID = db.nextPK()
	db.questions[q.ID] = &q
	return q, nil
}

func (db *DB) GetQuestionByID(id int) (course.Question, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if q, ok := db.questions[id]; ok {
		return *q, nil
	}
	return course.Question{}, course.ErrQuestionNotFound
}

func (db *DB) QueryQuestions(courseID int) ([]course.Question, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	questions := make([]course.Question, 0)
	for _, q := range db.questions {
		if q.CourseID == courseID {
			questions = append(questions, *q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].OrderIndex < questions[j].OrderIndex })
	return questions, nil
}

func (db *DB) UpdateQuestion(q course.Question) (course.Question, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, ok := db.questions[q.ID]; !ok {
		return course.Question{}, course.ErrQuestionNotFound
	}
	db.questions[q.ID] = &q
	return q, nil
}

func (db *DB) DeleteQuestionsByID(ids ...int) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for _, id := range ids {
		delete(db.questions, id)
		for aid, a := range db.answers {
			if a.QuestionID == id {
				delete(db.answers, aid)
			}
		}
	}
	return nil
}
