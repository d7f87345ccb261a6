package inmemdb

import (
	"sync"

	"github.com/kasolo/mafunzo/core/course"
	"github.com/kasolo/mafunzo/core/person"
	"github.com/kasolo/mafunzo/core/reminder"
)

// DB is a process-local store keyed by primary key. It backs tests and
// local development without a Postgres around.
type DB struct {
	mutex   sync.RWMutex
	pkCount int

	courses   map[int]*course.Course
	questions map[int]*course.Question
	persons   map[int]*person.Person
	answers   map[int]*person.Answer
	hotels    map[int]*person.HotelRequest
	files     map[int]*person.File
	trackings map[int]*reminder.Tracking
}

func NewDB() *DB {
	return &DB{
		courses:   make(map[int]*course.Course),
		questions: make(map[int]*course.Question),
		persons:   make(map[int]*person.Person),
		answers:   make(map[int]*person.Answer),
		hotels:    make(map[int]*person.HotelRequest),
		files:     make(map[int]*person.File),
		trackings: make(map[int]*reminder.Tracking),
	}
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK() int {
	db.pkCount++
	return db.pkCount
}
