package inmemdb

import (
	"sort"
	"strings"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/person"
)

var _ person.Repository = (*DB)(nil)

// queryPersons must be called with the lock held.
func (db *DB) queryPersons() []person.Person {
	persons := make([]person.Person, 0, len(db.persons))
	for _, p := range db.persons {
		persons = append(persons, *p)
	}
	sort.Slice(persons, func(i, j int) bool { return persons[i].ID < persons[j].ID })
	return persons
}

func (db *DB) CreatePerson(p person.Person) (person.Person, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	p.ID = db.nextPK()
	db.persons[p.ID] = &p
	return p, nil
}

func (db *DB) GetPersonByID(id int) (person.Person, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if p, ok := db.persons[id]; ok {
		return *p, nil
	}
	return person.Person{}, person.ErrNotFound
}

func (db *DB) GetPersonByToken(token string) (person.Person, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	for _, p := range db.persons {
		if p.Token == token {
			return *p, nil
		}
	}
	return person.Person{}, person.ErrNotFound
}

func (db *DB) GetPersonByEmail(courseID int, email string) (person.Person, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	for _, p := range db.persons {
		if p.CourseID == courseID && strings.EqualFold(p.Email, email) {
			return *p, nil
		}
	}
	return person.Person{}, person.ErrNotFound
}

func (db *DB) FilterPersons(filter person.QueryFilter, orderings ...core.DBOrdering) ([]person.Person, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	out := make([]person.Person, 0)
	for _, p := range db.queryPersons() {
		if filter.CourseID != 0 && p.CourseID != filter.CourseID {
			continue
		}
		if filter.Search != "" && !matchesSearch(p, filter.Search) {
			continue
		}
		if len(filter.Roles) > 0 && !contains(filter.Roles, p.Role) {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, p.Status) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func matchesSearch(p person.Person, search string) bool {
	s := strings.ToLower(search)
	return strings.Contains(strings.ToLower(p.FirstName), s) ||
		strings.Contains(strings.ToLower(p.LastName), s) ||
		strings.Contains(strings.ToLower(p.Email), s)
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

func (db *DB) UpdatePerson(p person.Person) (person.Person, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, ok := db.persons[p.ID]; !ok {
		return person.Person{}, person.ErrNotFound
	}
	db.persons[p.ID] = &p
	return p, nil
}

func (db *DB) DeletePersonsByID(ids ...int) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for _, id := range ids {
		delete(db.persons, id)
		for aid, a := range db.answers {
			if a.PersonID == id {
				delete(db.answers, aid)
			}
		}
		for hid, hr := range db.hotels {
			if hr.PersonID == id {
				delete(db.hotels, hid)
			}
		}
		for fid, f := range db.files {
			if f.PersonID == id {
				delete(db.files, fid)
			}
		}
		for tid, t := range db.trackings {
			if t.PersonID == id {
				delete(db.trackings, tid)
			}
		}
	}
	return nil
}

func (db *DB) GetAnswers(personID int) ([]person.Answer, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	answers := make([]person.Answer, 0)
	for _, a := range db.answers {
		if a.PersonID == personID {
			answers = append(answers, *a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	return answers, nil
}

func (db *DB) SaveInfoSubmission(p person.Person, answers []person.Answer) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, ok := db.persons[p.ID]; !ok {
		return person.ErrNotFound
	}
	db.persons[p.ID] = &p

	for _, a := range answers {
		a := a
		if existing := db.findAnswer(a.PersonID, a.QuestionID); existing != nil {
			existing.AnswerText = a.AnswerText
			existing.UpdatedAt = a.UpdatedAt
			continue
		}
		a.ID = db.nextPK()
		db.answers[a.ID] = &a
	}
	return nil
}

// findAnswer must be called with the lock held.
func (db *DB) findAnswer(personID, questionID int) *person.Answer {
	for _, a := range db.answers {
		if a.PersonID == personID && a.QuestionID == questionID {
			return a
		}
	}
	return nil
}

func (db *DB) GetHotelRequest(personID int) (person.HotelRequest, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	for _, hr := range db.hotels {
		if hr.PersonID == personID {
			return *hr, nil
		}
	}
	return person.HotelRequest{}, person.ErrHotelNotFound
}

func (db *DB) QueryHotelRequests(courseID int) ([]person.HotelRequest, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	hotels := make([]person.HotelRequest, 0)
	for _, hr := range db.hotels {
		if courseID != 0 {
			p, ok := db.persons[hr.PersonID]
			if !ok || p.CourseID != courseID {
				continue
			}
		}
		hotels = append(hotels, *hr)
	}
	sort.Slice(hotels, func(i, j int) bool { return hotels[i].PersonID < hotels[j].PersonID })
	return hotels, nil
}

func (db *DB) SaveHotelRequest(hr person.HotelRequest) (person.HotelRequest, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for _, existing := range db.hotels {
		if existing.PersonID == hr.PersonID {
			hr.ID = existing.ID
			db.hotels[hr.ID] = &hr
			return hr, nil
		}
	}
	hr.ID = db.nextPK()
	db.hotels[hr.ID] = &hr
	return hr, nil
}

func (db *DB) CreateFile(f person.File) (person.File, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	f.ID = db.nextPK()
	db.files[f.ID] = &f
	return f, nil
}

func (db *DB) GetFileByID(id int) (person.File, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if f, ok := db.files[id]; ok {
		return *f, nil
	}
	return person.File{}, person.ErrFileNotFound
}

func (db *DB) QueryFiles(personID int) ([]person.File, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	files := make([]person.File, 0)
	for _, f := range db.files {
		if f.PersonID == personID {
			files = append(files, *f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}
