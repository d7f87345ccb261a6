package reminder

import (
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/course"
	"github.com/kasolo/mafunzo/core/person"
)

var day = 24 * time.Hour

func testConf() *core.Config {
	return &core.Config{
		AppName: "Mafunzo",
		BaseURL: "http://localhost:8000",
		Reminder: core.ReminderConfig{
			Interval:     7 * day,
			MaxReminders: 4,
			MaxErrors:    20,
		},
	}
}

// fakes

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type mailRecorder struct {
	sent    []core.EmailMessage
	failFor map[string]bool
}

func (m *mailRecorder) SendMessage(msg *core.EmailMessage) error {
	if len(msg.To) > 0 && m.failFor[msg.To[0].Address] {
		return errors.New("smtp: mailbox unavailable")
	}
	m.sent = append(m.sent, *msg)
	return nil
}

func (m *mailRecorder) sentTo(email string) []core.EmailMessage {
	var out []core.EmailMessage
	for _, msg := range m.sent {
		if len(msg.To) > 0 && msg.To[0].Address == email {
			out = append(out, msg)
		}
	}
	return out
}

type fakeTrackers struct {
	byKey map[string]*Tracking
	pk    int
}

func newFakeTrackers() *fakeTrackers {
	return &fakeTrackers{byKey: make(map[string]*Tracking)}
}

func trackerKey(personID int, kind string) string {
	return fmt.Sprintf("%d|%s", personID, kind)
}

func (f *fakeTrackers) GetOrCreateTracking(personID int, kind string, maxAllowed int) (Tracking, error) {
	if t, ok := f.byKey[trackerKey(personID, kind)]; ok {
		return *t, nil
	}
	f.pk++
	t := Tracking{ID: f.pk, PersonID: personID, Kind: kind, MaxAllowed: maxAllowed}
	f.byKey[trackerKey(personID, kind)] = &t
	return t, nil
}

func (f *fakeTrackers) UpdateTracking(t Tracking) (Tracking, error) {
	f.byKey[trackerKey(t.PersonID, t.Kind)] = &t
	return t, nil
}

func (f *fakeTrackers) QueryTrackings(personID int) ([]Tracking, error) {
	var out []Tracking
	for _, t := range f.byKey {
		if t.PersonID == personID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTrackers) get(personID int, kind string) Tracking {
	if t, ok := f.byKey[trackerKey(personID, kind)]; ok {
		return *t
	}
	return Tracking{}
}

type fakePersons struct {
	persons map[int]*person.Person
	hotels  map[int]*person.HotelRequest // keyed by person ID
}

var _ person.Repository = (*fakePersons)(nil)

func newFakePersons(persons ...person.Person) *fakePersons {
	f := &fakePersons{
		persons: make(map[int]*person.Person),
		hotels:  make(map[int]*person.HotelRequest),
	}
	for i := range persons {
		p := persons[i]
		f.persons[p.ID] = &p
	}
	return f
}

func (f *fakePersons) FilterPersons(filter person.QueryFilter, _ ...core.DBOrdering) ([]person.Person, error) {
	var out []person.Person
	for i := 1; i <= len(f.persons); i++ {
		p, ok := f.persons[i]
		if !ok {
			continue
		}
		if filter.CourseID != 0 && p.CourseID != filter.CourseID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePersons) GetHotelRequest(personID int) (person.HotelRequest, error) {
	if hr, ok := f.hotels[personID]; ok {
		return *hr, nil
	}
	return person.HotelRequest{}, person.ErrHotelNotFound
}

func (f *fakePersons) QueryHotelRequests(courseID int) ([]person.HotelRequest, error) {
	var out []person.HotelRequest
	for pid, hr := range f.hotels {
		if courseID != 0 {
			p, ok := f.persons[pid]
			if !ok || p.CourseID != courseID {
				continue
			}
		}
		out = append(out, *hr)
	}
	return out, nil
}

func (f *fakePersons) SaveHotelRequest(hr person.HotelRequest) (person.HotelRequest, error) {
	f.hotels[hr.PersonID] = &hr
	return hr, nil
}

// unused by the engine

func (f *fakePersons) CreatePerson(p person.Person) (person.Person, error) { return p, nil }
func (f *fakePersons) GetPersonByID(id int) (person.Person, error) {
	if p, ok := f.persons[id]; ok {
		return *p, nil
	}
	return person.Person{}, person.ErrNotFound
}
func (f *fakePersons) GetPersonByToken(string) (person.Person, error) {
	return person.Person{}, person.ErrNotFound
}
func (f *fakePersons) GetPersonByEmail(int, string) (person.Person, error) {
	return person.Person{}, person.ErrNotFound
}
func (f *fakePersons) UpdatePerson(p person.Person) (person.Person, error) {
	f.persons[p.ID] = &p
	return p, nil
}
func (f *fakePersons) DeletePersonsByID(...int) error          { return nil }
func (f *fakePersons) GetAnswers(int) ([]person.Answer, error) { return nil, nil }
func (f *fakePersons) SaveInfoSubmission(person.Person, []person.Answer) error {
	return nil
}
func (f *fakePersons) CreateFile(fl person.File) (person.File, error) { return fl, nil }
func (f *fakePersons) GetFileByID(int) (person.File, error) {
	return person.File{}, person.ErrFileNotFound
}
func (f *fakePersons) QueryFiles(int) ([]person.File, error) { return nil, nil }

type fakeCourses struct {
	courses map[int]course.Course
}

var _ course.Repository = (*fakeCourses)(nil)

func (f *fakeCourses) GetCourseByID(id int) (course.Course, error) {
	if c, ok := f.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (f *fakeCourses) CreateCourse(c course.Course) (course.Course, error) { return c, nil }
func (f *fakeCourses) QueryAllCourses() ([]course.Course, error)           { return nil, nil }
func (f *fakeCourses) UpdateCourse(c course.Course) (course.Course, error) { return c, nil }
func (f *fakeCourses) DeleteCoursesByID(...int) error                      { return nil }
func (f *fakeCourses) CreateQuestion(q course.Question) (course.Question, error) {
	return q, nil
}
func (f *fakeCourses) GetQuestionByID(int) (course.Question, error) {
	return course.Question{}, course.ErrQuestionNotFound
}
func (f *fakeCourses) QueryQuestions(int) ([]course.Question, error) { return nil, nil }
func (f *fakeCourses) UpdateQuestion(q course.Question) (course.Question, error) {
	return q, nil
}
func (f *fakeCourses) DeleteQuestionsByID(...int) error { return nil }

// setup

type engineFixture struct {
	engine   *Engine
	trackers *fakeTrackers
	persons  *fakePersons
	mail     *mailRecorder
	now      time.Time
}

func newFixture(persons ...person.Person) *engineFixture {
	f := &engineFixture{
		trackers: newFakeTrackers(),
		persons:  newFakePersons(persons...),
		mail:     &mailRecorder{failFor: make(map[string]bool)},
		now:      time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	courses := &fakeCourses{courses: map[int]course.Course{
		1: {
			ID:        1,
			Name:      "Advanced Welding",
			StartDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		},
	}}
	f.engine = NewEngine(f.trackers, f.persons, courses, f.mail, testConf(), nopLogger{})
	f.engine.nowFunc = func() time.Time { return f.now }
	return f
}

func (f *engineFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func invitee(id int, email string) person.Person {
	return person.Person{ID: id, CourseID: 1, Email: email, FirstName: "Test", Status: person.StatusInvited}
}

func attendee(id int, email string) person.Person {
	p := invitee(id, email)
	p.Status = person.StatusAttending
	p.AttendingResponded = true
	return p
}

// tests

func TestEngineRSVPReminders(t *testing.T) {
	responded := attendee(2, "done@test.test")
	f := newFixture(invitee(1, "pending@test.test"), responded)

	res, err := f.engine.RunKind(0, KindRSVP, false)
	if err != nil {
		t.Fatalf("RunKind() failed: %v", err)
	}
	if res.Sent != 1 {
		t.Errorf("Sent = %d, want 1", res.Sent)
	}
	if got := f.mail.sentTo("done@test.test"); len(got) != 0 {
		t.Errorf("responded person got %d mails, want 0", len(got))
	}
	if got := f.mail.sent[0].TemplateName; got != core.TmplRSVPReminder {
		t.Errorf("template = %q, want %q", got, core.TmplRSVPReminder)
	}

	// an immediate rerun is a no-op
	res, _ = f.engine.RunKind(0, KindRSVP, false)
	if res.Sent != 0 || res.Skipped != 1 {
		t.Errorf("rerun: Sent = %d, Skipped = %d, want 0 and 1", res.Sent, res.Skipped)
	}

	// due again once the interval has passed
	f.advance(8 * day)
	res, _ = f.engine.RunKind(0, KindRSVP, false)
	if res.Sent != 1 {
		t.Errorf("after interval: Sent = %d, want 1", res.Sent)
	}
	if tr := f.trackers.get(1, KindRSVP); tr.CountSent != 2 {
		t.Errorf("CountSent = %d, want 2", tr.CountSent)
	}

	// runs never touch the person's response state
	p, _ := f.persons.GetPersonByID(1)
	if p.AttendingResponded || p.Status != person.StatusInvited {
		t.Errorf("person mutated by reminder run: %+v", p)
	}

	history, err := f.engine.History(1)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 1 || history[0].Kind != KindRSVP || history[0].CountSent != 2 {
		t.Errorf("history = %+v, want one RSVP tracking with CountSent 2", history)
	}
}

func TestEngineHotelFinalNotice(t *testing.T) {
	f := newFixture(attendee(1, "slow@test.test"))

	// exhaust the hotel reminder cap
	for i := 0; i < 4; i++ {
		res, err := f.engine.RunKind(0, KindHotel, false)
		if err != nil {
			t.Fatalf("RunKind() failed: %v", err)
		}
		if res.Sent != 1 {
			t.Fatalf("run %d: Sent = %d, want 1", i+1, res.Sent)
		}
		f.advance(8 * day)
	}

	// the next due pass escalates to the one-time final notice
	res, _ := f.engine.RunKind(0, KindHotel, false)
	if res.FinalNotices != 1 || res.Sent != 0 {
		t.Fatalf("FinalNotices = %d, Sent = %d, want 1 and 0", res.FinalNotices, res.Sent)
	}
	last := f.mail.sent[len(f.mail.sent)-1]
	if last.TemplateName != core.TmplHotelFinalNotice {
		t.Errorf("template = %q, want %q", last.TemplateName, core.TmplHotelFinalNotice)
	}
	hr, err := f.persons.GetHotelRequest(1)
	if err != nil || !hr.Finalized {
		t.Errorf("hotel request not finalized: %+v, err %v", hr, err)
	}
	if tr := f.trackers.get(1, KindHotelFinal); tr.CountSent != 1 {
		t.Errorf("final tracker CountSent = %d, want 1", tr.CountSent)
	}

	// never a second final notice, due or not
	f.advance(8 * day)
	res, _ = f.engine.RunKind(0, KindHotel, false)
	if res.FinalNotices != 0 || res.CapReached != 1 {
		t.Errorf("second pass: FinalNotices = %d, CapReached = %d, want 0 and 1", res.FinalNotices, res.CapReached)
	}
	if total := len(f.mail.sentTo("slow@test.test")); total != 5 {
		t.Errorf("total mails = %d, want 5", total)
	}
}

func TestEngineCapWithoutEscalation(t *testing.T) {
	for _, kind := range []string{KindRSVP, KindInfo} {
		t.Run(kind, func(t *testing.T) {
			p := invitee(1, "pending@test.test")
			if kind == KindInfo {
				p = attendee(1, "pending@test.test")
				p.InfoCompleted = false
			}
			f := newFixture(p)

			for i := 0; i < 4; i++ {
				f.engine.RunKind(0, kind, false)
				f.advance(8 * day)
			}
			res, _ := f.engine.RunKind(0, kind, false)
			if res.CapReached != 1 || res.Sent != 0 || res.FinalNotices != 0 {
				t.Errorf("capped pass: %+v", res)
			}
			if total := len(f.mail.sent); total != 4 {
				t.Errorf("total mails = %d, want 4", total)
			}
		})
	}
}

func TestEngineForce(t *testing.T) {
	f := newFixture(invitee(1, "pending@test.test"))

	f.engine.RunKind(0, KindRSVP, false)

	// force ignores the quiet interval
	res, _ := f.engine.RunKind(0, KindRSVP, true)
	if res.Sent != 1 {
		t.Errorf("forced: Sent = %d, want 1", res.Sent)
	}

	// but never the cap
	f.engine.RunKind(0, KindRSVP, true)
	f.engine.RunKind(0, KindRSVP, true)
	res, _ = f.engine.RunKind(0, KindRSVP, true)
	if res.CapReached != 1 || res.Sent != 0 {
		t.Errorf("forced past cap: %+v", res)
	}
	if tr := f.trackers.get(1, KindRSVP); tr.CountSent != 4 {
		t.Errorf("CountSent = %d, want 4", tr.CountSent)
	}
}

func TestEngineFailureIsolation(t *testing.T) {
	f := newFixture(invitee(1, "broken@test.test"), invitee(2, "fine@test.test"))
	f.mail.failFor["broken@test.test"] = true

	res, err := f.engine.RunKind(0, KindRSVP, false)
	if err != nil {
		t.Fatalf("RunKind() failed: %v", err)
	}
	if res.Sent != 1 || res.Failed != 1 {
		t.Fatalf("Sent = %d, Failed = %d, want 1 and 1", res.Sent, res.Failed)
	}
	if len(res.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry", res.Errors)
	}

	// a failed send counts for nothing
	if tr := f.trackers.get(1, KindRSVP); tr.CountSent != 0 || tr.LastSentAt != nil {
		t.Errorf("failed person's tracker advanced: %+v", tr)
	}

	// once delivery works the person catches up immediately
	delete(f.mail.failFor, "broken@test.test")
	res, _ = f.engine.RunKind(0, KindRSVP, false)
	if res.Sent != 1 || res.Skipped != 1 {
		t.Errorf("retry: Sent = %d, Skipped = %d, want 1 and 1", res.Sent, res.Skipped)
	}
}

func TestEngineTargets(t *testing.T) {
	infoDone := attendee(2, "filled@test.test")
	infoDone.InfoCompleted = true
	declined := invitee(3, "declined@test.test")
	declined.Status = person.StatusNotAttending
	declined.AttendingResponded = true

	f := newFixture(attendee(1, "open@test.test"), infoDone, declined)

	res, _ := f.engine.RunKind(0, KindInfo, false)
	if res.Sent != 1 {
		t.Fatalf("info: Sent = %d, want 1", res.Sent)
	}
	if got := f.mail.sentTo("open@test.test"); len(got) != 1 {
		t.Errorf("open person mails = %d, want 1", len(got))
	}

	// a completed hotel request drops the person from hotel runs
	f.persons.SaveHotelRequest(person.HotelRequest{PersonID: 2, Completed: true})
	f.mail.sent = nil
	res, _ = f.engine.RunKind(0, KindHotel, false)
	if res.Sent != 1 {
		t.Fatalf("hotel: Sent = %d, want 1", res.Sent)
	}
	if got := f.mail.sentTo("filled@test.test"); len(got) != 0 {
		t.Errorf("completed hotel person got %d mails, want 0", len(got))
	}
}

func TestEngineRSVPSkipsNonInvited(t *testing.T) {
	// a person taken out of INVITED by hand stops getting RSVP nudges
	// even when the responded flag was never set
	removed := invitee(2, "removed@test.test")
	removed.Status = person.StatusNotAttending

	f := newFixture(invitee(1, "pending@test.test"), removed)

	res, err := f.engine.RunKind(0, KindRSVP, false)
	if err != nil {
		t.Fatalf("RunKind() failed: %v", err)
	}
	if res.Sent != 1 {
		t.Fatalf("Sent = %d, want 1", res.Sent)
	}
	if got := f.mail.sentTo("removed@test.test"); len(got) != 0 {
		t.Errorf("non-invited person got %d mails, want 0", len(got))
	}
}

func TestEngineRunAllKinds(t *testing.T) {
	pending := invitee(1, "pending@test.test")
	open := attendee(2, "open@test.test")

	f := newFixture(pending, open)
	res, err := f.engine.Run(0)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	// pending gets an RSVP nudge; open gets info + hotel
	if res.Sent != 3 {
		t.Errorf("Sent = %d, want 3", res.Sent)
	}
	if got := len(f.mail.sentTo("open@test.test")); got != 2 {
		t.Errorf("open person mails = %d, want 2", got)
	}
}
