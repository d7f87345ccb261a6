package person_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/course"
	"github.com/kasolo/mafunzo/core/person"
	"github.com/kasolo/mafunzo/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type mailRecorder struct {
	sent []core.EmailMessage
}

func (m *mailRecorder) SendMessage(msg *core.EmailMessage) error {
	m.sent = append(m.sent, *msg)
	return nil
}

type fixture struct {
	db   *inmemdb.DB
	svc  *person.Service
	mail *mailRecorder
	crs  course.Course
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.NewDB()
	crs, err := db.CreateCourse(course.Course{
		Name:      "Advanced Welding",
		StartDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seeding course: %v", err)
	}
	mail := &mailRecorder{}
	conf := &core.Config{AppName: "Mafunzo", BaseURL: "http://localhost:8000"}
	return &fixture{
		db:   db,
		svc:  person.NewService(db, db, mail, conf, nopLogger{}),
		mail: mail,
		crs:  crs,
	}
}

func (f *fixture) invite(t *testing.T, email string) person.Person {
	t.Helper()
	p, err := f.svc.Create(f.crs.ID, person.NewPerson{Email: email, FirstName: "Test", Role: person.RoleParticipant})
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", email, err)
	}
	return p
}

func TestServiceCreate(t *testing.T) {
	f := setup(t)

	p := f.invite(t, "new@test.test")
	if p.Status != person.StatusInvited || p.AttendingResponded {
		t.Errorf("fresh invitee has state %q responded=%v", p.Status, p.AttendingResponded)
	}
	if p.Token == "" {
		t.Error("no access token generated")
	}

	// same email on the same course is rejected as a field error
	_, err := f.svc.Create(f.crs.ID, person.NewPerson{Email: "new@test.test"})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("duplicate email: got %v, want validation error", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "email" {
		t.Errorf("fields = %+v, want one on email", vErr.Fields)
	}

	// the same address is fine on another course
	crs2, _ := f.db.CreateCourse(course.Course{Name: "Basics"})
	if _, err = f.svc.Create(crs2.ID, person.NewPerson{Email: "new@test.test"}); err != nil {
		t.Errorf("same email on other course failed: %v", err)
	}
}

func TestServiceImport(t *testing.T) {
	f := setup(t)
	f.invite(t, "already@test.test")

	res, err := f.svc.Import(f.crs.ID, []person.NewPerson{
		{Email: "one@test.test", FirstName: "One"},
		{Email: "already@test.test"},
		{Email: "two@test.test", FirstName: "Two"},
	})
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Added != 2 || res.Skipped != 1 {
		t.Errorf("Added = %d, Skipped = %d, want 2 and 1", res.Added, res.Skipped)
	}

	persons, _ := f.svc.Query(person.QueryFilter{CourseID: f.crs.ID})
	if len(persons) != 3 {
		t.Errorf("course has %d persons, want 3", len(persons))
	}
}

func TestServiceUpdate(t *testing.T) {
	f := setup(t)
	p := f.invite(t, "old@test.test")
	f.invite(t, "taken@test.test")

	got, err := f.svc.Update(p.ID, person.UpdatePerson{
		Email: "moved@test.test", FirstName: "Moved", LastName: "Person", Role: person.RoleFaculty,
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if got.Email != "moved@test.test" || got.Role != person.RoleFaculty {
		t.Errorf("got %+v", got)
	}
	if got.Token != p.Token {
		t.Error("token changed on update")
	}

	// cannot move onto another invitee's address
	_, err = f.svc.Update(p.ID, person.UpdatePerson{Email: "taken@test.test", FirstName: "X", LastName: "Y", Role: person.RoleParticipant})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestServiceSubmitRSVP(t *testing.T) {
	f := setup(t)

	t.Run("yes", func(t *testing.T) {
		p := f.invite(t, "yes@test.test")
		mails := len(f.mail.sent)

		got, err := f.svc.SubmitRSVP(p.Token, person.AnswerYes)
		if err != nil {
			t.Fatalf("SubmitRSVP() failed: %v", err)
		}
		if got.Status != person.StatusAttending || !got.AttendingResponded {
			t.Errorf("got %q responded=%v", got.Status, got.AttendingResponded)
		}
		// accepting triggers the info form mail
		if len(f.mail.sent) != mails+1 {
			t.Fatalf("mails = %d, want %d", len(f.mail.sent), mails+1)
		}
		if tmpl := f.mail.sent[len(f.mail.sent)-1].TemplateName; tmpl != core.TmplInfoRequest {
			t.Errorf("template = %q, want %q", tmpl, core.TmplInfoRequest)
		}
	})

	t.Run("no", func(t *testing.T) {
		p := f.invite(t, "no@test.test")
		mails := len(f.mail.sent)

		got, err := f.svc.SubmitRSVP(p.Token, person.AnswerNo)
		if err != nil {
			t.Fatalf("SubmitRSVP() failed: %v", err)
		}
		if got.Status != person.StatusNotAttending || !got.AttendingResponded {
			t.Errorf("got %q responded=%v", got.Status, got.AttendingResponded)
		}
		if len(f.mail.sent) != mails {
			t.Errorf("declining sent a mail")
		}

		// a changed mind flips the status, responded stays true
		got, err = f.svc.SubmitRSVP(p.Token, person.AnswerYes)
		if err != nil {
			t.Fatalf("resubmit failed: %v", err)
		}
		if got.Status != person.StatusAttending || !got.AttendingResponded {
			t.Errorf("after flip: %q responded=%v", got.Status, got.AttendingResponded)
		}
	})

	t.Run("invalid answer", func(t *testing.T) {
		p := f.invite(t, "huh@test.test")
		if _, err := f.svc.SubmitRSVP(p.Token, "maybe"); err == nil {
			t.Error("bad answer accepted")
		}
		got, _ := f.svc.GetByID(p.ID)
		if got.AttendingResponded {
			t.Error("bad answer marked the person as responded")
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.svc.SubmitRSVP("nope", person.AnswerYes)
		if errors.Cause(err) != person.ErrNotFound {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestServiceSubmitInfo(t *testing.T) {
	f := setup(t)
	q1, _ := f.db.CreateQuestion(course.Question{CourseID: f.crs.ID, Label: "Dietary needs", FieldType: "text", OrderIndex: 1})
	q2, _ := f.db.CreateQuestion(course.Question{CourseID: f.crs.ID, Label: "Arrival", FieldType: "text", OrderIndex: 2})
	p := f.invite(t, "info@test.test")

	got, err := f.svc.SubmitInfo(p.Token, person.InfoSubmission{
		FirstName: "Amira",
		LastName:  "", // blank keeps the existing value
		Answers:   map[int]string{q1.ID: "vegetarian", q2.ID: "  "},
	})
	if err != nil {
		t.Fatalf("SubmitInfo() failed: %v", err)
	}
	if got.FirstName != "Amira" {
		t.Errorf("FirstName = %q", got.FirstName)
	}
	if !got.InfoCompleted || got.InfoCompletedAt == nil {
		t.Error("info not marked complete")
	}

	answers, _ := f.svc.Answers(p.ID)
	if len(answers) != 1 {
		t.Fatalf("answers = %d, want 1 (blank skipped)", len(answers))
	}
	if answers[0].QuestionID != q1.ID || answers[0].AnswerText != "vegetarian" {
		t.Errorf("answer = %+v", answers[0])
	}

	// a resubmission replaces, not duplicates
	_, err = f.svc.SubmitInfo(p.Token, person.InfoSubmission{Answers: map[int]string{q1.ID: "vegan"}})
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	answers, _ = f.svc.Answers(p.ID)
	if len(answers) != 1 || answers[0].AnswerText != "vegan" {
		t.Errorf("after resubmit: %+v", answers)
	}
}

func TestServiceSubmitHotel(t *testing.T) {
	f := setup(t)
	p := f.invite(t, "hotel@test.test")

	hr, err := f.svc.SubmitHotel(p.Token, person.HotelSubmission{NeedHotel: true, Night1: true, Night3: true})
	if err != nil {
		t.Fatalf("SubmitHotel() failed: %v", err)
	}
	if hr.NeedHotel == nil || !*hr.NeedHotel || !hr.Night1 || hr.Night2 || !hr.Night3 {
		t.Errorf("got %+v", hr)
	}
	if !hr.Completed {
		t.Error("request not marked completed")
	}

	// saying no wipes the nights whatever was ticked
	hr, err = f.svc.SubmitHotel(p.Token, person.HotelSubmission{NeedHotel: false, Night1: true})
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if *hr.NeedHotel || hr.Night1 || hr.Night2 || hr.Night3 {
		t.Errorf("after no: %+v", hr)
	}

	// a frozen request stays frozen across resubmits
	hr.Finalized = true
	f.db.SaveHotelRequest(hr)
	hr, _ = f.svc.SubmitHotel(p.Token, person.HotelSubmission{NeedHotel: true, Night2: true})
	if !hr.Finalized {
		t.Error("resubmit cleared the finalized flag")
	}
}

func TestServiceStatistics(t *testing.T) {
	f := setup(t)

	attending := f.invite(t, "a@test.test")
	f.svc.SubmitRSVP(attending.Token, person.AnswerYes)
	f.svc.SubmitHotel(attending.Token, person.HotelSubmission{NeedHotel: true, Night1: true})

	declined := f.invite(t, "b@test.test")
	f.svc.SubmitRSVP(declined.Token, person.AnswerNo)

	fac, _ := f.svc.Create(f.crs.ID, person.NewPerson{Email: "c@test.test", Role: person.RoleFaculty})
	f.svc.SubmitRSVP(fac.Token, person.AnswerYes)
	f.svc.SubmitInfo(fac.Token, person.InfoSubmission{FirstName: "Fac"})

	f.invite(t, "d@test.test") // never responds

	stats, err := f.svc.Statistics(f.crs.ID)
	if err != nil {
		t.Fatalf("Statistics() failed: %v", err)
	}
	if stats.TotalInvited != 4 || stats.TotalAttending != 2 || stats.TotalNotAttending != 1 || stats.TotalNoResponse != 1 {
		t.Errorf("totals: %+v", stats)
	}
	if stats.InfoCompleted != 1 || stats.InfoPending != 1 {
		t.Errorf("info: completed=%d pending=%d", stats.InfoCompleted, stats.InfoPending)
	}
	if stats.HotelCompleted != 1 || stats.HotelPending != 1 {
		t.Errorf("hotel: completed=%d pending=%d", stats.HotelCompleted, stats.HotelPending)
	}
	if stats.Faculty.Attending != 1 || stats.Participants.Invited != 3 {
		t.Errorf("roles: %+v", stats)
	}
}

func TestServiceDelete(t *testing.T) {
	f := setup(t)
	p := f.invite(t, "gone@test.test")
	f.svc.SubmitHotel(p.Token, person.HotelSubmission{NeedHotel: true})

	if err := f.svc.Delete(p.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := f.svc.GetByID(p.ID); errors.Cause(err) != person.ErrNotFound {
		t.Errorf("person still there: %v", err)
	}
	if _, err := f.svc.HotelRequest(p.ID); errors.Cause(err) != person.ErrHotelNotFound {
		t.Errorf("hotel request still there: %v", err)
	}
}
