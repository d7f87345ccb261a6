package reminder

import (
	"time"

	"github.com/pkg/errors"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/course"
	"github.com/kasolo/mafunzo/core/person"
)

// RunResult tallies one engine pass. Errors holds at most
// Config.Reminder.MaxErrors entries; TotalErrors keeps the true count.
type RunResult struct {
	Sent         int      `json:"sent"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	CapReached   int      `json:"cap_reached"`
	FinalNotices int      `json:"final_notices"`
	TotalErrors  int      `json:"total_errors"`
	Errors       []string `json:"errors,omitempty"`
}

func (r *RunResult) merge(other RunResult, maxErrors int) {
	r.Sent += other.Sent
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.CapReached += other.CapReached
	r.FinalNotices += other.FinalNotices
	for _, e := range other.Errors {
		r.appendError(e, maxErrors)
	}
	r.TotalErrors += other.TotalErrors - len(other.Errors)
}

func (r *RunResult) appendError(msg string, maxErrors int) {
	r.TotalErrors++
	if len(r.Errors) < maxErrors {
		r.Errors = append(r.Errors, msg)
	}
}

func (r *RunResult) fail(email string, err error, maxErrors int) {
	r.Failed++
	r.appendError(email+": "+err.Error(), maxErrors)
}

// Engine drives reminder escalation. A run walks every person who still
// owes a response of the given kind and sends the next reminder if the
// quiet interval has elapsed and the cap is not used up. A person whose
// hotel cap is used up gets one final notice, ever.
type Engine struct {
	trackers Repository
	persons  person.Repository
	courses  course.Repository
	mailSvc  core.EmailService
	conf     *core.Config
	logger   core.Logger

	nowFunc func() time.Time // mockable
}

func NewEngine(trackers Repository, persons person.Repository, courses course.Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Engine {
	return &Engine{
		trackers: trackers,
		persons:  persons,
		courses:  courses,
		mailSvc:  mailSvc,
		conf:     conf,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// Run processes every kind for one course, or for all courses when
// courseID is 0. Failures on one person never stop the pass.
func (e *Engine) Run(courseID int) (RunResult, error) {
	var res RunResult
	for _, kind := range Kinds {
		kres, err := e.RunKind(courseID, kind, false)
		if err != nil {
			return res, err
		}
		res.merge(kres, e.conf.Reminder.MaxErrors)
	}
	e.logger.Info("reminder run done",
		"sent", res.Sent, "failed", res.Failed, "cap_reached", res.CapReached, "final_notices", res.FinalNotices)
	return res, nil
}

// RunKind processes a single kind. force skips the quiet-interval check,
// never the cap.
func (e *Engine) RunKind(courseID int, kind string, force bool) (RunResult, error) {
	var res RunResult
	now := e.nowFunc().UTC()

	targets, err := e.targets(courseID, kind)
	if err != nil {
		return res, errors.Wrapf(err, "selecting %s targets", kind)
	}

	courseCache := make(map[int]course.Course)
	for _, p := range targets {
		e.process(&res, p, kind, force, now, courseCache)
	}
	return res, nil
}

// History returns every tracking row recorded for a person, across kinds.
func (e *Engine) History(personID int) ([]Tracking, error) {
	trackings, err := e.trackers.QueryTrackings(personID)
	if err != nil {
		return nil, errors.Wrapf(err, "querying trackings for person %d", personID)
	}
	return trackings, nil
}

func (e *Engine) process(res *RunResult, p person.Person, kind string, force bool, now time.Time, courseCache map[int]course.Course) {
	tr, err := e.trackers.GetOrCreateTracking(p.ID, kind, e.maxFor(kind))
	if err != nil {
		res.fail(p.Email, err, e.conf.Reminder.MaxErrors)
		return
	}

	// the interval gate comes first so an immediate rerun is a no-op,
	// final notices included
	if !force && !tr.DueSince(now, e.conf.Reminder.Interval) {
		res.Skipped++
		return
	}

	if tr.Capped() {
		if kind == KindHotel {
			e.finalNotice(res, p, now, courseCache)
		} else {
			res.CapReached++
		}
		return
	}

	crs, err := e.course(p.CourseID, courseCache)
	if err != nil {
		res.fail(p.Email, err, e.conf.Reminder.MaxErrors)
		return
	}

	if err = e.mailSvc.SendMessage(e.reminderMessage(kind, p, crs, tr.CountSent+1)); err != nil {
		res.fail(p.Email, err, e.conf.Reminder.MaxErrors)
		return
	}

	tr.CountSent++
	tr.LastSentAt = &now
	tr.UpdatedAt = now
	if _, err = e.trackers.UpdateTracking(tr); err != nil {
		res.fail(p.Email, errors.Wrap(err, "recording send"), e.conf.Reminder.MaxErrors)
		return
	}
	res.Sent++
}

// finalNotice sends the one-time "no room will be booked" notice once a
// person's hotel reminders are used up, and freezes their hotel request.
func (e *Engine) finalNotice(res *RunResult, p person.Person, now time.Time, courseCache map[int]course.Course) {
	ft, err := e.trackers.GetOrCreateTracking(p.ID, KindHotelFinal, 1)
	if err != nil {
		res.fail(p.Email, err, e.conf.Reminder.MaxErrors)
		return
	}
	if ft.Capped() {
		res.CapReached++
		return
	}

	crs, err := e.course(p.CourseID, courseCache)
	if err != nil {
		res.fail(p.Email, err, e.conf.Reminder.MaxErrors)
		return
	}

	if err = e.mailSvc.SendMessage(e.finalNoticeMessage(p, crs)); err != nil {
		res.fail(p.Email, err, e.conf.Reminder.MaxErrors)
		return
	}

	ft.CountSent++
	ft.LastSentAt = &now
	ft.UpdatedAt = now
	if _, err = e.trackers.UpdateTracking(ft); err != nil {
		res.fail(p.Email, errors.Wrap(err, "recording final notice"), e.conf.Reminder.MaxErrors)
		return
	}

	if err = e.finalizeHotelRequest(p.ID, now); err != nil {
		e.logger.Error("finalizing hotel request: "+err.Error(), err)
	}
	res.FinalNotices++
}

func (e *Engine) finalizeHotelRequest(personID int, now time.Time) error {
	hr, err := e.persons.GetHotelRequest(personID)
	if errors.Cause(err) == person.ErrHotelNotFound {
		hr = person.HotelRequest{PersonID: personID, CreatedAt: now}
	} else if err != nil {
		return err
	}
	hr.Finalized = true
	hr.UpdatedAt = now
	_, err = e.persons.SaveHotelRequest(hr)
	return err
}

func (e *Engine) maxFor(kind string) int {
	if kind == KindHotelFinal {
		return 1
	}
	return e.conf.Reminder.MaxReminders
}

// targets selects the persons who still owe a response of the given kind.
func (e *Engine) targets(courseID int, kind string) ([]person.Person, error) {
	persons, err := e.persons.FilterPersons(person.QueryFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}

	var hotelDone map[int]bool
	if kind == KindHotel {
		hotels, err := e.persons.QueryHotelRequests(courseID)
		if err != nil {
			return nil, err
		}
		hotelDone = make(map[int]bool, len(hotels))
		for _, hr := range hotels {
			hotelDone[hr.PersonID] = hr.Completed
		}
	}

	var out []person.Person
	for _, p := range persons {
		switch kind {
		case KindRSVP:
			if p.Status == person.StatusInvited && !p.AttendingResponded {
				out = append(out, p)
			}
		case KindInfo:
			if p.Status == person.StatusAttending && !p.InfoCompleted {
				out = append(out, p)
			}
		case KindHotel:
			if p.Status == person.StatusAttending && !hotelDone[p.ID] {
				out = append(out, p)
			}
		default:
			return nil, errors.Errorf("unknown reminder kind %q", kind)
		}
	}
	return out, nil
}

func (e *Engine) course(id int, cache map[int]course.Course) (course.Course, error) {
	if crs, ok := cache[id]; ok {
		return crs, nil
	}
	crs, err := e.courses.GetCourseByID(id)
	if err != nil {
		return course.Course{}, err
	}
	cache[id] = crs
	return crs, nil
}
