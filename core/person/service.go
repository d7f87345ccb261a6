package person

import (
	"time"

	"github.com/pkg/errors"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/course"
)

var (
	// errors
	ErrNotFound      = errors.New("person not found")
	ErrEmailExists   = errors.New("this email is already registered for the course")
	ErrHotelNotFound = errors.New("hotel request not found")
	ErrFileNotFound  = errors.New("file not found")
	ErrInvalidAnswer = errors.New("invalid RSVP answer")
)

type (
	Repository interface {
		CreatePerson(p Person) (Person, error)
		GetPersonByID(id int) (Person, error)
		GetPersonByToken(token string) (Person, error)
		GetPersonByEmail(courseID int, email string) (Person, error)
		// FilterPersons applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Person.FirstName, Person.LastName or Person.Email.
		FilterPersons(filter QueryFilter, orderings ...core.DBOrdering) ([]Person, error)
		UpdatePerson(p Person) (Person, error)
		DeletePersonsByID(ids ...int) error

		GetAnswers(personID int) ([]Answer, error)
		// SaveInfoSubmission persists the person row and all answer upserts
		// as one unit; none is visible unless all are.
		SaveInfoSubmission(p Person, answers []Answer) error

		GetHotelRequest(personID int) (HotelRequest, error)
		QueryHotelRequests(courseID int) ([]HotelRequest, error)
		SaveHotelRequest(hr HotelRequest) (HotelRequest, error)

		CreateFile(f File) (File, error)
		GetFileByID(id int) (File, error)
		QueryFiles(personID int) ([]File, error)
	}

	Service struct {
		repo    Repository
		courses course.Repository
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

func NewService(repo Repository, courses course.Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		courses: courses,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

// Create registers a single invitee on a course. The access token is
// generated here and never changes for the lifetime of the record.
func (svc *Service) Create(courseID int, np NewPerson) (Person, error) {
	if _, err := svc.repo.GetPersonByEmail(courseID, np.Email); err == nil {
		return Person{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return Person{}, err
	}

	token, err := svc.uniqueToken()
	if err != nil {
		return Person{}, err
	}

	now := time.Now().UTC()
	p := Person{
		CourseID:  courseID,
		Email:     np.Email,
		FirstName: np.FirstName,
		LastName:  np.LastName,
		Role:      np.Role,
		Status:    StatusInvited,
		Token:     token,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreatePerson(p)
}

func (svc *Service) uniqueToken() (string, error) {
	maxAttempts := 5
	for i := 0; i < maxAttempts; i++ {
		token, err := GenerateToken()
		if err != nil {
			return "", err
		}
		if _, err = svc.repo.GetPersonByToken(token); errors.Cause(err) == ErrNotFound {
			return token, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", errors.Errorf("no unique token after %d attempts", maxAttempts)
}

// ImportResult tallies a bulk person import.
type ImportResult struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Import registers the given rows, skipping emails already present on the
// course. Rows are expected pre-validated by ParseImportFile.
func (svc *Service) Import(courseID int, rows []NewPerson) (ImportResult, error) {
	var res ImportResult
	for _, row := range rows {
		_, err := svc.Create(courseID, row)
		switch {
		case err == nil:
			res.Added++
		case isValidationErr(err):
			res.Skipped++
		default:
			res.Skipped++
			res.Errors = append(res.Errors, row.Email+": "+err.Error())
		}
	}
	return res, nil
}

func isValidationErr(err error) bool {
	_, ok := errors.Cause(err).(*core.ValidationError)
	return ok
}

func (svc *Service) Query(filter QueryFilter, orderings ...core.DBOrdering) ([]Person, error) {
	return svc.repo.FilterPersons(filter, orderings...)
}

func (svc *Service) GetByID(id int) (Person, error) {
	return svc.repo.GetPersonByID(id)
}

func (svc *Service) GetByToken(token string) (Person, error) {
	return svc.repo.GetPersonByToken(token)
}

func (svc *Service) Update(id int, up UpdatePerson) (Person, error) {
	p, err := svc.repo.GetPersonByID(id)
	if err != nil {
		return Person{}, err
	}
	if up.Email != p.Email {
		if _, err = svc.repo.GetPersonByEmail(p.CourseID, up.Email); err == nil {
			return Person{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		} else if errors.Cause(err) != ErrNotFound {
			return Person{}, err
		}
	}
	p.Email = up.Email
	p.FirstName = up.FirstName
	p.LastName = up.LastName
	p.Role = up.Role
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePerson(p)
}

// Delete removes persons and everything hanging off them, uploaded files
// included.
func (svc *Service) Delete(ids ...int) error {
	for _, id := range ids {
		svc.removeUploadDir(id)
	}
	return svc.repo.DeletePersonsByID(ids...)
}

func (svc *Service) Answers(personID int) ([]Answer, error) {
	return svc.repo.GetAnswers(personID)
}

func (svc *Service) HotelRequest(personID int) (HotelRequest, error) {
	return svc.repo.GetHotelRequest(personID)
}

// SubmitRSVP records a yes/no response through a person's token link.
// Responses may be resubmitted and flip the status either way, but
// AttendingResponded only ever moves forward to true.
func (svc *Service) SubmitRSVP(token, answer string) (Person, error) {
	p, err := svc.repo.GetPersonByToken(token)
	if err != nil {
		return Person{}, err
	}

	switch answer {
	case AnswerYes:
		p.Status = StatusAttending
	case AnswerNo:
		p.Status = StatusNotAttending
	default:
		return Person{}, core.NewValidationError(ErrInvalidAnswer, core.FieldError{Field: "answer", Error: "must be yes or no"})
	}
	p.AttendingResponded = true
	p.UpdatedAt = time.Now().UTC()

	p, err = svc.repo.UpdatePerson(p)
	if err != nil {
		return Person{}, err
	}

	if p.Status == StatusAttending {
		crs, err := svc.courses.GetCourseByID(p.CourseID)
		if err != nil {
			return p, errors.Wrap(err, "loading course for info form mail")
		}
		if err = svc.mailSvc.SendMessage(svc.infoRequestMessage(p, crs)); err != nil {
			// the person can still reach the form from a later reminder
			svc.logger.Error("sending info form mail: "+err.Error(), err)
		}
	}
	return p, nil
}

// SubmitInfo upserts the person's answers and marks their info complete in
// the same transaction. Blank answers are ignored; required questions are
// deliberately not enforced here.
func (svc *Service) SubmitInfo(token string, sub InfoSubmission) (Person, error) {
	p, err := svc.repo.GetPersonByToken(token)
	if err != nil {
		return Person{}, err
	}
	questions, err := svc.courses.QueryQuestions(p.CourseID)
	if err != nil {
		return Person{}, err
	}

	now := time.Now().UTC()
	if first := core.CleanString(sub.FirstName); first != "" {
		p.FirstName = first
	}
	if last := core.CleanString(sub.LastName); last != "" {
		p.LastName = last
	}
	p.InfoCompleted = true
	p.InfoCompletedAt = &now
	p.UpdatedAt = now

	answers := make([]Answer, 0, len(questions))
	for _, q := range questions {
		text := core.CleanString(sub.Answers[q.ID])
		if text == "" {
			continue
		}
		answers = append(answers, Answer{
			PersonID:   p.ID,
			QuestionID: q.ID,
			AnswerText: text,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err = svc.repo.SaveInfoSubmission(p, answers); err != nil {
		return Person{}, err
	}
	return p, nil
}

// SubmitHotel upserts the person's hotel request. Saying no clears every
// night flag regardless of what was submitted; a previously finalized
// request stays finalized.
func (svc *Service) SubmitHotel(token string, sub HotelSubmission) (HotelRequest, error) {
	p, err := svc.repo.GetPersonByToken(token)
	if err != nil {
		return HotelRequest{}, err
	}

	now := time.Now().UTC()
	hr, err := svc.repo.GetHotelRequest(p.ID)
	if errors.Cause(err) == ErrHotelNotFound {
		hr = HotelRequest{PersonID: p.ID, CreatedAt: now}
	} else if err != nil {
		return HotelRequest{}, err
	}

	need := sub.NeedHotel
	hr.NeedHotel = &need
	if need {
		hr.Night1 = sub.Night1
		hr.Night2 = sub.Night2
		hr.Night3 = sub.Night3
	} else {
		hr.Night1 = false
		hr.Night2 = false
		hr.Night3 = false
	}
	hr.Completed = true
	hr.UpdatedAt = now

	return svc.repo.SaveHotelRequest(hr)
}

// Statistics aggregates RSVP, info and hotel completion for a course.
func (svc *Service) Statistics(courseID int) (Stats, error) {
	persons, err := svc.repo.FilterPersons(QueryFilter{CourseID: courseID})
	if err != nil {
		return Stats{}, err
	}
	hotels, err := svc.repo.QueryHotelRequests(courseID)
	if err != nil {
		return Stats{}, err
	}
	completed := make(map[int]bool, len(hotels))
	for _, hr := range hotels {
		completed[hr.PersonID] = hr.Completed
	}

	var stats Stats
	for _, p := range persons {
		stats.TotalInvited++

		byRole := &stats.Participants
		if p.IsFaculty() {
			byRole = &stats.Faculty
		}
		byRole.Invited++

		switch p.Status {
		case StatusAttending:
			stats.TotalAttending++
			byRole.Attending++
			if p.InfoCompleted {
				stats.InfoCompleted++
			} else {
				stats.InfoPending++
			}
			if completed[p.ID] {
				stats.HotelCompleted++
			} else {
				stats.HotelPending++
			}
		case StatusNotAttending:
			stats.TotalNotAttending++
			byRole.NotAttending++
		default:
			stats.TotalNoResponse++
		}
	}
	return stats, nil
}
