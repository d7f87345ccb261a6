package person

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kasolo/mafunzo/core"
)

// Roles
const (
	RoleParticipant = "PARTICIPANT"
	RoleFaculty     = "FACULTY"
)

// RSVP statuses
const (
	StatusInvited      = "INVITED"
	StatusAttending    = "ATTENDING"
	StatusNotAttending = "NOT_ATTENDING"
)

// RSVP answers
const (
	AnswerYes = "yes"
	AnswerNo  = "no"
)

type Person struct {
	ID                 int        `json:"id" db:"id"`
	CourseID           int        `json:"course_id" db:"course_id"`
	Email              string     `json:"email" db:"email"`
	FirstName          string     `json:"first_name" db:"first_name"`
	LastName           string     `json:"last_name" db:"last_name"`
	Role               string     `json:"role" db:"role"`
	Status             string     `json:"status" db:"status"`
	AttendingResponded bool       `json:"attending_responded" db:"attending_responded"`
	Token              string     `json:"-" db:"token"` // immutable, never exposed through admin APIs
	InfoCompleted      bool       `json:"info_completed" db:"info_completed"`
	InfoCompletedAt    *time.Time `json:"info_completed_at" db:"info_completed_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"` // UTC
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"` // UTC
}

// DisplayName returns the person's name, falling back to their email.
func (p Person) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.Email
	}
}

func (p Person) IsFaculty() bool { return p.Role == RoleFaculty }

type Answer struct {
	ID         int       `json:"id" db:"id"`
	PersonID   int       `json:"person_id" db:"person_id"`
	QuestionID int       `json:"question_id" db:"question_id"`
	AnswerText string    `json:"answer_text" db:"answer_text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

type HotelRequest struct {
	ID        int       `json:"id" db:"id"`
	PersonID  int       `json:"person_id" db:"person_id"`
	NeedHotel *bool     `json:"need_hotel" db:"need_hotel"` // nil while unanswered
	Night1    bool      `json:"night1" db:"night1"`
	Night2    bool      `json:"night2" db:"night2"`
	Night3    bool      `json:"night3" db:"night3"`
	Completed bool      `json:"completed" db:"completed"`
	Finalized bool      `json:"finalized" db:"finalized"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Unanswered reports whether the person has yet to say if they need a hotel.
func (hr HotelRequest) Unanswered() bool { return hr.NeedHotel == nil }

type File struct {
	ID           int       `json:"id" db:"id"`
	PersonID     int       `json:"person_id" db:"person_id"`
	Filename     string    `json:"-" db:"filename"` // stored name, unguessable
	OriginalName string    `json:"original_name" db:"original_name"`
	Size         int64     `json:"size" db:"size"`
	ContentType  string    `json:"content_type" db:"content_type"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// NewPerson contains information needed to register a single invitee.
type NewPerson struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role" validate:"omitempty,oneof=PARTICIPANT FACULTY"`
}

func (np *NewPerson) Validate(validate *validator.Validate) error {
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.FirstName = core.CleanString(np.FirstName)
	np.LastName = core.CleanString(np.LastName)
	np.Role = core.CleanString(np.Role, true)
	if np.Role != "" {
		// stored upper-case
		np.Role = map[string]string{"participant": RoleParticipant, "faculty": RoleFaculty}[np.Role]
	} else {
		np.Role = RoleParticipant
	}
	return validate.Struct(np)
}

// UpdatePerson defines what an admin may modify on an existing Person.
// The token and the RSVP bookkeeping fields are not editable.
type UpdatePerson struct {
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role" validate:"omitempty,oneof=PARTICIPANT FACULTY"`
}

func (up *UpdatePerson) Validate(orig Person, validate *validator.Validate) error {
	email := core.CleanString(up.Email, true)
	if email != "" {
		up.Email = email
	} else {
		up.Email = orig.Email
	}
	up.FirstName = core.CleanString(up.FirstName)
	if up.FirstName == "" {
		up.FirstName = orig.FirstName
	}
	up.LastName = core.CleanString(up.LastName)
	if up.LastName == "" {
		up.LastName = orig.LastName
	}
	if up.Role == "" {
		up.Role = orig.Role
	}
	return validate.Struct(up)
}

// InfoSubmission is a person's own info-form POST: their name plus one
// answer per question ID. Empty answers are skipped, not erased.
type InfoSubmission struct {
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Answers   map[int]string `json:"answers"`
}

// HotelSubmission is a person's own hotel-form POST.
type HotelSubmission struct {
	NeedHotel bool `json:"need_hotel"`
	Night1    bool `json:"night1"`
	Night2    bool `json:"night2"`
	Night3    bool `json:"night3"`
}

type QueryFilter struct {
	CourseID int      `query:"-"`
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	Statuses []string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.CourseID == 0 && qf.Search == "" && qf.Roles == nil && qf.Statuses == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	for i, r := range qf.Roles {
		qf.Roles[i] = core.CleanString(r, true)
	}
	for i, s := range qf.Statuses {
		qf.Statuses[i] = core.CleanString(s, true)
	}
}

// RoleStats breaks basic RSVP counts down for one role.
type RoleStats struct {
	Invited      int `json:"invited"`
	Attending    int `json:"attending"`
	NotAttending int `json:"not_attending"`
}

// Stats aggregates a course's RSVP and completion state.
type Stats struct {
	TotalInvited      int       `json:"total_invited"`
	TotalAttending    int       `json:"total_attending"`
	TotalNotAttending int       `json:"total_not_attending"`
	TotalNoResponse   int       `json:"total_no_response"`
	InfoCompleted     int       `json:"info_completed"`
	InfoPending       int       `json:"info_pending"`
	HotelCompleted    int       `json:"hotel_completed"`
	HotelPending      int       `json:"hotel_pending"`
	Participants      RoleStats `json:"participants"`
	Faculty           RoleStats `json:"faculty"`
}
