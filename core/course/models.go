package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kasolo/mafunzo/core"
)

// Question field types.
const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldYesNo    = "yesno"
	FieldSelect   = "select"
)

type Course struct {
	ID          int        `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	StartDate   time.Time  `json:"start_date" db:"start_date"`
	EndDate     time.Time  `json:"end_date" db:"end_date"`
	HotelNight1 *time.Time `json:"hotel_night1" db:"hotel_night1"`
	HotelNight2 *time.Time `json:"hotel_night2" db:"hotel_night2"`
	HotelNight3 *time.Time `json:"hotel_night3" db:"hotel_night3"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"` // UTC
}

// HotelNights returns the configured night dates, nil entries excluded.
func (c Course) HotelNights() []time.Time {
	nights := make([]time.Time, 0, 3)
	for _, n := range []*time.Time{c.HotelNight1, c.HotelNight2, c.HotelNight3} {
		if n != nil {
			nights = append(nights, *n)
		}
	}
	return nights
}

type Question struct {
	ID         int    `json:"id" db:"id"`
	CourseID   int    `json:"course_id" db:"course_id"`
	Label      string `json:"label" db:"label"`
	FieldType  string `json:"field_type" db:"field_type"`
	Required   bool   `json:"required" db:"required"`
	OrderIndex int    `json:"order_index" db:"order_index"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Name        string     `json:"name" validate:"required"`
	StartDate   time.Time  `json:"start_date" validate:"required"`
	EndDate     time.Time  `json:"end_date" validate:"required"`
	HotelNight1 *time.Time `json:"hotel_night1"`
	HotelNight2 *time.Time `json:"hotel_night2"`
	HotelNight3 *time.Time `json:"hotel_night3"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	if nc.EndDate.Before(nc.StartDate) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end date must not precede start date"})
	}
	return nil
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Name        string     `json:"name"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	HotelNight1 *time.Time `json:"hotel_night1"`
	HotelNight2 *time.Time `json:"hotel_night2"`
	HotelNight3 *time.Time `json:"hotel_night3"`
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if uc.StartDate == nil {
		uc.StartDate = &orig.StartDate
	}
	if uc.EndDate == nil {
		uc.EndDate = &orig.EndDate
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.EndDate.Before(*uc.StartDate) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end date must not precede start date"})
	}
	return nil
}

// NewQuestion contains information needed to add a custom question to a Course.
type NewQuestion struct {
	Label     string `json:"label" validate:"required"`
	FieldType string `json:"field_type" validate:"omitempty,oneof=text textarea yesno select"`
	Required  *bool  `json:"required"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Label = core.CleanString(nq.Label)
	if nq.FieldType == "" {
		nq.FieldType = FieldText
	}
	if nq.Required == nil {
		req := true
		nq.Required = &req
	}
	return validate.Struct(nq)
}
