package course

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound         = errors.New("course not found")
	ErrQuestionNotFound = errors.New("question not found")
)

// Question move directions.
const (
	MoveUp   = "up"
	MoveDown = "down"
)

type (
	Repository interface {
		CreateCourse(c Course) (Course, error)
		QueryAllCourses() ([]Course, error)
		GetCourseByID(id int) (Course, error)
		UpdateCourse(c Course) (Course, error)
		DeleteCoursesByID(ids ...int) error

		CreateQuestion(q Question) (Question, error)
		GetQuestionByID(id int) (Question, error)
		// QueryQuestions returns a course's questions ordered by OrderIndex.
		QueryQuestions(courseID int) ([]Question, error)
		UpdateQuestion(q Question) (Question, error)
		DeleteQuestionsByID(ids ...int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Name:        nc.Name,
		StartDate:   nc.StartDate,
		EndDate:     nc.EndDate,
		HotelNight1: nc.HotelNight1,
		HotelNight2: nc.HotelNight2,
		HotelNight3: nc.HotelNight3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(crs)
}

func (svc *Service) QueryAll() ([]Course, error) {
	return svc.repo.QueryAllCourses()
}

func (svc *Service) GetByID(id int) (Course, error) {
	return svc.repo.GetCourseByID(id)
}

func (svc *Service) Update(id int, uc UpdateCourse) (Course, error) {
	orig, err := svc.repo.GetCourseByID(id)
	if err != nil {
		return Course{}, err
	}
	crs := Course{
		ID:          id,
		Name:        uc.Name,
		StartDate:   *uc.StartDate,
		EndDate:     *uc.EndDate,
		HotelNight1: uc.HotelNight1,
		HotelNight2: uc.HotelNight2,
		HotelNight3: uc.HotelNight3,
		CreatedAt:   orig.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateCourse(crs)
}

func (svc *Service) Delete(ids ...int) error {
	return svc.repo.DeleteCoursesByID(ids...)
}

func (svc *Service) Questions(courseID int) ([]Question, error) {
	return svc.repo.QueryQuestions(courseID)
}

// AddQuestion appends a question after the course's current last one.
func (svc *Service) AddQuestion(courseID int, nq NewQuestion) (Question, error) {
	qs, err := svc.repo.QueryQuestions(courseID)
	if err != nil {
		return Question{}, err
	}

	next := 0
	if len(qs) > 0 {
		next = qs[len(qs)-1].OrderIndex + 1
	}
	q := Question{
		CourseID:   courseID,
		Label:      nq.Label,
		FieldType:  nq.FieldType,
		Required:   *nq.Required,
		OrderIndex: next,
	}
	return svc.repo.CreateQuestion(q)
}

// UpdateQuestion replaces a question's label and behavior, keeping its
// position in the form.
func (svc *Service) UpdateQuestion(id int, nq NewQuestion) (Question, error) {
	q, err := svc.repo.GetQuestionByID(id)
	if err != nil {
		return Question{}, err
	}
	q.Label = nq.Label
	q.FieldType = nq.FieldType
	q.Required = *nq.Required
	return svc.repo.UpdateQuestion(q)
}

// MoveQuestion swaps a question's OrderIndex with its neighbor in the given
// direction. Moving past either end is a no-op.
func (svc *Service) MoveQuestion(id int, direction string) error {
	q, err := svc.repo.GetQuestionByID(id)
	if err != nil {
		return err
	}
	qs, err := svc.repo.QueryQuestions(q.CourseID)
	if err != nil {
		return err
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].OrderIndex < qs[j].OrderIndex })

	pos := -1
	for i, cand := range qs {
		if cand.ID == q.ID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return ErrQuestionNotFound
	}

	var other int
	switch direction {
	case MoveUp:
		other = pos - 1
	case MoveDown:
		other = pos + 1
	default:
		return errors.Errorf("unknown move direction %q", direction)
	}
	if other < 0 || other >= len(qs) {
		return nil
	}

	qs[pos].OrderIndex, qs[other].OrderIndex = qs[other].OrderIndex, qs[pos].OrderIndex
	if _, err = svc.repo.UpdateQuestion(qs[pos]); err != nil {
		return err
	}
	_, err = svc.repo.UpdateQuestion(qs[other])
	return err
}

func (svc *Service) DeleteQuestion(ids ...int) error {
	return svc.repo.DeleteQuestionsByID(ids...)
}
