package export

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/kasolo/mafunzo/core/course"
	"github.com/kasolo/mafunzo/core/person"
)

const (
	participantsSheet = "Participants"
	hotelSheet        = "Hotel Summary"
)

// Exporter builds the admin's spreadsheet export of a course.
type Exporter struct {
	courses course.Repository
	persons person.Repository
}

func NewExporter(courses course.Repository, persons person.Repository) *Exporter {
	return &Exporter{courses: courses, persons: persons}
}

// CourseWorkbook produces a two-sheet .xlsx: all invitees with their
// answers and hotel choices, plus the aggregated hotel summary.
func (ex *Exporter) CourseWorkbook(courseID int) (*excelize.File, error) {
	crs, err := ex.courses.GetCourseByID(courseID)
	if err != nil {
		return nil, err
	}
	questions, err := ex.courses.QueryQuestions(courseID)
	if err != nil {
		return nil, err
	}
	persons, err := ex.persons.FilterPersons(person.QueryFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}
	hotels, err := ex.persons.QueryHotelRequests(courseID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), participantsSheet)
	if err = ex.writeParticipants(f, crs, questions, persons, hotels); err != nil {
		return nil, err
	}
	if err = ex.writeHotelSummary(f, crs, persons, hotels); err != nil {
		return nil, err
	}
	return f, nil
}

// CourseHotelSummary aggregates a course's hotel demand without building
// the full workbook.
func (ex *Exporter) CourseHotelSummary(courseID int) (HotelSummary, error) {
	crs, err := ex.courses.GetCourseByID(courseID)
	if err != nil {
		return HotelSummary{}, err
	}
	persons, err := ex.persons.FilterPersons(person.QueryFilter{CourseID: courseID})
	if err != nil {
		return HotelSummary{}, err
	}
	hotels, err := ex.persons.QueryHotelRequests(courseID)
	if err != nil {
		return HotelSummary{}, err
	}
	return BuildHotelSummary(crs, persons, hotels), nil
}

func (ex *Exporter) writeParticipants(f *excelize.File, crs course.Course, questions []course.Question, persons []person.Person, hotels []person.HotelRequest) error {
	hotelByPerson := make(map[int]person.HotelRequest, len(hotels))
	for _, hr := range hotels {
		hotelByPerson[hr.PersonID] = hr
	}

	header := []interface{}{"First Name", "Last Name", "Email", "Role", "Status", "Info Completed"}
	for _, q := range questions {
		header = append(header, q.Label)
	}
	header = append(header, "Needs Hotel")
	for i, night := range []*time.Time{crs.HotelNight1, crs.HotelNight2, crs.HotelNight3} {
		label := fmt.Sprintf("Night %d", i+1)
		if night != nil {
			label += " (" + person.FormatEmailDate(*night) + ")"
		}
		header = append(header, label)
	}
	header = append(header, "Hotel Finalized", "Files Uploaded")
	if err := f.SetSheetRow(participantsSheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header row")
	}

	for i, p := range persons {
		answers, err := ex.persons.GetAnswers(p.ID)
		if err != nil {
			return err
		}
		byQuestion := make(map[int]string, len(answers))
		for _, a := range answers {
			byQuestion[a.QuestionID] = a.AnswerText
		}
		files, err := ex.persons.QueryFiles(p.ID)
		if err != nil {
			return err
		}

		row := []interface{}{p.FirstName, p.LastName, p.Email, p.Role, p.Status, yesNo(p.InfoCompleted)}
		for _, q := range questions {
			row = append(row, byQuestion[q.ID])
		}

		hr, answered := hotelByPerson[p.ID]
		if !answered || hr.Unanswered() {
			row = append(row, "", "", "", "")
		} else if !*hr.NeedHotel {
			row = append(row, "No", "", "", "")
		} else {
			row = append(row, "Yes", yesNo(hr.Night1), yesNo(hr.Night2), yesNo(hr.Night3))
		}
		row = append(row, yesNo(hr.Finalized), len(files))

		cell := fmt.Sprintf("A%d", i+2)
		if err = f.SetSheetRow(participantsSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row for %s", p.Email)
		}
	}
	return nil
}

func (ex *Exporter) writeHotelSummary(f *excelize.File, crs course.Course, persons []person.Person, hotels []person.HotelRequest) error {
	if _, err := f.NewSheet(hotelSheet); err != nil {
		return errors.Wrap(err, "creating hotel sheet")
	}
	sum := BuildHotelSummary(crs, persons, hotels)

	rows := [][]interface{}{
		{crs.Name + " - Hotel Summary"},
		{},
		{"Need Hotel", sum.NeedHotel},
		{"No Hotel", sum.NoHotel},
		{"No Response", sum.Unanswered},
		{"Finalized (no booking)", sum.Finalized},
		{},
		{"Night", "Participants", "Faculty", "Total"},
	}
	for _, nc := range sum.Nights {
		rows = append(rows, []interface{}{nc.Label, nc.Participants, nc.Faculty, nc.Total})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Stay Pattern", "Count"})
	for _, sp := range sum.Patterns {
		rows = append(rows, []interface{}{sp.Label, sp.Count})
	}

	for i := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(hotelSheet, cell, &rows[i]); err != nil {
			return errors.Wrap(err, "writing hotel summary row")
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
