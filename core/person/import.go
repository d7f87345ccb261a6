package person

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/kasolo/mafunzo/core"
)

var ErrUnsupportedImport = errors.New("unsupported import file type; use .csv or .xlsx")

// ParseImportFile reads invitee rows out of an uploaded .csv or .xlsx file.
// Expected columns, in order: email, first name, last name, role. A header
// row is recognized and skipped. Rows without a plausible email are
// reported back, not imported.
func ParseImportFile(filename string, r io.Reader) ([]NewPerson, []string, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSVRows(r)
	case ".xlsx":
		rows, err = readXLSXRows(r)
	default:
		return nil, nil, core.NewValidationError(ErrUnsupportedImport, core.FieldError{Field: "file", Error: ErrUnsupportedImport.Error()})
	}
	if err != nil {
		return nil, nil, err
	}
	return rowsToPersons(rows)
}

func readCSVRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	return rows, errors.Wrap(err, "reading csv")
}

func readXLSXRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening xlsx")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	return rows, errors.Wrap(err, "reading xlsx rows")
}

func rowsToPersons(rows [][]string) ([]NewPerson, []string, error) {
	var persons []NewPerson
	var skipped []string

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		email := core.CleanString(cell(row, 0), true /* lower */)
		if email == "" {
			continue
		}
		if i == 0 && strings.Contains(email, "email") {
			continue // header row
		}
		if !strings.Contains(email, "@") {
			skipped = append(skipped, email)
			continue
		}

		role := strings.ToUpper(core.CleanString(cell(row, 3)))
		if role != RoleFaculty {
			role = RoleParticipant
		}
		persons = append(persons, NewPerson{
			Email:     email,
			FirstName: core.CleanString(cell(row, 1)),
			LastName:  core.CleanString(cell(row, 2)),
			Role:      role,
		})
	}
	return persons, skipped, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}
