package person_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kasolo/mafunzo/core/person"
)

func TestParseImportFileCSV(t *testing.T) {
	csv := strings.Join([]string{
		"Email,First Name,Last Name,Role",
		"amira@test.test,Amira,Diallo,faculty",
		"not-an-email,Bob,Broken",
		"JOHN@Test.test, John ,Smith,",
		"",
		"lee@test.test,Lee",
	}, "\n")

	rows, skipped, err := person.ParseImportFile("people.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseImportFile() failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if len(skipped) != 1 || skipped[0] != "not-an-email" {
		t.Errorf("skipped = %v", skipped)
	}

	if rows[0].Role != person.RoleFaculty {
		t.Errorf("rows[0].Role = %q, want %q", rows[0].Role, person.RoleFaculty)
	}
	// email lowercased, names trimmed, missing role defaults
	if rows[1].Email != "john@test.test" || rows[1].FirstName != "John" || rows[1].Role != person.RoleParticipant {
		t.Errorf("rows[1] = %+v", rows[1])
	}
	// short rows are fine
	if rows[2].Email != "lee@test.test" || rows[2].LastName != "" {
		t.Errorf("rows[2] = %+v", rows[2])
	}
}

func TestParseImportFileXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range [][]interface{}{
		{"email", "first name", "last name", "role"},
		{"amira@test.test", "Amira", "Diallo", "FACULTY"},
		{"bob@test.test", "Bob", "Builder", "participant"},
	} {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			t.Fatalf("building xlsx: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("writing xlsx: %v", err)
	}

	rows, skipped, err := person.ParseImportFile("people.xlsx", &buf)
	if err != nil {
		t.Fatalf("ParseImportFile() failed: %v", err)
	}
	if len(rows) != 2 || len(skipped) != 0 {
		t.Fatalf("rows = %d, skipped = %v", len(rows), skipped)
	}
	if rows[0].Role != person.RoleFaculty || rows[1].Role != person.RoleParticipant {
		t.Errorf("roles = %q, %q", rows[0].Role, rows[1].Role)
	}
}

func TestParseImportFileUnsupported(t *testing.T) {
	if _, _, err := person.ParseImportFile("people.pdf", strings.NewReader("x")); err == nil {
		t.Error("pdf accepted as import file")
	}
}
