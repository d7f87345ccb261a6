package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/course"
	"github.com/kasolo/mafunzo/core/export"
	"github.com/kasolo/mafunzo/core/person"
	"github.com/kasolo/mafunzo/core/reminder"
	emailsvc "github.com/kasolo/mafunzo/services/email"
	"github.com/kasolo/mafunzo/storage/database/inmem"
)

const (
	testAdminUsername = "admin"
	testAdminPassword = "s3cr3t"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type testServer struct {
	srv  Server
	conf *core.Config
	db   *inmemdb.DB
	mail emailsvc.Outbox

	courseSvc *course.Service
	personSvc *person.Service
}

func setup(t *testing.T) *testServer {
	t.Helper()

	pwdHash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}
	conf := &core.Config{
		TestMode:          true,
		AppName:           "Mafunzo",
		BaseURL:           "http://localhost:8000",
		SecretKey:         []byte("test-secret-key"),
		AdminUsername:     testAdminUsername,
		AdminPasswordHash: pwdHash,
		AdminEmail:        "admin@test.test",
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
		},
		Reminder: core.ReminderConfig{
			Interval:     7 * 24 * time.Hour,
			MaxReminders: 4,
			MaxErrors:    20,
		},
		Upload: core.UploadConfig{
			Dir:         t.TempDir(),
			MaxSize:     1 << 20,
			AllowedExts: []string{"pdf", "txt"},
		},
	}

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	if err := core.ParseEmailTemplates(conf); err != nil {
		t.Fatalf("core.ParseEmailTemplates() = %v", err)
	}

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := nopLogger{}

	courseSvc := course.NewService(db)
	personSvc := person.NewService(db, db, mailSvc, conf, logger)
	engine := reminder.NewEngine(db, db, db, mailSvc, conf, logger)
	exporter := export.NewExporter(db, db)

	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		CourseSvc:  courseSvc,
		PersonSvc:  personSvc,
		Engine:     engine,
		Exporter:   exporter,
	})

	return &testServer{
		srv:       srv,
		conf:      conf,
		db:        db,
		mail:      mailSvc.(emailsvc.Outbox),
		courseSvc: courseSvc,
		personSvc: personSvc,
	}
}

func (ts *testServer) request(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) multipartRequest(t *testing.T, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, contentType)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()
	claims, err := authenticate(testAdminUsername, testAdminPassword, ts.conf)
	if err != nil {
		t.Fatalf("authenticate() failed: %v", err)
	}
	token, err := generateToken(claims, ts.conf)
	if err != nil {
		t.Fatalf("generateToken() failed: %v", err)
	}
	return token
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	return bytes.NewReader(b)
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func (ts *testServer) seedCourse(t *testing.T) course.Course {
	t.Helper()
	crs, err := ts.courseSvc.Create(course.NewCourse{
		Name:      "Advanced Welding",
		StartDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seeding course: %v", err)
	}
	return crs
}

func (ts *testServer) seedPerson(t *testing.T, courseID int, email string) person.Person {
	t.Helper()
	p, err := ts.personSvc.Create(courseID, person.NewPerson{Email: email, FirstName: "Test", Role: person.RoleParticipant})
	if err != nil {
		t.Fatalf("seeding person %q: %v", email, err)
	}
	return p
}

func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}
