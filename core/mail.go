package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"net/http"
	"net/mail"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strings"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/kasolo/mafunzo/fs"
)

// Email template names.
const (
	TmplRSVPInvite       = "rsvp_invitation"
	TmplRSVPReminder     = "rsvp_reminder"
	TmplInfoRequest      = "info_form_request"
	TmplInfoReminder     = "info_reminder"
	TmplHotelRequest     = "hotel_request"
	TmplHotelReminder    = "hotel_reminder"
	TmplHotelFinalNotice = "hotel_final_notice"
	TmplFileUploadNotice = "file_upload_notice"
)

// Per-template data. Every template declares the exact variables it needs;
// rendering with any other type is rejected.
type (
	RSVPInviteData struct {
		FirstName  string
		CourseName string
		StartDate  string
		EndDate    string
		YesLink    string
		NoLink     string
	}

	RSVPReminderData struct {
		FirstName      string
		CourseName     string
		YesLink        string
		NoLink         string
		ReminderNumber int
		MaxReminders   int
	}

	InfoRequestData struct {
		FirstName  string
		CourseName string
		FormLink   string
	}

	InfoReminderData struct {
		FirstName      string
		CourseName     string
		FormLink       string
		ReminderNumber int
		MaxReminders   int
	}

	HotelRequestData struct {
		FirstName  string
		CourseName string
		HotelLink  string
		Night1     string
		Night2     string
		Night3     string
	}

	HotelReminderData struct {
		FirstName      string
		CourseName     string
		HotelLink      string
		ReminderNumber int
		MaxReminders   int
	}

	HotelFinalNoticeData struct {
		FirstName  string
		CourseName string
	}

	UploadedFileInfo struct {
		Name string
		Size string
	}

	FileUploadNoticeData struct {
		FirstName  string
		LastName   string
		Email      string
		Role       string
		CourseName string
		Files      []UploadedFileInfo
	}
)

type emailTemplateSpec struct {
	subject  string
	dataType reflect.Type
}

var emailTemplateSpecs = map[string]emailTemplateSpec{
	TmplRSVPInvite:       {"RSVP: {{.Data.CourseName}}", reflect.TypeOf(RSVPInviteData{})},
	TmplRSVPReminder:     {"Reminder #{{.Data.ReminderNumber}}: RSVP - {{.Data.CourseName}}", reflect.TypeOf(RSVPReminderData{})},
	TmplInfoRequest:      {"Please Complete Your Information - {{.Data.CourseName}}", reflect.TypeOf(InfoRequestData{})},
	TmplInfoReminder:     {"Reminder #{{.Data.ReminderNumber}}: Complete Your Information - {{.Data.CourseName}}", reflect.TypeOf(InfoReminderData{})},
	TmplHotelRequest:     {"Hotel Accommodation Request - {{.Data.CourseName}}", reflect.TypeOf(HotelRequestData{})},
	TmplHotelReminder:    {"Reminder #{{.Data.ReminderNumber}}: Hotel Request - {{.Data.CourseName}}", reflect.TypeOf(HotelReminderData{})},
	TmplHotelFinalNotice: {"Final Notice: No Hotel Room Will Be Booked - {{.Data.CourseName}}", reflect.TypeOf(HotelFinalNoticeData{})},
	TmplFileUploadNotice: {"{{.Data.LastName}}, {{.Data.FirstName}} - Files Uploaded", reflect.TypeOf(FileUploadNoticeData{})},
}

var (
	emailBodyTemplates    map[string]*htmltmpl.Template
	emailSubjectTemplates map[string]*texttmpl.Template
)

type (
	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		HTMLContent  string
	}

	ContextData struct {
		BaseURL string
		AppName string
		Data    interface{}
	}

	// EmailService is any service that can send a single message through an
	// external transport. A nil error means the transport accepted the
	// message; anything else is a send failure the caller may retry later.
	EmailService interface {
		SendMessage(msg *EmailMessage) error
	}
)

// ParseEmailTemplates loads all named email templates from the embedded
// assets. It must be called once at process start, before any Render.
func ParseEmailTemplates(conf *Config) error {
	emailBodyTemplates = make(map[string]*htmltmpl.Template, len(emailTemplateSpecs))
	emailSubjectTemplates = make(map[string]*texttmpl.Template, len(emailTemplateSpecs))

	rp := path.Join("assets", "templates", "email")
	for name, spec := range emailTemplateSpecs {
		tmpl, err := htmltmpl.ParseFS(appfs.FS, path.Join(rp, "_base.gohtml"), path.Join(rp, name+".gohtml"))
		if err != nil {
			return errors.Wrapf(err, "parsing email template %s", name)
		}
		emailBodyTemplates[name] = tmpl.Option("missingkey=error")

		stmpl, err := texttmpl.New(name).Option("missingkey=error").Parse(spec.subject)
		if err != nil {
			return errors.Wrapf(err, "parsing email subject %s", name)
		}
		emailSubjectTemplates[name] = stmpl
	}
	return nil
}

func (m *EmailMessage) contextData(conf *Config) ContextData {
	return ContextData{
		BaseURL: conf.BaseURL,
		AppName: conf.AppName,
		Data:    m.TemplateData,
	}
}

// Render produces the message subject and HTML body from its template. The
// template data must be the exact type declared for the template name; a
// mismatch or a missing variable is a render error.
func (m *EmailMessage) Render(conf *Config) error {
	if m.TemplateName == "" {
		return nil
	}

	spec, ok := emailTemplateSpecs[m.TemplateName]
	if !ok {
		return errors.Errorf("unknown email template %q", m.TemplateName)
	}
	if dt := reflect.TypeOf(m.TemplateData); dt != spec.dataType {
		return errors.Errorf("email template %q wants %s data, got %v", m.TemplateName, spec.dataType, dt)
	}

	tmpl, ok := emailBodyTemplates[m.TemplateName]
	if !ok {
		return errors.Errorf("email template %q not parsed; ParseEmailTemplates not called?", m.TemplateName)
	}

	var buff bytes.Buffer
	if err := emailSubjectTemplates[m.TemplateName].Execute(&buff, m.contextData(conf)); err != nil {
		return errors.Wrapf(err, "rendering subject of %q", m.TemplateName)
	}
	m.Subject = strings.TrimSpace(buff.String())

	buff.Reset()
	if err := tmpl.ExecuteTemplate(&buff, "base", m.contextData(conf)); err != nil {
		return errors.Wrapf(err, "rendering body of %q", m.TemplateName)
	}
	m.HTMLContent = buff.String()
	return nil
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err = encoder.Write(content); err != nil {
		return err
	}
	if err = encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) AttachFile(path string, contentType ...string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Attach(f, filepath.Base(path), contentType...)
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.BodyStr != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }
