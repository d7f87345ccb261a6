package reminder

import (
	"net/mail"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/course"
	"github.com/kasolo/mafunzo/core/person"
)

func (e *Engine) reminderMessage(kind string, p person.Person, crs course.Course, number int) *core.EmailMessage {
	msg := &core.EmailMessage{
		To: []mail.Address{{Name: p.DisplayName(), Address: p.Email}},
	}

	switch kind {
	case KindRSVP:
		msg.TemplateName = core.TmplRSVPReminder
		msg.TemplateData = core.RSVPReminderData{
			FirstName:      p.FirstName,
			CourseName:     crs.Name,
			YesLink:        person.RSVPLink(e.conf.BaseURL, p.Token, person.AnswerYes),
			NoLink:         person.RSVPLink(e.conf.BaseURL, p.Token, person.AnswerNo),
			ReminderNumber: number,
			MaxReminders:   e.conf.Reminder.MaxReminders,
		}
	case KindInfo:
		msg.TemplateName = core.TmplInfoReminder
		msg.TemplateData = core.InfoReminderData{
			FirstName:      p.FirstName,
			CourseName:     crs.Name,
			FormLink:       person.InfoFormLink(e.conf.BaseURL, p.Token),
			ReminderNumber: number,
			MaxReminders:   e.conf.Reminder.MaxReminders,
		}
	case KindHotel:
		msg.TemplateName = core.TmplHotelReminder
		msg.TemplateData = core.HotelReminderData{
			FirstName:      p.FirstName,
			CourseName:     crs.Name,
			HotelLink:      person.HotelFormLink(e.conf.BaseURL, p.Token),
			ReminderNumber: number,
			MaxReminders:   e.conf.Reminder.MaxReminders,
		}
	}
	return msg
}

func (e *Engine) finalNoticeMessage(p person.Person, crs course.Course) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: p.DisplayName(), Address: p.Email}},
		TemplateName: core.TmplHotelFinalNotice,
		TemplateData: core.HotelFinalNoticeData{
			FirstName:  p.FirstName,
			CourseName: crs.Name,
		},
	}
}
