package person

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/course"
)

const emailDateLayout = "January 2, 2006"

// FormatEmailDate renders a date the way all outgoing emails show them.
func FormatEmailDate(t time.Time) string { return t.Format(emailDateLayout) }

func formatNight(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatEmailDate(*t)
}

// RSVPLink builds the one-click yes/no response link for a person's token.
func RSVPLink(baseURL, token, answer string) string {
	return fmt.Sprintf("%s/rsvp/%s?answer=%s", baseURL, token, answer)
}

// InfoFormLink builds the personal info form link for a person's token.
func InfoFormLink(baseURL, token string) string {
	return fmt.Sprintf("%s/info-form/%s", baseURL, token)
}

// HotelFormLink builds the hotel request form link for a person's token.
func HotelFormLink(baseURL, token string) string {
	return fmt.Sprintf("%s/hotel/%s", baseURL, token)
}

func (svc *Service) rsvpInviteMessage(p Person, crs course.Course) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: p.DisplayName(), Address: p.Email}},
		TemplateName: core.TmplRSVPInvite,
		TemplateData: core.RSVPInviteData{
			FirstName:  p.FirstName,
			CourseName: crs.Name,
			StartDate:  FormatEmailDate(crs.StartDate),
			EndDate:    FormatEmailDate(crs.EndDate),
			YesLink:    RSVPLink(svc.conf.BaseURL, p.Token, AnswerYes),
			NoLink:     RSVPLink(svc.conf.BaseURL, p.Token, AnswerNo),
		},
	}
}

func (svc *Service) infoRequestMessage(p Person, crs course.Course) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: p.DisplayName(), Address: p.Email}},
		TemplateName: core.TmplInfoRequest,
		TemplateData: core.InfoRequestData{
			FirstName:  p.FirstName,
			CourseName: crs.Name,
			FormLink:   InfoFormLink(svc.conf.BaseURL, p.Token),
		},
	}
}

func (svc *Service) hotelRequestMessage(p Person, crs course.Course) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: p.DisplayName(), Address: p.Email}},
		TemplateName: core.TmplHotelRequest,
		TemplateData: core.HotelRequestData{
			FirstName:  p.FirstName,
			CourseName: crs.Name,
			HotelLink:  HotelFormLink(svc.conf.BaseURL, p.Token),
			Night1:     formatNight(crs.HotelNight1),
			Night2:     formatNight(crs.HotelNight2),
			Night3:     formatNight(crs.HotelNight3),
		},
	}
}

// BulkResult tallies an admin-triggered bulk send.
type BulkResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

func (br *BulkResult) tally(email string, err error) {
	if err == nil {
		br.Sent++
		return
	}
	br.Failed++
	br.Errors = append(br.Errors, email+": "+err.Error())
}

// SendInvites emails the RSVP invitation to everyone on the course who has
// not responded yet. One failed address does not stop the rest.
func (svc *Service) SendInvites(courseID int) (BulkResult, error) {
	var res BulkResult
	crs, persons, err := svc.bulkTargets(courseID)
	if err != nil {
		return res, err
	}
	for _, p := range persons {
		if p.AttendingResponded {
			continue
		}
		res.tally(p.Email, svc.mailSvc.SendMessage(svc.rsvpInviteMessage(p, crs)))
	}
	return res, nil
}

// SendInfoRequests emails the info form link to every attending person who
// has not completed it.
func (svc *Service) SendInfoRequests(courseID int) (BulkResult, error) {
	var res BulkResult
	crs, persons, err := svc.bulkTargets(courseID)
	if err != nil {
		return res, err
	}
	for _, p := range persons {
		if p.Status != StatusAttending || p.InfoCompleted {
			continue
		}
		res.tally(p.Email, svc.mailSvc.SendMessage(svc.infoRequestMessage(p, crs)))
	}
	return res, nil
}

// SendHotelRequests emails the hotel form link to every attending person
// whose hotel request is still open.
func (svc *Service) SendHotelRequests(courseID int) (BulkResult, error) {
	var res BulkResult
	crs, persons, err := svc.bulkTargets(courseID)
	if err != nil {
		return res, err
	}
	hotels, err := svc.repo.QueryHotelRequests(courseID)
	if err != nil {
		return res, err
	}
	completed := make(map[int]bool, len(hotels))
	for _, hr := range hotels {
		completed[hr.PersonID] = hr.Completed
	}
	for _, p := range persons {
		if p.Status != StatusAttending || completed[p.ID] {
			continue
		}
		res.tally(p.Email, svc.mailSvc.SendMessage(svc.hotelRequestMessage(p, crs)))
	}
	return res, nil
}

func (svc *Service) bulkTargets(courseID int) (course.Course, []Person, error) {
	crs, err := svc.courses.GetCourseByID(courseID)
	if err != nil {
		return course.Course{}, nil, err
	}
	persons, err := svc.repo.FilterPersons(QueryFilter{CourseID: courseID})
	if err != nil {
		return course.Course{}, nil, err
	}
	return crs, persons, nil
}
