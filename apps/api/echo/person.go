package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kasolo/mafunzo/core/course"
	"github.com/kasolo/mafunzo/core/person"
)

// personApi serves the invitee-facing endpoints. There is no login here:
// the emailed token is the whole credential.
type personApi struct {
	deps ServerDeps
}

func registerPersonAPI(app *echo.Echo, deps ServerDeps) {
	api := personApi{deps: deps}

	app.GET("/rsvp/:token", api.rsvp)
	app.GET("/info-form/:token", api.infoForm)
	app.POST("/info-form/:token", api.infoFormSubmit)
	app.GET("/hotel/:token", api.hotelForm)
	app.POST("/hotel/:token", api.hotelFormSubmit)
}

func (api *personApi) rsvp(ctx echo.Context) error {
	p, err := api.deps.PersonSvc.SubmitRSVP(ctx.Param("token"), ctx.QueryParam("answer"))
	if err != nil {
		return err
	}

	msg := "Thank you for letting us know. We are sorry you cannot make it."
	if p.Status == person.StatusAttending {
		msg = "Thank you for confirming! Please check your inbox for the information form."
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": p.Status, "message": msg})
}

type infoFormResponse struct {
	Person    person.Person     `json:"person"`
	Course    course.Course     `json:"course"`
	Questions []course.Question `json:"questions"`
	Answers   map[int]string    `json:"answers"`
}

func (api *personApi) infoForm(ctx echo.Context) error {
	p, err := api.deps.PersonSvc.GetByToken(ctx.Param("token"))
	if err != nil {
		return err
	}
	crs, err := api.deps.CourseSvc.GetByID(p.CourseID)
	if err != nil {
		return err
	}
	questions, err := api.deps.CourseSvc.Questions(p.CourseID)
	if err != nil {
		return err
	}
	answers, err := api.deps.PersonSvc.Answers(p.ID)
	if err != nil {
		return err
	}

	byQuestion := make(map[int]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.AnswerText
	}
	return ctx.JSON(http.StatusOK, infoFormResponse{
		Person:    p,
		Course:    crs,
		Questions: questions,
		Answers:   byQuestion,
	})
}

const questionFieldPrefix = "question_"

// infoFormSubmit takes the multipart info form: name fields, one
// "question_<id>" field per answer and any number of document uploads
// under "files".
func (api *personApi) infoFormSubmit(ctx echo.Context) error {
	token := ctx.Param("token")
	if _, err := api.deps.PersonSvc.GetByToken(token); err != nil {
		return err
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expected a multipart form")
	}

	sub := person.InfoSubmission{Answers: make(map[int]string)}
	for field, vals := range form.Value {
		if len(vals) == 0 {
			continue
		}
		switch {
		case field == "first_name":
			sub.FirstName = vals[0]
		case field == "last_name":
			sub.LastName = vals[0]
		case strings.HasPrefix(field, questionFieldPrefix):
			qid, err := strconv.Atoi(strings.TrimPrefix(field, questionFieldPrefix))
			if err != nil {
				continue
			}
			sub.Answers[qid] = vals[0]
		}
	}

	p, err := api.deps.PersonSvc.SubmitInfo(token, sub)
	if err != nil {
		return err
	}

	var saved []person.File
	for _, fh := range form.File["files"] {
		src, err := fh.Open()
		if err != nil {
			return err
		}
		f, err := api.deps.PersonSvc.SaveUpload(p, fh.Filename, fh.Header.Get("Content-Type"), fh.Size, src)
		_ = src.Close()
		if err != nil {
			return err
		}
		saved = append(saved, f)
	}
	if len(saved) > 0 {
		if err = api.deps.PersonSvc.NotifyUploads(p, saved); err != nil {
			api.deps.Logger.Error("notifying admin of uploads: "+err.Error(), err)
		}
	}

	return ctx.JSON(http.StatusOK, echo.Map{
		"message":        "Thank you, your information has been saved.",
		"files_uploaded": len(saved),
	})
}

type hotelFormResponse struct {
	Person  person.Person       `json:"person"`
	Course  course.Course       `json:"course"`
	Request person.HotelRequest `json:"request"`
}

func (api *personApi) hotelForm(ctx echo.Context) error {
	p, err := api.deps.PersonSvc.GetByToken(ctx.Param("token"))
	if err != nil {
		return err
	}
	crs, err := api.deps.CourseSvc.GetByID(p.CourseID)
	if err != nil {
		return err
	}
	hr, err := api.deps.PersonSvc.HotelRequest(p.ID)
	if err != nil && errors.Cause(err) != person.ErrHotelNotFound {
		return err
	}
	return ctx.JSON(http.StatusOK, hotelFormResponse{Person: p, Course: crs, Request: hr})
}

func (api *personApi) hotelFormSubmit(ctx echo.Context) error {
	data := new(person.HotelSubmission)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	hr, err := api.deps.PersonSvc.SubmitHotel(ctx.Param("token"), *data)
	if err != nil {
		return err
	}

	msg := "Thank you, no hotel room will be booked for you."
	if hr.NeedHotel != nil && *hr.NeedHotel {
		msg = "Thank you, your hotel request has been recorded."
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": msg, "request": hr})
}
