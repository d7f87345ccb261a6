package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kasolo/mafunzo/core/course"
	"github.com/kasolo/mafunzo/core/person"
)

type adminApi struct {
	deps ServerDeps
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{deps: deps}

	g.POST("/login", api.login)

	ag := g.Group("", jwt, adminMiddleware())

	ag.GET("/courses", api.courseQuery)
	ag.POST("/courses", api.courseCreate)
	ag.GET("/courses/:id", api.courseRetrieve)
	ag.PUT("/courses/:id", api.courseUpdate)
	ag.DELETE("/courses/:id", api.courseDestroy)
	ag.GET("/courses/:id/stats", api.courseStats)
	ag.GET("/courses/:id/hotel-summary", api.courseHotelSummary)
	ag.GET("/courses/:id/export", api.courseExport)

	ag.GET("/courses/:id/questions", api.questionQuery)
	ag.POST("/courses/:id/questions", api.questionCreate)
	ag.PUT("/questions/:id", api.questionUpdate)
	ag.POST("/questions/:id/move", api.questionMove)
	ag.DELETE("/questions/:id", api.questionDestroy)

	ag.GET("/courses/:id/persons", api.personQuery)
	ag.POST("/courses/:id/persons", api.personCreate)
	ag.POST("/courses/:id/persons/import", api.personImport)
	ag.GET("/persons/:id", api.personRetrieve)
	ag.PUT("/persons/:id", api.personUpdate)
	ag.DELETE("/persons/:id", api.personDestroy)
	ag.GET("/persons/:id/files", api.personFiles)
	ag.GET("/persons/:id/reminders", api.personReminders)
	ag.GET("/files/:id/download", api.fileDownload)

	ag.POST("/courses/:id/send-invitations", api.sendInvitations)
	ag.POST("/courses/:id/send-info-requests", api.sendInfoRequests)
	ag.POST("/courses/:id/send-hotel-requests", api.sendHotelRequests)
	ag.POST("/courses/:id/reminders/run", api.remindersRun)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (api *adminApi) login(ctx echo.Context) error {
	data := new(LoginRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	claims, err := authenticate(data.Username, data.Password, api.deps.Conf)
	if err != nil {
		return err
	}
	token, err := generateToken(claims, api.deps.Conf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// Courses

func (api *adminApi) courseQuery(ctx echo.Context) error {
	courses, err := api.deps.CourseSvc.QueryAll()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *adminApi) courseCreate(ctx echo.Context) error {
	data := new(course.NewCourse)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	crs, err := api.deps.CourseSvc.Create(*data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *adminApi) courseRetrieve(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	crs, err := api.deps.CourseSvc.GetByID(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *adminApi) courseUpdate(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	orig, err := api.deps.CourseSvc.GetByID(id)
	if err != nil {
		return err
	}

	data := new(course.UpdateCourse)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(orig, api.deps.Validate); err != nil {
		return err
	}

	crs, err := api.deps.CourseSvc.Update(id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *adminApi) courseDestroy(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.deps.CourseSvc.Delete(id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) courseStats(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.deps.CourseSvc.GetByID(id); err != nil {
		return err
	}
	stats, err := api.deps.PersonSvc.Statistics(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *adminApi) courseHotelSummary(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	summary, err := api.deps.Exporter.CourseHotelSummary(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *adminApi) courseExport(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	wb, err := api.deps.Exporter.CourseWorkbook(id)
	if err != nil {
		return err
	}
	defer wb.Close()

	var buff bytes.Buffer
	if err = wb.Write(&buff); err != nil {
		return err
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=course_%d_export.xlsx", id))
	return ctx.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buff.Bytes())
}

// Questions

func (api *adminApi) questionQuery(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	questions, err := api.deps.CourseSvc.Questions(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *adminApi) questionCreate(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.deps.CourseSvc.GetByID(id); err != nil {
		return err
	}

	data := new(course.NewQuestion)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	q, err := api.deps.CourseSvc.AddQuestion(id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *adminApi) questionUpdate(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	data := new(course.NewQuestion)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	q, err := api.deps.CourseSvc.UpdateQuestion(id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

type questionMoveRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

func (api *adminApi) questionMove(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	data := new(questionMoveRequest)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = api.deps.Validate.Struct(data); err != nil {
		return err
	}

	if err = api.deps.CourseSvc.MoveQuestion(id, data.Direction); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) questionDestroy(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.deps.CourseSvc.DeleteQuestion(id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Persons

func (api *adminApi) personQuery(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	filter := new(person.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return err
	}
	filter.CourseID = id
	filter.Clean()

	var ord Ordering
	ord.Bind(ctx)

	persons, err := api.deps.PersonSvc.Query(*filter, ord.Orderings...)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, persons)
}

func (api *adminApi) personCreate(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.deps.CourseSvc.GetByID(id); err != nil {
		return err
	}

	data := new(person.NewPerson)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	p, err := api.deps.PersonSvc.Create(id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *adminApi) personImport(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.deps.CourseSvc.GetByID(id); err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing import file")
	}
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	rows, skipped, err := person.ParseImportFile(fh.Filename, src)
	if err != nil {
		return err
	}

	res, err := api.deps.PersonSvc.Import(id, rows)
	if err != nil {
		return err
	}
	res.Errors = append(res.Errors, skipped...)
	res.Skipped += len(skipped)
	return ctx.JSON(http.StatusOK, res)
}

func (api *adminApi) personRetrieve(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	p, err := api.deps.PersonSvc.GetByID(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *adminApi) personUpdate(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	orig, err := api.deps.PersonSvc.GetByID(id)
	if err != nil {
		return err
	}

	data := new(person.UpdatePerson)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(orig, api.deps.Validate); err != nil {
		return err
	}

	p, err := api.deps.PersonSvc.Update(id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *adminApi) personDestroy(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.deps.PersonSvc.GetByID(id); err != nil {
		return err
	}
	if err = api.deps.PersonSvc.Delete(id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) personFiles(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.deps.PersonSvc.GetByID(id); err != nil {
		return err
	}
	files, err := api.deps.PersonSvc.Files(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, files)
}

func (api *adminApi) personReminders(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.deps.PersonSvc.GetByID(id); err != nil {
		return err
	}
	trackings, err := api.deps.Engine.History(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, trackings)
}

func (api *adminApi) fileDownload(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	f, err := api.deps.PersonSvc.GetFile(id)
	if err != nil {
		return err
	}
	return ctx.Attachment(api.deps.PersonSvc.FilePath(f), f.OriginalName)
}

// Bulk sends & reminders

func (api *adminApi) sendInvitations(ctx echo.Context) error {
	return api.bulkSend(ctx, api.deps.PersonSvc.SendInvites)
}

func (api *adminApi) sendInfoRequests(ctx echo.Context) error {
	return api.bulkSend(ctx, api.deps.PersonSvc.SendInfoRequests)
}

func (api *adminApi) sendHotelRequests(ctx echo.Context) error {
	return api.bulkSend(ctx, api.deps.PersonSvc.SendHotelRequests)
}

func (api *adminApi) bulkSend(ctx echo.Context, send func(int) (person.BulkResult, error)) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	res, err := send(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

type remindersRunRequest struct {
	Kind  string `json:"kind" validate:"omitempty,oneof=RSVP INFO HOTEL"`
	Force bool   `json:"force"`
}

func (api *adminApi) remindersRun(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.deps.CourseSvc.GetByID(id); err != nil {
		return err
	}

	data := new(remindersRunRequest)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = api.deps.Validate.Struct(data); err != nil {
		return err
	}

	var res interface{}
	if data.Kind == "" {
		res, err = api.deps.Engine.Run(id)
	} else {
		res, err = api.deps.Engine.RunKind(id, data.Kind, data.Force)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func intParam(ctx echo.Context, name string) (int, error) {
	val, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, errHttpNotFound
	}
	return val, nil
}
