package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/katembo/kanisa/core/attendance"
)

type attendanceApi struct {
	svc attendance.Service
}

func registerAttendanceAPI(g *echo.Group, svc attendance.Service) {
	api := attendanceApi{svc: svc}

	ag := g.Group("/attendance")
	ag.POST("/check-in", api.checkIn)
	ag.POST("/records", api.record)
	ag.GET("/diagnostics", api.diagnostics)

	ag.POST("/sessions/:id/close", api.closeSession)
	ag.GET("/sessions/:id", api.queryBySession)
	ag.GET("/sessions/:id/totals", api.sessionTotals)

	ag.GET("/members/:id", api.queryByMember)
	ag.GET("/members/:id/stats", api.memberStats)
}

// Handlers

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	var data attendance.CheckInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckInRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	result, err := api.svc.CheckIn(ctx.Request().Context(), data.MemberCode, data.SessionID)
	if err != nil {
		return err
	}
	if result.Created {
		return ctx.JSON(http.StatusCreated, result)
	}
	return ctx.JSON(http.StatusOK, result)
}

func (api *attendanceApi) record(ctx echo.Context) error {
	var data attendance.RecordOutcome
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordOutcome")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	att, created, err := api.svc.Record(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	if created {
		return ctx.JSON(http.StatusCreated, att)
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *attendanceApi) closeSession(ctx echo.Context) error {
	count, err := api.svc.CloseSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CloseSessionResponse{AbsencesMarked: count})
}

func (api *attendanceApi) queryBySession(ctx echo.Context) error {
	records, err := api.svc.QueryBySession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if records == nil {
		records = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) sessionTotals(ctx echo.Context) error {
	totals, err := api.svc.SessionTotals(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, totals)
}

func (api *attendanceApi) queryByMember(ctx echo.Context) error {
	records, err := api.svc.QueryByMember(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if records == nil {
		records = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) memberStats(ctx echo.Context) error {
	stats, err := api.svc.MemberStats(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *attendanceApi) diagnostics(ctx echo.Context) error {
	diag, err := api.svc.Diagnostics(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, diag)
}

type CloseSessionResponse struct {
	AbsencesMarked int `json:"absences_marked"`
}
