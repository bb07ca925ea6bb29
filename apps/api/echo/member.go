package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/katembo/kanisa/core/member"
)

type memberApi struct {
	svc     member.Service
	tracker *member.Tracker
}

func registerMemberAPI(g *echo.Group, svc member.Service, tracker *member.Tracker) {
	api := memberApi{svc: svc, tracker: tracker}

	mg := g.Group("/members")
	mg.POST("", api.create)
	mg.GET("", api.query)
	mg.DELETE("", api.destroyMultiple)
	mg.GET("/at-risk", api.atRiskGroups)

	// detail endpoints
	dg := mg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/alerts", api.alerts)
	dg.GET("/contacts", api.contactHistory)
	dg.POST("/contacts", api.logContact)

	ag := g.Group("/alerts")
	ag.POST("/recompute", api.recompute)
	ag.POST("/:id/resolve", api.resolveAlert)
}

// Handlers

func (api *memberApi) create(ctx echo.Context) error {
	var data member.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	mbr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating member")
	}
	return ctx.JSON(http.StatusCreated, mbr)
}

func (api *memberApi) query(ctx echo.Context) error {
	filter := new(member.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []member.Member{})
	}

	members, err := api.svc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []member.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	mbr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *memberApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	mbr, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data member.UpdateMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMember")
	}
	if err := data.Validate(mbr); err != nil {
		return err
	}

	mbr, err = api.svc.Update(reqCtx, mbr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating member")
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *memberApi) destroy(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	mbr, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if err := api.svc.Delete(reqCtx, mbr.ID); err != nil {
		return errors.Wrap(err, "deleting member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting members")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) atRiskGroups(ctx echo.Context) error {
	groups, err := api.svc.AtRiskGroups(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying at-risk groups")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *memberApi) alerts(ctx echo.Context) error {
	alerts, err := api.svc.Alerts(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if alerts == nil {
		alerts = []member.Alert{}
	}
	return ctx.JSON(http.StatusOK, alerts)
}

func (api *memberApi) contactHistory(ctx echo.Context) error {
	logs, err := api.svc.ContactHistory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if logs == nil {
		logs = []member.ContactLog{}
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *memberApi) logContact(ctx echo.Context) error {
	var data member.NewContactLog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContactLog")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	cl, err := api.svc.LogContact(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cl)
}

func (api *memberApi) recompute(ctx echo.Context) error {
	summary, err := api.tracker.Recompute(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "recomputing attendance state")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *memberApi) resolveAlert(ctx echo.Context) error {
	var data member.ResolveAlert
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResolveAlert")
	}

	alert, err := api.tracker.Resolve(ctx.Request().Context(), ctx.Param("id"), data.Notes)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, alert)
}

type DestroyMultipleRequest struct {
	IDs []string `query:"id"`
}
