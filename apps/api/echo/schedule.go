package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/katembo/kanisa/core"
	"github.com/katembo/kanisa/core/schedule"
)

type scheduleApi struct {
	svc schedule.Service
}

func registerScheduleAPI(g *echo.Group, svc schedule.Service) {
	api := scheduleApi{svc: svc}

	tg := g.Group("/templates")
	tg.POST("", api.createTemplate)
	tg.GET("", api.queryTemplates)
	tg.GET("/:id", api.retrieveTemplate)
	tg.DELETE("/:id", api.destroyTemplate)
	tg.POST("/:id/expand", api.expand)
	tg.POST("/:id/instances", api.createInstance)
	tg.PUT("/:id/propagate", api.propagate)

	sg := g.Group("/sessions")
	sg.POST("", api.createSession)
	sg.GET("", api.querySessions)
	sg.GET("/:id", api.retrieveSession)
	sg.DELETE("/:id", api.destroySession)
}

// Handlers

func (api *scheduleApi) createTemplate(ctx echo.Context) error {
	var data schedule.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	tpl, err := api.svc.CreateTemplate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, tpl)
}

func (api *scheduleApi) queryTemplates(ctx echo.Context) error {
	templates, err := api.svc.QueryTemplates(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	if templates == nil {
		templates = []schedule.Template{}
	}
	return ctx.JSON(http.StatusOK, templates)
}

func (api *scheduleApi) retrieveTemplate(ctx echo.Context) error {
	tpl, err := api.svc.GetTemplate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tpl)
}

func (api *scheduleApi) destroyTemplate(ctx echo.Context) error {
	if err := api.svc.DeleteTemplate(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *scheduleApi) expand(ctx echo.Context) error {
	var data ExpandRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExpandRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sessions, err := api.svc.Expand(ctx.Request().Context(), ctx.Param("id"), data.Start, data.End)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *scheduleApi) createInstance(ctx echo.Context) error {
	var data InstanceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InstanceRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	s, created, err := api.svc.CreateInstance(ctx.Request().Context(), ctx.Param("id"), data.Date, data.Overrides)
	if err != nil {
		return err
	}
	if created {
		return ctx.JSON(http.StatusCreated, s)
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *scheduleApi) propagate(ctx echo.Context) error {
	var data schedule.FieldChanges
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FieldChanges")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	count, err := api.svc.Propagate(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, PropagateResponse{InstancesUpdated: count})
}

func (api *scheduleApi) createSession(ctx echo.Context) error {
	var data schedule.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	s, err := api.svc.CreateSession(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *scheduleApi) querySessions(ctx echo.Context) error {
	filter := new(schedule.SessionFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []schedule.Session{})
	}

	sessions, err := api.svc.QuerySessions(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []schedule.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *scheduleApi) retrieveSession(ctx echo.Context) error {
	s, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *scheduleApi) destroySession(ctx echo.Context) error {
	if err := api.svc.DeleteSession(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	ExpandRequest struct {
		Start time.Time `json:"start" validate:"required"`
		End   time.Time `json:"end" validate:"required,gtefield=Start"`
	}

	InstanceRequest struct {
		Date      time.Time                  `json:"date" validate:"required"`
		Overrides schedule.InstanceOverrides `json:"overrides"`
	}

	PropagateResponse struct {
		InstancesUpdated int `json:"instances_updated"`
	}
)

func (er *ExpandRequest) Validate() error { return core.Validate.Struct(er) }

func (ir *InstanceRequest) Validate() error {
	if err := core.Validate.Struct(ir); err != nil {
		return err
	}
	return ir.Overrides.Validate()
}
