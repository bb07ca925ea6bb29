package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/katembo/kanisa/core"
)

var (
	// errors
	ErrNotFound        = errors.New("service not found")
	ErrInvalidTemplate = errors.New("service is not a recurring template")
	ErrSessionExists   = errors.New("a session already exists for this template and date")
)

type (
	Repository interface {
		CreateTemplate(ctx context.Context, tpl Template) (Template, error)
		GetTemplate(ctx context.Context, id string) (Template, error)
		QueryAllTemplates(ctx context.Context) ([]Template, error)
		UpdateTemplate(ctx context.Context, tpl Template) (Template, error)
		// DeleteTemplate cascades to all generated instances.
		DeleteTemplate(ctx context.Context, id string) error

		// CreateSession fails with ErrSessionExists when an instance already
		// exists for the same (template, date); uniqueness is a storage
		// constraint, not an application-level check.
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		GetSessionByTemplateAndDate(ctx context.Context, templateID string, date time.Time) (Session, error)
		QuerySessions(ctx context.Context, filter SessionFilter) ([]Session, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
		// UpdateSessionsByTemplate applies non-empty changes to every instance
		// of the template; returns the number of instances updated.
		UpdateSessionsByTemplate(ctx context.Context, templateID string, changes FieldChanges) (int, error)
		DeleteSession(ctx context.Context, id string) error
		// CountSessionsSince counts sessions dated on or after `since`.
		CountSessionsSince(ctx context.Context, since time.Time) (int, error)
	}

	Service interface {
		CreateTemplate(ctx context.Context, nt NewTemplate) (Template, error)
		GetTemplate(ctx context.Context, id string) (Template, error)
		QueryTemplates(ctx context.Context) ([]Template, error)
		DeleteTemplate(ctx context.Context, id string) error

		CreateSession(ctx context.Context, ns NewSession) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		QuerySessions(ctx context.Context, filter SessionFilter) ([]Session, error)
		DeleteSession(ctx context.Context, id string) error

		// Expand materializes the template's sessions over [start, end],
		// one per matching calendar day, reusing any session that already
		// exists for a (template, date) pair. Expanding a concrete session
		// id returns that session alone.
		Expand(ctx context.Context, id string, start, end time.Time) ([]Session, error)
		// CreateInstance is the idempotent single-date primitive behind Expand.
		CreateInstance(ctx context.Context, templateID string, date time.Time, overrides InstanceOverrides) (Session, bool, error)
		// Propagate applies the changes to the template and to every
		// materialized instance; future instances pick them up on generation.
		Propagate(ctx context.Context, templateID string, changes FieldChanges) (int, error)
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (svc *service) CreateTemplate(ctx context.Context, nt NewTemplate) (Template, error) {
	now := time.Now().UTC()
	return svc.repo.CreateTemplate(ctx, Template{
		Name:        nt.Name,
		Recurrence:  nt.Recurrence,
		AnchorDate:  DateOf(nt.AnchorDate),
		StartTime:   nt.StartTime,
		EndTime:     nt.EndTime,
		Location:    nt.Location,
		Description: nt.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) GetTemplate(ctx context.Context, id string) (Template, error) {
	return svc.repo.GetTemplate(ctx, id)
}

func (svc *service) QueryTemplates(ctx context.Context) ([]Template, error) {
	return svc.repo.QueryAllTemplates(ctx)
}

func (svc *service) DeleteTemplate(ctx context.Context, id string) error {
	return svc.repo.DeleteTemplate(ctx, id)
}

func (svc *service) CreateSession(ctx context.Context, ns NewSession) (Session, error) {
	now := time.Now().UTC()
	return svc.repo.CreateSession(ctx, Session{
		Name:        ns.Name,
		Date:        DateOf(ns.Date),
		StartTime:   ns.StartTime,
		EndTime:     ns.EndTime,
		Location:    ns.Location,
		Description: ns.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *service) QuerySessions(ctx context.Context, filter SessionFilter) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, filter)
}

func (svc *service) DeleteSession(ctx context.Context, id string) error {
	return svc.repo.DeleteSession(ctx, id)
}

func (svc *service) Expand(ctx context.Context, id string, start, end time.Time) ([]Session, error) {
	tpl, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		if err != ErrNotFound {
			return nil, err
		}
		// a concrete session has no expansion; it stands alone
		s, sErr := svc.repo.GetSession(ctx, id)
		if sErr != nil {
			return nil, sErr
		}
		return []Session{s}, nil
	}

	if tpl.Recurrence != RecurrenceWeekly && tpl.Recurrence != RecurrenceMonthly {
		return nil, ErrInvalidTemplate
	}

	start, end = DateOf(start), DateOf(end)
	sessions := make([]Session, 0)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		var matches bool
		switch tpl.Recurrence {
		case RecurrenceWeekly:
			matches = day.Weekday() == tpl.AnchorDate.Weekday()
		case RecurrenceMonthly:
			// months without the anchor day produce no session
			matches = day.Day() == tpl.AnchorDate.Day()
		}
		if !matches {
			continue
		}

		s, _, err := svc.instance(ctx, tpl, day, InstanceOverrides{})
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (svc *service) CreateInstance(ctx context.Context, templateID string, date time.Time, overrides InstanceOverrides) (Session, bool, error) {
	tpl, err := svc.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return Session{}, false, err
	}
	return svc.instance(ctx, tpl, DateOf(date), overrides)
}

// instance gets or creates the template's session for the given date.
// The existing session is returned unchanged; overrides only apply on create.
func (svc *service) instance(ctx context.Context, tpl Template, date time.Time, ov InstanceOverrides) (Session, bool, error) {
	existing, err := svc.repo.GetSessionByTemplateAndDate(ctx, tpl.ID, date)
	if err == nil {
		return existing, false, nil
	}
	if err != ErrNotFound {
		return Session{}, false, err
	}

	now := time.Now().UTC()
	s := Session{
		Name:        tpl.Name,
		Date:        date,
		StartTime:   defaultStr(ov.StartTime, tpl.StartTime),
		EndTime:     defaultStr(ov.EndTime, tpl.EndTime),
		Location:    defaultStr(ov.Location, tpl.Location),
		Description: tpl.Description,
		TemplateID:  tpl.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := svc.repo.CreateSession(ctx, s)
	if err == ErrSessionExists {
		// lost a race; the winner's session is the one
		existing, gErr := svc.repo.GetSessionByTemplateAndDate(ctx, tpl.ID, date)
		if gErr != nil {
			return Session{}, false, gErr
		}
		return existing, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	return created, true, nil
}

func (svc *service) Propagate(ctx context.Context, templateID string, changes FieldChanges) (int, error) {
	tpl, err := svc.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return 0, err
	}
	if changes.IsEmpty() {
		return 0, nil
	}

	if changes.Name != "" {
		tpl.Name = changes.Name
	}
	if changes.StartTime != "" {
		tpl.StartTime = changes.StartTime
	}
	if changes.EndTime != "" {
		tpl.EndTime = changes.EndTime
	}
	if changes.Location != "" {
		tpl.Location = changes.Location
	}
	if changes.Description != "" {
		tpl.Description = changes.Description
	}
	tpl.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateTemplate(ctx, tpl); err != nil {
		return 0, err
	}

	return svc.repo.UpdateSessionsByTemplate(ctx, templateID, changes)
}

func defaultStr(val, dflt string) string {
	if val != "" {
		return val
	}
	return dflt
}
