package schedule

import (
	"time"

	"github.com/katembo/kanisa/core"
)

// Recurrence patterns
const (
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

// Template is a recurring service definition. It has no concrete date of its
// own; its anchor date fixes the weekday (weekly) or day-of-month (monthly)
// that generated sessions fall on.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Recurrence  string    `json:"recurrence"`
	AnchorDate  time.Time `json:"anchor_date"`
	StartTime   string    `json:"start_time"`         // "15:04"
	EndTime     string    `json:"end_time,omitempty"` // empty = open-ended
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Session is a concrete, dated service occurrence that attendance is
// recorded against. TemplateID is empty for one-off services.
type Session struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time,omitempty"` // empty = not closeable
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	TemplateID  string    `json:"template_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// IsInstance reports whether the session was generated from a template.
func (s *Session) IsInstance() bool { return s.TemplateID != "" }

// NewTemplate contains information needed to define a recurring service.
type NewTemplate struct {
	Name        string    `json:"name" validate:"required"`
	Recurrence  string    `json:"recurrence" validate:"required,oneof=weekly monthly"`
	AnchorDate  time.Time `json:"anchor_date" validate:"required"`
	StartTime   string    `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string    `json:"end_time" validate:"omitempty,datetime=15:04"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

func (nt *NewTemplate) Validate() error {
	nt.Name = core.CleanString(nt.Name)
	return core.Validate.Struct(nt)
}

// NewSession contains information needed to create a one-off service.
type NewSession struct {
	Name        string    `json:"name" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
	StartTime   string    `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string    `json:"end_time" validate:"omitempty,datetime=15:04"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

func (ns *NewSession) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	return core.Validate.Struct(ns)
}

// InstanceOverrides optionally override template defaults on a single
// generated instance.
type InstanceOverrides struct {
	StartTime string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"omitempty,datetime=15:04"`
	Location  string `json:"location"`
}

func (ov *InstanceOverrides) Validate() error { return core.Validate.Struct(ov) }

// FieldChanges are the updatable fields Propagate pushes onto a template
// and all of its materialized instances. Empty fields are left untouched.
type FieldChanges struct {
	Name        string `json:"name"`
	StartTime   string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"omitempty,datetime=15:04"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (fc *FieldChanges) Validate() error {
	fc.Name = core.CleanString(fc.Name)
	return core.Validate.Struct(fc)
}

func (fc *FieldChanges) IsEmpty() bool {
	return fc.Name == "" && fc.StartTime == "" && fc.EndTime == "" && fc.Location == "" && fc.Description == ""
}

type SessionFilter struct {
	TemplateID string    `query:"template_id"`
	DateFrom   time.Time `query:"date_from"`
	DateTo     time.Time `query:"date_to"`
}

func (sf *SessionFilter) IsEmpty() bool {
	return sf.TemplateID == "" && sf.DateFrom.IsZero() && sf.DateTo.IsZero()
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
