package member

import (
	"time"

	"github.com/katembo/kanisa/core"
)

// Attendance statuses
const (
	StatusActive   = "active"    // good attendance
	StatusAtRisk   = "at_risk"   // pattern change
	StatusInactive = "inactive"  // extended absence
	StatusVacation = "vacation"  // known leave, not tracked down
)

// Alert levels
const (
	AlertEarlyWarning = "early_warning" // 2 consecutive absences
	AlertAtRisk       = "at_risk"       // 4+ consecutive absences
	AlertCritical     = "critical"      // 8+ consecutive absences
)

// Departments
const (
	DeptWorship        = "worship"
	DeptOutreach       = "outreach"
	DeptYouth          = "youth"
	DeptAdministration = "administration"
)

// Contact methods
const (
	ContactEmail       = "email"
	ContactSMS         = "sms"
	ContactPhone       = "phone"
	ContactVisit       = "visit"
	ContactSmallGroup  = "small_group"
	ContactSocialMedia = "social_media"
)

type Member struct {
	ID         string `json:"id"`
	Code       string `json:"code"` // external member ID, carried by the QR code
	FullName   string `json:"full_name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department,omitempty"`
	Group      string `json:"group,omitempty"`
	IsVisitor  bool   `json:"is_visitor"`

	// engagement state; mutated only by the Tracker
	ConsecutiveAbsences int       `json:"consecutive_absences"`
	LastAttendanceDate  time.Time `json:"last_attendance_date,omitempty"`
	AttendanceStatus    string    `json:"attendance_status"`
	EngagementScore     int       `json:"engagement_score"` // 0-100
	LastContactDate     time.Time `json:"last_contact_date,omitempty"`
	PastoralNotes       string    `json:"pastoral_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// HasQRCode reports whether a check-in code has been associated with the member.
func (m *Member) HasQRCode() bool { return m.Code != "" }

type Alert struct {
	ID              string    `json:"id"`
	MemberID        string    `json:"member_id"`
	Level           string    `json:"level"`
	Reason          string    `json:"reason"`
	IsResolved      bool      `json:"is_resolved"`
	CreatedAt       time.Time `json:"created_at"`
	ResolvedAt      time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes string    `json:"resolution_notes,omitempty"`
}

type ContactLog struct {
	ID               string    `json:"id"`
	MemberID         string    `json:"member_id"`
	Method           string    `json:"method"`
	MessageSent      string    `json:"message_sent"`
	ContactedBy      string    `json:"contacted_by,omitempty"`
	ResponseReceived string    `json:"response_received,omitempty"`
	FollowUpNeeded   bool      `json:"follow_up_needed"`
	FollowUpDate     time.Time `json:"follow_up_date,omitempty"`
	ContactDate      time.Time `json:"contact_date"`
}

// NewMember contains information needed to register a new Member.
type NewMember struct {
	Code       string `json:"code" validate:"omitempty,alphanum"`
	FullName   string `json:"full_name" validate:"required"`
	Phone      string `json:"phone" validate:"omitempty,min=6"`
	Email      string `json:"email" validate:"omitempty,email"`
	Department string `json:"department" validate:"omitempty,oneof=worship outreach youth administration"`
	Group      string `json:"group" validate:"omitempty,oneof=group_a group_b group_c group_d"`
	IsVisitor  bool   `json:"is_visitor"`
}

func (nm *NewMember) Validate(svc Service) error {
	nm.Code = core.CleanString(nm.Code)
	nm.FullName = core.CleanString(nm.FullName)
	nm.Email = core.CleanString(nm.Email, true /* lower */)

	if err := core.Validate.Struct(nm); err != nil {
		return err
	}
	if nm.Code != "" {
		return svc.CheckCodeUniqueness(nm.Code)
	}
	return nil
}

// UpdateMember defines what information may be provided to modify an existing Member.
type UpdateMember struct {
	FullName      string `json:"full_name"`
	Phone         string `json:"phone" validate:"omitempty,min=6"`
	Email         string `json:"email" validate:"omitempty,email"`
	Department    string `json:"department" validate:"omitempty,oneof=worship outreach youth administration"`
	Group         string `json:"group" validate:"omitempty,oneof=group_a group_b group_c group_d"`
	IsVisitor     *bool  `json:"is_visitor"`
	PastoralNotes string `json:"pastoral_notes"`
}

func (um *UpdateMember) Validate(orig Member) error {
	name := core.CleanString(um.FullName)
	if name != "" {
		um.FullName = name
	} else {
		um.FullName = orig.FullName
	}
	um.Email = core.CleanString(um.Email, true /* lower */)
	return core.Validate.Struct(um)
}

// NewContactLog contains information needed to record an outreach attempt.
type NewContactLog struct {
	Method         string    `json:"method" validate:"required,oneof=email sms phone visit small_group social_media"`
	MessageSent    string    `json:"message_sent" validate:"required"`
	ContactedBy    string    `json:"contacted_by"`
	FollowUpNeeded bool      `json:"follow_up_needed"`
	FollowUpDate   time.Time `json:"follow_up_date"`
}

func (nc *NewContactLog) Validate() error {
	nc.MessageSent = core.CleanString(nc.MessageSent)
	return core.Validate.Struct(nc)
}

// ResolveAlert carries a manual alert resolution.
type ResolveAlert struct {
	Notes string `json:"notes"`
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Department  string    `query:"department"`
	Group       string    `query:"group"`
	Status      string    `query:"status"`
	IsVisitor   *bool     `query:"is_visitor"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Department == "" && qf.Group == "" && qf.Status == "" &&
		qf.IsVisitor == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// AlertGroups holds members needing pastoral attention, grouped by alert level.
type AlertGroups struct {
	EarlyWarning []Member `json:"early_warning"`
	AtRisk       []Member `json:"at_risk"`
	Critical     []Member `json:"critical"`
}
