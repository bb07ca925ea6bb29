package attendance

import (
	"time"

	"github.com/katembo/kanisa/core"
)

// Outcome statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

// Attendance is one member's recorded outcome for one session.
// At most one record exists per (member, session) pair.
type Attendance struct {
	ID           string    `json:"id"`
	MemberID     string    `json:"member_id"`
	SessionID    string    `json:"session_id"`
	Status       string    `json:"status"`
	CheckInTime  time.Time `json:"check_in_time,omitempty"` // zero for manual entries
	IsAutoMarked bool      `json:"is_auto_marked"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// CheckInRequest is a QR-code check-in: the scanned member code plus the
// session being attended.
type CheckInRequest struct {
	MemberCode string `json:"member_code" validate:"required"`
	SessionID  string `json:"session_id" validate:"required"`
}

func (ci *CheckInRequest) Validate() error {
	ci.MemberCode = core.CleanString(ci.MemberCode)
	return core.Validate.Struct(ci)
}

// RecordOutcome is a manually entered attendance outcome.
type RecordOutcome struct {
	MemberID  string `json:"member_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent late"`
	Notes     string `json:"notes"`
}

func (ro *RecordOutcome) Validate() error { return core.Validate.Struct(ro) }

// SessionTotals are per-session attendance counts.
type SessionTotals struct {
	SessionID string `json:"session_id"`
	Present   int    `json:"total_present"`
	Absent    int    `json:"total_absent"`
	Late      int    `json:"total_late"`
}

// MemberStats summarizes one member's attendance over the trailing window.
type MemberStats struct {
	MemberID             string    `json:"member_id"`
	TotalSessions        int       `json:"total_sessions_last_90_days"`
	Attended             int       `json:"attended"`
	Absent               int       `json:"absent"`
	AttendancePercentage float64   `json:"attendance_percentage"`
	ConsecutiveAbsences  int       `json:"consecutive_absences"`
	AttendanceStatus     string    `json:"attendance_status"`
	EngagementScore      int       `json:"engagement_score"`
	LastAttendanceDate   time.Time `json:"last_attendance_date,omitempty"`
	LastContactDate      time.Time `json:"last_contact_date,omitempty"`
}

// Diagnostics are operational counts for troubleshooting.
type Diagnostics struct {
	TotalRecords     int            `json:"total_records"`
	AutoMarked       int            `json:"auto_marked"`
	UnresolvedAlerts map[string]int `json:"unresolved_alerts"`
}
