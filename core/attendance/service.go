package attendance

import (
	"context"
	"errors"
	"math"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/katembo/kanisa/core"
	"github.com/katembo/kanisa/core/member"
	"github.com/katembo/kanisa/core/schedule"
)

var (
	// errors
	ErrNotFound = errors.New("attendance record not found")
	// ErrAttendanceExists surfaces the storage-level (member, session)
	// uniqueness constraint; callers treat it as "already recorded".
	ErrAttendanceExists  = errors.New("an attendance record already exists for this member and session")
	ErrSessionIsTemplate = errors.New("operation not allowed on a recurring template")
)

var timeNow = time.Now // mockable

type (
	Repository interface {
		// CreateAttendance fails with ErrAttendanceExists when a record
		// already exists for the same (member, session) pair.
		CreateAttendance(ctx context.Context, att Attendance) (Attendance, error)
		GetAttendance(ctx context.Context, id string) (Attendance, error)
		GetByMemberAndSession(ctx context.Context, memberID, sessionID string) (Attendance, error)
		QueryBySession(ctx context.Context, sessionID string) ([]Attendance, error)
		QueryByMember(ctx context.Context, memberID string) ([]Attendance, error)
		UpdateAttendance(ctx context.Context, att Attendance) (Attendance, error)

		SessionTotals(ctx context.Context, sessionID string) (SessionTotals, error)
		// CountMemberOutcomesSince counts present/absent records for sessions
		// dated on or after `since`.
		CountMemberOutcomesSince(ctx context.Context, memberID string, since time.Time) (present, absent int, err error)
		CountMemberAbsencesSince(ctx context.Context, memberID string, since time.Time) (int, error)
		CountAll(ctx context.Context) (int, error)
		CountAutoMarked(ctx context.Context) (int, error)
	}

	// CheckInResult reports a check-in outcome; Created is false when the
	// member had already checked in (an idempotent success, not an error).
	CheckInResult struct {
		Attendance Attendance    `json:"attendance"`
		Member     member.Member `json:"member"`
		Created    bool          `json:"created"`
	}

	Service interface {
		CheckIn(ctx context.Context, memberCode, sessionID string) (CheckInResult, error)
		Record(ctx context.Context, ro RecordOutcome) (Attendance, bool, error)
		// CloseSession marks every non-visitor member without a record as
		// absent; returns the number of absences created. Open-ended
		// sessions (no end time) are not closeable and return 0.
		CloseSession(ctx context.Context, sessionID string) (int, error)

		QueryBySession(ctx context.Context, sessionID string) ([]Attendance, error)
		QueryByMember(ctx context.Context, memberID string) ([]Attendance, error)
		SessionTotals(ctx context.Context, sessionID string) (SessionTotals, error)
		MemberStats(ctx context.Context, memberID string) (MemberStats, error)
		Diagnostics(ctx context.Context) (Diagnostics, error)
	}

	service struct {
		repo     Repository
		members  member.Repository
		sessions schedule.Repository
		alerts   member.AlertRepository
		tracker  *member.Tracker
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	members member.Repository,
	sessions schedule.Repository,
	alerts member.AlertRepository,
	tracker *member.Tracker,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		members:  members,
		sessions: sessions,
		alerts:   alerts,
		tracker:  tracker,
		logger:   logger,
	}
}

func (svc *service) CheckIn(ctx context.Context, memberCode, sessionID string) (CheckInResult, error) {
	mbr, err := svc.members.GetMemberByCode(ctx, core.CleanString(memberCode))
	if err != nil {
		return CheckInResult{}, err
	}
	sess, err := svc.resolveSession(ctx, sessionID)
	if err != nil {
		return CheckInResult{}, err
	}
	if mbr.IsVisitor {
		return CheckInResult{}, member.ErrVisitorNotTracked
	}

	if existing, err := svc.repo.GetByMemberAndSession(ctx, mbr.ID, sess.ID); err == nil {
		return CheckInResult{Attendance: existing, Member: mbr}, nil
	} else if err != ErrNotFound {
		return CheckInResult{}, err
	}

	att, created, err := svc.record(ctx, mbr, sess.ID, Attendance{
		MemberID:    mbr.ID,
		SessionID:   sess.ID,
		Status:      StatusPresent,
		CheckInTime: timeNow().UTC(),
	})
	if err != nil {
		return CheckInResult{}, err
	}

	result := CheckInResult{Attendance: att, Member: mbr, Created: created}
	if created {
		if result.Member, err = svc.tracker.Apply(ctx, mbr, member.OutcomePresent); err != nil {
			return CheckInResult{}, err
		}
	}
	return result, nil
}

func (svc *service) Record(ctx context.Context, ro RecordOutcome) (Attendance, bool, error) {
	mbr, err := svc.members.GetMemberByID(ctx, ro.MemberID)
	if err != nil {
		return Attendance{}, false, err
	}
	sess, err := svc.resolveSession(ctx, ro.SessionID)
	if err != nil {
		return Attendance{}, false, err
	}
	if mbr.IsVisitor {
		return Attendance{}, false, member.ErrVisitorNotTracked
	}

	if existing, err := svc.repo.GetByMemberAndSession(ctx, mbr.ID, sess.ID); err == nil {
		return existing, false, nil
	} else if err != ErrNotFound {
		return Attendance{}, false, err
	}

	att, created, err := svc.record(ctx, mbr, sess.ID, Attendance{
		MemberID:  mbr.ID,
		SessionID: sess.ID,
		Status:    ro.Status,
		Notes:     ro.Notes,
	})
	if err != nil {
		return Attendance{}, false, err
	}

	if created {
		// late outcomes are neutral for tracking purposes
		switch ro.Status {
		case StatusPresent:
			_, err = svc.tracker.Apply(ctx, mbr, member.OutcomePresent)
		case StatusAbsent:
			_, err = svc.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
		}
		if err != nil {
			return Attendance{}, false, err
		}
	}
	return att, created, nil
}

func (svc *service) CloseSession(ctx context.Context, sessionID string) (int, error) {
	sess, err := svc.resolveSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	// an open-ended session is never swept
	if sess.EndTime == "" {
		return 0, nil
	}

	members, err := svc.members.QueryNonVisitorMembers(ctx)
	if err != nil {
		return 0, err
	}

	// each member is an independent unit of work: a failure partway through
	// leaves already-processed members marked, and a retry picks up the rest
	var count int
	for _, mbr := range members {
		if _, err := svc.repo.GetByMemberAndSession(ctx, mbr.ID, sess.ID); err == nil {
			continue
		} else if err != ErrNotFound {
			return count, err
		}

		_, created, err := svc.record(ctx, mbr, sess.ID, Attendance{
			MemberID:     mbr.ID,
			SessionID:    sess.ID,
			Status:       StatusAbsent,
			IsAutoMarked: true,
		})
		if err != nil {
			return count, err
		}
		if !created {
			continue // concurrent check-in won the pair
		}
		if _, err = svc.tracker.Apply(ctx, mbr, member.OutcomeAbsent); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (svc *service) QueryBySession(ctx context.Context, sessionID string) ([]Attendance, error) {
	if _, err := svc.resolveSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return svc.repo.QueryBySession(ctx, sessionID)
}

func (svc *service) QueryByMember(ctx context.Context, memberID string) ([]Attendance, error) {
	if _, err := svc.members.GetMemberByID(ctx, memberID); err != nil {
		return nil, err
	}
	return svc.repo.QueryByMember(ctx, memberID)
}

func (svc *service) SessionTotals(ctx context.Context, sessionID string) (SessionTotals, error) {
	sess, err := svc.resolveSession(ctx, sessionID)
	if err != nil {
		return SessionTotals{}, err
	}
	return svc.repo.SessionTotals(ctx, sess.ID)
}

func (svc *service) MemberStats(ctx context.Context, memberID string) (MemberStats, error) {
	mbr, err := svc.members.GetMemberByID(ctx, memberID)
	if err != nil {
		return MemberStats{}, err
	}

	since := timeNow().UTC().Add(-member.ReconcileWindow)
	present, absent, err := svc.repo.CountMemberOutcomesSince(ctx, mbr.ID, since)
	if err != nil {
		return MemberStats{}, err
	}
	totalSessions, err := svc.sessions.CountSessionsSince(ctx, since)
	if err != nil {
		return MemberStats{}, err
	}

	var pct float64
	if total := present + absent; total > 0 {
		pct = math.Round(float64(present)/float64(total)*10000) / 100
	}
	return MemberStats{
		MemberID:             mbr.ID,
		TotalSessions:        totalSessions,
		Attended:             present,
		Absent:               absent,
		AttendancePercentage: pct,
		ConsecutiveAbsences:  mbr.ConsecutiveAbsences,
		AttendanceStatus:     mbr.AttendanceStatus,
		EngagementScore:      mbr.EngagementScore,
		LastAttendanceDate:   mbr.LastAttendanceDate,
		LastContactDate:      mbr.LastContactDate,
	}, nil
}

func (svc *service) Diagnostics(ctx context.Context) (Diagnostics, error) {
	total, err := svc.repo.CountAll(ctx)
	if err != nil {
		return Diagnostics{}, err
	}
	autoMarked, err := svc.repo.CountAutoMarked(ctx)
	if err != nil {
		return Diagnostics{}, err
	}
	unresolved, err := svc.alerts.CountUnresolvedAlertsByLevel(ctx)
	if err != nil {
		return Diagnostics{}, err
	}
	return Diagnostics{
		TotalRecords:     total,
		AutoMarked:       autoMarked,
		UnresolvedAlerts: unresolved,
	}, nil
}

// record creates the attendance row, treating a lost uniqueness race as
// "already recorded" rather than a failure.
func (svc *service) record(ctx context.Context, mbr member.Member, sessionID string, att Attendance) (Attendance, bool, error) {
	att.CreatedAt = timeNow().UTC()
	created, err := svc.repo.CreateAttendance(ctx, att)
	if err == ErrAttendanceExists {
		existing, gErr := svc.repo.GetByMemberAndSession(ctx, mbr.ID, sessionID)
		if gErr != nil {
			return Attendance{}, false, gErr
		}
		return existing, false, nil
	}
	if err != nil {
		return Attendance{}, false, pkgerrors.Wrap(err, "creating attendance record")
	}
	return created, true, nil
}

// resolveSession loads the concrete session, distinguishing "this id is a
// template" from "nothing with this id exists".
func (svc *service) resolveSession(ctx context.Context, sessionID string) (schedule.Session, error) {
	sess, err := svc.sessions.GetSession(ctx, sessionID)
	if err == nil {
		return sess, nil
	}
	if err != schedule.ErrNotFound {
		return schedule.Session{}, err
	}
	if _, tErr := svc.sessions.GetTemplate(ctx, sessionID); tErr == nil {
		return schedule.Session{}, ErrSessionIsTemplate
	}
	return schedule.Session{}, schedule.ErrNotFound
}
