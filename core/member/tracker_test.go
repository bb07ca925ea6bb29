package member_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katembo/kanisa/core/attendance"
	"github.com/katembo/kanisa/core/member"
	"github.com/katembo/kanisa/core/schedule"
	dummydb "github.com/katembo/kanisa/storage/database/dummy"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

type trackerEnv struct {
	members member.Repository
	alerts  member.AlertRepository
	attRepo attendance.Repository
	schRepo schedule.Repository
	tracker *member.Tracker
}

func setupTracker(t *testing.T) trackerEnv {
	db, err := dummydb.Open()
	require.NoError(t, err)

	members := dummydb.NewMemberRepository(db)
	alerts := dummydb.NewAlertRepository(db)
	attRepo := dummydb.NewAttendanceRepository(db)
	schRepo := dummydb.NewScheduleRepository(db)
	return trackerEnv{
		members: members,
		alerts:  alerts,
		attRepo: attRepo,
		schRepo: schRepo,
		tracker: member.NewTracker(members, alerts, attRepo, nopLogger{}),
	}
}

func createMember(t *testing.T, repo member.Repository, code, name string, isVisitor bool) member.Member {
	now := time.Now().UTC()
	mbr, err := repo.CreateMember(context.Background(), member.Member{
		Code:             code,
		FullName:         name,
		IsVisitor:        isVisitor,
		AttendanceStatus: member.StatusActive,
		EngagementScore:  100,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	require.NoError(t, err)
	return mbr
}

func unresolvedLevels(t *testing.T, repo member.AlertRepository, memberID string) []string {
	alerts, err := repo.QueryUnresolvedAlerts(context.Background(), memberID)
	require.NoError(t, err)
	levels := make([]string, 0, len(alerts))
	for _, a := range alerts {
		levels = append(levels, a.Level)
	}
	return levels
}

func TestTracker_Apply_absenceThresholds(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()
	mbr := createMember(t, env.members, "AAA111", "Jean Mwamba", false)

	// 1st absence: counted, no alert yet
	mbr, err := env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
	require.NoError(t, err)
	assert.Equal(t, 1, mbr.ConsecutiveAbsences)
	assert.Equal(t, member.StatusActive, mbr.AttendanceStatus)
	assert.Equal(t, 90, mbr.EngagementScore)
	assert.Empty(t, unresolvedLevels(t, env.alerts, mbr.ID))

	// 2nd absence: early warning
	mbr, err = env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
	require.NoError(t, err)
	assert.Equal(t, 2, mbr.ConsecutiveAbsences)
	assert.Equal(t, member.StatusAtRisk, mbr.AttendanceStatus)
	assert.Equal(t, []string{member.AlertEarlyWarning}, unresolvedLevels(t, env.alerts, mbr.ID))

	// 3rd absence: between thresholds, no new alert
	mbr, err = env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
	require.NoError(t, err)
	assert.Equal(t, []string{member.AlertEarlyWarning}, unresolvedLevels(t, env.alerts, mbr.ID))

	// 4th absence: early warning resolved, at risk raised
	mbr, err = env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
	require.NoError(t, err)
	assert.Equal(t, member.StatusAtRisk, mbr.AttendanceStatus)
	assert.Equal(t, []string{member.AlertAtRisk}, unresolvedLevels(t, env.alerts, mbr.ID))

	// 8th absence: everything else resolved, critical raised, member inactive
	for i := 0; i < 4; i++ {
		mbr, err = env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
		require.NoError(t, err)
	}
	assert.Equal(t, 8, mbr.ConsecutiveAbsences)
	assert.Equal(t, member.StatusInactive, mbr.AttendanceStatus)
	assert.Equal(t, []string{member.AlertCritical}, unresolvedLevels(t, env.alerts, mbr.ID))
	assert.Equal(t, 20, mbr.EngagementScore)
}

func TestTracker_Apply_presentRecovery(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()
	mbr := createMember(t, env.members, "BBB222", "Grace Ilunga", false)

	for i := 0; i < 4; i++ {
		var err error
		mbr, err = env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
		require.NoError(t, err)
	}
	require.Equal(t, member.StatusAtRisk, mbr.AttendanceStatus)

	mbr, err := env.tracker.Apply(ctx, mbr, member.OutcomePresent)
	require.NoError(t, err)
	assert.Equal(t, 0, mbr.ConsecutiveAbsences)
	assert.Equal(t, member.StatusActive, mbr.AttendanceStatus)
	assert.Equal(t, 65, mbr.EngagementScore) // 100 - 4*10 + 5
	assert.False(t, mbr.LastAttendanceDate.IsZero())
}

func TestTracker_Apply_scoreClamps(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	mbr := createMember(t, env.members, "CCC333", "Paul Kasongo", false)
	mbr, err := env.tracker.Apply(ctx, mbr, member.OutcomePresent)
	require.NoError(t, err)
	assert.Equal(t, 100, mbr.EngagementScore) // never above 100

	for i := 0; i < 12; i++ {
		mbr, err = env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, mbr.EngagementScore) // never below 0
}

func TestTracker_Apply_visitor(t *testing.T) {
	env := setupTracker(t)
	mbr := createMember(t, env.members, "DDD444", "Visiting Friend", true)

	_, err := env.tracker.Apply(context.Background(), mbr, member.OutcomePresent)
	assert.Equal(t, member.ErrVisitorNotTracked, err)
}

func markAbsences(t *testing.T, env trackerEnv, memberID string, count int) {
	ctx := context.Background()
	for i := 0; i < count; i++ {
		date := time.Now().UTC().AddDate(0, 0, -(i + 1))
		s, err := env.schRepo.CreateSession(ctx, schedule.Session{
			Name:      "Sunday Service",
			Date:      schedule.DateOf(date),
			StartTime: "09:00",
			CreatedAt: date,
		})
		require.NoError(t, err)
		_, err = env.attRepo.CreateAttendance(ctx, attendance.Attendance{
			MemberID:  memberID,
			SessionID: s.ID,
			Status:    attendance.StatusAbsent,
			CreatedAt: date,
		})
		require.NoError(t, err)
	}
}

func TestTracker_Recompute(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	clean := createMember(t, env.members, "RC0", "Zero Absences", false)
	warned := createMember(t, env.members, "RC2", "Two Absences", false)
	risky := createMember(t, env.members, "RC5", "Five Absences", false)
	gone := createMember(t, env.members, "RC9", "Nine Absences", false)
	visitor := createMember(t, env.members, "RCV", "Visitor", true)
	_ = visitor

	markAbsences(t, env, warned.ID, 2)
	markAbsences(t, env, risky.ID, 5)
	markAbsences(t, env, gone.ID, 9)

	// stale state that recompute must overwrite
	clean.ConsecutiveAbsences = 3
	clean.AttendanceStatus = member.StatusAtRisk
	_, err := env.members.UpdateMember(ctx, clean)
	require.NoError(t, err)

	summary, err := env.tracker.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.MembersProcessed)
	assert.Equal(t, 1, summary.EarlyWarningCreated)
	assert.Equal(t, 1, summary.AtRiskCreated)
	assert.Equal(t, 1, summary.CriticalCreated)
	assert.Equal(t, 3, summary.AlertsCreated)

	clean, err = env.members.GetMemberByID(ctx, clean.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, clean.ConsecutiveAbsences)
	assert.Equal(t, member.StatusActive, clean.AttendanceStatus)

	warned, err = env.members.GetMemberByID(ctx, warned.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, warned.ConsecutiveAbsences)
	assert.Equal(t, member.StatusAtRisk, warned.AttendanceStatus)
	assert.Equal(t, []string{member.AlertEarlyWarning}, unresolvedLevels(t, env.alerts, warned.ID))

	risky, err = env.members.GetMemberByID(ctx, risky.ID)
	require.NoError(t, err)
	assert.Equal(t, member.StatusAtRisk, risky.AttendanceStatus)
	assert.Equal(t, []string{member.AlertAtRisk}, unresolvedLevels(t, env.alerts, risky.ID))

	gone, err = env.members.GetMemberByID(ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, member.StatusInactive, gone.AttendanceStatus)
	assert.Equal(t, []string{member.AlertCritical}, unresolvedLevels(t, env.alerts, gone.ID))

	// rerunning converges: no new alerts
	summary, err = env.tracker.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.AlertsCreated)
}

func TestTracker_Resolve(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()
	mbr := createMember(t, env.members, "EEE555", "Marie Tshala", false)

	mbr, err := env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
	require.NoError(t, err)
	mbr, err = env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
	require.NoError(t, err)

	alerts, err := env.alerts.QueryUnresolvedAlerts(ctx, mbr.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	resolved, err := env.tracker.Resolve(ctx, alerts[0].ID, "spoke with her after service")
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved)
	assert.False(t, resolved.ResolvedAt.IsZero())
	assert.Equal(t, "spoke with her after service", resolved.ResolutionNotes)

	// engagement state untouched by manual resolution
	mbr, err = env.members.GetMemberByID(ctx, mbr.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, mbr.ConsecutiveAbsences)

	_, err = env.tracker.Resolve(ctx, "nope", "")
	assert.Equal(t, member.ErrAlertNotFound, err)
}
