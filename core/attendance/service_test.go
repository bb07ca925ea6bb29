package attendance_test

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

type env struct {
	svc     attendance.Service
	members member.Repository
	alerts  member.AlertRepository
	schRepo schedule.Repository
	attRepo attendance.Repository
}

func setup(t *testing.T) env {
	db, err := dummydb.Open()
	require.NoError(t, err)

	members := dummydb.NewMemberRepository(db)
	alerts := dummydb.NewAlertRepository(db)
	attRepo := dummydb.NewAttendanceRepository(db)
	schRepo := dummydb.NewScheduleRepository(db)
	tracker := member.NewTracker(members, alerts, attRepo, nopLogger{})
	return env{
		svc:     attendance.NewService(attRepo, members, schRepo, alerts, tracker, nopLogger{}),
		members: members,
		alerts:  alerts,
		schRepo: schRepo,
		attRepo: attRepo,
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

func createSession(t *testing.T, repo schedule.Repository, name, endTime string) schedule.Session {
	now := time.Now().UTC()
	s, err := repo.CreateSession(context.Background(), schedule.Session{
		Name:      name,
		Date:      schedule.DateOf(now),
		StartTime: "09:00",
		EndTime:   endTime,
		CreatedAt: now,
	})
	require.NoError(t, err)
	return s
}

func createTemplate(t *testing.T, repo schedule.Repository) schedule.Template {
	now := time.Now().UTC()
	tpl, err := repo.CreateTemplate(context.Background(), schedule.Template{
		Name:       "Sunday Service",
		Recurrence: schedule.RecurrenceWeekly,
		AnchorDate: schedule.DateOf(now),
		StartTime:  "09:00",
		CreatedAt:  now,
	})
	require.NoError(t, err)
	return tpl
}

func TestService_CheckIn(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	mbr := createMember(t, e.members, "QR1234", "Jean Mwamba", false)
	sess := createSession(t, e.schRepo, "Sunday Service", "11:00")

	res, err := e.svc.CheckIn(ctx, mbr.Code, sess.ID)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, attendance.StatusPresent, res.Attendance.Status)
	assert.False(t, res.Attendance.CheckInTime.IsZero())
	assert.False(t, res.Member.LastAttendanceDate.IsZero())

	// surrounding whitespace from the scanner is tolerated
	res, err = e.svc.CheckIn(ctx, "  QR1234 ", sess.ID)
	require.NoError(t, err)
	assert.False(t, res.Created)

	_, err = e.svc.CheckIn(ctx, "NOPE", sess.ID)
	assert.Equal(t, member.ErrNotFound, err)

	_, err = e.svc.CheckIn(ctx, mbr.Code, "nope")
	assert.Equal(t, schedule.ErrNotFound, err)
}

func TestService_CheckIn_visitor(t *testing.T) {
	e := setup(t)
	visitor := createMember(t, e.members, "VIS001", "Visiting Friend", true)
	sess := createSession(t, e.schRepo, "Sunday Service", "11:00")

	_, err := e.svc.CheckIn(context.Background(), visitor.Code, sess.ID)
	assert.Equal(t, member.ErrVisitorNotTracked, err)
}

func TestService_CheckIn_template(t *testing.T) {
	e := setup(t)
	mbr := createMember(t, e.members, "QR9999", "Grace Ilunga", false)
	tpl := createTemplate(t, e.schRepo)

	_, err := e.svc.CheckIn(context.Background(), mbr.Code, tpl.ID)
	assert.Equal(t, attendance.ErrSessionIsTemplate, err)
}

func TestService_Record(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	mbr := createMember(t, e.members, "REC001", "Paul Kasongo", false)
	sess := createSession(t, e.schRepo, "Bible Study", "20:00")

	att, created, err := e.svc.Record(ctx, attendance.RecordOutcome{
		MemberID:  mbr.ID,
		SessionID: sess.ID,
		Status:    attendance.StatusAbsent,
		Notes:     "traveling",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, attendance.StatusAbsent, att.Status)
	assert.Equal(t, "traveling", att.Notes)

	// the absence flows through engagement tracking
	mbr, err = e.members.GetMemberByID(ctx, mbr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, mbr.ConsecutiveAbsences)
	assert.Equal(t, 90, mbr.EngagementScore)

	// duplicate record is an idempotent no-op
	again, created, err := e.svc.Record(ctx, attendance.RecordOutcome{
		MemberID:  mbr.ID,
		SessionID: sess.ID,
		Status:    attendance.StatusPresent,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, att.ID, again.ID)
	assert.Equal(t, attendance.StatusAbsent, again.Status)
}

func TestService_Record_lateIsNeutral(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	mbr := createMember(t, e.members, "REC002", "Marie Tshala", false)
	sess := createSession(t, e.schRepo, "Bible Study", "20:00")

	_, created, err := e.svc.Record(ctx, attendance.RecordOutcome{
		MemberID:  mbr.ID,
		SessionID: sess.ID,
		Status:    attendance.StatusLate,
	})
	require.NoError(t, err)
	assert.True(t, created)

	mbr, err = e.members.GetMemberByID(ctx, mbr.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, mbr.ConsecutiveAbsences)
	assert.Equal(t, 100, mbr.EngagementScore)
}

func TestService_CloseSession(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	attended := createMember(t, e.members, "CLS001", "Jean Mwamba", false)
	missing1 := createMember(t, e.members, "CLS002", "Grace Ilunga", false)
	missing2 := createMember(t, e.members, "CLS003", "Paul Kasongo", false)
	createMember(t, e.members, "CLS004", "Visiting Friend", true)

	sess := createSession(t, e.schRepo, "Sunday Service", "11:00")
	_, err := e.svc.CheckIn(ctx, attended.Code, sess.ID)
	require.NoError(t, err)

	count, err := e.svc.CloseSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, id := range []string{missing1.ID, missing2.ID} {
		att, err := e.attRepo.GetByMemberAndSession(ctx, id, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusAbsent, att.Status)
		assert.True(t, att.IsAutoMarked)

		mbr, err := e.members.GetMemberByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, mbr.ConsecutiveAbsences)
	}

	// the member who checked in is untouched
	att, err := e.attRepo.GetByMemberAndSession(ctx, attended.ID, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, att.Status)
	assert.False(t, att.IsAutoMarked)

	// a second sweep has nothing left to mark
	count, err = e.svc.CloseSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestService_CloseSession_openEnded(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	mbr := createMember(t, e.members, "CLS010", "Jean Mwamba", false)
	sess := createSession(t, e.schRepo, "Prayer Vigil", "")

	count, err := e.svc.CloseSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = e.attRepo.GetByMemberAndSession(ctx, mbr.ID, sess.ID)
	assert.Equal(t, attendance.ErrNotFound, err)
}

func TestService_SessionTotals(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	sess := createSession(t, e.schRepo, "Sunday Service", "11:00")

	outcomes := []string{
		attendance.StatusPresent,
		attendance.StatusPresent,
		attendance.StatusAbsent,
		attendance.StatusLate,
	}
	for i, status := range outcomes {
		mbr := createMember(t, e.members, "TOT"+string(rune('0'+i)), "Member", false)
		_, _, err := e.svc.Record(ctx, attendance.RecordOutcome{
			MemberID:  mbr.ID,
			SessionID: sess.ID,
			Status:    status,
		})
		require.NoError(t, err)
	}

	totals, err := e.svc.SessionTotals(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, totals.SessionID)
	assert.Equal(t, 2, totals.Present)
	assert.Equal(t, 1, totals.Absent)
	assert.Equal(t, 1, totals.Late)
}

func TestService_MemberStats(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	mbr := createMember(t, e.members, "STA001", "Jean Mwamba", false)
	s1 := createSession(t, e.schRepo, "Sunday Service", "11:00")
	s2 := createSession(t, e.schRepo, "Bible Study", "20:00")

	_, err := e.svc.CheckIn(ctx, mbr.Code, s1.ID)
	require.NoError(t, err)
	_, _, err = e.svc.Record(ctx, attendance.RecordOutcome{
		MemberID:  mbr.ID,
		SessionID: s2.ID,
		Status:    attendance.StatusAbsent,
	})
	require.NoError(t, err)

	stats, err := e.svc.MemberStats(ctx, mbr.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.Attended)
	assert.Equal(t, 1, stats.Absent)
	assert.Equal(t, 50.0, stats.AttendancePercentage)
	assert.Equal(t, 1, stats.ConsecutiveAbsences)
	assert.Equal(t, member.StatusActive, stats.AttendanceStatus)

	_, err = e.svc.MemberStats(ctx, "nope")
	assert.Equal(t, member.ErrNotFound, err)
}

func TestService_Diagnostics(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	mbr := createMember(t, e.members, "DIA001", "Jean Mwamba", false)
	createMember(t, e.members, "DIA002", "Grace Ilunga", false)
	sess := createSession(t, e.schRepo, "Sunday Service", "11:00")

	_, err := e.svc.CheckIn(ctx, mbr.Code, sess.ID)
	require.NoError(t, err)
	_, err = e.svc.CloseSession(ctx, sess.ID)
	require.NoError(t, err)

	diag, err := e.svc.Diagnostics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, diag.TotalRecords)
	assert.Equal(t, 1, diag.AutoMarked)
	assert.Equal(t, map[string]int{
		member.AlertEarlyWarning: 0,
		member.AlertAtRisk:       0,
		member.AlertCritical:     0,
	}, diag.UnresolvedAlerts)
}
