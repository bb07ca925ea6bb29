package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katembo/kanisa/core/schedule"
	dummydb "github.com/katembo/kanisa/storage/database/dummy"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func setup(t *testing.T) (schedule.Service, schedule.Repository) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewScheduleRepository(db)
	return schedule.NewService(repo, nopLogger{}), repo
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sessionDates(sessions []schedule.Session) []time.Time {
	dates := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		dates = append(dates, s.Date)
	}
	return dates
}

func TestService_Expand_weekly(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, schedule.NewTemplate{
		Name:       "Sunday Service",
		Recurrence: schedule.RecurrenceWeekly,
		AnchorDate: date(2024, time.January, 15), // a Monday
		StartTime:  "09:00",
		EndTime:    "11:00",
		Location:   "Main Hall",
	})
	require.NoError(t, err)

	sessions, err := svc.Expand(ctx, tpl.ID, date(2024, time.January, 15), date(2024, time.February, 5))
	require.NoError(t, err)

	want := []time.Time{
		date(2024, time.January, 15),
		date(2024, time.January, 22),
		date(2024, time.January, 29),
		date(2024, time.February, 5),
	}
	assert.Equal(t, want, sessionDates(sessions))
	for _, s := range sessions {
		assert.Equal(t, tpl.ID, s.TemplateID)
		assert.Equal(t, "Sunday Service", s.Name)
		assert.Equal(t, "09:00", s.StartTime)
		assert.Equal(t, "11:00", s.EndTime)
		assert.Equal(t, "Main Hall", s.Location)
	}

	// expanding again reuses the same sessions
	again, err := svc.Expand(ctx, tpl.ID, date(2024, time.January, 15), date(2024, time.February, 5))
	require.NoError(t, err)
	require.Len(t, again, len(sessions))
	for i := range again {
		assert.Equal(t, sessions[i].ID, again[i].ID)
	}
}

func TestService_Expand_monthlyShortMonths(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, schedule.NewTemplate{
		Name:       "Month-End Vigil",
		Recurrence: schedule.RecurrenceMonthly,
		AnchorDate: date(2024, time.January, 31),
		StartTime:  "20:00",
	})
	require.NoError(t, err)

	// February and April have no 31st; those months are skipped
	sessions, err := svc.Expand(ctx, tpl.ID, date(2024, time.January, 1), date(2024, time.April, 30))
	require.NoError(t, err)

	want := []time.Time{
		date(2024, time.January, 31),
		date(2024, time.March, 31),
	}
	assert.Equal(t, want, sessionDates(sessions))
}

func TestService_Expand_concreteSession(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	s, err := svc.CreateSession(ctx, schedule.NewSession{
		Name:      "Easter Special",
		Date:      date(2024, time.March, 31),
		StartTime: "10:00",
	})
	require.NoError(t, err)

	sessions, err := svc.Expand(ctx, s.ID, date(2024, time.January, 1), date(2024, time.December, 31))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, s.ID, sessions[0].ID)
	assert.False(t, sessions[0].IsInstance())
}

func TestService_Expand_unknownID(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.Expand(context.Background(), "nope", date(2024, time.January, 1), date(2024, time.January, 31))
	assert.Equal(t, schedule.ErrNotFound, err)
}

func TestService_CreateInstance(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, schedule.NewTemplate{
		Name:       "Bible Study",
		Recurrence: schedule.RecurrenceWeekly,
		AnchorDate: date(2024, time.January, 17),
		StartTime:  "18:30",
		Location:   "Room 2",
	})
	require.NoError(t, err)

	s, created, err := svc.CreateInstance(ctx, tpl.ID, date(2024, time.January, 24), schedule.InstanceOverrides{
		StartTime: "19:00",
		Location:  "Chapel",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "19:00", s.StartTime)
	assert.Equal(t, "Chapel", s.Location)

	// second call is a no-op; overrides only apply on create
	same, created, err := svc.CreateInstance(ctx, tpl.ID, date(2024, time.January, 24), schedule.InstanceOverrides{
		StartTime: "20:00",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.ID, same.ID)
	assert.Equal(t, "19:00", same.StartTime)

	_, _, err = svc.CreateInstance(ctx, "nope", date(2024, time.January, 24), schedule.InstanceOverrides{})
	assert.Equal(t, schedule.ErrNotFound, err)
}

func TestService_Propagate(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, schedule.NewTemplate{
		Name:       "Sunday Service",
		Recurrence: schedule.RecurrenceWeekly,
		AnchorDate: date(2024, time.January, 7),
		StartTime:  "09:00",
		Location:   "Main Hall",
	})
	require.NoError(t, err)

	sessions, err := svc.Expand(ctx, tpl.ID, date(2024, time.January, 7), date(2024, time.January, 14))
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	other, err := svc.CreateSession(ctx, schedule.NewSession{
		Name:      "One-Off Concert",
		Date:      date(2024, time.January, 10),
		StartTime: "19:00",
	})
	require.NoError(t, err)

	count, err := svc.Propagate(ctx, tpl.ID, schedule.FieldChanges{
		StartTime: "10:00",
		Location:  "New Building",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	tpl, err = svc.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "10:00", tpl.StartTime)
	assert.Equal(t, "New Building", tpl.Location)

	for _, s := range sessions {
		updated, err := repo.GetSession(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "10:00", updated.StartTime)
		assert.Equal(t, "New Building", updated.Location)
		assert.Equal(t, "Sunday Service", updated.Name) // untouched
		assert.True(t, updated.UpdatedAt.After(s.UpdatedAt))
	}

	// the one-off is not an instance and stays as is
	other, err = svc.GetSession(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "19:00", other.StartTime)

	count, err = svc.Propagate(ctx, tpl.ID, schedule.FieldChanges{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestService_CreateSession_duplicateInstance(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, schedule.NewTemplate{
		Name:       "Prayer Meeting",
		Recurrence: schedule.RecurrenceWeekly,
		AnchorDate: date(2024, time.February, 2),
		StartTime:  "06:00",
	})
	require.NoError(t, err)

	day := date(2024, time.February, 9)
	_, created, err := svc.CreateInstance(ctx, tpl.ID, day, schedule.InstanceOverrides{})
	require.NoError(t, err)
	require.True(t, created)

	// the storage constraint rejects a second instance for the pair
	_, err = repo.CreateSession(ctx, schedule.Session{
		Name:       "Prayer Meeting",
		Date:       day,
		StartTime:  "06:00",
		TemplateID: tpl.ID,
	})
	assert.Equal(t, schedule.ErrSessionExists, err)
}
