package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/katembo/kanisa/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	for _, a := range repo.db.attendance.table {
		if a.MemberID == att.MemberID && a.SessionID == att.SessionID {
			return attendance.Attendance{}, attendance.ErrAttendanceExists
		}
	}
	att.ID = uuid.New().String()
	repo.db.attendance.table[att.ID] = &att
	return att, nil
}

func (repo *attendanceRepository) GetAttendance(ctx context.Context, id string) (attendance.Attendance, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	if a, ok := repo.db.attendance.table[id]; ok {
		return *a, nil
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) GetByMemberAndSession(ctx context.Context, memberID, sessionID string) (attendance.Attendance, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	for _, a := range repo.db.attendance.table {
		if a.MemberID == memberID && a.SessionID == sessionID {
			return *a, nil
		}
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QueryBySession(ctx context.Context, sessionID string) ([]attendance.Attendance, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	records := make([]attendance.Attendance, 0)
	for _, a := range repo.db.attendance.table {
		if a.SessionID == sessionID {
			records = append(records, *a)
		}
	}
	sortByCreated(records)
	return records, nil
}

func (repo *attendanceRepository) QueryByMember(ctx context.Context, memberID string) ([]attendance.Attendance, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	records := make([]attendance.Attendance, 0)
	for _, a := range repo.db.attendance.table {
		if a.MemberID == memberID {
			records = append(records, *a)
		}
	}
	sortByCreated(records)
	return records, nil
}

func (repo *attendanceRepository) UpdateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	if _, ok := repo.db.attendance.table[att.ID]; !ok {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	repo.db.attendance.table[att.ID] = &att
	return att, nil
}

func (repo *attendanceRepository) SessionTotals(ctx context.Context, sessionID string) (attendance.SessionTotals, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	totals := attendance.SessionTotals{SessionID: sessionID}
	for _, a := range repo.db.attendance.table {
		if a.SessionID != sessionID {
			continue
		}
		switch a.Status {
		case attendance.StatusPresent:
			totals.Present++
		case attendance.StatusAbsent:
			totals.Absent++
		case attendance.StatusLate:
			totals.Late++
		}
	}
	return totals, nil
}

func (repo *attendanceRepository) CountMemberOutcomesSince(ctx context.Context, memberID string, since time.Time) (int, int, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	var present, absent int
	for _, a := range repo.db.attendance.table {
		if a.MemberID != memberID || repo.sessionDate(a.SessionID).Before(since) {
			continue
		}
		switch a.Status {
		case attendance.StatusPresent:
			present++
		case attendance.StatusAbsent:
			absent++
		}
	}
	return present, absent, nil
}

func (repo *attendanceRepository) CountMemberAbsencesSince(ctx context.Context, memberID string, since time.Time) (int, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	var count int
	for _, a := range repo.db.attendance.table {
		if a.MemberID == memberID && a.Status == attendance.StatusAbsent &&
			!repo.sessionDate(a.SessionID).Before(since) {
			count++
		}
	}
	return count, nil
}

func (repo *attendanceRepository) CountAll(ctx context.Context) (int, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()
	return len(repo.db.attendance.table), nil
}

func (repo *attendanceRepository) CountAutoMarked(ctx context.Context) (int, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	var count int
	for _, a := range repo.db.attendance.table {
		if a.IsAutoMarked {
			count++
		}
	}
	return count, nil
}

func (repo *attendanceRepository) sessionDate(sessionID string) time.Time {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	if s, ok := repo.db.session.table[sessionID]; ok {
		return s.Date
	}
	return time.Time{}
}

func sortByCreated(records []attendance.Attendance) {
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
}
