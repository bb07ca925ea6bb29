package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/katembo/kanisa/core/attendance"
)

type attendanceRow struct {
	ID           string      `db:"id"`
	MemberID     string      `db:"member_id"`
	SessionID    string      `db:"session_id"`
	Status       string      `db:"status"`
	CheckInTime  null.Time   `db:"check_in_time"`
	IsAutoMarked bool        `db:"is_auto_marked"`
	Notes        null.String `db:"notes"`
	CreatedAt    time.Time   `db:"created_at"`
}

func (r attendanceRow) toCore() attendance.Attendance {
	return attendance.Attendance{
		ID:           r.ID,
		MemberID:     r.MemberID,
		SessionID:    r.SessionID,
		Status:       r.Status,
		CheckInTime:  r.CheckInTime.Time,
		IsAutoMarked: r.IsAutoMarked,
		Notes:        r.Notes.String,
		CreatedAt:    r.CreatedAt,
	}
}

func toAttendanceRow(att attendance.Attendance) attendanceRow {
	return attendanceRow{
		ID:           att.ID,
		MemberID:     att.MemberID,
		SessionID:    att.SessionID,
		Status:       att.Status,
		CheckInTime:  null.NewTime(att.CheckInTime.UTC(), !att.CheckInTime.IsZero()),
		IsAutoMarked: att.IsAutoMarked,
		Notes:        null.NewString(att.Notes, att.Notes != ""),
		CreatedAt:    att.CreatedAt.UTC(),
	}
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	att.ID = uuid.New().String()
	row := toAttendanceRow(att)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO attendance (id, member_id, session_id, status, check_in_time, is_auto_marked, notes, created_at)
		VALUES (:id, :member_id, :session_id, :status, :check_in_time, :is_auto_marked, :notes, :created_at)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Attendance{}, attendance.ErrAttendanceExists
		}
		return attendance.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return att, nil
}

func (repo *attendanceRepository) GetAttendance(ctx context.Context, id string) (attendance.Attendance, error) {
	var row attendanceRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM attendance WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "getting attendance")
	}
	return row.toCore(), nil
}

func (repo *attendanceRepository) GetByMemberAndSession(ctx context.Context, memberID, sessionID string) (attendance.Attendance, error) {
	var row attendanceRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM attendance WHERE member_id = $1 AND session_id = $2`, memberID, sessionID)
	if err == sql.ErrNoRows {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "getting attendance by member and session")
	}
	return row.toCore(), nil
}

func (repo *attendanceRepository) QueryBySession(ctx context.Context, sessionID string) ([]attendance.Attendance, error) {
	var rows []attendanceRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM attendance WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance by session")
	}
	return toAttendanceSlice(rows), nil
}

func (repo *attendanceRepository) QueryByMember(ctx context.Context, memberID string) ([]attendance.Attendance, error) {
	var rows []attendanceRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM attendance WHERE member_id = $1 ORDER BY created_at DESC`, memberID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance by member")
	}
	return toAttendanceSlice(rows), nil
}

func (repo *attendanceRepository) UpdateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	row := toAttendanceRow(att)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE attendance SET
			status = :status, check_in_time = :check_in_time,
			is_auto_marked = :is_auto_marked, notes = :notes
		WHERE id = :id`, row)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "updating attendance")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	return att, nil
}

func (repo *attendanceRepository) SessionTotals(ctx context.Context, sessionID string) (attendance.SessionTotals, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM attendance WHERE session_id = $1 GROUP BY status`, sessionID)
	if err != nil {
		return attendance.SessionTotals{}, errors.Wrap(err, "counting session totals")
	}

	totals := attendance.SessionTotals{SessionID: sessionID}
	for _, r := range rows {
		switch r.Status {
		case attendance.StatusPresent:
			totals.Present = r.Count
		case attendance.StatusAbsent:
			totals.Absent = r.Count
		case attendance.StatusLate:
			totals.Late = r.Count
		}
	}
	return totals, nil
}

func (repo *attendanceRepository) CountMemberOutcomesSince(ctx context.Context, memberID string, since time.Time) (int, int, error) {
	var row struct {
		Present int `db:"present"`
		Absent  int `db:"absent"`
	}
	err := repo.db.GetContext(ctx, &row, `
		SELECT
			COUNT(*) FILTER (WHERE a.status = 'present') AS present,
			COUNT(*) FILTER (WHERE a.status = 'absent') AS absent
		FROM attendance a
		JOIN service_session s ON s.id = a.session_id
		WHERE a.member_id = $1 AND s.date >= $2`, memberID, since.UTC())
	if err != nil {
		return 0, 0, errors.Wrap(err, "counting member outcomes")
	}
	return row.Present, row.Absent, nil
}

func (repo *attendanceRepository) CountMemberAbsencesSince(ctx context.Context, memberID string, since time.Time) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM attendance a
		JOIN service_session s ON s.id = a.session_id
		WHERE a.member_id = $1 AND a.status = 'absent' AND s.date >= $2`, memberID, since.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "counting member absences")
	}
	return count, nil
}

func (repo *attendanceRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM attendance`); err != nil {
		return 0, errors.Wrap(err, "counting attendance")
	}
	return count, nil
}

func (repo *attendanceRepository) CountAutoMarked(ctx context.Context) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM attendance WHERE is_auto_marked = true`)
	if err != nil {
		return 0, errors.Wrap(err, "counting auto-marked attendance")
	}
	return count, nil
}

func toAttendanceSlice(rows []attendanceRow) []attendance.Attendance {
	records := make([]attendance.Attendance, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toCore())
	}
	return records
}
