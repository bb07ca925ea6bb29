package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/katembo/kanisa/core/member"
)

type alertRow struct {
	ID              string      `db:"id"`
	MemberID        string      `db:"member_id"`
	Level           string      `db:"level"`
	Reason          string      `db:"reason"`
	IsResolved      bool        `db:"is_resolved"`
	CreatedAt       time.Time   `db:"created_at"`
	ResolvedAt      null.Time   `db:"resolved_at"`
	ResolutionNotes null.String `db:"resolution_notes"`
}

func (r alertRow) toCore() member.Alert {
	return member.Alert{
		ID:              r.ID,
		MemberID:        r.MemberID,
		Level:           r.Level,
		Reason:          r.Reason,
		IsResolved:      r.IsResolved,
		CreatedAt:       r.CreatedAt,
		ResolvedAt:      r.ResolvedAt.Time,
		ResolutionNotes: r.ResolutionNotes.String,
	}
}

func toAlertRow(a member.Alert) alertRow {
	return alertRow{
		ID:              a.ID,
		MemberID:        a.MemberID,
		Level:           a.Level,
		Reason:          a.Reason,
		IsResolved:      a.IsResolved,
		CreatedAt:       a.CreatedAt.UTC(),
		ResolvedAt:      null.NewTime(a.ResolvedAt.UTC(), !a.ResolvedAt.IsZero()),
		ResolutionNotes: null.NewString(a.ResolutionNotes, a.ResolutionNotes != ""),
	}
}

type alertRepository struct {
	db *sqlx.DB
}

var _ member.AlertRepository = (*alertRepository)(nil)

func NewAlertRepository(db *sqlx.DB) *alertRepository {
	return &alertRepository{db: db}
}

func (repo *alertRepository) CreateAlert(ctx context.Context, alert member.Alert) (member.Alert, error) {
	alert.ID = uuid.New().String()
	row := toAlertRow(alert)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO member_alert (id, member_id, level, reason, is_resolved, created_at, resolved_at, resolution_notes)
		VALUES (:id, :member_id, :level, :reason, :is_resolved, :created_at, :resolved_at, :resolution_notes)`, row)
	if err != nil {
		return member.Alert{}, errors.Wrap(err, "inserting alert")
	}
	return alert, nil
}

func (repo *alertRepository) GetAlertByID(ctx context.Context, id string) (member.Alert, error) {
	var row alertRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM member_alert WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return member.Alert{}, member.ErrAlertNotFound
	}
	if err != nil {
		return member.Alert{}, errors.Wrap(err, "getting alert")
	}
	return row.toCore(), nil
}

func (repo *alertRepository) QueryAlertsByMember(ctx context.Context, memberID string) ([]member.Alert, error) {
	var rows []alertRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM member_alert WHERE member_id = $1 ORDER BY created_at DESC`, memberID)
	if err != nil {
		return nil, errors.Wrap(err, "querying alerts")
	}
	return toAlertSlice(rows), nil
}

func (repo *alertRepository) QueryUnresolvedAlerts(ctx context.Context, memberID string, levels ...string) ([]member.Alert, error) {
	q := `SELECT * FROM member_alert WHERE member_id = $1 AND is_resolved = false`
	args := []interface{}{memberID}
	if len(levels) > 0 {
		args = append(args, pq.Array(levels))
		q += ` AND level = ANY($2)`
	}
	q += ` ORDER BY created_at DESC`

	var rows []alertRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying unresolved alerts")
	}
	return toAlertSlice(rows), nil
}

func (repo *alertRepository) CountUnresolvedAlertsByLevel(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Level string `db:"level"`
		Count int    `db:"count"`
	}
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT level, COUNT(*) AS count FROM member_alert WHERE is_resolved = false GROUP BY level`)
	if err != nil {
		return nil, errors.Wrap(err, "counting unresolved alerts")
	}

	counts := map[string]int{
		member.AlertEarlyWarning: 0,
		member.AlertAtRisk:       0,
		member.AlertCritical:     0,
	}
	for _, r := range rows {
		counts[r.Level] = r.Count
	}
	return counts, nil
}

func (repo *alertRepository) UpdateAlert(ctx context.Context, alert member.Alert) (member.Alert, error) {
	row := toAlertRow(alert)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE member_alert SET
			level = :level, reason = :reason, is_resolved = :is_resolved,
			resolved_at = :resolved_at, resolution_notes = :resolution_notes
		WHERE id = :id`, row)
	if err != nil {
		return member.Alert{}, errors.Wrap(err, "updating alert")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return member.Alert{}, member.ErrAlertNotFound
	}
	return alert, nil
}

func (repo *alertRepository) ResolveAlerts(ctx context.Context, memberID string, at time.Time, levels ...string) (int, error) {
	q := `UPDATE member_alert SET is_resolved = true, resolved_at = $2 WHERE member_id = $1 AND is_resolved = false`
	args := []interface{}{memberID, at.UTC()}
	if len(levels) > 0 {
		args = append(args, pq.Array(levels))
		q += ` AND level = ANY($3)`
	}

	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "resolving alerts")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "resolving alerts")
	}
	return int(n), nil
}

func toAlertSlice(rows []alertRow) []member.Alert {
	alerts := make([]member.Alert, 0, len(rows))
	for _, r := range rows {
		alerts = append(alerts, r.toCore())
	}
	return alerts
}

type contactLogRow struct {
	ID               string      `db:"id"`
	MemberID         string      `db:"member_id"`
	Method           string      `db:"method"`
	MessageSent      string      `db:"message_sent"`
	ContactedBy      null.String `db:"contacted_by"`
	ResponseReceived null.String `db:"response_received"`
	FollowUpNeeded   bool        `db:"follow_up_needed"`
	FollowUpDate     null.Time   `db:"follow_up_date"`
	ContactDate      time.Time   `db:"contact_date"`
}

func (r contactLogRow) toCore() member.ContactLog {
	return member.ContactLog{
		ID:               r.ID,
		MemberID:         r.MemberID,
		Method:           r.Method,
		MessageSent:      r.MessageSent,
		ContactedBy:      r.ContactedBy.String,
		ResponseReceived: r.ResponseReceived.String,
		FollowUpNeeded:   r.FollowUpNeeded,
		FollowUpDate:     r.FollowUpDate.Time,
		ContactDate:      r.ContactDate,
	}
}

type contactLogRepository struct {
	db *sqlx.DB
}

var _ member.ContactLogRepository = (*contactLogRepository)(nil)

func NewContactLogRepository(db *sqlx.DB) *contactLogRepository {
	return &contactLogRepository{db: db}
}

func (repo *contactLogRepository) CreateContactLog(ctx context.Context, cl member.ContactLog) (member.ContactLog, error) {
	cl.ID = uuid.New().String()
	row := contactLogRow{
		ID:               cl.ID,
		MemberID:         cl.MemberID,
		Method:           cl.Method,
		MessageSent:      cl.MessageSent,
		ContactedBy:      null.NewString(cl.ContactedBy, cl.ContactedBy != ""),
		ResponseReceived: null.NewString(cl.ResponseReceived, cl.ResponseReceived != ""),
		FollowUpNeeded:   cl.FollowUpNeeded,
		FollowUpDate:     null.NewTime(cl.FollowUpDate.UTC(), !cl.FollowUpDate.IsZero()),
		ContactDate:      cl.ContactDate.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO contact_log (id, member_id, method, message_sent, contacted_by, response_received,
			follow_up_needed, follow_up_date, contact_date)
		VALUES (:id, :member_id, :method, :message_sent, :contacted_by, :response_received,
			:follow_up_needed, :follow_up_date, :contact_date)`, row)
	if err != nil {
		return member.ContactLog{}, errors.Wrap(err, "inserting contact log")
	}
	return cl, nil
}

func (repo *contactLogRepository) QueryContactLogsByMember(ctx context.Context, memberID string) ([]member.ContactLog, error) {
	var rows []contactLogRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM contact_log WHERE member_id = $1 ORDER BY contact_date DESC`, memberID)
	if err != nil {
		return nil, errors.Wrap(err, "querying contact logs")
	}
	logs := make([]member.ContactLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, r.toCore())
	}
	return logs, nil
}
