package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/katembo/kanisa/core/schedule"
)

type templateRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Recurrence  string      `db:"recurrence"`
	AnchorDate  time.Time   `db:"anchor_date"`
	StartTime   string      `db:"start_time"`
	EndTime     null.String `db:"end_time"`
	Location    null.String `db:"location"`
	Description null.String `db:"description"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r templateRow) toCore() schedule.Template {
	return schedule.Template{
		ID:          r.ID,
		Name:        r.Name,
		Recurrence:  r.Recurrence,
		AnchorDate:  r.AnchorDate,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime.String,
		Location:    r.Location.String,
		Description: r.Description.String,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toTemplateRow(tpl schedule.Template) templateRow {
	return templateRow{
		ID:          tpl.ID,
		Name:        tpl.Name,
		Recurrence:  tpl.Recurrence,
		AnchorDate:  tpl.AnchorDate.UTC(),
		StartTime:   tpl.StartTime,
		EndTime:     null.NewString(tpl.EndTime, tpl.EndTime != ""),
		Location:    null.NewString(tpl.Location, tpl.Location != ""),
		Description: null.NewString(tpl.Description, tpl.Description != ""),
		CreatedAt:   tpl.CreatedAt.UTC(),
		UpdatedAt:   tpl.UpdatedAt.UTC(),
	}
}

type sessionRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Date        time.Time   `db:"date"`
	StartTime   string      `db:"start_time"`
	EndTime     null.String `db:"end_time"`
	Location    null.String `db:"location"`
	Description null.String `db:"description"`
	TemplateID  null.String `db:"template_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r sessionRow) toCore() schedule.Session {
	return schedule.Session{
		ID:          r.ID,
		Name:        r.Name,
		Date:        r.Date,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime.String,
		Location:    r.Location.String,
		Description: r.Description.String,
		TemplateID:  r.TemplateID.String,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toSessionRow(s schedule.Session) sessionRow {
	return sessionRow{
		ID:          s.ID,
		Name:        s.Name,
		Date:        s.Date.UTC(),
		StartTime:   s.StartTime,
		EndTime:     null.NewString(s.EndTime, s.EndTime != ""),
		Location:    null.NewString(s.Location, s.Location != ""),
		Description: null.NewString(s.Description, s.Description != ""),
		TemplateID:  null.NewString(s.TemplateID, s.TemplateID != ""),
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

type scheduleRepository struct {
	db *sqlx.DB
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *sqlx.DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) CreateTemplate(ctx context.Context, tpl schedule.Template) (schedule.Template, error) {
	tpl.ID = uuid.New().String()
	row := toTemplateRow(tpl)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO service_template (id, name, recurrence, anchor_date, start_time, end_time,
			location, description, created_at, updated_at)
		VALUES (:id, :name, :recurrence, :anchor_date, :start_time, :end_time,
			:location, :description, :created_at, :updated_at)`, row)
	if err != nil {
		return schedule.Template{}, errors.Wrap(err, "inserting template")
	}
	return tpl, nil
}

func (repo *scheduleRepository) GetTemplate(ctx context.Context, id string) (schedule.Template, error) {
	var row templateRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM service_template WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return schedule.Template{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Template{}, errors.Wrap(err, "getting template")
	}
	return row.toCore(), nil
}

func (repo *scheduleRepository) QueryAllTemplates(ctx context.Context) ([]schedule.Template, error) {
	var rows []templateRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM service_template ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "querying templates")
	}
	templates := make([]schedule.Template, 0, len(rows))
	for _, r := range rows {
		templates = append(templates, r.toCore())
	}
	return templates, nil
}

func (repo *scheduleRepository) UpdateTemplate(ctx context.Context, tpl schedule.Template) (schedule.Template, error) {
	row := toTemplateRow(tpl)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE service_template SET
			name = :name, recurrence = :recurrence, anchor_date = :anchor_date,
			start_time = :start_time, end_time = :end_time, location = :location,
			description = :description, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return schedule.Template{}, errors.Wrap(err, "updating template")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schedule.Template{}, schedule.ErrNotFound
	}
	return tpl, nil
}

func (repo *scheduleRepository) DeleteTemplate(ctx context.Context, id string) error {
	// generated instances and their attendance go via ON DELETE CASCADE
	res, err := repo.db.ExecContext(ctx, `DELETE FROM service_template WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting template")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (repo *scheduleRepository) CreateSession(ctx context.Context, s schedule.Session) (schedule.Session, error) {
	s.ID = uuid.New().String()
	row := toSessionRow(s)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO service_session (id, name, date, start_time, end_time, location,
			description, template_id, created_at, updated_at)
		VALUES (:id, :name, :date, :start_time, :end_time, :location,
			:description, :template_id, :created_at, :updated_at)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return schedule.Session{}, schedule.ErrSessionExists
		}
		return schedule.Session{}, errors.Wrap(err, "inserting session")
	}
	return s, nil
}

func (repo *scheduleRepository) GetSession(ctx context.Context, id string) (schedule.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM service_session WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return schedule.Session{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Session{}, errors.Wrap(err, "getting session")
	}
	return row.toCore(), nil
}

func (repo *scheduleRepository) GetSessionByTemplateAndDate(ctx context.Context, templateID string, date time.Time) (schedule.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM service_session WHERE template_id = $1 AND date = $2`, templateID, date.UTC())
	if err == sql.ErrNoRows {
		return schedule.Session{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Session{}, errors.Wrap(err, "getting session by template and date")
	}
	return row.toCore(), nil
}

func (repo *scheduleRepository) QuerySessions(ctx context.Context, filter schedule.SessionFilter) ([]schedule.Session, error) {
	q := `SELECT * FROM service_session WHERE 1=1`
	args := make([]interface{}, 0)

	if filter.TemplateID != "" {
		args = append(args, filter.TemplateID)
		q += ` AND template_id = ` + placeholder(len(args))
	}
	if !filter.DateFrom.IsZero() {
		args = append(args, filter.DateFrom.UTC())
		q += ` AND date >= ` + placeholder(len(args))
	}
	if !filter.DateTo.IsZero() {
		args = append(args, filter.DateTo.UTC())
		q += ` AND date <= ` + placeholder(len(args))
	}
	q += ` ORDER BY date ASC`

	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]schedule.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toCore())
	}
	return sessions, nil
}

func (repo *scheduleRepository) UpdateSession(ctx context.Context, s schedule.Session) (schedule.Session, error) {
	row := toSessionRow(s)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE service_session SET
			name = :name, date = :date, start_time = :start_time, end_time = :end_time,
			location = :location, description = :description, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return schedule.Session{}, errors.Wrap(err, "updating session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schedule.Session{}, schedule.ErrNotFound
	}
	return s, nil
}

func (repo *scheduleRepository) UpdateSessionsByTemplate(ctx context.Context, templateID string, changes schedule.FieldChanges) (int, error) {
	q := `UPDATE service_session SET updated_at = $2`
	args := []interface{}{templateID, time.Now().UTC()}

	if changes.Name != "" {
		args = append(args, changes.Name)
		q += `, name = ` + placeholder(len(args))
	}
	if changes.StartTime != "" {
		args = append(args, changes.StartTime)
		q += `, start_time = ` + placeholder(len(args))
	}
	if changes.EndTime != "" {
		args = append(args, changes.EndTime)
		q += `, end_time = ` + placeholder(len(args))
	}
	if changes.Location != "" {
		args = append(args, changes.Location)
		q += `, location = ` + placeholder(len(args))
	}
	if changes.Description != "" {
		args = append(args, changes.Description)
		q += `, description = ` + placeholder(len(args))
	}
	q += ` WHERE template_id = $1`

	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "updating sessions by template")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "updating sessions by template")
	}
	return int(n), nil
}

func (repo *scheduleRepository) DeleteSession(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM service_session WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (repo *scheduleRepository) CountSessionsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM service_session WHERE date >= $1`, since.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "counting sessions")
	}
	return count, nil
}
