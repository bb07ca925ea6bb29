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

type memberRow struct {
	ID                  string      `db:"id"`
	Code                string      `db:"code"`
	FullName            string      `db:"full_name"`
	Phone               null.String `db:"phone"`
	Email               null.String `db:"email"`
	Department          null.String `db:"department"`
	MemberGroup         null.String `db:"member_group"`
	IsVisitor           bool        `db:"is_visitor"`
	ConsecutiveAbsences int         `db:"consecutive_absences"`
	LastAttendanceDate  null.Time   `db:"last_attendance_date"`
	AttendanceStatus    string      `db:"attendance_status"`
	EngagementScore     int         `db:"engagement_score"`
	LastContactDate     null.Time   `db:"last_contact_date"`
	PastoralNotes       null.String `db:"pastoral_notes"`
	CreatedAt           time.Time   `db:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at"`
}

func (r memberRow) toCore() member.Member {
	return member.Member{
		ID:                  r.ID,
		Code:                r.Code,
		FullName:            r.FullName,
		Phone:               r.Phone.String,
		Email:               r.Email.String,
		Department:          r.Department.String,
		Group:               r.MemberGroup.String,
		IsVisitor:           r.IsVisitor,
		ConsecutiveAbsences: r.ConsecutiveAbsences,
		LastAttendanceDate:  r.LastAttendanceDate.Time,
		AttendanceStatus:    r.AttendanceStatus,
		EngagementScore:     r.EngagementScore,
		LastContactDate:     r.LastContactDate.Time,
		PastoralNotes:       r.PastoralNotes.String,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func toMemberRow(m member.Member) memberRow {
	return memberRow{
		ID:                  m.ID,
		Code:                m.Code,
		FullName:            m.FullName,
		Phone:               null.NewString(m.Phone, m.Phone != ""),
		Email:               null.NewString(m.Email, m.Email != ""),
		Department:          null.NewString(m.Department, m.Department != ""),
		MemberGroup:         null.NewString(m.Group, m.Group != ""),
		IsVisitor:           m.IsVisitor,
		ConsecutiveAbsences: m.ConsecutiveAbsences,
		LastAttendanceDate:  null.NewTime(m.LastAttendanceDate.UTC(), !m.LastAttendanceDate.IsZero()),
		AttendanceStatus:    m.AttendanceStatus,
		EngagementScore:     m.EngagementScore,
		LastContactDate:     null.NewTime(m.LastContactDate.UTC(), !m.LastContactDate.IsZero()),
		PastoralNotes:       null.NewString(m.PastoralNotes, m.PastoralNotes != ""),
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
}

type memberRepository struct {
	db *sqlx.DB
}

var _ member.Repository = (*memberRepository)(nil)

func NewMemberRepository(db *sqlx.DB) *memberRepository {
	return &memberRepository{db: db}
}

func (repo *memberRepository) toCoreSlice(rows []memberRow) []member.Member {
	members := make([]member.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.toCore())
	}
	return members
}

func (repo *memberRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT true FROM member WHERE code = $1 LIMIT 1`, code)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "checking member code uniqueness")
	}
	return member.ErrCodeExists
}

func (repo *memberRepository) CreateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	mbr.ID = uuid.New().String()
	row := toMemberRow(mbr)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO member (
			id, code, full_name, phone, email, department, member_group, is_visitor,
			consecutive_absences, last_attendance_date, attendance_status,
			engagement_score, last_contact_date, pastoral_notes, created_at, updated_at
		) VALUES (
			:id, :code, :full_name, :phone, :email, :department, :member_group, :is_visitor,
			:consecutive_absences, :last_attendance_date, :attendance_status,
			:engagement_score, :last_contact_date, :pastoral_notes, :created_at, :updated_at
		)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return member.Member{}, member.ErrCodeExists
		}
		return member.Member{}, errors.Wrap(err, "inserting member")
	}
	return mbr, nil
}

func (repo *memberRepository) QueryAllMembers(ctx context.Context) ([]member.Member, error) {
	var rows []memberRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM member ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	return repo.toCoreSlice(rows), nil
}

func (repo *memberRepository) QueryNonVisitorMembers(ctx context.Context) ([]member.Member, error) {
	var rows []memberRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM member WHERE is_visitor = false ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "querying non-visitor members")
	}
	return repo.toCoreSlice(rows), nil
}

func (repo *memberRepository) GetMemberByID(ctx context.Context, id string) (member.Member, error) {
	var row memberRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM member WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return member.Member{}, member.ErrNotFound
	}
	if err != nil {
		return member.Member{}, errors.Wrap(err, "getting member")
	}
	return row.toCore(), nil
}

func (repo *memberRepository) GetMemberByCode(ctx context.Context, code string) (member.Member, error) {
	var row memberRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM member WHERE code = $1`, code)
	if err == sql.ErrNoRows {
		return member.Member{}, member.ErrNotFound
	}
	if err != nil {
		return member.Member{}, errors.Wrap(err, "getting member by code")
	}
	return row.toCore(), nil
}

func (repo *memberRepository) FilterMembers(ctx context.Context, filter member.QueryFilter) ([]member.Member, error) {
	q := `SELECT * FROM member WHERE 1=1`
	args := make([]interface{}, 0)

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		p := placeholder(len(args))
		q += ` AND (full_name ILIKE ` + p + ` OR code ILIKE ` + p + ` OR email ILIKE ` + p + `)`
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		q += ` AND department = ` + placeholder(len(args))
	}
	if filter.Group != "" {
		args = append(args, filter.Group)
		q += ` AND member_group = ` + placeholder(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		q += ` AND attendance_status = ` + placeholder(len(args))
	}
	if filter.IsVisitor != nil {
		args = append(args, *filter.IsVisitor)
		q += ` AND is_visitor = ` + placeholder(len(args))
	}
	if !filter.CreatedFrom.IsZero() {
		args = append(args, filter.CreatedFrom.UTC())
		q += ` AND created_at >= ` + placeholder(len(args))
	}
	if !filter.CreatedTo.IsZero() {
		args = append(args, filter.CreatedTo.UTC())
		q += ` AND created_at <= ` + placeholder(len(args))
	}
	q += ` ORDER BY created_at DESC`

	var rows []memberRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering members")
	}
	return repo.toCoreSlice(rows), nil
}

func (repo *memberRepository) UpdateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	row := toMemberRow(mbr)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE member SET
			full_name = :full_name, phone = :phone, email = :email,
			department = :department, member_group = :member_group, is_visitor = :is_visitor,
			consecutive_absences = :consecutive_absences, last_attendance_date = :last_attendance_date,
			attendance_status = :attendance_status, engagement_score = :engagement_score,
			last_contact_date = :last_contact_date, pastoral_notes = :pastoral_notes,
			updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "updating member")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return member.Member{}, member.ErrNotFound
	}
	return mbr, nil
}

func (repo *memberRepository) DeleteMembersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	// children go with the member via ON DELETE CASCADE
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM member WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting members")
	}
	return nil
}
