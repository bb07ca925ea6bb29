package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/katembo/kanisa/core/member"
)

type memberRepository struct {
	db *DB
}

var _ member.Repository = (*memberRepository)(nil)

func NewMemberRepository(db *DB) *memberRepository {
	return &memberRepository{db: db}
}

func (repo *memberRepository) query() []member.Member {
	members := make([]member.Member, 0, len(repo.db.member.table))
	for _, m := range repo.db.member.table {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].CreatedAt.After(members[j].CreatedAt) })
	return members
}

func (repo *memberRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	for _, m := range repo.db.member.table {
		if m.Code == code {
			return member.ErrCodeExists
		}
	}
	return nil
}

func (repo *memberRepository) CreateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	repo.db.member.Lock()
	defer repo.db.member.Unlock()

	for _, m := range repo.db.member.table {
		if m.Code == mbr.Code {
			return member.Member{}, member.ErrCodeExists
		}
	}
	mbr.ID = uuid.New().String()
	repo.db.member.table[mbr.ID] = &mbr
	return mbr, nil
}

func (repo *memberRepository) QueryAllMembers(ctx context.Context) ([]member.Member, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()
	return repo.query(), nil
}

func (repo *memberRepository) QueryNonVisitorMembers(ctx context.Context) ([]member.Member, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	members := make([]member.Member, 0)
	for _, m := range repo.query() {
		if !m.IsVisitor {
			members = append(members, m)
		}
	}
	return members, nil
}

func (repo *memberRepository) GetMemberByID(ctx context.Context, id string) (member.Member, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	if m, ok := repo.db.member.table[id]; ok {
		return *m, nil
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) GetMemberByCode(ctx context.Context, code string) (member.Member, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	for _, m := range repo.db.member.table {
		if m.Code == code {
			return *m, nil
		}
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) FilterMembers(ctx context.Context, filter member.QueryFilter) ([]member.Member, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	members := make([]member.Member, 0)
	search := strings.ToLower(filter.Search)
	for _, m := range repo.query() {
		if search != "" &&
			!strings.Contains(strings.ToLower(m.FullName), search) &&
			!strings.Contains(strings.ToLower(m.Code), search) &&
			!strings.Contains(strings.ToLower(m.Email), search) {
			continue
		}
		if filter.Department != "" && m.Department != filter.Department {
			continue
		}
		if filter.Group != "" && m.Group != filter.Group {
			continue
		}
		if filter.Status != "" && m.AttendanceStatus != filter.Status {
			continue
		}
		if filter.IsVisitor != nil && m.IsVisitor != *filter.IsVisitor {
			continue
		}
		if !filter.CreatedFrom.IsZero() && m.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && m.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		members = append(members, m)
	}
	return members, nil
}

func (repo *memberRepository) UpdateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	repo.db.member.Lock()
	defer repo.db.member.Unlock()

	if _, ok := repo.db.member.table[mbr.ID]; !ok {
		return member.Member{}, member.ErrNotFound
	}
	repo.db.member.table[mbr.ID] = &mbr
	return mbr, nil
}

func (repo *memberRepository) DeleteMembersByID(ctx context.Context, ids ...string) error {
	repo.db.member.Lock()
	defer repo.db.member.Unlock()

	for _, id := range ids {
		delete(repo.db.member.table, id)
		repo.cascade(id)
	}
	return nil
}

// cascade mirrors the FK ON DELETE CASCADE behavior of the real database.
func (repo *memberRepository) cascade(memberID string) {
	repo.db.attendance.Lock()
	for id, att := range repo.db.attendance.table {
		if att.MemberID == memberID {
			delete(repo.db.attendance.table, id)
		}
	}
	repo.db.attendance.Unlock()

	repo.db.alert.Lock()
	for id, alert := range repo.db.alert.table {
		if alert.MemberID == memberID {
			delete(repo.db.alert.table, id)
		}
	}
	repo.db.alert.Unlock()

	repo.db.contact.Lock()
	for id, cl := range repo.db.contact.table {
		if cl.MemberID == memberID {
			delete(repo.db.contact.table, id)
		}
	}
	repo.db.contact.Unlock()
}

type alertRepository struct {
	db *DB
}

var _ member.AlertRepository = (*alertRepository)(nil)

func NewAlertRepository(db *DB) *alertRepository {
	return &alertRepository{db: db}
}

func (repo *alertRepository) CreateAlert(ctx context.Context, alert member.Alert) (member.Alert, error) {
	repo.db.alert.Lock()
	defer repo.db.alert.Unlock()

	alert.ID = uuid.New().String()
	repo.db.alert.table[alert.ID] = &alert
	return alert, nil
}

func (repo *alertRepository) GetAlertByID(ctx context.Context, id string) (member.Alert, error) {
	repo.db.alert.RLock()
	defer repo.db.alert.RUnlock()

	if a, ok := repo.db.alert.table[id]; ok {
		return *a, nil
	}
	return member.Alert{}, member.ErrAlertNotFound
}

func (repo *alertRepository) QueryAlertsByMember(ctx context.Context, memberID string) ([]member.Alert, error) {
	repo.db.alert.RLock()
	defer repo.db.alert.RUnlock()

	alerts := make([]member.Alert, 0)
	for _, a := range repo.db.alert.table {
		if a.MemberID == memberID {
			alerts = append(alerts, *a)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].CreatedAt.After(alerts[j].CreatedAt) })
	return alerts, nil
}

func (repo *alertRepository) QueryUnresolvedAlerts(ctx context.Context, memberID string, levels ...string) ([]member.Alert, error) {
	repo.db.alert.RLock()
	defer repo.db.alert.RUnlock()

	alerts := make([]member.Alert, 0)
	for _, a := range repo.db.alert.table {
		if a.MemberID == memberID && !a.IsResolved && matchesLevel(a.Level, levels) {
			alerts = append(alerts, *a)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].CreatedAt.After(alerts[j].CreatedAt) })
	return alerts, nil
}

func (repo *alertRepository) CountUnresolvedAlertsByLevel(ctx context.Context) (map[string]int, error) {
	repo.db.alert.RLock()
	defer repo.db.alert.RUnlock()

	counts := map[string]int{
		member.AlertEarlyWarning: 0,
		member.AlertAtRisk:       0,
		member.AlertCritical:     0,
	}
	for _, a := range repo.db.alert.table {
		if !a.IsResolved {
			counts[a.Level]++
		}
	}
	return counts, nil
}

func (repo *alertRepository) UpdateAlert(ctx context.Context, alert member.Alert) (member.Alert, error) {
	repo.db.alert.Lock()
	defer repo.db.alert.Unlock()

	if _, ok := repo.db.alert.table[alert.ID]; !ok {
		return member.Alert{}, member.ErrAlertNotFound
	}
	repo.db.alert.table[alert.ID] = &alert
	return alert, nil
}

func (repo *alertRepository) ResolveAlerts(ctx context.Context, memberID string, at time.Time, levels ...string) (int, error) {
	repo.db.alert.Lock()
	defer repo.db.alert.Unlock()

	var count int
	for _, a := range repo.db.alert.table {
		if a.MemberID == memberID && !a.IsResolved && matchesLevel(a.Level, levels) {
			a.IsResolved = true
			a.ResolvedAt = at
			count++
		}
	}
	return count, nil
}

func matchesLevel(level string, levels []string) bool {
	if len(levels) == 0 {
		return true
	}
	for _, l := range levels {
		if level == l {
			return true
		}
	}
	return false
}

type contactLogRepository struct {
	db *DB
}

var _ member.ContactLogRepository = (*contactLogRepository)(nil)

func NewContactLogRepository(db *DB) *contactLogRepository {
	return &contactLogRepository{db: db}
}

func (repo *contactLogRepository) CreateContactLog(ctx context.Context, cl member.ContactLog) (member.ContactLog, error) {
	repo.db.contact.Lock()
	defer repo.db.contact.Unlock()

	cl.ID = uuid.New().String()
	repo.db.contact.table[cl.ID] = &cl
	return cl, nil
}

func (repo *contactLogRepository) QueryContactLogsByMember(ctx context.Context, memberID string) ([]member.ContactLog, error) {
	repo.db.contact.RLock()
	defer repo.db.contact.RUnlock()

	logs := make([]member.ContactLog, 0)
	for _, cl := range repo.db.contact.table {
		if cl.MemberID == memberID {
			logs = append(logs, *cl)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].ContactDate.After(logs[j].ContactDate) })
	return logs, nil
}
