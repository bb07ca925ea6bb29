package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/katembo/kanisa/core/schedule"
)

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) CreateTemplate(ctx context.Context, tpl schedule.Template) (schedule.Template, error) {
	repo.db.template.Lock()
	defer repo.db.template.Unlock()

	tpl.ID = uuid.New().String()
	repo.db.template.table[tpl.ID] = &tpl
	return tpl, nil
}

func (repo *scheduleRepository) GetTemplate(ctx context.Context, id string) (schedule.Template, error) {
	repo.db.template.RLock()
	defer repo.db.template.RUnlock()

	if tpl, ok := repo.db.template.table[id]; ok {
		return *tpl, nil
	}
	return schedule.Template{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) QueryAllTemplates(ctx context.Context) ([]schedule.Template, error) {
	repo.db.template.RLock()
	defer repo.db.template.RUnlock()

	templates := make([]schedule.Template, 0, len(repo.db.template.table))
	for _, tpl := range repo.db.template.table {
		templates = append(templates, *tpl)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].CreatedAt.After(templates[j].CreatedAt) })
	return templates, nil
}

func (repo *scheduleRepository) UpdateTemplate(ctx context.Context, tpl schedule.Template) (schedule.Template, error) {
	repo.db.template.Lock()
	defer repo.db.template.Unlock()

	if _, ok := repo.db.template.table[tpl.ID]; !ok {
		return schedule.Template{}, schedule.ErrNotFound
	}
	repo.db.template.table[tpl.ID] = &tpl
	return tpl, nil
}

func (repo *scheduleRepository) DeleteTemplate(ctx context.Context, id string) error {
	repo.db.template.Lock()
	defer repo.db.template.Unlock()

	if _, ok := repo.db.template.table[id]; !ok {
		return schedule.ErrNotFound
	}
	delete(repo.db.template.table, id)

	// cascade to generated instances, and their attendance with them
	repo.db.session.Lock()
	for sid, s := range repo.db.session.table {
		if s.TemplateID == id {
			delete(repo.db.session.table, sid)
			repo.cascadeAttendance(sid)
		}
	}
	repo.db.session.Unlock()
	return nil
}

func (repo *scheduleRepository) CreateSession(ctx context.Context, s schedule.Session) (schedule.Session, error) {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	if s.TemplateID != "" {
		for _, existing := range repo.db.session.table {
			if existing.TemplateID == s.TemplateID && existing.Date.Equal(s.Date) {
				return schedule.Session{}, schedule.ErrSessionExists
			}
		}
	}
	s.ID = uuid.New().String()
	repo.db.session.table[s.ID] = &s
	return s, nil
}

func (repo *scheduleRepository) GetSession(ctx context.Context, id string) (schedule.Session, error) {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	if s, ok := repo.db.session.table[id]; ok {
		return *s, nil
	}
	return schedule.Session{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) GetSessionByTemplateAndDate(ctx context.Context, templateID string, date time.Time) (schedule.Session, error) {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	for _, s := range repo.db.session.table {
		if s.TemplateID == templateID && s.Date.Equal(date) {
			return *s, nil
		}
	}
	return schedule.Session{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) QuerySessions(ctx context.Context, filter schedule.SessionFilter) ([]schedule.Session, error) {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	sessions := make([]schedule.Session, 0)
	for _, s := range repo.db.session.table {
		if filter.TemplateID != "" && s.TemplateID != filter.TemplateID {
			continue
		}
		if !filter.DateFrom.IsZero() && s.Date.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && s.Date.After(filter.DateTo) {
			continue
		}
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Date.Before(sessions[j].Date) })
	return sessions, nil
}

func (repo *scheduleRepository) UpdateSession(ctx context.Context, s schedule.Session) (schedule.Session, error) {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	if _, ok := repo.db.session.table[s.ID]; !ok {
		return schedule.Session{}, schedule.ErrNotFound
	}
	repo.db.session.table[s.ID] = &s
	return s, nil
}

func (repo *scheduleRepository) UpdateSessionsByTemplate(ctx context.Context, templateID string, changes schedule.FieldChanges) (int, error) {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	var count int
	for _, s := range repo.db.session.table {
		if s.TemplateID != templateID {
			continue
		}
		if changes.Name != "" {
			s.Name = changes.Name
		}
		if changes.StartTime != "" {
			s.StartTime = changes.StartTime
		}
		if changes.EndTime != "" {
			s.EndTime = changes.EndTime
		}
		if changes.Location != "" {
			s.Location = changes.Location
		}
		if changes.Description != "" {
			s.Description = changes.Description
		}
		s.UpdatedAt = time.Now().UTC()
		count++
	}
	return count, nil
}

func (repo *scheduleRepository) DeleteSession(ctx context.Context, id string) error {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	if _, ok := repo.db.session.table[id]; !ok {
		return schedule.ErrNotFound
	}
	delete(repo.db.session.table, id)
	repo.cascadeAttendance(id)
	return nil
}

func (repo *scheduleRepository) CountSessionsSince(ctx context.Context, since time.Time) (int, error) {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	var count int
	for _, s := range repo.db.session.table {
		if !s.Date.Before(since) {
			count++
		}
	}
	return count, nil
}

func (repo *scheduleRepository) cascadeAttendance(sessionID string) {
	repo.db.attendance.Lock()
	for id, att := range repo.db.attendance.table {
		if att.SessionID == sessionID {
			delete(repo.db.attendance.table, id)
		}
	}
	repo.db.attendance.Unlock()
}
