package member

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/katembo/kanisa/core"
)

// Consecutive-absence thresholds. Alerts trigger on these exact counts
// when outcomes are applied incrementally.
const (
	EarlyWarningThreshold = 2
	AtRiskThreshold       = 4
	CriticalThreshold     = 8
)

// ReconcileWindow is the trailing window Recompute counts absences over.
// Note that this intentionally differs from incremental tracking, which
// counts true consecutive absence events with no time bound.
const ReconcileWindow = 90 * 24 * time.Hour

const (
	scoreAttendanceBonus = 5
	scoreAbsencePenalty  = 10
)

var timeNow = time.Now // mockable

// Outcome is a present/absent result fed into the Tracker.
type Outcome string

const (
	OutcomePresent Outcome = "present"
	OutcomeAbsent  Outcome = "absent"
)

// AbsenceCounter counts a member's recorded absences; implemented by the
// attendance repository.
type AbsenceCounter interface {
	CountMemberAbsencesSince(ctx context.Context, memberID string, since time.Time) (int, error)
}

// RecomputeSummary reports what a reconciliation pass did.
type RecomputeSummary struct {
	MembersProcessed    int `json:"members_processed"`
	EarlyWarningCreated int `json:"early_warning_created"`
	AtRiskCreated       int `json:"at_risk_created"`
	CriticalCreated     int `json:"critical_created"`
	AlertsCreated       int `json:"alerts_created"`
}

// Tracker maintains each member's absence counter, engagement score and
// alert lifecycle from attendance outcomes.
type Tracker struct {
	repo    Repository
	alerts  AlertRepository
	counter AbsenceCounter
	logger  core.Logger
}

func NewTracker(repo Repository, alerts AlertRepository, counter AbsenceCounter, logger core.Logger) *Tracker {
	return &Tracker{
		repo:    repo,
		alerts:  alerts,
		counter: counter,
		logger:  logger,
	}
}

// Apply folds one attendance outcome into the member's engagement state.
// Visitors are never tracked.
func (t *Tracker) Apply(ctx context.Context, mbr Member, outcome Outcome) (Member, error) {
	if mbr.IsVisitor {
		return Member{}, ErrVisitorNotTracked
	}

	now := timeNow().UTC()
	switch outcome {
	case OutcomePresent:
		mbr.ConsecutiveAbsences = 0
		mbr.LastAttendanceDate = now
		if mbr.AttendanceStatus == StatusAtRisk || mbr.AttendanceStatus == StatusInactive {
			mbr.AttendanceStatus = StatusActive
		}
		mbr.EngagementScore = min(100, mbr.EngagementScore+scoreAttendanceBonus)

	case OutcomeAbsent:
		mbr.ConsecutiveAbsences++
		mbr.EngagementScore = max(0, mbr.EngagementScore-scoreAbsencePenalty)

		// alerts trigger on the exact count, not a range
		switch mbr.ConsecutiveAbsences {
		case EarlyWarningThreshold:
			mbr.AttendanceStatus = StatusAtRisk
			if err := t.createAlert(ctx, mbr.ID, AlertEarlyWarning,
				fmt.Sprintf("%d consecutive absences - Early warning threshold reached", mbr.ConsecutiveAbsences)); err != nil {
				return Member{}, err
			}
		case AtRiskThreshold:
			mbr.AttendanceStatus = StatusAtRisk
			if _, err := t.alerts.ResolveAlerts(ctx, mbr.ID, now, AlertEarlyWarning); err != nil {
				return Member{}, errors.Wrap(err, "resolving early warning alerts")
			}
			if err := t.createAlert(ctx, mbr.ID, AlertAtRisk,
				fmt.Sprintf("%d consecutive absences - Engagement concern threshold reached", mbr.ConsecutiveAbsences)); err != nil {
				return Member{}, err
			}
		case CriticalThreshold:
			mbr.AttendanceStatus = StatusInactive
			if _, err := t.alerts.ResolveAlerts(ctx, mbr.ID, now); err != nil {
				return Member{}, errors.Wrap(err, "resolving alerts")
			}
			if err := t.createAlert(ctx, mbr.ID, AlertCritical,
				fmt.Sprintf("%d consecutive absences - Critical alert: Extended absence detected", mbr.ConsecutiveAbsences)); err != nil {
				return Member{}, err
			}
		}

	default:
		return Member{}, errors.Errorf("unknown outcome %q", outcome)
	}

	mbr.UpdatedAt = now
	updated, err := t.repo.UpdateMember(ctx, mbr)
	if err != nil {
		return Member{}, errors.Wrap(err, "updating member engagement")
	}
	return updated, nil
}

// Recompute rebuilds every non-visitor member's tracker state from recorded
// attendance within the trailing ReconcileWindow. The absence counter is
// overwritten with the windowed count, and alerts are reconciled with
// range thresholds; safe to run repeatedly.
func (t *Tracker) Recompute(ctx context.Context) (RecomputeSummary, error) {
	var summary RecomputeSummary

	members, err := t.repo.QueryNonVisitorMembers(ctx)
	if err != nil {
		return summary, errors.Wrap(err, "querying members")
	}

	now := timeNow().UTC()
	since := now.Add(-ReconcileWindow)

	for i := range members {
		mbr := members[i]

		count, err := t.counter.CountMemberAbsencesSince(ctx, mbr.ID, since)
		if err != nil {
			return summary, errors.Wrapf(err, "counting absences for member %s", mbr.ID)
		}
		summary.MembersProcessed++
		mbr.ConsecutiveAbsences = count

		switch {
		case count == 0:
			mbr.AttendanceStatus = StatusActive
			if _, err = t.alerts.ResolveAlerts(ctx, mbr.ID, now); err != nil {
				return summary, errors.Wrap(err, "resolving alerts")
			}

		case count >= EarlyWarningThreshold && count < AtRiskThreshold:
			mbr.AttendanceStatus = StatusAtRisk
			created, err := t.ensureAlert(ctx, mbr.ID, AlertEarlyWarning,
				fmt.Sprintf("%d absences from sessions - Early warning threshold reached", count))
			if err != nil {
				return summary, err
			}
			if created {
				summary.EarlyWarningCreated++
				summary.AlertsCreated++
			}

		case count >= AtRiskThreshold && count < CriticalThreshold:
			mbr.AttendanceStatus = StatusAtRisk
			if _, err = t.alerts.ResolveAlerts(ctx, mbr.ID, now, AlertEarlyWarning); err != nil {
				return summary, errors.Wrap(err, "resolving early warning alerts")
			}
			created, err := t.ensureAlert(ctx, mbr.ID, AlertAtRisk,
				fmt.Sprintf("%d absences from sessions - Engagement concern threshold reached", count))
			if err != nil {
				return summary, err
			}
			if created {
				summary.AtRiskCreated++
				summary.AlertsCreated++
			}

		case count >= CriticalThreshold:
			mbr.AttendanceStatus = StatusInactive
			if _, err = t.alerts.ResolveAlerts(ctx, mbr.ID, now, AlertEarlyWarning, AlertAtRisk); err != nil {
				return summary, errors.Wrap(err, "resolving alerts")
			}
			created, err := t.ensureAlert(ctx, mbr.ID, AlertCritical,
				fmt.Sprintf("%d absences from sessions - Critical alert: Extended absence detected", count))
			if err != nil {
				return summary, err
			}
			if created {
				summary.CriticalCreated++
				summary.AlertsCreated++
			}
		}

		mbr.UpdatedAt = now
		if _, err = t.repo.UpdateMember(ctx, mbr); err != nil {
			return summary, errors.Wrapf(err, "updating member %s", mbr.ID)
		}
	}
	return summary, nil
}

// Resolve manually resolves an alert. Member engagement state is untouched.
func (t *Tracker) Resolve(ctx context.Context, alertID, notes string) (Alert, error) {
	alert, err := t.alerts.GetAlertByID(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	alert.IsResolved = true
	alert.ResolvedAt = timeNow().UTC()
	alert.ResolutionNotes = notes
	updated, err := t.alerts.UpdateAlert(ctx, alert)
	if err != nil {
		return Alert{}, errors.Wrap(err, "resolving alert")
	}
	return updated, nil
}

func (t *Tracker) createAlert(ctx context.Context, memberID, level, reason string) error {
	_, err := t.alerts.CreateAlert(ctx, Alert{
		MemberID:  memberID,
		Level:     level,
		Reason:    reason,
		CreatedAt: timeNow().UTC(),
	})
	return errors.Wrapf(err, "creating %s alert", level)
}

// ensureAlert creates an unresolved alert of the given level unless one
// already exists for the member.
func (t *Tracker) ensureAlert(ctx context.Context, memberID, level, reason string) (bool, error) {
	existing, err := t.alerts.QueryUnresolvedAlerts(ctx, memberID, level)
	if err != nil {
		return false, errors.Wrap(err, "querying unresolved alerts")
	}
	if len(existing) > 0 {
		return false, nil
	}
	if err = t.createAlert(ctx, memberID, level, reason); err != nil {
		return false, err
	}
	return true, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
