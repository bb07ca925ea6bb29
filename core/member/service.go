package member

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/katembo/kanisa/core"
)

var (
	// errors
	ErrNotFound          = errors.New("member not found")
	ErrCodeExists        = errors.New("a member with this code already exists")
	ErrAlertNotFound     = errors.New("alert not found")
	ErrVisitorNotTracked = errors.New("visitors do not participate in attendance tracking")
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string) error
		CreateMember(ctx context.Context, mbr Member) (Member, error)
		QueryAllMembers(ctx context.Context) ([]Member, error)
		QueryNonVisitorMembers(ctx context.Context) ([]Member, error)
		GetMemberByID(ctx context.Context, id string) (Member, error)
		GetMemberByCode(ctx context.Context, code string) (Member, error)
		// FilterMembers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Member.FullName, Member.Code or Member.Email.
		FilterMembers(ctx context.Context, filter QueryFilter) ([]Member, error)
		UpdateMember(ctx context.Context, mbr Member) (Member, error)
		// DeleteMembersByID cascades to attendance, alerts and contact logs.
		DeleteMembersByID(ctx context.Context, ids ...string) error
	}

	AlertRepository interface {
		CreateAlert(ctx context.Context, alert Alert) (Alert, error)
		GetAlertByID(ctx context.Context, id string) (Alert, error)
		QueryAlertsByMember(ctx context.Context, memberID string) ([]Alert, error)
		// QueryUnresolvedAlerts filters by the given levels; no levels means all.
		QueryUnresolvedAlerts(ctx context.Context, memberID string, levels ...string) ([]Alert, error)
		CountUnresolvedAlertsByLevel(ctx context.Context) (map[string]int, error)
		UpdateAlert(ctx context.Context, alert Alert) (Alert, error)
		// ResolveAlerts marks the member's unresolved alerts of the given levels
		// (all levels when none given) resolved at `at`; returns how many changed.
		ResolveAlerts(ctx context.Context, memberID string, at time.Time, levels ...string) (int, error)
	}

	ContactLogRepository interface {
		CreateContactLog(ctx context.Context, cl ContactLog) (ContactLog, error)
		QueryContactLogsByMember(ctx context.Context, memberID string) ([]ContactLog, error)
	}

	Service interface {
		CheckCodeUniqueness(code string) error
		Create(ctx context.Context, nm NewMember) (Member, error)
		QueryAll(ctx context.Context) ([]Member, error)
		GetByID(ctx context.Context, id string) (Member, error)
		GetByCode(ctx context.Context, code string) (Member, error)
		Filter(ctx context.Context, filter QueryFilter) ([]Member, error)
		Update(ctx context.Context, id string, um UpdateMember) (Member, error)
		Delete(ctx context.Context, ids ...string) error

		LogContact(ctx context.Context, memberID string, nc NewContactLog) (ContactLog, error)
		ContactHistory(ctx context.Context, memberID string) ([]ContactLog, error)

		Alerts(ctx context.Context, memberID string) ([]Alert, error)
		AtRiskGroups(ctx context.Context) (AlertGroups, error)
	}

	service struct {
		repo     Repository
		alerts   AlertRepository
		contacts ContactLogRepository
		mailSvc  core.EmailService
		conf     *core.Config
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	alerts AlertRepository,
	contacts ContactLogRepository,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		alerts:   alerts,
		contacts: contacts,
		mailSvc:  mailSvc,
		conf:     conf,
		logger:   logger,
	}
}

func (svc *service) CheckCodeUniqueness(code string) error {
	if err := svc.repo.CheckCodeUniqueness(context.Background(), code); err != nil {
		if err == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nm NewMember) (Member, error) {
	now := time.Now().UTC()
	code := nm.Code
	if code == "" {
		code = generateCode()
	}
	mbr := Member{
		Code:             code,
		FullName:         nm.FullName,
		Phone:            nm.Phone,
		Email:            nm.Email,
		Department:       nm.Department,
		Group:            nm.Group,
		IsVisitor:        nm.IsVisitor,
		AttendanceStatus: StatusActive,
		EngagementScore:  100,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	mbr, err := svc.repo.CreateMember(ctx, mbr)
	if err != nil {
		return Member{}, err
	}

	// best effort; a failed welcome email never rolls back the registration
	svc.sendWelcomeMail(mbr)

	return mbr, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Member, error) {
	return svc.repo.QueryAllMembers(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMemberByID(ctx, id)
}

func (svc *service) GetByCode(ctx context.Context, code string) (Member, error) {
	return svc.repo.GetMemberByCode(ctx, core.CleanString(code))
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]Member, error) {
	if filter.IsEmpty() {
		return svc.repo.QueryAllMembers(ctx)
	}
	filter.Clean()
	return svc.repo.FilterMembers(ctx, filter)
}

func (svc *service) Update(ctx context.Context, id string, um UpdateMember) (Member, error) {
	mbr, err := svc.repo.GetMemberByID(ctx, id)
	if err != nil {
		return Member{}, err
	}
	mbr.FullName = um.FullName
	if um.Phone != "" {
		mbr.Phone = um.Phone
	}
	if um.Email != "" {
		mbr.Email = um.Email
	}
	if um.Department != "" {
		mbr.Department = um.Department
	}
	if um.Group != "" {
		mbr.Group = um.Group
	}
	if um.IsVisitor != nil {
		mbr.IsVisitor = *um.IsVisitor
	}
	if um.PastoralNotes != "" {
		mbr.PastoralNotes = um.PastoralNotes
	}
	mbr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMember(ctx, mbr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteMembersByID(ctx, ids...)
}

func (svc *service) LogContact(ctx context.Context, memberID string, nc NewContactLog) (ContactLog, error) {
	mbr, err := svc.repo.GetMemberByID(ctx, memberID)
	if err != nil {
		return ContactLog{}, err
	}

	now := time.Now().UTC()
	cl, err := svc.contacts.CreateContactLog(ctx, ContactLog{
		MemberID:       mbr.ID,
		Method:         nc.Method,
		MessageSent:    nc.MessageSent,
		ContactedBy:    nc.ContactedBy,
		FollowUpNeeded: nc.FollowUpNeeded,
		FollowUpDate:   nc.FollowUpDate,
		ContactDate:    now,
	})
	if err != nil {
		return ContactLog{}, err
	}

	mbr.LastContactDate = now
	mbr.UpdatedAt = now
	if _, err = svc.repo.UpdateMember(ctx, mbr); err != nil {
		return ContactLog{}, err
	}
	return cl, nil
}

func (svc *service) ContactHistory(ctx context.Context, memberID string) ([]ContactLog, error) {
	if _, err := svc.repo.GetMemberByID(ctx, memberID); err != nil {
		return nil, err
	}
	return svc.contacts.QueryContactLogsByMember(ctx, memberID)
}

func (svc *service) Alerts(ctx context.Context, memberID string) ([]Alert, error) {
	if _, err := svc.repo.GetMemberByID(ctx, memberID); err != nil {
		return nil, err
	}
	return svc.alerts.QueryAlertsByMember(ctx, memberID)
}

// AtRiskGroups returns the non-visitor members needing pastoral attention,
// grouped by the alert level their current absence count falls in.
func (svc *service) AtRiskGroups(ctx context.Context) (AlertGroups, error) {
	members, err := svc.repo.QueryNonVisitorMembers(ctx)
	if err != nil {
		return AlertGroups{}, err
	}

	groups := AlertGroups{
		EarlyWarning: []Member{},
		AtRisk:       []Member{},
		Critical:     []Member{},
	}
	for _, mbr := range members {
		switch {
		case mbr.ConsecutiveAbsences >= CriticalThreshold && mbr.AttendanceStatus == StatusInactive:
			groups.Critical = append(groups.Critical, mbr)
		case mbr.ConsecutiveAbsences >= AtRiskThreshold && mbr.AttendanceStatus == StatusAtRisk:
			groups.AtRisk = append(groups.AtRisk, mbr)
		case mbr.ConsecutiveAbsences >= EarlyWarningThreshold && mbr.AttendanceStatus == StatusAtRisk:
			groups.EarlyWarning = append(groups.EarlyWarning, mbr)
		}
	}
	return groups, nil
}

func (svc *service) sendWelcomeMail(mbr Member) {
	if mbr.IsVisitor || mbr.Email == "" {
		return
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: mbr.FullName, Address: mbr.Email}},
		Subject:      fmt.Sprintf("Your %s Attendance QR Code", svc.conf.ChurchName),
		TemplateName: "welcome-qr-code",
		TemplateData: struct {
			FullName string
			Code     string
		}{mbr.FullName, mbr.Code},
	}

	png, err := qrcode.Encode(mbr.Code, qrcode.Medium, 256)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("generating QR code for member %s: %v", mbr.Code, err), err)
	} else if err = msg.Attach(bytes.NewReader(png), fmt.Sprintf("qr_code_%s.png", mbr.Code), "image/png"); err != nil {
		svc.logger.Error(fmt.Sprintf("attaching QR code for member %s: %v", mbr.Code, err), err)
	}

	svc.mailSvc.SendMessages(msg)
}

// generateCode issues a short, stable external member ID.
func generateCode() string {
	return strings.ToUpper(uuid.New().String()[:8])
}
