package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"leavemgmt/internal/leavecalc"
	"leavemgmt/internal/model"
	"leavemgmt/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxReasonLength  = 200
	maxCommentLength = 300

	// Listing caps.
	MyLeavesLimit       = 200
	PendingLeavesLimit  = 200
	EmployeeLeavesLimit = 400
)

// Live feed event names.
const (
	EventLeaveCreated = "leave.created"
	EventLeaveDecided = "leave.decided"
)

type ApplyLeaveRequest struct {
	StartDate     string   `json:"startDate" binding:"required"`
	EndDate       string   `json:"endDate" binding:"required"`
	ExcludedDates []string `json:"excludedDates"`
	Reason        string   `json:"reason" binding:"required,max=200"`
}

type DecisionRequest struct {
	Decision string  `json:"decision" binding:"required"`
	Comment  *string `json:"comment" binding:"omitempty,max=300"`
}

type LeaveResponse struct {
	ID            string    `json:"id"`
	StartDate     string    `json:"startDate"`
	EndDate       string    `json:"endDate"`
	ExcludedDates []string  `json:"excludedDates"`
	TotalDays     int       `json:"totalDays"`
	Reason        string    `json:"reason"`
	Status        string    `json:"status"`
	AdminComment  *string   `json:"adminComment"`
	CreatedAt     time.Time `json:"createdAt"`
}

type EmployeeResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	EmployeeCode *string `json:"employeeCode"`
}

// LeaveEvent is the live feed payload for both created and decided requests.
type LeaveEvent struct {
	Leave      LeaveResponse `json:"leave"`
	EmployeeID string        `json:"employeeId"`
}

// LeaveNotifier sends the mails that follow lifecycle transitions.
type LeaveNotifier interface {
	NotifyNewLeave(ctx context.Context, admin, employee *model.User, leave *model.LeaveRequest) NotifyResult
	NotifyDecision(ctx context.Context, employee *model.User, leave *model.LeaveRequest) NotifyResult
}

// EventPublisher fans lifecycle events out to connected admins.
type EventPublisher interface {
	Publish(event string, payload interface{})
}

type LeaveService interface {
	Apply(ctx context.Context, employee *model.User, req ApplyLeaveRequest) (*LeaveResponse, error)
	Decide(ctx context.Context, admin *model.User, leaveID string, req DecisionRequest) (*LeaveResponse, error)
	ListMine(ctx context.Context, employee *model.User, month string) ([]LeaveResponse, error)
	ListMyPending(ctx context.Context, employee *model.User) ([]LeaveResponse, error)
	ListPending(ctx context.Context, admin *model.User, employeeID, month string) ([]LeaveResponse, error)
	ListForEmployee(ctx context.Context, admin *model.User, employeeID, month string) ([]LeaveResponse, error)
	ListEmployees(ctx context.Context, admin *model.User) ([]EmployeeResponse, error)
}

type leaveService struct {
	tx        repository.TransactionManager
	leaves    repository.LeaveRepository
	users     repository.UserRepository
	audit     repository.AuditRepository
	notifier  LeaveNotifier
	publisher EventPublisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewLeaveService returns a new instance of LeaveService. notifier and publisher may be nil.
func NewLeaveService(tx repository.TransactionManager, leaves repository.LeaveRepository, users repository.UserRepository, audit repository.AuditRepository, notifier LeaveNotifier, publisher EventPublisher, now func() time.Time, logger *slog.Logger) LeaveService {
	if now == nil {
		now = time.Now
	}
	return &leaveService{
		tx:        tx,
		leaves:    leaves,
		users:     users,
		audit:     audit,
		notifier:  notifier,
		publisher: publisher,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

func (s *leaveService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LeaveService", operation, attrs...)
}

func toLeaveResponse(l *model.LeaveRequest) LeaveResponse {
	excluded := l.ExcludedDates
	if excluded == nil {
		excluded = []string{}
	}
	return LeaveResponse{
		ID:            l.ID.String(),
		StartDate:     l.StartDate.Format(leavecalc.DateLayout),
		EndDate:       l.EndDate.Format(leavecalc.DateLayout),
		ExcludedDates: excluded,
		TotalDays:     l.TotalDays,
		Reason:        l.Reason,
		Status:        l.Status,
		AdminComment:  l.AdminComment,
		CreatedAt:     l.CreatedAt,
	}
}

func toLeaveResponses(leaves []model.LeaveRequest) []LeaveResponse {
	out := make([]LeaveResponse, 0, len(leaves))
	for i := range leaves {
		out = append(out, toLeaveResponse(&leaves[i]))
	}
	return out
}

// Apply records a pending request for the calling employee. The admin mail and live feed event are
// sent after commit; their failure never affects the result.
func (s *leaveService) Apply(ctx context.Context, employee *model.User, req ApplyLeaveRequest) (resp *LeaveResponse, err error) {
	logger := s.loggerWith(ctx, "Apply")
	defer func() {
		if resp != nil {
			logOutcome(ctx, logger, err, "leave application", "leave_id", resp.ID, "total_days", resp.TotalDays)
			return
		}
		logOutcome(ctx, logger, err, "leave application")
	}()

	if _, err := RequireRole(employee, model.RoleEmployee); err != nil {
		return nil, err
	}

	start, err := leavecalc.ParseDate(strings.TrimSpace(req.StartDate))
	if err != nil {
		return nil, validationError("startDate must be YYYY-MM-DD")
	}
	end, err := leavecalc.ParseDate(strings.TrimSpace(req.EndDate))
	if err != nil {
		return nil, validationError("endDate must be YYYY-MM-DD")
	}
	excluded := make([]time.Time, 0, len(req.ExcludedDates))
	for _, raw := range req.ExcludedDates {
		d, err := leavecalc.ParseDate(strings.TrimSpace(raw))
		if err != nil {
			return nil, validationError("excluded date %q must be YYYY-MM-DD", raw)
		}
		excluded = append(excluded, d)
	}

	total, normalized, err := leavecalc.ComputeDays(start, end, excluded)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" || utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, validationError("reason must be 1..%d characters", maxReasonLength)
	}

	leave := &model.LeaveRequest{
		EmployeeID:    employee.ID,
		StartDate:     start,
		EndDate:       end,
		ExcludedDates: normalized,
		TotalDays:     total,
		Reason:        reason,
		Status:        model.LeaveStatusPending,
		CreatedAt:     s.now().UTC(),
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.leaves.Create(txCtx, leave); err != nil {
			return fmt.Errorf("create leave request: %w", err)
		}
		if err := s.audit.Record(txCtx, &employee.ID, model.ActionApplyLeave, leave.ID.String(), employee.Name, map[string]interface{}{
			"start_date":     start.Format(leavecalc.DateLayout),
			"end_date":       end.Format(leavecalc.DateLayout),
			"excluded_dates": normalized,
			"total_days":     total,
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := toLeaveResponse(leave)
	s.afterCommit(ctx, EventLeaveCreated, LeaveEvent{Leave: out, EmployeeID: employee.ID.String()}, func(bg context.Context) *NotifyResult {
		admin, err := s.users.FirstAdmin(bg)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				logger.WarnContext(bg, "failed to load admin for notification", "error", err)
			}
			return nil
		}
		result := s.notifier.NotifyNewLeave(bg, admin, employee, leave)
		return &result
	})
	return &out, nil
}

// Decide moves a pending request to approved or rejected exactly once.
func (s *leaveService) Decide(ctx context.Context, admin *model.User, leaveID string, req DecisionRequest) (resp *LeaveResponse, err error) {
	logger := s.loggerWith(ctx, "Decide", "leave_id", leaveID, "decision", req.Decision)
	defer func() { logOutcome(ctx, logger, err, "leave decision") }()

	if _, err := RequireRole(admin, model.RoleAdmin); err != nil {
		return nil, err
	}

	decision := strings.TrimSpace(req.Decision)
	if decision != model.LeaveStatusApproved && decision != model.LeaveStatusRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, req.Decision)
	}

	var comment *string
	if req.Comment != nil {
		comment = optionalString(*req.Comment)
		if comment != nil && utf8.RuneCountInString(*comment) > maxCommentLength {
			return nil, validationError("comment must be at most %d characters", maxCommentLength)
		}
	}

	id, err := uuid.Parse(strings.TrimSpace(leaveID))
	if err != nil {
		return nil, fmt.Errorf("%w: leave request %s", ErrNotFound, leaveID)
	}

	var leave *model.LeaveRequest
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		applied, err := s.leaves.DecidePending(txCtx, id, repository.LeaveDecision{
			Status:    decision,
			Comment:   comment,
			DecidedBy: admin.ID,
			DecidedAt: s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("decide leave request: %w", err)
		}

		leave, err = s.leaves.FindByID(txCtx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: leave request %s", ErrNotFound, id)
			}
			return err
		}
		if !applied {
			return fmt.Errorf("%w: status is %s", ErrAlreadyDecided, leave.Status)
		}

		action := model.ActionRejectLeave
		if decision == model.LeaveStatusApproved {
			action = model.ActionApproveLeave
		}
		if err := s.audit.Record(txCtx, &admin.ID, action, leave.ID.String(), admin.Name, map[string]interface{}{
			"employee_id": leave.EmployeeID.String(),
			"comment":     comment,
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := toLeaveResponse(leave)
	s.afterCommit(ctx, EventLeaveDecided, LeaveEvent{Leave: out, EmployeeID: leave.EmployeeID.String()}, func(bg context.Context) *NotifyResult {
		employee, err := s.users.GetByID(bg, leave.EmployeeID)
		if err != nil {
			logger.WarnContext(bg, "failed to load employee for notification", "error", err)
			return nil
		}
		result := s.notifier.NotifyDecision(bg, employee, leave)
		return &result
	})
	return &out, nil
}

// afterCommit publishes the live feed event and runs notify on a context that outlives the request.
func (s *leaveService) afterCommit(ctx context.Context, event string, payload LeaveEvent, notify func(context.Context) *NotifyResult) {
	if s.publisher != nil {
		s.publisher.Publish(event, payload)
	}
	if s.notifier == nil {
		return
	}

	bg := context.WithoutCancel(ctx)
	logger := s.loggerWith(bg, "notify", "event", event, "leave_id", payload.Leave.ID)
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(bg, "notification panicked", "panic", r)
		}
	}()

	result := notify(bg)
	if result == nil {
		return
	}
	if result.Delivered {
		logger.InfoContext(bg, "notification handled", "message", result.Message)
		return
	}
	logger.WarnContext(bg, "notification not delivered", "message", result.Message)
}

func (s *leaveService) ListMine(ctx context.Context, employee *model.User, month string) ([]LeaveResponse, error) {
	if _, err := RequireRole(employee, model.RoleEmployee); err != nil {
		return nil, err
	}
	filter := repository.LeaveFilter{EmployeeID: &employee.ID, Limit: MyLeavesLimit}
	if err := applyMonth(&filter, month); err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

func (s *leaveService) ListMyPending(ctx context.Context, employee *model.User) ([]LeaveResponse, error) {
	if _, err := RequireRole(employee, model.RoleEmployee); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.LeaveFilter{EmployeeID: &employee.ID, Status: model.LeaveStatusPending, Limit: MyLeavesLimit})
}

func (s *leaveService) ListPending(ctx context.Context, admin *model.User, employeeID, month string) ([]LeaveResponse, error) {
	if _, err := RequireRole(admin, model.RoleAdmin); err != nil {
		return nil, err
	}
	filter := repository.LeaveFilter{Status: model.LeaveStatusPending, Limit: PendingLeavesLimit}
	if strings.TrimSpace(employeeID) != "" {
		id, err := parseID(employeeID, "employeeId")
		if err != nil {
			return nil, err
		}
		filter.EmployeeID = &id
	}
	if err := applyMonth(&filter, month); err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

func (s *leaveService) ListForEmployee(ctx context.Context, admin *model.User, employeeID, month string) ([]LeaveResponse, error) {
	if _, err := RequireRole(admin, model.RoleAdmin); err != nil {
		return nil, err
	}
	id, err := parseID(employeeID, "employee id")
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: employee %s", ErrNotFound, id)
		}
		return nil, err
	}
	if user.Role != model.RoleEmployee {
		return nil, fmt.Errorf("%w: employee %s", ErrNotFound, id)
	}

	filter := repository.LeaveFilter{EmployeeID: &id, Limit: EmployeeLeavesLimit}
	if err := applyMonth(&filter, month); err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

func (s *leaveService) ListEmployees(ctx context.Context, admin *model.User) ([]EmployeeResponse, error) {
	if _, err := RequireRole(admin, model.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.users.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EmployeeResponse, 0, len(users))
	for _, u := range users {
		out = append(out, EmployeeResponse{ID: u.ID.String(), Name: u.Name, EmployeeCode: u.EmployeeCode})
	}
	return out, nil
}

func (s *leaveService) list(ctx context.Context, filter repository.LeaveFilter) ([]LeaveResponse, error) {
	leaves, err := s.leaves.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return toLeaveResponses(leaves), nil
}

// MonthWindow returns [first day of month, first day of next month) for a YYYY-MM string.
func MonthWindow(month string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01", strings.TrimSpace(month), time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, validationError("month must be YYYY-MM")
	}
	return start, start.AddDate(0, 1, 0), nil
}

func applyMonth(filter *repository.LeaveFilter, month string) error {
	if strings.TrimSpace(month) == "" {
		return nil
	}
	from, before, err := MonthWindow(month)
	if err != nil {
		return err
	}
	filter.CreatedFrom = &from
	filter.CreatedBefore = &before
	return nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, validationError("%s must be a uuid", field)
	}
	return id, nil
}
