package repository

import (
	"context"
	"time"

	"leavemgmt/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeaveFilter narrows leave request listings. Zero values mean "no filter".
type LeaveFilter struct {
	EmployeeID    *uuid.UUID
	Status        string
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	Limit         int
}

// LeaveDecision is the single state change a pending leave request can undergo.
type LeaveDecision struct {
	Status    string
	Comment   *string
	DecidedBy uuid.UUID
	DecidedAt time.Time
}

type LeaveRepository interface {
	Create(ctx context.Context, leave *model.LeaveRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.LeaveRequest, error)
	DecidePending(ctx context.Context, id uuid.UUID, decision LeaveDecision) (bool, error)
	List(ctx context.Context, filter LeaveFilter) ([]model.LeaveRequest, error)
}

type leaveRepository struct {
	db *gorm.DB
}

func NewLeaveRepository(db *gorm.DB) LeaveRepository {
	return &leaveRepository{db: db}
}

func (r *leaveRepository) Create(ctx context.Context, leave *model.LeaveRequest) error {
	return GetDB(ctx, r.db).Create(leave).Error
}

func (r *leaveRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.LeaveRequest, error) {
	var leave model.LeaveRequest
	if err := GetDB(ctx, r.db).First(&leave, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &leave, nil
}

// DecidePending applies decision only while the row is still pending and reports whether it did.
// The status guard in the WHERE clause makes concurrent decisions race-free.
func (r *leaveRepository) DecidePending(ctx context.Context, id uuid.UUID, decision LeaveDecision) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.LeaveRequest{}).
		Where("id = ? AND status = ?", id, model.LeaveStatusPending).
		Updates(map[string]interface{}{
			"status":                   decision.Status,
			"admin_comment":            decision.Comment,
			"decided_by_admin_user_id": decision.DecidedBy,
			"decided_at":               decision.DecidedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *leaveRepository) List(ctx context.Context, filter LeaveFilter) ([]model.LeaveRequest, error) {
	query := GetDB(ctx, r.db).Model(&model.LeaveRequest{})
	if filter.EmployeeID != nil {
		query = query.Where("employee_user_id = ?", *filter.EmployeeID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var leaves []model.LeaveRequest
	if err := query.Order("created_at DESC").Find(&leaves).Error; err != nil {
		return nil, err
	}
	return leaves, nil
}
