package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Leave request statuses. pending moves exactly once to approved or rejected.
const (
	LeaveStatusPending  = "pending"
	LeaveStatusApproved = "approved"
	LeaveStatusRejected = "rejected"
)

// LeaveRequest is an employee's application for an inclusive date range.
// TotalDays is always derived from StartDate, EndDate and ExcludedDates.
type LeaveRequest struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EmployeeID    uuid.UUID  `gorm:"column:employee_user_id;type:uuid;not null;index:leave_employee_created_idx,priority:1" json:"employee_id"`
	Employee      *User      `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE" json:"employee,omitempty"`
	StartDate     time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate       time.Time  `gorm:"type:date;not null" json:"end_date"`
	ExcludedDates []string   `gorm:"type:jsonb;serializer:json;not null" json:"excluded_dates"`
	TotalDays     int        `gorm:"not null" json:"total_days"`
	Reason        string     `gorm:"type:text;not null" json:"reason"`
	Status        string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	AdminComment  *string    `gorm:"type:text" json:"admin_comment"`
	DecidedByID   *uuid.UUID `gorm:"column:decided_by_admin_user_id;type:uuid" json:"decided_by"`
	DecidedBy     *User      `gorm:"foreignKey:DecidedByID;constraint:OnDelete:SET NULL" json:"-"`
	DecidedAt     *time.Time `json:"decided_at"`
	CreatedAt     time.Time  `gorm:"not null;index:leave_employee_created_idx,priority:2" json:"created_at"`
}

func (l *LeaveRequest) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.ExcludedDates == nil {
		l.ExcludedDates = []string{}
	}
	return nil
}
