package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionAdminSetup        = "ADMIN_SETUP"
	ActionRegisterEmployee  = "REGISTER_EMPLOYEE"
	ActionApplyLeave        = "APPLY_LEAVE"
	ActionApproveLeave      = "APPROVE_LEAVE"
	ActionRejectLeave       = "REJECT_LEAVE"
	ActionUpdateEmailConfig = "UPDATE_EMAIL_CONFIG"
)

// AuditLog tracks Who, What, and When for state changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
