package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an admin or an employee. Only one admin row may exist (partial unique index on role).
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Role         string    `gorm:"type:varchar(20);not null;index;uniqueIndex:users_single_admin_idx,where:role = 'admin'" json:"role"`
	Name         string    `gorm:"type:varchar(80);not null;index:users_name_dob_idx" json:"name"`
	DOB          time.Time `gorm:"type:date;not null;index:users_name_dob_idx" json:"dob"`
	Email        *string   `gorm:"type:varchar(200)" json:"email,omitempty"`
	EmployeeCode *string   `gorm:"type:varchar(40);uniqueIndex" json:"employee_code,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if !ValidRole(u.Role) {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// EmailAddress returns the user's e-mail or "" when none is on file.
func (u *User) EmailAddress() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}

// Session is the server-side proof of a login. Expired and logged-out sessions are deleted.
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	IP        *string   `gorm:"type:varchar(64)" json:"ip,omitempty"`
	UserAgent *string   `gorm:"type:text" json:"user_agent,omitempty"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
