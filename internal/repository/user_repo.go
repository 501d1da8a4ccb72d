package repository

import (
	"context"
	"time"

	"leavemgmt/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByNameAndDOB(ctx context.Context, name string, dob time.Time) (*model.User, error)
	GetByEmployeeCode(ctx context.Context, code string) (*model.User, error)
	FirstAdmin(ctx context.Context) (*model.User, error)
	ListEmployees(ctx context.Context) ([]model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByNameAndDOB(ctx context.Context, name string, dob time.Time) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Where("name = ? AND dob = ?", name, dob).Order("created_at ASC").First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmployeeCode(ctx context.Context, code string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "employee_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FirstAdmin(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Where("role = ?", model.RoleAdmin).Order("created_at ASC").First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListEmployees(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := GetDB(ctx, r.db).Where("role = ?", model.RoleEmployee).Order("name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
