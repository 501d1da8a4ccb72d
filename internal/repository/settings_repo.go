package repository

import (
	"context"
	"time"

	"leavemgmt/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmailConfigRepository exposes the single email_config row.
type EmailConfigRepository interface {
	Get(ctx context.Context) (*model.EmailConfig, error)
	Save(ctx context.Context, cfg *model.EmailConfig) error
}

type emailConfigRepository struct {
	db *gorm.DB
}

func NewEmailConfigRepository(db *gorm.DB) EmailConfigRepository {
	return &emailConfigRepository{db: db}
}

// Get returns the configuration row, inserting the defaults on first access.
func (r *emailConfigRepository) Get(ctx context.Context) (*model.EmailConfig, error) {
	db := GetDB(ctx, r.db)
	defaults := model.EmailConfig{
		ID:        model.EmailConfigID,
		Provider:  model.EmailProviderCustomSMTP,
		Mode:      model.EmailModeSMTP,
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
		return nil, err
	}

	var cfg model.EmailConfig
	if err := db.First(&cfg, "id = ?", model.EmailConfigID).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *emailConfigRepository) Save(ctx context.Context, cfg *model.EmailConfig) error {
	cfg.ID = model.EmailConfigID
	return GetDB(ctx, r.db).Save(cfg).Error
}

// AppSettingRepository is a small key/value store for one-time flags.
type AppSettingRepository interface {
	Get(ctx context.Context, key string) (*model.AppSetting, error)
	Set(ctx context.Context, key, value string) error
	Claim(ctx context.Context, key string) (bool, error)
}

type appSettingRepository struct {
	db *gorm.DB
}

func NewAppSettingRepository(db *gorm.DB) AppSettingRepository {
	return &appSettingRepository{db: db}
}

func (r *appSettingRepository) Get(ctx context.Context, key string) (*model.AppSetting, error) {
	var setting model.AppSetting
	if err := GetDB(ctx, r.db).Where(map[string]interface{}{"key": key}).First(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

// Set inserts or overwrites key.
func (r *appSettingRepository) Set(ctx context.Context, key, value string) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.AppSetting{Key: key, Value: value}).Error
}

// Claim flips key to "1" and reports whether this call was the one that flipped it.
// Both branches are single atomic statements, so concurrent callers see exactly one winner.
func (r *appSettingRepository) Claim(ctx context.Context, key string) (bool, error) {
	db := GetDB(ctx, r.db)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.AppSetting{Key: key, Value: "1"})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = db.Model(&model.AppSetting{}).
		Where(map[string]interface{}{"key": key}).
		Where("value <> ?", "1").
		Update("value", "1")
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
