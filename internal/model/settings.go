package model

import "time"

// EmailConfigID is the fixed key of the single email_config row.
const EmailConfigID = 1

const (
	EmailModeSMTP           = "smtp"
	EmailProviderCustomSMTP = "custom_smtp"
)

// EmailConfig is the singleton outbound-mail configuration. Secret columns hold ciphertext only.
type EmailConfig struct {
	ID          int       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Enabled     bool      `gorm:"not null;default:false" json:"enabled"`
	Provider    string    `gorm:"type:varchar(50);not null;default:'custom_smtp'" json:"provider"`
	Mode        string    `gorm:"type:varchar(20);not null;default:'smtp'" json:"mode"`
	SMTPHost    *string   `gorm:"column:smtp_host;type:varchar(255)" json:"smtp_host"`
	SMTPPort    *int      `gorm:"column:smtp_port" json:"smtp_port"`
	SMTPUser    *string   `gorm:"column:smtp_user;type:varchar(255)" json:"smtp_user"`
	SMTPPassEnc *string   `gorm:"column:smtp_pass_enc;type:text" json:"-"`
	APIKeyEnc   *string   `gorm:"column:api_key_enc;type:text" json:"-"`
	SenderEmail *string   `gorm:"type:varchar(255)" json:"sender_email"`
	SenderName  *string   `gorm:"type:varchar(255)" json:"sender_name"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (EmailConfig) TableName() string { return "email_config" }

// Complete reports whether the configuration can be used to send SMTP mail. It never decrypts.
func (c *EmailConfig) Complete() bool {
	if c == nil || !c.Enabled || c.Mode != EmailModeSMTP {
		return false
	}
	return nonEmpty(c.SMTPHost) && c.SMTPPort != nil && *c.SMTPPort > 0 &&
		nonEmpty(c.SMTPUser) && nonEmpty(c.SMTPPassEnc) &&
		nonEmpty(c.SenderEmail) && nonEmpty(c.SenderName)
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

// SettingAdminSetupUsed records that the one-time admin setup code has been consumed.
const SettingAdminSetupUsed = "admin_setup_used"

// AppSetting is a generic key/value flag row.
type AppSetting struct {
	Key   string `gorm:"type:varchar(100);primaryKey" json:"key"`
	Value string `gorm:"type:varchar(255);not null" json:"value"`
}
