package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"leavemgmt/internal/i18n"
	"leavemgmt/internal/leavecalc"
	"leavemgmt/internal/mailer"
	"leavemgmt/internal/model"
	"leavemgmt/internal/repository"
)

// CredentialCipher encrypts provider secrets at rest.
type CredentialCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

type EmailConfigRequest struct {
	Enabled     bool    `json:"enabled"`
	Provider    string  `json:"provider" binding:"omitempty,max=50"`
	Mode        string  `json:"mode" binding:"omitempty,oneof=smtp"`
	SMTPHost    *string `json:"smtpHost" binding:"omitempty,max=255"`
	SMTPPort    *int    `json:"smtpPort" binding:"omitempty,min=1,max=65535"`
	SMTPUser    *string `json:"smtpUser" binding:"omitempty,max=255"`
	SMTPPass    *string `json:"smtpPass"`
	APIKey      *string `json:"apiKey"`
	SenderEmail *string `json:"senderEmail" binding:"omitempty,max=255"`
	SenderName  *string `json:"senderName" binding:"omitempty,max=255"`
}

// EmailConfigResponse never carries secrets; HasSMTPPass/HasAPIKey only say whether one is stored.
type EmailConfigResponse struct {
	Enabled     bool      `json:"enabled"`
	Provider    string    `json:"provider"`
	Mode        string    `json:"mode"`
	SMTPHost    *string   `json:"smtpHost"`
	SMTPPort    *int      `json:"smtpPort"`
	SMTPUser    *string   `json:"smtpUser"`
	HasSMTPPass bool      `json:"hasSmtpPass"`
	HasAPIKey   bool      `json:"hasApiKey"`
	SenderEmail *string   `json:"senderEmail"`
	SenderName  *string   `json:"senderName"`
	IsValid     bool      `json:"isValid"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type TestEmailResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// NotifyResult is the outcome of a best-effort delivery. Skipped deliveries count as delivered.
type NotifyResult struct {
	Delivered bool
	Message   string
}

type EmailService interface {
	GetConfig(ctx context.Context) (*EmailConfigResponse, error)
	UpdateConfig(ctx context.Context, admin *model.User, req EmailConfigRequest) (*EmailConfigResponse, error)
	SendTest(ctx context.Context, admin *model.User) (*TestEmailResponse, error)
	Notify(ctx context.Context, recipient, subject, body string) NotifyResult
	LeaveNotifier
}

type emailService struct {
	tx      repository.TransactionManager
	configs repository.EmailConfigRepository
	audit   repository.AuditRepository
	cipher  CredentialCipher
	sender  mailer.Sender
	tr      *i18n.Translator
	now     func() time.Time
	logger  *slog.Logger
}

// NewEmailService returns a new instance of EmailService
func NewEmailService(tx repository.TransactionManager, configs repository.EmailConfigRepository, audit repository.AuditRepository, cipher CredentialCipher, sender mailer.Sender, tr *i18n.Translator, logger *slog.Logger) EmailService {
	return &emailService{
		tx:      tx,
		configs: configs,
		audit:   audit,
		cipher:  cipher,
		sender:  sender,
		tr:      tr,
		now:     time.Now,
		logger:  defaultLogger(logger),
	}
}

func (s *emailService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EmailService", operation, attrs...)
}

func toEmailConfigResponse(cfg *model.EmailConfig) *EmailConfigResponse {
	return &EmailConfigResponse{
		Enabled:     cfg.Enabled,
		Provider:    cfg.Provider,
		Mode:        cfg.Mode,
		SMTPHost:    cfg.SMTPHost,
		SMTPPort:    cfg.SMTPPort,
		SMTPUser:    cfg.SMTPUser,
		HasSMTPPass: nonEmptyPtr(cfg.SMTPPassEnc),
		HasAPIKey:   nonEmptyPtr(cfg.APIKeyEnc),
		SenderEmail: cfg.SenderEmail,
		SenderName:  cfg.SenderName,
		IsValid:     cfg.Complete(),
		UpdatedAt:   cfg.UpdatedAt,
	}
}

func (s *emailService) GetConfig(ctx context.Context) (*EmailConfigResponse, error) {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return nil, err
	}
	return toEmailConfigResponse(cfg), nil
}

// UpdateConfig replaces the plain fields and re-encrypts a secret only when a non-empty value is supplied.
func (s *emailService) UpdateConfig(ctx context.Context, admin *model.User, req EmailConfigRequest) (resp *EmailConfigResponse, err error) {
	logger := s.loggerWith(ctx, "UpdateConfig")
	defer func() { logOutcome(ctx, logger, err, "email config update", "enabled", req.Enabled) }()

	if _, err := RequireRole(admin, model.RoleAdmin); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		cfg, err := s.configs.Get(txCtx)
		if err != nil {
			return err
		}

		cfg.Enabled = req.Enabled
		cfg.Provider = defaultString(req.Provider, model.EmailProviderCustomSMTP)
		cfg.Mode = defaultString(req.Mode, model.EmailModeSMTP)
		cfg.SMTPHost = trimmedPtr(req.SMTPHost)
		cfg.SMTPPort = req.SMTPPort
		cfg.SMTPUser = trimmedPtr(req.SMTPUser)
		cfg.SenderEmail = trimmedPtr(req.SenderEmail)
		cfg.SenderName = trimmedPtr(req.SenderName)

		if req.SMTPPass != nil && *req.SMTPPass != "" {
			enc, err := s.cipher.Encrypt(*req.SMTPPass)
			if err != nil {
				return fmt.Errorf("encrypt smtp password: %w", err)
			}
			cfg.SMTPPassEnc = &enc
		}
		if req.APIKey != nil && *req.APIKey != "" {
			enc, err := s.cipher.Encrypt(*req.APIKey)
			if err != nil {
				return fmt.Errorf("encrypt api key: %w", err)
			}
			cfg.APIKeyEnc = &enc
		}
		cfg.UpdatedAt = s.now().UTC()

		if err := s.configs.Save(txCtx, cfg); err != nil {
			return err
		}

		if err := s.audit.Record(txCtx, &admin.ID, model.ActionUpdateEmailConfig, strconv.Itoa(cfg.ID), "email_config", map[string]interface{}{
			"enabled":           cfg.Enabled,
			"provider":          cfg.Provider,
			"smtp_pass_changed": req.SMTPPass != nil && *req.SMTPPass != "",
			"api_key_changed":   req.APIKey != nil && *req.APIKey != "",
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		resp = toEmailConfigResponse(cfg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// SendTest mails the admin, or the configured sender when the admin has no address on file.
func (s *emailService) SendTest(ctx context.Context, admin *model.User) (*TestEmailResponse, error) {
	if _, err := RequireRole(admin, model.RoleAdmin); err != nil {
		return nil, err
	}

	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return nil, err
	}

	to := admin.EmailAddress()
	if to == "" && cfg.SenderEmail != nil {
		to = *cfg.SenderEmail
	}

	result := s.Notify(ctx, to, s.tr.T(ctx, "email_test_subject"), s.tr.T(ctx, "email_test_body"))
	if result.Delivered && cfg.Complete() && to != "" {
		result.Message = s.tr.T(ctx, "email_test_sent", map[string]any{"To": to})
	}
	return &TestEmailResponse{OK: result.Delivered, Message: result.Message}, nil
}

// Notify delivers one message on a best-effort basis. It never returns an error and never panics:
// a disabled or incomplete configuration and a missing recipient are skipped as delivered, and
// any decryption or transport failure comes back as Delivered=false with a readable message.
func (s *emailService) Notify(ctx context.Context, recipient, subject, body string) (result NotifyResult) {
	logger := s.loggerWith(ctx, "Notify")
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "notification panicked", "panic", r)
			result = NotifyResult{Delivered: false, Message: s.tr.T(ctx, "email_failed", map[string]any{"Error": "internal error"})}
		}
	}()

	cfg, err := s.configs.Get(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to load email config", "error", err)
		return NotifyResult{Delivered: false, Message: s.tr.T(ctx, "email_failed", map[string]any{"Error": "configuration unavailable"})}
	}
	if !cfg.Complete() {
		logger.DebugContext(ctx, "email disabled or incomplete, skipping")
		return NotifyResult{Delivered: true, Message: s.tr.T(ctx, "email_skipped")}
	}

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		logger.DebugContext(ctx, "no recipient, skipping")
		return NotifyResult{Delivered: true, Message: s.tr.T(ctx, "email_no_recipient")}
	}

	password, err := s.cipher.Decrypt(*cfg.SMTPPassEnc)
	if err != nil {
		logger.WarnContext(ctx, "failed to decrypt smtp password", "error", err, "error_kind", ErrorKind(err))
		return NotifyResult{Delivered: false, Message: s.tr.T(ctx, "email_failed", map[string]any{"Error": "stored credentials could not be decrypted"})}
	}

	settings := mailer.Settings{
		Host:      *cfg.SMTPHost,
		Port:      *cfg.SMTPPort,
		Username:  *cfg.SMTPUser,
		Password:  password,
		FromEmail: *cfg.SenderEmail,
		FromName:  *cfg.SenderName,
	}
	if err := s.sender.Send(ctx, settings, mailer.Message{To: recipient, Subject: subject, Body: body}); err != nil {
		logger.WarnContext(ctx, "email delivery failed", "error", err, "to", recipient)
		return NotifyResult{Delivered: false, Message: s.tr.T(ctx, "email_failed", map[string]any{"Error": err.Error()})}
	}

	logger.InfoContext(ctx, "email sent", "to", recipient, "subject", subject)
	return NotifyResult{Delivered: true, Message: s.tr.T(ctx, "email_sent")}
}

// NotifyNewLeave tells the admin about a freshly submitted request.
func (s *emailService) NotifyNewLeave(ctx context.Context, admin, employee *model.User, leave *model.LeaveRequest) NotifyResult {
	excluded := strings.Join(leave.ExcludedDates, ", ")
	if excluded == "" {
		excluded = s.tr.T(ctx, "excluded_none")
	}
	code := s.tr.T(ctx, "unknown_value")
	if employee.EmployeeCode != nil {
		code = *employee.EmployeeCode
	}
	email := employee.EmailAddress()
	if email == "" {
		email = s.tr.T(ctx, "unknown_value")
	}

	body := s.tr.T(ctx, "leave_new_body", map[string]any{
		"Name":      employee.Name,
		"Code":      code,
		"Email":     email,
		"Start":     leave.StartDate.Format(leavecalc.DateLayout),
		"End":       leave.EndDate.Format(leavecalc.DateLayout),
		"TotalDays": leave.TotalDays,
		"Excluded":  excluded,
		"Reason":    leave.Reason,
		"AppliedAt": leave.CreatedAt.UTC().Format(time.RFC3339),
	})
	return s.Notify(ctx, admin.EmailAddress(), s.tr.T(ctx, "leave_new_subject"), body)
}

// NotifyDecision tells the employee their request was approved or rejected.
func (s *emailService) NotifyDecision(ctx context.Context, employee *model.User, leave *model.LeaveRequest) NotifyResult {
	subjectID, statusID := "leave_rejected_subject", "leave_status_rejected"
	if leave.Status == model.LeaveStatusApproved {
		subjectID, statusID = "leave_approved_subject", "leave_status_approved"
	}

	body := s.tr.T(ctx, "leave_decision_body", map[string]any{
		"Name":      employee.Name,
		"Start":     leave.StartDate.Format(leavecalc.DateLayout),
		"End":       leave.EndDate.Format(leavecalc.DateLayout),
		"TotalDays": leave.TotalDays,
		"Status":    s.tr.T(ctx, statusID),
	})
	if leave.AdminComment != nil && *leave.AdminComment != "" {
		body += s.tr.T(ctx, "leave_decision_comment", map[string]any{"Comment": *leave.AdminComment})
	}
	return s.Notify(ctx, employee.EmailAddress(), s.tr.T(ctx, subjectID), body)
}

func defaultString(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return optionalString(*value)
}

func nonEmptyPtr(value *string) bool {
	return value != nil && *value != ""
}
