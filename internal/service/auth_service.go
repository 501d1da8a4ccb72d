package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leavemgmt/internal/leavecalc"
	"leavemgmt/internal/model"
	"leavemgmt/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DTOs for Request validation
type RegisterAdminRequest struct {
	SetupCode string `json:"setupCode" binding:"required,min=3"`
	Name      string `json:"name" binding:"required,max=80"`
	DOB       string `json:"dob" binding:"required"`
	Email     string `json:"email" binding:"required,min=3,max=200"`
}

type RegisterEmployeeRequest struct {
	Name         string `json:"name" binding:"required,max=80"`
	DOB          string `json:"dob" binding:"required"`
	EmployeeCode string `json:"employeeCode" binding:"required,max=40"`
	Email        string `json:"email" binding:"omitempty,max=200"`
}

type LoginRequest struct {
	Name string `json:"name" binding:"required,max=80"`
	DOB  string `json:"dob" binding:"required"`
}

// SessionMeta is the optional client information recorded with a session.
type SessionMeta struct {
	IP        string
	UserAgent string
}

type MeResponse struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Name string `json:"name"`
}

type BootstrapResponse struct {
	HasAdmin bool `json:"has_admin"`
}

// AuthResult is returned by every flow that opens a session.
type AuthResult struct {
	User      MeResponse
	SessionID string
	ExpiresAt time.Time
}

// AuthService owns users, sessions and the one-time admin setup.
type AuthService interface {
	Bootstrap(ctx context.Context) (BootstrapResponse, error)
	RegisterAdmin(ctx context.Context, req RegisterAdminRequest, meta SessionMeta) (*AuthResult, error)
	RegisterEmployee(ctx context.Context, req RegisterEmployeeRequest, meta SessionMeta) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest, meta SessionMeta) (*AuthResult, error)
	CreateSession(ctx context.Context, userID uuid.UUID, meta SessionMeta) (*model.Session, error)
	ResolveSession(ctx context.Context, token string) (*model.User, error)
	DestroySession(ctx context.Context, token string) error
	PruneExpiredSessions(ctx context.Context) (int64, error)
}

// AuthConfig carries the server-held settings of AuthService.
type AuthConfig struct {
	SetupCode  string
	SessionTTL time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

type authService struct {
	tx        repository.TransactionManager
	users     repository.UserRepository
	sessions  repository.SessionRepository
	settings  repository.AppSettingRepository
	audit     repository.AuditRepository
	setupCode string
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewAuthService returns a new instance of AuthService
func NewAuthService(tx repository.TransactionManager, users repository.UserRepository, sessions repository.SessionRepository, settings repository.AppSettingRepository, audit repository.AuditRepository, cfg AuthConfig) AuthService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 14 * 24 * time.Hour
	}
	return &authService{
		tx:        tx,
		users:     users,
		sessions:  sessions,
		settings:  settings,
		audit:     audit,
		setupCode: cfg.SetupCode,
		ttl:       cfg.SessionTTL,
		now:       cfg.Now,
		logger:    defaultLogger(cfg.Logger),
	}
}

// RequireRole lets user through only when it holds exactly role.
func RequireRole(user *model.User, role string) (*model.User, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if user.Role != role {
		return nil, fmt.Errorf("%w: %s only", ErrForbidden, role)
	}
	return user, nil
}

func toMeResponse(user *model.User) MeResponse {
	return MeResponse{ID: user.ID.String(), Role: user.Role, Name: user.Name}
}

func (s *authService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *authService) Bootstrap(ctx context.Context) (BootstrapResponse, error) {
	_, err := s.users.FirstAdmin(ctx)
	if err == nil {
		return BootstrapResponse{HasAdmin: true}, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return BootstrapResponse{HasAdmin: false}, nil
	}
	return BootstrapResponse{}, err
}

// RegisterAdmin consumes the one-time setup code. The admin_setup_used flag is claimed with an
// atomic insert-or-flip inside the same transaction as the user insert, and a partial unique index
// on users(role) WHERE role = 'admin' backs it up, so at most one admin is ever created.
func (s *authService) RegisterAdmin(ctx context.Context, req RegisterAdminRequest, meta SessionMeta) (result *AuthResult, err error) {
	logger := s.loggerWith(ctx, "RegisterAdmin")
	defer func() {
		if result != nil {
			logOutcome(ctx, logger, err, "admin registration", "user_id", result.User.ID)
			return
		}
		logOutcome(ctx, logger, err, "admin registration")
	}()

	if used, lookupErr := s.setupUsed(ctx); lookupErr != nil {
		return nil, lookupErr
	} else if used {
		return nil, ErrSetupAlreadyUsed
	}
	if subtle.ConstantTimeCompare([]byte(req.SetupCode), []byte(s.setupCode)) != 1 || s.setupCode == "" {
		return nil, ErrInvalidSetupCode
	}

	name, dob, err := parseIdentity(req.Name, req.DOB)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, validationError("email is required")
	}

	adminExisted := false
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		claimed, err := s.settings.Claim(txCtx, model.SettingAdminSetupUsed)
		if err != nil {
			return fmt.Errorf("claim admin setup: %w", err)
		}
		if !claimed {
			return ErrSetupAlreadyUsed
		}

		if _, err := s.users.FirstAdmin(txCtx); err == nil {
			// Commit the claimed flag so the lock survives, then report the conflict.
			adminExisted = true
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user := &model.User{
			Role:      model.RoleAdmin,
			Name:      name,
			DOB:       dob,
			Email:     &email,
			CreatedAt: s.now().UTC(),
		}
		if err := s.users.Create(txCtx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAdminAlreadyExists
			}
			return fmt.Errorf("create admin: %w", err)
		}

		session, err := s.CreateSession(txCtx, user.ID, meta)
		if err != nil {
			return err
		}

		if err := s.audit.Record(txCtx, &user.ID, model.ActionAdminSetup, user.ID.String(), user.Name, map[string]interface{}{
			"role": user.Role,
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		result = &AuthResult{User: toMeResponse(user), SessionID: session.ID.String(), ExpiresAt: session.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if adminExisted {
		return nil, ErrAdminAlreadyExists
	}
	return result, nil
}

func (s *authService) setupUsed(ctx context.Context) (bool, error) {
	setting, err := s.settings.Get(ctx, model.SettingAdminSetupUsed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return setting.Value == "1", nil
}

func (s *authService) RegisterEmployee(ctx context.Context, req RegisterEmployeeRequest, meta SessionMeta) (result *AuthResult, err error) {
	logger := s.loggerWith(ctx, "RegisterEmployee")
	defer func() {
		if result != nil {
			logOutcome(ctx, logger, err, "employee registration", "user_id", result.User.ID)
			return
		}
		logOutcome(ctx, logger, err, "employee registration")
	}()

	name, dob, err := parseIdentity(req.Name, req.DOB)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.EmployeeCode)
	if code == "" {
		return nil, validationError("employee code is required")
	}

	user := &model.User{
		Role:         model.RoleEmployee,
		Name:         name,
		DOB:          dob,
		EmployeeCode: &code,
		CreatedAt:    s.now().UTC(),
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		user.Email = &email
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.users.GetByEmployeeCode(txCtx, code); err == nil {
			return ErrEmployeeCodeTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := s.users.Create(txCtx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmployeeCodeTaken
			}
			return fmt.Errorf("create employee: %w", err)
		}

		session, err := s.CreateSession(txCtx, user.ID, meta)
		if err != nil {
			return err
		}

		if err := s.audit.Record(txCtx, &user.ID, model.ActionRegisterEmployee, user.ID.String(), user.Name, map[string]interface{}{
			"employee_code": code,
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		result = &AuthResult{User: toMeResponse(user), SessionID: session.ID.String(), ExpiresAt: session.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Login matches on trimmed name and date of birth; there is no password.
func (s *authService) Login(ctx context.Context, req LoginRequest, meta SessionMeta) (result *AuthResult, err error) {
	logger := s.loggerWith(ctx, "Login")
	defer func() {
		if result != nil {
			logOutcome(ctx, logger, err, "login", "user_id", result.User.ID)
			return
		}
		logOutcome(ctx, logger, err, "login")
	}()

	name, dob, err := parseIdentity(req.Name, req.DOB)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByNameAndDOB(ctx, name, dob)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if pruned, pruneErr := s.PruneExpiredSessions(ctx); pruneErr != nil {
		logger.WarnContext(ctx, "failed to prune expired sessions", "error", pruneErr)
	} else if pruned > 0 {
		logger.DebugContext(ctx, "pruned expired sessions", "count", pruned)
	}

	session, err := s.CreateSession(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: toMeResponse(user), SessionID: session.ID.String(), ExpiresAt: session.ExpiresAt}, nil
}

// CreateSession issues a new session that expires one TTL from now.
func (s *authService) CreateSession(ctx context.Context, userID uuid.UUID, meta SessionMeta) (*model.Session, error) {
	now := s.now().UTC()
	session := &model.Session{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		IP:        optionalString(meta.IP),
		UserAgent: optionalString(meta.UserAgent),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// ResolveSession returns the user behind token. An expired session is deleted before the call fails.
func (s *authService) ResolveSession(ctx context.Context, token string) (user *model.User, err error) {
	logger := s.loggerWith(ctx, "ResolveSession", "token_provided", token != "")
	defer func() {
		if err != nil {
			logger.DebugContext(ctx, "session rejected", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	id, err := uuid.Parse(token)
	if err != nil {
		return nil, ErrInvalidSession
	}

	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	if !s.now().Before(session.ExpiresAt) {
		if _, delErr := s.sessions.Delete(ctx, session.ID); delErr != nil {
			return nil, fmt.Errorf("delete expired session: %w", delErr)
		}
		return nil, ErrSessionExpired
	}

	user, err = s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return user, nil
}

// DestroySession deletes the session if it exists. Unknown or malformed tokens are a no-op.
func (s *authService) DestroySession(ctx context.Context, token string) error {
	id, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil
	}
	removed, err := s.sessions.Delete(ctx, id)
	if err != nil {
		s.loggerWith(ctx, "DestroySession").ErrorContext(ctx, "failed to delete session", "error", err)
		return err
	}
	s.loggerWith(ctx, "DestroySession").InfoContext(ctx, "session destroyed", "removed", removed)
	return nil
}

func (s *authService) PruneExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now().UTC())
}

func parseIdentity(rawName, rawDOB string) (string, time.Time, error) {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return "", time.Time{}, validationError("name is required")
	}
	dob, err := leavecalc.ParseDate(strings.TrimSpace(rawDOB))
	if err != nil {
		return "", time.Time{}, validationError("dob must be YYYY-MM-DD")
	}
	return name, dob, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
