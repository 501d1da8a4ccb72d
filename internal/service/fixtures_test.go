package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"leavemgmt/internal/crypto"
	"leavemgmt/internal/database"
	"leavemgmt/internal/i18n"
	"leavemgmt/internal/mailer"
	"leavemgmt/internal/model"
	"leavemgmt/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const testSetupCode = "let-me-in"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	last mailer.Settings
	err  error
}

func (s *stubSender) Send(_ context.Context, settings mailer.Settings, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.last = settings
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubSender) messages() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mailer.Message(nil), s.sent...)
}

type publishedEvent struct {
	name    string
	payload interface{}
}

type stubPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *stubPublisher) Publish(event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{name: event, payload: payload})
}

type fixture struct {
	db        *gorm.DB
	clock     *testClock
	sender    *stubSender
	publisher *stubPublisher
	cipher    *crypto.Cipher
	users     repository.UserRepository
	sessions  repository.SessionRepository
	configs   repository.EmailConfigRepository
	auth      AuthService
	leaves    LeaveService
	email     EmailService
	audit     AuditService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := database.NewConnection("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cipher, err := crypto.NewCipher("test-secret")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	tr, err := i18n.New("en")
	if err != nil {
		t.Fatalf("i18n.New: %v", err)
	}

	f := &fixture{
		db:        db,
		clock:     &testClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)},
		sender:    &stubSender{},
		publisher: &stubPublisher{},
		cipher:    cipher,
		users:     repository.NewUserRepository(db),
		sessions:  repository.NewSessionRepository(db),
		configs:   repository.NewEmailConfigRepository(db),
	}

	tx := repository.NewTransactionManager(db)
	auditRepo := repository.NewAuditRepository(db)
	f.auth = NewAuthService(tx, f.users, f.sessions, repository.NewAppSettingRepository(db), auditRepo, AuthConfig{
		SetupCode:  testSetupCode,
		SessionTTL: 14 * 24 * time.Hour,
		Now:        f.clock.Now,
		Logger:     logger,
	})
	f.email = NewEmailService(tx, f.configs, auditRepo, cipher, f.sender, tr, logger)
	f.leaves = NewLeaveService(tx, repository.NewLeaveRepository(db), f.users, auditRepo, f.email, f.publisher, f.clock.Now, logger)
	f.audit = NewAuditService(auditRepo)
	return f
}

func (f *fixture) registerAdmin(t *testing.T, email string) *model.User {
	t.Helper()
	res, err := f.auth.RegisterAdmin(context.Background(), RegisterAdminRequest{
		SetupCode: testSetupCode,
		Name:      "Alice Admin",
		DOB:       "1980-02-03",
		Email:     email,
	}, SessionMeta{})
	if err != nil {
		t.Fatalf("RegisterAdmin: %v", err)
	}
	return f.user(t, res.User.ID)
}

func (f *fixture) registerEmployee(t *testing.T, name, code, email string) *model.User {
	t.Helper()
	res, err := f.auth.RegisterEmployee(context.Background(), RegisterEmployeeRequest{
		Name:         name,
		DOB:          "1990-06-15",
		EmployeeCode: code,
		Email:        email,
	}, SessionMeta{IP: "127.0.0.1", UserAgent: "go-test"})
	if err != nil {
		t.Fatalf("RegisterEmployee: %v", err)
	}
	return f.user(t, res.User.ID)
}

func (f *fixture) user(t *testing.T, id string) *model.User {
	t.Helper()
	user, err := f.users.GetByID(context.Background(), uuid.MustParse(id))
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return user
}

// enableEmail stores a complete SMTP configuration.
func (f *fixture) enableEmail(t *testing.T, admin *model.User) {
	t.Helper()
	host, user, pass := "smtp.example.com", "mailer", "s3cret"
	sender, name := "noreply@example.com", "Leave Desk"
	port := 587
	_, err := f.email.UpdateConfig(context.Background(), admin, EmailConfigRequest{
		Enabled:     true,
		SMTPHost:    &host,
		SMTPPort:    &port,
		SMTPUser:    &user,
		SMTPPass:    &pass,
		SenderEmail: &sender,
		SenderName:  &name,
	})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
