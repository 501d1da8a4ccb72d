package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leavemgmt/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.auth.Bootstrap(ctx)
	if err != nil || res.HasAdmin {
		t.Fatalf("expected no admin, got %+v err=%v", res, err)
	}

	f.registerAdmin(t, "admin@example.com")

	res, err = f.auth.Bootstrap(ctx)
	if err != nil || !res.HasAdmin {
		t.Fatalf("expected admin, got %+v err=%v", res, err)
	}
}

func TestRegisterAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong setup code", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.auth.RegisterAdmin(ctx, RegisterAdminRequest{SetupCode: "nope", Name: "A", DOB: "1980-01-01", Email: "a@example.com"}, SessionMeta{})
		assertErrorIs(t, err, ErrInvalidSetupCode)
		assertErrorIs(t, err, ErrForbidden)

		// A wrong code does not consume the setup.
		f.registerAdmin(t, "a@example.com")
	})

	t.Run("creates admin and session", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.auth.RegisterAdmin(ctx, RegisterAdminRequest{SetupCode: testSetupCode, Name: "  Alice  ", DOB: "1980-02-03", Email: "alice@example.com"}, SessionMeta{IP: "10.0.0.1"})
		if err != nil {
			t.Fatalf("RegisterAdmin: %v", err)
		}
		if res.User.Role != model.RoleAdmin || res.User.Name != "Alice" {
			t.Fatalf("unexpected user %+v", res.User)
		}
		if want := f.clock.Now().Add(14 * 24 * time.Hour); !res.ExpiresAt.Equal(want) {
			t.Fatalf("expected expiry %v, got %v", want, res.ExpiresAt)
		}

		user, err := f.auth.ResolveSession(ctx, res.SessionID)
		if err != nil {
			t.Fatalf("ResolveSession: %v", err)
		}
		if user.ID.String() != res.User.ID {
			t.Fatalf("session resolves to %s, want %s", user.ID, res.User.ID)
		}
	})

	t.Run("second registration is locked even with the right code", func(t *testing.T) {
		f := newFixture(t)
		f.registerAdmin(t, "alice@example.com")

		_, err := f.auth.RegisterAdmin(ctx, RegisterAdminRequest{SetupCode: testSetupCode, Name: "Bob", DOB: "1981-01-01", Email: "bob@example.com"}, SessionMeta{})
		assertErrorIs(t, err, ErrSetupAlreadyUsed)
		assertErrorIs(t, err, ErrConflict)

		_, err = f.auth.RegisterAdmin(ctx, RegisterAdminRequest{SetupCode: "wrong", Name: "Bob", DOB: "1981-01-01", Email: "bob@example.com"}, SessionMeta{})
		assertErrorIs(t, err, ErrSetupAlreadyUsed)
	})
}

func TestRegisterAdminConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.auth.RegisterAdmin(ctx, RegisterAdminRequest{
				SetupCode: testSetupCode,
				Name:      "Admin",
				DOB:       "1980-01-01",
				Email:     "admin@example.com",
			}, SessionMeta{})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", attempts-1, successes, conflicts)
	}

	var admins int64
	if err := f.db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&admins).Error; err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if admins != 1 {
		t.Fatalf("expected exactly one admin row, got %d", admins)
	}
}

func TestRegisterEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.auth.RegisterEmployee(ctx, RegisterEmployeeRequest{Name: " Eve ", DOB: "1995-03-04", EmployeeCode: " E-001 "}, SessionMeta{})
	if err != nil {
		t.Fatalf("RegisterEmployee: %v", err)
	}
	if res.User.Role != model.RoleEmployee || res.User.Name != "Eve" {
		t.Fatalf("unexpected user %+v", res.User)
	}
	user := f.user(t, res.User.ID)
	if user.EmployeeCode == nil || *user.EmployeeCode != "E-001" {
		t.Fatalf("expected trimmed employee code, got %v", user.EmployeeCode)
	}
	if user.Email != nil {
		t.Fatalf("expected no email, got %q", *user.Email)
	}

	_, err = f.auth.RegisterEmployee(ctx, RegisterEmployeeRequest{Name: "Other", DOB: "1991-01-01", EmployeeCode: "E-001"}, SessionMeta{})
	assertErrorIs(t, err, ErrEmployeeCodeTaken)
	assertErrorIs(t, err, ErrConflict)

	_, err = f.auth.RegisterEmployee(ctx, RegisterEmployeeRequest{Name: "Other", DOB: "01/01/1991", EmployeeCode: "E-002"}, SessionMeta{})
	assertErrorIs(t, err, ErrValidation)
}

func TestLoginAndSessionExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerEmployee(t, "Eve", "E-001", "eve@example.com")

	t.Run("unknown identity", func(t *testing.T) {
		_, err := f.auth.Login(ctx, LoginRequest{Name: "Eve", DOB: "2000-01-01"}, SessionMeta{})
		assertErrorIs(t, err, ErrInvalidCredentials)
		assertErrorIs(t, err, ErrUnauthenticated)
	})

	res, err := f.auth.Login(ctx, LoginRequest{Name: "  Eve ", DOB: "1990-06-15"}, SessionMeta{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := f.auth.ResolveSession(ctx, res.SessionID); err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}

	f.clock.Advance(14*24*time.Hour + time.Second)

	_, err = f.auth.ResolveSession(ctx, res.SessionID)
	assertErrorIs(t, err, ErrSessionExpired)

	_, err = f.sessions.GetByID(ctx, uuid.MustParse(res.SessionID))
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected expired session to be deleted, got %v", err)
	}

	_, err = f.auth.ResolveSession(ctx, res.SessionID)
	assertErrorIs(t, err, ErrInvalidSession)
}

func TestResolveSessionRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, token := range []string{"", "not-a-uuid", uuid.NewString()} {
		_, err := f.auth.ResolveSession(ctx, token)
		assertErrorIs(t, err, ErrUnauthenticated)
	}
}

func TestDestroySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerEmployee(t, "Eve", "E-001", "")

	res, err := f.auth.Login(ctx, LoginRequest{Name: "Eve", DOB: "1990-06-15"}, SessionMeta{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.auth.DestroySession(ctx, res.SessionID); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	_, err = f.auth.ResolveSession(ctx, res.SessionID)
	assertErrorIs(t, err, ErrInvalidSession)

	if err := f.auth.DestroySession(ctx, res.SessionID); err != nil {
		t.Fatalf("second DestroySession should be a no-op, got %v", err)
	}
}

func TestPruneExpiredSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	employee := f.registerEmployee(t, "Eve", "E-001", "")

	if _, err := f.auth.CreateSession(ctx, employee.ID, SessionMeta{}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	f.clock.Advance(15 * 24 * time.Hour)

	pruned, err := f.auth.PruneExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("PruneExpiredSessions: %v", err)
	}
	// Registration opened one session too.
	if pruned != 2 {
		t.Fatalf("expected 2 pruned sessions, got %d", pruned)
	}
}

func TestRequireRole(t *testing.T) {
	admin := &model.User{ID: uuid.New(), Role: model.RoleAdmin}
	employee := &model.User{ID: uuid.New(), Role: model.RoleEmployee}

	if _, err := RequireRole(nil, model.RoleAdmin); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := RequireRole(employee, model.RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if got, err := RequireRole(admin, model.RoleAdmin); err != nil || got != admin {
		t.Fatalf("expected admin through, got %v %v", got, err)
	}
}
