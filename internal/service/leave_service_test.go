package service

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"leavemgmt/internal/model"
)

func TestApplyLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAdmin(t, "admin@example.com")
	f.enableEmail(t, admin)
	employee := f.registerEmployee(t, "Eve", "E-001", "eve@example.com")

	leave, err := f.leaves.Apply(ctx, employee, ApplyLeaveRequest{
		StartDate:     "2024-01-01",
		EndDate:       "2024-01-05",
		ExcludedDates: []string{"2024-01-03", "2024-01-03", "2024-02-01"},
		Reason:        "  family trip ",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if leave.Status != model.LeaveStatusPending || leave.TotalDays != 4 || leave.Reason != "family trip" {
		t.Fatalf("unexpected leave %+v", leave)
	}
	if !reflect.DeepEqual(leave.ExcludedDates, []string{"2024-01-03"}) {
		t.Fatalf("unexpected excluded dates %v", leave.ExcludedDates)
	}

	sent := f.sender.messages()
	if len(sent) != 1 {
		t.Fatalf("expected one admin mail, got %d", len(sent))
	}
	if sent[0].To != "admin@example.com" || sent[0].Subject != "New Leave Request" {
		t.Fatalf("unexpected mail %+v", sent[0])
	}
	for _, want := range []string{"Eve", "E-001", "2024-01-01", "2024-01-05", "2024-01-03", "family trip"} {
		if !strings.Contains(sent[0].Body, want) {
			t.Fatalf("mail body missing %q:\n%s", want, sent[0].Body)
		}
	}
	if f.sender.last.Password != "s3cret" {
		t.Fatalf("expected decrypted password to reach the transport")
	}

	if len(f.publisher.events) != 1 || f.publisher.events[0].name != EventLeaveCreated {
		t.Fatalf("expected one %s event, got %+v", EventLeaveCreated, f.publisher.events)
	}
}

func TestApplyLeaveRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAdmin(t, "admin@example.com")
	employee := f.registerEmployee(t, "Eve", "E-001", "")

	cases := []struct {
		name string
		user *model.User
		req  ApplyLeaveRequest
		want error
	}{
		{name: "inverted range", user: employee, req: ApplyLeaveRequest{StartDate: "2024-01-05", EndDate: "2024-01-01", Reason: "x"}, want: ErrInvalidRange},
		{name: "admin cannot apply", user: admin, req: ApplyLeaveRequest{StartDate: "2024-01-01", EndDate: "2024-01-01", Reason: "x"}, want: ErrForbidden},
		{name: "no principal", user: nil, req: ApplyLeaveRequest{StartDate: "2024-01-01", EndDate: "2024-01-01", Reason: "x"}, want: ErrUnauthenticated},
		{name: "bad date", user: employee, req: ApplyLeaveRequest{StartDate: "2024-13-01", EndDate: "2024-01-01", Reason: "x"}, want: ErrValidation},
		{name: "blank reason", user: employee, req: ApplyLeaveRequest{StartDate: "2024-01-01", EndDate: "2024-01-01", Reason: "   "}, want: ErrValidation},
		{name: "long reason", user: employee, req: ApplyLeaveRequest{StartDate: "2024-01-01", EndDate: "2024-01-01", Reason: strings.Repeat("a", 201)}, want: ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.leaves.Apply(ctx, tc.user, tc.req)
			assertErrorIs(t, err, tc.want)
		})
	}
}

func TestApplyLeaveAuditsNormalizedDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAdmin(t, "admin@example.com")
	employee := f.registerEmployee(t, "Eve", "E-001", "")

	leave, err := f.leaves.Apply(ctx, employee, ApplyLeaveRequest{
		StartDate:     " 2024-01-01 ",
		EndDate:       "2024-01-05\t",
		ExcludedDates: []string{"2024-01-03", " 2024-01-03", "2023-12-31"},
		Reason:        "rest",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var entry model.AuditLog
	if err := f.db.Where("entity_id = ? AND action = ?", leave.ID, model.ActionApplyLeave).First(&entry).Error; err != nil {
		t.Fatalf("load audit row: %v", err)
	}
	var details struct {
		StartDate     string   `json:"start_date"`
		EndDate       string   `json:"end_date"`
		ExcludedDates []string `json:"excluded_dates"`
		TotalDays     int      `json:"total_days"`
	}
	if err := json.Unmarshal([]byte(entry.Details), &details); err != nil {
		t.Fatalf("decode details %q: %v", entry.Details, err)
	}
	if details.StartDate != "2024-01-01" || details.EndDate != "2024-01-05" || details.TotalDays != 4 {
		t.Fatalf("unexpected audit details %+v", details)
	}
	if len(details.ExcludedDates) != 1 || details.ExcludedDates[0] != "2024-01-03" {
		t.Fatalf("expected normalized excluded dates, got %v", details.ExcludedDates)
	}
}

func TestApplyLeaveSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAdmin(t, "admin@example.com")
	f.enableEmail(t, admin)
	employee := f.registerEmployee(t, "Eve", "E-001", "")
	f.sender.err = errors.New("connection refused")

	leave, err := f.leaves.Apply(ctx, employee, ApplyLeaveRequest{StartDate: "2024-01-01", EndDate: "2024-01-02", Reason: "rest"})
	if err != nil {
		t.Fatalf("Apply should not fail when mail fails: %v", err)
	}

	mine, err := f.leaves.ListMyPending(ctx, employee)
	if err != nil {
		t.Fatalf("ListMyPending: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != leave.ID {
		t.Fatalf("expected the request to be persisted, got %+v", mine)
	}
}

func TestDecideLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAdmin(t, "admin@example.com")
	f.enableEmail(t, admin)
	employee := f.registerEmployee(t, "Eve", "E-001", "eve@example.com")

	leave, err := f.leaves.Apply(ctx, employee, ApplyLeaveRequest{StartDate: "2024-01-01", EndDate: "2024-01-03", Reason: "rest"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	t.Run("invalid decision", func(t *testing.T) {
		_, err := f.leaves.Decide(ctx, admin, leave.ID, DecisionRequest{Decision: "maybe"})
		assertErrorIs(t, err, ErrInvalidDecision)
	})

	t.Run("employee cannot decide", func(t *testing.T) {
		_, err := f.leaves.Decide(ctx, employee, leave.ID, DecisionRequest{Decision: model.LeaveStatusApproved})
		assertErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown request", func(t *testing.T) {
		_, err := f.leaves.Decide(ctx, admin, "7c0c1a8e-5d8e-4c61-9d8e-0f6f3b0f9a11", DecisionRequest{Decision: model.LeaveStatusApproved})
		assertErrorIs(t, err, ErrNotFound)
	})

	comment := "  enjoy  "
	decided, err := f.leaves.Decide(ctx, admin, leave.ID, DecisionRequest{Decision: model.LeaveStatusApproved, Comment: &comment})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decided.Status != model.LeaveStatusApproved || decided.AdminComment == nil || *decided.AdminComment != "enjoy" {
		t.Fatalf("unexpected decided leave %+v", decided)
	}

	var stored model.LeaveRequest
	if err := f.db.First(&stored, "id = ?", leave.ID).Error; err != nil {
		t.Fatalf("load leave: %v", err)
	}
	if stored.DecidedByID == nil || *stored.DecidedByID != admin.ID || stored.DecidedAt == nil {
		t.Fatalf("decision metadata not stored: %+v", stored)
	}

	sent := f.sender.messages()
	last := sent[len(sent)-1]
	if last.To != "eve@example.com" || last.Subject != "Leave Approved" || !strings.Contains(last.Body, "enjoy") {
		t.Fatalf("unexpected decision mail %+v", last)
	}

	t.Run("already decided", func(t *testing.T) {
		mailsBefore := len(f.sender.messages())
		other := "changed my mind"
		_, err := f.leaves.Decide(ctx, admin, leave.ID, DecisionRequest{Decision: model.LeaveStatusRejected, Comment: &other})
		assertErrorIs(t, err, ErrAlreadyDecided)

		var after model.LeaveRequest
		if err := f.db.First(&after, "id = ?", leave.ID).Error; err != nil {
			t.Fatalf("load leave: %v", err)
		}
		if after.Status != model.LeaveStatusApproved {
			t.Fatalf("status changed to %s", after.Status)
		}
		if after.AdminComment == nil || *after.AdminComment != "enjoy" {
			t.Fatalf("comment changed: %v", after.AdminComment)
		}
		if after.DecidedByID == nil || *after.DecidedByID != *stored.DecidedByID {
			t.Fatalf("decider changed: %v", after.DecidedByID)
		}
		if after.DecidedAt == nil || !after.DecidedAt.Equal(*stored.DecidedAt) {
			t.Fatalf("decision time changed: %v", after.DecidedAt)
		}

		var decisions int64
		if err := f.db.Model(&model.AuditLog{}).
			Where("entity_id = ? AND action IN ?", leave.ID, []string{model.ActionApproveLeave, model.ActionRejectLeave}).
			Count(&decisions).Error; err != nil {
			t.Fatalf("count audit rows: %v", err)
		}
		if decisions != 1 {
			t.Fatalf("expected one decision audit row, got %d", decisions)
		}
		if n := len(f.sender.messages()); n != mailsBefore {
			t.Fatalf("expected no further mail, got %d new", n-mailsBefore)
		}
	})
}

func TestDecideBlankCommentIsAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAdmin(t, "admin@example.com")
	employee := f.registerEmployee(t, "Eve", "E-001", "")

	leave, err := f.leaves.Apply(ctx, employee, ApplyLeaveRequest{StartDate: "2024-01-01", EndDate: "2024-01-01", Reason: "rest"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	blank := "   "
	decided, err := f.leaves.Decide(ctx, admin, leave.ID, DecisionRequest{Decision: model.LeaveStatusRejected, Comment: &blank})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decided.AdminComment != nil {
		t.Fatalf("expected no comment, got %q", *decided.AdminComment)
	}
	// Email is disabled: nothing is sent and nothing fails.
	if n := len(f.sender.messages()); n != 0 {
		t.Fatalf("expected no mail, got %d", n)
	}
}

func TestListLeaves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAdmin(t, "admin@example.com")
	eve := f.registerEmployee(t, "Eve", "E-001", "")
	bob := f.registerEmployee(t, "Bob", "E-002", "")

	apply := func(user *model.User, start string) *LeaveResponse {
		t.Helper()
		leave, err := f.leaves.Apply(ctx, user, ApplyLeaveRequest{StartDate: start, EndDate: start, Reason: "r"})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		f.clock.Advance(time.Hour)
		return leave
	}

	first := apply(eve, "2024-05-20")
	second := apply(eve, "2024-05-21")
	bobs := apply(bob, "2024-05-22")
	f.clock.Advance(31 * 24 * time.Hour)
	june := apply(eve, "2024-06-20")

	if _, err := f.leaves.Decide(ctx, admin, second.ID, DecisionRequest{Decision: model.LeaveStatusApproved}); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	ids := func(leaves []LeaveResponse) []string {
		out := make([]string, len(leaves))
		for i, l := range leaves {
			out[i] = l.ID
		}
		return out
	}

	t.Run("mine newest first", func(t *testing.T) {
		got, err := f.leaves.ListMine(ctx, eve, "")
		if err != nil {
			t.Fatalf("ListMine: %v", err)
		}
		if want := []string{june.ID, second.ID, first.ID}; !reflect.DeepEqual(ids(got), want) {
			t.Fatalf("expected %v, got %v", want, ids(got))
		}
	})

	t.Run("mine by month", func(t *testing.T) {
		got, err := f.leaves.ListMine(ctx, eve, "2024-05")
		if err != nil {
			t.Fatalf("ListMine: %v", err)
		}
		if want := []string{second.ID, first.ID}; !reflect.DeepEqual(ids(got), want) {
			t.Fatalf("expected %v, got %v", want, ids(got))
		}
	})

	t.Run("bad month", func(t *testing.T) {
		_, err := f.leaves.ListMine(ctx, eve, "May 2024")
		assertErrorIs(t, err, ErrValidation)
	})

	t.Run("pending for admin", func(t *testing.T) {
		got, err := f.leaves.ListPending(ctx, admin, "", "")
		if err != nil {
			t.Fatalf("ListPending: %v", err)
		}
		if want := []string{june.ID, bobs.ID, first.ID}; !reflect.DeepEqual(ids(got), want) {
			t.Fatalf("expected %v, got %v", want, ids(got))
		}

		got, err = f.leaves.ListPending(ctx, admin, bob.ID.String(), "2024-05")
		if err != nil {
			t.Fatalf("ListPending: %v", err)
		}
		if want := []string{bobs.ID}; !reflect.DeepEqual(ids(got), want) {
			t.Fatalf("expected %v, got %v", want, ids(got))
		}
	})

	t.Run("employee history", func(t *testing.T) {
		got, err := f.leaves.ListForEmployee(ctx, admin, eve.ID.String(), "2024-06")
		if err != nil {
			t.Fatalf("ListForEmployee: %v", err)
		}
		if want := []string{june.ID}; !reflect.DeepEqual(ids(got), want) {
			t.Fatalf("expected %v, got %v", want, ids(got))
		}

		_, err = f.leaves.ListForEmployee(ctx, admin, admin.ID.String(), "")
		assertErrorIs(t, err, ErrNotFound)
	})

	t.Run("employees by name", func(t *testing.T) {
		got, err := f.leaves.ListEmployees(ctx, admin)
		if err != nil {
			t.Fatalf("ListEmployees: %v", err)
		}
		if len(got) != 2 || got[0].Name != "Bob" || got[1].Name != "Eve" {
			t.Fatalf("unexpected employees %+v", got)
		}

		_, err = f.leaves.ListEmployees(ctx, eve)
		assertErrorIs(t, err, ErrForbidden)
	})
}

func TestMonthWindow(t *testing.T) {
	from, before, err := MonthWindow("2024-12")
	if err != nil {
		t.Fatalf("MonthWindow: %v", err)
	}
	if !from.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) || !before.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window [%v, %v)", from, before)
	}
}
