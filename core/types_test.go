package core_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/core"
)

// =============================================================================
// MONEY
// =============================================================================

func TestParseMoney_MalformedYieldsZero(t *testing.T) {
	if !core.ParseMoney("18.50").Equal(core.NewMoney(18.50)) {
		t.Error("well-formed decimal string should parse")
	}
	for _, bad := range []string{"", "abc", "12,50"} {
		if !core.ParseMoney(bad).IsZero() {
			t.Errorf("%q should parse to zero", bad)
		}
	}
}

func TestMoney_Round2(t *testing.T) {
	third := core.NewMoneyFromInt(10).Mul(decimal.NewFromInt(1).Div(decimal.NewFromInt(3)))
	if got := third.Round2().String(); got != "3.33" {
		t.Errorf("10/3 rounded = %s, want 3.33", got)
	}
	if got := core.ParseMoney("2.005").Round2().String(); got != "2.01" {
		t.Errorf("2.005 rounded = %s, want 2.01", got)
	}
}

func TestMoney_SignHelpers(t *testing.T) {
	penalty := core.NewMoney(25.50).Neg()
	if !penalty.IsNegative() || penalty.IsPositive() || penalty.IsZero() {
		t.Errorf("%s should be strictly negative", penalty)
	}
	if !penalty.Neg().Equal(core.NewMoney(25.50)) {
		t.Error("double negation should restore the amount")
	}
	if !core.ZeroMoney().Neg().IsZero() {
		t.Error("negated zero is still zero")
	}
}

func TestMoney_Arithmetic(t *testing.T) {
	base := core.NewMoney(160.00)
	bonus := core.NewMoney(7.50)
	deduction := core.NewMoney(11.00)

	total := base.Add(bonus).Sub(deduction)
	if !total.Equal(core.NewMoney(156.50)) {
		t.Errorf("total = %s, want 156.50", total)
	}
	if !core.NewMoney(0.50).MulInt(22).Equal(core.NewMoney(11.00)) {
		t.Error("0.50 x 22 should be exactly 11.00")
	}
}

// =============================================================================
// STATUS HELPERS
// =============================================================================

func TestEntryStatus_OpenAndTerminal(t *testing.T) {
	open := []core.EntryStatus{core.EntryPlanned, core.EntryConfirmed}
	for _, s := range open {
		if !s.IsOpen() || s.IsTerminal() {
			t.Errorf("%s should be open, not terminal", s)
		}
	}
	terminal := []core.EntryStatus{core.EntryCompleted, core.EntryCancelled}
	for _, s := range terminal {
		if s.IsOpen() || !s.IsTerminal() {
			t.Errorf("%s should be terminal, not open", s)
		}
	}
}

func TestPaymentSystemKind_TasksEnabled(t *testing.T) {
	if core.SystemHourly.TasksEnabled() {
		t.Error("plain hourly must not pay for tasks")
	}
	if !core.SystemHourlyTasks.TasksEnabled() {
		t.Error("hourly_tasks is the task-aware kind")
	}
}

// =============================================================================
// CONTRACT HELPERS
// =============================================================================

func TestContract_AllowsObject(t *testing.T) {
	unrestricted := core.Contract{Status: core.ContractActive}
	if !unrestricted.AllowsObject("obj-anything") {
		t.Error("an empty allow-list permits every object")
	}

	restricted := core.Contract{
		Status:           core.ContractActive,
		AllowedObjectIDs: []core.ObjectID{"obj-cafe"},
	}
	if !restricted.AllowsObject("obj-cafe") {
		t.Error("listed object should be allowed")
	}
	if restricted.AllowsObject("obj-depot") {
		t.Error("unlisted object should be rejected")
	}
}

func TestContract_IsActive(t *testing.T) {
	for _, tc := range []struct {
		status core.ContractStatus
		want   bool
	}{
		{core.ContractDraft, false},
		{core.ContractActive, true},
		{core.ContractTerminated, false},
	} {
		c := core.Contract{Status: tc.status}
		if c.IsActive() != tc.want {
			t.Errorf("status %s: active = %v, want %v", tc.status, c.IsActive(), tc.want)
		}
	}
}
