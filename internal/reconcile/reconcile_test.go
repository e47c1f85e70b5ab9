package reconcile

import (
	"testing"
	"time"

	"alshawaya/backend/internal/domain"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"9500", 950000},
		{"9500.50", 950050},
		{"  120.5 ", 12050},
		{"", 0},
		{"abc", 0},
		{"-50", -5000},
		{"0.999", 99},
	}
	for _, tc := range cases {
		if got := ParseAmount(tc.in); got != tc.want {
			t.Fatalf("ParseAmount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(-10000); got != "-100.00" {
		t.Fatalf("FormatCents(-10000) = %q", got)
	}
	if got := FormatCents(950050); got != "9500.50" {
		t.Fatalf("FormatCents(950050) = %q", got)
	}
}

func TestComputeShortDrawer(t *testing.T) {
	report := Compute(domain.ReconciliationRequest{
		CashierID:       "cashier1",
		BusinessDayFrom: "2026-08-28",
		BusinessDayTo:   "2026-08-28",
		PhysicalCash:    "9500",
		OnlineBills:     "800",
		Others:          "-50",
		ReturnAmount:    "200",
		Expenses:        "150",
	}, 42, 1000000, time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC))

	if report.NetPhysicalBalanceCents != 990000 {
		t.Fatalf("expected net 990000, got %d", report.NetPhysicalBalanceCents)
	}
	if report.DifferenceCents != -10000 {
		t.Fatalf("expected difference -10000, got %d", report.DifferenceCents)
	}
	if report.Balanced {
		t.Fatalf("expected unbalanced report")
	}
	if report.SaleCount != 42 {
		t.Fatalf("expected sale count carried through, got %d", report.SaleCount)
	}
	if report.GeneratedAt != "2026-08-28T23:30:00Z" {
		t.Fatalf("unexpected generated_at: %s", report.GeneratedAt)
	}
}

func TestComputeBalancedOnlyAtExactZero(t *testing.T) {
	balanced := Compute(domain.ReconciliationRequest{PhysicalCash: "100"}, 1, 10000, time.Now())
	if !balanced.Balanced || balanced.DifferenceCents != 0 {
		t.Fatalf("expected exact match to balance, got %+v", balanced)
	}

	offByOne := Compute(domain.ReconciliationRequest{PhysicalCash: "100.01"}, 1, 10000, time.Now())
	if offByOne.Balanced {
		t.Fatalf("expected one-cent surplus to be unbalanced")
	}
}

func TestComputeTreatsGarbageAsZero(t *testing.T) {
	report := Compute(domain.ReconciliationRequest{
		PhysicalCash: "not-a-number",
		OnlineBills:  "",
	}, 0, 0, time.Now())
	if report.NetPhysicalBalanceCents != 0 || !report.Balanced {
		t.Fatalf("expected zeroed report, got %+v", report)
	}
}
