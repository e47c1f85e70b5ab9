package reconcile

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"alshawaya/backend/internal/domain"
)

var centsFactor = decimal.NewFromInt(100)

// ParseAmount converts a declared amount to cents, truncating past two
// decimal places. Garbage input is treated as zero.
func ParseAmount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.Mul(centsFactor).IntPart()
}

// FormatCents renders cents as a plain two-decimal string, e.g. "-100" -> "-1.00".
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(centsFactor).StringFixed(2)
}

// Compute builds the reconciliation report. Net physical balance is
// what the drawer plus non-cash receipts should hold after returns and
// expenses; the difference is measured against recorded system sales
// and balances only at exactly zero.
func Compute(req domain.ReconciliationRequest, saleCount int64, systemSalesCents int64, now time.Time) domain.ReconciliationReport {
	physical := ParseAmount(req.PhysicalCash)
	online := ParseAmount(req.OnlineBills)
	others := ParseAmount(req.Others)
	returns := ParseAmount(req.ReturnAmount)
	expenses := ParseAmount(req.Expenses)

	net := (physical + online + others) - (returns + expenses)
	diff := net - systemSalesCents

	return domain.ReconciliationReport{
		CashierID:               req.CashierID,
		BusinessDayFrom:         req.BusinessDayFrom,
		BusinessDayTo:           req.BusinessDayTo,
		SaleCount:               saleCount,
		SystemSalesCents:        systemSalesCents,
		PhysicalCashCents:       physical,
		OnlineBillsCents:        online,
		OthersCents:             others,
		ReturnAmountCents:       returns,
		ExpensesCents:           expenses,
		NetPhysicalBalanceCents: net,
		DifferenceCents:         diff,
		Balanced:                diff == 0,
		GeneratedAt:             now.UTC().Format(time.RFC3339),
	}
}
