// Package amortization builds installment schedules and distributes payments
// across them. Everything here is pure calculation: no I/O, no clocks.
package amortization

import (
	"time"

	"github.com/shopspring/decimal"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
)

// DefaultMonths is the standard credit term.
const DefaultMonths = 18

// Status of a single installment.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// AppliedPayment links a payment to the part of it applied to an installment.
type AppliedPayment struct {
	PaymentID     id.ID       `json:"paymentId" db:"payment_id"`
	AppliedAmount types.Money `json:"appliedAmount" db:"applied_amount"`
	PaidOn        time.Time   `json:"paidOn" db:"paid_on"`
}

// Installment is one row of an amortization table.
// Invariant: AmountPaid + AmountRemaining == Amount.
type Installment struct {
	Number          int              `json:"number" db:"number"`
	DueDate         time.Time        `json:"dueDate" db:"due_date"`
	Amount          types.Money      `json:"amount" db:"amount"`
	AmountPaid      types.Money      `json:"amountPaid" db:"amount_paid"`
	AmountRemaining types.Money      `json:"amountRemaining" db:"amount_remaining"`
	Status          Status           `json:"status" db:"status"`
	Payments        []AppliedPayment `json:"payments,omitempty" db:"-"`
}

// IsSettled reports whether nothing is left to pay on the installment.
func (i *Installment) IsSettled() bool {
	return !i.AmountRemaining.IsPositive()
}

// GenerateTable splits balance into months installments due monthly after start.
//
// Each installment is balance/months rounded to cents; the last one absorbs the
// rounding remainder so the table sums exactly to balance.
func GenerateTable(balance types.Money, months int, start time.Time) ([]Installment, error) {
	if months <= 0 {
		return nil, apperror.NewValidation("months must be positive").WithDetail("months", months)
	}
	if !balance.IsPositive() {
		return nil, apperror.NewValidation("balance must be positive").WithDetail("balance", balance.String())
	}

	monthly := types.Round2(balance.Div(decimal.NewFromInt(int64(months))))
	last := balance.Sub(monthly.Mul(decimal.NewFromInt(int64(months - 1))))
	if !monthly.IsPositive() || !last.IsPositive() {
		return nil, apperror.NewBadRequest(apperror.CodeBalanceTooSmall,
			"Balance is too small to be split into the requested number of installments").
			WithDetail("balance", balance.String()).
			WithDetail("months", months)
	}

	table := make([]Installment, months)
	for i := range table {
		amount := monthly
		if i == months-1 {
			amount = last
		}
		table[i] = Installment{
			Number:          i + 1,
			DueDate:         AddMonthsClamped(start, i+1),
			Amount:          amount,
			AmountPaid:      decimal.Zero,
			AmountRemaining: amount,
			Status:          StatusPending,
		}
	}
	return table, nil
}

// AddMonthsClamped adds n calendar months to t. When the target month is shorter
// than t's day, the result is the last day of that month (Jan 31 + 1 = Feb 28/29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return first.AddDate(0, 0, day-1)
}

// Total sums the nominal amounts of a table.
func Total(table []Installment) types.Money {
	sum := decimal.Zero
	for i := range table {
		sum = sum.Add(table[i].Amount)
	}
	return sum
}

// Outstanding sums the remaining amounts of a table.
func Outstanding(table []Installment) types.Money {
	sum := decimal.Zero
	for i := range table {
		sum = sum.Add(table[i].AmountRemaining)
	}
	return sum
}

// RefreshOverdue marks unsettled installments due before today as overdue.
// Returns true when any installment changed.
func RefreshOverdue(table []Installment, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	changed := false
	for i := range table {
		inst := &table[i]
		if (inst.Status == StatusPending || inst.Status == StatusPartial) && inst.DueDate.Before(today) {
			inst.Status = StatusOverdue
			changed = true
		}
	}
	return changed
}

// HasOverdue reports whether any installment is overdue.
func HasOverdue(table []Installment) bool {
	for i := range table {
		if table[i].Status == StatusOverdue {
			return true
		}
	}
	return false
}
