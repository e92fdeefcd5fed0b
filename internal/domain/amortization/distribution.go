package amortization

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
)

// Mode selects how a payment is spread over the table.
type Mode string

const (
	// ModeFree fills installments in ascending order.
	ModeFree Mode = "free"
	// ModeSpecific applies the payment to one named installment only.
	ModeSpecific Mode = "specific"
)

// ParseMode maps an empty or unknown value to ModeFree.
func ParseMode(s string) Mode {
	if Mode(s) == ModeSpecific {
		return ModeSpecific
	}
	return ModeFree
}

// Line is the part of a payment applied to one installment.
type Line struct {
	InstallmentNumber int         `json:"installmentNumber"`
	AppliedAmount     types.Money `json:"appliedAmount"`
	RemainingBefore   types.Money `json:"remainingBefore"`
	RemainingAfter    types.Money `json:"remainingAfter"`
}

// Distribution is the result of spreading an amount over a table.
type Distribution struct {
	Lines     []Line      `json:"lines"`
	Applied   types.Money `json:"applied"`
	Unapplied types.Money `json:"unapplied"`
}

// IsEmpty reports whether nothing could be applied.
func (d Distribution) IsEmpty() bool {
	return len(d.Lines) == 0
}

// CalculateDistribution computes how amount would be applied to table without
// mutating it. Whatever cannot be applied is reported as Unapplied.
func CalculateDistribution(table []Installment, amount types.Money, mode Mode, specificNumber int) Distribution {
	dist := Distribution{Applied: decimal.Zero, Unapplied: amount}
	if !amount.IsPositive() {
		return dist
	}

	if mode == ModeSpecific {
		for i := range table {
			inst := &table[i]
			if inst.Number != specificNumber {
				continue
			}
			if inst.IsSettled() {
				return dist
			}
			applied := types.MinMoney(amount, inst.AmountRemaining)
			dist.Lines = append(dist.Lines, Line{
				InstallmentNumber: inst.Number,
				AppliedAmount:     applied,
				RemainingBefore:   inst.AmountRemaining,
				RemainingAfter:    inst.AmountRemaining.Sub(applied),
			})
			dist.Applied = applied
			dist.Unapplied = amount.Sub(applied)
			return dist
		}
		return dist
	}

	order := make([]int, len(table))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return table[order[a]].Number < table[order[b]].Number
	})

	left := amount
	for _, idx := range order {
		if !left.IsPositive() {
			break
		}
		inst := &table[idx]
		if inst.IsSettled() {
			continue
		}
		applied := types.MinMoney(left, inst.AmountRemaining)
		dist.Lines = append(dist.Lines, Line{
			InstallmentNumber: inst.Number,
			AppliedAmount:     applied,
			RemainingBefore:   inst.AmountRemaining,
			RemainingAfter:    inst.AmountRemaining.Sub(applied),
		})
		left = left.Sub(applied)
	}

	dist.Applied = amount.Sub(left)
	dist.Unapplied = left
	return dist
}

// ApplyDistribution records dist on the table for paymentID.
// Touched installments become paid when nothing remains, partial otherwise.
func ApplyDistribution(table []Installment, dist Distribution, paymentID id.ID, paidOn time.Time) {
	byNumber := make(map[int]*Installment, len(table))
	for i := range table {
		byNumber[table[i].Number] = &table[i]
	}

	for _, line := range dist.Lines {
		inst, ok := byNumber[line.InstallmentNumber]
		if !ok {
			continue
		}
		inst.AmountPaid = inst.AmountPaid.Add(line.AppliedAmount)
		inst.AmountRemaining = inst.AmountRemaining.Sub(line.AppliedAmount)
		if inst.IsSettled() {
			inst.AmountRemaining = decimal.Zero
			inst.Status = StatusPaid
		} else {
			inst.Status = StatusPartial
		}
		inst.Payments = append(inst.Payments, AppliedPayment{
			PaymentID:     paymentID,
			AppliedAmount: line.AppliedAmount,
			PaidOn:        paidOn,
		})
	}
}

// AppliedTo converts a distribution into the installment-number → amount map
// stored on payments.
func (d Distribution) AppliedTo() map[int]types.Money {
	out := make(map[int]types.Money, len(d.Lines))
	for _, l := range d.Lines {
		out[l.InstallmentNumber] = l.AppliedAmount
	}
	return out
}
