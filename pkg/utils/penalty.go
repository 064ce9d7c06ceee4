package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// UnitsPerMonth is the consultation allowance granted per cycle.
	UnitsPerMonth = 4

	// WithdrawalWindowDays is the statutory withdrawal window: a customer
	// cancelling within it owes no penalty and is refunded the unconsumed
	// part of the plan.
	WithdrawalWindowDays = 7

	// PenaltyRate is the early-termination penalty, as a fraction of the
	// value remaining on the commitment period.
	PenaltyRate = "0.20"
)

var penaltyRate = decimal.RequireFromString(PenaltyRate)

// DaysUsed counts civil days of service between the contract start and a
// reference instant. The day the contract starts counts as day 1.
func DaysUsed(start, at time.Time) int {
	if at.Before(start) {
		return 0
	}
	return int(at.Sub(start).Hours()/24) + 1
}

// InWithdrawalWindow reports whether a cancellation at the given instant
// still falls inside the statutory withdrawal window.
func InWithdrawalWindow(start, at time.Time) bool {
	d := DaysUsed(start, at)
	return d >= 1 && d <= WithdrawalWindowDays
}

// ConsumedValue prices the consultations already used in a cycle at the
// per-unit rate (cycle price divided by the allowance).
func ConsumedValue(price decimal.Decimal, used int) decimal.Decimal {
	if used <= 0 {
		return decimal.Zero
	}
	if used > UnitsPerMonth {
		used = UnitsPerMonth
	}
	unit := price.Div(decimal.NewFromInt(UnitsPerMonth))
	return unit.Mul(decimal.NewFromInt(int64(used))).Round(2)
}

// WithdrawalRefund computes the refund owed for a withdrawal-window
// cancellation: the plan price minus the value of consultations consumed.
// A cycle whose full allowance was consumed and which has already ended
// has nothing left to refund.
func WithdrawalRefund(price decimal.Decimal, used int, cycleEnded bool) decimal.Decimal {
	if used >= UnitsPerMonth && cycleEnded {
		return decimal.Zero
	}
	refund := price.Sub(ConsumedValue(price, used))
	if refund.IsNegative() {
		return decimal.Zero
	}
	return refund.Round(2)
}

// PenaltyResult details an early-termination penalty computation.
type PenaltyResult struct {
	Applies       bool
	Penalty       decimal.Decimal
	DaysUsed      int
	DaysRemaining int
	TotalDays     int
	DailyRate     decimal.Decimal
	Reason        string
}

// EarlyTerminationPenalty computes the fine for breaking a commitment
// period early. Monthly plans carry no commitment and never owe one, and
// neither does any cancellation inside the withdrawal window. Otherwise
// the penalty is PenaltyRate of the daily-rate value of the days left in
// the commitment.
func EarlyTerminationPenalty(price decimal.Decimal, commitmentDays int, start, at time.Time) PenaltyResult {
	used := DaysUsed(start, at)

	if commitmentDays <= 0 {
		return PenaltyResult{DaysUsed: used, Reason: "plan has no commitment period"}
	}
	if used <= WithdrawalWindowDays {
		return PenaltyResult{
			DaysUsed:  used,
			TotalDays: commitmentDays,
			Reason:    "cancellation within withdrawal window",
		}
	}
	if used >= commitmentDays {
		return PenaltyResult{
			DaysUsed:  used,
			TotalDays: commitmentDays,
			Reason:    "commitment period already fulfilled",
		}
	}

	remaining := commitmentDays - used
	daily := price.Div(decimal.NewFromInt(int64(commitmentDays)))
	penalty := daily.Mul(decimal.NewFromInt(int64(remaining))).Mul(penaltyRate).Round(2)

	return PenaltyResult{
		Applies:       true,
		Penalty:       penalty,
		DaysUsed:      used,
		DaysRemaining: remaining,
		TotalDays:     commitmentDays,
		DailyRate:     daily.Round(4),
		Reason:        "early termination of commitment period",
	}
}

// ProportionalDiscount values the unused days of the current cycle at the
// cycle's daily rate. Applied as a credit on the first charge of the new
// plan when a customer upgrades mid-cycle.
func ProportionalDiscount(price decimal.Decimal, daysRemaining int) decimal.Decimal {
	if daysRemaining <= 0 {
		return decimal.Zero
	}
	if daysRemaining > DefaultCycleDays {
		daysRemaining = DefaultCycleDays
	}
	daily := price.Div(decimal.NewFromInt(DefaultCycleDays))
	return daily.Mul(decimal.NewFromInt(int64(daysRemaining))).Round(2)
}
