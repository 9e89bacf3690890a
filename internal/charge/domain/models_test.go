package domain

import (
	"testing"

	"github.com/smallbiznis/aula/internal/money"
)

func TestPendingAmounts(t *testing.T) {
	charge := AppliedCharge{
		AmountDueOriginal:      100,
		Currency:               money.USD,
		AmountDueVESAtEmission: 4000,
		AmountPaidOriginal:     30,
		AmountPaidVES:          1200,
	}
	if got := charge.PendingOriginal(); got != 70 {
		t.Errorf("PendingOriginal = %v, want 70", got)
	}
	if got := charge.PendingVESAtEmission(); got != 2800 {
		t.Errorf("PendingVESAtEmission = %v, want 2800", got)
	}

	// Overpayment never reports a negative remainder.
	charge.AmountPaidOriginal = 120
	charge.AmountPaidVES = 5000
	if got := charge.PendingOriginal(); got != 0 {
		t.Errorf("PendingOriginal after overpayment = %v, want 0", got)
	}
	if got := charge.PendingVESAtEmission(); got != 0 {
		t.Errorf("PendingVESAtEmission after overpayment = %v, want 0", got)
	}
}

func TestRecomputeStatusVES(t *testing.T) {
	charge := AppliedCharge{
		Currency:               money.VES,
		AmountDueOriginal:      1000,
		AmountDueVESAtEmission: 1000,
	}

	charge.RecomputeStatus()
	if charge.Status != ChargeStatusPending {
		t.Fatalf("status = %s, want pending", charge.Status)
	}

	charge.AmountPaidVES = 400
	charge.AmountPaidOriginal = 400
	charge.RecomputeStatus()
	if charge.Status != ChargeStatusPartiallyPaid {
		t.Fatalf("status = %s, want partially_paid", charge.Status)
	}

	charge.AmountPaidVES = 1000
	charge.AmountPaidOriginal = 1000
	charge.RecomputeStatus()
	if charge.Status != ChargeStatusPaid {
		t.Fatalf("status = %s, want paid", charge.Status)
	}
}

func TestRecomputeStatusIndexedSettlesOnOriginal(t *testing.T) {
	// Paying the full original amount settles the charge even when the
	// VES paid exceeds the emission value because of a rate move.
	charge := AppliedCharge{
		Currency:               money.USD,
		AmountDueOriginal:      100,
		AmountDueVESAtEmission: 4000,
		AmountPaidOriginal:     100,
		AmountPaidVES:          4500,
	}
	charge.RecomputeStatus()
	if charge.Status != ChargeStatusPaid {
		t.Fatalf("status = %s, want paid", charge.Status)
	}

	// The inverse does not settle: emission VES covered but original
	// currency still short.
	charge = AppliedCharge{
		Currency:               money.USD,
		AmountDueOriginal:      100,
		AmountDueVESAtEmission: 4000,
		AmountPaidOriginal:     90,
		AmountPaidVES:          4000,
	}
	charge.RecomputeStatus()
	if charge.Status != ChargeStatusPartiallyPaid {
		t.Fatalf("status = %s, want partially_paid", charge.Status)
	}
}

func TestRecomputeStatusKeepsOverdueAndCancelled(t *testing.T) {
	charge := AppliedCharge{
		Currency:               money.VES,
		AmountDueOriginal:      1000,
		AmountDueVESAtEmission: 1000,
		Status:                 ChargeStatusOverdue,
	}
	charge.RecomputeStatus()
	if charge.Status != ChargeStatusOverdue {
		t.Fatalf("unpaid overdue charge flipped to %s", charge.Status)
	}

	charge.Status = ChargeStatusCancelled
	charge.AmountPaidVES = 1000
	charge.AmountPaidOriginal = 1000
	charge.RecomputeStatus()
	if charge.Status != ChargeStatusCancelled {
		t.Fatalf("cancelled is sticky, got %s", charge.Status)
	}
}
