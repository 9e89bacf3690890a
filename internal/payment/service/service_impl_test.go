package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	chargeservice "github.com/smallbiznis/aula/internal/charge/service"
	"github.com/smallbiznis/aula/internal/clock"
	conceptdomain "github.com/smallbiznis/aula/internal/concept/domain"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/internal/payment/domain"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	"github.com/smallbiznis/aula/internal/rate/repository"
	rateservice "github.com/smallbiznis/aula/internal/rate/service"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	studentdomain "github.com/smallbiznis/aula/internal/student/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type paymentFixture struct {
	svc       domain.Service
	chargeSvc chargedomain.Service
	rateSvc   ratedomain.Service
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock

	rep     repdomain.Representative
	student studentdomain.Student
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupPaymentService(t *testing.T) *paymentFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ratedomain.ExchangeRate{},
		&repdomain.Representative{},
		&studentdomain.Student{},
		&conceptdomain.ChargeConcept{},
		&chargedomain.AppliedCharge{},
		&domain.Payment{},
		&domain.PaymentAllocation{},
	))

	node := mustNode(t)
	fake := clock.NewFakeClock(day(2026, time.March, 10))
	rateSvc := rateservice.New(rateservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: repository.Provide(),
	})
	chargeSvc := chargeservice.New(chargeservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, RateSvc: rateSvc,
	})

	f := &paymentFixture{
		db:        db,
		node:      node,
		clock:     fake,
		rateSvc:   rateSvc,
		chargeSvc: chargeSvc,
		svc: New(ServiceParam{
			DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, RateSvc: rateSvc,
		}),
	}

	f.rep = repdomain.Representative{
		ID: node.Generate(), FirstName: "Luisa", LastName: "Mora",
		Cedula: "V-9888777", Email: "luisa@example.com",
	}
	require.NoError(t, db.Create(&f.rep).Error)
	f.student = studentdomain.Student{
		ID: node.Generate(), FirstName: "Sofía", LastName: "Mora",
		RepresentativeID: f.rep.ID, IsActive: true,
	}
	require.NoError(t, db.Create(&f.student).Error)
	return f
}

func (f *paymentFixture) usdRate(t *testing.T, rate float64, onDate time.Time) {
	t.Helper()
	_, err := f.rateSvc.Create(context.Background(), ratedomain.CreateRateRequest{
		FromCurrency: money.USD, ToCurrency: money.VES, Rate: rate, RateDate: onDate,
	})
	require.NoError(t, err)
}

// charge issues a charge for the fixture student through the real
// charge service, seeding a concept with the given default amount.
func (f *paymentFixture) charge(t *testing.T, amount float64, currency money.Currency, issueDate, dueDate time.Time) chargedomain.AppliedCharge {
	t.Helper()
	concept := conceptdomain.ChargeConcept{
		ID:                    f.node.Generate(),
		Name:                  fmt.Sprintf("Concepto %d", f.node.Generate()),
		Code:                  fmt.Sprintf("concepto-%d", f.node.Generate()),
		DefaultAmount:         amount,
		DefaultAmountCurrency: currency,
		Frequency:             conceptdomain.FrequencyMonthly,
		Category:              conceptdomain.CategoryTuition,
		IsActive:              true,
	}
	require.NoError(t, f.db.Create(&concept).Error)

	charge, err := f.chargeSvc.Create(context.Background(), chargedomain.CreateChargeRequest{
		StudentID: f.student.ID, ConceptID: concept.ID,
		IssueDate: issueDate, DueDate: dueDate,
	})
	require.NoError(t, err)
	return charge
}

func (f *paymentFixture) reloadCharge(t *testing.T, id snowflake.ID) chargedomain.AppliedCharge {
	t.Helper()
	charge, err := f.chargeSvc.GetByID(context.Background(), id)
	require.NoError(t, err)
	return charge
}

func TestCreatePaymentFullAllocation(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	charge := f.charge(t, 1500, money.VES, day(2026, time.March, 1), day(2026, time.March, 5))

	payment, err := f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID,
		PaymentDate:      day(2026, time.March, 10),
		Amount:           1500,
		Currency:         money.VES,
		PaymentMethod:    "transfer",
		Allocations:      []domain.AllocationRequest{{ChargeID: charge.ID, Amount: 1500}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, payment.ReceiptToken)
	require.Equal(t, 1500.0, payment.AmountVESEquivalent)
	require.Nil(t, payment.ExchangeRateApplied)

	updated := f.reloadCharge(t, charge.ID)
	require.Equal(t, chargedomain.ChargeStatusPaid, updated.Status)
	require.Equal(t, 1500.0, updated.AmountPaidVES)

	allocations, err := f.svc.Allocations(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	require.Equal(t, charge.ID, allocations[0].ChargeID)

	remainder, err := f.svc.UnallocatedAmount(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, remainder)
}

func TestCreatePaymentUSDConversion(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	f.usdRate(t, 40, day(2026, time.March, 10))

	payment, err := f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID,
		PaymentDate:      day(2026, time.March, 10),
		Amount:           100,
		Currency:         money.USD,
	})
	require.NoError(t, err)
	require.Equal(t, 4000.0, payment.AmountVESEquivalent)
	require.NotNil(t, payment.ExchangeRateApplied)
	require.Equal(t, 40.0, *payment.ExchangeRateApplied)

	// The whole payment is credit until allocated.
	credit, err := f.svc.TotalAvailableCredit(ctx, f.rep.ID)
	require.NoError(t, err)
	require.Equal(t, 4000.0, credit)
}

func TestIndexedChargeSettlement(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()

	// Issued at 40: 100 USD = 4000 VES at emission.
	f.usdRate(t, 40, day(2026, time.March, 1))
	charge := f.charge(t, 100, money.USD, day(2026, time.March, 1), day(2026, time.March, 5))
	require.Equal(t, 100.0, charge.AmountDueOriginal)
	require.Equal(t, 4000.0, charge.AmountDueVESAtEmission)

	// The rate moved to 42 by the time the family pays.
	f.usdRate(t, 42, day(2026, time.March, 15))

	// A VES payment covers half the debt: 2100 VES at 42 is 50 USD.
	_, err := f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID,
		PaymentDate:      day(2026, time.March, 15),
		Amount:           2100,
		Currency:         money.VES,
		Allocations:      []domain.AllocationRequest{{ChargeID: charge.ID, Amount: 2100}},
	})
	require.NoError(t, err)

	half := f.reloadCharge(t, charge.ID)
	require.Equal(t, chargedomain.ChargeStatusPartiallyPaid, half.Status)
	require.Equal(t, 2100.0, half.AmountPaidVES)
	require.Equal(t, 50.0, half.AmountPaidOriginal)

	// Paying the remaining 50 USD settles the original debt even
	// though the VES paid exceeds the emission value.
	_, err = f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID,
		PaymentDate:      day(2026, time.March, 15),
		Amount:           50,
		Currency:         money.USD,
		Allocations:      []domain.AllocationRequest{{ChargeID: charge.ID, Amount: 50}},
	})
	require.NoError(t, err)

	settled := f.reloadCharge(t, charge.ID)
	require.Equal(t, chargedomain.ChargeStatusPaid, settled.Status)
	require.Equal(t, 100.0, settled.AmountPaidOriginal)
	require.Equal(t, 4200.0, settled.AmountPaidVES)
}

func TestCreatePaymentGuards(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	charge := f.charge(t, 1000, money.VES, day(2026, time.March, 1), day(2026, time.March, 5))

	_, err := f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID, PaymentDate: day(2026, time.March, 10),
		Amount: 0, Currency: money.VES,
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID, PaymentDate: day(2026, time.March, 10),
		Amount: 100, Currency: money.Currency("COP"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidCurrency)

	_, err = f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.node.Generate(), PaymentDate: day(2026, time.March, 10),
		Amount: 100, Currency: money.VES,
	})
	require.ErrorIs(t, err, domain.ErrRepresentativeNotFound)

	// Allocation above the charge balance.
	_, err = f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID, PaymentDate: day(2026, time.March, 10),
		Amount: 2000, Currency: money.VES,
		Allocations: []domain.AllocationRequest{{ChargeID: charge.ID, Amount: 1500}},
	})
	require.ErrorIs(t, err, domain.ErrAllocationExceeds)

	// Allocations above the payment itself.
	second := f.charge(t, 1000, money.VES, day(2026, time.March, 1), day(2026, time.March, 6))
	_, err = f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID, PaymentDate: day(2026, time.March, 10),
		Amount: 1500, Currency: money.VES,
		Allocations: []domain.AllocationRequest{
			{ChargeID: charge.ID, Amount: 1000},
			{ChargeID: second.ID, Amount: 1000},
		},
	})
	require.ErrorIs(t, err, domain.ErrOverAllocated)

	// Another family's charge.
	stranger := repdomain.Representative{
		ID: f.node.Generate(), FirstName: "Pedro", LastName: "Rojas",
		Cedula: "V-123", Email: "pedro@example.com",
	}
	require.NoError(t, f.db.Create(&stranger).Error)
	_, err = f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: stranger.ID, PaymentDate: day(2026, time.March, 10),
		Amount: 1000, Currency: money.VES,
		Allocations: []domain.AllocationRequest{{ChargeID: charge.ID, Amount: 1000}},
	})
	require.ErrorIs(t, err, domain.ErrChargeWrongOwner)

	// Cancelled charges take no money.
	cancelled := f.charge(t, 1000, money.VES, day(2026, time.March, 1), day(2026, time.March, 6))
	_, err = f.chargeSvc.UpdateStatus(ctx, cancelled.ID, chargedomain.ChargeStatusCancelled)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID, PaymentDate: day(2026, time.March, 10),
		Amount: 1000, Currency: money.VES,
		Allocations: []domain.AllocationRequest{{ChargeID: cancelled.ID, Amount: 1000}},
	})
	require.ErrorIs(t, err, domain.ErrChargeNotPayable)
}

// setupPaymentServiceWithForeignKeys mirrors the production schema for
// payments and their allocations: real REFERENCES constraints with the
// sqlite foreign_keys pragma on, instead of AutoMigrate's bare tables.
func setupPaymentServiceWithForeignKeys(t *testing.T) *paymentFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ratedomain.ExchangeRate{},
		&repdomain.Representative{},
		&studentdomain.Student{},
		&conceptdomain.ChargeConcept{},
		&chargedomain.AppliedCharge{},
	))
	require.NoError(t, db.Exec(`CREATE TABLE payments (
		id INTEGER PRIMARY KEY,
		representative_id INTEGER NOT NULL REFERENCES representatives (id),
		payment_date DATE NOT NULL,
		amount_original REAL NOT NULL,
		currency TEXT NOT NULL,
		amount_ves_equivalent REAL NOT NULL,
		exchange_rate_applied REAL,
		payment_method TEXT,
		reference_number TEXT,
		receipt_token TEXT NOT NULL,
		notes TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE payment_allocations (
		id INTEGER PRIMARY KEY,
		payment_id INTEGER NOT NULL REFERENCES payments (id),
		applied_charge_id INTEGER NOT NULL REFERENCES applied_charges (id),
		amount_ves REAL NOT NULL,
		created_at DATETIME NOT NULL
	)`).Error)

	node := mustNode(t)
	fake := clock.NewFakeClock(day(2026, time.March, 10))
	rateSvc := rateservice.New(rateservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: repository.Provide(),
	})
	chargeSvc := chargeservice.New(chargeservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, RateSvc: rateSvc,
	})

	f := &paymentFixture{
		db:        db,
		node:      node,
		clock:     fake,
		rateSvc:   rateSvc,
		chargeSvc: chargeSvc,
		svc: New(ServiceParam{
			DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, RateSvc: rateSvc,
		}),
	}

	f.rep = repdomain.Representative{
		ID: node.Generate(), FirstName: "Luisa", LastName: "Mora",
		Cedula: "V-9888777", Email: "luisa@example.com",
	}
	require.NoError(t, db.Create(&f.rep).Error)
	f.student = studentdomain.Student{
		ID: node.Generate(), FirstName: "Sofía", LastName: "Mora",
		RepresentativeID: f.rep.ID, IsActive: true,
	}
	require.NoError(t, db.Create(&f.student).Error)
	return f
}

func TestCreatePaymentUnderForeignKeys(t *testing.T) {
	f := setupPaymentServiceWithForeignKeys(t)
	ctx := context.Background()
	charge := f.charge(t, 1500, money.VES, day(2026, time.March, 1), day(2026, time.March, 5))

	payment, err := f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID,
		PaymentDate:      day(2026, time.March, 10),
		Amount:           1500,
		Currency:         money.VES,
		PaymentMethod:    "transfer",
		Allocations:      []domain.AllocationRequest{{ChargeID: charge.ID, Amount: 1500}},
	})
	require.NoError(t, err)

	allocations, err := f.svc.Allocations(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, allocations, 1)

	updated := f.reloadCharge(t, charge.ID)
	require.Equal(t, chargedomain.ChargeStatusPaid, updated.Status)
}

func TestAllocationLimitUsesTodaysRate(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()

	// 100 USD issued at 35: 3500 VES at emission. By today the rate
	// moved to 42, so the debt is worth 4200 VES.
	f.usdRate(t, 35, day(2026, time.March, 1))
	f.usdRate(t, 42, day(2026, time.March, 10))
	charge := f.charge(t, 100, money.USD, day(2026, time.March, 1), day(2026, time.March, 5))

	// A back-dated payment still gets the full current valuation.
	_, err := f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID, PaymentDate: day(2026, time.March, 1),
		Amount: 4200, Currency: money.VES,
		Allocations: []domain.AllocationRequest{{ChargeID: charge.ID, Amount: 4200}},
	})
	require.NoError(t, err)

	settled := f.reloadCharge(t, charge.ID)
	require.Equal(t, chargedomain.ChargeStatusPaid, settled.Status)
	require.Equal(t, 4200.0, settled.AmountPaidVES)

	// One bolívar past today's valuation is rejected.
	second := f.charge(t, 100, money.USD, day(2026, time.March, 1), day(2026, time.March, 5))
	_, err = f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID, PaymentDate: day(2026, time.March, 1),
		Amount: 4300, Currency: money.VES,
		Allocations: []domain.AllocationRequest{{ChargeID: second.ID, Amount: 4300}},
	})
	require.ErrorIs(t, err, domain.ErrAllocationExceeds)
}

func TestApplyCreditDrainsOldestFirst(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()

	older := f.charge(t, 100, money.VES, day(2026, time.February, 1), day(2026, time.February, 5))
	newer := f.charge(t, 200, money.VES, day(2026, time.March, 1), day(2026, time.March, 5))

	// Two unallocated payments: 80 then 150.
	first, err := f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID, PaymentDate: day(2026, time.March, 1),
		Amount: 80, Currency: money.VES,
	})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID, PaymentDate: day(2026, time.March, 2),
		Amount: 150, Currency: money.VES,
	})
	require.NoError(t, err)

	credit, err := f.svc.TotalAvailableCredit(ctx, f.rep.ID)
	require.NoError(t, err)
	require.Equal(t, 230.0, credit)

	result, err := f.svc.ApplyCredit(ctx, f.rep.ID)
	require.NoError(t, err)
	require.Equal(t, 230.0, result.TotalAppliedVES)
	require.Equal(t, 0.0, result.RemainingCredit)
	require.Len(t, result.Applications, 3)

	// The oldest charge consumes the oldest payment first.
	require.Equal(t, older.ID, result.Applications[0].ChargeID)
	require.Equal(t, first.ID, result.Applications[0].PaymentID)
	require.Equal(t, 80.0, result.Applications[0].AmountVES)

	paidOff := f.reloadCharge(t, older.ID)
	require.Equal(t, chargedomain.ChargeStatusPaid, paidOff.Status)

	partial := f.reloadCharge(t, newer.ID)
	require.Equal(t, chargedomain.ChargeStatusPartiallyPaid, partial.Status)
	require.Equal(t, 130.0, partial.AmountPaidVES)

	// Nothing left to drain.
	credit, err = f.svc.TotalAvailableCredit(ctx, f.rep.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, credit)
}

func TestApplyCreditWithoutCharges(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreatePaymentRequest{
		RepresentativeID: f.rep.ID, PaymentDate: day(2026, time.March, 1),
		Amount: 500, Currency: money.VES,
	})
	require.NoError(t, err)

	result, err := f.svc.ApplyCredit(ctx, f.rep.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, result.TotalAppliedVES)
	require.Equal(t, 500.0, result.RemainingCredit)
	require.Empty(t, result.Applications)
}

func TestApplyExplicitCredit(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()

	charge := f.charge(t, 40, money.VES, day(2026, time.March, 1), day(2026, time.March, 5))

	f.rep.AvailableCreditVES = 50
	require.NoError(t, f.db.Save(&f.rep).Error)

	result, err := f.svc.ApplyExplicitCredit(ctx, f.rep.ID)
	require.NoError(t, err)
	require.Equal(t, 40.0, result.TotalAppliedVES)
	require.Equal(t, 10.0, result.RemainingCredit)

	// The balance became a synthetic payment and the row was zeroed.
	var rep repdomain.Representative
	require.NoError(t, f.db.First(&rep, "id = ?", f.rep.ID).Error)
	require.Equal(t, 0.0, rep.AvailableCreditVES)

	var synthetic domain.Payment
	require.NoError(t, f.db.First(&synthetic, "payment_method = ?", domain.MethodCreditBalance).Error)
	require.Equal(t, 50.0, synthetic.AmountVESEquivalent)

	settled := f.reloadCharge(t, charge.ID)
	require.Equal(t, chargedomain.ChargeStatusPaid, settled.Status)

	// The leftover 10 VES survives as an unallocated remainder.
	credit, err := f.svc.TotalAvailableCredit(ctx, f.rep.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, credit)

	// A second run has no balance to convert.
	_, err = f.svc.ApplyExplicitCredit(ctx, f.rep.ID)
	require.ErrorIs(t, err, domain.ErrNoCredit)
}
