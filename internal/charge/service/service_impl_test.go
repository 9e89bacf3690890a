package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/internal/clock"
	conceptdomain "github.com/smallbiznis/aula/internal/concept/domain"
	"github.com/smallbiznis/aula/internal/money"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	"github.com/smallbiznis/aula/internal/rate/repository"
	rateservice "github.com/smallbiznis/aula/internal/rate/service"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	studentdomain "github.com/smallbiznis/aula/internal/student/domain"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var pageAll = pagination.Pagination{}

type chargeFixture struct {
	svc     domain.Service
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	rateSvc ratedomain.Service

	rep     repdomain.Representative
	student studentdomain.Student
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupChargeService(t *testing.T) *chargeFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&ratedomain.ExchangeRate{},
		&repdomain.Representative{},
		&studentdomain.GradeLevel{},
		&studentdomain.Student{},
		&conceptdomain.ChargeConcept{},
		&domain.AppliedCharge{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node := mustNode(t)
	fake := clock.NewFakeClock(day(2026, time.March, 10))
	rateSvc := rateservice.New(rateservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: repository.Provide(),
	})

	f := &chargeFixture{
		db:      db,
		node:    node,
		clock:   fake,
		rateSvc: rateSvc,
		svc: New(ServiceParam{
			DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, RateSvc: rateSvc,
		}),
	}

	f.rep = repdomain.Representative{
		ID: node.Generate(), FirstName: "Carmen", LastName: "Paredes",
		Cedula: "V-11222333", Email: "carmen@example.com",
	}
	if err := db.Create(&f.rep).Error; err != nil {
		t.Fatalf("seed representative: %v", err)
	}
	f.student = studentdomain.Student{
		ID: node.Generate(), FirstName: "Diego", LastName: "Paredes",
		RepresentativeID: f.rep.ID, IsActive: true,
	}
	if err := db.Create(&f.student).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return f
}

func (f *chargeFixture) concept(t *testing.T, amount float64, currency money.Currency) conceptdomain.ChargeConcept {
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
	if err := f.db.Create(&concept).Error; err != nil {
		t.Fatalf("seed concept: %v", err)
	}
	return concept
}

func (f *chargeFixture) usdRate(t *testing.T, rate float64, onDate time.Time) {
	t.Helper()
	_, err := f.rateSvc.Create(context.Background(), ratedomain.CreateRateRequest{
		FromCurrency: money.USD, ToCurrency: money.VES, Rate: rate, RateDate: onDate,
	})
	if err != nil {
		t.Fatalf("seed rate: %v", err)
	}
}

func TestCreateChargeVES(t *testing.T) {
	f := setupChargeService(t)
	ctx := context.Background()
	concept := f.concept(t, 1500, money.VES)

	charge, err := f.svc.Create(ctx, domain.CreateChargeRequest{
		StudentID:   f.student.ID,
		ConceptID:   concept.ID,
		Description: "Mensualidad Marzo",
		IssueDate:   day(2026, time.March, 1),
		DueDate:     day(2026, time.March, 5),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if charge.Currency != money.VES {
		t.Fatalf("currency = %s", charge.Currency)
	}
	if charge.AmountDueVESAtEmission != 1500 || charge.AmountDueOriginal != 1500 {
		t.Fatalf("amounts = %v / %v", charge.AmountDueOriginal, charge.AmountDueVESAtEmission)
	}
	if charge.ExchangeRateAtEmission != nil {
		t.Fatal("VES charge should not carry a rate")
	}
	if charge.Status != domain.ChargeStatusPending {
		t.Fatalf("status = %s", charge.Status)
	}
}

func TestCreateChargeIndexedWithScholarship(t *testing.T) {
	f := setupChargeService(t)
	ctx := context.Background()

	f.student.HasScholarship = true
	f.student.ScholarshipPercentage = 25
	if err := f.db.Save(&f.student).Error; err != nil {
		t.Fatalf("update student: %v", err)
	}

	f.usdRate(t, 40, day(2026, time.March, 1))
	concept := f.concept(t, 100, money.USD)

	charge, err := f.svc.Create(ctx, domain.CreateChargeRequest{
		StudentID: f.student.ID,
		ConceptID: concept.ID,
		IssueDate: day(2026, time.March, 1),
		DueDate:   day(2026, time.March, 5),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 100 USD at 40 = 4000 VES, minus 25% scholarship = 3000 VES. The
	// indexed original is back-computed from the discounted value.
	if charge.AmountDueVESAtEmission != 3000 {
		t.Fatalf("due VES = %v, want 3000", charge.AmountDueVESAtEmission)
	}
	if charge.AmountDueOriginal != 75 {
		t.Fatalf("due original = %v, want 75", charge.AmountDueOriginal)
	}
	if charge.ExchangeRateAtEmission == nil || *charge.ExchangeRateAtEmission != 40 {
		t.Fatalf("rate at emission = %v", charge.ExchangeRateAtEmission)
	}
	if !charge.Indexed() {
		t.Fatal("USD charge should be indexed")
	}
}

func TestCreateChargeGuards(t *testing.T) {
	f := setupChargeService(t)
	ctx := context.Background()
	concept := f.concept(t, 1500, money.VES)

	// Due date before issue date.
	_, err := f.svc.Create(ctx, domain.CreateChargeRequest{
		StudentID: f.student.ID, ConceptID: concept.ID,
		IssueDate: day(2026, time.March, 10), DueDate: day(2026, time.March, 5),
	})
	if !errors.Is(err, domain.ErrInvalidDates) {
		t.Fatalf("err = %v, want ErrInvalidDates", err)
	}

	// Missing USD rate surfaces the rate error.
	usdConcept := f.concept(t, 100, money.USD)
	_, err = f.svc.Create(ctx, domain.CreateChargeRequest{
		StudentID: f.student.ID, ConceptID: usdConcept.ID,
		IssueDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 5),
	})
	if !errors.Is(err, ratedomain.ErrRateMissing) {
		t.Fatalf("err = %v, want ErrRateMissing", err)
	}

	// Inactive student.
	f.student.IsActive = false
	if err := f.db.Save(&f.student).Error; err != nil {
		t.Fatalf("update student: %v", err)
	}
	_, err = f.svc.Create(ctx, domain.CreateChargeRequest{
		StudentID: f.student.ID, ConceptID: concept.ID,
		IssueDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 5),
	})
	if !errors.Is(err, domain.ErrStudentInactive) {
		t.Fatalf("err = %v, want ErrStudentInactive", err)
	}

	// Inactive concept.
	f.student.IsActive = true
	if err := f.db.Save(&f.student).Error; err != nil {
		t.Fatalf("update student: %v", err)
	}
	concept.IsActive = false
	if err := f.db.Save(&concept).Error; err != nil {
		t.Fatalf("update concept: %v", err)
	}
	_, err = f.svc.Create(ctx, domain.CreateChargeRequest{
		StudentID: f.student.ID, ConceptID: concept.ID,
		IssueDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 5),
	})
	if !errors.Is(err, domain.ErrConceptInactive) {
		t.Fatalf("err = %v, want ErrConceptInactive", err)
	}

	_, err = f.svc.Create(ctx, domain.CreateChargeRequest{
		StudentID: f.node.Generate(), ConceptID: concept.ID,
		IssueDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 5),
	})
	if !errors.Is(err, domain.ErrStudentNotFound) {
		t.Fatalf("err = %v, want ErrStudentNotFound", err)
	}
}

func TestUpdateChargeStatus(t *testing.T) {
	f := setupChargeService(t)
	ctx := context.Background()
	concept := f.concept(t, 1500, money.VES)

	issue := func() domain.AppliedCharge {
		t.Helper()
		charge, err := f.svc.Create(ctx, domain.CreateChargeRequest{
			StudentID: f.student.ID, ConceptID: concept.ID,
			IssueDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 5),
		})
		if err != nil {
			t.Fatalf("issue charge: %v", err)
		}
		return charge
	}

	// Pending -> overdue -> pending -> cancelled -> pending.
	charge := issue()
	if _, err := f.svc.UpdateStatus(ctx, charge.ID, domain.ChargeStatusOverdue); err != nil {
		t.Fatalf("flag overdue: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, charge.ID, domain.ChargeStatusPending); err != nil {
		t.Fatalf("back to pending: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, charge.ID, domain.ChargeStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	reinstated, err := f.svc.UpdateStatus(ctx, charge.ID, domain.ChargeStatusPending)
	if err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	if reinstated.Status != domain.ChargeStatusPending {
		t.Fatalf("status = %s", reinstated.Status)
	}

	// Paid is not a manual transition.
	if _, err := f.svc.UpdateStatus(ctx, charge.ID, domain.ChargeStatusPaid); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}

	// A charge with money on it cannot be cancelled.
	paid := issue()
	paid.AmountPaidVES = 500
	paid.AmountPaidOriginal = 500
	paid.Status = domain.ChargeStatusPartiallyPaid
	if err := f.db.Save(&paid).Error; err != nil {
		t.Fatalf("save charge: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, paid.ID, domain.ChargeStatusCancelled); !errors.Is(err, domain.ErrChargeHasMoney) {
		t.Fatalf("err = %v, want ErrChargeHasMoney", err)
	}

	// An invoiced charge cannot be cancelled either.
	invoiced := issue()
	invoiceID := f.node.Generate()
	invoiced.InvoiceID = &invoiceID
	if err := f.db.Save(&invoiced).Error; err != nil {
		t.Fatalf("save charge: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, invoiced.ID, domain.ChargeStatusCancelled); !errors.Is(err, domain.ErrChargeInvoiced) {
		t.Fatalf("err = %v, want ErrChargeInvoiced", err)
	}

	// Overdue only applies to open unpaid states.
	cancelled := issue()
	if _, err := f.svc.UpdateStatus(ctx, cancelled.ID, domain.ChargeStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, cancelled.ID, domain.ChargeStatusOverdue); !errors.Is(err, domain.ErrForbiddenStatus) {
		t.Fatalf("err = %v, want ErrForbiddenStatus", err)
	}
}

func TestListCharges(t *testing.T) {
	f := setupChargeService(t)
	ctx := context.Background()
	concept := f.concept(t, 1500, money.VES)

	for d := 1; d <= 3; d++ {
		_, err := f.svc.Create(ctx, domain.CreateChargeRequest{
			StudentID: f.student.ID, ConceptID: concept.ID,
			IssueDate: day(2026, time.March, d), DueDate: day(2026, time.March, d+4),
		})
		if err != nil {
			t.Fatalf("issue charge: %v", err)
		}
	}

	out, err := f.svc.List(ctx, domain.ListChargeFilter{StudentID: f.student.ID}, pageAll)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if out.Total != 3 {
		t.Fatalf("total = %d, want 3", out.Total)
	}
	// Earliest due date first.
	if !out.Items[0].DueDate.Equal(day(2026, time.March, 5)) {
		t.Fatalf("first due date = %v", out.Items[0].DueDate)
	}

	out, err = f.svc.List(ctx, domain.ListChargeFilter{RepresentativeID: f.rep.ID}, pageAll)
	if err != nil {
		t.Fatalf("List by representative: %v", err)
	}
	if out.Total != 3 {
		t.Fatalf("total = %d, want 3", out.Total)
	}

	issueFrom := day(2026, time.March, 2)
	out, err = f.svc.List(ctx, domain.ListChargeFilter{IssueFrom: &issueFrom}, pageAll)
	if err != nil {
		t.Fatalf("List by issue date: %v", err)
	}
	if out.Total != 2 {
		t.Fatalf("total = %d, want 2", out.Total)
	}
}
