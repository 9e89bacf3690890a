package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/internal/clock"
	employeedomain "github.com/smallbiznis/aula/internal/employee/domain"
	expensedomain "github.com/smallbiznis/aula/internal/expense/domain"
	"github.com/smallbiznis/aula/internal/money"
	paymentdomain "github.com/smallbiznis/aula/internal/payment/domain"
	"github.com/smallbiznis/aula/internal/report/domain"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	schooldomain "github.com/smallbiznis/aula/internal/school/domain"
	studentdomain "github.com/smallbiznis/aula/internal/student/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type reportFixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupReportService(t *testing.T) *reportFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&schooldomain.SchoolConfiguration{},
		&repdomain.Representative{},
		&studentdomain.Student{},
		&chargedomain.AppliedCharge{},
		&paymentdomain.Payment{},
		&paymentdomain.PaymentAllocation{},
		&expensedomain.ExpenseCategory{},
		&expensedomain.Expense{},
		&employeedomain.Employee{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(day(2026, time.March, 15))

	return &reportFixture{
		db: db, node: node, clock: fake,
		svc: New(ServiceParam{DB: db, Log: zap.NewNop(), Clock: fake}),
	}
}

func (f *reportFixture) family(t *testing.T, lastName string) (repdomain.Representative, studentdomain.Student) {
	t.Helper()
	rep := repdomain.Representative{
		ID: f.node.Generate(), FirstName: "Ana", LastName: lastName,
		Cedula: fmt.Sprintf("V-%d", f.node.Generate()),
		Email:  fmt.Sprintf("%d@example.com", f.node.Generate()),
	}
	require.NoError(t, f.db.Create(&rep).Error)
	student := studentdomain.Student{
		ID: f.node.Generate(), FirstName: "Hijo", LastName: lastName,
		RepresentativeID: rep.ID, IsActive: true,
	}
	require.NoError(t, f.db.Create(&student).Error)
	return rep, student
}

func (f *reportFixture) charge(t *testing.T, studentID snowflake.ID, dueVES, paidVES float64, issue, due time.Time, status chargedomain.ChargeStatus) chargedomain.AppliedCharge {
	t.Helper()
	charge := chargedomain.AppliedCharge{
		ID: f.node.Generate(), StudentID: studentID, ConceptID: f.node.Generate(),
		Description: "Mensualidad Escolar",
		IssueDate:   issue,
		DueDate:     due,
		AmountDueOriginal: dueVES, Currency: money.VES, AmountDueVESAtEmission: dueVES,
		AmountPaidOriginal: paidVES, AmountPaidVES: paidVES,
		Status: status,
	}
	require.NoError(t, f.db.Create(&charge).Error)
	return charge
}

func (f *reportFixture) payment(t *testing.T, repID snowflake.ID, amountVES float64, onDate time.Time, method string) paymentdomain.Payment {
	t.Helper()
	payment := paymentdomain.Payment{
		ID: f.node.Generate(), RepresentativeID: repID,
		PaymentDate: onDate, AmountOriginal: amountVES, Currency: money.VES,
		AmountVESEquivalent: amountVES, PaymentMethod: method,
		ReceiptToken: fmt.Sprintf("tok-%d", f.node.Generate()),
	}
	require.NoError(t, f.db.Create(&payment).Error)
	return payment
}

func TestDelinquency(t *testing.T) {
	f := setupReportFixtureForDelinquency(t)

	entries, err := f.svc.Delinquency(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Ordered by last name.
	require.Equal(t, "Ana Alvarez", entries[0].RepresentativeName)
	require.Equal(t, domain.LevelRed, entries[0].Level)
	require.Equal(t, 1, entries[0].OverdueCharges)
	require.Equal(t, 1200.0, entries[0].OverdueVES)
	require.NotNil(t, entries[0].OldestDueDate)
	require.True(t, entries[0].OldestDueDate.Equal(day(2025, time.December, 20)))

	require.Equal(t, "Ana Bravo", entries[1].RepresentativeName)
	require.Equal(t, domain.LevelOrange, entries[1].Level)

	require.Equal(t, "Ana Castro", entries[2].RepresentativeName)
	require.Equal(t, domain.LevelGreen, entries[2].Level)
	require.Equal(t, 0, entries[2].OverdueCharges)
	require.Nil(t, entries[2].OldestDueDate)
}

func setupReportFixtureForDelinquency(t *testing.T) *reportFixture {
	t.Helper()
	f := setupReportService(t)

	// Fell due before January, well past two months back.
	_, red := f.family(t, "Alvarez")
	f.charge(t, red.ID, 1500, 300, day(2025, time.December, 1), day(2025, time.December, 20), chargedomain.ChargeStatusPartiallyPaid)

	// Fell due last month.
	_, orange := f.family(t, "Bravo")
	f.charge(t, orange.ID, 1500, 0, day(2026, time.February, 1), day(2026, time.February, 20), chargedomain.ChargeStatusOverdue)

	// Current obligations only.
	_, green := f.family(t, "Castro")
	f.charge(t, green.ID, 1500, 0, day(2026, time.March, 1), day(2026, time.March, 25), chargedomain.ChargeStatusPending)

	return f
}

func TestClassifyMonthBoundaries(t *testing.T) {
	today := day(2026, time.March, 15)

	// Red starts strictly before the first day of two months back.
	require.Equal(t, domain.LevelRed, classify(day(2025, time.December, 31), today))
	require.Equal(t, domain.LevelOrange, classify(day(2026, time.January, 1), today))
	require.Equal(t, domain.LevelOrange, classify(day(2026, time.January, 10), today))
	require.Equal(t, domain.LevelOrange, classify(day(2026, time.March, 1), today))
}

func TestAccountStatement(t *testing.T) {
	f := setupReportService(t)
	ctx := context.Background()
	rep, student := f.family(t, "Mora")

	f.charge(t, student.ID, 1500, 1500, day(2026, time.January, 1), day(2026, time.January, 5), chargedomain.ChargeStatusPaid)
	f.charge(t, student.ID, 1500, 500, day(2026, time.February, 1), day(2026, time.February, 5), chargedomain.ChargeStatusPartiallyPaid)
	// Cancelled charges stay off the statement.
	f.charge(t, student.ID, 900, 0, day(2026, time.February, 1), day(2026, time.February, 5), chargedomain.ChargeStatusCancelled)

	payment := f.payment(t, rep.ID, 2000, day(2026, time.February, 10), "transfer")
	allocation := paymentdomain.PaymentAllocation{
		ID: f.node.Generate(), PaymentID: payment.ID, ChargeID: f.node.Generate(), AmountVES: 1500,
	}
	require.NoError(t, f.db.Create(&allocation).Error)

	statement, err := f.svc.AccountStatement(ctx, rep.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana Mora", statement.RepresentativeName)
	require.Len(t, statement.Charges, 2)
	require.Equal(t, 3000.0, statement.TotalDueVES)
	require.Equal(t, 2000.0, statement.TotalPaidVES)
	require.Equal(t, 1000.0, statement.OutstandingVES)
	require.Len(t, statement.Payments, 1)
	require.Equal(t, 1500.0, statement.Payments[0].AllocatedVES)

	_, err = f.svc.AccountStatement(ctx, f.node.Generate())
	require.ErrorIs(t, err, domain.ErrRepresentativeNotFound)
}

func TestDashboard(t *testing.T) {
	f := setupReportService(t)
	ctx := context.Background()
	rep, student := f.family(t, "Mora")

	// One open charge half paid, one overdue.
	f.charge(t, student.ID, 1500, 500, day(2026, time.March, 1), day(2026, time.March, 5), chargedomain.ChargeStatusOverdue)
	f.charge(t, student.ID, 1000, 0, day(2026, time.March, 1), day(2026, time.March, 25), chargedomain.ChargeStatusPending)

	// March income, with a credit-balance application that must not
	// count as money received.
	f.payment(t, rep.ID, 800, day(2026, time.March, 10), "transfer")
	f.payment(t, rep.ID, 300, day(2026, time.March, 12), paymentdomain.MethodCreditBalance)
	// February money stays out of the March number.
	f.payment(t, rep.ID, 999, day(2026, time.February, 10), "cash")

	category := expensedomain.ExpenseCategory{ID: f.node.Generate(), Name: "Servicios"}
	require.NoError(t, f.db.Create(&category).Error)
	expense := expensedomain.Expense{
		ID: f.node.Generate(), CategoryID: category.ID, Description: "Luz",
		ExpenseDate: day(2026, time.March, 8),
		AmountOriginal: 400, Currency: money.VES, AmountVES: 400,
		Status: expensedomain.ExpenseStatusPending,
	}
	require.NoError(t, f.db.Create(&expense).Error)

	staff := employeedomain.Employee{
		ID: f.node.Generate(), FirstName: "María", LastName: "González",
		Cedula: "V-1", IsActive: true,
		SalaryType: employeedomain.SalaryTypeMonthly, BaseSalaryCurrency: money.VES,
	}
	require.NoError(t, f.db.Create(&staff).Error)

	dashboard, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), dashboard.ActiveStudents)
	require.Equal(t, int64(1), dashboard.Representatives)
	require.Equal(t, int64(1), dashboard.ActiveEmployees)
	require.Equal(t, 800.0, dashboard.MonthIncomeVES)
	require.Equal(t, 400.0, dashboard.MonthExpensesVES)
	require.Equal(t, 2000.0, dashboard.OutstandingVES)
	require.Equal(t, int64(1), dashboard.OverdueCharges)
}

func TestStudentAnnualSummary(t *testing.T) {
	f := setupReportService(t)
	ctx := context.Background()

	cfg := schooldomain.SchoolConfiguration{
		ID: f.node.Generate(), SchoolName: "U.E. Colegio Miranda",
		PaymentDueDay: 5, SchoolYearStartMonth: 9,
		NextInvoiceReference: 1, NextCreditNoteReference: 1,
	}
	require.NoError(t, f.db.Create(&cfg).Error)

	_, student := f.family(t, "Mora")
	f.charge(t, student.ID, 1500, 1500, day(2025, time.September, 1), day(2025, time.September, 5), chargedomain.ChargeStatusPaid)
	f.charge(t, student.ID, 1500, 200, day(2026, time.January, 1), day(2026, time.January, 5), chargedomain.ChargeStatusPartiallyPaid)
	// Outside the school year.
	f.charge(t, student.ID, 700, 0, day(2025, time.August, 1), day(2025, time.August, 5), chargedomain.ChargeStatusPending)

	summary, err := f.svc.StudentAnnualSummary(ctx, student.ID, 2025)
	require.NoError(t, err)
	require.Len(t, summary.Months, 12)
	require.Equal(t, 2025, summary.Months[0].Year)
	require.Equal(t, 9, summary.Months[0].Month)
	require.Equal(t, 1500.0, summary.Months[0].IssuedVES)
	require.Equal(t, 2026, summary.Months[11].Year)
	require.Equal(t, 8, summary.Months[11].Month)
	require.Equal(t, 3000.0, summary.TotalDueVES)
	require.Equal(t, 1700.0, summary.TotalPaid)

	_, err = f.svc.StudentAnnualSummary(ctx, student.ID, 1990)
	require.ErrorIs(t, err, domain.ErrInvalidYear)
	_, err = f.svc.StudentAnnualSummary(ctx, f.node.Generate(), 2025)
	require.ErrorIs(t, err, domain.ErrStudentNotFound)
}
