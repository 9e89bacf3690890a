package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/aula/internal/clock"
	employeedomain "github.com/smallbiznis/aula/internal/employee/domain"
	expensedomain "github.com/smallbiznis/aula/internal/expense/domain"
	expenseservice "github.com/smallbiznis/aula/internal/expense/service"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/internal/observability/metrics"
	"github.com/smallbiznis/aula/internal/payroll/domain"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	"github.com/smallbiznis/aula/internal/rate/repository"
	rateservice "github.com/smallbiznis/aula/internal/rate/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Prometheus collectors register against the default registry, so one
// shared instance serves the whole test binary.
var testMetrics = metrics.New()

type payrollFixture struct {
	svc     domain.Service
	rateSvc ratedomain.Service
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupPayrollService(t *testing.T) *payrollFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ratedomain.ExchangeRate{},
		&employeedomain.Department{},
		&employeedomain.Position{},
		&employeedomain.Employee{},
		&employeedomain.SalaryComponentDefinition{},
		&employeedomain.EmployeeSalaryComponent{},
		&expensedomain.ExpenseCategory{},
		&expensedomain.Expense{},
		&expensedomain.ExpensePayment{},
		&domain.PayrollRun{},
		&domain.RunEmployeeDetail{},
		&domain.BalanceAdjustment{},
		&domain.EmployeePayableItem{},
		&domain.EmployeePayment{},
		&domain.EmployeePaymentAllocation{},
		&domain.Payslip{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(day(2026, time.March, 31))
	log := zap.NewNop()

	rateSvc := rateservice.New(rateservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: repository.Provide(),
	})
	expenseSvc := expenseservice.New(expenseservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, RateSvc: rateSvc,
	})

	return &payrollFixture{
		db: db, node: node, clock: fake, rateSvc: rateSvc,
		svc: New(ServiceParam{
			DB: db, Log: log, GenID: node, Clock: fake,
			Metrics: testMetrics, RateSvc: rateSvc, ExpenseSvc: expenseSvc,
		}),
	}
}

func (f *payrollFixture) employee(t *testing.T, e employeedomain.Employee) employeedomain.Employee {
	t.Helper()
	e.ID = f.node.Generate()
	if e.Cedula == "" {
		e.Cedula = fmt.Sprintf("V-%d", e.ID)
	}
	e.IsActive = true
	require.NoError(t, f.db.Create(&e).Error)
	return e
}

func (f *payrollFixture) monthlyRun(t *testing.T) domain.PayrollRun {
	t.Helper()
	run, err := f.svc.CreateRun(context.Background(), domain.CreateRunRequest{
		RunType:     domain.RunTypeMonthly,
		PeriodStart: day(2026, time.March, 1),
		PeriodEnd:   day(2026, time.March, 31),
	})
	require.NoError(t, err)
	return run
}

func (f *payrollFixture) reloadEmployee(t *testing.T, id snowflake.ID) employeedomain.Employee {
	t.Helper()
	var e employeedomain.Employee
	require.NoError(t, f.db.First(&e, "id = ?", id).Error)
	return e
}

func decodeBreakdown(t *testing.T, raw []byte) []domain.BreakdownLine {
	t.Helper()
	var lines []domain.BreakdownLine
	require.NoError(t, json.Unmarshal(raw, &lines))
	return lines
}

func TestCreateRunValidation(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()

	_, err := f.svc.CreateRun(ctx, domain.CreateRunRequest{
		RunType: "weekly", PeriodStart: day(2026, time.March, 1), PeriodEnd: day(2026, time.March, 31),
	})
	require.ErrorIs(t, err, domain.ErrInvalidRunType)

	_, err = f.svc.CreateRun(ctx, domain.CreateRunRequest{
		RunType: domain.RunTypeMonthly, PeriodStart: day(2026, time.March, 31), PeriodEnd: day(2026, time.March, 1),
	})
	require.ErrorIs(t, err, domain.ErrInvalidPeriod)

	bad := -1.0
	_, err = f.svc.CreateRun(ctx, domain.CreateRunRequest{
		RunType: domain.RunTypeMonthly, PeriodStart: day(2026, time.March, 1), PeriodEnd: day(2026, time.March, 31),
		ExchangeRateUSD: &bad,
	})
	require.ErrorIs(t, err, domain.ErrInvalidRate)

	run := f.monthlyRun(t)
	require.Equal(t, domain.RunStatusDraft, run.Status)
}

func TestConfirmMonthlyRun(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()

	teacher := f.employee(t, employeedomain.Employee{
		FirstName: "María", LastName: "González",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 3000, BaseSalaryCurrency: money.VES,
	})

	bonus := employeedomain.SalaryComponentDefinition{
		ID: f.node.Generate(), Name: "Bono de Transporte",
		ComponentType: employeedomain.ComponentEarning, CalculationType: employeedomain.CalculationFixed,
		DefaultAmount: 300, DefaultCurrency: money.VES, IsActive: true,
	}
	require.NoError(t, f.db.Create(&bonus).Error)
	sso := employeedomain.SalaryComponentDefinition{
		ID: f.node.Generate(), Name: "Seguro Social",
		ComponentType: employeedomain.ComponentDeduction, CalculationType: employeedomain.CalculationPercentage,
		DefaultPercentage: 4, IsActive: true,
	}
	require.NoError(t, f.db.Create(&sso).Error)
	for _, def := range []snowflake.ID{bonus.ID, sso.ID} {
		link := employeedomain.EmployeeSalaryComponent{
			ID: f.node.Generate(), EmployeeID: teacher.ID, ComponentID: def, IsActive: true,
		}
		require.NoError(t, f.db.Create(&link).Error)
	}

	run := f.monthlyRun(t)
	admin := f.node.Generate()
	confirmed, err := f.svc.Confirm(ctx, run.ID, admin)
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ProcessedBy)
	require.Equal(t, admin, *confirmed.ProcessedBy)
	require.NotNil(t, confirmed.ProcessedAt)

	details, err := f.svc.Details(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	detail := details[0]
	require.Equal(t, 3000.0, detail.BaseSalaryVES)
	require.Equal(t, 3300.0, detail.TotalEarningsVES)
	require.Equal(t, 120.0, detail.TotalDeductionsVES)
	require.Equal(t, 3180.0, detail.NetPayVES)

	lines := decodeBreakdown(t, detail.Breakdown)
	require.Len(t, lines, 3)
	require.Equal(t, domain.BaseSalaryLineName, lines[0].Name)
	require.Equal(t, domain.BreakdownEarning, lines[0].Type)
	require.Equal(t, 3000.0, lines[0].AmountVES)

	require.Equal(t, 3180.0, f.reloadEmployee(t, teacher.ID).CurrentBalanceVES)

	// Confirmation leaves the net pay owed as a pending payable item.
	items, err := f.svc.PayableItems(ctx, teacher.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, domain.PayableSourcePayrollRun, items[0].SourceType)
	require.Equal(t, run.ID, items[0].SourceID)
	require.Equal(t, 3180.0, items[0].AmountVESAtCreation)
	require.Equal(t, 3180.0, items[0].PendingVES())
	require.Equal(t, domain.PayableStatusPending, items[0].Status)

	// A confirmed run cannot be confirmed again.
	_, err = f.svc.Confirm(ctx, run.ID, admin)
	require.ErrorIs(t, err, domain.ErrNotDraft)
}

func TestConfirmFortnightlyHalvesBase(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	f.employee(t, employeedomain.Employee{
		FirstName: "Pedro", LastName: "Lugo",
		SalaryType: employeedomain.SalaryTypeFortnightly,
		BaseSalaryAmount: 3000, BaseSalaryCurrency: money.VES,
	})

	run, err := f.svc.CreateRun(ctx, domain.CreateRunRequest{
		RunType:     domain.RunTypeFortnightly,
		PeriodStart: day(2026, time.March, 1),
		PeriodEnd:   day(2026, time.March, 15),
	})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)

	details, err := f.svc.Details(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, 1500.0, details[0].BaseSalaryVES)
}

func TestConfirmHourlyDrainsHours(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	hourly := f.employee(t, employeedomain.Employee{
		FirstName: "Carmen", LastName: "Ávila",
		SalaryType: employeedomain.SalaryTypeHourly,
		BaseSalaryAmount: 10, BaseSalaryCurrency: money.VES,
		AccumulatedHours: 20,
	})

	run := f.monthlyRun(t)
	_, err := f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)

	details, err := f.svc.Details(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, 200.0, details[0].BaseSalaryVES)
	require.Equal(t, 20.0, details[0].HoursWorked)

	drained := f.reloadEmployee(t, hourly.ID)
	require.Equal(t, 0.0, drained.AccumulatedHours)
	require.Equal(t, 200.0, drained.CurrentBalanceVES)
}

func TestConfirmSkipsUnpayableEmployees(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()

	// Hourly with no accumulated hours, and a USD salary with no rate
	// anywhere. Both are skipped with a note.
	f.employee(t, employeedomain.Employee{
		FirstName: "Laura", LastName: "Blanco",
		SalaryType: employeedomain.SalaryTypeHourly,
		BaseSalaryAmount: 10, BaseSalaryCurrency: money.VES,
	})
	f.employee(t, employeedomain.Employee{
		FirstName: "Omar", LastName: "Quintero",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 100, BaseSalaryCurrency: money.USD,
	})

	run := f.monthlyRun(t)
	confirmed, err := f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)
	require.Contains(t, confirmed.Notes, "no accumulated hours")
	require.Contains(t, confirmed.Notes, "no USD exchange rate")

	details, err := f.svc.Details(ctx, run.ID)
	require.NoError(t, err)
	require.Empty(t, details)
}

func TestConfirmUSDSalaryWithRunRate(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	f.employee(t, employeedomain.Employee{
		FirstName: "Omar", LastName: "Quintero",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 100, BaseSalaryCurrency: money.USD,
	})

	rate := 40.0
	run, err := f.svc.CreateRun(ctx, domain.CreateRunRequest{
		RunType:         domain.RunTypeMonthly,
		PeriodStart:     day(2026, time.March, 1),
		PeriodEnd:       day(2026, time.March, 31),
		ExchangeRateUSD: &rate,
	})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)

	details, err := f.svc.Details(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, 4000.0, details[0].BaseSalaryVES)
}

func TestRunStatusMachine(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	f.employee(t, employeedomain.Employee{
		FirstName: "María", LastName: "González",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 3000, BaseSalaryCurrency: money.VES,
	})

	run := f.monthlyRun(t)

	// Drafts cannot be paid out directly.
	_, err := f.svc.UpdateStatus(ctx, run.ID, domain.RunStatusPaidOut)
	require.ErrorIs(t, err, domain.ErrForbiddenStatus)
	// Draft and confirmed are not manual targets.
	_, err = f.svc.UpdateStatus(ctx, run.ID, domain.RunStatusDraft)
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = f.svc.UpdateStatus(ctx, run.ID, domain.RunStatusConfirmed)
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)

	paid, err := f.svc.UpdateStatus(ctx, run.ID, domain.RunStatusPaidOut)
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusPaidOut, paid.Status)

	// Cancelled is terminal.
	other := f.monthlyRun(t)
	cancelled, err := f.svc.UpdateStatus(ctx, other.ID, domain.RunStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusCancelled, cancelled.Status)
	_, err = f.svc.UpdateStatus(ctx, other.ID, domain.RunStatusPaidOut)
	require.ErrorIs(t, err, domain.ErrForbiddenStatus)
}

func TestDeleteDraft(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	f.employee(t, employeedomain.Employee{
		FirstName: "María", LastName: "González",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 3000, BaseSalaryCurrency: money.VES,
	})

	run := f.monthlyRun(t)
	require.NoError(t, f.svc.DeleteDraft(ctx, run.ID))
	_, err := f.svc.GetRun(ctx, run.ID)
	require.ErrorIs(t, err, domain.ErrRunNotFound)

	confirmed := f.monthlyRun(t)
	_, err = f.svc.Confirm(ctx, confirmed.ID, f.node.Generate())
	require.NoError(t, err)
	require.ErrorIs(t, f.svc.DeleteDraft(ctx, confirmed.ID), domain.ErrNotDraft)
}

func TestCreateAdjustment(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	employee := f.employee(t, employeedomain.Employee{
		FirstName: "María", LastName: "González",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 3000, BaseSalaryCurrency: money.VES,
	})

	_, err := f.svc.CreateAdjustment(ctx, domain.CreateAdjustmentRequest{
		EmployeeID: employee.ID, AdjustmentDate: day(2026, time.March, 15),
		AdjustmentType: domain.AdjustmentEarning, Description: "", Amount: 100, Currency: money.VES,
	})
	require.ErrorIs(t, err, domain.ErrInvalidAdjustment)

	// An earning opens its own payable item.
	bonus, err := f.svc.CreateAdjustment(ctx, domain.CreateAdjustmentRequest{
		EmployeeID: employee.ID, AdjustmentDate: day(2026, time.March, 15),
		AdjustmentType: domain.AdjustmentEarning, Description: "Bono", Amount: 500, Currency: money.VES,
	})
	require.NoError(t, err)
	require.Equal(t, 500.0, f.reloadEmployee(t, employee.ID).CurrentBalanceVES)

	items, err := f.svc.PayableItems(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	item := items[0]
	require.Equal(t, domain.PayableSourceAdjustment, item.SourceType)
	require.Equal(t, bonus.ID, item.SourceID)
	require.Equal(t, 500.0, item.PendingVES())

	// Deductions discount a named item, never the balance blindly.
	_, err = f.svc.CreateAdjustment(ctx, domain.CreateAdjustmentRequest{
		EmployeeID: employee.ID, AdjustmentDate: day(2026, time.March, 16),
		AdjustmentType: domain.AdjustmentDeduction, Description: "Adelanto", Amount: 200, Currency: money.VES,
	})
	require.ErrorIs(t, err, domain.ErrPayableRequired)

	_, err = f.svc.CreateAdjustment(ctx, domain.CreateAdjustmentRequest{
		EmployeeID: employee.ID, AdjustmentDate: day(2026, time.March, 16),
		AdjustmentType: domain.AdjustmentDeduction, Description: "Adelanto", Amount: 200, Currency: money.VES,
		TargetPayableItemID: &item.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 300.0, f.reloadEmployee(t, employee.ID).CurrentBalanceVES)

	items, err = f.svc.PayableItems(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 300.0, items[0].AmountVESAtCreation)
	require.Equal(t, 300.0, items[0].PendingVES())

	// A deduction bigger than what the item still owes is rejected.
	_, err = f.svc.CreateAdjustment(ctx, domain.CreateAdjustmentRequest{
		EmployeeID: employee.ID, AdjustmentDate: day(2026, time.March, 17),
		AdjustmentType: domain.AdjustmentDeduction, Description: "Adelanto", Amount: 400, Currency: money.VES,
		TargetPayableItemID: &item.ID,
	})
	require.ErrorIs(t, err, domain.ErrAllocationExceeds)

	adjustments, err := f.svc.Adjustments(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, adjustments, 2)
}

func TestCreateEmployeePayment(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	employee := f.employee(t, employeedomain.Employee{
		FirstName: "María", LastName: "González",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 3000, BaseSalaryCurrency: money.VES,
	})

	run := f.monthlyRun(t)
	_, err := f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)

	items, err := f.svc.PayableItems(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: employee.ID, PaymentDate: day(2026, time.March, 31), Amount: 0, Currency: money.VES,
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	payment, err := f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: employee.ID, PaymentDate: day(2026, time.March, 31),
		Amount: 1000, Currency: money.VES, Method: "transfer",
		Allocations: []domain.PayableAllocationRequest{
			{PayableItemID: items[0].ID, AmountVES: 1000},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, payment.AmountVES)
	require.Equal(t, 2000.0, f.reloadEmployee(t, employee.ID).CurrentBalanceVES)

	// The allocated item carries the paid slice and its status.
	items, err = f.svc.PayableItems(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1000.0, items[0].AmountPaidVES)
	require.Equal(t, 2000.0, items[0].PendingVES())
	require.Equal(t, domain.PayableStatusPartiallyPaid, items[0].Status)

	var allocations []domain.EmployeePaymentAllocation
	require.NoError(t, f.db.Where("employee_payment_id = ?", payment.ID).Find(&allocations).Error)
	require.Len(t, allocations, 1)
	require.Equal(t, items[0].ID, allocations[0].PayableItemID)
	require.Equal(t, 1000.0, allocations[0].AmountVES)

	// The disbursement lands as a paid salary expense.
	require.NotNil(t, payment.ExpenseID)
	var expense expensedomain.Expense
	require.NoError(t, f.db.First(&expense, "id = ?", *payment.ExpenseID).Error)
	require.Equal(t, expensedomain.ExpenseStatusPaid, expense.Status)
	require.Contains(t, expense.Description, "María González")
	var category expensedomain.ExpenseCategory
	require.NoError(t, f.db.First(&category, "id = ?", expense.CategoryID).Error)
	require.Equal(t, expensedomain.SalaryCategoryName, category.Name)

	// The payslip snapshots the confirmed run's breakdown.
	slips, err := f.svc.Payslips(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, slips, 1)
	require.Equal(t, payment.ID, slips[0].EmployeePaymentID)
	require.Equal(t, 1000.0, slips[0].AmountVES)
	lines := decodeBreakdown(t, slips[0].Breakdown)
	require.Equal(t, domain.BaseSalaryLineName, lines[0].Name)
}

func TestEmployeePaymentWithoutRunHistory(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	employee := f.employee(t, employeedomain.Employee{
		FirstName: "Pedro", LastName: "Lugo",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 3000, BaseSalaryCurrency: money.VES,
	})

	// An advance before any run: the balance goes negative and the
	// payslip carries a single generic line.
	payment, err := f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: employee.ID, PaymentDate: day(2026, time.March, 31), Amount: 400, Currency: money.VES,
	})
	require.NoError(t, err)
	require.Equal(t, -400.0, f.reloadEmployee(t, employee.ID).CurrentBalanceVES)

	slips, err := f.svc.Payslips(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, slips, 1)
	lines := decodeBreakdown(t, slips[0].Breakdown)
	require.Len(t, lines, 1)
	require.Equal(t, "Pago de Saldo/Adelanto", lines[0].Name)
	require.Equal(t, 400.0, lines[0].AmountVES)

	require.NotZero(t, payment.ID)
	_, err = f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: f.node.Generate(), PaymentDate: day(2026, time.March, 31), Amount: 100, Currency: money.VES,
	})
	require.ErrorIs(t, err, domain.ErrEmployeeNotFound)
}

func TestConfirmFiltersByPayFrequency(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()

	monthly := f.employee(t, employeedomain.Employee{
		FirstName: "María", LastName: "González",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 3000, BaseSalaryCurrency: money.VES,
	})
	fortnightly := f.employee(t, employeedomain.Employee{
		FirstName: "Pedro", LastName: "Lugo",
		SalaryType: employeedomain.SalaryTypeFortnightly,
		BaseSalaryAmount: 2000, BaseSalaryCurrency: money.VES,
	})
	hourly := f.employee(t, employeedomain.Employee{
		FirstName: "Carmen", LastName: "Ávila",
		SalaryType: employeedomain.SalaryTypeHourly,
		BaseSalaryAmount: 10, BaseSalaryCurrency: money.VES,
		AccumulatedHours: 20,
	})

	// A fortnightly run settles fortnightly and hourly staff only.
	run, err := f.svc.CreateRun(ctx, domain.CreateRunRequest{
		RunType:     domain.RunTypeFortnightly,
		PeriodStart: day(2026, time.March, 1),
		PeriodEnd:   day(2026, time.March, 15),
	})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)

	details, err := f.svc.Details(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, details, 2)
	paid := map[snowflake.ID]bool{}
	for _, d := range details {
		paid[d.EmployeeID] = true
	}
	require.False(t, paid[monthly.ID])
	require.True(t, paid[fortnightly.ID])
	require.True(t, paid[hourly.ID])
	require.Equal(t, 0.0, f.reloadEmployee(t, monthly.ID).CurrentBalanceVES)

	// A monthly run leaves fortnightly staff alone.
	other := f.monthlyRun(t)
	_, err = f.svc.Confirm(ctx, other.ID, f.node.Generate())
	require.NoError(t, err)
	details, err = f.svc.Details(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, monthly.ID, details[0].EmployeeID)
}

func TestPaymentAllocationGuards(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	maria := f.employee(t, employeedomain.Employee{
		FirstName: "María", LastName: "González",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 3000, BaseSalaryCurrency: money.VES,
	})
	pedro := f.employee(t, employeedomain.Employee{
		FirstName: "Pedro", LastName: "Lugo",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 2000, BaseSalaryCurrency: money.VES,
	})

	run := f.monthlyRun(t)
	_, err := f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)

	mariaItems, err := f.svc.PayableItems(ctx, maria.ID)
	require.NoError(t, err)
	require.Len(t, mariaItems, 1)

	// An allocation cannot reach into another employee's items.
	_, err = f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: pedro.ID, PaymentDate: day(2026, time.March, 31),
		Amount: 500, Currency: money.VES,
		Allocations: []domain.PayableAllocationRequest{
			{PayableItemID: mariaItems[0].ID, AmountVES: 500},
		},
	})
	require.ErrorIs(t, err, domain.ErrPayableWrongEmployee)

	_, err = f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: maria.ID, PaymentDate: day(2026, time.March, 31),
		Amount: 100, Currency: money.VES,
		Allocations: []domain.PayableAllocationRequest{
			{PayableItemID: f.node.Generate(), AmountVES: 100},
		},
	})
	require.ErrorIs(t, err, domain.ErrPayableNotFound)

	// Allocating beyond the item's pending amount fails.
	_, err = f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: maria.ID, PaymentDate: day(2026, time.March, 31),
		Amount: 4000, Currency: money.VES,
		Allocations: []domain.PayableAllocationRequest{
			{PayableItemID: mariaItems[0].ID, AmountVES: 3500},
		},
	})
	require.ErrorIs(t, err, domain.ErrAllocationExceeds)

	// Allocating more than the payment brings fails.
	_, err = f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: maria.ID, PaymentDate: day(2026, time.March, 31),
		Amount: 1000, Currency: money.VES,
		Allocations: []domain.PayableAllocationRequest{
			{PayableItemID: mariaItems[0].ID, AmountVES: 1500},
		},
	})
	require.ErrorIs(t, err, domain.ErrOverAllocated)

	// Settling the item in full closes it; further allocations bounce.
	_, err = f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: maria.ID, PaymentDate: day(2026, time.March, 31),
		Amount: 3000, Currency: money.VES,
		Allocations: []domain.PayableAllocationRequest{
			{PayableItemID: mariaItems[0].ID, AmountVES: 3000},
		},
	})
	require.NoError(t, err)

	mariaItems, err = f.svc.PayableItems(ctx, maria.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PayableStatusPaid, mariaItems[0].Status)
	require.Equal(t, 0.0, mariaItems[0].PendingVES())

	_, err = f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: maria.ID, PaymentDate: day(2026, time.March, 31),
		Amount: 100, Currency: money.VES,
		Allocations: []domain.PayableAllocationRequest{
			{PayableItemID: mariaItems[0].ID, AmountVES: 100},
		},
	})
	require.ErrorIs(t, err, domain.ErrPayablePaid)
}

func TestEmployeePaymentInUSD(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	employee := f.employee(t, employeedomain.Employee{
		FirstName: "Omar", LastName: "Quintero",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 4000, BaseSalaryCurrency: money.VES,
	})

	rate := ratedomain.ExchangeRate{
		ID: f.node.Generate(), FromCurrency: money.USD, ToCurrency: money.VES,
		Rate: 40, RateDate: day(2026, time.March, 30),
	}
	require.NoError(t, f.db.Create(&rate).Error)

	run := f.monthlyRun(t)
	_, err := f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)
	items, err := f.svc.PayableItems(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// 50 USD at 40 settles 2000 VES of the run's item.
	payment, err := f.svc.CreateEmployeePayment(ctx, domain.CreateEmployeePaymentRequest{
		EmployeeID: employee.ID, PaymentDate: day(2026, time.March, 31),
		Amount: 50, Currency: money.USD,
		Allocations: []domain.PayableAllocationRequest{
			{PayableItemID: items[0].ID, AmountVES: 2000},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 50.0, payment.AmountOriginal)
	require.Equal(t, money.USD, payment.Currency)
	require.Equal(t, 2000.0, payment.AmountVES)
	require.NotNil(t, payment.ExchangeRateApplied)
	require.Equal(t, 40.0, *payment.ExchangeRateApplied)
	require.Equal(t, 2000.0, f.reloadEmployee(t, employee.ID).CurrentBalanceVES)
}

func TestReconfirmReplacesPayableItems(t *testing.T) {
	f := setupPayrollService(t)
	ctx := context.Background()
	employee := f.employee(t, employeedomain.Employee{
		FirstName: "María", LastName: "González",
		SalaryType: employeedomain.SalaryTypeMonthly,
		BaseSalaryAmount: 3000, BaseSalaryCurrency: money.VES,
	})

	run := f.monthlyRun(t)
	_, err := f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)

	// Force the run back to draft to simulate a reopened period.
	require.NoError(t, f.db.Model(&domain.PayrollRun{}).
		Where("id = ?", run.ID).
		Update("status", domain.RunStatusDraft).Error)

	_, err = f.svc.Confirm(ctx, run.ID, f.node.Generate())
	require.NoError(t, err)

	items, err := f.svc.PayableItems(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, run.ID, items[0].SourceID)
	require.Equal(t, 3000.0, items[0].AmountVESAtCreation)
}
