package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/dates"
	employeedomain "github.com/smallbiznis/aula/internal/employee/domain"
	expensedomain "github.com/smallbiznis/aula/internal/expense/domain"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/internal/observability/metrics"
	"github.com/smallbiznis/aula/internal/payroll/domain"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	pkgdb "github.com/smallbiznis/aula/pkg/db"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Metrics    *metrics.Registry
	RateSvc    ratedomain.Service
	ExpenseSvc expensedomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	metrics    *metrics.Registry
	rateSvc    ratedomain.Service
	expenseSvc expensedomain.Service
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payroll.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		metrics:    p.Metrics,
		rateSvc:    p.RateSvc,
		expenseSvc: p.ExpenseSvc,
	}
}

func (s *Service) CreateRun(ctx context.Context, req domain.CreateRunRequest) (domain.PayrollRun, error) {
	if !req.RunType.Valid() {
		return domain.PayrollRun{}, domain.ErrInvalidRunType
	}
	start := dates.Day(req.PeriodStart)
	end := dates.Day(req.PeriodEnd)
	if end.Before(start) {
		return domain.PayrollRun{}, domain.ErrInvalidPeriod
	}
	if req.ExchangeRateUSD != nil && *req.ExchangeRateUSD <= 0 {
		return domain.PayrollRun{}, domain.ErrInvalidRate
	}

	now := s.clock.Now()
	run := domain.PayrollRun{
		ID:              s.genID.Generate(),
		RunType:         req.RunType,
		PeriodStart:     start,
		PeriodEnd:       end,
		Status:          domain.RunStatusDraft,
		ExchangeRateUSD: req.ExchangeRateUSD,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return domain.PayrollRun{}, err
	}
	return run, nil
}

func (s *Service) GetRun(ctx context.Context, id snowflake.ID) (domain.PayrollRun, error) {
	var run domain.PayrollRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PayrollRun{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.PayrollRun{}, err
	}
	return run, nil
}

func (s *Service) ListRuns(ctx context.Context, filter domain.ListRunFilter, page pagination.Pagination) (domain.ListRunResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.PayrollRun{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		stmt = stmt.Where("run_type = ?", filter.Type)
	}
	if filter.From != nil {
		stmt = stmt.Where("period_end >= ?", dates.Day(*filter.From))
	}
	if filter.To != nil {
		stmt = stmt.Where("period_end <= ?", dates.Day(*filter.To))
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListRunResponse{}, err
	}

	var items []domain.PayrollRun
	err := stmt.Order("period_end desc, created_at desc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListRunResponse{}, err
	}

	return domain.ListRunResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

func (s *Service) Confirm(ctx context.Context, id snowflake.ID, processedBy snowflake.ID) (domain.PayrollRun, error) {
	started := s.clock.Now()

	var out domain.PayrollRun
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run domain.PayrollRun
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&run, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRunNotFound
		}
		if err != nil {
			return err
		}
		if run.Status != domain.RunStatusDraft {
			return domain.ErrNotDraft
		}

		usdRate := run.ExchangeRateUSD
		if usdRate == nil {
			latest, err := s.rateSvc.Latest(ctx, money.USD, money.VES, run.PeriodEnd)
			if err != nil {
				return err
			}
			if latest != nil {
				usdRate = &latest.Rate
			}
		}
		run.ExchangeRateUSD = usdRate

		// Reconfirming a reopened draft replaces the old details and
		// the payable items they materialised.
		err = tx.WithContext(ctx).
			Where("payroll_run_id = ?", run.ID).
			Delete(&domain.RunEmployeeDetail{}).Error
		if err != nil {
			return err
		}
		err = tx.WithContext(ctx).
			Where("source_type = ? AND source_id = ?", domain.PayableSourcePayrollRun, run.ID).
			Delete(&domain.EmployeePayableItem{}).Error
		if err != nil {
			return err
		}

		var employees []employeedomain.Employee
		err = pkgdb.WithForUpdate(tx.WithContext(ctx)).
			Where("is_active = ?", true).
			Where("salary_type IN ?", eligibleSalaryTypes(run.RunType)).
			Order("last_name asc, first_name asc").
			Find(&employees).Error
		if err != nil {
			return err
		}

		now := s.clock.Now()
		var notes []string
		processed := 0
		for i := range employees {
			employee := &employees[i]
			detail, skipNote, err := s.calculateDetail(ctx, tx, run, *employee, usdRate)
			if err != nil {
				return err
			}
			if skipNote != "" {
				notes = append(notes, skipNote)
				continue
			}

			detail.ID = s.genID.Generate()
			detail.PayrollRunID = run.ID
			detail.CreatedAt = now
			if err := tx.WithContext(ctx).Create(&detail).Error; err != nil {
				return err
			}

			if money.Positive(detail.NetPayVES) {
				item := domain.EmployeePayableItem{
					ID:         s.genID.Generate(),
					EmployeeID: employee.ID,
					SourceType: domain.PayableSourcePayrollRun,
					SourceID:   run.ID,
					Description: fmt.Sprintf("Nómina %s al %s",
						run.PeriodStart.Format("02/01/2006"), run.PeriodEnd.Format("02/01/2006")),
					AmountOriginal:      detail.NetPayVES,
					CurrencyOriginal:    money.VES,
					AmountVESAtCreation: detail.NetPayVES,
					Status:              domain.PayableStatusPending,
					CreatedAt:           now,
					UpdatedAt:           now,
				}
				if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
					return err
				}
			}

			employee.CurrentBalanceVES = money.Round2(employee.CurrentBalanceVES + detail.NetPayVES)
			if employee.SalaryType == employeedomain.SalaryTypeHourly {
				employee.AccumulatedHours -= detail.HoursWorked
				if employee.AccumulatedHours < 0 {
					employee.AccumulatedHours = 0
				}
			}
			employee.UpdatedAt = now
			if err := tx.WithContext(ctx).Save(employee).Error; err != nil {
				return err
			}
			processed++
		}

		if processed == 0 {
			notes = append(notes, "no employees processed")
		}
		if len(notes) > 0 {
			joined := strings.Join(notes, "; ")
			if run.Notes != "" {
				run.Notes = run.Notes + "\n" + joined
			} else {
				run.Notes = joined
			}
		}

		run.Status = domain.RunStatusConfirmed
		run.ProcessedBy = &processedBy
		run.ProcessedAt = &now
		run.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(&run).Error; err != nil {
			return err
		}
		out = run
		return nil
	})

	s.metrics.RunDuration.WithLabelValues("payroll").Observe(s.clock.Now().Sub(started).Seconds())
	if err != nil {
		s.metrics.PayrollConfirmsTotal.WithLabelValues("error").Inc()
		return domain.PayrollRun{}, err
	}
	s.metrics.PayrollConfirmsTotal.WithLabelValues("ok").Inc()

	s.log.Info("payroll run confirmed",
		zap.String("run_id", out.ID.String()),
		zap.String("run_type", string(out.RunType)),
	)
	return out, nil
}

// eligibleSalaryTypes limits a run to the employees whose pay cadence
// it covers. Hourly staff are hours-driven and settle on any run;
// special runs take everyone.
func eligibleSalaryTypes(runType domain.RunType) []employeedomain.SalaryType {
	switch runType {
	case domain.RunTypeMonthly:
		return []employeedomain.SalaryType{employeedomain.SalaryTypeMonthly, employeedomain.SalaryTypeHourly}
	case domain.RunTypeFortnightly:
		return []employeedomain.SalaryType{employeedomain.SalaryTypeFortnightly, employeedomain.SalaryTypeHourly}
	default:
		return []employeedomain.SalaryType{
			employeedomain.SalaryTypeMonthly,
			employeedomain.SalaryTypeFortnightly,
			employeedomain.SalaryTypeHourly,
		}
	}
}

// calculateDetail builds one employee's detail for the run. A non
// empty skip note means the employee cannot be processed this run and
// the caller should move on.
func (s *Service) calculateDetail(ctx context.Context, tx *gorm.DB, run domain.PayrollRun, employee employeedomain.Employee, usdRate *float64) (domain.RunEmployeeDetail, string, error) {
	var hours float64
	var base float64
	switch employee.SalaryType {
	case employeedomain.SalaryTypeHourly:
		hours = employee.AccumulatedHours
		if hours <= 0 {
			return domain.RunEmployeeDetail{}, fmt.Sprintf("%s skipped: no accumulated hours", employee.FullName()), nil
		}
		base = employee.BaseSalaryAmount * hours
	default:
		base = employee.BaseSalaryAmount
		if run.RunType == domain.RunTypeFortnightly {
			base = base / 2
		}
	}

	baseVES, note := s.toVES(base, employee.BaseSalaryCurrency, usdRate, employee.FullName())
	if note != "" {
		return domain.RunEmployeeDetail{}, note, nil
	}

	breakdown := []domain.BreakdownLine{{
		Name:      domain.BaseSalaryLineName,
		Type:      domain.BreakdownEarning,
		AmountVES: baseVES,
	}}

	assignments, definitions, err := s.componentsFor(ctx, tx, employee.ID)
	if err != nil {
		return domain.RunEmployeeDetail{}, "", err
	}

	var earnings, deductions float64
	for i, assignment := range assignments {
		definition := definitions[i]

		var amountVES float64
		switch definition.CalculationType {
		case employeedomain.CalculationPercentage:
			pct := definition.DefaultPercentage
			if assignment.OverridePercentage != nil {
				pct = *assignment.OverridePercentage
			}
			amountVES = money.Round2(baseVES * pct / 100)
		default:
			amount := definition.DefaultAmount
			currency := definition.DefaultCurrency
			if assignment.OverrideAmount != nil {
				amount = *assignment.OverrideAmount
			}
			if assignment.OverrideCurrency != nil {
				currency = *assignment.OverrideCurrency
			}
			var note string
			amountVES, note = s.toVES(amount, currency, usdRate, employee.FullName())
			if note != "" {
				return domain.RunEmployeeDetail{}, note, nil
			}
		}

		lineType := domain.BreakdownEarning
		if definition.ComponentType == employeedomain.ComponentDeduction {
			lineType = domain.BreakdownDeduction
			deductions = money.Round2(deductions + amountVES)
		} else {
			earnings = money.Round2(earnings + amountVES)
		}
		breakdown = append(breakdown, domain.BreakdownLine{
			Name:      definition.Name,
			Type:      lineType,
			AmountVES: amountVES,
		})
	}

	raw, err := json.Marshal(breakdown)
	if err != nil {
		return domain.RunEmployeeDetail{}, "", err
	}

	// The period's base salary is itself an earning, so it seeds the
	// earnings total.
	totalEarnings := money.Round2(baseVES + earnings)
	return domain.RunEmployeeDetail{
		EmployeeID:         employee.ID,
		BaseSalaryVES:      baseVES,
		TotalEarningsVES:   totalEarnings,
		TotalDeductionsVES: deductions,
		NetPayVES:          money.Round2(totalEarnings - deductions),
		HoursWorked:        hours,
		Breakdown:          datatypes.JSON(raw),
	}, "", nil
}

// toVES values an amount for the run. USD amounts need the run's rate;
// a missing rate skips the employee with an explanatory note.
func (s *Service) toVES(amount float64, currency money.Currency, usdRate *float64, who string) (float64, string) {
	switch currency {
	case money.VES, "":
		return money.Round2(amount), ""
	case money.USD:
		if usdRate == nil {
			return 0, fmt.Sprintf("%s skipped: no USD exchange rate for the run", who)
		}
		return money.Round2(amount * *usdRate), ""
	default:
		return 0, fmt.Sprintf("%s skipped: unsupported salary currency %s", who, currency)
	}
}

func (s *Service) componentsFor(ctx context.Context, tx *gorm.DB, employeeID snowflake.ID) ([]employeedomain.EmployeeSalaryComponent, []employeedomain.SalaryComponentDefinition, error) {
	var assignments []employeedomain.EmployeeSalaryComponent
	err := tx.WithContext(ctx).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Order("id asc").
		Find(&assignments).Error
	if err != nil {
		return nil, nil, err
	}

	active := assignments[:0]
	var definitions []employeedomain.SalaryComponentDefinition
	for _, assignment := range assignments {
		var definition employeedomain.SalaryComponentDefinition
		err := tx.WithContext(ctx).First(&definition, "id = ?", assignment.ComponentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if !definition.IsActive {
			continue
		}
		active = append(active, assignment)
		definitions = append(definitions, definition)
	}
	return active, definitions, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.RunStatus) (domain.PayrollRun, error) {
	if status != domain.RunStatusPaidOut && status != domain.RunStatusCancelled {
		return domain.PayrollRun{}, domain.ErrInvalidStatus
	}

	var out domain.PayrollRun
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run domain.PayrollRun
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&run, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRunNotFound
		}
		if err != nil {
			return err
		}

		switch {
		case run.Status == domain.RunStatusCancelled:
			return domain.ErrForbiddenStatus
		case status == domain.RunStatusPaidOut && run.Status != domain.RunStatusConfirmed:
			return domain.ErrForbiddenStatus
		}

		run.Status = status
		run.UpdatedAt = s.clock.Now()
		if err := tx.WithContext(ctx).Save(&run).Error; err != nil {
			return err
		}
		out = run
		return nil
	})
	if err != nil {
		return domain.PayrollRun{}, err
	}
	return out, nil
}

func (s *Service) DeleteDraft(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run domain.PayrollRun
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&run, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRunNotFound
		}
		if err != nil {
			return err
		}
		if run.Status != domain.RunStatusDraft {
			return domain.ErrNotDraft
		}
		return tx.WithContext(ctx).Delete(&run).Error
	})
}

func (s *Service) Details(ctx context.Context, runID snowflake.ID) ([]domain.RunEmployeeDetail, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	var details []domain.RunEmployeeDetail
	err := s.db.WithContext(ctx).
		Where("payroll_run_id = ?", runID).
		Order("id asc").
		Find(&details).Error
	return details, err
}

func (s *Service) CreateAdjustment(ctx context.Context, req domain.CreateAdjustmentRequest) (domain.BalanceAdjustment, error) {
	if req.Amount <= 0 || strings.TrimSpace(req.Description) == "" {
		return domain.BalanceAdjustment{}, domain.ErrInvalidAdjustment
	}
	if req.AdjustmentType != domain.AdjustmentEarning && req.AdjustmentType != domain.AdjustmentDeduction {
		return domain.BalanceAdjustment{}, domain.ErrInvalidAdjustment
	}
	if !req.Currency.Valid() {
		return domain.BalanceAdjustment{}, domain.ErrInvalidAdjustment
	}

	adjustmentDate := dates.Day(req.AdjustmentDate)
	conv, err := s.rateSvc.ConvertToVES(ctx, req.Amount, req.Currency, adjustmentDate)
	if err != nil {
		return domain.BalanceAdjustment{}, err
	}

	var out domain.BalanceAdjustment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var employee employeedomain.Employee
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&employee, "id = ?", req.EmployeeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrEmployeeNotFound
		}
		if err != nil {
			return err
		}

		now := s.clock.Now()
		adjustment := domain.BalanceAdjustment{
			ID:                  s.genID.Generate(),
			EmployeeID:          employee.ID,
			AdjustmentDate:      adjustmentDate,
			AdjustmentType:      req.AdjustmentType,
			Description:         req.Description,
			AmountOriginal:      money.Round2(req.Amount),
			Currency:            req.Currency,
			AmountVES:           conv.AmountVES,
			ExchangeRateApplied: conv.RateApplied,
			CreatedAt:           now,
		}
		if err := tx.WithContext(ctx).Create(&adjustment).Error; err != nil {
			return err
		}

		if req.AdjustmentType == domain.AdjustmentEarning {
			item := domain.EmployeePayableItem{
				ID:                  s.genID.Generate(),
				EmployeeID:          employee.ID,
				SourceType:          domain.PayableSourceAdjustment,
				SourceID:            adjustment.ID,
				Description:         adjustment.Description,
				AmountOriginal:      adjustment.AmountOriginal,
				CurrencyOriginal:    adjustment.Currency,
				AmountVESAtCreation: conv.AmountVES,
				Status:              domain.PayableStatusPending,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
				return err
			}
			employee.CurrentBalanceVES = money.Round2(employee.CurrentBalanceVES + conv.AmountVES)
		} else {
			// A deduction discounts a concrete debt, not the balance in
			// the abstract.
			if req.TargetPayableItemID == nil {
				return domain.ErrPayableRequired
			}
			item, err := s.lockPayable(ctx, tx, *req.TargetPayableItemID, employee.ID)
			if err != nil {
				return err
			}
			if conv.AmountVES > item.PendingVES()+money.Tolerance {
				return domain.ErrAllocationExceeds
			}
			item.AmountVESAtCreation = money.Round2(item.AmountVESAtCreation - conv.AmountVES)
			if item.AmountVESAtCreation < 0 {
				item.AmountVESAtCreation = 0
			}
			item.RecomputeStatus()
			item.UpdatedAt = now
			if err := tx.WithContext(ctx).Save(&item).Error; err != nil {
				return err
			}
			employee.CurrentBalanceVES = money.Round2(employee.CurrentBalanceVES - conv.AmountVES)
		}
		employee.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(&employee).Error; err != nil {
			return err
		}
		out = adjustment
		return nil
	})
	if err != nil {
		return domain.BalanceAdjustment{}, err
	}
	return out, nil
}

func (s *Service) Adjustments(ctx context.Context, employeeID snowflake.ID) ([]domain.BalanceAdjustment, error) {
	var adjustments []domain.BalanceAdjustment
	err := s.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("adjustment_date desc, created_at desc").
		Find(&adjustments).Error
	return adjustments, err
}

func (s *Service) CreateEmployeePayment(ctx context.Context, req domain.CreateEmployeePaymentRequest) (domain.EmployeePayment, error) {
	if req.Amount <= 0 {
		return domain.EmployeePayment{}, domain.ErrInvalidAmount
	}
	currency := req.Currency
	if currency == "" {
		currency = money.VES
	}
	if !currency.Valid() {
		return domain.EmployeePayment{}, domain.ErrInvalidCurrency
	}
	for _, alloc := range req.Allocations {
		if alloc.AmountVES <= 0 {
			return domain.EmployeePayment{}, domain.ErrInvalidAmount
		}
	}

	paymentDate := dates.Day(req.PaymentDate)
	conv, err := s.rateSvc.ConvertToVES(ctx, req.Amount, currency, paymentDate)
	if err != nil {
		return domain.EmployeePayment{}, err
	}

	var out domain.EmployeePayment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var employee employeedomain.Employee
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&employee, "id = ?", req.EmployeeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrEmployeeNotFound
		}
		if err != nil {
			return err
		}

		now := s.clock.Now()
		payment := domain.EmployeePayment{
			ID:                  s.genID.Generate(),
			EmployeeID:          employee.ID,
			PaymentDate:         paymentDate,
			AmountOriginal:      money.Round2(req.Amount),
			Currency:            currency,
			AmountVES:           conv.AmountVES,
			ExchangeRateApplied: conv.RateApplied,
			Method:              req.Method,
			Reference:           req.Reference,
			Notes:               req.Notes,
			CreatedAt:           now,
		}

		expense, err := s.expenseSvc.CreateSalaryExpenseWithin(
			ctx, tx,
			fmt.Sprintf("Pago de nómina: %s", employee.FullName()),
			payment.AmountVES, paymentDate,
		)
		if err != nil {
			return err
		}
		payment.ExpenseID = &expense.ID

		// Allocations reference the payment row, so it goes in first.
		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}

		var allocated float64
		for _, alloc := range req.Allocations {
			item, err := s.lockPayable(ctx, tx, alloc.PayableItemID, employee.ID)
			if err != nil {
				return err
			}
			if alloc.AmountVES > item.PendingVES()+money.Tolerance {
				return domain.ErrAllocationExceeds
			}

			item.AmountPaidVES = money.Round2(item.AmountPaidVES + alloc.AmountVES)
			item.RecomputeStatus()
			item.UpdatedAt = now
			if err := tx.WithContext(ctx).Save(&item).Error; err != nil {
				return err
			}

			row := domain.EmployeePaymentAllocation{
				ID:                s.genID.Generate(),
				EmployeePaymentID: payment.ID,
				PayableItemID:     item.ID,
				AmountVES:         money.Round2(alloc.AmountVES),
				CreatedAt:         now,
			}
			if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
				return err
			}
			allocated = money.Round2(allocated + alloc.AmountVES)
		}
		if allocated > payment.AmountVES+money.Tolerance {
			return domain.ErrOverAllocated
		}

		// Advances are allowed, the balance may go negative.
		employee.CurrentBalanceVES = money.Round2(employee.CurrentBalanceVES - payment.AmountVES)
		employee.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(&employee).Error; err != nil {
			return err
		}

		if err := s.createPayslip(ctx, tx, employee, payment); err != nil {
			return err
		}
		out = payment
		return nil
	})
	if err != nil {
		return domain.EmployeePayment{}, err
	}

	s.log.Info("employee payment registered",
		zap.String("employee_id", out.EmployeeID.String()),
		zap.Float64("amount_ves", out.AmountVES),
	)
	return out, nil
}

// lockPayable loads a payable item for update and verifies it belongs
// to the employee and still has something pending.
func (s *Service) lockPayable(ctx context.Context, tx *gorm.DB, id, employeeID snowflake.ID) (domain.EmployeePayableItem, error) {
	var item domain.EmployeePayableItem
	err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.EmployeePayableItem{}, domain.ErrPayableNotFound
	}
	if err != nil {
		return domain.EmployeePayableItem{}, err
	}
	if item.EmployeeID != employeeID {
		return domain.EmployeePayableItem{}, domain.ErrPayableWrongEmployee
	}
	if item.Status == domain.PayableStatusPaid {
		return domain.EmployeePayableItem{}, domain.ErrPayablePaid
	}
	return item, nil
}

func (s *Service) PayableItems(ctx context.Context, employeeID snowflake.ID) ([]domain.EmployeePayableItem, error) {
	var items []domain.EmployeePayableItem
	err := s.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("created_at asc, id asc").
		Find(&items).Error
	return items, err
}

// createPayslip snapshots the latest confirmed breakdown, or a single
// balance-payment line when the employee has never been on a run.
func (s *Service) createPayslip(ctx context.Context, tx *gorm.DB, employee employeedomain.Employee, payment domain.EmployeePayment) error {
	var breakdown datatypes.JSON
	var detail domain.RunEmployeeDetail
	err := tx.WithContext(ctx).
		Where("employee_id = ?", employee.ID).
		Order("created_at desc, id desc").
		First(&detail).Error
	switch {
	case err == nil:
		breakdown = detail.Breakdown
	case errors.Is(err, gorm.ErrRecordNotFound):
		raw, merr := json.Marshal([]domain.BreakdownLine{{
			Name:      "Pago de Saldo/Adelanto",
			Type:      domain.BreakdownEarning,
			AmountVES: payment.AmountVES,
		}})
		if merr != nil {
			return merr
		}
		breakdown = datatypes.JSON(raw)
	default:
		return err
	}

	positionName := ""
	if employee.PositionID != nil {
		var position employeedomain.Position
		if err := tx.WithContext(ctx).First(&position, "id = ?", employee.PositionID).Error; err == nil {
			positionName = position.Name
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	payslip := domain.Payslip{
		ID:                s.genID.Generate(),
		EmployeeID:        employee.ID,
		EmployeePaymentID: payment.ID,
		IssuedAt:          s.clock.Now(),
		EmployeeName:      employee.FullName(),
		EmployeeCedula:    employee.Cedula,
		PositionName:      positionName,
		AmountVES:         payment.AmountVES,
		Breakdown:         breakdown,
		CreatedAt:         s.clock.Now(),
	}
	return tx.WithContext(ctx).Create(&payslip).Error
}

func (s *Service) EmployeePayments(ctx context.Context, employeeID snowflake.ID) ([]domain.EmployeePayment, error) {
	var payments []domain.EmployeePayment
	err := s.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("payment_date desc, created_at desc").
		Find(&payments).Error
	return payments, err
}

func (s *Service) GetPayslip(ctx context.Context, id snowflake.ID) (domain.Payslip, error) {
	var payslip domain.Payslip
	err := s.db.WithContext(ctx).First(&payslip, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Payslip{}, domain.ErrPayslipNotFound
	}
	if err != nil {
		return domain.Payslip{}, err
	}
	return payslip, nil
}

func (s *Service) Payslips(ctx context.Context, employeeID snowflake.ID) ([]domain.Payslip, error) {
	var payslips []domain.Payslip
	err := s.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("issued_at desc").
		Find(&payslips).Error
	return payslips, err
}
