package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/dates"
	employeedomain "github.com/smallbiznis/aula/internal/employee/domain"
	expensedomain "github.com/smallbiznis/aula/internal/expense/domain"
	"github.com/smallbiznis/aula/internal/money"
	paymentdomain "github.com/smallbiznis/aula/internal/payment/domain"
	"github.com/smallbiznis/aula/internal/report/domain"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	schooldomain "github.com/smallbiznis/aula/internal/school/domain"
	studentdomain "github.com/smallbiznis/aula/internal/student/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("report.service"),
		clock: p.Clock,
	}
}

func (s *Service) Delinquency(ctx context.Context) ([]domain.DelinquencyEntry, error) {
	var reps []repdomain.Representative
	err := s.db.WithContext(ctx).Order("last_name asc, first_name asc").Find(&reps).Error
	if err != nil {
		return nil, err
	}

	today := dates.Day(s.clock.Now())
	entries := make([]domain.DelinquencyEntry, 0, len(reps))
	for _, rep := range reps {
		var charges []chargedomain.AppliedCharge
		err := s.db.WithContext(ctx).
			Where("student_id IN (SELECT id FROM students WHERE representative_id = ?)", rep.ID).
			Where("status IN ?", chargedomain.OpenStatuses).
			Where("due_date < ?", today).
			Order("due_date asc").
			Find(&charges).Error
		if err != nil {
			return nil, err
		}

		entry := domain.DelinquencyEntry{
			RepresentativeID:   rep.ID,
			RepresentativeName: rep.FullName(),
			Level:              domain.LevelGreen,
		}
		if len(charges) > 0 {
			oldest := dates.Day(charges[0].DueDate)
			entry.OldestDueDate = &oldest
			entry.OverdueCharges = len(charges)
			for _, charge := range charges {
				entry.OverdueVES = money.Round2(entry.OverdueVES + charge.PendingVESAtEmission())
			}
			entry.Level = classify(oldest, today)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// classify grades an overdue debt. Red means the oldest due date fell
// before the first day of the month two months back; any younger
// overdue debt is orange.
func classify(oldestDue, today time.Time) domain.DelinquencyLevel {
	cutoff := dates.FirstOfMonth(today).AddDate(0, -2, 0)
	if oldestDue.Before(cutoff) {
		return domain.LevelRed
	}
	return domain.LevelOrange
}

func (s *Service) AccountStatement(ctx context.Context, representativeID snowflake.ID) (domain.AccountStatement, error) {
	var rep repdomain.Representative
	err := s.db.WithContext(ctx).First(&rep, "id = ?", representativeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.AccountStatement{}, domain.ErrRepresentativeNotFound
	}
	if err != nil {
		return domain.AccountStatement{}, err
	}

	statement := domain.AccountStatement{
		RepresentativeID:   rep.ID,
		RepresentativeName: rep.FullName(),
		GeneratedAt:        s.clock.Now(),
		AvailableCreditVES: rep.AvailableCreditVES,
	}

	var charges []chargedomain.AppliedCharge
	err = s.db.WithContext(ctx).
		Where("student_id IN (SELECT id FROM students WHERE representative_id = ?)", rep.ID).
		Order("due_date asc, issue_date asc").
		Find(&charges).Error
	if err != nil {
		return domain.AccountStatement{}, err
	}
	for _, charge := range charges {
		if charge.Status == chargedomain.ChargeStatusCancelled {
			continue
		}
		statement.Charges = append(statement.Charges, domain.StatementCharge{
			ChargeID:    charge.ID,
			Description: charge.Description,
			IssueDate:   charge.IssueDate,
			DueDate:     charge.DueDate,
			DueVES:      charge.AmountDueVESAtEmission,
			PaidVES:     charge.AmountPaidVES,
			PendingVES:  charge.PendingVESAtEmission(),
			Status:      string(charge.Status),
		})
		statement.TotalDueVES = money.Round2(statement.TotalDueVES + charge.AmountDueVESAtEmission)
		statement.TotalPaidVES = money.Round2(statement.TotalPaidVES + charge.AmountPaidVES)
		statement.OutstandingVES = money.Round2(statement.OutstandingVES + charge.PendingVESAtEmission())
	}

	var payments []paymentdomain.Payment
	err = s.db.WithContext(ctx).
		Where("representative_id = ?", rep.ID).
		Order("payment_date asc, created_at asc").
		Find(&payments).Error
	if err != nil {
		return domain.AccountStatement{}, err
	}
	for _, payment := range payments {
		var allocated float64
		err := s.db.WithContext(ctx).
			Model(&paymentdomain.PaymentAllocation{}).
			Where("payment_id = ?", payment.ID).
			Select("COALESCE(SUM(amount_ves), 0)").
			Scan(&allocated).Error
		if err != nil {
			return domain.AccountStatement{}, err
		}
		statement.Payments = append(statement.Payments, domain.StatementPayment{
			PaymentID:    payment.ID,
			PaymentDate:  payment.PaymentDate,
			AmountVES:    payment.AmountVESEquivalent,
			Method:       payment.PaymentMethod,
			AllocatedVES: money.Round2(allocated),
		})
	}
	return statement, nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	var out domain.Dashboard

	err := s.db.WithContext(ctx).Model(&studentdomain.Student{}).
		Where("is_active = ?", true).Count(&out.ActiveStudents).Error
	if err != nil {
		return domain.Dashboard{}, err
	}
	err = s.db.WithContext(ctx).Model(&repdomain.Representative{}).Count(&out.Representatives).Error
	if err != nil {
		return domain.Dashboard{}, err
	}
	err = s.db.WithContext(ctx).Model(&employeedomain.Employee{}).
		Where("is_active = ?", true).Count(&out.ActiveEmployees).Error
	if err != nil {
		return domain.Dashboard{}, err
	}

	now := s.clock.Now()
	monthStart := dates.FirstOfMonth(now)
	monthEnd := dates.LastOfMonth(now)

	err = s.db.WithContext(ctx).Model(&paymentdomain.Payment{}).
		Where("payment_date >= ? AND payment_date <= ?", monthStart, monthEnd).
		Where("payment_method <> ?", paymentdomain.MethodCreditBalance).
		Select("COALESCE(SUM(amount_ves_equivalent), 0)").
		Scan(&out.MonthIncomeVES).Error
	if err != nil {
		return domain.Dashboard{}, err
	}

	err = s.db.WithContext(ctx).Model(&expensedomain.Expense{}).
		Where("expense_date >= ? AND expense_date <= ?", monthStart, monthEnd).
		Select("COALESCE(SUM(amount_ves), 0)").
		Scan(&out.MonthExpensesVES).Error
	if err != nil {
		return domain.Dashboard{}, err
	}

	err = s.db.WithContext(ctx).Model(&chargedomain.AppliedCharge{}).
		Where("status IN ?", chargedomain.OpenStatuses).
		Select("COALESCE(SUM(amount_due_ves_at_emission - amount_paid_ves), 0)").
		Scan(&out.OutstandingVES).Error
	if err != nil {
		return domain.Dashboard{}, err
	}

	today := dates.Day(now)
	err = s.db.WithContext(ctx).Model(&chargedomain.AppliedCharge{}).
		Where("status IN ?", chargedomain.OpenStatuses).
		Where("due_date < ?", today).
		Count(&out.OverdueCharges).Error
	if err != nil {
		return domain.Dashboard{}, err
	}

	out.MonthIncomeVES = money.Round2(out.MonthIncomeVES)
	out.MonthExpensesVES = money.Round2(out.MonthExpensesVES)
	out.OutstandingVES = money.Round2(out.OutstandingVES)
	return out, nil
}

func (s *Service) StudentAnnualSummary(ctx context.Context, studentID snowflake.ID, yearStart int) (domain.StudentAnnualSummary, error) {
	if yearStart < 2000 || yearStart > 2100 {
		return domain.StudentAnnualSummary{}, domain.ErrInvalidYear
	}

	var student studentdomain.Student
	err := s.db.WithContext(ctx).First(&student, "id = ?", studentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.StudentAnnualSummary{}, domain.ErrStudentNotFound
	}
	if err != nil {
		return domain.StudentAnnualSummary{}, err
	}

	startMonth := 9
	var cfg schooldomain.SchoolConfiguration
	if err := s.db.WithContext(ctx).Order("id asc").First(&cfg).Error; err == nil {
		startMonth = cfg.SchoolYearStartMonth
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.StudentAnnualSummary{}, err
	}

	summary := domain.StudentAnnualSummary{
		StudentID:   student.ID,
		StudentName: student.FirstName + " " + student.LastName,
		YearStart:   yearStart,
	}

	cursor := time.Date(yearStart, time.Month(startMonth), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		monthStart := dates.FirstOfMonth(cursor)
		monthEnd := dates.LastOfMonth(cursor)

		var charges []chargedomain.AppliedCharge
		err := s.db.WithContext(ctx).
			Where("student_id = ?", student.ID).
			Where("issue_date >= ? AND issue_date <= ?", monthStart, monthEnd).
			Where("status <> ?", chargedomain.ChargeStatusCancelled).
			Find(&charges).Error
		if err != nil {
			return domain.StudentAnnualSummary{}, err
		}

		month := domain.MonthSummary{
			Year:    monthStart.Year(),
			Month:   int(monthStart.Month()),
			Charges: len(charges),
		}
		for _, charge := range charges {
			month.IssuedVES = money.Round2(month.IssuedVES + charge.AmountDueVESAtEmission)
			month.PaidVES = money.Round2(month.PaidVES + charge.AmountPaidVES)
			month.PendingVES = money.Round2(month.PendingVES + charge.PendingVESAtEmission())
		}
		summary.Months = append(summary.Months, month)
		summary.TotalDueVES = money.Round2(summary.TotalDueVES + month.IssuedVES)
		summary.TotalPaid = money.Round2(summary.TotalPaid + month.PaidVES)

		cursor = cursor.AddDate(0, 1, 0)
	}
	return summary, nil
}
