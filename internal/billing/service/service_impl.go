package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/billing/domain"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/internal/clock"
	conceptdomain "github.com/smallbiznis/aula/internal/concept/domain"
	"github.com/smallbiznis/aula/internal/dates"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/aula/internal/payment/domain"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	schooldomain "github.com/smallbiznis/aula/internal/school/domain"
	studentdomain "github.com/smallbiznis/aula/internal/student/domain"
	pkgdb "github.com/smallbiznis/aula/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Metrics    *metrics.Registry
	ChargeSvc  chargedomain.Service
	PaymentSvc paymentdomain.Service
	RateSvc    ratedomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	metrics    *metrics.Registry
	chargeSvc  chargedomain.Service
	paymentSvc paymentdomain.Service
	rateSvc    ratedomain.Service
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		metrics:    p.Metrics,
		chargeSvc:  p.ChargeSvc,
		paymentSvc: p.PaymentSvc,
		rateSvc:    p.RateSvc,
	}
}

func (s *Service) Run(ctx context.Context, req domain.RunRequest) (domain.RunResult, error) {
	if req.Year < 2000 || req.Year > 2100 || req.Month < 1 || req.Month > 12 {
		return domain.RunResult{}, domain.ErrInvalidPeriod
	}

	started := s.clock.Now()
	result := domain.RunResult{Year: req.Year, Month: req.Month}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Locking the configuration row serializes concurrent runs for
		// the same school.
		var cfg schooldomain.SchoolConfiguration
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).Order("id asc").First(&cfg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return schooldomain.ErrNotConfigured
		}
		if err != nil {
			return err
		}

		issueDate := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, time.UTC)
		if req.IssueDate != nil {
			issueDate = dates.Day(*req.IssueDate)
		}
		dueDay := cfg.PaymentDueDay
		if last := dates.DaysInMonth(issueDate); dueDay > last {
			dueDay = last
		}
		dueDate := dates.FirstOfMonth(issueDate).AddDate(0, 0, dueDay-1)
		if req.DueDate != nil {
			dueDate = dates.Day(*req.DueDate)
		}
		if dueDate.Before(issueDate) {
			return domain.ErrInvalidPeriod
		}

		conceptStmt := tx.WithContext(ctx).
			Where("frequency = ? AND is_active = ?", conceptdomain.FrequencyMonthly, true)
		if len(req.ConceptIDs) > 0 {
			conceptStmt = conceptStmt.Where("id IN ?", req.ConceptIDs)
		}
		var concepts []conceptdomain.ChargeConcept
		if err := conceptStmt.Order("id asc").Find(&concepts).Error; err != nil {
			return err
		}

		var students []studentdomain.Student
		err = tx.WithContext(ctx).
			Where("is_active = ?", true).
			Order("id asc").
			Find(&students).Error
		if err != nil {
			return err
		}

		billedFamilies := map[snowflake.ID]bool{}
		for _, student := range students {
			for _, concept := range concepts {
				if !applies(concept, student) {
					continue
				}

				dup, err := s.alreadyBilled(ctx, tx, student.ID, concept.ID, issueDate)
				if err != nil {
					return err
				}
				if dup {
					result.ChargesSkipped++
					result.Warnings = append(result.Warnings, fmt.Sprintf(
						"%s already billed for %s in %04d-%02d",
						student.FirstName+" "+student.LastName, concept.Name, req.Year, req.Month,
					))
					continue
				}

				_, err = s.chargeSvc.CreateWithin(ctx, tx, chargedomain.CreateChargeRequest{
					StudentID:   student.ID,
					ConceptID:   concept.ID,
					Description: fmt.Sprintf("%s %04d-%02d", concept.Name, req.Year, req.Month),
					IssueDate:   issueDate,
					DueDate:     dueDate,
				})
				if err != nil {
					result.Errors = append(result.Errors, domain.PairError{
						StudentID: student.ID,
						ConceptID: concept.ID,
						Reason:    err.Error(),
					})
					continue
				}
				result.ChargesCreated++
				billedFamilies[student.RepresentativeID] = true
			}
		}

		for repID := range billedFamilies {
			applied, err := s.paymentSvc.ApplyCreditWithin(ctx, tx, repID)
			if err != nil {
				return err
			}
			if money.Positive(applied.TotalAppliedVES) {
				result.CreditAppliedVES = money.Round2(result.CreditAppliedVES + applied.TotalAppliedVES)
				result.CreditedFamilies++
			}
		}
		return nil
	})

	s.metrics.RunDuration.WithLabelValues("billing").Observe(s.clock.Now().Sub(started).Seconds())
	if err != nil {
		s.metrics.BillingRunsTotal.WithLabelValues("error").Inc()
		return domain.RunResult{}, err
	}

	s.metrics.BillingRunsTotal.WithLabelValues("ok").Inc()
	s.metrics.ChargesIssuedTotal.Add(float64(result.ChargesCreated))
	s.metrics.CreditAppliedVES.Add(result.CreditAppliedVES)

	s.log.Info("recurring billing run finished",
		zap.Int("year", req.Year),
		zap.Int("month", req.Month),
		zap.Int("charges_created", result.ChargesCreated),
		zap.Int("charges_skipped", result.ChargesSkipped),
		zap.Int("pair_errors", len(result.Errors)),
		zap.Float64("credit_applied_ves", result.CreditAppliedVES),
	)
	return result, nil
}

func (s *Service) ApplyGlobalCharge(ctx context.Context, req domain.GlobalChargeRequest) (domain.GlobalChargeResult, error) {
	target := req.Target
	if target == "" {
		target = domain.TargetAllActive
	}
	if target != domain.TargetAllActive && target != domain.TargetAll {
		return domain.GlobalChargeResult{}, domain.ErrInvalidTarget
	}

	issueDate := dates.Day(req.IssueDate)
	dueDate := dates.Day(req.DueDate)
	if dueDate.Before(issueDate) {
		return domain.GlobalChargeResult{}, domain.ErrInvalidPeriod
	}

	result := domain.GlobalChargeResult{Target: target}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cfg schooldomain.SchoolConfiguration
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).Order("id asc").First(&cfg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return schooldomain.ErrNotConfigured
		}
		if err != nil {
			return err
		}

		var concept conceptdomain.ChargeConcept
		err = tx.WithContext(ctx).First(&concept, "id = ?", req.ConceptID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chargedomain.ErrConceptNotFound
		}
		if err != nil {
			return err
		}
		if !concept.IsActive {
			return chargedomain.ErrConceptInactive
		}
		result.ConceptName = concept.Name

		amount := concept.DefaultAmount
		currency := concept.DefaultAmountCurrency
		if req.OverrideAmount != nil {
			amount = *req.OverrideAmount
		}
		if req.OverrideCurrency != nil {
			currency = *req.OverrideCurrency
		}
		if amount <= 0 {
			return domain.ErrInvalidAmount
		}
		if !currency.Valid() {
			return domain.ErrInvalidCurrency
		}
		result.Currency = currency

		var rate *float64
		if currency != money.VES {
			latest, err := s.rateSvc.Latest(ctx, currency, money.VES, issueDate)
			if err != nil {
				return err
			}
			if latest == nil {
				// No rate on the issue date: nothing can be valued, so
				// the whole application stops before touching anyone.
				result.Errors = append(result.Errors, domain.GlobalChargeError{
					Reason: fmt.Sprintf("no %s exchange rate on %s", currency, issueDate.Format("2006-01-02")),
				})
				return nil
			}
			rate = &latest.Rate
		}

		stmt := tx.WithContext(ctx).Model(&studentdomain.Student{})
		if target == domain.TargetAllActive {
			stmt = stmt.Where("is_active = ?", true)
		}
		var students []studentdomain.Student
		if err := stmt.Order("id asc").Find(&students).Error; err != nil {
			return err
		}

		description := req.Description
		if description == "" {
			description = concept.Name
		}

		now := s.clock.Now()
		for _, student := range students {
			result.StudentsEvaluated++

			// Percentage scholarships discount in the original currency
			// before conversion; they are relative, so the order commutes
			// with the rate and keeps the original amount exact.
			dueOriginal := amount
			pct := 0.0
			if student.HasScholarship {
				pct = student.ScholarshipPercentage
			}
			if pct > 0 {
				dueOriginal = money.Round2(amount * (1 - pct/100))
			}
			if dueOriginal < 0 {
				dueOriginal = 0
			}

			dueVES := dueOriginal
			if rate != nil {
				dueVES = money.Round2(dueOriginal * *rate)
			}
			if pct == 0 && student.HasScholarship && student.ScholarshipFixedAmount > 0 {
				dueVES = money.Round2(dueVES - student.ScholarshipFixedAmount)
				if dueVES < 0 {
					dueVES = 0
				}
				if rate != nil {
					dueOriginal = money.Round2(dueVES / *rate)
				} else {
					dueOriginal = dueVES
				}
			}

			if !money.Positive(dueVES) {
				result.Errors = append(result.Errors, domain.GlobalChargeError{
					StudentID:   student.ID,
					StudentName: student.FullName(),
					Reason:      "scholarship leaves nothing to charge",
				})
				continue
			}

			charge := chargedomain.AppliedCharge{
				ID:                     s.genID.Generate(),
				StudentID:              student.ID,
				ConceptID:              concept.ID,
				Description:            description,
				IssueDate:              issueDate,
				DueDate:                dueDate,
				AmountDueOriginal:      dueOriginal,
				Currency:               currency,
				AmountDueVESAtEmission: dueVES,
				ExchangeRateAtEmission: rate,
				Status:                 chargedomain.ChargeStatusPending,
				CreatedAt:              now,
				UpdatedAt:              now,
			}
			if err := tx.WithContext(ctx).Create(&charge).Error; err != nil {
				return err
			}
			result.ChargesCreated++
			result.TotalOriginal = money.Round2(result.TotalOriginal + dueOriginal)
			result.TotalVES = money.Round2(result.TotalVES + dueVES)
		}
		return nil
	})
	if err != nil {
		return domain.GlobalChargeResult{}, err
	}

	s.metrics.ChargesIssuedTotal.Add(float64(result.ChargesCreated))
	s.log.Info("global charge applied",
		zap.String("concept", result.ConceptName),
		zap.String("target", string(result.Target)),
		zap.Int("students_evaluated", result.StudentsEvaluated),
		zap.Int("charges_created", result.ChargesCreated),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func applies(concept conceptdomain.ChargeConcept, student studentdomain.Student) bool {
	if concept.ApplicableGradeLevel == nil {
		return true
	}
	return student.GradeLevelID != nil && *student.GradeLevelID == *concept.ApplicableGradeLevel
}

// alreadyBilled reports whether the pair has a non-cancelled charge
// issued in the same month.
func (s *Service) alreadyBilled(ctx context.Context, tx *gorm.DB, studentID, conceptID snowflake.ID, issueDate time.Time) (bool, error) {
	monthStart := dates.FirstOfMonth(issueDate)
	monthEnd := dates.LastOfMonth(issueDate)
	var count int64
	err := tx.WithContext(ctx).
		Model(&chargedomain.AppliedCharge{}).
		Where("student_id = ? AND concept_id = ?", studentID, conceptID).
		Where("issue_date >= ? AND issue_date <= ?", monthStart, monthEnd).
		Where("status <> ?", chargedomain.ChargeStatusCancelled).
		Count(&count).Error
	return count > 0, err
}
