package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/dates"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/internal/payment/domain"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	pkgdb "github.com/smallbiznis/aula/pkg/db"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	RateSvc ratedomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	rateSvc ratedomain.Service
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		rateSvc: p.RateSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePaymentRequest) (domain.Payment, error) {
	if req.Amount <= 0 {
		return domain.Payment{}, domain.ErrInvalidAmount
	}
	if !req.Currency.Valid() {
		return domain.Payment{}, domain.ErrInvalidCurrency
	}

	var out domain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rep repdomain.Representative
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&rep, "id = ?", req.RepresentativeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRepresentativeNotFound
		}
		if err != nil {
			return err
		}

		paymentDate := dates.Day(req.PaymentDate)
		conv, err := s.rateSvc.ConvertToVES(ctx, req.Amount, req.Currency, paymentDate)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		payment := domain.Payment{
			ID:                  s.genID.Generate(),
			RepresentativeID:    rep.ID,
			PaymentDate:         paymentDate,
			AmountOriginal:      money.Round2(req.Amount),
			Currency:            req.Currency,
			AmountVESEquivalent: conv.AmountVES,
			ExchangeRateApplied: conv.RateApplied,
			PaymentMethod:       req.PaymentMethod,
			ReferenceNumber:     req.ReferenceNumber,
			ReceiptToken:        ulid.Make().String(),
			Notes:               req.Notes,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}

		var totalAllocatedVES float64
		for _, alloc := range req.Allocations {
			if alloc.Amount <= 0 {
				return domain.ErrInvalidAmount
			}

			charge, err := s.lockCharge(ctx, tx, alloc.ChargeID)
			if err != nil {
				return err
			}
			if err := s.ensureOwnership(ctx, tx, charge, rep.ID); err != nil {
				return err
			}
			if charge.Status == chargedomain.ChargeStatusPaid || charge.Status == chargedomain.ChargeStatusCancelled {
				return domain.ErrChargeNotPayable
			}

			allocVES := money.Round2(alloc.Amount)
			if conv.RateApplied != nil {
				allocVES = money.Round2(alloc.Amount * *conv.RateApplied)
			}

			// Over-allocation is judged against the debt valued today,
			// not at the payment date the family reports.
			balance, err := s.chargeBalanceVES(ctx, charge, dates.Day(s.clock.Now()))
			if err != nil {
				return err
			}
			if allocVES > balance+money.Tolerance {
				return domain.ErrAllocationExceeds
			}

			if err := s.settle(ctx, tx, charge, payment, alloc.Amount, allocVES, paymentDate); err != nil {
				return err
			}

			allocation := domain.PaymentAllocation{
				ID:        s.genID.Generate(),
				PaymentID: payment.ID,
				ChargeID:  charge.ID,
				AmountVES: allocVES,
				CreatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&allocation).Error; err != nil {
				return err
			}
			totalAllocatedVES = money.Round2(totalAllocatedVES + allocVES)
		}

		if totalAllocatedVES > payment.AmountVESEquivalent+money.Tolerance {
			return domain.ErrOverAllocated
		}
		out = payment
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.log.Info("payment registered",
		zap.String("payment_id", out.ID.String()),
		zap.String("representative_id", out.RepresentativeID.String()),
		zap.Float64("amount_ves", out.AmountVESEquivalent),
	)
	return out, nil
}

// chargeBalanceVES values the outstanding debt in VES at a given date.
// Indexed charges revalue the pending original amount with that day's
// rate; VES charges stay at the emission value.
func (s *Service) chargeBalanceVES(ctx context.Context, charge *chargedomain.AppliedCharge, onDate time.Time) (float64, error) {
	if !charge.Indexed() {
		return charge.PendingVESAtEmission(), nil
	}
	rate, err := s.rateSvc.Latest(ctx, charge.Currency, money.VES, onDate)
	if err != nil {
		return 0, err
	}
	if rate == nil {
		return 0, ratedomain.ErrRateMissing
	}
	return money.Round2(charge.PendingOriginal() * rate.Rate), nil
}

// settle books an allocation into the charge's dual-currency paid
// amounts. Same-currency payments move the original amount directly;
// cross-currency ones back-convert the VES slice at the charge
// currency's rate on the payment date.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, charge *chargedomain.AppliedCharge, payment domain.Payment, allocAmount, allocVES float64, paymentDate time.Time) error {
	charge.AmountPaidVES = money.Round2(charge.AmountPaidVES + allocVES)

	switch {
	case !charge.Indexed():
		charge.AmountPaidOriginal = charge.AmountPaidVES
	case payment.Currency == charge.Currency:
		charge.AmountPaidOriginal = money.Round2(charge.AmountPaidOriginal + allocAmount)
	default:
		rate, err := s.rateSvc.Latest(ctx, charge.Currency, money.VES, paymentDate)
		if err != nil {
			return err
		}
		if rate == nil {
			return ratedomain.ErrRateMissing
		}
		charge.AmountPaidOriginal = money.Round2(charge.AmountPaidOriginal + money.Round2(allocVES/rate.Rate))
	}

	charge.RecomputeStatus()
	charge.UpdatedAt = s.clock.Now()
	return tx.WithContext(ctx).Save(charge).Error
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Payment, error) {
	var payment domain.Payment
	err := s.db.WithContext(ctx).First(&payment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Payment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListPaymentFilter, page pagination.Pagination) (domain.ListPaymentResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.Payment{})
	if filter.RepresentativeID != 0 {
		stmt = stmt.Where("representative_id = ?", filter.RepresentativeID)
	}
	if filter.From != nil {
		stmt = stmt.Where("payment_date >= ?", dates.Day(*filter.From))
	}
	if filter.To != nil {
		stmt = stmt.Where("payment_date <= ?", dates.Day(*filter.To))
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListPaymentResponse{}, err
	}

	var items []domain.Payment
	err := stmt.Order("payment_date desc, created_at desc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListPaymentResponse{}, err
	}

	return domain.ListPaymentResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

func (s *Service) Allocations(ctx context.Context, paymentID snowflake.ID) ([]domain.PaymentAllocation, error) {
	var allocations []domain.PaymentAllocation
	err := s.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at asc, id asc").
		Find(&allocations).Error
	return allocations, err
}

func (s *Service) UnallocatedAmount(ctx context.Context, paymentID snowflake.ID) (float64, error) {
	payment, err := s.GetByID(ctx, paymentID)
	if err != nil {
		return 0, err
	}
	return s.remainder(ctx, s.db, payment)
}

func (s *Service) TotalAvailableCredit(ctx context.Context, representativeID snowflake.ID) (float64, error) {
	return s.totalCredit(ctx, s.db, representativeID)
}

func (s *Service) ApplyCredit(ctx context.Context, representativeID snowflake.ID) (domain.CreditApplicationResult, error) {
	var result domain.CreditApplicationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.ApplyCreditWithin(ctx, tx, representativeID)
		return err
	})
	if err != nil {
		return domain.CreditApplicationResult{}, err
	}
	return result, nil
}

// ApplyCreditWithin drains unallocated payment remainders into open
// charges, both sides oldest first. The representative row is locked
// so concurrent applications for the same family serialize.
func (s *Service) ApplyCreditWithin(ctx context.Context, tx *gorm.DB, representativeID snowflake.ID) (domain.CreditApplicationResult, error) {
	var rep repdomain.Representative
	err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&rep, "id = ?", representativeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.CreditApplicationResult{}, domain.ErrRepresentativeNotFound
	}
	if err != nil {
		return domain.CreditApplicationResult{}, err
	}

	result := domain.CreditApplicationResult{RepresentativeID: representativeID}

	totalCredit, err := s.totalCredit(ctx, tx, representativeID)
	if err != nil {
		return domain.CreditApplicationResult{}, err
	}
	if !money.Positive(totalCredit) {
		result.RemainingCredit = totalCredit
		return result, nil
	}

	var charges []chargedomain.AppliedCharge
	err = tx.WithContext(ctx).
		Where("student_id IN (SELECT id FROM students WHERE representative_id = ?)", representativeID).
		Where("status IN ?", chargedomain.OpenStatuses).
		Order("due_date asc, issue_date asc, id asc").
		Find(&charges).Error
	if err != nil {
		return domain.CreditApplicationResult{}, err
	}
	if len(charges) == 0 {
		result.RemainingCredit = totalCredit
		return result, nil
	}

	sources, err := s.creditSources(ctx, tx, representativeID)
	if err != nil {
		return domain.CreditApplicationResult{}, err
	}

	now := s.clock.Now()
	si := 0
	for i := range charges {
		charge := &charges[i]
		balance := charge.PendingVESAtEmission()
		for money.Positive(balance) && money.Positive(totalCredit) && si < len(sources) {
			source := &sources[si]
			if !money.Positive(source.remainder) {
				si++
				continue
			}

			take := balance
			if source.remainder < take {
				take = source.remainder
			}
			if totalCredit < take {
				take = totalCredit
			}
			take = money.Round2(take)

			allocation := domain.PaymentAllocation{
				ID:        s.genID.Generate(),
				PaymentID: source.payment.ID,
				ChargeID:  charge.ID,
				AmountVES: take,
				CreatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&allocation).Error; err != nil {
				return domain.CreditApplicationResult{}, err
			}

			charge.AmountPaidVES = money.Round2(charge.AmountPaidVES + take)
			if !charge.Indexed() {
				charge.AmountPaidOriginal = charge.AmountPaidVES
			}
			balance = money.Round2(balance - take)
			totalCredit = money.Round2(totalCredit - take)
			source.remainder = money.Round2(source.remainder - take)

			result.Applications = append(result.Applications, domain.CreditAllocation{
				PaymentID: source.payment.ID,
				ChargeID:  charge.ID,
				AmountVES: take,
			})
			result.TotalAppliedVES = money.Round2(result.TotalAppliedVES + take)
		}

		// Credit application settles on the emission value for every
		// charge, indexed ones included.
		if money.GTE(charge.AmountPaidVES, charge.AmountDueVESAtEmission) {
			charge.Status = chargedomain.ChargeStatusPaid
		} else if money.Positive(charge.AmountPaidVES) {
			charge.Status = chargedomain.ChargeStatusPartiallyPaid
		}
		charge.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(charge).Error; err != nil {
			return domain.CreditApplicationResult{}, err
		}

		if !money.Positive(totalCredit) {
			break
		}
	}

	result.RemainingCredit = totalCredit
	return result, nil
}

func (s *Service) ApplyExplicitCredit(ctx context.Context, representativeID snowflake.ID) (domain.CreditApplicationResult, error) {
	var result domain.CreditApplicationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rep repdomain.Representative
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&rep, "id = ?", representativeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRepresentativeNotFound
		}
		if err != nil {
			return err
		}
		if !money.Positive(rep.AvailableCreditVES) {
			return domain.ErrNoCredit
		}

		// Convert the credit-note balance into a synthetic payment so
		// the drain leaves an auditable trail of allocations.
		now := s.clock.Now()
		payment := domain.Payment{
			ID:                  s.genID.Generate(),
			RepresentativeID:    rep.ID,
			PaymentDate:         dates.Day(now),
			AmountOriginal:      rep.AvailableCreditVES,
			Currency:            money.VES,
			AmountVESEquivalent: rep.AvailableCreditVES,
			PaymentMethod:       domain.MethodCreditBalance,
			ReceiptToken:        ulid.Make().String(),
			Notes:               "credit note balance application",
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}

		rep.AvailableCreditVES = 0
		rep.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(&rep).Error; err != nil {
			return err
		}

		result, err = s.ApplyCreditWithin(ctx, tx, representativeID)
		return err
	})
	if err != nil {
		return domain.CreditApplicationResult{}, err
	}
	return result, nil
}

type creditSource struct {
	payment   domain.Payment
	remainder float64
}

// creditSources lists the representative's payments that still have an
// unallocated remainder, oldest first.
func (s *Service) creditSources(ctx context.Context, tx *gorm.DB, representativeID snowflake.ID) ([]creditSource, error) {
	var payments []domain.Payment
	err := tx.WithContext(ctx).
		Where("representative_id = ?", representativeID).
		Order("payment_date asc, created_at asc, id asc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	sources := make([]creditSource, 0, len(payments))
	for _, payment := range payments {
		remainder, err := s.remainder(ctx, tx, payment)
		if err != nil {
			return nil, err
		}
		if money.Positive(remainder) {
			sources = append(sources, creditSource{payment: payment, remainder: remainder})
		}
	}
	return sources, nil
}

func (s *Service) remainder(ctx context.Context, tx *gorm.DB, payment domain.Payment) (float64, error) {
	var allocated float64
	err := tx.WithContext(ctx).
		Model(&domain.PaymentAllocation{}).
		Where("payment_id = ?", payment.ID).
		Select("COALESCE(SUM(amount_ves), 0)").
		Scan(&allocated).Error
	if err != nil {
		return 0, err
	}
	return money.Round2(payment.AmountVESEquivalent - allocated), nil
}

func (s *Service) totalCredit(ctx context.Context, tx *gorm.DB, representativeID snowflake.ID) (float64, error) {
	var payments []domain.Payment
	err := tx.WithContext(ctx).
		Where("representative_id = ?", representativeID).
		Find(&payments).Error
	if err != nil {
		return 0, err
	}

	var total float64
	for _, payment := range payments {
		remainder, err := s.remainder(ctx, tx, payment)
		if err != nil {
			return 0, err
		}
		if money.Positive(remainder) {
			total = money.Round2(total + remainder)
		}
	}
	return total, nil
}

func (s *Service) lockCharge(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*chargedomain.AppliedCharge, error) {
	var charge chargedomain.AppliedCharge
	err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&charge, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrChargeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func (s *Service) ensureOwnership(ctx context.Context, tx *gorm.DB, charge *chargedomain.AppliedCharge, representativeID snowflake.ID) error {
	var ownerID snowflake.ID
	err := tx.WithContext(ctx).
		Table("students").
		Where("id = ?", charge.StudentID).
		Select("representative_id").
		Scan(&ownerID).Error
	if err != nil {
		return err
	}
	if ownerID != representativeID {
		return domain.ErrChargeWrongOwner
	}
	return nil
}
