package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/internal/clock"
	conceptdomain "github.com/smallbiznis/aula/internal/concept/domain"
	"github.com/smallbiznis/aula/internal/dates"
	"github.com/smallbiznis/aula/internal/money"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	studentdomain "github.com/smallbiznis/aula/internal/student/domain"
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
		log:     p.Log.Named("charge.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		rateSvc: p.RateSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateChargeRequest) (domain.AppliedCharge, error) {
	var out domain.AppliedCharge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		charge, err := s.issue(ctx, tx, req)
		if err != nil {
			return err
		}
		out = charge
		return nil
	})
	if err != nil {
		return domain.AppliedCharge{}, err
	}
	return out, nil
}

func (s *Service) CreateWithin(ctx context.Context, tx *gorm.DB, req domain.CreateChargeRequest) (domain.AppliedCharge, error) {
	return s.issue(ctx, tx, req)
}

// issue converts the concept's default amount to VES at the issue
// date, applies the student's scholarship and persists the charge.
// Indexed concepts keep the debt denominated in the foreign currency:
// the original amount is back-computed from the discounted VES value.
func (s *Service) issue(ctx context.Context, tx *gorm.DB, req domain.CreateChargeRequest) (domain.AppliedCharge, error) {
	issueDate := dates.Day(req.IssueDate)
	dueDate := dates.Day(req.DueDate)
	if dueDate.Before(issueDate) {
		return domain.AppliedCharge{}, domain.ErrInvalidDates
	}

	var student studentdomain.Student
	err := tx.WithContext(ctx).First(&student, "id = ?", req.StudentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.AppliedCharge{}, domain.ErrStudentNotFound
	}
	if err != nil {
		return domain.AppliedCharge{}, err
	}
	if !student.IsActive {
		return domain.AppliedCharge{}, domain.ErrStudentInactive
	}

	var concept conceptdomain.ChargeConcept
	err = tx.WithContext(ctx).First(&concept, "id = ?", req.ConceptID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.AppliedCharge{}, domain.ErrConceptNotFound
	}
	if err != nil {
		return domain.AppliedCharge{}, err
	}
	if !concept.IsActive {
		return domain.AppliedCharge{}, domain.ErrConceptInactive
	}

	conv, err := s.rateSvc.ConvertToVES(ctx, concept.DefaultAmount, concept.DefaultAmountCurrency, issueDate)
	if err != nil {
		return domain.AppliedCharge{}, err
	}

	dueVES := student.ApplyScholarship(conv.AmountVES)

	dueOriginal := dueVES
	if conv.RateApplied != nil {
		dueOriginal = money.Round2(dueVES / *conv.RateApplied)
	}

	now := s.clock.Now()
	charge := domain.AppliedCharge{
		ID:                     s.genID.Generate(),
		StudentID:              student.ID,
		ConceptID:              concept.ID,
		Description:            req.Description,
		IssueDate:              issueDate,
		DueDate:                dueDate,
		AmountDueOriginal:      dueOriginal,
		Currency:               concept.DefaultAmountCurrency,
		AmountDueVESAtEmission: dueVES,
		ExchangeRateAtEmission: conv.RateApplied,
		Status:                 domain.ChargeStatusPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := tx.WithContext(ctx).Create(&charge).Error; err != nil {
		return domain.AppliedCharge{}, err
	}
	return charge, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.AppliedCharge, error) {
	var charge domain.AppliedCharge
	err := s.db.WithContext(ctx).First(&charge, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.AppliedCharge{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AppliedCharge{}, err
	}
	return charge, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListChargeFilter, page pagination.Pagination) (domain.ListChargeResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.AppliedCharge{})
	if filter.StudentID != 0 {
		stmt = stmt.Where("student_id = ?", filter.StudentID)
	}
	if filter.RepresentativeID != 0 {
		stmt = stmt.Where(
			"student_id IN (SELECT id FROM students WHERE representative_id = ?)",
			filter.RepresentativeID,
		)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.IssueFrom != nil {
		stmt = stmt.Where("issue_date >= ?", dates.Day(*filter.IssueFrom))
	}
	if filter.IssueTo != nil {
		stmt = stmt.Where("issue_date <= ?", dates.Day(*filter.IssueTo))
	}
	if filter.DueFrom != nil {
		stmt = stmt.Where("due_date >= ?", dates.Day(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		stmt = stmt.Where("due_date <= ?", dates.Day(*filter.DueTo))
	}
	if filter.UninvoicedOnly {
		stmt = stmt.Where("invoice_id IS NULL")
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListChargeResponse{}, err
	}

	var items []domain.AppliedCharge
	err := stmt.Order("due_date asc, issue_date asc, id asc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListChargeResponse{}, err
	}

	return domain.ListChargeResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

// UpdateStatus handles the manual transitions only: cancelling an open
// charge, reinstating a cancelled one and flagging overdue. Payment
// flows recompute paid states on their own.
func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.ChargeStatus) (domain.AppliedCharge, error) {
	switch status {
	case domain.ChargeStatusCancelled, domain.ChargeStatusPending, domain.ChargeStatusOverdue:
	default:
		return domain.AppliedCharge{}, domain.ErrInvalidStatus
	}

	charge, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.AppliedCharge{}, err
	}

	switch status {
	case domain.ChargeStatusCancelled:
		if charge.Status == domain.ChargeStatusPaid || charge.Status == domain.ChargeStatusCancelled {
			return domain.AppliedCharge{}, domain.ErrForbiddenStatus
		}
		if money.Positive(charge.AmountPaidVES) {
			return domain.AppliedCharge{}, domain.ErrChargeHasMoney
		}
		if charge.InvoiceID != nil {
			return domain.AppliedCharge{}, domain.ErrChargeInvoiced
		}
	case domain.ChargeStatusPending:
		if charge.Status != domain.ChargeStatusCancelled && charge.Status != domain.ChargeStatusOverdue {
			return domain.AppliedCharge{}, domain.ErrForbiddenStatus
		}
	case domain.ChargeStatusOverdue:
		if charge.Status != domain.ChargeStatusPending && charge.Status != domain.ChargeStatusPartiallyPaid {
			return domain.AppliedCharge{}, domain.ErrForbiddenStatus
		}
	}

	charge.Status = status
	charge.UpdatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Save(&charge).Error; err != nil {
		return domain.AppliedCharge{}, err
	}

	s.log.Info("charge status updated",
		zap.String("charge_id", charge.ID.String()),
		zap.String("status", string(status)),
	)
	return charge, nil
}
