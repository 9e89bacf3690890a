package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/dates"
	"github.com/smallbiznis/aula/internal/expense/domain"
	"github.com/smallbiznis/aula/internal/money"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
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
		log:     p.Log.Named("expense.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		rateSvc: p.RateSvc,
	}
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.CreateSupplierRequest) (domain.Supplier, error) {
	if strings.TrimSpace(req.Name) == "" {
		return domain.Supplier{}, domain.ErrInvalidName
	}
	now := s.clock.Now()
	supplier := domain.Supplier{
		ID:          s.genID.Generate(),
		Name:        req.Name,
		RIF:         req.RIF,
		ContactName: req.ContactName,
		Phone:       req.Phone,
		Email:       req.Email,
		Address:     req.Address,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&supplier).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Supplier{}, domain.ErrSupplierExists
		}
		return domain.Supplier{}, err
	}
	return supplier, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	var suppliers []domain.Supplier
	err := s.db.WithContext(ctx).Order("name asc").Find(&suppliers).Error
	return suppliers, err
}

func (s *Service) CreateCategory(ctx context.Context, name, description string) (domain.ExpenseCategory, error) {
	if strings.TrimSpace(name) == "" {
		return domain.ExpenseCategory{}, domain.ErrInvalidName
	}
	now := s.clock.Now()
	category := domain.ExpenseCategory{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.ExpenseCategory{}, domain.ErrCategoryExists
		}
		return domain.ExpenseCategory{}, err
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	var categories []domain.ExpenseCategory
	err := s.db.WithContext(ctx).Order("name asc").Find(&categories).Error
	return categories, err
}

func (s *Service) Create(ctx context.Context, req domain.CreateExpenseRequest) (domain.Expense, error) {
	if strings.TrimSpace(req.Description) == "" {
		return domain.Expense{}, domain.ErrInvalidName
	}
	if req.Amount <= 0 {
		return domain.Expense{}, domain.ErrInvalidAmount
	}
	if !req.Currency.Valid() {
		return domain.Expense{}, domain.ErrInvalidCurrency
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.ExpenseCategory{}).Where("id = ?", req.CategoryID).Count(&count).Error; err != nil {
		return domain.Expense{}, err
	}
	if count == 0 {
		return domain.Expense{}, domain.ErrCategoryNotFound
	}
	if req.SupplierID != nil {
		if err := s.db.WithContext(ctx).Model(&domain.Supplier{}).Where("id = ?", req.SupplierID).Count(&count).Error; err != nil {
			return domain.Expense{}, err
		}
		if count == 0 {
			return domain.Expense{}, domain.ErrSupplierNotFound
		}
	}

	expenseDate := dates.Day(req.ExpenseDate)
	conv, err := s.rateSvc.ConvertToVES(ctx, req.Amount, req.Currency, expenseDate)
	if err != nil {
		return domain.Expense{}, err
	}

	now := s.clock.Now()
	expense := domain.Expense{
		ID:                  s.genID.Generate(),
		CategoryID:          req.CategoryID,
		SupplierID:          req.SupplierID,
		Description:         req.Description,
		ExpenseDate:         expenseDate,
		AmountOriginal:      money.Round2(req.Amount),
		Currency:            req.Currency,
		AmountVES:           conv.AmountVES,
		ExchangeRateApplied: conv.RateApplied,
		Status:              domain.ExpenseStatusPending,
		InvoiceNumber:       req.InvoiceNumber,
		Notes:               req.Notes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.db.WithContext(ctx).Create(&expense).Error; err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Expense, error) {
	var expense domain.Expense
	err := s.db.WithContext(ctx).First(&expense, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Expense{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListExpenseFilter, page pagination.Pagination) (domain.ListExpenseResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.Expense{})
	if filter.CategoryID != 0 {
		stmt = stmt.Where("expense_category_id = ?", filter.CategoryID)
	}
	if filter.SupplierID != 0 {
		stmt = stmt.Where("supplier_id = ?", filter.SupplierID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		stmt = stmt.Where("expense_date >= ?", dates.Day(*filter.From))
	}
	if filter.To != nil {
		stmt = stmt.Where("expense_date <= ?", dates.Day(*filter.To))
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListExpenseResponse{}, err
	}

	var items []domain.Expense
	err := stmt.Order("expense_date desc, created_at desc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListExpenseResponse{}, err
	}

	return domain.ListExpenseResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

func (s *Service) RegisterPayment(ctx context.Context, req domain.RegisterPaymentRequest) (domain.Expense, error) {
	if req.AmountVES <= 0 {
		return domain.Expense{}, domain.ErrInvalidAmount
	}

	var out domain.Expense
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expense domain.Expense
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&expense, "id = ?", req.ExpenseID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if expense.Status == domain.ExpenseStatusPaid {
			return domain.ErrAlreadyPaid
		}

		paid, err := s.paidVES(ctx, tx, expense.ID)
		if err != nil {
			return err
		}
		balance := money.Round2(expense.AmountVES - paid)
		if req.AmountVES > balance+money.Tolerance {
			return domain.ErrPaymentExceeds
		}

		now := s.clock.Now()
		payment := domain.ExpensePayment{
			ID:          s.genID.Generate(),
			ExpenseID:   expense.ID,
			PaymentDate: dates.Day(req.PaymentDate),
			AmountVES:   money.Round2(req.AmountVES),
			Method:      req.Method,
			Reference:   req.Reference,
			Notes:       req.Notes,
			CreatedAt:   now,
		}
		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}

		paid = money.Round2(paid + payment.AmountVES)
		if money.GTE(paid, expense.AmountVES) {
			expense.Status = domain.ExpenseStatusPaid
		} else {
			expense.Status = domain.ExpenseStatusPartiallyPaid
		}
		expense.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(&expense).Error; err != nil {
			return err
		}
		out = expense
		return nil
	})
	if err != nil {
		return domain.Expense{}, err
	}
	return out, nil
}

func (s *Service) Payments(ctx context.Context, expenseID snowflake.ID) ([]domain.ExpensePayment, error) {
	var payments []domain.ExpensePayment
	err := s.db.WithContext(ctx).
		Where("expense_id = ?", expenseID).
		Order("payment_date asc, created_at asc").
		Find(&payments).Error
	return payments, err
}

// CreateSalaryExpenseWithin books a settled salary disbursement. The
// category is created on first use.
func (s *Service) CreateSalaryExpenseWithin(ctx context.Context, tx *gorm.DB, description string, amountVES float64, date time.Time) (domain.Expense, error) {
	if amountVES <= 0 {
		return domain.Expense{}, domain.ErrInvalidAmount
	}

	category, err := s.salaryCategory(ctx, tx)
	if err != nil {
		return domain.Expense{}, err
	}

	now := s.clock.Now()
	expense := domain.Expense{
		ID:             s.genID.Generate(),
		CategoryID:     category.ID,
		Description:    description,
		ExpenseDate:    dates.Day(date),
		AmountOriginal: money.Round2(amountVES),
		Currency:       money.VES,
		AmountVES:      money.Round2(amountVES),
		Status:         domain.ExpenseStatusPaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(&expense).Error; err != nil {
		return domain.Expense{}, err
	}

	payment := domain.ExpensePayment{
		ID:          s.genID.Generate(),
		ExpenseID:   expense.ID,
		PaymentDate: expense.ExpenseDate,
		AmountVES:   expense.AmountVES,
		Method:      "payroll",
		Notes:       description,
		CreatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

func (s *Service) salaryCategory(ctx context.Context, tx *gorm.DB) (domain.ExpenseCategory, error) {
	var category domain.ExpenseCategory
	err := tx.WithContext(ctx).First(&category, "name = ?", domain.SalaryCategoryName).Error
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ExpenseCategory{}, err
	}

	now := s.clock.Now()
	category = domain.ExpenseCategory{
		ID:          s.genID.Generate(),
		Name:        domain.SalaryCategoryName,
		Description: "Pagos de nómina y adelantos de saldo",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&category).Error; err != nil {
		return domain.ExpenseCategory{}, err
	}
	return category, nil
}

func (s *Service) paidVES(ctx context.Context, tx *gorm.DB, expenseID snowflake.ID) (float64, error) {
	var paid float64
	err := tx.WithContext(ctx).
		Model(&domain.ExpensePayment{}).
		Where("expense_id = ?", expenseID).
		Select("COALESCE(SUM(amount_ves), 0)").
		Scan(&paid).Error
	return money.Round2(paid), err
}
