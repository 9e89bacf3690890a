package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/internal/rate/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rate *domain.ExchangeRate) error
	Update(ctx context.Context, db *gorm.DB, rate *domain.ExchangeRate) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ExchangeRate, error)
	FindLatest(ctx context.Context, db *gorm.DB, from, to money.Currency, onDate *time.Time) (*domain.ExchangeRate, error)
	FindByPairAndDate(ctx context.Context, db *gorm.DB, from, to money.Currency, date time.Time) (*domain.ExchangeRate, error)
	List(ctx context.Context, db *gorm.DB, filter domain.ListRateFilter, skip, limit int) ([]domain.ExchangeRate, int64, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rate *domain.ExchangeRate) error {
	return db.WithContext(ctx).Create(rate).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rate *domain.ExchangeRate) error {
	return db.WithContext(ctx).Save(rate).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&domain.ExchangeRate{}, "id = ?", id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ExchangeRate, error) {
	var rate domain.ExchangeRate
	err := db.WithContext(ctx).First(&rate, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repo) FindLatest(ctx context.Context, db *gorm.DB, from, to money.Currency, onDate *time.Time) (*domain.ExchangeRate, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.ExchangeRate{}).
		Where("from_currency = ? AND to_currency = ?", from, to)
	if onDate != nil {
		stmt = stmt.Where("rate_date <= ?", *onDate)
	}

	var rate domain.ExchangeRate
	err := stmt.Order("rate_date desc, created_at desc").First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repo) FindByPairAndDate(ctx context.Context, db *gorm.DB, from, to money.Currency, date time.Time) (*domain.ExchangeRate, error) {
	var rate domain.ExchangeRate
	err := db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ? AND rate_date = ?", from, to, date).
		First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRateFilter, skip, limit int) ([]domain.ExchangeRate, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.ExchangeRate{})
	if filter.FromCurrency != "" {
		stmt = stmt.Where("from_currency = ?", filter.FromCurrency)
	}
	if filter.ToCurrency != "" {
		stmt = stmt.Where("to_currency = ?", filter.ToCurrency)
	}
	if filter.StartDate != nil {
		stmt = stmt.Where("rate_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		stmt = stmt.Where("rate_date <= ?", *filter.EndDate)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.ExchangeRate
	err := stmt.Order("rate_date desc, created_at desc").
		Offset(skip).Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
