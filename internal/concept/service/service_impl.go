package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/concept/domain"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("concept.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateConceptRequest) (domain.ChargeConcept, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ChargeConcept{}, domain.ErrInvalidName
	}
	if req.DefaultAmount <= 0 {
		return domain.ChargeConcept{}, domain.ErrInvalidAmount
	}
	if !req.DefaultAmountCurrency.Valid() {
		return domain.ChargeConcept{}, domain.ErrInvalidCurrency
	}
	if !req.Frequency.Valid() {
		return domain.ChargeConcept{}, domain.ErrInvalidFrequency
	}

	code, err := s.uniqueCode(ctx, name)
	if err != nil {
		return domain.ChargeConcept{}, err
	}

	category := req.Category
	if category == "" {
		category = domain.CategoryOther
	}

	now := s.clock.Now()
	concept := domain.ChargeConcept{
		ID:                    s.genID.Generate(),
		Name:                  name,
		Code:                  code,
		Description:           req.Description,
		DefaultAmount:         req.DefaultAmount,
		DefaultAmountCurrency: req.DefaultAmountCurrency,
		Frequency:             req.Frequency,
		Category:              category,
		IVAPercentage:         req.IVAPercentage,
		ApplicableGradeLevel:  req.ApplicableGradeLevel,
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.db.WithContext(ctx).Create(&concept).Error; err != nil {
		return domain.ChargeConcept{}, err
	}
	return concept, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateConceptRequest) (domain.ChargeConcept, error) {
	concept, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.ChargeConcept{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.ChargeConcept{}, domain.ErrInvalidName
		}
		concept.Name = name
	}
	if req.Description != nil {
		concept.Description = *req.Description
	}
	if req.DefaultAmount != nil {
		if *req.DefaultAmount <= 0 {
			return domain.ChargeConcept{}, domain.ErrInvalidAmount
		}
		concept.DefaultAmount = *req.DefaultAmount
	}
	if req.DefaultAmountCurrency != nil {
		if !req.DefaultAmountCurrency.Valid() {
			return domain.ChargeConcept{}, domain.ErrInvalidCurrency
		}
		concept.DefaultAmountCurrency = *req.DefaultAmountCurrency
	}
	if req.Frequency != nil {
		if !req.Frequency.Valid() {
			return domain.ChargeConcept{}, domain.ErrInvalidFrequency
		}
		concept.Frequency = *req.Frequency
	}
	if req.Category != nil {
		concept.Category = *req.Category
	}
	if req.IVAPercentage != nil {
		concept.IVAPercentage = *req.IVAPercentage
	}
	if req.ApplicableGradeLevel != nil {
		concept.ApplicableGradeLevel = req.ApplicableGradeLevel
	}
	if req.IsActive != nil {
		if concept.IsActive && !*req.IsActive {
			var open int64
			err := s.db.WithContext(ctx).
				Model(&chargedomain.AppliedCharge{}).
				Where("concept_id = ?", concept.ID).
				Where("status IN ?", chargedomain.OpenStatuses).
				Count(&open).Error
			if err != nil {
				return domain.ChargeConcept{}, err
			}
			if open > 0 {
				return domain.ChargeConcept{}, domain.ErrConceptInUse
			}
		}
		concept.IsActive = *req.IsActive
	}
	concept.UpdatedAt = s.clock.Now()

	if err := s.db.WithContext(ctx).Save(&concept).Error; err != nil {
		return domain.ChargeConcept{}, err
	}
	return concept, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.ChargeConcept, error) {
	return s.find(ctx, id)
}

func (s *Service) List(ctx context.Context, filter domain.ListConceptFilter, page pagination.Pagination) (domain.ListConceptResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.ChargeConcept{})
	if filter.Frequency != "" {
		stmt = stmt.Where("frequency = ?", filter.Frequency)
	}
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		stmt = stmt.Where("lower(name) LIKE ? OR lower(code) LIKE ?", like, like)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListConceptResponse{}, err
	}

	var items []domain.ChargeConcept
	err := stmt.Order("name asc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListConceptResponse{}, err
	}

	return domain.ListConceptResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (domain.ChargeConcept, error) {
	var concept domain.ChargeConcept
	err := s.db.WithContext(ctx).First(&concept, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ChargeConcept{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ChargeConcept{}, err
	}
	return concept, nil
}

func (s *Service) uniqueCode(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	code := base
	for i := 2; ; i++ {
		var n int64
		err := s.db.WithContext(ctx).Model(&domain.ChargeConcept{}).Where("code = ?", code).Count(&n).Error
		if err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
		code = fmt.Sprintf("%s-%d", base, i)
	}
}
