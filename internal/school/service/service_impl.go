package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/school/domain"
	pkgdb "github.com/smallbiznis/aula/pkg/db"
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
		log:   p.Log.Named("school.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Get(ctx context.Context) (domain.SchoolConfiguration, error) {
	var cfg domain.SchoolConfiguration
	err := s.db.WithContext(ctx).Order("id asc").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.SchoolConfiguration{}, domain.ErrNotConfigured
	}
	if err != nil {
		return domain.SchoolConfiguration{}, err
	}
	return cfg, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateConfigurationRequest) (domain.SchoolConfiguration, error) {
	if req.PaymentDueDay != nil && (*req.PaymentDueDay < 1 || *req.PaymentDueDay > 31) {
		return domain.SchoolConfiguration{}, domain.ErrInvalidDueDay
	}
	if req.DefaultIVAPercentage != nil && (*req.DefaultIVAPercentage < 0 || *req.DefaultIVAPercentage > 1) {
		return domain.SchoolConfiguration{}, domain.ErrInvalidIVA
	}
	if req.SchoolYearStartMonth != nil && (*req.SchoolYearStartMonth < 1 || *req.SchoolYearStartMonth > 12) {
		return domain.SchoolConfiguration{}, domain.ErrInvalidStartMonth
	}
	if req.NextInvoiceReference != nil && *req.NextInvoiceReference < 1 {
		return domain.SchoolConfiguration{}, domain.ErrInvalidReference
	}
	if req.NextCreditNoteReference != nil && *req.NextCreditNoteReference < 1 {
		return domain.SchoolConfiguration{}, domain.ErrInvalidReference
	}

	var out domain.SchoolConfiguration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cfg domain.SchoolConfiguration
		err := pkgdb.WithForUpdate(tx).Order("id asc").First(&cfg).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			cfg = domain.SchoolConfiguration{
				ID:                      s.genID.Generate(),
				NextInvoiceReference:    1,
				NextCreditNoteReference: 1,
				DefaultIVAPercentage:    0.16,
				PaymentDueDay:           5,
				SchoolYearStartMonth:    9,
				CreatedAt:               s.clock.Now(),
			}
		case err != nil:
			return err
		}

		applyString(&cfg.SchoolName, req.SchoolName)
		applyString(&cfg.SchoolRIF, req.SchoolRIF)
		applyString(&cfg.SchoolAddress, req.SchoolAddress)
		applyString(&cfg.SchoolPhone, req.SchoolPhone)
		applyString(&cfg.InvoiceReferencePrefix, req.InvoiceReferencePrefix)
		applyString(&cfg.CreditNoteReferencePrefix, req.CreditNoteReferencePrefix)
		if req.NextInvoiceReference != nil {
			cfg.NextInvoiceReference = *req.NextInvoiceReference
		}
		if req.NextCreditNoteReference != nil {
			cfg.NextCreditNoteReference = *req.NextCreditNoteReference
		}
		if req.DefaultIVAPercentage != nil {
			cfg.DefaultIVAPercentage = *req.DefaultIVAPercentage
		}
		if req.PaymentDueDay != nil {
			cfg.PaymentDueDay = *req.PaymentDueDay
		}
		if req.SchoolYearStartMonth != nil {
			cfg.SchoolYearStartMonth = *req.SchoolYearStartMonth
		}
		cfg.UpdatedAt = s.clock.Now()

		if err := tx.Save(&cfg).Error; err != nil {
			return err
		}
		out = cfg
		return nil
	})
	if err != nil {
		return domain.SchoolConfiguration{}, err
	}

	s.log.Info("school configuration updated", zap.Int64("next_invoice_ref", out.NextInvoiceReference))
	return out, nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
