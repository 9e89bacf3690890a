package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/representative/domain"
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
		log:   p.Log.Named("representative.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRepresentativeRequest) (domain.Representative, error) {
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return domain.Representative{}, domain.ErrInvalidName
	}
	if strings.TrimSpace(req.Cedula) == "" {
		return domain.Representative{}, domain.ErrInvalidCedula
	}
	if !strings.Contains(req.Email, "@") {
		return domain.Representative{}, domain.ErrInvalidEmail
	}

	if taken, err := s.exists(ctx, "cedula = ?", req.Cedula); err != nil {
		return domain.Representative{}, err
	} else if taken {
		return domain.Representative{}, domain.ErrCedulaExists
	}
	if taken, err := s.exists(ctx, "email = ?", req.Email); err != nil {
		return domain.Representative{}, err
	} else if taken {
		return domain.Representative{}, domain.ErrEmailExists
	}

	now := s.clock.Now()
	rep := domain.Representative{
		ID:             s.genID.Generate(),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Cedula:         strings.TrimSpace(req.Cedula),
		RIF:            strings.TrimSpace(req.RIF),
		Email:          strings.TrimSpace(req.Email),
		Phone:          req.Phone,
		PhoneSecondary: req.PhoneSecondary,
		Address:        req.Address,
		Profession:     req.Profession,
		Workplace:      req.Workplace,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(&rep).Error; err != nil {
		return domain.Representative{}, err
	}
	return rep, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRepresentativeRequest) (domain.Representative, error) {
	rep, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Representative{}, err
	}

	if req.Email != nil && *req.Email != rep.Email {
		if !strings.Contains(*req.Email, "@") {
			return domain.Representative{}, domain.ErrInvalidEmail
		}
		taken, err := s.exists(ctx, "email = ? AND id <> ?", *req.Email, rep.ID)
		if err != nil {
			return domain.Representative{}, err
		}
		if taken {
			return domain.Representative{}, domain.ErrEmailExists
		}
		rep.Email = strings.TrimSpace(*req.Email)
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&rep.FirstName, req.FirstName)
	apply(&rep.LastName, req.LastName)
	apply(&rep.RIF, req.RIF)
	apply(&rep.Phone, req.Phone)
	apply(&rep.PhoneSecondary, req.PhoneSecondary)
	apply(&rep.Address, req.Address)
	apply(&rep.Profession, req.Profession)
	apply(&rep.Workplace, req.Workplace)

	if strings.TrimSpace(rep.FirstName) == "" || strings.TrimSpace(rep.LastName) == "" {
		return domain.Representative{}, domain.ErrInvalidName
	}
	rep.UpdatedAt = s.clock.Now()

	if err := s.db.WithContext(ctx).Save(&rep).Error; err != nil {
		return domain.Representative{}, err
	}
	return rep, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Representative, error) {
	return s.find(ctx, id)
}

func (s *Service) List(ctx context.Context, filter domain.ListRepresentativeFilter, page pagination.Pagination) (domain.ListRepresentativeResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.Representative{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		stmt = stmt.Where(
			"lower(first_name) LIKE ? OR lower(last_name) LIKE ? OR lower(cedula) LIKE ? OR lower(email) LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListRepresentativeResponse{}, err
	}

	var items []domain.Representative
	err := stmt.Order("last_name asc, first_name asc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListRepresentativeResponse{}, err
	}

	return domain.ListRepresentativeResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

// Delete removes a representative without financial history. Students,
// payments or invoices on record block the delete.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}

	for _, table := range []string{"students", "payments", "invoices"} {
		var n int64
		err := s.db.WithContext(ctx).Table(table).
			Where("representative_id = ?", id).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrHasDependents
		}
	}

	return s.db.WithContext(ctx).Delete(&domain.Representative{}, "id = ?", id).Error
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (domain.Representative, error) {
	var rep domain.Representative
	err := s.db.WithContext(ctx).First(&rep, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Representative{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Representative{}, err
	}
	return rep, nil
}

func (s *Service) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Representative{}).Where(query, args...).Count(&n).Error
	return n > 0, err
}
