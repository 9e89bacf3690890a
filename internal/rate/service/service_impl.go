package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/dates"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/internal/rate/domain"
	"github.com/smallbiznis/aula/internal/rate/repository"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// caracas anchors "today" for rate freshness. Rates are published per
// Venezuelan banking day, not per UTC day.
var caracas = mustLoadLocation("America/Caracas")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  repository.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("rate.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRateRequest) (domain.ExchangeRate, error) {
	if !req.FromCurrency.Valid() || !req.ToCurrency.Valid() || req.FromCurrency == req.ToCurrency {
		return domain.ExchangeRate{}, domain.ErrInvalidCurrency
	}
	if req.Rate <= 0 {
		return domain.ExchangeRate{}, domain.ErrInvalidRate
	}

	rateDate := dates.Day(req.RateDate)
	existing, err := s.repo.FindByPairAndDate(ctx, s.db, req.FromCurrency, req.ToCurrency, rateDate)
	if err != nil {
		return domain.ExchangeRate{}, err
	}
	if existing != nil {
		return domain.ExchangeRate{}, domain.ErrRateExists
	}

	now := s.clock.Now()
	rate := domain.ExchangeRate{
		ID:           s.genID.Generate(),
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		Rate:         req.Rate,
		RateDate:     rateDate,
		Source:       req.Source,
		Notes:        req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &rate); err != nil {
		return domain.ExchangeRate{}, err
	}

	s.log.Info("exchange rate registered",
		zap.String("pair", string(req.FromCurrency)+"/"+string(req.ToCurrency)),
		zap.Float64("rate", req.Rate),
		zap.Time("rate_date", rateDate),
	)
	return rate, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRateRequest) (domain.ExchangeRate, error) {
	rate, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return domain.ExchangeRate{}, err
	}
	if rate == nil {
		return domain.ExchangeRate{}, domain.ErrNotFound
	}

	if req.Rate != nil {
		if *req.Rate <= 0 {
			return domain.ExchangeRate{}, domain.ErrInvalidRate
		}
		rate.Rate = *req.Rate
	}
	if req.RateDate != nil {
		newDate := dates.Day(*req.RateDate)
		if !newDate.Equal(rate.RateDate) {
			conflict, err := s.repo.FindByPairAndDate(ctx, s.db, rate.FromCurrency, rate.ToCurrency, newDate)
			if err != nil {
				return domain.ExchangeRate{}, err
			}
			if conflict != nil {
				return domain.ExchangeRate{}, domain.ErrRateExists
			}
			rate.RateDate = newDate
		}
	}
	if req.Source != nil {
		rate.Source = *req.Source
	}
	if req.Notes != nil {
		rate.Notes = *req.Notes
	}
	rate.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, rate); err != nil {
		return domain.ExchangeRate{}, err
	}
	return *rate, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	rate, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if rate == nil {
		return domain.ErrNotFound
	}
	return s.repo.Delete(ctx, s.db, id)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.ExchangeRate, error) {
	rate, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ExchangeRate{}, err
	}
	if rate == nil {
		return domain.ExchangeRate{}, domain.ErrNotFound
	}
	return *rate, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListRateFilter, page pagination.Pagination) (domain.ListRateResponse, error) {
	page = page.Normalize()
	items, total, err := s.repo.List(ctx, s.db, filter, page.Skip, page.Limit)
	if err != nil {
		return domain.ListRateResponse{}, err
	}
	return domain.ListRateResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

func (s *Service) Latest(ctx context.Context, from, to money.Currency, onDate time.Time) (*domain.ExchangeRate, error) {
	day := dates.Day(onDate)
	return s.repo.FindLatest(ctx, s.db, from, to, &day)
}

// ConvertToVES values an amount in VES using the most recent rate on or
// before the given date. VES passes through untouched.
func (s *Service) ConvertToVES(ctx context.Context, amount float64, currency money.Currency, onDate time.Time) (domain.Conversion, error) {
	switch currency {
	case money.VES:
		return domain.Conversion{AmountVES: money.Round2(amount)}, nil
	case money.USD, money.EUR:
		rate, err := s.repo.FindLatest(ctx, s.db, currency, money.VES, ptrDay(onDate))
		if err != nil {
			return domain.Conversion{}, err
		}
		if rate == nil {
			return domain.Conversion{}, domain.ErrRateMissing
		}
		applied := rate.Rate
		return domain.Conversion{
			AmountVES:   money.Round2(amount * applied),
			RateApplied: &applied,
		}, nil
	default:
		return domain.Conversion{}, domain.ErrInvalidCurrency
	}
}

func (s *Service) Freshness(ctx context.Context) (domain.RateAlert, error) {
	today := dates.Day(s.clock.Now().In(caracas))

	latest, err := s.repo.FindLatest(ctx, s.db, money.USD, money.VES, &today)
	if err != nil {
		return domain.RateAlert{}, err
	}

	if latest == nil {
		return domain.RateAlert{
			NeedsUpdate: true,
			Message:     fmt.Sprintf("no USD-VES exchange rate registered; please register the rate for %s", today.Format("02/01/2006")),
			CurrentDate: today,
		}, nil
	}

	if latest.RateDate.Equal(today) {
		return domain.RateAlert{
			NeedsUpdate: false,
			Message:     fmt.Sprintf("USD-VES exchange rate is up to date for %s", today.Format("02/01/2006")),
			LatestDate:  &latest.RateDate,
			CurrentDate: today,
		}, nil
	}

	return domain.RateAlert{
		NeedsUpdate: true,
		Message: fmt.Sprintf("latest USD-VES rate is from %s; please update it for %s",
			latest.RateDate.Format("02/01/2006"), today.Format("02/01/2006")),
		LatestDate:  &latest.RateDate,
		CurrentDate: today,
	}, nil
}

func ptrDay(t time.Time) *time.Time {
	day := dates.Day(t)
	return &day
}
