package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/internal/rate/domain"
	"github.com/smallbiznis/aula/internal/rate/repository"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.ExchangeRate{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func setupRateService(t *testing.T, now time.Time) (domain.Service, *clock.FakeClock) {
	t.Helper()
	fake := clock.NewFakeClock(now)
	svc := New(ServiceParam{
		DB:    openTestDB(t),
		Log:   zap.NewNop(),
		GenID: mustNode(t),
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, fake
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateRate(t *testing.T) {
	svc, _ := setupRateService(t, day(2026, time.March, 10))
	ctx := context.Background()

	rate, err := svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.USD,
		ToCurrency:   money.VES,
		Rate:         40.5,
		RateDate:     time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC),
		Source:       "BCV",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rate.ID == 0 {
		t.Fatal("expected generated id")
	}
	if !rate.RateDate.Equal(day(2026, time.March, 10)) {
		t.Fatalf("rate date not truncated: %v", rate.RateDate)
	}

	// Same pair and day is a conflict.
	_, err = svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.USD,
		ToCurrency:   money.VES,
		Rate:         41,
		RateDate:     day(2026, time.March, 10),
	})
	if !errors.Is(err, domain.ErrRateExists) {
		t.Fatalf("err = %v, want ErrRateExists", err)
	}

	// Next day is fine.
	_, err = svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.USD,
		ToCurrency:   money.VES,
		Rate:         41,
		RateDate:     day(2026, time.March, 11),
	})
	if err != nil {
		t.Fatalf("Create next day: %v", err)
	}
}

func TestCreateRateValidation(t *testing.T) {
	svc, _ := setupRateService(t, day(2026, time.March, 10))
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.VES,
		ToCurrency:   money.VES,
		Rate:         1,
		RateDate:     day(2026, time.March, 10),
	})
	if !errors.Is(err, domain.ErrInvalidCurrency) {
		t.Fatalf("same pair: err = %v, want ErrInvalidCurrency", err)
	}

	_, err = svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.USD,
		ToCurrency:   money.VES,
		Rate:         0,
		RateDate:     day(2026, time.March, 10),
	})
	if !errors.Is(err, domain.ErrInvalidRate) {
		t.Fatalf("zero rate: err = %v, want ErrInvalidRate", err)
	}
}

func TestConvertToVES(t *testing.T) {
	svc, _ := setupRateService(t, day(2026, time.March, 12))
	ctx := context.Background()

	mustCreate := func(rate float64, d time.Time) {
		t.Helper()
		_, err := svc.Create(ctx, domain.CreateRateRequest{
			FromCurrency: money.USD,
			ToCurrency:   money.VES,
			Rate:         rate,
			RateDate:     d,
		})
		if err != nil {
			t.Fatalf("create rate: %v", err)
		}
	}
	mustCreate(38, day(2026, time.March, 1))
	mustCreate(40, day(2026, time.March, 10))

	// VES passes through without a rate.
	conv, err := svc.ConvertToVES(ctx, 1500, money.VES, day(2026, time.March, 5))
	if err != nil {
		t.Fatalf("ConvertToVES ves: %v", err)
	}
	if conv.AmountVES != 1500 || conv.RateApplied != nil {
		t.Fatalf("ves conversion = %+v", conv)
	}

	// Mid-month uses the older rate.
	conv, err = svc.ConvertToVES(ctx, 100, money.USD, day(2026, time.March, 5))
	if err != nil {
		t.Fatalf("ConvertToVES usd: %v", err)
	}
	if conv.AmountVES != 3800 || conv.RateApplied == nil || *conv.RateApplied != 38 {
		t.Fatalf("usd conversion on 03-05 = %+v", conv)
	}

	// After the 10th the newer rate wins.
	conv, err = svc.ConvertToVES(ctx, 100, money.USD, day(2026, time.March, 12))
	if err != nil {
		t.Fatalf("ConvertToVES usd: %v", err)
	}
	if conv.AmountVES != 4000 || *conv.RateApplied != 40 {
		t.Fatalf("usd conversion on 03-12 = %+v", conv)
	}

	// No EUR rate registered.
	_, err = svc.ConvertToVES(ctx, 100, money.EUR, day(2026, time.March, 12))
	if !errors.Is(err, domain.ErrRateMissing) {
		t.Fatalf("eur: err = %v, want ErrRateMissing", err)
	}

	_, err = svc.ConvertToVES(ctx, 100, money.Currency("COP"), day(2026, time.March, 12))
	if !errors.Is(err, domain.ErrInvalidCurrency) {
		t.Fatalf("cop: err = %v, want ErrInvalidCurrency", err)
	}
}

func TestUpdateRate(t *testing.T) {
	svc, _ := setupRateService(t, day(2026, time.March, 10))
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.USD, ToCurrency: money.VES, Rate: 40, RateDate: day(2026, time.March, 10),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.USD, ToCurrency: money.VES, Rate: 41, RateDate: day(2026, time.March, 11),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newRate := 40.25
	updated, err := svc.Update(ctx, domain.UpdateRateRequest{ID: first.ID, Rate: &newRate})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Rate != 40.25 {
		t.Fatalf("rate = %v, want 40.25", updated.Rate)
	}

	// Moving onto an occupied day conflicts.
	clashDate := day(2026, time.March, 10)
	_, err = svc.Update(ctx, domain.UpdateRateRequest{ID: second.ID, RateDate: &clashDate})
	if !errors.Is(err, domain.ErrRateExists) {
		t.Fatalf("err = %v, want ErrRateExists", err)
	}

	_, err = svc.Update(ctx, domain.UpdateRateRequest{ID: mustNode(t).Generate()})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRate(t *testing.T) {
	svc, _ := setupRateService(t, day(2026, time.March, 10))
	ctx := context.Background()

	rate, err := svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.USD, ToCurrency: money.VES, Rate: 40, RateDate: day(2026, time.March, 10),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, rate.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.GetByID(ctx, rate.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, rate.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestFreshness(t *testing.T) {
	// 15:00 UTC is 11:00 in Caracas, still the same calendar day.
	svc, _ := setupRateService(t, time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC))
	ctx := context.Background()

	alert, err := svc.Freshness(ctx)
	if err != nil {
		t.Fatalf("Freshness: %v", err)
	}
	if !alert.NeedsUpdate || alert.LatestDate != nil {
		t.Fatalf("empty table alert = %+v", alert)
	}

	_, err = svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.USD, ToCurrency: money.VES, Rate: 40, RateDate: day(2026, time.March, 9),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	alert, err = svc.Freshness(ctx)
	if err != nil {
		t.Fatalf("Freshness: %v", err)
	}
	if !alert.NeedsUpdate {
		t.Fatal("stale rate should need an update")
	}
	if alert.LatestDate == nil || !alert.LatestDate.Equal(day(2026, time.March, 9)) {
		t.Fatalf("latest date = %v", alert.LatestDate)
	}

	_, err = svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.USD, ToCurrency: money.VES, Rate: 40.2, RateDate: day(2026, time.March, 10),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	alert, err = svc.Freshness(ctx)
	if err != nil {
		t.Fatalf("Freshness: %v", err)
	}
	if alert.NeedsUpdate {
		t.Fatalf("rate for today should be fresh: %+v", alert)
	}
}

func TestListRates(t *testing.T) {
	svc, _ := setupRateService(t, day(2026, time.March, 10))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := svc.Create(ctx, domain.CreateRateRequest{
			FromCurrency: money.USD, ToCurrency: money.VES, Rate: float64(40 + i), RateDate: day(2026, time.March, i),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	_, err := svc.Create(ctx, domain.CreateRateRequest{
		FromCurrency: money.EUR, ToCurrency: money.VES, Rate: 44, RateDate: day(2026, time.March, 1),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := svc.List(ctx, domain.ListRateFilter{FromCurrency: money.USD, ToCurrency: money.VES}, pagination.Pagination{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if out.Total != 3 || len(out.Items) != 3 {
		t.Fatalf("total = %d, items = %d", out.Total, len(out.Items))
	}
	// Newest first.
	if !out.Items[0].RateDate.Equal(day(2026, time.March, 3)) {
		t.Fatalf("first item date = %v", out.Items[0].RateDate)
	}

	start := day(2026, time.March, 2)
	out, err = svc.List(ctx, domain.ListRateFilter{StartDate: &start}, pagination.Pagination{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if out.Total != 2 {
		t.Fatalf("filtered total = %d, want 2", out.Total)
	}
}
