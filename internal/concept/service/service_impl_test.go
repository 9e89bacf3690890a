package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/concept/domain"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type conceptFixture struct {
	svc  domain.Service
	db   *gorm.DB
	node *snowflake.Node
}

func setupConceptService(t *testing.T) *conceptFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.ChargeConcept{},
		&chargedomain.AppliedCharge{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC))

	return &conceptFixture{
		db: db, node: node,
		svc: New(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node, Clock: fake}),
	}
}

func TestCreateConcept(t *testing.T) {
	f := setupConceptService(t)
	ctx := context.Background()

	concept, err := f.svc.Create(ctx, domain.CreateConceptRequest{
		Name:          "Mensualidad Escolar",
		DefaultAmount: 1500, DefaultAmountCurrency: money.VES,
		Frequency: domain.FrequencyMonthly,
	})
	require.NoError(t, err)
	require.Equal(t, "mensualidad-escolar", concept.Code)
	require.True(t, concept.IsActive)
	require.Equal(t, domain.CategoryOther, concept.Category)

	// Same name gets a suffixed code.
	again, err := f.svc.Create(ctx, domain.CreateConceptRequest{
		Name:          "Mensualidad Escolar",
		DefaultAmount: 1200, DefaultAmountCurrency: money.VES,
		Frequency: domain.FrequencyMonthly,
	})
	require.NoError(t, err)
	require.Equal(t, "mensualidad-escolar-2", again.Code)

	_, err = f.svc.Create(ctx, domain.CreateConceptRequest{
		Name: "  ", DefaultAmount: 100, DefaultAmountCurrency: money.VES,
		Frequency: domain.FrequencyMonthly,
	})
	require.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestDeactivateConceptWithOpenCharges(t *testing.T) {
	f := setupConceptService(t)
	ctx := context.Background()

	concept, err := f.svc.Create(ctx, domain.CreateConceptRequest{
		Name:          "Transporte",
		DefaultAmount: 400, DefaultAmountCurrency: money.VES,
		Frequency: domain.FrequencyMonthly,
	})
	require.NoError(t, err)

	charge := chargedomain.AppliedCharge{
		ID:        f.node.Generate(),
		StudentID: f.node.Generate(), ConceptID: concept.ID,
		IssueDate: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
		AmountDueOriginal: 400, Currency: money.VES, AmountDueVESAtEmission: 400,
		Status: chargedomain.ChargeStatusPending,
	}
	require.NoError(t, f.db.Create(&charge).Error)

	off := false
	_, err = f.svc.Update(ctx, domain.UpdateConceptRequest{ID: concept.ID, IsActive: &off})
	require.ErrorIs(t, err, domain.ErrConceptInUse)

	// Settled charges no longer block deactivation.
	require.NoError(t, f.db.Model(&chargedomain.AppliedCharge{}).
		Where("id = ?", charge.ID).
		Update("status", chargedomain.ChargeStatusPaid).Error)

	updated, err := f.svc.Update(ctx, domain.UpdateConceptRequest{ID: concept.ID, IsActive: &off})
	require.NoError(t, err)
	require.False(t, updated.IsActive)
}
