package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/aula/internal/clock"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	"github.com/smallbiznis/aula/internal/student/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type studentFixture struct {
	svc  domain.Service
	db   *gorm.DB
	node *snowflake.Node

	rep repdomain.Representative
}

func setupStudentService(t *testing.T) *studentFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&repdomain.Representative{},
		&domain.GradeLevel{},
		&domain.Student{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC))

	f := &studentFixture{
		db: db, node: node,
		svc: New(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node, Clock: fake}),
	}
	f.rep = repdomain.Representative{
		ID: node.Generate(), FirstName: "Luisa", LastName: "Mora",
		Cedula: "V-9888777", Email: "luisa@example.com",
	}
	require.NoError(t, db.Create(&f.rep).Error)
	return f
}

func TestCreateStudent(t *testing.T) {
	f := setupStudentService(t)
	ctx := context.Background()

	student, err := f.svc.Create(ctx, domain.CreateStudentRequest{
		FirstName: "Sofía", LastName: "Mora",
		RepresentativeID: f.rep.ID,
	})
	require.NoError(t, err)
	require.True(t, student.IsActive)

	_, err = f.svc.Create(ctx, domain.CreateStudentRequest{
		FirstName: "Sofía", LastName: "Mora",
		RepresentativeID: f.node.Generate(),
	})
	require.ErrorIs(t, err, domain.ErrRepresentativeNotFound)

	// A scholarship flag without any discount is incoherent.
	_, err = f.svc.Create(ctx, domain.CreateStudentRequest{
		FirstName: "Diego", LastName: "Mora",
		RepresentativeID: f.rep.ID, HasScholarship: true,
	})
	require.ErrorIs(t, err, domain.ErrInvalidScholarship)
}

func TestDeactivateGradeLevelWithActiveStudents(t *testing.T) {
	f := setupStudentService(t)
	ctx := context.Background()

	level, err := f.svc.CreateGradeLevel(ctx, domain.CreateGradeLevelRequest{
		Name: "3er Grado", SortOrder: 3,
	})
	require.NoError(t, err)
	require.True(t, level.IsActive)

	student, err := f.svc.Create(ctx, domain.CreateStudentRequest{
		FirstName: "Sofía", LastName: "Mora",
		RepresentativeID: f.rep.ID, GradeLevelID: &level.ID,
	})
	require.NoError(t, err)

	off := false
	_, err = f.svc.UpdateGradeLevel(ctx, domain.UpdateGradeLevelRequest{ID: level.ID, IsActive: &off})
	require.ErrorIs(t, err, domain.ErrGradeLevelInUse)

	// Once the student is withdrawn the grade can close.
	inactive := false
	_, err = f.svc.Update(ctx, domain.UpdateStudentRequest{ID: student.ID, IsActive: &inactive})
	require.NoError(t, err)

	closed, err := f.svc.UpdateGradeLevel(ctx, domain.UpdateGradeLevelRequest{ID: level.ID, IsActive: &off})
	require.NoError(t, err)
	require.False(t, closed.IsActive)

	_, err = f.svc.UpdateGradeLevel(ctx, domain.UpdateGradeLevelRequest{ID: f.node.Generate()})
	require.ErrorIs(t, err, domain.ErrGradeLevelNotFound)
}

func TestUpdateGradeLevelNameConflict(t *testing.T) {
	f := setupStudentService(t)
	ctx := context.Background()

	first, err := f.svc.CreateGradeLevel(ctx, domain.CreateGradeLevelRequest{Name: "1er Grado"})
	require.NoError(t, err)
	_, err = f.svc.CreateGradeLevel(ctx, domain.CreateGradeLevelRequest{Name: "2do Grado"})
	require.NoError(t, err)

	taken := "2do Grado"
	_, err = f.svc.UpdateGradeLevel(ctx, domain.UpdateGradeLevelRequest{ID: first.ID, Name: &taken})
	require.ErrorIs(t, err, domain.ErrGradeLevelExists)
}
