package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/clock"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	"github.com/smallbiznis/aula/internal/student/domain"
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
		log:   p.Log.Named("student.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateStudentRequest) (domain.Student, error) {
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return domain.Student{}, domain.ErrInvalidName
	}
	if err := validScholarship(req.HasScholarship, req.ScholarshipPercentage, req.ScholarshipFixedAmount); err != nil {
		return domain.Student{}, err
	}

	var rep repdomain.Representative
	err := s.db.WithContext(ctx).First(&rep, "id = ?", req.RepresentativeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Student{}, domain.ErrRepresentativeNotFound
	}
	if err != nil {
		return domain.Student{}, err
	}

	if req.GradeLevelID != nil {
		if err := s.gradeLevelExists(ctx, *req.GradeLevelID); err != nil {
			return domain.Student{}, err
		}
	}

	now := s.clock.Now()
	student := domain.Student{
		ID:                     s.genID.Generate(),
		FirstName:              strings.TrimSpace(req.FirstName),
		LastName:               strings.TrimSpace(req.LastName),
		Cedula:                 strings.TrimSpace(req.Cedula),
		BirthDate:              req.BirthDate,
		RepresentativeID:       req.RepresentativeID,
		GradeLevelID:           req.GradeLevelID,
		IsActive:               true,
		HasScholarship:         req.HasScholarship,
		ScholarshipPercentage:  req.ScholarshipPercentage,
		ScholarshipFixedAmount: req.ScholarshipFixedAmount,
		Notes:                  req.Notes,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.db.WithContext(ctx).Create(&student).Error; err != nil {
		return domain.Student{}, err
	}
	return student, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateStudentRequest) (domain.Student, error) {
	student, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Student{}, err
	}

	if req.FirstName != nil {
		student.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		student.LastName = strings.TrimSpace(*req.LastName)
	}
	if student.FirstName == "" || student.LastName == "" {
		return domain.Student{}, domain.ErrInvalidName
	}
	if req.Cedula != nil {
		student.Cedula = strings.TrimSpace(*req.Cedula)
	}
	if req.BirthDate != nil {
		student.BirthDate = req.BirthDate
	}
	if req.GradeLevelID != nil {
		if err := s.gradeLevelExists(ctx, *req.GradeLevelID); err != nil {
			return domain.Student{}, err
		}
		student.GradeLevelID = req.GradeLevelID
	}
	if req.IsActive != nil {
		student.IsActive = *req.IsActive
	}
	if req.HasScholarship != nil {
		student.HasScholarship = *req.HasScholarship
	}
	if req.ScholarshipPercentage != nil {
		student.ScholarshipPercentage = *req.ScholarshipPercentage
	}
	if req.ScholarshipFixedAmount != nil {
		student.ScholarshipFixedAmount = *req.ScholarshipFixedAmount
	}
	if err := validScholarship(student.HasScholarship, student.ScholarshipPercentage, student.ScholarshipFixedAmount); err != nil {
		return domain.Student{}, err
	}
	if req.Notes != nil {
		student.Notes = *req.Notes
	}
	student.UpdatedAt = s.clock.Now()

	if err := s.db.WithContext(ctx).Save(&student).Error; err != nil {
		return domain.Student{}, err
	}
	return student, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Student, error) {
	return s.find(ctx, id)
}

func (s *Service) List(ctx context.Context, filter domain.ListStudentFilter, page pagination.Pagination) (domain.ListStudentResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.Student{})
	if filter.RepresentativeID != 0 {
		stmt = stmt.Where("representative_id = ?", filter.RepresentativeID)
	}
	if filter.GradeLevelID != 0 {
		stmt = stmt.Where("grade_level_id = ?", filter.GradeLevelID)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		stmt = stmt.Where("lower(first_name) LIKE ? OR lower(last_name) LIKE ? OR lower(cedula) LIKE ?", like, like, like)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListStudentResponse{}, err
	}

	var items []domain.Student
	err := stmt.Order("last_name asc, first_name asc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListStudentResponse{}, err
	}

	return domain.ListStudentResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

func (s *Service) CreateGradeLevel(ctx context.Context, req domain.CreateGradeLevelRequest) (domain.GradeLevel, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.GradeLevel{}, domain.ErrInvalidName
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.GradeLevel{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return domain.GradeLevel{}, err
	}
	if n > 0 {
		return domain.GradeLevel{}, domain.ErrGradeLevelExists
	}

	now := s.clock.Now()
	level := domain.GradeLevel{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&level).Error; err != nil {
		return domain.GradeLevel{}, err
	}
	return level, nil
}

func (s *Service) UpdateGradeLevel(ctx context.Context, req domain.UpdateGradeLevelRequest) (domain.GradeLevel, error) {
	var level domain.GradeLevel
	err := s.db.WithContext(ctx).First(&level, "id = ?", req.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.GradeLevel{}, domain.ErrGradeLevelNotFound
	}
	if err != nil {
		return domain.GradeLevel{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.GradeLevel{}, domain.ErrInvalidName
		}
		if name != level.Name {
			var n int64
			if err := s.db.WithContext(ctx).Model(&domain.GradeLevel{}).Where("name = ?", name).Count(&n).Error; err != nil {
				return domain.GradeLevel{}, err
			}
			if n > 0 {
				return domain.GradeLevel{}, domain.ErrGradeLevelExists
			}
		}
		level.Name = name
	}
	if req.Description != nil {
		level.Description = *req.Description
	}
	if req.SortOrder != nil {
		level.SortOrder = *req.SortOrder
	}
	if req.IsActive != nil {
		if level.IsActive && !*req.IsActive {
			var enrolled int64
			err := s.db.WithContext(ctx).Model(&domain.Student{}).
				Where("grade_level_id = ?", level.ID).
				Where("is_active = ?", true).
				Count(&enrolled).Error
			if err != nil {
				return domain.GradeLevel{}, err
			}
			if enrolled > 0 {
				return domain.GradeLevel{}, domain.ErrGradeLevelInUse
			}
		}
		level.IsActive = *req.IsActive
	}
	level.UpdatedAt = s.clock.Now()

	if err := s.db.WithContext(ctx).Save(&level).Error; err != nil {
		return domain.GradeLevel{}, err
	}
	return level, nil
}

func (s *Service) ListGradeLevels(ctx context.Context) ([]domain.GradeLevel, error) {
	var levels []domain.GradeLevel
	err := s.db.WithContext(ctx).Order("sort_order asc, name asc").Find(&levels).Error
	return levels, err
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (domain.Student, error) {
	var student domain.Student
	err := s.db.WithContext(ctx).First(&student, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Student{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Student{}, err
	}
	return student, nil
}

func (s *Service) gradeLevelExists(ctx context.Context, id snowflake.ID) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.GradeLevel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrGradeLevelNotFound
	}
	return nil
}

func validScholarship(has bool, percentage, fixed float64) error {
	if percentage < 0 || percentage > 100 || fixed < 0 {
		return domain.ErrInvalidScholarship
	}
	if has && percentage == 0 && fixed == 0 {
		return domain.ErrInvalidScholarship
	}
	return nil
}
