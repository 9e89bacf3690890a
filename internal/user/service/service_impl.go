package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/config"
	"github.com/smallbiznis/aula/internal/user/domain"
	"github.com/smallbiznis/aula/internal/user/password"
	pkgdb "github.com/smallbiznis/aula/pkg/db"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minPasswordLen = 8

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	sessionTTL time.Duration
}

func New(p ServiceParam) domain.Service {
	ttl := time.Duration(p.Cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("user.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		sessionTTL: ttl,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.ErrInvalidEmail
	}
	if strings.TrimSpace(req.FullName) == "" {
		return domain.User{}, domain.ErrInvalidName
	}
	if !req.Role.Valid() {
		return domain.User{}, domain.ErrInvalidRole
	}
	if len(req.Password) < minPasswordLen {
		return domain.User{}, domain.ErrWeakPassword
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrEmailExists
		}
		return domain.User{}, err
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateUserRequest) (domain.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	if req.FullName != nil {
		if strings.TrimSpace(*req.FullName) == "" {
			return domain.User{}, domain.ErrInvalidName
		}
		user.FullName = *req.FullName
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return domain.User{}, domain.ErrInvalidRole
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLen {
			return domain.User{}, domain.ErrWeakPassword
		}
		hash, err := password.Hash(*req.Password)
		if err != nil {
			return domain.User{}, err
		}
		user.PasswordHash = hash
	}

	user.UpdatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) List(ctx context.Context, page pagination.Pagination) (domain.ListUserResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.User{})

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListUserResponse{}, err
	}

	var items []domain.User
	err := stmt.Order("email asc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListUserResponse{}, err
	}

	return domain.ListUserResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

func (s *Service) Login(ctx context.Context, email, plaintext string) (domain.User, domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user domain.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, domain.Session{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, domain.Session{}, err
	}
	if !password.Verify(plaintext, user.PasswordHash) {
		return domain.User{}, domain.Session{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return domain.User{}, domain.Session{}, domain.ErrUserInactive
	}

	token, err := newToken()
	if err != nil {
		return domain.User{}, domain.Session{}, err
	}

	now := s.clock.Now()
	session := domain.Session{
		ID:        s.genID.Generate(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return domain.User{}, domain.Session{}, err
	}

	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return domain.User{}, domain.Session{}, err
	}

	s.log.Info("user logged in", zap.String("user_id", user.ID.String()))
	return user, session, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&domain.Session{}, "token = ?", token).Error
}

func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	var session domain.Session
	err := s.db.WithContext(ctx).First(&session, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if session.Expired(s.clock.Now()) {
		_ = s.db.WithContext(ctx).Delete(&session).Error
		return domain.User{}, domain.ErrSessionExpired
	}

	user, err := s.GetByID(ctx, session.UserID)
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsActive {
		return domain.User{}, domain.ErrUserInactive
	}
	return user, nil
}

func newToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
