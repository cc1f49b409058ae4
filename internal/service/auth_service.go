package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mathbingo/mathbingo-go-api/internal/config"
	"github.com/mathbingo/mathbingo-go-api/internal/dto"
	"github.com/mathbingo/mathbingo-go-api/internal/models"
	"github.com/mathbingo/mathbingo-go-api/internal/repository"
)

const blacklistKeyPrefix = "auth:blacklist:"

// RosterInvalidator drops cached rosters after an account changes approval state.
type RosterInvalidator interface {
	InvalidateRoster(ctx context.Context)
}

// AuthService manages accounts, sessions and the student approval workflow.
type AuthService interface {
	RegisterStudent(ctx context.Context, payload dto.StudentRegisterRequest) (dto.UserResponse, error)
	RegisterAdmin(ctx context.Context, payload dto.AdminRegisterRequest) (dto.UserResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
	Profile(ctx context.Context, userID uuid.UUID) (dto.UserResponse, error)
	PendingStudents(ctx context.Context) ([]dto.UserResponse, error)
	ApproveStudent(ctx context.Context, caller Caller, studentID uuid.UUID) (dto.UserResponse, error)
	RejectStudent(ctx context.Context, caller Caller, studentID uuid.UUID, payload dto.RejectStudentRequest) (dto.UserResponse, error)
	ListStudents(ctx context.Context, payload dto.StudentListRequest) (dto.StudentListResponse, error)
}

type authService struct {
	users    repository.UserRepository
	redis    *redis.Client
	roster   RosterInvalidator
	cfg      config.Config
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAuthService wires an auth service with its dependencies.
func NewAuthService(
	users repository.UserRepository,
	redisClient *redis.Client,
	roster RosterInvalidator,
	cfg config.Config,
	validate *validator.Validate,
	logger zerolog.Logger,
) AuthService {
	return &authService{
		users:    users,
		redis:    redisClient,
		roster:   roster,
		cfg:      cfg,
		validate: validate,
		logger:   logger.With().Str("component", "auth_service").Logger(),
		now:      time.Now,
	}
}

func (s *authService) RegisterStudent(ctx context.Context, payload dto.StudentRegisterRequest) (dto.UserResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	username := strings.ToLower(strings.TrimSpace(payload.Username))
	if err := s.ensureUsernameFree(ctx, username); err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Username:  username,
		Role:      models.RoleStudent,
		Status:    models.UserStatusPending,
		FirstName: strings.TrimSpace(payload.FirstName),
		LastName:  strings.TrimSpace(payload.LastName),
		Nickname:  strings.TrimSpace(payload.Nickname),
		School:    strings.TrimSpace(payload.School),
		Purpose:   strings.TrimSpace(payload.Purpose),
	}
	if err := user.SetPassword(payload.Password); err != nil {
		return dto.UserResponse{}, err
	}

	if err := s.users.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("student registered, awaiting approval")

	return dto.NewUserResponse(user), nil
}

func (s *authService) RegisterAdmin(ctx context.Context, payload dto.AdminRegisterRequest) (dto.UserResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	username := strings.ToLower(strings.TrimSpace(payload.Username))
	if s.cfg.AdminUsername == "" || username != s.cfg.AdminUsername {
		return dto.UserResponse{}, ErrForbidden
	}
	if err := s.ensureUsernameFree(ctx, username); err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Username: username,
		Role:     models.RoleAdmin,
		Status:   models.UserStatusApproved,
	}
	if err := user.SetPassword(payload.Password); err != nil {
		return dto.UserResponse{}, err
	}

	if err := s.users.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("admin registered")

	return dto.NewUserResponse(user), nil
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.LoginResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.LoginResponse{}, err
	}

	user, err := s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(payload.Username)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LoginResponse{}, ErrInvalidCredentials
		}
		return dto.LoginResponse{}, err
	}
	if !user.CheckPassword(payload.Password) {
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"username": user.Username,
		"role":     user.Role,
		"status":   user.Status,
		"iat":      now.Unix(),
		"exp":      now.Add(s.cfg.TokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return dto.LoginResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("role", user.Role).Msg("user logged in")

	return dto.LoginResponse{Token: token, User: dto.NewUserResponse(user)}, nil
}

// Logout blacklists the presented token for the remainder of its lifetime.
func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	ttl := s.cfg.TokenTTL
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err == nil {
		if expiry, err := parsed.Claims.GetExpirationTime(); err == nil && expiry != nil {
			if remaining := time.Until(expiry.Time); remaining > 0 {
				ttl = remaining
			}
		}
	}

	return s.redis.Set(ctx, blacklistKeyPrefix+token, "1", ttl).Err()
}

func (s *authService) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	count, err := s.redis.Exists(ctx, blacklistKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (dto.UserResponse, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) PendingStudents(ctx context.Context) ([]dto.UserResponse, error) {
	students, err := s.users.ListPendingStudents(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(students), nil
}

func (s *authService) ApproveStudent(ctx context.Context, caller Caller, studentID uuid.UUID) (dto.UserResponse, error) {
	user, err := s.user(ctx, studentID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if user.Role != models.RoleStudent {
		return dto.UserResponse{}, NewValidationError("user is not a student")
	}

	approvedAt := s.now()
	user.Status = models.UserStatusApproved
	user.ApprovedAt = &approvedAt
	user.ApprovedBy = &caller.ID
	user.RejectedAt = nil
	user.RejectionReason = ""

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	s.roster.InvalidateRoster(ctx)

	s.logger.Info().
		Str("student_id", user.ID.String()).
		Str("approved_by", caller.ID.String()).
		Msg("student approved")

	return dto.NewUserResponse(user), nil
}

func (s *authService) RejectStudent(ctx context.Context, caller Caller, studentID uuid.UUID, payload dto.RejectStudentRequest) (dto.UserResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.user(ctx, studentID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if user.Role != models.RoleStudent {
		return dto.UserResponse{}, NewValidationError("user is not a student")
	}

	rejectedAt := s.now()
	user.Status = models.UserStatusRejected
	user.RejectedAt = &rejectedAt
	user.RejectionReason = strings.TrimSpace(payload.Reason)
	user.ApprovedAt = nil
	user.ApprovedBy = nil

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	s.roster.InvalidateRoster(ctx)

	s.logger.Info().
		Str("student_id", user.ID.String()).
		Str("rejected_by", caller.ID.String()).
		Msg("student rejected")

	return dto.NewUserResponse(user), nil
}

func (s *authService) ListStudents(ctx context.Context, payload dto.StudentListRequest) (dto.StudentListResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.StudentListResponse{}, err
	}

	page, pageSize := normalizePage(payload.Page, payload.PageSize)
	students, total, err := s.users.ListStudents(ctx, repository.StudentFilter{
		Status:   payload.Status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	return dto.StudentListResponse{
		Students:   dto.NewUserResponseSlice(students),
		Pagination: dto.NewPagination(page, pageSize, total),
	}, nil
}

func (s *authService) user(ctx context.Context, userID uuid.UUID) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *authService) ensureUsernameFree(ctx context.Context, username string) error {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}
