package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mathbingo/mathbingo-go-api/internal/dto"
	"github.com/mathbingo/mathbingo-go-api/internal/repository"
)

const rosterCacheKey = "roster:approved-students"

// StudentDirectoryService serves the roster of approved students an admin can
// assign work to. The roster changes rarely, so reads go through a short-lived
// cache that approval-state changes invalidate.
type StudentDirectoryService interface {
	AvailableStudents(ctx context.Context) (dto.AvailableStudentsResponse, error)
	InvalidateRoster(ctx context.Context)
}

type studentDirectoryService struct {
	users    repository.UserRepository
	redis    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewStudentDirectoryService wires a student directory with its dependencies.
func NewStudentDirectoryService(
	users repository.UserRepository,
	redisClient *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) StudentDirectoryService {
	return &studentDirectoryService{
		users:    users,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "student_directory").Logger(),
	}
}

func (s *studentDirectoryService) AvailableStudents(ctx context.Context) (dto.AvailableStudentsResponse, error) {
	if cached, err := s.redis.Get(ctx, rosterCacheKey).Bytes(); err == nil {
		var response dto.AvailableStudentsResponse
		if err := json.Unmarshal(cached, &response); err == nil {
			return response, nil
		}
		// Unreadable cache entries are dropped and rebuilt.
		s.redis.Del(ctx, rosterCacheKey)
	}

	students, err := s.users.ListApprovedStudents(ctx)
	if err != nil {
		return dto.AvailableStudentsResponse{}, err
	}

	response := dto.NewAvailableStudentsResponse(students)
	if data, err := json.Marshal(response); err == nil {
		if err := s.redis.Set(ctx, rosterCacheKey, data, s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache roster")
		}
	}

	return response, nil
}

func (s *studentDirectoryService) InvalidateRoster(ctx context.Context) {
	if err := s.redis.Del(ctx, rosterCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate roster cache")
	}
}
