package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mathbingo/mathbingo-go-api/internal/config"
	"github.com/mathbingo/mathbingo-go-api/internal/dto"
	"github.com/mathbingo/mathbingo-go-api/internal/models"
)

type authFixture struct {
	svc       AuthService
	directory StudentDirectoryService
	users     *memoryUserRepo
	mini      *miniredis.Miniredis
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	userRepo := newMemoryUserRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())

	cfg := config.Config{
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		AdminUsername: "headteacher",
	}

	directory := NewStudentDirectoryService(userRepo, redisClient, time.Minute, testLogger())
	svc := NewAuthService(userRepo, redisClient, directory, cfg, validate, testLogger())

	return authFixture{svc: svc, directory: directory, users: userRepo, mini: mini}
}

func studentRegisterReq(username string) dto.StudentRegisterRequest {
	return dto.StudentRegisterRequest{
		Username:  username,
		Password:  "hunter22",
		FirstName: "Mina",
		LastName:  "Park",
		School:    "Riverside Elementary",
		Purpose:   "Practice number bonds",
	}
}

func TestRegisterStudentStartsPending(t *testing.T) {
	f := newAuthFixture(t)

	user, err := f.svc.RegisterStudent(context.Background(), studentRegisterReq("mina.park"))
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, user.Role)
	require.Equal(t, models.UserStatusPending, user.Status)

	_, err = f.svc.RegisterStudent(context.Background(), studentRegisterReq("Mina.Park"))
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterAdminIsAllowListed(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterAdmin(ctx, dto.AdminRegisterRequest{Username: "impostor", Password: "secret1"})
	require.ErrorIs(t, err, ErrForbidden)

	user, err := f.svc.RegisterAdmin(ctx, dto.AdminRegisterRequest{Username: "headteacher", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, user.Role)
	require.Equal(t, models.UserStatusApproved, user.Status)
}

func TestLoginAndLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterStudent(ctx, studentRegisterReq("mina.park"))
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, dto.LoginRequest{Username: "mina.park", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, dto.LoginRequest{Username: "nobody", Password: "hunter22"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := f.svc.Login(ctx, dto.LoginRequest{Username: "mina.park", Password: "hunter22"})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, "mina.park", session.User.Username)

	revoked, err := f.svc.IsTokenRevoked(ctx, session.Token)
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, f.svc.Logout(ctx, session.Token))

	revoked, err = f.svc.IsTokenRevoked(ctx, session.Token)
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestApproveAndRejectStudent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	adminUser, err := f.svc.RegisterAdmin(ctx, dto.AdminRegisterRequest{Username: "headteacher", Password: "secret1"})
	require.NoError(t, err)
	admin := Caller{ID: mustUUID(t, adminUser.ID), Role: models.RoleAdmin}

	registered, err := f.svc.RegisterStudent(ctx, studentRegisterReq("theo.okafor"))
	require.NoError(t, err)
	studentID := mustUUID(t, registered.ID)

	pending, err := f.svc.PendingStudents(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	approved, err := f.svc.ApproveStudent(ctx, admin, studentID)
	require.NoError(t, err)
	require.Equal(t, models.UserStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	pending, err = f.svc.PendingStudents(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	rejected, err := f.svc.RejectStudent(ctx, admin, studentID, dto.RejectStudentRequest{Reason: "duplicate account"})
	require.NoError(t, err)
	require.Equal(t, models.UserStatusRejected, rejected.Status)
	require.Equal(t, "duplicate account", rejected.RejectionReason)
	require.Nil(t, rejected.ApprovedAt)

	_, err = f.svc.ApproveStudent(ctx, admin, mustUUID(t, registered.ID))
	require.NoError(t, err)

	_, err = f.svc.ApproveStudent(ctx, admin, admin.ID)
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	_, err = f.svc.ApproveStudent(ctx, admin, mustUUID(t, "00000000-0000-0000-0000-000000000001"))
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestListStudentsFiltersByStatus(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterStudent(ctx, studentRegisterReq("mina.park"))
	require.NoError(t, err)
	approvedStudent(f.users, "Theo", "Okafor")

	listed, err := f.svc.ListStudents(ctx, dto.StudentListRequest{Status: models.UserStatusPending})
	require.NoError(t, err)
	require.Len(t, listed.Students, 1)
	require.Equal(t, "mina.park", listed.Students[0].Username)

	listed, err = f.svc.ListStudents(ctx, dto.StudentListRequest{})
	require.NoError(t, err)
	require.Len(t, listed.Students, 2)
}

func TestStudentDirectoryCachesRoster(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	approvedStudent(f.users, "Mina", "Park")

	first, err := f.directory.AvailableStudents(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Count)

	// A direct write bypassing the approval workflow is invisible until the
	// cache expires or is invalidated.
	approvedStudent(f.users, "Theo", "Okafor")
	cached, err := f.directory.AvailableStudents(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, cached.Count)

	f.directory.InvalidateRoster(ctx)
	refreshed, err := f.directory.AvailableStudents(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, refreshed.Count)
}

func TestApprovalInvalidatesRosterCache(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	adminUser, err := f.svc.RegisterAdmin(ctx, dto.AdminRegisterRequest{Username: "headteacher", Password: "secret1"})
	require.NoError(t, err)
	admin := Caller{ID: mustUUID(t, adminUser.ID), Role: models.RoleAdmin}

	approvedStudent(f.users, "Mina", "Park")

	roster, err := f.directory.AvailableStudents(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, roster.Count)

	registered, err := f.svc.RegisterStudent(ctx, studentRegisterReq("theo.okafor"))
	require.NoError(t, err)

	_, err = f.svc.ApproveStudent(ctx, admin, mustUUID(t, registered.ID))
	require.NoError(t, err)

	roster, err = f.directory.AvailableStudents(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, roster.Count)
}
