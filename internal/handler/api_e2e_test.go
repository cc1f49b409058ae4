package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mathbingo/mathbingo-go-api/internal/config"
	"github.com/mathbingo/mathbingo-go-api/internal/handler"
	"github.com/mathbingo/mathbingo-go-api/internal/middleware"
	"github.com/mathbingo/mathbingo-go-api/internal/models"
	"github.com/mathbingo/mathbingo-go-api/internal/repository"
	"github.com/mathbingo/mathbingo-go-api/internal/router"
	"github.com/mathbingo/mathbingo-go-api/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Assignment{}, &models.StudentProgress{}))

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})

	cfg := config.Config{
		AppName:        "MathBingo API",
		AppEnv:         "test",
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		AdminUsername:  "headteacher",
		RosterCacheTTL: time.Minute,
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.Nop()

	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	directoryService := service.NewStudentDirectoryService(userRepo, redisClient, cfg.RosterCacheTTL, logger)
	authService := service.NewAuthService(userRepo, redisClient, directoryService, cfg, validate, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, progressRepo, userRepo, validate, logger)
	progressService := service.NewProgressService(assignmentRepo, progressRepo, validate, logger)

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(authService, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, directoryService, logger),
		ProgressHandler:   handler.NewProgressHandler(progressService, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret, authService),
	})

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload interface{}) (*http.Response, envelope) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func registerAndLogin(t *testing.T, app *fiber.App) (adminToken, studentToken, studentID string) {
	t.Helper()

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/auth/register/admin", "", map[string]string{
		"username": "headteacher",
		"password": "secret1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, env := doJSON(t, app, http.MethodPost, "/api/v1/auth/register/student", "", map[string]string{
		"username":   "mina.park",
		"password":   "hunter22",
		"first_name": "Mina",
		"last_name":  "Park",
		"school":     "Riverside Elementary",
		"purpose":    "Practice number bonds",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var registered struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &registered))
	studentID = registered.ID

	var session struct {
		Token string `json:"token"`
	}

	resp, env = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "headteacher",
		"password": "secret1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &session))
	adminToken = session.Token

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/admin/students/"+studentID+"/approve", adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "mina.park",
		"password": "hunter22",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &session))
	studentToken = session.Token

	return adminToken, studentToken, studentID
}

func TestAssignmentLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	adminToken, studentToken, studentID := registerAndLogin(t, app)

	resp, env := doJSON(t, app, http.MethodPost, "/api/v1/assignments", adminToken, map[string]interface{}{
		"title":           "Make Ten",
		"description":     "Build equations that total ten",
		"total_questions": 2,
		"due_date":        time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"student_ids":     []string{studentID},
		"option_sets": []map[string]interface{}{
			{
				"numQuestions": 2,
				"options": map[string]interface{}{
					"totalCount":    10,
					"operatorMode":  "random",
					"operatorCount": 2,
					"isLockPos":     true,
				},
			},
		},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	var created struct {
		ID         string `json:"id"`
		OptionSets []struct {
			SetLabel string `json:"setLabel"`
			Options  struct {
				LockCount int `json:"lockCount"`
			} `json:"options"`
		} `json:"option_sets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created.OptionSets, 1)
	require.Equal(t, "Set 1", created.OptionSets[0].SetLabel)
	require.Equal(t, 2, created.OptionSets[0].Options.LockCount)

	base := "/api/v1/assignments/" + created.ID + "/students/" + studentID

	resp, _ = doJSON(t, app, http.MethodPost, base+"/start", studentToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	for i := 1; i <= 2; i++ {
		resp, env = doJSON(t, app, http.MethodPost, base+"/answers", studentToken, map[string]interface{}{
			"question_number": i,
			"question_text":   "3 + 7 = ?",
			"answer_text":     "10",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	var progress struct {
		Status             string `json:"status"`
		ProgressPercentage int    `json:"progress_percentage"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	require.Equal(t, models.StatusComplete, progress.Status)
	require.Equal(t, 100, progress.ProgressPercentage)

	// Only the owning admin may move a completed assignment to done.
	resp, _ = doJSON(t, app, http.MethodPatch, base+"/status", studentToken, map[string]string{"status": models.StatusDone})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, env = doJSON(t, app, http.MethodPatch, base+"/status", adminToken, map[string]string{"status": models.StatusDone})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	require.Equal(t, models.StatusDone, progress.Status)

	resp, env = doJSON(t, app, http.MethodGet, "/api/v1/students/"+studentID+"/assignments", studentToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listed struct {
		Assignments []struct {
			ID              string `json:"id"`
			StudentProgress struct {
				Status string `json:"status"`
			} `json:"student_progress"`
		} `json:"assignments"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed.Assignments, 1)
	require.Equal(t, models.StatusDone, listed.Assignments[0].StudentProgress.Status)
}

func TestAuthAndRBACOverHTTP(t *testing.T) {
	app := newTestApp(t)
	adminToken, studentToken, studentID := registerAndLogin(t, app)

	// Students cannot reach admin surfaces.
	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/assignments", studentToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/admin/students", studentToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, env := doJSON(t, app, http.MethodGet, "/api/v1/assignments/available-students", adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var roster struct {
		Count    int `json:"count"`
		Students []struct {
			ID string `json:"id"`
		} `json:"students"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &roster))
	require.Equal(t, 1, roster.Count)
	require.Equal(t, studentID, roster.Students[0].ID)

	// Requests without a token are rejected outright.
	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/auth/profile", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Logout revokes the session token.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/auth/logout", studentToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/auth/profile", studentToken, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, env = doJSON(t, app, http.MethodGet, "/api/v1/auth/profile", adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var profile struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	require.Equal(t, "headteacher", profile.Username)
	require.Equal(t, models.RoleAdmin, profile.Role)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, env := doJSON(t, app, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	var health struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "MathBingo API", health.Service)
}
