package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dossier-messaging-api/internal/dto"
	"github.com/noah-isme/dossier-messaging-api/internal/handler"
	"github.com/noah-isme/dossier-messaging-api/internal/middleware"
	"github.com/noah-isme/dossier-messaging-api/internal/models"
	"github.com/noah-isme/dossier-messaging-api/internal/seed"
	"github.com/noah-isme/dossier-messaging-api/internal/service"
)

// stubMessagingService panics on any method a test does not override.
type stubMessagingService struct {
	service.MessagingService

	thread        models.Thread
	created       bool
	message       models.Message
	notifications []models.Notification
	users         []models.User
	err           error

	lastThreadID   string
	lastSenderID   string
	lastPayload    dto.MessageCreateRequest
	resolveCalls   int
	resolved       []string
	unreadOnly     bool
	serviceFilter  models.Service
	markedThreadBy string
}

func (s *stubMessagingService) GetAllThreads(context.Context) ([]models.Thread, error) {
	return []models.Thread{s.thread}, s.err
}

func (s *stubMessagingService) ThreadsForUser(_ context.Context, userID string) ([]models.Thread, error) {
	s.lastSenderID = userID
	return []models.Thread{s.thread}, s.err
}

func (s *stubMessagingService) GetThreadByID(_ context.Context, id string) (models.Thread, error) {
	s.lastThreadID = id
	return s.thread, s.err
}

func (s *stubMessagingService) CreateThread(_ context.Context, payload dto.ThreadCreateRequest) (models.Thread, error) {
	if s.err != nil {
		return models.Thread{}, s.err
	}
	return models.Thread{ID: "t-1", DossierRef: payload.DossierRef, DossierTitle: payload.DossierTitle, Participants: payload.ParticipantIDs}, nil
}

func (s *stubMessagingService) GetOrCreateThread(_ context.Context, payload dto.ThreadCreateRequest) (models.Thread, bool, error) {
	thread := s.thread
	thread.DossierRef = payload.DossierRef
	return thread, s.created, s.err
}

func (s *stubMessagingService) AddMessage(_ context.Context, threadID, senderID string, payload dto.MessageCreateRequest) (models.Message, error) {
	s.lastThreadID = threadID
	s.lastSenderID = senderID
	s.lastPayload = payload
	return s.message, s.err
}

func (s *stubMessagingService) ResolveMentions(context.Context, string, string) ([]string, error) {
	s.resolveCalls++
	return s.resolved, nil
}

func (s *stubMessagingService) MarkThreadAsRead(_ context.Context, threadID, userID string) error {
	s.lastThreadID = threadID
	s.markedThreadBy = userID
	return s.err
}

func (s *stubMessagingService) GetNotifications(context.Context, string) ([]models.Notification, error) {
	s.unreadOnly = false
	return s.notifications, s.err
}

func (s *stubMessagingService) GetUnreadNotifications(context.Context, string) ([]models.Notification, error) {
	s.unreadOnly = true
	return s.notifications, s.err
}

func (s *stubMessagingService) GetUsersByService(_ context.Context, svc models.Service) ([]models.User, error) {
	s.serviceFilter = svc
	return s.users, s.err
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Details map[string]string `json:"details"`
}

func newMessagingApp(svc service.MessagingService, guards ...fiber.Handler) *fiber.App {
	logger := zerolog.Nop()
	app := fiber.New()
	app.Use(middleware.Identity())
	group := app.Group("/api/v1/messaging")
	handler.NewThreadHandler(svc, logger).Register(group, guards...)
	handler.NewNotificationHandler(svc, logger).Register(group)
	handler.NewDirectoryHandler(svc, logger).Register(group)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	var out envelope
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestThreadHandler_CreateReturnsCreated(t *testing.T) {
	app := newMessagingApp(&stubMessagingService{})

	resp := doJSON(t, app, http.MethodPost, "/api/v1/messaging/threads", "", dto.ThreadCreateRequest{
		DossierRef: "DOS-1", DossierTitle: "Leroy", ParticipantIDs: []string{"qual-marie"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	require.True(t, body.Success)
	var thread models.Thread
	require.NoError(t, json.Unmarshal(body.Data, &thread))
	require.Equal(t, "DOS-1", thread.DossierRef)
}

func TestThreadHandler_MapsServiceErrors(t *testing.T) {
	validationErr := validator.New().Struct(dto.ThreadCreateRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "validation", err: validationErr, status: fiber.StatusUnprocessableEntity},
		{name: "not found", err: &service.NotFoundError{Resource: service.ResourceUser, ID: "ghost"}, status: fiber.StatusNotFound},
		{name: "conflict", err: service.ErrThreadExists, status: fiber.StatusConflict},
		{name: "participant", err: service.ErrInvalidParticipant, status: fiber.StatusBadRequest},
		{name: "internal", err: errors.New("boom"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newMessagingApp(&stubMessagingService{err: tc.err})
			resp := doJSON(t, app, http.MethodPost, "/api/v1/messaging/threads", "", dto.ThreadCreateRequest{DossierRef: "DOS-1"})
			require.Equal(t, tc.status, resp.StatusCode)

			body := decodeEnvelope(t, resp)
			require.False(t, body.Success)
			if tc.status == fiber.StatusUnprocessableEntity {
				require.NotEmpty(t, body.Details)
			}
			if tc.status == fiber.StatusInternalServerError {
				require.Equal(t, "internal server error", body.Message)
			}
		})
	}
}

func TestThreadHandler_GetUnknownThread(t *testing.T) {
	svc := &stubMessagingService{err: &service.NotFoundError{Resource: service.ResourceThread, ID: "missing"}}
	app := newMessagingApp(svc)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/messaging/threads/missing", "", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "missing", svc.lastThreadID)
}

func TestThreadHandler_ListMineRequiresIdentity(t *testing.T) {
	svc := &stubMessagingService{thread: models.Thread{ID: "t-1", Messages: []models.Message{{ID: "m-1"}}}}
	app := newMessagingApp(svc)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/messaging/threads?mine=true", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/messaging/threads?mine=true", "inst-lucas", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "inst-lucas", svc.lastSenderID)

	body := decodeEnvelope(t, resp)
	var summaries []map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &summaries))
	require.Len(t, summaries, 1)
	require.NotContains(t, summaries[0], "messages")
}

func TestThreadHandler_UpsertByDossierStatus(t *testing.T) {
	svc := &stubMessagingService{thread: models.Thread{ID: "t-9"}, created: true}
	app := newMessagingApp(svc)
	payload := dto.ThreadCreateRequest{DossierTitle: "Garnier", ParticipantIDs: []string{"vt-thomas"}}

	resp := doJSON(t, app, http.MethodPut, "/api/v1/messaging/threads/dossier/DOS-9", "", payload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	var upsert dto.ThreadUpsertResponse
	require.NoError(t, json.Unmarshal(body.Data, &upsert))
	require.True(t, upsert.Created)
	require.Equal(t, "DOS-9", upsert.Thread.DossierRef)

	svc.created = false
	resp = doJSON(t, app, http.MethodPut, "/api/v1/messaging/threads/dossier/DOS-9", "", payload)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestThreadHandler_PostMessage(t *testing.T) {
	svc := &stubMessagingService{
		message:  models.Message{ID: "m-1", ThreadID: "t-1", Content: "hi", Timestamp: time.Now().UTC()},
		resolved: []string{"conf-julien"},
	}
	app := newMessagingApp(svc)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/messaging/threads/t-1/messages", "", map[string]string{"content": "hi"})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/messaging/threads/t-1/messages", "qual-marie", map[string]string{"content": "hi @Julien Martin"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "t-1", svc.lastThreadID)
	require.Equal(t, "qual-marie", svc.lastSenderID)
	require.Equal(t, 1, svc.resolveCalls)
	require.Equal(t, []string{"conf-julien"}, svc.lastPayload.MentionIDs)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/messaging/threads/t-1/messages", "qual-marie", map[string]interface{}{
		"content":     "hi @Julien Martin",
		"mention_ids": []string{},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, 1, svc.resolveCalls, "explicit mention ids skip resolution")

	svc.err = service.ErrEmptyMessage
	resp = doJSON(t, app, http.MethodPost, "/api/v1/messaging/threads/t-1/messages", "qual-marie", map[string]string{"content": ""})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestThreadHandler_PostMessageGuardsRun(t *testing.T) {
	svc := &stubMessagingService{message: models.Message{ID: "m-1"}}
	app := newMessagingApp(svc, middleware.RateLimit("messages", 1, time.Minute))

	resp := doJSON(t, app, http.MethodPost, "/api/v1/messaging/threads/t-1/messages", "qual-marie", map[string]string{"content": "one"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/messaging/threads/t-1/messages", "qual-marie", map[string]string{"content": "two"})
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestThreadHandler_MarkThreadRead(t *testing.T) {
	svc := &stubMessagingService{}
	app := newMessagingApp(svc)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/messaging/threads/t-1/read", "fact-claire", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "fact-claire", svc.markedThreadBy)
}

func TestNotificationHandler_ListUnreadWithPagination(t *testing.T) {
	svc := &stubMessagingService{notifications: []models.Notification{{ID: "n-1"}, {ID: "n-2"}, {ID: "n-3"}}}
	app := newMessagingApp(svc)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/messaging/notifications?unread=true&limit=1&offset=1", "admin-sophie", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, svc.unreadOnly)

	body := decodeEnvelope(t, resp)
	var items []models.Notification
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Len(t, items, 1)
	require.Equal(t, "n-2", items[0].ID)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/messaging/notifications?limit=oops", "admin-sophie", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDirectoryHandler_FiltersByService(t *testing.T) {
	svc := &stubMessagingService{users: []models.User{{ID: "inst-lucas", Service: models.ServiceInstallation}}}
	app := newMessagingApp(svc)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/messaging/users?service=installation", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, models.ServiceInstallation, svc.serviceFilter)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/messaging/users?service=marketing", "", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

type stubSeeder struct {
	err       error
	lastToken string
}

func (s *stubSeeder) Apply(context.Context) (seed.Result, error) {
	return seed.Result{}, s.err
}

func (s *stubSeeder) Reseed(_ context.Context, token string) (seed.Result, error) {
	s.lastToken = token
	return seed.Result{Threads: 3, Messages: 5}, s.err
}

func TestSeedHandler_Reseed(t *testing.T) {
	seeder := &stubSeeder{}
	app := fiber.New()
	handler.NewSeedHandler(seeder, zerolog.Nop()).Register(app.Group("/api/v1/tools"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/seed", nil)
	req.Header.Set("X-Seed-Token", "secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "secret", seeder.lastToken)

	var result seed.Result
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &result))
	require.Equal(t, 3, result.Threads)

	for _, err := range []error{seed.ErrSeedDisabled, seed.ErrSeedUnauthorized} {
		seeder.err = err
		resp, reqErr := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/tools/seed", nil))
		require.NoError(t, reqErr)
		require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	}
}
