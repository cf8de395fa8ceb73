package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"presence-archive/internal/db"
	"presence-archive/internal/models"
	"presence-archive/internal/store"
)

func setupServer(t *testing.T) *Server {
	t.Helper()

	ctx := context.Background()
	dbConn, err := db.New(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	t.Cleanup(dbConn.Close)
	if err := dbConn.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(dbConn, logger)

	username := "alice"
	if err := st.UpsertUser(ctx, models.User{ID: 1, Username: &username}); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	if err := st.UpsertUser(ctx, models.User{ID: 2}); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := st.AppendStatus(ctx, 1, models.StatusOnline, nil, now.Add(-time.Minute)); err != nil {
		t.Fatalf("Failed to seed status: %v", err)
	}
	lastSeen := now.Add(-30 * time.Second)
	if err := st.AppendStatus(ctx, 1, models.StatusOffline, &lastSeen, now); err != nil {
		t.Fatalf("Failed to seed status: %v", err)
	}

	return NewServer(logger, st)
}

func doRequest(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer_ReleaseMode(t *testing.T) {
	setupServer(t)
	if gin.Mode() != gin.ReleaseMode {
		t.Errorf("expected release mode, got %q", gin.Mode())
	}
}

func TestHealth(t *testing.T) {
	srv := setupServer(t)

	rec := doRequest(t, srv, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestListUsers(t *testing.T) {
	srv := setupServer(t)

	rec := doRequest(t, srv, "/api/v1/users")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Users []models.UserSummary `json:"users"`
		Count int                  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Count != 2 || len(body.Users) != 2 {
		t.Fatalf("expected 2 users, got %+v", body)
	}

	if body.Users[0].ID != 1 || body.Users[0].Status == nil || *body.Users[0].Status != models.StatusOffline {
		t.Errorf("expected user 1 with latest status offline, got %+v", body.Users[0])
	}
	if body.Users[1].ID != 2 || body.Users[1].Status != nil {
		t.Errorf("expected user 2 with no status yet, got %+v", body.Users[1])
	}
}

func TestGetUser(t *testing.T) {
	srv := setupServer(t)

	rec := doRequest(t, srv, "/api/v1/users/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var user models.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if user.ID != 1 || user.Username == nil || *user.Username != "alice" {
		t.Errorf("unexpected user payload %+v", user)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	srv := setupServer(t)

	rec := doRequest(t, srv, "/api/v1/users/999")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetUser_InvalidID(t *testing.T) {
	srv := setupServer(t)

	for _, path := range []string{"/api/v1/users/abc", "/api/v1/users/-5"} {
		rec := doRequest(t, srv, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestStatusHistory(t *testing.T) {
	srv := setupServer(t)

	rec := doRequest(t, srv, "/api/v1/users/1/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		UserID  int64                 `json:"user_id"`
		History []models.StatusRecord `json:"history"`
		Count   int                   `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Count != 2 {
		t.Fatalf("expected 2 history rows, got %d", body.Count)
	}
	if body.History[0].Status != models.StatusOffline {
		t.Errorf("expected newest row first, got %q", body.History[0].Status)
	}
	if body.History[0].WasOnline == nil {
		t.Error("expected was_online on the offline row")
	}
	if body.History[1].WasOnline != nil {
		t.Error("expected no was_online on the online row")
	}
}

func TestStatusHistory_LimitApplied(t *testing.T) {
	srv := setupServer(t)

	rec := doRequest(t, srv, "/api/v1/users/1/history?limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		History []models.StatusRecord `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.History) != 1 {
		t.Errorf("expected 1 row, got %d", len(body.History))
	}
}

func TestStatusHistory_InvalidLimit(t *testing.T) {
	srv := setupServer(t)

	rec := doRequest(t, srv, "/api/v1/users/1/history?limit=zero")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
