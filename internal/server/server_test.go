package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/usher/internal/pin"
	"github.com/desertthunder/usher/internal/shared"
	"github.com/desertthunder/usher/internal/tasks"
)

// mockOrchestrator stubs the tasks engine with per-call function fields.
type mockOrchestrator struct {
	redeemFn func(req tasks.RedeemRequest) (*tasks.RedeemResult, error)
	syncFn   func(serverID string) (*tasks.SyncResult, error)
	auditFn  func(opts tasks.AuditOpts) (*tasks.AuditResult, error)
}

func (m *mockOrchestrator) Redeem(ctx context.Context, progress chan<- tasks.ProgressUpdate, req tasks.RedeemRequest) (*tasks.RedeemResult, error) {
	return m.redeemFn(req)
}

func (m *mockOrchestrator) Sync(ctx context.Context, progress chan<- tasks.ProgressUpdate, serverID string) (*tasks.SyncResult, error) {
	return m.syncFn(serverID)
}

func (m *mockOrchestrator) Audit(ctx context.Context, progress chan<- tasks.ProgressUpdate, opts tasks.AuditOpts) (*tasks.AuditResult, error) {
	return m.auditFn(opts)
}

func TestBasicRouter(t *testing.T) {
	t.Run("Method Filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodPost, "/only-post", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/only-post", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/only-post", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(tag("first"), tag("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("unexpected middleware order: %v", order)
		}
	})
}

func TestRedeemHandler(t *testing.T) {
	post := func(t *testing.T, handler *RedeemHandler, body string) *httptest.ResponseRecorder {
		t.Helper()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/redeem", strings.NewReader(body))
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("Success", func(t *testing.T) {
		engine := &mockOrchestrator{
			redeemFn: func(req tasks.RedeemRequest) (*tasks.RedeemResult, error) {
				if req.Code != "WELCOME" || req.Username != "alice" {
					t.Errorf("unexpected request: %+v", req)
				}
				return &tasks.RedeemResult{Success: true, IdentityID: "ident-1"}, nil
			},
		}
		handler := NewRedeemHandler(engine, shared.NewLogger(nil))

		rec := post(t, handler, `{"code":"WELCOME","username":"alice","email":"alice@example.com"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}

		var result tasks.RedeemResult
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if result.IdentityID != "ident-1" {
			t.Errorf("unexpected identity: %s", result.IdentityID)
		}
	})

	t.Run("Error Code Statuses", func(t *testing.T) {
		tests := []struct {
			code string
			want int
		}{
			{tasks.ReasonNotFound, http.StatusNotFound},
			{tasks.ReasonDisabled, http.StatusGone},
			{tasks.ReasonExpired, http.StatusGone},
			{tasks.ReasonMaxUses, http.StatusGone},
			{tasks.ErrorCodeUsernameTaken, http.StatusConflict},
			{tasks.ErrorCodeAlreadyExists, http.StatusConflict},
			{tasks.ErrorCodeEmailRequired, http.StatusBadRequest},
			{tasks.ErrorCodeServerError, http.StatusBadGateway},
		}

		for _, tt := range tests {
			t.Run(tt.code, func(t *testing.T) {
				engine := &mockOrchestrator{
					redeemFn: func(req tasks.RedeemRequest) (*tasks.RedeemResult, error) {
						return &tasks.RedeemResult{Success: false, ErrorCode: tt.code}, nil
					},
				}
				handler := NewRedeemHandler(engine, shared.NewLogger(nil))

				rec := post(t, handler, `{"code":"X","username":"alice"}`)
				if rec.Code != tt.want {
					t.Errorf("expected %d for %s, got %d", tt.want, tt.code, rec.Code)
				}
			})
		}
	})

	t.Run("Invalid Body", func(t *testing.T) {
		handler := NewRedeemHandler(&mockOrchestrator{}, shared.NewLogger(nil))

		if rec := post(t, handler, `{not json`); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if rec := post(t, handler, `{"code":"","username":""}`); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for missing fields, got %d", rec.Code)
		}
	})

	t.Run("Engine Error", func(t *testing.T) {
		engine := &mockOrchestrator{
			redeemFn: func(req tasks.RedeemRequest) (*tasks.RedeemResult, error) {
				return nil, fmt.Errorf("database gone")
			},
		}
		handler := NewRedeemHandler(engine, shared.NewLogger(nil))

		if rec := post(t, handler, `{"code":"X","username":"alice"}`); rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("Wrong Method", func(t *testing.T) {
		handler := NewRedeemHandler(&mockOrchestrator{}, shared.NewLogger(nil))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/redeem", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestSyncHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		engine := &mockOrchestrator{
			syncFn: func(serverID string) (*tasks.SyncResult, error) {
				if serverID != "srv-1" {
					t.Errorf("unexpected server id: %s", serverID)
				}
				return &tasks.SyncResult{ServerID: serverID, MatchedUsers: 3}, nil
			},
		}
		handler := NewSyncHandler(engine, shared.NewLogger(nil))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sync?server=srv-1", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var result tasks.SyncResult
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if result.MatchedUsers != 3 {
			t.Errorf("unexpected matched count: %d", result.MatchedUsers)
		}
	})

	t.Run("Missing Server Parameter", func(t *testing.T) {
		handler := NewSyncHandler(&mockOrchestrator{}, shared.NewLogger(nil))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sync", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Unknown Server", func(t *testing.T) {
		engine := &mockOrchestrator{
			syncFn: func(serverID string) (*tasks.SyncResult, error) {
				return nil, fmt.Errorf("%w: %s", shared.ErrServerNotFound, serverID)
			},
		}
		handler := NewSyncHandler(engine, shared.NewLogger(nil))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sync?server=ghost", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("Provider Failure", func(t *testing.T) {
		engine := &mockOrchestrator{
			syncFn: func(serverID string) (*tasks.SyncResult, error) {
				return nil, fmt.Errorf("connection refused")
			},
		}
		handler := NewSyncHandler(engine, shared.NewLogger(nil))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sync?server=srv-1", nil))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})
}

func TestPinHandler(t *testing.T) {
	handler := NewPinHandler(pin.NewService("test-client", "usher", shared.NewLogger(nil)), shared.NewLogger(nil))

	t.Run("Create Wrong Method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pins", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Check Missing ID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pins/check", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Check Unknown Pin", func(t *testing.T) {
		// Unknown pins are rejected from the in-memory store before any
		// request leaves the process.
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pins/check?id=ghost", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		db, err := shared.NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		handler := NewHealthHandler(db)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var body healthBody
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Status != "ok" || body.Database != "ok" {
			t.Errorf("unexpected body: %+v", body)
		}
	})

	t.Run("Database Unreachable", func(t *testing.T) {
		db, err := shared.NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		db.Close()

		handler := NewHealthHandler(db)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

func TestNew(t *testing.T) {
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	engine := &mockOrchestrator{
		syncFn: func(serverID string) (*tasks.SyncResult, error) {
			return &tasks.SyncResult{ServerID: serverID}, nil
		},
	}
	router := New(db, engine, pin.NewService("test-client", "usher", shared.NewLogger(nil)), shared.NewLogger(nil))

	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/sync?server=srv-1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
