package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lorawan-server/lorawan-concentratord/internal/auth"
	"github.com/lorawan-server/lorawan-concentratord/internal/config"
	"github.com/lorawan-server/lorawan-concentratord/internal/models"
	"github.com/lorawan-server/lorawan-concentratord/internal/stats"
	"github.com/lorawan-server/lorawan-concentratord/internal/storage"
)

type fakeQueue struct{ length, capacity int }

func (q fakeQueue) Len() int      { return q.length }
func (q fakeQueue) Capacity() int { return q.capacity }

type fakeStore struct {
	filters storage.EventLogFilters
	limit   int
	events  []*models.EventLog
	err     error
}

func (s *fakeStore) Migrate(ctx context.Context) error { return nil }
func (s *fakeStore) SaveGatewayStats(ctx context.Context, st *models.GatewayStats) error {
	return nil
}
func (s *fakeStore) GetGatewayStats(ctx context.Context, gatewayID string) (*models.GatewayStats, error) {
	return nil, storage.ErrNotFound
}
func (s *fakeStore) CreateEventLog(ctx context.Context, event *models.EventLog) error { return nil }
func (s *fakeStore) ListEventLogs(ctx context.Context, filters storage.EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	s.filters = filters
	s.limit = limit
	return s.events, int64(len(s.events)), s.err
}
func (s *fakeStore) Close() error { return nil }

func testConfig(secret string) *config.Config {
	cfg := config.Default()
	cfg.Concentrator.GatewayID = "0102030405060708"
	cfg.Concentrator.Radios = []config.RadioConfig{{TxFreqMin: 863000000, TxFreqMax: 870000000}}
	cfg.JWT.Secret = secret
	return &cfg
}

func do(t *testing.T, s *RESTServer, path, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s response %q: %v", path, rec.Body.String(), err)
	}
	return rec, body
}

func TestStatusEndpoints(t *testing.T) {
	collector := stats.NewCollector()
	collector.IncTxPacketsReceived()
	collector.IncTxStatusCount(models.TxAckStatusOK)

	s := NewRESTServer(testConfig(""), fakeQueue{length: 3, capacity: 32}, collector, nil)

	rec, body := do(t, s, "/api/v1/health", "")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("health = %d %v", rec.Code, body)
	}

	rec, body = do(t, s, "/api/v1/queue", "")
	if rec.Code != http.StatusOK || body["length"] != float64(3) || body["capacity"] != float64(32) {
		t.Errorf("queue = %d %v", rec.Code, body)
	}

	rec, body = do(t, s, "/api/v1/stats", "")
	if rec.Code != http.StatusOK || body["gatewayId"] != "0102030405060708" || body["txPacketsReceived"] != float64(1) {
		t.Errorf("stats = %d %v", rec.Code, body)
	}

	rec, body = do(t, s, "/api/v1/gateway", "")
	if rec.Code != http.StatusOK || body["gatewayId"] != "0102030405060708" || body["model"] != "simulator" {
		t.Errorf("gateway = %d %v", rec.Code, body)
	}

	rec, _ = do(t, s, "/api/v1/events", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("events without store = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestListEvents(t *testing.T) {
	store := &fakeStore{events: []*models.EventLog{{
		GatewayID: "0102030405060708",
		Type:      models.EventTypeConfiguration,
		Level:     models.EventLevelInfo,
		CreatedAt: time.Now(),
	}}}
	s := NewRESTServer(testConfig(""), fakeQueue{}, stats.NewCollector(), store)

	rec, body := do(t, s, "/api/v1/events?type=CONFIGURATION&limit=1000", "")
	if rec.Code != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("events = %d %v", rec.Code, body)
	}
	if store.filters.GatewayID != "0102030405060708" || store.filters.Type == nil ||
		*store.filters.Type != models.EventTypeConfiguration || store.limit != maxEventLimit {
		t.Errorf("filters = %+v, limit = %d", store.filters, store.limit)
	}

	rec, _ = do(t, s, "/api/v1/events?since=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad since = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	store.err = errors.New("connection refused")
	rec, _ = do(t, s, "/api/v1/events", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("store failure = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestAuthentication(t *testing.T) {
	cfg := testConfig("secret")
	s := NewRESTServer(cfg, fakeQueue{capacity: 32}, stats.NewCollector(), nil)
	m := auth.NewJWTManager(&cfg.JWT)

	valid, err := m.GenerateToken("operator", "0102030405060708")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	otherGateway, _ := m.GenerateToken("operator", "aabbccddeeff0011")

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{name: "health is public", path: "/api/v1/health", want: http.StatusOK},
		{name: "missing token", path: "/api/v1/queue", want: http.StatusUnauthorized},
		{name: "invalid token", path: "/api/v1/queue", token: "garbage", want: http.StatusUnauthorized},
		{name: "other gateway", path: "/api/v1/queue", token: otherGateway, want: http.StatusForbidden},
		{name: "valid token", path: "/api/v1/queue", token: valid, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec, body := do(t, s, tt.path, tt.token); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%v)", rec.Code, tt.want, body)
			}
		})
	}
}
