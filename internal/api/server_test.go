package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tazhate/agendasync/config"
	"github.com/tazhate/agendasync/internal/clients/webcal"
	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/service"
	"github.com/tazhate/agendasync/internal/storage"
)

const standupFeed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:abc\r\nDTSTAMP:20240101T000000Z\r\nSUMMARY:Standup\r\n" +
	"DTSTART:20240101T090000\r\nDTEND:20240101T091500\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

type testEnv struct {
	api   *httptest.Server
	feeds *httptest.Server
	store *storage.Storage
	alice *domain.User
	bob   *domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/standup.ics":
			w.Header().Set("Content-Type", "text/calendar")
			io.WriteString(w, standupFeed)
		case "/login.ics":
			io.WriteString(w, "<!DOCTYPE html><html>please log in</html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(feeds.Close)

	ctx := context.Background()
	alice := &domain.User{Username: "alice", PasswordHash: "x"}
	bob := &domain.User{Username: "bob", PasswordHash: "x"}
	for _, u := range []*domain.User{alice, bob} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{APIUsername: "ops", APIPassword: "secret"}
	fetcher := service.NewFeedFetcher(webcal.NewClient(0), nil)
	srv := New(cfg, service.NewSyncService(store, fetcher, 1), service.NewAgendaService(store))

	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &testEnv{api: api, feeds: feeds, store: store, alice: alice, bob: bob}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, e.api.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.SetBasicAuth("ops", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out APIResponse
	if resp.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode, out
}

func (e *testEnv) addSource(t *testing.T, userID int64, path string) int64 {
	t.Helper()
	status, resp := e.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/sources", userID),
		fmt.Sprintf(`{"url":%q,"label":"Work"}`, e.feeds.URL+path))
	if status != http.StatusCreated {
		t.Fatalf("add source: status %d: %+v", status, resp)
	}
	data := resp.Data.(map[string]interface{})
	return int64(data["source"].(map[string]interface{})["id"].(float64))
}

func TestHealthNeedsNoAuth(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.api.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(fmt.Sprintf("%s/api/users/%d/agenda", e.api.URL, e.alice.ID))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAddSyncAndAgenda(t *testing.T) {
	e := newTestEnv(t)
	sourceID := e.addSource(t, e.alice.ID, "/standup.ics")

	status, resp := e.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/sources/%d/sync", e.alice.ID, sourceID), "")
	if status != http.StatusOK {
		t.Fatalf("sync: status %d: %+v", status, resp)
	}
	if got := resp.Data.(map[string]interface{})["processed"].(float64); got != 1 {
		t.Errorf("processed = %v, want 1", got)
	}

	status, resp = e.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/agenda", e.alice.ID), "")
	if status != http.StatusOK {
		t.Fatalf("agenda: status %d", status)
	}
	blocks := resp.Data.([]interface{})
	if len(blocks) != 1 {
		t.Fatalf("blocks = %v", blocks)
	}
	block := blocks[0].(map[string]interface{})
	if block["title"] != "Standup (mine)" || block["start"] != "2024-01-01T09:00:00Z" || block["color"] != service.LabelColor("Work") {
		t.Errorf("block = %v", block)
	}
}

func TestErrorStatuses(t *testing.T) {
	e := newTestEnv(t)
	good := e.addSource(t, e.alice.ID, "/standup.ics")
	html := e.addSource(t, e.alice.ID, "/login.ics")
	missing := e.addSource(t, e.alice.ID, "/gone.ics")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"parse error", http.MethodPost, fmt.Sprintf("/api/users/%d/sources/%d/sync", e.alice.ID, html), "", http.StatusUnprocessableEntity},
		{"http error", http.MethodPost, fmt.Sprintf("/api/users/%d/sources/%d/sync", e.alice.ID, missing), "", http.StatusBadGateway},
		{"foreign source", http.MethodPost, fmt.Sprintf("/api/users/%d/sources/%d/sync", e.bob.ID, good), "", http.StatusNotFound},
		{"not friends", http.MethodGet, fmt.Sprintf("/api/users/%d/friends/%d/agenda", e.bob.ID, e.alice.ID), "", http.StatusForbidden},
		{"bad url", http.MethodPost, fmt.Sprintf("/api/users/%d/sources", e.alice.ID), `{"url":"ftp://x/cal.ics"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, fmt.Sprintf("/api/users/%d/sources", e.alice.ID), `{`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/users/abc/agenda", "", http.StatusBadRequest},
		{"delete foreign", http.MethodDelete, fmt.Sprintf("/api/users/%d/sources/%d", e.bob.ID, good), "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := e.do(t, tt.method, tt.path, tt.body)
			if status != tt.want {
				t.Errorf("status = %d, want %d (%+v)", status, tt.want, resp)
			}
			if resp.Success {
				t.Error("success = true on error")
			}
		})
	}
}

func TestSyncUserIsSilent(t *testing.T) {
	e := newTestEnv(t)
	e.addSource(t, e.alice.ID, "/standup.ics")
	e.addSource(t, e.alice.ID, "/gone.ics")

	status, resp := e.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/sync", e.alice.ID), "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	data := resp.Data.(map[string]interface{})
	if data["synced"].(float64) != 1 || data["failed"].(float64) != 1 {
		t.Errorf("data = %v", data)
	}
}

func TestDeleteSource(t *testing.T) {
	e := newTestEnv(t)
	id := e.addSource(t, e.alice.ID, "/standup.ics")

	status, _ := e.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d/sources/%d", e.alice.ID, id), "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if n, _ := e.store.CountEvents(context.Background(), id); n != 0 {
		t.Errorf("events left = %d", n)
	}
}

func TestAPIDisabledWithoutCredentials(t *testing.T) {
	srv := New(&config.Config{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/1/agenda", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
