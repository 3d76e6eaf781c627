package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/duet/internal/ledger"
	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

type fakeSession struct {
	mu      sync.Mutex
	ledger  *ledger.Ledger
	queries [][2]string
	err     error
}

func newFakeSession() *fakeSession {
	return &fakeSession{ledger: ledger.New()}
}

func (f *fakeSession) Snapshot() ledger.Snapshot { return f.ledger.Snapshot() }
func (f *fakeSession) Thinking() bool            { return false }
func (f *fakeSession) Turn() models.Turn         { return f.ledger.CurrentTurn() }

func (f *fakeSession) ContributeQuery(_ context.Context, artist, title string) (models.LedgerEntry, error) {
	f.mu.Lock()
	f.queries = append(f.queries, [2]string{artist, title})
	f.mu.Unlock()
	if f.err != nil {
		return models.LedgerEntry{}, f.err
	}
	return f.ledger.Enqueue(models.Item{ID: title, Title: title, Artist: artist}, models.Human, "", models.UpNext), nil
}

func (f *fakeSession) SkipTo(_ context.Context, entryID string) error {
	if err := f.ledger.RemoveBefore(entryID); err != nil {
		return err
	}
	f.ledger.PromoteNext()
	return nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMux(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewMux()
		r.Use(mark("first"), mark("second"))
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			order = append(order, "handler")
		}))

		do(t, r, http.MethodGet, "/ping", "")

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("method mismatch", func(t *testing.T) {
		r := NewMux()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		if rec := do(t, r, http.MethodPost, "/ping", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("index lists routes", func(t *testing.T) {
		rec := do(t, NewControlRouter(newFakeSession(), nil), http.MethodGet, "/", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var body struct {
			Routes []string `json:"routes"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		want := []string{"GET /healthz", "GET /session", "POST /session/contribute", "POST /session/skip", "GET /{$}"}
		if strings.Join(body.Routes, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, body.Routes)
		}
	})

	t.Run("recover", func(t *testing.T) {
		r := NewMux()
		r.Use(Recover(shared.DiscardLogger()))
		r.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		if rec := do(t, r, http.MethodGet, "/boom", ""); rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestSessionHandler(t *testing.T) {
	t.Run("state", func(t *testing.T) {
		fake := newFakeSession()
		fake.ledger.Enqueue(models.Item{ID: "a", Title: "Angel", Artist: "Massive Attack"}, models.Human, "", models.UpNext)
		fake.ledger.PromoteNext()
		fake.ledger.Enqueue(models.Item{ID: "b", Title: "Roads", Artist: "Portishead"}, models.Automated, "why", models.UpNext)

		rec := do(t, NewControlRouter(fake, nil), http.MethodGet, "/session", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var state SessionState
		if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if state.Turn != "automated" || state.Current == nil || state.Current.Item.ID != "a" {
			t.Errorf("unexpected state: %+v", state)
		}
		if len(state.Queue) != 1 || len(state.History) != 1 {
			t.Errorf("unexpected sizes: %d queue, %d history", len(state.Queue), len(state.History))
		}
	})

	t.Run("contribute", func(t *testing.T) {
		tests := []struct {
			name       string
			body       string
			err        error
			wantStatus int
			wantQuery  [2]string
		}{
			{name: "fields", body: `{"artist":"Massive Attack","title":"Angel"}`, wantStatus: http.StatusCreated, wantQuery: [2]string{"Massive Attack", "Angel"}},
			{name: "query", body: `{"query":"Portishead - Roads"}`, wantStatus: http.StatusCreated, wantQuery: [2]string{"Portishead", "Roads"}},
			{name: "bad query", body: `{"query":"Roads"}`, wantStatus: http.StatusBadRequest},
			{name: "missing title", body: `{"artist":"Portishead"}`, wantStatus: http.StatusBadRequest},
			{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
			{name: "no match", body: `{"query":"Nobody - Nothing"}`, err: shared.ErrNoMatch, wantStatus: http.StatusNotFound, wantQuery: [2]string{"Nobody", "Nothing"}},
			{name: "catalog down", body: `{"query":"Nobody - Nothing"}`, err: shared.ErrServiceUnavailable, wantStatus: http.StatusBadGateway, wantQuery: [2]string{"Nobody", "Nothing"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				fake := newFakeSession()
				fake.err = tt.err

				rec := do(t, NewControlRouter(fake, nil), http.MethodPost, "/session/contribute", tt.body)
				if rec.Code != tt.wantStatus {
					t.Fatalf("expected %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
				}

				if tt.wantQuery == ([2]string{}) {
					if len(fake.queries) != 0 {
						t.Errorf("expected no session call, got %v", fake.queries)
					}
					return
				}
				if len(fake.queries) != 1 || fake.queries[0] != tt.wantQuery {
					t.Errorf("unexpected queries %v", fake.queries)
				}
			})
		}
	})

	t.Run("skip", func(t *testing.T) {
		fake := newFakeSession()
		fake.ledger.Enqueue(models.Item{ID: "a"}, models.Human, "", models.UpNext)
		target := fake.ledger.Enqueue(models.Item{ID: "b"}, models.Automated, "", models.Backup)
		router := NewControlRouter(fake, nil)

		rec := do(t, router, http.MethodPost, "/session/skip", `{"entry_id":"`+target.ID+`"}`)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if cur := fake.ledger.Current(); cur == nil || cur.ID != target.ID {
			t.Errorf("expected %s playing, got %+v", target.ID, cur)
		}

		if rec := do(t, router, http.MethodPost, "/session/skip", `{"entry_id":"missing"}`); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if rec := do(t, router, http.MethodPost, "/session/skip", `{}`); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("healthz", func(t *testing.T) {
		if rec := do(t, NewControlRouter(newFakeSession(), nil), http.MethodGet, "/healthz", ""); rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})
}

func TestServeListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeListener(ctx, ln, NewControlRouter(newFakeSession(), nil), shared.DiscardLogger())
	}()

	resp, err := http.Post("http://"+ln.Addr().String()+"/session/contribute", "application/json",
		bytes.NewBufferString(`{"query":"Massive Attack - Angel"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
