package teachtiles_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	To "github.com/maroda/teachtiles/obvy"
	Tp "github.com/maroda/teachtiles/plugin"
	Ts "github.com/maroda/teachtiles/server"
	Tt "github.com/maroda/teachtiles/types"
)

func TestBridge_SetupMux(t *testing.T) {
	b, _, _ := makeTestBridge(t, true)
	b.Stats = To.NewStatsInternal()
	b.Feed(context.Background(), []byte{0x90, 60, 100}, 10)
	b.Step(context.Background(), 500)

	mux := b.SetupMux()

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"metrics", "/metrics", http.StatusOK},
		{"version", "/api/version", http.StatusOK},
		{"status", "/api/status", http.StatusOK},
		{"no peer endpoint for other transports", "/peer", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assertStatus(t, rec.Code, tt.status)
		})
	}

	t.Run("Status reports the held note", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		var got Ts.BridgeStatus
		assertError(t, json.NewDecoder(rec.Body).Decode(&got), nil)
		if !got.Playing || !got.SignalPresent {
			t.Errorf("status = %+v", got)
		}
		assertString(t, got.Name, "C4")
		assertString(t, got.Transport, "fake")
	})
}

func TestBridge_StatusWhileDispatching(t *testing.T) {
	b, _, _ := makeTestBridge(t, true)
	mux := b.SetupMux()

	const notes = 100
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		for i := uint32(0); i < notes; i++ {
			b.Feed(ctx, []byte{0x90, 60, 100}, i*10+1)
			b.Feed(ctx, []byte{0x80, 60, 0}, i*10+5)
		}
	}()

	for i := 0; i < 200; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assertStatus(t, rec.Code, http.StatusOK)
	}
	<-done

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var got Ts.BridgeStatus
	assertError(t, json.NewDecoder(rec.Body).Decode(&got), nil)
	assertInt(t, int(got.Sent), notes)
	assertInt(t, int(got.Dropped), 0)
}

func TestBridge_SetupMuxPeer(t *testing.T) {
	hub := Tp.NewPeerHub()
	defer hub.Close()
	b := Ts.NewBridge(nil, Ts.NewTracker(0), Ts.NewDispatcher(hub, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/peer", nil)
	rec := httptest.NewRecorder()
	b.SetupMux().ServeHTTP(rec, req)

	// Plain GET without upgrade headers is refused by the websocket upgrader
	assertStatus(t, rec.Code, http.StatusBadRequest)
}

func TestFetchBridgeStatus(t *testing.T) {
	b, _, _ := makeTestBridge(t, true)
	b.Feed(context.Background(), []byte{0x90, 64, 90}, 10)
	b.Step(context.Background(), 500)

	srv := httptest.NewServer(b.SetupMux())
	defer srv.Close()

	t.Run("Reads a running bridge", func(t *testing.T) {
		got, err := Ts.FetchBridgeStatus(srv.URL + "/")
		assertError(t, err, nil)
		assertInt(t, got.Note, 64)
		assertInt(t, got.Velocity, 90)
	})

	t.Run("Non-200 is an error", func(t *testing.T) {
		notFound := httptest.NewServer(http.NotFoundHandler())
		defer notFound.Close()
		_, err := Ts.FetchBridgeStatus(notFound.URL)
		assertGotError(t, err)
	})

	t.Run("Unreachable bridge is an error", func(t *testing.T) {
		_, err := Ts.FetchBridgeStatus("http://127.0.0.1:1")
		assertGotError(t, err)
	})
}

func TestNotesHandler(t *testing.T) {
	fj := &fakeJournal{}
	now := time.Now()
	fj.WriteNote(&Tt.NoteEvent{Note: 60, Velocity: 100, DurationMS: 500}, now.Add(-2*time.Hour))
	fj.WriteNote(&Tt.NoteEvent{Note: 61, Velocity: 80, DurationMS: 250}, now.Add(-time.Minute))

	get := func(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	t.Run("Default window is the last hour", func(t *testing.T) {
		rec := get(Ts.NotesHandler(fj), "/api/notes")
		assertStatus(t, rec.Code, http.StatusOK)

		var got []Ts.NoteRecord
		assertError(t, json.NewDecoder(rec.Body).Decode(&got), nil)
		assertInt(t, len(got), 1)
		assertString(t, got[0].Name, "C#4")
		assertInt(t, int(got[0].DurationMS), 250)
	})

	t.Run("Since widens the window", func(t *testing.T) {
		rec := get(Ts.NotesHandler(fj), "/api/notes?since=3h")
		var got []Ts.NoteRecord
		assertError(t, json.NewDecoder(rec.Body).Decode(&got), nil)
		assertInt(t, len(got), 2)
	})

	t.Run("Bad since is refused", func(t *testing.T) {
		rec := get(Ts.NotesHandler(fj), "/api/notes?since=yesterday")
		assertStatus(t, rec.Code, http.StatusBadRequest)
	})

	t.Run("No journal is not found", func(t *testing.T) {
		rec := get(Ts.NotesHandler(nil), "/api/notes")
		assertStatus(t, rec.Code, http.StatusNotFound)
	})

	t.Run("Query failure is a server error", func(t *testing.T) {
		rec := get(Ts.NotesHandler(&fakeJournal{err: errors.New("boom")}), "/api/notes")
		assertStatus(t, rec.Code, http.StatusInternalServerError)
	})
}
