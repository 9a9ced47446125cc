package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestAdminEndpoints(t *testing.T) {
	m := &Metrics{Joins: 2}
	store := &RosterStore{}
	store.Publish(Roster{Tick: 3, It: 1, Sessions: []SessionInfo{{ID: 1, Addr: "10.0.0.1:5001", It: true}}})
	h := AdminHandler(m, store, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var metrics map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&metrics); err != nil {
		t.Fatal(err)
	}
	if metrics["joins"] != float64(2) {
		t.Fatalf("joins = %v", metrics["joins"])
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	var r Roster
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
		t.Fatal(err)
	}
	if r.Tick != 3 || len(r.Sessions) != 1 || !r.Sessions[0].It {
		t.Fatalf("sessions = %+v", r)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /sessions = %d", rec.Code)
	}
}

func TestObserverReceivesRoster(t *testing.T) {
	hub := NewObserverHub()
	defer hub.Close()
	srv := httptest.NewServer(AdminHandler(&Metrics{}, &RosterStore{}, hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/observe"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("observer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(Roster{Tick: 11, It: 2})
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got struct {
		Type string `json:"type"`
		Tick int64  `json:"tick"`
		It   int    `json:"it"`
	}
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "roster" || got.Tick != 11 || got.It != 2 {
		t.Fatalf("message = %s", msg)
	}
}

func TestRosterStoreCopies(t *testing.T) {
	store := &RosterStore{}
	store.Publish(Roster{Sessions: []SessionInfo{{ID: 1}}})
	r := store.Latest()
	r.Sessions[0].ID = 9
	if store.Latest().Sessions[0].ID != 1 {
		t.Fatal("Latest shares its backing slice")
	}
}
