package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"docquiz/internal/api"
	"docquiz/internal/app"
	"docquiz/internal/cache"
	"docquiz/internal/domain"
)

func TestProgressFeedStreamsUntilCompletion(t *testing.T) {
	var answered atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := answered.Add(1) - 1
		if n > 2 {
			n = 2
		}
		status := domain.SessionStatusActive
		if n >= 2 {
			status = domain.SessionStatusCompleted
		}
		json.NewEncoder(w).Encode(domain.QuizSession{
			SessionID:         "s1",
			Status:            status,
			TotalQuestions:    2,
			AnsweredQuestions: int(n),
			CorrectAnswers:    int(n),
		})
	}))
	defer backend.Close()

	controller := app.NewSessionController(api.NewClient(backend.URL, "token"), cache.New())
	handler := NewProgressHandler(controller, 5*time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=s1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var last struct {
		Type    string `json:"type"`
		Payload struct {
			SessionID         string `json:"sessionId"`
			Status            string `json:"status"`
			AnsweredQuestions int    `json:"answeredQuestions"`
		} `json:"payload"`
	}
	prev := -1
	for {
		if err := conn.ReadJSON(&last); err != nil {
			// Server closes the socket after the completed frame.
			break
		}
		if last.Type != "progress" {
			t.Fatalf("unexpected frame type %q", last.Type)
		}
		if last.Payload.AnsweredQuestions < prev {
			t.Fatalf("progress went backwards: %d -> %d", prev, last.Payload.AnsweredQuestions)
		}
		prev = last.Payload.AnsweredQuestions
		if last.Payload.Status == domain.SessionStatusCompleted {
			break
		}
	}

	if last.Payload.Status != domain.SessionStatusCompleted {
		t.Fatalf("expected a completed frame, last %+v", last.Payload)
	}
	if last.Payload.SessionID != "s1" {
		t.Fatalf("unexpected session id %q", last.Payload.SessionID)
	}
}

func TestProgressFeedRequiresSessionID(t *testing.T) {
	controller := app.NewSessionController(api.NewClient("http://localhost:0", "token"), cache.New())
	handler := NewProgressHandler(controller, time.Second)

	recorder := httptest.NewRecorder()
	handler.ServeWS(recorder, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}
