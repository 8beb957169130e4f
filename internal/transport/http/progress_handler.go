package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"docquiz/internal/api"
	"docquiz/internal/app"
	"docquiz/internal/domain"
)

// ProgressHandler streams live session progress over a local websocket so a
// second terminal or a browser widget can watch a quiz run.
type ProgressHandler struct {
	controller *app.SessionController
	poll       time.Duration
	upgrader   websocket.Upgrader
}

func NewProgressHandler(controller *app.SessionController, poll time.Duration) *ProgressHandler {
	return &ProgressHandler{
		controller: controller,
		poll:       poll,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type progressPayload struct {
	SessionID         string   `json:"sessionId"`
	Status            string   `json:"status"`
	AnsweredQuestions int      `json:"answeredQuestions"`
	CorrectAnswers    int      `json:"correctAnswers"`
	TotalQuestions    int      `json:"totalQuestions"`
	ScorePercentage   *float64 `json:"scorePercentage,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and pushes a progress frame for every session
// snapshot until the session completes or the client goes away.
func (h *ProgressHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := h.controller.WatchSession(r.Context(), sessionID, h.poll)
	defer sub.Close()

	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if snap := sub.Get(); !snap.IsLoading {
		if err := h.writeSnapshot(conn, snap.Data, snap.Err); err != nil {
			return
		}
	}

	for {
		select {
		case <-readerGone:
			return
		case snap, ok := <-sub.Updates():
			if !ok {
				return
			}
			if err := h.writeSnapshot(conn, snap.Data, snap.Err); err != nil {
				return
			}
			if session, ok := snap.Data.(domain.QuizSession); ok && session.Completed() {
				return
			}
		}
	}
}

func (h *ProgressHandler) writeSnapshot(conn *websocket.Conn, data any, snapErr error) error {
	if snapErr != nil {
		classified := api.Classify(snapErr)
		return conn.WriteJSON(outboundMessage[errorPayload]{
			Type:    "error",
			Payload: errorPayload{Message: classified.Message},
		})
	}
	session, ok := data.(domain.QuizSession)
	if !ok {
		return nil
	}
	return conn.WriteJSON(outboundMessage[progressPayload]{
		Type: "progress",
		Payload: progressPayload{
			SessionID:         session.SessionID,
			Status:            session.Status,
			AnsweredQuestions: session.AnsweredQuestions,
			CorrectAnswers:    session.CorrectAnswers,
			TotalQuestions:    session.TotalQuestions,
			ScorePercentage:   session.ScorePercentage,
		},
	})
}
