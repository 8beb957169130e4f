package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"docquiz/internal/cache"
	"docquiz/internal/domain"
)

// Backend is the remote quiz service as the controller sees it (implemented
// by api.Client, faked in tests).
type Backend interface {
	GetDocument(ctx context.Context, documentID string) (domain.Document, error)
	CreateSession(ctx context.Context, cfg domain.SessionConfig) (domain.CreateSessionResult, error)
	GetSession(ctx context.Context, sessionID string) (domain.QuizSession, error)
	GetCurrentQuestion(ctx context.Context, sessionID string) (*domain.CurrentQuestion, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID, answer, inputMethod string) (domain.AnswerResponse, error)
}

var validate = validator.New()

// SessionController drives the quiz session lifecycle on top of the cache:
// reads go through it, mutations invalidate it, and at most one answer
// submission per session is in flight at any time. The guard lives here and
// not in the UI because a timer expiry can submit concurrently with a manual
// action.
type SessionController struct {
	backend Backend
	cache   *cache.Cache

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewSessionController(backend Backend, store *cache.Cache) *SessionController {
	return &SessionController{
		backend:  backend,
		cache:    store,
		inflight: make(map[string]struct{}),
	}
}

func sessionKey(sessionID string) string { return "session:" + sessionID }
func currentKey(sessionID string) string { return "current:" + sessionID }
func documentKey(documentID string) string { return "document:" + documentID }

// CreateSession validates the config locally, posts it, and seeds the cache
// from the response so the first reads after creation are instant.
func (c *SessionController) CreateSession(ctx context.Context, cfg domain.SessionConfig) (domain.CreateSessionResult, error) {
	cfg.ApplyDefaults()
	if err := validate.Struct(cfg); err != nil {
		return domain.CreateSessionResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	result, err := c.backend.CreateSession(ctx, cfg)
	if err != nil {
		return domain.CreateSessionResult{}, err
	}

	if result.TotalQuestions != cfg.NumQuestions {
		// The generator can come up short; surface it instead of resolving it.
		log.Printf("quiz: requested %d questions, backend produced %d (session %s)",
			cfg.NumQuestions, result.TotalQuestions, result.SessionID)
	}

	c.cache.Seed(sessionKey(result.SessionID), domain.QuizSession{
		SessionID:      result.SessionID,
		DocumentID:     result.DocumentID,
		Status:         domain.SessionStatusActive,
		Difficulty:     result.Difficulty,
		TotalQuestions: result.TotalQuestions,
	})
	if result.FirstQuestion != nil {
		c.cache.Seed(currentKey(result.SessionID), result.FirstQuestion)
	}
	return result, nil
}

// GetSession reads the session through the cache. On a revalidation failure
// the last good session is returned alongside the error.
func (c *SessionController) GetSession(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	data, err := c.cache.Load(ctx, sessionKey(sessionID), func(ctx context.Context) (any, error) {
		return c.backend.GetSession(ctx, sessionID)
	})
	session, _ := data.(domain.QuizSession)
	return session, err
}

// GetCurrentQuestion returns the next unanswered question, or nil once the
// session has no more questions. The terminal nil is a value, not an error.
func (c *SessionController) GetCurrentQuestion(ctx context.Context, sessionID string) (*domain.CurrentQuestion, error) {
	data, err := c.cache.Load(ctx, currentKey(sessionID), func(ctx context.Context) (any, error) {
		return c.backend.GetCurrentQuestion(ctx, sessionID)
	})
	question, _ := data.(*domain.CurrentQuestion)
	return question, err
}

// GetDocument reads ingestion state through the cache.
func (c *SessionController) GetDocument(ctx context.Context, documentID string) (domain.Document, error) {
	data, err := c.cache.Load(ctx, documentKey(documentID), func(ctx context.Context) (any, error) {
		return c.backend.GetDocument(ctx, documentID)
	})
	doc, _ := data.(domain.Document)
	return doc, err
}

// SubmitAnswer normalizes and posts one answer. An empty normalized answer
// and a concurrent submission for the same session are both rejected locally
// without touching the network. On success the session and current-question
// keys are invalidated so the next reads observe the new state.
func (c *SessionController) SubmitAnswer(ctx context.Context, sessionID, questionID string, rawAnswer any, inputMethod string) (domain.AnswerResponse, error) {
	answer := domain.NormalizeAnswer(rawAnswer)
	if answer == "" {
		return domain.AnswerResponse{}, domain.ErrEmptyAnswer
	}
	if inputMethod == "" {
		inputMethod = domain.InputMethodTyped
	}

	c.mu.Lock()
	if _, busy := c.inflight[sessionID]; busy {
		c.mu.Unlock()
		return domain.AnswerResponse{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrSubmissionInFlight)
	}
	c.inflight[sessionID] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, sessionID)
		c.mu.Unlock()
	}()

	resp, err := c.backend.SubmitAnswer(ctx, sessionID, questionID, answer, inputMethod)
	if err != nil {
		return domain.AnswerResponse{}, err
	}

	c.cache.Invalidate(sessionKey(sessionID))
	c.cache.Invalidate(currentKey(sessionID))
	return resp, nil
}

// WatchSession subscribes to the session and polls while it is active, so
// observers (status line, progress feed) see mutations land.
func (c *SessionController) WatchSession(ctx context.Context, sessionID string, pollInterval time.Duration) *cache.Subscription {
	return c.cache.Subscribe(ctx, sessionKey(sessionID), func(ctx context.Context) (any, error) {
		return c.backend.GetSession(ctx, sessionID)
	}, cache.Options{
		PollInterval: pollInterval,
		PollWhile: func(last any) bool {
			session, ok := last.(domain.QuizSession)
			return !ok || !session.Completed()
		},
	})
}

// WatchDocument subscribes to a document and polls until ingestion reaches a
// terminal status.
func (c *SessionController) WatchDocument(ctx context.Context, documentID string, pollInterval time.Duration) *cache.Subscription {
	return c.cache.Subscribe(ctx, documentKey(documentID), func(ctx context.Context) (any, error) {
		return c.backend.GetDocument(ctx, documentID)
	}, cache.Options{
		PollInterval: pollInterval,
		PollWhile: func(last any) bool {
			doc, ok := last.(domain.Document)
			return !ok || !doc.Terminal()
		},
	})
}
