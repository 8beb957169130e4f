package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/imroc/req/v3"

	"docquiz/internal/domain"
)

// Client talks JSON-over-HTTP to the tutoring backend. It deliberately does
// not retry: the caller decides whether a failed call is worth repeating.
type Client struct {
	http          *req.Client
	onAuthExpired func()
	authOnce      sync.Once
}

// Option customizes a Client.
type Option func(*Client)

// WithAuthExpiredHook registers a hook fired exactly once when the backend
// rejects the bearer token. The CLI uses it to bail out to re-authentication
// instead of showing the 401 inline on every action.
func WithAuthExpiredHook(hook func()) Option {
	return func(c *Client) { c.onAuthExpired = hook }
}

// WithTimeout bounds each request. Zero leaves context as the only deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		http: req.C().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetCommonBearerAuthToken(token),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetDocument fetches ingestion state for one document.
func (c *Client) GetDocument(ctx context.Context, documentID string) (domain.Document, error) {
	var doc domain.Document
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&doc).
		Get("/documents/" + documentID)
	if err != nil {
		return domain.Document{}, &NetworkError{Err: err}
	}
	if resp.IsErrorState() {
		return domain.Document{}, c.errorFrom(resp)
	}
	return doc, nil
}

// CreateSession posts a session config and returns the created session with
// its first question.
func (c *Client) CreateSession(ctx context.Context, cfg domain.SessionConfig) (domain.CreateSessionResult, error) {
	var result domain.CreateSessionResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(cfg).
		SetSuccessResult(&result).
		Post("/quiz/sessions/")
	if err != nil {
		return domain.CreateSessionResult{}, &NetworkError{Err: err}
	}
	if resp.IsErrorState() {
		return domain.CreateSessionResult{}, c.errorFrom(resp)
	}
	return result, nil
}

// GetSession fetches the full session status.
func (c *Client) GetSession(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	var session domain.QuizSession
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&session).
		Get("/quiz/sessions/" + sessionID)
	if err != nil {
		return domain.QuizSession{}, &NetworkError{Err: err}
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.QuizSession{}, fmt.Errorf("%s: %w", sessionID, domain.ErrSessionNotFound)
	}
	if resp.IsErrorState() {
		return domain.QuizSession{}, c.errorFrom(resp)
	}
	return session, nil
}

// GetCurrentQuestion fetches the next unanswered question. A 404 or 410 is
// the terminal "no more questions" value and comes back as (nil, nil), never
// as an error.
func (c *Client) GetCurrentQuestion(ctx context.Context, sessionID string) (*domain.CurrentQuestion, error) {
	var question domain.CurrentQuestion
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&question).
		Get("/quiz/sessions/" + sessionID + "/current")
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, nil
	}
	if resp.IsErrorState() {
		return nil, c.errorFrom(resp)
	}
	return &question, nil
}

type answerBody struct {
	Answer      string `json:"answer"`
	InputMethod string `json:"input_method"`
}

// SubmitAnswer posts one normalized answer for one question.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID, answer, inputMethod string) (domain.AnswerResponse, error) {
	var result domain.AnswerResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("question_id", questionID).
		SetBody(answerBody{Answer: answer, InputMethod: inputMethod}).
		SetSuccessResult(&result).
		Post("/quiz/sessions/" + sessionID + "/answer")
	if err != nil {
		return domain.AnswerResponse{}, &NetworkError{Err: err}
	}
	if resp.IsErrorState() {
		return domain.AnswerResponse{}, c.errorFrom(resp)
	}
	return result, nil
}

// errorFrom converts a non-2xx response into a StatusError and fires the
// auth-expired hook (once) on 401.
func (c *Client) errorFrom(resp *req.Response) error {
	body, _ := resp.ToBytes()
	statusErr := statusError(resp.StatusCode, body)
	if statusErr.Status == http.StatusUnauthorized && c.onAuthExpired != nil {
		c.authOnce.Do(c.onAuthExpired)
	}
	return statusErr
}
