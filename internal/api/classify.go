package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"docquiz/internal/domain"
)

// Kind buckets every failure into the shapes the UI cares about.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNetwork     Kind = "network"
	KindAuthExpired Kind = "auth_expired"
	KindServer      Kind = "server"
)

// fallbackMessage is used when nothing about the value can be rendered.
const fallbackMessage = "something went wrong"

// Classified is the canonical form of an arbitrary failure value.
type Classified struct {
	Kind    Kind
	Message string
}

// Classify coerces heterogeneous failure shapes into one canonical message
// and kind. It accepts anything because failures arrive as errors, strings,
// or decoded JSON blobs depending on where they surfaced.
func Classify(v any) Classified {
	switch e := v.(type) {
	case nil:
		return Classified{Kind: KindServer, Message: fallbackMessage}
	case error:
		return classifyError(e)
	case string:
		if e == "" {
			return Classified{Kind: KindServer, Message: fallbackMessage}
		}
		return Classified{Kind: KindServer, Message: e}
	case map[string]any:
		for _, field := range [...]string{"detail", "message", "error"} {
			if s, ok := e[field].(string); ok && s != "" {
				return Classified{Kind: KindServer, Message: s}
			}
		}
	}
	if raw, err := json.Marshal(v); err == nil {
		return Classified{Kind: KindServer, Message: string(raw)}
	}
	return Classified{Kind: KindServer, Message: fallbackMessage}
}

func classifyError(err error) Classified {
	var status *StatusError
	if errors.As(err, &status) {
		if status.Status == http.StatusUnauthorized {
			return Classified{Kind: KindAuthExpired, Message: status.Error()}
		}
		return Classified{Kind: KindServer, Message: status.Error()}
	}
	var network *NetworkError
	if errors.As(err, &network) {
		return Classified{Kind: KindNetwork, Message: network.Error()}
	}
	switch {
	case errors.Is(err, domain.ErrEmptyAnswer),
		errors.Is(err, domain.ErrSubmissionInFlight),
		errors.Is(err, domain.ErrInvalidConfig):
		return Classified{Kind: KindValidation, Message: err.Error()}
	}
	return Classified{Kind: KindServer, Message: err.Error()}
}
