// Package diagnosis summarizes infrastructure failures for the operator on
// duty. It is a best-effort side collaborator: it runs off the request path
// and can never block or alter a primary result.
package diagnosis

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"stocktrack/internal/port"
)

// Summary is a short operator-facing diagnosis of one failure.
type Summary struct {
	RootCause string
	Impact    string
	Action    string
}

type Service struct {
	logger zerolog.Logger
}

func NewService(logger zerolog.Logger) *Service {
	return &Service{logger: logger}
}

// Report classifies the failure and logs a summary asynchronously. The
// request context is deliberately not used: the caller may already have
// given up on the request.
func (s *Service) Report(op string, err error) {
	go func() {
		summary := s.Summarize(context.Background(), err)
		s.logger.Error().
			Str("operation", op).
			Str("root_cause", summary.RootCause).
			Str("impact", summary.Impact).
			Str("action", summary.Action).
			Err(err).
			Msg("infrastructure failure diagnosed")
	}()
}

// Summarize maps an error to a diagnosis. Unknown failures get a generic
// escalation summary rather than no answer.
func (s *Service) Summarize(_ context.Context, err error) Summary {
	switch {
	case err == nil:
		return Summary{RootCause: "none", Impact: "none", Action: "nothing to do"}

	case errors.Is(err, port.ErrIndeterminate):
		return Summary{
			RootCause: "write outcome unknown",
			Impact:    "a stock mutation may or may not have committed; quantities could differ from client expectations",
			Action:    "compare the stored quantity and revision against recent reservation logs before retrying",
		}

	case errors.Is(err, context.DeadlineExceeded):
		return Summary{
			RootCause: "storage call timed out",
			Impact:    "reservations against the affected keys are failing; no data corruption",
			Action:    "check storage latency and connection pool saturation",
		}

	case isConnectionFailure(err):
		return Summary{
			RootCause: "storage unreachable",
			Impact:    "all inventory operations are failing",
			Action:    "verify the database endpoint, credentials and network path",
		}

	default:
		return Summary{
			RootCause: "unclassified failure",
			Impact:    "the affected request failed; scope unknown",
			Action:    "escalate with the full error text: " + err.Error(),
		}
	}
}

func isConnectionFailure(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"connection refused", "no such host", "broken pipe", "connection reset"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
