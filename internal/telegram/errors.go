package telegram

import (
	"fmt"
	"strings"

	"github.com/Rooyande/eclis-ninja/pkg/platform/sentinel"
)

// APIError is a non-OK Bot API response.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api: %d %s", e.Code, e.Description)
}

// Unwrap maps the Bot API status onto the sentinel taxonomy so callers
// can classify with errors.Is:
//   - 403 means the bot lacks rights: permission denied.
//   - 400 with a "not found" description means the chat or user no
//     longer resolves: not found.
//   - 429 and 5xx are retryable: unavailable.
//
// Other 4xx codes unwrap to nothing and surface as-is.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == 403:
		return sentinel.ErrPermissionDenied
	case e.Code == 400 && strings.Contains(strings.ToLower(e.Description), "not found"):
		return sentinel.ErrNotFound
	case e.Code == 429 || e.Code >= 500:
		return sentinel.ErrUnavailable
	}
	return nil
}
