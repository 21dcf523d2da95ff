// package services defines interface UserCreator for the remote account API
package services

import (
	"context"

	"github.com/desertthunder/userimport/internal/models"
)

// UserCreator creates one account per call against a remote API.
//
// Implementations make exactly one request per call and never retry on their own.
type UserCreator interface {
	// CreateUser sends record to the API.
	// requestID is forwarded as X-Request-ID so the server can correlate retries of the same record.
	// A non-nil error is an *[APIError] when the attempt reached a classification.
	CreateUser(ctx context.Context, record models.UserRecord, requestID string) (*CreateResult, error)
}

// CreateResult is the response of a successful (2xx) creation call.
type CreateResult struct {
	StatusCode int
	Body       []byte
}
