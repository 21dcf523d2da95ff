// HTTP implementation of [UserCreator]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpointURL = "https://example.com/api/create_user"
	DefaultTimeout     = 10 * time.Second

	// maxBodyBytes caps how much of a response body is kept for messages.
	maxBodyBytes = 4 << 10
)

// APIError is a failed creation attempt with its classification.
type APIError struct {
	Kind       models.FailureKind
	StatusCode int    // zero for transport failures
	Body       string // truncated response body, if any
	Err        error  // transport error, if any
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: status %d", e.Kind, e.StatusCode)
	}
}

// Unwrap exposes [shared.ErrTransient] or [shared.ErrPermanentFailure] along with the transport error.
func (e *APIError) Unwrap() []error {
	class := shared.ErrPermanentFailure
	if e.Kind.Transient() {
		class = shared.ErrTransient
	}
	if e.Err != nil {
		return []error{class, e.Err}
	}
	return []error{class}
}

// ClassifyStatus maps a non-2xx HTTP status code to a [models.FailureKind].
func ClassifyStatus(code int) models.FailureKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return models.KindUnauthorized
	case code >= 400 && code < 500:
		return models.KindBadRequest
	case code >= 500 && code < 600:
		return models.KindServerError
	default:
		return models.KindBadRequest
	}
}

// ClassifyTransport maps an error returned by [http.Client.Do] to a [models.FailureKind].
func ClassifyTransport(err error) models.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return models.KindTimeout
	}
	return models.KindNetworkError
}

// UserServiceOpts configures [NewUserService].
type UserServiceOpts struct {
	EndpointURL       string
	Token             string
	Timeout           time.Duration // per attempt, defaults to [DefaultTimeout]
	RequestsPerSecond float64       // zero disables pacing
	Client            *http.Client  // its Transport is wrapped with the bearer token source
}

// UserService posts user records to the account creation endpoint.
type UserService struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewUserService validates opts and builds a client that authenticates every request with a bearer token.
func NewUserService(opts UserServiceOpts) (*UserService, error) {
	if opts.Token == "" {
		return nil, shared.ErrMissingToken
	}
	if opts.EndpointURL == "" {
		opts.EndpointURL = DefaultEndpointURL
	}
	u, err := url.Parse(opts.EndpointURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("%w: endpoint_url %q must be an absolute URL", shared.ErrInvalidConfig, opts.EndpointURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	var base http.RoundTripper = http.DefaultTransport
	if opts.Client != nil && opts.Client.Transport != nil {
		base = opts.Client.Transport
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"}),
			Base:   base,
		},
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &UserService{endpoint: u.String(), httpClient: client, limiter: limiter}, nil
}

// Endpoint returns the URL requests are sent to.
func (s *UserService) Endpoint() string {
	return s.endpoint
}

// CreateUser performs one POST of record.
//
// Any 2xx is success whatever the body holds. Cancellation of ctx is returned as the context error, unclassified.
func (s *UserService) CreateUser(ctx context.Context, record models.UserRecord, requestID string) (*CreateResult, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID == "" {
		requestID = shared.GenerateID()
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, &APIError{Kind: ClassifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if readErr != nil {
			body = nil
		}
		return &CreateResult{StatusCode: resp.StatusCode, Body: body}, nil
	}

	apiErr := &APIError{Kind: ClassifyStatus(resp.StatusCode), StatusCode: resp.StatusCode}
	if readErr == nil {
		apiErr.Body = string(bytes.TrimSpace(body))
	}
	return nil, apiErr
}

var _ UserCreator = (*UserService)(nil)
