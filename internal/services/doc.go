// Package services defines the [UserCreator] interface for the remote account API and implements it over HTTP.
//
// # UserService
//
// [UserService] sends one JSON POST per call with:
//   - Authorization: Bearer <token>, attached by an [oauth2.Transport] over a static token source
//   - Content-Type: application/json
//   - X-Request-ID, supplied by the caller so retries of one record share an ID
//
// Each call is bounded by a fixed timeout. An optional [rate.Limiter] paces calls when requests_per_second is set.
// The service never retries; that is the job of the tasks package.
//
// # Classification
//
// Failures are returned as *[APIError] with a [models.FailureKind]:
//   - 401, 403 : Unauthorized
//   - other 4xx : BadRequest
//   - 5xx : ServerError
//   - client timeout or deadline : Timeout
//   - any other transport failure : NetworkError
//   - any other non-2xx status : BadRequest
//
// [APIError] unwraps to [shared.ErrTransient] for Timeout, ServerError and NetworkError and to [shared.ErrPermanentFailure] otherwise.
// A 2xx response is success even when its body is empty or not JSON.
package services
