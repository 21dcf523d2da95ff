// Package server provides HTTP routing, middleware, and the sandbox create-user API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers so that the first one added runs outermost.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so a wrong method gets 405 from the mux.
//
// # Sandbox
//
// [SandboxHandler] stands in for the remote create-user endpoint during dry runs:
//
//	POST /api/create_user   create one user (bearer token, JSON body)
//	GET  /api/users         list users created so far
//	GET  /healthz           liveness
//
// FailFirst makes the handler answer 503 to the first N requests for each email,
// which exercises the client's retry path end to end.
// State is in memory and lost when the process exits.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
