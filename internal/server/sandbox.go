package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/shared"
)

// DefaultCreatePath is where the sandbox accepts account creation requests.
const DefaultCreatePath = "/api/create_user"

// maxRequestBytes bounds the JSON body the sandbox will decode.
const maxRequestBytes = 64 << 10

// SandboxOpts configures [NewSandboxHandler].
type SandboxOpts struct {
	Path      string // defaults to [DefaultCreatePath]
	Token     string // bearer token clients must present; empty disables the check
	FailFirst int    // answer 503 to the first N requests for each email
}

// CreatedUser is the body of a 201 response.
type CreatedUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type errorBody struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// SandboxHandler is an in-memory stand-in for the remote create-user endpoint.
type SandboxHandler struct {
	path      string
	token     string
	failFirst int

	mu       sync.Mutex
	attempts map[string]int
	users    map[string]CreatedUser
	order    []string
}

// NewSandboxHandler creates a [SandboxHandler].
func NewSandboxHandler(opts SandboxOpts) *SandboxHandler {
	path := opts.Path
	if path == "" {
		path = DefaultCreatePath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &SandboxHandler{
		path:      path,
		token:     opts.Token,
		failFirst: max(opts.FailFirst, 0),
		attempts:  make(map[string]int),
		users:     make(map[string]CreatedUser),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *SandboxHandler) Routes() []string {
	return []string{http.MethodPost + " " + h.path}
}

// ServeHTTP creates one user.
//
// Responses: 401 for a missing or wrong bearer token, 400 for a body that is not JSON,
// 422 when name, email or role is blank, 503 while the email is within its fail-first budget,
// 409 when the email already exists, and 201 otherwise.
func (h *SandboxHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or missing bearer token"})
		return
	}

	var body map[string]string
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "request body must be a JSON object of strings"})
		return
	}

	rec, err := models.ParseUserRecord(models.RawRow{Fields: lowerKeys(body)})
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "missing fields", Missing: vErr.Missing})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	key := strings.ToLower(rec.Email)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.attempts[key]++
	if h.attempts[key] <= h.failFirst {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "temporarily unavailable"})
		return
	}

	if _, exists := h.users[key]; exists {
		writeJSON(w, http.StatusConflict, errorBody{Error: "email already exists"})
		return
	}

	user := CreatedUser{ID: shared.GenerateID(), Name: rec.Name, Email: rec.Email, Role: rec.Role}
	h.users[key] = user
	h.order = append(h.order, key)

	writeJSON(w, http.StatusCreated, user)
}

// Users returns the created users in creation order.
func (h *SandboxHandler) Users() []CreatedUser {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := make([]CreatedUser, 0, len(h.order))
	for _, key := range h.order {
		users = append(users, h.users[key])
	}
	return users
}

// ListUsers serves the created users as a JSON array.
func (h *SandboxHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Users())
}

// Health always answers 200.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewSandboxRouter wires the sandbox handler, the user listing and the health check behind the given middleware.
func NewSandboxRouter(h *SandboxHandler, middleware ...Middleware) *BasicRouter {
	router := NewBasicRouter()
	router.Use(middleware...)
	router.Handler(h)
	router.HandleFunc(http.MethodGet, "/api/users", h.ListUsers)
	router.HandleFunc(http.MethodGet, "/healthz", Health)
	return router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
