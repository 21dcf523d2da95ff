package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/userimport/internal/formatter"
	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/services"
	"github.com/desertthunder/userimport/internal/shared"
	tu "github.com/desertthunder/userimport/internal/testing"
)

// mockService answers CreateUser from a per-email script of errors; a nil entry or an exhausted script is success.
type mockService struct {
	script     map[string][]error
	calls      map[string]int
	requestIDs map[string][]string
	onCall     func(email string)
}

func newMockService(script map[string][]error) *mockService {
	return &mockService{script: script, calls: map[string]int{}, requestIDs: map[string][]string{}}
}

func (m *mockService) CreateUser(ctx context.Context, rec models.UserRecord, requestID string) (*services.CreateResult, error) {
	m.calls[rec.Email]++
	m.requestIDs[rec.Email] = append(m.requestIDs[rec.Email], requestID)
	if m.onCall != nil {
		m.onCall(rec.Email)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := m.calls[rec.Email]
	if errs := m.script[rec.Email]; n <= len(errs) && errs[n-1] != nil {
		return nil, errs[n-1]
	}
	return &services.CreateResult{StatusCode: 201}, nil
}

func (m *mockService) total() int {
	sum := 0
	for _, n := range m.calls {
		sum += n
	}
	return sum
}

type mockRecorder struct {
	results []models.RecordResult
	err     error
}

func (m *mockRecorder) RecordOutcome(ctx context.Context, runID string, res models.RecordResult) error {
	m.results = append(m.results, res)
	return m.err
}

// sliceSource replays rows and errors in order, then io.EOF.
type sliceSource struct {
	items []any
}

func (s *sliceSource) Next() (models.RawRow, error) {
	if len(s.items) == 0 {
		return models.RawRow{}, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	switch v := item.(type) {
	case models.RawRow:
		return v, nil
	case error:
		return models.RawRow{}, v
	}
	return models.RawRow{}, io.EOF
}

func row(i int, name, email, role string) models.RawRow {
	return models.RawRow{Index: i, Fields: map[string]string{"name": name, "email": email, "role": role}}
}

func serverErrors(n int) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = &services.APIError{Kind: models.KindServerError, StatusCode: 503}
	}
	return errs
}

type harness struct {
	svc     *mockService
	sleeper *tu.FakeSleeper
	events  *bytes.Buffer
	rec     *mockRecorder
	imp     *Importer
}

func newHarness(script map[string][]error, base time.Duration) *harness {
	h := &harness{
		svc:     newMockService(script),
		sleeper: &tu.FakeSleeper{},
		events:  &bytes.Buffer{},
		rec:     &mockRecorder{},
	}
	h.imp = NewImporter(ImporterOpts{
		Service:  h.svc,
		Events:   shared.NewEventLogWriter(h.events, nil),
		Retrier:  NewRetrier(NewPolicy(base), h.sleeper.Sleep),
		Recorder: h.rec,
	})
	return h
}

func (h *harness) lines() []string {
	out := strings.TrimSpace(h.events.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestImporter(t *testing.T) {
	const base = 2 * time.Second

	t.Run("John Doe Succeeds On First Attempt", func(t *testing.T) {
		h := newHarness(nil, base)
		run := models.NewRun("users.csv", "http://localhost")

		src := &sliceSource{items: []any{row(1, "John Doe", "john.doe@example.com", "admin")}}
		if err := h.imp.Run(context.Background(), src, run, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(run.Results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(run.Results))
		}
		res := run.Results[0]
		if res.Outcome != models.OutcomeSuccess || res.Attempts != 1 {
			t.Errorf("expected Success in 1 attempt, got %s in %d", res.Outcome, res.Attempts)
		}
		if lines := h.lines(); len(lines) != 0 {
			t.Errorf("expected no event log lines, got %v", lines)
		}
		if len(h.sleeper.Delays) != 0 {
			t.Errorf("expected no waits, got %v", h.sleeper.Delays)
		}
		if run.FinishedAt.IsZero() || run.Interrupted {
			t.Error("expected run to be finished and not interrupted")
		}
	})

	t.Run("Jane Smith Succeeds On Fifth Attempt", func(t *testing.T) {
		h := newHarness(map[string][]error{"jane.smith@example.com": serverErrors(4)}, base)
		run := models.NewRun("users.csv", "http://localhost")
		run.ID = "run-1"

		src := &sliceSource{items: []any{row(2, "Jane Smith", "jane.smith@example.com", "user")}}
		if err := h.imp.Run(context.Background(), src, run, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		res := run.Results[0]
		if res.Outcome != models.OutcomeSuccess || res.Attempts != 5 {
			t.Errorf("expected Success in 5 attempts, got %s in %d", res.Outcome, res.Attempts)
		}

		lines := h.lines()
		if len(lines) != 4 {
			t.Fatalf("expected 4 retry lines, got %d: %v", len(lines), lines)
		}
		for i, line := range lines {
			if !strings.Contains(line, "retrying attempt") || !strings.Contains(line, "ServerError") {
				t.Errorf("line %d is not a ServerError retry: %q", i, line)
			}
		}
		if !strings.Contains(lines[3], "retrying attempt 5/5") {
			t.Errorf("expected last retry to announce attempt 5/5, got %q", lines[3])
		}

		if h.sleeper.Total() != 15*base || res.Waited != 15*base {
			t.Errorf("expected total wait %v, got %v", 15*base, h.sleeper.Total())
		}

		ids := h.svc.requestIDs["jane.smith@example.com"]
		for _, id := range ids[1:] {
			if id != ids[0] {
				t.Error("expected the same request id across retries")
			}
		}
		if len(h.rec.results) != 1 {
			t.Errorf("expected the outcome to be recorded once, got %d", len(h.rec.results))
		}
	})

	t.Run("Empty Email Is Rejected Without API Call", func(t *testing.T) {
		h := newHarness(nil, base)
		run := models.NewRun("users.csv", "http://localhost")

		src := &sliceSource{items: []any{row(3, "Bob", "", "user")}}
		if err := h.imp.Run(context.Background(), src, run, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if h.svc.total() != 0 {
			t.Errorf("expected no API calls, got %d", h.svc.total())
		}
		if run.Rejected != 1 || run.Results[0].Outcome != models.OutcomeRejected {
			t.Errorf("expected one rejection, got %+v", run.Results)
		}

		lines := h.lines()
		if len(lines) != 1 {
			t.Fatalf("expected 1 rejection line, got %v", lines)
		}
		if !strings.Contains(lines[0], "row 3") || !strings.Contains(lines[0], "email") {
			t.Errorf("expected row index and reason, got %q", lines[0])
		}
	})

	t.Run("Permanent Failures Get One Attempt", func(t *testing.T) {
		for _, kind := range []models.FailureKind{models.KindBadRequest, models.KindUnauthorized} {
			t.Run(kind.String(), func(t *testing.T) {
				h := newHarness(map[string][]error{"a@example.com": {&services.APIError{Kind: kind, StatusCode: 400}}}, base)
				run := models.NewRun("users.csv", "http://localhost")

				src := &sliceSource{items: []any{row(1, "A", "a@example.com", "user")}}
				if err := h.imp.Run(context.Background(), src, run, nil); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}

				res := run.Results[0]
				if res.Outcome != models.OutcomePermanentFailure || res.Attempts != 1 || res.Kind != kind {
					t.Errorf("unexpected result %+v", res)
				}
				if h.svc.total() != 1 {
					t.Errorf("expected exactly one call, got %d", h.svc.total())
				}
				lines := h.lines()
				if len(lines) != 1 || !strings.Contains(lines[0], "abandoning record after 1 attempt(s)") {
					t.Errorf("expected one abandonment line, got %v", lines)
				}
			})
		}
	})

	t.Run("Exhausted After Five Transient Failures", func(t *testing.T) {
		h := newHarness(map[string][]error{"a@example.com": serverErrors(5)}, base)
		run := models.NewRun("users.csv", "http://localhost")

		src := &sliceSource{items: []any{row(1, "A", "a@example.com", "user")}}
		if err := h.imp.Run(context.Background(), src, run, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		res := run.Results[0]
		if res.Outcome != models.OutcomeExhausted || res.Attempts != MaxAttempts {
			t.Errorf("expected Exhausted after %d attempts, got %+v", MaxAttempts, res)
		}
		if res.Kind != models.KindServerError {
			t.Errorf("expected ServerError kind, got %s", res.Kind)
		}
		if !strings.Contains(res.Message, "status 503") {
			t.Errorf("expected API error message, got %q", res.Message)
		}
		if lines := h.lines(); len(lines) != 5 {
			t.Errorf("expected 4 retries and 1 abandonment, got %d lines", len(lines))
		}
		if run.Failed != 1 {
			t.Errorf("expected 1 failed record, got %d", run.Failed)
		}
	})

	t.Run("Mixed File Continues Past Failures", func(t *testing.T) {
		h := newHarness(map[string][]error{
			"bad@example.com":        {&services.APIError{Kind: models.KindBadRequest, StatusCode: 422}},
			"jane.smith@example.com": serverErrors(2),
		}, base)
		run := models.NewRun("users.csv", "http://localhost")

		src := &sliceSource{items: []any{
			row(1, "John Doe", "john.doe@example.com", "admin"),
			row(2, "Bad", "bad@example.com", "user"),
			&formatter.RowError{Row: 3, Line: 4, Err: errors.New("bare \" in non-quoted field")},
			row(4, "", "x@example.com", ""),
			row(5, "Jane Smith", "jane.smith@example.com", "user"),
		}}

		progress := make(chan ProgressUpdate, 64)
		if err := h.imp.Run(context.Background(), src, run, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		if run.Total != 5 || run.Succeeded != 2 || run.Rejected != 2 || run.Failed != 1 {
			t.Errorf("unexpected counters: total=%d ok=%d rejected=%d failed=%d",
				run.Total, run.Succeeded, run.Rejected, run.Failed)
		}
		for i, res := range run.Results {
			if res.Row != i+1 {
				t.Errorf("results out of order: %d at %d", res.Row, i)
			}
		}

		done := 0
		for u := range progress {
			if u.Phase == RecordDone {
				done++
				if _, ok := u.Data.(models.RecordResult); !ok {
					t.Error("expected RecordResult data on RecordDone")
				}
			}
		}
		if done != 5 {
			t.Errorf("expected 5 record_done updates, got %d", done)
		}
	})

	t.Run("Fatal Read Error Stops The Run", func(t *testing.T) {
		h := newHarness(nil, base)
		run := models.NewRun("users.csv", "http://localhost")
		fatal := errors.Join(shared.ErrFileAccess, errors.New("disk gone"))

		src := &sliceSource{items: []any{row(1, "John Doe", "john.doe@example.com", "admin"), fatal}}
		err := h.imp.Run(context.Background(), src, run, nil)
		if !errors.Is(err, shared.ErrFileAccess) {
			t.Errorf("expected ErrFileAccess, got %v", err)
		}
		if run.Total != 1 {
			t.Errorf("expected rows before the failure to be kept, got %d", run.Total)
		}
	})

	t.Run("Interrupt Keeps Partial Summary", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h := newHarness(map[string][]error{"b@example.com": serverErrors(5)}, base)
		h.svc.onCall = func(email string) {
			if email == "b@example.com" {
				cancel()
			}
		}
		run := models.NewRun("users.csv", "http://localhost")

		src := &sliceSource{items: []any{
			row(1, "A", "a@example.com", "user"),
			row(2, "B", "b@example.com", "user"),
			row(3, "C", "c@example.com", "user"),
		}}
		err := h.imp.Run(ctx, src, run, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}

		if !run.Interrupted || run.FinishedAt.IsZero() {
			t.Error("expected run to be marked interrupted and finished")
		}
		if run.Total != 1 || run.Results[0].Email != "a@example.com" {
			t.Errorf("expected only the first record, got %+v", run.Results)
		}
		if h.svc.calls["c@example.com"] != 0 {
			t.Error("no record should start after an interrupt")
		}
	})

	t.Run("Recorder Failure Is Not Fatal", func(t *testing.T) {
		h := newHarness(nil, base)
		h.rec.err = errors.New("database is locked")
		run := models.NewRun("users.csv", "http://localhost")
		run.ID = "run-2"

		src := &sliceSource{items: []any{row(1, "A", "a@example.com", "user")}}
		if err := h.imp.Run(context.Background(), src, run, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if run.Succeeded != 1 {
			t.Error("expected the record to succeed")
		}
	})

	t.Run("Reads Real CSV", func(t *testing.T) {
		h := newHarness(nil, base)
		run := models.NewRun("users.csv", "http://localhost")

		ur, err := formatter.NewUserReader(strings.NewReader(tu.UsersCSV))
		if err != nil {
			t.Fatalf("NewUserReader failed: %v", err)
		}
		if err := h.imp.Run(context.Background(), ur, run, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if run.Succeeded != 2 || h.svc.total() != 2 {
			t.Errorf("expected 2 creations, got %d", run.Succeeded)
		}
	})

	t.Run("Slow Reader Receives Every Outcome", func(t *testing.T) {
		const rows = 40
		h := newHarness(map[string][]error{"user7@example.com": serverErrors(1)}, base)
		run := models.NewRun("users.csv", "http://localhost")

		src := &sliceSource{}
		for i := 1; i <= rows; i++ {
			src.items = append(src.items, row(i, fmt.Sprintf("User %d", i), fmt.Sprintf("user%d@example.com", i), "user"))
		}

		progress := make(chan ProgressUpdate)
		received := make(chan []ProgressUpdate)
		go func() {
			var got []ProgressUpdate
			for u := range progress {
				time.Sleep(time.Millisecond)
				got = append(got, u)
			}
			received <- got
		}()

		if err := h.imp.Run(context.Background(), src, run, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)
		got := <-received

		done := 0
		for _, u := range got {
			if u.Phase == RecordDone {
				if u.Row != done+1 {
					t.Errorf("expected outcome for row %d, got row %d", done+1, u.Row)
				}
				done++
			}
			if u.Phase == Attempting && !strings.Contains(u.Message, "User "+strconv.Itoa(u.Row)+" <") {
				t.Errorf("expected attempt message to name the record, got %q", u.Message)
			}
		}
		if done != rows {
			t.Errorf("expected %d record_done updates, got %d", rows, done)
		}
	})

	t.Run("No Service", func(t *testing.T) {
		imp := NewImporter(ImporterOpts{})
		err := imp.Run(context.Background(), &sliceSource{}, models.NewRun("x", "y"), nil)
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
