package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/scomax/contact-validator/internal/contacts"
	"github.com/scomax/contact-validator/internal/linkedin"
	"github.com/scomax/contact-validator/internal/matching"
	"github.com/scomax/contact-validator/internal/validation"
)

type stubResolver struct {
	outcomes map[string]validation.Outcome
	errs     map[string]error
	calls    []string
	onCall   func(name string)
}

func (s *stubResolver) Resolve(_ context.Context, name, _ string) (validation.Outcome, error) {
	s.calls = append(s.calls, name)
	if s.onCall != nil {
		s.onCall(name)
	}
	if err := s.errs[name]; err != nil {
		return validation.Outcome{}, err
	}
	return s.outcomes[name], nil
}

func currentOutcome(url string) validation.Outcome {
	return validation.Outcome{
		Report: &validation.Report{
			HasCurrentMatch: true,
			HasAnyMatch:     true,
			Best: &validation.PositionMatch{
				Position: linkedin.Position{JobTitle: "Recruiter", Company: "Bloomberg", IsCurrent: true},
				Match:    matching.Result{Score: 100, IsMatch: true},
			},
		},
		ProfileURL: url,
		Candidates: 1,
	}
}

type saveSpy struct {
	saves int
	err   error
}

func (s *saveSpy) save([]*contacts.Record) error {
	s.saves++
	return s.err
}

func newRecords(names ...string) []*contacts.Record {
	out := make([]*contacts.Record, 0, len(names))
	for _, n := range names {
		out = append(out, &contacts.Record{FirstName: n, LastName: "Brenner", Account: "Bloomberg"})
	}
	return out
}

func TestRunResolvesAndCheckpointsPerBatch(t *testing.T) {
	t.Parallel()

	records := newRecords("A", "B", "C")
	resolver := &stubResolver{outcomes: map[string]validation.Outcome{
		"A Brenner": currentOutcome("https://www.linkedin.com/in/a"),
		"B Brenner": currentOutcome("https://www.linkedin.com/in/b"),
		"C Brenner": currentOutcome("https://www.linkedin.com/in/c"),
	}}
	spy := &saveSpy{}

	r := New(resolver, spy.save, nil, Config{BatchSize: 2}, zap.NewNop())
	if err := r.Run(context.Background(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resolver.calls) != 3 {
		t.Fatalf("expected 3 resolutions, got %v", resolver.calls)
	}
	if spy.saves != 2 {
		t.Fatalf("expected one checkpoint per batch, got %d", spy.saves)
	}
	for _, rec := range records {
		if !rec.Valid.True() {
			t.Fatalf("expected record marked valid: %+v", rec)
		}
	}
}

func TestRunSkipsResolvedRecordsWithoutExternalCalls(t *testing.T) {
	t.Parallel()

	records := []*contacts.Record{
		{FirstName: "A", LastName: "B", Account: "Acme", Valid: contacts.TristateOf(true)},
		{FirstName: "C", LastName: "D", Account: "Acme", Note: contacts.NoteProfileNotFound},
	}
	resolver := &stubResolver{}
	spy := &saveSpy{}

	r := New(resolver, spy.save, nil, Config{BatchSize: 5}, zap.NewNop())
	if err := r.Run(context.Background(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resolver.calls) != 0 {
		t.Fatalf("resolver must not be called for resolved records: %v", resolver.calls)
	}
	if spy.saves != 0 {
		t.Fatalf("all-skipped batch must not be checkpointed, got %d saves", spy.saves)
	}
}

func TestRunIsolatesRecordFailures(t *testing.T) {
	t.Parallel()

	records := newRecords("A", "B")
	resolver := &stubResolver{
		outcomes: map[string]validation.Outcome{"B Brenner": currentOutcome("https://www.linkedin.com/in/b")},
		errs:     map[string]error{"A Brenner": errors.New("provider exhausted")},
	}
	spy := &saveSpy{}

	r := New(resolver, spy.save, nil, Config{BatchSize: 5}, zap.NewNop())
	if err := r.Run(context.Background(), records); err != nil {
		t.Fatalf("one record's failure must not abort the batch: %v", err)
	}

	if records[0].Valid.IsSet() || !strings.HasPrefix(records[0].Note, "Error:") {
		t.Fatalf("expected error note on failed record: %+v", records[0])
	}
	if !records[1].Valid.True() {
		t.Fatalf("expected second record resolved: %+v", records[1])
	}
	if spy.saves != 1 {
		t.Fatalf("expected batch checkpointed, got %d saves", spy.saves)
	}
}

func TestRunRecreatesUnhealthySession(t *testing.T) {
	t.Parallel()

	records := newRecords("A")
	resolver := &stubResolver{outcomes: map[string]validation.Outcome{
		"A Brenner": currentOutcome("https://www.linkedin.com/in/a"),
	}}

	unhealthy := true
	recreated := 0
	session := SessionCheck{
		Name: "profile",
		Check: func(context.Context) error {
			if unhealthy {
				return linkedin.ErrSessionUnhealthy
			}
			return nil
		},
		Recreate: func(context.Context) error {
			unhealthy = false
			recreated++
			return nil
		},
	}

	r := New(resolver, (&saveSpy{}).save, []SessionCheck{session}, Config{BatchSize: 5}, zap.NewNop())
	if err := r.Run(context.Background(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if recreated != 1 {
		t.Fatalf("expected session recreated once, got %d", recreated)
	}
	if !records[0].Valid.True() {
		t.Fatalf("expected record resolved after recreation: %+v", records[0])
	}
}

func TestRunFailedRecreationBecomesRecordError(t *testing.T) {
	t.Parallel()

	records := newRecords("A")
	resolver := &stubResolver{}
	session := SessionCheck{
		Name:     "profile",
		Check:    func(context.Context) error { return linkedin.ErrSessionUnhealthy },
		Recreate: func(context.Context) error { return errors.New("no cookies available") },
	}

	r := New(resolver, (&saveSpy{}).save, []SessionCheck{session}, Config{BatchSize: 5}, zap.NewNop())
	if err := r.Run(context.Background(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resolver.calls) != 0 {
		t.Fatal("resolver must not run without a healthy session")
	}
	if records[0].Valid.IsSet() || !strings.Contains(records[0].Note, "no cookies available") {
		t.Fatalf("expected recreation failure recorded: %+v", records[0])
	}
}

func TestRunStopsBetweenRecordsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	records := newRecords("A", "B")
	resolver := &stubResolver{
		outcomes: map[string]validation.Outcome{
			"A Brenner": currentOutcome("https://www.linkedin.com/in/a"),
		},
		onCall: func(string) { cancel() },
	}
	spy := &saveSpy{}

	r := New(resolver, spy.save, nil, Config{BatchSize: 5}, zap.NewNop())
	err := r.Run(ctx, records)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if len(resolver.calls) != 1 {
		t.Fatalf("expected processing to stop after the in-flight record, got %v", resolver.calls)
	}
	if !records[0].Valid.IsSet() {
		t.Fatalf("in-flight record must finish before stopping: %+v", records[0])
	}
	if spy.saves != 1 {
		t.Fatalf("partial batch must still be checkpointed, got %d saves", spy.saves)
	}
}
