package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

type feedbackSinkFake struct {
	got []domain.Feedback
	err error
}

func (f *feedbackSinkFake) RecordFeedback(_ context.Context, fb domain.Feedback) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, fb)
	return nil
}

type feedbackRepoFake struct {
	saved     []domain.Feedback
	err       error
	listErr   error
	lastQuery struct {
		sessionID string
		limit     int
	}
}

func (f *feedbackRepoFake) EnsureSchema(context.Context) error { return nil }
func (f *feedbackRepoFake) SaveFeedback(_ context.Context, fb domain.Feedback) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, fb)
	return nil
}
func (f *feedbackRepoFake) RecordFeedback(ctx context.Context, fb domain.Feedback) error {
	return f.SaveFeedback(ctx, fb)
}
func (f *feedbackRepoFake) ListFeedback(_ context.Context, sessionID string, limit int) ([]domain.Feedback, error) {
	f.lastQuery.sessionID = sessionID
	f.lastQuery.limit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.saved, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseUseful(t *testing.T) {
	for raw, want := range map[string]bool{
		"sim": true, " SIM ": true, "s": true, "yes": true,
		"não": false, "nao": false, "talvez": false, "": false,
	} {
		if got := ParseUseful(raw); got != want {
			t.Fatalf("ParseUseful(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestFeedbackUseCaseRecord(t *testing.T) {
	sink := &feedbackSinkFake{}
	uc := NewFeedbackUseCase(sink, discardLogger())

	fb, err := uc.Record(context.Background(), "session-1", "q", "r", " Sim ")
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if !fb.Useful || fb.Raw != "sim" || fb.SessionID != "session-1" || fb.ID == "" || fb.CreatedAt.IsZero() {
		t.Fatalf("unexpected feedback %+v", fb)
	}
	if len(sink.got) != 1 || sink.got[0].ID != fb.ID {
		t.Fatalf("expected feedback to reach the sink, got %+v", sink.got)
	}

	fb, err = uc.Record(context.Background(), "", "q", "r", "não")
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if fb.Useful || fb.SessionID == "" {
		t.Fatalf("expected generated session and negative feedback, got %+v", fb)
	}
}

func TestFeedbackUseCaseRecordErrors(t *testing.T) {
	uc := NewFeedbackUseCase(&feedbackSinkFake{}, discardLogger())
	if _, err := uc.Record(context.Background(), "s", "q", "r", "   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	sinkErr := errors.New("queue down")
	uc = NewFeedbackUseCase(&feedbackSinkFake{err: sinkErr}, discardLogger())
	if _, err := uc.Record(context.Background(), "s", "q", "r", "sim"); !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestPersistFeedbackUseCase(t *testing.T) {
	repo := &feedbackRepoFake{}
	uc := NewPersistFeedbackUseCase(repo)
	if err := uc.Handle(context.Background(), domain.Feedback{ID: "f-1"}); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected one saved feedback")
	}
	if err := uc.Handle(context.Background(), domain.Feedback{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing id, got %v", err)
	}
}

func TestLogFeedbackSink(t *testing.T) {
	if err := NewLogFeedbackSink(discardLogger()).RecordFeedback(context.Background(), domain.Feedback{ID: "x"}); err != nil {
		t.Fatalf("RecordFeedback() error: %v", err)
	}
}

func TestFeedbackUseCaseListNeedsReader(t *testing.T) {
	uc := NewFeedbackUseCase(&feedbackSinkFake{}, discardLogger())
	if _, err := uc.List(context.Background(), "s-1", 10); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without a reader, got %v", err)
	}
}

func TestFeedbackUseCaseListClampsLimit(t *testing.T) {
	repo := &feedbackRepoFake{}
	uc := NewFeedbackUseCase(repo, discardLogger()).WithReader(repo)

	items, err := uc.List(context.Background(), "  s-1 ", 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", items)
	}
	if repo.lastQuery.sessionID != "s-1" || repo.lastQuery.limit != DefaultFeedbackListLimit {
		t.Fatalf("unexpected reader query: %+v", repo.lastQuery)
	}

	if _, err := uc.List(context.Background(), "", 10_000); err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if repo.lastQuery.limit != MaxFeedbackListLimit {
		t.Fatalf("expected limit clamped to %d, got %d", MaxFeedbackListLimit, repo.lastQuery.limit)
	}
}

func TestFeedbackUseCaseListReturnsRecorded(t *testing.T) {
	repo := &feedbackRepoFake{}
	uc := NewFeedbackUseCase(repo, discardLogger()).WithReader(repo)
	if _, err := uc.Record(context.Background(), "s-2", "q", "r", "sim"); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	items, err := uc.List(context.Background(), "s-2", 5)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(items) != 1 || items[0].SessionID != "s-2" || !items[0].Useful {
		t.Fatalf("unexpected listed feedback: %+v", items)
	}

	repo.listErr = domain.WrapError(domain.ErrTemporary, "list", errors.New("conn reset"))
	if _, err := uc.List(context.Background(), "s-2", 5); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected reader error to be wrapped, got %v", err)
	}
}
