package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
)

// RecordingAnswerer records every completed invocation of the wrapped
// answerer. A failed record is logged and does not fail the invocation.
type RecordingAnswerer struct {
	next   ports.QuestionAnswerer
	store  ports.InteractionStore
	logger *slog.Logger
	now    func() time.Time
}

func NewRecordingAnswerer(next ports.QuestionAnswerer, store ports.InteractionStore, logger *slog.Logger) *RecordingAnswerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingAnswerer{
		next:   next,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (r *RecordingAnswerer) Invoke(ctx context.Context, question string) (*domain.Response, error) {
	start := r.now()
	resp, err := r.next.Invoke(ctx, question)
	if err != nil || r.store == nil {
		return resp, err
	}

	interaction := domain.Interaction{
		ID:         uuid.NewString(),
		Question:   question,
		Route:      resp.Route,
		Answer:     resp.Answer,
		Citations:  resp.Citations,
		DocCount:   len(resp.Docs),
		DurationMS: r.now().Sub(start).Milliseconds(),
		CreatedAt:  start.UTC(),
	}
	// detached from request cancellation so a finished answer is still logged
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if recErr := r.store.Record(recordCtx, interaction); recErr != nil {
		r.logger.Warn("interaction_record_failed", "interaction_id", interaction.ID, "error", recErr)
	}
	return resp, nil
}
