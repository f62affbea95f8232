package httpapi

import (
	"context"
	"fmt"

	"golang.org/x/text/language"

	"github.com/MimeLyc/batch-sub-translator/internal/batch"
	"github.com/MimeLyc/batch-sub-translator/internal/jobs"
	"github.com/MimeLyc/batch-sub-translator/internal/service"
)

// Execute runs a queued action against the orchestrator. It is the
// executor passed to jobs.Queue.Start.
func (s *Server) Execute(ctx context.Context, action *jobs.Action) error {
	err := s.execute(ctx, action)
	if service.IsCancelled(err) {
		return fmt.Errorf("%s interrupted: %w", action.Kind, context.Canceled)
	}
	return err
}

func (s *Server) execute(ctx context.Context, action *jobs.Action) error {
	p := action.Payload
	switch action.Kind {
	case jobs.KindRun:
		tag, err := language.Parse(p.TargetLanguage)
		if err != nil {
			return fmt.Errorf("invalid target language %q: %w", p.TargetLanguage, err)
		}
		outcome, err := s.orch.Run(ctx, service.RunRequest{
			TargetLanguage: tag,
			Prompt:         p.Prompt,
			Model:          p.Model,
		})
		if err == nil && outcome == service.OutcomeCancelled {
			return service.ErrCancelled
		}
		return err
	case jobs.KindRetryItem:
		return s.orch.RetryItem(ctx, p.ItemID)
	case jobs.KindRetryBatch:
		key, err := batch.ParseKey(p.BatchKey)
		if err != nil {
			return err
		}
		return s.orch.RetryBatch(ctx, key)
	case jobs.KindRetryAll:
		return s.orch.RetryAll(ctx)
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}
