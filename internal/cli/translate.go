package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/MimeLyc/batch-sub-translator/internal/config"
	"github.com/MimeLyc/batch-sub-translator/internal/service"
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

type translateOptions struct {
	to          string
	model       string
	prompt      string
	mode        string
	output      string
	retryFailed int
}

func newTranslateCommand(c *commandContext) *cobra.Command {
	var opts translateOptions

	cmd := &cobra.Command{
		Use:   "translate <file>",
		Short: "Translate a subtitle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), c, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.to, "to", "t", "", "Target language as a BCP 47 tag (default from config)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model override for this run")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "Prompt template, {language} is replaced with the target language")
	cmd.Flags().StringVar(&opts.mode, "mode", string(subtitle.ExportTranslated), "Export mode: translated, bilingual or original")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output path (default <name>_<lang>.<ext> next to the input)")
	cmd.Flags().IntVar(&opts.retryFailed, "retry-failed", 1, "Rounds of retry over failed batches after the run")
	return cmd
}

func (o translateOptions) configOptions() ([]config.Option, error) {
	var opts []config.Option
	if to := strings.TrimSpace(o.to); to != "" {
		tag, err := language.Parse(to)
		if err != nil {
			return nil, service.WrapError(err, service.ErrValidation, "invalid --to language").WithContext("to", to)
		}
		opts = append(opts, config.WithTargetLanguage(tag))
	}
	opts = append(opts, config.WithModel(o.model), config.WithPrompt(o.prompt))
	return opts, nil
}

func runTranslate(ctx context.Context, c *commandContext, out io.Writer, path string, opts translateOptions) error {
	mode, err := subtitle.ParseExportMode(opts.mode)
	if err != nil {
		return service.WrapError(err, service.ErrValidation, "invalid --mode")
	}
	if opts.retryFailed < 0 {
		return service.NewError(service.ErrValidation, "--retry-failed must not be negative")
	}
	cfgOpts, err := opts.configOptions()
	if err != nil {
		return err
	}
	cfg, err := c.loadConfig(cfgOpts...)
	if err != nil {
		return err
	}

	doc, err := subtitle.ReadFile(path)
	if err != nil {
		return service.WrapError(err, service.ErrCodec, "read subtitle").WithContext("path", path)
	}
	gw, err := c.gateway(cfg)
	if err != nil {
		return err
	}

	orch := service.NewOrchestrator(gw, serviceOptions(cfg))
	if err := orch.Load(doc); err != nil {
		return err
	}

	req := service.RunRequest{
		TargetLanguage: cfg.Translate.TargetLanguage,
		Prompt:         cfg.Translate.Prompt,
		Model:          cfg.LLM.Model,
	}
	fmt.Fprintf(out, "Translating %s (%d cues, %s) to %s\n", path, len(doc.Cues), doc.Format, req.TargetLanguage)

	stopProgress, err := startProgress(out, cfg.Progress.Interval, orch.Snapshot)
	if err != nil {
		return service.WrapError(err, service.ErrConfig, "progress reporter")
	}
	outcome, runErr := orch.Run(ctx, req)
	if runErr == nil && outcome == service.OutcomeCompleted {
		runErr = retryFailed(ctx, orch, opts.retryFailed)
	}
	stopProgress()

	snap := orch.Snapshot()
	if outcome == service.OutcomeCancelled || service.IsCancelled(runErr) {
		fmt.Fprintf(out, "Translation interrupted at %d%% (%d/%d items), nothing written\n",
			snap.Progress.Percent, snap.Progress.Done, snap.Progress.Total)
		return errInterrupted
	}
	if runErr != nil {
		return runErr
	}

	counts := snap.Counts()
	fmt.Fprintf(out, "Translated %d of %d items\n", counts[subtitle.StatusTranslated], len(snap.Items))
	if len(snap.FailedBatches) > 0 {
		fmt.Fprintf(out, "%d batches still failing:\n", len(snap.FailedBatches))
		fmt.Fprintln(out, ledgerTable(snap.FailedBatches, snap.Items))
	}

	target := opts.output
	if target == "" {
		target = subtitle.ExportName(path, req.TargetLanguage)
	}
	content, err := orch.Export(mode)
	if err != nil {
		return err
	}
	if err := subtitle.WriteFile(target, content); err != nil {
		return service.WrapError(err, service.ErrCodec, "write output").WithContext("path", target)
	}
	fmt.Fprintf(out, "Wrote %s\n", target)
	return nil
}

// retryFailed retries the failed batches round by round until none is left
// or rounds run out.
func retryFailed(ctx context.Context, orch *service.Orchestrator, rounds int) error {
	for round := 1; round <= rounds; round++ {
		failing := 0
		for _, v := range orch.FailedBatches() {
			if v.HasErrors {
				failing++
			}
		}
		if failing == 0 {
			return nil
		}
		log.Info("retry round %d/%d over %d failed batches", round, rounds, failing)
		if err := orch.RetryAll(ctx); err != nil {
			return err
		}
	}
	return nil
}
