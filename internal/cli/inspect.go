package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/MimeLyc/batch-sub-translator/internal/config"
	"github.com/MimeLyc/batch-sub-translator/internal/service"
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
)

func newInspectCommand(c *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show cues, detected language and the batch plan of a subtitle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return runInspect(cmd.OutOrStdout(), cfg, args[0], limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Cues to list, 0 for all")
	return cmd
}

func runInspect(out io.Writer, cfg *config.Config, path string, limit int) error {
	doc, err := subtitle.ReadFile(path)
	if err != nil {
		return service.WrapError(err, service.ErrCodec, "read subtitle").WithContext("path", path)
	}

	detected := "unknown"
	if tag := subtitle.DetectLanguage(doc.Cues); tag != language.Und {
		detected = tag.String()
	}
	items := subtitle.NewItems(doc.Cues)
	batches, size := cfg.Planner().Plan(items)

	fmt.Fprintf(out, "File:      %s\n", path)
	fmt.Fprintf(out, "Format:    %s\n", doc.Format)
	fmt.Fprintf(out, "Cues:      %d\n", len(doc.Cues))
	fmt.Fprintf(out, "Language:  %s\n", detected)
	fmt.Fprintf(out, "Plan:      %d batches of %d\n", len(batches), size)
	if len(doc.Cues) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, cueTable(doc.Cues, limit))
	if limit > 0 && limit < len(doc.Cues) {
		fmt.Fprintf(out, "... %d more cues\n", len(doc.Cues)-limit)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, planTable(batches))
	return nil
}
