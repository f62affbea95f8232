package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/batch-sub-translator/internal/config"
	"github.com/MimeLyc/batch-sub-translator/internal/service"
)

func newConfigCommand(c *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand(c))
	configCmd.AddCommand(newConfigShowCommand(c))

	return configCmd
}

func newConfigInitCommand(c *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(c.configFlag)
			if target == "" {
				target = config.DefaultConfigPath
			}
			if err := config.WriteFile(target, config.Default(), force); err != nil {
				return service.WrapError(err, service.ErrConfig, "write config")
			}

			expanded, _ := config.ExpandPath(target)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote default configuration to %s\n", expanded)
			fmt.Fprintln(out, "Set [llm] api_key (or export LLM_API_KEY) before translating.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			data, err := config.Encode(cfg.Redacted())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
