package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/batch-sub-translator/internal/config"
	"github.com/MimeLyc/batch-sub-translator/internal/llm"
	"github.com/MimeLyc/batch-sub-translator/internal/service"
	"github.com/MimeLyc/batch-sub-translator/internal/translator"
	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

// ExitInterrupted is the exit status after SIGINT, as a shell would report.
const ExitInterrupted = 130

// errInterrupted ends a command that was stopped by the user. Its message
// has already been printed.
var errInterrupted = errors.New("interrupted")

type commandContext struct {
	configFlag   string
	logLevelFlag string

	// newGateway builds the translation gateway for cfg. Tests swap it out.
	newGateway func(cfg *config.Config) (translator.Gateway, error)

	closers []func() error
}

func newCommandContext() *commandContext {
	return &commandContext{newGateway: defaultGateway}
}

// loadConfig reads the configuration with the global flags applied and
// installs the logger it describes.
func (c *commandContext) loadConfig(opts ...config.Option) (*config.Config, error) {
	opts = append(opts, config.WithLogLevel(c.logLevelFlag))
	cfg, err := config.Load(strings.TrimSpace(c.configFlag), opts...)
	if err != nil {
		return nil, service.WrapError(err, service.ErrConfig, "load config")
	}

	if cfg.Log.File != "" {
		path, err := config.ExpandPath(cfg.Log.File)
		if err != nil {
			return nil, service.WrapError(err, service.ErrConfig, "resolve log file")
		}
		fl, err := log.NewFileLogger(path, cfg.LogLevel())
		if err != nil {
			return nil, service.WrapError(err, service.ErrConfig, "open log file")
		}
		log.SetLogger(fl.Logger)
		c.closers = append(c.closers, fl.Close)
	} else {
		log.InitLogger(cfg.LogLevel())
	}
	return cfg, nil
}

func (c *commandContext) gateway(cfg *config.Config) (translator.Gateway, error) {
	gw, err := c.newGateway(cfg)
	if err != nil {
		return nil, service.WrapError(err, service.ErrConfig, "build translation gateway")
	}
	return gw, nil
}

func (c *commandContext) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
	c.closers = nil
}

func defaultGateway(cfg *config.Config) (translator.Gateway, error) {
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}
	completer, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	return translator.NewRateLimited(translator.NewLLMGateway(completer), cfg.RateLimitConfig()), nil
}

func serviceOptions(cfg *config.Config) service.Options {
	return service.Options{
		Planner:       cfg.Planner(),
		ContextWindow: cfg.Translate.ContextWindow,
		ChunkLimit:    cfg.Translate.ChunkLimit,
	}
}

func newRootCommand(c *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "subtrans",
		Short:         "Batch subtitle translation with LLMs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&c.logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newTranslateCommand(c))
	rootCmd.AddCommand(newInspectCommand(c))
	rootCmd.AddCommand(newServeCommand(c))
	rootCmd.AddCommand(newConfigCommand(c))

	return rootCmd
}

// Execute runs the CLI with the process arguments and returns the exit
// status. SIGINT and SIGTERM cancel the command context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, newCommandContext(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, c *commandContext, args []string, stdout, stderr io.Writer) int {
	defer c.close()

	root := newRootCommand(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return reportError(stderr, root.ExecuteContext(ctx))
}

func reportError(w io.Writer, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errInterrupted):
		return ExitInterrupted
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	var tErr *service.TransError
	if errors.As(err, &tErr) {
		if advice := service.NewDefaultErrorHandler().GetAdvice(tErr); advice != "" {
			fmt.Fprintf(w, "Hint: %s\n", advice)
		}
	}
	return 1
}
