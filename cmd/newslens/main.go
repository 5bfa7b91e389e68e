package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"newslens/internal/config"
	"newslens/internal/logging"
	"newslens/internal/service"
	"newslens/internal/tui"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "newslens",
		Short: "NewsLens - ask questions about news articles",
		Long: `NewsLens loads up to three news article URLs into a vector index and
answers questions about them with sources.

Environment variables (also read from .env):
  OPENAI_API_KEY   required by the openai embedder and synthesizer
  QDRANT_API_KEY   required by the qdrant index`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (default ./config.yaml or ~/.config/newslens/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config and secrets, validates them, and builds the logger.
func setup(cmd *cobra.Command, quiet bool) (*config.AppConfig, config.Secrets, *zap.Logger, func(), error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, config.Secrets{}, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, config.Secrets{}, nil, nil, err
	}
	if err := cfg.Validate(secrets); err != nil {
		return nil, config.Secrets{}, nil, nil, err
	}

	logger, cleanup, err := logging.New(cfg.Logging, quiet)
	if err != nil {
		return nil, config.Secrets{}, nil, nil, err
	}
	return cfg, secrets, logger, cleanup, nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, secrets, logger, cleanup, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := buildApp(cmd.Context(), cfg, secrets, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("starting tui", zap.String("index", cfg.Index.Name), zap.String("index_type", cfg.Index.Type))
	_, err = tea.NewProgram(tui.New(a.ctrl), tea.WithAltScreen()).Run()
	return err
}

func askCmd() *cobra.Command {
	var (
		urls     []string
		question string
	)
	cmd := &cobra.Command{
		Use:     "ask",
		Short:   "Process URLs and answer one question without the UI",
		Example: `  newslens ask --url https://example.com/article --question "What happened?"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(question) == "" {
				return service.ErrEmptyQuestion
			}
			cfg, secrets, logger, cleanup, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := buildApp(ctx, cfg, secrets, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return ask(ctx, a.ctrl, urls, question, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringArrayVar(&urls, "url", nil, "Article URL (repeat up to 3 times)")
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question to ask about the articles")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func ask(ctx context.Context, ctrl *service.Controller, urls []string, question string, stdout, stderr io.Writer) error {
	out := ctrl.Handle(ctx, service.NewSession(), service.Input{
		URLs:     urls,
		Build:    true,
		Question: question,
		Progress: func(msg string) { fmt.Fprintln(stderr, msg) },
	})
	for _, w := range out.Warnings {
		fmt.Fprintln(stderr, w)
	}
	if out.Answer == "" {
		if len(out.Warnings) > 0 {
			return errors.New(out.Warnings[len(out.Warnings)-1])
		}
		return errors.New("no answer")
	}
	fmt.Fprint(stdout, tui.Render(out))
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				var err error
				if path, err = config.DefaultUserConfigPath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
