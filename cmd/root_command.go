package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tower_bot/internal/app"
	"tower_bot/internal/config"
	"tower_bot/internal/db"
	"tower_bot/internal/logging"
	"tower_bot/internal/models"
	"tower_bot/internal/passphrase"
	"tower_bot/internal/watermark"
)

func executeCLI(args []string) error {
	rootCmd := newRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "tower-bot",
		Short:         "poll r/TheSpiralTower and build floors on the tower site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config")

	load := func() (*config.BotConfig, logging.Logger, error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logging.NewLogger(cfg.Log.Level, cfg.Log.Format), nil
	}

	rootCmd.AddCommand(
		newRunCommand(load),
		newWatermarkCommand(load),
		newHistoryCommand(load),
		newPassphraseCommand(),
	)
	return rootCmd
}

type loader func() (*config.BotConfig, logging.Logger, error)

func newRunCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "process new posts and private messages once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			bot, err := app.NewBotApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := bot.Close(); err != nil {
					logger.WithError(err).Warn("Closing state backend failed")
				}
			}()
			return bot.Run(ctx)
		},
	}
}

func newWatermarkCommand(load loader) *cobra.Command {
	watermarkCmd := &cobra.Command{
		Use:   "watermark",
		Short: "inspect or override a stream watermark",
	}

	open := func(ctx context.Context) (*watermark.Store, error) {
		cfg, logger, err := load()
		if err != nil {
			return nil, err
		}
		backend, err := watermark.Open(ctx, cfg.State)
		if err != nil {
			return nil, err
		}
		return watermark.NewStore(backend, logger), nil
	}

	watermarkCmd.AddCommand(
		&cobra.Command{
			Use:   "get <posts|messages>",
			Short: "print the stored watermark (0 when unset)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				stream, err := parseStream(args[0])
				if err != nil {
					return err
				}
				store, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()

				ts, err := store.Get(cmd.Context(), stream)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d", ts)
				if ts > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), " (%s)", time.Unix(ts, 0).UTC().Format(time.RFC3339))
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <posts|messages> <unix-seconds>",
			Short: "overwrite the stored watermark",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				stream, err := parseStream(args[0])
				if err != nil {
					return err
				}
				store, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()
				return store.SetString(cmd.Context(), stream, args[1])
			},
		},
	)
	return watermarkCmd
}

func newHistoryCommand(load loader) *cobra.Command {
	var limit int64

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "list recent runs (mongo state backend only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if cfg.State.Backend != "mongo" {
				return fmt.Errorf("run history needs the mongo state backend, got %q", cfg.State.Backend)
			}
			store, err := db.NewMongoDB(cfg.State)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, run := range runs {
				fmt.Fprintf(out, "%s  %s  %-11s %5dms  items=%d\n",
					run.ID,
					time.Unix(run.StartedAt, 0).UTC().Format(time.RFC3339),
					run.Status,
					run.Duration,
					len(run.Items),
				)
			}
			return nil
		},
	}
	historyCmd.Flags().Int64Var(&limit, "limit", 10, "number of runs to show")
	return historyCmd
}

func newPassphraseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "passphrase",
		Short: "print a generated account passphrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), passphrase.Generate(nil))
			return nil
		},
	}
}

func parseStream(value string) (models.Stream, error) {
	stream := models.Stream(value)
	if !stream.Valid() {
		return "", fmt.Errorf("unknown stream %q (want posts or messages)", value)
	}
	return stream, nil
}
