package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/tui"
)

func main() {
	var (
		configPath string
		searchK    int
	)

	rootCmd := &cobra.Command{
		Use:   "docqa",
		Short: "question answering over a document folder or bucket",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")

	loadConfig := func() (*config.Config, error) {
		if configPath == "" {
			return nil, fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
		return cfg, nil
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docqa http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "ingest documents once and print the segment count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			res, err := reloadWithBar(cmd.Context(), a.svc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Documents reloaded successfully: %d documents, %d chunks\n", res.Documents, res.ChunkCount)
			return nil
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search [question]",
		Short: "print the best matching segments for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if _, err := reloadWithBar(cmd.Context(), a.svc); err != nil {
				return err
			}
			top, err := a.svc.Search(cmd.Context(), strings.Join(args, " "), searchK)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, c := range top {
				fmt.Fprintf(out, "%d. [%.3f] %s#%d\n   %s\n", i+1, c.Score, c.Segment.Source, c.Segment.Position, c.Segment.Text)
			}
			return nil
		},
	}
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 3, "number of segments to print")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if _, err := reloadWithBar(cmd.Context(), a.svc); err != nil {
				return err
			}
			answer, err := a.svc.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "interactive terminal chat over the documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			res, err := reloadWithBar(cmd.Context(), a.svc)
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d documents, %d chunks from %s source", res.Documents, res.ChunkCount, cfg.Source.Type)
			p := tea.NewProgram(tui.New(cmd.Context(), a.svc, summary), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	rootCmd.AddCommand(runCmd, reloadCmd, searchCmd, askCmd, chatCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}
