package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/api"
	"github.com/tenetdb/tenet/internal/config"
	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/ingest"
	"github.com/tenetdb/tenet/internal/service"
	"github.com/tenetdb/tenet/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tenet",
		Short: "Locally persisted knowledge base that evolves beliefs from evidence",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tickCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(notesCmd())
	rootCmd.AddCommand(beliefsCmd())
	rootCmd.AddCommand(signalsCmd())
	rootCmd.AddCommand(auditCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	switch config.LogLevel() {
	case "debug":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	return logger
}

func openBackend(ctx context.Context) (*store.Backend, *zap.Logger, error) {
	logger := buildLogger()

	if err := config.Load(); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	backend, err := store.Open(ctx, store.Config{
		Driver: config.StoreDriver(),
		DSN:    config.StoreDSN(),
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	return backend, logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with the background tick scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			backend, logger, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = backend.Close() }()

			app := api.NewApp(backend, logger)
			app.Scheduler.Start()

			addr := config.ServerAddr()
			srv := &http.Server{
				Addr:    addr,
				Handler: app.Router,
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				logger.Info("server starting", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("server failed", zap.Error(err))
				}
			}()

			<-quit
			logger.Info("shutting down server")

			app.Scheduler.Stop()

			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Fatal("server forced to shutdown", zap.Error(err))
			}

			logger.Info("server stopped")
			return nil
		},
	}
}

func tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one maintenance tick and print its counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			backend, logger, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = backend.Close() }()

			app := api.NewApp(backend, logger)
			res := app.Scheduler.RunOnce(ctx)
			fmt.Printf("archived %d  deduplicated %d  distilled %d\n", res.Archived, res.Deduplicated, res.Distilled)
			fmt.Printf("recomputed %d  activated %d  deprecated %d\n", res.Recomputed, res.Activated, res.Deprecated)
			fmt.Printf("synthesized %d  challenged %d\n", res.Synthesized, res.Challenged)
			fmt.Printf("signals processed %d  failed %d  dead-lettered %d\n",
				res.SignalsProcessed, res.SignalsFailed, res.SignalsDeadLettered)
			fmt.Printf("took %s\n", res.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func addCmd() *cobra.Command {
	var contentType string
	var trust string

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Ingest a note; #tags and @entities are extracted from the text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			backend, logger, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = backend.Close() }()

			noteSvc := service.NewNoteService(backend.Stores.Notes, backend.Stores.Audit, backend.Stores.Signals, logger)
			signalSvc := service.NewSignalService(backend.Stores.Signals, logger)
			ing := ingest.New(noteSvc, signalSvc, logger)

			note, err := ing.Ingest(ctx, ingest.Input{
				Content:     strings.Join(args, " "),
				ContentType: domain.ContentType(contentType),
				TrustLabel:  domain.TrustLabel(trust),
			})
			if err != nil {
				return err
			}

			fmt.Printf("note %s\n", note.ID)
			if len(note.Tags) > 0 {
				fmt.Printf("tags: %s\n", strings.Join(note.Tags, ", "))
			}
			if len(note.Entities) > 0 {
				fmt.Printf("entities: %s\n", strings.Join(note.Entities, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "type", "text", "content type (text, markdown, pdf, transcript, code)")
	cmd.Flags().StringVar(&trust, "trust", "user", "trust label for the minted source (user, trusted, unknown)")
	return cmd
}

func notesCmd() *cobra.Command {
	var tag, entity string
	var limit int

	cmd := &cobra.Command{
		Use:   "notes",
		Short: "List notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			backend, logger, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = backend.Close() }()

			notes, err := backend.Stores.Notes.ListNotes(ctx, domain.NoteFilter{
				Tag:    tag,
				Entity: entity,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			for _, n := range notes {
				fmt.Printf("%s  [%s]  %s\n", n.ID, strings.Join(n.Tags, ","), truncate(n.Content, 70))
			}
			fmt.Printf("%d notes\n", len(notes))
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().StringVar(&entity, "entity", "", "filter by entity")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum notes to list")
	return cmd
}

func beliefsCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "beliefs",
		Short: "List beliefs with status and confidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			backend, logger, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = backend.Close() }()

			f := domain.BeliefFilter{Limit: limit}
			if status != "" {
				if !domain.ValidBeliefStatus(status) {
					return fmt.Errorf("invalid status: %s", status)
				}
				st := domain.BeliefStatus(status)
				f.Status = &st
			}

			beliefs, err := backend.Stores.Beliefs.List(ctx, f)
			if err != nil {
				return err
			}

			for _, b := range beliefs {
				fmt.Printf("%s  %-10s  %.2f  %s\n", b.ID, b.Status, b.Confidence, truncate(b.ClaimText, 60))
			}
			fmt.Printf("%d beliefs\n", len(beliefs))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum beliefs to list")
	return cmd
}

func signalsCmd() *cobra.Command {
	var dead bool
	var limit int

	cmd := &cobra.Command{
		Use:   "signals",
		Short: "List pending or dead-lettered signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			backend, logger, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = backend.Close() }()

			var signals []domain.Signal
			if dead {
				signals, err = backend.Stores.Signals.ListDeadLettered(ctx, limit)
			} else {
				signals, err = backend.Stores.Signals.ListPending(ctx, nil, limit)
			}
			if err != nil {
				return err
			}

			for _, s := range signals {
				fmt.Printf("%s  %-22s  attempts=%d  %s\n", s.ID, s.Type, s.Attempts, s.CreatedAt.Format(time.RFC3339))
			}
			fmt.Printf("%d signals\n", len(signals))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dead, "dead", false, "list dead-lettered signals instead of pending")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum signals to list")
	return cmd
}

func auditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit [entity-id]",
		Short: "Show the audit trail for an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entity id: %w", err)
			}

			ctx := context.Background()
			backend, logger, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = backend.Close() }()

			entries, err := backend.Stores.Audit.ListByEntity(ctx, id, limit, 0)
			if err != nil {
				return err
			}

			for _, e := range entries {
				fmt.Printf("%s  %-8s  %s\n", e.Timestamp.Format(time.RFC3339), e.EntityType, e.Action)
			}
			fmt.Printf("%d entries\n", len(entries))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum entries to list")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
