package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/warp/career-engine/api"
	"github.com/warp/career-engine/logging"
	"github.com/warp/career-engine/store/sqlite"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API backed by a SQLite archive.

Rosters uploaded through the API and every simulation run are kept in the
database. Use --db=":memory:" for a throwaway instance.

On SIGINT/SIGTERM the server stops accepting connections, waits up to 30s
for active requests, then closes the database.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().String("db", "promosim.db", "SQLite database path")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, setup, err := loadSetup()
	if err != nil {
		return err
	}

	dbPath := settings.GetString("db")
	store, err := sqlite.New(dbPath, setup.Rules.Hierarchy)
	if err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}
	defer store.Close()

	handler, err := api.NewHandler(cfg, store, logger)
	if err != nil {
		return err
	}

	port := settings.GetInt("port")
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String(logging.FieldAddress, server.Addr),
			zap.String(logging.FieldPath, dbPath),
		)
		pterm.Info.Printf("API available at http://localhost:%d/api\n", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	pterm.Info.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	pterm.Success.Println("Server stopped")
	return nil
}
