package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/asaidimu/go-criteria/api"
	"github.com/asaidimu/go-criteria/core/persistence"
	"github.com/asaidimu/go-criteria/sqlite"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve models over a JSON API",
		Long: `Open a SQLite database, create the tables of every model in the model
file and serve them at /api/{model}. Listing endpoints accept request
criteria on the query string.`,
		Example:      `  criteria serve --models models.yaml --db app.db --addr :8080`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}

	cmd.Flags().String("db", "criteria.db", "SQLite database file")
	cmd.Flags().String("addr", ":8080", "listen address")

	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions) error {
	cfg, logger := rootOpts.config, rootOpts.logger
	if ctx == nil {
		ctx = context.Background()
	}

	registry, err := cfg.registry()
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	interactor, err := sqlite.NewSQLiteInteractor(db, registry, logger, nil, nil)
	if err != nil {
		return err
	}
	p, err := persistence.NewPersistence(interactor, registry,
		persistence.WithLogger(logger),
		persistence.WithCriteriaConfig(cfg.Criteria))
	if err != nil {
		return err
	}
	if err := p.Migrate(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.CORSMiddleware(api.NewServer(p, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting API server", zap.String("address", cfg.Addr), zap.Strings("models", p.Collections()))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
