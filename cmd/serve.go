package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/api"
	"github.com/sells-group/campus-locator/internal/pipeline"
	"github.com/sells-group/campus-locator/internal/store"
)

var (
	servePort    int
	servePersist bool
	serveTrain   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		var st store.Store
		if servePersist {
			var err error
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		svc := newService(st)
		if serveTrain {
			// A failed initial train leaves the API up; POST /api/v1/train retries.
			if _, err := svc.Train(ctx, cfg.TrainOptions()); err != nil {
				zap.L().Warn("initial training failed", zap.Error(err))
			}
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newAPIServer(svc).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.Bool("trained", svc.Trained()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newAPIServer(svc *pipeline.Service) *api.Server {
	return api.NewServer(svc, api.Config{
		RateLimitRPS: cfg.Server.RateLimitRPS,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Defaults:     cfg.TrainOptions(),
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&servePersist, "persist", false, "record training runs in the store")
	serveCmd.Flags().BoolVar(&serveTrain, "train", true, "train from source.data_dir before serving")
	rootCmd.AddCommand(serveCmd)
}
