package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/banshee-data/perception-eval/internal/api"
	"github.com/banshee-data/perception-eval/internal/db"
	"github.com/banshee-data/perception-eval/internal/monitoring"
	"github.com/banshee-data/perception-eval/internal/storage/sqlite"
)

func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	listen := fs.String("listen", ":8080", "HTTP listen address")
	grpcListen := fs.String("grpc-listen", ":50051", "gRPC listen address; empty to disable")
	dbPath := fs.String("db", defaultDBPath, "Results database")
	artifacts := fs.String("artifacts", "eval_out", "Directory evaluate wrote report files to; empty to disable file serving")
	logLevel := fs.String("log-level", "info", "Log level")
	logFormat := fs.String("log-format", "text", "Log format: text or json")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if *listen == "" {
		fmt.Fprintln(stderr, "serve: -listen is required")
		return exitError
	}
	if err := monitoring.Configure(*logLevel, *logFormat, stderr); err != nil {
		fmt.Fprintf(stderr, "serve: %v\n", err)
		return exitError
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		monitoring.Logger.WithError(err).Error("failed to open database")
		return exitError
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, database, *listen, *grpcListen, *artifacts); err != nil {
		monitoring.Logger.WithError(err).Error("server stopped")
		return exitError
	}
	return exitPass
}

// newHTTPHandler mounts the JSON API under /api/ and the admin routes under
// /debug/.
func newHTTPHandler(database *db.DB, store *sqlite.RunStore, artifacts string) (http.Handler, error) {
	mux := http.NewServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	mux.Handle("/api/", api.NewServer(store, artifacts).ServeMux())
	return api.LoggingMiddleware(mux), nil
}

func serve(ctx context.Context, database *db.DB, listen, grpcListen, artifacts string) error {
	store := sqlite.NewRunStore(database.DB)
	handler, err := newHTTPHandler(database, store, artifacts)
	if err != nil {
		return err
	}
	server := &http.Server{Addr: listen, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	var grpcServer *grpc.Server
	var grpcLis net.Listener
	if grpcListen != "" {
		grpcLis, err = net.Listen("tcp", grpcListen)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(api.LoggingInterceptor))
		api.RegisterResultsService(grpcServer, api.NewResultsServer(store))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitoring.Logger.WithField("addr", listen).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			monitoring.Logger.WithField("addr", grpcListen).Info("gRPC server listening")
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		monitoring.Logf("shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
