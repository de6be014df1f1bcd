package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wiltonsr/ldapfetch"
)

type serveParameters struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

var serveParams = &serveParameters{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve directory URLs over HTTP, e.g. GET /ldap://host/dc=example,dc=com?cn?sub",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, config, serveParams)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveParams.Listen, "listen", "l", ":8080", "Address to listen on")
	serveCmd.Flags().DurationVarP(&serveParams.ReadTimeout, "read-timeout", "", 10*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVarP(&serveParams.WriteTimeout, "write-timeout", "", 60*time.Second, "HTTP write timeout")
	serveCmd.Flags().DurationVarP(&serveParams.IdleTimeout, "idle-timeout", "", 120*time.Second, "HTTP keep-alive idle timeout")
	serveCmd.Flags().DurationVarP(&serveParams.ShutdownTimeout, "shutdown-timeout", "", 15*time.Second, "Grace period for in-flight requests on shutdown")

	// access log lines are Info
	serveCmd.PreRun = func(cmd *cobra.Command, args []string) {
		log.SetOutput(os.Stdout)
		if !params.Verbose {
			log.SetLevel(log.InfoLevel)
		}
	}
}

func runServe(ctx context.Context, config *ldapfetch.Config, p *serveParameters) error {
	handler, err := ldapfetch.New(ctx, http.NotFoundHandler(), config, ToolName)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         p.Listen,
		Handler:      handler,
		ReadTimeout:  p.ReadTimeout,
		WriteTimeout: p.WriteTimeout,
		IdleTimeout:  p.IdleTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		log.WithField("listen", p.Listen).Info("gateway listening")
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), p.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
