package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gitfeed/internal"
	"gitfeed/pkg/api"
	"gitfeed/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook receiver and feed server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := internal.NewLogger("server")
	config, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := internal.OpenEventStore(config.Storage)
	if err != nil {
		return fmt.Errorf("open %s store: %w", config.Storage.Driver, err)
	}
	defer store.Close()
	logger.Printf("storage driver=%s", config.Storage.Driver)

	notifier, err := internal.NewNotifierFromConfig(config, internal.NewLogger("notify"))
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	defer notifier.Close()
	if notifier != nil {
		logger.Printf("notifications enabled drivers=%v", config.Notify.Drivers)
	}

	if config.GitHub.Secret == "" {
		logger.Printf("warning: no webhook secret configured, signatures are not verified")
	}
	ghHandler, err := webhook.NewGitHubHandler(
		config.GitHub.Secret,
		store,
		notifier,
		internal.NewLogger("webhook"),
		config.Server.MaxBodyBytes,
	)
	if err != nil {
		return fmt.Errorf("github handler: %w", err)
	}
	logger.Printf("github webhook enabled on %s", config.GitHub.Path)

	router := api.NewRouter(api.RouterConfig{
		Server:      config.Server,
		Feed:        config.Feed,
		WebhookPath: config.GitHub.Path,
		Webhook:     ghHandler,
		Store:       store,
		Logger:      internal.NewLogger("api"),
	})

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-shutdown:
		logger.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	return nil
}
