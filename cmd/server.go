package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"tablature/api"
	"tablature/api/router/handlers"
	"tablature/config"
	"tablature/core"
	"tablature/i18n"
	"tablature/logger"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

var serverPort string

const shutdownTimeout = 5 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the table pages, the widget JSON API and /metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		portToUse := serverPort
		if portToUse == "" {
			portToUse = config.AppConfig.Server.Port
		}
		if portToUse == "" {
			portToUse = config.DefaultServerPort
		}

		deps, err := buildDeps(config.AppConfig)
		if err != nil {
			logger.Error("Server Command: %v", err)
			return err
		}

		logger.Info("--- Server Command: Run ---")
		server := &http.Server{
			Addr:              ":" + portToUse,
			Handler:           api.NewRouter(deps, config.AppConfig.Server.StaticDir),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, server)
	},
}

// serve runs server until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server Command: Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server Command: ListenAndServe error: %v", err)
			return fmt.Errorf("could not start server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Server Command: Shutdown signal received...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server Command: Graceful shutdown failed: %v", err)
		return err
	}
	logger.Info("Server Command: Gracefully stopped.")
	return nil
}

// buildDeps turns the loaded configuration into what the handlers need.
func buildDeps(cfg config.Configuration) (*handlers.Deps, error) {
	catalog, err := i18n.Default()
	if err != nil {
		return nil, fmt.Errorf("loading translations: %w", err)
	}
	defaultTag, err := language.Parse(strings.TrimSpace(cfg.I18n.DefaultLocale))
	if err != nil {
		logger.Warn("Invalid i18n.default_locale %q (%v); using %s", cfg.I18n.DefaultLocale, err, config.DefaultLocale)
		defaultTag = language.MustParse(config.DefaultLocale)
	}
	hook, err := core.ParseReadyHook(cfg.Widget.ReadyHook)
	if err != nil {
		return nil, fmt.Errorf("widget.ready_hook: %w", err)
	}
	selector := strings.TrimSpace(cfg.Widget.Selector)
	if selector == "" {
		selector = core.DefaultSelector
	}
	if _, ok := handlers.ElementID(selector); !ok {
		return nil, fmt.Errorf("widget.selector %q: the table page needs an id selector such as %q", selector, core.DefaultSelector)
	}
	for _, def := range cfg.Tables {
		if _, err := core.CellPolicy(def.CellPolicy); err != nil {
			return nil, fmt.Errorf("table %q: %w", def.Name, err)
		}
	}

	return &handlers.Deps{
		Tables:        core.NewTableService(cfg.Tables),
		Catalog:       catalog,
		DefaultLocale: defaultTag,
		Selector:      selector,
		ReadyHook:     hook,
		ScriptURLs:    cfg.Server.ScriptURLs,
	}, nil
}

func init() {
	serverCmd.Flags().StringVarP(&serverPort, "port", "p", "", "Port for the server to listen on (overrides config, default "+config.DefaultServerPort+")")
	rootCmd.AddCommand(serverCmd)
}
