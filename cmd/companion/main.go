package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/companion/api/client"
	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/internal/config"
	"github.com/fastygo/companion/internal/services/lifecycle"
	"github.com/fastygo/companion/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("companion", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", "", "override API_BASE_URL (e.g. https://api.example.com)")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: companion [-server url] [-v] <command> [args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("config error: %v", err)
		return 1
	}
	if *server != "" {
		cfg.API.BaseURL = strings.TrimRight(*server, "/")
		if err := cfg.Validate(); err != nil {
			log.Printf("config error: %v", err)
			return 1
		}
	}
	if *verbose {
		cfg.Logger.Level = "debug"
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Name:     cfg.AppName,
		Output:   stderr,
	})
	if err != nil {
		log.Printf("logger error: %v", err)
		return 1
	}
	defer zapLogger.Sync() //nolint:errcheck

	return execute(context.Background(), cfg, zapLogger, nil, fs.Args(), stdout, stderr)
}

// execute wires the app and runs one command. httpClient is nil outside tests.
func execute(parent context.Context, cfg *config.Config, zapLogger *zap.Logger, httpClient client.Doer, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: companion [-server url] [-v] <command> [args]")
		return 2
	}

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	ctx, stop := manager.SignalContext(parent)
	defer stop()

	a, err := newApp(ctx, cfg, zapLogger, manager, httpClient, stderr)
	if err != nil {
		zapLogger.Error("startup failed", zap.Error(err))
		return 1
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			zapLogger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	name, rest := args[0], args[1:]
	if name == "help" {
		printUsage(stderr, a)
		return 0
	}

	if !a.dispatcher.Has(name) {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		printUsage(stderr, a)
		return 2
	}

	result, err := a.dispatcher.Execute(ctx, name, rest)
	if err != nil {
		fmt.Fprintln(stderr, "error:", domain.Message(err))
		zapLogger.Debug("command failed", zap.String("command", name), zap.Error(err))
		return 1
	}
	printResult(stdout, zapLogger, result)
	return 0
}

func printUsage(w io.Writer, a *app) {
	fmt.Fprintln(w, "commands:")
	for _, e := range a.dispatcher.Entries() {
		fmt.Fprintf(w, "  %s\n", e.Usage)
	}
}
