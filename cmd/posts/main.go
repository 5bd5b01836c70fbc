package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/posts/internal/cli"
	"github.com/idilsaglam/posts/internal/config"
	"github.com/idilsaglam/posts/internal/ui"
)

func main() {
	// Root flags (apply to every subcommand)
	groupPending := flag.Bool("group", false, "group print output by pending/done")
	configPath := flag.String("config", "", "config file (default ~/.posts/config.toml)")
	envFile := flag.String("env", ".env", "dotenv file loaded before reading the environment")
	theme := flag.String("theme", "classic", "output theme: classic, neon or mono")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		ui.Fail(err.Error())
		os.Exit(1)
	}
	logger, closeLog := newLogger()

	ui.SetColorForcing(false, *noColor || os.Getenv("NO_COLOR") != "")
	ui.SetTheme(*theme)

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp()
		closeLog()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, args, cli.Options{
		Group:      *groupPending,
		ConfigPath: *configPath,
		Logger:     logger,
	})
	stop()
	closeLog()
	os.Exit(code)
}

// newLogger logs to stderr at info level, debug when DEBUG=true. POSTS_LOG_FILE
// moves logs to a file so they do not tear the interactive view.
func newLogger() (*log.Logger, func()) {
	logger := log.StandardLogger()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger.SetLevel(log.InfoLevel)
	if debug, _ := strconv.ParseBool(os.Getenv("DEBUG")); debug {
		logger.SetLevel(log.DebugLevel)
	}

	path := os.Getenv(cli.EnvLogFile)
	if path == "" {
		return logger, func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		logger.WithError(err).Warn("cannot open log file, logging to stderr")
		return logger, func() {}
	}
	logger.SetOutput(f)
	return logger, func() { _ = f.Close() }
}
