package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := Run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// Run executes a command line and returns the process exit code:
//
//	gridmaker [grid flags]            build a grid
//	gridmaker -config batch.yaml      build the grids of a batch file
//	gridmaker union -i in -o out      union the polygons of a file
//	gridmaker serve [-addr :5002]     start the grid service
func Run(ctx context.Context, args []string, out io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, "failed to read .env:", err)
	}
	level, err := ParseLogLevel(os.Getenv("GRIDMAKER_LOG_LEVEL"))
	lvl := SetupLogging(out, level)
	if err != nil {
		slog.Warn(err.Error())
	}

	if len(args) > 0 {
		switch args[0] {
		case "union":
			return _ExitCode(RunUnion(ctx, args[1:], out))
		case "serve":
			return _ExitCode(RunServe(ctx, args[1:], out))
		}
	}

	opts, err := ParseOptions(args, out)
	if err != nil {
		return _ExitCode(err)
	}
	if opts.LogLevel != "" {
		_SetLevel(lvl, opts.LogLevel)
	}
	if opts.Config != "" {
		config, err := ReadConfig(opts.Config)
		if err != nil {
			return _ExitCode(err)
		}
		if opts.LogLevel == "" {
			_SetLevel(lvl, config.LogLevel)
		}
		_, err = RunBatch(ctx, config)
		return _ExitCode(err)
	}
	return _ExitCode(RunGrid(ctx, opts))
}

func _SetLevel(lvl *slog.LevelVar, value string) {
	level, err := ParseLogLevel(value)
	if err != nil {
		slog.Warn(err.Error())
		return
	}
	lvl.Set(level)
}

func _ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	default:
		slog.Error(err.Error())
		return 1
	}
}
