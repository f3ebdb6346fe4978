// Package main - точка входа grouper: распределение студентов класса по
// проектным группам.
//
// Команды:
//   - plan: число и размеры групп без кластеризации
//   - sort: распределение анкет из JSON-файла
//   - generate: распределение класса из PostgreSQL с записью номеров групп
//   - serve: HTTP API
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/metrocollab/grouper/internal/domain/shared"
)

// Коды выхода.
const (
	exitOK            = 0
	exitFailure       = 1
	exitInvalidConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitCode(err)
}

// exitCode maps errors rejected before any computation to exitInvalidConfig.
func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage), shared.IsInvalidConfiguration(err):
		return exitInvalidConfig
	default:
		return exitFailure
	}
}

// usageError marks flag and argument problems.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }
