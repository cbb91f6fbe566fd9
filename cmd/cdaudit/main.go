package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditerr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, auditerr.Display(ee.err))
		}
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, auditerr.Display(err))
	os.Exit(1)
}

// exitError carries a process exit code out of a command. A nil err exits
// silently; the command has already reported the outcome.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// Exit codes beyond the generic 1.
const (
	exitAuditFailed = 2
	exitFindings    = 3
)
