package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/driftscan/driftscan/internal/errkind"
)

// Exit codes per §6: 0 success, 1 user error, 2 partial success with
// errors, 3 cancelled/timeout, 10+ internal faults.
const (
	exitSuccess        = 0
	exitUserError      = 1
	exitPartialSuccess = 2
	exitCancelled      = 3
	exitInternalFault  = 10
)

// exitCode lets a RunE report "succeeded, but see errors" (exit 2)
// without turning the run into a cobra error.
var exitCode = exitSuccess

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	os.Exit(classify(err))
}

func classify(err error) int {
	if err == nil {
		return exitCode
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return exitCancelled
	}

	var ke *errkind.Error
	if errors.As(err, &ke) {
		switch ke.Kind {
		case errkind.InvalidArgument, errkind.NotFound:
			fmt.Fprintln(os.Stderr, "Error:", err)
			return exitUserError
		case errkind.DetectorFailure:
			fmt.Fprintln(os.Stderr, "Error:", err)
			return exitPartialSuccess
		default:
			fmt.Fprintln(os.Stderr, "Error:", err)
			return exitInternalFault
		}
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitUserError
}
