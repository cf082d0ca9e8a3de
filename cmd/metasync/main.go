package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Exit statuses: 1 for errors that stopped the command, 2 when a sync
// finished but some directories failed, 130 when interrupted.
func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	var partial *failedDirectoriesError
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "interrupted")
		os.Exit(130)
	case errors.As(err, &partial):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
