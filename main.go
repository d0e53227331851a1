package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-sigChan
		cancel()
	}()

	app := NewApp()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, exitMessage(err))
		os.Exit(1)
	}
}

// exitMessage repeats err only when the run did not already log it.
func exitMessage(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return "mongodb-loadgen exited with error"
	}
	return fmt.Sprintf("mongodb-loadgen exited with error: %v", err)
}
