package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rcrowley/go-metrics"
	"github.com/urfave/cli/v2"
)

// connectFunc opens the database the workload runs against and returns a
// function releasing the connection.
type connectFunc func(ctx context.Context, cfg ConnectionConfig) (DatabaseAPI, func(context.Context) error, error)

func connectMongoDB(ctx context.Context, cfg ConnectionConfig) (DatabaseAPI, func(context.Context) error, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Disconnect, nil
}

// NewApp returns the mongodb-loadgen command.
func NewApp() *cli.App {
	return newApp(connectMongoDB, DefaultPlan())
}

func newApp(connect connectFunc, plan Plan) *cli.App {
	flags, before := GetFlagsAndBeforeFunc()

	return &cli.App{
		Before:    before,
		Flags:     flags,
		Name:      "mongodb-loadgen",
		Usage:     "Replays a fixed insert, index, query, update and delete load against MongoDB, then shuts the server down",
		UsageText: "mongodb-loadgen [options]",
		Action: func(c *cli.Context) error {
			return runLoad(c, connect, plan)
		},
	}
}

func runLoad(c *cli.Context, connect connectFunc, plan Plan) error {
	o := NewOptionsFromCLIContext(c)
	SetupLogger(o.Verbosity)
	slog.Debug(fmt.Sprintf("%+v", o))

	ctx := c.Context
	db, disconnect, err := connect(ctx, o.Connection())
	if err != nil {
		return err
	}
	defer func() {
		// expected to fail once the server has been shut down
		if err := disconnect(context.Background()); err != nil {
			slog.Debug("Disconnect failed", "err", err)
		}
	}()

	registry := metrics.NewRegistry()
	reporter := NewReporter(registry, o.ReportInterval)
	workload := NewWorkload(plan, c.App.Writer)
	workload.OnStage = reporter.SetStage

	slog.Info("Starting workload", "database", o.Database, "collection", o.Collection)
	reporter.Start()
	runErr := workload.Run(ctx, NewMeteredDatabase(db, registry, reporter.Meter()))
	reporter.Stop()
	reporter.LogSummary()

	if filename := o.ReportFilename(); filename != "" {
		if err := reporter.WriteCSV(filename); err != nil {
			slog.Error("Failed to save results", "err", err)
		} else {
			slog.Info("Results saved", "file", filename)
		}
	}

	if runErr != nil {
		slog.Error("Workload aborted", "err", runErr)
		return runErr
	}
	slog.Info("Workload completed")
	return nil
}
