package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	StageInsertSmall = "insert 1M"
	StageInsertLarge = "insert 1k"
	StageBuildIndex  = "build index"
	StageFindSort    = "find+sort"
	StageUpdate      = "update"
	StageRemove      = "remove"
	StageShutdown    = "shutdown"
)

// Plan holds the sizes of the workload stages.
type Plan struct {
	SmallDocs    int
	LargeDocs    int
	ReplacedDocs int
	RangeBound   int
	PayloadSize  int
}

func DefaultPlan() Plan {
	return Plan{
		SmallDocs:    1_000_000,
		LargeDocs:    1_000,
		ReplacedDocs: 10,
		RangeBound:   20_000,
		PayloadSize:  1024 * 1024,
	}
}

type Stage struct {
	Label string
	Run   func(ctx context.Context, db DatabaseAPI) error
}

// StageError reports the stage whose operation failed. Stages after it did not run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Workload runs a fixed sequence of stages against one database, one operation at a time.
type Workload struct {
	out    io.Writer
	stages []Stage

	// OnStage, if set, is called with each stage label before the stage runs.
	OnStage func(label string)
}

func NewWorkload(plan Plan, out io.Writer) *Workload {
	return &Workload{
		out:    out,
		stages: buildStages(plan),
	}
}

func (w *Workload) Stages() []Stage {
	return w.stages
}

// Run executes every stage in order and stops at the first failing operation.
func (w *Workload) Run(ctx context.Context, db DatabaseAPI) error {
	for _, stage := range w.stages {
		fmt.Fprintf(w.out, "--- %s\n", stage.Label)
		if w.OnStage != nil {
			w.OnStage(stage.Label)
		}

		start := time.Now()
		slog.Info("Stage started", "stage", stage.Label)
		if err := stage.Run(ctx, db); err != nil {
			return &StageError{Stage: stage.Label, Err: err}
		}
		slog.Info("Stage finished", "stage", stage.Label, "duration", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func buildStages(plan Plan) []Stage {
	docGen := NewDocumentGenerator(plan.PayloadSize)
	queryGen := NewQueryGenerator(plan.RangeBound)

	return []Stage{
		{
			Label: StageInsertSmall,
			Run: func(ctx context.Context, db DatabaseAPI) error {
				for i := 0; i < plan.SmallDocs; i++ {
					if _, err := db.InsertOne(ctx, docGen.GenerateSmall(i), nil); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Label: StageInsertLarge,
			Run: func(ctx context.Context, db DatabaseAPI) error {
				wc := writeconcern.Majority()
				for i := 0; i < plan.LargeDocs; i++ {
					if _, err := db.InsertOne(ctx, docGen.GenerateLarge(i), wc); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Label: StageBuildIndex,
			Run: func(ctx context.Context, db DatabaseAPI) error {
				if _, err := db.CreateIndex(ctx, queryGen.NumberAscending(), nil); err != nil {
					return err
				}
				if err := db.DropIndexes(ctx); err != nil {
					return err
				}
				// number is not unique at this point (stages 1 and 2 overlap), so the server rejects this
				_, err := db.CreateIndex(ctx, queryGen.NumberAscending(), options.Index().SetUnique(true))
				return err
			},
		},
		{
			Label: StageFindSort,
			Run: func(ctx context.Context, db DatabaseAPI) error {
				cursor, err := db.Find(ctx, queryGen.BelowBound(), options.Find().SetSort(queryGen.NumberDescending()))
				if err != nil {
					return err
				}
				// results are never read
				return cursor.Close(ctx)
			},
		},
		{
			Label: StageUpdate,
			Run: func(ctx context.Context, db DatabaseAPI) error {
				for i := 0; i < plan.ReplacedDocs; i++ {
					if _, err := db.ReplaceOne(ctx, queryGen.ByNumber(i), docGen.GenerateLarge(i)); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Label: StageRemove,
			Run: func(ctx context.Context, db DatabaseAPI) error {
				_, err := db.DeleteMany(ctx, queryGen.All())
				return err
			},
		},
		{
			Label: StageShutdown,
			Run: func(ctx context.Context, db DatabaseAPI) error {
				if err := db.DropDatabase(ctx); err != nil {
					return err
				}
				return db.ShutdownServer(ctx)
			},
		},
	}
}
