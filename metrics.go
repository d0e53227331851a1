package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	opInsert         = "insert"
	opCreateIndex    = "createIndex"
	opDropIndexes    = "dropIndexes"
	opFind           = "find"
	opReplace        = "replace"
	opDelete         = "delete"
	opDropDatabase   = "dropDatabase"
	opShutdownServer = "shutdownServer"
)

// MeteredDatabase times every call of the wrapped DatabaseAPI and marks the
// ops meter for each call that succeeded.
type MeteredDatabase struct {
	db       DatabaseAPI
	registry metrics.Registry
	ops      metrics.Meter
}

func NewMeteredDatabase(db DatabaseAPI, registry metrics.Registry, ops metrics.Meter) *MeteredDatabase {
	return &MeteredDatabase{db: db, registry: registry, ops: ops}
}

func (m *MeteredDatabase) observe(op string, start time.Time, err error) {
	metrics.GetOrRegisterTimer(op, m.registry).UpdateSince(start)
	if err == nil {
		m.ops.Mark(1)
	}
}

func (m *MeteredDatabase) InsertOne(ctx context.Context, document interface{}, wc *writeconcern.WriteConcern) (*mongo.InsertOneResult, error) {
	start := time.Now()
	res, err := m.db.InsertOne(ctx, document, wc)
	m.observe(opInsert, start, err)
	return res, err
}

func (m *MeteredDatabase) CreateIndex(ctx context.Context, keys interface{}, opts *options.IndexOptions) (string, error) {
	start := time.Now()
	name, err := m.db.CreateIndex(ctx, keys, opts)
	m.observe(opCreateIndex, start, err)
	return name, err
}

func (m *MeteredDatabase) DropIndexes(ctx context.Context) error {
	start := time.Now()
	err := m.db.DropIndexes(ctx)
	m.observe(opDropIndexes, start, err)
	return err
}

func (m *MeteredDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	start := time.Now()
	cursor, err := m.db.Find(ctx, filter, opts...)
	m.observe(opFind, start, err)
	return cursor, err
}

func (m *MeteredDatabase) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}) (*mongo.UpdateResult, error) {
	start := time.Now()
	res, err := m.db.ReplaceOne(ctx, filter, replacement)
	m.observe(opReplace, start, err)
	return res, err
}

func (m *MeteredDatabase) DeleteMany(ctx context.Context, filter interface{}) (*mongo.DeleteResult, error) {
	start := time.Now()
	res, err := m.db.DeleteMany(ctx, filter)
	m.observe(opDelete, start, err)
	return res, err
}

func (m *MeteredDatabase) DropDatabase(ctx context.Context) error {
	start := time.Now()
	err := m.db.DropDatabase(ctx)
	m.observe(opDropDatabase, start, err)
	return err
}

func (m *MeteredDatabase) ShutdownServer(ctx context.Context) error {
	start := time.Now()
	err := m.db.ShutdownServer(ctx)
	m.observe(opShutdownServer, start, err)
	return err
}

var reportHeader = []string{"t", "stage", "count", "mean_rate", "m1_rate", "m5_rate", "m15_rate"}

// Reporter logs the ops meter once per interval and keeps every sample as a CSV record.
type Reporter struct {
	registry metrics.Registry
	meter    metrics.Meter
	interval time.Duration

	mu      sync.Mutex
	stage   string
	records [][]string

	done    chan struct{}
	stopped chan struct{}
}

func NewReporter(registry metrics.Registry, interval time.Duration) *Reporter {
	return &Reporter{
		registry: registry,
		meter:    metrics.NewMeter(),
		interval: interval,
		records:  [][]string{reportHeader},
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Meter is the meter MeteredDatabase should mark.
func (r *Reporter) Meter() metrics.Meter {
	return r.meter
}

func (r *Reporter) SetStage(label string) {
	r.mu.Lock()
	r.stage = label
	r.mu.Unlock()
}

func (r *Reporter) Start() {
	go func() {
		defer close(r.stopped)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.sample(true)
			}
		}
	}()
}

// Stop ends periodic sampling and appends a final record. Call it once, after Start.
func (r *Reporter) Stop() {
	close(r.done)
	<-r.stopped
	r.sample(false)
	r.meter.Stop()
}

func (r *Reporter) sample(logIt bool) {
	snapshot := r.meter.Snapshot()
	timestamp := time.Now().Unix()

	r.mu.Lock()
	defer r.mu.Unlock()

	if logIt {
		slog.Info("Progress",
			"stage", r.stage,
			"count", snapshot.Count(),
			"mean_rate", fmt.Sprintf("%.2f ops/sec", snapshot.RateMean()),
			"m1_rate", fmt.Sprintf("%.2f", snapshot.Rate1()),
			"m5_rate", fmt.Sprintf("%.2f", snapshot.Rate5()),
			"m15_rate", fmt.Sprintf("%.2f", snapshot.Rate15()))
	}

	r.records = append(r.records, []string{
		fmt.Sprintf("%d", timestamp),
		r.stage,
		fmt.Sprintf("%d", snapshot.Count()),
		fmt.Sprintf("%.6f", snapshot.RateMean()),
		fmt.Sprintf("%.6f", snapshot.Rate1()),
		fmt.Sprintf("%.6f", snapshot.Rate5()),
		fmt.Sprintf("%.6f", snapshot.Rate15()),
	})
}

func (r *Reporter) Records() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Reporter) WriteCSV(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(r.Records()); err != nil {
		return fmt.Errorf("failed to write records to CSV: %w", err)
	}
	return file.Close()
}

// LogSummary logs count and latency of every operation type seen so far.
func (r *Reporter) LogSummary() {
	timers := map[string]metrics.Timer{}
	r.registry.Each(func(name string, i interface{}) {
		if t, ok := i.(metrics.Timer); ok {
			timers[name] = t.Snapshot()
		}
	})

	names := make([]string, 0, len(timers))
	for name := range timers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := timers[name]
		slog.Info("Operation summary",
			"op", name,
			"count", t.Count(),
			"mean", time.Duration(t.Mean()).Round(time.Microsecond),
			"p99", time.Duration(t.Percentile(0.99)).Round(time.Microsecond),
			"max", time.Duration(t.Max()))
	}
}
