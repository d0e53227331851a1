package main

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// memoryDatabase is an in-memory DatabaseAPI that understands exactly the
// filters, sorts and indexes the workload issues.
type memoryDatabase struct {
	docs          []bson.D
	writeConcerns []*writeconcern.WriteConcern
	indexes       map[string]bool // name -> unique
	lastFind      []int64
	dropped       bool
	shutdown      bool
}

func newMemoryDatabase() *memoryDatabase {
	return &memoryDatabase{indexes: map[string]bool{}}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func lookup(doc bson.D, key string) (interface{}, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func numberOf(doc bson.D) (int64, bool) {
	v, ok := lookup(doc, fieldNumber)
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

func matches(doc bson.D, filter bson.D) bool {
	for _, cond := range filter {
		if cond.Key != fieldNumber {
			panic(fmt.Sprintf("unsupported filter field %q", cond.Key))
		}
		n, ok := numberOf(doc)
		if !ok {
			return false
		}
		switch want := cond.Value.(type) {
		case bson.D:
			for _, op := range want {
				bound, _ := toInt64(op.Value)
				if op.Key != "$lt" {
					panic(fmt.Sprintf("unsupported operator %q", op.Key))
				}
				if n >= bound {
					return false
				}
			}
		default:
			v, _ := toInt64(want)
			if n != v {
				return false
			}
		}
	}
	return true
}

func (m *memoryDatabase) withNumber(n int64) []bson.D {
	var out []bson.D
	for _, doc := range m.docs {
		if v, ok := numberOf(doc); ok && v == n {
			out = append(out, doc)
		}
	}
	return out
}

func (m *memoryDatabase) hasDuplicateNumbers() bool {
	seen := map[int64]bool{}
	for _, doc := range m.docs {
		n, _ := numberOf(doc)
		if seen[n] {
			return true
		}
		seen[n] = true
	}
	return false
}

func (m *memoryDatabase) uniqueNumber() bool {
	for _, unique := range m.indexes {
		if unique {
			return true
		}
	}
	return false
}

func (m *memoryDatabase) InsertOne(_ context.Context, document interface{}, wc *writeconcern.WriteConcern) (*mongo.InsertOneResult, error) {
	doc := document.(bson.D)
	if m.uniqueNumber() {
		n, _ := numberOf(doc)
		if len(m.withNumber(n)) > 0 {
			return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{
				Code:    11000,
				Message: fmt.Sprintf("E11000 duplicate key error index: number_1 dup key: { number: %d }", n),
			}}}
		}
	}
	m.docs = append(m.docs, doc)
	m.writeConcerns = append(m.writeConcerns, wc)
	return &mongo.InsertOneResult{InsertedID: len(m.docs)}, nil
}

func (m *memoryDatabase) CreateIndex(_ context.Context, _ interface{}, opts *options.IndexOptions) (string, error) {
	unique := opts != nil && opts.Unique != nil && *opts.Unique
	if unique && m.hasDuplicateNumbers() {
		return "", mongo.CommandError{
			Code:    11000,
			Name:    "DuplicateKey",
			Message: "E11000 duplicate key error index: number_1",
		}
	}
	m.indexes["number_1"] = unique
	return "number_1", nil
}

func (m *memoryDatabase) DropIndexes(_ context.Context) error {
	m.indexes = map[string]bool{}
	return nil
}

func (m *memoryDatabase) Find(_ context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	var found []bson.D
	for _, doc := range m.docs {
		if matches(doc, filter.(bson.D)) {
			found = append(found, doc)
		}
	}
	for _, o := range opts {
		if o == nil || o.Sort == nil {
			continue
		}
		dir, _ := toInt64(o.Sort.(bson.D)[0].Value)
		sort.SliceStable(found, func(i, j int) bool {
			a, _ := numberOf(found[i])
			b, _ := numberOf(found[j])
			if dir < 0 {
				return a > b
			}
			return a < b
		})
	}

	m.lastFind = m.lastFind[:0]
	results := make([]interface{}, 0, len(found))
	for _, doc := range found {
		n, _ := numberOf(doc)
		m.lastFind = append(m.lastFind, n)
		results = append(results, doc)
	}
	return mongo.NewCursorFromDocuments(results, nil, nil)
}

func (m *memoryDatabase) ReplaceOne(_ context.Context, filter interface{}, replacement interface{}) (*mongo.UpdateResult, error) {
	for i, doc := range m.docs {
		if matches(doc, filter.(bson.D)) {
			m.docs[i] = replacement.(bson.D)
			return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}
	return &mongo.UpdateResult{}, nil
}

func (m *memoryDatabase) DeleteMany(_ context.Context, filter interface{}) (*mongo.DeleteResult, error) {
	var kept []bson.D
	for _, doc := range m.docs {
		if !matches(doc, filter.(bson.D)) {
			kept = append(kept, doc)
		}
	}
	deleted := len(m.docs) - len(kept)
	m.docs = kept
	return &mongo.DeleteResult{DeletedCount: int64(deleted)}, nil
}

func (m *memoryDatabase) DropDatabase(_ context.Context) error {
	m.docs = nil
	m.indexes = map[string]bool{}
	m.dropped = true
	return nil
}

func (m *memoryDatabase) ShutdownServer(_ context.Context) error {
	m.shutdown = true
	return nil
}
