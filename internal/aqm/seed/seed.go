// Package seed applies one-off data migrations and remembers which ones ran.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection holds seed records when no collection name is given.
const DefaultCollection = "_seeds"

// Seed is an idempotent mutation identified by a stable ID.
type Seed struct {
	ID          string
	Description string
	Run         func(ctx context.Context) error
}

// Record is persisted once a seed has run.
type Record struct {
	ID          string    `bson:"_id"`
	Application string    `bson:"application"`
	Description string    `bson:"description"`
	AppliedAt   time.Time `bson:"applied_at"`
}

// Tracker remembers applied seeds.
type Tracker interface {
	HasRun(ctx context.Context, id string) (bool, error)
	MarkRun(ctx context.Context, record Record) error
}

var errNoID = errors.New("seed: record ID is required")

// Apply runs, in order, every seed the tracker has not recorded yet and
// returns the IDs it ran. The whole list is checked before anything runs.
func Apply(ctx context.Context, tracker Tracker, seeds []Seed, application string) ([]string, error) {
	if tracker == nil {
		return nil, errors.New("seed: tracker is required")
	}
	if err := check(seeds); err != nil {
		return nil, err
	}

	var applied []string
	for _, s := range seeds {
		done, err := tracker.HasRun(ctx, s.ID)
		if err != nil {
			return applied, fmt.Errorf("seed %s: status: %w", s.ID, err)
		}
		if done {
			continue
		}
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		if err := s.Run(ctx); err != nil {
			return applied, fmt.Errorf("seed %s: run: %w", s.ID, err)
		}
		rec := Record{ID: s.ID, Application: application, Description: s.Description, AppliedAt: time.Now().UTC()}
		if err := tracker.MarkRun(ctx, rec); err != nil {
			return applied, fmt.Errorf("seed %s: record: %w", s.ID, err)
		}
		applied = append(applied, s.ID)
	}
	return applied, nil
}

func check(seeds []Seed) error {
	seen := make(map[string]bool, len(seeds))
	for i, s := range seeds {
		switch {
		case strings.TrimSpace(s.ID) == "":
			return fmt.Errorf("seed #%d: missing ID", i)
		case s.Run == nil:
			return fmt.Errorf("seed %s: missing Run", s.ID)
		case seen[s.ID]:
			return fmt.Errorf("seed %s: duplicate ID", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// MongoTracker keeps records in a collection keyed by seed ID.
type MongoTracker struct {
	coll *mongo.Collection
}

// NewMongoTracker uses DefaultCollection when collection is blank.
func NewMongoTracker(db *mongo.Database, collection string) *MongoTracker {
	if strings.TrimSpace(collection) == "" {
		collection = DefaultCollection
	}
	return &MongoTracker{coll: db.Collection(collection)}
}

func (t *MongoTracker) HasRun(ctx context.Context, id string) (bool, error) {
	if t == nil || t.coll == nil {
		return false, errors.New("seed: mongo tracker not initialized")
	}
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	switch err := t.coll.FindOne(ctx, bson.M{"_id": id}, opts).Err(); {
	case err == nil:
		return true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return false, nil
	default:
		return false, err
	}
}

// MarkRun upserts with $setOnInsert, so a record written first by another
// instance is kept as is.
func (t *MongoTracker) MarkRun(ctx context.Context, record Record) error {
	if t == nil || t.coll == nil {
		return errors.New("seed: mongo tracker not initialized")
	}
	if record.ID == "" {
		return errNoID
	}
	_, err := t.coll.UpdateOne(ctx,
		bson.M{"_id": record.ID},
		bson.M{"$setOnInsert": bson.M{
			"application": record.Application,
			"description": record.Description,
			"applied_at":  record.AppliedAt,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// MemoryTracker lives as long as the process, like the in-memory store.
type MemoryTracker struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{records: map[string]Record{}}
}

func (t *MemoryTracker) HasRun(_ context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.records[id]
	return ok, nil
}

func (t *MemoryTracker) MarkRun(_ context.Context, record Record) error {
	if record.ID == "" {
		return errNoID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[record.ID]; !ok {
		t.records[record.ID] = record
	}
	return nil
}

// Records returns what has been marked so far, in no particular order.
func (t *MemoryTracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r)
	}
	return out
}
