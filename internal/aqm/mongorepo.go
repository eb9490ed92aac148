package aqm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrRepoNotFound = errors.New("repository: document not found")
	ErrInvalidID    = errors.New("repository: invalid document id")
)

// UpdateResult counts the documents an update matched and changed.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// ParseID accepts the 24 character hex form of an ObjectID.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w %q: %v", ErrInvalidID, hex, err)
	}
	return id, nil
}

type mongoRepoConfig struct {
	opTimeout time.Duration
}

type MongoRepoOption func(*mongoRepoConfig)

// WithOpTimeout caps each call. Non-positive values are ignored.
func WithOpTimeout(d time.Duration) MongoRepoOption {
	return func(cfg *mongoRepoConfig) {
		if d > 0 {
			cfg.opTimeout = d
		}
	}
}

// MongoRepo stores documents of type T keyed by ObjectID.
type MongoRepo[T any] struct {
	coll *mongo.Collection
	cfg  mongoRepoConfig
}

func NewMongoRepo[T any](coll *mongo.Collection, opts ...MongoRepoOption) (*MongoRepo[T], error) {
	if coll == nil {
		return nil, errors.New("repository: collection is required")
	}
	repo := &MongoRepo[T]{coll: coll}
	for _, opt := range opts {
		opt(&repo.cfg)
	}
	return repo, nil
}

func (r *MongoRepo[T]) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.opTimeout > 0 {
		return context.WithTimeout(ctx, r.cfg.opTimeout)
	}
	return context.WithCancel(ctx)
}

func byID(id primitive.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func repoErr(op string, err error) error {
	return fmt.Errorf("repository %s: %w", op, err)
}

// Insert returns the ObjectID the driver assigned to doc.
func (r *MongoRepo[T]) Insert(ctx context.Context, doc T) (primitive.ObjectID, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return primitive.NilObjectID, repoErr("insert", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		return id, nil
	}
	return primitive.NilObjectID, repoErr("insert", fmt.Errorf("unexpected id type %T", res.InsertedID))
}

func (r *MongoRepo[T]) FindByID(ctx context.Context, id primitive.ObjectID) (T, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var doc T
	err := r.coll.FindOne(ctx, byID(id)).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return doc, ErrRepoNotFound
	case err != nil:
		return doc, repoErr("find", err)
	}
	return doc, nil
}

// List decodes every document matching filter in natural order. A nil filter
// matches everything and an empty result is a non-nil slice.
func (r *MongoRepo[T]) List(ctx context.Context, filter any) ([]T, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if filter == nil {
		filter = bson.D{}
	}
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, repoErr("list", err)
	}
	defer cur.Close(ctx)

	out := []T{}
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return nil, repoErr("decode", err)
		}
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, repoErr("list", err)
	}
	return out, nil
}

// SetFields runs a $set of fields against the document with id.
func (r *MongoRepo[T]) SetFields(ctx context.Context, id primitive.ObjectID, fields any) (UpdateResult, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, byID(id), bson.D{{Key: "$set", Value: fields}})
	if err != nil {
		return UpdateResult{}, repoErr("update", err)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// Delete reports 0 when nothing had id.
func (r *MongoRepo[T]) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return 0, repoErr("delete", err)
	}
	return res.DeletedCount, nil
}
