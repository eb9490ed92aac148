package customer

import (
	"context"
	"errors"
	"time"

	"github.com/aquamarinepk/customers/internal/aqm"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore persists customers in a Mongo collection.
type MongoStore struct {
	repo       *aqm.MongoRepo[Customer]
	collection *mongo.Collection
}

// NewMongoStore builds a store over collection. opTimeout bounds each call
// when positive.
func NewMongoStore(collection *mongo.Collection, opTimeout time.Duration) (*MongoStore, error) {
	repo, err := aqm.NewMongoRepo[Customer](collection, aqm.WithOpTimeout(opTimeout))
	if err != nil {
		return nil, err
	}
	return &MongoStore{repo: repo, collection: collection}, nil
}

func (s *MongoStore) Insert(ctx context.Context, c Customer) (Customer, error) {
	doc := c.Fields().Customer()
	id, err := s.repo.Insert(ctx, doc)
	if err != nil {
		return Customer{}, err
	}
	doc.ID = id
	return doc, nil
}

func (s *MongoStore) FindAll(ctx context.Context) ([]Customer, error) {
	return s.repo.List(ctx, nil)
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (Customer, error) {
	oid, err := aqm.ParseID(id)
	if err != nil {
		return Customer{}, err
	}
	c, err := s.repo.FindByID(ctx, oid)
	if errors.Is(err, aqm.ErrRepoNotFound) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (s *MongoStore) UpdateByID(ctx context.Context, id string, fields Fields) (aqm.UpdateResult, error) {
	oid, err := aqm.ParseID(id)
	if err != nil {
		return aqm.UpdateResult{}, err
	}
	return s.repo.SetFields(ctx, oid, fields)
}

func (s *MongoStore) DeleteByID(ctx context.Context, id string) (int64, error) {
	oid, err := aqm.ParseID(id)
	if err != nil {
		return 0, err
	}
	return s.repo.Delete(ctx, oid)
}

// Ping checks the primary behind the collection's client.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, readpref.Primary())
}
