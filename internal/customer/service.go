package customer

import (
	"context"
	"errors"

	"github.com/aquamarinepk/customers/internal/aqm"
)

// Service applies presence validation and turns store outcomes into the
// error taxonomy the handler maps to status codes. Every method issues at
// most one store call.
type Service struct {
	store  Store
	logger aqm.Logger
}

// NewService wires the customer service around an injected store.
func NewService(store Store, logger aqm.Logger) *Service {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Service{store: store, logger: logger}
}

func (s *Service) Create(ctx context.Context, fields Fields) (Customer, error) {
	if err := fields.Validate(); err != nil {
		return Customer{}, err
	}
	created, err := s.store.Insert(ctx, fields.Customer())
	if err != nil {
		return Customer{}, &StoreError{Op: "create", Err: err}
	}
	s.logger.Debug("customer created", "id", created.ID.Hex(), "request_id", aqm.RequestIDFrom(ctx))
	return created, nil
}

func (s *Service) List(ctx context.Context) ([]Customer, error) {
	customers, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	if customers == nil {
		customers = []Customer{}
	}
	return customers, nil
}

func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	found, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, &StoreError{Op: "get", Err: err}
	}
	return found, nil
}

// Update replaces all three fields. Absence is judged on the modified count,
// so resubmitting the stored values answers ErrNotFound.
func (s *Service) Update(ctx context.Context, id string, fields Fields) error {
	if err := fields.Validate(); err != nil {
		return err
	}
	res, err := s.store.UpdateByID(ctx, id, fields)
	if err != nil {
		return &StoreError{Op: "update", Err: err}
	}
	if res.Modified == 0 {
		s.logger.Debug("customer not modified", "id", id, "matched", res.Matched, "request_id", aqm.RequestIDFrom(ctx))
		return ErrNotFound
	}
	s.logger.Debug("customer updated", "id", id, "request_id", aqm.RequestIDFrom(ctx))
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	if deleted == 0 {
		return ErrNotFound
	}
	s.logger.Debug("customer deleted", "id", id, "request_id", aqm.RequestIDFrom(ctx))
	return nil
}

// Ready pings the store when it supports it.
func (s *Service) Ready(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
