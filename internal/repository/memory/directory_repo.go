package memory

import (
	"context"

	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
)

type personRepo struct {
	store *Store
}

func (r *personRepo) GetByID(ctx context.Context, id string) (*domain.Person, error) {
	p, ok := r.store.read(ctx).people[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

type exerciseRepo struct {
	store *Store
}

func (r *exerciseRepo) GetByID(ctx context.Context, id string) (*domain.Exercise, error) {
	e, ok := r.store.read(ctx).exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}
