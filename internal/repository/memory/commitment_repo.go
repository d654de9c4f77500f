package memory

import (
	"context"
	"time"

	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
	"alcyxob/trainer-schedule/internal/temporal"
)

type commitmentRepo struct {
	store *Store
}

func (r *commitmentRepo) Create(ctx context.Context, c *domain.Commitment) error {
	return r.store.write(ctx, func(d *dataset) error {
		if c.ID == "" {
			c.ID = r.store.newID()
		}
		c.CreatedAt = r.store.now()
		for _, other := range d.commitments {
			if other.StudentID == c.StudentID && other.SeriesID == c.SeriesID && temporal.Overlaps(other, *c) {
				return repository.ErrConcurrentModification
			}
		}
		d.commitments[c.ID] = *c
		return nil
	})
}

func (r *commitmentRepo) list(ctx context.Context, keep func(domain.Commitment) bool) []domain.Commitment {
	var out []domain.Commitment
	for _, c := range r.store.read(ctx).commitments {
		if keep(c) {
			out = append(out, c)
		}
	}
	temporal.Sort(out)
	return out
}

func (r *commitmentRepo) ListByKey(ctx context.Context, studentID, seriesID string) ([]domain.Commitment, error) {
	return r.list(ctx, func(c domain.Commitment) bool {
		return c.StudentID == studentID && c.SeriesID == seriesID
	}), nil
}

func (r *commitmentRepo) ListBySeries(ctx context.Context, seriesID string) ([]domain.Commitment, error) {
	return r.list(ctx, func(c domain.Commitment) bool { return c.SeriesID == seriesID }), nil
}

func (r *commitmentRepo) ListByStudent(ctx context.Context, studentID string) ([]domain.Commitment, error) {
	return r.list(ctx, func(c domain.Commitment) bool { return c.StudentID == studentID }), nil
}

func (r *commitmentRepo) CloseWindow(ctx context.Context, id string, expectedTo *time.Time, to time.Time) error {
	return r.store.write(ctx, func(d *dataset) error {
		c, ok := d.commitments[id]
		if !ok {
			return repository.ErrNotFound
		}
		if !sameTime(c.EffectiveTo, expectedTo) {
			return repository.ErrConcurrentModification
		}
		c.EffectiveTo = &to
		d.commitments[id] = c
		return nil
	})
}
