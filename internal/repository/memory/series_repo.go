package memory

import (
	"context"
	"time"

	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
	"alcyxob/trainer-schedule/internal/temporal"
)

type seriesRepo struct {
	store *Store
}

// overlapsActive mirrors the exclusion constraint of the SQL backend.
func overlapsActive(d *dataset, candidate domain.Series) bool {
	if !candidate.Active {
		return false
	}
	for _, other := range d.series {
		if other.ID == candidate.ID || !other.Active {
			continue
		}
		if other.TrainerID == candidate.TrainerID && other.Weekday == candidate.Weekday && temporal.Overlaps(other, candidate) {
			return true
		}
	}
	return false
}

func (r *seriesRepo) Create(ctx context.Context, series *domain.Series) error {
	return r.store.write(ctx, func(d *dataset) error {
		if series.ID == "" {
			series.ID = r.store.newID()
		}
		if series.SeriesID == "" {
			series.SeriesID = series.ID
		}
		now := r.store.now()
		series.CreatedAt = now
		series.UpdatedAt = now
		if overlapsActive(d, *series) {
			return repository.ErrConcurrentModification
		}
		d.series[series.ID] = *series
		return nil
	})
}

func (r *seriesRepo) GetByID(ctx context.Context, id string) (*domain.Series, error) {
	s, ok := r.store.read(ctx).series[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *seriesRepo) list(ctx context.Context, keep func(domain.Series) bool) []domain.Series {
	var out []domain.Series
	for _, s := range r.store.read(ctx).series {
		if keep(s) {
			out = append(out, s)
		}
	}
	temporal.Sort(out)
	return out
}

func (r *seriesRepo) ListByKey(ctx context.Context, trainerID string, weekday time.Weekday) ([]domain.Series, error) {
	return r.list(ctx, func(s domain.Series) bool {
		return s.TrainerID == trainerID && s.Weekday == weekday
	}), nil
}

func (r *seriesRepo) ListByTrainer(ctx context.Context, trainerID string) ([]domain.Series, error) {
	return r.list(ctx, func(s domain.Series) bool { return s.TrainerID == trainerID }), nil
}

func (r *seriesRepo) ListBySeriesID(ctx context.Context, seriesID string) ([]domain.Series, error) {
	return r.list(ctx, func(s domain.Series) bool { return s.SeriesID == seriesID }), nil
}

func (r *seriesRepo) CloseWindow(ctx context.Context, id string, expectedTo *time.Time, to time.Time) error {
	return r.store.write(ctx, func(d *dataset) error {
		s, ok := d.series[id]
		if !ok {
			return repository.ErrNotFound
		}
		if !sameTime(s.EffectiveTo, expectedTo) {
			return repository.ErrConcurrentModification
		}
		s.EffectiveTo = &to
		s.UpdatedAt = r.store.now()
		d.series[id] = s
		return nil
	})
}

func (r *seriesRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.store.write(ctx, func(d *dataset) error {
		s, ok := d.series[id]
		if !ok {
			return repository.ErrNotFound
		}
		s.Active = active
		s.UpdatedAt = r.store.now()
		if overlapsActive(d, s) {
			return repository.ErrConcurrentModification
		}
		d.series[id] = s
		return nil
	})
}
