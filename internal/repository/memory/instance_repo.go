package memory

import (
	"context"
	"sort"
	"time"

	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
)

type instanceRepo struct {
	store *Store
}

func (r *instanceRepo) Create(ctx context.Context, inst *domain.Instance) error {
	return r.store.write(ctx, func(d *dataset) error {
		if !inst.OneOff() {
			for _, other := range d.instances {
				if other.SeriesID == inst.SeriesID && other.OccurrenceDate == inst.OccurrenceDate {
					return repository.ErrConcurrentModification
				}
			}
		}
		if inst.ID == "" {
			inst.ID = r.store.newID()
		}
		now := r.store.now()
		inst.CreatedAt = now
		inst.UpdatedAt = now
		inst.Revision = 1
		d.instances[inst.ID] = *inst
		return nil
	})
}

func (r *instanceRepo) GetByID(ctx context.Context, id string) (*domain.Instance, error) {
	inst, ok := r.store.read(ctx).instances[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &inst, nil
}

func (r *instanceRepo) GetByOccurrence(ctx context.Context, seriesID, occurrenceDate string) (*domain.Instance, error) {
	for _, inst := range r.store.read(ctx).instances {
		if inst.SeriesID == seriesID && inst.OccurrenceDate == occurrenceDate {
			return &inst, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *instanceRepo) list(ctx context.Context, keep func(domain.Instance) bool) []domain.Instance {
	var out []domain.Instance
	for _, inst := range r.store.read(ctx).instances {
		if keep(inst) {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

func (r *instanceRepo) ListByTrainer(ctx context.Context, trainerID string, from, to time.Time) ([]domain.Instance, error) {
	return r.list(ctx, func(inst domain.Instance) bool {
		return inst.TrainerID == trainerID && !inst.ScheduledAt.Before(from) && inst.ScheduledAt.Before(to)
	}), nil
}

func (r *instanceRepo) ListBySeries(ctx context.Context, seriesID string) ([]domain.Instance, error) {
	return r.list(ctx, func(inst domain.Instance) bool { return inst.SeriesID == seriesID }), nil
}

func (r *instanceRepo) Update(ctx context.Context, inst *domain.Instance) error {
	return r.store.write(ctx, func(d *dataset) error {
		stored, ok := d.instances[inst.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if stored.Revision != inst.Revision {
			return repository.ErrConcurrentModification
		}
		inst.Revision++
		inst.UpdatedAt = r.store.now()
		d.instances[inst.ID] = *inst
		return nil
	})
}
