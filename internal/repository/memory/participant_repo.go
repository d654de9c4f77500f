package memory

import (
	"context"
	"sort"

	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
)

type participantRepo struct {
	store *Store
}

func participantKey(instanceID, studentID string) string {
	return instanceID + "|" + studentID
}

func (r *participantRepo) Get(ctx context.Context, instanceID, studentID string) (*domain.ParticipantRecord, error) {
	p, ok := r.store.read(ctx).participants[participantKey(instanceID, studentID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Exercises = append([]domain.ExerciseEntry(nil), p.Exercises...)
	return &p, nil
}

func (r *participantRepo) ListByInstance(ctx context.Context, instanceID string) ([]domain.ParticipantRecord, error) {
	var out []domain.ParticipantRecord
	for _, p := range r.store.read(ctx).participants {
		if p.InstanceID == instanceID {
			p.Exercises = append([]domain.ExerciseEntry(nil), p.Exercises...)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (r *participantRepo) Upsert(ctx context.Context, record *domain.ParticipantRecord) error {
	return r.store.write(ctx, func(d *dataset) error {
		record.UpdatedAt = r.store.now()
		stored := *record
		stored.Exercises = append([]domain.ExerciseEntry(nil), record.Exercises...)
		d.participants[participantKey(record.InstanceID, record.StudentID)] = stored
		return nil
	})
}
