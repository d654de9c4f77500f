package service

import (
	"alcyxob/trainer-schedule/internal/domain"
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// lookupConcurrency caps parallel collaborator lookups per view.
const lookupConcurrency = 8

// resolveNames fills trainer, student and exercise metadata from the
// collaborator lookups. Unknown ids degrade to empty names.
func (s *sessionService) resolveNames(ctx context.Context, view *domain.SessionView, participants []domain.ParticipantView) error {
	personIDs := map[string]bool{view.TrainerID: true}
	exerciseIDs := map[string]bool{}
	for _, p := range participants {
		personIDs[p.StudentID] = true
		for _, e := range p.Exercises {
			exerciseIDs[e.ExerciseID] = true
		}
	}

	var (
		mu        sync.Mutex
		names     = make(map[string]string, len(personIDs))
		exercises = make(map[string]*domain.Exercise, len(exerciseIDs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)

	for id := range personIDs {
		if id == "" {
			continue
		}
		g.Go(func() error {
			person, err := s.store.People.GetByID(gctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.WarnContext(gctx, "person lookup missed", slog.String("person_id", id))
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			names[id] = person.Name
			mu.Unlock()
			return nil
		})
	}
	for id := range exerciseIDs {
		g.Go(func() error {
			exercise, err := s.store.Exercises.GetByID(gctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.WarnContext(gctx, "exercise lookup missed", slog.String("exercise_id", id))
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			exercises[id] = exercise
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	view.TrainerName = names[view.TrainerID]
	for i := range participants {
		participants[i].StudentName = names[participants[i].StudentID]
		for j := range participants[i].Exercises {
			if ex := exercises[participants[i].Exercises[j].ExerciseID]; ex != nil {
				participants[i].Exercises[j].Name = ex.Name
				participants[i].Exercises[j].Description = ex.Description
			}
		}
	}
	return nil
}
