package service

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/occurrence"
	"alcyxob/trainer-schedule/internal/repository"
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"
)

// MaxListRange bounds ListSessions so occurrence enumeration stays cheap.
const MaxListRange = 93 * 24 * time.Hour

// OneOffInput creates a session that is not derived from any series.
type OneOffInput struct {
	TrainerID       string
	StartsAt        time.Time
	EndsAt          time.Time
	Label           *string
	Notes           *string
	Room            *string
	Equipment       *string
	MaxParticipants *int
}

// PresenceInput records whether a student showed up.
type PresenceInput struct {
	Present bool
	Notes   *string // nil keeps the stored notes
}

// SessionService materializes occurrences, applies per-instance changes and
// aggregates session views.
type SessionService interface {
	// BuildSessionView accepts a persisted instance id or an occurrence reference.
	BuildSessionView(ctx context.Context, id string) (*domain.SessionView, error)
	// Trainers lists who may manage a session: the trainer owning it and, when
	// overridden, the trainer currently running it.
	Trainers(ctx context.Context, id string) ([]string, error)
	ListSessions(ctx context.Context, trainerID string, from, to time.Time) ([]domain.Occurrence, error)
	CreateOneOff(ctx context.Context, in OneOffInput) (*domain.SessionView, error)
	// PatchInstance layers diff over the stored overrides; revert names fields that inherit again.
	PatchInstance(ctx context.Context, id string, diff domain.InstanceDiff, revert []string) (*domain.SessionView, error)
	CancelInstance(ctx context.Context, id string) (*domain.SessionView, error)
	RestoreInstance(ctx context.Context, id string) (*domain.SessionView, error)
	SetPresence(ctx context.Context, id, studentID string, in PresenceInput) (*domain.SessionView, error)
	RecordExercises(ctx context.Context, id, studentID string, entries []domain.ExerciseEntry) (*domain.SessionView, error)
}

type sessionService struct {
	store  repository.Store
	mat    *occurrence.Materializer
	views  ViewCache
	logger *slog.Logger
	now    func() time.Time
}

func NewSessionService(store repository.Store, mat *occurrence.Materializer, views ViewCache, logger *slog.Logger, now func() time.Time) SessionService {
	return &sessionService{
		store:  store,
		mat:    mat,
		views:  orNoop(views),
		logger: orDefaultLogger(logger),
		now:    orSystemClock(now),
	}
}

// located is an occurrence resolved from an id or reference.
type located struct {
	instance    *domain.Instance // nil while the occurrence is untouched
	series      *domain.Series   // nil for one-off instances
	scheduledAt time.Time
}

func (l *located) base(mat *occurrence.Materializer) domain.SessionFields {
	if l.instance != nil && l.instance.Base != nil {
		return *l.instance.Base
	}
	return mat.Defaults(*l.series, l.scheduledAt)
}

func (s *sessionService) locate(ctx context.Context, id string) (*located, error) {
	const op = "LocateSession"
	if id == "" {
		return nil, validation(op, "session id is required")
	}

	if occurrence.IsRef(id) {
		ref, err := s.mat.ParseRef(id)
		if err != nil {
			return nil, err
		}
		versions, err := s.store.Series.ListBySeriesID(ctx, ref.SeriesID)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, domain.NewError(op, domain.ErrNotFound, "series %s not found", ref.SeriesID)
		}
		series, at, err := s.mat.Locate(versions, ref.Date)
		if err != nil {
			return nil, err
		}
		inst, err := s.store.Instances.GetByOccurrence(ctx, ref.SeriesID, s.mat.DateKey(ref.Date))
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return &located{instance: inst, series: &series, scheduledAt: at}, nil
	}

	inst, err := s.store.Instances.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst.OneOff() {
		return &located{instance: inst, scheduledAt: inst.ScheduledAt}, nil
	}
	versions, err := s.store.Series.ListBySeriesID(ctx, inst.SeriesID)
	if err != nil {
		return nil, err
	}
	// The lineage may have moved the start since the instance was touched.
	day := s.mat.OccurrenceDate(inst)
	series, at, err := s.mat.Locate(versions, day)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.WrapError(op, domain.ErrSeriesNotFound,
			"series "+inst.SeriesID+" has no session on "+s.mat.DateKey(day), err)
	}
	if err != nil {
		return nil, err
	}
	return &located{instance: inst, series: &series, scheduledAt: at}, nil
}

// touch persists an untouched occurrence so it can carry overrides and records.
func (s *sessionService) touch(ctx context.Context, l *located) (*domain.Instance, error) {
	if l.instance != nil {
		return l.instance, nil
	}
	inst := &domain.Instance{
		SeriesID:        l.series.SeriesID,
		SeriesVersionID: l.series.ID,
		TrainerID:       l.series.TrainerID,
		ScheduledAt:     l.scheduledAt,
		OccurrenceDate:  s.mat.DateKey(l.scheduledAt),
	}
	if err := s.store.Instances.Create(ctx, inst); err != nil {
		return nil, err
	}
	l.instance = inst
	s.logger.DebugContext(ctx, "occurrence materialized",
		slog.String("instance_id", inst.ID),
		slog.String("series_id", inst.SeriesID),
		slog.String("occurrence_date", inst.OccurrenceDate),
	)
	return inst, nil
}

// follow points a series-backed instance at the version and start its
// occurrence currently resolves to. It reports whether anything moved.
func follow(l *located, inst *domain.Instance) bool {
	if inst.OneOff() || l.series == nil {
		return false
	}
	if inst.SeriesVersionID == l.series.ID && inst.ScheduledAt.Equal(l.scheduledAt) {
		return false
	}
	inst.SeriesVersionID = l.series.ID
	inst.ScheduledAt = l.scheduledAt
	return true
}

// mutate runs fn on the (touched) instance in one transaction. fn reports
// whether the instance itself changed and needs writing back.
func (s *sessionService) mutate(ctx context.Context, action, id string, fn func(ctx context.Context, l *located, inst *domain.Instance) (bool, error)) (*domain.SessionView, error) {
	var instanceID string
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		l, err := s.locate(ctx, id)
		if err != nil {
			return err
		}
		inst, err := s.touch(ctx, l)
		if err != nil {
			return err
		}
		if err := s.store.Tx.Lock(ctx, instanceKey(inst.ID)); err != nil {
			return err
		}
		instanceID = inst.ID
		moved := follow(l, inst)
		changed, err := fn(ctx, l, inst)
		if err != nil || !(changed || moved) {
			return err
		}
		return s.store.Instances.Update(ctx, inst)
	})
	if err != nil {
		return nil, err
	}

	s.views.Invalidate(ctx)
	s.logger.InfoContext(ctx, "session updated",
		slog.String("action", action),
		slog.String("instance_id", instanceID),
	)
	return s.BuildSessionView(ctx, instanceID)
}

func (s *sessionService) PatchInstance(ctx context.Context, id string, diff domain.InstanceDiff, revert []string) (*domain.SessionView, error) {
	const op = "PatchInstance"
	if err := diff.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "patch", id, func(ctx context.Context, l *located, inst *domain.Instance) (bool, error) {
		merged, err := inst.Diff.Merge(diff).Without(revert...)
		if err != nil {
			return false, err
		}
		effective := merged.ApplyTo(l.base(s.mat))
		if !effective.EndsAt.After(effective.StartsAt) {
			return false, validation(op, "session must end after it starts")
		}
		inst.Diff = merged
		return true, nil
	})
}

func (s *sessionService) CancelInstance(ctx context.Context, id string) (*domain.SessionView, error) {
	return s.mutate(ctx, "cancel", id, func(_ context.Context, _ *located, inst *domain.Instance) (bool, error) {
		if inst.Cancelled {
			return false, nil
		}
		inst.Cancelled = true
		return true, nil
	})
}

func (s *sessionService) RestoreInstance(ctx context.Context, id string) (*domain.SessionView, error) {
	return s.mutate(ctx, "restore", id, func(_ context.Context, _ *located, inst *domain.Instance) (bool, error) {
		if !inst.Cancelled {
			return false, nil
		}
		inst.Cancelled = false
		return true, nil
	})
}

func (s *sessionService) participant(ctx context.Context, instanceID, studentID string) (*domain.ParticipantRecord, error) {
	rec, err := s.store.Participants.Get(ctx, instanceID, studentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if rec == nil {
		rec = &domain.ParticipantRecord{InstanceID: instanceID, StudentID: studentID}
	}
	return rec, nil
}

func (s *sessionService) SetPresence(ctx context.Context, id, studentID string, in PresenceInput) (*domain.SessionView, error) {
	const op = "SetPresence"
	if studentID == "" {
		return nil, validation(op, "student id is required")
	}
	return s.mutate(ctx, "presence", id, func(ctx context.Context, l *located, inst *domain.Instance) (bool, error) {
		if inst.Cancelled {
			return false, validation(op, "session is cancelled")
		}
		starts := inst.Diff.ApplyTo(l.base(s.mat)).StartsAt
		if in.Present && s.now().Before(starts) {
			return false, validation(op, "session has not started yet")
		}
		rec, err := s.participant(ctx, inst.ID, studentID)
		if err != nil {
			return false, err
		}
		rec.Present = in.Present
		if in.Notes != nil {
			rec.Notes = *in.Notes
		}
		return false, s.store.Participants.Upsert(ctx, rec)
	})
}

func (s *sessionService) RecordExercises(ctx context.Context, id, studentID string, entries []domain.ExerciseEntry) (*domain.SessionView, error) {
	const op = "RecordExercises"
	if studentID == "" {
		return nil, validation(op, "student id is required")
	}
	for _, e := range entries {
		if e.ExerciseID == "" {
			return nil, validation(op, "exercise id is required")
		}
		if (e.Sets != nil && *e.Sets < 0) || (e.Weight != nil && *e.Weight < 0) {
			return nil, validation(op, "sets and weight cannot be negative")
		}
	}
	return s.mutate(ctx, "exercises", id, func(ctx context.Context, _ *located, inst *domain.Instance) (bool, error) {
		if inst.Cancelled {
			return false, validation(op, "session is cancelled")
		}
		for _, e := range entries {
			if _, err := s.store.Exercises.GetByID(ctx, e.ExerciseID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return false, validation(op, "unknown exercise %s", e.ExerciseID)
				}
				return false, err
			}
		}
		rec, err := s.participant(ctx, inst.ID, studentID)
		if err != nil {
			return false, err
		}
		rec.Exercises = entries
		return false, s.store.Participants.Upsert(ctx, rec)
	})
}

func (s *sessionService) CreateOneOff(ctx context.Context, in OneOffInput) (*domain.SessionView, error) {
	const op = "CreateOneOff"
	switch {
	case in.TrainerID == "":
		return nil, validation(op, "trainer id is required")
	case in.StartsAt.IsZero() || !in.EndsAt.After(in.StartsAt):
		return nil, validation(op, "session must end after it starts")
	case in.MaxParticipants != nil && *in.MaxParticipants < 0:
		return nil, validation(op, "max participants cannot be negative")
	}

	starts := instant(in.StartsAt)
	inst := &domain.Instance{
		TrainerID:   in.TrainerID,
		ScheduledAt: starts,
		Base: &domain.SessionFields{
			TrainerID:       in.TrainerID,
			StartsAt:        starts,
			EndsAt:          instant(in.EndsAt),
			Label:           in.Label,
			Notes:           in.Notes,
			Room:            in.Room,
			Equipment:       in.Equipment,
			MaxParticipants: in.MaxParticipants,
		},
	}
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		return s.store.Instances.Create(ctx, inst)
	})
	if err != nil {
		return nil, err
	}

	s.views.Invalidate(ctx)
	s.logger.InfoContext(ctx, "one-off session created",
		slog.String("instance_id", inst.ID),
		slog.String("trainer_id", inst.TrainerID),
	)
	return s.BuildSessionView(ctx, inst.ID)
}

// ListSessions enumerates occurrences on demand and merges persisted instances.
func (s *sessionService) ListSessions(ctx context.Context, trainerID string, from, to time.Time) ([]domain.Occurrence, error) {
	const op = "ListSessions"
	if trainerID == "" {
		return nil, validation(op, "trainer id is required")
	}
	if !to.After(from) {
		return nil, validation(op, "'to' must be after 'from'")
	}
	if to.Sub(from) > MaxListRange {
		return nil, validation(op, "range may not exceed %d days", int(MaxListRange.Hours()/24))
	}

	var (
		versions  []domain.Series
		instances []domain.Instance
	)
	err := s.store.Tx.ReadSnapshot(ctx, func(ctx context.Context) error {
		var err error
		if versions, err = s.store.Series.ListByTrainer(ctx, trainerID); err != nil {
			return err
		}
		// Stored starts may lag a rescheduled lineage by up to a day.
		instances, err = s.store.Instances.ListByTrainer(ctx, trainerID, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1))
		return err
	})
	if err != nil {
		return nil, err
	}

	type occurrenceKey struct {
		seriesID string
		date     string
	}
	persisted := make(map[occurrenceKey]*domain.Instance, len(instances))
	for i := range instances {
		inst := &instances[i]
		if !inst.OneOff() {
			persisted[occurrenceKey{inst.SeriesID, s.mat.DateKey(s.mat.OccurrenceDate(inst))}] = inst
		}
	}

	result := []domain.Occurrence{}
	used := make(map[string]bool)
	for _, slot := range s.mat.Enumerate(versions, from, to) {
		series := slot.Series
		inst := persisted[occurrenceKey{series.SeriesID, s.mat.DateKey(slot.ScheduledAt)}]
		if inst != nil {
			used[inst.ID] = true
		}
		result = append(result, s.mat.Materialize(&series, inst, slot.ScheduledAt))
	}

	for i := range instances {
		inst := &instances[i]
		if used[inst.ID] {
			continue
		}
		if inst.OneOff() {
			if !inst.ScheduledAt.Before(from) && inst.ScheduledAt.Before(to) {
				result = append(result, s.mat.Materialize(nil, inst, inst.ScheduledAt))
			}
			continue
		}
		// Unmatched series-backed instances either resolve outside the range
		// or belong to a date their lineage no longer produces.
		if _, _, err := s.mat.Locate(lineage(versions, inst.SeriesID), s.mat.OccurrenceDate(inst)); err != nil {
			s.logger.WarnContext(ctx, "orphaned session instance",
				slog.String("instance_id", inst.ID),
				slog.String("op", op),
				slog.Any("error", err),
			)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartsAt.Before(result[j].StartsAt)
	})
	return result, nil
}

func (s *sessionService) Trainers(ctx context.Context, id string) ([]string, error) {
	var l *located
	err := s.store.Tx.ReadSnapshot(ctx, func(ctx context.Context) error {
		var err error
		l, err = s.locate(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	owner := l.base(s.mat).TrainerID
	if l.instance != nil {
		owner = l.instance.TrainerID
	}
	trainers := []string{owner}
	if current := s.mat.Materialize(l.series, l.instance, l.scheduledAt).TrainerID; current != owner {
		trainers = append(trainers, current)
	}
	return trainers, nil
}

// BuildSessionView aggregates defaults, overrides, commitments and
// participant records for one session.
func (s *sessionService) BuildSessionView(ctx context.Context, id string) (*domain.SessionView, error) {
	view, generation, ok := s.views.Get(ctx, id)
	if ok {
		return view, nil
	}

	// Locating the session and gathering its participants read one snapshot.
	var (
		l            *located
		participants []domain.ParticipantView
	)
	err := s.store.Tx.ReadSnapshot(ctx, func(ctx context.Context) error {
		var err error
		if l, err = s.locate(ctx, id); err != nil {
			return err
		}
		participants, err = s.participants(ctx, l)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrSeriesNotFound) {
			s.logger.ErrorContext(ctx, "session references a series that does not resolve",
				slog.String("session_id", id),
				slog.Any("error", err),
			)
		}
		return nil, err
	}

	view = &domain.SessionView{
		Occurrence: s.mat.Materialize(l.series, l.instance, l.scheduledAt),
	}
	if err := s.resolveNames(ctx, view, participants); err != nil {
		return nil, err
	}

	consumed := 0
	for _, p := range participants {
		if p.Status == domain.StatusAttending {
			view.AttendingCount++
		}
		if p.Present {
			view.PresentCount++
		}
		if p.Status == domain.StatusAttending || p.Present {
			consumed++
		}
	}
	if limit := view.MaxParticipants; limit != nil {
		remaining := *limit - consumed
		if remaining < 0 {
			remaining = 0
		}
		view.CapacityRemaining = &remaining
	}
	view.Participants = participants

	s.views.Set(ctx, id, generation, view)
	return view, nil
}

// participants merges resolved commitments with explicit participant records.
func (s *sessionService) participants(ctx context.Context, l *located) ([]domain.ParticipantView, error) {
	statuses := map[string]domain.CommitmentStatus{}
	if l.series != nil {
		commitments, err := s.store.Commitments.ListBySeries(ctx, l.series.SeriesID)
		if err != nil {
			return nil, err
		}
		byStudent := map[string][]domain.Commitment{}
		for _, c := range commitments {
			byStudent[c.StudentID] = append(byStudent[c.StudentID], c)
		}
		for studentID, timeline := range byStudent {
			status, _, err := resolveStatus(timeline, l.scheduledAt)
			if err != nil {
				return nil, err
			}
			statuses[studentID] = status
		}
	}

	var records []domain.ParticipantRecord
	if l.instance != nil {
		var err error
		if records, err = s.store.Participants.ListByInstance(ctx, l.instance.ID); err != nil {
			return nil, err
		}
	}

	byStudent := map[string]*domain.ParticipantView{}
	for studentID, status := range statuses {
		if status == domain.StatusNotAttending {
			continue
		}
		byStudent[studentID] = &domain.ParticipantView{StudentID: studentID, Status: status, Exercises: []domain.ExerciseView{}}
	}
	for _, rec := range records {
		p, ok := byStudent[rec.StudentID]
		if !ok {
			status, known := statuses[rec.StudentID]
			if !known {
				status = domain.StatusNotAttending
				if l.series == nil {
					// One-off sessions have no ledger; a record means enrolment.
					status = domain.StatusAttending
				}
			}
			p = &domain.ParticipantView{StudentID: rec.StudentID, Status: status}
			byStudent[rec.StudentID] = p
		}
		p.Present = rec.Present
		p.Notes = rec.Notes
		p.Exercises = make([]domain.ExerciseView, 0, len(rec.Exercises))
		for _, e := range rec.Exercises {
			p.Exercises = append(p.Exercises, domain.ExerciseView{ExerciseEntry: e})
		}
	}

	out := make([]domain.ParticipantView, 0, len(byStudent))
	for _, p := range byStudent {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// lineage keeps the versions of one series lineage.
func lineage(versions []domain.Series, seriesID string) []domain.Series {
	var out []domain.Series
	for _, v := range versions {
		if v.SeriesID == seriesID {
			out = append(out, v)
		}
	}
	return out
}
