package service

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
	"alcyxob/trainer-schedule/internal/temporal"
	"context"
	"errors"
	"log/slog"
	"time"
)

// SetCommitmentInput changes one student's status for one series from EffectiveFrom on.
type SetCommitmentInput struct {
	StudentID     string
	SeriesID      string
	Status        domain.CommitmentStatus
	EffectiveFrom time.Time
	Retroactive   bool
}

// BulkCommitmentInput applies one status change to many series atomically.
type BulkCommitmentInput struct {
	StudentID     string
	SeriesIDs     []string
	Status        domain.CommitmentStatus
	EffectiveFrom time.Time
	Retroactive   bool
}

// CommitmentService maintains the append-only commitment ledger.
type CommitmentService interface {
	// StatusAsOf resolves the status at asOf. When no record applies the status
	// is NOT_ATTENDING and the returned record is nil.
	StatusAsOf(ctx context.Context, studentID, seriesID string, asOf time.Time) (domain.CommitmentStatus, *domain.Commitment, error)
	SetCommitment(ctx context.Context, in SetCommitmentInput) (*domain.Commitment, error)
	ApplyBulk(ctx context.Context, in BulkCommitmentInput) ([]domain.Commitment, error)
	History(ctx context.Context, studentID, seriesID string) ([]domain.Commitment, error)
	// CommitmentsAsOf lists the records of every series that apply to the student at asOf.
	CommitmentsAsOf(ctx context.Context, studentID string, asOf time.Time) ([]domain.Commitment, error)
}

type commitmentService struct {
	store  repository.Store
	views  ViewCache
	logger *slog.Logger
}

func NewCommitmentService(store repository.Store, views ViewCache, logger *slog.Logger) CommitmentService {
	return &commitmentService{
		store:  store,
		views:  orNoop(views),
		logger: orDefaultLogger(logger),
	}
}

func (s *commitmentService) StatusAsOf(ctx context.Context, studentID, seriesID string, asOf time.Time) (domain.CommitmentStatus, *domain.Commitment, error) {
	if studentID == "" || seriesID == "" {
		return "", nil, validation("StatusAsOf", "student id and series id are required")
	}
	timeline, err := s.store.Commitments.ListByKey(ctx, studentID, seriesID)
	if err != nil {
		return "", nil, err
	}
	return resolveStatus(timeline, asOf)
}

func resolveStatus(timeline []domain.Commitment, asOf time.Time) (domain.CommitmentStatus, *domain.Commitment, error) {
	c, err := temporal.Resolve(timeline, asOf)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.StatusNotAttending, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return c.Status, &c, nil
}

func validateCommitment(op, studentID string, status domain.CommitmentStatus, from time.Time) error {
	if studentID == "" {
		return validation(op, "student id is required")
	}
	if !status.Valid() {
		return validation(op, "unknown status %q", status)
	}
	if from.IsZero() {
		return validation(op, "effectiveFrom is required")
	}
	return nil
}

func (s *commitmentService) SetCommitment(ctx context.Context, in SetCommitmentInput) (*domain.Commitment, error) {
	const op = "SetCommitment"
	if err := validateCommitment(op, in.StudentID, in.Status, in.EffectiveFrom); err != nil {
		return nil, err
	}
	if in.SeriesID == "" {
		return nil, validation(op, "series id is required")
	}
	from := instant(in.EffectiveFrom)

	var created *domain.Commitment
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Tx.Lock(ctx, commitmentKey(in.StudentID, in.SeriesID)); err != nil {
			return err
		}
		w, err := s.prepare(ctx, in.StudentID, in.SeriesID, from, in.Retroactive)
		if err != nil {
			return err
		}
		created, err = s.apply(ctx, w, in.Status)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.views.Invalidate(ctx)
	s.logger.InfoContext(ctx, "commitment changed",
		slog.String("student_id", in.StudentID),
		slog.String("series_id", in.SeriesID),
		slog.String("status", string(in.Status)),
		slog.Time("effective_from", from),
		slog.Bool("retroactive", in.Retroactive),
	)
	return created, nil
}

// ledgerWrite is a validated, not yet applied, change to one timeline.
type ledgerWrite struct {
	studentID string
	seriesID  string
	plan      temporal.Plan
	closing   *domain.Commitment
}

// prepare reads the timeline and plans the write without modifying anything.
func (s *commitmentService) prepare(ctx context.Context, studentID, seriesID string, from time.Time, retroactive bool) (*ledgerWrite, error) {
	versions, err := s.store.Series.ListBySeriesID(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, domain.NewError("SetCommitment", domain.ErrNotFound, "series %s not found", seriesID)
	}

	timeline, err := s.store.Commitments.ListByKey(ctx, studentID, seriesID)
	if err != nil {
		return nil, err
	}
	plan, err := temporal.PlanInsert(timeline, from, retroactive)
	if err != nil {
		return nil, err
	}
	w := &ledgerWrite{studentID: studentID, seriesID: seriesID, plan: plan}
	if plan.Closes() {
		c := timeline[plan.Close]
		w.closing = &c
	}
	return w, nil
}

func (s *commitmentService) apply(ctx context.Context, w *ledgerWrite, status domain.CommitmentStatus) (*domain.Commitment, error) {
	if w.closing != nil {
		if err := s.store.Commitments.CloseWindow(ctx, w.closing.ID, w.closing.EffectiveTo, w.plan.From); err != nil {
			return nil, err
		}
	}
	c := &domain.Commitment{
		StudentID:     w.studentID,
		SeriesID:      w.seriesID,
		Status:        status,
		EffectiveFrom: w.plan.From,
		EffectiveTo:   w.plan.To,
	}
	if err := s.store.Commitments.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyBulk validates every series first and writes nothing unless all pass.
func (s *commitmentService) ApplyBulk(ctx context.Context, in BulkCommitmentInput) ([]domain.Commitment, error) {
	const op = "ApplyBulk"
	if err := validateCommitment(op, in.StudentID, in.Status, in.EffectiveFrom); err != nil {
		return nil, err
	}
	seriesIDs := dedupe(in.SeriesIDs)
	if len(seriesIDs) == 0 {
		return nil, validation(op, "at least one series id is required")
	}
	from := instant(in.EffectiveFrom)

	keys := make([]string, 0, len(seriesIDs))
	for _, id := range seriesIDs {
		keys = append(keys, commitmentKey(in.StudentID, id))
	}

	var created []domain.Commitment
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		created = created[:0]
		if err := s.store.Tx.Lock(ctx, keys...); err != nil {
			return err
		}

		writes := make([]*ledgerWrite, 0, len(seriesIDs))
		failures := map[string]error{}
		for _, id := range seriesIDs {
			w, err := s.prepare(ctx, in.StudentID, id, from, in.Retroactive)
			if err != nil {
				if isRejection(err) {
					failures[id] = err
					continue
				}
				return err
			}
			writes = append(writes, w)
		}
		if len(failures) > 0 {
			return &domain.PartialBulkFailureError{Failures: failures}
		}

		for _, w := range writes {
			c, err := s.apply(ctx, w, in.Status)
			if err != nil {
				return err
			}
			created = append(created, *c)
		}
		return nil
	})
	if err != nil {
		var bulk *domain.PartialBulkFailureError
		if errors.As(err, &bulk) {
			s.logger.WarnContext(ctx, "bulk commitment rejected",
				slog.String("student_id", in.StudentID),
				slog.Any("failed_series_ids", bulk.FailedSeriesIDs()),
			)
		}
		return nil, err
	}

	s.views.Invalidate(ctx)
	s.logger.InfoContext(ctx, "bulk commitment applied",
		slog.String("student_id", in.StudentID),
		slog.Int("series", len(created)),
		slog.String("status", string(in.Status)),
		slog.Time("effective_from", from),
	)
	return created, nil
}

// isRejection reports whether err is a per-series validation failure rather
// than a storage problem that should abort the batch as is.
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidEffectiveDate) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrOverlappingVersions) ||
		errors.Is(err, domain.ErrValidation)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *commitmentService) History(ctx context.Context, studentID, seriesID string) ([]domain.Commitment, error) {
	if studentID == "" || seriesID == "" {
		return nil, validation("History", "student id and series id are required")
	}
	return s.store.Commitments.ListByKey(ctx, studentID, seriesID)
}

func (s *commitmentService) CommitmentsAsOf(ctx context.Context, studentID string, asOf time.Time) ([]domain.Commitment, error) {
	if studentID == "" {
		return nil, validation("CommitmentsAsOf", "student id is required")
	}
	all, err := s.store.Commitments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	bySeries := make(map[string][]domain.Commitment)
	var order []string
	for _, c := range all {
		if _, ok := bySeries[c.SeriesID]; !ok {
			order = append(order, c.SeriesID)
		}
		bySeries[c.SeriesID] = append(bySeries[c.SeriesID], c)
	}

	result := []domain.Commitment{}
	for _, seriesID := range order {
		c, err := temporal.Resolve(bySeries[seriesID], asOf)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}
