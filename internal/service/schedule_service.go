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

// DefineSeriesInput opens a new version for one (trainer, weekday).
type DefineSeriesInput struct {
	TrainerID       string
	Weekday         time.Weekday
	StartTime       domain.Clock
	DurationMinutes int
	Name            string
	Room            *string
	Equipment       *string
	Notes           *string
	MaxParticipants *int
	EffectiveFrom   time.Time
	Retroactive     bool
}

// ScheduleService versions a trainer's weekly schedule.
type ScheduleService interface {
	DefineSeries(ctx context.Context, in DefineSeriesInput) (*domain.Series, error)
	SplitWeek(ctx context.Context, trainerID string, effectiveFrom time.Time, configs []domain.WeekdayConfig) ([]domain.Series, error)
	SetSeriesActive(ctx context.Context, versionID string, active bool) (*domain.Series, error)
	GetVersion(ctx context.Context, versionID string) (*domain.Series, error)
	// ScheduleAsOf resolves the version of each weekday (or only the given one) at asOf.
	ScheduleAsOf(ctx context.Context, trainerID string, weekday *time.Weekday, asOf time.Time) ([]domain.Series, error)
	History(ctx context.Context, trainerID string) ([]domain.Series, error)
}

type scheduleService struct {
	store  repository.Store
	views  ViewCache
	logger *slog.Logger
}

func NewScheduleService(store repository.Store, views ViewCache, logger *slog.Logger) ScheduleService {
	return &scheduleService{
		store:  store,
		views:  orNoop(views),
		logger: orDefaultLogger(logger),
	}
}

// DefineSeries appends a version starting at in.EffectiveFrom, closing the
// version it supersedes.
func (s *scheduleService) DefineSeries(ctx context.Context, in DefineSeriesInput) (*domain.Series, error) {
	from := instant(in.EffectiveFrom)
	tmpl := domain.Series{
		TrainerID:       in.TrainerID,
		Weekday:         in.Weekday,
		StartTime:       in.StartTime,
		DurationMinutes: in.DurationMinutes,
		Name:            in.Name,
		Room:            in.Room,
		Equipment:       in.Equipment,
		Notes:           in.Notes,
		MaxParticipants: in.MaxParticipants,
		EffectiveFrom:   from,
		Active:          true,
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	if tmpl.Name == "" {
		return nil, validation("DefineSeries", "name is required")
	}

	var created *domain.Series
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Tx.Lock(ctx, seriesKey(in.TrainerID, in.Weekday)); err != nil {
			return err
		}
		v, _, err := s.openVersion(ctx, tmpl, in.Retroactive)
		created = v
		return err
	})
	if err != nil {
		return nil, err
	}

	s.views.Invalidate(ctx)
	s.logger.InfoContext(ctx, "series version opened",
		slog.String("trainer_id", created.TrainerID),
		slog.Int("weekday", int(created.Weekday)),
		slog.String("series_id", created.SeriesID),
		slog.String("version_id", created.ID),
		slog.Time("effective_from", created.EffectiveFrom),
		slog.Bool("retroactive", in.Retroactive),
	)
	return created, nil
}

// openVersion closes whatever version applies at tmpl.EffectiveFrom and
// inserts tmpl after it. It returns the new version and the closed one.
func (s *scheduleService) openVersion(ctx context.Context, tmpl domain.Series, retroactive bool) (*domain.Series, *domain.Series, error) {
	closed, plan, err := s.closeAt(ctx, tmpl.TrainerID, tmpl.Weekday, tmpl.EffectiveFrom, retroactive)
	if err != nil {
		return nil, nil, err
	}

	tmpl.EffectiveTo = plan.To
	tmpl.Active = true
	if tmpl.SeriesID, err = s.lineageFor(ctx, closed, tmpl.TrainerID, tmpl.Weekday, tmpl.EffectiveFrom); err != nil {
		return nil, nil, err
	}
	if err := s.store.Series.Create(ctx, &tmpl); err != nil {
		return nil, nil, err
	}
	return &tmpl, closed, nil
}

// closeAt closes the active version of (trainer, weekday) containing at.
func (s *scheduleService) closeAt(ctx context.Context, trainerID string, weekday time.Weekday, at time.Time, retroactive bool) (*domain.Series, temporal.Plan, error) {
	versions, err := s.store.Series.ListByKey(ctx, trainerID, weekday)
	if err != nil {
		return nil, temporal.Plan{}, err
	}
	active := activeOnly(versions)
	plan, err := temporal.PlanInsert(active, at, retroactive)
	if err != nil {
		return nil, temporal.Plan{}, err
	}
	if !plan.Closes() {
		return nil, plan, nil
	}
	closing := active[plan.Close]
	if err := s.store.Series.CloseWindow(ctx, closing.ID, closing.EffectiveTo, at); err != nil {
		return nil, temporal.Plan{}, err
	}
	return &closing, plan, nil
}

// lineageFor picks the lineage of a version starting at "at": the one it
// closed, else an active version ending exactly at "at". An empty result
// makes the new version start its own lineage.
func (s *scheduleService) lineageFor(ctx context.Context, closed *domain.Series, trainerID string, weekday time.Weekday, at time.Time) (string, error) {
	if closed != nil {
		return closed.SeriesID, nil
	}
	versions, err := s.store.Series.ListByKey(ctx, trainerID, weekday)
	if err != nil {
		return "", err
	}
	for _, v := range activeOnly(versions) {
		if v.EffectiveTo != nil && v.EffectiveTo.Equal(at) && v.EffectiveFrom.Before(at) {
			return v.SeriesID, nil
		}
	}
	return "", nil
}

// SplitWeek ends every weekday's current version at effectiveFrom and opens
// new versions for the active configs, all in one transaction.
func (s *scheduleService) SplitWeek(ctx context.Context, trainerID string, effectiveFrom time.Time, configs []domain.WeekdayConfig) ([]domain.Series, error) {
	const op = "SplitWeek"
	if trainerID == "" {
		return nil, validation(op, "trainer id is required")
	}
	if effectiveFrom.IsZero() {
		return nil, validation(op, "newEffectiveFrom is required")
	}
	from := instant(effectiveFrom)

	byWeekday := make(map[time.Weekday]domain.WeekdayConfig, len(configs))
	for _, cfg := range configs {
		if cfg.Weekday < time.Sunday || cfg.Weekday > time.Saturday {
			return nil, validation(op, "weekday %d out of range", cfg.Weekday)
		}
		if _, dup := byWeekday[cfg.Weekday]; dup {
			return nil, validation(op, "weekday %d configured twice", cfg.Weekday)
		}
		if cfg.Active && cfg.EndTime <= cfg.StartTime {
			return nil, validation(op, "weekday %d: end time must be after start time", cfg.Weekday)
		}
		byWeekday[cfg.Weekday] = cfg
	}

	keys := make([]string, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		keys = append(keys, seriesKey(trainerID, wd))
	}

	var opened []domain.Series
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		opened = opened[:0]
		if err := s.store.Tx.Lock(ctx, keys...); err != nil {
			return err
		}
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			closed, _, err := s.closeAt(ctx, trainerID, wd, from, false)
			if err != nil {
				return err
			}
			cfg, ok := byWeekday[wd]
			if !ok || !cfg.Active {
				continue
			}
			v := versionFromConfig(trainerID, from, cfg, closed)
			if err := v.Validate(); err != nil {
				return err
			}
			if v.Name == "" {
				return validation(op, "weekday %d: name is required", wd)
			}
			if v.SeriesID, err = s.lineageFor(ctx, closed, trainerID, wd, from); err != nil {
				return err
			}
			if err := s.store.Series.Create(ctx, &v); err != nil {
				return err
			}
			opened = append(opened, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.views.Invalidate(ctx)
	s.logger.InfoContext(ctx, "week split",
		slog.String("trainer_id", trainerID),
		slog.Time("effective_from", from),
		slog.Int("opened", len(opened)),
	)
	return opened, nil
}

func versionFromConfig(trainerID string, from time.Time, cfg domain.WeekdayConfig, closed *domain.Series) domain.Series {
	v := domain.Series{
		TrainerID:       trainerID,
		Weekday:         cfg.Weekday,
		StartTime:       cfg.StartTime,
		DurationMinutes: int(cfg.EndTime - cfg.StartTime),
		EffectiveFrom:   from,
		Active:          true,
	}
	if closed != nil {
		v.Name = closed.Name
		v.Room = closed.Room
		v.Equipment = closed.Equipment
		v.Notes = closed.Notes
		v.MaxParticipants = closed.MaxParticipants
	}
	if cfg.Name != nil {
		v.Name = *cfg.Name
	}
	if cfg.Room != nil {
		v.Room = cfg.Room
	}
	if cfg.Equipment != nil {
		v.Equipment = cfg.Equipment
	}
	if cfg.Notes != nil {
		v.Notes = cfg.Notes
	}
	if cfg.MaxParticipants != nil {
		v.MaxParticipants = cfg.MaxParticipants
	}
	return v
}

// SetSeriesActive toggles the soft lifecycle flag of one version.
func (s *scheduleService) SetSeriesActive(ctx context.Context, versionID string, active bool) (*domain.Series, error) {
	var result *domain.Series
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		v, err := s.store.Series.GetByID(ctx, versionID)
		if err != nil {
			return err
		}
		if err := s.store.Tx.Lock(ctx, seriesKey(v.TrainerID, v.Weekday)); err != nil {
			return err
		}
		if v.Active == active {
			result = v
			return nil
		}
		if active {
			siblings, err := s.store.Series.ListByKey(ctx, v.TrainerID, v.Weekday)
			if err != nil {
				return err
			}
			for _, other := range activeOnly(siblings) {
				if other.ID != v.ID && temporal.Overlaps(other, *v) {
					return domain.NewError("SetSeriesActive", domain.ErrOverlappingVersions,
						"version %s overlaps active version %s", v.ID, other.ID)
				}
			}
		}
		if err := s.store.Series.SetActive(ctx, v.ID, active); err != nil {
			return err
		}
		v.Active = active
		result = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.views.Invalidate(ctx)
	s.logger.InfoContext(ctx, "series version lifecycle changed",
		slog.String("version_id", versionID),
		slog.Bool("active", active),
	)
	return result, nil
}

func (s *scheduleService) ScheduleAsOf(ctx context.Context, trainerID string, weekday *time.Weekday, asOf time.Time) ([]domain.Series, error) {
	if trainerID == "" {
		return nil, validation("ScheduleAsOf", "trainer id is required")
	}
	versions, err := s.store.Series.ListByTrainer(ctx, trainerID)
	if err != nil {
		return nil, err
	}

	byWeekday := make(map[time.Weekday][]domain.Series)
	for _, v := range activeOnly(versions) {
		byWeekday[v.Weekday] = append(byWeekday[v.Weekday], v)
	}

	result := []domain.Series{}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if weekday != nil && *weekday != wd {
			continue
		}
		v, err := temporal.Resolve(byWeekday[wd], asOf)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "schedule integrity violation",
				slog.String("trainer_id", trainerID),
				slog.Int("weekday", int(wd)),
				slog.Any("error", err),
			)
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

func (s *scheduleService) GetVersion(ctx context.Context, versionID string) (*domain.Series, error) {
	if versionID == "" {
		return nil, validation("GetVersion", "version id is required")
	}
	return s.store.Series.GetByID(ctx, versionID)
}

func (s *scheduleService) History(ctx context.Context, trainerID string) ([]domain.Series, error) {
	if trainerID == "" {
		return nil, validation("History", "trainer id is required")
	}
	return s.store.Series.ListByTrainer(ctx, trainerID)
}
