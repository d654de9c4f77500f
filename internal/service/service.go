package service

import (
	"alcyxob/trainer-schedule/internal/domain"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ViewCache is a read-through cache of session views. Every successful
// mutation calls Invalidate, after which no earlier view may be served.
//
// Get reports the cache generation it observed. A view built after a miss is
// stored with that generation, so a view computed concurrently with an
// invalidation is never readable under the newer generation.
type ViewCache interface {
	Get(ctx context.Context, key string) (view *domain.SessionView, generation int64, ok bool)
	Set(ctx context.Context, key string, generation int64, view *domain.SessionView)
	Invalidate(ctx context.Context)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*domain.SessionView, int64, bool) {
	return nil, 0, false
}
func (noopCache) Set(context.Context, string, int64, *domain.SessionView) {}
func (noopCache) Invalidate(context.Context)                              {}

func orNoop(c ViewCache) ViewCache {
	if c == nil {
		return noopCache{}
	}
	return c
}

func orDefaultLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func orSystemClock(now func() time.Time) func() time.Time {
	if now == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return now
}

// instant normalizes an effective timestamp so every backend stores it identically.
func instant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func seriesKey(trainerID string, weekday time.Weekday) string {
	return fmt.Sprintf("series:%s:%d", trainerID, weekday)
}

func commitmentKey(studentID, seriesID string) string {
	return fmt.Sprintf("commitment:%s:%s", studentID, seriesID)
}

func instanceKey(id string) string {
	return "instance:" + id
}

func activeOnly(versions []domain.Series) []domain.Series {
	out := make([]domain.Series, 0, len(versions))
	for _, v := range versions {
		if v.Active {
			out = append(out, v)
		}
	}
	return out
}

func validation(op, format string, args ...any) error {
	return domain.NewError(op, domain.ErrValidation, format, args...)
}
