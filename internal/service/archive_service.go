package service

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
	"alcyxob/trainer-schedule/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"
)

const archiveContentType = "application/json"

// ErrArchiveDisabled is returned when no object storage is configured.
var ErrArchiveDisabled = errors.New("history archive storage is not configured")

// ArchiveService exports a trainer's full schedule and commitment history.
type ArchiveService interface {
	ExportHistory(ctx context.Context, trainerID string) (*domain.ArchiveExport, error)
}

type archiveService struct {
	store   repository.Store
	files   storage.FileStorage
	prefix  string
	expires time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewArchiveService wires exports to object storage. files may be nil, in
// which case every export fails with ErrArchiveDisabled.
func NewArchiveService(store repository.Store, files storage.FileStorage, prefix string, expires time.Duration, logger *slog.Logger, now func() time.Time) ArchiveService {
	if expires <= 0 {
		expires = storage.DefaultPresignedURLExpiry
	}
	return &archiveService{
		store:   store,
		files:   files,
		prefix:  prefix,
		expires: expires,
		logger:  orDefaultLogger(logger),
		now:     orSystemClock(now),
	}
}

func (s *archiveService) ExportHistory(ctx context.Context, trainerID string) (*domain.ArchiveExport, error) {
	if s.files == nil {
		return nil, ErrArchiveDisabled
	}
	if trainerID == "" {
		return nil, validation("ExportHistory", "trainer id is required")
	}

	archive, err := s.collect(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}

	key := path.Join(s.prefix, trainerID, archive.GeneratedAt.Format("20060102T150405Z")+".json")
	if err := s.files.PutObject(ctx, key, archiveContentType, body); err != nil {
		return nil, fmt.Errorf("upload archive: %w", err)
	}
	url, err := s.files.GeneratePresignedDownloadURL(ctx, key, s.expires)
	if err != nil {
		if delErr := s.files.DeleteObject(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove unreachable archive",
				slog.String("object_key", key),
				slog.Any("error", delErr),
			)
		}
		return nil, fmt.Errorf("presign archive: %w", err)
	}

	s.logger.InfoContext(ctx, "history archive exported",
		slog.String("trainer_id", trainerID),
		slog.String("object_key", key),
		slog.Int("bytes", len(body)),
	)
	return &domain.ArchiveExport{
		TrainerID:   trainerID,
		ObjectKey:   key,
		ContentType: archiveContentType,
		Size:        int64(len(body)),
		URL:         url,
		ExpiresAt:   archive.GeneratedAt.Add(s.expires),
		CreatedAt:   archive.GeneratedAt,
	}, nil
}

// collect reads the trainer's whole history from one snapshot.
func (s *archiveService) collect(ctx context.Context, trainerID string) (*domain.HistoryArchive, error) {
	archive := &domain.HistoryArchive{
		TrainerID:   trainerID,
		GeneratedAt: s.now().UTC().Truncate(time.Second),
		Commitments: []domain.Commitment{},
		Instances:   []domain.Instance{},
	}
	err := s.store.Tx.ReadSnapshot(ctx, func(ctx context.Context) error {
		series, err := s.store.Series.ListByTrainer(ctx, trainerID)
		if err != nil {
			return err
		}
		archive.Series = series

		seen := map[string]bool{}
		for _, v := range series {
			if seen[v.SeriesID] {
				continue
			}
			seen[v.SeriesID] = true

			commitments, err := s.store.Commitments.ListBySeries(ctx, v.SeriesID)
			if err != nil {
				return err
			}
			archive.Commitments = append(archive.Commitments, commitments...)

			instances, err := s.store.Instances.ListBySeries(ctx, v.SeriesID)
			if err != nil {
				return err
			}
			archive.Instances = append(archive.Instances, instances...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archive, nil
}
