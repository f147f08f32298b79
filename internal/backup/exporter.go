package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/seenarr/internal/engine"
	"github.com/amaumene/seenarr/internal/metrics"
	"github.com/amaumene/seenarr/internal/models"
	"github.com/amaumene/seenarr/internal/services/docstore"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// DocumentStore overwrites a named file in the remote document
type DocumentStore interface {
	OverwriteFile(ctx context.Context, name, content string) error
}

// Source provides the library to export
type Source interface {
	Snapshot() *models.LibraryState
}

// Exporter pushes the formatted library to the document store
type Exporter struct {
	source   Source
	store    DocumentStore
	filename string
	notifier engine.Notifier
	logger   *logrus.Logger

	now   func() time.Time
	retry func() backoff.BackOff
}

// NewExporter creates an exporter writing to filename
func NewExporter(source Source, store DocumentStore, filename string, notifier engine.Notifier, logger *logrus.Logger) *Exporter {
	return &Exporter{
		source:   source,
		store:    store,
		filename: filename,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		retry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}
}

// Export overwrites the backup file with the current library. The outcome is
// reported through the notifier; local state is never touched.
func (x *Exporter) Export(ctx context.Context) error {
	state := x.source.Snapshot()
	content := Format(state, x.now())

	op := func() error {
		err := x.store.OverwriteFile(ctx, x.filename, content)
		if err != nil && (docstore.IsPermanent(err) || ctx.Err() != nil) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(x.retry(), ctx))
	if err != nil {
		err = fmt.Errorf("failed to write backup: %w", err)
		metrics.BackupTotal.WithLabelValues(metrics.ResultFailed).Inc()
	} else {
		metrics.BackupTotal.WithLabelValues(metrics.ResultOK).Inc()
		x.logger.WithFields(logrus.Fields{
			"file":      x.filename,
			"watchlist": len(state.Watchlist),
			"watched":   len(state.Watched),
		}).Info("Backup written")
	}

	x.notifier.BackupFinished(err)
	return err
}
