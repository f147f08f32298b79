package engine

import "github.com/sirupsen/logrus"

// Notifier receives user-facing events from the engine and the backup exporter
type Notifier interface {
	SessionExpired()
	SyncFailed(err error)
	BackupFinished(err error)
}

// LogNotifier reports events to the log
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a notifier writing to logger
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SessionExpired() {
	n.logger.Warn("Remote session expired, please log in again")
}

func (n *LogNotifier) SyncFailed(err error) {
	n.logger.WithError(err).Error("Sync with remote account failed")
}

func (n *LogNotifier) BackupFinished(err error) {
	if err != nil {
		n.logger.WithError(err).Error("Backup failed")
		return
	}
	n.logger.Info("Backup completed")
}
