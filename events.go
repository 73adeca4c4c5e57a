package main

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Observer receives per-item progress from a batch. Methods may be called from
// several workers at once.
type Observer interface {
	ItemStarted(item MediaItem)
	ItemSucceeded(item MediaItem, reason string)
	ItemFailed(item MediaItem, kind ErrorKind, err error)
	BatchDone(result BatchResult)
}

// logObserver reports progress through zap.
type logObserver struct {
	logger *zap.Logger
	done   atomic.Int64
}

func newLogObserver(logger *zap.Logger) *logObserver {
	return &logObserver{logger: logger.Named("batch")}
}

func itemFields(item MediaItem) []zap.Field {
	fields := []zap.Field{zap.String("metadata_path", item.MetadataPath)}
	if item.MediaPath != "" {
		fields = append(fields, zap.String("media_path", item.MediaPath))
	}
	return fields
}

func (o *logObserver) ItemStarted(item MediaItem) {
	o.logger.Debug("processing item", itemFields(item)...)
}

func (o *logObserver) ItemSucceeded(item MediaItem, reason string) {
	n := o.done.Add(1)
	o.logger.Info("item exported",
		append(itemFields(item), zap.String("reason", reason), zap.Int64("done", n))...)
}

func (o *logObserver) ItemFailed(item MediaItem, kind ErrorKind, err error) {
	n := o.done.Add(1)
	o.logger.Error("item failed",
		append(itemFields(item), zap.String("kind", string(kind)), zap.Error(err), zap.Int64("done", n))...)
}

func (o *logObserver) BatchDone(result BatchResult) {
	o.logger.Info("batch finished",
		zap.Int("discovered", result.Discovered),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("walk_errors", result.WalkErrors))
}
