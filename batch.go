package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchResult tallies one run. Discovered always equals Succeeded+Failed once
// the run completes without cancellation. WalkErrors counts directories that
// could not be read; their sidecars are never discovered.
type BatchResult struct {
	Discovered int
	Succeeded  int
	Failed     int
	WalkErrors int
}

// OK reports whether every discovered item was exported and the whole tree
// was walked.
func (r BatchResult) OK() bool {
	return r.Failed == 0 && r.WalkErrors == 0
}

// exporter writes one media item into the output tree and returns the
// destination path.
type exporter interface {
	Export(ctx context.Context, item MediaItem, rec MetadataRecord) (string, error)
}

type batch struct {
	root       string
	outRoot    string
	editedWord string
	workers    int
	dryRun     bool

	locator   MediaLocator
	exporters map[Codec]exporter
	observer  Observer
	logger    *zap.Logger

	mu     sync.Mutex
	result BatchResult

	claimed map[string]string // output path -> sidecar that claimed it; Run's goroutine only
}

func newBatch(cfg Config, locator MediaLocator, encoder Encoder, observer Observer, logger *zap.Logger) *batch {
	return &batch{
		root:       cfg.Root,
		outRoot:    cfg.Output,
		editedWord: cfg.EditedWord,
		workers:    cfg.Workers,
		dryRun:     cfg.DryRun,
		locator:    locator,
		exporters: map[Codec]exporter{
			CodecImage: newImageExporter(cfg, logger),
			CodecVideo: newVideoExporter(cfg, encoder, logger),
		},
		observer: observer,
		logger:   logger,
		claimed:  make(map[string]string),
	}
}

// Run discovers every item under the root and exports it. Item failures are
// counted, never returned; the error is only for a cancelled context.
func (b *batch) Run(ctx context.Context) (BatchResult, error) {
	workers := b.workers
	if workers < 1 {
		workers = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for item, err := range discover(b.root, b.editedWord, b.locator) {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			b.logger.Error("discovery", zap.Error(err))
			b.mu.Lock()
			b.result.WalkErrors++
			b.mu.Unlock()
			continue
		}

		b.mu.Lock()
		b.result.Discovered++
		b.mu.Unlock()

		// Claims are taken in discovery order so the winner of a collision
		// does not depend on worker scheduling.
		conflict := b.claimOutput(item)
		g.Go(func() error {
			b.process(ctx, item, conflict)
			return nil
		})
	}
	_ = g.Wait()

	b.mu.Lock()
	result := b.result
	b.mu.Unlock()

	b.observer.BatchDone(result)
	return result, ctx.Err()
}

// claimOutput reserves the output path of a resolved, supported item. It
// returns an error when an earlier item already maps to the same path.
func (b *batch) claimOutput(item MediaItem) error {
	if !item.Resolved() || classify(item.MediaPath) == CodecUnsupported {
		return nil
	}
	dst, err := outputPath(b.root, b.outRoot, item.MediaPath)
	if err != nil {
		return nil
	}
	if owner, ok := b.claimed[dst]; ok {
		return newItemError(KindOutputConflict, item,
			fmt.Errorf("output %s already belongs to %s", dst, owner))
	}
	b.claimed[dst] = item.MetadataPath
	return nil
}

func (b *batch) process(ctx context.Context, item MediaItem, conflict error) {
	b.observer.ItemStarted(item)

	reason, err := b.export(ctx, item, conflict)

	b.mu.Lock()
	if err != nil {
		b.result.Failed++
	} else {
		b.result.Succeeded++
	}
	b.mu.Unlock()

	if err != nil {
		b.observer.ItemFailed(item, kindOf(err), err)
		return
	}
	b.observer.ItemSucceeded(item, reason)
}

func (b *batch) export(ctx context.Context, item MediaItem, conflict error) (string, error) {
	if !item.Resolved() {
		return "", newItemError(KindUnresolvedMedia, item, errors.New("no media file matches this sidecar"))
	}

	codec := classify(item.MediaPath)
	exp, ok := b.exporters[codec]
	if !ok {
		return "", newItemError(KindUnsupportedCodec, item,
			fmt.Errorf("extension %q is not supported", extensionOf(item.MediaPath)))
	}

	if conflict != nil {
		return "", conflict
	}

	rec, err := readSidecar(item.MetadataPath)
	if err != nil {
		return "", newItemError(KindMetadataParse, item, err)
	}

	if b.dryRun {
		dst, err := outputPath(b.root, b.outRoot, item.MediaPath)
		if err != nil {
			return "", newItemError(KindEncode, item, err)
		}
		return fmt.Sprintf("dry run: would write %s %s", codec, dst), nil
	}

	dst, err := exp.Export(ctx, item, rec)
	if err != nil {
		if kindOf(err) == kindUnknown {
			err = newItemError(kindUnknown, item, err)
		}
		return "", err
	}
	return fmt.Sprintf("%s written to %s", codec, dst), nil
}
