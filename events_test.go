package main

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogObserverFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	o := newLogObserver(zap.New(core))

	resolved := MediaItem{MetadataPath: "a/IMG.jpg.json", MediaPath: "a/IMG.jpg"}
	orphan := MediaItem{MetadataPath: "a/lost.jpg.json"}

	o.ItemStarted(resolved)
	o.ItemSucceeded(resolved, "image written")
	o.ItemFailed(orphan, KindUnresolvedMedia, errors.New("no media file"))
	o.BatchDone(BatchResult{Discovered: 2, Succeeded: 1, Failed: 1})

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("Expected 4 log entries, got %d", len(entries))
	}

	success := entries[1].ContextMap()
	if success["media_path"] != "a/IMG.jpg" || success["metadata_path"] != "a/IMG.jpg.json" {
		t.Errorf("Success entry lacks paths: %v", success)
	}
	if success["done"] != int64(1) {
		t.Errorf("Expected done=1, got %v", success["done"])
	}

	failure := entries[2]
	if failure.Level != zapcore.ErrorLevel {
		t.Errorf("Expected failures at error level, got %s", failure.Level)
	}
	fields := failure.ContextMap()
	if _, ok := fields["media_path"]; ok {
		t.Errorf("Unresolved item should not log a media path: %v", fields)
	}
	if fields["kind"] != string(KindUnresolvedMedia) || fields["done"] != int64(2) {
		t.Errorf("Unexpected failure fields: %v", fields)
	}

	if done := entries[3].ContextMap(); done["failed"] != int64(1) {
		t.Errorf("Expected failed=1 in summary, got %v", done)
	}
}

func TestItemErrorKind(t *testing.T) {
	item := MediaItem{MetadataPath: "x.json", MediaPath: "x.mov"}
	cause := errors.New("exit status 1")
	err := error(newItemError(KindEncoderInvocation, item, cause))

	if kindOf(err) != KindEncoderInvocation {
		t.Errorf("Expected %s, got %s", KindEncoderInvocation, kindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Errorf("ItemError should unwrap to its cause")
	}
	if got := err.Error(); got != "encoder_invocation: x.mov: exit status 1" {
		t.Errorf("Unexpected message %q", got)
	}
	if kindOf(cause) != kindUnknown {
		t.Errorf("Plain errors should have no kind")
	}
}
