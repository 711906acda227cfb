package logadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	groups "github.com/goliatone/go-groups"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func skipEvent() groups.ReconcileLogEvent {
	return groups.ReconcileLogEvent{
		Level:  groups.LogLevelWarn,
		Stage:  groups.StageSkip,
		Key:    "combat.groupedOverlay.myOverlays.ids",
		Field:  "myOverlays",
		Index:  2,
		ID:     "-1",
		Reason: groups.SkipInvalidID,
		Err:    groups.ErrInvalidID,
	}
}

func TestZapMapsLevelAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := Zap(zap.New(core))

	logger.LogReconcile(skipEvent())
	logger.LogReconcile(groups.ReconcileLogEvent{
		Level:     groups.LogLevelInfo,
		Stage:     groups.StageCommit,
		Key:       "combat.groupedOverlay.myOverlays.ids",
		Installed: 3,
		Skipped:   1,
		Duration:  2 * time.Millisecond,
	})

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	skip := entries[0]
	if skip.Level != zapcore.WarnLevel || skip.Message != message {
		t.Fatalf("unexpected skip entry %+v", skip.Entry)
	}
	fields := skip.ContextMap()
	if fields["reason"] != "invalid_id" || fields["id"] != "-1" || fields["index"] != int64(2) {
		t.Fatalf("unexpected skip fields %v", fields)
	}
	if fields["error"] != groups.ErrInvalidID.Error() {
		t.Fatalf("expected error field, got %v", fields["error"])
	}

	commit := entries[1].ContextMap()
	if entries[1].Level != zapcore.InfoLevel || commit["installed"] != int64(3) || commit["duration"] != 2*time.Millisecond {
		t.Fatalf("unexpected commit entry %v", commit)
	}
	if _, ok := commit["reason"]; ok {
		t.Fatalf("commit entry must not carry skip fields")
	}
}

func TestZapRespectsCoreLevel(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger := Zap(zap.New(core))

	logger.LogReconcile(skipEvent())
	logger.LogReconcile(groups.ReconcileLogEvent{Level: groups.LogLevelError, Stage: groups.StageAbort, Err: errors.New("write failed")})

	if logs.Len() != 1 || logs.All()[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected only the error entry, got %d", logs.Len())
	}
}

func TestZapNilLoggerDiscards(t *testing.T) {
	Zap(nil).LogReconcile(skipEvent())
}

func TestSlogMapsLevelAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := Slog(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.LogReconcile(skipEvent())

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["level"] != "WARN" || record["msg"] != message {
		t.Fatalf("unexpected record %v", record)
	}
	if record["stage"] != "skip" || record["reason"] != "invalid_id" || record["index"] != float64(2) {
		t.Fatalf("unexpected attrs %v", record)
	}
	if record["error"] != groups.ErrInvalidID.Error() {
		t.Fatalf("expected error attr, got %v", record["error"])
	}
}

func TestSlogWithReconciler(t *testing.T) {
	var buf bytes.Buffer
	logger := Slog(slog.New(slog.NewJSONHandler(&buf, nil)))

	type host struct{ Items []*item }
	h := &host{}
	d, err := groups.DescriptorFor[*item](groups.NamespaceOwner("inv"), "items", groups.Classification{}, 0, groups.NewSliceAccessor(&h.Items))
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	registry := groups.NewFactoryRegistry()
	groups.MustRegisterConstructor(registry, func(id int) (*item, error) { return &item{id: id}, nil })
	r, err := groups.NewReconciler(registry, groups.WithLogger(logger))
	if err != nil {
		t.Fatalf("reconciler: %v", err)
	}

	r.Reconcile(d, groups.IDs(1))
	if !bytes.Contains(buf.Bytes(), []byte(`"stage":"commit"`)) {
		t.Fatalf("expected commit record, got %s", buf.String())
	}
}

type item struct{ id int }

func (i *item) ElementID() int { return i.id }
