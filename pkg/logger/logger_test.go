package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	defer func() { _ = Init() }()

	Get().Info(context.Background(), "extracted", String("subject", "alpha"), Float64("hr", 72.5),
		Bool("available", true), Duration("took", time.Second), Error(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "extracted" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["subject"] != "alpha" {
		t.Errorf("unexpected subject: %v", rec["subject"])
	}
	src, _ := rec["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected caller source to point at the test file, got %q", src)
	}
}

func TestLoggerUnknownFormat(t *testing.T) {
	if err := InitWith(&bytes.Buffer{}, "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerNamedAndWith(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	Named("extractor").With(String("run_id", "r1")).Warn(context.Background(), "skipped file")

	out := buf.String()
	for _, want := range []string{"component=extractor", "run_id=r1", "skipped file"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = SetLevelString("info")
		_ = Init()
	}()

	if err := SetLevelString("error"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("info line should be filtered at error level, got %q", buf.String())
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
