package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestConsoleHandlerRendersComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writers: []io.Writer{&buf}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	WithComponent(logger, "ingest").Info("fetched messages", "count", 3)

	line := buf.String()
	if !strings.Contains(line, " INFO ingest: fetched messages") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "count=3") {
		t.Fatalf("missing attribute in line: %q", line)
	}
}

func TestConsoleHandlerQuotesAwkwardValues(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writers: []io.Writer{&buf}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("download failed", "path", "/tmp/a file.jpg", "empty", "")

	line := buf.String()
	if !strings.Contains(line, `path="/tmp/a file.jpg"`) {
		t.Fatalf("expected quoted path in line: %q", line)
	}
	if !strings.Contains(line, `empty=""`) {
		t.Fatalf("expected quoted empty value in line: %q", line)
	}
}

func TestConsoleHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writers: []io.Writer{&buf}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.WithGroup("run").Info("tagging complete", "batches", 2)

	if line := buf.String(); !strings.Contains(line, "run.batches=2") {
		t.Fatalf("expected flattened group key in line: %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Writers: []io.Writer{&buf}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestJSONHandlerRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Writers: []io.Writer{&buf}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("export complete", "path", "/srv/out.md")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if record["msg"] != "export complete" {
		t.Fatalf("msg = %v", record["msg"])
	}
	if record["level"] != "info" {
		t.Fatalf("level = %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("missing ts key in %v", record)
	}
	if record["path"] != "/srv/out.md" {
		t.Fatalf("path = %v", record["path"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected unknown format to be rejected")
	}
}
