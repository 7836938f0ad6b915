package chat

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/sagalabs/saga/internal/ai"
)

func exportTurns() []Turn {
	at := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	return []Turn{
		{Role: ai.RoleUser, Text: "Where was the Eiffel Tower built, and when?", Timestamp: at},
		{Role: ai.RoleModel, Text: "Paris, 1889.", Timestamp: at.Add(2 * time.Second)},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, exportTurns()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	raw := buf.Bytes()
	if !bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("CSV output missing UTF-8 BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 rows", len(records))
	}
	if got := strings.Join(records[0], ","); got != "Role,Message,Timestamp" {
		t.Errorf("header = %q", got)
	}
	if records[1][0] != "user" || records[2][0] != "model" {
		t.Errorf("roles = %q, %q", records[1][0], records[2][0])
	}
	if records[2][1] != "Paris, 1889." {
		t.Errorf("model text = %q", records[2][1])
	}
	if records[1][2] != "2026-08-25 09:30:00" {
		t.Errorf("timestamp = %q", records[1][2])
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, "Tower talk", exportTurns()); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# Tower talk", "## User", "## Model", "Paris, 1889."} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, "Tower talk", exportTurns()); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<!DOCTYPE html>", "<title>Tower talk</title>", "Paris, 1889."} {
		if !strings.Contains(out, want) {
			t.Errorf("html output missing %q", want)
		}
	}
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2026, 8, 25, 14, 3, 5, 0, time.UTC)
	tests := []struct {
		format string
		want   string
	}{
		{"csv", "history_log_2026-08-25_14-03-05.csv"},
		{"markdown", "history_log_2026-08-25_14-03-05.md"},
		{"html", "history_log_2026-08-25_14-03-05.html"},
		{"", "history_log_2026-08-25_14-03-05.csv"},
	}
	for _, tt := range tests {
		if got := ExportFilename(tt.format, now); got != tt.want {
			t.Errorf("ExportFilename(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestExportUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, "pdf", "t", exportTurns()); err == nil {
		t.Error("unknown format should error")
	}
}
