package segments

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteCSVEmitsLiteralHeader(t *testing.T) {
	var buf bytes.Buffer
	segs := []Segment{
		{EventID: "E01", Start: 30 * time.Second, End: 5 * time.Minute},
		{EventID: "E02", Start: 5 * time.Minute, End: time.Hour + 15*time.Minute},
	}
	if err := WriteCSV(&buf, segs); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != Header {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "E01,00:30,05:00" {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
	if lines[2] != "E02,05:00,01:15:00" {
		t.Fatalf("unexpected second row: %q", lines[2])
	}
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video_segments.csv")
	segs := []Segment{
		{EventID: "E01", Start: 0, End: 90 * time.Second},
		{EventID: "E02", Start: 90 * time.Second, End: 2 * time.Hour},
	}
	if err := WriteCSVFile(path, segs); err != nil {
		t.Fatalf("WriteCSVFile: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	got, err := ReadCSV(file)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(got) != len(segs) {
		t.Fatalf("expected %d segments, got %d", len(segs), len(got))
	}
	for i := range segs {
		if got[i] != segs[i] {
			t.Fatalf("segment %d mismatch: got %+v want %+v", i, got[i], segs[i])
		}
	}
}

func TestReadCSVRejectsWrongHeader(t *testing.T) {
	r := strings.NewReader("id,start,end\nE01,00:01,00:02\n")
	if _, err := ReadCSV(r); err == nil {
		t.Fatal("expected header mismatch error")
	}
}
