package segments

import (
	"errors"
	"testing"
	"time"
)

func TestParseTableFencedBlock(t *testing.T) {
	reply := "Here is the timetable you asked for:\n\n" +
		"```csv\n" +
		"event_id,start_time,end_time\n" +
		"E01,00:12,03:45\n" +
		"E02,03:45,10:00\n" +
		"```\n\nLet me know if you need anything else."
	segs, err := ParseTable(reply)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].EventID != "E01" || segs[0].Start != 12*time.Second {
		t.Fatalf("unexpected first segment: %+v", segs[0])
	}
	if segs[1].End != 10*time.Minute {
		t.Fatalf("unexpected second end: %v", segs[1].End)
	}
}

func TestParseTableFencedBlockWithoutHeader(t *testing.T) {
	reply := "```csv\nE01,00:10,00:20\n```"
	segs, err := ParseTable(reply)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(segs) != 1 || segs[0].EventID != "E01" {
		t.Fatalf("unexpected segments: %+v", segs)
	}
}

func TestParseTableBareHeaderScan(t *testing.T) {
	reply := "The events I heard were:\n\n" +
		"event_id,start_time,end_time\n" +
		"E01,00:30,01:00:00\n" +
		"E02,01:00:00,01:30:00\n" +
		"\n" +
		"E03,01:30:00,01:45:12\n" +
		"That is everything."
	segs, err := ParseTable(reply)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	if segs[2].End != time.Hour+45*time.Minute+12*time.Second {
		t.Fatalf("unexpected E03 end: %v", segs[2].End)
	}
}

func TestParseTableMalformedEndDegrades(t *testing.T) {
	reply := "event_id,start_time,end_time\nE01,00:30,unknown\n"
	segs, err := ParseTable(reply)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].End != 0 {
		t.Fatalf("expected unset end, got %v", segs[0].End)
	}
}

func TestParseTableNoTable(t *testing.T) {
	for _, reply := range []string{"", "no table here", "event_id,start_time,end_time"} {
		if _, err := ParseTable(reply); !errors.Is(err, ErrNoTable) {
			t.Fatalf("ParseTable(%q): expected ErrNoTable, got %v", reply, err)
		}
	}
}

func TestParseTableSkipsMalformedRows(t *testing.T) {
	reply := "event_id,start_time,end_time\n" +
		"justtext\n" // terminates the scan per original behavior
	if _, err := ParseTable(reply); !errors.Is(err, ErrNoTable) {
		t.Fatalf("expected ErrNoTable, got %v", err)
	}
}
