package segments

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

var headerFields = strings.Split(Header, ",")

// WriteCSV emits the timetable with the literal header row.
func WriteCSV(w io.Writer, segs []Segment) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headerFields); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, seg := range segs {
		record := []string{seg.EventID, FormatTimestamp(seg.Start), FormatTimestamp(seg.End)}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", seg.EventID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteCSVFile writes the timetable to the given path.
func WriteCSVFile(path string, segs []Segment) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	if err := WriteCSV(file, segs); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}
	return nil
}

// ReadCSV parses a timetable previously written by WriteCSV.
func ReadCSV(r io.Reader) ([]Segment, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(headerFields)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if strings.Join(header, ",") != Header {
		return nil, fmt.Errorf("unexpected csv header %q", strings.Join(header, ","))
	}

	var segs []Segment
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		start, err := ParseTimestamp(record[1])
		if err != nil {
			return nil, err
		}
		end, err := ParseTimestamp(record[2])
		if err != nil {
			return nil, err
		}
		segs = append(segs, Segment{EventID: record[0], Start: start, End: end})
	}
	return segs, nil
}
