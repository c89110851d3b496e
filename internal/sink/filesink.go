// Package sink persists finished record sets and failure logs.
package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

var header = []string{
	"vehicle_type", "brand", "location", "dealer_name", "address",
	"phone", "email", "city", "state", "pincode", "source_url", "discovered_at",
}

// FileSink implements dealer.Sink against a local output directory.
type FileSink struct {
	dir    string
	clock  dealer.Clock
	logger *zap.Logger
}

// NewFileSink returns a sink rooted at dir, creating it if needed.
func NewFileSink(dir string, clock dealer.Clock, logger *zap.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, &dealer.PersistError{Path: dir, Err: fmt.Errorf("create output dir: %w", err)}
	}
	return &FileSink{dir: dir, clock: clock, logger: logger}, nil
}

// SaveRecords writes the record set in the requested format and returns the
// output path. An empty record set writes nothing and returns an empty path.
func (s *FileSink) SaveRecords(records []dealer.Record, format string, customFilename string) (string, error) {
	if len(records) == 0 {
		s.logger.Warn("no records to save")
		return "", nil
	}

	base, err := s.baseName(customFilename)
	if err != nil {
		return "", err
	}

	var ext string
	switch format {
	case "excel":
		ext = "xlsx"
	case "csv", "json":
		ext = format
	default:
		return "", &dealer.PersistError{Err: fmt.Errorf("unknown output format %q", format)}
	}
	path := filepath.Join(s.dir, base+"."+ext)

	switch format {
	case "excel":
		err = writeExcel(path, records)
	case "csv":
		err = writeCSV(path, records)
	case "json":
		err = writeJSON(path, records)
	}
	if err != nil {
		return "", err
	}

	s.logger.Info("records saved",
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.String("format", format),
	)
	return path, nil
}

// SaveFailures appends the failure log as JSON. No failures, no file.
func (s *FileSink) SaveFailures(failures []dealer.FailureRecord) error {
	if len(failures) == 0 {
		return nil
	}
	path := filepath.Join(s.dir, fmt.Sprintf("failed_scrapes_%s.json", s.timestamp()))
	body, err := json.MarshalIndent(failures, "", "  ")
	if err != nil {
		return &dealer.PersistError{Path: path, Err: fmt.Errorf("marshal failures: %w", err)}
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return &dealer.PersistError{Path: path, Err: err}
	}
	s.logger.Warn("failure log saved", zap.String("path", path), zap.Int("failures", len(failures)))
	return nil
}

func (s *FileSink) baseName(custom string) (string, error) {
	if custom == "" {
		return "dealers_" + s.timestamp(), nil
	}
	if strings.Contains(custom, "..") || strings.ContainsAny(custom, `/\`) {
		return "", &dealer.PersistError{Err: fmt.Errorf("invalid filename %q: path traversal detected", custom)}
	}
	return custom, nil
}

func (s *FileSink) timestamp() string {
	return s.clock.Now().Format("20060102_150405")
}

func row(rec dealer.Record) []string {
	return []string{
		rec.VehicleType,
		rec.Brand,
		rec.Location,
		rec.DealerName,
		rec.Address,
		rec.Phone,
		rec.Email,
		rec.City,
		rec.State,
		rec.Pincode,
		rec.SourceURL,
		rec.DiscoveredAt.Format(time.RFC3339),
	}
}

func writeCSV(path string, records []dealer.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return &dealer.PersistError{Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck // explicit close below catches write errors

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return &dealer.PersistError{Path: path, Err: fmt.Errorf("write header: %w", err)}
	}
	for _, rec := range records {
		if err := w.Write(row(rec)); err != nil {
			return &dealer.PersistError{Path: path, Err: fmt.Errorf("write record: %w", err)}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &dealer.PersistError{Path: path, Err: fmt.Errorf("flush csv: %w", err)}
	}
	if err := f.Close(); err != nil {
		return &dealer.PersistError{Path: path, Err: err}
	}
	return nil
}

func writeJSON(path string, records []dealer.Record) error {
	body, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &dealer.PersistError{Path: path, Err: fmt.Errorf("marshal records: %w", err)}
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return &dealer.PersistError{Path: path, Err: err}
	}
	return nil
}

func writeExcel(path string, records []dealer.Record) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	const sheet = "Dealers"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return &dealer.PersistError{Path: path, Err: fmt.Errorf("rename sheet: %w", err)}
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return &dealer.PersistError{Path: path, Err: fmt.Errorf("write header: %w", err)}
	}
	for i, rec := range records {
		cells := row(rec)
		values := make([]any, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return &dealer.PersistError{Path: path, Err: fmt.Errorf("cell name: %w", err)}
		}
		if err := f.SetSheetRow(sheet, axis, &values); err != nil {
			return &dealer.PersistError{Path: path, Err: fmt.Errorf("write row %d: %w", i+2, err)}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return &dealer.PersistError{Path: path, Err: err}
	}
	return nil
}
