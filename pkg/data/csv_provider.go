package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// ColumnMapping configures which CSV column holds which field. Timestamps
// may be RFC3339-style strings (DateFormat) or millisecond epochs when
// DateFormat is empty.
type ColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
	HasHeader    bool
}

// DefaultFormat matches Bybit kline exports: epoch-millis first column.
var DefaultFormat = ColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	HasHeader:    true,
}

// CSVProvider loads historical candles from CSV files for backtests.
type CSVProvider struct {
	format ColumnMapping
}

func NewCSVProvider() *CSVProvider {
	return &CSVProvider{format: DefaultFormat}
}

func NewCSVProviderWithFormat(format ColumnMapping) *CSVProvider {
	return &CSVProvider{format: format}
}

func (p *CSVProvider) GetName() string {
	return "csv"
}

// LoadData reads the file and returns candles sorted oldest-first. Rows that
// fail to parse are rejected rather than skipped: a silent gap would corrupt
// a replay.
func (p *CSVProvider) LoadData(filename string) ([]types.OHLCV, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	line := 0
	if p.format.HasHeader {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		line++
	}

	var data []types.OHLCV
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line+1, err)
		}
		line++

		if len(record) < p.format.MinColumns {
			return nil, fmt.Errorf("line %d: expected at least %d columns, got %d",
				line, p.format.MinColumns, len(record))
		}

		candle, err := p.parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		data = append(data, candle)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("no candles in %s", filename)
	}

	sort.Slice(data, func(i, j int) bool {
		return data[i].Timestamp.Before(data[j].Timestamp)
	})
	return data, nil
}

func (p *CSVProvider) parseRow(record []string) (types.OHLCV, error) {
	var candle types.OHLCV

	ts, err := p.parseTimestamp(record[p.format.TimestampCol])
	if err != nil {
		return candle, err
	}
	candle.Timestamp = ts

	fields := []struct {
		name string
		col  int
		dst  *float64
	}{
		{"open", p.format.OpenCol, &candle.Open},
		{"high", p.format.HighCol, &candle.High},
		{"low", p.format.LowCol, &candle.Low},
		{"close", p.format.CloseCol, &candle.Close},
		{"volume", p.format.VolumeCol, &candle.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(record[f.col], 64)
		if err != nil {
			return candle, fmt.Errorf("invalid %s %q: %w", f.name, record[f.col], err)
		}
		*f.dst = v
	}

	if candle.High < candle.Low {
		return candle, fmt.Errorf("high %.8f below low %.8f", candle.High, candle.Low)
	}
	return candle, nil
}

func (p *CSVProvider) parseTimestamp(raw string) (time.Time, error) {
	if p.format.DateFormat != "" {
		ts, err := time.Parse(p.format.DateFormat, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
		}
		return ts, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch timestamp %q: %w", raw, err)
	}
	// Accept seconds as well as milliseconds.
	if ms < 1e12 {
		return time.Unix(ms, 0).UTC(), nil
	}
	return time.UnixMilli(ms).UTC(), nil
}
