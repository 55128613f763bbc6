package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDataEpochMillis(t *testing.T) {
	csv := "timestamp,open,high,low,close,volume\n" +
		"1767225600000,50000,50100,49900,50050,123.4\n" +
		"1767225900000,50050,50200,50000,50150,98.7\n"

	data, err := NewCSVProvider().LoadData(writeCSV(t, csv))
	require.NoError(t, err)
	require.Len(t, data, 2)

	assert.Equal(t, time.UnixMilli(1767225600000).UTC(), data[0].Timestamp)
	assert.Equal(t, 50000.0, data[0].Open)
	assert.Equal(t, 50150.0, data[1].Close)
	assert.Equal(t, 123.4, data[0].Volume)
}

func TestLoadDataSortsOldestFirst(t *testing.T) {
	csv := "timestamp,open,high,low,close,volume\n" +
		"1767225900000,50050,50200,50000,50150,98.7\n" +
		"1767225600000,50000,50100,49900,50050,123.4\n"

	data, err := NewCSVProvider().LoadData(writeCSV(t, csv))
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.True(t, data[0].Timestamp.Before(data[1].Timestamp))
}

func TestLoadDataRejectsBadRows(t *testing.T) {
	cases := []struct {
		name string
		csv  string
	}{
		{"bad price", "t,o,h,l,c,v\n1767225600000,x,50100,49900,50050,1\n"},
		{"inverted range", "t,o,h,l,c,v\n1767225600000,50000,49000,50100,50050,1\n"},
		{"short row", "t,o,h,l,c,v\n1767225600000,50000,50100\n"},
		{"empty file", "t,o,h,l,c,v\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCSVProvider().LoadData(writeCSV(t, tc.csv))
			assert.Error(t, err)
		})
	}
}

func TestLoadDataCustomDateFormat(t *testing.T) {
	format := DefaultFormat
	format.DateFormat = "2006-01-02 15:04:05"

	csv := "timestamp,open,high,low,close,volume\n" +
		"2026-01-01 00:00:00,50000,50100,49900,50050,123.4\n"

	data, err := NewCSVProviderWithFormat(format).LoadData(writeCSV(t, csv))
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, 2026, data[0].Timestamp.Year())
}

func TestLoadDataMissingFile(t *testing.T) {
	_, err := NewCSVProvider().LoadData(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
