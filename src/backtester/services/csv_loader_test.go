package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCsv(t *testing.T, name string, content string) string {
	t.Helper()

	filename := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))

	return filename
}

func TestLoadBarsFromCsv(t *testing.T) {
	t.Run("loads and sorts out-of-order rows", func(t *testing.T) {
		filename := writeTempCsv(t, "bars.csv", `time,open,high,low,close,volume
2021-01-06,101,103,100,102,1200
2021-01-04,100,101,99,100,1000
2021-01-05,100,102,99,101,1100
`)

		bars, err := LoadBarsFromCsv(filename)
		require.NoError(t, err)

		require.Len(t, bars, 3)
		assert.Equal(t, time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
		assert.Equal(t, time.Date(2021, 1, 6, 0, 0, 0, 0, time.UTC), bars[2].Timestamp)
		assert.Equal(t, 100.0, bars[0].Close)
	})

	t.Run("accepts RFC3339 timestamps", func(t *testing.T) {
		filename := writeTempCsv(t, "bars.csv", `time,open,high,low,close,volume
2021-01-04T14:30:00Z,100,101,99,100,1000
`)

		bars, err := LoadBarsFromCsv(filename)
		require.NoError(t, err)

		require.Len(t, bars, 1)
		assert.Equal(t, time.Date(2021, 1, 4, 14, 30, 0, 0, time.UTC), bars[0].Timestamp)
	})

	t.Run("rejects duplicate timestamps", func(t *testing.T) {
		filename := writeTempCsv(t, "bars.csv", `time,open,high,low,close,volume
2021-01-04,100,101,99,100,1000
2021-01-04,100,102,99,101,1100
`)

		_, err := LoadBarsFromCsv(filename)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate bar")
	})

	t.Run("rejects an empty series", func(t *testing.T) {
		filename := writeTempCsv(t, "bars.csv", "time,open,high,low,close,volume\n")

		_, err := LoadBarsFromCsv(filename)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no bars")
	})

	t.Run("rejects unparseable timestamps", func(t *testing.T) {
		filename := writeTempCsv(t, "bars.csv", `time,open,high,low,close,volume
01/04/2021,100,101,99,100,1000
`)

		_, err := LoadBarsFromCsv(filename)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadBarsFromCsv(filepath.Join(t.TempDir(), "absent.csv"))
		assert.Error(t, err)
	})
}

func TestLoadSentimentFromCsv(t *testing.T) {
	t.Run("groups by symbol and sorts", func(t *testing.T) {
		filename := writeTempCsv(t, "sentiment.csv", `time,symbol,score,article_count
2021-01-05,AAPL,0.4,3
2021-01-04,AAPL,-0.2,1
2021-01-04,MSFT,0.1,2
`)

		grouped, err := LoadSentimentFromCsv(filename)
		require.NoError(t, err)

		require.Len(t, grouped, 2)
		require.Len(t, grouped["AAPL"], 2)
		assert.Equal(t, -0.2, grouped["AAPL"][0].Score)
		assert.Equal(t, 0.4, grouped["AAPL"][1].Score)
		require.Len(t, grouped["MSFT"], 1)
	})

	t.Run("rejects out-of-range scores", func(t *testing.T) {
		filename := writeTempCsv(t, "sentiment.csv", `time,symbol,score,article_count
2021-01-04,AAPL,1.5,3
`)

		_, err := LoadSentimentFromCsv(filename)
		assert.Error(t, err)
	})
}
