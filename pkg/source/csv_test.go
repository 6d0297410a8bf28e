// pkg/source/csv_test.go
package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/config"
	"github.com/citylab/incident-report/pkg/model"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incidents.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSourceLoad(t *testing.T) {
	path := writeCSV(t, "OCCUR_DATE,OCCUR_TIME,BORO\n"+
		"01/01/2020,23:30:00,BRONX\n"+
		" 01/02/2020 ,02:15:00,\n")

	src := NewCSVSource(path, zap.NewNop())
	defer src.Close()

	table, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"OCCUR_DATE", "OCCUR_TIME", "BORO"}, table.Schema.Names())
	for _, column := range table.Schema.Columns {
		assert.Equal(t, model.TypeString, column.Type)
	}
	require.Equal(t, 2, table.NumRows())

	date, ok := table.StringAt(0, "OCCUR_DATE")
	require.True(t, ok)
	assert.Equal(t, "01/01/2020", date)

	// Surrounding whitespace is trimmed, blank cells stay null
	date, ok = table.StringAt(1, "OCCUR_DATE")
	require.True(t, ok)
	assert.Equal(t, "01/02/2020", date)
	assert.True(t, table.IsNull(1, "BORO"))
}

func TestCSVSourceMissingFile(t *testing.T) {
	src := NewCSVSource(filepath.Join(t.TempDir(), "absent.csv"), zap.NewNop())
	_, err := src.Load(context.Background())
	assert.Error(t, err)
}

func TestCSVSourceEmptyFile(t *testing.T) {
	src := NewCSVSource(writeCSV(t, ""), zap.NewNop())
	_, err := src.Load(context.Background())
	assert.Error(t, err)
}

func TestCSVSourceHonorsCancellation(t *testing.T) {
	path := writeCSV(t, "BORO\nBRONX\n")
	src := NewCSVSource(path, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactoryCreatesCSVSource(t *testing.T) {
	path := writeCSV(t, "BORO\nBRONX\n")
	factory := NewSourceFactory(&config.Config{SourceKind: config.SourceCSV, CSVPath: path}, zap.NewNop())

	src, err := factory.Create(context.Background())
	require.NoError(t, err)
	defer src.Close()

	_, isCSV := src.(*CSVSource)
	assert.True(t, isCSV)
}

func TestFactoryRejectsUnknownKind(t *testing.T) {
	factory := NewSourceFactory(&config.Config{SourceKind: "ftp"}, zap.NewNop())
	_, err := factory.Create(context.Background())
	assert.Error(t, err)
}

func TestValidIdentifier(t *testing.T) {
	assert.NoError(t, validIdentifier("shooting_incidents"))
	assert.NoError(t, validIdentifier("NYPD.PUBLIC.SHOOTING_INCIDENTS"))
	assert.Error(t, validIdentifier("incidents; drop table runs"))
	assert.Error(t, validIdentifier(""))
	assert.Error(t, validIdentifier("1incidents"))
}
