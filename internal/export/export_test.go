package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/engine"
	"github.com/quarrydata/quarry/internal/schema"
)

func usersTable() *schema.Table {
	return &schema.Table{
		Name: "users",
		Columns: []*schema.Column{
			{Name: "id", Data: "row_id", Type: schema.TypeInt64, PrimaryKey: true},
			{Name: "name", Data: "person.full_name()", Type: schema.TypeString},
			{Name: "score", Data: "number.float(0, 1)", Type: schema.TypeFloat},
			{Name: "active", Data: "boolean.boolean()", Type: schema.TypeBoolean},
			{Name: "note", Data: "lorem.word()", Type: schema.TypeString, NullPercentage: 0.5},
		},
	}
}

func userRows() []engine.Row {
	return []engine.Row{
		{"row_id": int64(1), "id": int64(1), "name": "Ada, Lovelace", "score": 0.75, "active": true, "note": nil},
		{"row_id": int64(2), "id": int64(2), "name": "Bob O'Neil", "score": -1.5, "active": false, "note": "fine"},
	}
}

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestForFormat(t *testing.T) {
	for _, f := range []string{"csv", "json", "sql", "parquet"} {
		enc, err := ForFormat(f)
		require.NoError(t, err)
		assert.Equal(t, f, enc.Ext())
	}

	_, err := ForFormat("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, csvEncoder{}.Encode(&buf, usersTable(), userRows()))
	golden(t).Assert(t, "users_csv", buf.Bytes())
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jsonEncoder{}.Encode(&buf, usersTable(), userRows()))
	golden(t).Assert(t, "users_json", buf.Bytes())
}

func TestEncodeSQL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sqlEncoder{}.Encode(&buf, usersTable(), userRows()))
	golden(t).Assert(t, "users_sql", buf.Bytes())
}

func TestEncodeParquet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, parquetEncoder{}.Encode(&buf, usersTable(), userRows()))

	// A parquet file starts and ends with the PAR1 magic.
	b := buf.Bytes()
	require.Greater(t, len(b), 8)
	assert.Equal(t, []byte("PAR1"), b[:4])
	assert.Equal(t, []byte("PAR1"), b[len(b)-4:])
}

func TestEncodeEmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, csvEncoder{}.Encode(&buf, usersTable(), nil))
	assert.Equal(t, "id,name,score,active,note\n", buf.String())
}

func TestWriteTableSingleFile(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteTable(dir, csvEncoder{}, usersTable(), userRows())
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "users.csv")}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Bob O'Neil")
}

func TestWriteTableChunked(t *testing.T) {
	tbl := usersTable()
	tbl.ExportRowsPerFile = 1
	dir := t.TempDir()

	paths, err := WriteTable(dir, csvEncoder{}, tbl, userRows())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "users_000.csv"),
		filepath.Join(dir, "users_001.csv"),
	}, paths)

	for i, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		lines := bytes.Count(data, []byte("\n"))
		assert.Equal(t, 2, lines, "chunk %d has header plus one record", i)
	}
}
