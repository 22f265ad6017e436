package subset

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	db "github.com/KazanKK/sqlsubset/database"

	"github.com/stretchr/testify/require"
)

// countingSource is a SourceManager that only answers row counts
type countingSource struct {
	db.SourceManager
	counts map[string]int64
	err    error
}

func (c *countingSource) CountRows(_ context.Context, table string) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.counts[table], nil
}

func newSource(t *testing.T, imageRows int, objects ...db.ObjectTable) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.sqlite")
	s, err := db.CreateSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, db.GeneratePlateData(context.Background(), s, db.PlateSpec{
		ImageRows: imageRows,
		Objects:   objects,
		Seed:      1,
	}))
	return path
}

func rowCounts(t *testing.T, path string) map[string]int64 {
	t.Helper()
	src, err := db.Open(path)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	tables, err := src.ListTables(ctx)
	require.NoError(t, err)

	counts := make(map[string]int64)
	for _, table := range tables {
		n, err := src.CountRows(ctx, table)
		require.NoError(t, err)
		counts[table] = n
	}
	return counts
}

func TestResolveLimit(t *testing.T) {
	src := &countingSource{counts: map[string]int64{"Image": 5, "A": 100, "B": 50}}
	ctx := context.Background()

	limit, err := ResolveLimit(ctx, src, []string{"Image", "A", "B"}, "Image", 30)
	require.NoError(t, err)
	require.EqualValues(t, 50, limit.Minimum)
	require.EqualValues(t, 30, limit.Effective)
	require.NotContains(t, limit.Counts, "Image")

	// boundary: exactly the smallest table is allowed
	limit, err = ResolveLimit(ctx, src, []string{"Image", "A", "B"}, "Image", 50)
	require.NoError(t, err)
	require.EqualValues(t, 50, limit.Effective)

	_, err = ResolveLimit(ctx, src, []string{"Image", "A", "B"}, "Image", 51)
	require.ErrorIs(t, err, ErrSampleTooLarge)
}

func TestResolveLimitErrors(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{counts: map[string]int64{"Image": 5}}

	_, err := ResolveLimit(ctx, src, []string{"Image"}, "Image", 1)
	require.ErrorIs(t, err, ErrNoEligibleTables)

	_, err = ResolveLimit(ctx, src, nil, "Image", 1)
	require.ErrorIs(t, err, ErrNoEligibleTables)

	_, err = ResolveLimit(ctx, src, []string{"A"}, "Image", -1)
	require.ErrorIs(t, err, ErrInvalidSampleSize)

	boom := errors.New("disk I/O error")
	_, err = ResolveLimit(ctx, &countingSource{err: boom}, []string{"A"}, "Image", 1)
	require.ErrorIs(t, err, boom)
}

func TestRunScenario(t *testing.T) {
	input := newSource(t, 5, db.ObjectTable{Name: "A", Rows: 100}, db.ObjectTable{Name: "B", Rows: 50})
	output := filepath.Join(t.TempDir(), "subset.sqlite")

	result, err := Run(context.Background(), Options{
		Input:       input,
		Output:      output,
		SampleSize:  30,
		ExemptTable: "Image",
	})
	require.NoError(t, err)
	require.EqualValues(t, 30, result.Limit.Effective)
	require.Equal(t, []TableResult{
		{Name: "Image", Rows: 5, Exempt: true},
		{Name: "A", Rows: 30},
		{Name: "B", Rows: 30},
	}, result.Tables)

	require.Equal(t, map[string]int64{"Image": 5, "A": 30, "B": 30}, rowCounts(t, output))
}

func TestRunPreservesColumns(t *testing.T) {
	input := newSource(t, 3, db.ObjectTable{Name: "Cells", Rows: 10})
	output := filepath.Join(t.TempDir(), "subset.sqlite")

	_, err := Run(context.Background(), Options{Input: input, Output: output, SampleSize: 4, ExemptTable: "Image"})
	require.NoError(t, err)

	src, err := db.Open(input)
	require.NoError(t, err)
	defer src.Close()
	dst, err := db.Open(output)
	require.NoError(t, err)
	defer dst.Close()

	ctx := context.Background()
	for _, table := range []string{"Image", "Cells"} {
		want, err := src.Columns(ctx, table)
		require.NoError(t, err)
		got, err := dst.Columns(ctx, table)
		require.NoError(t, err)
		require.Equal(t, db.Table{Columns: want}.ColumnNames(), db.Table{Columns: got}.ColumnNames(), table)
	}
}

func TestRunCopiesLeadingRows(t *testing.T) {
	input := newSource(t, 2, db.ObjectTable{Name: "Cells", Rows: 10})
	output := filepath.Join(t.TempDir(), "subset.sqlite")

	_, err := Run(context.Background(), Options{Input: input, Output: output, SampleSize: 3, ExemptTable: "Image"})
	require.NoError(t, err)

	conn, err := sql.Open("sqlite", output)
	require.NoError(t, err)
	defer conn.Close()

	rows, err := conn.Query(`SELECT ObjectNumber FROM Cells`)
	require.NoError(t, err)
	defer rows.Close()
	var got []int64
	for rows.Next() {
		var n int64
		require.NoError(t, rows.Scan(&n))
		got = append(got, n)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestRunTooLargeWritesNothing(t *testing.T) {
	input := newSource(t, 0, db.ObjectTable{Name: "A", Rows: 10}, db.ObjectTable{Name: "B", Rows: 10})
	output := filepath.Join(t.TempDir(), "subset.sqlite")

	_, err := Run(context.Background(), Options{Input: input, Output: output, SampleSize: 20, ExemptTable: "Image"})
	require.ErrorIs(t, err, ErrSampleTooLarge)
	require.NoFileExists(t, output)

	_, err = Run(context.Background(), Options{Input: input, Output: output, SampleSize: 11, ExemptTable: "Image"})
	require.ErrorIs(t, err, ErrSampleTooLarge)
	require.NoFileExists(t, output)

	_, err = Run(context.Background(), Options{Input: input, Output: output, SampleSize: 10, ExemptTable: "Image"})
	require.NoError(t, err)
	require.FileExists(t, output)
}

func TestRunIsIdempotent(t *testing.T) {
	input := newSource(t, 4, db.ObjectTable{Name: "A", Rows: 40}, db.ObjectTable{Name: "B", Rows: 25})
	output := filepath.Join(t.TempDir(), "subset.sqlite")
	opts := Options{Input: input, Output: output, SampleSize: 25, ExemptTable: "Image"}

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)
	first := rowCounts(t, output)

	_, err = Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, first, rowCounts(t, output))
	require.Equal(t, map[string]int64{"Image": 4, "A": 25, "B": 25}, first)
}

func TestRunZeroSampleSize(t *testing.T) {
	input := newSource(t, 3, db.ObjectTable{Name: "A", Rows: 10}, db.ObjectTable{Name: "B", Rows: 0})
	output := filepath.Join(t.TempDir(), "subset.sqlite")

	result, err := Run(context.Background(), Options{Input: input, Output: output, SampleSize: 0, ExemptTable: "Image"})
	require.NoError(t, err)
	require.EqualValues(t, 0, result.Limit.Minimum)
	require.EqualValues(t, 0, result.Limit.Effective)
	require.Equal(t, map[string]int64{"Image": 3, "A": 0, "B": 0}, rowCounts(t, output))

	_, err = Run(context.Background(), Options{Input: input, Output: output, SampleSize: 1, ExemptTable: "Image"})
	require.ErrorIs(t, err, ErrSampleTooLarge)
}

func TestRunKeepsDateAndBooleanValues(t *testing.T) {
	input := filepath.Join(t.TempDir(), "typed.sqlite")
	conn, err := sql.Open("sqlite", input)
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE Image (ImageNumber INTEGER);
		INSERT INTO Image VALUES (1);
		CREATE TABLE A (id INTEGER, ts DATETIME, d DATE, ts2 TIMESTAMP, flag BOOLEAN);
		INSERT INTO A VALUES
			(1, '2021-03-04 10:00:00', '2021-03-04', '2021-03-04T10:00:00Z', 1),
			(2, '2021-03-05', 20210305, 1614938400, 0),
			(3, 'not a date', '2021-03-06 00:00:00.123', '2021-03-06T10:00:00+02:00', 'yes');`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	output := filepath.Join(t.TempDir(), "subset.sqlite")
	_, err = Run(context.Background(), Options{Input: input, Output: output, SampleSize: 3, ExemptTable: "Image"})
	require.NoError(t, err)

	dump := func(path string) [][]string {
		conn, err := sql.Open("sqlite", path)
		require.NoError(t, err)
		defer conn.Close()

		rows, err := conn.Query(`SELECT
			CAST(ts AS TEXT), typeof(ts),
			CAST(d AS TEXT), typeof(d),
			CAST(ts2 AS TEXT), typeof(ts2),
			CAST(flag AS TEXT), typeof(flag)
			FROM A ORDER BY id`)
		require.NoError(t, err)
		defer rows.Close()

		var out [][]string
		for rows.Next() {
			row := make([]string, 8)
			ptrs := make([]interface{}, len(row))
			for i := range row {
				ptrs[i] = &row[i]
			}
			require.NoError(t, rows.Scan(ptrs...))
			out = append(out, row)
		}
		require.NoError(t, rows.Err())
		return out
	}

	want := dump(input)
	require.Len(t, want, 3)
	require.Equal(t, []string{
		"2021-03-04 10:00:00", "text",
		"2021-03-04", "text",
		"2021-03-04T10:00:00Z", "text",
		"1", "integer",
	}, want[0])
	require.Equal(t, want, dump(output))
}

func TestRunMissingInput(t *testing.T) {
	output := filepath.Join(t.TempDir(), "subset.sqlite")
	_, err := Run(context.Background(), Options{
		Input:       filepath.Join(t.TempDir(), "nope.sqlite"),
		Output:      output,
		SampleSize:  1,
		ExemptTable: "Image",
	})
	require.Error(t, err)
	require.NoFileExists(t, output)
}

func TestVerifyOutput(t *testing.T) {
	dir := t.TempDir()
	require.ErrorIs(t, VerifyOutput(filepath.Join(dir, "missing.sqlite")), ErrOutputMissing)
	require.ErrorIs(t, VerifyOutput(dir), ErrOutputMissing)
}
