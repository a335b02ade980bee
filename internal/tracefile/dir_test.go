package tracefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tead/internal/query"
	"github.com/roach88/tead/internal/testutil"
)

func collectIDs(t *testing.T, d *Dir, c query.Criteria) []string {
	t.Helper()
	var out []string
	for e, err := range d.Iterate(context.Background(), c) {
		require.NoError(t, err)
		out = append(out, e.ID)
	}
	return out
}

func TestFileName(t *testing.T) {
	e := sampleEntry(7, "github.com/acme/geo.Area", testutil.Epoch)

	assert.Equal(t, "github_com_acme_geo_Area__00000000-0000-7000-8000-000000000007.gjson", FileName(e, FormatJSON))
	assert.Equal(t, "github_com_acme_geo_Area__00000000-0000-7000-8000-000000000007.cue", FileName(e, FormatCUE))

	e.Target = "github.com/acme/geo.(*Grid).Cell"
	assert.Equal(t, "github_com_acme_geo__Grid_Cell__00000000-0000-7000-8000-000000000007.gjson", FileName(e, FormatJSON))
}

func TestDir_PersistWritesOneFile(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			d := openTestDir(t, WithFormat(f))
			e := sampleEntry(1, "geo.Area", testutil.Epoch)

			require.NoError(t, d.Persist(context.Background(), e))
			require.NoError(t, d.Persist(context.Background(), e))

			files, err := os.ReadDir(d.Root())
			require.NoError(t, err)
			require.Len(t, files, 1, "no temp files are left behind")
			assert.Equal(t, FileName(e, f), files[0].Name())

			assert.Equal(t, []string{e.ID}, collectIDs(t, d, query.Criteria{}))
		})
	}
}

func TestDir_PersistRejectsNonUUID(t *testing.T) {
	d := openTestDir(t)
	e := sampleEntry(1, "geo.Area", testutil.Epoch)
	e.ID = "../escape"

	assert.Error(t, d.Persist(context.Background(), e))
}

func TestDir_IterateSkipsCorruptFiles(t *testing.T) {
	d := openTestDir(t)
	require.NoError(t, d.Persist(context.Background(), sampleEntry(1, "geo.Area", testutil.Epoch)))

	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), "geo_Area__broken.gjson"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), "geo_Area__broken.cue"), []byte("trace_schema: "), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), "notes.txt"), []byte("ignored"), 0o644))

	assert.Equal(t, []string{testutil.FormatID(1)}, collectIDs(t, d, query.Criteria{}))
}

func TestDir_ReadsMixedFormats(t *testing.T) {
	root := t.TempDir()
	jsonDir, err := Open(root, WithLogger(discardLogger))
	require.NoError(t, err)
	cueDir, err := Open(root, WithLogger(discardLogger), WithFormat(FormatCUE))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, jsonDir.Persist(ctx, sampleEntry(1, "geo.Area", testutil.Epoch)))
	require.NoError(t, cueDir.Persist(ctx, sampleEntry(2, "geo.Area", testutil.Epoch.Add(time.Second))))
	// Same entry in both formats is read once
	require.NoError(t, cueDir.Persist(ctx, sampleEntry(1, "geo.Area", testutil.Epoch)))

	assert.Equal(t, []string{testutil.FormatID(1), testutil.FormatID(2)}, collectIDs(t, jsonDir, query.Criteria{}))

	n, err := jsonDir.Delete(ctx, query.Criteria{Before: testutil.Epoch})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	files, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDir_IterateCriteria(t *testing.T) {
	d := openTestDir(t)
	ctx := context.Background()
	for i, target := range []string{"geo.Area", "geo.Distance", "text.Wrap", "geo.Area"} {
		n := int64(i + 1)
		require.NoError(t, d.Persist(ctx, sampleEntry(n, target, testutil.Epoch.Add(time.Duration(n)*time.Hour))))
	}

	assert.Equal(t, []string{testutil.FormatID(1), testutil.FormatID(4)}, collectIDs(t, d, query.Criteria{Targets: []string{"geo.Area"}}))
	assert.Equal(t, []string{testutil.FormatID(1), testutil.FormatID(2)}, collectIDs(t, d, query.Criteria{Limit: 2}))
	assert.Equal(t, []string{testutil.FormatID(3)}, collectIDs(t, d, query.Criteria{Where: `target.startsWith("text.")`}))
}

func TestDir_Delete(t *testing.T) {
	d := openTestDir(t)
	ctx := context.Background()
	for i, target := range []string{"geo.Area", "geo.Distance", "text.Wrap"} {
		require.NoError(t, d.Persist(ctx, sampleEntry(int64(i+1), target, testutil.Epoch)))
	}

	n, err := d.Delete(ctx, query.Criteria{Targets: []string{"geo.*"}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{testutil.FormatID(3)}, collectIDs(t, d, query.Criteria{}))
}

func TestDir_MissingRootReadsEmpty(t *testing.T) {
	d := openTestDir(t)
	require.NoError(t, os.Remove(d.Root()))

	assert.Empty(t, collectIDs(t, d, query.Criteria{}))
}
