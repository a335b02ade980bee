package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tead/internal/capture"
	"github.com/roach88/tead/internal/config"
	"github.com/roach88/tead/internal/testutil"
	"github.com/roach88/tead/internal/tracefile"
)

const (
	targetArea = "github.com/acme/geo.Area"
	targetCell = "github.com/acme/geo.(*Grid).Cell"
	targetWrap = "github.com/acme/text.Wrap"
)

// seedTraces records four calls into a fresh trace directory, one second
// apart starting at testutil.Epoch, with IDs FormatID(1) to FormatID(4).
func seedTraces(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "traces")
	d, err := tracefile.Open(dir, tracefile.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)

	g := capture.NewGuard(d,
		capture.WithLogger(slog.New(slog.DiscardHandler)),
		capture.WithAssembler(capture.NewAssembler(
			capture.WithClock(testutil.NewStepClock()),
			capture.WithIDs(testutil.NewSequentialIDs()),
		)),
	)
	calls := []struct {
		target string
		args   []any
		result any
	}{
		{targetArea, []any{2.0, 3.0}, 6.0},
		{targetArea, []any{1.0, 1.0}, 1.0},
		{targetWrap, []any{"hello world", 5}, []string{"hello", "world"}},
		{targetCell, []any{map[string]int{"w": 2}, 1}, 0},
	}
	ctx := context.Background()
	for _, c := range calls {
		_, err := g.Call(ctx, c.target, c.args, nil, func(context.Context) (any, error) {
			return c.result, nil
		})
		require.NoError(t, err)
	}
	return dir
}

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the CLI in isolation from the user's configuration files
// and environment.
func execute(t *testing.T, args ...string) result {
	t.Helper()
	home := t.TempDir()
	opts := &RootOptions{ConfigOptions: config.Options{
		WorkDir: home,
		HomeDir: home,
		Getenv:  func(string) string { return "" },
	}}
	cmd := newRootCommand(opts)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// decodeData unmarshals the data of a successful JSON response.
func decodeData[T any](t *testing.T, out string) T {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}
