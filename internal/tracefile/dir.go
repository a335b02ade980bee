package tracefile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/query"
)

// Dir is a directory of trace files.
//
// Dir implements capture.Sink and query.Source. Reads accept every format
// regardless of the format Dir writes.
//
// Thread-safety: safe for concurrent use. Concurrent processes may write to
// the same directory; every file is written once and renamed into place.
type Dir struct {
	root   string
	format Format
	logger *slog.Logger
}

// Option configures a Dir.
type Option func(*Dir)

// WithFormat selects the format new entries are written in. Defaults to
// FormatJSON.
func WithFormat(f Format) Option {
	return func(d *Dir) {
		d.format = f
	}
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dir) {
		d.logger = l
	}
}

// Open prepares root for use, creating it if needed.
func Open(root string, opts ...Option) (*Dir, error) {
	d := &Dir{root: root, format: FormatJSON, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	if _, err := ParseFormat(string(d.format)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	return d, nil
}

// Root returns the directory path.
func (d *Dir) Root() string {
	return d.root
}

// FileName returns the file name an entry is stored under.
func FileName(e ir.Entry, f Format) string {
	return sanitizeTarget(e.Target) + "__" + e.ID + f.Ext()
}

var targetReplacer = strings.NewReplacer(".", "_", "/", "_", "\\", "_", "*", "_", "(", "", ")", "")

func sanitizeTarget(target string) string {
	return targetReplacer.Replace(target)
}

// Persist writes e atomically. Writing an entry whose file already exists
// replaces it with identical content.
func (d *Dir) Persist(ctx context.Context, e ir.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("persist: entry id %q is not a UUID: %w", e.ID, err)
	}
	data, err := Marshal(e, d.format)
	if err != nil {
		return fmt.Errorf("persist entry %s: %w", e.ID, err)
	}
	if err := writeAtomic(filepath.Join(d.root, FileName(e, d.format)), data); err != nil {
		return fmt.Errorf("persist entry %s: %w", e.ID, err)
	}
	return nil
}

// writeAtomic writes data to a temporary file in the target directory and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tead-*.tmp")
	if err != nil {
		return err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// loaded is one readable trace file.
type loaded struct {
	path  string
	entry ir.Entry
}

// load reads every trace file under root in name order, skipping
// unreadable ones.
func (d *Dir) load(ctx context.Context) ([]loaded, error) {
	files, err := os.ReadDir(d.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read trace directory: %w", err)
	}

	var out []loaded
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		format, ok := formatOf(f.Name())
		if !ok {
			continue
		}
		path := filepath.Join(d.root, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			d.logger.Warn("skipping unreadable trace file", "path", path, "err", err)
			continue
		}
		e, err := Unmarshal(data, format)
		if err != nil {
			d.logger.Warn("skipping corrupt trace file", "path", path, "err", err)
			continue
		}
		out = append(out, loaded{path: path, entry: e})
	}
	return out, nil
}

// Iterate implements query.Source.
func (d *Dir) Iterate(ctx context.Context, c query.Criteria) iter.Seq2[ir.Entry, error] {
	return func(yield func(ir.Entry, error) bool) {
		files, err := d.load(ctx)
		if err != nil {
			yield(ir.Entry{}, err)
			return
		}
		// One entry may be stored in several formats; the first by name wins
		entries := make([]ir.Entry, 0, len(files))
		seen := make(map[string]bool, len(files))
		for _, f := range files {
			if seen[f.entry.ID] {
				continue
			}
			seen[f.entry.ID] = true
			entries = append(entries, f.entry)
		}
		for e, err := range query.Select(ctx, entries, c) {
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// Delete implements query.Source. Every file holding a matching entry is
// removed; the count is of distinct entries. Limit is ignored.
func (d *Dir) Delete(ctx context.Context, c query.Criteria) (int, error) {
	c.Limit = 0
	matcher, err := query.NewMatcher(c)
	if err != nil {
		return 0, err
	}
	files, err := d.load(ctx)
	if err != nil {
		return 0, err
	}

	var doomed []loaded
	for _, f := range files {
		ok, err := matcher.Match(f.entry)
		if err != nil {
			return 0, err
		}
		if ok {
			doomed = append(doomed, f)
		}
	}

	removed := make(map[string]bool)
	for _, f := range doomed {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return len(removed), fmt.Errorf("delete %s: %w", f.path, err)
		}
		removed[f.entry.ID] = true
	}
	return len(removed), nil
}
