package manifestio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/jobd/internal/manifest"
)

// manifestGlob mirrors the original jobcfg.c import_from_directory loop,
// which only considers direct children ending in ".toml".
const manifestGlob = "*.toml"

// LoadDirectory loads every *.toml child of dir, sorted by filename for a
// deterministic import order, and returns all records or the first parse
// error encountered. Per spec.md §4.2, the caller is responsible for
// treating this as all-or-nothing within its transaction.
func LoadDirectory(dir string) ([]*manifest.Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read manifest directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := doublestar.Match(manifestGlob, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("match manifest pattern against %s: %w", entry.Name(), err)
		}
		if matched {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	records := make([]*manifest.Record, 0, len(names))
	for _, name := range names {
		record, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
