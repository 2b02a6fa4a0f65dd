// Package scenarios runs the regression scenarios kept next to it through
// the full event pipeline.
package scenarios

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/kilianp07/openbat/core/scenario"
)

// LoadAll reads every *.yaml scenario in dir ordered by file name.
func LoadAll(dir string) ([]*scenario.Scenario, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	out := make([]*scenario.Scenario, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, f := range files {
		sc, err := scenario.Load(f)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[sc.Name]; dup {
			return nil, fmt.Errorf("scenario %q defined in %s and %s", sc.Name, prev, f)
		}
		seen[sc.Name] = f
		out = append(out, sc)
	}
	return out, nil
}
