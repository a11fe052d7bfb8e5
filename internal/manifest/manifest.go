// Package manifest parses a module's optional module.json declaration
// file: its dependency list and any auxiliary source inputs.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Manifest is the transient dependency descriptor parsed from a module's
// declaration file (spec.md §3). It is not retained after a compile.
type Manifest struct {
	Dependencies []string `json:"dependencies"`
	Sources      []string `json:"sources"`
	Options      map[string]string `json:"options,omitempty"`
}

// FileName is the manifest's expected filename inside a module directory.
const FileName = "module.json"

// Load reads and parses moduleDir/module.json. A missing file is not an
// error and yields an empty Manifest (spec.md's fallback: "a hard-coded
// table" — here, simply no declared dependencies). A malformed file is
// returned as an error; callers treat it as a warning and degrade to an
// empty Manifest per spec.md §7's "manifest parse error" row.
func Load(moduleDir string) (*Manifest, error) {
	path := filepath.Join(moduleDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// AssemblySources returns the subset of m.Sources recognized as
// architecture-specific assembly inputs (suffix ".S"), resolved relative
// to moduleDir and filtered to the ones matching the host arch tag, per
// spec.md §4.5 step 5.
func (m *Manifest) AssemblySources(moduleDir, archTag string) []string {
	var out []string
	for _, s := range m.Sources {
		if !strings.HasSuffix(s, ".S") {
			continue
		}
		if archTag != "" && !strings.Contains(s, archTag) {
			continue
		}
		out = append(out, filepath.Join(moduleDir, s))
	}
	return out
}
