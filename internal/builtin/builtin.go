// Package builtin ships the hand-authored macros bundled with keyloop.
package builtin

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"keyloop/internal/macro"
)

//go:embed macros/*.yaml
var files embed.FS

// Load decodes every bundled macro. Built-ins loop until stopped unless their
// definition says otherwise.
func Load() ([]macro.Macro, error) {
	names, err := fs.Glob(files, "macros/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var out []macro.Macro
	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return nil, err
		}
		ms, err := macro.DecodeYAML(data)
		if err != nil {
			return nil, fmt.Errorf("built-in %s: %w", name, err)
		}
		for _, m := range ms {
			m.BuiltIn = true
			out = append(out, m)
		}
	}
	return out, nil
}

// MustLoad is Load for bundled data that is known to be valid.
func MustLoad() []macro.Macro {
	ms, err := Load()
	if err != nil {
		panic(err)
	}
	return ms
}
