// Package dataset inspects local dataset files before they are uploaded.
package dataset

import (
	"path/filepath"
	"strings"

	"github.com/metcalfc/spectra/internal/errs"
)

// Format describes a dataset file type the service accepts.
type Format interface {
	Name() string
	Extensions() []string
	ContentType() string
	Inspect(filename string) (*Summary, error)
}

var registry []Format

// Register adds a format to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// Lookup finds the registered format for filename by extension.
func Lookup(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f, nil
			}
		}
	}
	return nil, errs.Newf(errs.CodeDataset, "unsupported dataset %q (supported: %s)",
		filepath.Base(filename), strings.Join(SupportedFormats(), ", "))
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}

// Inspect summarizes filename using its registered format.
func Inspect(filename string) (*Summary, error) {
	f, err := Lookup(filename)
	if err != nil {
		return nil, err
	}
	return f.Inspect(filename)
}
