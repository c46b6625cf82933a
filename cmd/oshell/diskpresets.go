package main

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// DiskPreset is one named disk-size preset loaded from a CSV table embedded
// in the binary.
type DiskPreset struct {
	Slug        string `csv:"slug"`
	Name        string `csv:"name"`
	SizeBytes   int64  `csv:"size_bytes"`
	Description string `csv:"description"`
}

//go:embed disk-presets.csv
var diskPresetsRawCSV string

var diskPresets map[string]DiskPreset

func init() {
	diskPresets = make(map[string]DiskPreset)
	reader := strings.NewReader(diskPresetsRawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row DiskPreset) error {
		if _, exists := diskPresets[row.Slug]; exists {
			return fmt.Errorf("duplicate disk preset slug %q", row.Slug)
		}
		diskPresets[row.Slug] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// getDiskPreset looks up a named preset by slug.
func getDiskPreset(slug string) (DiskPreset, error) {
	preset, ok := diskPresets[slug]
	if !ok {
		return DiskPreset{}, fmt.Errorf("no predefined disk preset exists with slug %q", slug)
	}
	return preset, nil
}

func listDiskPresets() []DiskPreset {
	out := make([]DiskPreset, 0, len(diskPresets))
	for _, p := range diskPresets {
		out = append(out, p)
	}
	return out
}
