// Copyright 2024-2026 Aiku AI

package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// WriteExport writes a Slack-style export to path. Each value of files is
// JSON-encoded under its key; []byte values are stored verbatim. Entries
// are written in name order so the output is reproducible.
func WriteExport(path string, files map[string]any) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	zw := zip.NewWriter(out)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		data, ok := files[name].([]byte)
		if !ok {
			data, err = json.Marshal(files[name])
			if err != nil {
				_ = out.Close()
				return fmt.Errorf("failed to encode %s: %w", name, err)
			}
		}
		w, err := zw.Create(name)
		if err != nil {
			_ = out.Close()
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err = w.Write(data); err != nil {
			_ = out.Close()
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	if err = zw.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return out.Close()
}
