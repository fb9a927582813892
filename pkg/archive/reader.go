// Copyright 2024-2026 Aiku AI

// Package archive reads Slack workspace export archives.
//
// An export is a zip file with top-level listings (users.json,
// channels.json, groups.json, dms.json, mpims.json) and one folder per
// conversation holding a JSON file of messages per day, named
// YYYY-MM-DD.json so that lexicographic order is chronological order.
package archive

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Listing file names at the root of an export.
const (
	UsersFile    = "users.json"
	ChannelsFile = "channels.json"
	GroupsFile   = "groups.json"
	DMsFile      = "dms.json"
	MPIMsFile    = "mpims.json"
)

// ListingFiles is every top-level listing the reader knows about.
var ListingFiles = []string{DMsFile, GroupsFile, MPIMsFile, ChannelsFile, UsersFile}

// ErrMissingEntry is returned when a requested file is not in the archive.
var ErrMissingEntry = errors.New("entry not found in archive")

// Reader gives typed access to a Slack export zip.
type Reader struct {
	zr      *zip.ReadCloser
	entries map[string]*zip.File
}

// Open opens the export at path.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	r := &Reader{
		zr:      zr,
		entries: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		r.entries[f.Name] = f
	}
	return r, nil
}

// Close releases the underlying zip file.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// Has reports whether name is a file in the archive.
func (r *Reader) Has(name string) bool {
	f, ok := r.entries[name]
	return ok && !f.FileInfo().IsDir()
}

// Users decodes users.json.
func (r *Reader) Users() ([]User, error) {
	return decodeList[User](r, UsersFile)
}

// Channels decodes channels.json.
func (r *Reader) Channels() ([]Channel, error) {
	return decodeList[Channel](r, ChannelsFile)
}

// Groups decodes groups.json (private channels).
func (r *Reader) Groups() ([]Channel, error) {
	return decodeList[Channel](r, GroupsFile)
}

// DMs decodes dms.json.
func (r *Reader) DMs() ([]DM, error) {
	return decodeList[DM](r, DMsFile)
}

// MPIMs decodes mpims.json (multi-party direct messages).
func (r *Reader) MPIMs() ([]DM, error) {
	return decodeList[DM](r, MPIMsFile)
}

// ListFiles returns the message files in folder, sorted by name.
func (r *Reader) ListFiles(folder string) []string {
	var files []string
	for name, f := range r.entries {
		if f.FileInfo().IsDir() {
			continue
		}
		base, _, found := strings.Cut(name, "/")
		if found && base == folder {
			files = append(files, name)
		}
	}
	slices.Sort(files)
	return files
}

// Messages decodes one message file.
func (r *Reader) Messages(name string) ([]Message, error) {
	return decodeList[Message](r, name)
}

// decodeList decodes a JSON array entry. The slice is only returned once
// decoding has finished.
func decodeList[T any](r *Reader, name string) ([]T, error) {
	var items []T
	if err := r.decode(name, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Reader) decode(name string, into any) error {
	f, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrMissingEntry)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err = json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}
