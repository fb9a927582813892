// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aiku/slack2matrix/pkg/archive"
	"github.com/aiku/slack2matrix/pkg/migrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExampleConfigCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"example-config"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, migrator.ExampleConfig, out.String())
}

func TestRunCommand_MissingConfig(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"run", "--config", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, cmd.Execute())
}

func TestRunCommand_DryRun(t *testing.T) {
	t.Setenv(migrator.EnvASToken, "")
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "export.zip")
	require.NoError(t, archive.WriteExport(exportPath, map[string]any{
		archive.UsersFile:    []archive.User{{ID: "UA", Name: "alice"}},
		archive.ChannelsFile: []archive.Channel{{ID: "C1", Name: "general", Members: []string{"UA"}}},
		"general/2020-01-01.json": []archive.Message{
			{Type: "message", User: "UA", Text: "hello", TS: "1.0"},
		},
	}))
	configPath := filepath.Join(dir, "config.yaml")
	mappingPath := filepath.Join(dir, "luts.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"archive: "+exportPath+"\n"+
			"homeserver: http://unused.invalid\n"+
			"domain: example.org\n"+
			"mapping_file: "+mappingPath+"\n"), 0o600))

	cmd := newRootCommand()
	cmd.SetArgs([]string{"run", "--config", configPath, "--dry-run"})
	require.NoError(t, cmd.Execute())
	assert.NoFileExists(t, mappingPath)
}

func pipeInput(t *testing.T, input string) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = io.WriteString(w, input)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestPromptCredentials(t *testing.T) {
	cfg := &migrator.Config{}
	var out bytes.Buffer
	require.NoError(t, promptCredentialsFrom(cfg, pipeInput(t, "root\nhunter2\n"), &out))
	assert.Equal(t, "root", cfg.AdminUser)
	assert.Equal(t, "hunter2", cfg.AdminPassword)
	assert.Contains(t, out.String(), "Password for root")
}

func TestPromptCredentials_EmptyPassword(t *testing.T) {
	cfg := &migrator.Config{AdminUser: "admin"}
	err := promptCredentialsFrom(cfg, pipeInput(t, "\n"), io.Discard)
	assert.ErrorIs(t, err, errNoPassword)
}

func TestPromptCredentials_ConfiguredSkipsPrompt(t *testing.T) {
	cfg := &migrator.Config{AdminUser: "admin", AdminPassword: "pw"}
	var out bytes.Buffer
	require.NoError(t, promptCredentialsFrom(cfg, pipeInput(t, ""), &out))
	assert.Empty(t, out.String())
}
