// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"

	"github.com/aiku/slack2matrix/pkg/migrator"
	"golang.org/x/term"
)

var errNoPassword = errors.New("admin password is required")

// promptCredentials asks for the admin user and password when neither the
// config nor the environment provided them.
func promptCredentials(cfg *migrator.Config) error {
	return promptCredentialsFrom(cfg, os.Stdin, os.Stderr)
}

func promptCredentialsFrom(cfg *migrator.Config, in *os.File, out io.Writer) error {
	reader := bufio.NewReader(in)
	if cfg.AdminUser == "" {
		def := "admin"
		if u, err := user.Current(); err == nil && u.Username != "" {
			def = u.Username
		}
		fmt.Fprintf(out, "Homeserver admin user [%s]: ", def)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read admin user: %w", err)
		}
		cfg.AdminUser = strings.TrimSpace(line)
		if cfg.AdminUser == "" {
			cfg.AdminUser = def
		}
	}
	if cfg.AdminPassword != "" {
		return nil
	}
	fmt.Fprintf(out, "Password for %s: ", cfg.AdminUser)
	password, err := term.ReadPassword(int(in.Fd()))
	if err != nil {
		// Not a terminal, read a plain line.
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read admin password: %w", err)
		}
		password = []byte(line)
	} else {
		fmt.Fprintln(out)
	}
	cfg.AdminPassword = strings.TrimSpace(string(password))
	if cfg.AdminPassword == "" {
		return errNoPassword
	}
	return nil
}
