// Copyright 2024-2026 Aiku AI

package migrator

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/joho/godotenv"
	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Environment variables that override secrets from the config file.
const (
	EnvASToken       = "SLACK2MATRIX_AS_TOKEN"
	EnvAdminUser     = "SLACK2MATRIX_ADMIN_USER"
	EnvAdminPassword = "SLACK2MATRIX_ADMIN_PASSWORD"
)

// Config holds the migration configuration.
type Config struct {
	Archive    string `yaml:"archive"`
	Homeserver string `yaml:"homeserver"`
	Domain     string `yaml:"domain"`
	ASToken    string `yaml:"as_token"`

	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`

	DryRun            bool `yaml:"dry_run"`
	SkipArchived      bool `yaml:"skip_archived"`
	SkipFiles         bool `yaml:"skip_files"`
	InviteAll         bool `yaml:"invite_all"`
	CreateAsAdmin     bool `yaml:"create_as_admin"`
	ImportAsPrivate   bool `yaml:"import_as_private"`
	FederateRooms     bool `yaml:"federate_rooms"`
	KickImportedUsers bool `yaml:"kick_imported_users"`

	// ThreadPolicy selects how thread replies are linked to earlier
	// messages. One policy applies to the whole run.
	ThreadPolicy ThreadPolicy `yaml:"thread_policy"`

	NameSuffix          string `yaml:"name_suffix"`
	RoomSuffix          string `yaml:"room_suffix"`
	DisplaynameTemplate string `yaml:"displayname_template"`

	// MappingFile is where identity and room mappings are persisted. Its
	// presence at startup marks account and room creation as done.
	MappingFile string `yaml:"mapping_file"`

	RoomWorkers       int `yaml:"room_workers"`
	RequestsPerSecond int `yaml:"requests_per_second"`
	DeferredLimit     int `yaml:"deferred_limit"`

	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`

	displaynameTemplate *template.Template `yaml:"-"`
}

// DisplaynameParams holds the parameters for rendering the displayname template.
type DisplaynameParams struct {
	Name        string
	RealName    string
	DisplayName string
	Email       string
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess compiles the display name template and validates the fields
// a run cannot start without.
func (c *Config) PostProcess() error {
	var err error
	c.displaynameTemplate, err = template.New("displayname").Parse(c.DisplaynameTemplate)
	if err != nil {
		return fmt.Errorf("%w: displayname_template: %w", ErrInvalidConfig, err)
	}
	if c.ThreadPolicy == "" {
		c.ThreadPolicy = ThreadPolicyChain
	}
	if c.RoomWorkers <= 0 {
		c.RoomWorkers = 1
	}
	return c.Validate()
}

// Validate reports the first missing or malformed required setting.
func (c *Config) Validate() error {
	switch {
	case c.Archive == "":
		return fmt.Errorf("%w: no archive defined", ErrInvalidConfig)
	case c.Homeserver == "":
		return fmt.Errorf("%w: no homeserver defined", ErrInvalidConfig)
	case c.Domain == "":
		return fmt.Errorf("%w: no domain defined", ErrInvalidConfig)
	case c.ASToken == "" && !c.DryRun:
		return fmt.Errorf("%w: no application service token defined", ErrInvalidConfig)
	case !c.ThreadPolicy.Valid():
		return fmt.Errorf("%w: unknown thread_policy %q", ErrInvalidConfig, c.ThreadPolicy)
	case c.RequestsPerSecond < 0:
		return fmt.Errorf("%w: requests_per_second must not be negative", ErrInvalidConfig)
	}
	return nil
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "archive")
	helper.Copy(up.Str, "homeserver")
	helper.Copy(up.Str, "domain")
	helper.Copy(up.Str, "as_token")
	helper.Copy(up.Str, "admin_user")
	helper.Copy(up.Str, "admin_password")
	helper.Copy(up.Bool, "dry_run")
	helper.Copy(up.Bool, "skip_archived")
	helper.Copy(up.Bool, "skip_files")
	helper.Copy(up.Bool, "invite_all")
	helper.Copy(up.Bool, "create_as_admin")
	helper.Copy(up.Bool, "import_as_private")
	helper.Copy(up.Bool, "federate_rooms")
	helper.Copy(up.Bool, "kick_imported_users")
	helper.Copy(up.Str, "thread_policy")
	helper.Copy(up.Str, "name_suffix")
	helper.Copy(up.Str, "room_suffix")
	helper.Copy(up.Str, "displayname_template")
	helper.Copy(up.Str, "mapping_file")
	helper.Copy(up.Int, "room_workers")
	helper.Copy(up.Int, "requests_per_second")
	helper.Copy(up.Int, "deferred_limit")
	helper.Copy(up.Str, "log_level")
	helper.Copy(up.Str, "metrics_addr")
}

// ParseConfig merges data onto the embedded example config, so keys missing
// from data keep their example defaults, and applies environment overrides.
// The result is not validated; call PostProcess.
func ParseConfig(data []byte) (*Config, error) {
	var baseNode yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &baseNode); err != nil {
		return nil, fmt.Errorf("failed to parse example config: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		var cfgNode yaml.Node
		if err := yaml.Unmarshal(data, &cfgNode); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		upgradeConfig(up.NewHelper(&baseNode, &cfgNode))
	}

	var cfg Config
	if err := baseNode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyEnv()
	return &cfg, nil
}

// LoadConfig reads, merges and validates the config file at path. A .env
// file in the working directory is loaded first if present. overrides, such
// as command-line flags, are applied before validation.
func LoadConfig(path string, overrides ...func(*Config)) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err = cfg.PostProcess(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvASToken); v != "" {
		c.ASToken = v
	}
	if v := os.Getenv(EnvAdminUser); v != "" {
		c.AdminUser = v
	}
	if v := os.Getenv(EnvAdminPassword); v != "" {
		c.AdminPassword = v
	}
}

// FormatDisplayname generates a display name from the template and params,
// with the configured name suffix appended.
func (c *Config) FormatDisplayname(params DisplaynameParams) string {
	name := params.Name
	if c.displaynameTemplate != nil {
		var buf strings.Builder
		if err := c.displaynameTemplate.Execute(&buf, params); err == nil && buf.Len() > 0 {
			name = buf.String()
		}
	}
	return name + c.NameSuffix
}
