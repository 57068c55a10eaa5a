// Package config loads the database registry: per-database store paths,
// computed-field declarations, and trigger declarations. Files are YAML and
// are validated against an embedded CUE schema before anything consumes
// them, so a malformed registry fails at load time with a field-level
// message instead of surfacing later as odd executor behavior.
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/davrell/fluentdml/internal/compute"
	"github.com/davrell/fluentdml/internal/trigger"
)

// schema constrains the registry shape. Event names and non-empty
// identifiers are enforced here rather than scattered through consumers.
const schema = `
#Event: "beforeAdd" | "afterAdd" | "beforeUpdate" | "afterUpdate" | "beforeDelete" | "afterDelete"

#ComputedField: {
	column:      string & != ""
	instruction: string & != ""
}

#Trigger: {
	type:     #Event
	database: string & != ""
	table:    string & != ""
}

#Database: {
	name: string & != ""
	path: string & != ""
	computed_fields?: [...#ComputedField]
	triggers?: [...#Trigger]
}

databases: [...#Database]
`

// Database is one registry entry.
type Database struct {
	Name           string               `yaml:"name" json:"name"`
	Path           string               `yaml:"path" json:"path"`
	ComputedFields []compute.Field      `yaml:"computed_fields,omitempty" json:"computed_fields,omitempty"`
	Triggers       []trigger.Descriptor `yaml:"triggers,omitempty" json:"triggers,omitempty"`
}

// Config is the full registry.
type Config struct {
	Databases []Database `yaml:"databases" json:"databases"`
}

// Load reads and validates a registry file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the registry against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	sv := ctx.CompileString(schema)
	if err := sv.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	cv := ctx.Encode(c)
	if err := cv.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := sv.Unify(cv).Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Databases))
	for _, db := range c.Databases {
		if seen[db.Name] {
			return fmt.Errorf("duplicate database name: %s", db.Name)
		}
		seen[db.Name] = true

		for _, t := range db.Triggers {
			if t.Database != db.Name {
				return fmt.Errorf("trigger %s on %s.%s declared under database %s",
					t.Type, t.Database, t.Table, db.Name)
			}
		}
	}
	return nil
}

// Lookup returns the entry for a database name.
func (c *Config) Lookup(name string) (*Database, bool) {
	for i := range c.Databases {
		if c.Databases[i].Name == name {
			return &c.Databases[i], true
		}
	}
	return nil, false
}

// GetComputedFields returns the computed-field declarations of a database.
func (c *Config) GetComputedFields(name string) []compute.Field {
	if db, ok := c.Lookup(name); ok {
		return db.ComputedFields
	}
	return nil
}

// GetTriggers returns the trigger declarations of a database.
func (c *Config) GetTriggers(name string) []trigger.Descriptor {
	if db, ok := c.Lookup(name); ok {
		return db.Triggers
	}
	return nil
}
