// Package config loads the YAML-encoded workflow configuration tree
// (§6 "Configuration"): a `workflow:` key carrying `defaults` and
// optional per-phase sub-trees, resolved per (phase, stage) by
// internal/approvalcfg.
//
// Grounded on the teacher's own internal/config.Load (read file,
// unmarshal via gopkg.in/yaml.v3, return a typed struct) — the teacher's
// phase-list config is a different shape (build pipeline phases) from
// the stage-cascade tree this engine needs, so the struct itself doesn't
// carry over, only the load/parse idiom.
package config

import (
	"os"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/scottcm/aiwf-engine/internal/approvalcfg"
)

// Document is the top-level shape of a workflow configuration file.
type Document struct {
	Workflow approvalcfg.RawWorkflowConfig `yaml:"workflow"`
}

// Load reads and parses a workflow configuration file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "config: reading %s", path)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.Wrapf(err, "config: parsing %s", path)
	}
	return &doc, nil
}

// Default returns an empty Document whose every (phase, stage) resolves
// to approvalcfg's documented defaults — used when no config file is
// supplied at init.
func Default() *Document {
	return &Document{}
}
