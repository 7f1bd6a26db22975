// Package policy loads ABAC policy declarations for the Compliance Gate
// from the file named by the compliance.policy_file configuration key.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cardanoagents/enhanced-client/internal/compliance/model"
)

type document struct {
	Rules []model.PolicyRule `yaml:"rules"`
}

// Load parses a YAML policy file into its rule set. An empty or missing
// path returns an empty rule set rather than an error — a gate with no
// declared rules evaluates every action to Allow (except for subjects that
// have been forgotten, which are always denied), so deployments can phase
// in policies incrementally.
func Load(path string) ([]model.PolicyRule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return doc.Rules, nil
}
