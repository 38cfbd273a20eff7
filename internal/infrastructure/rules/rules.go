package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

//go:embed defaults.yaml
var defaultTables []byte

// Tables is the immutable rule, alias and team configuration.
type Tables struct {
	Fallback FallbackTable `yaml:"fallback"`
	Routing  RoutingTable  `yaml:"routing"`
}

type FallbackTable struct {
	Confidence      int           `yaml:"confidence"`
	UrgencyKeywords []string      `yaml:"urgency_keywords"`
	Default         DefaultResult `yaml:"default"`
	Rules           []Rule        `yaml:"rules"`
}

type DefaultResult struct {
	RequestType    string `yaml:"request_type"`
	SubRequestType string `yaml:"sub_request_type"`
	Priority       string `yaml:"priority"`
	Confidence     int    `yaml:"confidence"`
	Reasoning      string `yaml:"reasoning"`
}

type Rule struct {
	Name           string   `yaml:"name"`
	Keywords       []string `yaml:"keywords"`
	RequestType    string   `yaml:"request_type"`
	SubRequestType string   `yaml:"sub_request_type"`
	Priority       string   `yaml:"priority"`
}

type RoutingTable struct {
	DefaultTeam string            `yaml:"default_team"`
	Teams       map[string]string `yaml:"teams"`
	Aliases     map[string]string `yaml:"aliases"`
}

// Defaults returns the tables compiled into the binary.
func Defaults() (Tables, error) {
	return Parse(defaultTables)
}

// Load reads tables from path, or the compiled defaults when path is empty.
func Load(path string) (Tables, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tables, error) {
	var tables Tables
	if err := yaml.Unmarshal(raw, &tables); err != nil {
		return Tables{}, domain.WrapError(domain.ErrInvalidInput, "parse rules", err)
	}
	if err := tables.validate(); err != nil {
		return Tables{}, domain.WrapError(domain.ErrInvalidInput, "validate rules", err)
	}
	return tables, nil
}

func (t Tables) validate() error {
	if strings.TrimSpace(t.Routing.DefaultTeam) == "" {
		return errors.New("routing.default_team is required")
	}
	if strings.TrimSpace(t.Fallback.Default.RequestType) == "" {
		return errors.New("fallback.default.request_type is required")
	}
	for i, rule := range t.Fallback.Rules {
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("fallback rule %d (%s) has no keywords", i, rule.Name)
		}
		if strings.TrimSpace(rule.RequestType) == "" {
			return fmt.Errorf("fallback rule %d (%s) has no request_type", i, rule.Name)
		}
		if _, ok := t.Routing.Teams[rule.RequestType]; !ok {
			return fmt.Errorf("fallback rule %q targets unrouted request type %q", rule.Name, rule.RequestType)
		}
	}
	for alias, target := range t.Routing.Aliases {
		if _, ok := t.Routing.Teams[target]; !ok {
			return fmt.Errorf("alias %q targets unrouted request type %q", alias, target)
		}
	}
	return nil
}
