package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// CustomCategory names entries supplied through ALLOWED_DOMAINS.
const CustomCategory = "custom"

// ErrUnsupportedPolicyFormat is returned for policy files with an unknown extension.
var ErrUnsupportedPolicyFormat = errors.New("unsupported policy file format")

// Category groups allow-list entries under a name shown to callers.
type Category struct {
	Name    string   `json:"name" yaml:"name" toml:"name"`
	Domains []string `json:"domains" yaml:"domains" toml:"domains"`
}

// PolicyFile is the on-disk allow-list document.
type PolicyFile struct {
	Categories []Category `json:"categories" yaml:"categories" toml:"categories"`
}

// BuiltinCategories returns the allow-list used when nothing is configured.
func BuiltinCategories() []Category {
	return []Category{
		{Name: "openai", Domains: []string{"api.openai.com", "openai.com"}},
		{Name: "github", Domains: []string{
			"api.github.com",
			"raw.githubusercontent.com",
			"github.com",
			"objects.githubusercontent.com",
		}},
		{Name: "google", Domains: []string{"www.google.com", "translate.googleapis.com"}},
		{Name: "testing", Domains: []string{"httpbin.org", "jsonplaceholder.typicode.com"}},
		{Name: "media", Domains: []string{"player.imixc.top", "*.imixc.top", "*.ixingchen.top"}},
	}
}

// Categories resolves the effective allow-list.
// ALLOWED_DOMAINS replaces the built-in list; POLICY_FILE entries are appended.
func (p PolicyConfig) Categories() ([]Category, error) {
	var cats []Category
	if domains := compact(p.AllowedDomains); len(domains) > 0 {
		cats = []Category{{Name: CustomCategory, Domains: domains}}
	} else {
		cats = BuiltinCategories()
	}

	if p.PolicyFile == "" {
		return cats, nil
	}

	file, err := LoadPolicyFile(p.PolicyFile)
	if err != nil {
		return nil, err
	}
	return append(cats, file.Categories...), nil
}

// LoadPolicyFile reads a YAML, TOML or JSON allow-list document.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var file PolicyFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	case ".json":
		err = sonic.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPolicyFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	for i, cat := range file.Categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("policy file %s: category %d has no name", path, i)
		}
		file.Categories[i].Domains = compact(cat.Domains)
	}
	return &file, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
