package engine

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// LicenseEntry maps a locator pattern to license metadata.
type LicenseEntry struct {
	Pattern     string `yaml:"pattern"`
	License     string `yaml:"license"`
	Attribution string `yaml:"attribution,omitempty"`
}

type licenseDoc struct {
	Licenses []LicenseEntry `yaml:"licenses"`
}

// LicenseCatalog is the side catalog used to enrich provenance when the
// connector did not supply a license.
type LicenseCatalog struct {
	entries []LicenseEntry
}

// LoadLicenseCatalog reads the catalog from a YAML file. A missing path
// yields an empty catalog: license enrichment is optional.
func LoadLicenseCatalog(catalogPath string) (*LicenseCatalog, error) {
	if catalogPath == "" {
		return &LicenseCatalog{}, nil
	}
	data, err := os.ReadFile(catalogPath) //nolint:gosec // operator-configured path
	if err != nil {
		if os.IsNotExist(err) {
			return &LicenseCatalog{}, nil
		}
		return nil, fmt.Errorf("read license catalog: %w", err)
	}

	var doc licenseDoc
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse license catalog %s: %w", catalogPath, err)
	}
	return &LicenseCatalog{entries: doc.Licenses}, nil
}

// Match returns the first entry whose pattern matches the locator, testing
// the full locator, its trailing path segments, and its base name.
func (c *LicenseCatalog) Match(locator string) (LicenseEntry, bool) {
	for _, e := range c.entries {
		if matchLocator(e.Pattern, locator) {
			return e, true
		}
	}
	return LicenseEntry{}, false
}

// matchLocator tests the pattern against the locator and every suffix
// obtained by stripping leading path segments. Patterns are usually relative
// ("employment/*.csv") while locators are absolute.
func matchLocator(pattern, locator string) bool {
	rest := locator
	for {
		if ok, _ := path.Match(pattern, rest); ok {
			return true
		}
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			return false
		}
		rest = rest[i+1:]
	}
}
