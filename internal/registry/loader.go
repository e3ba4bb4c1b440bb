package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dataquery/internal/domain"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// Load reads every *.yaml file under dir (recursively) and returns a
// validated registry. Duplicate query ids are a fatal configuration error.
// Loading is idempotent given identical input files.
func Load(dir string) (*Registry, error) {
	return LoadWithOptions(dir, LoadOptions{})
}

// LoadWithOptions reads spec documents using caller-provided options.
func LoadWithOptions(dir string, opts LoadOptions) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("spec directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("spec directory: %s is not a directory", dir)
	}

	reg := newRegistry()

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}

		var doc QueryDoc
		if err := loadYAMLFile(path, &doc, opts); err != nil {
			return err
		}
		if err := validateDocument(path, doc.APIVersion, doc.Kind); err != nil {
			return err
		}
		if err := validateSpec(path, &doc.Spec); err != nil {
			return err
		}
		if err := reg.add(&doc.Spec); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reg.seal()
	return reg, nil
}

// loadYAMLFile reads and unmarshals one YAML document into target. Unknown
// fields are rejected unless explicitly allowed.
func loadYAMLFile(path string, target interface{}, opts LoadOptions) error {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified spec files
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if opts.AllowUnknownFields {
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(path, apiVersion, kind string) error {
	if apiVersion != SupportedAPIVersion {
		return domain.ErrValidation("%s: unsupported apiVersion %q (expected %q)", path, apiVersion, SupportedAPIVersion)
	}
	if kind != KindNameQuery {
		return domain.ErrValidation("%s: unexpected kind %q (expected %q)", path, kind, KindNameQuery)
	}
	return nil
}
