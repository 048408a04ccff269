package mappers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pharmacy-invoice-service/internal/schema"
	apperrors "pharmacy-invoice-service/pkg/errors"
)

// MakeKey builds the registry key for a pharmacy and source channel.
// Keys are lower case with spaces folded to underscores, so
// ("Speciality Rx", "Email") and ("speciality rx", "email") resolve to
// the same format.
func MakeKey(pharmacy, channel string) string {
	clean := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	}
	return clean(pharmacy) + "_" + clean(channel)
}

// FormatPair is one (pharmacy, channel) combination the service is
// configured to accept.
type FormatPair struct {
	Pharmacy string
	Channel  string
}

// Registry holds the supported format descriptors.
type Registry struct {
	descriptors map[string]*Descriptor
}

// NewRegistry returns a registry preloaded with every built-in format.
func NewRegistry() (*Registry, error) {
	registry := &Registry{descriptors: make(map[string]*Descriptor)}
	for _, descriptor := range builtinFormats() {
		if err := registry.Register(descriptor); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds a descriptor after validating it. Duplicate keys are
// rejected.
func (r *Registry) Register(descriptor *Descriptor) error {
	if err := descriptor.Validate(); err != nil {
		return err
	}
	if _, exists := r.descriptors[descriptor.Key]; exists {
		return fmt.Errorf("format %q registered twice", descriptor.Key)
	}
	r.descriptors[descriptor.Key] = descriptor
	return nil
}

// LoadOverrides replaces built-in field sets with YAML definitions from
// dir. Each file is named after the format key it overrides, so
// speciality_rx_email.yaml reshapes that format's validation without a
// rebuild. A file naming an unregistered format is a configuration
// mistake and fails the load.
func (r *Registry) LoadOverrides(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "format overrides", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		key := strings.TrimSuffix(entry.Name(), ext)
		descriptor, ok := r.descriptors[key]
		if !ok {
			return apperrors.MappingError(apperrors.CodeUnsupportedFormat, key, nil).
				WithContext("override_file", entry.Name())
		}

		set, err := schema.LoadFieldSet(filepath.Join(dir, entry.Name()))
		if err != nil {
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, key, err)
		}

		previous := descriptor.FieldSet
		descriptor.FieldSet = set
		if err := descriptor.Validate(); err != nil {
			descriptor.FieldSet = previous
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, key, err)
		}
	}

	return nil
}

// Resolve finds the descriptor for a pharmacy and channel. An unknown
// combination is an unsupported-format error, fatal for the file.
func (r *Registry) Resolve(pharmacy, channel string) (*Descriptor, error) {
	key := MakeKey(pharmacy, channel)
	descriptor, ok := r.descriptors[key]
	if !ok {
		return nil, apperrors.MappingError(apperrors.CodeUnsupportedFormat, key, nil)
	}
	return descriptor, nil
}

// Keys lists the registered format keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.descriptors))
	for key := range r.descriptors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Verify confirms every configured pair resolves to a registered
// descriptor. Run at startup so a misconfigured deployment fails before
// it accepts work.
func (r *Registry) Verify(pairs []FormatPair) error {
	var missing []string
	for _, pair := range pairs {
		key := MakeKey(pair.Pharmacy, pair.Channel)
		if _, ok := r.descriptors[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return apperrors.MappingError(apperrors.CodeUnsupportedFormat, strings.Join(missing, ", "), nil)
	}
	return nil
}
