package policy

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load decodes a policy file. Unknown keys are rejected.
func Load(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a policy file from path.
func LoadFile(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	cfg, err := Load(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for i, e := range c.ForcedInclusion {
		if e.Object == "" {
			return fmt.Errorf("forcedInclusion[%d]: object is required", i)
		}
		if len(e.Fields) == 0 {
			return fmt.Errorf("forcedInclusion[%d] (%s): fields must not be empty", i, e.Object)
		}
	}
	seen := map[string]bool{}
	for i, a := range c.AlwaysInclude {
		if a.Field == "" || a.Object == "" {
			return fmt.Errorf("alwaysInclude[%d]: field and object are required", i)
		}
		if seen[a.Field] {
			return fmt.Errorf("alwaysInclude[%d]: duplicate field %q", i, a.Field)
		}
		seen[a.Field] = true
	}
	return nil
}
