// CUE schema validation code
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/experiment.cue
var defaultSchema []byte

// ValidateWithCue validates raw config bytes against the #Experiment definition of a CUE schema file.
func ValidateWithCue(data []byte, f format, cueFile string) error {
	ctx := cuecontext.New()

	var configData map[string]any
	switch f {
	case formatTOML:
		if _, err := toml.Decode(string(data), &configData); err != nil {
			return fmt.Errorf("cannot unmarshal TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &configData); err != nil {
			return fmt.Errorf("cannot unmarshal YAML config: %w", err)
		}
	}
	if configData == nil {
		configData = map[string]any{}
	}
	configVal := ctx.Encode(configData)
	if configVal.Err() != nil {
		return fmt.Errorf("cannot encode config: %w", configVal.Err())
	}

	schemaBytes := defaultSchema
	if cueFile != "" {
		b, err := os.ReadFile(cueFile)
		if err != nil {
			return fmt.Errorf("cannot read CUE schema: %w", err)
		}
		schemaBytes = b
	}
	schemaVal := ctx.CompileBytes(schemaBytes)
	if schemaVal.Err() != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", schemaVal.Err())
	}
	def := schemaVal.LookupPath(cue.ParsePath("#Experiment"))
	if !def.Exists() {
		return fmt.Errorf("CUE schema has no #Experiment definition")
	}

	final := def.Unify(configVal)
	if final.Err() != nil {
		return fmt.Errorf("schema unify failed: %w", final.Err())
	}
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
