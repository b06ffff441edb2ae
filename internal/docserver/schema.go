package docserver

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://cubespace.local/schemas/"

// Validator checks write request bodies against the embedded JSON schemas.
type Validator struct {
	owner *jsonschema.Schema
	cube  *jsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	for _, name := range []string{"owner.schema.json", "cube.schema.json"} {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	owner, err := c.Compile(schemaBase + "owner.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile owner schema: %w", err)
	}
	cubeSchema, err := c.Compile(schemaBase + "cube.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile cube schema: %w", err)
	}
	return &Validator{owner: owner, cube: cubeSchema}, nil
}

// Owner validates a raw owner body.
func (v *Validator) Owner(body []byte) error { return validate(v.owner, body) }

// Cube validates a raw cube body.
func (v *Validator) Cube(body []byte) error { return validate(v.cube, body) }

func validate(s *jsonschema.Schema, body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return err
	}
	return nil
}
