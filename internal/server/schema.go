package server

import (
	"bytes"
	"embed"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Makepad-fr/tada/internal/store"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schemas validates document bodies written to one collection.
// A nil schema accepts anything.
type Schemas struct {
	Create *jsonschema.Schema
	Update *jsonschema.Schema
}

// TodoSchemas compiles the embedded schemas for the todos collection.
func TodoSchemas() (Schemas, error) {
	create, err := compileSchema("schemas/todos.create.json")
	if err != nil {
		return Schemas{}, err
	}
	update, err := compileSchema("schemas/todos.update.json")
	if err != nil {
		return Schemas{}, err
	}
	return Schemas{Create: create, Update: update}, nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

func validate(schema *jsonschema.Schema, fields store.Fields) error {
	if schema == nil {
		return nil
	}
	// The validator only understands the plain map type.
	return schema.Validate(map[string]interface{}(fields))
}
