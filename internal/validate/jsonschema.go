// Package validate provides a concrete, swappable implementation of
// the commander.Validator extension point, backed by JSON Schema.
// The core's default (commander.AcceptAllValidator) always accepts;
// SchemaValidator is the opt-in decorator a deployment can register
// schemas with per command action.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	jschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/corebridge/commandbroker"
)

// SchemaValidator validates CommandParams.Data against a JSON Schema
// registered for the command's Action. Actions with no registered
// schema pass through unvalidated, mirroring the registry's
// pass-through behavior for unregistered types.
type SchemaValidator struct {
	mu       sync.RWMutex
	compiler *jschema.Compiler
	schemas  map[string]*jschema.Schema
	schemaURI func(action string) string
}

// NewSchemaValidator constructs an empty SchemaValidator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		compiler:  jschema.NewCompiler(),
		schemas:   make(map[string]*jschema.Schema),
		schemaURI: func(action string) string { return fmt.Sprintf("urn:commandbroker:schema:action:%s", action) },
	}
}

// RegisterAction compiles schemaJSON and associates it with action. It
// must be called before any Validate call for that action is expected
// to enforce the schema.
func (v *SchemaValidator) RegisterAction(action, schemaJSON string) error {
	uri := v.schemaURI(action)
	doc, err := jschema.UnmarshalJSON(bytes.NewReader([]byte(schemaJSON)))
	if err != nil {
		return fmt.Errorf("validate: parsing schema for %s: %w", action, err)
	}
	if err := v.compiler.AddResource(uri, doc); err != nil {
		return fmt.Errorf("validate: adding resource for %s: %w", action, err)
	}
	compiled, err := v.compiler.Compile(uri)
	if err != nil {
		return fmt.Errorf("validate: compiling schema for %s: %w", action, err)
	}

	v.mu.Lock()
	v.schemas[action] = compiled
	v.mu.Unlock()
	return nil
}

// MustRegisterAction is like RegisterAction but panics on error, for
// use in package-level schema registration.
func (v *SchemaValidator) MustRegisterAction(action, schemaJSON string) {
	if err := v.RegisterAction(action, schemaJSON); err != nil {
		panic(err)
	}
}

// Validate implements commander.Validator. A nil map means params
// passed validation (including the pass-through case of no registered
// schema for params.Action).
func (v *SchemaValidator) Validate(params commandbroker.CommandParams) map[string]string {
	v.mu.RLock()
	schema, ok := v.schemas[params.Action]
	v.mu.RUnlock()
	if !ok {
		return nil
	}

	data, err := json.Marshal(params.Data)
	if err != nil {
		return map[string]string{"data": err.Error()}
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return map[string]string{"data": err.Error()}
	}
	if err := schema.Validate(inst); err != nil {
		return map[string]string{"data": err.Error()}
	}
	return nil
}
