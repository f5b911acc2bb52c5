package pushlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "pushlog.schema.json"

// documentSchema describes project -> Change-Id -> entry. Entries may carry
// extra keys written by other tools.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "additionalProperties": {
      "type": "object",
      "properties": {
        "last-pushed-commit": {"type": "string"}
      }
    }
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(documentSchema)); err != nil {
		panic(fmt.Sprintf("load pushlog schema: %v", err))
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("compile pushlog schema: %v", err))
	}
	return schema
}

// validateDocument checks data against the document schema. jsonschema v5
// validates generic values and wants numbers as json.Number.
func validateDocument(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := compiledSchema.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}
