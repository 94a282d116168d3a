package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxBodyBytes = 1 << 20

// Request bodies are checked for shape here; domain rules (positive amount,
// supported currency) stay with the mandate package so their errors carry
// the offending field.
const createMandateSchema = `{
  "type": "object",
  "required": ["mandate_type", "amount", "currency"],
  "properties": {
    "mandate_type": {"type": "string"},
    "amount": {"type": "number"},
    "currency": {"type": "string"},
    "issued_by": {"type": "string"},
    "meta": {"type": "object"}
  },
  "additionalProperties": false
}`

const executeSchema = `{
  "type": "object",
  "required": ["rail"],
  "properties": {
    "rail": {"type": "string", "minLength": 1}
  },
  "additionalProperties": false
}`

var (
	createMandateBody = compileSchema("create_mandate.json", createMandateSchema)
	executeBody       = compileSchema("execute.json", executeSchema)
)

func compileSchema(name, src string) *jsonschema.Schema {
	url := "urn:ap2:api:" + name
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("api: schema %s: %v", name, err))
	}
	return c.MustCompile(url)
}

// decodeBody validates the request body against schema and decodes it into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badRequest(fmt.Sprintf("read body: %s", err))
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return badRequest(fmt.Sprintf("invalid JSON: %s", err))
	}
	if err := schema.Validate(doc); err != nil {
		return badRequest(fmt.Sprintf("invalid request: %s", err))
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return badRequest(fmt.Sprintf("invalid JSON: %s", err))
	}
	return nil
}
