package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const ingestSchemaURL = "https://vigia-pix.local/schemas/amendment-ingest.json"

// ingestSchema describes the body of POST /v1/amendments.
const ingestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["number", "year", "financials"],
  "properties": {
    "id": {"type": "string", "pattern": "^[a-zA-Z0-9_-]{1,64}$"},
    "number": {"type": "string", "minLength": 1, "maxLength": 64},
    "year": {"type": "integer", "minimum": 1988, "maximum": 2100},
    "type": {"enum": ["individual", "block"]},
    "status": {"type": "string"},
    "objective": {"type": "string", "maxLength": 5000},
    "detail": {"type": "string", "maxLength": 20000},
    "plan_code": {"type": "string", "maxLength": 64},
    "author": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "party": {"type": "string"},
        "uf": {"type": "string", "pattern": "^[A-Za-z]{2}$"}
      }
    },
    "recipient": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "uf": {"type": "string", "pattern": "^[A-Za-z]{2}$"},
        "cnpj": {"type": "string", "pattern": "^[0-9./-]{11,18}$"},
        "municipality": {"type": "string"},
        "location": {"$ref": "#/$defs/coordinates"}
      }
    },
    "financials": {
      "type": "object",
      "required": ["approved", "paid"],
      "properties": {
        "approved": {"type": "number", "minimum": 0},
        "committed": {"type": "number", "minimum": 0},
        "settled": {"type": "number", "minimum": 0},
        "paid": {"type": "number", "minimum": 0}
      }
    },
    "start_date": {"type": "string", "format": "date-time"},
    "planned_completion": {"type": "string", "format": "date-time"},
    "actual_completion": {"type": "string", "format": "date-time"},
    "milestones": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["sequence", "description"],
        "properties": {
          "sequence": {"type": "integer", "minimum": 1},
          "description": {"type": "string"},
          "value": {"type": "number", "minimum": 0},
          "status": {"enum": ["pending", "completed"]}
        }
      }
    },
    "documents": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["kind"],
        "properties": {
          "kind": {"enum": ["invoice", "contract", "report", "other"]},
          "url": {"type": "string"},
          "xml_content": {"type": "string"}
        }
      }
    }
  },
  "$defs": {
    "coordinates": {
      "type": "object",
      "required": ["lat", "lon"],
      "properties": {
        "lat": {"type": "number", "minimum": -90, "maximum": 90},
        "lon": {"type": "number", "minimum": -180, "maximum": 180}
      }
    }
  }
}`

type payloadValidator struct {
	schema *jsonschema.Schema
}

func newPayloadValidator() (*payloadValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(ingestSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ingest schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(ingestSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add ingest schema: %w", err)
	}
	sch, err := c.Compile(ingestSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &payloadValidator{schema: sch}, nil
}

// Validate checks raw JSON against the ingest schema. Schema violations are
// reported as amendments.ErrInvalidInput with every failing location.
func (v *payloadValidator) Validate(body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", amendments.ErrInvalidInput, err)
	}
	if err := v.schema.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", amendments.ErrInvalidInput, strings.Join(schemaMessages(verr), "; "))
		}
		return fmt.Errorf("%w: %v", amendments.ErrInvalidInput, err)
	}
	return nil
}

func schemaMessages(err *jsonschema.ValidationError) []string {
	var out []string
	for _, u := range err.BasicOutput().Errors {
		if u.Error == nil {
			continue
		}
		loc := u.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out = append(out, fmt.Sprintf("%s: %s", loc, u.Error))
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}
