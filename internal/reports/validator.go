package reports

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/excel-layout-v1.json
var excelLayoutSchemaJSON string

//go:embed schema/pdf-layout-v1.json
var pdfLayoutSchemaJSON string

// LayoutValidator checks layout configurations against the schema of their format.
type LayoutValidator struct {
	schemas map[types.Format]*jsonschema.Schema
}

func NewLayoutValidator() (*LayoutValidator, error) {
	compiler := jsonschema.NewCompiler()

	resources := map[types.Format]struct{ name, body string }{
		types.FormatExcel: {"excel-layout-v1.json", excelLayoutSchemaJSON},
		types.FormatPDF:   {"pdf-layout-v1.json", pdfLayoutSchemaJSON},
	}

	v := &LayoutValidator{schemas: make(map[types.Format]*jsonschema.Schema, len(resources))}
	for format, res := range resources {
		if err := compiler.AddResource(res.name, strings.NewReader(res.body)); err != nil {
			return nil, fmt.Errorf("failed to add schema resource %s: %w", res.name, err)
		}
		schema, err := compiler.Compile(res.name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", res.name, err)
		}
		v.schemas[format] = schema
	}
	return v, nil
}

// Validate checks raw JSON against the schema registered for format.
func (v *LayoutValidator) Validate(format types.Format, data []byte) error {
	schema, ok := v.schemas[format]
	if !ok {
		return fmt.Errorf("layout format %q: %w", format, types.ErrUnsupportedFormat)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %v: %w", err, types.ErrValidation)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %v: %w", err, types.ErrValidation)
	}
	return nil
}
