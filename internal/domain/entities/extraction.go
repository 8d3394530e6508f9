package entities

// FieldKind is the expected shape of a schema field.
type FieldKind string

const (
	FieldKindScalar  FieldKind = "scalar"
	FieldKindList    FieldKind = "list"
	FieldKindMapping FieldKind = "mapping"
)

// FieldSpec describes one field of an extraction schema. Type is an informal
// tag ("string", "date", "number"); for lists it names the item type and Fields
// describe the item shape when items are objects.
type FieldSpec struct {
	Name   string      `json:"name"`
	Kind   FieldKind   `json:"kind"`
	Type   string      `json:"type,omitempty"`
	Fields []FieldSpec `json:"fields,omitempty"`
}

// ExtractionSchema is the extraction contract for one document type
type ExtractionSchema struct {
	DocumentType DocumentType `json:"document_type"`
	Instruction  string       `json:"-"`
	Fields       []FieldSpec  `json:"fields"`
}

// FieldNames returns the top-level field names in declaration order.
func (s *ExtractionSchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// StructuredExtraction is the result of one extraction attempt.
// RawModelOutput is only kept when the attempt failed.
type StructuredExtraction struct {
	DocumentType   DocumentType `json:"document_type"`
	Fields         Value        `json:"fields"`
	Success        bool         `json:"success"`
	Error          string       `json:"error,omitempty"`
	RawModelOutput string       `json:"raw_model_output,omitempty"`
	MissingFields  []string     `json:"missing_fields,omitempty"`
	Cause          error        `json:"-"`
}
