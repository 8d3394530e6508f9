package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/medrecords/backend/internal/domain/entities"
)

const commonExtractionRules = `Rules:
- Reply with a single JSON object using exactly the keys shown above.
- Use null for any value the document does not state, and [] for empty lists.
- Never invent findings, values or dates that are not in the document.
- Write dates as YYYY-MM-DD when the day is known.
- Keep units and reference ranges exactly as written.`

type schemaDefinition struct {
	role   string
	fields []entities.FieldSpec
}

func scalarField(name, typ string) entities.FieldSpec {
	return entities.FieldSpec{Name: name, Kind: entities.FieldKindScalar, Type: typ}
}

func textField(name string) entities.FieldSpec { return scalarField(name, "string") }

func dateField(name string) entities.FieldSpec { return scalarField(name, "date") }

func listField(name, itemType string) entities.FieldSpec {
	return entities.FieldSpec{Name: name, Kind: entities.FieldKindList, Type: itemType}
}

func objectList(name string, item ...entities.FieldSpec) entities.FieldSpec {
	return entities.FieldSpec{Name: name, Kind: entities.FieldKindList, Type: "object", Fields: item}
}

func group(name string, fields ...entities.FieldSpec) entities.FieldSpec {
	return entities.FieldSpec{Name: name, Kind: entities.FieldKindMapping, Fields: fields}
}

func patientInfo() entities.FieldSpec {
	return group("patient_info", textField("name"), scalarField("age", "number"), textField("gender"), dateField("date_of_birth"))
}

var schemaDefinitions = map[entities.DocumentType]schemaDefinition{
	entities.DocumentTypeMedicalHistory: {
		role: "a medical history or history-and-physical note",
		fields: []entities.FieldSpec{
			patientInfo(),
			textField("chief_complaint"),
			textField("history_of_present_illness"),
			listField("past_medical_history", "string"),
			listField("surgical_history", "string"),
			objectList("medications", textField("name"), textField("dosage"), textField("frequency")),
			listField("allergies", "string"),
			listField("family_history", "string"),
			group("social_history", textField("smoking"), textField("alcohol"), textField("occupation")),
			textField("review_of_systems"),
			textField("assessment"),
			listField("plan", "string"),
		},
	},
	entities.DocumentTypeLabReport: {
		role: "a laboratory report",
		fields: []entities.FieldSpec{
			patientInfo(),
			dateField("test_date"),
			textField("ordering_physician"),
			textField("laboratory"),
			objectList("results", textField("test_name"), textField("value"), textField("unit"), textField("reference_range"), textField("flag")),
			listField("abnormal_findings", "string"),
			textField("interpretation"),
		},
	},
	entities.DocumentTypeRadiologyReport: {
		role: "a radiology or imaging report",
		fields: []entities.FieldSpec{
			textField("exam_type"),
			dateField("exam_date"),
			textField("body_part"),
			textField("clinical_indication"),
			textField("technique"),
			textField("comparison"),
			listField("findings", "string"),
			listField("impression", "string"),
			listField("recommendations", "string"),
		},
	},
	entities.DocumentTypePrescription: {
		role: "a prescription",
		fields: []entities.FieldSpec{
			group("prescriber", textField("name"), textField("license_number")),
			dateField("prescription_date"),
			objectList("medications",
				textField("name"), textField("dosage"), textField("route"), textField("frequency"),
				textField("duration"), textField("quantity"), scalarField("refills", "number")),
			textField("diagnosis"),
			textField("instructions"),
		},
	},
	entities.DocumentTypeSurgicalReport: {
		role: "an operative or surgical report",
		fields: []entities.FieldSpec{
			textField("procedure_name"),
			dateField("procedure_date"),
			textField("surgeon"),
			listField("assistants", "string"),
			textField("anesthesia_type"),
			textField("preoperative_diagnosis"),
			textField("postoperative_diagnosis"),
			listField("findings", "string"),
			listField("complications", "string"),
			textField("estimated_blood_loss"),
			listField("specimens", "string"),
			textField("disposition"),
		},
	},
	entities.DocumentTypeDischargeSummary: {
		role: "a hospital discharge summary",
		fields: []entities.FieldSpec{
			dateField("admission_date"),
			dateField("discharge_date"),
			textField("admitting_diagnosis"),
			listField("discharge_diagnoses", "string"),
			textField("hospital_course"),
			listField("procedures_performed", "string"),
			objectList("discharge_medications", textField("name"), textField("dosage"), textField("frequency")),
			listField("follow_up", "string"),
			textField("discharge_condition"),
			listField("patient_instructions", "string"),
		},
	},
	entities.DocumentTypePathologyReport: {
		role: "a pathology report",
		fields: []entities.FieldSpec{
			group("specimen", textField("source"), dateField("collection_date"), textField("type")),
			textField("gross_description"),
			textField("microscopic_description"),
			listField("diagnosis", "string"),
			group("tumor_characteristics", textField("size"), textField("grade"), textField("margins"), textField("stage")),
			listField("immunohistochemistry", "string"),
			textField("comments"),
		},
	},
	entities.DocumentTypeConsultationNote: {
		role: "a specialist consultation note",
		fields: []entities.FieldSpec{
			group("consultant", textField("name"), textField("specialty")),
			dateField("consultation_date"),
			textField("reason_for_consultation"),
			textField("history"),
			listField("examination_findings", "string"),
			listField("assessment", "string"),
			listField("recommendations", "string"),
			textField("follow_up"),
		},
	},
}

// SchemaRegistry maps each document type to its extraction schema.
type SchemaRegistry struct {
	schemas map[entities.DocumentType]*entities.ExtractionSchema
}

// NewSchemaRegistry builds the registry for every supported document type.
func NewSchemaRegistry() *SchemaRegistry {
	r := &SchemaRegistry{schemas: make(map[entities.DocumentType]*entities.ExtractionSchema, len(schemaDefinitions))}
	for docType, def := range schemaDefinitions {
		r.schemas[docType] = &entities.ExtractionSchema{
			DocumentType: docType,
			Instruction:  buildInstruction(def),
			Fields:       def.fields,
		}
	}
	return r
}

// TemplateFor returns the schema for docType, or the default type's schema when docType is unknown.
func (r *SchemaRegistry) TemplateFor(docType entities.DocumentType) *entities.ExtractionSchema {
	if s, ok := r.schemas[docType]; ok {
		return s
	}
	return r.schemas[entities.DefaultDocumentType]
}

// types lists the registered document types in a stable order.
func (r *SchemaRegistry) types() []entities.DocumentType {
	var types []entities.DocumentType
	for _, t := range entities.AllDocumentTypes() {
		if _, ok := r.schemas[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

func buildInstruction(def schemaDefinition) string {
	var b strings.Builder
	b.WriteString("You are a clinical documentation specialist. The user message is the full text of ")
	b.WriteString(def.role)
	b.WriteString(". Extract its content into JSON with this structure:\n")
	b.WriteString(skeletonJSON(def.fields))
	b.WriteString("\n\n")
	b.WriteString(commonExtractionRules)
	return b.String()
}

func skeletonJSON(fields []entities.FieldSpec) string {
	raw, err := json.Marshal(skeleton(fields))
	if err != nil {
		return "{}"
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

func skeleton(fields []entities.FieldSpec) entities.Value {
	entries := make([]entities.Entry, 0, len(fields))
	for _, f := range fields {
		entries = append(entries, entities.Entry{Key: f.Name, Value: skeletonField(f)})
	}
	return entities.Mapping(entries...)
}

func skeletonField(f entities.FieldSpec) entities.Value {
	switch f.Kind {
	case entities.FieldKindMapping:
		return skeleton(f.Fields)
	case entities.FieldKindList:
		if len(f.Fields) > 0 {
			return entities.List(skeleton(f.Fields))
		}
		return entities.List(entities.Scalar(f.Type))
	default:
		return entities.Scalar(f.Type)
	}
}
