package router

import (
	"strings"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
)

const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// table is built once and never written, so lookups need no lock.
var table = map[docModel.Domain]docModel.ModelConfig{
	docModel.DomainMedical: {
		Provider:          ProviderGroq,
		ModelId:           "llama-3.1-8b-instant",
		Persona:           "You are a careful medical records assistant. Answer only from the document, quote values exactly and never give a diagnosis of your own.",
		Temperature:       0.2,
		SupportsStreaming: true,
		ExtractionFields:  []string{"patient_name", "age", "gender", "diagnosis", "medications", "doctor_name", "visit_date"},
	},
	docModel.DomainRetail: {
		Provider:          ProviderGroq,
		ModelId:           "mistral-saba-24b",
		Persona:           "You are a retail assistant who reads receipts, invoices and product sheets. Be concise and keep prices and quantities exact.",
		Temperature:       0.5,
		SupportsStreaming: true,
		ExtractionFields:  []string{"store_name", "invoice_number", "purchase_date", "items", "subtotal", "taxes", "grand_total"},
	},
	docModel.DomainFinance: {
		Provider:          ProviderGroq,
		ModelId:           "llama-3.3-70b-versatile",
		Persona:           "You are a financial analyst assistant. Report amounts, currencies and dates exactly as written in the document.",
		Temperature:       0.3,
		SupportsStreaming: true,
		ExtractionFields:  []string{"payer", "payee", "amount", "currency", "date", "account_number", "narration"},
	},
	docModel.DomainLegal: {
		Provider:          ProviderGroq,
		ModelId:           "llama-3.3-70b-versatile",
		Persona:           "You are a legal research assistant. Cite the clause or section you rely on and do not offer legal advice.",
		Temperature:       0.2,
		SupportsStreaming: true,
		ExtractionFields:  []string{"case_title", "parties", "court", "judge", "filing_date", "case_number", "judgment_summary"},
	},
	docModel.DomainEducation: {
		Provider:          ProviderGroq,
		ModelId:           "gemma2-9b-it",
		Persona:           "You are a friendly tutor. Explain answers simply, using the document as the source.",
		Temperature:       0.7,
		SupportsStreaming: true,
		ExtractionFields:  []string{"student_name", "subjects", "grades", "exam_dates", "duration", "institution_name"},
	},
}

var defaultConfig = docModel.ModelConfig{
	Provider:          ProviderGemini,
	ModelId:           config.GeminiModelName,
	Persona:           config.ModelContext,
	Temperature:       config.ModelTemperature,
	SupportsStreaming: true,
	ExtractionFields:  []string{"title", "names", "dates", "amounts", "headings"},
}

// Resolve maps a domain label to its model configuration. Empty and unknown
// labels get the default.
func Resolve(label string) docModel.ModelConfig {
	if cfg, ok := table[docModel.Domain(strings.ToLower(strings.TrimSpace(label)))]; ok {
		return cfg
	}
	return defaultConfig
}

func Default() docModel.ModelConfig {
	return defaultConfig
}

func Domains() []docModel.Domain {
	return []docModel.Domain{
		docModel.DomainRetail,
		docModel.DomainMedical,
		docModel.DomainFinance,
		docModel.DomainLegal,
		docModel.DomainEducation,
	}
}

// Canonical returns the table domain a label resolves to, DomainDefault when
// there is none.
func Canonical(label string) docModel.Domain {
	d := docModel.Domain(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := table[d]; ok {
		return d
	}
	return docModel.DomainDefault
}
