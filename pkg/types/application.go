// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the microfinance-engine pipeline.
// Applications flow through intake, KYC, credit, ESG, social, behavior, and
// decision stages; each stage returns one of the result types declared here.
package types

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// DocumentKind names a KYC document slot.
type DocumentKind string

const (
	DocIDProof      DocumentKind = "id_proof"
	DocAddressProof DocumentKind = "address_proof"
	DocIncomeProof  DocumentKind = "income_proof"
)

// RequiredDocuments lists the KYC documents every application must carry,
// in the order they are checked.
var RequiredDocuments = []DocumentKind{DocIDProof, DocAddressProof, DocIncomeProof}

// Document locates one KYC document. Either Path or URL must be set; intake
// downloads URL documents and fills in Path.
type Document struct {
	// Path is the local filesystem path to the document image, PDF, or text file.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// URL is a remote location the document can be fetched from.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Source returns the path if set, otherwise the URL.
func (d Document) Source() string {
	if d.Path != "" {
		return d.Path
	}
	return d.URL
}

// documentFromString reads the bare-string form: http(s) URLs become URL,
// anything else a Path.
func documentFromString(s string) Document {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return Document{URL: s}
	}
	return Document{Path: s}
}

// UnmarshalYAML accepts either a mapping or a bare string.
func (d *Document) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*d = documentFromString(s)
		return nil
	}
	type plain Document
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = Document(p)
	return nil
}

// UnmarshalJSON accepts either an object or a bare string.
func (d *Document) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*d = documentFromString(s)
		return nil
	}
	type plain Document
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Document(p)
	return nil
}

// PersonalData holds the applicant's personal finances.
type PersonalData struct {
	Name     string  `json:"name" yaml:"name"`
	Age      int     `json:"age" yaml:"age"`
	Income   float64 `json:"income" yaml:"income"`
	Expenses float64 `json:"expenses" yaml:"expenses"`
}

// BusinessData describes the applicant's business and its declared practices.
type BusinessData struct {
	Type      string  `json:"type" yaml:"type"`
	Age       float64 `json:"age" yaml:"age"`
	Revenue   float64 `json:"revenue" yaml:"revenue"`
	Employees int     `json:"employees" yaml:"employees"`

	// EnvironmentalPractices lists declared practices such as "waste_recycling".
	EnvironmentalPractices []string `json:"environmental_practices,omitempty" yaml:"environmental_practices,omitempty"`

	// SocialInitiatives lists declared initiatives such as "local_employment".
	SocialInitiatives []string `json:"social_initiatives,omitempty" yaml:"social_initiatives,omitempty"`

	// GovernancePractices lists declared practices such as "financial_records".
	GovernancePractices []string `json:"governance_practices,omitempty" yaml:"governance_practices,omitempty"`
}

// BankStatements holds aggregates computed from the applicant's bank statements.
type BankStatements struct {
	AverageBalance      float64 `json:"average_balance" yaml:"average_balance"`
	MonthlyTransactions int     `json:"monthly_transactions" yaml:"monthly_transactions"`
	BouncedChecks       int     `json:"bounced_checks" yaml:"bounced_checks"`
}

// SocialData carries the applicant's public social media presence. When Posts
// is empty and Handle is set, the engine fetches posts from feed providers.
type SocialData struct {
	Handle string   `json:"handle,omitempty" yaml:"handle,omitempty"`
	Posts  []string `json:"posts,omitempty" yaml:"posts,omitempty"`
}

// applicationIDPattern admits IDs that are safe as a single path element.
var applicationIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidApplicationID reports whether id can name files under the data
// directory: letters, digits, '.', '_' and '-', starting with a letter or digit.
func ValidApplicationID(id string) bool {
	return len(id) <= 128 && applicationIDPattern.MatchString(id)
}

// Application is a microloan application as submitted for assessment.
type Application struct {
	// ID is a stable identifier. Intake assigns a UUID when empty.
	ID string `json:"id" yaml:"id"`

	// ApplicantID optionally links the application to an external customer record.
	ApplicantID string `json:"applicant_id,omitempty" yaml:"applicant_id,omitempty"`

	SubmittedAt time.Time `json:"submitted_at" yaml:"submitted_at"`

	KYCDocuments   map[DocumentKind]Document `json:"kyc_documents" yaml:"kyc_documents"`
	PersonalData   PersonalData              `json:"personal_data" yaml:"personal_data"`
	BusinessData   BusinessData              `json:"business_data" yaml:"business_data"`
	BankStatements BankStatements            `json:"bank_statements" yaml:"bank_statements"`
	SocialData     SocialData                `json:"social_data" yaml:"social_data"`
}
