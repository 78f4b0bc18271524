package main

import (
	"fmt"
	"os"
	"path/filepath"
)

const sampleDir = "samples"

// sampleDocs are plain-text stand-ins for scanned KYC documents, so the
// sample passes OCR content checks without the tesseract image.
var sampleDocs = map[string]string{
	"id.txt":      "REPUBLIC OF KENYA NATIONAL IDENTITY CARD\nName: Jane Wanjiru\nID No: 12345678\n",
	"address.txt": "Nairobi Water Company\nJane Wanjiru\n14 Moi Avenue, P.O. Box 00100\n",
	"income.txt":  "Monthly sales ledger\nTotal revenue: KES 21,500.00\n",
}

const sampleApplication = `id: sample-001
kyc_documents:
  id_proof:
    path: samples/docs/id.txt
  address_proof:
    path: samples/docs/address.txt
  income_proof:
    path: samples/docs/income.txt
personal_data:
  name: Jane Wanjiru
  age: 34
  income: 258000
  expenses: 180000
business_data:
  type: tailoring
  age: 4
  revenue: 210000
  employees: 3
  environmental_practices: [waste_recycling, energy_efficient]
  social_initiatives: [local_employment, women_empowerment, training_programs]
  governance_practices: [registered_business, financial_records]
bank_statements:
  average_balance: 42000
  monthly_transactions: 38
  bounced_checks: 0
social_data:
  posts:
    - New school uniforms ready, thank you to our loyal customers!
    - Business is growing, we hired a second tailor this month.
    - Power cuts again today, orders will be a little late.
`

// Sample writes a sample application and its documents to samples/.
func Sample() error {
	docDir := filepath.Join(sampleDir, "docs")
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", docDir, err)
	}
	for name, content := range sampleDocs {
		if err := os.WriteFile(filepath.Join(docDir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	path := filepath.Join(sampleDir, "sample-001.yaml")
	if err := os.WriteFile(path, []byte(sampleApplication), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
