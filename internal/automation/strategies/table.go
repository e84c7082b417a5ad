// internal/automation/strategies/table.go
package strategies

import (
	"fmt"

	"filing-automation/internal/automation"
)

type route struct {
	token    string
	strategy string
}

// routes is evaluated top to bottom. A token must precede any other token
// that would also match the keys it is meant to claim: ANNUAL_FILING before
// PRIVATE_LIMITED so PRIVATE_LIMITED_ANNUAL_FILING is a ROC filing, and
// PARTNERSHIP_FIRM before the general PARTNERSHIP.
var routes = []route{
	// Documents whose names embed an entity type.
	{"PARTNERSHIP_DEED", "legal-drafting"},
	{"LLP_AGREEMENT", "legal-drafting"},

	// GST returns embed ANNUAL_RETURN.
	{"GST_RETURN", "gst-return"},
	{"GST_ANNUAL_RETURN", "gst-return"},
	{"GSTR", "gst-return"},

	// ROC filings name the entity they are filed for.
	{"ANNUAL_FILING", "roc-annual-filing"},
	{"ANNUAL_RETURN", "roc-annual-filing"},
	{"ROC", "roc-annual-filing"},
	{"DIRECTOR", "roc-event-filing"},
	{"DIN_KYC", "roc-event-filing"},
	{"SHARE_TRANSFER", "roc-event-filing"},
	{"REGISTERED_OFFICE", "roc-event-filing"},
	{"INCREASE_IN_AUTHORIZED_CAPITAL", "roc-event-filing"},

	// Entity incorporation.
	{"ONE_PERSON_COMPANY", "one-person-company"},
	{"OPC", "one-person-company"},
	{"PRIVATE_LIMITED", "private-limited-company"},
	{"PVT_LTD", "private-limited-company"},
	{"PUBLIC_LIMITED", "public-limited-company"},
	{"SECTION_8", "section-8-company"},
	{"NGO", "section-8-company"},
	{"PARTNERSHIP_FIRM", "partnership-firm"},
	{"LLP", "llp"},
	{"LIMITED_LIABILITY_PARTNERSHIP", "llp"},
	{"PARTNERSHIP", "llp"},
	{"PROPRIETORSHIP", "sole-proprietorship"},

	// Tax.
	{"GST", "gst-registration"},
	{"INCOME_TAX", "income-tax-return"},
	{"ITR", "income-tax-return"},
	{"TDS", "tds-return"},
	{"PROFESSIONAL_TAX", "labour-compliance"},

	// Licenses.
	{"FSSAI", "business-license"},
	{"FOOD_LICENSE", "business-license"},
	{"TRADE_LICENSE", "business-license"},
	{"IEC", "business-license"},
	{"IMPORT_EXPORT_CODE", "business-license"},
	{"SHOP_AND_ESTABLISHMENT", "business-license"},
	{"DRUG_LICENSE", "business-license"},

	// Intellectual property.
	{"TRADEMARK", "trademark"},
	{"COPYRIGHT", "copyright"},
	{"PATENT", "patent"},
	{"DESIGN_REGISTRATION", "patent"},

	// Labour and HR.
	{"EPF", "labour-compliance"},
	{"PF", "labour-compliance"},
	{"ESIC", "labour-compliance"},
	{"ESI", "labour-compliance"},
	{"PAYROLL", "labour-compliance"},
	{"LABOUR", "labour-compliance"},

	// Certifications.
	{"UDYAM", "msme-certification"},
	{"MSME", "msme-certification"},
	{"ISO", "certification"},
	{"STARTUP_INDIA", "certification"},
	{"DPIIT", "certification"},

	// Legal drafting.
	{"NDA", "legal-drafting"},
	{"NON_DISCLOSURE", "legal-drafting"},
	{"AGREEMENT", "legal-drafting"},
	{"CONTRACT", "legal-drafting"},
	{"LEGAL_NOTICE", "legal-drafting"},
	{"DEED", "legal-drafting"},

	// Accounting and finance.
	{"BOOKKEEPING", "financial-services"},
	{"ACCOUNTING", "financial-services"},
	{"AUDIT", "financial-services"},
	{"PROJECT_REPORT", "financial-services"},
	{"VALUATION", "financial-services"},
}

// Build constructs every strategy against renderer, keyed by name.
func Build(renderer automation.Renderer) (map[string]*Strategy, error) {
	out := make(map[string]*Strategy, len(definitions))
	for _, def := range definitions {
		if _, dup := out[def.Name]; dup {
			return nil, fmt.Errorf("duplicate strategy %s", def.Name)
		}
		s, err := New(def, renderer)
		if err != nil {
			return nil, err
		}
		out[def.Name] = s
	}
	return out, nil
}

// DefaultEntries returns the ordered registry table.
func DefaultEntries(renderer automation.Renderer) ([]automation.Entry, error) {
	byName, err := Build(renderer)
	if err != nil {
		return nil, err
	}
	entries := make([]automation.Entry, 0, len(routes))
	for _, r := range routes {
		s, ok := byName[r.strategy]
		if !ok {
			return nil, fmt.Errorf("token %s routes to unknown strategy %s", r.token, r.strategy)
		}
		entries = append(entries, automation.Entry{Token: r.token, Strategy: s})
	}
	return entries, nil
}

// NewDefaultRegistry builds the registry used by the service.
func NewDefaultRegistry(renderer automation.Renderer) (*automation.StrategyRegistry, error) {
	entries, err := DefaultEntries(renderer)
	if err != nil {
		return nil, err
	}
	return automation.NewRegistry(entries)
}
