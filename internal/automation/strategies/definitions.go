// internal/automation/strategies/definitions.go
package strategies

// Identity number patterns shared by the form schemas.
const (
	panPattern     = `^[A-Z]{5}[0-9]{4}[A-Z]$`
	gstinPattern   = `^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`
	dinPattern     = `^[0-9]{8}$`
	pincodePattern = `^[1-9][0-9]{5}$`
	cinPattern     = `^[LU][0-9]{5}[A-Z]{2}[0-9]{4}[A-Z]{3}[0-9]{6}$`
)

func str(extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"type": "string"}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func pattern(p string) map[string]interface{} { return str(map[string]interface{}{"pattern": p}) }

func nonEmpty() map[string]interface{} { return str(map[string]interface{}{"minLength": 1}) }

func count(min int) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "minimum": min}
}

func amount() map[string]interface{} {
	return map[string]interface{}{"type": "number", "minimum": 0}
}

// object builds a form schema whose properties are checked only when present.
func object(props map[string]interface{}) map[string]interface{} {
	base := map[string]interface{}{
		"applicantName": nonEmpty(),
		"email":         str(map[string]interface{}{"format": "email"}),
		"phone":         pattern(`^\+?[0-9]{10,13}$`),
		"pan":           pattern(panPattern),
		"pincode":       pattern(pincodePattern),
	}
	for k, v := range props {
		base[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": base,
	}
}

func companySchema(minDirectors int) map[string]interface{} {
	return object(map[string]interface{}{
		"companyName":       nonEmpty(),
		"directors":         count(minDirectors),
		"shareholders":      count(1),
		"authorizedCapital": amount(),
		"paidUpCapital":     amount(),
		"directorDin":       pattern(dinPattern),
	})
}

// definitions lists every strategy by name.
var definitions = []Definition{
	{
		Name:     "private-limited-company",
		Category: CategoryBusinessRegistration,
		Schema:   companySchema(2),
		Drafts:   []string{"SPICE_PLUS_PART_A", "SPICE_PLUS_PART_B", "E_MOA", "E_AOA", "AGILE_PRO_S"},
	},
	{
		Name:     "one-person-company",
		Category: CategoryBusinessRegistration,
		Schema: object(map[string]interface{}{
			"companyName": nonEmpty(),
			"directors":   map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 15},
			"nomineeName": nonEmpty(),
		}),
		Drafts: []string{"SPICE_PLUS_PART_B", "E_MOA", "E_AOA", "INC_3_NOMINEE_CONSENT"},
	},
	{
		Name:     "public-limited-company",
		Category: CategoryBusinessRegistration,
		Schema:   companySchema(3),
		Drafts:   []string{"SPICE_PLUS_PART_B", "E_MOA", "E_AOA"},
	},
	{
		Name:     "section-8-company",
		Category: CategoryBusinessRegistration,
		Schema: object(map[string]interface{}{
			"companyName": nonEmpty(),
			"directors":   count(2),
			"objects":     nonEmpty(),
		}),
		Drafts: []string{"INC_12_LICENSE_APPLICATION", "SPICE_PLUS_PART_B", "E_MOA", "E_AOA"},
	},
	{
		Name:     "partnership-firm",
		Category: CategoryBusinessRegistration,
		Schema: object(map[string]interface{}{
			"firmName":     nonEmpty(),
			"partners":     count(2),
			"profitRatios": map[string]interface{}{"type": "array", "items": amount()},
		}),
		Drafts: []string{"PARTNERSHIP_DEED", "FORM_1_REGISTRATION_OF_FIRM"},
	},
	{
		Name:     "llp",
		Category: CategoryBusinessRegistration,
		Schema: object(map[string]interface{}{
			"llpName":             nonEmpty(),
			"designatedPartners":  count(2),
			"capitalContribution": amount(),
		}),
		Drafts: []string{"FILLIP", "LLP_AGREEMENT_FORM_3"},
	},
	{
		Name:     "sole-proprietorship",
		Category: CategoryBusinessRegistration,
		Schema: object(map[string]interface{}{
			"tradeName": nonEmpty(),
		}),
		Drafts: []string{"UDYAM_DECLARATION", "SHOP_ESTABLISHMENT_FORM"},
	},
	{
		Name:     "roc-annual-filing",
		Category: CategoryROCFilings,
		Schema: object(map[string]interface{}{
			"cin":           pattern(cinPattern),
			"financialYear": pattern(`^[0-9]{4}-[0-9]{2}$`),
			"turnover":      amount(),
		}),
		Drafts: []string{"AOC_4", "MGT_7"},
	},
	{
		Name:     "roc-event-filing",
		Category: CategoryROCFilings,
		Schema: object(map[string]interface{}{
			"cin":         pattern(cinPattern),
			"directorDin": pattern(dinPattern),
			"eventDate":   str(map[string]interface{}{"format": "date"}),
		}),
		Drafts: []string{"DIR_12", "INC_22", "BOARD_RESOLUTION"},
	},
	{
		Name:     "gst-registration",
		Category: CategoryTaxCompliance,
		Schema: object(map[string]interface{}{
			"tradeName":    nonEmpty(),
			"businessType": nonEmpty(),
			"turnover":     amount(),
		}),
		Drafts: []string{"GST_REG_01"},
	},
	{
		Name:     "gst-return",
		Category: CategoryTaxCompliance,
		Schema: object(map[string]interface{}{
			"gstin":        pattern(gstinPattern),
			"returnPeriod": pattern(`^(0[1-9]|1[0-2])-[0-9]{4}$`),
			"taxableValue": amount(),
		}),
		Drafts: []string{"GSTR_1", "GSTR_3B"},
	},
	{
		Name:     "income-tax-return",
		Category: CategoryTaxCompliance,
		Schema: object(map[string]interface{}{
			"assessmentYear": pattern(`^[0-9]{4}-[0-9]{2}$`),
			"grossIncome":    amount(),
		}),
		Drafts: []string{"ITR_FORM", "COMPUTATION_OF_INCOME"},
	},
	{
		Name:     "tds-return",
		Category: CategoryTaxCompliance,
		Schema: object(map[string]interface{}{
			"tan":     pattern(`^[A-Z]{4}[0-9]{5}[A-Z]$`),
			"quarter": str(map[string]interface{}{"enum": []interface{}{"Q1", "Q2", "Q3", "Q4"}}),
		}),
		Drafts: []string{"FORM_24Q", "FORM_26Q"},
	},
	{
		Name:     "business-license",
		Category: CategoryLicenses,
		Schema: object(map[string]interface{}{
			"businessName":    nonEmpty(),
			"premisesAddress": nonEmpty(),
			"employees":       count(0),
		}),
		Drafts: []string{"LICENSE_APPLICATION", "DECLARATION"},
	},
	{
		Name:     "trademark",
		Category: CategoryIntellectualProperty,
		Schema: object(map[string]interface{}{
			"mark":      nonEmpty(),
			"niceClass": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 45},
		}),
		Drafts: []string{"TM_A", "USER_AFFIDAVIT"},
	},
	{
		Name:     "copyright",
		Category: CategoryIntellectualProperty,
		Schema: object(map[string]interface{}{
			"workTitle": nonEmpty(),
			"workClass": nonEmpty(),
		}),
		Drafts: []string{"FORM_XIV", "STATEMENT_OF_PARTICULARS"},
	},
	{
		Name:     "patent",
		Category: CategoryIntellectualProperty,
		Schema: object(map[string]interface{}{
			"inventionTitle": nonEmpty(),
			"inventors":      count(1),
		}),
		Drafts: []string{"PATENT_FORM_1", "PATENT_FORM_2", "PATENT_FORM_3"},
	},
	{
		Name:     "labour-compliance",
		Category: CategoryLabourHR,
		Schema: object(map[string]interface{}{
			"establishmentName": nonEmpty(),
			"employees":         count(1),
		}),
		Drafts: []string{"EMPLOYER_REGISTRATION", "EMPLOYEE_REGISTER"},
	},
	{
		Name:     "msme-certification",
		Category: CategoryCertifications,
		Schema: object(map[string]interface{}{
			"enterpriseName": nonEmpty(),
			"investment":     amount(),
			"turnover":       amount(),
		}),
		Drafts: []string{"UDYAM_REGISTRATION"},
	},
	{
		Name:     "certification",
		Category: CategoryCertifications,
		Schema: object(map[string]interface{}{
			"organisationName": nonEmpty(),
			"scope":            nonEmpty(),
		}),
		Drafts: []string{"CERTIFICATION_APPLICATION", "SELF_DECLARATION"},
	},
	{
		Name:     "legal-drafting",
		Category: CategoryLegalDrafting,
		Schema: object(map[string]interface{}{
			"parties":   count(1),
			"governing": nonEmpty(),
		}),
		Drafts: []string{"DRAFT_DOCUMENT"},
	},
	{
		Name:     "financial-services",
		Category: CategoryFinancial,
		Schema: object(map[string]interface{}{
			"financialYear": pattern(`^[0-9]{4}-[0-9]{2}$`),
			"turnover":      amount(),
		}),
		Drafts: []string{"ENGAGEMENT_LETTER", "FINANCIAL_STATEMENTS"},
	},
}
