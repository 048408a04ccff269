package mappers

import (
	"pharmacy-invoice-service/internal/schema"
)

// builtinFormats returns a descriptor per supported (pharmacy, channel)
// combination. Channels of the same pharmacy share a layout, so the
// pharmacy's field set and bindings are built once and registered under
// each channel key.
func builtinFormats() []*Descriptor {
	var descriptors []*Descriptor

	register := func(pharmacy string, channels []string, fieldSet *schema.FieldSet, bindings []Binding) {
		for _, channel := range channels {
			descriptors = append(descriptors, &Descriptor{
				Key:      MakeKey(pharmacy, channel),
				FieldSet: fieldSet,
				Bindings: bindings,
			})
		}
	}

	register("pharmscripts", []string{"portal", "email"}, pharmscriptsFields(), pharmscriptsBindings())
	register("omnicare", []string{"general", "email"}, omnicareFields(), omnicareBindings())
	register("pharmerica", []string{"email", "portal"}, pharmericaFields(), pharmericaBindings())
	register("geriscript", []string{"general"}, geriscriptFields(), geriscriptBindings())
	register("speciality rx", []string{"email", "portal"}, specialityRxFields(), specialityRxBindings())

	return descriptors
}

// Speciality Rx exports one combined patient column and marks copay
// lines through the rx/otc classifier.

func specialityRxFields() *schema.FieldSet {
	return &schema.FieldSet{Fields: []schema.FieldSchema{
		{Name: "patient", Column: "Patient", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleName}},
		{Name: "ssn_no", Column: "SSN", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleSsn}},
		{Name: "dispdt", Column: "Disp Dt", Type: schema.TypeDate, Required: true},
		{Name: "rx_otc", Column: "RX-OTC", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "drug", Column: "Drug", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleMaxLength150}},
		{Name: "rx_no", Column: "RX No", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "ndc", Column: "NDC", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "qty", Column: "Qty", Type: schema.TypeDecimal},
		{Name: "ds", Column: "DS", Type: schema.TypeInt},
		{Name: "billamt", Column: "Bill Amt", Type: schema.TypeDecimal, Required: true},
		{Name: "copay", Column: "Copay", Type: schema.TypeDecimal},
		{Name: "comment", Column: "Comment", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength500}},
	}}
}

func specialityRxBindings() []Binding {
	return []Binding{
		{Target: TargetFirstName, Source: "patient", Transform: FirstFromName},
		{Target: TargetLastName, Source: "patient", Transform: LastFromName},
		{Target: TargetSSN, Source: "ssn_no", Transform: FormatSSN},
		{Target: TargetDispenseDt, Source: "dispdt"},
		{Target: TargetProductCategory, Source: "rx_otc"},
		{Target: TargetCopayFlag, Source: "rx_otc", Transform: FlagCopay},
		{Target: TargetDrugName, Source: "drug"},
		{Target: TargetRxNumber, Source: "rx_no"},
		{Target: TargetNDC, Source: "ndc"},
		{Target: TargetQuantity, Source: "qty"},
		{Target: TargetDaysSupplied, Source: "ds"},
		{Target: TargetChargeAmount, Source: "billamt"},
		{Target: TargetCopayAmount, Source: "copay"},
		{Target: TargetNote, Source: "comment"},
	}
}

// PharmScripts splits the patient name across two columns and reports
// gender as M/F.

func pharmscriptsFields() *schema.FieldSet {
	return &schema.FieldSet{Fields: []schema.FieldSchema{
		{Name: "first_nm", Column: "First Name", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "last_nm", Column: "Last Name", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "ssn", Column: "SSN", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleSsn}},
		{Name: "dob", Column: "DOB", Type: schema.TypeDate},
		{Name: "gender", Column: "Gender", Type: schema.TypeChar, Rules: []schema.Rule{schema.RuleMorF}},
		{Name: "disp_dt", Column: "Dispense Date", Type: schema.TypeDate, Required: true},
		{Name: "rx_type", Column: "Rx Type", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "drug_nm", Column: "Drug Name", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleMaxLength150}},
		{Name: "doctor", Column: "Prescriber", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength150}},
		{Name: "rx_nbr", Column: "Rx Number", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "ndc", Column: "NDC", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "qty", Column: "Quantity", Type: schema.TypeDecimal},
		{Name: "days_supply", Column: "Days Supply", Type: schema.TypeInt},
		{Name: "charge", Column: "Charge Amount", Type: schema.TypeDecimal, Required: true},
		{Name: "copay", Column: "Copay Amount", Type: schema.TypeDecimal},
		{Name: "note", Column: "Note", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength1000}},
	}}
}

func pharmscriptsBindings() []Binding {
	return []Binding{
		{Target: TargetFirstName, Source: "first_nm"},
		{Target: TargetLastName, Source: "last_nm"},
		{Target: TargetSSN, Source: "ssn", Transform: FormatSSN},
		{Target: TargetDOB, Source: "dob"},
		{Target: TargetGender, Source: "gender", Transform: DecodeGender},
		{Target: TargetDispenseDt, Source: "disp_dt"},
		{Target: TargetProductCategory, Source: "rx_type"},
		{Target: TargetCopayFlag, Source: "rx_type", Transform: FlagCopay},
		{Target: TargetDrugName, Source: "drug_nm"},
		{Target: TargetDoctor, Source: "doctor"},
		{Target: TargetRxNumber, Source: "rx_nbr"},
		{Target: TargetNDC, Source: "ndc"},
		{Target: TargetQuantity, Source: "qty"},
		{Target: TargetDaysSupplied, Source: "days_supply"},
		{Target: TargetChargeAmount, Source: "charge"},
		{Target: TargetCopayAmount, Source: "copay"},
		{Target: TargetNote, Source: "note"},
	}
}

// Omnicare uses a combined "Last,First" style patient column plus
// separate demographic columns.

func omnicareFields() *schema.FieldSet {
	return &schema.FieldSet{Fields: []schema.FieldSchema{
		{Name: "patient", Column: "Patient Name", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleName}},
		{Name: "ssn", Column: "SSN", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleSsn}},
		{Name: "dob", Column: "Birth Date", Type: schema.TypeDate},
		{Name: "sex", Column: "Sex", Type: schema.TypeChar, Rules: []schema.Rule{schema.RuleMorF}},
		{Name: "dispensed", Column: "Dispensed Date", Type: schema.TypeDate, Required: true},
		{Name: "category", Column: "Rx Type", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "drug", Column: "Drug Label Name", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleMaxLength150}},
		{Name: "physician", Column: "Physician", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength150}},
		{Name: "rx_no", Column: "Rx #", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "ndc", Column: "NDC", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "qty", Column: "Qty", Type: schema.TypeDecimal},
		{Name: "days", Column: "Days Supply", Type: schema.TypeInt},
		{Name: "billed", Column: "Amount Billed", Type: schema.TypeDecimal, Required: true},
		{Name: "copay", Column: "Copay", Type: schema.TypeDecimal},
	}}
}

func omnicareBindings() []Binding {
	return []Binding{
		{Target: TargetFirstName, Source: "patient", Transform: FirstFromName},
		{Target: TargetLastName, Source: "patient", Transform: LastFromName},
		{Target: TargetSSN, Source: "ssn", Transform: FormatSSN},
		{Target: TargetDOB, Source: "dob"},
		{Target: TargetGender, Source: "sex", Transform: DecodeGender},
		{Target: TargetDispenseDt, Source: "dispensed"},
		{Target: TargetProductCategory, Source: "category"},
		{Target: TargetCopayFlag, Source: "category", Transform: FlagCopay},
		{Target: TargetDrugName, Source: "drug"},
		{Target: TargetDoctor, Source: "physician"},
		{Target: TargetRxNumber, Source: "rx_no"},
		{Target: TargetNDC, Source: "ndc"},
		{Target: TargetQuantity, Source: "qty"},
		{Target: TargetDaysSupplied, Source: "days"},
		{Target: TargetChargeAmount, Source: "billed"},
		{Target: TargetCopayAmount, Source: "copay"},
	}
}

// PharmErica reports gender with boy/girl codes.

func pharmericaFields() *schema.FieldSet {
	return &schema.FieldSet{Fields: []schema.FieldSchema{
		{Name: "resident", Column: "Resident", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleName}},
		{Name: "ssn", Column: "SSN", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleSsn}},
		{Name: "dob", Column: "Date of Birth", Type: schema.TypeDate},
		{Name: "sex", Column: "Sex", Type: schema.TypeChar, Rules: []schema.Rule{schema.RuleBorG}},
		{Name: "dispense_dt", Column: "Dispense Date", Type: schema.TypeDate, Required: true},
		{Name: "class", Column: "Drug Class", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "drug", Column: "Drug", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleMaxLength150}},
		{Name: "prescriber", Column: "Prescriber", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength150}},
		{Name: "rx", Column: "Rx Nbr", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "ndc", Column: "NDC", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "quantity", Column: "Quantity", Type: schema.TypeDecimal},
		{Name: "days", Column: "Days", Type: schema.TypeInt},
		{Name: "amount", Column: "Amount", Type: schema.TypeDecimal, Required: true},
		{Name: "copay_amt", Column: "Copay Amt", Type: schema.TypeDecimal},
		{Name: "note", Column: "Notes", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength1000}},
	}}
}

func pharmericaBindings() []Binding {
	return []Binding{
		{Target: TargetFirstName, Source: "resident", Transform: FirstFromName},
		{Target: TargetLastName, Source: "resident", Transform: LastFromName},
		{Target: TargetSSN, Source: "ssn", Transform: FormatSSN},
		{Target: TargetDOB, Source: "dob"},
		{Target: TargetGender, Source: "sex", Transform: DecodeGender},
		{Target: TargetDispenseDt, Source: "dispense_dt"},
		{Target: TargetProductCategory, Source: "class"},
		{Target: TargetCopayFlag, Source: "class", Transform: FlagCopay},
		{Target: TargetDrugName, Source: "drug"},
		{Target: TargetDoctor, Source: "prescriber"},
		{Target: TargetRxNumber, Source: "rx"},
		{Target: TargetNDC, Source: "ndc"},
		{Target: TargetQuantity, Source: "quantity"},
		{Target: TargetDaysSupplied, Source: "days"},
		{Target: TargetChargeAmount, Source: "amount"},
		{Target: TargetCopayAmount, Source: "copay_amt"},
		{Target: TargetNote, Source: "note"},
	}
}

// GeriScript has the narrowest export: no demographics beyond the name.

func geriscriptFields() *schema.FieldSet {
	return &schema.FieldSet{Fields: []schema.FieldSchema{
		{Name: "patient", Column: "Patient", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleName}},
		{Name: "ssn", Column: "SSN", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleSsn}},
		{Name: "disp_dt", Column: "Fill Date", Type: schema.TypeDate, Required: true},
		{Name: "drug", Column: "Medication", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleMaxLength150}},
		{Name: "rx_no", Column: "Rx", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "ndc", Column: "NDC", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength50}},
		{Name: "qty", Column: "Qty", Type: schema.TypeDecimal},
		{Name: "ds", Column: "Days Supply", Type: schema.TypeInt},
		{Name: "amt", Column: "Charge", Type: schema.TypeDecimal, Required: true},
		{Name: "copay", Column: "Copay", Type: schema.TypeDecimal},
		{Name: "note", Column: "Comments", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleMaxLength500}},
	}}
}

func geriscriptBindings() []Binding {
	return []Binding{
		{Target: TargetFirstName, Source: "patient", Transform: FirstFromName},
		{Target: TargetLastName, Source: "patient", Transform: LastFromName},
		{Target: TargetSSN, Source: "ssn", Transform: FormatSSN},
		{Target: TargetDispenseDt, Source: "disp_dt"},
		{Target: TargetDrugName, Source: "drug"},
		{Target: TargetRxNumber, Source: "rx_no"},
		{Target: TargetNDC, Source: "ndc"},
		{Target: TargetQuantity, Source: "qty"},
		{Target: TargetDaysSupplied, Source: "ds"},
		{Target: TargetChargeAmount, Source: "amt"},
		{Target: TargetCopayAmount, Source: "copay"},
		{Target: TargetNote, Source: "note"},
	}
}
