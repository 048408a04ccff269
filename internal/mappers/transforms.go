package mappers

import (
	"fmt"
	"strings"
)

// TransformFunc reshapes a normalized field value before it is assigned
// to a canonical invoice line field. A nil input passes through as nil.
type TransformFunc func(value interface{}) (interface{}, error)

// FirstFromName extracts the part before the comma of a combined
// patient name such as "John,Doe".
func FirstFromName(value interface{}) (interface{}, error) {
	name, err := stringValue("patient name", value)
	if err != nil || name == nil {
		return nil, err
	}
	first, _ := splitName(*name)
	return first, nil
}

// LastFromName extracts the part after the comma of a combined patient
// name. Names without a comma have no last name.
func LastFromName(value interface{}) (interface{}, error) {
	name, err := stringValue("patient name", value)
	if err != nil || name == nil {
		return nil, err
	}
	_, last := splitName(*name)
	if last == "" {
		return nil, nil
	}
	return last, nil
}

func splitName(name string) (first, last string) {
	idx := strings.IndexByte(name, ',')
	if idx < 0 {
		return strings.TrimSpace(name), ""
	}
	return strings.TrimSpace(name[:idx]), strings.TrimSpace(name[idx+1:])
}

// FormatSSN canonicalizes a social security number to nine digits.
// Masked values starting with an underscore collapse to the empty
// sentinel so redacted exports still load.
func FormatSSN(value interface{}) (interface{}, error) {
	ssn, err := stringValue("ssn", value)
	if err != nil || ssn == nil {
		return nil, err
	}

	s := *ssn
	switch {
	case s == "":
		return "", nil
	case strings.HasPrefix(s, "_"):
		return "", nil
	case len(s) == 11:
		return s[0:3] + s[4:6] + s[7:11], nil
	default:
		return s, nil
	}
}

// DecodeGender maps boy/girl codes onto M/F. Codes arrive in either
// case and come out upper; anything unrecognized is stored empty.
func DecodeGender(value interface{}) (interface{}, error) {
	gender, err := stringValue("gender", value)
	if err != nil || gender == nil {
		return nil, err
	}

	switch strings.ToUpper(*gender) {
	case "B":
		return "M", nil
	case "G":
		return "F", nil
	case "M":
		return "M", nil
	case "F":
		return "F", nil
	default:
		return "", nil
	}
}

// FlagCopay yields Y when the source value marks the line as a copay
// charge, N otherwise.
func FlagCopay(value interface{}) (interface{}, error) {
	marker, err := stringValue("copay marker", value)
	if err != nil || marker == nil {
		return "N", nil
	}
	if strings.Contains(strings.ToUpper(*marker), "COPAY") {
		return "Y", nil
	}
	return "N", nil
}

func stringValue(what string, value interface{}) (*string, error) {
	if value == nil {
		return nil, nil
	}
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%s: expected text, got %T", what, value)
	}
	return &s, nil
}
