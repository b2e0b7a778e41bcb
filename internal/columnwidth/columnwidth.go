// Package columnwidth computes the preferred grid column width of a fact mapping.
package columnwidth

import "strconv"

const (
	indexWidth       = 70
	descriptionWidth = 300
	givenWidth       = 114
	expectWidth      = 114
	otherWidth       = 150
)

// Func maps an expression identifier name to a column width.
type Func func(expressionIdentifierName string) float64

// For returns the width used for columns of the named expression identifier.
// Unknown names get the generic width.
func For(expressionIdentifierName string) float64 {
	switch expressionIdentifierName {
	case "Index":
		return indexWidth
	case "Description":
		return descriptionWidth
	case "Given":
		return givenWidth
	case "Expected":
		return expectWidth
	default:
		return otherWidth
	}
}

// Format renders a width the way it is persisted, with at least one decimal.
func Format(width float64) string {
	s := strconv.FormatFloat(width, 'f', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == 'e' || s[i] == 'N' || s[i] == 'I' {
			return s
		}
	}
	return s + ".0"
}
