package xmltree

// Text is an optional element text value.
// The zero value is NoText: the element is created without any text token.
type Text struct {
	value string
	set   bool
}

// NoText creates elements without text.
var NoText = Text{}

// TextOf returns a text value; TextOf("") yields an explicit empty text.
func TextOf(value string) Text {
	return Text{value: value, set: true}
}

// Value returns the text and whether it is set.
func (t Text) Value() (string, bool) {
	return t.value, t.set
}
