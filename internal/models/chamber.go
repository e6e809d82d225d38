package models

import "fmt"

// Chamber is one of the three bodies whose tenure files are merged into offices.
type Chamber int

// Chambers in the order their records are merged into offices.
const (
	Senators Chamber = iota
	Representatives
	Ministers
)

// Chambers lists every chamber in merge order.
var Chambers = []Chamber{Senators, Representatives, Ministers}

var chamberParams = map[Chamber]struct {
	label string
	tag   string
}{
	Senators:        {label: "senators", tag: "member"},
	Representatives: {label: "representatives", tag: "member"},
	Ministers:       {label: "ministers", tag: "moffice"},
}

// Label is the literal written to the source column and the document's base name.
func (c Chamber) Label() string {
	return chamberParams[c].label
}

// TagName is the element holding one tenure record in the chamber's document.
func (c Chamber) TagName() string {
	return chamberParams[c].tag
}

// FileName is the document holding the chamber's tenure records.
func (c Chamber) FileName() string {
	return c.Label() + ".xml"
}

// String implements fmt.Stringer.
func (c Chamber) String() string {
	if _, ok := chamberParams[c]; !ok {
		return fmt.Sprintf("Chamber(%d)", int(c))
	}

	return c.Label()
}
