// Package models names the documents, elements and columns of the members data.
package models

// Column names of the people and offices record sets.
const (
	ColPersonID = "person_id"
	ColOfficeID = "office_id"
	ColFromDate = "fromdate"
	ColToDate   = "todate"
	ColSource   = "source"
	ColAPHURL   = "aph_url"
	ColAPHID    = "aph_id"
)

// AttrID is the attribute every source element uses for its key.
const AttrID = "id"

// Element tags in the documents.
const (
	TagPerson     = "person"
	TagOffice     = "office"
	TagPersonInfo = "personinfo"
)

// PeopleFile is the primary document holding persons and their offices.
const PeopleFile = "people.xml"

// EnrichmentFiles are merged into people in this order; later files win on
// overlapping columns.
var EnrichmentFiles = []string{
	"wikipedia-lords.xml",
	"wikipedia-commons.xml",
	"links-register-of-interests.xml",
	"links-abc-qanda.xml",
	"websites.xml",
}
