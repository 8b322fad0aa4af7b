package domain

// Default header names of the two columns the dispatcher depends on.
const (
	DefaultPhoneColumn  = "Contact number of lead"
	DefaultStatusColumn = "Status"
)

// EligibleStatus is the status token (trimmed, lower-cased) that marks a row
// as ready for contact.
const EligibleStatus = "new"

// Status cell values written back after a row is processed.
const (
	StatusSent         = "Sent"
	StatusInvalidPhone = "Invalid Phone"
	StatusErrorPrefix  = "Error: "
)

// Dataset is a full snapshot of the lead table: the header row followed by
// every data row, all as raw text. Rows may be shorter than the header.
type Dataset struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Empty reports whether the snapshot has no header at all.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Header) == 0
}

// Schema holds the resolved 0-based column positions for one run.
type Schema struct {
	PhoneIndex  int `json:"phone_index"`
	StatusIndex int `json:"status_index"`
}

// LeadRow is one data row viewed through a Schema. Ordinal is the row's
// 1-based position in the table including the header, so the first data row
// is ordinal 2. Fields carries the remaining named cells untouched.
type LeadRow struct {
	Ordinal int               `json:"ordinal"`
	Phone   string            `json:"phone"`
	Status  string            `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
}
