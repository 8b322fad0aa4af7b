package dispatch

import (
	"fmt"
	"strings"

	"github.com/ignite/lead-dispatch/internal/domain"
)

// ResolveSchema finds the phone and status columns by exact header match.
// The first occurrence wins when a name repeats.
func ResolveSchema(header []string, phoneColumn, statusColumn string) (domain.Schema, error) {
	schema := domain.Schema{PhoneIndex: -1, StatusIndex: -1}
	for i, name := range header {
		if name == phoneColumn && schema.PhoneIndex < 0 {
			schema.PhoneIndex = i
		}
		if name == statusColumn && schema.StatusIndex < 0 {
			schema.StatusIndex = i
		}
	}

	var missing []string
	if schema.PhoneIndex < 0 {
		missing = append(missing, fmt.Sprintf("%q", phoneColumn))
	}
	if schema.StatusIndex < 0 {
		missing = append(missing, fmt.Sprintf("%q", statusColumn))
	}
	if len(missing) > 0 {
		return schema, fmt.Errorf("%w: missing column(s) %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return schema, nil
}

// SelectEligible returns the rows whose status reads "new", in table order.
func SelectEligible(ds *domain.Dataset, schema domain.Schema) []domain.LeadRow {
	var out []domain.LeadRow
	for i, cells := range ds.Rows {
		status := cell(cells, schema.StatusIndex)
		if !IsEligible(status) {
			continue
		}
		out = append(out, domain.LeadRow{
			Ordinal: i + 2,
			Phone:   cell(cells, schema.PhoneIndex),
			Status:  status,
			Fields:  otherFields(ds.Header, cells, schema),
		})
	}
	return out
}

// IsEligible reports whether a raw status cell marks a row for contact.
func IsEligible(status string) bool {
	return strings.ToLower(strings.TrimSpace(status)) == domain.EligibleStatus
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

func otherFields(header, cells []string, schema domain.Schema) map[string]string {
	fields := make(map[string]string, len(header))
	for i, name := range header {
		if i == schema.PhoneIndex || i == schema.StatusIndex || name == "" {
			continue
		}
		if _, dup := fields[name]; dup {
			continue
		}
		fields[name] = cell(cells, i)
	}
	return fields
}
