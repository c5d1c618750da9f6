// Package catalog fetches and decodes the CISA Known Exploited Vulnerabilities
// catalog.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Catalog is one upstream snapshot of the KEV catalog.
// See https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities_schema.json
type Catalog struct {
	Title           string          `json:"title,omitempty"`
	CatalogVersion  string          `json:"catalogVersion"`
	DateReleased    string          `json:"dateReleased"`
	Count           int             `json:"count"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// Vulnerability is one catalog row. CVEID is nil for entries published
// before a CVE was assigned.
type Vulnerability struct {
	CVEID             *string `json:"cveID,omitempty"`
	VendorProject     string  `json:"vendorProject"`
	Product           string  `json:"product"`
	VulnerabilityName string  `json:"vulnerabilityName"`
	DateAdded         string  `json:"dateAdded"`
	ShortDescription  string  `json:"shortDescription"`
	RequiredAction    string  `json:"requiredAction"`
	DueDate           string  `json:"dueDate"`
	Notes             string  `json:"notes"`
}

// Snapshot pairs a decoded catalog with the exact bytes it was decoded from.
type Snapshot struct {
	Catalog *Catalog
	Raw     []byte
}

// missingFieldsError reports required JSON members that were absent or null.
type missingFieldsError struct {
	object string
	fields []string
}

func (e *missingFieldsError) Error() string {
	return fmt.Sprintf("%s: missing required field(s): %s", e.object, strings.Join(e.fields, ", "))
}

func (c *Catalog) UnmarshalJSON(b []byte) error {
	var raw struct {
		Title           string          `json:"title"`
		CatalogVersion  *string         `json:"catalogVersion"`
		DateReleased    *string         `json:"dateReleased"`
		Count           *int            `json:"count"`
		Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var missing []string
	if raw.CatalogVersion == nil {
		missing = append(missing, "catalogVersion")
	}
	if raw.DateReleased == nil {
		missing = append(missing, "dateReleased")
	}
	if raw.Count == nil {
		missing = append(missing, "count")
	}
	// A null or absent array decodes to nil; an empty array does not.
	if raw.Vulnerabilities == nil {
		missing = append(missing, "vulnerabilities")
	}
	if len(missing) > 0 {
		return &missingFieldsError{object: "catalog", fields: missing}
	}

	*c = Catalog{
		Title:           raw.Title,
		CatalogVersion:  *raw.CatalogVersion,
		DateReleased:    *raw.DateReleased,
		Count:           *raw.Count,
		Vulnerabilities: raw.Vulnerabilities,
	}
	return nil
}

func (v *Vulnerability) UnmarshalJSON(b []byte) error {
	var raw struct {
		CVEID             *string `json:"cveID"`
		VendorProject     *string `json:"vendorProject"`
		Product           *string `json:"product"`
		VulnerabilityName *string `json:"vulnerabilityName"`
		DateAdded         *string `json:"dateAdded"`
		ShortDescription  *string `json:"shortDescription"`
		RequiredAction    *string `json:"requiredAction"`
		DueDate           *string `json:"dueDate"`
		Notes             *string `json:"notes"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	required := []struct {
		name string
		src  *string
		dst  *string
	}{
		{"vendorProject", raw.VendorProject, &v.VendorProject},
		{"product", raw.Product, &v.Product},
		{"vulnerabilityName", raw.VulnerabilityName, &v.VulnerabilityName},
		{"dateAdded", raw.DateAdded, &v.DateAdded},
		{"shortDescription", raw.ShortDescription, &v.ShortDescription},
		{"requiredAction", raw.RequiredAction, &v.RequiredAction},
		{"dueDate", raw.DueDate, &v.DueDate},
		{"notes", raw.Notes, &v.Notes},
	}

	var missing []string
	for _, f := range required {
		if f.src == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		object := "vulnerability"
		if raw.CVEID != nil {
			object += " " + *raw.CVEID
		}
		return &missingFieldsError{object: object, fields: missing}
	}

	for _, f := range required {
		*f.dst = *f.src
	}
	v.CVEID = raw.CVEID
	return nil
}
