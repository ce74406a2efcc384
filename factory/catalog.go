/*
Package factory converts leave-type catalog files into timeoff.Catalog values.

PURPOSE:
  Deployments adjust names, pay flags and yearly caps without code changes.
  A catalog file lists leave types; entries are layered over the built-in
  catalog, so a file only needs the types it changes.

FILE FORMAT (YAML or JSON, chosen by extension):
  leave_types:
    - code: personal
      name: Personal Leave
      paid: false
      resets_annually: true
      max_days_per_year: 10
    - code: occupational
      requires_attachment: true

USAGE:
  catalog, err := factory.LoadCatalog("./catalog.yaml")
  engine := timeoff.NewEngine(catalog, decimal.NewFromInt(8))

SEE ALSO:
  - timeoff/catalog.go: Catalog and the built-in types
  - store/sqlite/sqlite.go: SaveLeaveTypes persists a catalog for seeding
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/flpliao/lovable-clock-flow-sub004/timeoff"
)

// =============================================================================
// FILE SCHEMA
// =============================================================================

// CatalogFile is the on-disk catalog.
type CatalogFile struct {
	LeaveTypes []LeaveTypeJSON `json:"leave_types" yaml:"leave_types"`
}

// LeaveTypeJSON is one catalog entry. Unset booleans default to false.
type LeaveTypeJSON struct {
	Code               string   `json:"code" yaml:"code"`
	Name               string   `json:"name,omitempty" yaml:"name,omitempty"`
	Paid               bool     `json:"paid,omitempty" yaml:"paid,omitempty"`
	RequiresAttachment bool     `json:"requires_attachment,omitempty" yaml:"requires_attachment,omitempty"`
	ResetsAnnually     bool     `json:"resets_annually,omitempty" yaml:"resets_annually,omitempty"`
	MaxDaysPerYear     *float64 `json:"max_days_per_year,omitempty" yaml:"max_days_per_year,omitempty"`
}

// =============================================================================
// LOADING
// =============================================================================

// LoadCatalog reads path and returns the built-in catalog with the file's
// entries layered on top. An empty path returns the built-in catalog.
func LoadCatalog(path string) (*timeoff.Catalog, error) {
	if path == "" {
		return timeoff.DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var overrides *timeoff.Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		overrides, err = ParseCatalogYAML(data)
	case ".json":
		overrides, err = ParseCatalogJSON(data)
	default:
		return nil, fmt.Errorf("catalog %s: unsupported extension %q", path, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return timeoff.DefaultCatalog().Merge(overrides), nil
}

// ParseCatalogYAML parses a YAML catalog.
func ParseCatalogYAML(data []byte) (*timeoff.Catalog, error) {
	var f CatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return f.Build()
}

// ParseCatalogJSON parses a JSON catalog.
func ParseCatalogJSON(data []byte) (*timeoff.Catalog, error) {
	var f CatalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return f.Build()
}

// Build validates the entries and converts them.
func (f CatalogFile) Build() (*timeoff.Catalog, error) {
	seen := make(map[string]bool, len(f.LeaveTypes))
	types := make([]timeoff.LeaveType, 0, len(f.LeaveTypes))

	for i, lt := range f.LeaveTypes {
		code := strings.TrimSpace(lt.Code)
		if code == "" {
			return nil, fmt.Errorf("leave_types[%d]: code is required", i)
		}
		if seen[code] {
			return nil, fmt.Errorf("leave_types[%d]: duplicate code %q", i, code)
		}
		seen[code] = true

		out := timeoff.LeaveType{
			Code:               timeoff.Code(code),
			Name:               lt.Name,
			Paid:               lt.Paid,
			RequiresAttachment: lt.RequiresAttachment,
			ResetsAnnually:     lt.ResetsAnnually,
		}
		if out.Name == "" {
			out.Name = code
		}
		if lt.MaxDaysPerYear != nil {
			if *lt.MaxDaysPerYear < 0 {
				return nil, fmt.Errorf("leave_types[%d]: max_days_per_year must not be negative", i)
			}
			d := decimal.NewFromFloat(*lt.MaxDaysPerYear)
			out.MaxDaysPerYear = &d
		}
		types = append(types, out)
	}
	return timeoff.NewCatalog(types...), nil
}

// ToFile is the inverse of Build, used when exporting a catalog.
func ToFile(c *timeoff.Catalog) CatalogFile {
	var f CatalogFile
	for _, lt := range c.All() {
		entry := LeaveTypeJSON{
			Code:               string(lt.Code),
			Name:               lt.Name,
			Paid:               lt.Paid,
			RequiresAttachment: lt.RequiresAttachment,
			ResetsAnnually:     lt.ResetsAnnually,
		}
		if lt.MaxDaysPerYear != nil {
			v := lt.MaxDaysPerYear.InexactFloat64()
			entry.MaxDaysPerYear = &v
		}
		f.LeaveTypes = append(f.LeaveTypes, entry)
	}
	return f
}
