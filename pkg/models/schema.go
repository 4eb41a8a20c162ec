package models

import (
	"fmt"
	"strings"
)

// FieldSpec describes one slot of a fixed schema.
type FieldSpec struct {
	// Name is the canonical column name written to the output file
	Name string `json:"name" yaml:"name"`
	// Kind is the typed slot the normalizer must produce
	Kind Kind `json:"kind" yaml:"kind"`
	// Required fields reject the row when missing or empty
	Required bool `json:"required,omitempty" yaml:"required"`
	// Aliases are alternative input names for the same field
	Aliases []string `json:"aliases,omitempty" yaml:"aliases"`
	// Layouts are extra time layouts tried first for timestamp strings
	Layouts []string `json:"layouts,omitempty" yaml:"layouts"`
	// EpochUnit fixes the unit of a numeric timestamp; empty guesses it
	// from the magnitude
	EpochUnit EpochUnit `json:"epoch_unit,omitempty" yaml:"epoch_unit"`
	// Flag marks a string field that holds a boolean. Inputs are reduced
	// to "true" or "false"; anything unrecognized becomes Null.
	Flag bool `json:"flag,omitempty" yaml:"flag"`
}

// EpochUnit is the unit of a numeric timestamp.
type EpochUnit string

const (
	EpochAuto         EpochUnit = ""
	EpochSeconds      EpochUnit = "s"
	EpochMilliseconds EpochUnit = "ms"
	EpochMicroseconds EpochUnit = "us"
	EpochNanoseconds  EpochUnit = "ns"
)

// PerSecond is the number of units in one second, or 0 for EpochAuto and
// unknown units.
func (u EpochUnit) PerSecond() int64 {
	switch u {
	case EpochSeconds:
		return 1
	case EpochMilliseconds:
		return 1_000
	case EpochMicroseconds:
		return 1_000_000
	case EpochNanoseconds:
		return 1_000_000_000
	}
	return 0
}

// SortRoles names the fields that make up a row's sort key. Empty roles
// contribute a null component.
type SortRoles struct {
	Person    string `json:"person" yaml:"person"`
	Company   string `json:"company,omitempty" yaml:"company"`
	Type      string `json:"type,omitempty" yaml:"type"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp"`
}

// Schema is an ordered field list plus sort roles. Schemas are immutable
// after NewSchema returns.
type Schema struct {
	name   string
	fields []FieldSpec
	roles  SortRoles
	index  map[string]int
	// role positions, -1 when unset
	person, company, typ, ts int
}

// NewSchema validates and indexes a field list.
func NewSchema(name string, fields []FieldSpec, roles SortRoles) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema %s: no fields", name)
	}
	s := &Schema{
		name:   name,
		fields: append([]FieldSpec(nil), fields...),
		roles:  roles,
		index:  make(map[string]int, len(fields)*2),
	}
	for i, f := range s.fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %s: field %d has no name", name, i)
		}
		if f.Kind == KindNull {
			return nil, fmt.Errorf("schema %s: field %s has no kind", name, f.Name)
		}
		if f.EpochUnit != EpochAuto && (f.Kind != KindTimestamp || f.EpochUnit.PerSecond() == 0) {
			return nil, fmt.Errorf("schema %s: field %s cannot use epoch unit %q", name, f.Name, f.EpochUnit)
		}
		if f.Flag && f.Kind != KindString {
			return nil, fmt.Errorf("schema %s: flag field %s must be a string", name, f.Name)
		}
		for _, n := range append([]string{f.Name}, f.Aliases...) {
			if prev, dup := s.index[n]; dup {
				return nil, fmt.Errorf("schema %s: name %q used by fields %d and %d", name, n, prev, i)
			}
			s.index[n] = i
		}
	}

	var err error
	if roles.Person == "" {
		return nil, fmt.Errorf("schema %s: person sort role is required", name)
	}
	if s.person, err = s.role("person", roles.Person); err != nil {
		return nil, err
	}
	if s.company, err = s.role("company", roles.Company); err != nil {
		return nil, err
	}
	if s.typ, err = s.role("type", roles.Type); err != nil {
		return nil, err
	}
	if s.ts, err = s.role("timestamp", roles.Timestamp); err != nil {
		return nil, err
	}
	if s.ts >= 0 && s.fields[s.ts].Kind != KindTimestamp {
		return nil, fmt.Errorf("schema %s: timestamp role %s is a %s field", name, roles.Timestamp, s.fields[s.ts].Kind)
	}
	return s, nil
}

// MustSchema is NewSchema for package-level schema definitions.
func MustSchema(name string, fields []FieldSpec, roles SortRoles) *Schema {
	s, err := NewSchema(name, fields, roles)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) role(role, field string) (int, error) {
	if field == "" {
		return -1, nil
	}
	idx, ok := s.index[field]
	if !ok {
		return -1, fmt.Errorf("schema %s: %s role refers to unknown field %q", s.name, role, field)
	}
	return idx, nil
}

func (s *Schema) Name() string          { return s.name }
func (s *Schema) Len() int              { return len(s.fields) }
func (s *Schema) Field(i int) FieldSpec { return s.fields[i] }
func (s *Schema) Roles() SortRoles      { return s.roles }

// Fields returns a copy of the field list.
func (s *Schema) Fields() []FieldSpec { return append([]FieldSpec(nil), s.fields...) }

// Lookup resolves a canonical name or alias to a field position.
func (s *Schema) Lookup(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// RoleIndexes returns the positions of the person, company, type and
// timestamp fields; -1 marks an unset role.
func (s *Schema) RoleIndexes() (person, company, typ, ts int) {
	return s.person, s.company, s.typ, s.ts
}

// Kinds returns the kind of every field in order.
func (s *Schema) Kinds() []Kind {
	out := make([]Kind, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Kind
	}
	return out
}

// Table names the built-in logical tables.
type Table string

const (
	TableHolders Table = "holders"
	TableAssets  Table = "assets"
)

// ParseTable accepts the table names used on the command line, including
// the legacy "billionaires" name for holders.
func ParseTable(s string) (Table, error) {
	switch strings.ToLower(s) {
	case "holders", "holder", "billionaires":
		return TableHolders, nil
	case "assets", "asset":
		return TableAssets, nil
	}
	return "", fmt.Errorf("unknown table %q (want holders or assets)", s)
}

// SchemaFor returns the built-in schema of a table.
func SchemaFor(t Table) (*Schema, error) {
	switch t {
	case TableHolders:
		return HolderSchema, nil
	case TableAssets:
		return AssetSchema, nil
	}
	return nil, fmt.Errorf("no schema for table %q", t)
}

// Snapshot dates are written as YYYYMMDD.
const snapshotDateLayout = "20060102"

// HolderSchema is the person-level table of the wealth dataset.
var HolderSchema = MustSchema("holders", []FieldSpec{
	{Name: "date", Kind: KindTimestamp, Layouts: []string{snapshotDateLayout}},
	{Name: "personName", Kind: KindString, Required: true, Aliases: []string{"person", "person_id"}},
	{Name: "lastName", Kind: KindString},
	{Name: "birthDate", Kind: KindTimestamp, EpochUnit: EpochMilliseconds},
	{Name: "gender", Kind: KindString},
	{Name: "countryOfCitizenship", Kind: KindString},
	{Name: "city", Kind: KindString},
	{Name: "state", Kind: KindString},
	{Name: "source", Kind: KindString},
	{Name: "industries", Kind: KindString},
	{Name: "finalWorth", Kind: KindDecimal},
	{Name: "estWorthPrev", Kind: KindDecimal},
	{Name: "archivedWorth", Kind: KindDecimal},
	{Name: "privateAssetsWorth", Kind: KindDecimal},
}, SortRoles{Person: "personName", Timestamp: "date"})

// AssetSchema is the holding-level table of the wealth dataset.
var AssetSchema = MustSchema("assets", []FieldSpec{
	{Name: "date", Kind: KindTimestamp, Layouts: []string{snapshotDateLayout}},
	{Name: "personName", Kind: KindString, Required: true, Aliases: []string{"person", "person_id"}},
	{Name: "companyName", Kind: KindString, Aliases: []string{"company"}},
	{Name: "ticker", Kind: KindString, Aliases: []string{"asset_id"}},
	{Name: "currencyCode", Kind: KindString},
	{Name: "exchange", Kind: KindString},
	{Name: "interactive", Kind: KindString, Flag: true},
	{Name: "numberOfShares", Kind: KindDecimal},
	{Name: "sharePrice", Kind: KindDecimal},
	{Name: "exchangeRate", Kind: KindDecimal},
	{Name: "currentPrice", Kind: KindDecimal},
	{Name: "exerciseOptionPrice", Kind: KindDecimal},
}, SortRoles{Person: "personName", Company: "companyName", Type: "interactive", Timestamp: "date"})
