// Package extsort implements the sort-key planner: a stable external merge
// sort that orders records by (person, company, type, timestamp, seq).
//
// Grouping rows by the entity they describe, then by holding, category and
// time, puts repeated values next to each other so dictionary and run-length
// encoding in the columnar writer see long runs.
package extsort

import (
	"cmp"
	"strings"

	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// SortKey is the physical ordering of a record. Unset roles and absent
// values are Null, and Null sorts before every non-null value.
type SortKey struct {
	Person    models.Value
	Company   models.Value
	Type      models.Value
	Timestamp models.Value
	Seq       uint64
}

// roles caches a schema's role positions; -1 means the role is unset.
type roles struct {
	person, company, typ, ts int
}

func rolesOf(s *models.Schema) roles {
	p, c, t, ts := s.RoleIndexes()
	return roles{person: p, company: c, typ: t, ts: ts}
}

func (r roles) key(rec *models.Record) SortKey {
	return SortKey{
		Person:    rec.Get(r.person),
		Company:   rec.Get(r.company),
		Type:      rec.Get(r.typ),
		Timestamp: rec.Get(r.ts),
		Seq:       rec.Seq,
	}
}

// KeyOf computes the sort key of rec under schema s.
func KeyOf(s *models.Schema, rec *models.Record) SortKey {
	return rolesOf(s).key(rec)
}

// Compare orders two keys. Keys from distinct input rows never compare
// equal because Seq is unique, which makes the order total and stable.
func Compare(a, b SortKey) int {
	if c := compareValue(a.Person, b.Person); c != 0 {
		return c
	}
	if c := compareValue(a.Company, b.Company); c != 0 {
		return c
	}
	if c := compareValue(a.Type, b.Type); c != 0 {
		return c
	}
	if c := compareValue(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

func compareValue(a, b models.Value) int {
	if a.Kind() != b.Kind() {
		// Null is the lowest kind, so absent values lead.
		return cmp.Compare(a.Kind(), b.Kind())
	}
	switch a.Kind() {
	case models.KindString:
		return strings.Compare(a.Str(), b.Str())
	case models.KindInteger:
		return cmp.Compare(a.Int(), b.Int())
	case models.KindTimestamp:
		return cmp.Compare(a.Epoch(), b.Epoch())
	case models.KindDecimal:
		return a.Dec().Cmp(b.Dec())
	}
	return 0
}
