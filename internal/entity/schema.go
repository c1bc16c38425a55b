// Package entity implements the generic data-access layer shared by all
// entity types: a declarative schema table, reference-existence
// validation, reference expansion, and one Service type instantiated per
// schema. Per-entity rules (required fields, unique fields, foreign keys
// and their projections) live in the schema table, not in code.
package entity

import (
	"regexp"
	"strings"

	"github.com/RoyFahel/cloud-project/internal/store"
)

// emailPattern is deliberately loose; real validation happens when mail
// is actually sent.
var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// Field declares validation and normalization rules for one document
// attribute. Transforms (Trim, Lowercase) run before validation and
// before the value is stored, so unique indexes see normalized values.
type Field struct {
	Name      string
	Label     string // human-readable name used in error messages
	Required  bool
	Unique    bool
	Trim      bool
	Lowercase bool
	MinLen    int
	Match     *regexp.Regexp
	MatchMsg  string
}

// Ref declares a foreign-key field: which collection it points into and
// which fields of the referenced record get inlined on reads.
type Ref struct {
	Field      string
	Collection string
	Project    []string
}

// Schema is the declarative description of one entity type. The generic
// Service, Handler, and the store's unique indexes are all derived from
// it; there is no per-entity code.
type Schema struct {
	Name       string // singular, used as the POST response envelope key
	Title      string // capitalized singular for messages
	Plural     string // route segment and list envelope key
	Collection string
	Fields     []Field
	Refs       []Ref
	DefaultNow []string // date fields defaulted to now at creation
}

func (s Schema) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s Schema) ref(name string) (Ref, bool) {
	for _, r := range s.Refs {
		if r.Field == name {
			return r, true
		}
	}
	return Ref{}, false
}

// personFields is shared by patients and customers.
func personFields() []Field {
	return []Field{
		{Name: "firstName", Label: "First name", Required: true, Trim: true, MinLen: 2},
		{Name: "lastName", Label: "Last name", Required: true, Trim: true, MinLen: 2},
		{Name: "email", Label: "Email", Required: true, Unique: true, Trim: true, Lowercase: true,
			Match: emailPattern, MatchMsg: "Please enter a valid email"},
	}
}

// Schemas returns the full entity table: the pharmacy domain (patients,
// maladies, medicaments, consultations) and the commerce domain
// (customers, groups, categories, products, orders).
func Schemas() []Schema {
	return []Schema{
		{
			Name: "patient", Title: "Patient", Plural: "patients", Collection: "patients",
			Fields: personFields(),
		},
		{
			Name: "malady", Title: "Malady", Plural: "maladies", Collection: "maladies",
			Fields: []Field{
				{Name: "maladyName", Label: "Malady name", Required: true, Unique: true, Trim: true},
			},
		},
		{
			Name: "medicament", Title: "Medicament", Plural: "medicaments", Collection: "medicaments",
			Fields: []Field{
				{Name: "medicamentName", Label: "Medicament name", Required: true, Trim: true},
				{Name: "malady_id", Label: "Malady ID", Required: true},
			},
			Refs: []Ref{
				{Field: "malady_id", Collection: "maladies", Project: []string{"maladyName"}},
			},
		},
		{
			Name: "consultation", Title: "Consultation", Plural: "consultations", Collection: "consultations",
			Fields: []Field{
				{Name: "patient_id", Label: "Patient ID", Required: true},
				{Name: "malady_id", Label: "Malady ID", Required: true},
				{Name: "medicament_id", Label: "Medicament ID", Required: true},
			},
			Refs: []Ref{
				{Field: "patient_id", Collection: "patients", Project: []string{"firstName", "lastName", "email", "age", "gender"}},
				{Field: "malady_id", Collection: "maladies", Project: []string{"maladyName"}},
				{Field: "medicament_id", Collection: "medicaments", Project: []string{"medicamentName"}},
			},
			DefaultNow: []string{"date"},
		},
		{
			Name: "customer", Title: "Customer", Plural: "customers", Collection: "customers",
			Fields: personFields(),
		},
		{
			Name: "group", Title: "Group", Plural: "groups", Collection: "groups",
			Fields: []Field{
				{Name: "groupName", Label: "Group name", Required: true, Unique: true, Trim: true},
			},
		},
		{
			Name: "category", Title: "Category", Plural: "categories", Collection: "categories",
			Fields: []Field{
				{Name: "categoryName", Label: "Category name", Required: true, Unique: true, Trim: true},
			},
		},
		{
			Name: "product", Title: "Product", Plural: "products", Collection: "products",
			Fields: []Field{
				{Name: "productName", Label: "Product name", Required: true, Trim: true},
				{Name: "category_id", Label: "Category ID", Required: true},
			},
			Refs: []Ref{
				{Field: "category_id", Collection: "categories", Project: []string{"categoryName"}},
			},
		},
		{
			Name: "order", Title: "Order", Plural: "orders", Collection: "orders",
			Fields: []Field{
				{Name: "customer_id", Label: "Customer ID", Required: true},
				{Name: "category_id", Label: "Category ID", Required: true},
				{Name: "product_id", Label: "Product ID", Required: true},
			},
			Refs: []Ref{
				{Field: "customer_id", Collection: "customers", Project: []string{"firstName", "lastName", "email", "age", "gender"}},
				{Field: "category_id", Collection: "categories", Project: []string{"categoryName"}},
				{Field: "product_id", Collection: "products", Project: []string{"productName"}},
			},
			DefaultNow: []string{"date"},
		},
	}
}

// UniqueIndexes lists the store-level uniqueness constraints declared by
// a set of schemas. Both store implementations take these at construction.
func UniqueIndexes(schemas []Schema) []store.UniqueIndex {
	var out []store.UniqueIndex
	for _, s := range schemas {
		for _, f := range s.Fields {
			if f.Unique {
				out = append(out, store.UniqueIndex{Collection: s.Collection, Field: f.Name})
			}
		}
	}
	return out
}

// singularTitle resolves a collection name to its entity title for error
// messages ("maladies" -> "Malady").
func singularTitle(collection string) string {
	for _, s := range Schemas() {
		if s.Collection == collection {
			return s.Title
		}
	}
	title := strings.TrimSuffix(collection, "s")
	if title == "" {
		return collection
	}
	return strings.ToUpper(title[:1]) + title[1:]
}
