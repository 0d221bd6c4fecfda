// Package model defines the descriptor contract between generated table
// models and the query builders. A code generator derives one Table
// descriptor per database relation; the builders never inspect Go types at
// runtime and rely on the descriptors alone.
package model

import "fmt"

// Kind tags a field descriptor. The generator emits exactly one tag per
// field so the builders never have to guess whether a field is a scalar or
// a relation, or whether a relation is single or list valued.
type Kind uint8

const (
	Scalar Kind = iota
	Relation
	RelationList
	AggregateRelation
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Relation:
		return "relation"
	case RelationList:
		return "relationList"
	case AggregateRelation:
		return "aggregateRelation"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Field describes one column or relation of a table.
type Field struct {
	Name string
	Kind Kind

	// Ref names the target table of a relation field by its qualified name.
	// It stays a plain string until Bind resolves it, which is what allows
	// self-referential and mutually recursive relations.
	Ref string

	target *Table
}

// Target returns the table a relation field points at. It is nil for scalar
// fields and for relation fields of an unbound registry.
func (f Field) Target() *Table { return f.target }

// Key identifies the primary-key column of a table and its GraphQL type.
type Key struct {
	Column string
	// Type is the GraphQL type of the key column, e.g. "uuid!" or "Int!".
	Type string
}

// Capabilities marks which optional field blocks a table carries. The
// generator sets these from the schema instead of encoding them in a class
// hierarchy; callers query by capability.
type Capabilities struct {
	// Identity: the table has a generated primary key column.
	Identity bool
	// Audit: created_by/created_at and updated_by/updated_at columns.
	Audit bool
	// SoftDelete: deleted_by/deleted_at columns.
	SoftDelete bool
}

// Table is the descriptor for one database relation.
type Table struct {
	// Schema is the Postgres schema. Tables outside "public" get the schema
	// prepended to every GraphQL field name derived from them.
	Schema string
	Name   string
	PK     Key
	Caps   Capabilities
	Fields []Field
}

// QualifiedName returns the table name as it appears in the GraphQL schema:
// plain for the public schema, "<schema>_<name>" otherwise.
func (t *Table) QualifiedName() string {
	return t.Qualify(t.Name)
}

// Qualify prepends the table's schema to a label using the same rule as
// QualifiedName. Stored functions living next to the table use it too.
func (t *Table) Qualify(label string) string {
	if t.Schema == "" || t.Schema == "public" {
		return label
	}
	return t.Schema + "_" + label
}

// Columns returns the scalar column names in declaration order.
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Kind == Scalar {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// Field looks a field up by name.
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Relations returns the relation fields (all kinds except Scalar).
func (t *Table) Relations() []Field {
	rels := make([]Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Kind != Scalar {
			rels = append(rels, f)
		}
	}
	return rels
}

// Dynamic builds a descriptor at runtime from a schema, a table name and
// its scalar columns. The first column is taken as the primary key with a
// uuid type. Generated code does not use this; ad-hoc callers (such as the
// CLI) do.
func Dynamic(schema, name string, columns ...string) *Table {
	t := &Table{Schema: schema, Name: name}
	if len(columns) > 0 {
		t.PK = Key{Column: columns[0], Type: "uuid!"}
		t.Caps.Identity = true
	}
	for _, c := range columns {
		t.Fields = append(t.Fields, Field{Name: c, Kind: Scalar})
	}
	return t
}

// Model is implemented by every generated table model. ModelTable must be
// callable on the zero value; ModelValues returns the set field values with
// relation fields holding Model or []Model values.
type Model interface {
	ModelTable() *Table
	ModelValues() map[string]any
}

// Row is an untyped model over a dynamic descriptor. Its table is unknown
// to the type itself, so it can only be used with builders that carry an
// explicit descriptor.
type Row map[string]any

func (Row) ModelTable() *Table { return nil }

func (r Row) ModelValues() map[string]any { return map[string]any(r) }

// Input projects a model instance into the nested plain-value form the
// backend accepts as mutation input: scalars pass through, relation values
// are recursively wrapped in {"data": ...}.
func Input(m Model) map[string]any {
	table := m.ModelTable()
	values := m.ModelValues()
	out := make(map[string]any, len(values))
	for name, v := range values {
		if v == nil {
			continue
		}
		kind := Scalar
		if table != nil {
			if f, ok := table.Field(name); ok {
				kind = f.Kind
			}
		}
		switch kind {
		case Relation:
			if sub, ok := v.(Model); ok {
				out[name] = map[string]any{"data": Input(sub)}
				continue
			}
			out[name] = v
		case RelationList:
			if subs, ok := v.([]Model); ok {
				data := make([]map[string]any, len(subs))
				for i, sub := range subs {
					data[i] = Input(sub)
				}
				out[name] = map[string]any{"data": data}
				continue
			}
			out[name] = v
		case AggregateRelation:
			// Aggregate fields are read-only; never part of mutation input.
		default:
			out[name] = v
		}
	}
	return out
}
