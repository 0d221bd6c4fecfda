package nestling

import (
	"fmt"
	"strings"
)

// fragments holds the GraphQL text pieces owned by one node: the field
// name, the paired outer declarations and inner references produced by
// hoisting, the ordered selection set, and the variable bindings that
// travel in the request payload.
//
// Hoisted arguments append to outerArgs and innerArgs in lockstep;
// variables holds each value under its generated name. Aggregate count
// arguments declare outer variables without a node-level inner reference
// because they are rendered on the count field itself.
type fragments struct {
	queryName  string
	outerArgs  []string
	innerArgs  []string
	selections []selection
	variables  map[string]any
}

func newFragments(queryName string) fragments {
	return fragments{queryName: queryName, variables: map[string]any{}}
}

type selection interface {
	renderTo(b *strings.Builder)
}

// columnList is a resolved column selection. Items are either plain column
// names or bound relation nodes produced by includes.
type columnList struct {
	items []any
}

func (c columnList) renderTo(b *strings.Builder) {
	for _, item := range c.items {
		switch v := item.(type) {
		case string:
			b.WriteString(v)
			b.WriteString("\n")
		case *node:
			v.renderTo(b)
		default:
			panic(fmt.Sprintf("nestling: column list holds %T", item))
		}
	}
}

type returningSelection struct {
	cols columnList
}

func (s returningSelection) renderTo(b *strings.Builder) {
	b.WriteString("returning {\n")
	s.cols.renderTo(b)
	b.WriteString("}\n")
}

type nodesSelection struct {
	cols columnList
}

func (s nodesSelection) renderTo(b *strings.Builder) {
	b.WriteString("nodes {\n")
	s.cols.renderTo(b)
	b.WriteString("}\n")
}

type affectedRowsSelection struct{}

func (affectedRowsSelection) renderTo(b *strings.Builder) {
	b.WriteString("affected_rows\n")
}

// aggregateField is one aggregate inside an aggregate block. count renders
// its hoisted arguments; the numeric aggregates render a column sub-set.
type aggregateField struct {
	name string
	args []string
	cols []string
}

type aggregateSelection struct {
	fields []aggregateField
}

func (s aggregateSelection) renderTo(b *strings.Builder) {
	b.WriteString("aggregate {\n")
	for _, f := range s.fields {
		b.WriteString(f.name)
		if len(f.args) > 0 {
			b.WriteString("(")
			b.WriteString(strings.Join(f.args, ", "))
			b.WriteString(")")
		}
		if len(f.cols) > 0 {
			b.WriteString(" {\n")
			for _, c := range f.cols {
				b.WriteString(c)
				b.WriteString("\n")
			}
			b.WriteString("}")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")
}

// addArg hoists one argument: declares it on the root operation, references
// it at this node, and binds its value.
func (f *fragments) addArg(r *root, name, gqlType string, value any) {
	varName := r.nextVar()
	f.outerArgs = append(f.outerArgs, "$"+varName+": "+gqlType)
	f.innerArgs = append(f.innerArgs, name+": $"+varName)
	f.variables[varName] = value
}

// conditionals collects everything a caller can pass as arguments for one
// operation. buildConditionals turns each set member into a hoisted
// variable with the Hasura type derived from the table name. Field order
// here fixes variable numbering, so it must stay stable.
type conditionals struct {
	object  any
	objects any

	set          map[string]any
	inc          map[string]any
	appendCols   map[string]any
	prependCols  map[string]any
	deleteKey    map[string]any
	deleteElem   map[string]any
	deleteAtPath map[string]any

	pkColumns  map[string]any
	onConflict *OnConflict
	updates    []DistinctUpdate

	where         Where
	whereRequired bool
	distinctOn    []string
	orderBy       any
	limit         int
	offset        int

	args     map[string]any
	argsType string
}

// buildConditionals hoists every set conditional into the node's fragments.
// typeName is the qualified table name used to derive the Hasura input type
// names; for stored functions argsType carries the qualified function name.
func (n *node) buildConditionals(c conditionals) {
	f := &n.frag
	r := n.root
	t := n.table.QualifiedName()

	if c.object != nil {
		f.addArg(r, "object", t+"_insert_input!", c.object)
	}
	if c.objects != nil {
		f.addArg(r, "objects", "["+t+"_insert_input!]!", c.objects)
	}
	if c.set != nil {
		f.addArg(r, "_set", t+"_set_input", c.set)
	}
	if c.inc != nil {
		f.addArg(r, "_inc", t+"_inc_input", c.inc)
	}
	if c.appendCols != nil {
		f.addArg(r, "_append", t+"_append_input", c.appendCols)
	}
	if c.prependCols != nil {
		f.addArg(r, "_prepend", t+"_prepend_input", c.prependCols)
	}
	if c.deleteKey != nil {
		f.addArg(r, "_delete_key", t+"_delete_key_input", c.deleteKey)
	}
	if c.deleteElem != nil {
		f.addArg(r, "_delete_elem", t+"_delete_elem_input", c.deleteElem)
	}
	if c.deleteAtPath != nil {
		f.addArg(r, "_delete_at_path", t+"_delete_at_path_input", c.deleteAtPath)
	}
	if c.pkColumns != nil {
		f.addArg(r, "pk_columns", t+"_pk_columns_input!", c.pkColumns)
	}
	if c.onConflict != nil {
		f.addArg(r, "on_conflict", t+"_on_conflict", c.onConflict)
	}
	if c.updates != nil {
		f.addArg(r, "updates", "["+t+"_updates!]!", c.updates)
	}
	if c.where != nil || c.whereRequired {
		boolExp := t + "_bool_exp"
		if c.whereRequired {
			boolExp += "!"
		}
		where := c.where
		if where == nil {
			where = Where{}
		}
		f.addArg(r, "where", boolExp, where)
	}
	if c.distinctOn != nil {
		f.addArg(r, "distinct_on", "["+t+"_select_column!]", c.distinctOn)
	}
	if c.orderBy != nil {
		f.addArg(r, "order_by", "["+t+"_order_by!]", c.orderBy)
	}
	if c.limit > 0 {
		f.addArg(r, "limit", "Int", c.limit)
	}
	if c.offset > 0 {
		f.addArg(r, "offset", "Int", c.offset)
	}
	if c.args != nil {
		f.addArg(r, "args", c.argsType+"_args!", functionArgs(c.args))
	}
}

// buildAggregations hoists count's arguments as variables and appends the
// aggregate selection block.
func (n *node) buildAggregations(aggs Aggregations) {
	var fields []aggregateField

	if aggs.Count != nil {
		cf := aggregateField{name: "count"}
		if len(aggs.Count.Columns) > 0 {
			varName := n.root.nextVar()
			t := n.table.QualifiedName()
			n.frag.outerArgs = append(n.frag.outerArgs, "$"+varName+": ["+t+"_select_column!]")
			n.frag.variables[varName] = aggs.Count.Columns
			cf.args = append(cf.args, "columns: $"+varName)
		}
		if aggs.Count.Distinct {
			varName := n.root.nextVar()
			n.frag.outerArgs = append(n.frag.outerArgs, "$"+varName+": Boolean")
			n.frag.variables[varName] = true
			cf.args = append(cf.args, "distinct: $"+varName)
		}
		fields = append(fields, cf)
	}

	numeric := []struct {
		name string
		cols []string
	}{
		{"avg", aggs.Avg},
		{"max", aggs.Max},
		{"min", aggs.Min},
		{"stddev", aggs.Stddev},
		{"stddev_pop", aggs.StddevPop},
		{"stddev_samp", aggs.StddevSamp},
		{"sum", aggs.Sum},
		{"var_pop", aggs.VarPop},
		{"var_samp", aggs.VarSamp},
		{"variance", aggs.Variance},
	}
	for _, na := range numeric {
		if len(na.cols) > 0 {
			fields = append(fields, aggregateField{name: na.name, cols: na.cols})
		}
	}

	n.frag.selections = append(n.frag.selections, aggregateSelection{fields: fields})
}
