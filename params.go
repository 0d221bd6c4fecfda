package nestling

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hanpama/nestling/model"
)

// Where is a Hasura boolean expression, e.g.
// Where{"name": map[string]any{"_eq": "ada"}}.
type Where map[string]any

// ListParams are the list-shaping arguments accepted by every many-row
// operation. Zero values are omitted from the document.
type ListParams struct {
	Where      Where
	DistinctOn []string
	// OrderBy is a map or slice of maps in Hasura order_by form, e.g.
	// map[string]any{"created_at": "desc"}.
	OrderBy any
	Limit   int
	Offset  int
}

// OnConflict is an upsert clause for inserts.
type OnConflict struct {
	Constraint    string   `json:"constraint"`
	UpdateColumns []string `json:"update_columns"`
	Where         Where    `json:"where,omitempty"`
}

// UpdateChanges groups the column changes of an update. At least one member
// must be set.
type UpdateChanges struct {
	Set          map[string]any
	Inc          map[string]any
	Append       map[string]any
	Prepend      map[string]any
	DeleteKey    map[string]any
	DeleteElem   map[string]any
	DeleteAtPath map[string]any
}

func (ch UpdateChanges) isZero() bool {
	return ch.Set == nil && ch.Inc == nil && ch.Append == nil &&
		ch.Prepend == nil && ch.DeleteKey == nil && ch.DeleteElem == nil &&
		ch.DeleteAtPath == nil
}

// DistinctUpdate is one entry of an update_many call: its own filter with
// its own column values.
type DistinctUpdate struct {
	Where Where          `json:"where"`
	Set   map[string]any `json:"_set"`
}

// CountArg shapes the count aggregate. The zero value counts all rows.
type CountArg struct {
	Columns  []string
	Distinct bool
}

// Aggregations selects which aggregates to compute. At least one member
// must be set.
type Aggregations struct {
	Count      *CountArg
	Avg        []string
	Max        []string
	Min        []string
	Stddev     []string
	StddevPop  []string
	StddevSamp []string
	Sum        []string
	VarPop     []string
	VarSamp    []string
	Variance   []string
}

func (a Aggregations) isZero() bool {
	return a.Count == nil && a.Avg == nil && a.Max == nil && a.Min == nil &&
		a.Stddev == nil && a.StddevPop == nil && a.StddevSamp == nil &&
		a.Sum == nil && a.VarPop == nil && a.VarSamp == nil && a.Variance == nil
}

// functionArgs converts caller-supplied stored-function arguments to the
// representation the args input type accepts: slices become Postgres array
// literals, models become JSON strings, booleans and numbers pass through,
// everything else is stringified.
func functionArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for name, v := range args {
		out[name] = functionArg(v)
	}
	return out
}

func functionArg(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, int, int32, int64, float32, float64, json.Number:
		return val
	case string:
		return val
	case []string:
		return "{" + strings.Join(val, ",") + "}"
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = fmt.Sprint(functionArg(e))
		}
		return "{" + strings.Join(parts, ",") + "}"
	case model.Model:
		b, err := json.Marshal(model.Input(val))
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
