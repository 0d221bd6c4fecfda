package model

// Numeric holds the per-column results of a numeric aggregate such as avg
// or sum. The backend returns every numeric aggregate as a float regardless
// of the column type.
type Numeric map[string]float64

// Aggregate is the decoded aggregate block for a table model T. Only the
// aggregates that were requested are non-nil. Min and Max decode into a
// partial T because they keep each column's own type; the rest are numeric
// by construction.
type Aggregate[T Model] struct {
	Count      *int     `json:"count,omitempty"`
	Min        *T       `json:"min,omitempty"`
	Max        *T       `json:"max,omitempty"`
	Avg        *Numeric `json:"avg,omitempty"`
	Sum        *Numeric `json:"sum,omitempty"`
	Stddev     *Numeric `json:"stddev,omitempty"`
	StddevPop  *Numeric `json:"stddev_pop,omitempty"`
	StddevSamp *Numeric `json:"stddev_samp,omitempty"`
	VarPop     *Numeric `json:"var_pop,omitempty"`
	VarSamp    *Numeric `json:"var_samp,omitempty"`
	Variance   *Numeric `json:"variance,omitempty"`
}

// AggregateResult pairs an aggregate block with the nodes selected next to
// it in the same round trip.
type AggregateResult[T Model] struct {
	Aggregate Aggregate[T] `json:"aggregate"`
	Nodes     []T          `json:"nodes,omitempty"`
}
