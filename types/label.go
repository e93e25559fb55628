package types

// DataLabel is an interned taint/trust tag attached to values (spec.md
// §3: "secret", "untrusted", "pii", or user-defined). Labels propagate
// through every derivation and are monotone: see spec.md §13 decision 4
// and invariant 1 in §8 — no operation may make a label set shrink
// except the explicit guard-authored replacement value constructed by
// `allow @transformed`.
type DataLabel string

const (
	LabelSecret    DataLabel = "secret"
	LabelUntrusted DataLabel = "untrusted"
	LabelPII       DataLabel = "pii"
)

// LabelSet is an ordered, deduplicated set of DataLabels. Order is
// preserved by first-insertion so that error messages and guard traces
// are deterministic across runs with the same input.
type LabelSet struct {
	order []DataLabel
	has   map[DataLabel]bool
}

// NewLabelSet builds a LabelSet from the given labels, in order,
// deduplicating repeats.
func NewLabelSet(labels ...DataLabel) LabelSet {
	ls := LabelSet{has: map[DataLabel]bool{}}
	for _, l := range labels {
		ls.Add(l)
	}
	return ls
}

// Add inserts a label if not already present.
func (ls *LabelSet) Add(l DataLabel) {
	if ls.has == nil {
		ls.has = map[DataLabel]bool{}
	}
	if ls.has[l] {
		return
	}
	ls.has[l] = true
	ls.order = append(ls.order, l)
}

// Has reports whether l is a member.
func (ls LabelSet) Has(l DataLabel) bool {
	return ls.has != nil && ls.has[l]
}

// Empty reports whether the set carries no labels.
func (ls LabelSet) Empty() bool {
	return len(ls.order) == 0
}

// List returns labels in insertion order. Callers must not mutate it.
func (ls LabelSet) List() []DataLabel {
	return ls.order
}

// Union returns a new LabelSet containing every label from ls and all
// of others, in the order spec.md §4.2 requires: "the result's
// `.mx.labels` is the union of all input label sets."
func Union(sets ...LabelSet) LabelSet {
	out := LabelSet{has: map[DataLabel]bool{}}
	for _, s := range sets {
		for _, l := range s.order {
			out.Add(l)
		}
	}
	return out
}

// Clone returns an independent copy.
func (ls LabelSet) Clone() LabelSet {
	out := LabelSet{has: make(map[DataLabel]bool, len(ls.has)), order: append([]DataLabel(nil), ls.order...)}
	for k, v := range ls.has {
		out.has[k] = v
	}
	return out
}
