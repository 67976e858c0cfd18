package domain

// ActionCounts maps each action kind to its non-negative total.
type ActionCounts map[ActionKind]int64

// NewActionCounts returns counts with every known kind set to zero.
func NewActionCounts() ActionCounts {
	c := make(ActionCounts, len(ActionKinds))
	for _, k := range ActionKinds {
		c[k] = 0
	}
	return c
}

// Clone returns an independent copy.
func (c ActionCounts) Clone() ActionCounts {
	out := make(ActionCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Total sums all kinds.
func (c ActionCounts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}
