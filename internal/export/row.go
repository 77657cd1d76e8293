package export

// Row is an insertion-ordered set of column/value pairs, one per
// respondent. Different respondents may carry different key sets until
// UnionColumns reconciles the batch.
type Row struct {
	keys   []string
	values map[string]string
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]string)}
}

// Set stores a value, remembering the key's first-seen position.
func (r *Row) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key, empty string for absent cells so every
// reconciled row reads rectangular.
func (r *Row) Get(key string) string {
	return r.values[key]
}

// Has reports whether the row carries the key at all.
func (r *Row) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns the row's columns in insertion order.
func (r *Row) Keys() []string {
	return r.keys
}

// UnionColumns reconciles the key sets of a batch into one ordered union:
// first-seen order across rows, so respondents who hit extra probing
// questions extend the tail instead of reshuffling.
func UnionColumns(rows []*Row) []string {
	var union []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, k := range row.keys {
			if !seen[k] {
				seen[k] = true
				union = append(union, k)
			}
		}
	}
	return union
}
