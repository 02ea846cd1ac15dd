package engine

// Queue accumulates entries during collection and is read-only afterwards.
// Totals update incrementally so the compression decision can be made the
// moment collection finishes.
type Queue struct {
	entries    []*Entry
	files      int
	dirs       int
	totalBytes int64
}

func NewQueue() *Queue { return &Queue{} }

// Append adds one entry and updates the running totals.
func (q *Queue) Append(e *Entry) {
	q.entries = append(q.entries, e)
	if e.IsDir {
		q.dirs++
		return
	}
	q.files++
	q.totalBytes += e.Size
}

// Entries returns the collected entries in collection order.
func (q *Queue) Entries() []*Entry { return q.entries }

// FileEntries returns only the regular-file entries, in collection order.
func (q *Queue) FileEntries() []*Entry {
	out := make([]*Entry, 0, q.files)
	for _, e := range q.entries {
		if !e.IsDir {
			out = append(out, e)
		}
	}
	return out
}

func (q *Queue) Len() int          { return len(q.entries) }
func (q *Queue) Files() int        { return q.files }
func (q *Queue) Dirs() int         { return q.dirs }
func (q *Queue) TotalBytes() int64 { return q.totalBytes }

// Large returns the pool candidates: regular files at or above threshold,
// in collection order, along with their aggregate size.
func (q *Queue) Large(threshold int64) ([]*Entry, int64) {
	var out []*Entry
	var total int64
	for _, e := range q.entries {
		if !e.IsDir && e.Size >= threshold {
			out = append(out, e)
			total += e.Size
		}
	}
	return out, total
}
