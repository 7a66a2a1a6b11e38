package watcher

import "github.com/genricoloni/nowplaying/internal/domain"

// Deduper remembers the last delivered MediaProps. It is owned by a single
// goroutine and has no lock. The first offer is always a change.
type Deduper struct {
	last   domain.MediaProps
	primed bool
}

// Changed reports whether p differs from the last committed value
func (d *Deduper) Changed(p domain.MediaProps) bool {
	return !d.primed || p != d.last
}

// Commit records p as delivered
func (d *Deduper) Commit(p domain.MediaProps) {
	d.last = p
	d.primed = true
}

// Last returns the last delivered value and whether one exists
func (d *Deduper) Last() (domain.MediaProps, bool) {
	return d.last, d.primed
}
