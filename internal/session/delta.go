package session

import "github.com/espenbo/sparkedge/internal/domain"

// Diff returns the subset of cur whose values changed relative to prev: a
// key is included iff it is absent from prev or differs under exact
// type-tagged equality. Keys present only in prev are not carried forward;
// the protocol has no delete. A nil or empty prev yields cur in full, which
// is what forces the first post-birth message to be a complete baseline.
func Diff(prev, cur *domain.Snapshot) *domain.Snapshot {
	out := domain.NewSnapshot()
	for _, name := range cur.Names() {
		cv, _ := cur.Get(name)
		if pv, ok := prev.Get(name); ok && pv.Equal(cv) {
			continue
		}
		out.Set(name, cv)
	}
	return out
}
