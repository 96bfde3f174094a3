package live

import (
	"sort"
	"time"
)

// InsertOutcome says what ApplyInsert did with a feed row.
type InsertOutcome int

const (
	// Inserted means the row was new and was placed at its sorted position.
	Inserted InsertOutcome = iota + 1
	// Promoted means the row confirmed a pending provisional row and replaced it in place.
	Promoted
	// Duplicate means a row with the same durable id was already present.
	Duplicate
	// Orphaned means the row confirmed a provisional row the user had
	// already deleted. It is not displayed.
	Orphaned
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Promoted:
		return "promoted"
	case Duplicate:
		return "duplicate"
	case Orphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// OrphanClockSkew is how much earlier than its provisional row a feed row
// may be stamped and still be taken as that row's echo. Provisional times
// come from the client clock and durable ones from the store.
const OrphanClockSkew = 30 * time.Second

// orphan is a provisional row deleted locally before its insert was echoed.
// While the insert is in flight expires is zero; once the store accepts
// it the orphan is kept only until expires.
type orphan struct {
	row     Bookmark
	expires time.Time
}

func (o orphan) matches(row Bookmark) bool {
	return sameContent(o.row, row) &&
		!row.CreatedAt.Before(o.row.CreatedAt.Add(-OrphanClockSkew))
}

// State is the reconciliation state machine. It is not safe for concurrent
// use; Engine confines it to a single goroutine.
//
// Invariants: items holds no two rows with the same id, every provisional id
// in items is a key of pending and vice versa, and items is ordered newest
// first.
type State struct {
	items   []Bookmark
	pending map[string]*Mutation
	// orphans are provisional rows deleted locally while their insert was
	// still in flight, oldest first.
	orphans []orphan
}

// NewState seeds the state with a snapshot and no pending mutations.
func NewState(seed []Bookmark) *State {
	items := make([]Bookmark, 0, len(seed))
	seen := make(map[string]struct{}, len(seed))
	for _, b := range seed {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		items = append(items, b)
	}
	sortNewestFirst(items)
	return &State{
		items:   items,
		pending: make(map[string]*Mutation),
	}
}

// Items returns a copy of the rendered list.
func (s *State) Items() []Bookmark {
	out := make([]Bookmark, len(s.items))
	copy(out, s.items)
	return out
}

// PendingIDs returns the provisional ids awaiting confirmation, sorted.
func (s *State) PendingIDs() []string {
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *State) pendingMutation(id string) (*Mutation, bool) {
	m, ok := s.pending[id]
	return m, ok
}

func (s *State) index(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether id is currently rendered.
func (s *State) Contains(id string) bool {
	return s.index(id) >= 0
}

// AddProvisional puts a locally created row at the head of the list.
func (s *State) AddProvisional(b Bookmark, m *Mutation) {
	s.items = append([]Bookmark{b}, s.items...)
	s.pending[b.ID] = m
}

// Rollback removes a provisional row whose insert failed. It returns false
// when the row is no longer pending (already promoted or deleted).
func (s *State) Rollback(id string) bool {
	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	if i := s.index(id); i >= 0 {
		s.removeAt(i)
	}
	return true
}

// RemoveLocal removes a row on a local delete. A provisional row leaves
// pending too and is remembered as an orphan until its insert resolves.
func (s *State) RemoveLocal(id string) (b Bookmark, provisional, found bool) {
	i := s.index(id)
	if i < 0 {
		return Bookmark{}, false, false
	}
	b = s.items[i]
	s.removeAt(i)
	if _, ok := s.pending[id]; ok {
		delete(s.pending, id)
		s.orphans = append(s.orphans, orphan{row: b})
		return b, true, true
	}
	return b, false, true
}

// DropOrphan forgets an orphan whose insert failed or was never confirmed.
func (s *State) DropOrphan(id string) bool {
	for i := range s.orphans {
		if s.orphans[i].row.ID == id {
			s.orphans = append(s.orphans[:i], s.orphans[i+1:]...)
			return true
		}
	}
	return false
}

// ConfirmOrphan records that the insert behind orphan id succeeded. The
// orphan then waits for its feed echo until expires. It returns false when
// id is not an orphan, which is the usual case: the row was not deleted, or
// its echo already arrived.
func (s *State) ConfirmOrphan(id string, expires time.Time) bool {
	for i := range s.orphans {
		if s.orphans[i].row.ID == id {
			s.orphans[i].expires = expires
			return true
		}
	}
	return false
}

// ExpireOrphans forgets confirmed orphans whose echo is overdue at now and
// returns how many it dropped. Orphans still in flight are kept.
func (s *State) ExpireOrphans(now time.Time) int {
	kept := s.orphans[:0]
	for _, o := range s.orphans {
		if !o.expires.IsZero() && now.After(o.expires) {
			continue
		}
		kept = append(kept, o)
	}
	dropped := len(s.orphans) - len(kept)
	s.orphans = kept
	return dropped
}

func (s *State) orphanCount() int {
	return len(s.orphans)
}

// ApplyInsert applies a feed insert. When the row promotes a provisional
// row, replaced is the provisional id that left pending. A row matching a
// live orphan and stamped no earlier than it (less OrphanClockSkew) is that
// orphan's echo and is not displayed; callers drop overdue orphans with
// ExpireOrphans first.
func (s *State) ApplyInsert(row Bookmark) (outcome InsertOutcome, replaced string) {
	if s.index(row.ID) >= 0 {
		return Duplicate, ""
	}

	// Items are newest first, so the first match is the most recent one.
	for i := range s.items {
		cand := s.items[i]
		if _, ok := s.pending[cand.ID]; !ok || !sameContent(cand, row) {
			continue
		}
		s.items[i] = row
		delete(s.pending, cand.ID)
		return Promoted, cand.ID
	}

	for i := len(s.orphans) - 1; i >= 0; i-- {
		if s.orphans[i].matches(row) {
			replaced = s.orphans[i].row.ID
			s.orphans = append(s.orphans[:i], s.orphans[i+1:]...)
			return Orphaned, replaced
		}
	}

	s.insertSorted(row)
	return Inserted, ""
}

// ApplyDelete applies a feed delete. It reports whether a row was removed.
func (s *State) ApplyDelete(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	if _, ok := s.pending[id]; ok {
		// Feed deletes carry durable ids; a provisional id here is never
		// from the store.
		return false
	}
	s.removeAt(i)
	return true
}

// insertSorted places row before the first row that is not newer, so an
// arrival ties ahead of existing rows with the same timestamp.
func (s *State) insertSorted(row Bookmark) {
	i := sort.Search(len(s.items), func(i int) bool {
		return !s.items[i].CreatedAt.After(row.CreatedAt)
	})
	s.items = append(s.items, Bookmark{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = row
}

func (s *State) removeAt(i int) {
	s.items = append(s.items[:i], s.items[i+1:]...)
}
