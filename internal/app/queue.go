package app

import (
	"slices"
	"time"

	"github.com/dkeye/Tandem/internal/domain"
)

type QueueEntry struct {
	ID       domain.ParticipantID
	JoinedAt time.Time
}

// Queue is the ordered waiting list. A participant appears at most once.
type Queue struct {
	entries []QueueEntry
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) Len() int { return len(q.entries) }

// Position is 1-based; 0 means not queued.
func (q *Queue) Position(id domain.ParticipantID) int {
	for i, e := range q.entries {
		if e.ID == id {
			return i + 1
		}
	}
	return 0
}

func (q *Queue) Contains(id domain.ParticipantID) bool { return q.Position(id) > 0 }

// Push appends id unless it is already waiting and returns its position.
func (q *Queue) Push(id domain.ParticipantID, now time.Time) (position int, added bool) {
	if pos := q.Position(id); pos > 0 {
		return pos, false
	}
	q.entries = append(q.entries, QueueEntry{ID: id, JoinedAt: now})
	return len(q.entries), true
}

func (q *Queue) Remove(id domain.ParticipantID) bool {
	i := slices.IndexFunc(q.entries, func(e QueueEntry) bool { return e.ID == id })
	if i < 0 {
		return false
	}
	q.entries = slices.Delete(q.entries, i, i+1)
	return true
}

// RemoveWaitingSince drops and returns the entries that joined before cutoff.
func (q *Queue) RemoveWaitingSince(cutoff time.Time) []QueueEntry {
	var expired []QueueEntry
	q.entries = slices.DeleteFunc(q.entries, func(e QueueEntry) bool {
		if e.JoinedAt.Before(cutoff) {
			expired = append(expired, e)
			return true
		}
		return false
	})
	return expired
}

// Eligibility reports a waiting participant's preferences, or false when it can no
// longer be matched (gone, connection closed or already paired).
type Eligibility func(id domain.ParticipantID) (domain.Preferences, bool)

// FindMatch scans the queue once, in order, for the best partner for joiner.
// The first complementary candidate wins, then the first with the same target
// language, then the first that has waited longer than fallbackAfter.
// Ineligible entries met during the scan are removed.
func (q *Queue) FindMatch(
	joiner domain.ParticipantID,
	prefs domain.Preferences,
	now time.Time,
	fallbackAfter time.Duration,
	eligible Eligibility,
) (QueueEntry, bool) {
	var (
		shared, aged       QueueEntry
		hasShared, hasAged bool
	)
	kept := q.entries[:0]
	defer func() { q.entries = kept }()

	for i, e := range q.entries {
		if e.ID == joiner {
			kept = append(kept, e)
			continue
		}
		theirs, ok := eligible(e.ID)
		if !ok {
			continue
		}
		kept = append(kept, e)

		if prefs.IsComplementary(theirs) {
			// keep the unscanned tail
			kept = append(kept, q.entries[i+1:]...)
			return e, true
		}
		if !hasShared && prefs.SharesTarget(theirs) {
			shared, hasShared = e, true
		}
		if !hasAged && now.Sub(e.JoinedAt) > fallbackAfter {
			aged, hasAged = e, true
		}
	}

	switch {
	case hasShared:
		return shared, true
	case hasAged:
		return aged, true
	}
	return QueueEntry{}, false
}

// AgedPair returns the oldest eligible entry that has waited past fallbackAfter
// together with the next eligible entry behind it. Ineligible entries are removed.
func (q *Queue) AgedPair(now time.Time, fallbackAfter time.Duration, eligible Eligibility) (first, second QueueEntry, ok bool) {
	q.entries = slices.DeleteFunc(q.entries, func(e QueueEntry) bool {
		_, alive := eligible(e.ID)
		return !alive
	})
	if len(q.entries) < 2 || now.Sub(q.entries[0].JoinedAt) <= fallbackAfter {
		return QueueEntry{}, QueueEntry{}, false
	}
	return q.entries[0], q.entries[1], true
}
