package app

import (
	"testing"
	"time"

	"github.com/dkeye/Tandem/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefs(native, target string) domain.Preferences {
	return domain.Preferences{NativeLanguage: native, TargetLanguage: target}
}

type waiting map[domain.ParticipantID]domain.Preferences

func (w waiting) eligible(id domain.ParticipantID) (domain.Preferences, bool) {
	p, ok := w[id]
	return p, ok
}

func TestQueuePushIsUnique(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	pos, added := q.Push("a", now)
	assert.Equal(t, 1, pos)
	assert.True(t, added)

	pos, added = q.Push("b", now)
	assert.Equal(t, 2, pos)
	assert.True(t, added)

	pos, added = q.Push("a", now)
	assert.Equal(t, 1, pos)
	assert.False(t, added)
	assert.Equal(t, 2, q.Len())

	assert.True(t, q.Remove("a"))
	assert.False(t, q.Remove("a"))
	assert.Equal(t, 1, q.Position("b"))
	assert.False(t, q.Contains("a"))
}

func TestFindMatchPrecedence(t *testing.T) {
	now := time.Now()
	fallback := 30 * time.Second

	tests := []struct {
		name    string
		queue   []QueueEntry
		waiting waiting
		joiner  domain.Preferences
		want    domain.ParticipantID
		found   bool
	}{
		{
			name:    "complementary beats earlier shared target",
			queue:   []QueueEntry{{ID: "shared", JoinedAt: now}, {ID: "perfect", JoinedAt: now}},
			waiting: waiting{"shared": prefs("es", "en"), "perfect": prefs("en", "pt")},
			joiner:  prefs("pt", "en"),
			want:    "perfect",
			found:   true,
		},
		{
			name:    "shared target beats earlier aged",
			queue:   []QueueEntry{{ID: "aged", JoinedAt: now.Add(-time.Minute)}, {ID: "shared", JoinedAt: now}},
			waiting: waiting{"aged": prefs("fr", "de"), "shared": prefs("es", "en")},
			joiner:  prefs("pt", "en"),
			want:    "shared",
			found:   true,
		},
		{
			name:    "aged fallback",
			queue:   []QueueEntry{{ID: "fresh", JoinedAt: now}, {ID: "aged", JoinedAt: now.Add(-31 * time.Second)}},
			waiting: waiting{"fresh": prefs("fr", "de"), "aged": prefs("ja", "ko")},
			joiner:  prefs("pt", "en"),
			want:    "aged",
			found:   true,
		},
		{
			name:    "first shared target wins",
			queue:   []QueueEntry{{ID: "s1", JoinedAt: now}, {ID: "s2", JoinedAt: now}},
			waiting: waiting{"s1": prefs("es", "en"), "s2": prefs("fr", "en")},
			joiner:  prefs("pt", "en"),
			want:    "s1",
			found:   true,
		},
		{
			name:    "nothing compatible",
			queue:   []QueueEntry{{ID: "x", JoinedAt: now}},
			waiting: waiting{"x": prefs("fr", "de")},
			joiner:  prefs("pt", "en"),
			found:   false,
		},
		{
			name:    "ineligible complementary candidate is skipped",
			queue:   []QueueEntry{{ID: "gone", JoinedAt: now}, {ID: "shared", JoinedAt: now}},
			waiting: waiting{"shared": prefs("es", "en")},
			joiner:  prefs("pt", "en"),
			want:    "shared",
			found:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Queue{entries: append([]QueueEntry(nil), tt.queue...)}
			got, found := q.FindMatch("joiner", tt.joiner, now, fallback, tt.waiting.eligible)
			require.Equal(t, tt.found, found)
			if found {
				assert.Equal(t, tt.want, got.ID)
			}
		})
	}
}

func TestFindMatchCullsIneligibleEntries(t *testing.T) {
	now := time.Now()
	q := NewQueue()
	q.Push("gone", now)
	q.Push("joiner", now)
	q.Push("other", now)

	_, found := q.FindMatch("joiner", prefs("pt", "en"), now, 30*time.Second, waiting{"other": prefs("fr", "de")}.eligible)
	assert.False(t, found)
	assert.Equal(t, 2, q.Len())
	assert.False(t, q.Contains("gone"))
	assert.Equal(t, 1, q.Position("joiner"))
	assert.Equal(t, 2, q.Position("other"))
}

func TestFindMatchKeepsTailOnEarlyReturn(t *testing.T) {
	now := time.Now()
	q := NewQueue()
	q.Push("gone", now)
	q.Push("perfect", now)
	q.Push("tail1", now)
	q.Push("tail2", now)

	w := waiting{"perfect": prefs("en", "pt"), "tail1": prefs("fr", "de"), "tail2": prefs("fr", "de")}
	got, found := q.FindMatch("joiner", prefs("pt", "en"), now, 30*time.Second, w.eligible)
	require.True(t, found)
	assert.Equal(t, domain.ParticipantID("perfect"), got.ID)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 2, q.Position("tail1"))
	assert.Equal(t, 3, q.Position("tail2"))
}

func TestRemoveWaitingSince(t *testing.T) {
	now := time.Now()
	q := NewQueue()
	q.Push("old", now.Add(-3*time.Minute))
	q.Push("new", now)

	expired := q.RemoveWaitingSince(now.Add(-2 * time.Minute))
	require.Len(t, expired, 1)
	assert.Equal(t, domain.ParticipantID("old"), expired[0].ID)
	assert.Equal(t, 1, q.Position("new"))
}

func TestAgedPair(t *testing.T) {
	now := time.Now()
	fallback := 30 * time.Second
	w := waiting{"a": prefs("pt", "en"), "b": prefs("fr", "de")}

	q := NewQueue()
	q.Push("a", now.Add(-10*time.Second))
	q.Push("b", now)
	_, _, ok := q.AgedPair(now, fallback, w.eligible)
	assert.False(t, ok)

	q = NewQueue()
	q.Push("gone", now.Add(-time.Minute))
	q.Push("a", now.Add(-40*time.Second))
	q.Push("b", now)
	first, second, ok := q.AgedPair(now, fallback, w.eligible)
	require.True(t, ok)
	assert.Equal(t, domain.ParticipantID("a"), first.ID)
	assert.Equal(t, domain.ParticipantID("b"), second.ID)
	assert.False(t, q.Contains("gone"))
}
