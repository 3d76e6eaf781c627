package ledger

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

func item(id string) models.Item {
	return models.Item{ID: id, Title: "Title " + id, Artist: "Artist " + id}
}

func countPlaying(s Snapshot) int {
	n := 0
	for _, e := range append(s.Queue, s.History...) {
		if e.Status == models.Playing {
			n++
		}
	}
	return n
}

func TestLedger(t *testing.T) {
	t.Run("Enqueue", func(t *testing.T) {
		l := New()
		a := l.Enqueue(item("a"), models.Human, "", models.UpNext)
		b := l.Enqueue(item("b"), models.Automated, "because", models.Backup)

		if a.ID == "" || a.ID == b.ID {
			t.Fatalf("expected unique non-empty ids, got %q and %q", a.ID, b.ID)
		}
		if b.Rationale != "because" {
			t.Errorf("expected rationale to be kept, got %q", b.Rationale)
		}

		q := l.Queue()
		if len(q) != 2 || q[0].ID != a.ID || q[1].ID != b.ID {
			t.Fatalf("expected queue [a b], got %+v", q)
		}
		if len(l.History()) != 0 {
			t.Error("enqueue must not touch history")
		}
	})

	t.Run("Enqueue coerces non-queue status", func(t *testing.T) {
		l := New()
		e := l.Enqueue(item("a"), models.Human, "", models.Playing)
		if e.Status != models.UpNext {
			t.Errorf("expected up_next, got %s", e.Status)
		}
	})

	t.Run("PromoteNext on empty queue", func(t *testing.T) {
		if got := New().PromoteNext(); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("PromoteNext ordering", func(t *testing.T) {
		tests := []struct {
			name    string
			enqueue []models.Status
			want    []int // indexes into enqueue, in promotion order
		}{
			{name: "up next only", enqueue: []models.Status{models.UpNext, models.UpNext}, want: []int{0, 1}},
			{name: "backup only", enqueue: []models.Status{models.Backup, models.Backup}, want: []int{0, 1}},
			{name: "up next beats older backup", enqueue: []models.Status{models.Backup, models.UpNext}, want: []int{1, 0}},
			{
				name:    "interleaved",
				enqueue: []models.Status{models.Backup, models.UpNext, models.Backup, models.UpNext},
				want:    []int{1, 3, 0, 2},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				l := New()
				ids := make([]string, len(tt.enqueue))
				for i, s := range tt.enqueue {
					ids[i] = l.Enqueue(item(fmt.Sprint(i)), models.Automated, "", s).ID
				}

				for _, idx := range tt.want {
					got := l.PromoteNext()
					if got == nil {
						t.Fatalf("expected entry %d, got nil", idx)
					}
					if got.ID != ids[idx] {
						t.Errorf("expected entry %d (%s), got %s", idx, ids[idx], got.ID)
					}
					if got.Status != models.Playing {
						t.Errorf("expected playing status, got %s", got.Status)
					}
				}

				if l.PromoteNext() != nil {
					t.Error("expected queue to be drained")
				}
			})
		}
	})

	t.Run("never two playing entries", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		l := New()
		statuses := []models.Status{models.UpNext, models.Backup}

		for i := 0; i < 500; i++ {
			switch rng.Intn(4) {
			case 0, 1:
				l.Enqueue(item(fmt.Sprint(i)), models.Automated, "", statuses[rng.Intn(2)])
			case 2:
				l.PromoteNext()
			case 3:
				h := l.History()
				if len(h) > 0 {
					l.UpdateCurrentlyPlayingByExternalID(h[rng.Intn(len(h))].Item.ID)
				}
			}

			if n := countPlaying(l.Snapshot()); n > 1 {
				t.Fatalf("step %d: %d entries playing", i, n)
			}
		}
	})

	t.Run("PromoteNext finishes the playing entry", func(t *testing.T) {
		l := New()
		l.Enqueue(item("a"), models.Human, "", models.UpNext)
		l.Enqueue(item("b"), models.Automated, "", models.UpNext)

		first := l.PromoteNext()
		l.PromoteNext()

		h := l.History()
		if h[0].ID != first.ID || h[0].Status != models.Played {
			t.Errorf("expected first entry played, got %+v", h[0])
		}
		if h[1].Status != models.Playing {
			t.Errorf("expected second entry playing, got %s", h[1].Status)
		}
	})

	t.Run("MarkCurrentPlayed", func(t *testing.T) {
		l := New()
		l.MarkCurrentPlayed()

		l.Enqueue(item("a"), models.Human, "", models.UpNext)
		l.PromoteNext()
		l.MarkCurrentPlayed()

		if l.Current() != nil {
			t.Error("expected no current entry")
		}
		if got := l.History()[0].Status; got != models.Played {
			t.Errorf("expected played, got %s", got)
		}
	})

	t.Run("UpdateCurrentlyPlayingByExternalID", func(t *testing.T) {
		l := New()
		l.Enqueue(item("a"), models.Human, "", models.UpNext)
		l.Enqueue(item("b"), models.Automated, "", models.UpNext)
		l.PromoteNext()
		l.PromoteNext()

		if !l.UpdateCurrentlyPlayingByExternalID("a") {
			t.Fatal("expected a to be found in history")
		}
		h := l.History()
		if h[0].Status != models.Playing || h[1].Status != models.Played {
			t.Errorf("expected a playing and b played, got %s and %s", h[0].Status, h[1].Status)
		}
		if cur := l.Current(); cur == nil || cur.Item.ID != "a" {
			t.Errorf("expected current a, got %+v", cur)
		}

		if !l.UpdateCurrentlyPlayingByExternalID("a") {
			t.Error("expected already-current id to be reported as found")
		}
		if l.UpdateCurrentlyPlayingByExternalID("zzz") {
			t.Error("expected unknown id to be reported as not found")
		}
		if cur := l.Current(); cur == nil || cur.Item.ID != "a" {
			t.Error("unknown id must not change the current entry")
		}
	})

	t.Run("RemoveBefore", func(t *testing.T) {
		l := New()
		l.Enqueue(item("a"), models.Automated, "", models.UpNext)
		l.Enqueue(item("b"), models.Automated, "", models.Backup)
		c := l.Enqueue(item("c"), models.Human, "", models.UpNext)

		if err := l.RemoveBefore(c.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		q := l.Queue()
		if len(q) != 1 || q[0].ID != c.ID {
			t.Errorf("expected queue [c], got %+v", q)
		}

		err := l.RemoveBefore("missing")
		if !errors.Is(err, shared.ErrEntryNotFound) {
			t.Errorf("expected ErrEntryNotFound, got %v", err)
		}
	})

	t.Run("ClearAutomatedEntries", func(t *testing.T) {
		l := New()
		l.Enqueue(item("a"), models.Automated, "", models.Backup)
		h := l.Enqueue(item("b"), models.Human, "", models.UpNext)
		l.Enqueue(item("c"), models.Automated, "", models.UpNext)

		if n := l.ClearAutomatedEntries(); n != 2 {
			t.Errorf("expected 2 removed, got %d", n)
		}
		q := l.Queue()
		if len(q) != 1 || q[0].ID != h.ID {
			t.Errorf("expected only the human entry to remain, got %+v", q)
		}
	})

	t.Run("HasBeenPlayed", func(t *testing.T) {
		l := New()
		l.Enqueue(models.Item{ID: "1", Title: "Hey Jude", Artist: "The Beatles"}, models.Human, "", models.UpNext)

		if l.HasBeenPlayed("The Beatles", "Hey Jude") {
			t.Error("queued entries are not history")
		}

		l.PromoteNext()
		tests := []struct {
			artist, title string
			want          bool
		}{
			{"The Beatles", "Hey Jude", true},
			{"the beatles", "HEY JUDE", true},
			{"  The Beatles ", "Hey Jude", true},
			{"The Beatles", "Let It Be", false},
			{"Beatles", "Hey Jude", false},
		}
		for _, tt := range tests {
			if got := l.HasBeenPlayed(tt.artist, tt.title); got != tt.want {
				t.Errorf("HasBeenPlayed(%q, %q) = %v, want %v", tt.artist, tt.title, got, tt.want)
			}
		}
	})

	t.Run("HumanContributions", func(t *testing.T) {
		l := New()
		l.Enqueue(item("a"), models.Automated, "", models.UpNext)
		if l.HumanContributions() != 0 {
			t.Error("automated entries must not bump the counter")
		}
		l.Enqueue(item("b"), models.Human, "", models.UpNext)
		l.Enqueue(item("c"), models.Human, "", models.UpNext)
		if got := l.HumanContributions(); got != 2 {
			t.Errorf("expected 2, got %d", got)
		}
	})

	t.Run("EnqueueUnlessPreempted", func(t *testing.T) {
		var notified int
		l := New(WithObserver(func(models.LedgerEntry) { notified++ }))
		seen := l.HumanContributions()

		if _, ok := l.EnqueueUnlessPreempted(item("a"), models.Automated, "", models.Backup, seen); !ok {
			t.Fatal("expected enqueue without human activity to succeed")
		}

		l.Enqueue(item("h"), models.Human, "", models.UpNext)
		if _, ok := l.EnqueueUnlessPreempted(item("b"), models.Automated, "", models.Backup, seen); ok {
			t.Fatal("expected enqueue after a human contribution to be refused")
		}

		if got := len(l.Queue()); got != 2 {
			t.Errorf("expected 2 queued entries, got %d", got)
		}
		if notified != 2 {
			t.Errorf("expected observers to see 2 entries, got %d", notified)
		}
	})

	t.Run("observer sees changes in order", func(t *testing.T) {
		var seen []models.Status
		l := New(WithObserver(func(e models.LedgerEntry) { seen = append(seen, e.Status) }))

		l.Enqueue(item("a"), models.Human, "", models.UpNext)
		l.Enqueue(item("b"), models.Automated, "", models.Backup)
		l.PromoteNext()
		l.PromoteNext()
		l.MarkCurrentPlayed()

		want := []models.Status{
			models.UpNext, models.Backup,
			models.Playing,
			models.Played, models.Playing,
			models.Played,
		}
		if len(seen) != len(want) {
			t.Fatalf("expected %d notifications, got %d: %v", len(want), len(seen), seen)
		}
		for i := range want {
			if seen[i] != want[i] {
				t.Errorf("notification %d: expected %s, got %s", i, want[i], seen[i])
			}
		}
	})

	t.Run("concurrent enqueue and promote", func(t *testing.T) {
		l := New()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				l.Enqueue(item(fmt.Sprint(i)), models.Human, "", models.UpNext)
			}(i)
			go func() {
				defer wg.Done()
				l.PromoteNext()
			}()
		}
		wg.Wait()

		s := l.Snapshot()
		if got := len(s.Queue) + len(s.History); got != 50 {
			t.Errorf("expected 50 entries in total, got %d", got)
		}
		if countPlaying(s) > 1 {
			t.Error("expected at most one playing entry")
		}
	})
}
