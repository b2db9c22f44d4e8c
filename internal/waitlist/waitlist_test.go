package waitlist

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rsvp/internal/models"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func rsvp(id string, offset int) models.RSVP {
	r := models.RSVP{}
	r.ID = id
	r.CreatedAt = base.Add(time.Duration(offset) * time.Second)
	return r
}

func flags(rsvps []models.RSVP) map[string]bool {
	out := make(map[string]bool, len(rsvps))
	for _, r := range rsvps {
		out[r.ID] = r.Waitlisted
	}
	return out
}

func ids(rsvps []models.RSVP) []string {
	out := make([]string, 0, len(rsvps))
	for _, r := range rsvps {
		out = append(out, r.ID)
	}
	return out
}

func TestRecomputeScenario(t *testing.T) {
	rsvps := []models.RSVP{rsvp("R1", 1), rsvp("R2", 2), rsvp("R3", 3)}

	res := Recompute(rsvps, 2)
	require.Equal(t, map[string]bool{"R1": false, "R2": false, "R3": true}, flags(rsvps))
	require.Equal(t, 2, res.Active)
	require.Equal(t, 1, res.Waitlisted)
	require.Equal(t, []string{"R3"}, res.Demoted)
	require.Empty(t, res.Promoted)

	rsvps[0].Cancelled = true
	res = Recompute(rsvps, 2)
	require.False(t, rsvps[1].Waitlisted)
	require.False(t, rsvps[2].Waitlisted)
	require.Equal(t, []string{"R3"}, res.Promoted)
	require.Empty(t, res.Demoted)
	require.Equal(t, []string{"R2", "R3"}, ids(Active(rsvps)))
	require.Empty(t, Waitlisted(rsvps))
}

func TestRecomputeIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		rsvps := randomRSVPs(rng, 1+rng.Intn(20))
		limit := rng.Intn(8)

		Recompute(rsvps, limit)
		first := flags(rsvps)

		res := Recompute(rsvps, limit)
		require.Equal(t, first, flags(rsvps))
		require.False(t, res.Changed(), "second pass must not move anyone")
	}
}

func TestRecomputeCapacityInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 100; trial++ {
		rsvps := randomRSVPs(rng, rng.Intn(25))
		limit := 1 + rng.Intn(6)

		res := Recompute(rsvps, limit)
		active := Active(rsvps)
		require.LessOrEqual(t, len(active), limit)
		require.Equal(t, len(active), res.Active)

		nonCancelled := NonCancelled(rsvps)
		if len(nonCancelled) >= limit {
			require.Len(t, active, limit)
		}
		require.Equal(t, len(nonCancelled)-len(active), res.Waitlisted)
	}
}

func TestRecomputeUnlimited(t *testing.T) {
	rsvps := make([]models.RSVP, 0, 30)
	for i := 0; i < 30; i++ {
		r := rsvp(fmt.Sprintf("r%d", i), i)
		r.Waitlisted = i%2 == 0
		rsvps = append(rsvps, r)
	}

	res := Recompute(rsvps, 0)
	for _, r := range rsvps {
		require.False(t, r.Waitlisted, r.ID)
	}
	require.Equal(t, 30, res.Active)
	require.Len(t, res.Promoted, 15)
}

func TestRecomputeNegativeLimitIsUnlimited(t *testing.T) {
	rsvps := []models.RSVP{rsvp("a", 1), rsvp("b", 2)}
	rsvps[1].Waitlisted = true

	Recompute(rsvps, -3)
	require.False(t, rsvps[0].Waitlisted)
	require.False(t, rsvps[1].Waitlisted)
}

func TestRecomputeOrdersByCreationTime(t *testing.T) {
	rsvps := []models.RSVP{rsvp("e", 5), rsvp("b", 2), rsvp("d", 4), rsvp("a", 1), rsvp("c", 3)}
	// stale flags must not influence the new ordering
	rsvps[3].Waitlisted = true
	rsvps[0].Waitlisted = false

	Recompute(rsvps, 3)
	require.Equal(t, map[string]bool{"a": false, "b": false, "c": false, "d": true, "e": true}, flags(rsvps))
	require.Equal(t, []string{"a", "b", "c"}, ids(Active(rsvps)))
	require.Equal(t, []string{"d", "e"}, ids(Waitlisted(rsvps)))
}

func TestRecomputeIgnoresInputOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	rsvps := make([]models.RSVP, 0, 12)
	for i := 0; i < 12; i++ {
		rsvps = append(rsvps, rsvp(fmt.Sprintf("r%02d", i), i))
	}
	rsvps[4].Cancelled = true

	Recompute(rsvps, 5)
	want := flags(rsvps)

	for trial := 0; trial < 20; trial++ {
		shuffled := append([]models.RSVP(nil), rsvps...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		Recompute(shuffled, 5)
		require.Equal(t, want, flags(shuffled))
	}
}

func TestRecomputeStableForEqualTimestamps(t *testing.T) {
	rsvps := []models.RSVP{rsvp("first", 0), rsvp("second", 0), rsvp("third", 0)}

	Recompute(rsvps, 2)
	require.Equal(t, map[string]bool{"first": false, "second": false, "third": true}, flags(rsvps))

	for i := 0; i < 5; i++ {
		Recompute(rsvps, 2)
		require.True(t, rsvps[2].Waitlisted)
	}
}

func TestRecomputeLeavesCancelledUntouched(t *testing.T) {
	rsvps := []models.RSVP{rsvp("gone", 0), rsvp("gone-too", 1), rsvp("a", 2), rsvp("b", 3)}
	rsvps[0].Cancelled, rsvps[0].Waitlisted = true, true
	rsvps[1].Cancelled, rsvps[1].Waitlisted = true, false

	res := Recompute(rsvps, 1)
	require.True(t, rsvps[0].Waitlisted)
	require.False(t, rsvps[1].Waitlisted)
	require.False(t, rsvps[2].Waitlisted)
	require.True(t, rsvps[3].Waitlisted)

	require.Equal(t, 1, res.Active)
	require.Equal(t, 1, res.Waitlisted)
	require.Equal(t, []string{"a"}, ids(Active(rsvps)))
	require.Equal(t, []string{"b"}, ids(Waitlisted(rsvps)))
}

func TestRecomputePromotionOnCancellation(t *testing.T) {
	rsvps := []models.RSVP{rsvp("A", 1), rsvp("B", 2), rsvp("C", 3)}
	Recompute(rsvps, 2)
	require.True(t, rsvps[2].Waitlisted)

	rsvps[0].Cancelled = true
	res := Recompute(rsvps, 2)

	require.Equal(t, []string{"C"}, res.Promoted)
	require.Equal(t, []string{"B", "C"}, ids(Active(rsvps)))
	require.Equal(t, []string{"B", "C", "A"}, ids(All(rsvps)))
}

func TestRecomputeLimitDecreaseDemotesLatest(t *testing.T) {
	rsvps := []models.RSVP{rsvp("a", 1), rsvp("b", 2), rsvp("c", 3), rsvp("d", 4)}
	Recompute(rsvps, 0)

	res := Recompute(rsvps, 2)
	require.Equal(t, []string{"c", "d"}, res.Demoted)

	res = Recompute(rsvps, 3)
	require.Equal(t, []string{"c"}, res.Promoted)
}

func TestRecomputeEmpty(t *testing.T) {
	res := Recompute(nil, 3)
	require.Zero(t, res.Active)
	require.Zero(t, res.Waitlisted)
	require.False(t, res.Changed())
}

func TestViewsSortByCompositeKey(t *testing.T) {
	rsvps := []models.RSVP{rsvp("late-active", 5), rsvp("cancelled", 0), rsvp("waiting", 1), rsvp("early-active", 2)}
	rsvps[1].Cancelled = true
	rsvps[2].Waitlisted = true

	require.Equal(t, []string{"early-active", "late-active", "waiting", "cancelled"}, ids(All(rsvps)))
	require.Equal(t, []string{"early-active", "late-active", "waiting"}, ids(NonCancelled(rsvps)))
	require.Equal(t, []string{"early-active", "late-active"}, ids(Active(rsvps)))
	require.Equal(t, []string{"waiting"}, ids(Waitlisted(rsvps)))

	// views copy, they never reorder the input
	require.Equal(t, "late-active", rsvps[0].ID)
}

func TestLess(t *testing.T) {
	a, b := rsvp("a", 1), rsvp("b", 2)
	require.True(t, Less(&a, &b))
	require.False(t, Less(&b, &a))

	a.Waitlisted = true
	require.True(t, Less(&b, &a))

	b.Cancelled = true
	require.True(t, Less(&a, &b))
	require.False(t, Less(&a, &a))
}

func randomRSVPs(rng *rand.Rand, n int) []models.RSVP {
	out := make([]models.RSVP, 0, n)
	for i := 0; i < n; i++ {
		r := rsvp(fmt.Sprintf("r%d", i), rng.Intn(1000))
		r.Cancelled = rng.Intn(4) == 0
		r.Waitlisted = rng.Intn(2) == 0
		out = append(out, r)
	}
	return out
}
