// Package waitlist decides which RSVPs of an event are attending and which
// are waiting for a free slot.
//
// The whole ordering is rebuilt from creation timestamps on every call, so
// promotion after a cancellation falls out of re-running Recompute over the
// updated list.
package waitlist

import (
	"sort"

	"github.com/charlesng35/rsvp/internal/models"
)

// Result summarises the flag transitions made by Recompute.
type Result struct {
	// Promoted holds IDs of RSVPs moved from the waitlist to attending.
	Promoted []string
	// Demoted holds IDs of RSVPs moved from attending to the waitlist.
	Demoted    []string
	Active     int
	Waitlisted int
}

// Changed reports whether any RSVP flipped state.
func (r Result) Changed() bool {
	return len(r.Promoted) > 0 || len(r.Demoted) > 0
}

// Recompute assigns the Waitlisted flag of every non-cancelled RSVP in place.
// The earliest limit RSVPs by CreatedAt attend and the rest wait. A limit of
// zero or less means unlimited. Cancelled RSVPs are not touched.
func Recompute(rsvps []models.RSVP, limit int) Result {
	order := make([]int, 0, len(rsvps))
	for i := range rsvps {
		if !rsvps[i].Cancelled {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rsvps[order[a]].CreatedAt.Before(rsvps[order[b]].CreatedAt)
	})

	var res Result
	for pos, idx := range order {
		r := &rsvps[idx]
		waitlisted := limit > 0 && pos >= limit
		switch {
		case r.Waitlisted && !waitlisted:
			res.Promoted = append(res.Promoted, r.ID)
		case !r.Waitlisted && waitlisted:
			res.Demoted = append(res.Demoted, r.ID)
		}
		r.Waitlisted = waitlisted
		if waitlisted {
			res.Waitlisted++
		} else {
			res.Active++
		}
	}
	return res
}

// Less orders RSVPs by (cancelled, waitlisted, created_at) ascending.
func Less(a, b *models.RSVP) bool {
	if a.Cancelled != b.Cancelled {
		return !a.Cancelled
	}
	if a.Waitlisted != b.Waitlisted {
		return !a.Waitlisted
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// All returns every RSVP sorted by Less.
func All(rsvps []models.RSVP) []models.RSVP {
	return filterSorted(rsvps, func(*models.RSVP) bool { return true })
}

// Active returns attending RSVPs sorted by Less.
func Active(rsvps []models.RSVP) []models.RSVP {
	return filterSorted(rsvps, func(r *models.RSVP) bool { return !r.Cancelled && !r.Waitlisted })
}

// NonCancelled returns attending and waitlisted RSVPs sorted by Less.
func NonCancelled(rsvps []models.RSVP) []models.RSVP {
	return filterSorted(rsvps, func(r *models.RSVP) bool { return !r.Cancelled })
}

// Waitlisted returns waiting RSVPs sorted by Less.
func Waitlisted(rsvps []models.RSVP) []models.RSVP {
	return filterSorted(rsvps, func(r *models.RSVP) bool { return !r.Cancelled && r.Waitlisted })
}

func filterSorted(rsvps []models.RSVP, keep func(*models.RSVP) bool) []models.RSVP {
	out := make([]models.RSVP, 0, len(rsvps))
	for i := range rsvps {
		if keep(&rsvps[i]) {
			out = append(out, rsvps[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Less(&out[i], &out[j])
	})
	return out
}
