package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/rsvp/internal/monitoring"
)

const defaultMaintenanceMaxAge = 25 * time.Hour

// Maintenance verifies that background jobs keep succeeding. A job failing
// twice in a row takes the probe down; a job that has not run within maxAge
// degrades it.
func Maintenance(tracker *monitoring.JobTracker, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		jobs := tracker.Snapshot()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no runs recorded"}
		}

		status := monitoring.StatusUp
		var problems []string
		now := time.Now()
		for _, job := range jobs {
			switch {
			case job.ConsecutiveFailures > 1:
				status = monitoring.StatusDown
				problems = append(problems, job.Job+": "+job.LastError)
			case job.ConsecutiveFailures == 1:
				if status == monitoring.StatusUp {
					status = monitoring.StatusDegraded
				}
				problems = append(problems, job.Job+": "+job.LastError)
			case now.Sub(job.LastRunAt) > maxAge:
				if status == monitoring.StatusUp {
					status = monitoring.StatusDegraded
				}
				problems = append(problems, job.Job+": last run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
	})
}
