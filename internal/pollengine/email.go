package pollengine

import (
	"fmt"
	"strings"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
)

// renderSummaryEmail builds the Phase 7 completion email: a score
// distribution bucketed as {90+, 80-89, 70-79, 60-69, 50-59} plus the top
// scored leads from this job, up to 10.
func renderSummaryEmail(job *db.PollJob, topLeads []db.Lead) (subject, body string) {
	buckets := map[string]int{"90+": 0, "80-89": 0, "70-79": 0, "60-69": 0, "50-59": 0}
	for _, l := range topLeads {
		if l.RelevancyScore == nil {
			continue
		}
		switch {
		case *l.RelevancyScore >= 90:
			buckets["90+"]++
		case *l.RelevancyScore >= 80:
			buckets["80-89"]++
		case *l.RelevancyScore >= 70:
			buckets["70-79"]++
		case *l.RelevancyScore >= 60:
			buckets["60-69"]++
		default:
			buckets["50-59"]++
		}
	}

	subject = fmt.Sprintf("%d new leads found", len(topLeads))

	var sb strings.Builder
	sb.WriteString("<h2>Poll complete</h2>")
	sb.WriteString(fmt.Sprintf("<p>%d leads found, %d scored.</p>", job.LeadsCreated, job.PostsScored))
	sb.WriteString("<ul>")
	for _, bucket := range []string{"90+", "80-89", "70-79", "60-69", "50-59"} {
		sb.WriteString(fmt.Sprintf("<li>%s: %d</li>", bucket, buckets[bucket]))
	}
	sb.WriteString("</ul><ol>")
	for _, l := range topLeads {
		score := 0
		if l.RelevancyScore != nil {
			score = *l.RelevancyScore
		}
		sb.WriteString(fmt.Sprintf("<li>[%d] r/%s: %s</li>", score, l.SubredditName, l.Title))
	}
	sb.WriteString("</ol>")

	return subject, sb.String()
}
