package api

import (
	"net/http"

	"github.com/cheolwanpark/leadsignal/engine/internal/campaign"
	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"github.com/cheolwanpark/leadsignal/engine/internal/pollengine"
	"github.com/cheolwanpark/leadsignal/engine/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRouter creates and configures the HTTP router.
func SetupRouter(database *db.DB, campaigns *campaign.Service, engine *pollengine.Engine, sched *scheduler.Scheduler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(Logger)
	r.Use(ContentType)
	r.Use(IdentityContext(database))

	h := NewHandler(database, campaigns, engine, sched)

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", h.CreateCampaign)
		r.Get("/", h.ListCampaigns)
		r.Get("/{id}", h.GetCampaign)
		r.Post("/{id}/subreddits", h.SelectSubreddits)
		r.Post("/{id}/pause", h.PauseCampaign)
		r.Post("/{id}/resume", h.ResumeCampaign)
		r.Delete("/{id}", h.DeleteCampaign)
		r.Post("/{id}/poll", h.RunPollNow)
		r.Get("/{id}/poll/stream", h.StreamPoll)
		r.Get("/{id}/leads", h.ListLeads)
		r.Get("/{id}/leads/{leadId}", h.GetLead)
		r.Get("/{id}/poll-jobs", h.ListPollJobs)
	})

	r.Get("/health", h.Health)
	r.Post("/admin/sweep", h.TriggerSweep)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})

	return r
}
