package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cheolwanpark/leadsignal/engine/internal/campaign"
	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"github.com/cheolwanpark/leadsignal/engine/internal/pollengine"
	"github.com/cheolwanpark/leadsignal/engine/internal/scheduler"
	"github.com/go-chi/chi/v5"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	db        *db.DB
	campaigns *campaign.Service
	engine    *pollengine.Engine
	scheduler *scheduler.Scheduler
}

// NewHandler creates a new Handler.
func NewHandler(database *db.DB, campaigns *campaign.Service, engine *pollengine.Engine, sched *scheduler.Scheduler) *Handler {
	return &Handler{db: database, campaigns: campaigns, engine: engine, scheduler: sched}
}

// CreateCampaign handles POST /campaigns.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing or invalid session")
		return
	}

	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BusinessDescription == "" {
		respondError(w, http.StatusBadRequest, "business_description is required")
		return
	}
	if req.PollIntervalHours <= 0 {
		req.PollIntervalHours = 6
	}

	c, err := h.campaigns.Create(r.Context(), user, req.BusinessDescription, req.PollIntervalHours, req.CustomCommentPrompt, req.CustomDmPrompt)
	if err != nil {
		writeCampaignServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toCampaignResponse(c))
}

// ListCampaigns handles GET /campaigns.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing or invalid session")
		return
	}

	campaigns, err := h.db.ActiveCampaignsForUser(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list campaigns: %v", err))
		return
	}

	out := make([]CampaignResponse, len(campaigns))
	for i := range campaigns {
		out[i] = toCampaignResponse(&campaigns[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// GetCampaign handles GET /campaigns/{id}.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.db.GetCampaign(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "campaign not found")
		return
	}
	respondJSON(w, http.StatusOK, toCampaignResponse(c))
}

// SelectSubreddits handles POST /campaigns/{id}/subreddits.
func (h *Handler) SelectSubreddits(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing or invalid session")
		return
	}
	id := chi.URLParam(r, "id")

	var req SelectSubredditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	selection := make([]db.CampaignSubreddit, len(req.Subreddits))
	for i, name := range req.Subreddits {
		selection[i] = db.CampaignSubreddit{CampaignID: id, Name: name, Active: true}
	}

	if err := h.campaigns.SelectSubreddits(user, id, selection); err != nil {
		writeCampaignServiceError(w, err)
		return
	}

	c, err := h.db.GetCampaign(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to reload campaign: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, toCampaignResponse(c))
}

// PauseCampaign handles POST /campaigns/{id}/pause.
func (h *Handler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Pause)
}

// ResumeCampaign handles POST /campaigns/{id}/resume.
func (h *Handler) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Resume)
}

// DeleteCampaign handles DELETE /campaigns/{id}.
func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing or invalid session")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Delete(user, id); err != nil {
		writeCampaignServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(user *db.User, campaignID string) error) {
	user, ok := UserFromContext(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing or invalid session")
		return
	}
	id := chi.URLParam(r, "id")
	if err := fn(user, id); err != nil {
		writeCampaignServiceError(w, err)
		return
	}
	c, err := h.db.GetCampaign(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to reload campaign: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, toCampaignResponse(c))
}

// RunPollNow handles POST /campaigns/{id}/poll — a synchronous run-now.
func (h *Handler) RunPollNow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.engine.RunPoll(r.Context(), id, db.TriggerManual, nil)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("poll failed: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, toPollJobResponse(job))
}

// StreamPoll handles GET /campaigns/{id}/poll/stream — a server-sent-events
// view of RunPollStreaming's progress events.
func (h *Handler) StreamPoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := h.engine.RunPollStreaming(r.Context(), id, db.TriggerManual)
	for ev := range events {
		payload, err := json.Marshal(toStreamEvent(ev))
		if err != nil {
			slog.Error("failed to marshal poll event", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		if ev.Done {
			break
		}
	}
}

// streamEvent is the JSON-safe projection of pollengine.Event — error
// values don't marshal meaningfully, so they're flattened to strings.
type streamEvent struct {
	Phase          string             `json:"phase,omitempty"`
	Subreddit      string             `json:"subreddit,omitempty"`
	SubredditAdded int                `json:"subreddit_added,omitempty"`
	SubredditErr   string             `json:"subreddit_error,omitempty"`
	BatchesDone    int                `json:"batches_done,omitempty"`
	BatchesTotal   int                `json:"batches_total,omitempty"`
	Lead           *LeadResponse      `json:"lead,omitempty"`
	Stats          *pollengine.PollStats `json:"stats,omitempty"`
	Done           bool               `json:"done"`
	Job            *PollJobResponse   `json:"job,omitempty"`
	Err            string             `json:"error,omitempty"`
}

func toStreamEvent(ev pollengine.Event) streamEvent {
	out := streamEvent{
		Phase: ev.Phase, Subreddit: ev.Subreddit, SubredditAdded: ev.SubredditAdded,
		BatchesDone: ev.BatchesDone, BatchesTotal: ev.BatchesTotal, Done: ev.Done,
	}
	if ev.SubredditErr != nil {
		out.SubredditErr = ev.SubredditErr.Error()
	}
	if ev.Err != nil {
		out.Err = ev.Err.Error()
	}
	if ev.Lead != nil {
		resp := toLeadResponse(ev.Lead)
		out.Lead = &resp
	}
	if ev.Stats != nil {
		out.Stats = ev.Stats
	}
	if ev.Job != nil {
		resp := toPollJobResponse(ev.Job)
		out.Job = &resp
	}
	return out
}

// ListLeads handles GET /campaigns/{id}/leads.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", 50)

	leads, err := h.db.LeadsForCampaign(id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list leads: %v", err))
		return
	}

	out := make([]LeadResponse, len(leads))
	for i := range leads {
		out[i] = toLeadResponse(&leads[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// GetLead handles GET /campaigns/{id}/leads/{leadId}. When the lead has no
// suggestions yet, it generates them on demand instead of waiting for the
// next scheduled poll's batch suggestion phase.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadId")

	lead, err := h.engine.SuggestForLead(r.Context(), leadID)
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("lead not found: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, toLeadResponse(lead))
}

// ListPollJobs handles GET /campaigns/{id}/poll-jobs.
func (h *Handler) ListPollJobs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", 20)

	jobs, err := h.db.PollJobsForCampaign(id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list poll jobs: %v", err))
		return
	}

	out := make([]PollJobResponse, len(jobs))
	for i := range jobs {
		out[i] = toPollJobResponse(&jobs[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// TriggerSweep handles POST /admin/sweep — an ops escape hatch that runs an
// immediate out-of-band sweep instead of waiting for the hourly cron tick.
// Single-flight: a sweep already in progress rejects the request.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.RunNow(); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "sweep started"})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func respondJSON(w http.ResponseWriter, code int, body any) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, code int, message string) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func writeCampaignServiceError(w http.ResponseWriter, err error) {
	var limitErr *campaign.LimitError
	switch {
	case errors.Is(err, campaign.ErrNotAuthorized):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &limitErr):
		respondJSON(w, http.StatusPaymentRequired, LimitErrorResponse{
			Error:       err.Error(),
			Limit:       limitErr.Limit,
			CurrentPlan: string(limitErr.CurrentPlan),
			UpgradeTo:   string(limitErr.UpgradeTo),
		})
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
