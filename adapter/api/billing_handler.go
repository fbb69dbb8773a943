package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// RunBillingRequest is the body of POST /api/v1/billing/runs. An empty body
// bills as of today.
type RunBillingRequest struct {
	AsOf  string `json:"as_of,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// runBilling handles POST /api/v1/billing/runs
func (s *Server) runBilling(w http.ResponseWriter, r *http.Request) {
	var req RunBillingRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	cmd := commands.RunBillingCycleCommand{AsOf: time.Now().UTC(), Limit: req.Limit}
	if req.AsOf != "" {
		asOf, err := domain.ParseDate(req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of, use YYYY-MM-DD")
			return
		}
		cmd.AsOf = asOf
	}

	result, err := s.handlers.RunBillingCycle.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// listFailures handles GET /api/v1/billing/failures
func (s *Server) listFailures(w http.ResponseWriter, r *http.Request) {
	query := queries.ListBillingFailuresQuery{
		Actor: actorFromContext(r.Context()),
		Since: time.Now().UTC().AddDate(0, 0, -7),
		Limit: parseIntParam(r, "limit", 100),
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := domain.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since, use YYYY-MM-DD")
			return
		}
		query.Since = since
	}

	failures, err := s.handlers.ListBillingFailures.Handle(r.Context(), query)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": failures, "count": len(failures)})
}
