package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// CreateSubscriptionRequest is the body of POST /api/v1/subscriptions.
type CreateSubscriptionRequest struct {
	UserID            string `json:"user_id,omitempty"`
	ProductID         string `json:"product_id"`
	Frequency         string `json:"frequency"`
	Weekdays          string `json:"weekdays,omitempty"`
	Quantity          int    `json:"quantity"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency,omitempty"`
	StartDate         string `json:"start_date"`
	FirstDeliveryDate string `json:"first_delivery_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
}

// ChangeScheduleRequest is the body of PUT /api/v1/subscriptions/{id}/schedule.
type ChangeScheduleRequest struct {
	Frequency string `json:"frequency"`
	Weekdays  string `json:"weekdays,omitempty"`
}

// CancelSubscriptionRequest is the optional body of POST .../cancel.
type CancelSubscriptionRequest struct {
	Reason string `json:"reason,omitempty"`
}

var errBadRequest = errors.New("bad request")

// createSubscription handles POST /api/v1/subscriptions
func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cmd := commands.CreateSubscriptionCommand{
		Actor:     actorFromContext(r.Context()),
		Frequency: req.Frequency,
		Quantity:  req.Quantity,
		Amount:    req.Amount,
		Currency:  req.Currency,
	}
	var err error
	if req.UserID != "" {
		if cmd.UserID, err = uuid.Parse(req.UserID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
	}
	if cmd.ProductID, err = uuid.Parse(req.ProductID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid product_id")
		return
	}
	if cmd.Weekdays, err = domain.ParseWeekdays(req.Weekdays); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if cmd.StartDate, err = domain.ParseDate(req.StartDate); err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date, use YYYY-MM-DD")
		return
	}
	if cmd.FirstDeliveryDate, err = parseOptionalDate(req.FirstDeliveryDate); err != nil {
		writeError(w, http.StatusBadRequest, "invalid first_delivery_date, use YYYY-MM-DD")
		return
	}
	if cmd.EndDate, err = parseOptionalDate(req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date, use YYYY-MM-DD")
		return
	}

	dto, err := s.handlers.CreateSubscription.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// listSubscriptions handles GET /api/v1/subscriptions
func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	query := queries.ListSubscriptionsQuery{Actor: actorFromContext(r.Context())}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		query.UserID = id
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		query.Status = &status
	}

	subs, err := s.handlers.ListSubscriptions.Handle(r.Context(), query)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": subs, "count": len(subs)})
}

// getSubscription handles GET /api/v1/subscriptions/{id}
func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	dto, err := s.handlers.GetSubscription.Handle(r.Context(), queries.GetSubscriptionQuery{
		SubscriptionID: id,
		Actor:          actorFromContext(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) pauseSubscription(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(id uuid.UUID, actor domain.Actor) (*queries.SubscriptionDTO, error) {
		return s.handlers.PauseSubscription.Handle(r.Context(), commands.PauseSubscriptionCommand{SubscriptionID: id, Actor: actor})
	})
}

func (s *Server) resumeSubscription(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(id uuid.UUID, actor domain.Actor) (*queries.SubscriptionDTO, error) {
		return s.handlers.ResumeSubscription.Handle(r.Context(), commands.ResumeSubscriptionCommand{SubscriptionID: id, Actor: actor})
	})
}

func (s *Server) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req CancelSubscriptionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	s.transition(w, r, func(id uuid.UUID, actor domain.Actor) (*queries.SubscriptionDTO, error) {
		return s.handlers.CancelSubscription.Handle(r.Context(), commands.CancelSubscriptionCommand{
			SubscriptionID: id,
			Actor:          actor,
			Reason:         req.Reason,
		})
	})
}

func (s *Server) skipDelivery(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(id uuid.UUID, actor domain.Actor) (*queries.SubscriptionDTO, error) {
		return s.handlers.SkipDelivery.Handle(r.Context(), commands.SkipDeliveryCommand{SubscriptionID: id, Actor: actor})
	})
}

// changeSchedule handles PUT /api/v1/subscriptions/{id}/schedule
func (s *Server) changeSchedule(w http.ResponseWriter, r *http.Request) {
	var req ChangeScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	weekdays, err := domain.ParseWeekdays(req.Weekdays)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.transition(w, r, func(id uuid.UUID, actor domain.Actor) (*queries.SubscriptionDTO, error) {
		return s.handlers.ChangeSchedule.Handle(r.Context(), commands.ChangeScheduleCommand{
			SubscriptionID: id,
			Actor:          actor,
			Frequency:      req.Frequency,
			Weekdays:       weekdays,
		})
	})
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, apply func(uuid.UUID, domain.Actor) (*queries.SubscriptionDTO, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	dto, err := apply(id, actorFromContext(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// listAttempts handles GET /api/v1/subscriptions/{id}/attempts
func (s *Server) listAttempts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	attempts, err := s.handlers.ListBillingAttempts.Handle(r.Context(), queries.ListBillingAttemptsQuery{
		SubscriptionID: id,
		Actor:          actorFromContext(r.Context()),
		Limit:          parseIntParam(r, "limit", 50),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts, "count": len(attempts)})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription id")
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(raw)
	if err != nil {
		return nil, errBadRequest
	}
	return &t, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}
