package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lorawan-server/lorawan-concentratord/internal/models"
	"github.com/lorawan-server/lorawan-concentratord/internal/storage"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 500
)

// HandleHealth health check handler
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// HandleGetGateway returns the concentrator identity
func (s *RESTServer) HandleGetGateway(w http.ResponseWriter, r *http.Request) {
	radios := make([]map[string]uint32, 0, len(s.config.Concentrator.Radios))
	for _, radio := range s.config.Concentrator.Radios {
		radios = append(radios, map[string]uint32{
			"txFreqMin": radio.TxFreqMin,
			"txFreqMax": radio.TxFreqMax,
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"gatewayId":   s.gatewayID,
		"model":       s.config.Concentrator.Model,
		"antennaGain": s.config.Concentrator.AntennaGain,
		"radios":      radios,
	})
}

// HandleGetQueue returns the JIT queue fill level
func (s *RESTServer) HandleGetQueue(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"length":   s.queue.Len(),
		"capacity": s.queue.Capacity(),
	})
}

// HandleGetStats returns the counters of the current reporting interval
func (s *RESTServer) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.stats.Snapshot(s.gatewayID))
}

// HandleListEvents lists the persisted events of this gateway
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}

	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	filters := storage.EventLogFilters{GatewayID: s.gatewayID}

	if eventType := q.Get("type"); eventType != "" {
		t := models.EventType(eventType)
		filters.Type = &t
	}

	if level := q.Get("level"); level != "" {
		l := models.EventLevel(level)
		filters.Level = &l
	}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid since, expected RFC3339")
			return
		}
		filters.StartTime = &t
	}

	events, total, err := s.store.ListEventLogs(r.Context(), filters, limit, offset)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "not found")
			return
		}
		log.Error().Err(err).Msg("list event logs failed")
		s.respondError(w, http.StatusInternalServerError, "list events failed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("marshal response failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}
