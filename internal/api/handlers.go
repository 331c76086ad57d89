package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hjdhjd/ratgdo-core/internal/bridges/esphome"
)

// deviceResponse is the JSON shape for device info.
type deviceResponse struct {
	Name            string `json:"name"`
	MACAddress      string `json:"mac_address"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version"`
	CompilationTime string `json:"compilation_time,omitempty"`
	ProjectName     string `json:"project_name,omitempty"`
	ProjectVersion  string `json:"project_version,omitempty"`
	HasDeepSleep    bool   `json:"has_deep_sleep"`
	Address         string `json:"address"`
	Connected       bool   `json:"connected"`
}

// entityResponse is the JSON shape for a catalog entity. The numeric
// key is deliberately omitted: it is session-scoped and meaningless to
// API consumers.
type entityResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	State any    `json:"state,omitempty"`
}

// statsResponse is the JSON shape for session statistics.
type statsResponse struct {
	FramesReceived uint64 `json:"frames_received"`
	FramesSent     uint64 `json:"frames_sent"`
	FramingErrors  uint64 `json:"framing_errors"`
	EventsDropped  uint64 `json:"events_dropped"`
	Errors         uint64 `json:"errors"`
	Reconnects     uint64 `json:"reconnects"`
	SessionState   string `json:"session_state"`
	Connected      bool   `json:"connected"`
}

// handleGetDevice returns the connected device's information.
func (s *Server) handleGetDevice(w http.ResponseWriter, _ *http.Request) {
	info, ok := s.bridge.DeviceInfo()
	if !ok {
		writeNotFound(w, "no device connected")
		return
	}

	writeJSON(w, http.StatusOK, deviceResponse{
		Name:            info.Name,
		MACAddress:      info.MACAddress,
		Model:           info.Model,
		FirmwareVersion: info.FirmwareVersion,
		CompilationTime: info.CompilationTime,
		ProjectName:     info.ProjectName,
		ProjectVersion:  info.ProjectVersion,
		HasDeepSleep:    info.HasDeepSleep,
		Address:         s.bridge.DeviceAddress(),
		Connected:       s.bridge.DeviceConnected(),
	})
}

// handleGetStats returns session statistics for the device connection.
func (s *Server) handleGetStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.bridge.SessionStats()

	writeJSON(w, http.StatusOK, statsResponse{
		FramesReceived: stats.FramesRx,
		FramesSent:     stats.FramesTx,
		FramingErrors:  stats.FramingErrors,
		EventsDropped:  stats.EventsDropped,
		Errors:         stats.ErrorsTotal,
		Reconnects:     s.bridge.Reconnects(),
		SessionState:   stats.State.String(),
		Connected:      stats.Connected,
	})
}

// handleListEntities returns all entities from the current session's
// catalog, with their last known states when available.
func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	entities := s.bridge.Entities()
	states := stateIndex(s.bridge.States())

	resp := make([]entityResponse, 0, len(entities))
	for _, e := range entities {
		item := entityResponse{
			ID:   e.ID,
			Name: e.Name,
			Type: e.Type,
		}
		if st, ok := states[e.ID]; ok {
			item.State = st
		}
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entities": resp,
		"count":    len(resp),
	})
}

// handleGetEntity returns one entity by its stable identifier.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	for _, e := range s.bridge.Entities() {
		if e.ID != id {
			continue
		}
		item := entityResponse{
			ID:   e.ID,
			Name: e.Name,
			Type: e.Type,
		}
		if st, ok := stateIndex(s.bridge.States())[e.ID]; ok {
			item.State = st
		}
		writeJSON(w, http.StatusOK, item)
		return
	}

	writeNotFound(w, "entity not found: "+id)
}

// handleListStates returns the last known state for every entity that
// has reported one this session.
func (s *Server) handleListStates(w http.ResponseWriter, _ *http.Request) {
	states := s.bridge.States()
	writeJSON(w, http.StatusOK, map[string]any{
		"states": states,
		"count":  len(states),
	})
}

// handleGetHistory returns recent door events across all entities.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	s.serveHistory(w, r, "")
}

// handleGetEntityHistory returns recent door events for one entity.
func (s *Server) handleGetEntityHistory(w http.ResponseWriter, r *http.Request) {
	s.serveHistory(w, r, chi.URLParam(r, "id"))
}

// serveHistory queries the event store, honouring an optional ?limit=
// query parameter.
func (s *Server) serveHistory(w http.ResponseWriter, r *http.Request, entityID string) {
	if s.history == nil {
		writeNotFound(w, "event history is not enabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	events, err := s.history.GetEvents(r.Context(), entityID, limit)
	if err != nil {
		s.logger.Error("history query failed", "entity_id", entityID, "error", err)
		writeInternalError(w, "history query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// stateIndex builds an entity-id lookup over the state cache.
func stateIndex(states []esphome.StateMessage) map[string]esphome.StateMessage {
	idx := make(map[string]esphome.StateMessage, len(states))
	for _, st := range states {
		idx[st.EntityID] = st
	}
	return idx
}
