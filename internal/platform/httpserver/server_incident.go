package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"reefwatch/contexts/incident-tracking/incident-service/application/queries"
	incidentdomainerrors "reefwatch/contexts/incident-tracking/incident-service/domain/errors"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
	incidenthttp "reefwatch/contexts/incident-tracking/incident-service/transport/http"
)

func writeIncidentError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, incidenthttp.ErrorResponse{Code: code, Message: message})
}

// writeIncidentDomainError maps sentinel errors onto HTTP statuses. A store
// timeout is reported as 504 with its own code so operators can tell a slow
// store apart from a broken one straight from the response.
func writeIncidentDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, incidentdomainerrors.ErrIncidentNotFound):
		writeIncidentError(w, http.StatusNotFound, "incident_not_found", err.Error())
	case errors.Is(err, incidentdomainerrors.ErrIncidentExists):
		writeIncidentError(w, http.StatusConflict, "incident_exists", err.Error())
	case errors.Is(err, incidentdomainerrors.ErrInvalidIncidentInput):
		writeIncidentError(w, http.StatusBadRequest, "invalid_incident_input", err.Error())
	case errors.Is(err, incidentdomainerrors.ErrStoreTimeout):
		writeIncidentError(w, http.StatusGatewayTimeout, "store_timeout", err.Error())
	case errors.Is(err, incidentdomainerrors.ErrStoreUnavailable):
		writeIncidentError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	case errors.Is(err, incidentdomainerrors.ErrForbidden):
		writeIncidentError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, incidentdomainerrors.ErrUnauthorized):
		writeIncidentError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		writeIncidentError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleCreateIncident(w http.ResponseWriter, r *http.Request, principal Principal) {
	var req incidenthttp.CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIncidentError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if req.OrganizationID == "" {
		req.OrganizationID = principal.OrganizationID
	}

	resp, err := s.incidents.Handler.CreateIncidentHandler(r.Context(), principal.Username, req)
	if err != nil {
		writeIncidentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request, principal Principal) {
	incidentID := r.PathValue("incident_id")
	resp, err := s.incidents.Handler.GetIncidentHandler(r.Context(), incidentID, principal.OrganizationID)
	if err != nil {
		writeIncidentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request, principal Principal) {
	query := r.URL.Query()

	listQuery := queries.ListIncidentsQuery{
		Filter: ports.IncidentFilter{
			Name:           query.Get("name"),
			OrganizationID: principal.OrganizationID,
		},
		Sort: ports.Sort{
			Field: query.Get("sort"),
			Desc:  strings.EqualFold(query.Get("order"), "desc"),
		},
	}
	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeIncidentError(w, http.StatusBadRequest, "invalid_active", "active must be a boolean")
			return
		}
		listQuery.Filter.Active = &active
	}
	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			writeIncidentError(w, http.StatusBadRequest, "invalid_page", "page must be a non-negative integer")
			return
		}
		listQuery.Page.Page = page
	}
	if raw := query.Get("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count < 0 {
			writeIncidentError(w, http.StatusBadRequest, "invalid_count", "count must be a non-negative integer")
			return
		}
		listQuery.Page.Count = count
	}
	listQuery.Page.QueryTotalCount = strings.EqualFold(query.Get("query_total_count"), "true")

	resp, err := s.incidents.Handler.ListIncidentsHandler(r.Context(), listQuery)
	if err != nil {
		writeIncidentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateIncident(w http.ResponseWriter, r *http.Request, principal Principal) {
	var req incidenthttp.UpdateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIncidentError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	incidentID := r.PathValue("incident_id")
	merge := !strings.EqualFold(r.URL.Query().Get("merge"), "false")

	resp, err := s.incidents.Handler.UpdateIncidentHandler(r.Context(), principal.Username, incidentID, merge, req)
	if err != nil {
		writeIncidentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteIncidents(w http.ResponseWriter, r *http.Request, principal Principal) {
	var req incidenthttp.DeleteIncidentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIncidentError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.incidents.Handler.DeleteIncidentsHandler(r.Context(), principal.Username, req)
	if err != nil {
		writeIncidentDomainError(w, err)
		return
	}
	writeJSON(w, resp.Code, resp)
}

func (s *Server) handleImportIncidents(w http.ResponseWriter, r *http.Request, principal Principal) {
	req := incidenthttp.ImportIncidentsRequest{OrganizationID: principal.OrganizationID}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeIncidentError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}

	resp, err := s.incidents.Handler.ImportIncidentsHandler(r.Context(), principal.Username, req)
	if err != nil {
		writeIncidentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDeadLetters(w http.ResponseWriter, r *http.Request, _ Principal) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeIncidentError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	resp, err := s.incidents.Handler.ListDeadLettersHandler(r.Context(), limit)
	if err != nil {
		writeIncidentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
