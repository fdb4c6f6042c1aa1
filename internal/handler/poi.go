package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/geovoyager/geovoyager/internal/handler/dto"
	"github.com/geovoyager/geovoyager/internal/model"
	"github.com/geovoyager/geovoyager/internal/service"
)

// Query parameter errors.
var (
	errParamRequired = errors.New("field required")
	errNotInteger    = errors.New("must be an integer")
	errNotNumber     = errors.New("must be a number")
)

// POIHandler handles HTTP requests for POI operations.
type POIHandler struct {
	svc    *service.POIService
	logger *slog.Logger
}

// NewPOIHandler creates a new POIHandler.
func NewPOIHandler(svc *service.POIService, logger *slog.Logger) *POIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &POIHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/pois.
func (h *POIHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePOIRequest
	if !h.decode(w, r, &req) {
		return
	}

	poi, err := h.svc.CreatePOI(r.Context(), req.ToInput())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToPOIResponse(poi))
}

// Get handles GET /api/v1/pois/{id}.
func (h *POIHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	poi, err := h.svc.GetPOI(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPOIResponse(poi))
}

// List handles GET /api/v1/pois.
func (h *POIHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	skip, err := intParam(query.Get("skip"), 0)
	if err != nil {
		h.writeValidation(w, "skip", err)
		return
	}
	limit, err := intParam(query.Get("limit"), service.DefaultListLimit)
	if err != nil {
		h.writeValidation(w, "limit", err)
		return
	}

	pois, err := h.svc.ListPOIs(r.Context(), skip, limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPOIListResponse(pois))
}

// Nearby handles GET /api/v1/pois/nearby.
func (h *POIHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var coords [3]float64
	for i, name := range []string{"latitude", "longitude", "radius"} {
		v, err := floatParam(query.Get(name))
		if err != nil {
			h.writeValidation(w, name, err)
			return
		}
		coords[i] = v
	}

	pois, err := h.svc.FindNearby(r.Context(), coords[0], coords[1], coords[2])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPOIListResponse(pois))
}

// Update handles PUT /api/v1/pois/{id}.
func (h *POIHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req dto.UpdatePOIRequest
	if !h.decode(w, r, &req) {
		return
	}

	poi, err := h.svc.UpdatePOI(r.Context(), id, req.ToPatch())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPOIResponse(poi))
}

// Delete handles DELETE /api/v1/pois/{id}.
func (h *POIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeletePOI(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body into dst, writing the error response on failure.
func (h *POIHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return false
		}
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

func (h *POIHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeValidation(w, "id", errNotInteger)
		return 0, false
	}
	return id, true
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errNotInteger
	}
	return v, nil
}

func floatParam(raw string) (float64, error) {
	if raw == "" {
		return 0, errParamRequired
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errNotNumber
	}
	return v, nil
}

// writeValidation reports a malformed path or query parameter.
func (h *POIHandler) writeValidation(w http.ResponseWriter, field string, err error) {
	kind := model.KindOutOfRange
	if errors.Is(err, errParamRequired) {
		kind = model.KindRequired
	}
	writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{
		Error: "Invalid request parameters",
		Code:  "VALIDATION_FAILED",
		Details: []model.FieldViolation{{
			Field:   field,
			Kind:    kind,
			Message: err.Error(),
		}},
	})
}

// handleServiceError maps service errors to HTTP responses.
func (h *POIHandler) handleServiceError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:   "Validation failed",
			Code:    "VALIDATION_FAILED",
			Details: verr.Violations,
		})
	case errors.Is(err, service.ErrInvalidCoordinate):
		h.writeError(w, http.StatusUnprocessableEntity, "INVALID_COORDINATE", "Latitude must be in [-90, 90] and longitude in [-180, 180]")
	case errors.Is(err, service.ErrInvalidRadius):
		h.writeError(w, http.StatusUnprocessableEntity, "INVALID_RADIUS", "Radius must be greater than 0 and at most 1000 km")
	case errors.Is(err, service.ErrInvalidPagination):
		h.writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, service.ErrPOINotFound):
		h.writeError(w, http.StatusNotFound, "POI_NOT_FOUND", "POI not found")
	case errors.Is(err, service.ErrPersistence):
		h.logger.Error("persistence_error", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "PERSISTENCE_ERROR", "Storage is temporarily unavailable")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *POIHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, code, message)
}
