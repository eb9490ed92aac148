package customer

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/aquamarinepk/customers/internal/aqm"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes matches the 100kb default of common JSON body parsers.
const maxBodyBytes = 100 << 10

var (
	msgNotFound = aqm.ResourceMessage(Resource, "not found")
	msgUpdated  = aqm.ResourceMessage(Resource, "updated successfully")
	msgDeleted  = aqm.ResourceMessage(Resource, "deleted successfully")
)

// Handler wires HTTP routes for the customer collection.
type Handler struct {
	service *Service
	logger  aqm.Logger
}

func NewHandler(service *Service, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes implements aqm.HTTPModule.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route(aqm.CollectionPath(Resource), func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
		})
	})
}

// HealthChecks implements aqm.HealthReporter; readiness follows the store.
func (h *Handler) HealthChecks() aqm.HealthChecks {
	return aqm.HealthChecks{
		Readiness: map[string]aqm.HealthCheck{"customer-store": h.service.Ready},
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeFields(w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), fields)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Location", aqm.ItemPath(Resource, created.ID.Hex()))
	aqm.Respond(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	aqm.Respond(w, http.StatusOK, customers)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	aqm.Respond(w, http.StatusOK, found)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeFields(w, r)
	if !ok {
		return
	}

	if err := h.service.Update(r.Context(), chi.URLParam(r, "id"), fields); err != nil {
		h.handleError(w, r, err)
		return
	}
	aqm.RespondMessage(w, http.StatusOK, msgUpdated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}
	aqm.RespondMessage(w, http.StatusOK, msgDeleted)
}

// decodeFields reads the JSON payload. An empty body, or one that is not
// declared as application/json, decodes to empty fields so that it fails
// validation like any other missing field. A field holding a non-string JSON
// value is reported the same way.
func (h *Handler) decodeFields(w http.ResponseWriter, r *http.Request) (Fields, bool) {
	defer r.Body.Close()

	if !isJSON(r) {
		return Fields{}, true
	}

	var fields Fields
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&fields)
	if err == nil || errors.Is(err, io.EOF) {
		return fields, true
	}

	var (
		tooLarge  *http.MaxBytesError
		wrongType *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		aqm.RespondError(w, http.StatusRequestEntityTooLarge, aqm.MsgPayloadTooLarge)
	case errors.As(err, &wrongType):
		aqm.RespondError(w, http.StatusBadRequest, ErrFieldsRequired.Error())
	default:
		aqm.RespondError(w, http.StatusBadRequest, aqm.MsgMalformedPayload)
	}
	return Fields{}, false
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.EqualFold(mediaType, "application/json")
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var validation ValidationError
	var storeErr *StoreError
	switch {
	case errors.As(err, &validation):
		aqm.RespondError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, ErrNotFound):
		aqm.RespondError(w, http.StatusNotFound, msgNotFound)
	case errors.As(err, &storeErr):
		h.logger.Error("customer "+storeErr.Op+" failed",
			"request_id", aqm.RequestIDFrom(r.Context()),
			"error", storeErr.Err,
		)
		aqm.RespondInternalError(w)
	default:
		h.logger.Error("customer request failed",
			"request_id", aqm.RequestIDFrom(r.Context()),
			"error", err,
		)
		aqm.RespondInternalError(w)
	}
}
