package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/savak1990/my-dogs/internal/api"
	"github.com/savak1990/my-dogs/internal/service"
)

// ListDogs handles GET /users/{owner_id}/dogs.
func (h *Handler) ListDogs(w http.ResponseWriter, r *http.Request) {
	ownerID := api.GetOwnerID(r.Context())

	dogs, err := h.Dogs.ListDogs(r.Context(), ownerID)
	if err != nil {
		api.WriteError(w, h.Logger, err)
		return
	}

	resp := make([]dogResponse, 0, len(dogs))
	for _, dog := range dogs {
		resp = append(resp, newDogResponse(h.Config.ImagesBucket, dog))
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// CreateDog handles POST /users/{owner_id}/dogs.
func (h *Handler) CreateDog(w http.ResponseWriter, r *http.Request) {
	ownerID := api.GetOwnerID(r.Context())

	var req createDogRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if req.Name == nil {
		api.BadRequest(w, "Validation error in field 'name': field required")
		return
	}
	if req.Age == nil {
		api.BadRequest(w, "Validation error in field 'age': field required")
		return
	}

	dog, err := h.Dogs.CreateDog(r.Context(), ownerID, service.CreateDogInput{Name: *req.Name, Age: *req.Age})
	if err != nil {
		api.WriteError(w, h.Logger, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, newDogResponse(h.Config.ImagesBucket, dog))
}

// GetDog handles GET /users/{owner_id}/dogs/{dog_id}.
func (h *Handler) GetDog(w http.ResponseWriter, r *http.Request) {
	ownerID := api.GetOwnerID(r.Context())
	dogID, ok := dogIDParam(w, r)
	if !ok {
		return
	}

	dog, err := h.Dogs.GetDog(r.Context(), ownerID, dogID)
	if err != nil {
		api.WriteError(w, h.Logger, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, newDogResponse(h.Config.ImagesBucket, dog))
}

// dogIDParam parses the dog_id URL parameter, writing a 400 when it is not
// a positive integer.
func dogIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "dog_id"), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "Validation error in field 'dog_id': must be a positive integer")
		return 0, false
	}
	return id, true
}
