package handler

import (
	"net/http"

	"github.com/savak1990/my-dogs/internal/api"
)

// CreateImage handles POST /users/{owner_id}/dogs/{dog_id}/images. It
// reserves a PENDING image and returns where to upload its bytes.
func (h *Handler) CreateImage(w http.ResponseWriter, r *http.Request) {
	ownerID := api.GetOwnerID(r.Context())
	dogID, ok := dogIDParam(w, r)
	if !ok {
		return
	}

	var req createImageRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if req.ImageExtension == nil || *req.ImageExtension == "" {
		api.BadRequest(w, "Validation error in field 'image_extension': field required")
		return
	}

	intent, err := h.Intents.CreateUploadIntent(r.Context(), ownerID, dogID, *req.ImageExtension)
	if err != nil {
		api.WriteError(w, h.Logger, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, createImageResponse{
		Image:              newImageResponse(h.Config.ImagesBucket, intent.Image),
		UploadInstructions: newUploadInstructions(intent.Credential),
	})
}
