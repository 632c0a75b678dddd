package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/savak1990/my-dogs/internal/api"
	"github.com/savak1990/my-dogs/internal/reconciler"
)

// maxEventBytes bounds a storage notification batch.
const maxEventBytes = 10 << 20

// StorageEvents handles POST /events/storage. The body is an S3 event
// notification document or a plain list of {bucket, key, size} records.
// The response lists every record's outcome; batch_item_failures names the
// records the sender should redeliver.
func (h *Handler) StorageEvents(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.TooLarge(w, "notification batch is too large")
			return
		}
		api.BadRequest(w, "failed to read request body")
		return
	}

	batch, err := reconciler.DecodeNotifications(data)
	if err != nil {
		api.WriteError(w, h.Logger, err)
		return
	}

	result := h.Reconciler.Reconcile(r.Context(), batch)
	api.WriteJSON(w, http.StatusOK, newReconcileResponse(result))
}
