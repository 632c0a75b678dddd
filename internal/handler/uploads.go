package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/savak1990/my-dogs/internal/api"
	"github.com/savak1990/my-dogs/internal/model"
	"github.com/savak1990/my-dogs/internal/reconciler"
	"github.com/savak1990/my-dogs/internal/storage"
	"go.uber.org/zap"
)

// Upload handles PUT /uploads/* -- the target of presigned URLs issued by
// the filesystem store. It stores the body and reconciles the resulting
// storage notification before answering, standing in for the provider's
// event delivery.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	q := r.URL.Query()

	if err := h.Uploads.VerifyUpload(key, q.Get("exp"), q.Get("sig")); err != nil {
		if errors.Is(err, storage.ErrSignatureExpired) {
			api.Forbidden(w, "upload URL has expired")
			return
		}
		api.Forbidden(w, "invalid upload signature")
		return
	}

	maxSize := h.Config.UploadMaxSize
	if r.ContentLength > maxSize {
		api.TooLarge(w, fmt.Sprintf("upload exceeds %d bytes", maxSize))
		return
	}

	n, err := h.Uploads.Put(r.Context(), key, r.Body, maxSize)
	if err != nil {
		api.WriteError(w, h.Logger, err)
		return
	}

	res := h.Reconciler.ReconcileOne(r.Context(), model.Notification{
		Bucket: h.Uploads.Bucket(),
		Key:    key,
		Size:   n,
	})
	switch {
	case n > maxSize:
		api.TooLarge(w, res.Reason)
	case res.FinalStatus == reconciler.StatusFailed:
		// The object is stored; the record update will be retried by
		// redelivery through /events/storage.
		h.Logger.Warn("upload stored but not reconciled", zap.String("key", key), zap.Error(res.Err))
		api.WriteJSON(w, http.StatusAccepted, newNotificationResult(res))
	default:
		api.WriteJSON(w, http.StatusOK, newNotificationResult(res))
	}
}
