package handler

import (
	"time"

	"github.com/savak1990/my-dogs/internal/model"
	"github.com/savak1990/my-dogs/internal/reconciler"
	"github.com/savak1990/my-dogs/internal/storage"
)

type createDogRequest struct {
	Name *string `json:"name"`
	Age  *int    `json:"age"`
}

type createImageRequest struct {
	ImageExtension *string `json:"image_extension"`
}

type imageResponse struct {
	ImageID      int64     `json:"image_id"`
	ImageURL     string    `json:"image_url,omitempty"`
	Status       string    `json:"status"`
	StatusReason string    `json:"status_reason,omitempty"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// ExpiresAt is when an unfinished upload slot lapses; absent once the
	// image is terminal.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type dogResponse struct {
	DogID     int64           `json:"dog_id"`
	Name      string          `json:"name"`
	Age       int             `json:"age"`
	Images    []imageResponse `json:"images"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type uploadInstructions struct {
	Method       string            `json:"method"`
	PresignedURL string            `json:"presigned_url"`
	ExpiresIn    int64             `json:"expires_in"`
	Headers      map[string]string `json:"headers,omitempty"`
	MaxSize      int64             `json:"max_size,omitempty"`
}

type createImageResponse struct {
	Image              imageResponse      `json:"image"`
	UploadInstructions uploadInstructions `json:"upload_instructions"`
}

type notificationResult struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	FinalStatus string `json:"final_status"`
	Reason      string `json:"reason,omitempty"`
}

type batchItemFailure struct {
	Key string `json:"key"`
}

type reconcileResponse struct {
	Results           []notificationResult `json:"results"`
	BatchItemFailures []batchItemFailure   `json:"batch_item_failures"`
}

func newImageResponse(bucket string, img *model.Image) imageResponse {
	resp := imageResponse{
		ImageID:      img.ImageID,
		Status:       string(img.Status),
		StatusReason: img.StatusReason,
		Version:      img.Version,
		CreatedAt:    img.CreatedAt,
		UpdatedAt:    img.UpdatedAt,
		ExpiresAt:    img.ExpiresAt,
	}
	if img.StorageKey != "" {
		resp.ImageURL = "s3://" + bucket + "/" + img.StorageKey
	}
	return resp
}

func newDogResponse(bucket string, dog *model.Dog) dogResponse {
	images := make([]imageResponse, 0, len(dog.Images))
	for _, img := range dog.Images {
		images = append(images, newImageResponse(bucket, img))
	}
	return dogResponse{
		DogID:     dog.DogID,
		Name:      dog.Name,
		Age:       dog.Age,
		Images:    images,
		Version:   dog.Version,
		CreatedAt: dog.CreatedAt,
		UpdatedAt: dog.UpdatedAt,
	}
}

func newUploadInstructions(cred *storage.UploadCredential) uploadInstructions {
	return uploadInstructions{
		Method:       cred.Method,
		PresignedURL: cred.URL,
		ExpiresIn:    int64(cred.ExpiresIn.Seconds()),
		Headers:      cred.Headers,
		MaxSize:      cred.MaxSize,
	}
}

func newNotificationResult(r reconciler.Result) notificationResult {
	return notificationResult{
		Bucket:      r.Bucket,
		Key:         r.Key,
		FinalStatus: string(r.FinalStatus),
		Reason:      r.Reason,
	}
}

func newReconcileResponse(batch reconciler.BatchResult) reconcileResponse {
	resp := reconcileResponse{
		Results:           make([]notificationResult, 0, len(batch.Results)),
		BatchItemFailures: []batchItemFailure{},
	}
	for _, r := range batch.Results {
		resp.Results = append(resp.Results, newNotificationResult(r))
	}
	for _, r := range batch.Failed() {
		resp.BatchItemFailures = append(resp.BatchItemFailures, batchItemFailure{Key: r.Key})
	}
	return resp
}
