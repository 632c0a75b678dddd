package model

// Notification is a single object-created event delivered by the object
// store. Delivery is at-least-once.
type Notification struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}
