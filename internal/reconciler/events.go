package reconciler

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/savak1990/my-dogs/internal/apperr"
	"github.com/savak1990/my-dogs/internal/model"
)

// s3Record is the subset of an S3 event notification record that matters.
type s3Record struct {
	EventName string `json:"eventName"`
	S3        *struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		} `json:"object"`
	} `json:"s3"`

	// Plain form.
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

// DecodeNotifications accepts an S3 event notification document
// ({"Records":[{"s3":{...}}]}), the plain form {"records":[{"bucket","key","size"}]}
// or a bare JSON array of plain records. S3 object keys arrive URL-encoded
// and are unescaped. Records for events other than object creation are
// skipped.
func DecodeNotifications(data []byte) ([]model.Notification, error) {
	const op = "DecodeNotifications"
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, apperr.Parse(op, "empty payload")
	}

	var raw []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, apperr.Parse(op, "decode records: %v", err)
		}
	} else {
		var doc struct {
			Records []json.RawMessage `json:"records"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, apperr.Parse(op, "decode document: %v", err)
		}
		raw = doc.Records
	}

	out := make([]model.Notification, 0, len(raw))
	for i, msg := range raw {
		var rec s3Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			return nil, apperr.Parse(op, "record %d: %v", i, err)
		}
		if rec.EventName != "" && !strings.HasPrefix(rec.EventName, "ObjectCreated:") {
			continue
		}
		if rec.S3 == nil {
			out = append(out, model.Notification{Bucket: rec.Bucket, Key: rec.Key, Size: rec.Size})
			continue
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, apperr.Parse(op, "record %d: object key: %v", i, err)
		}
		out = append(out, model.Notification{
			Bucket: rec.S3.Bucket.Name,
			Key:    key,
			Size:   rec.S3.Object.Size,
		})
	}
	return out, nil
}
