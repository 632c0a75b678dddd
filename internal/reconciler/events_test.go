package reconciler

import (
	"errors"
	"testing"

	"github.com/savak1990/my-dogs/internal/apperr"
	"github.com/savak1990/my-dogs/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeS3EventNotification(t *testing.T) {
	payload := `{
	  "Records": [
	    {
	      "eventVersion": "2.1",
	      "eventSource": "aws:s3",
	      "eventName": "ObjectCreated:Put",
	      "s3": {
	        "bucket": {"name": "dogs-images"},
	        "object": {"key": "users/u%2B1/dogs/1/images/2.jpg", "size": 1000}
	      }
	    },
	    {
	      "eventName": "ObjectRemoved:Delete",
	      "s3": {"bucket": {"name": "dogs-images"}, "object": {"key": "x", "size": 0}}
	    },
	    {
	      "eventName": "ObjectCreated:CompleteMultipartUpload",
	      "s3": {"bucket": {"name": "dogs-images"}, "object": {"key": "my+photo.png", "size": 7}}
	    }
	  ]
	}`

	got, err := DecodeNotifications([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, []model.Notification{
		{Bucket: "dogs-images", Key: "users/u+1/dogs/1/images/2.jpg", Size: 1000},
		{Bucket: "dogs-images", Key: "my photo.png", Size: 7},
	}, got)
}

func TestDecodePlainNotifications(t *testing.T) {
	got, err := DecodeNotifications([]byte(`{"records":[{"bucket":"b","key":"k","size":3}]}`))
	require.NoError(t, err)
	assert.Equal(t, []model.Notification{{Bucket: "b", Key: "k", Size: 3}}, got)

	got, err = DecodeNotifications([]byte(` [{"bucket":"b","key":"k2","size":4}] `))
	require.NoError(t, err)
	assert.Equal(t, []model.Notification{{Bucket: "b", Key: "k2", Size: 4}}, got)

	// The S3 test event carries no records.
	got, err = DecodeNotifications([]byte(`{"Service":"Amazon S3","Event":"s3:TestEvent"}`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeNotificationsRejectsMalformed(t *testing.T) {
	for _, payload := range []string{"", "   ", "{", `{"records":"nope"}`, `[1,2]`, `{"Records":[{"s3":{"object":{"key":"%zz"}}}]}`} {
		_, err := DecodeNotifications([]byte(payload))
		require.Error(t, err, payload)
		assert.True(t, errors.Is(err, apperr.ErrParse), payload)
	}
}
