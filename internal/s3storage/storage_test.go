package s3storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/LineReport/internal/config"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "photos/id1/falla.png", ObjectKey("id1", "falla.png"))
	assert.Equal(t, "photos/id1/falla.png", ObjectKey("id1", `C:\fotos\falla.png`))
	assert.Equal(t, "photos/id1/falla.png", ObjectKey("id1", "../../falla.png"))
	assert.Equal(t, "photos/id1/photo", ObjectKey("id1", ""))
}

func TestPublicURLRoundTrip(t *testing.T) {
	s, err := New(&config.Config{
		S3Endpoint:  "minio:9000",
		S3AccessKey: "key",
		S3SecretKey: "secret",
		S3Bucket:    "fotos",
		S3Region:    "us-east-1",
		S3PublicURL: "https://cdn.example.com/",
	})
	require.NoError(t, err)

	link := s.PublicURL("photos/id1/foto de falla.jpg")
	assert.Equal(t, "https://cdn.example.com/fotos/photos/id1/foto%20de%20falla.jpg", link)

	key, err := s.keyFromURL(link)
	require.NoError(t, err)
	assert.Equal(t, "photos/id1/foto de falla.jpg", key)

	_, err = s.keyFromURL("https://drive.google.com/uc?id=x")
	assert.ErrorIs(t, err, ErrForeignURL)
}

func TestPublicBaseDefaultsToEndpoint(t *testing.T) {
	s, err := New(&config.Config{S3Endpoint: "minio:9000", S3Bucket: "fotos"})
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/fotos/k", s.PublicURL("k"))
}

func TestPublicReadPolicyIsJSON(t *testing.T) {
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("fotos")), &doc))
	assert.Equal(t, "2012-10-17", doc["Version"])
}
