package storage

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestS3Storage_KeysAndLocation(t *testing.T) {
	client := s3.New(s3.Options{Region: "us-east-1"})

	cfg := DefaultS3Config()
	cfg.Prefix = "warehouse/"
	st := NewS3StorageWithClient(client, "bucket", cfg)

	if got := st.key("ds/_metadata"); got != "warehouse/ds/_metadata" {
		t.Errorf("key = %q", got)
	}
	if got := st.Location("ds/_metadata"); got != "s3://bucket/warehouse/ds/_metadata" {
		t.Errorf("Location = %q", got)
	}

	bare := NewS3StorageWithClient(client, "bucket", DefaultS3Config())
	if got := bare.Location("_metadata"); got != "s3://bucket/_metadata" {
		t.Errorf("Location = %q", got)
	}
}
