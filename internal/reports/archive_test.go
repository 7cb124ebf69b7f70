package reports

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubS3(t *testing.T, put func(in *s3.PutObjectInput) error) {
	t.Helper()
	origLoad, origNew, origPut := loadDefaultAWSConfig, newS3ClientFromConfig, putObject
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig, putObject = origLoad, origNew, origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var opts awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&opts))
		}
		return aws.Config{Region: opts.Region, Credentials: opts.Credentials}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.New(s3.Options{Region: cfg.Region, Credentials: cfg.Credentials}, optFns...)
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		if err := put(in); err != nil {
			return nil, err
		}
		return &s3.PutObjectOutput{}, nil
	}
}

func TestS3ArchiverUploads(t *testing.T) {
	var got *s3.PutObjectInput
	var body string
	stubS3(t, func(in *s3.PutObjectInput) error {
		got = in
		b, err := io.ReadAll(in.Body)
		body = string(b)
		return err
	})

	a, err := NewS3Archiver(context.Background(), config.ArchiveConfig{
		Bucket:    "relatorios",
		Region:    "us-east-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Prefix:    "reports",
	})
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2024, 10, 30, 0, 0, 0, 0, time.UTC) }

	key, err := a.Archive(context.Background(), &Document{
		Filename:    "Produção_20241030_143005.pdf",
		ContentType: contentTypePDF,
		Data:        []byte("%PDF-1.3"),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "reports/2024/10/30/"), key)
	assert.True(t, strings.HasSuffix(key, "-Produção_20241030_143005.pdf"), key)
	require.NotNil(t, got)
	assert.Equal(t, "relatorios", aws.ToString(got.Bucket))
	assert.Equal(t, key, aws.ToString(got.Key))
	assert.Equal(t, contentTypePDF, aws.ToString(got.ContentType))
	assert.Equal(t, int64(8), aws.ToInt64(got.ContentLength))
	assert.Equal(t, "%PDF-1.3", body)
}

func TestS3ArchiverUploadError(t *testing.T) {
	stubS3(t, func(in *s3.PutObjectInput) error { return errors.New("access denied") })

	a, err := NewS3Archiver(context.Background(), config.ArchiveConfig{Bucket: "b", Region: "us-east-1"})
	require.NoError(t, err)

	_, err = a.Archive(context.Background(), &Document{Filename: "x.pdf"})
	assert.ErrorContains(t, err, "access denied")
}

func TestStorageKeysAreUnique(t *testing.T) {
	a := &S3Archiver{prefix: "", now: time.Now}
	assert.NotEqual(t, a.StorageKey("a.xlsx"), a.StorageKey("a.xlsx"))
}
