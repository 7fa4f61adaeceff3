package storage

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Prefix          string
}

// OSSStorage uploads files to an Aliyun OSS bucket.
type OSSStorage struct {
	cfg    OSSConfig
	bucket *oss.Bucket
}

func NewOSSStorage(cfg OSSConfig) (*OSSStorage, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("oss: endpoint, credentials, and bucket are required")
	}

	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("creating oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", cfg.Bucket, err)
	}

	return &OSSStorage{cfg: cfg, bucket: bucket}, nil
}

// Upload pushes the file to the bucket under a timestamped key and returns the
// public URL. The Content-MD5 header lets the service verify the transfer.
func (s *OSSStorage) Upload(ctx context.Context, path string) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	checksum, err := fileMD5(path)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", filepath.Base(path), err)
	}

	key := objectKey(s.cfg.Prefix, filepath.Base(path), time.Now())
	opts := []oss.Option{
		oss.ContentMD5(checksum),
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		opts = append(opts, oss.ContentType(ct))
	}

	if err := s.bucket.PutObjectFromFile(key, path, opts...); err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
	}

	return &UploadResult{
		Key:  key,
		URL:  publicURL(s.cfg.Bucket, s.cfg.Endpoint, key),
		Size: info.Size(),
	}, nil
}

func (s *OSSStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.bucket.DeleteObject(key); err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// Verify confirms the bucket exists and the credentials can reach it.
func (s *OSSStorage) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	exists, err := s.bucket.Client.IsBucketExist(s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.cfg.Bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.cfg.Bucket)
	}
	return nil
}

// objectKey builds "prefix/name_timestamp.ext" so repeated uploads of the
// same file never collide.
func objectKey(prefix, fileName string, now time.Time) string {
	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)
	key := fmt.Sprintf("%s_%s%s", stem, now.Format("20060102150405"), ext)
	if prefix != "" {
		key = strings.Trim(prefix, "/") + "/" + key
	}
	return key
}

// publicURL renders the virtual-hosted bucket URL for an object.
func publicURL(bucket, endpoint, key string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", bucket, host, key)
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}
