package module

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/devsapp/serverless-automl-hub/pkg/config"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore where uploaded dataset files live
type ObjectStore interface {
	UploadFileByByte(key string, body []byte) error
	DownloadFileToBytes(key string) ([]byte, error)
	DeleteFile(key string) error
}

// OssGlobal object store manager
var OssGlobal ObjectStore

// NewOssManager init OssGlobal from config, remote mode uses the oss bucket
func NewOssManager() error {
	if !config.ConfigGlobal.UseRemoteOss() {
		store, err := NewLocalStore(config.ConfigGlobal.OssLocalPath)
		if err != nil {
			return err
		}
		OssGlobal = store
		return nil
	}
	client, err := oss.New(config.ConfigGlobal.OssEndpoint, config.ConfigGlobal.AccessKeyId,
		config.ConfigGlobal.AccessKeySecret, oss.SecurityToken(config.ConfigGlobal.AccessKeyToken))
	if err != nil {
		return err
	}
	bucket, err := client.Bucket(config.ConfigGlobal.Bucket)
	if err != nil {
		return err
	}
	OssGlobal = &OssManager{
		bucket: bucket,
	}
	return nil
}

// DatasetKey object key of an uploaded dataset file
func DatasetKey(userId, datasetId, fileName string) string {
	return fmt.Sprintf("datasets/%s/%s/%s", userId, datasetId, fileName)
}

type OssManager struct {
	bucket *oss.Bucket
}

// UploadFileByByte UploadFile upload file to oss
func (o *OssManager) UploadFileByByte(ossKey string, body []byte) error {
	return o.bucket.PutObject(ossKey, bytes.NewReader(body))
}

// DownloadFileToBytes Download the object into memory
func (o *OssManager) DownloadFileToBytes(ossKey string) ([]byte, error) {
	body, err := o.bucket.GetObject(ossKey)
	if err != nil {
		var svcErr oss.ServiceError
		if errors.As(err, &svcErr) && svcErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ossKey)
		}
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// DeleteFile delete file from oss
func (o *OssManager) DeleteFile(ossKey string) error {
	return o.bucket.DeleteObject(ossKey)
}

// LocalStore keeps objects under a directory, for dev mode and tests
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

func (l *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

func (l *LocalStore) UploadFileByByte(key string, body []byte) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, body, 0644)
}

func (l *LocalStore) DownloadFileToBytes(key string) ([]byte, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return data, err
}

func (l *LocalStore) DeleteFile(key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
