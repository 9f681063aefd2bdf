// Package gcs 提供与 Google Cloud Storage 交互的基础设施封装。
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
)

// Config 描述对象存储目标与公开访问前缀。
type Config struct {
	Bucket        string
	PublicBaseURL string // 为空时回退到 storage.googleapis.com 规范地址
}

// ObjectStore 基于 GCS 实现媒体产物的写入，返回可公开访问的 URL。
// 实现 services.MediaStore 契约。
type ObjectStore struct {
	client *storage.Client
	cfg    Config
	log    *log.Helper
}

// NewObjectStore 创建 ObjectStore 并返回清理函数。
func NewObjectStore(ctx context.Context, cfg Config, logger log.Logger) (*ObjectStore, func(), error) {
	if cfg.Bucket == "" {
		return nil, nil, errors.New("gcs: bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("init gcs client: %w", err)
	}

	helper := log.NewHelper(logger)
	store := &ObjectStore{
		client: client,
		cfg:    cfg,
		log:    helper,
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("close gcs client: %v", err)
		}
	}
	return store, cleanup, nil
}

// Store 将内容写入指定对象并返回公开 URL。
// 写入失败时删除半成品对象，避免桶内残留不完整文件。
func (s *ObjectStore) Store(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	if objectName == "" {
		return "", errors.New("object name is required")
	}

	obj := s.client.Bucket(s.cfg.Bucket).Object(objectName)
	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		_ = obj.Delete(context.WithoutCancel(ctx))
		s.log.WithContext(ctx).Errorf("gcs write failed: bucket=%s object=%s err=%v", s.cfg.Bucket, objectName, err)
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		s.log.WithContext(ctx).Errorf("gcs finalize failed: bucket=%s object=%s err=%v", s.cfg.Bucket, objectName, err)
		return "", fmt.Errorf("finalize object: %w", err)
	}

	url := s.publicURL(objectName)
	s.log.WithContext(ctx).Debugf("gcs object stored: object=%s size=%d", objectName, w.Attrs().Size)
	return url, nil
}

func (s *ObjectStore) publicURL(objectName string) string {
	if base := strings.TrimSuffix(s.cfg.PublicBaseURL, "/"); base != "" {
		return base + "/" + objectName
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.cfg.Bucket, objectName)
}
