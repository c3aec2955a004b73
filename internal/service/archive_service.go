package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/util"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveProvider 证书归档存储
type ArchiveProvider interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// LocalArchiveProvider 本地目录
type LocalArchiveProvider struct {
	Config *config.StorageConfig
}

func (p *LocalArchiveProvider) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, key)
	dir := filepath.Dir(dst)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}

	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", err
	}
	return dst, nil
}

// MinioArchiveProvider MinIO 对象存储
type MinioArchiveProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioArchiveProvider(cfg *config.StorageConfig) (*MinioArchiveProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioArchiveProvider{Config: cfg, Client: client}, nil
}

func (p *MinioArchiveProvider) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return "/" + p.Config.MinioBucket + "/" + key, nil
}

// ArchiveService 保存签发的结业证书原文
type ArchiveService struct {
	Provider ArchiveProvider
}

func NewArchiveService(cfg *config.Config) (*ArchiveService, error) {
	if cfg.Storage.Type == util.StorageMinio {
		p, err := NewMinioArchiveProvider(&cfg.Storage)
		if err != nil {
			return nil, err
		}
		return &ArchiveService{Provider: p}, nil
	}
	return &ArchiveService{Provider: &LocalArchiveProvider{Config: &cfg.Storage}}, nil
}

// StoreCredential 按 消费者/凭证ID 归档
func (s *ArchiveService) StoreCredential(ctx context.Context, consumerID, credentialID string, raw []byte) (string, error) {
	key := "credentials/" + sanitizeKey(consumerID) + "/" + sanitizeKey(credentialID) + ".json"
	return s.Provider.Put(ctx, key, raw, "application/json")
}

func sanitizeKey(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '?', '#', '*', ' ':
			out[i] = '_'
		}
	}
	key := string(out)
	if strings.Trim(key, ".") == "" {
		return strings.Repeat("_", len(out))
	}
	return key
}
