package service

import (
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/util"
	"aut_portal_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// maxStoredFileRead 读取已存储文件的上限，略大于资料上传上限
const maxStoredFileRead = 64 << 20

var ErrInvalidFileURL = errors.New("file url does not belong to this storage")

// StorageProvider 定义通用存储接口
type StorageProvider interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	GetURL(key string) string
	// KeyFromURL 将 GetURL 生成的地址还原为对象 key
	KeyFromURL(fileURL string) (string, bool)
}

// LocalStorageProvider 本地存储实现，文件通过 /uploads 静态路由对外提供
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

const localURLPrefix = "/uploads/"

func (p *LocalStorageProvider) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", ErrInvalidFileURL
	}
	return filepath.Join(p.Config.LocalPath, filepath.FromSlash(clean)), nil
}

func (p *LocalStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst, err := p.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *LocalStorageProvider) Read(ctx context.Context, key string) ([]byte, error) {
	src, err := p.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxStoredFileRead))
}

func (p *LocalStorageProvider) Delete(ctx context.Context, key string) error {
	dst, err := p.path(key)
	if err != nil {
		return err
	}
	return os.Remove(dst)
}

func (p *LocalStorageProvider) GetURL(key string) string {
	return localURLPrefix + strings.TrimPrefix(key, "/")
}

func (p *LocalStorageProvider) KeyFromURL(fileURL string) (string, bool) {
	clean := path.Clean(fileURL)
	if !strings.HasPrefix(clean, localURLPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(clean, localURLPrefix)
	return key, key != ""
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *MinioStorageProvider) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := p.Client.GetObject(ctx, p.Config.MinioBucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(io.LimitReader(obj, maxStoredFileRead))
}

func (p *MinioStorageProvider) Delete(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, key, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(key string) string {
	return "/" + p.Config.MinioBucket + "/" + key
}

func (p *MinioStorageProvider) KeyFromURL(fileURL string) (string, bool) {
	prefix := "/" + p.Config.MinioBucket + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(fileURL, prefix)
	return key, key != ""
}

// StorageService 存储服务
type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	if cfg.Storage.Type == util.StorageMinio {
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("MinIO unavailable, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	return &StorageService{Provider: provider}
}

// StoredFile 上传成功后返回给前端的文件信息
type StoredFile struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// Save 以随机名保存文件，folder 作为 key 前缀，保留原扩展名
func (s *StorageService) Save(ctx context.Context, folder, originalName, ext string, reader io.Reader, size int64, contentType string) (*StoredFile, error) {
	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext)
	url, err := s.Provider.Upload(ctx, key, reader, size, contentType)
	if err != nil {
		return nil, err
	}
	return &StoredFile{FileURL: url, FileName: originalName, FileSize: size}, nil
}

// SaveUpload 校验并保存 multipart 上传文件
func (s *StorageService) SaveUpload(ctx context.Context, folder string, fh *multipart.FileHeader, allowedExt, allowedMimes []string, maxBytes int64) (*StoredFile, error) {
	ext, err := util.ValidateUpload(fh, allowedExt, allowedMimes, maxBytes)
	if err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = util.MimeOctetStream
	}
	return s.Save(ctx, folder, fh.Filename, ext, f, fh.Size, contentType)
}

// Read 按文件地址读取内容
func (s *StorageService) Read(ctx context.Context, fileURL string) ([]byte, error) {
	key, ok := s.Provider.KeyFromURL(fileURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFileURL, fileURL)
	}
	return s.Provider.Read(ctx, key)
}

// Delete 按文件地址删除，地址不属于当前存储时忽略
func (s *StorageService) Delete(ctx context.Context, fileURL string) error {
	key, ok := s.Provider.KeyFromURL(fileURL)
	if !ok {
		return nil
	}
	return s.Provider.Delete(ctx, key)
}
