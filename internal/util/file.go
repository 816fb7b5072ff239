package util

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// ValidateMimeType 深度校验文件 MIME 类型
// allowedTypes: 允许的 MIME 前缀或完整类型，如 "application/pdf"
func ValidateMimeType(reader io.Reader, allowedTypes []string) (string, error) {
	buffer := make([]byte, 512)
	n, err := reader.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	// 检测 MIME 类型
	mimeType := http.DetectContentType(buffer[:n])

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) || mimeType == allowed {
			return mimeType, nil
		}
	}

	return mimeType, errors.New("invalid file type: " + mimeType)
}

// ValidateUpload 校验上传文件的扩展名、大小与内容类型，返回规范化的扩展名
func ValidateUpload(fh *multipart.FileHeader, allowedExt []string, allowedMimes []string, maxBytes int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !containsString(allowedExt, ext) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}
	if fh.Size > maxBytes {
		return "", ErrFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := ValidateMimeType(f, allowedMimes); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}
	return ext, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
