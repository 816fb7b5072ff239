package service

import (
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/util"
	"bytes"
	"context"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileHeader 构造一个真实解析得到的 multipart 文件头
func fileHeader(t *testing.T, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func TestLocalStorageSaveReadDelete(t *testing.T) {
	storage, dir := newLocalStorage(t)
	ctx := context.Background()

	stored, err := storage.Save(ctx, "quiz", "lecture.pdf", ".pdf", strings.NewReader("%PDF-1.4 body"), 13, util.MimePDF)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.FileURL, "/uploads/quiz/"))
	assert.True(t, strings.HasSuffix(stored.FileURL, ".pdf"))
	assert.Equal(t, "lecture.pdf", stored.FileName)
	assert.EqualValues(t, 13, stored.FileSize)

	data, err := storage.Read(ctx, stored.FileURL)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))

	key := strings.TrimPrefix(stored.FileURL, "/uploads/")
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)

	require.NoError(t, storage.Delete(ctx, stored.FileURL))
	_, err = storage.Read(ctx, stored.FileURL)
	assert.True(t, os.IsNotExist(err))
}

func TestStorageForeignURL(t *testing.T) {
	storage, _ := newLocalStorage(t)
	ctx := context.Background()

	_, err := storage.Read(ctx, "https://elsewhere.example.com/a.pdf")
	assert.ErrorIs(t, err, ErrInvalidFileURL)
	_, err = storage.Read(ctx, "/uploads/../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidFileURL)

	assert.NoError(t, storage.Delete(ctx, "https://elsewhere.example.com/a.pdf"))
}

func TestSaveUpload(t *testing.T) {
	storage, _ := newLocalStorage(t)
	ctx := context.Background()
	pdf := []byte("%PDF-1.7\n" + strings.Repeat("x", 100))

	stored, err := storage.SaveUpload(ctx, "quiz", fileHeader(t, "Notes.PDF", pdf), util.QuizDocumentExtensions, util.QuizDocumentMimes, 1<<20)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.FileURL, ".pdf"))
	assert.Equal(t, "Notes.PDF", stored.FileName)

	_, err = storage.SaveUpload(ctx, "quiz", fileHeader(t, "notes.txt", []byte("plain")), util.QuizDocumentExtensions, util.QuizDocumentMimes, 1<<20)
	assert.ErrorIs(t, err, util.ErrUnsupportedFile)

	_, err = storage.SaveUpload(ctx, "quiz", fileHeader(t, "fake.pdf", []byte("just text, not a pdf")), util.QuizDocumentExtensions, util.QuizDocumentMimes, 1<<20)
	assert.ErrorIs(t, err, util.ErrUnsupportedFile)

	_, err = storage.SaveUpload(ctx, "quiz", fileHeader(t, "big.pdf", pdf), util.QuizDocumentExtensions, util.QuizDocumentMimes, 10)
	assert.ErrorIs(t, err, util.ErrFileTooLarge)
}

func TestNewStorageServiceFallsBackToLocal(t *testing.T) {
	storage := NewStorageService(&config.Config{Storage: config.StorageConfig{
		Type:      util.StorageMinio,
		LocalPath: t.TempDir(),
	}})
	_, ok := storage.Provider.(*LocalStorageProvider)
	assert.True(t, ok)
}
