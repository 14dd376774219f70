package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the content is not an image.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadMissing indicates the request carried no file.
	ErrUploadMissing = errors.New("file is required")
	// ErrStorageUnavailable indicates no avatar store is configured.
	ErrStorageUnavailable = errors.New("avatar storage not configured")
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

type avatarPayload struct {
	name string
	mime string
	data []byte
}

// readAvatar loads the upload, enforces the size limit and checks the sniffed type is an image.
func readAvatar(file *multipart.FileHeader, userID string, maxSize int64) (avatarPayload, error) {
	if file == nil {
		return avatarPayload{}, ErrUploadMissing
	}
	if file.Size > maxSize {
		return avatarPayload{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return avatarPayload{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxSize+1)); err != nil {
		return avatarPayload{}, err
	}
	if int64(buf.Len()) > maxSize {
		return avatarPayload{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	if !strings.HasPrefix(detected.String(), "image/") {
		return avatarPayload{}, ErrUploadTypeNotAllowed
	}

	return avatarPayload{
		name: avatarFileName(userID, detected.Extension()),
		mime: detected.String(),
		data: buf.Bytes(),
	}, nil
}

func avatarFileName(userID, ext string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, userID)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "avatar"
	}
	if ext == "" {
		ext = filepath.Ext(base)
	}
	if ext == "" {
		ext = ".img"
	}
	return fmt.Sprintf("avatar-%s%s", base, ext)
}
