package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// avatarTransformation crops uploads to a square thumbnail centred on a face.
const avatarTransformation = "c_fill,g_face,w_256,h_256,q_auto,f_auto"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// AvatarStore keeps one profile picture per user in a Cloudinary folder.
type AvatarStore struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs an avatar store.
func New(cfg Config, logger zerolog.Logger) (*AvatarStore, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &AvatarStore{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload stores the image under a public id derived from name, replacing any
// earlier avatar with the same id, and returns its secure URL.
func (s *AvatarStore) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	publicID := PublicID(name)

	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       publicID,
		ResourceType:   "image",
		Overwrite:      api.Bool(true),
		Invalidate:     api.Bool(true),
		Transformation: avatarTransformation,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected avatar: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("avatar uploaded")
	return result.SecureURL, nil
}

// PublicID turns a file name into a stable Cloudinary public id.
func PublicID(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		return "avatar"
	}
	return base
}
