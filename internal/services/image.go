package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
)

const (
	maxImageDimension = 1600
	jpegQuality       = 85
	signedURLTTL      = 15 * time.Minute
)

// UploadedImage is the composite's record of a stored image: the bucket key
// plus a URL the item service can embed in listings.
type UploadedImage struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type ImageService interface {
	Upload(ctx context.Context, filename string, file io.Reader) (*UploadedImage, error)
	ResolveURL(ctx context.Context, key string) (*UploadedImage, error)
}

type imageService struct {
	log    *logger.Logger
	bucket BucketService
	// sem bounds concurrent decodes; a full-size decode holds the whole
	// uncompressed bitmap in memory.
	sem chan struct{}
}

func NewImageService(log *logger.Logger, bucket BucketService, maxConcurrent int) ImageService {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	serviceLog := log.With("service", "ImageService")
	return &imageService{
		log:    serviceLog,
		bucket: bucket,
		sem:    make(chan struct{}, maxConcurrent),
	}
}

// Upload decodes, downscales to at most 1600px on the long edge, re-encodes
// as JPEG and stores the result under a fresh uuid-prefixed key.
func (s *imageService) Upload(ctx context.Context, filename string, file io.Reader) (*UploadedImage, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, apierr.Validation(fmt.Errorf("unreadable image: %w", err))
	}

	scaled := downscale(img)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}

	key := imageKey(filename)
	if err := s.bucket.UploadFile(ctx, key, "image/jpeg", &buf); err != nil {
		return nil, apierr.UpstreamUnavailable(fmt.Errorf("storing image: %w", err))
	}
	s.log.Info("Image stored", "key", key, "source_format", format)
	return &UploadedImage{Key: key, URL: s.bucket.GetPublicURL(key)}, nil
}

// ResolveURL returns a short-lived signed URL for the key, falling back to
// the public URL when signing is not configured.
func (s *imageService) ResolveURL(ctx context.Context, key string) (*UploadedImage, error) {
	if strings.Contains(key, "..") || strings.ContainsRune(key, '\\') {
		return nil, apierr.Validation(fmt.Errorf("malformed image key"))
	}
	url, err := s.bucket.SignedURL(key, signedURLTTL)
	if err != nil {
		s.log.Warn("Signed URL unavailable, using public URL", "key", key, "error", err)
		url = s.bucket.GetPublicURL(key)
	}
	return &UploadedImage{Key: key, URL: url}, nil
}

func downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxImageDimension && h <= maxImageDimension {
		return img
	}
	scale := float64(maxImageDimension) / float64(w)
	if h > w {
		scale = float64(maxImageDimension) / float64(h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func imageKey(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "upload"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
	return fmt.Sprintf("images/%s_%s", uuid.New(), base)
}
