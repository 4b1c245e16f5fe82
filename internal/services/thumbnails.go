package services

import (
	"bytes"
	"context"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/cottageplayer/backend/internal/models"
	"github.com/cottageplayer/backend/pkg/logger"
)

const (
	thumbnailSuffix  = ".thumb.jpg"
	thumbnailMaxDim  = 400
	thumbnailQuality = 85
)

// audioPlaceholderColor fills the stand-in tile for audio uploads, which have
// no frame to preview.
var audioPlaceholderColor = color.NRGBA{R: 44, G: 62, B: 80, A: 255}

// renderThumbnail derives and stores the preview image for a fresh upload,
// returning the thumbnail's object name. Generation is best-effort: any
// failure leaves the media without a thumbnail and never fails the upload.
func (s *LibraryService) renderThumbnail(ctx context.Context, objectName string, kind models.MediaKind, source []byte) string {
	img, err := buildThumbnailImage(kind, source)
	if err != nil {
		logger.Warn("thumbnail_render_failed", map[string]interface{}{
			"object_name": objectName,
			"kind":        string(kind),
			"error":       err.Error(),
		})
		return ""
	}
	if img == nil {
		return ""
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		logger.Warn("thumbnail_encode_failed", map[string]interface{}{
			"object_name": objectName,
			"error":       err.Error(),
		})
		return ""
	}

	thumbName := objectName + thumbnailSuffix
	if err := s.Blobs.Put(ctx, thumbName, &buf, int64(buf.Len()), "image/jpeg"); err != nil {
		return ""
	}
	return thumbName
}

// buildThumbnailImage maps a media kind to its preview: images and gifs are
// fit into the thumbnail box, audio gets a flat placeholder tile. Video would
// need a frame decoder the service does not carry, so it yields no thumbnail.
func buildThumbnailImage(kind models.MediaKind, source []byte) (image.Image, error) {
	switch kind {
	case models.MediaKindImage, models.MediaKindGIF:
		img, err := imaging.Decode(bytes.NewReader(source))
		if err != nil {
			return nil, err
		}
		return imaging.Fit(img, thumbnailMaxDim, thumbnailMaxDim, imaging.Lanczos), nil
	case models.MediaKindAudio:
		return imaging.New(thumbnailMaxDim, thumbnailMaxDim, audioPlaceholderColor), nil
	default:
		return nil, nil
	}
}
