package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"chatsink/internal/constants"
	"chatsink/internal/errors"
	"chatsink/internal/models"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Pipeline turns a validated inbound event into a message ready for
// persistence: binary payloads are decoded and written to disk,
// structured payloads are parsed into metadata, text is sanitized.
// The resulting message carries no chat reference; the caller owns
// chat resolution.
type Pipeline struct {
	cfg           models.MediaConfig
	logger        *logrus.Logger
	probeDuration DurationProber
}

func NewPipeline(cfg models.MediaConfig, logger *logrus.Logger) (*Pipeline, error) {
	if cfg.StorageDir == "" {
		return nil, errors.NewConfigError("media.storageDir", "media storage directory is required")
	}
	if err := os.MkdirAll(cfg.StorageDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create media storage dir: %w", err)
	}
	return &Pipeline{cfg: cfg, logger: logger, probeDuration: probeWAVDuration}, nil
}

// Dispatch routes the event by type and returns the constructed
// message. Enrichment (dimensions, thumbnails) is advisory; decoding
// and persisting the payload is not.
func (p *Pipeline) Dispatch(ctx context.Context, event *models.InboundEvent, ingestedAt time.Time) (*models.Message, error) {
	msgType := models.MessageType(event.Type)
	msg := &models.Message{
		Sender:      event.Sender,
		Type:        msgType,
		Content:     SanitizeText(event.Content),
		TransportID: event.MessageID,
		SendingTime: event.EffectiveSendingTime(ingestedAt),
		Status:      models.MessageStatusPending,
	}

	switch {
	case models.BinaryTypes[msgType]:
		if err := p.handleBinary(ctx, event, msg); err != nil {
			return nil, err
		}
	case msgType == models.MessageTypeLocation:
		var payload models.LocationPayload
		if err := json.Unmarshal([]byte(event.Content), &payload); err != nil {
			return nil, errors.NewValidationError("content", "", fmt.Sprintf("malformed location payload: %v", err))
		}
		msg.Content = ""
		msg.Metadata = map[string]interface{}{"location": payload}
	case msgType == models.MessageTypeContact:
		var payload models.ContactPayload
		if err := json.Unmarshal([]byte(event.Content), &payload); err != nil {
			return nil, errors.NewValidationError("content", "", fmt.Sprintf("malformed contact payload: %v", err))
		}
		msg.Content = ""
		msg.Metadata = map[string]interface{}{"contact": payload}
	case msgType == models.MessageTypeText:
		// Sanitized content is the whole payload.
	default:
		// Unknown types are persisted, never dropped; keep the
		// original type string for downstream consumers.
		msg.Type = models.MessageTypeUnknown
		msg.Metadata = map[string]interface{}{"original_type": event.Type}
	}

	return msg, nil
}

func (p *Pipeline) handleBinary(ctx context.Context, event *models.InboundEvent, msg *models.Message) error {
	data, err := base64.StdEncoding.DecodeString(event.Media)
	if err != nil {
		return errors.NewMediaDecodeError(string(msg.Type), err)
	}

	if limit := p.sizeLimitBytes(msg.Type); limit > 0 && int64(len(data)) > limit {
		return errors.NewValidationError("media", "",
			fmt.Sprintf("%s payload exceeds size limit (%d > %d bytes)", msg.Type, len(data), limit))
	}

	path, err := p.storePayload(msg.Type, event.MimeType, data)
	if err != nil {
		return err
	}

	msg.MediaPath = &path
	msg.MimeType = event.MimeType
	msg.Metadata = map[string]interface{}{
		"file_size":          len(data),
		"original_mime_type": event.MimeType,
	}

	switch msg.Type {
	case models.MessageTypeImage:
		p.enrichImage(ctx, msg, data)
	case models.MessageTypeAudio, models.MessageTypeVideo:
		p.enrichDuration(msg, data)
	}

	return nil
}

// enrichDuration records playback length when the container format
// allows a cheap probe. Like the image path, failure degrades to a
// message without the extra metadata.
func (p *Pipeline) enrichDuration(msg *models.Message, data []byte) {
	d, ok := p.probeDuration(data, msg.MimeType)
	if !ok {
		p.logger.WithField("mime_type", msg.MimeType).
			Debug("Duration unavailable for media payload")
		return
	}
	msg.Metadata["duration_ms"] = d.Milliseconds()
}

// storePayload writes decoded media under a date/uuid path so
// concurrent writers never collide without a central sequence.
func (p *Pipeline) storePayload(kind models.MessageType, mimeType string, data []byte) (string, error) {
	name := uuid.New().String() + "." + extensionFor(kind, mimeType)
	dir := filepath.Join(p.cfg.StorageDir, string(kind), time.Now().UTC().Format("2006-01-02"))

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", errors.NewStorageError("create media dir", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", errors.NewStorageError("persist media", err)
	}
	return path, nil
}

// enrichImage records dimensions and a downscaled thumbnail. Failures
// here degrade to a message without enrichment.
func (p *Pipeline) enrichImage(ctx context.Context, msg *models.Message, data []byte) {
	if !constants.ThumbnailMimeTypes[msg.MimeType] {
		return
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		p.logger.WithError(err).WithField("mime_type", msg.MimeType).
			Warn("Failed to decode image for enrichment")
		return
	}

	bounds := img.Bounds()
	msg.Metadata["width"] = bounds.Dx()
	msg.Metadata["height"] = bounds.Dy()

	width := p.cfg.ThumbnailWidth
	if width <= 0 {
		width = constants.DefaultThumbnailWidth
	}
	thumb := imaging.Resize(img, width, 0, imaging.Lanczos)

	dir := filepath.Join(p.cfg.StorageDir, "thumbnails", time.Now().UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0750); err != nil {
		p.logger.WithError(err).Warn("Failed to create thumbnail dir")
		return
	}

	path := filepath.Join(dir, uuid.New().String()+".jpg")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to create thumbnail file")
		return
	}
	defer func() { _ = f.Close() }()

	if err := imaging.Encode(f, thumb, imaging.JPEG, imaging.JPEGQuality(jpeg.DefaultQuality)); err != nil {
		p.logger.WithError(err).Warn("Failed to encode thumbnail")
		_ = os.Remove(path)
		return
	}

	msg.Metadata["thumbnail_path"] = path
}

func (p *Pipeline) sizeLimitBytes(kind models.MessageType) int64 {
	var mb int
	switch kind {
	case models.MessageTypeImage:
		mb = p.cfg.MaxSizeMB.ImageMB
	case models.MessageTypeVideo:
		mb = p.cfg.MaxSizeMB.VideoMB
	case models.MessageTypeAudio:
		mb = p.cfg.MaxSizeMB.AudioMB
	case models.MessageTypeDocument:
		mb = p.cfg.MaxSizeMB.DocumentMB
	}
	return int64(mb) * 1024 * 1024
}

func extensionFor(kind models.MessageType, mimeType string) string {
	if ext, ok := constants.MimeTypeToExtension[mimeType]; ok {
		return ext
	}
	switch kind {
	case models.MessageTypeImage:
		return constants.DefaultImageExtension
	case models.MessageTypeVideo:
		return constants.DefaultVideoExtension
	case models.MessageTypeAudio:
		return constants.DefaultAudioExtension
	default:
		return constants.DefaultDocumentExtension
	}
}
