package constants

// DefaultMimeType is the fallback MIME type for unknown payloads
const DefaultMimeType = "application/octet-stream"

// Default file extensions per media kind when the MIME type gives none
const (
	DefaultImageExtension    = "jpg"
	DefaultVideoExtension    = "mp4"
	DefaultAudioExtension    = "ogg"
	DefaultDocumentExtension = "bin"
)

// MimeTypeToExtension maps MIME types to their primary file extensions
var MimeTypeToExtension = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",

	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/mov":       "mov",
	"video/x-msvideo": "avi",

	"application/pdf":    "pdf",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"text/plain":      "txt",
	"application/rtf": "rtf",

	"audio/ogg":  "ogg",
	"audio/mpeg": "mp3",
	"audio/mp3":  "mp3",
	"audio/wav":  "wav",
	"audio/aac":  "aac",
	"audio/mp4":  "m4a",
	"audio/m4a":  "m4a",
}

// ThumbnailMimeTypes are the image formats the pipeline can decode
// for dimension and thumbnail enrichment.
var ThumbnailMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}
