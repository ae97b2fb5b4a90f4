package onebot

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"onebridge/pkg/logger"
)

const (
	// Text attachments at or under this size are inlined as UTF-8 content.
	inlineTextLimit = 100 * 1024

	audioPollAttempts = 5
	audioPollDelay    = 200 * time.Millisecond
)

// Artifact is a locally addressable form of one media reference. Exactly
// one of DataURL/InlineText/Placeholder is the useful payload depending on
// how materialization went; Path is set when bytes were written to disk.
type Artifact struct {
	Path        string
	DataURL     string
	MIME        string
	Size        int64
	InlineText  string
	Placeholder string
}

// Materializer turns media references (remote URL, local path, file:// URI)
// into artifacts the host agent can consume. Every failure is soft: logged,
// and the item is omitted or replaced with a placeholder.
type Materializer struct {
	client *http.Client
	tmpDir string

	// test seams
	sleep  func(time.Duration)
	statFn func(string) (os.FileInfo, error)
	readFn func(string) ([]byte, error)
}

func NewMaterializer() *Materializer {
	return &Materializer{
		client: &http.Client{Timeout: 30 * time.Second},
		tmpDir: os.TempDir(),
		sleep:  time.Sleep,
		statFn: os.Stat,
		readFn: os.ReadFile,
	}
}

// Materialize resolves one extracted media item. ok is false when the item
// should simply be omitted.
func (m *Materializer) Materialize(ctx context.Context, em ExtractedMedia) (*Artifact, bool) {
	ref := em.URL
	if ref == "" {
		ref = em.File
	}
	if ref == "" {
		return nil, false
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return m.fetchRemote(ctx, ref, em.Kind)
	}
	if strings.HasPrefix(ref, "base64://") {
		return m.decodeInline(ref, em.Kind)
	}
	return m.materializeLocal(ref, em)
}

func (m *Materializer) fetchRemote(ctx context.Context, rawURL, kind string) (*Artifact, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		logger.WarnCF("onebot", "media fetch request failed", map[string]interface{}{
			"url": rawURL, logger.FieldError: err.Error(),
		})
		return nil, false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		logger.WarnCF("onebot", "media fetch failed", map[string]interface{}{
			"url": rawURL, logger.FieldError: err.Error(),
		})
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.WarnCF("onebot", "media fetch non-success status", map[string]interface{}{
			"url": rawURL, "status": resp.StatusCode,
		})
		return nil, false
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.WarnCF("onebot", "media fetch read failed", map[string]interface{}{
			"url": rawURL, logger.FieldError: err.Error(),
		})
		return nil, false
	}

	mimeType := contentTypeMIME(resp.Header.Get("Content-Type"))
	if mimeType == "" {
		mimeType = defaultMIMEForKind(kind)
	}

	f, err := os.CreateTemp(m.tmpDir, "onebridge-*"+extForMIME(mimeType))
	if err != nil {
		logger.WarnCF("onebot", "media temp file failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		return nil, false
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, false
	}
	f.Close()

	return &Artifact{
		Path:    f.Name(),
		DataURL: dataURL(mimeType, data),
		MIME:    mimeType,
		Size:    int64(len(data)),
	}, true
}

func (m *Materializer) decodeInline(ref, kind string) (*Artifact, bool) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ref, "base64://"))
	if err != nil {
		logger.WarnCF("onebot", "inline media decode failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		return nil, false
	}
	mimeType := defaultMIMEForKind(kind)
	return &Artifact{
		DataURL: dataURL(mimeType, data),
		MIME:    mimeType,
		Size:    int64(len(data)),
	}, true
}

func (m *Materializer) materializeLocal(ref string, em ExtractedMedia) (*Artifact, bool) {
	path := NormalizeLocalPath(ref)

	if em.Kind == "audio" {
		resolved, ok := m.ResolveAudioPath(path)
		if !ok {
			return &Artifact{Placeholder: "[语音消息暂不可用]"}, true
		}
		path = resolved
	}

	info, err := m.statFn(path)
	if err != nil {
		logger.WarnCF("onebot", "local media missing", map[string]interface{}{
			"path": path, logger.FieldError: err.Error(),
		})
		return nil, false
	}

	if em.Kind == "file" {
		return m.materializeAttachment(path, em, info.Size())
	}

	data, err := m.readFn(path)
	if err != nil {
		logger.WarnCF("onebot", "local media read failed", map[string]interface{}{
			"path": path, logger.FieldError: err.Error(),
		})
		return nil, false
	}
	mimeType := mimeForPath(path, em.Kind)
	return &Artifact{
		Path:    path,
		DataURL: dataURL(mimeType, data),
		MIME:    mimeType,
		Size:    int64(len(data)),
	}, true
}

// materializeAttachment inlines small text files and summarizes everything
// else as a placeholder.
func (m *Materializer) materializeAttachment(path string, em ExtractedMedia, size int64) (*Artifact, bool) {
	name := em.Name
	if name == "" {
		name = filepath.Base(path)
	}
	mimeType := mimeForPath(path, "file")

	if isTextLike(path, mimeType) && size <= inlineTextLimit {
		data, err := m.readFn(path)
		if err == nil && utf8.Valid(data) {
			return &Artifact{
				Path:       path,
				MIME:       mimeType,
				Size:       size,
				InlineText: string(data),
			}, true
		}
	}
	return &Artifact{
		Path:        path,
		MIME:        mimeType,
		Size:        size,
		Placeholder: fmt.Sprintf("[文件:%s %dB %s]", name, size, mimeType),
	}, true
}

// ResolveAudioPath handles the gateway writing the voice file after the
// event is already dispatched: try a URL-decoded form once, then poll
// existence before giving up.
func (m *Materializer) ResolveAudioPath(path string) (string, bool) {
	candidates := []string{path}
	if decoded, err := url.PathUnescape(path); err == nil && decoded != path {
		candidates = append(candidates, decoded)
	}
	for attempt := 0; attempt < audioPollAttempts; attempt++ {
		for _, c := range candidates {
			if _, err := m.statFn(c); err == nil {
				return c, true
			}
		}
		if attempt < audioPollAttempts-1 {
			m.sleep(audioPollDelay)
		}
	}
	logger.WarnCF("onebot", "voice file never appeared", map[string]interface{}{"path": path})
	return "", false
}

// NormalizeLocalPath strips a file:// scheme and converts Windows-style
// separators, so "file:///C:/a\b.jpg" and "/tmp/a.jpg" both come out as
// usable paths.
func NormalizeLocalPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "file://") {
		p = strings.TrimPrefix(p, "file://")
	}
	// file:///C:/x parses to /C:/x; drop the leading slash before the drive.
	if len(p) >= 3 && p[0] == '/' && isDriveLetter(p[1]) && p[2] == ':' {
		p = p[1:]
	}
	return p
}

func isDriveLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

var audioMIMEs = map[string]string{
	".silk": "audio/silk",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".wav":  "audio/wav",
}

var extMIMEs = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".json": "application/json",
	".csv":  "text/csv",
	".html": "text/html",
	".xml":  "text/xml",
}

var mimeExts = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"audio/silk":      ".silk",
	"audio/mpeg":      ".mp3",
	"audio/ogg":       ".ogg",
	"audio/wav":       ".wav",
	"audio/amr":       ".amr",
	"text/plain":      ".txt",
	"application/pdf": ".pdf",
}

// AudioMIME infers a voice MIME type from the file extension, defaulting
// to the gateway's native amr.
func AudioMIME(path string) string {
	if m, ok := audioMIMEs[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "audio/amr"
}

func mimeForPath(path, kind string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if kind == "audio" {
		return AudioMIME(path)
	}
	if m, ok := extMIMEs[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		return contentTypeMIME(m)
	}
	return defaultMIMEForKind(kind)
}

func defaultMIMEForKind(kind string) string {
	switch kind {
	case "video":
		return "video/mp4"
	case "audio":
		return "audio/amr"
	case "file":
		return "application/octet-stream"
	default:
		return "image/jpeg"
	}
}

func extForMIME(m string) string {
	if ext, ok := mimeExts[m]; ok {
		return ext
	}
	return ".bin"
}

func contentTypeMIME(ct string) string {
	if ct == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		return parsed
	}
	return strings.TrimSpace(strings.Split(ct, ";")[0])
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var textLikeExts = map[string]struct{}{
	".txt": {}, ".md": {}, ".log": {}, ".json": {}, ".csv": {}, ".xml": {},
	".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {}, ".html": {}, ".go": {},
	".py": {}, ".js": {}, ".ts": {}, ".sh": {}, ".sql": {},
}

func isTextLike(path, mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	_, ok := textLikeExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// KindForURL guesses a send kind (image/video/audio) from a media
// reference's extension, defaulting to image when ambiguous.
func KindForURL(ref string) string {
	ext := strings.ToLower(filepath.Ext(NormalizeLocalPath(strings.Split(ref, "?")[0])))
	if _, ok := audioMIMEs[ext]; ok || ext == ".amr" {
		return "audio"
	}
	switch ext {
	case ".mp4", ".mov", ".webm", ".avi", ".mkv":
		return "video"
	default:
		return "image"
	}
}
