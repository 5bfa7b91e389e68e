// Package loader fetches article URLs and extracts their readable text.
package loader

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"newslens/internal/domain"
	"newslens/internal/logging"
)

var (
	errNoText          = errors.New("no text content")
	errTooLarge        = errors.New("response body too large")
	errUnsupportedType = errors.New("unsupported content type")
)

// Config configures the web loader.
type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// Web loads documents over HTTP(S).
type Web struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	logger    *zap.Logger
}

// NewWeb creates a web loader.
func NewWeb(cfg Config, logger *zap.Logger) *Web {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Web{
		client:    &http.Client{Timeout: timeout},
		maxBytes:  maxBytes,
		userAgent: cfg.UserAgent,
		logger:    logging.OrNop(logger).Named("loader"),
	}
}

// Load fetches every URL in order. A URL that fails yields a *domain.LoadError
// and is left out of the returned documents; the others are still loaded.
func (w *Web) Load(ctx context.Context, urls []string) ([]domain.Document, []error) {
	var (
		docs []domain.Document
		errs []error
	)
	for _, raw := range urls {
		doc, err := w.fetch(ctx, raw)
		if err != nil {
			w.logger.Warn("url failed", zap.String("url", raw), zap.Error(err))
			errs = append(errs, &domain.LoadError{URL: raw, Err: err})
			continue
		}
		w.logger.Info("url loaded",
			zap.String("url", raw),
			zap.String("title", doc.Title),
			zap.Int("chars", len(doc.Content)),
		)
		docs = append(docs, doc)
	}
	return docs, errs
}

func (w *Web) fetch(ctx context.Context, raw string) (domain.Document, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return domain.Document{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.Document{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return domain.Document{}, errors.New("missing host")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Document{}, err
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := w.client.Do(req)
	if err != nil {
		return domain.Document{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.Document{}, fmt.Errorf("GET %s failed: %s", u, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, w.maxBytes+1))
	if err != nil {
		return domain.Document{}, err
	}
	if int64(len(body)) > w.maxBytes {
		return domain.Document{}, errTooLarge
	}

	title, text, err := extract(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return domain.Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return domain.Document{}, errNoText
	}
	return domain.Document{
		ID:      hashString(raw),
		Source:  raw,
		Title:   title,
		Content: text,
	}, nil
}

func extract(contentType string, body []byte) (title, text string, err error) {
	mediaType := ""
	if contentType != "" {
		mediaType, _, _ = mime.ParseMediaType(contentType)
	}
	if mediaType == "" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return extractHTML(bytes.NewReader(body))
	case strings.HasPrefix(mediaType, "text/"):
		return "", normalizePlain(string(body)), nil
	default:
		return "", "", fmt.Errorf("%w: %s", errUnsupportedType, mediaType)
	}
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
