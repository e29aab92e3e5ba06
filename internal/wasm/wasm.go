// Package wasm caches the interactive demo bundles served to the browser.
// Bundles are stored gzip-compressed; the raw upload is normalized once at
// write time and the compressed bytes are shared read-only afterwards.
package wasm

import (
	"bytes"
	"fmt"
	"io"
	"unicode"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"

	"github.com/cyhdev/site/internal/apperr"
	"github.com/cyhdev/site/internal/model"
)

// maxDecompressed caps gunzip expansion of an uploaded bundle.
const maxDecompressed = 64 << 20

// Response headers for the handler layer. Bundles are immutable per
// fingerprint, so aggressive caching is safe.
const (
	ContentTypeWasm = "application/wasm"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentEncoding = "gzip"
	CacheControl    = "public, max-age=31536000, immutable"
)

// Kind narrows what Normalize accepts.
type Kind int

const (
	KindAuto Kind = iota // accept either, detect from content
	KindWasm             // must be a wasm binary
	KindHTML             // must be an HTML document
)

// Bundle is one cached demo module. GzBytes is shared and never mutated.
type Bundle struct {
	GzBytes     []byte
	ContentType string
	Fingerprint string // xxh3-128 of GzBytes, hex; ETag material
}

// Cache is a concurrent map of bundles keyed by module id.
type Cache struct {
	modules *xsync.Map[uuid.UUID, Bundle]
}

// NewCache creates an empty bundle cache.
func NewCache() *Cache {
	return &Cache{modules: xsync.NewMap[uuid.UUID, Bundle]()}
}

// Get returns the bundle for the module id.
func (c *Cache) Get(id uuid.UUID) (Bundle, bool) {
	return c.modules.Load(id)
}

// Upsert stores a bundle built from already-normalized bytes.
func (c *Cache) Upsert(id uuid.UUID, gz []byte, contentType string) Bundle {
	b := Bundle{GzBytes: gz, ContentType: contentType, Fingerprint: Fingerprint(gz)}
	c.modules.Store(id, b)
	return b
}

// Invalidate drops the bundle; returns whether one was cached.
func (c *Cache) Invalidate(id uuid.UUID) bool {
	_, loaded := c.modules.LoadAndDelete(id)
	return loaded
}

// Replace swaps the full cache contents from persisted rows.
func (c *Cache) Replace(rows []model.WasmModuleRow) {
	c.modules.Clear()
	for _, row := range rows {
		c.modules.Store(row.ModuleID, Bundle{
			GzBytes:     row.GzBytes,
			ContentType: row.ContentType,
			Fingerprint: Fingerprint(row.GzBytes),
		})
	}
}

// Len returns the number of cached bundles.
func (c *Cache) Len() int { return c.modules.Size() }

// Fingerprint returns the hex xxh3-128 digest of the compressed bytes.
func Fingerprint(gz []byte) string {
	sum := xxh3.Hash128(gz).Bytes()
	return fmt.Sprintf("%x", sum)
}

// Normalize converts an upload into storage form: gunzip if the input is
// gzipped (bounded expansion), classify as HTML or wasm, then recompress at
// best compression. Returns the gz bytes and the content type.
func Normalize(raw []byte, hint Kind) ([]byte, string, error) {
	plain, err := maybeGunzip(raw)
	if err != nil {
		return nil, "", err
	}

	var contentType string
	switch {
	case looksHTML(plain):
		contentType = ContentTypeHTML
	case looksWasm(plain):
		contentType = ContentTypeWasm
	default:
		return nil, "", apperr.New(apperr.Validation, "wasm: upload is neither a wasm binary nor an HTML document")
	}
	if hint == KindWasm && contentType != ContentTypeWasm {
		return nil, "", apperr.New(apperr.Validation, "wasm: expected a wasm binary")
	}
	if hint == KindHTML && contentType != ContentTypeHTML {
		return nil, "", apperr.New(apperr.Validation, "wasm: expected an HTML document")
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, "", fmt.Errorf("wasm: init gzip writer: %w", err)
	}
	if _, err := zw.Write(plain); err != nil {
		return nil, "", fmt.Errorf("wasm: compress bundle: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("wasm: finish gzip stream: %w", err)
	}
	return buf.Bytes(), contentType, nil
}

func maybeGunzip(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("wasm: open gzip upload: %w", err)
	}
	defer zr.Close()

	plain, err := io.ReadAll(io.LimitReader(zr, maxDecompressed+1))
	if err != nil {
		return nil, fmt.Errorf("wasm: decompress upload: %w", err)
	}
	if len(plain) > maxDecompressed {
		return nil, apperr.New(apperr.Validation,
			fmt.Sprintf("wasm: upload expands past %d bytes", maxDecompressed))
	}
	return plain, nil
}

// looksHTML strips an optional UTF-8 BOM and leading whitespace, then checks
// for a document opener.
func looksHTML(b []byte) bool {
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	b = bytes.TrimLeftFunc(b, unicode.IsSpace)
	if len(b) == 0 {
		return false
	}
	lower := bytes.ToLower(b[:min(len(b), 16)])
	if bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<html")) {
		return true
	}
	return b[0] == '<' && !looksWasm(b)
}

func looksWasm(b []byte) bool {
	return len(b) >= 4 && b[0] == 0 && b[1] == 'a' && b[2] == 's' && b[3] == 'm'
}
