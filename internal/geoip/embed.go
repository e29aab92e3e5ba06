package geoip

import _ "embed"

// The production blob is baked into the binary at build time; the packaging
// step regenerates geoip.db.zst from the upstream range dataset via
// EncodeCompressed.
//
//go:embed geoip.db.zst
var embeddedBlob []byte

// LoadEmbedded decodes the blob compiled into the binary.
func LoadEmbedded() (*DB, error) {
	return Load(embeddedBlob)
}
