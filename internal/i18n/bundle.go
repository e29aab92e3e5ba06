package i18n

import (
	"encoding/binary"
	"fmt"

	"github.com/cyhdev/site/internal/apperr"
	"github.com/cyhdev/site/internal/model"
)

// Bundle returns the compiled binary bundle for a (country, language) pair.
// A cached bundle is served only while its build time covers every matching
// row's UpdatedAt; otherwise it is rebuilt. No matching rows is NotFound.
func (c *Cache) Bundle(country, language int32) ([]byte, error) {
	key := BundleKey{Country: country, Language: language}

	t := c.snapshot()
	watermark, ok := t.maxUpdated[key]
	if !ok {
		return nil, apperr.New(apperr.NotFound,
			fmt.Sprintf("i18n: no strings for country %d language %d", country, language))
	}
	if b, hit := c.bundles.Get(key); hit && !b.builtAt.Before(watermark) {
		return b.bytes, nil
	}

	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	// Another builder may have finished while this one waited. Re-snapshot:
	// a Replace may also have landed in the meantime.
	t = c.snapshot()
	watermark, ok = t.maxUpdated[key]
	if !ok {
		return nil, apperr.New(apperr.NotFound,
			fmt.Sprintf("i18n: no strings for country %d language %d", country, language))
	}
	if b, hit := c.bundles.Get(key); hit && !b.builtAt.Before(watermark) {
		return b.bytes, nil
	}

	bytes := encodeBundle(t.collect(t.byLocale[key]))
	c.bundles.Set(key, compiledBundle{bytes: bytes, builtAt: c.now()})
	return bytes, nil
}

// encodeBundle serializes rows into the wire format consumed by the client:
// u32 row count, then per row a u64 id, the length-prefixed reference key,
// the length-prefixed content, and an i32 subdivision code (-1 when absent).
// All integers little-endian, lengths u32.
func encodeBundle(rows []model.I18nString) []byte {
	size := 4
	for _, row := range rows {
		size += 8 + 4 + len(row.ReferenceKey) + 4 + len(row.Content) + 4
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rows)))
	for _, row := range rows {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(row.ID))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(row.ReferenceKey)))
		buf = append(buf, row.ReferenceKey...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(row.Content)))
		buf = append(buf, row.Content...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(row.SubdivisionCode))
	}
	return buf
}
