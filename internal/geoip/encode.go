package geoip

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Encode serializes entries into the uncompressed binary layer. Entries are
// sorted by Start first; overlapping or malformed ranges are rejected.
// Used by the blob packaging step and by tests.
func Encode(entries []Entry) ([]byte, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make([]byte, 1+8, 1+8+len(sorted)*entrySize)
	out[0] = formatTag
	binary.LittleEndian.PutUint64(out[1:9], uint64(len(sorted)))

	prevEnd := uint32(0)
	for i, e := range sorted {
		if len(e.CountryCode) != 2 {
			return nil, fmt.Errorf("geoip: entry %d: country code %q must be 2 bytes", i, e.CountryCode)
		}
		if e.End < e.Start {
			return nil, fmt.Errorf("geoip: entry %d: end before start", i)
		}
		if i > 0 && e.Start <= prevEnd {
			return nil, fmt.Errorf("geoip: entry %d: overlaps previous range", i)
		}
		prevEnd = e.End

		var rec [entrySize]byte
		binary.LittleEndian.PutUint32(rec[0:4], e.Start)
		binary.LittleEndian.PutUint32(rec[4:8], e.Start)
		binary.LittleEndian.PutUint32(rec[8:12], e.End)
		copy(rec[12:14], e.CountryCode)
		binary.LittleEndian.PutUint64(rec[14:22], math.Float64bits(e.Latitude))
		binary.LittleEndian.PutUint64(rec[22:30], math.Float64bits(e.Longitude))
		out = append(out, rec[:]...)
	}
	return out, nil
}

// EncodeCompressed is Encode followed by zstd compression, producing a blob
// in the exact form Load consumes.
func EncodeCompressed(entries []Entry) ([]byte, error) {
	raw, err := Encode(entries)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("geoip: init zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}
