// Package geoip provides IP-to-location lookup over an immutable range
// database decoded once at startup from a zstd-compressed binary blob.
package geoip

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net/netip"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// formatTag identifies the supported blob encoding version.
const formatTag = 0x01

// entrySize is the fixed wire size of one range entry:
// u32 key + u32 start + u32 end + 2-byte country + f64 lat + f64 lon.
const entrySize = 4 + 4 + 4 + 2 + 8 + 8

// Entry is one contiguous IP range mapped to a location.
type Entry struct {
	Start       uint32
	End         uint32
	CountryCode string // ISO 3166-1 alpha-2, uppercase
	Latitude    float64
	Longitude   float64
}

// Location is the lookup result.
type Location struct {
	CountryCode string
	Latitude    float64
	Longitude   float64
}

// DB is the loaded range database. Read-only after Load; safe for
// unsynchronized concurrent readers.
type DB struct {
	entries []Entry // sorted ascending by Start, non-overlapping
}

// Load decompresses and decodes a blob into a DB. Any failure here is fatal
// to server initialization; there is no partial load.
func Load(blob []byte) (*DB, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("geoip: init zstd: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("geoip: decompress blob: %w", err)
	}
	entries, err := decodeEntries(raw)
	if err != nil {
		return nil, err
	}
	return &DB{entries: entries}, nil
}

// LoadReader is Load over a stream, for blobs read from disk.
func LoadReader(r io.Reader) (*DB, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("geoip: read blob: %w", err)
	}
	return Load(blob)
}

func decodeEntries(raw []byte) ([]Entry, error) {
	if len(raw) < 1+8 {
		return nil, fmt.Errorf("geoip: blob truncated (%d bytes)", len(raw))
	}
	if raw[0] != formatTag {
		return nil, fmt.Errorf("geoip: unknown format tag 0x%02x", raw[0])
	}
	count := binary.LittleEndian.Uint64(raw[1:9])
	body := raw[9:]
	if uint64(len(body)) != count*entrySize {
		return nil, fmt.Errorf("geoip: body size %d does not match %d entries", len(body), count)
	}

	entries := make([]Entry, 0, count)
	prevStart := uint32(0)
	prevEnd := uint32(0)
	for i := uint64(0); i < count; i++ {
		off := i * entrySize
		rec := body[off : off+entrySize]
		key := binary.LittleEndian.Uint32(rec[0:4])
		e := Entry{
			Start:       binary.LittleEndian.Uint32(rec[4:8]),
			End:         binary.LittleEndian.Uint32(rec[8:12]),
			CountryCode: string(rec[12:14]),
			Latitude:    float64FromBits(rec[14:22]),
			Longitude:   float64FromBits(rec[22:30]),
		}
		if key != e.Start {
			return nil, fmt.Errorf("geoip: entry %d: key %d != start %d", i, key, e.Start)
		}
		if e.End < e.Start {
			return nil, fmt.Errorf("geoip: entry %d: end %d before start %d", i, e.End, e.Start)
		}
		if i > 0 && (e.Start <= prevStart || e.Start <= prevEnd) {
			return nil, fmt.Errorf("geoip: entry %d: ranges not ordered and disjoint", i)
		}
		prevStart, prevEnd = e.Start, e.End
		entries = append(entries, e)
	}
	return entries, nil
}

// Len returns the number of range entries loaded.
func (db *DB) Len() int { return len(db.entries) }

// Lookup returns the location whose range contains ip. IPv6 addresses are
// supported in their IPv4-mapped form only; other IPv6 addresses miss.
func (db *DB) Lookup(ip netip.Addr) (Location, bool) {
	n, ok := ipv4Numeric(ip)
	if !ok {
		return Location{}, false
	}
	// Greatest entry with Start <= n.
	idx := sort.Search(len(db.entries), func(i int) bool {
		return db.entries[i].Start > n
	})
	if idx == 0 {
		return Location{}, false
	}
	e := db.entries[idx-1]
	if e.End < n {
		return Location{}, false
	}
	return Location{CountryCode: e.CountryCode, Latitude: e.Latitude, Longitude: e.Longitude}, true
}

// CountryOf is Lookup reduced to the country code, "" on miss.
func (db *DB) CountryOf(ip netip.Addr) string {
	loc, ok := db.Lookup(ip)
	if !ok {
		return ""
	}
	return loc.CountryCode
}

func ipv4Numeric(ip netip.Addr) (uint32, bool) {
	ip = ip.Unmap()
	if !ip.Is4() {
		return 0, false
	}
	b := ip.As4()
	return binary.BigEndian.Uint32(b[:]), true
}

func float64FromBits(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
