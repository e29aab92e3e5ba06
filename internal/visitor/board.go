// Package visitor aggregates geo-located visit counts for the world-map
// widget. Counts are keyed by exact coordinate pair.
package visitor

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/cyhdev/site/internal/model"
)

// Coordinate packs a (lat, lon) pair into a fixed map key: big-endian f64
// bits, latitude first.
type Coordinate [16]byte

// Coord builds the key for a coordinate pair.
func Coord(lat, lon float64) Coordinate {
	var c Coordinate
	binary.BigEndian.PutUint64(c[0:8], math.Float64bits(lat))
	binary.BigEndian.PutUint64(c[8:16], math.Float64bits(lon))
	return c
}

// Lat returns the latitude component.
func (c Coordinate) Lat() float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(c[0:8]))
}

// Lon returns the longitude component.
func (c Coordinate) Lon() float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(c[8:16]))
}

// Point is one snapshot entry.
type Point struct {
	Latitude  float64
	Longitude float64
	Count     uint64
}

// Board is the concurrent visit counter map.
type Board struct {
	counts *xsync.Map[Coordinate, *atomic.Uint64]
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{counts: xsync.NewMap[Coordinate, *atomic.Uint64]()}
}

// Record counts one visit at the coordinate.
func (b *Board) Record(lat, lon float64) {
	b.add(Coord(lat, lon), 1)
}

func (b *Board) add(key Coordinate, n uint64) {
	counter, _ := b.counts.LoadOrCompute(key, func() (*atomic.Uint64, bool) {
		return new(atomic.Uint64), false
	})
	counter.Add(n)
}

// Replace rebuilds the board from persisted rows. Rows sharing a coordinate
// accumulate into one counter.
func (b *Board) Replace(rows []model.VisitationRow) {
	b.counts.Clear()
	for _, row := range rows {
		b.add(Coord(row.Latitude, row.Longitude), 1)
	}
}

// Snapshot returns a point-in-time copy of the counters. Entries with a NaN
// component are dropped; they cannot be placed on the map.
func (b *Board) Snapshot() []Point {
	out := make([]Point, 0, b.counts.Size())
	b.counts.Range(func(key Coordinate, counter *atomic.Uint64) bool {
		lat, lon := key.Lat(), key.Lon()
		if math.IsNaN(lat) || math.IsNaN(lon) {
			return true
		}
		out = append(out, Point{Latitude: lat, Longitude: lon, Count: counter.Load()})
		return true
	})
	return out
}

// Len returns the number of distinct coordinates.
func (b *Board) Len() int { return b.counts.Size() }
