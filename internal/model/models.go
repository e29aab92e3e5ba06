// Package model holds the row types shared between the DB layer and the
// in-memory caches. Caches hold copies; the DB remains the authority.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Session is an in-memory login session. Sessions are never persisted.
type Session struct {
	SessionID       uuid.UUID
	UserID          uuid.UUID
	UserName        string
	UserCountry     int32
	UserLanguage    int32
	IsEmailVerified bool
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Expired reports whether the session's deadline has passed.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// PostInfo is the cached summary of a blog post, ordered by CreatedAt
// descending in the display view. Tags are lowercase and deduplicated.
type PostInfo struct {
	PostID    uuid.UUID `db:"post_id"`
	UserID    uuid.UUID `db:"user_id"`
	UserName  string    `db:"user_name"`
	Title     string    `db:"post_title"`
	Summary   string    `db:"post_summary"`
	UpVotes   int64     `db:"up_votes"`
	DownVotes int64     `db:"down_votes"`
	CreatedAt time.Time `db:"post_created_at"`
	UpdatedAt time.Time `db:"post_updated_at"`
	Tags      []string
}

// I18nString is one localized string row.
type I18nString struct {
	ID              int64     `db:"id"`
	Content         string    `db:"content"`
	CreatedAt       time.Time `db:"created_at"`
	CreatedBy       string    `db:"created_by"`
	UpdatedAt       time.Time `db:"updated_at"`
	UpdatedBy       string    `db:"updated_by"`
	LanguageCode    int32     `db:"language_code"`
	CountryCode     int32     `db:"country_code"`
	SubdivisionCode int32     `db:"subdivision_code"` // -1 when absent
	ReferenceKey    string    `db:"reference_key"`
}

// Country is an ISO 3166-1 row plus its subdivisions.
type Country struct {
	Code        int32  `db:"code"`
	Alpha2      string `db:"alpha2"`
	Alpha3      string `db:"alpha3"`
	EnglishName string `db:"english_name"`
	Subdivisions []Subdivision
}

// Subdivision is an ISO 3166-2 row.
type Subdivision struct {
	CountryCode int32  `db:"country_code"`
	Code        string `db:"code"`
	Name        string `db:"name"`
}

// Language is an ISO 639 row.
type Language struct {
	Code        int32  `db:"code"`
	Alpha2      string `db:"alpha2"`
	EnglishName string `db:"english_name"`
}

// Currency is an ISO 4217 row.
type Currency struct {
	Code        int32  `db:"code"`
	Alpha3      string `db:"alpha3"`
	EnglishName string `db:"english_name"`
	MinorUnits  int32  `db:"minor_units"`
}

// WasmModuleRow is the persisted form of a WASM demo bundle: gzip bytes plus
// the normalized content type.
type WasmModuleRow struct {
	ModuleID    uuid.UUID `db:"module_id"`
	Name        string    `db:"name"`
	GzBytes     []byte    `db:"gz_bytes"`
	ContentType string    `db:"content_type"`
	CreatedAt   time.Time `db:"created_at"`
}

// VisitationRow is one geo-located visit record.
type VisitationRow struct {
	Latitude  float64   `db:"latitude"`
	Longitude float64   `db:"longitude"`
	VisitedAt time.Time `db:"visited_at"`
}
