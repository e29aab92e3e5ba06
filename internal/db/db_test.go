package db

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cyhdev/site/internal/apperr"
	"github.com/cyhdev/site/internal/model"
)

// testSchema mirrors the production tables in sqlite form. Tests run against
// a file-backed sqlite DB so pool limits and rebinding get exercised on a
// real driver.
const testSchema = `
CREATE TABLE users (
	user_id           TEXT PRIMARY KEY,
	user_name         TEXT NOT NULL,
	is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMP NOT NULL
);
CREATE TABLE email_verification_tokens (
	token   TEXT PRIMARY KEY,
	user_id TEXT NOT NULL
);
CREATE TABLE password_reset_tokens (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	expires_at TIMESTAMP NOT NULL
);
CREATE TABLE posts (
	post_id         TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	post_title      TEXT NOT NULL,
	post_summary    TEXT NOT NULL,
	up_votes        INTEGER NOT NULL DEFAULT 0,
	down_votes      INTEGER NOT NULL DEFAULT 0,
	post_created_at TIMESTAMP NOT NULL,
	post_updated_at TIMESTAMP NOT NULL
);
CREATE TABLE tags (
	tag_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	tag_name TEXT NOT NULL UNIQUE
);
CREATE TABLE post_tags (
	post_id TEXT NOT NULL,
	tag_id  INTEGER NOT NULL,
	PRIMARY KEY (post_id, tag_id)
);
CREATE TABLE i18n_strings (
	id               INTEGER PRIMARY KEY,
	content          TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL,
	created_by       TEXT NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	updated_by       TEXT NOT NULL,
	language_code    INTEGER NOT NULL,
	country_code     INTEGER NOT NULL,
	subdivision_code INTEGER NOT NULL DEFAULT -1,
	reference_key    TEXT NOT NULL
);
CREATE TABLE iso_country (
	code         INTEGER PRIMARY KEY,
	alpha2       TEXT NOT NULL,
	alpha3       TEXT NOT NULL,
	english_name TEXT NOT NULL
);
CREATE TABLE iso_country_subdivision (
	country_code INTEGER NOT NULL,
	code         TEXT NOT NULL,
	name         TEXT NOT NULL
);
CREATE TABLE iso_language (
	code         INTEGER PRIMARY KEY,
	alpha2       TEXT NOT NULL,
	english_name TEXT NOT NULL
);
CREATE TABLE iso_currency (
	code         INTEGER PRIMARY KEY,
	alpha3       TEXT NOT NULL,
	english_name TEXT NOT NULL,
	minor_units  INTEGER NOT NULL
);
CREATE TABLE wasm_module (
	module_id    TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	gz_bytes     BLOB NOT NULL,
	content_type TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE TABLE visitation_data (
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	visited_at TIMESTAMP NOT NULL
);
`

func openTestPool(t *testing.T) *Pool {
	t.Helper()
	spec := ConnSpec{Driver: DriverSQLite, Host: filepath.Join(t.TempDir(), "test.db")}
	p, err := Open(spec)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	if _, err := p.Exec(context.Background(), testSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return p
}

func insertUser(t *testing.T, p *Pool, id uuid.UUID, name string, verified bool, created time.Time) {
	t.Helper()
	_, err := p.Exec(context.Background(), `
		INSERT INTO users (user_id, user_name, is_email_verified, created_at)
		VALUES (?, ?, ?, ?)`, id, name, verified, created)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

var dbT0 = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func samplePost(userID uuid.UUID, title string, created time.Time, tags ...string) model.PostInfo {
	return model.PostInfo{
		PostID:    uuid.New(),
		UserID:    userID,
		Title:     title,
		Summary:   "summary of " + title,
		CreatedAt: created,
		UpdatedAt: created,
		Tags:      tags,
	}
}

func TestPostRoundTrip(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()
	author := uuid.New()
	insertUser(t, p, author, "cyh", true, dbT0)

	first := samplePost(author, "First post", dbT0, "Go", "go", "intro")
	second := samplePost(author, "Second post", dbT0.Add(time.Hour), "photos")
	for _, post := range []model.PostInfo{first, second} {
		if err := p.InsertPost(ctx, post); err != nil {
			t.Fatalf("InsertPost: %v", err)
		}
	}

	rows, err := p.LoadPosts(ctx)
	if err != nil {
		t.Fatalf("LoadPosts: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// Newest first.
	if rows[0].PostID != second.PostID || rows[1].PostID != first.PostID {
		t.Fatalf("order: %v then %v", rows[0].Title, rows[1].Title)
	}
	if rows[0].UserName != "cyh" {
		t.Fatalf("join missed user_name: %q", rows[0].UserName)
	}
	if !reflect.DeepEqual(rows[1].Tags, []string{"go", "intro"}) {
		t.Fatalf("tags = %v", rows[1].Tags)
	}
}

func TestUpdatePostReplacesTags(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()
	author := uuid.New()
	insertUser(t, p, author, "cyh", true, dbT0)

	post := samplePost(author, "Post", dbT0, "old")
	if err := p.InsertPost(ctx, post); err != nil {
		t.Fatalf("InsertPost: %v", err)
	}

	post.Title = "Post, revised"
	post.Tags = []string{"new", "fresh"}
	post.UpdatedAt = dbT0.Add(time.Hour)
	if err := p.UpdatePost(ctx, post); err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}

	rows, _ := p.LoadPosts(ctx)
	if rows[0].Title != "Post, revised" {
		t.Fatalf("title = %q", rows[0].Title)
	}
	if !reflect.DeepEqual(rows[0].Tags, []string{"new", "fresh"}) {
		t.Fatalf("tags = %v", rows[0].Tags)
	}

	ghost := samplePost(author, "Ghost", dbT0)
	if err := p.UpdatePost(ctx, ghost); err == nil {
		t.Fatal("update of missing post accepted")
	}
}

func TestDeletePost(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()
	author := uuid.New()
	insertUser(t, p, author, "cyh", true, dbT0)

	post := samplePost(author, "Doomed", dbT0, "tag")
	if err := p.InsertPost(ctx, post); err != nil {
		t.Fatalf("InsertPost: %v", err)
	}
	if err := p.DeletePost(ctx, post.PostID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	rows, _ := p.LoadPosts(ctx)
	if len(rows) != 0 {
		t.Fatalf("rows = %d after delete", len(rows))
	}

	var links int
	if err := p.getCtx(ctx, &links, `SELECT COUNT(*) FROM post_tags`); err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 0 {
		t.Fatalf("dangling post_tags rows: %d", links)
	}
}

func TestI18nUpsert(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	row := model.I18nString{
		ID: 7, Content: "Welcome", CreatedAt: dbT0, CreatedBy: "cyh",
		UpdatedAt: dbT0, UpdatedBy: "cyh", LanguageCode: 1033,
		CountryCode: 840, SubdivisionCode: -1, ReferenceKey: "home.title",
	}
	if err := p.UpsertI18nString(ctx, row); err != nil {
		t.Fatalf("UpsertI18nString: %v", err)
	}

	row.Content = "Hello"
	row.UpdatedAt = dbT0.Add(time.Hour)
	row.UpdatedBy = "editor"
	if err := p.UpsertI18nString(ctx, row); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows, err := p.LoadI18nStrings(ctx)
	if err != nil {
		t.Fatalf("LoadI18nStrings: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Content != "Hello" || rows[0].UpdatedBy != "editor" {
		t.Fatalf("row = %+v", rows[0])
	}
	if rows[0].CreatedBy != "cyh" {
		t.Fatal("upsert clobbered created_by")
	}
}

func TestRefDataLoads(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	stmts := []string{
		`INSERT INTO iso_country VALUES (840, 'US', 'USA', 'United States')`,
		`INSERT INTO iso_country VALUES (36, 'AU', 'AUS', 'Australia')`,
		`INSERT INTO iso_country_subdivision VALUES (840, 'US-CA', 'California')`,
		`INSERT INTO iso_language VALUES (1033, 'en', 'English')`,
		`INSERT INTO iso_currency VALUES (840, 'USD', 'US Dollar', 2)`,
	}
	for _, stmt := range stmts {
		if _, err := p.Exec(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	countries, err := p.LoadCountries(ctx)
	if err != nil {
		t.Fatalf("LoadCountries: %v", err)
	}
	if len(countries) != 2 || countries[0].EnglishName != "Australia" {
		t.Fatalf("countries = %+v", countries)
	}
	subs, err := p.LoadSubdivisions(ctx)
	if err != nil || len(subs) != 1 || subs[0].CountryCode != 840 {
		t.Fatalf("subs = %+v err=%v", subs, err)
	}
	langs, err := p.LoadLanguages(ctx)
	if err != nil || len(langs) != 1 || langs[0].Alpha2 != "en" {
		t.Fatalf("langs = %+v err=%v", langs, err)
	}
	currs, err := p.LoadCurrencies(ctx)
	if err != nil || len(currs) != 1 || currs[0].MinorUnits != 2 {
		t.Fatalf("currs = %+v err=%v", currs, err)
	}
}

func TestWasmModuleRoundTrip(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	row := model.WasmModuleRow{
		ModuleID:    uuid.New(),
		Name:        "demo",
		GzBytes:     []byte{0x1f, 0x8b, 1, 2, 3},
		ContentType: "application/wasm",
		CreatedAt:   dbT0,
	}
	if err := p.UpsertWasmModule(ctx, row); err != nil {
		t.Fatalf("UpsertWasmModule: %v", err)
	}

	got, err := p.LoadWasmModule(ctx, row.ModuleID)
	if err != nil {
		t.Fatalf("LoadWasmModule: %v", err)
	}
	if got.Name != "demo" || !reflect.DeepEqual(got.GzBytes, row.GzBytes) {
		t.Fatalf("row = %+v", got)
	}

	row.GzBytes = []byte{9, 9}
	if err := p.UpsertWasmModule(ctx, row); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	all, err := p.LoadWasmModules(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("all = %+v err=%v", all, err)
	}

	if err := p.DeleteWasmModule(ctx, row.ModuleID); err != nil {
		t.Fatalf("DeleteWasmModule: %v", err)
	}
	if _, err := p.LoadWasmModule(ctx, row.ModuleID); apperr.KindOf(apperr.FromDB("load wasm module", err)) != apperr.NotFound {
		t.Fatalf("want NotFound after delete, got %v", err)
	}
}

func TestVisitationRoundTrip(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := p.InsertVisitation(ctx, 48.85, 2.35, dbT0.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("InsertVisitation: %v", err)
		}
	}
	rows, err := p.LoadVisitations(ctx)
	if err != nil {
		t.Fatalf("LoadVisitations: %v", err)
	}
	if len(rows) != 3 || rows[0].Latitude != 48.85 {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestPurgeUnverifiedUsers(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	stale := uuid.New()
	fresh := uuid.New()
	verified := uuid.New()
	insertUser(t, p, stale, "stale", false, dbT0.Add(-48*time.Hour))
	insertUser(t, p, fresh, "fresh", false, dbT0.Add(-time.Hour))
	insertUser(t, p, verified, "ok", true, dbT0.Add(-48*time.Hour))

	if _, err := p.Exec(ctx, `
		INSERT INTO email_verification_tokens (token, user_id) VALUES (?, ?)`,
		"tok-stale", stale); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	n, err := p.PurgeUnverifiedUsers(ctx, dbT0.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeUnverifiedUsers: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}

	var users, tokens int
	p.getCtx(ctx, &users, `SELECT COUNT(*) FROM users`)
	p.getCtx(ctx, &tokens, `SELECT COUNT(*) FROM email_verification_tokens`)
	if users != 2 || tokens != 0 {
		t.Fatalf("users=%d tokens=%d, want 2/0", users, tokens)
	}
}

// A failure on the user delete must roll back the token delete: tokens are
// only removed together with their users.
func TestPurgeUnverifiedUsersAtomic(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	stale := uuid.New()
	insertUser(t, p, stale, "stale", false, dbT0.Add(-48*time.Hour))
	if _, err := p.Exec(ctx, `
		INSERT INTO email_verification_tokens (token, user_id) VALUES (?, ?)`,
		"tok-stale", stale); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	if _, err := p.Exec(ctx, `
		CREATE TRIGGER block_user_delete BEFORE DELETE ON users
		BEGIN SELECT RAISE(ABORT, 'users frozen'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := p.PurgeUnverifiedUsers(ctx, dbT0.Add(-24*time.Hour)); err == nil {
		t.Fatal("expected purge to fail while user deletes are blocked")
	}
	var users, tokens int
	p.getCtx(ctx, &users, `SELECT COUNT(*) FROM users`)
	p.getCtx(ctx, &tokens, `SELECT COUNT(*) FROM email_verification_tokens`)
	if users != 1 || tokens != 1 {
		t.Fatalf("users=%d tokens=%d after failed purge, want 1/1", users, tokens)
	}

	if _, err := p.Exec(ctx, `DROP TRIGGER block_user_delete`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	n, err := p.PurgeUnverifiedUsers(ctx, dbT0.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("purge after unblock: n=%d err=%v", n, err)
	}
}

func TestPurgeExpiredPasswordResets(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	seed := `INSERT INTO password_reset_tokens (token, user_id, expires_at) VALUES (?, ?, ?)`
	p.Exec(ctx, seed, "expired", uuid.New(), dbT0.Add(-time.Hour))
	p.Exec(ctx, seed, "live", uuid.New(), dbT0.Add(time.Hour))

	n, err := p.PurgeExpiredPasswordResets(ctx, dbT0)
	if err != nil {
		t.Fatalf("PurgeExpiredPasswordResets: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
}

func TestOpenRejectsUnbundledDriver(t *testing.T) {
	spec, err := ParseURL("mysql://root@db.host/app")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	if _, err := Open(spec); err == nil {
		t.Fatal("mysql open should fail: driver parses but is not bundled")
	}
}
