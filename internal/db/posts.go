package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cyhdev/site/internal/model"
	"github.com/cyhdev/site/internal/posts"
)

const postColumns = `p.post_id, p.user_id, u.user_name, p.post_title, p.post_summary,
	p.up_votes, p.down_votes, p.post_created_at, p.post_updated_at`

// LoadPosts returns all post summaries ordered by creation time descending,
// with tags attached (lowercased, deduplicated, insertion order).
func (p *Pool) LoadPosts(ctx context.Context) ([]model.PostInfo, error) {
	var posts []model.PostInfo
	err := p.selectCtx(ctx, &posts, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN users u ON u.user_id = p.user_id
		ORDER BY p.post_created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("db: load posts: %w", err)
	}
	if len(posts) == 0 {
		return posts, nil
	}

	type tagRow struct {
		PostID  uuid.UUID `db:"post_id"`
		TagName string    `db:"tag_name"`
	}
	var tagRows []tagRow
	err = p.selectCtx(ctx, &tagRows, `
		SELECT pt.post_id, t.tag_name
		FROM post_tags pt
		JOIN tags t ON t.tag_id = pt.tag_id
		ORDER BY pt.post_id, pt.tag_id`)
	if err != nil {
		return nil, fmt.Errorf("db: load post tags: %w", err)
	}

	byPost := make(map[uuid.UUID][]string, len(posts))
	for _, tr := range tagRows {
		byPost[tr.PostID] = appendTag(byPost[tr.PostID], tr.TagName)
	}
	for i := range posts {
		posts[i].Tags = byPost[posts[i].PostID]
	}
	return posts, nil
}

// InsertPost writes a post and its tags in one transaction. Tags are
// normalized to lowercase and deduplicated before writing.
func (p *Pool) InsertPost(ctx context.Context, post model.PostInfo) error {
	tags := posts.NormalizeTags(post.Tags)
	return p.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(tx.Rebind(`
			INSERT INTO posts (post_id, user_id, post_title, post_summary,
			                   up_votes, down_votes, post_created_at, post_updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			post.PostID, post.UserID, post.Title, post.Summary,
			post.UpVotes, post.DownVotes, post.CreatedAt, post.UpdatedAt)
		if err != nil {
			return fmt.Errorf("db: insert post: %w", err)
		}
		return p.writeTags(tx, post.PostID, tags)
	})
}

// UpdatePost rewrites the post row and replaces its tag set.
func (p *Pool) UpdatePost(ctx context.Context, post model.PostInfo) error {
	tags := posts.NormalizeTags(post.Tags)
	return p.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.Exec(tx.Rebind(`
			UPDATE posts
			SET post_title = ?, post_summary = ?, up_votes = ?, down_votes = ?,
			    post_updated_at = ?
			WHERE post_id = ?`),
			post.Title, post.Summary, post.UpVotes, post.DownVotes,
			post.UpdatedAt, post.PostID)
		if err != nil {
			return fmt.Errorf("db: update post: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("db: update post %s: no such row", post.PostID)
		}
		if _, err := tx.Exec(tx.Rebind(`DELETE FROM post_tags WHERE post_id = ?`), post.PostID); err != nil {
			return fmt.Errorf("db: clear post tags: %w", err)
		}
		return p.writeTags(tx, post.PostID, tags)
	})
}

// DeletePost removes the post and its tag links.
func (p *Pool) DeletePost(ctx context.Context, id uuid.UUID) error {
	return p.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(tx.Rebind(`DELETE FROM post_tags WHERE post_id = ?`), id); err != nil {
			return fmt.Errorf("db: delete post tags: %w", err)
		}
		if _, err := tx.Exec(tx.Rebind(`DELETE FROM posts WHERE post_id = ?`), id); err != nil {
			return fmt.Errorf("db: delete post: %w", err)
		}
		return nil
	})
}

// writeTags inserts tag rows as needed and links them to the post.
func (p *Pool) writeTags(tx *sqlx.Tx, postID uuid.UUID, tags []string) error {
	for _, tag := range tags {
		var tagID int64
		err := tx.Get(&tagID, tx.Rebind(`SELECT tag_id FROM tags WHERE tag_name = ?`), tag)
		if err != nil {
			res, err := tx.Exec(tx.Rebind(`INSERT INTO tags (tag_name) VALUES (?)`), tag)
			if err != nil {
				return fmt.Errorf("db: insert tag %q: %w", tag, err)
			}
			tagID, err = res.LastInsertId()
			if err != nil {
				// PostgreSQL has no LastInsertId; re-read the row.
				if err := tx.Get(&tagID, tx.Rebind(`SELECT tag_id FROM tags WHERE tag_name = ?`), tag); err != nil {
					return fmt.Errorf("db: read back tag %q: %w", tag, err)
				}
			}
		}
		if _, err := tx.Exec(tx.Rebind(`INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)`), postID, tagID); err != nil {
			return fmt.Errorf("db: link tag %q: %w", tag, err)
		}
	}
	return nil
}

func appendTag(tags []string, tag string) []string {
	tag = strings.ToLower(tag)
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}
