package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/blackmichael/snippet-feed/internal/domain"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS topics (
	id                BIGSERIAL PRIMARY KEY,
	topic_name        VARCHAR(255) NOT NULL UNIQUE,
	topic_description TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS posts (
	post_id        BIGSERIAL PRIMARY KEY,
	topic_id       BIGINT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
	post_content   TEXT NOT NULL,
	timestamp      TIMESTAMPTZ NOT NULL DEFAULT now(),
	like_status    BOOLEAN NOT NULL DEFAULT false,
	dislike_status BOOLEAN NOT NULL DEFAULT false,
	deep_dive      BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_posts_timestamp ON posts (timestamp DESC, post_id DESC);
CREATE INDEX IF NOT EXISTS idx_posts_topic ON posts (topic_id);
`

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const postColumns = `
	p.post_id, p.topic_id, p.post_content, p.timestamp,
	p.like_status, p.dislike_status, p.deep_dive,
	t.id, t.topic_name, t.topic_description, t.created_at`

// Repository implements domain.TopicRepository and domain.PostRepository
// using PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository connects to PostgreSQL at the given URL, verifies the
// connection, and returns a new Repository. The caller should call Close
// when the repository is no longer needed.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Migrate creates the schema if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateTopic inserts a new topic.
func (r *Repository) CreateTopic(ctx context.Context, topic *domain.Topic) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO topics (topic_name, topic_description)
		VALUES ($1, $2)
		RETURNING id, created_at`,
		topic.Name, topic.Description,
	).Scan(&topic.ID, &topic.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("topic %q already exists: %w", topic.Name, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	return nil
}

// ListTopics returns all topics, newest first.
func (r *Repository) ListTopics(ctx context.Context) ([]domain.Topic, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, topic_name, topic_description, created_at
		FROM topics
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		var t domain.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return topics, nil
}

// GetTopic retrieves a topic by ID.
func (r *Repository) GetTopic(ctx context.Context, id int64) (*domain.Topic, error) {
	var t domain.Topic
	err := r.db.QueryRowContext(ctx, `
		SELECT id, topic_name, topic_description, created_at
		FROM topics WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("topic %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query topic: %w", err)
	}
	return &t, nil
}

// DeleteTopic removes a topic; its posts go with it via ON DELETE CASCADE.
func (r *Repository) DeleteTopic(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	return requireAffected(res, "topic", id)
}

// CreatePosts inserts the given contents as new posts in one transaction.
func (r *Repository) CreatePosts(ctx context.Context, topicID int64, contents []string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO posts (topic_id, post_content) VALUES ($1, $2)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, content := range contents {
		if _, err := stmt.ExecContext(ctx, topicID, content); err != nil {
			return 0, fmt.Errorf("insert post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return len(contents), nil
}

// GetPost retrieves a post by ID with its topic joined.
func (r *Repository) GetPost(ctx context.Context, id int64) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN topics t ON t.id = p.topic_id
		WHERE p.post_id = $1`, id)

	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}
	return p, nil
}

// ListPosts retrieves posts matching the filter, newest first.
func (r *Repository) ListPosts(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.TopicID != nil {
		add("p.topic_id = $%d", *filter.TopicID)
	}
	if filter.Like != nil {
		add("p.like_status = $%d", *filter.Like)
	}
	if filter.Dislike != nil {
		add("p.dislike_status = $%d", *filter.Dislike)
	}
	if filter.DeepDive != nil {
		add("p.deep_dive = $%d", *filter.DeepDive)
	}

	query := `SELECT ` + postColumns + ` FROM posts p JOIN topics t ON t.id = p.topic_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY p.timestamp DESC, p.post_id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts (limit=%d, offset=%d): %w", filter.Limit, filter.Offset, err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// CountPosts counts posts, optionally for one topic.
func (r *Repository) CountPosts(ctx context.Context, topicID *int64) (int, error) {
	var (
		n   int
		err error
	)
	if topicID != nil {
		err = r.db.QueryRowContext(ctx, `SELECT count(*) FROM posts WHERE topic_id = $1`, *topicID).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT count(*) FROM posts`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// SetFeedback writes the post's feedback flags.
func (r *Repository) SetFeedback(ctx context.Context, post *domain.Post) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET like_status = $2, dislike_status = $3, deep_dive = $4
		WHERE post_id = $1`,
		post.ID, post.LikeStatus, post.DislikeStatus, post.DeepDive,
	)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	return requireAffected(res, "post", post.ID)
}

// DeletePost removes a post by ID.
func (r *Repository) DeletePost(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE post_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return requireAffected(res, "post", id)
}

// CountFeedback returns post, topic, and feedback totals in one round trip.
func (r *Repository) CountFeedback(ctx context.Context) (domain.FeedbackCounts, error) {
	var c domain.FeedbackCounts
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM posts),
			(SELECT count(*) FROM topics),
			(SELECT count(*) FROM posts WHERE like_status),
			(SELECT count(*) FROM posts WHERE dislike_status)`,
	).Scan(&c.TotalPosts, &c.TotalTopics, &c.LikedPosts, &c.DislikedPosts)
	if err != nil {
		return domain.FeedbackCounts{}, fmt.Errorf("count feedback: %w", err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*domain.Post, error) {
	var (
		p domain.Post
		t domain.Topic
	)
	err := s.Scan(
		&p.ID, &p.TopicID, &p.Content, &p.Timestamp,
		&p.LikeStatus, &p.DislikeStatus, &p.DeepDive,
		&t.ID, &t.Name, &t.Description, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Topic = &t
	return &p, nil
}

func requireAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}
