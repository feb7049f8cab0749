package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/blackmichael/snippet-feed/internal/domain"
)

// These tests run against a real database and are skipped unless
// TEST_DATABASE_URL is set. The database is expected to be disposable.
func newLiveRepo(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	repo, err := NewRepository(ctx, url)
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if _, err := repo.db.ExecContext(ctx, `TRUNCATE topics, posts RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return repo
}

func TestLiveTopicLifecycle(t *testing.T) {
	repo := newLiveRepo(t)
	ctx := context.Background()

	topic := &domain.Topic{Name: "Geology", Description: "rocks"}
	if err := repo.CreateTopic(ctx, topic); err != nil {
		t.Fatalf("CreateTopic failed: %v", err)
	}
	if topic.ID == 0 || topic.CreatedAt.IsZero() {
		t.Errorf("expected ID and CreatedAt to be set: %+v", topic)
	}

	if err := repo.CreateTopic(ctx, &domain.Topic{Name: "Geology"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	n, err := repo.CreatePosts(ctx, topic.ID, []string{"first", "second", "third"})
	if err != nil || n != 3 {
		t.Fatalf("CreatePosts = %d, %v", n, err)
	}

	posts, err := repo.ListPosts(ctx, domain.PostFilter{TopicID: &topic.ID, Limit: 2})
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 2 || posts[0].Topic == nil || posts[0].Topic.Name != "Geology" {
		t.Errorf("unexpected posts: %+v", posts)
	}

	if err := repo.DeleteTopic(ctx, topic.ID); err != nil {
		t.Fatalf("DeleteTopic failed: %v", err)
	}
	count, _ := repo.CountPosts(ctx, nil)
	if count != 0 {
		t.Errorf("expected cascade delete, %d posts remain", count)
	}
}

func TestLiveFeedback(t *testing.T) {
	repo := newLiveRepo(t)
	ctx := context.Background()

	topic := &domain.Topic{Name: "Optics"}
	if err := repo.CreateTopic(ctx, topic); err != nil {
		t.Fatalf("CreateTopic failed: %v", err)
	}
	if _, err := repo.CreatePosts(ctx, topic.ID, []string{"lenses bend light"}); err != nil {
		t.Fatalf("CreatePosts failed: %v", err)
	}

	posts, _ := repo.ListPosts(ctx, domain.PostFilter{})
	post := posts[0]
	post.LikeStatus = true
	if err := repo.SetFeedback(ctx, &post); err != nil {
		t.Fatalf("SetFeedback failed: %v", err)
	}

	counts, err := repo.CountFeedback(ctx)
	if err != nil {
		t.Fatalf("CountFeedback failed: %v", err)
	}
	want := domain.FeedbackCounts{TotalPosts: 1, TotalTopics: 1, LikedPosts: 1}
	if counts != want {
		t.Errorf("got %+v, want %+v", counts, want)
	}

	if err := repo.DeletePost(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
