package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/community-hub/community-hub/internal/db/models"
)

var postCols = []string{
	"id", "community_id", "board_id", "profile_id", "parent_id", "root_id", "body", "image_id",
	"scheduled_at", "published_at", "pinned_at", "created_at", "updated_at", "deleted_at",
}

var postViewCols = append(append([]string{}, postCols...), "author_name", "author_username", "reply_count", "reaction_count")

func postViewRow(rows *sqlmock.Rows, id string, publishedAt time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "c-1", nil, "p-1", nil, nil, "hello", nil,
		nil, publishedAt, nil, publishedAt, publishedAt, nil, "Ada", "ada", 2, 5)
}

// ---------------------------------------------------------------------------
// Feed
// ---------------------------------------------------------------------------

func TestPostListFeed_FirstPage(t *testing.T) {
	store, mock := newStore(t)
	rows := postViewRow(sqlmock.NewRows(postViewCols), "post-2", fixedNow)
	rows = postViewRow(rows, "post-1", fixedNow.Add(-time.Hour))
	mock.ExpectQuery("SELECT.*FROM posts p JOIN profiles pr.*p.pinned_at IS NULL ORDER BY p.published_at DESC, p.id DESC LIMIT \\$2").
		WithArgs("c-1", 20).
		WillReturnRows(rows)

	feed, err := store.Posts().ListFeed(context.Background(), FeedQuery{CommunityID: "c-1", Limit: 20})
	if err != nil {
		t.Fatalf("ListFeed: %v", err)
	}
	if len(feed) != 2 || feed[0].ID != "post-2" {
		t.Fatalf("ListFeed = %+v", feed)
	}
	if feed[0].ReplyCount != 2 || feed[0].ReactionCount != 5 || feed[0].AuthorUsername != "ada" {
		t.Errorf("counters not scanned: %+v", feed[0])
	}
}

func TestPostListFeed_BoardAndCursor(t *testing.T) {
	store, mock := newStore(t)
	after := &FeedCursor{PublishedAt: fixedNow.Add(-time.Hour), ID: "post-5"}
	mock.ExpectQuery("AND p.board_id = \\$2 AND \\(p.published_at, p.id\\) < \\(\\$3, \\$4\\) ORDER BY p.published_at DESC, p.id DESC LIMIT \\$5").
		WithArgs("c-1", "b-1", after.PublishedAt, "post-5", 10).
		WillReturnRows(sqlmock.NewRows(postViewCols))

	feed, err := store.Posts().ListFeed(context.Background(), FeedQuery{
		CommunityID: "c-1", BoardID: strPtr("b-1"), After: after, Limit: 10,
	})
	if err != nil {
		t.Fatalf("ListFeed: %v", err)
	}
	if len(feed) != 0 {
		t.Errorf("expected empty page, got %d", len(feed))
	}
	expectationsMet(t, mock)
}

// Posts published by the scheduler share one timestamp; the next page must
// continue inside that group instead of skipping past it.
func TestPostListFeed_CursorInsideTimestampTie(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("\\(p.published_at, p.id\\) < \\(\\$2, \\$3\\)").
		WithArgs("c-1", fixedNow, "post-c", 2).
		WillReturnRows(postViewRow(postViewRow(sqlmock.NewRows(postViewCols), "post-b", fixedNow), "post-a", fixedNow))

	feed, err := store.Posts().ListFeed(context.Background(), FeedQuery{
		CommunityID: "c-1", After: &FeedCursor{PublishedAt: fixedNow, ID: "post-c"}, Limit: 2,
	})
	if err != nil {
		t.Fatalf("ListFeed: %v", err)
	}
	if len(feed) != 2 || feed[0].ID != "post-b" || feed[1].ID != "post-a" {
		t.Fatalf("ListFeed = %+v", feed)
	}
	expectationsMet(t, mock)
}

func TestPostListFeed_DBError(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("SELECT.*FROM posts p").WillReturnError(errDB)

	if _, err := store.Posts().ListFeed(context.Background(), FeedQuery{CommunityID: "c-1", Limit: 20}); err == nil {
		t.Fatal("expected error")
	}
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

func TestPostGetByID_OtherCommunity(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("SELECT.*FROM posts WHERE id = \\$1 AND community_id = \\$2 AND deleted_at IS NULL").
		WithArgs("post-1", "c-2").
		WillReturnRows(sqlmock.NewRows(postCols))

	p, err := store.Posts().GetByID(context.Background(), "c-2", "post-1")
	if err != nil || p != nil {
		t.Fatalf("GetByID = %v, %v; want nil, nil", p, err)
	}
}

// ---------------------------------------------------------------------------
// Scheduling
// ---------------------------------------------------------------------------

func TestPostPublishDue(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("UPDATE posts SET published_at = scheduled_at.*scheduled_at <= \\$1").
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.Posts().PublishDue(context.Background(), fixedNow)
	if err != nil {
		t.Fatalf("PublishDue: %v", err)
	}
	if n != 4 {
		t.Errorf("published = %d, want 4", n)
	}
}

func TestPostPublishDue_DBError(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("UPDATE posts").WillReturnError(errDB)

	if _, err := store.Posts().PublishDue(context.Background(), fixedNow); err == nil {
		t.Fatal("expected error")
	}
}

// ---------------------------------------------------------------------------
// Reactions and bookmarks
// ---------------------------------------------------------------------------

func TestPostAddReaction_Duplicate(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("INSERT INTO post_reactions.*ON CONFLICT DO NOTHING").
		WithArgs("post-1", "p-1", "👍", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	added, err := store.Posts().AddReaction(context.Background(), &models.Reaction{PostID: "post-1", ProfileID: "p-1", Emoji: "👍"})
	if err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	if added {
		t.Error("duplicate reaction should report false")
	}
}

func TestPostRemoveReaction(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("DELETE FROM post_reactions").
		WithArgs("post-1", "p-1", "👍").
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := store.Posts().RemoveReaction(context.Background(), "post-1", "p-1", "👍")
	if err != nil || !removed {
		t.Fatalf("RemoveReaction = %v, %v", removed, err)
	}
}

func TestPostBookmarks(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("INSERT INTO bookmarks").
		WithArgs("u-1", "post-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("JOIN bookmarks b ON b.post_id = p.id").
		WithArgs("u-1", "c-1").
		WillReturnRows(postViewRow(sqlmock.NewRows(postViewCols), "post-1", fixedNow))
	mock.ExpectExec("DELETE FROM bookmarks").
		WithArgs("u-1", "post-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := store.Posts().AddBookmark(ctx, "u-1", "post-1"); err != nil {
		t.Fatalf("AddBookmark: %v", err)
	}
	list, err := store.Posts().ListBookmarks(ctx, "u-1", "c-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListBookmarks = %v, %v", list, err)
	}
	if err := store.Posts().RemoveBookmark(ctx, "u-1", "post-1"); err != nil {
		t.Fatalf("RemoveBookmark: %v", err)
	}
	expectationsMet(t, mock)
}
