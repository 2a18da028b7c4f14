package services

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/authz"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/validation"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

// PostService handles posts, replies, reactions, pins and bookmarks
type PostService struct {
	base
	notifications *NotificationService
}

func NewPostService(store *repositories.Store, publisher events.Publisher, notifications *NotificationService) *PostService {
	return &PostService{base: newBase(store, publisher), notifications: notifications}
}

// CreatePostInput is a new post or reply written as ProfileID
type CreatePostInput struct {
	ProfileID   string
	BoardID     *string
	ParentID    *string
	Body        string
	ImageID     *string
	ScheduledAt *time.Time
}

// CreatePost publishes a post now, or holds it until ScheduledAt. Replies
// inherit their parent's board and thread root and cannot be scheduled.
func (s *PostService) CreatePost(ctx context.Context, communityID, userID string, in CreatePostInput) (*models.Post, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" || len(body) > validation.MaxBodyLength {
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, "body")
	}
	now := s.now()
	if in.ScheduledAt != nil && !in.ScheduledAt.After(now) {
		return nil, apperr.BadRequest("schedule_in_past")
	}

	var parent *models.Post
	post := &models.Post{
		CommunityID: communityID,
		ProfileID:   in.ProfileID,
		BoardID:     in.BoardID,
		Body:        body,
		ImageID:     in.ImageID,
		ScheduledAt: in.ScheduledAt,
		CreatedAt:   now,
	}
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := actingProfile(ctx, tx, userID, in.ProfileID, communityID); err != nil {
			return err
		}

		if in.ParentID != nil {
			if in.ScheduledAt != nil {
				return apperr.BadRequest("reply_not_schedulable")
			}
			var err error
			parent, err = tx.Posts().GetByID(ctx, communityID, *in.ParentID)
			if err != nil {
				return err
			}
			if parent == nil || !parent.IsPublished() {
				return apperr.BadRequest("invalid_parent")
			}
			post.ParentID = &parent.ID
			post.BoardID = parent.BoardID
			post.RootID = parent.RootID
			if post.RootID == nil {
				post.RootID = &parent.ID
			}
		} else if in.BoardID != nil {
			b, err := tx.Boards().GetByID(ctx, communityID, *in.BoardID)
			if err != nil {
				return err
			}
			if b == nil {
				return apperr.BadRequest("invalid_board")
			}
		}

		if in.ImageID != nil {
			n, err := tx.Images().CountOwned(ctx, userID, communityID, []string{*in.ImageID})
			if err != nil {
				return err
			}
			if n != 1 {
				return apperr.BadRequest("invalid_attachment")
			}
		}

		if in.ScheduledAt == nil {
			post.PublishedAt = &now
		}
		return tx.Posts().Create(ctx, post)
	})
	if err != nil {
		return nil, err
	}

	if post.PublishedAt != nil {
		s.publish(ctx, events.Event{Type: events.PostPublished, CommunityID: communityID, ActorID: userID, SubjectID: post.ID})
	}
	if parent != nil {
		s.notifyOwners(ctx, communityID, userID, parent.ProfileID, models.NotificationReply, map[string]interface{}{
			"post_id": parent.ID, "reply_id": post.ID, "profile_id": in.ProfileID,
		})
	}
	return post, nil
}

// notifyOwners notifies the users owning profileID, except the actor
func (s *PostService) notifyOwners(ctx context.Context, communityID, actorID, profileID, kind string, payload map[string]interface{}) {
	if s.notifications == nil {
		return
	}
	owners, err := s.store.Conversations().OwnerUserIDs(ctx, []string{profileID})
	if err != nil {
		return
	}
	s.notifications.Notify(ctx, communityID, without(owners, actorID), kind, payload)
}

// GetPost returns a published post, or an unpublished one to its author
func (s *PostService) GetPost(ctx context.Context, communityID, postID, userID string) (*models.PostView, error) {
	v, err := s.store.Posts().GetView(ctx, communityID, postID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apperr.NotFound(codeNotFound)
	}
	if v.PublishedAt == nil {
		o, err := s.store.Ownerships().Get(ctx, userID, v.ProfileID)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, apperr.NotFound(codeNotFound)
		}
	}
	return v, nil
}

// Feed is one page of the community feed
type Feed struct {
	Pinned     []models.PostView `json:"pinned,omitempty"`
	Posts      []models.PostView `json:"posts"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// ErrInvalidCursor is returned by ParseFeedCursor for tokens it did not issue
var ErrInvalidCursor = errors.New("invalid feed cursor")

// EncodeFeedCursor renders a cursor as an opaque URL-safe token
func EncodeFeedCursor(c repositories.FeedCursor) string {
	raw := c.PublishedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseFeedCursor reverses EncodeFeedCursor
func ParseFeedCursor(token string) (*repositories.FeedCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &repositories.FeedCursor{PublishedAt: at, ID: id}, nil
}

// ListFeed returns top-level posts newest first. Pinned posts come on the
// first page only; later pages continue from the cursor.
func (s *PostService) ListFeed(ctx context.Context, communityID string, boardID *string, after *repositories.FeedCursor, limit int) (*Feed, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	feed := &Feed{}
	if after == nil {
		pinned, err := s.store.Posts().ListPinned(ctx, communityID, boardID)
		if err != nil {
			return nil, err
		}
		feed.Pinned = pinned
	}
	posts, err := s.store.Posts().ListFeed(ctx, repositories.FeedQuery{
		CommunityID: communityID, BoardID: boardID, After: after, Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	feed.Posts = posts
	if len(posts) == limit {
		last := posts[len(posts)-1]
		if last.PublishedAt != nil {
			feed.NextCursor = EncodeFeedCursor(repositories.FeedCursor{PublishedAt: *last.PublishedAt, ID: last.ID})
		}
	}
	return feed, nil
}

// ListReplies returns the published replies to a visible post
func (s *PostService) ListReplies(ctx context.Context, communityID, postID string) ([]models.PostView, error) {
	p, err := s.store.Posts().GetByID(ctx, communityID, postID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.IsPublished() {
		return nil, apperr.NotFound(codeNotFound)
	}
	return s.store.Posts().ListReplies(ctx, communityID, postID)
}

// DeletePost soft-deletes a post. Managers of the author profile and staff
// may delete.
func (s *PostService) DeletePost(ctx context.Context, communityID, postID, userID string) error {
	return s.store.InTx(ctx, func(tx *repositories.Store) error {
		m, err := requireRole(ctx, tx, userID, communityID)
		if err != nil {
			return err
		}
		p, err := tx.Posts().GetByID(ctx, communityID, postID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotFound(codeNotFound)
		}
		if !m.Role.In(authz.Staff...) {
			o, err := tx.Ownerships().Get(ctx, userID, p.ProfileID)
			if err != nil {
				return err
			}
			if o == nil || o.Role != models.OwnershipOwner {
				return apperr.Forbidden(apperr.CodeInsufficientRole)
			}
		}
		return tx.Posts().SoftDelete(ctx, p.ID, s.now())
	})
}

// SetPinned pins or unpins a top-level post; staff only
func (s *PostService) SetPinned(ctx context.Context, communityID, postID, userID string, pinned bool) error {
	if _, err := requireRole(ctx, s.store, userID, communityID, authz.Staff...); err != nil {
		return err
	}
	p, err := s.store.Posts().GetByID(ctx, communityID, postID)
	if err != nil {
		return err
	}
	if p == nil || !p.IsPublished() {
		return apperr.NotFound(codeNotFound)
	}
	if p.ParentID != nil {
		return apperr.BadRequest("cannot_pin_reply")
	}
	var at *time.Time
	if pinned {
		now := s.now()
		at = &now
	}
	return s.store.Posts().SetPinned(ctx, p.ID, at)
}

// AddReaction places an emoji on a post as the acting profile
func (s *PostService) AddReaction(ctx context.Context, communityID, postID, userID, profileID, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if err := validation.ValidateEmoji(emoji); err != nil {
		return apperr.BadRequest(apperr.CodeInvalidRequest, err.Error())
	}
	if _, err := actingProfile(ctx, s.store, userID, profileID, communityID); err != nil {
		return err
	}
	p, err := s.store.Posts().GetByID(ctx, communityID, postID)
	if err != nil {
		return err
	}
	if p == nil || !p.IsPublished() {
		return apperr.NotFound(codeNotFound)
	}
	added, err := s.store.Posts().AddReaction(ctx, &models.Reaction{PostID: p.ID, ProfileID: profileID, Emoji: emoji})
	if err != nil {
		return err
	}
	if added {
		s.notifyOwners(ctx, communityID, userID, p.ProfileID, models.NotificationReaction, map[string]interface{}{
			"post_id": p.ID, "profile_id": profileID, "emoji": emoji,
		})
	}
	return nil
}

// RemoveReaction removes the acting profile's emoji from a post
func (s *PostService) RemoveReaction(ctx context.Context, communityID, postID, userID, profileID, emoji string) error {
	p, err := usableProfile(ctx, s.store, userID, profileID, communityID, true)
	if err != nil {
		return err
	}
	if p == nil {
		return apperr.NotFound(codeNotFound)
	}
	post, err := s.store.Posts().GetByID(ctx, communityID, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return apperr.NotFound(codeNotFound)
	}
	removed, err := s.store.Posts().RemoveReaction(ctx, post.ID, profileID, strings.TrimSpace(emoji))
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound(codeNotFound)
	}
	return nil
}

// Bookmark saves or unsaves a post for the user
func (s *PostService) Bookmark(ctx context.Context, communityID, postID, userID string, saved bool) error {
	if _, err := requireRole(ctx, s.store, userID, communityID); err != nil {
		return err
	}
	p, err := s.store.Posts().GetByID(ctx, communityID, postID)
	if err != nil {
		return err
	}
	if p == nil || !p.IsPublished() {
		return apperr.NotFound(codeNotFound)
	}
	if saved {
		return s.store.Posts().AddBookmark(ctx, userID, p.ID)
	}
	return s.store.Posts().RemoveBookmark(ctx, userID, p.ID)
}

// ListBookmarks returns the user's saved posts
func (s *PostService) ListBookmarks(ctx context.Context, communityID, userID string) ([]models.PostView, error) {
	return s.store.Posts().ListBookmarks(ctx, userID, communityID)
}

// PublishDue publishes every scheduled post whose time has passed
func (s *PostService) PublishDue(ctx context.Context) (int64, error) {
	return s.store.Posts().PublishDue(ctx, s.now())
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
