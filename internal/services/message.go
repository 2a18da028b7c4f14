package services

import (
	"context"
	"strings"
	"time"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/validation"
)

// MessageService handles conversations between profiles of one community
type MessageService struct {
	base
	notifications *NotificationService
}

func NewMessageService(store *repositories.Store, publisher events.Publisher, notifications *NotificationService) *MessageService {
	return &MessageService{base: newBase(store, publisher), notifications: notifications}
}

// CreateConversationInput starts a conversation as ProfileID
type CreateConversationInput struct {
	ProfileID      string
	Kind           models.ConversationKind
	Title          string
	ParticipantIDs []string
}

// CreateConversation starts a direct or group conversation. A direct
// conversation has exactly one other participant and an existing one between
// the same pair is returned instead of creating a duplicate.
func (s *MessageService) CreateConversation(ctx context.Context, communityID, userID string, in CreateConversationInput) (*models.Conversation, error) {
	others := without(uniqueStrings(in.ParticipantIDs), in.ProfileID)
	switch in.Kind {
	case models.ConversationDirect:
		if len(others) != 1 {
			return nil, apperr.BadRequest("invalid_participants")
		}
	case models.ConversationGroup:
		if len(others) == 0 {
			return nil, apperr.BadRequest("invalid_participants")
		}
	default:
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, "kind")
	}

	var conv *models.Conversation
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := actingProfile(ctx, tx, userID, in.ProfileID, communityID); err != nil {
			return err
		}
		for _, id := range others {
			p, err := tx.Profiles().GetByID(ctx, id)
			if err != nil {
				return err
			}
			if p == nil || p.CommunityID != communityID || !p.IsActive() {
				return apperr.BadRequest("invalid_participants")
			}
		}

		if in.Kind == models.ConversationDirect {
			existing, err := tx.Conversations().FindDirect(ctx, communityID, in.ProfileID, others[0])
			if err != nil {
				return err
			}
			if existing != nil {
				conv = existing
				return nil
			}
		}

		conv = &models.Conversation{
			CommunityID:    communityID,
			Kind:           in.Kind,
			Title:          strings.TrimSpace(in.Title),
			ParticipantIDs: append([]string{in.ProfileID}, others...),
		}
		return tx.Conversations().Create(ctx, conv)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns the conversations of a profile the user may use
func (s *MessageService) ListConversations(ctx context.Context, communityID, userID, profileID string) ([]models.Conversation, error) {
	p, err := usableProfile(ctx, s.store, userID, profileID, communityID, true)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound(codeNotFound)
	}
	return s.store.Conversations().ListForProfile(ctx, communityID, profileID)
}

// participantConversation loads a conversation and checks that the profile
// takes part in it
func participantConversation(ctx context.Context, st *repositories.Store, communityID, conversationID, profileID string) (*models.Conversation, error) {
	conv, err := st.Conversations().GetByID(ctx, communityID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperr.NotFound(codeNotFound)
	}
	for _, id := range conv.ParticipantIDs {
		if id == profileID {
			return conv, nil
		}
	}
	return nil, apperr.NotFound(codeNotFound)
}

// SendMessage appends a message written as profileID
func (s *MessageService) SendMessage(ctx context.Context, communityID, conversationID, userID, profileID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" || len(body) > validation.MaxBodyLength {
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, "body")
	}

	var conv *models.Conversation
	msg := &models.Message{ConversationID: conversationID, ProfileID: profileID, Body: body}
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := actingProfile(ctx, tx, userID, profileID, communityID); err != nil {
			return err
		}
		var err error
		conv, err = participantConversation(ctx, tx, communityID, conversationID, profileID)
		if err != nil {
			return err
		}
		return tx.Conversations().AddMessage(ctx, msg)
	})
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		owners, err := s.store.Conversations().OwnerUserIDs(ctx, without(conv.ParticipantIDs, profileID))
		if err == nil {
			s.notifications.Notify(ctx, communityID, without(owners, userID), models.NotificationMessage, map[string]interface{}{
				"conversation_id": conv.ID, "message_id": msg.ID, "profile_id": profileID,
			})
		}
	}
	return msg, nil
}

// ListMessages returns a page of messages, newest first
func (s *MessageService) ListMessages(ctx context.Context, communityID, conversationID, userID, profileID string, before *time.Time, limit int) ([]models.Message, error) {
	p, err := usableProfile(ctx, s.store, userID, profileID, communityID, true)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound(codeNotFound)
	}
	if _, err := participantConversation(ctx, s.store, communityID, conversationID, profileID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxFeedLimit {
		limit = 50
	}
	return s.store.Conversations().ListMessages(ctx, conversationID, before, limit)
}
