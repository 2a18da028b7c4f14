package services

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var conversationCols = []string{"id", "community_id", "kind", "title", "created_at", "updated_at"}

func newMessageService(t *testing.T) (*MessageService, sqlmock.Sqlmock) {
	store, mock := newTestStore(t)
	s := NewMessageService(store, &recorder{}, nil)
	freeze(&s.base)
	return s, mock
}

func expectConversation(mock sqlmock.Sqlmock, participants ...string) {
	mock.ExpectQuery("SELECT.*FROM conversations WHERE id = \\$1 AND community_id = \\$2").
		WithArgs("conv-1", "c-1").
		WillReturnRows(sqlmock.NewRows(conversationCols).AddRow("conv-1", "c-1", "group", "", fixedNow, fixedNow))
	rows := sqlmock.NewRows([]string{"profile_id"})
	for _, p := range participants {
		rows.AddRow(p)
	}
	mock.ExpectQuery("SELECT profile_id FROM conversation_participants").WithArgs("conv-1").WillReturnRows(rows)
}

// ---------------------------------------------------------------------------
// CreateConversation
// ---------------------------------------------------------------------------

func TestCreateConversation_ParticipantRules(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.ConversationKind
		others   []string
		wantCode string
	}{
		{"direct with nobody", models.ConversationDirect, []string{"p-1"}, "invalid_participants"},
		{"direct with two", models.ConversationDirect, []string{"p-2", "p-3"}, "invalid_participants"},
		{"group alone", models.ConversationGroup, nil, "invalid_participants"},
		{"unknown kind", models.ConversationKind("broadcast"), []string{"p-2"}, apperr.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMessageService(t)
			_, err := s.CreateConversation(context.Background(), "c-1", "u-1", CreateConversationInput{
				ProfileID: "p-1", Kind: tt.kind, ParticipantIDs: tt.others,
			})
			assert.True(t, apperr.Is(err, tt.wantCode), "got %v", err)
			expectationsMet(t, mock)
		})
	}
}

func TestCreateConversation_DirectReusesExisting(t *testing.T) {
	s, mock := newMessageService(t)
	mock.ExpectBegin()
	expectActing(mock, "u-1", "p-1")
	mock.ExpectQuery("SELECT.*FROM profiles WHERE id = \\$1").WithArgs("p-2").WillReturnRows(profileRow("p-2", "c-1", "bo"))
	mock.ExpectQuery("SELECT.*FROM conversations c.*kind = 'direct'").
		WithArgs("c-1", "p-1", "p-2").
		WillReturnRows(sqlmock.NewRows(conversationCols).AddRow("conv-1", "c-1", "direct", "", fixedNow, fixedNow))
	mock.ExpectCommit()

	conv, err := s.CreateConversation(context.Background(), "c-1", "u-1", CreateConversationInput{
		ProfileID: "p-1", Kind: models.ConversationDirect, ParticipantIDs: []string{"p-2", "p-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)
	expectationsMet(t, mock)
}

func TestCreateConversation_GroupCreates(t *testing.T) {
	s, mock := newMessageService(t)
	mock.ExpectBegin()
	expectActing(mock, "u-1", "p-1")
	mock.ExpectQuery("SELECT.*FROM profiles WHERE id").WithArgs("p-2").WillReturnRows(profileRow("p-2", "c-1", "bo"))
	mock.ExpectQuery("SELECT.*FROM profiles WHERE id").WithArgs("p-3").WillReturnRows(profileRow("p-3", "c-1", "cy"))
	mock.ExpectExec("INSERT INTO conversations").WillReturnResult(sqlmock.NewResult(0, 1))
	for range 3 {
		mock.ExpectExec("INSERT INTO conversation_participants").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	conv, err := s.CreateConversation(context.Background(), "c-1", "u-1", CreateConversationInput{
		ProfileID: "p-1", Kind: models.ConversationGroup, Title: " Planning ", ParticipantIDs: []string{"p-2", "p-3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Planning", conv.Title)
	assert.Equal(t, []string{"p-1", "p-2", "p-3"}, conv.ParticipantIDs)
	expectationsMet(t, mock)
}

func TestCreateConversation_ForeignParticipant(t *testing.T) {
	s, mock := newMessageService(t)
	mock.ExpectBegin()
	expectActing(mock, "u-1", "p-1")
	mock.ExpectQuery("SELECT.*FROM profiles WHERE id").WithArgs("p-x").WillReturnRows(profileRow("p-x", "c-other", "x"))
	mock.ExpectRollback()

	_, err := s.CreateConversation(context.Background(), "c-1", "u-1", CreateConversationInput{
		ProfileID: "p-1", Kind: models.ConversationDirect, ParticipantIDs: []string{"p-x"},
	})
	assert.True(t, apperr.Is(err, "invalid_participants"), "got %v", err)
	expectationsMet(t, mock)
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

func TestSendMessage(t *testing.T) {
	s, mock := newMessageService(t)
	mock.ExpectBegin()
	expectActing(mock, "u-1", "p-1")
	expectConversation(mock, "p-1", "p-2")
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), "conv-1", "p-1", "hi there", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversations SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg, err := s.SendMessage(context.Background(), "c-1", "conv-1", "u-1", "p-1", " hi there ")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	expectationsMet(t, mock)
}

func TestSendMessage_NotParticipant(t *testing.T) {
	s, mock := newMessageService(t)
	mock.ExpectBegin()
	expectActing(mock, "u-1", "p-1")
	expectConversation(mock, "p-2", "p-3")
	mock.ExpectRollback()

	_, err := s.SendMessage(context.Background(), "c-1", "conv-1", "u-1", "p-1", "hi")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound), "got %v", err)
	expectationsMet(t, mock)
}

func TestSendMessage_EmptyBody(t *testing.T) {
	s, mock := newMessageService(t)
	_, err := s.SendMessage(context.Background(), "c-1", "conv-1", "u-1", "p-1", "  ")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRequest), "got %v", err)
	expectationsMet(t, mock)
}

func TestListMessages_DefaultLimit(t *testing.T) {
	s, mock := newMessageService(t)
	expectActing(mock, "u-1", "p-1")
	expectConversation(mock, "p-1", "p-2")
	mock.ExpectQuery("SELECT.*FROM messages WHERE conversation_id = \\$1 ORDER BY created_at DESC").
		WithArgs("conv-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "profile_id", "body", "created_at"}).
			AddRow("msg-1", "conv-1", "p-2", "hello", fixedNow))

	msgs, err := s.ListMessages(context.Background(), "c-1", "conv-1", "u-1", "p-1", nil, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	expectationsMet(t, mock)
}

func TestListConversations_UnusableProfile(t *testing.T) {
	s, mock := newMessageService(t)
	mock.ExpectQuery("SELECT.*FROM profiles WHERE id").WithArgs("p-1").WillReturnRows(profileRow("p-1", "c-1", "ada"))
	mock.ExpectQuery("SELECT.*FROM profile_ownerships").WillReturnRows(noRows(ownershipCols))

	_, err := s.ListConversations(context.Background(), "c-1", "u-2", "p-1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound), "got %v", err)
	expectationsMet(t, mock)
}
