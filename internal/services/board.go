package services

import (
	"context"
	"strings"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/authz"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
)

// BoardService manages the topic boards of a community
type BoardService struct {
	base
}

func NewBoardService(store *repositories.Store, publisher events.Publisher) *BoardService {
	return &BoardService{base: newBase(store, publisher)}
}

// BoardInput is the editable part of a board
type BoardInput struct {
	Name        string
	Description string
	Position    int
}

func (in BoardInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.BadRequest(apperr.CodeInvalidRequest, "name")
	}
	return nil
}

// ListBoards returns boards to active members
func (s *BoardService) ListBoards(ctx context.Context, communityID, userID string) ([]models.Board, error) {
	if _, err := requireRole(ctx, s.store, userID, communityID); err != nil {
		return nil, err
	}
	return s.store.Boards().List(ctx, communityID)
}

// CreateBoard adds a board; staff only
func (s *BoardService) CreateBoard(ctx context.Context, communityID, userID string, in BoardInput) (*models.Board, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := requireRole(ctx, s.store, userID, communityID, authz.Staff...); err != nil {
		return nil, err
	}
	b := &models.Board{
		CommunityID: communityID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Position:    in.Position,
	}
	if err := s.store.Boards().Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBoard edits a board; staff only
func (s *BoardService) UpdateBoard(ctx context.Context, communityID, boardID, userID string, in BoardInput) (*models.Board, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := requireRole(ctx, s.store, userID, communityID, authz.Staff...); err != nil {
		return nil, err
	}
	b, err := s.store.Boards().GetByID(ctx, communityID, boardID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperr.NotFound(codeNotFound)
	}
	b.Name = strings.TrimSpace(in.Name)
	b.Description = in.Description
	b.Position = in.Position
	if err := s.store.Boards().Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBoard soft-deletes a board; staff only
func (s *BoardService) DeleteBoard(ctx context.Context, communityID, boardID, userID string) error {
	if _, err := requireRole(ctx, s.store, userID, communityID, authz.Staff...); err != nil {
		return err
	}
	b, err := s.store.Boards().GetByID(ctx, communityID, boardID)
	if err != nil {
		return err
	}
	if b == nil {
		return apperr.NotFound(codeNotFound)
	}
	return s.store.Boards().SoftDelete(ctx, b.ID, s.now())
}
