// Package repositories implements the PostgreSQL data access layer. Every
// repository runs against a DBTX so the same code serves plain connections and
// transactions opened through Store.InTx.
package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Store hands out repositories bound to either the pool or an open transaction
type Store struct {
	db *sqlx.DB
	q  DBTX
}

// NewStore creates a Store backed by the connection pool
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

// DB returns the underlying pool, for health checks and metrics
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise. Nested calls reuse the open transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	if _, ok := s.q.(*sqlx.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Users() *UserRepository                 { return &UserRepository{q: s.q} }
func (s *Store) Communities() *CommunityRepository      { return &CommunityRepository{q: s.q} }
func (s *Store) Memberships() *MembershipRepository     { return &MembershipRepository{q: s.q} }
func (s *Store) Profiles() *ProfileRepository           { return &ProfileRepository{q: s.q} }
func (s *Store) Ownerships() *OwnershipRepository       { return &OwnershipRepository{q: s.q} }
func (s *Store) Applications() *ApplicationRepository   { return &ApplicationRepository{q: s.q} }
func (s *Store) Images() *ImageRepository               { return &ImageRepository{q: s.q} }
func (s *Store) Posts() *PostRepository                 { return &PostRepository{q: s.q} }
func (s *Store) Boards() *BoardRepository               { return &BoardRepository{q: s.q} }
func (s *Store) Conversations() *ConversationRepository { return &ConversationRepository{q: s.q} }
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{q: s.q} }
func (s *Store) Moderation() *ModerationRepository      { return &ModerationRepository{q: s.q} }
func (s *Store) Analytics() *AnalyticsRepository        { return &AnalyticsRepository{q: s.q} }
func (s *Store) Exports() *ExportRepository             { return &ExportRepository{q: s.q} }
func (s *Store) Audit() *AuditRepository                { return &AuditRepository{q: s.q} }
