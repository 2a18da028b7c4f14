package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/validation"
)

// DomainVerifier looks up DNS TXT records. *net.Resolver satisfies it.
type DomainVerifier interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// CommunityService manages communities and maps request hosts to them
type CommunityService struct {
	base
	tenancy  config.TenancyConfig
	verifier DomainVerifier
}

func NewCommunityService(store *repositories.Store, publisher events.Publisher, tenancy config.TenancyConfig) *CommunityService {
	return &CommunityService{
		base:     newBase(store, publisher),
		tenancy:  tenancy,
		verifier: net.DefaultResolver,
	}
}

// WithVerifier replaces the DNS resolver used for domain verification
func (s *CommunityService) WithVerifier(v DomainVerifier) *CommunityService {
	s.verifier = v
	return s
}

// CommunityInput is the editable part of a community
type CommunityInput struct {
	Slug               string
	Name               string
	Description        string
	RecruitingStartsAt *time.Time
	RecruitingEndsAt   *time.Time
	StartsAt           *time.Time
	EndsAt             *time.Time
}

// CreateCommunityInput adds the founder's primary profile
type CreateCommunityInput struct {
	CommunityInput
	OwnerProfileName     string
	OwnerProfileUsername string
}

// CreateCommunity inserts the community together with the founder's owner
// membership, primary profile and ownership row
func (s *CommunityService) CreateCommunity(ctx context.Context, userID string, in CreateCommunityInput) (*models.Community, error) {
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	if err := validation.ValidateSlug(slug); err != nil {
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, err.Error())
	}
	username := validation.NormalizeUsername(in.OwnerProfileUsername)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, err.Error())
	}

	c := &models.Community{
		Slug:               slug,
		Name:               in.Name,
		Description:        in.Description,
		RecruitingStartsAt: in.RecruitingStartsAt,
		RecruitingEndsAt:   in.RecruitingEndsAt,
		StartsAt:           in.StartsAt,
		EndsAt:             in.EndsAt,
	}
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if err := tx.Communities().Create(ctx, c); err != nil {
			return apperr.FromDB(err)
		}
		now := s.now()
		m := models.NewMembership("", userID, c.ID, models.RoleOwner, now)
		if err := tx.Memberships().Create(ctx, m); err != nil {
			return apperr.FromDB(err)
		}
		name := in.OwnerProfileName
		if name == "" {
			name = username
		}
		p := &models.Profile{
			CommunityID: c.ID,
			Name:        name,
			Username:    username,
			IsPrimary:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		p.ActivatedAt = &now
		if err := tx.Profiles().Create(ctx, p); err != nil {
			return apperr.FromDB(err)
		}
		return tx.Ownerships().Create(ctx, &models.ProfileOwnership{
			UserID: userID, ProfileID: p.ID, Role: models.OwnershipOwner, CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "community created", "community_id", c.ID, "slug", c.Slug, "owner_id", userID)
	s.publish(ctx, events.Event{Type: events.CommunityCreated, CommunityID: c.ID, ActorID: userID, SubjectID: c.ID})
	return c, nil
}

// GetCommunity returns a live community or 404
func (s *CommunityService) GetCommunity(ctx context.Context, communityID string) (*models.Community, error) {
	c, err := s.store.Communities().GetByID(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("community_not_found")
	}
	return c, nil
}

// ListMyCommunities returns the communities the user is an active member of
func (s *CommunityService) ListMyCommunities(ctx context.Context, userID string) ([]models.CommunityMembership, error) {
	return s.store.Communities().ListForUser(ctx, userID)
}

// UpdateCommunity edits a community; owner only. The slug is fixed at creation.
func (s *CommunityService) UpdateCommunity(ctx context.Context, communityID, userID string, in CommunityInput) (*models.Community, error) {
	if _, err := requireRole(ctx, s.store, userID, communityID, models.RoleOwner); err != nil {
		return nil, err
	}
	c, err := s.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		c.Name = in.Name
	}
	c.Description = in.Description
	c.RecruitingStartsAt = in.RecruitingStartsAt
	c.RecruitingEndsAt = in.RecruitingEndsAt
	c.StartsAt = in.StartsAt
	c.EndsAt = in.EndsAt
	if err := s.store.Communities().Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCommunity soft-deletes a community; owner only
func (s *CommunityService) DeleteCommunity(ctx context.Context, communityID, userID string) error {
	if _, err := requireRole(ctx, s.store, userID, communityID, models.RoleOwner); err != nil {
		return err
	}
	if err := s.store.Communities().SoftDelete(ctx, communityID, s.now()); err != nil {
		return err
	}
	slog.InfoContext(ctx, "community deleted", "community_id", communityID, "deleted_by", userID)
	return nil
}

// DomainChallenge tells the owner which TXT record proves control of a domain
type DomainChallenge struct {
	Domain    string `json:"domain"`
	TXTRecord string `json:"txt_record"`
}

// SetCustomDomain stores an unverified custom domain with a fresh
// verification token. An empty domain removes it.
func (s *CommunityService) SetCustomDomain(ctx context.Context, communityID, userID, domain string) (*DomainChallenge, error) {
	if _, err := requireRole(ctx, s.store, userID, communityID, models.RoleOwner); err != nil {
		return nil, err
	}
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		if err := s.store.Communities().SetCustomDomain(ctx, communityID, nil, nil, s.now()); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := validation.ValidateDomain(domain); err != nil {
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, err.Error())
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, apperr.Internal(err)
	}
	token := hex.EncodeToString(buf)
	if err := s.store.Communities().SetCustomDomain(ctx, communityID, &domain, &token, s.now()); err != nil {
		return nil, apperr.FromDB(err)
	}
	return &DomainChallenge{Domain: domain, TXTRecord: s.tenancy.VerificationPrefix + token}, nil
}

// VerifyCustomDomain checks the domain's TXT records for the verification
// value and marks the domain verified
func (s *CommunityService) VerifyCustomDomain(ctx context.Context, communityID, userID string) (*models.Community, error) {
	if _, err := requireRole(ctx, s.store, userID, communityID, models.RoleOwner); err != nil {
		return nil, err
	}
	c, err := s.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if c.CustomDomain == nil || c.DomainVerificationToken == nil {
		return nil, apperr.BadRequest("domain_not_set")
	}
	if c.DomainVerifiedAt != nil {
		return c, nil
	}

	want := s.tenancy.VerificationPrefix + *c.DomainVerificationToken
	records, err := s.verifier.LookupTXT(ctx, *c.CustomDomain)
	if err != nil {
		slog.WarnContext(ctx, "txt lookup failed", "domain", *c.CustomDomain, "error", err)
	}
	found := false
	for _, r := range records {
		if strings.TrimSpace(r) == want {
			found = true
			break
		}
	}
	if !found {
		return nil, apperr.BadRequest("domain_verification_failed", want)
	}

	now := s.now()
	if err := s.store.Communities().MarkDomainVerified(ctx, communityID, now); err != nil {
		return nil, err
	}
	c.DomainVerifiedAt = &now
	slog.InfoContext(ctx, "custom domain verified", "community_id", communityID, "domain", *c.CustomDomain)
	return c, nil
}

// ResolveHost maps a request hostname to its community: a verified custom
// domain first, then a single-label subdomain of a configured base domain
func (s *CommunityService) ResolveHost(ctx context.Context, host string) (*models.Community, error) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return nil, apperr.BadRequest("missing_host")
	}

	c, err := s.store.Communities().GetByVerifiedDomain(ctx, host)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}

	slug, ok := s.slugFromHost(host)
	if !ok {
		return nil, apperr.BadRequest("unknown_host")
	}
	c, err = s.store.Communities().GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("community_not_found")
	}
	return c, nil
}

func (s *CommunityService) slugFromHost(host string) (string, bool) {
	for _, base := range s.tenancy.BaseDomains {
		suffix := "." + strings.ToLower(strings.TrimPrefix(base, "."))
		if !strings.HasSuffix(host, suffix) {
			continue
		}
		label := strings.TrimSuffix(host, suffix)
		if label == "" || strings.Contains(label, ".") {
			return "", false
		}
		return label, true
	}
	return "", false
}
