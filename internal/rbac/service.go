package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/masig/pricebook/internal/shared"
)

// Service resolves grants and applies admin changes to them.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Resolve loads the roles and permissions of userID. Any failure is logged
// and yields empty grants.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) Grants {
	var g Grants
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		roles, err := s.repo.Roles(ctx, userID)
		if err != nil {
			return fmt.Errorf("roles: %w", err)
		}
		g.Roles = roles
		return nil
	})
	eg.Go(func() error {
		perms, err := s.repo.Permissions(ctx, userID)
		if err != nil {
			return fmt.Errorf("permissions: %w", err)
		}
		g.Permissions = perms
		return nil
	})
	if err := eg.Wait(); err != nil {
		s.logger.Error("resolve grants", slog.String("user_id", userID.String()), slog.Any("error", err))
		return Grants{}
	}
	return g
}

// ResolveInto drives tracker through loading to the resolved state of sess.
func (s *Service) ResolveInto(ctx context.Context, tracker *Tracker, sess *shared.Session) Principal {
	tracker.Begin()
	if sess == nil {
		tracker.Settle(nil, Grants{})
		return tracker.Principal()
	}
	tracker.Settle(sess, s.Resolve(ctx, sess.UserID))
	return tracker.Principal()
}

// ListUsers returns every user with their grants.
func (s *Service) ListUsers(ctx context.Context) ([]UserAccess, error) {
	return s.repo.ListUsers(ctx)
}

// Promote grants the admin role.
func (s *Service) Promote(ctx context.Context, userID uuid.UUID) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.GrantRole(ctx, userID, RoleAdmin)
}

// Demote revokes the admin role. Admins cannot demote themselves.
func (s *Service) Demote(ctx context.Context, actor, userID uuid.UUID) error {
	if actor == userID {
		return fmt.Errorf("%w: cannot remove your own admin role", shared.ErrValidation)
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.RevokeRole(ctx, userID, RoleAdmin)
}

// SetPermissions replaces the user's permission set. Only catalogue
// permissions are accepted.
func (s *Service) SetPermissions(ctx context.Context, userID uuid.UUID, perms []string) ([]string, error) {
	clean := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !shared.IsWellFormedScope(p) {
			return nil, fmt.Errorf("%w: permission %q must look like verb:resource", shared.ErrValidation, p)
		}
		if !slices.Contains(clean, p) {
			clean = append(clean, p)
		}
	}
	slices.Sort(clean)
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.repo.ReplacePermissions(ctx, userID, clean); err != nil {
		return nil, err
	}
	return clean, nil
}

// DeleteUser removes a user and their grants. Admins cannot delete
// themselves.
func (s *Service) DeleteUser(ctx context.Context, actor, userID uuid.UUID) error {
	if actor == userID {
		return fmt.Errorf("%w: cannot delete your own account", shared.ErrValidation)
	}
	return s.repo.DeleteUser(ctx, userID)
}

func (s *Service) ensureUser(ctx context.Context, userID uuid.UUID) error {
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %s: %w", userID, shared.ErrNotFound)
	}
	return nil
}
