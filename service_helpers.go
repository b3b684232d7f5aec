package crewkit

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

// caller resolves the authenticated caller as a live member of teamID.
// A missing or deleted membership is reported as ErrNotTeamMember.
func (s *Service) caller(ctx context.Context, teamID string) (*Member, error) {
	userID := GetUserID(ctx)
	if userID == "" {
		return nil, NewError(ErrUnauthenticated, "no caller identity in context")
	}
	if teamID == "" {
		return nil, invalidArgument("team ID is required")
	}

	member, err := resolveLive(ctx, s.resolver, userID, teamID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserDeleted) {
			return nil, NewError(ErrNotTeamMember, "").
				WithTeam(teamID).
				WithUser(userID)
		}
		return nil, err
	}
	return member, nil
}

// authorize resolves the caller and requires permission of their role.
func (s *Service) authorize(ctx context.Context, teamID string, permission Permission) (*Member, error) {
	member, err := s.caller(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.require(member, permission); err != nil {
		return nil, err
	}
	return member, nil
}

// authorizeUser resolves the caller and allows access to userID's data when
// userID is the caller or the caller holds users:view_all. An empty userID
// means the caller. It returns the caller and the effective user ID.
func (s *Service) authorizeUser(ctx context.Context, teamID, userID string) (*Member, string, error) {
	member, err := s.caller(ctx, teamID)
	if err != nil {
		return nil, "", err
	}
	if userID == "" || userID == member.UserID {
		return member, member.UserID, nil
	}
	if err := s.require(member, PermUsersViewAll); err != nil {
		return nil, "", err
	}
	return member, userID, nil
}

// require checks member against the oracle and counts the outcome.
func (s *Service) require(member *Member, permission Permission) error {
	err := s.oracle.RequireMember(member, permission)
	s.metrics.observePermissionCheck(err == nil)
	return err
}

// fail logs internal errors with full detail and returns err unchanged.
// Expected outcomes (denied, not found, invalid input) are logged at debug.
func (s *Service) fail(ctx context.Context, op, teamID string, err error) error {
	fields := append(requestFields(GetAuditContext(ctx), teamID, GetUserID(ctx)),
		zap.String("op", op),
		zap.String("code", string(Code(err))),
		zap.Error(err),
	)
	if Kind(err) == KindInternal {
		s.logger.Error("operation failed", fields...)
	} else {
		s.logger.Debug("operation refused", fields...)
	}
	return err
}
