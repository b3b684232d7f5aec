package crewkit

import (
	"context"
	"errors"
)

// StoreResolver resolves identities straight from a MemberStore.
type StoreResolver struct {
	members MemberStore
}

// NewStoreResolver creates an IdentityResolver reading from members.
func NewStoreResolver(members MemberStore) *StoreResolver {
	return &StoreResolver{members: members}
}

// Resolve returns the member record for (teamID, userID).
func (r *StoreResolver) Resolve(ctx context.Context, userID, teamID string) (*Member, error) {
	if userID == "" || teamID == "" {
		return nil, invalidArgument("user ID and team ID are required")
	}

	member, err := r.members.GetMember(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, NewError(ErrUserNotFound, "no membership record").
				WithTeam(teamID).
				WithUser(userID)
		}
		return nil, err
	}
	return member, nil
}

// resolveLive resolves a member and rejects soft-deleted records.
func resolveLive(ctx context.Context, resolver IdentityResolver, userID, teamID string) (*Member, error) {
	member, err := resolver.Resolve(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	if member.IsDeleted {
		return nil, NewError(ErrUserDeleted, "member is deleted").
			WithTeam(teamID).
			WithUser(userID)
	}
	return member, nil
}
