package crewkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for crewkit operations.
var (
	// ErrUserNotFound is returned when a member record does not exist in the team.
	ErrUserNotFound = errors.New("crewkit: user not found")

	// ErrUserDeleted is returned when a member record exists but is soft-deleted.
	ErrUserDeleted = errors.New("crewkit: user deleted")

	// ErrInsufficientPermissions is returned when a member's role lacks a required permission.
	ErrInsufficientPermissions = errors.New("crewkit: insufficient permissions")

	// ErrSelfChangeDenied is returned when a member tries to change their own role.
	ErrSelfChangeDenied = errors.New("crewkit: self role change denied")

	// ErrCannotDemoteRole is returned when the target's current role is outside the actor's demote set.
	ErrCannotDemoteRole = errors.New("crewkit: cannot demote role")

	// ErrCannotPromoteRole is returned when the requested role is outside the actor's promote set.
	ErrCannotPromoteRole = errors.New("crewkit: cannot promote role")

	// ErrCannotPromoteToHigherRole is returned when the requested role is at or above the actor's level.
	ErrCannotPromoteToHigherRole = errors.New("crewkit: cannot promote to equal or higher role")

	// ErrNotTeamMember is returned when the caller is not a live member of the team.
	ErrNotTeamMember = errors.New("crewkit: not a team member")

	// ErrInvalidArgument is returned for missing or malformed input.
	ErrInvalidArgument = errors.New("crewkit: invalid argument")

	// ErrAlreadyHasRole is reported per item by bulk changes when the target already holds the role.
	ErrAlreadyHasRole = errors.New("crewkit: user already has role")

	// ErrUnauthenticated is returned when no caller identity is present in context.
	ErrUnauthenticated = errors.New("crewkit: unauthenticated")

	// ErrWorkflowNotFound is returned when a role change request does not exist.
	ErrWorkflowNotFound = errors.New("crewkit: role change request not found")

	// ErrInvalidWorkflowTransition is returned when a request is moved along an illegal edge.
	ErrInvalidWorkflowTransition = errors.New("crewkit: invalid workflow transition")

	// ErrStorage is returned when the backing store fails.
	ErrStorage = errors.New("crewkit: storage error")
)

// ErrorCode is the stable, machine readable identifier of an error kind.
type ErrorCode string

const (
	CodeUserNotFound              ErrorCode = "user-not-found"
	CodeUserDeleted               ErrorCode = "user-deleted"
	CodeInsufficientPermissions   ErrorCode = "insufficient-permissions"
	CodeSelfChangeDenied          ErrorCode = "self-change-denied"
	CodeCannotDemoteRole          ErrorCode = "cannot-demote-role"
	CodeCannotPromoteRole         ErrorCode = "cannot-promote-role"
	CodeCannotPromoteToHigherRole ErrorCode = "cannot-promote-to-higher-role"
	CodeNotTeamMember             ErrorCode = "not-team-member"
	CodeInvalidArgument           ErrorCode = "invalid-argument"
	CodeAlreadyHasRole            ErrorCode = "already-has-role"
	CodeUnauthenticated           ErrorCode = "unauthenticated"
	CodeWorkflowNotFound          ErrorCode = "workflow-not-found"
	CodeInvalidWorkflowTransition ErrorCode = "invalid-workflow-transition"
	CodeStorage                   ErrorCode = "storage-error"
	CodeInternal                  ErrorCode = "internal"
)

// ErrorKind groups error codes by how the boundary should answer them.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not-found"
	KindPermissionDenied ErrorKind = "permission-denied"
	KindInvalidArgument  ErrorKind = "invalid-argument"
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindInternal         ErrorKind = "internal"
)

type errorInfo struct {
	code    ErrorCode
	kind    ErrorKind
	message string
}

var errorTable = []struct {
	err  error
	info errorInfo
}{
	{ErrUserNotFound, errorInfo{CodeUserNotFound, KindNotFound, "User not found"}},
	{ErrUserDeleted, errorInfo{CodeUserDeleted, KindNotFound, "User has been deleted"}},
	{ErrInsufficientPermissions, errorInfo{CodeInsufficientPermissions, KindPermissionDenied, "Insufficient permissions"}},
	{ErrSelfChangeDenied, errorInfo{CodeSelfChangeDenied, KindPermissionDenied, "You cannot change your own role"}},
	{ErrCannotDemoteRole, errorInfo{CodeCannotDemoteRole, KindPermissionDenied, "You cannot change the role of this user"}},
	{ErrCannotPromoteRole, errorInfo{CodeCannotPromoteRole, KindPermissionDenied, "You cannot assign this role"}},
	{ErrCannotPromoteToHigherRole, errorInfo{CodeCannotPromoteToHigherRole, KindPermissionDenied, "You cannot assign a role equal to or higher than your own"}},
	{ErrNotTeamMember, errorInfo{CodeNotTeamMember, KindPermissionDenied, "You are not a member of this team"}},
	{ErrInvalidArgument, errorInfo{CodeInvalidArgument, KindInvalidArgument, "Invalid argument"}},
	{ErrAlreadyHasRole, errorInfo{CodeAlreadyHasRole, KindInvalidArgument, "User already has this role"}},
	{ErrUnauthenticated, errorInfo{CodeUnauthenticated, KindUnauthenticated, "Authentication required"}},
	{ErrWorkflowNotFound, errorInfo{CodeWorkflowNotFound, KindNotFound, "Role change request not found"}},
	{ErrInvalidWorkflowTransition, errorInfo{CodeInvalidWorkflowTransition, KindInvalidArgument, "Role change request cannot be processed in its current state"}},
	{ErrStorage, errorInfo{CodeStorage, KindInternal, "Internal error"}},
}

func lookupError(err error) (errorInfo, bool) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.info, true
		}
	}
	return errorInfo{CodeInternal, KindInternal, "Internal error"}, false
}

// Error wraps a sentinel error with additional context.
type Error struct {
	Err     error  // Underlying sentinel error
	Message string // Additional context
	TeamID  string // Team involved (if applicable)
	UserID  string // Target user involved (if applicable)
	ActorID string // Actor who triggered the error (if applicable)
	Role    Role   // Role involved (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithTeam adds team information to the error.
func (e *Error) WithTeam(teamID string) *Error {
	e.TeamID = teamID
	return e
}

// WithRole adds role information to the error.
func (e *Error) WithRole(role Role) *Error {
	e.Role = role
	return e
}

// WithUser adds user information to the error.
func (e *Error) WithUser(userID string) *Error {
	e.UserID = userID
	return e
}

// WithActor adds actor information to the error.
func (e *Error) WithActor(actorID string) *Error {
	e.ActorID = actorID
	return e
}

// Code returns the stable code of err, or CodeInternal for unknown errors.
func Code(err error) ErrorCode {
	info, _ := lookupError(err)
	return info.code
}

// Kind returns how the boundary should classify err.
func Kind(err error) ErrorKind {
	info, _ := lookupError(err)
	return info.kind
}

// Message returns the human readable message for err. Unknown errors get a
// generic message so that internal detail never reaches callers.
func Message(err error) string {
	info, known := lookupError(err)
	if !known || info.kind == KindInternal {
		return info.message
	}
	var e *Error
	if info.code == CodeInvalidArgument && errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return info.message
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	return Kind(err) == KindNotFound
}

// IsPermissionDenied checks if an error denies the operation.
func IsPermissionDenied(err error) bool {
	return Kind(err) == KindPermissionDenied
}

// IsInvalidArgument checks if an error is due to malformed input.
func IsInvalidArgument(err error) bool {
	return Kind(err) == KindInvalidArgument
}

func invalidArgument(format string, args ...any) *Error {
	return NewError(ErrInvalidArgument, fmt.Sprintf(format, args...))
}
