// Package crewkit provides role management, permission checks and an audit
// trail for the teams of a graffiti-removal crew application.
//
// Every team member holds exactly one of three fixed roles. Roles map to a
// closed set of permissions, and a role change is only applied when the
// transition rules allow it. Every applied change is recorded in a per-team
// audit log.
//
// # Core Concepts
//
// Role: one of admin (level 100), manager (50) and field_worker (10). The role
// catalogue is fixed at compile time; there are no custom roles.
//
// Permission: a "resource:action" string such as "incidents:assign" or
// "billing:view". A role grants an explicit list of permissions; nothing is
// inferred from the level and there are no wildcards.
//
// Member: a user's record in a team, keyed by (team ID, user ID). Removed
// members are soft-deleted and keep their audit history.
//
// # Transition Rules
//
// An actor may move a target to a new role when, in order:
//
//   - both actor and target exist in the team and are not deleted
//   - the actor holds users:manage_roles
//   - the actor is not the target (no self changes, for any role)
//   - the actor is admin, or the target's role is in the actor's demote set,
//     the new role is in the actor's promote set, and the new role is below
//     the actor's level
//
// A manager can therefore only move members from field_worker to field_worker.
//
// # Basic Usage
//
//	// 1. Create the service on a store
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	_, _ = db.Migrate(ctx, crewkit.Migrations())
//	service := crewkit.NewService(crewkit.NewPostgresStore(db),
//	    crewkit.WithLogger(logger),
//	)
//
//	// 2. Act on behalf of the caller
//	ctx = crewkit.WithUserID(ctx, callerID)
//
//	// 3. Change a role
//	res, err := service.ChangeUserRole(ctx, crewkit.ChangeRoleInput{
//	    TeamID:       teamID,
//	    TargetUserID: workerID,
//	    NewRole:      crewkit.RoleManager,
//	    Reason:       "Leads the north district crew",
//	})
//
//	// 4. Check permissions
//	checker, _ := service.GetChecker(ctx, teamID)
//	if checker.Can(crewkit.PermIncidentsAssign) {
//	    // Member can dispatch incidents
//	}
//
// # Bulk Changes
//
// BulkChangeRoles applies one role to up to 50 members, one at a time and in
// input order. Malformed input fails the whole call before anything is read;
// after that each member's outcome is reported in its own result item and a
// failure never stops the batch.
//
// # Role Change Requests
//
// Members who cannot change roles themselves file a request with
// RequestRoleChange. It stays pending until a member holding
// users:manage_roles approves it (which executes the change with the approver
// as actor) or rejects it. An admin's request is executed immediately.
//
// # HTTP
//
//	identity, _ := crewkit.NewJWTIdentity(secret, "crewkit")
//	mw := crewkit.NewMiddleware(service, crewkit.WithUserIDExtractor(identity.UserID))
//	http.ListenAndServe(":8080", crewkit.NewRouter(service, mw))
//
// # Audit Log
//
// Every applied role change is logged with:
//   - Actor and target, with display names
//   - Previous and new role
//   - Reason
//   - Timestamp and a sortable ID
//   - Request metadata (IP, user agent, request ID)
//
// Appending to the audit log never fails the role change it records. A failed
// append is logged and counted in crewkit_audit_append_failures_total.
package crewkit
