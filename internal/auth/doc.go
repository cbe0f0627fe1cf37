// Package auth provides operator authentication and authorisation for the
// turret's outer surfaces.
//
// Operators carry pre-issued HS256 JWTs (see GenerateAccessToken) naming
// them and their role. Two roles exist:
//   - viewer: status, session history and the event stream
//   - operator: everything a viewer can do, plus fire and reload
//
// The chat command transport does not use tokens; it checks the sender
// against an Allowlist built from command.allowed_users.
package auth
