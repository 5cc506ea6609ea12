// Package membership implements the back end of a membership site: public
// applications, admin review, account provisioning and the token based
// password flows that follow.
//
// Application lifecycle:
//   - Applications start pending. MembershipLifecycle moves them between
//     pending, approved and blocked, runs hooks around each transition and
//     persists the result through the Applications store.
//   - The first transition into approved asks the Provisioner for an
//     account. Provisioning is lazy and idempotent: an existing account for
//     the email is left alone, and a duplicate insert is treated the same way.
//
// Tokens:
//   - Setup tokens are issued on provisioning and last 24 hours, reset tokens
//     last one hour. Only a SHA-256 digest of each token is stored and a token
//     is cleared on redemption, so it can be used once.
//
// Notifications:
//   - Welcome, reset and contact emails go through a Notifier. Dispatch turns
//     each attempt into an Outcome. Delivery failures never undo an approval or
//     a stored contact message; callers inspect the Outcome instead.
//
// Sessions:
//   - SessionService signs HS256 JWTs built from ClaimsFromAccount. Admin
//     routes are guarded by RequireRole.
package membership
