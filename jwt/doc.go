// Package jwt issues and verifies access tokens that carry a goRBAC user:
// its id, assigned roles, direct permissions and the encoded permission
// mask. Tokens are signed with Ed25519 or HS256.
//
// The package only transports the principal. Authorization decisions are
// always made by goRBAC.Engine against the engine's current policy.
package jwt
