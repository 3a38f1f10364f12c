// Package session issues and verifies the signed, client-held tokens that
// represent an authenticated administrator.
//
// Tokens are HS256 JWTs carrying the identity returned by the sign-in
// provider and the admin's directory id. The server keeps no session state;
// a token is valid while its signature verifies and its expiry lies in the
// future:
//
//	svc, _ := session.NewService(secret)
//	token, expires, err := svc.Issue(session.Identity{AdminID: 7, Email: "a@example.com"})
//	claims, err := svc.Verify(token) // session.ErrExpired, session.ErrInvalid
package session
