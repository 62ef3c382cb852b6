// Package models defines the domain models for the dashgate service.
// This file contains the per-request caller identity.
package models

import "github.com/turtacn/dashgate/pkg/constants"

// CallerIdentity is the subject a request is attributed to. It is derived per
// request and never persisted: either an authenticated subject or, when no
// valid session exists, the caller's source address.
type CallerIdentity struct {
	// SubjectID is the authenticated user id. Empty for anonymous callers.
	SubjectID string
	// SourceAddress is the forwarded client address, or constants.UnknownAddress.
	SourceAddress string
	// Session carries the verified session claims for authenticated callers.
	Session *SessionClaims
}

// Authenticated returns the identity of a signed-in caller.
func Authenticated(subjectID, sourceAddress string, session *SessionClaims) CallerIdentity {
	return CallerIdentity{SubjectID: subjectID, SourceAddress: sourceAddress, Session: session}
}

// Anonymous returns the identity of a caller without a valid session.
func Anonymous(sourceAddress string) CallerIdentity {
	if sourceAddress == "" {
		sourceAddress = constants.UnknownAddress
	}
	return CallerIdentity{SourceAddress: sourceAddress}
}

// IsAuthenticated reports whether a valid session credential was presented.
func (c CallerIdentity) IsAuthenticated() bool {
	return c.SubjectID != ""
}

// BucketKey returns the rate limit key for this identity. Authenticated callers
// are always keyed by subject, never by address.
func (c CallerIdentity) BucketKey() string {
	if c.IsAuthenticated() {
		return constants.BucketKeyUserPrefix + c.SubjectID
	}
	return constants.BucketKeyIPPrefix + c.SourceAddress
}

// Pool returns the bucket pool this identity consumes from.
func (c CallerIdentity) Pool() constants.RateLimitPool {
	if c.IsAuthenticated() {
		return constants.RateLimitPoolAuthenticated
	}
	return constants.RateLimitPoolAnonymous
}
