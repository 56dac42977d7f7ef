// Package access classifies channel names and decides join eligibility.
// Everything here is pure: channel kind is derived from the name alone and
// never stored, so classification can not drift from the registry.
package access

import "strings"

// ChannelKind is the access class a channel name falls into.
type ChannelKind string

const (
	// KindPublic channels accept any connection, authenticated or not.
	KindPublic ChannelKind = "public"
	// KindPrivate channels require an authenticated connection.
	KindPrivate ChannelKind = "private"
	// KindPresence channels have private join rules; membership changes
	// are additionally surfaced to members. The distinction matters to
	// clients, not to server-side permission.
	KindPresence ChannelKind = "presence"
	// KindUser channels ("user.<id>") belong to exactly one user.
	KindUser ChannelKind = "user"
)

const (
	userPrefix     = "user."
	privatePrefix  = "private-"
	presencePrefix = "presence-"
)

// Classify derives the kind of a channel from its name.
func Classify(channel string) ChannelKind {
	switch {
	case strings.HasPrefix(channel, userPrefix):
		return KindUser
	case strings.HasPrefix(channel, privatePrefix):
		return KindPrivate
	case strings.HasPrefix(channel, presencePrefix):
		return KindPresence
	default:
		return KindPublic
	}
}

// UserChannel returns the user-scoped channel name for a user id.
func UserChannel(userID string) string {
	return userPrefix + userID
}

// CanJoin reports whether a connection in the given authentication state
// may join the channel. userID is the authenticated identity, empty when
// unauthenticated.
func CanJoin(authenticated bool, userID, channel string) bool {
	switch Classify(channel) {
	case KindUser:
		// Only the exact owner may join their own channel.
		return authenticated && channel == UserChannel(userID)
	case KindPrivate, KindPresence:
		// Any logged-in connection. Authorization beyond "is
		// authenticated" is the caller's concern.
		return authenticated
	default:
		return true
	}
}
