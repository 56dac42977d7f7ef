package access

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		channel string
		want    ChannelKind
	}{
		{"user.7", KindUser},
		{"user.abc-123", KindUser},
		{"private-ops", KindPrivate},
		{"presence-lobby", KindPresence},
		{"general", KindPublic},
		{"room1", KindPublic},
		{"userland", KindPublic},       // no dot, not user-scoped
		{"privateers", KindPublic},     // prefix requires the dash
		{"presence", KindPublic},       // bare word, no dash
		{"private-", KindPrivate},      // empty suffix still classifies
		{"user.", KindUser},
		{"", KindPublic},
	}

	for _, tt := range tests {
		if got := Classify(tt.channel); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.channel, got, tt.want)
		}
	}
}

func TestCanJoin(t *testing.T) {
	tests := []struct {
		name          string
		authenticated bool
		userID        string
		channel       string
		want          bool
	}{
		{"public unauthenticated", false, "", "general", true},
		{"public authenticated", true, "7", "general", true},
		{"private unauthenticated", false, "", "private-ops", false},
		{"private authenticated", true, "7", "private-ops", true},
		{"presence unauthenticated", false, "", "presence-lobby", false},
		{"presence authenticated", true, "7", "presence-lobby", true},
		{"own user channel", true, "7", "user.7", true},
		{"someone else's user channel", true, "7", "user.8", false},
		{"user channel unauthenticated", false, "", "user.7", false},
		{"user channel prefix trick", true, "7", "user.77", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanJoin(tt.authenticated, tt.userID, tt.channel); got != tt.want {
				t.Errorf("CanJoin(%v, %q, %q) = %v, want %v",
					tt.authenticated, tt.userID, tt.channel, got, tt.want)
			}
		})
	}
}

func TestUserChannel(t *testing.T) {
	if got := UserChannel("42"); got != "user.42" {
		t.Errorf("UserChannel(42) = %q, want user.42", got)
	}
}
