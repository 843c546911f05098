package chatnet

import "strings"

// CanonicalSuffix is the network address suffix for individual chats.
const CanonicalSuffix = "@c.us"

// NormalizeChatID appends the canonical suffix to a bare chat address.
// IDs that already carry a server part (individual or group) pass
// through unchanged, so NormalizeChatID(NormalizeChatID(x)) ==
// NormalizeChatID(x).
func NormalizeChatID(id string) string {
	if id == "" || strings.Contains(id, "@") {
		return id
	}
	return id + CanonicalSuffix
}
