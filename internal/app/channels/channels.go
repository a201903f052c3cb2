package channels

import "strings"

const userChannelPrefix = "users."

// ChannelForUser returns the single private channel name scoping delivery to
// one recipient. There is exactly one channel per user.
func ChannelForUser(userID string) string {
	return userChannelPrefix + userID
}

// ParseUserChannel extracts the user id from a "users.<id>" channel name.
// Any other shape, including extra segments or an empty id, does not parse.
func ParseUserChannel(name string) (string, bool) {
	if !strings.HasPrefix(name, userChannelPrefix) {
		return "", false
	}
	id := name[len(userChannelPrefix):]
	if id == "" || strings.Contains(id, ".") {
		return "", false
	}
	return id, true
}
