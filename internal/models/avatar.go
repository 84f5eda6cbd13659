package models

import "net/url"

const avatarBase = "https://api.dicebear.com/8.x/initials/svg?seed="

// AvatarURL returns the generated initials avatar for seed.
func AvatarURL(seed string) string {
	return avatarBase + url.QueryEscape(seed)
}
