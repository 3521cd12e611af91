package models

import "strings"

// ChannelIDLength is the length of a canonical "UC..." channel ID.
const ChannelIDLength = 24

// Channel represents a YouTube channel
type Channel struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Subscribers     int64  `json:"subscriberCount"`
	ViewCount       int64  `json:"viewCount"`
	VideoCount      int64  `json:"videoCount"`
	Thumbnail       string `json:"thumbnailUrl"`
	UploadsPlaylist string `json:"uploadsPlaylistId,omitempty"`
}

// URL returns the public channel page.
func (c Channel) URL() string {
	return "https://www.youtube.com/channel/" + c.ID
}

// IsChannelID reports whether s looks like a canonical channel ID.
func IsChannelID(s string) bool {
	return strings.HasPrefix(s, "UC") && len(s) == ChannelIDLength
}
