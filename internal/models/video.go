package models

import (
	"sort"
	"time"
)

// Video represents a YouTube video
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"publishedAt"`
	Views       int64     `json:"views"`
	Likes       int64     `json:"likes"`
	Comments    int64     `json:"comments"`
	Duration    string    `json:"duration,omitempty"`
	Thumbnail   string    `json:"thumbnailUrl"`
}

// WatchURL returns the public watch page of the video.
func (v Video) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// VideoSortOption represents the available sorting options
type VideoSortOption string

const (
	SortByViews   VideoSortOption = "views"
	SortByLikes   VideoSortOption = "likes"
	SortByRecency VideoSortOption = "recency"
)

// ParseSortOption maps a query value to a sort option, defaulting to recency.
func ParseSortOption(s string) VideoSortOption {
	switch VideoSortOption(s) {
	case SortByViews, SortByLikes:
		return VideoSortOption(s)
	default:
		return SortByRecency
	}
}

// VideoFilter represents the filter options for videos
type VideoFilter struct {
	SortBy    VideoSortOption `json:"sortBy"`
	MaxVideos int             `json:"maxVideos"`
	MinViews  int64           `json:"minViews"`
	MinLikes  int64           `json:"minLikes"`
}

// Apply returns a filtered, sorted copy of videos. The input is not modified.
func (f VideoFilter) Apply(videos []Video) []Video {
	out := make([]Video, 0, len(videos))
	for _, v := range videos {
		if v.Views < f.MinViews || v.Likes < f.MinLikes {
			continue
		}
		out = append(out, v)
	}

	switch f.SortBy {
	case SortByViews:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Views > out[j].Views })
	case SortByLikes:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Likes > out[j].Likes })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	}

	if f.MaxVideos > 0 && len(out) > f.MaxVideos {
		out = out[:f.MaxVideos]
	}
	return out
}

// SortChronological orders videos oldest first, in place.
func SortChronological(videos []Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].PublishedAt.Before(videos[j].PublishedAt)
	})
}
