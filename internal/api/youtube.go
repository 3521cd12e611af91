package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/yt-insights/ytreport/internal/config"
	"github.com/yt-insights/ytreport/internal/models"
)

var (
	ErrChannelNotFound     = errors.New("channel not found")
	ErrInvalidChannelInput = errors.New("invalid channel input")
	ErrNoVideos            = errors.New("no videos found")
	ErrInvalidCount        = errors.New("video count must be at least 1")
)

// maxResultsPerPage is the Data API limit for list calls and for the
// number of IDs in one videos.list request.
const maxResultsPerPage = 50

// InputKind says how a channel argument has to be looked up.
type InputKind int

const (
	InputChannelID InputKind = iota
	InputHandle
	InputUsername
)

func (k InputKind) String() string {
	switch k {
	case InputChannelID:
		return "channel ID"
	case InputHandle:
		return "handle"
	case InputUsername:
		return "username"
	default:
		return "unknown"
	}
}

// ChannelInput is a parsed channel argument.
type ChannelInput struct {
	Kind  InputKind
	Value string
	Raw   string
}

// ParseChannelInput classifies a channel argument: a literal "UC..." ID,
// a youtube.com channel URL, an @handle, or a bare handle.
func ParseChannelInput(raw string) (ChannelInput, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ChannelInput{}, fmt.Errorf("%w: empty", ErrInvalidChannelInput)
	}

	if models.IsChannelID(raw) {
		return ChannelInput{Kind: InputChannelID, Value: raw, Raw: raw}, nil
	}

	if u, ok := youtubeURL(raw); ok {
		return parseChannelURL(raw, u)
	}

	handle := strings.TrimPrefix(raw, "@")
	if handle == "" {
		return ChannelInput{}, fmt.Errorf("%w: empty handle", ErrInvalidChannelInput)
	}
	return ChannelInput{Kind: InputHandle, Value: handle, Raw: raw}, nil
}

// youtubeURL parses raw as a URL, with or without scheme, and reports
// whether its host is youtube.com, a subdomain of it, or youtu.be.
func youtubeURL(raw string) (*url.URL, bool) {
	if strings.ContainsAny(raw, " \t\n") {
		return nil, false
	}
	s := raw
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, false
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "youtube.com", strings.HasSuffix(host, ".youtube.com"), host == "youtu.be":
		return u, true
	}
	return nil, false
}

func parseChannelURL(raw string, parsedURL *url.URL) (ChannelInput, error) {
	if strings.EqualFold(parsedURL.Hostname(), "youtu.be") {
		return ChannelInput{}, fmt.Errorf("%w: youtu.be URLs point to videos, not channels", ErrInvalidChannelInput)
	}

	segments := strings.Split(strings.Trim(parsedURL.Path, "/"), "/")
	first := segments[0]
	second := ""
	if len(segments) > 1 {
		second = segments[1]
	}

	switch {
	case strings.HasPrefix(first, "@") && len(first) > 1:
		return ChannelInput{Kind: InputHandle, Value: first[1:], Raw: raw}, nil
	case first == "channel" && second != "":
		return ChannelInput{Kind: InputChannelID, Value: second, Raw: raw}, nil
	case (first == "c" || first == "user") && second != "":
		return ChannelInput{Kind: InputUsername, Value: second, Raw: raw}, nil
	}
	return ChannelInput{}, fmt.Errorf("%w: unsupported YouTube URL format %q", ErrInvalidChannelInput, raw)
}

// Options configures the Data API client.
type Options struct {
	// Endpoint overrides the API base URL, e.g. for a proxy.
	Endpoint          string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// YouTubeAPI handles YouTube Data API v3 interactions
type YouTubeAPI struct {
	service *youtube.Service
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewYouTubeAPI creates a key-authenticated Data API client.
func NewYouTubeAPI(ctx context.Context, apiKey string, opts Options, logger *slog.Logger) (*YouTubeAPI, error) {
	if apiKey == "" {
		return nil, config.ErrMissingAPIKey
	}

	httpClient := &http.Client{
		Timeout:   opts.Timeout,
		Transport: &transport.APIKey{Key: apiKey},
	}
	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	service, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	return &YouTubeAPI{
		service: service,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}, nil
}

func (y *YouTubeAPI) wait(ctx context.Context) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// ResolveChannelID turns a handle, channel URL or literal ID into a
// canonical channel ID. Handle and username lookups fall back to a
// channel search when the direct lookup finds nothing.
func (y *YouTubeAPI) ResolveChannelID(ctx context.Context, raw string) (string, error) {
	in, err := ParseChannelInput(raw)
	if err != nil {
		return "", err
	}
	y.logger.Debug("parsed channel input", "kind", in.Kind.String(), "value", in.Value)

	var id string
	switch in.Kind {
	case InputChannelID:
		return in.Value, nil
	case InputUsername:
		id, err = y.lookupChannelID(ctx, "forUsername="+in.Value, func(c *youtube.ChannelsListCall) *youtube.ChannelsListCall {
			return c.ForUsername(in.Value)
		})
	default:
		id, err = y.lookupChannelID(ctx, "forHandle="+in.Value, func(c *youtube.ChannelsListCall) *youtube.ChannelsListCall {
			return c.ForHandle(in.Value)
		})
	}
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	y.logger.Debug("direct lookup found nothing, searching", "query", in.Raw)
	id, err = y.searchChannelID(ctx, in.Raw)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrChannelNotFound, raw)
	}
	return id, nil
}

func (y *YouTubeAPI) lookupChannelID(ctx context.Context, desc string, filter func(*youtube.ChannelsListCall) *youtube.ChannelsListCall) (string, error) {
	if err := y.wait(ctx); err != nil {
		return "", err
	}
	call := filter(y.service.Channels.List([]string{"id"})).Context(ctx)
	response, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("channels.list %s: %w", desc, err)
	}
	for _, item := range response.Items {
		if item != nil && item.Id != "" {
			return item.Id, nil
		}
	}
	return "", nil
}

func (y *YouTubeAPI) searchChannelID(ctx context.Context, query string) (string, error) {
	if err := y.wait(ctx); err != nil {
		return "", err
	}
	response, err := y.service.Search.List([]string{"id"}).
		Q(query).
		Type("channel").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("search.list q=%s: %w", query, err)
	}
	for _, item := range response.Items {
		if item != nil && item.Id != nil && item.Id.ChannelId != "" {
			return item.Id.ChannelId, nil
		}
	}
	return "", nil
}

// GetChannel fetches channel information by channel ID
func (y *YouTubeAPI) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	if err := y.wait(ctx); err != nil {
		return nil, err
	}
	response, err := y.service.Channels.List([]string{"snippet", "statistics", "contentDetails"}).
		Id(channelID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("channels.list id=%s: %w", channelID, err)
	}
	if len(response.Items) == 0 || response.Items[0] == nil {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	return channelFromAPI(response.Items[0]), nil
}

func channelFromAPI(item *youtube.Channel) *models.Channel {
	channel := &models.Channel{ID: item.Id}
	if s := item.Snippet; s != nil {
		channel.Title = s.Title
		channel.Description = s.Description
		channel.Thumbnail = thumbnailURL(s.Thumbnails)
	}
	if st := item.Statistics; st != nil {
		channel.Subscribers = int64(st.SubscriberCount)
		channel.ViewCount = int64(st.ViewCount)
		channel.VideoCount = int64(st.VideoCount)
	}
	if cd := item.ContentDetails; cd != nil && cd.RelatedPlaylists != nil {
		channel.UploadsPlaylist = cd.RelatedPlaylists.Uploads
	}
	return channel
}

// GetLatestVideos returns up to n of the channel's most recent uploads,
// oldest first.
func (y *YouTubeAPI) GetLatestVideos(ctx context.Context, channel *models.Channel, n int) ([]models.Video, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}

	playlistID := uploadsPlaylistID(channel)
	if playlistID == "" {
		return nil, fmt.Errorf("%w: uploads playlist not found for %s", ErrNoVideos, channel.ID)
	}

	videoIDs, err := y.playlistVideoIDs(ctx, playlistID, n)
	if err != nil {
		return nil, err
	}
	if len(videoIDs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoVideos, channel.ID)
	}

	videos := make([]models.Video, 0, len(videoIDs))
	for i := 0; i < len(videoIDs); i += maxResultsPerPage {
		end := i + maxResultsPerPage
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		batch, err := y.videoDetails(ctx, videoIDs[i:end])
		if err != nil {
			return nil, err
		}
		videos = append(videos, batch...)
	}

	if len(videos) > n {
		videos = videos[:n]
	}
	models.SortChronological(videos)
	y.logger.Debug("fetched videos", "channel_id", channel.ID, "requested", n, "got", len(videos))
	return videos, nil
}

// uploadsPlaylistID falls back to the UU... form of the channel ID when
// contentDetails was not returned.
func uploadsPlaylistID(channel *models.Channel) string {
	if channel.UploadsPlaylist != "" {
		return channel.UploadsPlaylist
	}
	if models.IsChannelID(channel.ID) {
		return "UU" + channel.ID[2:]
	}
	return ""
}

func (y *YouTubeAPI) playlistVideoIDs(ctx context.Context, playlistID string, n int) ([]string, error) {
	var (
		ids           []string
		nextPageToken string
	)
	for len(ids) < n {
		if err := y.wait(ctx); err != nil {
			return nil, err
		}

		pageSize := n - len(ids)
		if pageSize > maxResultsPerPage {
			pageSize = maxResultsPerPage
		}
		call := y.service.PlaylistItems.List([]string{"snippet"}).
			PlaylistId(playlistID).
			MaxResults(int64(pageSize)).
			Context(ctx)
		if nextPageToken != "" {
			call = call.PageToken(nextPageToken)
		}

		response, err := call.Do()
		if err != nil {
			// Channels without uploads have no uploads playlist.
			var gerr *googleapi.Error
			if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
				return nil, fmt.Errorf("%w: playlist %s", ErrNoVideos, playlistID)
			}
			return nil, fmt.Errorf("playlistItems.list playlistId=%s: %w", playlistID, err)
		}

		for _, item := range response.Items {
			if item != nil && item.Snippet != nil && item.Snippet.ResourceId != nil && item.Snippet.ResourceId.VideoId != "" {
				ids = append(ids, item.Snippet.ResourceId.VideoId)
			}
		}

		nextPageToken = response.NextPageToken
		if nextPageToken == "" {
			break
		}
	}

	if len(ids) > n {
		ids = ids[:n]
	}
	return ids, nil
}

func (y *YouTubeAPI) videoDetails(ctx context.Context, ids []string) ([]models.Video, error) {
	if err := y.wait(ctx); err != nil {
		return nil, err
	}
	response, err := y.service.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("videos.list (%d ids): %w", len(ids), err)
	}

	videos := make([]models.Video, 0, len(response.Items))
	for _, item := range response.Items {
		if item == nil || item.Snippet == nil {
			continue
		}
		videos = append(videos, videoFromAPI(item))
	}
	return videos, nil
}

func videoFromAPI(item *youtube.Video) models.Video {
	video := models.Video{
		ID:        item.Id,
		Title:     item.Snippet.Title,
		Thumbnail: thumbnailURL(item.Snippet.Thumbnails),
	}
	if published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
		video.PublishedAt = published
	}
	// Hidden counts are omitted by the API and read as zero.
	if st := item.Statistics; st != nil {
		video.Views = int64(st.ViewCount)
		video.Likes = int64(st.LikeCount)
		video.Comments = int64(st.CommentCount)
	}
	if item.ContentDetails != nil {
		video.Duration = item.ContentDetails.Duration
	}
	return video
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	if t.Medium != nil && t.Medium.Url != "" {
		return t.Medium.Url
	}
	if t.Default != nil {
		return t.Default.Url
	}
	return ""
}

// APIErrorReason returns the HTTP status and first error reason of a Data
// API failure anywhere in err's chain.
func APIErrorReason(err error) (int, string, bool) {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return 0, "", false
	}
	reason := ""
	if len(gerr.Errors) > 0 {
		reason = gerr.Errors[0].Reason
	}
	return gerr.Code, reason, true
}
