package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yt-insights/ytreport/internal/models"
)

// ChannelSource is the part of the Data API client the report pipeline
// depends on.
type ChannelSource interface {
	ResolveChannelID(ctx context.Context, raw string) (string, error)
	GetChannel(ctx context.Context, channelID string) (*models.Channel, error)
	GetLatestVideos(ctx context.Context, channel *models.Channel, n int) ([]models.Video, error)
}

var _ ChannelSource = (*YouTubeAPI)(nil)

// ReportService builds channel reports and keeps a per-day snapshot of
// each one when a store is configured.
type ReportService struct {
	source ChannelSource
	store  models.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewReportService creates a ReportService. store may be nil.
func NewReportService(source ChannelSource, store models.Store, logger *slog.Logger) *ReportService {
	return &ReportService{
		source: source,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Source returns the underlying channel source.
func (s *ReportService) Source() ChannelSource {
	return s.source
}

// Report returns the report for the n latest videos of channelID. A
// snapshot stored earlier the same UTC day is reused instead of calling
// the API again.
func (s *ReportService) Report(ctx context.Context, channelID string, n int) (*models.Report, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}

	if cached := s.cached(ctx, channelID, n); cached != nil {
		return cached, nil
	}

	channel, err := s.source.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	videos, err := s.source.GetLatestVideos(ctx, channel, n)
	if err != nil {
		return nil, err
	}

	rep := models.BuildReport(*channel, videos, s.now())
	s.Remember(ctx, rep, n)
	return rep, nil
}

func (s *ReportService) cached(ctx context.Context, channelID string, n int) *models.Report {
	if s.store == nil {
		return nil
	}
	snapshot, err := s.store.GetLatestSnapshot(ctx, channelID, n)
	if err != nil {
		s.logger.Warn("reading snapshot failed", "channel_id", channelID, "error", err)
		return nil
	}
	if snapshot == nil || !snapshot.IsFromDay(s.now()) {
		return nil
	}
	rep, err := snapshot.Report()
	if err != nil {
		s.logger.Warn("decoding snapshot failed", "channel_id", channelID, "error", err)
		return nil
	}
	s.logger.Info("using today's snapshot", "channel_id", channelID, "requested", n)
	return rep
}

// Remember stores rep as the snapshot for (channel, n). Store failures are
// logged and do not fail the caller.
func (s *ReportService) Remember(ctx context.Context, rep *models.Report, n int) {
	if s.store == nil || rep == nil {
		return
	}
	snapshot, err := models.NewReportSnapshot(rep, n, s.now())
	if err != nil {
		s.logger.Warn("encoding snapshot failed", "channel_id", rep.Channel.ID, "error", err)
		return
	}
	if err := s.store.StoreSnapshot(ctx, snapshot); err != nil {
		s.logger.Warn("storing snapshot failed", "channel_id", rep.Channel.ID, "error", err)
		return
	}
	s.logger.Debug("stored snapshot", "channel_id", rep.Channel.ID, "requested", n)
}
