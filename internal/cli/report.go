package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/yt-insights/ytreport/internal/api"
	"github.com/yt-insights/ytreport/internal/config"
	"github.com/yt-insights/ytreport/internal/models"
	"github.com/yt-insights/ytreport/internal/output"
	"github.com/yt-insights/ytreport/internal/report"
)

const (
	totalSteps   = 4
	summaryLimit = 10
)

// runReport resolves the channel, fetches its latest n videos and writes
// the HTML report to outPath.
func (a *app) runReport(ctx context.Context, apiKey, channel string, n int, outPath string) error {
	if n < 1 {
		return &output.CLIError{
			Summary:  fmt.Sprintf("invalid video count %d", n),
			Detail:   api.ErrInvalidCount.Error(),
			ExitCode: output.ExitUsageError,
			Err:      api.ErrInvalidCount,
		}
	}
	if apiKey == "" {
		apiKey = a.cfg.YouTube.APIKey
	}

	client, err := api.NewYouTubeAPI(ctx, apiKey, a.apiOptions(), a.logger)
	if err != nil {
		return stageError("could not create YouTube client", output.ExitConfig, err)
	}

	store := a.openStore()
	if store != nil {
		defer store.Close()
	}
	reports := api.NewReportService(client, store, a.logger)

	p := a.printer
	p.Step(1, totalSteps, "Resolving channel %s", channel)
	channelID, err := client.ResolveChannelID(ctx, channel)
	if err != nil {
		return stageError("could not resolve channel "+channel, output.ExitResolve, err)
	}
	p.Info("      Channel ID: %s", channelID)

	p.Step(2, totalSteps, "Fetching channel info")
	info, err := client.GetChannel(ctx, channelID)
	if err != nil {
		code := output.ExitFetch
		if errors.Is(err, api.ErrChannelNotFound) {
			code = output.ExitResolve
		}
		return stageError("could not fetch channel "+channelID, code, err)
	}
	p.Print("      %s (%s subscribers)", info.Title, humanize.Comma(info.Subscribers))

	p.Step(3, totalSteps, "Fetching latest %d videos", n)
	videos, err := client.GetLatestVideos(ctx, info, n)
	if err != nil {
		return stageError("could not fetch videos", output.ExitFetch, err)
	}
	p.Print("      got %d videos", len(videos))

	rep := models.BuildReport(*info, videos, time.Now())

	p.Step(4, totalSteps, "Writing report")
	opts := report.Options{TimeFormat: a.cfg.Report.TimeFormat}
	if err := report.WriteFile(outPath, rep, opts); err != nil {
		return stageError("could not write report to "+outPath, output.ExitWrite, err)
	}
	reports.Remember(ctx, rep, n)

	if !p.IsQuiet() {
		p.Header(fmt.Sprintf("Top %d videos by views", min(summaryLimit, len(rep.Ranking))))
		if err := p.RankingTable(rep.Ranking, summaryLimit); err != nil {
			a.logger.Warn("rendering summary table failed", "error", err)
		}
	}

	if abs, err := filepath.Abs(outPath); err == nil {
		outPath = abs
	}
	p.Success("Report saved to %s", outPath)
	return nil
}

func (a *app) apiOptions() api.Options {
	return api.Options{
		Endpoint:          a.cfg.YouTube.Endpoint,
		Timeout:           a.cfg.YouTube.Timeout,
		RequestsPerSecond: a.cfg.YouTube.RequestsPerSecond,
	}
}

// openStore opens the snapshot store when db.path is set. Failures only
// disable history.
func (a *app) openStore() models.Store {
	if a.cfg.DB.Path == "" {
		return nil
	}
	store, err := models.NewDatabase(a.cfg.DB.Path, a.logger)
	if err != nil {
		a.logger.Debug("opening snapshot store failed", "path", a.cfg.DB.Path, "error", err)
		a.printer.Warning("Snapshot store unavailable, history is not recorded: %v", err)
		return nil
	}
	return store
}

// stageError wraps err in a CLIError with a suggestion matching its cause.
func stageError(summary string, code int, err error) *output.CLIError {
	cliErr := &output.CLIError{
		Summary:  summary,
		Detail:   err.Error(),
		ExitCode: code,
		Err:      err,
	}

	switch {
	case errors.Is(err, config.ErrMissingAPIKey):
		cliErr.ExitCode = output.ExitConfig
		cliErr.Suggestion = "Pass an API key as the first argument or set YOUTUBE_API_KEY"
	case errors.Is(err, api.ErrInvalidChannelInput):
		cliErr.Suggestion = "Use an @handle, a UC... channel ID or a youtube.com/@handle, /channel/, /c/ or /user/ URL"
	case errors.Is(err, api.ErrChannelNotFound):
		cliErr.Suggestion = "Check the handle spelling or pass the channel ID directly"
	case errors.Is(err, api.ErrNoVideos):
		cliErr.Suggestion = "The channel has no public uploads"
	case errors.Is(err, report.ErrWrite):
		cliErr.Suggestion = "Check that the output directory exists and is writable"
	}

	if status, reason, ok := api.APIErrorReason(err); ok {
		switch reason {
		case "quotaExceeded", "dailyLimitExceeded":
			cliErr.Suggestion = "The daily API quota is used up; try again after it resets"
		case "keyInvalid", "badRequest":
			cliErr.Suggestion = "Check that the API key is valid and the YouTube Data API v3 is enabled"
		case "rateLimitExceeded", "userRateLimitExceeded":
			cliErr.Suggestion = "Lower youtube.requests_per_second and retry"
		default:
			cliErr.Suggestion = fmt.Sprintf("The YouTube API returned HTTP %d (%s)", status, reason)
		}
	}
	return cliErr
}
