package cli

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/yt-insights/ytreport/internal/api"
	"github.com/yt-insights/ytreport/internal/output"
)

func (a *app) newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the channel report HTTP API",
		Long: `Serve channel lookups, video lists and reports over HTTP.

The API key comes from YOUTUBE_API_KEY or youtube.api_key. When db.path is
set, reports are cached per channel and video count for the current UTC day.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = a.cfg.Server.Port
			}
			if err := a.cfg.RequireAPIKey(); err != nil {
				return stageError("serve needs an API key", output.ExitConfig, err)
			}

			ctx := cmd.Context()
			client, err := api.NewYouTubeAPI(ctx, a.cfg.YouTube.APIKey, a.apiOptions(), a.logger)
			if err != nil {
				return stageError("could not create YouTube client", output.ExitConfig, err)
			}

			store := a.openStore()
			if store != nil {
				defer store.Close()
			}

			server := api.NewServer(a.cfg, api.NewReportService(client, store, a.logger), a.logger)
			if err := server.Run(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return &output.CLIError{
					Summary:  "server failed",
					Detail:   err.Error(),
					ExitCode: output.ExitGeneral,
					Err:      err,
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default from server.port or PORT)")
	return cmd
}
