package cli

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

const dataAPIModule = "google.golang.org/api"

// moduleInfo reports the main module path and the version of the YouTube
// Data API client linked into the binary. Unknown values are "unknown".
func moduleInfo() (path, dataAPI string) {
	path, dataAPI = "unknown", "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return path, dataAPI
	}
	if info.Main.Path != "" {
		path = info.Main.Path
	}
	for _, dep := range info.Deps {
		if dep.Path != dataAPIModule {
			continue
		}
		dataAPI = dep.Version
		if dep.Replace != nil {
			dataAPI = dep.Replace.Version
		}
		break
	}
	return path, dataAPI
}

// resolvedVersion prefers the linker-set version and falls back to the
// module version recorded by go install.
func resolvedVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			short, _ := cmd.Flags().GetBool("short")
			jsonOutput, _ := cmd.Flags().GetBool("json")
			v := resolvedVersion()

			if short {
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}

			module, dataAPI := moduleInfo()
			if jsonOutput {
				info := map[string]string{
					"version":   v,
					"commit":    commit,
					"built":     buildTime,
					"module":    module,
					"dataApi":   dataAPI,
					"goVersion": runtime.Version(),
					"platform":  runtime.GOOS + "/" + runtime.GOARCH,
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "ytreport version %s\n", v)
			fmt.Fprintf(w, "  commit:     %s\n", commit)
			fmt.Fprintf(w, "  built:      %s\n", buildTime)
			fmt.Fprintf(w, "  module:     %s\n", module)
			fmt.Fprintf(w, "  data api:   %s %s (YouTube Data API v3)\n", dataAPIModule, dataAPI)
			fmt.Fprintf(w, "  go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}

	cmd.Flags().Bool("short", false, "print version string only")
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}
