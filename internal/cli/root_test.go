package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yt-insights/ytreport/internal/output"
)

const channelID = "UC_x5XG1OV2P6uZZ5FSM9Ttw"

// fakeDataAPI answers forHandle=known and serves a channel with five
// uploads.
func fakeDataAPI(t *testing.T) *httptest.Server {
	t.Helper()
	uploads := []string{"v4", "v3", "v2", "v1", "v0"}
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		var resp any
		switch {
		case strings.HasSuffix(r.URL.Path, "/channels"):
			items := []any{}
			if q.Get("forHandle") == "known" {
				items = append(items, map[string]any{"id": channelID})
			}
			if q.Get("id") == channelID {
				items = append(items, map[string]any{
					"id":             channelID,
					"snippet":        map[string]any{"title": "Known Channel"},
					"statistics":     map[string]string{"subscriberCount": "5000", "viewCount": "123456", "videoCount": "5"},
					"contentDetails": map[string]any{"relatedPlaylists": map[string]string{"uploads": "UU" + channelID[2:]}},
				})
			}
			resp = map[string]any{"items": items}
		case strings.HasSuffix(r.URL.Path, "/search"):
			resp = map[string]any{"items": []any{}}
		case strings.HasSuffix(r.URL.Path, "/playlistItems"):
			items := []any{}
			for _, id := range uploads {
				items = append(items, map[string]any{"snippet": map[string]any{"resourceId": map[string]string{"videoId": id}}})
			}
			resp = map[string]any{"items": items}
		case strings.HasSuffix(r.URL.Path, "/videos"):
			items := []any{}
			for _, raw := range q["id"] {
				for _, id := range strings.Split(raw, ",") {
					var n int
					_, _ = fmt.Sscanf(id, "v%d", &n)
					items = append(items, map[string]any{
						"id": id,
						"snippet": map[string]any{
							"title":       "Upload " + id,
							"publishedAt": base.AddDate(0, 0, n).Format(time.RFC3339),
						},
						"statistics": map[string]string{
							"viewCount": fmt.Sprint(100 * (n + 1)),
							"likeCount": fmt.Sprint(n + 1),
						},
					})
				}
			}
			resp = map[string]any{"items": items}
		default:
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupCLITest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	srv := fakeDataAPI(t)
	t.Setenv("YTREPORT_YOUTUBE_ENDPOINT", srv.URL+"/")
	t.Setenv("YTREPORT_YOUTUBE_REQUESTS_PER_SECOND", "1000")
	t.Setenv("YTREPORT_DB_PATH", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("NO_COLOR", "1")
	return dir
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestReport_Success(t *testing.T) {
	dir := setupCLITest(t)
	out := filepath.Join(dir, "report.html")

	code, stdout, stderr := run("test-key", "@known", "-n", "3", "-o", out)
	require.Equal(t, output.ExitSuccess, code, stderr)

	for _, step := range []string{"[1/4]", "[2/4]", "[3/4]", "[4/4]"} {
		assert.Contains(t, stdout, step)
	}
	assert.Contains(t, stdout, "Channel ID: "+channelID)
	assert.Contains(t, stdout, "Known Channel")
	assert.Contains(t, stdout, "Report saved to")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Find("#ranking tbody tr").Length())
	first, _ := doc.Find("#ranking tbody tr").First().Attr("data-video-id")
	assert.Equal(t, "v4", first)
}

func TestReport_DefaultOutputPath(t *testing.T) {
	dir := setupCLITest(t)

	code, _, stderr := run("test-key", channelID, "--quiet")
	require.Equal(t, output.ExitSuccess, code, stderr)

	_, err := os.Stat(filepath.Join(dir, "youtube_report.html"))
	assert.NoError(t, err)
}

func TestReport_UnresolvableChannel(t *testing.T) {
	dir := setupCLITest(t)
	out := filepath.Join(dir, "report.html")

	code, _, stderr := run("test-key", "@nobody", "-o", out)
	assert.Equal(t, output.ExitResolve, code)
	assert.Contains(t, stderr, "could not resolve channel @nobody")
	assert.Contains(t, stderr, "Suggestion:")

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no report is written on failure")
}

func TestReport_WriteFailure(t *testing.T) {
	dir := setupCLITest(t)
	out := filepath.Join(dir, "missing-dir", "report.html")

	code, _, stderr := run("test-key", "@known", "-o", out)
	assert.Equal(t, output.ExitWrite, code)
	assert.Contains(t, stderr, "could not write report")
}

func TestReport_UsageErrors(t *testing.T) {
	setupCLITest(t)

	code, _, _ := run("only-one-arg")
	assert.Equal(t, output.ExitUsageError, code)

	code, _, _ = run("test-key", "@known", "-n", "0")
	assert.Equal(t, output.ExitUsageError, code)

	code, _, _ = run("test-key", "@known", "--color", "rainbow")
	assert.Equal(t, output.ExitUsageError, code)
}

func TestReport_MissingAPIKey(t *testing.T) {
	setupCLITest(t)
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("YTREPORT_YOUTUBE_API_KEY", "")

	code, _, stderr := run("", "@known")
	assert.Equal(t, output.ExitConfig, code)
	assert.Contains(t, stderr, "YOUTUBE_API_KEY")
}

func TestReport_SnapshotStoreUnavailable(t *testing.T) {
	dir := setupCLITest(t)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	t.Setenv("YTREPORT_DB_PATH", filepath.Join(blocker, "snapshots.db"))

	code, _, stderr := run("test-key", "@known", "-o", filepath.Join(dir, "report.html"))
	require.Equal(t, output.ExitSuccess, code, stderr)
	assert.Contains(t, stderr, "Snapshot store unavailable")
}

func TestReport_InvalidTimeFormat(t *testing.T) {
	setupCLITest(t)
	t.Setenv("YTREPORT_REPORT_TIME_FORMAT", "%Q")

	code, stdout, stderr := run("test-key", "@known")
	assert.Equal(t, output.ExitConfig, code)
	assert.Contains(t, stderr, "time_format")
	assert.NotContains(t, stdout, "[1/4]")
}

func TestExecute_ErrorsHonourColorSettings(t *testing.T) {
	setupCLITest(t)
	t.Setenv("NO_COLOR", "")
	require.NoError(t, os.Unsetenv("NO_COLOR"))
	t.Setenv("TERM", "xterm")

	noColor := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = noColor })

	t.Run("color flag never", func(t *testing.T) {
		code, _, stderr := run("--color", "never", "test-key", "@nobody")
		assert.Equal(t, output.ExitResolve, code)
		assert.Contains(t, stderr, "[ERROR]")
		assert.NotContains(t, stderr, "\x1b[")
	})

	t.Run("colors disabled in config", func(t *testing.T) {
		t.Setenv("YTREPORT_OUTPUT_COLORS", "false")
		code, _, stderr := run("test-key", "@nobody")
		assert.Equal(t, output.ExitResolve, code)
		assert.NotContains(t, stderr, "\x1b[")
	})

	t.Run("usage error before setup", func(t *testing.T) {
		code, _, stderr := run("--color", "never", "only-one-arg")
		assert.Equal(t, output.ExitUsageError, code)
		assert.NotContains(t, stderr, "\x1b[")
	})

	t.Run("color flag always", func(t *testing.T) {
		_, _, stderr := run("--color", "always", "test-key", "@nobody")
		assert.Contains(t, stderr, "\x1b[")
	})
}

func TestRootCmd_Help(t *testing.T) {
	var stdout bytes.Buffer
	cmd := NewRootCmd(&stdout, &stdout)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())

	out := stdout.String()
	for _, want := range []string{"ytreport", "serve", "version", "--num", "--output"} {
		assert.Contains(t, out, want)
	}
}

func TestVersionCmd(t *testing.T) {
	SetBuildInfo("1.2.3", "abc123", "today")
	t.Cleanup(func() { SetBuildInfo("dev", "unknown", "unknown") })

	code, stdout, _ := run("version", "--short")
	assert.Equal(t, output.ExitSuccess, code)
	assert.Equal(t, "1.2.3\n", stdout)

	code, stdout, _ = run("version", "--json")
	assert.Equal(t, output.ExitSuccess, code)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, "abc123", info["commit"])
	assert.Contains(t, info, "module")
	assert.Contains(t, info, "dataApi")

	code, stdout, _ = run("version")
	assert.Equal(t, output.ExitSuccess, code)
	assert.Contains(t, stdout, "ytreport version 1.2.3")
	assert.Contains(t, stdout, "data api:   google.golang.org/api")
}
