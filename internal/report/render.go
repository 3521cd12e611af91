// Package report renders a channel Report as a self-contained HTML page.
package report

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lestrrat-go/strftime"

	"github.com/yt-insights/ytreport/internal/models"
)

// DefaultTimeFormat is the strftime pattern used for the footer timestamp.
const DefaultTimeFormat = "%Y-%m-%d %H:%M"

// ErrWrite wraps every failure to put the rendered page on disk.
var ErrWrite = errors.New("failed to write report")

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(funcMap).ParseFS(templateFS, "templates/report.html.tmpl"),
)

var funcMap = template.FuncMap{
	"comma":   humanize.Comma,
	"round":   func(f float64) string { return humanize.Comma(int64(math.Round(f))) },
	"percent": func(f float64) string { return fmt.Sprintf("%.2f%%", f*100) },
	"date":    func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	"medal":   medal,
}

// Options tweak rendering.
type Options struct {
	// TimeFormat is a strftime pattern for the generation timestamp.
	TimeFormat string
	// Location the timestamp is shown in. Defaults to local time.
	Location *time.Location
}

type page struct {
	Report      *models.Report
	GeneratedAt string
}

func medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	}
	return ""
}

// Render writes the report page to w. Nothing is written if the page
// cannot be built.
func Render(w io.Writer, rep *models.Report, opts Options) error {
	if rep == nil {
		return errors.New("nil report")
	}

	generatedAt, err := formatTime(rep.GeneratedAt, opts)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page{Report: rep, GeneratedAt: generatedAt}); err != nil {
		return fmt.Errorf("executing report template: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

func formatTime(t time.Time, opts Options) (string, error) {
	pattern := opts.TimeFormat
	if pattern == "" {
		pattern = DefaultTimeFormat
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	s, err := strftime.Format(pattern, t.In(loc))
	if err != nil {
		return "", fmt.Errorf("invalid time format %q: %w", pattern, err)
	}
	return s, nil
}

// WriteFile renders the report to path. The page goes to a temporary file
// in the same directory first and is renamed into place, so a failure
// never leaves a partial report behind.
func WriteFile(path string, rep *models.Report, opts Options) error {
	var buf bytes.Buffer
	if err := Render(&buf, rep, opts); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ytreport-*.html")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := buf.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}
