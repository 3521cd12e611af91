package report

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/yt-insights/ytreport/internal/models"
)

func testReport(n int) *models.Report {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	videos := make([]models.Video, 0, n)
	for i := 0; i < n; i++ {
		videos = append(videos, models.Video{
			ID:          "vid" + string(rune('a'+i)),
			Title:       "Video " + string(rune('A'+i)),
			PublishedAt: base.AddDate(0, 0, i),
			Views:       int64(1000 * (i + 1)),
			Likes:       int64(10 * (i + 1)),
			Thumbnail:   "https://i.ytimg.com/vi/x/mqdefault.jpg",
		})
	}
	channel := models.Channel{
		ID:          "UC_x5XG1OV2P6uZZ5FSM9Ttw",
		Title:       "Test Channel",
		Subscribers: 1234567,
		ViewCount:   98765432,
	}
	return models.BuildReport(channel, videos, time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC))
}

func render(t *testing.T, rep *models.Report) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rep, Options{Location: time.UTC}))
	return buf.String()
}

func TestRender_RankingRows(t *testing.T) {
	for _, n := range []int{0, 1, 5, 12} {
		rep := testReport(n)
		out := render(t, rep)

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
		require.NoError(t, err)

		rows := doc.Find("#ranking tbody tr")
		assert.Equal(t, n, rows.Length(), "one ranking row per video (n=%d)", n)
		assert.Equal(t, "Test Channel", strings.TrimSpace(doc.Find(".header h1").Text()))
	}
}

func TestRender_RankingOrder(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(render(t, testReport(3))))
	require.NoError(t, err)

	var ids []string
	doc.Find("#ranking tbody tr").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-video-id")
		ids = append(ids, id)
	})
	assert.Equal(t, []string{"vidc", "vidb", "vida"}, ids)

	first := doc.Find("#ranking tbody tr").First()
	assert.Contains(t, first.Find(".rank-num").Text(), "🥇")
	assert.Equal(t, "3,000", first.Find(".rank-stat").First().Text())
	href, _ := first.Find(".rank-title a").Attr("href")
	assert.Equal(t, "https://www.youtube.com/watch?v=vidc", href)
}

func TestRender_Header(t *testing.T) {
	out := render(t, testReport(2))
	assert.Contains(t, out, "1,234,567")
	assert.Contains(t, out, "98,765,432")
	assert.Contains(t, out, "Generated at 2024-06-01 09:30")
}

func TestRender_WellFormed(t *testing.T) {
	out := render(t, testReport(4))
	require.NoError(t, checkBalanced(out))
}

func TestRender_EscapesTitles(t *testing.T) {
	rep := testReport(1)
	evil := `<script>alert("x")</script> & "quotes"`
	rep.Channel.Title = evil
	rep.Ranking[0].Title = evil
	rep.Trend.Titles[0] = evil

	out := render(t, rep)
	assert.NotContains(t, out, `<script>alert`)
	require.NoError(t, checkBalanced(out))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, evil, doc.Find("#ranking .rank-title a").Text())
}

func TestRender_CustomTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, testReport(1), Options{TimeFormat: "%d/%m/%Y", Location: time.UTC})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Generated at 01/06/2024")
}

func TestRender_NilReport(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, nil, Options{}))
	assert.Zero(t, buf.Len())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.html")

	require.NoError(t, WriteFile(path, testReport(3), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestWriteFile_Failure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "report.html")

	err := WriteFile(path, testReport(1), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrite))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// checkBalanced fails on any end tag that does not close the innermost
// open element, and on elements left open at EOF.
func checkBalanced(doc string) error {
	z := html.NewTokenizer(strings.NewReader(doc))
	var stack []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				return z.Err()
			}
			if len(stack) > 0 {
				return errors.New("unclosed elements: " + strings.Join(stack, ","))
			}
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if !voidElements[string(name)] {
				stack = append(stack, string(name))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if len(stack) == 0 || stack[len(stack)-1] != string(name) {
				return errors.New("unexpected </" + string(name) + ">")
			}
			stack = stack[:len(stack)-1]
		}
	}
}
