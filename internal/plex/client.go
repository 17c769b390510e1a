// Package plex talks to a Plex Media Server: library listing, item
// browsing, scan triggering, and playback lookup. The server speaks
// XML over HTTP with token auth in the X-Plex-Token header.
package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/glowos/glowd/internal/buildinfo"
	"github.com/glowos/glowd/internal/httpkit"
)

// Client is a minimal Plex Media Server API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Plex client. Home servers usually run with a
// self-signed certificate, so insecureTLS is an explicit option rather
// than a hidden default.
func NewClient(baseURL, token string, insecureTLS bool) *Client {
	opts := []httpkit.ClientOption{
		httpkit.WithTimeout(30 * time.Second),
		httpkit.WithUserAgent(buildinfo.UserAgent()),
	}
	if insecureTLS {
		opts = append(opts, httpkit.WithTLSInsecureSkipVerify())
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpkit.NewClient(opts...),
	}
}

// Library is one Plex library section.
type Library struct {
	Title    string `json:"title"`
	Key      string `json:"key"`
	Type     string `json:"type"`
	Location string `json:"location"`
}

// Item is one media item within a library.
type Item struct {
	Title     string `json:"title"`
	RatingKey string `json:"rating_key"`
	Thumb     string `json:"thumb,omitempty"`
	Year      int    `json:"year,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Quality   string `json:"quality,omitempty"`
	SizeGB    string `json:"size,omitempty"`
	Type      string `json:"type"`
	AddedAt   int64  `json:"added_at"`
}

// mediaContainer mirrors the XML the server returns for both section
// and item listings; only the elements we read are declared.
type mediaContainer struct {
	Directories []directory `xml:"Directory"`
	Videos      []video     `xml:"Video"`
	Tracks      []track     `xml:"Track"`
}

type directory struct {
	Title    string `xml:"title,attr"`
	Key      string `xml:"key,attr"`
	Type     string `xml:"type,attr"`
	Location struct {
		Path string `xml:"path,attr"`
	} `xml:"Location"`
}

type video struct {
	Title     string `xml:"title,attr"`
	RatingKey string `xml:"ratingKey,attr"`
	Thumb     string `xml:"thumb,attr"`
	Year      int    `xml:"year,attr"`
	Duration  int64  `xml:"duration,attr"`
	Height    int    `xml:"height,attr"`
	AddedAt   int64  `xml:"addedAt,attr"`
	Media     struct {
		Part struct {
			Size int64 `xml:"size,attr"`
		} `xml:"Part"`
	} `xml:"Media"`
}

type track struct {
	Title       string `xml:"title,attr"`
	RatingKey   string `xml:"ratingKey,attr"`
	Thumb       string `xml:"thumb,attr"`
	Artist      string `xml:"grandparentTitle,attr"`
	Album       string `xml:"parentTitle,attr"`
	Duration    int64  `xml:"duration,attr"`
	AddedAt     int64  `xml:"addedAt,attr"`
}

// Libraries lists the server's library sections.
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	var container mediaContainer
	if err := c.get(ctx, "/library/sections", &container); err != nil {
		return nil, err
	}

	out := make([]Library, 0, len(container.Directories))
	for _, d := range container.Directories {
		out = append(out, Library{
			Title:    d.Title,
			Key:      d.Key,
			Type:     d.Type,
			Location: d.Location.Path,
		})
	}
	return out, nil
}

// Items lists a library section's contents, newest additions first.
func (c *Client) Items(ctx context.Context, libraryKey string) ([]Item, error) {
	var container mediaContainer
	path := "/library/sections/" + libraryKey + "/all"
	if err := c.get(ctx, path, &container); err != nil {
		return nil, err
	}

	out := make([]Item, 0, len(container.Videos)+len(container.Tracks))
	for _, v := range container.Videos {
		out = append(out, Item{
			Title:     v.Title,
			RatingKey: v.RatingKey,
			Thumb:     v.Thumb,
			Year:      v.Year,
			Duration:  formatDuration(v.Duration),
			Quality:   qualityLabel(v.Height),
			SizeGB:    formatSize(v.Media.Part.Size),
			Type:      "video",
			AddedAt:   v.AddedAt,
		})
	}
	for _, t := range container.Tracks {
		title := t.Title
		if t.Artist != "" {
			title = t.Artist + " - " + title
		}
		out = append(out, Item{
			Title:     title,
			RatingKey: t.RatingKey,
			Thumb:     t.Thumb,
			Duration:  formatDuration(t.Duration),
			Type:      "track",
			AddedAt:   t.AddedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt > out[j].AddedAt })
	return out, nil
}

// Scan triggers a refresh of one library, or all of them when key is
// empty. Plex returns no body; a 200 means the scan was queued.
func (c *Client) Scan(ctx context.Context, libraryKey string) error {
	path := "/library/sections/all/refresh"
	if libraryKey != "" {
		path = "/library/sections/" + libraryKey + "/refresh"
	}

	resp, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("plex scan: %s", httpkit.StatusError(resp))
	}
	return nil
}

// StreamURL builds the direct stream URL for an item, token included.
// The frontend hands this straight to a video element.
func (c *Client) StreamURL(ratingKey string) string {
	return c.baseURL + "/library/metadata/" + ratingKey + "/stream?X-Plex-Token=" + c.token
}

// WebURL builds the app.plex.tv fallback URL for an item.
func WebURL(ratingKey string) string {
	return "https://app.plex.tv/desktop/#!/media/" + ratingKey
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	resp, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("plex %s: %s", path, httpkit.StatusError(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read plex response: %w", err)
	}
	if err := xml.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parse plex response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build plex request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex request %s: %w", path, err)
	}
	return resp, nil
}

// formatDuration renders milliseconds as "1h 32m" / "45m".
func formatDuration(ms int64) string {
	if ms <= 0 {
		return ""
	}
	minutes := ms / 60000
	if h := minutes / 60; h > 0 {
		return strconv.FormatInt(h, 10) + "h " + strconv.FormatInt(minutes%60, 10) + "m"
	}
	return strconv.FormatInt(minutes, 10) + "m"
}

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return ""
	}
	return fmt.Sprintf("%.2f GB", float64(bytes)/(1<<30))
}

func qualityLabel(height int) string {
	switch {
	case height >= 1080:
		return "HD (1080p)"
	case height >= 720:
		return "HD (720p)"
	case height > 0:
		return "SD"
	default:
		return ""
	}
}
