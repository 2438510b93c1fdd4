// Package deezer implements the fallback lookup source. It is queried
// by display name when the primary source cannot confirm a
// collaboration, which catches featurings MusicBrainz has not credited.
package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/medley/internal/domain/model"
	"github.com/okian/medley/internal/domain/validate"
	"github.com/okian/medley/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultBaseURL        = "https://api.deezer.com"
	defaultTimeout        = 10 * time.Second
	trackSearchLimit      = 50
	statusTooManyRequests = 429
)

// Client talks to the Deezer API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Deezer client with configuration options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type artistSearchResponse struct {
	Data []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type trackSearchResponse struct {
	Data []struct {
		ID     int64  `json:"id"`
		Title  string `json:"title"`
		Artist struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"data"`
}

// FindID returns Deezer's artist id for a name, preferring an exact
// case-insensitive match, or "" when unknown.
func (c *Client) FindID(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/search/artist?q=%s", c.baseURL, url.QueryEscape(name))

	var res artistSearchResponse
	if err := c.get(ctx, endpoint, &res); err != nil {
		return "", err
	}
	if len(res.Data) == 0 {
		return "", nil
	}

	normalized := model.NormalizeName(name)
	for _, artist := range res.Data {
		if model.NormalizeName(artist.Name) == normalized {
			return strconv.FormatInt(artist.ID, 10), nil
		}
	}
	return strconv.FormatInt(res.Data[0].ID, 10), nil
}

// RelationExists searches tracks mentioning both names and accepts when
// one artist carries the main credit while the other appears in the
// credit or a featuring marker in the title.
func (c *Client) RelationExists(ctx context.Context, nameA, nameB string) (bool, error) {
	query := fmt.Sprintf("%s %s", nameA, nameB)
	endpoint := fmt.Sprintf("%s/search/track?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), trackSearchLimit)

	var res trackSearchResponse
	if err := c.get(ctx, endpoint, &res); err != nil {
		return false, err
	}

	a, b := model.NormalizeName(nameA), model.NormalizeName(nameB)
	for _, track := range res.Data {
		credit := model.NormalizeName(track.Artist.Name)
		title := model.NormalizeName(track.Title)
		switch credit {
		case a:
			if strings.Contains(title, b) {
				return true, nil
			}
		case b:
			if strings.Contains(title, a) {
				return true, nil
			}
		default:
			// Joint credits come back as "A & B" style names.
			if strings.Contains(credit, a) && strings.Contains(credit, b) {
				return true, nil
			}
		}
	}
	return false, nil
}

// get performs one JSON GET with the same error classification as the
// primary client.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	start := time.Now()
	defer func() {
		metrics.RecordSourceLatency("fallback", float64(time.Since(start).Milliseconds()))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", validate.ErrBadQuery, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", validate.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == statusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: %s", validate.ErrTransient, resp.Status, strings.TrimSpace(string(body)))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: %s", validate.ErrBadQuery, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", validate.ErrTransient, err)
	}
	return nil
}
