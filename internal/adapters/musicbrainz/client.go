// Package musicbrainz implements the primary lookup source against the
// MusicBrainz web service. Collaboration checks are restricted to shared
// recording credits; shared release or compilation membership does not
// count as a collaboration.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/medley/internal/domain/model"
	"github.com/okian/medley/internal/domain/validate"
	"github.com/okian/medley/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultBaseURL        = "https://musicbrainz.org/ws/2"
	defaultTimeout        = 10 * time.Second
	defaultUserAgent      = "medley/1.0 (https://github.com/okian/medley)"
	searchLimit           = 10
	knownRelationsLimit   = 100
	statusTooManyRequests = 429
)

// Client talks to the MusicBrainz API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a MusicBrainz client with configuration options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
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
	Artists []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Aliases []struct {
			Name string `json:"name"`
		} `json:"aliases"`
	} `json:"artists"`
}

type recordingSearchResponse struct {
	Count      int `json:"count"`
	Recordings []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		ArtistCredit []struct {
			Artist struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"artist-credit"`
	} `json:"recordings"`
}

// Resolve searches artists by name, preferring an exact case-insensitive
// match on the canonical name or an alias, and falling back to the top
// fuzzy hit. Returns (nil, nil) when nothing matches.
func (c *Client) Resolve(ctx context.Context, name string) (*model.CanonicalIdentity, error) {
	query := fmt.Sprintf(`artist:"%s"`, escapeLucene(name))
	endpoint := fmt.Sprintf("%s/artist/?query=%s&limit=%d&fmt=json", c.baseURL, url.QueryEscape(query), searchLimit)

	var res artistSearchResponse
	if err := c.get(ctx, endpoint, &res); err != nil {
		return nil, err
	}
	if len(res.Artists) == 0 {
		return nil, nil
	}

	normalized := model.NormalizeName(name)
	for _, artist := range res.Artists {
		if model.NormalizeName(artist.Name) == normalized {
			return &model.CanonicalIdentity{DisplayName: artist.Name, PrimaryID: artist.ID}, nil
		}
		for _, alias := range artist.Aliases {
			if model.NormalizeName(alias.Name) == normalized {
				return &model.CanonicalIdentity{DisplayName: artist.Name, PrimaryID: artist.ID}, nil
			}
		}
	}

	top := res.Artists[0]
	return &model.CanonicalIdentity{DisplayName: top.Name, PrimaryID: top.ID}, nil
}

// RelationExists reports whether two artists share at least one
// recording credit.
func (c *Client) RelationExists(ctx context.Context, idA, idB string) (bool, error) {
	query := fmt.Sprintf("arid:%s AND arid:%s", idA, idB)
	endpoint := fmt.Sprintf("%s/recording/?query=%s&limit=1&fmt=json", c.baseURL, url.QueryEscape(query))

	var res recordingSearchResponse
	if err := c.get(ctx, endpoint, &res); err != nil {
		return false, err
	}
	return res.Count > 0, nil
}

// KnownRelations lists every artist id sharing a recording credit with
// the given artist, deduplicated, the artist itself excluded.
func (c *Client) KnownRelations(ctx context.Context, id string) ([]string, error) {
	query := "arid:" + id
	endpoint := fmt.Sprintf("%s/recording/?query=%s&limit=%d&fmt=json", c.baseURL, url.QueryEscape(query), knownRelationsLimit)

	var res recordingSearchResponse
	if err := c.get(ctx, endpoint, &res); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, recording := range res.Recordings {
		if len(recording.ArtistCredit) < 2 {
			// A solo credit is not a collaboration.
			continue
		}
		for _, credit := range recording.ArtistCredit {
			other := credit.Artist.ID
			if other == "" || other == id {
				continue
			}
			if _, ok := seen[other]; ok {
				continue
			}
			seen[other] = struct{}{}
			ids = append(ids, other)
		}
	}
	return ids, nil
}

// get performs one JSON GET and classifies failures for the validation
// chain's retry policy.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	start := time.Now()
	defer func() {
		metrics.RecordSourceLatency("primary", float64(time.Since(start).Milliseconds()))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", validate.ErrBadQuery, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
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

// escapeLucene escapes characters with meaning in MusicBrainz's Lucene
// query syntax.
func escapeLucene(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`, `"`, `\"`, `+`, `\+`, `-`, `\-`, `!`, `\!`,
		`(`, `\(`, `)`, `\)`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
		`^`, `\^`, `~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`, `/`, `\/`,
	)
	return replacer.Replace(s)
}
