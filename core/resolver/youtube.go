package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"kwadrop/logger"
)

// watchURL recognizes direct YouTube video references. Anything that doesn't
// match is treated as a search phrase.
var watchURL = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([A-Za-z0-9_\-]{11})`)

// Client resolves track references against an external resolver service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a resolver client for the given service base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the resolver service base URL.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// thumbnailURL builds the standard thumbnail location for a video id.
func thumbnailURL(videoID string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", videoID)
}

// videoID extracts the video id from a direct link, or "" for a phrase.
func videoID(ref string) string {
	m := watchURL.FindStringSubmatch(ref)
	if m == nil {
		return ""
	}
	return m[1]
}

// Resolve classifies ref and either resolves it to a playable track or
// searches for candidates.
func (c *Client) Resolve(ctx context.Context, ref string) (*Result, error) {
	if id := videoID(ref); id != "" {
		resolved, err := c.resolveVideo(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Result{Resolved: resolved}, nil
	}

	candidates, err := c.search(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Result{Candidates: candidates}, nil
}

// resolveVideo fetches the playable audio URL and title for a video id.
func (c *Client) resolveVideo(ctx context.Context, id string) (*Resolved, error) {
	endpoint := fmt.Sprintf("%s/resolve?v=%s", c.baseURL, url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build resolve request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolver request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolver returned status %d for video %s", resp.StatusCode, id)
	}

	var body struct {
		AudioURL string `json:"audioUrl"`
		Title    string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode resolver response: %w", err)
	}
	if body.AudioURL == "" {
		return nil, fmt.Errorf("resolver returned no audio URL for video %s", id)
	}

	return &Resolved{
		Link:   body.AudioURL,
		Title:  body.Title,
		Avatar: thumbnailURL(id),
	}, nil
}

// search looks up candidates for a phrase, capped at MaxCandidates.
func (c *Client) search(ctx context.Context, phrase string) ([]Candidate, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&limit=%d", c.baseURL, url.QueryEscape(phrase), MaxCandidates)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolver search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolver search returned status %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := body.Results
	if len(results) > MaxCandidates {
		results = results[:MaxCandidates]
	}
	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, Candidate{
			Link:   "https://www.youtube.com/watch?v=" + r.ID,
			Title:  r.Title,
			Avatar: thumbnailURL(r.ID),
		})
	}
	logger.Debug("resolver search completed",
		logger.String("phrase", phrase), logger.Int("candidates", len(candidates)))
	return candidates, nil
}
