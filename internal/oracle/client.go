// Package oracle talks to the external pull-request analyzer that produces
// confidence scores. The escrow never computes a score itself; this client
// fetches one so the configured oracle account can record it.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bountyline/internal/config"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// Analysis is the analyzer's verdict on one pull request. Text is the raw
// analysis; Score is the 0..100 confidence parsed out of it, -1 when the
// analyzer did not state one.
type Analysis struct {
	PRURL     string `json:"pr_url"`
	Text      string `json:"analysis"`
	Score     int64  `json:"score"`
	Timestamp string `json:"timestamp"`
}

func New(cfg config.OracleConfig) (*Client, error) {
	if strings.TrimSpace(cfg.AnalyzerURL) == "" {
		return nil, fmt.Errorf("oracle.analyzer_url not configured")
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.AnalyzerURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}, nil
}

type analyzeResponse struct {
	Status    string `json:"status"`
	PRURL     string `json:"pr_url"`
	Analysis  string `json:"analysis"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
}

// Analyze asks the analyzer for a quick verdict on a pull request URL.
func (c *Client) Analyze(ctx context.Context, prURL string) (Analysis, error) {
	endpoint := c.BaseURL + "/quick-analyze?url=" + url.QueryEscape(prURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Analysis{}, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("analyzer request: %w", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Analysis{}, err
	}
	var parsed analyzeResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Analysis{}, fmt.Errorf("decode analyzer response: %w", err)
	}
	if res.StatusCode != http.StatusOK || parsed.Status != "success" {
		msg := parsed.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", res.StatusCode)
		}
		return Analysis{}, fmt.Errorf("analyzer: %s", msg)
	}
	return Analysis{
		PRURL:     parsed.PRURL,
		Text:      parsed.Analysis,
		Score:     ParseScore(parsed.Analysis),
		Timestamp: parsed.Timestamp,
	}, nil
}

var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)score[^0-9]{0,10}(\d{1,3})\s*(?:/\s*100)?`),
	regexp.MustCompile(`(\d{1,3})\s*/\s*100`),
	regexp.MustCompile(`(?i)confidence[^0-9]{0,10}(\d{1,3})`),
}

// ParseScore extracts a 0..100 score from free-form analysis text. The
// analyzer states scores in a few shapes ("score: 85", "85/100"); the
// first in-range match wins. Returns -1 when no score is present.
func ParseScore(text string) int64 {
	for _, re := range scorePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				continue
			}
			if n >= 0 && n <= 100 {
				return n
			}
		}
	}
	return -1
}
