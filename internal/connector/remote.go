package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dataquery/internal/domain"
)

const (
	defaultRemoteTimeout = 15 * time.Second
	defaultRemoteRPS     = 4
	remotePerPage        = 2000
)

// defaultCountries is the standard country set used when a spec does not
// name its own list.
var defaultCountries = []string{"USA", "DEU", "FRA", "GBR", "ESP", "ITA", "JPN"}

// RemoteStats resolves an indicator code and country list against a
// World-Bank-shaped statistics API. Calls are paced by a client-side rate
// limiter and bounded by a wall-clock timeout; any failure surfaces as a
// typed ConnectorError, never as silently empty rows. Retry policy, if any,
// belongs to the caller.
type RemoteStats struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// RemoteOption customizes a RemoteStats connector.
type RemoteOption func(*RemoteStats)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteStats) { r.client = c }
}

// WithRateLimit overrides the default requests-per-second pacing.
func WithRateLimit(rps float64) RemoteOption {
	return func(r *RemoteStats) { r.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewRemoteStats creates a remote-statistics connector against baseURL.
func NewRemoteStats(baseURL string, opts ...RemoteOption) *RemoteStats {
	r := &RemoteStats{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRemoteTimeout},
		limiter: rate.NewLimiter(rate.Limit(defaultRemoteRPS), 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kind implements domain.Connector.
func (r *RemoteStats) Kind() domain.SourceKind { return domain.SourceRemoteStats }

// indicatorRow mirrors the upstream payload shape.
type indicatorRow struct {
	Indicator struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"indicator"`
	Country struct {
		Value string `json:"value"`
	} `json:"country"`
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
}

// Execute fetches indicator observations. Recognized params:
//
//	indicator   statistics indicator code (required)
//	countries   comma-separated ISO3 codes (defaults to the standard set)
//	start_year  inclusive lower bound on observation year
//	end_year    inclusive upper bound on observation year
func (r *RemoteStats) Execute(ctx context.Context, params map[string]string) (domain.Frame, domain.Provenance, error) {
	indicator := strings.TrimSpace(params["indicator"])
	if indicator == "" {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("remote_stats", nil, "missing required param %q", "indicator")
	}

	countries := splitList(params["countries"])
	if len(countries) == 0 {
		countries = defaultCountries
	}

	endpoint := fmt.Sprintf("%s/country/%s/indicator/%s", r.baseURL,
		url.PathEscape(strings.Join(countries, ";")), url.PathEscape(indicator))

	q := url.Values{}
	q.Set("format", "json")
	q.Set("per_page", strconv.Itoa(remotePerPage))
	if span := dateSpan(params["start_year"], params["end_year"]); span != "" {
		q.Set("date", span)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("remote_stats", err, "rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("remote_stats", err, "build request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("remote_stats", err, "fetch indicator %q", indicator)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("remote_stats", nil, "fetch indicator %q: status %d", indicator, resp.StatusCode)
	}

	// Payload is a two-element array: [metadata, observations].
	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("remote_stats", err, "malformed payload for indicator %q", indicator)
	}
	if len(payload) < 2 {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("remote_stats", nil, "malformed payload for indicator %q: expected [meta, rows]", indicator)
	}

	var observations []indicatorRow
	if err := json.Unmarshal(payload[1], &observations); err != nil {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("remote_stats", err, "malformed observations for indicator %q", indicator)
	}

	frame := domain.Frame{Columns: []string{"country", "country_code", "year", "value", "indicator"}}
	for _, obs := range observations {
		row := domain.Row{
			"country":      obs.Country.Value,
			"country_code": obs.CountryISO3,
			"indicator":    obs.Indicator.ID,
		}
		if y, err := strconv.ParseFloat(obs.Date, 64); err == nil {
			row["year"] = y
		} else {
			row["year"] = obs.Date
		}
		if obs.Value != nil {
			row["value"] = *obs.Value
		} else {
			row["value"] = nil
		}
		frame.Rows = append(frame.Rows, row)
	}

	prov := domain.Provenance{
		DatasetID:     indicator,
		Locator:       endpoint,
		FieldsPresent: append([]string(nil), frame.Columns...),
	}
	return frame, prov, nil
}

// dateSpan renders the upstream "YYYY:YYYY" range filter from optional
// year bounds.
func dateSpan(start, end string) string {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	switch {
	case start == "" && end == "":
		return ""
	case start == "":
		return end + ":" + end
	case end == "":
		return start + ":" + start
	default:
		return start + ":" + end
	}
}

var _ domain.Connector = (*RemoteStats)(nil)
