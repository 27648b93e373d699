package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/forkline-ai/forkline/order"
)

// HTTPSource is a vendor source backed by a JSON search endpoint. The
// endpoint receives query, location and limit as URL parameters and returns
// {"vendors": [...]} in the order.Vendor shape.
type HTTPSource struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
}

// HTTPSourceOptions configure an HTTPSource.
type HTTPSourceOptions struct {
	Name     string
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPSource creates an HTTP-backed vendor source.
func NewHTTPSource(opts HTTPSourceOptions) (*HTTPSource, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("source name required")
	}
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &HTTPSource{
		name:     opts.Name,
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		client:   opts.Client,
	}, nil
}

func (s *HTTPSource) Name() string {
	return s.name
}

func (s *HTTPSource) Search(ctx context.Context, query, location string, limit int) ([]order.Vendor, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	params := u.Query()
	params.Set("query", query)
	params.Set("location", location)
	params.Set("limit", strconv.Itoa(limit))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source %s returned status %d", s.name, resp.StatusCode)
	}

	var body struct {
		Vendors []order.Vendor `json:"vendors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	for i := range body.Vendors {
		if body.Vendors[i].Source == "" {
			body.Vendors[i].Source = s.name
		}
	}
	return body.Vendors, nil
}
