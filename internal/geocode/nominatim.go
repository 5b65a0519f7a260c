package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/trip-book/internal/geo"
)

// Nominatim is a ReverseGeocoder backed by a Nominatim-compatible HTTP API.
// Requests are serialized and spaced by the configured throttle.
type Nominatim struct {
	baseURL   string
	userAgent string
	throttle  time.Duration
	client    *http.Client

	mu   sync.Mutex
	last time.Time
}

// NewNominatim creates a client for the given endpoint, e.g. https://nominatim.openstreetmap.org.
func NewNominatim(baseURL, userAgent string, throttle time.Duration) *Nominatim {
	return &Nominatim{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		throttle:  throttle,
		client:    &http.Client{},
	}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Hamlet  string `json:"hamlet"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// ReverseGeocode looks up the place at p.
func (n *Nominatim) ReverseGeocode(ctx context.Context, p geo.Point) (*Place, error) {
	if err := n.wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', 6, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("geocoder error (status %d): %s", resp.StatusCode, string(body))
	}

	var result nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("could not decode response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("geocoder error: %s", result.Error)
	}

	city := firstNonEmpty(result.Address.City, result.Address.Town, result.Address.Village, result.Address.Hamlet)
	return &Place{
		City:        city,
		State:       result.Address.State,
		Country:     result.Address.Country,
		DisplayName: result.DisplayName,
	}, nil
}

// wait blocks until the throttle interval since the previous request has passed.
func (n *Nominatim) wait(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.throttle > 0 && !n.last.IsZero() {
		if d := n.throttle - time.Since(n.last); d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	n.last = time.Now()
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
