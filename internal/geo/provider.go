package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Prediction struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

type Component struct {
	Types    []string `json:"types"`
	LongName string   `json:"long_name"`
}

type Address struct {
	Formatted  string      `json:"formatted_address"`
	Components []Component `json:"address_components"`
	Lat        float64     `json:"lat"`
	Lng        float64     `json:"lng"`
}

// Component lookup by type tag, e.g. "locality" or
// "administrative_area_level_1". Empty string when absent.
func (a Address) ComponentNamed(typeTag string) string {
	for _, c := range a.Components {
		for _, t := range c.Types {
			if t == typeTag {
				return c.LongName
			}
		}
	}
	return ""
}

// ProviderClient talks to the geocoding/places provider over HTTP.
type ProviderClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewProviderClient(baseURL, apiKey string, timeout time.Duration) *ProviderClient {
	return &ProviderClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *ProviderClient) Predict(ctx context.Context, input, countryFilter string) ([]Prediction, error) {
	q := url.Values{}
	q.Set("input", input)
	if countryFilter != "" {
		q.Set("components", "country:"+countryFilter)
	}
	var out struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := c.get(ctx, "/autocomplete", q, &out); err != nil {
		return nil, err
	}
	return out.Predictions, nil
}

func (c *ProviderClient) GeocodeLatLng(ctx context.Context, lat, lng float64) (Address, error) {
	q := url.Values{}
	q.Set("latlng", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	return c.geocode(ctx, q)
}

func (c *ProviderClient) GeocodePlaceID(ctx context.Context, placeID string) (Address, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	return c.geocode(ctx, q)
}

func (c *ProviderClient) GeocodeAddress(ctx context.Context, address string) (Address, error) {
	q := url.Values{}
	q.Set("address", address)
	return c.geocode(ctx, q)
}

func (c *ProviderClient) geocode(ctx context.Context, q url.Values) (Address, error) {
	var out struct {
		Results []struct {
			FormattedAddress  string      `json:"formatted_address"`
			AddressComponents []Component `json:"address_components"`
			Geometry          struct {
				Location Coordinates `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/geocode", q, &out); err != nil {
		return Address{}, err
	}
	if len(out.Results) == 0 {
		return Address{}, &Error{Reason: ReasonPositionUnavailable, Err: fmt.Errorf("no geocode results")}
	}
	r := out.Results[0]
	return Address{
		Formatted:  r.FormattedAddress,
		Components: r.AddressComponents,
		Lat:        r.Geometry.Location.Lat,
		Lng:        r.Geometry.Location.Lng,
	}, nil
}

func (c *ProviderClient) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return normalizeErr(err, ReasonProvider)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return normalizeErr(err, ReasonProvider)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Error{Reason: ReasonProvider, Err: fmt.Errorf("provider returned %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Reason: ReasonProvider, Err: err}
	}
	return nil
}
