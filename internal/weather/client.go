// Package weather looks up current conditions through the QWeather
// HTTP API: a city lookup to resolve the location ID, then the
// now-weather query for that location.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Report is the payload streamed back for a weather intent
type Report struct {
	City        string `json:"city"`
	Temperature string `json:"temperature"`
	Weather     string `json:"weather"`
	Humidity    string `json:"humidity"`
	Wind        string `json:"wind"`
	Message     string `json:"message"`
}

// Client queries the QWeather geo and now-weather endpoints
type Client struct {
	apiKey     string
	geoURL     string
	weatherURL string
	httpClient *http.Client
}

// NewClient creates a weather client
func NewClient(apiKey, geoURL, weatherURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:     apiKey,
		geoURL:     geoURL,
		weatherURL: weatherURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type geoResponse struct {
	Code     string `json:"code"`
	Location []struct {
		ID string `json:"id"`
	} `json:"location"`
}

type nowResponse struct {
	Code string `json:"code"`
	Now  struct {
		Temp      string `json:"temp"`
		Text      string `json:"text"`
		Humidity  string `json:"humidity"`
		WindDir   string `json:"windDir"`
		WindScale string `json:"windScale"`
	} `json:"now"`
}

// Now returns current conditions for city
func (c *Client) Now(ctx context.Context, city string) (*Report, error) {
	locationID, err := c.lookupLocation(ctx, city)
	if err != nil {
		return nil, err
	}

	var parsed nowResponse
	if err := c.get(ctx, c.weatherURL, url.Values{
		"location": {locationID},
		"key":      {c.apiKey},
	}, &parsed); err != nil {
		return nil, err
	}
	if parsed.Code != "200" {
		return nil, fmt.Errorf("weather API returned code %s", parsed.Code)
	}

	now := parsed.Now
	return &Report{
		City:        city,
		Temperature: now.Temp + "°C",
		Weather:     now.Text,
		Humidity:    now.Humidity + "%",
		Wind:        fmt.Sprintf("%s %s级", now.WindDir, now.WindScale),
		Message:     fmt.Sprintf("为您查询到%s的天气信息", city),
	}, nil
}

// lookupLocation resolves a city name to the first matching location ID
func (c *Client) lookupLocation(ctx context.Context, city string) (string, error) {
	var parsed geoResponse
	if err := c.get(ctx, c.geoURL, url.Values{
		"location": {city},
		"range":    {"cn"},
		"key":      {c.apiKey},
	}, &parsed); err != nil {
		return "", err
	}
	if parsed.Code != "200" || len(parsed.Location) == 0 {
		return "", fmt.Errorf("no location found for %s", city)
	}
	return parsed.Location[0].ID, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode weather response: %w", err)
	}
	return nil
}
