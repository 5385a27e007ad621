package binance

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// FuturesClient exposes the public futures market data used for positioning
// confluence. Every method may fail independently; callers treat a failure
// as "no confluence data", never as a reason to abort an analysis.
type FuturesClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFuturesClient creates a public futures data client.
func NewFuturesClient(baseURL string, timeout time.Duration) *FuturesClient {
	if baseURL == "" {
		baseURL = "https://fapi.binance.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FuturesClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetFundingRate retrieves the current premium index funding data.
func (c *FuturesClient) GetFundingRate(symbol string) (*FundingRate, error) {
	resp, err := c.publicGet("/fapi/v1/premiumIndex", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, fmt.Errorf("error fetching funding rate: %w", err)
	}

	var fundingRate FundingRate
	if err := json.Unmarshal(resp, &fundingRate); err != nil {
		return nil, fmt.Errorf("error parsing funding rate: %w", err)
	}

	return &fundingRate, nil
}

// GetOpenInterest retrieves total open interest for a symbol.
func (c *FuturesClient) GetOpenInterest(symbol string) (*OpenInterest, error) {
	resp, err := c.publicGet("/fapi/v1/openInterest", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, fmt.Errorf("error fetching open interest: %w", err)
	}

	var oi OpenInterest
	if err := json.Unmarshal(resp, &oi); err != nil {
		return nil, fmt.Errorf("error parsing open interest: %w", err)
	}

	return &oi, nil
}

// GetLongShortRatioHistory retrieves up to limit global long/short
// account ratio buckets for the given period (e.g. "5m"), oldest
// first. Callers use the last bucket as the current reading and the
// one before it to gauge the ratio trend.
func (c *FuturesClient) GetLongShortRatioHistory(symbol, period string, limit int) ([]LongShortRatio, error) {
	if limit < 1 {
		limit = 1
	}
	resp, err := c.publicGet("/futures/data/globalLongShortAccountRatio", map[string]string{
		"symbol": symbol,
		"period": period,
		"limit":  fmt.Sprintf("%d", limit),
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching long/short ratio: %w", err)
	}

	var buckets []LongShortRatio
	if err := json.Unmarshal(resp, &buckets); err != nil {
		return nil, fmt.Errorf("error parsing long/short ratio: %w", err)
	}
	if len(buckets) == 0 {
		return nil, fmt.Errorf("long/short ratio: empty response for %s", symbol)
	}

	return buckets, nil
}

// GetTakerVolumeRatio retrieves the most recent taker buy/sell volume bucket.
func (c *FuturesClient) GetTakerVolumeRatio(symbol, period string) (*TakerVolumeRatio, error) {
	resp, err := c.publicGet("/futures/data/takerlongshortRatio", map[string]string{
		"symbol": symbol,
		"period": period,
		"limit":  "1",
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching taker volume: %w", err)
	}

	var buckets []TakerVolumeRatio
	if err := json.Unmarshal(resp, &buckets); err != nil {
		return nil, fmt.Errorf("error parsing taker volume: %w", err)
	}
	if len(buckets) == 0 {
		return nil, fmt.Errorf("taker volume: empty response for %s", symbol)
	}

	return &buckets[len(buckets)-1], nil
}

// publicGet performs an unauthenticated GET through the shared rate limiter.
func (c *FuturesClient) publicGet(endpoint string, params map[string]string) ([]byte, error) {
	rateLimiter := GetRateLimiter()
	if !rateLimiter.WaitForSlot(endpoint, 30*time.Second) {
		return nil, fmt.Errorf("rate limit: circuit open, request blocked")
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	reqURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)
	if len(values) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, values.Encode())
	}

	resp, err := c.httpClient.Get(reqURL)
	if err != nil {
		rateLimiter.RecordError()
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
		rateLimiter.RecordError()
		return nil, fmt.Errorf("rate limited by exchange (%d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	rateLimiter.RecordSuccess()
	return body, nil
}
