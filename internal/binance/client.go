package binance

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a read-only spot market data client. No endpoint it calls
// requires authentication; API keys are deliberately absent.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new spot market data client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetKlines fetches candlestick data for a symbol at the given interval.
// Binance returns klines as positional JSON arrays; they are normalized to
// flat Kline structs here so the analysis core never sees raw framing.
func (c *Client) GetKlines(symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading klines response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines API error (%d): %s", resp.StatusCode, string(body))
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	klines := make([]Kline, 0, len(rawKlines))
	for _, raw := range rawKlines {
		if len(raw) < 10 {
			continue
		}
		klines = append(klines, Kline{
			OpenTime:       asInt64(raw[0]),
			Open:           parseFloat(raw[1]),
			High:           parseFloat(raw[2]),
			Low:            parseFloat(raw[3]),
			Close:          parseFloat(raw[4]),
			Volume:         parseFloat(raw[5]),
			CloseTime:      asInt64(raw[6]),
			QuoteVolume:    parseFloat(raw[7]),
			TradeCount:     int(asInt64(raw[8])),
			TakerBuyVolume: parseFloat(raw[9]),
		})
	}

	return klines, nil
}

// GetPrice fetches the latest traded price for a symbol.
func (c *Client) GetPrice(symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("error reading price response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price API error (%d): %s", resp.StatusCode, string(body))
	}

	var ticker TickerPrice
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}

	return ticker.Price, nil
}

// parseFloat converts the mixed string/number values Binance uses in its
// positional arrays. Unparseable values come back as 0 and are caught by the
// analysis layer's own coercion.
func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	case float64:
		return v
	default:
		return 0
	}
}

func asInt64(val interface{}) int64 {
	switch v := val.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
