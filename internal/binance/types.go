package binance

// Kline represents a single candlestick as returned by the klines endpoints.
type Kline struct {
	OpenTime       int64   `json:"openTime"`
	Open           float64 `json:"open,string"`
	High           float64 `json:"high,string"`
	Low            float64 `json:"low,string"`
	Close          float64 `json:"close,string"`
	Volume         float64 `json:"volume,string"`
	CloseTime      int64   `json:"closeTime"`
	QuoteVolume    float64 `json:"quoteVolume,string"`
	TradeCount     int     `json:"tradeCount"`
	TakerBuyVolume float64 `json:"takerBuyVolume,string"`
}

// TickerPrice represents the latest traded price for a symbol.
type TickerPrice struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price,string"`
}

// FundingRate represents the premium index funding data for a perpetual.
type FundingRate struct {
	Symbol          string  `json:"symbol"`
	FundingRate     float64 `json:"lastFundingRate,string"`
	NextFundingTime int64   `json:"nextFundingTime"`
	MarkPrice       float64 `json:"markPrice,string"`
	Time            int64   `json:"time"`
}

// OpenInterest represents total open interest for a futures symbol.
type OpenInterest struct {
	Symbol       string  `json:"symbol"`
	OpenInterest float64 `json:"openInterest,string"`
	Time         int64   `json:"time"`
}

// LongShortRatio represents one bucket of the global long/short account ratio.
type LongShortRatio struct {
	Symbol         string  `json:"symbol"`
	LongShortRatio float64 `json:"longShortRatio,string"`
	LongAccount    float64 `json:"longAccount,string"`
	ShortAccount   float64 `json:"shortAccount,string"`
	Timestamp      int64   `json:"timestamp"`
}

// TakerVolumeRatio represents one bucket of taker buy/sell volume.
type TakerVolumeRatio struct {
	BuySellRatio float64 `json:"buySellRatio,string"`
	BuyVol       float64 `json:"buyVol,string"`
	SellVol      float64 `json:"sellVol,string"`
	Timestamp    int64   `json:"timestamp"`
}

// LiquidationSide distinguishes which side of the book got liquidated.
// A forced SELL closes longs, a forced BUY closes shorts.
type LiquidationSide string

const (
	LongLiquidation  LiquidationSide = "LONG_LIQ"
	ShortLiquidation LiquidationSide = "SHORT_LIQ"
)

// LiquidationEvent represents a single forced order from the futures stream.
type LiquidationEvent struct {
	Symbol    string
	Side      LiquidationSide
	Price     float64
	Quantity  float64
	USDVolume float64
	Time      int64
}
