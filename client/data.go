package client

import "time"

// Quote is one symbol's entry in a quote response.
type Quote struct {
	AssetMainType string         `json:"assetMainType"`
	Symbol        string         `json:"symbol"`
	Realtime      bool           `json:"realtime"`
	Quote         QuoteDetail    `json:"quote"`
	Reference     QuoteReference `json:"reference"`
}

// QuoteDetail carries the price fields of a quote.
type QuoteDetail struct {
	AskPrice         float64 `json:"askPrice"`
	AskSize          int64   `json:"askSize"`
	BidPrice         float64 `json:"bidPrice"`
	BidSize          int64   `json:"bidSize"`
	ClosePrice       float64 `json:"closePrice"`
	HighPrice        float64 `json:"highPrice"`
	LastPrice        float64 `json:"lastPrice"`
	LowPrice         float64 `json:"lowPrice"`
	NetChange        float64 `json:"netChange"`
	NetPercentChange float64 `json:"netPercentChange"`
	OpenPrice        float64 `json:"openPrice"`
	TotalVolume      int64   `json:"totalVolume"`
	TradeTime        int64   `json:"tradeTime"`
	Week52High       float64 `json:"52WeekHigh"`
	Week52Low        float64 `json:"52WeekLow"`
}

// QuoteReference carries the descriptive fields of a quote.
type QuoteReference struct {
	Cusip        string `json:"cusip"`
	Description  string `json:"description"`
	Exchange     string `json:"exchange"`
	ExchangeName string `json:"exchangeName"`
}

// Candle is a single OHLCV bar.
type Candle struct {
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
	Datetime int64   `json:"datetime"` // epoch milliseconds
}

// Time converts the candle timestamp to a UTC instant.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Datetime).UTC()
}

// PriceHistory is the candle series returned for one symbol.
type PriceHistory struct {
	Symbol        string   `json:"symbol"`
	Empty         bool     `json:"empty"`
	Candles       []Candle `json:"candles"`
	PreviousClose float64  `json:"previousClose,omitempty"`
}

// Instrument describes a tradable security.
type Instrument struct {
	Cusip       string `json:"cusip"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Exchange    string `json:"exchange"`
	AssetType   string `json:"assetType"`
}

// MarketHours maps a market family (e.g. "equity") to product codes
// (e.g. "EQ") to that product's session calendar.
type MarketHours map[string]map[string]MarketSession

// MarketSession describes one product's hours on a single date.
type MarketSession struct {
	Date         string                   `json:"date"`
	MarketType   string                   `json:"marketType"`
	Product      string                   `json:"product"`
	ProductName  string                   `json:"productName"`
	IsOpen       bool                     `json:"isOpen"`
	SessionHours map[string][]SessionSpan `json:"sessionHours"`
}

// SessionSpan is one open interval inside a trading day.
type SessionSpan struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Screener is one row of a movers response.
type Screener struct {
	Symbol           string  `json:"symbol"`
	Description      string  `json:"description"`
	LastPrice        float64 `json:"lastPrice"`
	NetChange        float64 `json:"netChange"`
	NetPercentChange float64 `json:"netPercentChange"`
	Volume           int64   `json:"volume"`
	Direction        string  `json:"direction"`
}

// AccountNumberHash pairs a plain account number with the hash value the
// trading endpoints require in URL paths.
type AccountNumberHash struct {
	AccountNumber string `json:"accountNumber"`
	HashValue     string `json:"hashValue"`
}

// Account wraps a securities account.
type Account struct {
	SecuritiesAccount SecuritiesAccount `json:"securitiesAccount"`
}

// SecuritiesAccount carries balances and, when requested, positions.
type SecuritiesAccount struct {
	Type            string     `json:"type"`
	AccountNumber   string     `json:"accountNumber"`
	RoundTrips      int        `json:"roundTrips"`
	IsDayTrader     bool       `json:"isDayTrader"`
	Positions       []Position `json:"positions,omitempty"`
	InitialBalances Balances   `json:"initialBalances"`
	CurrentBalances Balances   `json:"currentBalances"`
}

// Balances is the subset of balance fields shared by the balance blocks.
type Balances struct {
	CashBalance      float64 `json:"cashBalance"`
	Equity           float64 `json:"equity"`
	LiquidationValue float64 `json:"liquidationValue"`
	BuyingPower      float64 `json:"buyingPower"`
	AvailableFunds   float64 `json:"availableFunds"`
}

// Position is one holding inside an account.
type Position struct {
	ShortQuantity float64       `json:"shortQuantity"`
	LongQuantity  float64       `json:"longQuantity"`
	AveragePrice  float64       `json:"averagePrice"`
	MarketValue   float64       `json:"marketValue"`
	Instrument    InstrumentRef `json:"instrument"`
}

// InstrumentRef identifies the security inside a position or order leg.
type InstrumentRef struct {
	Symbol      string `json:"symbol"`
	AssetType   string `json:"assetType"`
	Cusip       string `json:"cusip,omitempty"`
	Description string `json:"description,omitempty"`
}

// Order is a working or historical order as reported by the provider.
type Order struct {
	OrderID            int64      `json:"orderId"`
	Session            string     `json:"session"`
	Duration           string     `json:"duration"`
	OrderType          string     `json:"orderType"`
	Quantity           float64    `json:"quantity"`
	FilledQuantity     float64    `json:"filledQuantity"`
	RemainingQuantity  float64    `json:"remainingQuantity"`
	Price              float64    `json:"price"`
	Status             string     `json:"status"`
	EnteredTime        string     `json:"enteredTime"`
	CloseTime          string     `json:"closeTime,omitempty"`
	Cancelable         bool       `json:"cancelable"`
	OrderLegCollection []OrderLeg `json:"orderLegCollection"`
}

// OrderRequest is the payload for placing an order.
type OrderRequest struct {
	Session            string     `json:"session"`
	Duration           string     `json:"duration"`
	OrderType          string     `json:"orderType"`
	Price              float64    `json:"price,omitempty"`
	OrderStrategyType  string     `json:"orderStrategyType"`
	OrderLegCollection []OrderLeg `json:"orderLegCollection"`
}

// OrderLeg is one instruction inside an order.
type OrderLeg struct {
	Instruction string        `json:"instruction"`
	Quantity    float64       `json:"quantity"`
	Instrument  InstrumentRef `json:"instrument"`
}

// Transaction is one row of account activity.
type Transaction struct {
	ActivityID  int64   `json:"activityId"`
	Time        string  `json:"time"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	NetAmount   float64 `json:"netAmount"`
	TradeDate   string  `json:"tradeDate"`
	Description string  `json:"description,omitempty"`
}

// UserPreference carries account nicknames and streamer connection details.
type UserPreference struct {
	Accounts     []PreferenceAccount `json:"accounts"`
	StreamerInfo []StreamerInfo      `json:"streamerInfo"`
}

// PreferenceAccount is the per-account block of a user preference response.
type PreferenceAccount struct {
	AccountNumber  string `json:"accountNumber"`
	PrimaryAccount bool   `json:"primaryAccount"`
	NickName       string `json:"nickName"`
	AccountColor   string `json:"accountColor"`
}

// StreamerInfo describes one streaming endpoint assignment.
type StreamerInfo struct {
	StreamerSocketURL      string `json:"streamerSocketUrl"`
	SchwabClientCustomerID string `json:"schwabClientCustomerId"`
	SchwabClientCorrelID   string `json:"schwabClientCorrelId"`
	SchwabClientChannel    string `json:"schwabClientChannel"`
	SchwabClientFunctionID string `json:"schwabClientFunctionId"`
}
