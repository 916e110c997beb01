package service

type apiError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type trade struct {
	ID           string `json:"id"`
	Instrument   string `json:"instrument"`
	Price        string `json:"price"`
	OpenTime     string `json:"openTime"`
	State        string `json:"state"`
	CurrentUnits string `json:"currentUnits"`
	UnrealizedPL string `json:"unrealizedPL"`
}

type openTradesResponse struct {
	Trades            []trade `json:"trades"`
	LastTransactionID string  `json:"lastTransactionID"`
}

type priceBucket struct {
	Price string `json:"price"`
}

type price struct {
	Instrument string        `json:"instrument"`
	Tradeable  bool          `json:"tradeable"`
	Bids       []priceBucket `json:"bids"`
	Asks       []priceBucket `json:"asks"`
}

type pricingResponse struct {
	Prices []price `json:"prices"`
}

type onFill struct {
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce,omitempty"`
}

type clientExtensions struct {
	ID string `json:"id"`
}

type marketOrder struct {
	Type             string            `json:"type"`
	Instrument       string            `json:"instrument"`
	Units            string            `json:"units"`
	TimeInForce      string            `json:"timeInForce"`
	PositionFill     string            `json:"positionFill"`
	StopLossOnFill   *onFill           `json:"stopLossOnFill,omitempty"`
	TakeProfitOnFill *onFill           `json:"takeProfitOnFill,omitempty"`
	ClientExtensions *clientExtensions `json:"clientExtensions,omitempty"`
}

type orderRequest struct {
	Order marketOrder `json:"order"`
}

type tradeOpened struct {
	TradeID string `json:"tradeID"`
	Units   string `json:"units"`
	Price   string `json:"price"`
}

type transaction struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	OrderID     string       `json:"orderID"`
	Reason      string       `json:"reason"`
	Price       string       `json:"price"`
	TradeOpened *tradeOpened `json:"tradeOpened"`
}

type orderResponse struct {
	OrderCreateTransaction *transaction `json:"orderCreateTransaction"`
	OrderFillTransaction   *transaction `json:"orderFillTransaction"`
	OrderCancelTransaction *transaction `json:"orderCancelTransaction"`
}

type closeRequest struct {
	Units string `json:"units"`
}

type candleMid struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type candle struct {
	Complete bool       `json:"complete"`
	Volume   float64    `json:"volume"`
	Time     string     `json:"time"`
	Mid      *candleMid `json:"mid"`
}

type candlesResponse struct {
	Instrument  string   `json:"instrument"`
	Granularity string   `json:"granularity"`
	Candles     []candle `json:"candles"`
}
