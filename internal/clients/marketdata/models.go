package marketdata

// barPayload is the wire format for one daily bar. Price fields are pointers
// because upstream feeds occasionally omit them; missing values become NaN in
// the domain model so derived computations can skip those bars.
type barPayload struct {
	Date       string   `json:"date"`
	Open       *float64 `json:"open"`
	High       *float64 `json:"high"`
	Low        *float64 `json:"low"`
	Close      *float64 `json:"close"`
	Volume     *int64   `json:"volume"`
	IsEarnings bool     `json:"is_earnings"`
}

// ohlcvPayload is the wire format of the history endpoint.
type ohlcvPayload struct {
	Bars         []barPayload `json:"bars"`
	VolumeSource *string      `json:"volume_source"`
}

// quotePayload is the wire format of the quote endpoint.
type quotePayload struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
}

// quotesEnvelope wraps the batched quote response.
type quotesEnvelope struct {
	Quotes []quotePayload `json:"quotes"`
}
