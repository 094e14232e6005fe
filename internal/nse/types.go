package nse

import "encoding/json"

// dealsEnvelope is the NSE historical deals API response. The data array is
// kept raw so its absence (endpoint drift) is distinguishable from an empty
// result.
type dealsEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// rawDeal mirrors one row of the NSE block/bulk deals payload. NSE has
// shipped several spellings of the same fields across API revisions; every
// known alternate is declared and the mapper picks the first non-empty one.
// Numeric-ish fields are RawMessage because NSE alternates between JSON
// numbers and quoted strings.
type rawDeal struct {
	Symbol    string `json:"symbol"`
	ScripName string `json:"scripName"`
	Security  string `json:"Security"`

	SecurityName string `json:"securityName"`
	CompanyName  string `json:"companyName"`

	Date     string `json:"date"`
	Dt       string `json:"dt"`
	DealDate string `json:"DealDate"`

	QuantityTraded json.RawMessage `json:"quantityTraded"`
	Qty            json.RawMessage `json:"qty"`
	Quantity       json.RawMessage `json:"Quantity"`

	PricePerShare json.RawMessage `json:"pricePerShare"`
	Price         json.RawMessage `json:"price"`
	WAvgPrice     json.RawMessage `json:"watp"`

	ClientName string `json:"clientName"`
	BuyerName  string `json:"buyerName"`
	Buyer      string `json:"Buyer"`

	BuySell string `json:"buySell"`
}
