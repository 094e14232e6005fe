package bse

import "encoding/json"

// tableEnvelope is the BSE API response shape. BSE wraps row arrays in a
// "Table" member; some revisions used "Data". Kept raw so absence (endpoint
// drift) is distinguishable from an empty day.
type tableEnvelope struct {
	Table json.RawMessage `json:"Table"`
	Data  json.RawMessage `json:"Data"`
}

func (e *tableEnvelope) rows() json.RawMessage {
	if len(e.Table) != 0 {
		return e.Table
	}
	return e.Data
}

// rawDeal mirrors one row of the BSE MktWatchBulkDealData payload, with the
// alternate key spellings BSE has shipped. Numeric-ish fields are RawMessage
// because BSE alternates between JSON numbers and quoted strings.
type rawDeal struct {
	Security  string `json:"Security"`
	ScripName string `json:"ScripName"`
	Scripname string `json:"scripname"`

	Date     string `json:"Date"`
	DealDate string `json:"DealDate"`

	Qty      json.RawMessage `json:"Qty"`
	Quantity json.RawMessage `json:"Quantity"`

	Price     json.RawMessage `json:"Price"`
	DealPrice json.RawMessage `json:"DealPrice"`

	BuyerName  string `json:"BuyerName"`
	ClientName string `json:"ClientName"`

	DealFlag string `json:"DealFlag"`
}

// rawScrip mirrors one row of the ListofScripData SME segment response.
type rawScrip struct {
	SecurityID string `json:"SecurityId"`
	ScripCd    string `json:"scrip_cd"`
	Symbol     string `json:"symbol"`
}
