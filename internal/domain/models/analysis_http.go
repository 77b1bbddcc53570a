package models

// Requests for analysis HTTP endpoints. Defined in domain for consistency and reuse.

type CorrelationsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Kind   string `query:"kind" json:"kind" default:"plain" validate:"oneof=plain lagged regime horizon"`
	Limit  int    `query:"limit" json:"limit" default:"0" validate:"gte=0,lte=500"`
}

type ModelRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required"`
	TopN    int    `query:"top_n" json:"top_n" default:"15" validate:"gte=0,lte=200"`
	Compare bool   `query:"compare" json:"compare"`
}

type BacktestRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Rows   bool   `query:"rows" json:"rows"`
}

type FlowsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}
