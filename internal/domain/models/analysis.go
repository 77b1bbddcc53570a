package models

import "time"

// CorrelationEntry is one ranked feature in a correlation table.
type CorrelationEntry struct {
	Feature        string  `json:"feature"`
	Correlation    float64 `json:"correlation"`
	AbsCorrelation float64 `json:"abs_correlation"`
	Samples        int     `json:"samples"`
}

// CorrelationTable is a ranking of features by |r| against a target return,
// optionally restricted to one regime partition.
type CorrelationTable struct {
	Target  string             `json:"target"`
	Regime  string             `json:"regime,omitempty"`
	Entries []CorrelationEntry `json:"entries"`
}

// TTestResult is an independent two-sample t-test outcome.
type TTestResult struct {
	TStatistic  float64 `json:"t_statistic"`
	PValue      float64 `json:"p_value"`
	HighMean    float64 `json:"high_mean"`
	LowMean     float64 `json:"low_mean"`
	HighN       int     `json:"high_n"`
	LowN        int     `json:"low_n"`
	Significant bool    `json:"significant"`
}

// PearsonResult is a correlation with its two-sided p-value.
type PearsonResult struct {
	Correlation float64 `json:"correlation"`
	PValue      float64 `json:"p_value"`
	Samples     int     `json:"samples"`
	Significant bool    `json:"significant"`
}

// SignificanceReport groups the statistical tests run on a panel.
// Insignificant results are surfaced with the flag unset, never dropped.
type SignificanceReport struct {
	HighVsLowLiquidity *TTestResult   `json:"high_vs_low_liquidity,omitempty"`
	NetLiqChangeVsRet  *PearsonResult `json:"net_liq_change_correlation,omitempty"`
}

// ModelKind selects the classifier family.
type ModelKind string

const (
	ModelRandomForest     ModelKind = "rf"
	ModelGradientBoosting ModelKind = "gb"
	ModelLogistic         ModelKind = "logistic"
)

// FeatureImportance is one feature's share of ensemble impurity reduction.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Evaluation holds held-out test metrics for a trained classifier.
type Evaluation struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// ModelReport is the result of training one classifier for one symbol.
type ModelReport struct {
	Symbol     string              `json:"symbol"`
	Kind       ModelKind           `json:"kind"`
	Features   []string            `json:"features"`
	TrainRows  int                 `json:"train_rows"`
	TestRows   int                 `json:"test_rows"`
	Evaluation Evaluation          `json:"evaluation"`
	Importance []FeatureImportance `json:"importance,omitempty"`
}

// ModelScore is one line of the cross-model comparison table.
type ModelScore struct {
	Kind       ModelKind  `json:"model"`
	Evaluation Evaluation `json:"evaluation"`
}

// Signal is a trading posture derived from model probability.
type Signal string

const (
	SignalLong Signal = "LONG"
	SignalCash Signal = "CASH"
)

// BacktestRow is one dated observation of the strategy simulation.
type BacktestRow struct {
	Date               time.Time `json:"date"`
	Probability        float64   `json:"probability"`
	Signal             Signal    `json:"signal"`
	WeeklyReturn       float64   `json:"weekly_return"`
	StrategyReturn     float64   `json:"strategy_return"`
	CumulativeBuyHold  float64   `json:"cumulative_buy_hold"`
	CumulativeStrategy float64   `json:"cumulative_strategy"`
}

// BacktestResult is the full strategy-vs-buy-and-hold comparison.
type BacktestResult struct {
	Symbol         string        `json:"symbol"`
	Threshold      float64       `json:"threshold"`
	Rows           []BacktestRow `json:"rows"`
	TotalReturn    float64       `json:"total_return"`
	StrategyReturn float64       `json:"strategy_return"`
	Alpha          float64       `json:"alpha"`
}

// GroupStats summarizes weekly returns within one partition of rows.
type GroupStats struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
}

// FlowCondition is the return impact of a binary liquidity-flow condition.
type FlowCondition struct {
	Name     string     `json:"name"`
	Active   GroupStats `json:"active"`
	Inactive GroupStats `json:"inactive"`
}

// FlowReport groups the liquidity flow-dynamics analyses.
type FlowReport struct {
	TGADrainage     *FlowCondition `json:"tga_drainage,omitempty"`
	RRPOutflow      *FlowCondition `json:"rrp_outflow,omitempty"`
	FedExpansion    *FlowCondition `json:"fed_expansion,omitempty"`
	DoubleInjection *FlowCondition `json:"double_injection,omitempty"`
}

// AuctionBucketStats is the per-bucket impact of Treasury auction activity.
type AuctionBucketStats struct {
	Bucket       string     `json:"bucket"`
	WeeklyReturn GroupStats `json:"weekly_return"`
	MeanValue    float64    `json:"mean_value"`
}

// QuartileStats summarizes returns within one liquidity quartile.
type QuartileStats struct {
	Quartile     string     `json:"quartile"`
	WeeklyReturn GroupStats `json:"weekly_return"`
	DailyReturn  GroupStats `json:"daily_return"`
	LastClose    float64    `json:"last_close"`
}

// SymbolAnalysis is everything produced for one symbol in a run.
type SymbolAnalysis struct {
	Symbol        string                      `json:"symbol"`
	Plain         *CorrelationTable           `json:"plain,omitempty"`
	LaggedMix     *CorrelationTable           `json:"lagged,omitempty"`
	ByRegime      map[string]CorrelationTable `json:"by_regime,omitempty"`
	ByHorizon     map[string]CorrelationTable `json:"by_horizon,omitempty"`
	Significance  *SignificanceReport         `json:"significance,omitempty"`
	Model         *ModelReport                `json:"model,omitempty"`
	Comparison    []ModelScore                `json:"comparison,omitempty"`
	Backtest      *BacktestResult             `json:"backtest,omitempty"`
	Flows         *FlowReport                 `json:"flows,omitempty"`
	AuctionImpact []AuctionBucketStats        `json:"auction_impact,omitempty"`
	Quartiles     []QuartileStats             `json:"quartiles,omitempty"`
}

// SignalEvent is the message published when a run produces a fresh posture
// for a symbol.
type SignalEvent struct {
	RunID       string    `json:"run_id"`
	Symbol      string    `json:"symbol"`
	Date        time.Time `json:"date"`
	Model       ModelKind `json:"model"`
	Probability float64   `json:"probability"`
	Signal      Signal    `json:"signal"`
}

// RunOutcome aggregates per-symbol results and isolated failures for one
// analysis run, so callers can distinguish zero usable results from partial
// success.
type RunOutcome struct {
	RunID      string                     `json:"run_id"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Symbols    map[string]*SymbolAnalysis `json:"symbols"`
	Failures   map[string]string          `json:"failures,omitempty"`
}
