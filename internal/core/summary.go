package core

import "github.com/shopspring/decimal"

// DayTotal is the amount spent on one UTC calendar day (YYYY-MM-DD).
type DayTotal struct {
	Day   string
	Total decimal.Decimal
}

// MonthChange compares the running current month against the full previous one.
type MonthChange struct {
	Previous      decimal.Decimal
	Current       decimal.Decimal
	PercentChange decimal.Decimal
}

// Forecast is the predicted spend for the next calendar month.
type Forecast struct {
	PredictedNextMonth decimal.Decimal
}
