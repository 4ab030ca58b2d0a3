package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Expenses   Money            `json:"expenses"`
	Income     Money            `json:"income"` // positive magnitude
	Net        Money            `json:"net"`    // income minus expenses
	ByCategory []CategoryAmount `json:"byCategory"`
}

// BudgetStatus compares a budget with what was spent in its month.
type BudgetStatus struct {
	Budget    Budget `json:"budget"`
	Spent     Money  `json:"spent"`
	Remaining Money  `json:"remaining"`
	Over      bool   `json:"over"`
}

// LenderBalance is the outstanding amount owed to (positive) or by
// (negative) a lender.
type LenderBalance struct {
	Lender  Lender `json:"lender"`
	Balance Money  `json:"balance"`
	Entries int    `json:"entries"`
}

// AssetValuation values current holdings at the latest known rate.
type AssetValuation struct {
	Asset       Asset   `json:"asset"`
	Quantity    float64 `json:"quantity"`
	Rate        Money   `json:"rate"`
	RateDate    Date    `json:"rateDate"`
	Value       Money   `json:"value"`
	RateMissing bool    `json:"rateMissing"`
}
