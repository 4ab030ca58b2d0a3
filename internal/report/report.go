// Package report aggregates stored records into the read-only views
// served under /api/reports.
package report

import (
	"sort"
	"strings"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// MonthOverview totals the transactions dated in year/month. Expenses and
// income are both reported as positive magnitudes; ByCategory holds the
// net amount per category, largest first.
func MonthOverview(txs []core.Transaction, year, month int) core.MonthOverview {
	ov := core.MonthOverview{Year: year, Month: month, ByCategory: []core.CategoryAmount{}}
	byCat := map[string]int64{}
	for _, tx := range txs {
		if tx.Date.Year() != year || tx.Date.Month() != month {
			continue
		}
		if tx.IsIncome() {
			ov.Income.Cents -= tx.Amount.Cents
		} else {
			ov.Expenses.Cents += tx.Amount.Cents
		}
		byCat[tx.Category] += tx.Amount.Cents
	}
	ov.Net = core.Money{Cents: ov.Income.Cents - ov.Expenses.Cents}

	for name, cents := range byCat {
		ov.ByCategory = append(ov.ByCategory, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(ov.ByCategory, func(i, j int) bool {
		a, b := ov.ByCategory[i], ov.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})
	return ov
}

// BudgetStatuses compares each budget with the expenses booked against
// its category in its month. Income does not reduce spending.
func BudgetStatuses(budgets []core.Budget, txs []core.Transaction) []core.BudgetStatus {
	spent := map[string]int64{}
	for _, tx := range txs {
		if tx.IsIncome() {
			continue
		}
		spent[budgetKey(tx.Category, tx.Date.Format("2006-01"))] += tx.Amount.Cents
	}

	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		s := spent[budgetKey(b.Category, b.Month)]
		out = append(out, core.BudgetStatus{
			Budget:    b,
			Spent:     core.Money{Cents: s},
			Remaining: core.Money{Cents: b.Limit.Cents - s},
			Over:      s > b.Limit.Cents,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Budget.Month != out[j].Budget.Month {
			return out[i].Budget.Month < out[j].Budget.Month
		}
		return out[i].Budget.Category < out[j].Budget.Category
	})
	return out
}

func budgetKey(category, month string) string {
	return month + "\x00" + category
}

// LenderBalances sums loan transactions per lender. Lenders without any
// entry are listed with a zero balance.
func LenderBalances(lenders []core.Lender, loans []core.LoanTransaction) []core.LenderBalance {
	idx := make(map[string]int, len(lenders))
	out := make([]core.LenderBalance, len(lenders))
	for i, l := range lenders {
		idx[l.ID] = i
		out[i].Lender = l
	}
	for _, lt := range loans {
		i, ok := idx[lt.LenderID]
		if !ok {
			continue
		}
		out[i].Balance.Cents += lt.Amount.Cents
		out[i].Entries++
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Lender.Name) < strings.ToLower(out[j].Lender.Name)
	})
	return out
}

// AssetValuations values each asset's net quantity at the most recent
// rate whose item matches the asset name, ignoring case. Assets with no
// rate are valued at zero and flagged.
func AssetValuations(assets []core.Asset, txs []core.AssetTransaction, rates []core.ItemRate) []core.AssetValuation {
	qty := map[string]decimal.Decimal{}
	for _, at := range txs {
		qty[at.AssetID] = qty[at.AssetID].Add(decimal.NewFromFloat(at.Quantity))
	}

	latest := map[string]core.ItemRate{}
	for _, r := range rates {
		key := rateKey(r.Item)
		if cur, ok := latest[key]; !ok || r.Date.After(cur.Date) {
			latest[key] = r
		}
	}

	out := make([]core.AssetValuation, 0, len(assets))
	for _, a := range assets {
		q := qty[a.ID]
		v := core.AssetValuation{Asset: a, Quantity: q.InexactFloat64()}
		if r, ok := latest[rateKey(a.Name)]; ok {
			v.Rate = r.Rate
			v.RateDate = r.Date
			v.Value = core.MoneyFromDecimal(q.Mul(r.Rate.Decimal()))
		} else {
			v.RateMissing = true
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Asset.Name) < strings.ToLower(out[j].Asset.Name)
	})
	return out
}

func rateKey(item string) string {
	return strings.ToLower(strings.TrimSpace(item))
}
