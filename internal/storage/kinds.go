package storage

import "fintrack/internal/core"

// Kind describes how an entity type is named, identified and validated.
// Backends share these so every write is validated the same way.
type Kind[T any] struct {
	Name     string
	ID       func(T) string
	SetID    func(*T, string)
	Validate func(T) error
}

var (
	BudgetKind = Kind[core.Budget]{
		Name:     "budget",
		ID:       func(v core.Budget) string { return v.ID },
		SetID:    func(v *core.Budget, id string) { v.ID = id },
		Validate: core.Budget.Validate,
	}
	LenderKind = Kind[core.Lender]{
		Name:     "lender",
		ID:       func(v core.Lender) string { return v.ID },
		SetID:    func(v *core.Lender, id string) { v.ID = id },
		Validate: core.Lender.Validate,
	}
	LoanKind = Kind[core.LoanTransaction]{
		Name:     "loan transaction",
		ID:       func(v core.LoanTransaction) string { return v.ID },
		SetID:    func(v *core.LoanTransaction, id string) { v.ID = id },
		Validate: core.LoanTransaction.Validate,
	}
	AssetKind = Kind[core.Asset]{
		Name:     "asset",
		ID:       func(v core.Asset) string { return v.ID },
		SetID:    func(v *core.Asset, id string) { v.ID = id },
		Validate: core.Asset.Validate,
	}
	AssetTransactionKind = Kind[core.AssetTransaction]{
		Name:     "asset transaction",
		ID:       func(v core.AssetTransaction) string { return v.ID },
		SetID:    func(v *core.AssetTransaction, id string) { v.ID = id },
		Validate: core.AssetTransaction.Validate,
	}
	ItemRateKind = Kind[core.ItemRate]{
		Name:     "item rate",
		ID:       func(v core.ItemRate) string { return v.ID },
		SetID:    func(v *core.ItemRate, id string) { v.ID = id },
		Validate: core.ItemRate.Validate,
	}
	ProfileKind = Kind[core.Profile]{
		Name:     "profile",
		ID:       func(v core.Profile) string { return v.ID },
		SetID:    func(v *core.Profile, id string) { v.ID = id },
		Validate: core.Profile.Validate,
	}
)
