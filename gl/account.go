package gl

import "strings"

// AccountType enumerates the five broad account classifications.
type AccountType string

const (
	AccountTypeAsset     AccountType = "Asset"
	AccountTypeLiability AccountType = "Liability"
	AccountTypeEquity    AccountType = "Equity"
	AccountTypeRevenue   AccountType = "Revenue"
	AccountTypeExpense   AccountType = "Expense"
)

// NormalSide is the side on which an account type is expected to increase.
type NormalSide string

const (
	SideDebit  NormalSide = "Debit"
	SideCredit NormalSide = "Credit"
)

// Account is a row in the chart of accounts. Accounts are reference data:
// the engine looks them up but never mutates them.
type Account struct {
	ID         string
	Name       string
	Type       AccountType
	NormalSide NormalSide
}

// Chart is a lookup table over the chart of accounts.
// Insertion order is preserved for deterministic iteration.
type Chart struct {
	accounts map[string]Account
	order    []string
}

// NewChart builds a chart from a slice of accounts. Later duplicates of an
// account id overwrite earlier ones, matching a last-write-wins reference load.
func NewChart(accounts []Account) *Chart {
	c := &Chart{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		if _, seen := c.accounts[a.ID]; !seen {
			c.order = append(c.order, a.ID)
		}
		c.accounts[a.ID] = a
	}
	return c
}

// Lookup returns the account for an id.
func (c *Chart) Lookup(id string) (Account, bool) {
	if c == nil {
		return Account{}, false
	}
	a, ok := c.accounts[id]
	return a, ok
}

// Accounts returns all accounts in insertion order.
func (c *Chart) Accounts() []Account {
	out := make([]Account, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.accounts[id])
	}
	return out
}

// FindCashAccount returns the id of the first Asset account whose name
// contains "cash" (case-insensitive). Used as a fallback when no cash
// account is configured explicitly.
func (c *Chart) FindCashAccount() (string, bool) {
	for _, id := range c.order {
		a := c.accounts[id]
		if a.Type == AccountTypeAsset && strings.Contains(strings.ToLower(a.Name), "cash") {
			return a.ID, true
		}
	}
	return "", false
}

// InferNormalSide derives the normal balance side from a free-form account
// type label. Asset and expense accounts normally carry debit balances;
// liability, equity and revenue (or income) accounts carry credit balances.
// A label containing "contra" flips the inferred side.
func InferNormalSide(typeLabel string) NormalSide {
	label := strings.ToLower(typeLabel)

	side := SideDebit
	switch {
	case strings.Contains(label, "asset"), strings.Contains(label, "expense"):
		side = SideDebit
	case strings.Contains(label, "liability"),
		strings.Contains(label, "equity"),
		strings.Contains(label, "revenue"),
		strings.Contains(label, "income"):
		side = SideCredit
	}

	if strings.Contains(label, "contra") {
		if side == SideDebit {
			return SideCredit
		}
		return SideDebit
	}
	return side
}

// coalesce returns the first non-empty value. This is the per-field merge
// policy for joining line-level metadata with the chart of accounts: a value
// already present on the ledger line wins over the chart.
func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
