// Package account keeps per-currency balances of exchange accounts.
package account

import (
	"maps"
	"sync"

	"github.com/shopspring/decimal"
)

// Account is an exchange account with per-currency balances.
type Account struct {
	name     string
	exchange string

	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

// New creates an account seeded with balances.
func New(name, exchange string, balances map[string]decimal.Decimal) *Account {
	b := make(map[string]decimal.Decimal, len(balances))
	maps.Copy(b, balances)
	return &Account{name: name, exchange: exchange, balances: b}
}

// Name returns the account name.
func (a *Account) Name() string { return a.name }

// Exchange returns the exchange the account belongs to.
func (a *Account) Exchange() string { return a.exchange }

// GetBalance returns the balance of currency, zero when unknown.
func (a *Account) GetBalance(currency string) decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balances[currency]
}

// SetBalance overwrites the balance of currency.
func (a *Account) SetBalance(currency string, amount decimal.Decimal) {
	a.mu.Lock()
	a.balances[currency] = amount
	a.mu.Unlock()
}

// Balances returns a copy of all balances.
func (a *Account) Balances() map[string]decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.balances)
}

// Book is a set of accounts looked up by name.
type Book struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewBook creates an empty account set.
func NewBook() *Book {
	return &Book{accounts: make(map[string]*Account)}
}

// Add registers a, replacing any account with the same name.
func (b *Book) Add(a *Account) {
	b.mu.Lock()
	b.accounts[a.name] = a
	b.mu.Unlock()
}

// Get returns the named account.
func (b *Book) Get(name string) (*Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.accounts[name]
	return a, ok
}
