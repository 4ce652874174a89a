// Package ledger moves balances between holders.
//
// Balances live in the same record store as the presale records, so a Book
// bound to a transaction commits or discards its transfers together with
// every other write of that transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/presale_layer/internal/store"
)

// NativeAsset identifies the currency purchases are paid in.
const NativeAsset = "native"

const (
	// EntryTransfer records a balance move between two holders.
	EntryTransfer = "transfer"
	// EntryMint records funds credited from outside the ledger.
	EntryMint = "mint"
)

var (
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrBalanceOverflow   = errors.New("ledger: balance overflow")
	ErrInvalidTransfer   = errors.New("ledger: invalid transfer")
)

// Transfer is one balance move request.
type Transfer struct {
	Asset     string `json:"asset"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// Ledger performs atomic transfers.
type Ledger interface {
	Transfer(ctx context.Context, t Transfer) error
}

// Account is the stored balance of one holder for one asset.
type Account struct {
	Asset     string    `json:"asset"`
	Holder    string    `json:"holder"`
	Balance   uint64    `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is an immutable journal line.
type Entry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Asset     string    `json:"asset"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	Amount    uint64    `json:"amount"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BalanceKey is the record key of a holder's balance. Both parts are path
// escaped, so holders such as custody accounts may contain "/".
func BalanceKey(asset, holder string) string {
	return fmt.Sprintf("balance/%s/%s", url.PathEscape(asset), url.PathEscape(holder))
}

// ValidIdentifier reports whether id can name an asset chosen by a user.
func ValidIdentifier(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/%")
}

// JournalKey is the record key of a journal entry.
func JournalKey(id string) string {
	return "journal/" + id
}

// Book is a store-backed Ledger bound to one transaction.
type Book struct {
	tx  store.Tx
	now func() time.Time
}

var _ Ledger = (*Book)(nil)

// NewBook binds a Book to tx. now stamps balances and journal entries.
func NewBook(tx store.Tx, now func() time.Time) *Book {
	if now == nil {
		now = time.Now
	}
	return &Book{tx: tx, now: now}
}

// Balance returns the holder's balance, zero when the holder has none.
func (b *Book) Balance(asset, holder string) (uint64, error) {
	acct, err := b.account(asset, holder)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Transfer debits From and credits To. A zero amount is a no-op.
func (b *Book) Transfer(_ context.Context, t Transfer) error {
	if t.Asset == "" || t.From == "" || t.To == "" {
		return ErrInvalidTransfer
	}
	if t.Amount == 0 || t.From == t.To {
		return nil
	}

	from, err := b.account(t.Asset, t.From)
	if err != nil {
		return err
	}
	if from.Balance < t.Amount {
		return fmt.Errorf("%w: %s holds %d %s, needs %d", ErrInsufficientFunds, t.From, from.Balance, t.Asset, t.Amount)
	}
	to, err := b.account(t.Asset, t.To)
	if err != nil {
		return err
	}
	credited, carry := bits.Add64(to.Balance, t.Amount, 0)
	if carry != 0 {
		return ErrBalanceOverflow
	}

	from.Balance -= t.Amount
	to.Balance = credited
	if err := b.save(from); err != nil {
		return err
	}
	if err := b.save(to); err != nil {
		return err
	}
	return b.journal(EntryTransfer, t)
}

// Mint credits amount to holder from outside the ledger.
func (b *Book) Mint(_ context.Context, asset, holder string, amount uint64, reference string) error {
	if asset == "" || holder == "" {
		return ErrInvalidTransfer
	}
	acct, err := b.account(asset, holder)
	if err != nil {
		return err
	}
	credited, carry := bits.Add64(acct.Balance, amount, 0)
	if carry != 0 {
		return ErrBalanceOverflow
	}
	acct.Balance = credited
	if err := b.save(acct); err != nil {
		return err
	}
	return b.journal(EntryMint, Transfer{Asset: asset, To: holder, Amount: amount, Reference: reference})
}

// Journal returns every journal entry ordered by key.
func (b *Book) Journal() ([]Entry, error) {
	recs, err := b.tx.List("journal/")
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		var e Entry
		if err := r.Decode(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *Book) account(asset, holder string) (Account, error) {
	var acct Account
	err := b.tx.Get(BalanceKey(asset, holder), &acct)
	if errors.Is(err, store.ErrNotFound) {
		return Account{Asset: asset, Holder: holder}, nil
	}
	return acct, err
}

func (b *Book) save(acct Account) error {
	acct.UpdatedAt = b.now().UTC()
	return b.tx.Put(BalanceKey(acct.Asset, acct.Holder), acct)
}

func (b *Book) journal(kind string, t Transfer) error {
	e := Entry{
		ID:        uuid.New().String(),
		Type:      kind,
		Asset:     t.Asset,
		From:      t.From,
		To:        t.To,
		Amount:    t.Amount,
		Reference: t.Reference,
		CreatedAt: b.now().UTC(),
	}
	return b.tx.Create(JournalKey(e.ID), e)
}
