package payment

import (
	"fmt"
	"strings"
	"sync"
)

type pendingEntry struct {
	tx Transaction
	cb Callbacks
}

// Pending tracks open transactions and resolves each at most once.
type Pending struct {
	mu      sync.Mutex
	entries map[string]pendingEntry
}

// NewPending returns an empty registry.
func NewPending() *Pending {
	return &Pending{entries: make(map[string]pendingEntry)}
}

// Register records tx with its callbacks.
func (p *Pending) Register(tx Transaction, cb Callbacks) error {
	ref := strings.TrimSpace(tx.Reference)
	if ref == "" {
		return fmt.Errorf("%w: empty", ErrUnknownReference)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.entries[ref]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, ref)
	}
	p.entries[ref] = pendingEntry{tx: tx, cb: cb}
	return nil
}

// Lookup returns the open transaction for reference.
func (p *Pending) Lookup(reference string) (Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[reference]
	return e.tx, ok
}

// Succeed closes reference and invokes its success callback. A positive amount
// must match the registered amount; on mismatch the transaction stays open.
func (p *Pending) Succeed(reference string, amount int64, receipt Receipt) error {
	entry, err := p.take(reference, func(tx Transaction) error {
		if amount > 0 && amount != tx.Amount {
			return fmt.Errorf("%w: got %d want %d", ErrAmountMismatch, amount, tx.Amount)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if receipt.Reference == "" {
		receipt.Reference = reference
	}
	if entry.cb.OnSuccess != nil {
		entry.cb.OnSuccess(receipt)
	}
	return nil
}

// Cancel closes reference and invokes its cancel callback.
func (p *Pending) Cancel(reference string) error {
	entry, err := p.take(reference, nil)
	if err != nil {
		return err
	}
	if entry.cb.OnCancel != nil {
		entry.cb.OnCancel()
	}
	return nil
}

// Len returns the number of open transactions.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Pending) take(reference string, check func(Transaction) error) (pendingEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[reference]
	if !ok {
		return pendingEntry{}, fmt.Errorf("%w: %s", ErrUnknownReference, reference)
	}
	if check != nil {
		if err := check(entry.tx); err != nil {
			return pendingEntry{}, err
		}
	}
	delete(p.entries, reference)
	return entry, nil
}
