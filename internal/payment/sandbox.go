package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SandboxName is the provider key of the in-process sandbox.
const SandboxName = "sandbox"

// Sandbox is an in-process payment collaborator for local runs and tests. It
// records every transaction and resolves them when told to.
type Sandbox struct {
	// Disabled makes Configured fail, simulating a missing provider.
	Disabled bool
	BaseURL  string

	pending *Pending
	mu      sync.Mutex
	history []Transaction
}

// NewSandbox returns a sandbox whose authorization URLs are rooted at baseURL.
func NewSandbox(baseURL string) *Sandbox {
	return &Sandbox{BaseURL: strings.TrimRight(baseURL, "/"), pending: NewPending()}
}

// Name implements Provider.
func (s *Sandbox) Name() string { return SandboxName }

// Configured implements Provider.
func (s *Sandbox) Configured() error {
	if s.Disabled {
		return fmt.Errorf("%w: sandbox disabled", ErrNotConfigured)
	}
	return nil
}

// NewTransaction implements Provider.
func (s *Sandbox) NewTransaction(_ context.Context, tx Transaction, cb Callbacks) (Handoff, error) {
	if err := s.Configured(); err != nil {
		return Handoff{}, err
	}
	if err := s.pending.Register(tx, cb); err != nil {
		return Handoff{}, err
	}
	s.mu.Lock()
	s.history = append(s.history, tx)
	s.mu.Unlock()
	return Handoff{
		Provider:         SandboxName,
		Reference:        tx.Reference,
		AuthorizationURL: fmt.Sprintf("%s/api/v1/sandbox/transactions/%s/succeed", s.BaseURL, tx.Reference),
	}, nil
}

// Succeed resolves reference as paid.
func (s *Sandbox) Succeed(reference string) (Receipt, error) {
	receipt := Receipt{
		Provider:      SandboxName,
		Reference:     reference,
		TransactionID: uuid.NewString(),
		Status:        string(StatusSucceeded),
		Message:       "Approved",
	}
	if err := s.pending.Succeed(reference, 0, receipt); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// Cancel resolves reference as dismissed.
func (s *Sandbox) Cancel(reference string) error {
	return s.pending.Cancel(reference)
}

// Transactions returns every transaction opened so far.
func (s *Sandbox) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transaction, len(s.history))
	copy(out, s.history)
	return out
}

// Open returns the number of unresolved transactions.
func (s *Sandbox) Open() int { return s.pending.Len() }
