package cart

import (
	"errors"
	"fmt"
)

// ErrNotCartCommand is returned by Apply for kinds the manager does not handle.
var ErrNotCartCommand = errors.New("cart: command is not a cart mutation")

// Kind enumerates display gestures.
type Kind int

const (
	KindAdd Kind = iota + 1
	KindInc
	KindDec
	KindRemove
	KindCheckout
)

var kindNames = map[Kind]string{
	KindAdd:      "add",
	KindInc:      "increment",
	KindDec:      "decrement",
	KindRemove:   "remove",
	KindCheckout: "checkout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Command is one gesture forwarded by the display.
type Command struct {
	Kind      Kind
	ID        string
	Delta     int
	Recipient string
}

// Add builds an add gesture.
func Add(id string) Command { return Command{Kind: KindAdd, ID: id} }

// Inc builds a +1 gesture.
func Inc(id string) Command { return Command{Kind: KindInc, ID: id, Delta: 1} }

// Dec builds a -1 gesture.
func Dec(id string) Command { return Command{Kind: KindDec, ID: id, Delta: -1} }

// Remove builds a remove gesture.
func Remove(id string) Command { return Command{Kind: KindRemove, ID: id} }

// Checkout builds a checkout gesture for recipient.
func Checkout(recipient string) Command {
	return Command{Kind: KindCheckout, Recipient: recipient}
}

// Apply runs cmd against m and reports whether the cart changed.
func Apply(m *Manager, cmd Command) (bool, error) {
	switch cmd.Kind {
	case KindAdd:
		return m.Add(cmd.ID), nil
	case KindInc, KindDec:
		delta := cmd.Delta
		if delta == 0 {
			delta = 1
			if cmd.Kind == KindDec {
				delta = -1
			}
		}
		return m.UpdateQty(cmd.ID, delta), nil
	case KindRemove:
		return m.Remove(cmd.ID), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrNotCartCommand, cmd.Kind)
	}
}
