package lfi

import (
	"strconv"

	"github.com/holiman/uint256"

	"levfinance/core/events"
	"levfinance/core/types"
	"levfinance/crypto"
)

const (
	// EventTypeTransfer is emitted after a successful transfer.
	EventTypeTransfer = "lfi.transfer"
	// EventTypeMint is emitted when new supply is created.
	EventTypeMint = "lfi.mint"
	// EventTypeExclusion is emitted when an account enters or leaves the
	// reflection set.
	EventTypeExclusion = "lfi.exclusion"
)

func newTransferEvent(from, to crypto.Address, amount, fee *uint256.Int) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"from":   from.String(),
			"to":     to.String(),
			"amount": amount.Dec(),
			"fee":    fee.Dec(),
		},
	})
}

func newMintEvent(to crypto.Address, amount *uint256.Int) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeMint,
		Attributes: map[string]string{
			"to":     to.String(),
			"amount": amount.Dec(),
		},
	})
}

func newExclusionEvent(addr crypto.Address, excluded bool) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeExclusion,
		Attributes: map[string]string{
			"account":  addr.String(),
			"excluded": strconv.FormatBool(excluded),
		},
	})
}
