package farming

import (
	"strconv"

	"github.com/holiman/uint256"

	"levfinance/core/events"
	"levfinance/core/types"
	"levfinance/crypto"
)

const (
	EventTypeSupply   = "farming.supply"
	EventTypeBorrow   = "farming.borrow"
	EventTypeRepay    = "farming.repay"
	EventTypeWithdraw = "farming.withdraw"
	EventTypeAccrue   = "farming.accrue"
)

func newSupplyEvent(farmer crypto.Address, amount, shares *uint256.Int) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeSupply,
		Attributes: map[string]string{
			"farmer": farmer.String(),
			"amount": amount.Dec(),
			"shares": shares.Dec(),
		},
	})
}

func newBorrowEvent(farmer crypto.Address, amount, principal, indexAtOpen *uint256.Int) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeBorrow,
		Attributes: map[string]string{
			"farmer":      farmer.String(),
			"amount":      amount.Dec(),
			"principal":   principal.Dec(),
			"indexAtOpen": indexAtOpen.Dec(),
		},
	})
}

func newRepayEvent(farmer crypto.Address, amount, principal, interest, remaining *uint256.Int) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeRepay,
		Attributes: map[string]string{
			"farmer":      farmer.String(),
			"amount":      amount.Dec(),
			"principal":   principal.Dec(),
			"interest":    interest.Dec(),
			"remaining":   remaining.Dec(),
			"fullyRepaid": strconv.FormatBool(remaining.IsZero()),
		},
	})
}

func newWithdrawEvent(farmer crypto.Address, amount *uint256.Int, result WithdrawResult) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeWithdraw,
		Attributes: map[string]string{
			"farmer":   farmer.String(),
			"amount":   amount.Dec(),
			"proceeds": result.Proceeds.Dec(),
			"debtPaid": result.DebtPaid.Dec(),
			"penalty":  result.Penalty.Dec(),
			"tax":      result.Tax.Dec(),
			"payout":   result.Payout.Dec(),
		},
	})
}

func newAccrueEvent(state PoolState) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeAccrue,
		Attributes: map[string]string{
			"index":         state.InterestIndex.Dec(),
			"totalBorrowed": state.TotalBorrowed.Dec(),
			"timestamp":     strconv.FormatUint(state.LastAccrual, 10),
		},
	})
}
