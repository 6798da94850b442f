package treasury

import (
	"strconv"

	"github.com/holiman/uint256"

	"levfinance/core/events"
	"levfinance/core/types"
	"levfinance/crypto"
)

const (
	EventTypeDeposit    = "treasury.deposit"
	EventTypeWithdraw   = "treasury.withdraw"
	EventTypeClaim      = "treasury.claim"
	EventTypeTeamClaim  = "treasury.team_claim"
	EventTypeLoan       = "treasury.loan"
	EventTypeLoanRepaid = "treasury.loan_repaid"
)

func newFlowEvent(kind string, account crypto.Address, amount, stake *uint256.Int) events.Event {
	return events.Wrap(&types.Event{
		Type: kind,
		Attributes: map[string]string{
			"account": account.String(),
			"amount":  amount.Dec(),
			"stake":   stake.Dec(),
		},
	})
}

func newClaimEvent(kind string, account crypto.Address, epoch uint64, amount *uint256.Int) events.Event {
	return events.Wrap(&types.Event{
		Type: kind,
		Attributes: map[string]string{
			"account": account.String(),
			"epoch":   strconv.FormatUint(epoch, 10),
			"amount":  amount.Dec(),
		},
	})
}

func newLoanEvent(borrower crypto.Address, amount, outstanding *uint256.Int) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeLoan,
		Attributes: map[string]string{
			"borrower":    borrower.String(),
			"amount":      amount.Dec(),
			"outstanding": outstanding.Dec(),
		},
	})
}

func newLoanRepaidEvent(borrower crypto.Address, principal, interest, outstanding *uint256.Int) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeLoanRepaid,
		Attributes: map[string]string{
			"borrower":    borrower.String(),
			"principal":   principal.Dec(),
			"interest":    interest.Dec(),
			"outstanding": outstanding.Dec(),
		},
	})
}
