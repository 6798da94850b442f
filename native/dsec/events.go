package dsec

import (
	"strconv"

	"github.com/holiman/uint256"

	"levfinance/core/events"
	"levfinance/core/types"
	"levfinance/crypto"
)

// EventTypeStake is emitted whenever a staker's recorded amount changes.
const EventTypeStake = "dsec.stake"

func newStakeEvent(addr crypto.Address, amount *uint256.Int, ts uint64) events.Event {
	return events.Wrap(&types.Event{
		Type: EventTypeStake,
		Attributes: map[string]string{
			"staker":    addr.String(),
			"amount":    amount.Dec(),
			"timestamp": strconv.FormatUint(ts, 10),
		},
	})
}
