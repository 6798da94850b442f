package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"levfinance/core/protocol"
	"levfinance/core/state"
)

// formatAmount renders 18-decimal base units as a whole-token decimal.
func formatAmount(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x.ToBig(), -18).String()
}

// formatRayPercent renders a ray fixed-point ratio as a percentage with two
// decimals.
func formatRayPercent(x *uint256.Int) string {
	if x == nil {
		return "0.00%"
	}
	return decimal.NewFromBigInt(x.ToBig(), -25).StringFixed(2) + "%"
}

func writeReport(w io.Writer, proto *protocol.Protocol, snap *state.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", snap.RunID)
	fmt.Fprintf(tw, "timestamp\t%d\n\n", snap.Timestamp)

	token := proto.Token()
	fmt.Fprintln(tw, "ACCOUNT\tLFI\tEXCLUDED\t"+proto.Underlying().Symbol()+"\t"+proto.Ltoken().Symbol()+"\t"+proto.Btoken().Symbol())
	for _, addr := range snap.Accounts() {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\n",
			addr,
			formatAmount(token.BalanceOf(addr)),
			token.IsExcluded(addr),
			formatAmount(proto.Underlying().BalanceOf(addr)),
			formatAmount(proto.Ltoken().BalanceOf(addr)),
			formatAmount(proto.Btoken().BalanceOf(addr)))
	}
	fmt.Fprintf(tw, "\nLFI supply\t%s / %s\n", formatAmount(token.TotalSupply()), formatAmount(token.Cap()))
	fmt.Fprintf(tw, "reflection factor\t%s\n\n", formatAmount(token.ReflectionFactor()))

	dist := proto.Distributor()
	fmt.Fprintln(tw, "EPOCH\tSTART\tEND\tTOTAL DSEC\tLP REWARD\tTEAM CLAIMED")
	for _, epoch := range dist.Epochs() {
		total, err := dist.TotalDsec(epoch.Index, snap.Timestamp)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%t\n",
			epoch.Index, epoch.Start, epoch.End, total, formatAmount(epoch.LPReward), proto.Treasury().HasTeamClaimed(epoch.Index))
	}

	pool := proto.Farming().State()
	fmt.Fprintf(tw, "\ntreasury liquidity\t%s\n", formatAmount(proto.Treasury().Liquidity()))
	fmt.Fprintf(tw, "treasury loaned\t%s\n", formatAmount(proto.Treasury().TotalLoaned()))
	fmt.Fprintf(tw, "treasury interest\t%s\n", formatAmount(proto.Treasury().TotalInterestReceived()))
	fmt.Fprintf(tw, "farming supplied\t%s\n", formatAmount(pool.TotalSupplied))
	fmt.Fprintf(tw, "farming borrowed\t%s\n", formatAmount(pool.TotalBorrowed))
	fmt.Fprintf(tw, "farming utilisation\t%s\n", formatRayPercent(proto.Farming().Utilisation()))
	fmt.Fprintf(tw, "farming borrow APR\t%s\n", formatRayPercent(proto.Farming().BorrowRate()))
	fmt.Fprintf(tw, "farming index\t%s\n", decimal.NewFromBigInt(pool.InterestIndex.ToBig(), -27).String())
	fmt.Fprintf(tw, "vault assets\t%s\n", formatAmount(proto.Vault().TotalAssets()))
	return tw.Flush()
}
