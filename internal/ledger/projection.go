package ledger

// Project derives the headline figures from the stored wallet row and the
// account's withdrawal requests and investments. It has no side effects.
func Project(w Wallet, withdrawals []WithdrawalRequest, investments []Investment) Balance {
	var pending, locked int64
	for _, req := range withdrawals {
		if req.Open() {
			pending += req.Amount
		}
	}
	for _, inv := range investments {
		if inv.Status == InvestmentOpen {
			locked += inv.Amount
		}
	}
	return Balance{
		Balance:             w.Balance,
		AvailableBalance:    w.Balance - pending - locked,
		PendingWithdrawals:  pending,
		LockedInInvestments: locked,
		TotalDonations:      w.TotalDonations,
		TotalRevenue:        w.TotalRevenue,
	}
}

// Consistent reports whether the projection satisfies the balance invariants.
func (b Balance) Consistent() bool {
	return b.Balance >= b.AvailableBalance &&
		b.AvailableBalance >= 0 &&
		b.PendingWithdrawals >= 0 &&
		b.LockedInInvestments >= 0 &&
		b.Balance == b.AvailableBalance+b.PendingWithdrawals+b.LockedInInvestments
}
