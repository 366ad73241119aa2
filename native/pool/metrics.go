package pool

import (
	"stakepool/native/common"
	"stakepool/observability"
)

// MetricsSnapshot renders the ledger for the pool gauges.
func (p *Pool) MetricsSnapshot() observability.PoolSnapshot {
	s := p.State
	return observability.PoolSnapshot{
		TotalBalance:        common.Copy(s.TotalBalance),
		Supply:              common.Copy(s.Supply),
		RoundID:             s.Current.RoundID,
		RequestedDeposit:    common.Copy(s.RequestedForDeposit),
		RequestedWithdrawal: common.Copy(s.RequestedForWithdrawal),
		CurrentBorrowers:    s.Current.ActiveBorrowers,
		PreviousBorrowers:   s.Previous.ActiveBorrowers,
		CurrentBorrowed:     common.Copy(s.Current.Borrowed),
		PreviousBorrowed:    common.Copy(s.Previous.Borrowed),
		Halted:              s.Halted,
	}
}
