package service

import (
	"fmt"
	"math"
	"math/big"

	"parimutuel/models"
)

// BasisPointsScale is the number of basis points in a whole
const BasisPointsScale = 10000

// PayoutPolicy holds the operator's settlement parameters
type PayoutPolicy struct {
	// RetainedBasisPoints is the share of the losing pool kept by the house, in [0, 10000)
	RetainedBasisPoints int64
	ZeroWinnerPolicy    models.ZeroWinnerPolicy
}

// Validate checks the policy parameters
func (p PayoutPolicy) Validate() error {
	if p.RetainedBasisPoints < 0 || p.RetainedBasisPoints >= BasisPointsScale {
		return fmt.Errorf("retained fraction must be in [0, 1), got %d basis points", p.RetainedBasisPoints)
	}
	switch p.ZeroWinnerPolicy {
	case models.ZeroWinnerForfeit, models.ZeroWinnerRefund:
	default:
		return fmt.Errorf("unknown zero winner policy %q", p.ZeroWinnerPolicy)
	}
	return nil
}

// BasisPointsFromFraction converts a retained fraction such as 0.1 to basis points
func BasisPointsFromFraction(fraction float64) (int64, error) {
	if math.IsNaN(fraction) || fraction < 0 || fraction >= 1 {
		return 0, fmt.Errorf("retained fraction must be in [0, 1), got %v", fraction)
	}
	bps := int64(math.Round(fraction * BasisPointsScale))
	if bps >= BasisPointsScale {
		return 0, fmt.Errorf("retained fraction %v rounds to 1", fraction)
	}
	return bps, nil
}

// CalculatePayouts settles a pool for the winning contender (0-based).
// Winners get their stake back plus a share of the losing pool, after the
// retained fraction, proportional to their stake. Shares are truncated so
// the total paid never exceeds the winning pool plus the distributable
// losing pool. Losers are not credited.
func CalculatePayouts(pool *models.WagerPool, winner int, policy PayoutPolicy) (*models.PayoutReport, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if winner < 0 || winner >= pool.ContenderCount() {
		return nil, models.ErrInvalidContenderIndex
	}

	winnerPool := pool.TotalFor(winner)
	loserPool := pool.TotalAll() - winnerPool
	keepBps := big.NewInt(BasisPointsScale - policy.RetainedBasisPoints)

	report := &models.PayoutReport{
		WinnerIndex:   winner,
		WinnerPoolSum: winnerPool,
		LoserPoolSum:  loserPool,
	}

	if winnerPool == 0 {
		if policy.ZeroWinnerPolicy == models.ZeroWinnerRefund {
			report.ZeroWinnerRefund = true
			report.Payouts, _ = refundsFor(pool)
			return report, nil
		}
		report.Retained = loserPool
		return report, nil
	}

	// distributable = loserPool * keep / scale, kept as a fraction until the
	// per-member floor so only one truncation happens per payout
	numerator := new(big.Int).Mul(big.NewInt(loserPool), keepBps)
	scale := big.NewInt(BasisPointsScale)
	report.Distributable = new(big.Int).Quo(numerator, scale).Int64()

	denominator := new(big.Int).Mul(big.NewInt(winnerPool), scale)

	var bonuses int64
	for _, s := range pool.StakesFor(winner) {
		share := new(big.Int).Mul(big.NewInt(s.Amount), numerator)
		share.Quo(share, denominator)
		bonus := share.Int64()
		bonuses += bonus

		report.Payouts = append(report.Payouts, models.MemberPayout{
			MemberID:       s.MemberID,
			ContenderIndex: winner,
			Wagered:        s.Amount,
			Payout:         s.Amount + bonus,
		})
	}
	report.Retained = loserPool - bonuses

	for i := range report.Payouts {
		if report.BiggestWinner == nil || report.Payouts[i].Payout > report.BiggestWinner.Payout {
			p := report.Payouts[i]
			report.BiggestWinner = &p
		}
	}

	return report, nil
}

// refundsFor returns a full refund for every stake in the pool
func refundsFor(pool *models.WagerPool) ([]models.MemberPayout, int64) {
	var refunds []models.MemberPayout
	var total int64
	for c := 0; c < pool.ContenderCount(); c++ {
		for _, s := range pool.StakesFor(c) {
			refunds = append(refunds, models.MemberPayout{
				MemberID:       s.MemberID,
				ContenderIndex: c,
				Wagered:        s.Amount,
				Payout:         s.Amount,
			})
			total += s.Amount
		}
	}
	return refunds, total
}
