package models

import (
	"math"
)

// Stake is one member's accumulated wager on a contender
type Stake struct {
	MemberID int64
	Amount   int64
}

// WagerPool holds every wager placed in a round, grouped by contender.
// Contender indices are 0-based here; the Round translates from the
// 1-based numbers members type. Totals are always computed from the
// stakes themselves.
type WagerPool struct {
	stakes [][]*Stake    // per contender, in first-wager order
	sides  map[int64]int // member -> contender
}

// NewWagerPool creates an empty pool for contenderCount contenders
func NewWagerPool(contenderCount int) *WagerPool {
	return &WagerPool{
		stakes: make([][]*Stake, contenderCount),
		sides:  make(map[int64]int),
	}
}

// ContenderCount returns the number of contenders in the pool
func (p *WagerPool) ContenderCount() int {
	return len(p.stakes)
}

// CheckWager validates a wager without mutating the pool
func (p *WagerPool) CheckWager(contender int, memberID int64, amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if contender < 0 || contender >= len(p.stakes) {
		return ErrInvalidContenderIndex
	}
	if side, ok := p.sides[memberID]; ok && side != contender {
		return ErrAlreadyCommittedElsewhere
	}
	return nil
}

// AddWager records amount for memberID on contender. A member may top up
// the contender they already backed but may not back a second one.
func (p *WagerPool) AddWager(contender int, memberID int64, amount int64) error {
	if err := p.CheckWager(contender, memberID, amount); err != nil {
		return err
	}

	if _, ok := p.sides[memberID]; ok {
		for _, s := range p.stakes[contender] {
			if s.MemberID == memberID {
				s.Amount += amount
				return nil
			}
		}
	}

	p.stakes[contender] = append(p.stakes[contender], &Stake{MemberID: memberID, Amount: amount})
	p.sides[memberID] = contender
	return nil
}

// TotalFor returns the sum wagered on a contender
func (p *WagerPool) TotalFor(contender int) int64 {
	if contender < 0 || contender >= len(p.stakes) {
		return 0
	}
	var total int64
	for _, s := range p.stakes[contender] {
		total += s.Amount
	}
	return total
}

// TotalAll returns the sum of every wager in the pool
func (p *WagerPool) TotalAll() int64 {
	var total int64
	for i := range p.stakes {
		total += p.TotalFor(i)
	}
	return total
}

// CountFor returns the number of members backing a contender
func (p *WagerPool) CountFor(contender int) int {
	if contender < 0 || contender >= len(p.stakes) {
		return 0
	}
	return len(p.stakes[contender])
}

// TopWagerFor returns the largest stake on a contender. Ties go to whoever
// bet first. ok is false when nobody backed the contender.
func (p *WagerPool) TopWagerFor(contender int) (memberID int64, amount int64, ok bool) {
	if contender < 0 || contender >= len(p.stakes) {
		return 0, 0, false
	}
	for _, s := range p.stakes[contender] {
		if !ok || s.Amount > amount {
			memberID, amount, ok = s.MemberID, s.Amount, true
		}
	}
	return memberID, amount, ok
}

// Percentages returns each contender's share of the pool rounded to two
// decimals. All shares are 0 for an empty pool.
func (p *WagerPool) Percentages() []float64 {
	out := make([]float64, len(p.stakes))
	total := p.TotalAll()
	if total == 0 {
		return out
	}
	for i := range p.stakes {
		pct := 100 * float64(p.TotalFor(i)) / float64(total)
		out[i] = math.Round(pct*100) / 100
	}
	return out
}

// Odds returns the gross return multiplier per contender (pool / backing).
// Contenders nobody backed report 0.
func (p *WagerPool) Odds() []float64 {
	out := make([]float64, len(p.stakes))
	total := p.TotalAll()
	for i := range p.stakes {
		if t := p.TotalFor(i); t > 0 {
			out[i] = float64(total) / float64(t)
		}
	}
	return out
}

// StakesFor returns a copy of the stakes on a contender in first-wager order
func (p *WagerPool) StakesFor(contender int) []Stake {
	if contender < 0 || contender >= len(p.stakes) {
		return nil
	}
	out := make([]Stake, 0, len(p.stakes[contender]))
	for _, s := range p.stakes[contender] {
		out = append(out, *s)
	}
	return out
}

// ContenderOf returns the contender a member backed
func (p *WagerPool) ContenderOf(memberID int64) (int, bool) {
	c, ok := p.sides[memberID]
	return c, ok
}

// MemberTotal returns how much a member has committed to the pool
func (p *WagerPool) MemberTotal(memberID int64) int64 {
	c, ok := p.sides[memberID]
	if !ok {
		return 0
	}
	for _, s := range p.stakes[c] {
		if s.MemberID == memberID {
			return s.Amount
		}
	}
	return 0
}

// Clone returns a deep copy of the pool
func (p *WagerPool) Clone() *WagerPool {
	c := NewWagerPool(len(p.stakes))
	for i, stakes := range p.stakes {
		for _, s := range stakes {
			c.stakes[i] = append(c.stakes[i], &Stake{MemberID: s.MemberID, Amount: s.Amount})
		}
	}
	for m, side := range p.sides {
		c.sides[m] = side
	}
	return c
}
