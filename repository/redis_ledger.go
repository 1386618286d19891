package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"parimutuel/events"
	"parimutuel/models"
	"parimutuel/service"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// adjustLua creates the account with ARGV[2] when missing and applies the
// signed change ARGV[3]. Returns {applied, before, after, created}.
const adjustLua = `
local before = redis.call('HGET', KEYS[1], ARGV[1])
local created = 0
if not before then
    before = tonumber(ARGV[2])
    created = 1
else
    before = tonumber(before)
end
local after = before + tonumber(ARGV[3])
if after < 0 then
    return {0, before, before, created}
end
redis.call('HSET', KEYS[1], ARGV[1], after)
return {1, before, after, created}
`

// batchLua applies member/delta pairs from ARGV[2..] all or nothing.
// Returns a flat list of {member, before, after, created} per distinct member.
const batchLua = `
local default = tonumber(ARGV[1])
local order = {}
local state = {}
for i = 2, #ARGV, 2 do
    local member = ARGV[i]
    local s = state[member]
    if not s then
        local current = redis.call('HGET', KEYS[1], member)
        if current then
            s = {before = tonumber(current), after = tonumber(current), created = 0}
        else
            s = {before = default, after = default, created = 1}
        end
        state[member] = s
        table.insert(order, member)
    end
    s.after = s.after + tonumber(ARGV[i + 1])
    if s.after < 0 then
        return redis.error_reply('negative_balance ' .. member)
    end
end
local out = {}
for _, member in ipairs(order) do
    local s = state[member]
    redis.call('HSET', KEYS[1], member, s.after)
    table.insert(out, member)
    table.insert(out, s.before)
    table.insert(out, s.after)
    table.insert(out, s.created)
end
return out
`

// RedisLedger keeps balances in one hash per community. Scripts make each
// adjustment and each batch atomic on the server.
type RedisLedger struct {
	rdb             *redis.Client
	eventBus        *events.Bus
	startingBalance int64
	adjustScript    *redis.Script
	batchScript     *redis.Script
}

// NewRedisLedger creates a ledger on the given client. eventBus may be nil.
func NewRedisLedger(rdb *redis.Client, eventBus *events.Bus, startingBalance int64) *RedisLedger {
	return &RedisLedger{
		rdb:             rdb,
		eventBus:        eventBus,
		startingBalance: startingBalance,
		adjustScript:    redis.NewScript(adjustLua),
		batchScript:     redis.NewScript(batchLua),
	}
}

func ledgerKey(communityID int64) string {
	return fmt.Sprintf("ledger:{%d}:balances", communityID)
}

// ForCommunity returns the community's balance store
func (l *RedisLedger) ForCommunity(communityID int64) service.CommunityLedger {
	return &redisCommunityLedger{parent: l, communityID: communityID, key: ledgerKey(communityID)}
}

type redisCommunityLedger struct {
	parent      *RedisLedger
	communityID int64
	key         string
}

func (c *redisCommunityLedger) GetBalance(ctx context.Context, memberID int64) (int64, error) {
	_, after, err := c.adjust(ctx, models.BalanceAdjustment{MemberID: memberID})
	return after, err
}

func (c *redisCommunityLedger) AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (int64, error) {
	applied, after, err := c.adjust(ctx, adj)
	if err != nil {
		return 0, err
	}
	if !applied {
		return 0, models.ErrNegativeBalance.Withf("balance cannot go below zero: have %d, change %d", after, adj.Delta)
	}
	return after, nil
}

// adjust runs the adjust script. On refusal the returned balance is the unchanged one.
func (c *redisCommunityLedger) adjust(ctx context.Context, adj models.BalanceAdjustment) (bool, int64, error) {
	res, err := c.parent.adjustScript.Run(ctx, c.parent.rdb, []string{c.key},
		adj.MemberID, c.parent.startingBalance, adj.Delta).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("failed to adjust balance for member %d: %w", adj.MemberID, err)
	}
	if len(res) != 4 {
		return false, 0, fmt.Errorf("unexpected adjust reply length %d", len(res))
	}

	applied, before, after, created := res[0] == 1, res[1], res[2], res[3] == 1
	if created && applied {
		c.emit(ctx, memberChange(adj.MemberID, 0, c.parent.startingBalance, models.TransactionTypeInitial, ""))
	}
	if applied && adj.Delta != 0 {
		c.emit(ctx, memberChange(adj.MemberID, before, after, adj.TransactionType, adj.RoundID))
	}
	return applied, after, nil
}

func (c *redisCommunityLedger) ApplyBatch(ctx context.Context, adjs []models.BalanceAdjustment) error {
	if len(adjs) == 0 {
		return nil
	}

	args := make([]interface{}, 0, 1+2*len(adjs))
	args = append(args, c.parent.startingBalance)
	for _, adj := range adjs {
		args = append(args, adj.MemberID, adj.Delta)
	}

	res, err := c.parent.batchScript.Run(ctx, c.parent.rdb, []string{c.key}, args...).Int64Slice()
	if err != nil {
		var redisErr redis.Error
		if errors.As(err, &redisErr) {
			if _, member, ok := strings.Cut(redisErr.Error(), "negative_balance "); ok {
				return models.ErrNegativeBalance.Withf("batch would overdraw member %s", member)
			}
		}
		return fmt.Errorf("failed to apply batch of %d adjustments: %w", len(adjs), err)
	}

	// The batch is committed; replay it into per-adjustment events
	running := make(map[int64]int64)
	for i := 0; i+3 < len(res); i += 4 {
		member, before, created := res[i], res[i+1], res[i+3] == 1
		if created {
			c.emit(ctx, memberChange(member, 0, before, models.TransactionTypeInitial, ""))
		}
		running[member] = before
	}
	for _, adj := range adjs {
		before := running[adj.MemberID]
		running[adj.MemberID] = before + adj.Delta
		c.emit(ctx, memberChange(adj.MemberID, before, before+adj.Delta, adj.TransactionType, adj.RoundID))
	}
	return nil
}

func (c *redisCommunityLedger) emit(ctx context.Context, e events.BalanceChangeEvent) {
	e.CommunityID = c.communityID
	log.WithFields(log.Fields{
		"community": c.communityID,
		"member":    e.MemberID,
		"change":    e.ChangeAmount,
		"type":      e.TransactionType,
	}).Debug("Ledger balance changed")

	if c.parent.eventBus != nil {
		c.parent.eventBus.Emit(context.WithoutCancel(ctx), e)
	}
}

func memberChange(memberID, before, after int64, txType models.TransactionType, roundID string) events.BalanceChangeEvent {
	return events.BalanceChangeEvent{
		MemberID:        memberID,
		OldBalance:      before,
		NewBalance:      after,
		ChangeAmount:    after - before,
		TransactionType: txType,
		RoundID:         roundID,
	}
}

var _ service.Ledger = (*RedisLedger)(nil)
