package revenue

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"plaxrec/internal/models"
	"plaxrec/internal/store"

	"github.com/shopspring/decimal"
)

// Resolver policy names accepted by NewResolver.
const (
	PolicySingle       = "single"
	PolicyRoundRobin   = "round_robin"
	PolicyProportional = "proportional"
)

// Credit is an amount owed to one profile.
type Credit struct {
	ProfileID string
	Amount    decimal.Decimal
}

// RoleFundResolver turns "pay amount to role" into concrete profile credits. An
// empty result means nobody holds the role and the amount is not credited.
type RoleFundResolver interface {
	Resolve(ctx context.Context, q store.Selecter, role models.Role, amount decimal.Decimal) ([]Credit, error)
}

type ProfileLister interface {
	ListByRole(ctx context.Context, q store.Selecter, role models.Role) ([]models.Profile, error)
}

// Counter hands out a monotonically increasing value per key.
type Counter interface {
	Next(ctx context.Context, key string) (int64, error)
}

func NewResolver(policy string, profiles ProfileLister, counter Counter) (RoleFundResolver, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", PolicySingle:
		return SingleResolver{profiles: profiles}, nil
	case PolicyRoundRobin:
		if counter == nil {
			counter = NewLocalCounter()
		}
		return RoundRobinResolver{profiles: profiles, counter: counter}, nil
	case PolicyProportional:
		return ProportionalResolver{profiles: profiles}, nil
	default:
		return nil, fmt.Errorf("unknown distribution policy %q", policy)
	}
}

// SingleResolver credits the whole amount to the oldest profile of the role.
type SingleResolver struct {
	profiles ProfileLister
}

func NewSingleResolver(profiles ProfileLister) SingleResolver {
	return SingleResolver{profiles: profiles}
}

func (r SingleResolver) Resolve(ctx context.Context, q store.Selecter, role models.Role, amount decimal.Decimal) ([]Credit, error) {
	holders, err := r.profiles.ListByRole(ctx, q, role)
	if err != nil {
		return nil, err
	}
	if len(holders) == 0 || amount.IsZero() {
		return nil, nil
	}
	return []Credit{{ProfileID: holders[0].ID, Amount: amount}}, nil
}

// RoundRobinResolver credits the whole amount to one holder, rotating per role.
type RoundRobinResolver struct {
	profiles ProfileLister
	counter  Counter
}

func (r RoundRobinResolver) Resolve(ctx context.Context, q store.Selecter, role models.Role, amount decimal.Decimal) ([]Credit, error) {
	holders, err := r.profiles.ListByRole(ctx, q, role)
	if err != nil {
		return nil, err
	}
	if len(holders) == 0 || amount.IsZero() {
		return nil, nil
	}
	next, err := r.counter.Next(ctx, "role_fund:"+string(role))
	if err != nil {
		return nil, fmt.Errorf("round robin cursor: %w", err)
	}
	index := int((next - 1) % int64(len(holders)))
	if index < 0 {
		index = -index
	}
	return []Credit{{ProfileID: holders[index].ID, Amount: amount}}, nil
}

// ProportionalResolver divides the amount equally among all holders. Each share is
// truncated to six decimals and the last holder absorbs the remainder.
type ProportionalResolver struct {
	profiles ProfileLister
}

func (r ProportionalResolver) Resolve(ctx context.Context, q store.Selecter, role models.Role, amount decimal.Decimal) ([]Credit, error) {
	holders, err := r.profiles.ListByRole(ctx, q, role)
	if err != nil {
		return nil, err
	}
	if len(holders) == 0 || amount.IsZero() {
		return nil, nil
	}
	each := amount.DivRound(decimal.NewFromInt(int64(len(holders))), 8).Truncate(6)
	credits := make([]Credit, 0, len(holders))
	assigned := decimal.Zero
	for i, holder := range holders {
		share := each
		if i == len(holders)-1 {
			share = amount.Sub(assigned)
		}
		assigned = assigned.Add(share)
		credits = append(credits, Credit{ProfileID: holder.ID, Amount: share})
	}
	return credits, nil
}

// LocalCounter is an in-process Counter.
type LocalCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewLocalCounter() *LocalCounter {
	return &LocalCounter{values: make(map[string]int64)}
}

func (c *LocalCounter) Next(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key]++
	return c.values[key], nil
}
