package jobdiva

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// CandidateFinder looks candidates up by E.164 phone number.
type CandidateFinder interface {
	FindCandidateByPhone(ctx context.Context, phone string) (*Candidate, error)
}

// CachedCandidates memoizes candidate lookups, including misses, for ttl.
// Errors are never cached.
type CachedCandidates struct {
	next  CandidateFinder
	cache *cache.Cache
}

// miss marks a cached negative lookup.
type miss struct{}

func NewCachedCandidates(next CandidateFinder, ttl time.Duration) *CachedCandidates {
	return &CachedCandidates{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (c *CachedCandidates) FindCandidateByPhone(ctx context.Context, phone string) (*Candidate, error) {
	if v, ok := c.cache.Get(phone); ok {
		log.Debug().Str("phone", phone).Msg("Candidate lookup served from cache")
		if cand, ok := v.(*Candidate); ok {
			copied := *cand
			return &copied, nil
		}
		return nil, nil
	}

	cand, err := c.next.FindCandidateByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if cand == nil {
		c.cache.SetDefault(phone, miss{})
		return nil, nil
	}
	copied := *cand
	c.cache.SetDefault(phone, &copied)
	return cand, nil
}

// Forget drops the cached entry for phone.
func (c *CachedCandidates) Forget(phone string) {
	c.cache.Delete(phone)
}

// CachedClient is a Client whose candidate lookups go through a CachedCandidates.
type CachedClient struct {
	*Client
	candidates *CachedCandidates
}

func NewCachedClient(c *Client, ttl time.Duration) *CachedClient {
	return &CachedClient{Client: c, candidates: NewCachedCandidates(c, ttl)}
}

func (c *CachedClient) FindCandidateByPhone(ctx context.Context, phone string) (*Candidate, error) {
	return c.candidates.FindCandidateByPhone(ctx, phone)
}

// Forget drops the cached lookup for phone.
func (c *CachedClient) Forget(phone string) {
	c.candidates.Forget(phone)
}
