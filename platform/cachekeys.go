package platform

// CacheKey names a slice of cached read state a mutation can make stale.
type CacheKey string

const (
	KeyLoans      CacheKey = "loans"
	KeyStake      CacheKey = "stake"
	KeyTrustScore CacheKey = "trust-score"
	KeySnapshot   CacheKey = "snapshot"
	KeyLiquidity  CacheKey = "liquidity"
	KeyPaused     CacheKey = "paused"
)

// AllCacheKeys lists every key in a stable order.
func AllCacheKeys() []CacheKey {
	return []CacheKey{KeyLoans, KeyStake, KeyTrustScore, KeySnapshot, KeyLiquidity, KeyPaused}
}

func (k CacheKey) String() string { return string(k) }

func keys(list ...CacheKey) []CacheKey { return list }
