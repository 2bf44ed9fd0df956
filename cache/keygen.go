package cache

// KeyFor builds the cache key for a chain/token pair.
// Identifiers are opaque: no case folding, trimming or escaping.
func KeyFor(chain, token string) string {
	return chain + ":" + token
}
