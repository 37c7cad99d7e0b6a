package middleware

import (
	"net/http"
	"net/netip"

	"github.com/gin-gonic/gin"
)

// IPWhitelist restricts a route group to the given addresses. Entries may
// be single IPs ("10.0.0.5") or CIDR ranges ("10.0.0.0/8"). An empty list
// allows everything; malformed entries are dropped.
func IPWhitelist(entries []string) gin.HandlerFunc {
	addrs := make(map[netip.Addr]bool, len(entries))
	var prefixes []netip.Prefix
	for _, e := range entries {
		if p, err := netip.ParsePrefix(e); err == nil {
			prefixes = append(prefixes, p)
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			addrs[a] = true
		}
	}
	// A configured-but-unparseable list blocks everything rather than
	// silently opening the admin surface.
	open := len(entries) == 0

	allowed := func(ip string) bool {
		a, err := netip.ParseAddr(ip)
		if err != nil {
			return false
		}
		if addrs[a] {
			return true
		}
		for _, p := range prefixes {
			if p.Contains(a) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		if !open && !allowed(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}
