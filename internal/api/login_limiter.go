package api

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	VISITOR_TTL      = 5 * time.Minute
	CLEANUP_INTERVAL = 3 * time.Minute
	MSG_LOGIN_LIMIT  = "Zu viele Anmeldeversuche. Bitte warte einen Moment."
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter is a token bucket per client ip, used against login brute forcing.
type IPLimiter struct {
	rps   rate.Limit
	burst int

	// forwarded headers are only honoured from these peers
	TrustedProxies []netip.Prefix

	mu          sync.Mutex
	visitors    map[string]*visitor
	lastCleanup time.Time
}

func NewIPLimiter(rps float64, burst int) *IPLimiter {
	return &IPLimiter{
		rps:         rate.Limit(rps),
		burst:       burst,
		visitors:    make(map[string]*visitor),
		lastCleanup: time.Now(),
	}
}

func (l *IPLimiter) Allow(ip string) bool {

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastCleanup) > CLEANUP_INTERVAL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > VISITOR_TTL {
				delete(l.visitors, k)
			}
		}
		l.lastCleanup = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter.Allow()

}

// ParseTrustedProxies reads ips and cidrs, as in TRUSTED_PROXIES.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {

	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return prefixes, nil

}

func (l *IPLimiter) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.TrustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP is the peer address unless the peer is a trusted proxy. Then the
// X-Forwarded-For chain is walked from the right and the first untrusted hop
// wins, so clients cannot choose their own key by sending the header.
func (l *IPLimiter) ClientIP(r *http.Request) string {

	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !l.trusted(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.trusted(hop) {
			return hop
		}
	}

	return peer

}

func (h *Handler) LoginRateLimit(f http.HandlerFunc) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {
		if h.LoginLimiter != nil && !h.LoginLimiter.Allow(h.LoginLimiter.ClientIP(r)) {
			h.Res(&ResParams{
				W:       w,
				R:       r,
				Code:    http.StatusTooManyRequests,
				ResData: ErrMsg(MSG_LOGIN_LIMIT),
			})
			return
		}
		f(w, r)
	}

}
