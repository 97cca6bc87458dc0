package requestcontext

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
)

type clientIPKey struct{}

type WithClientIPConfig struct {
	// TrustedProxiesIP is a list of proxy CIDR ranges between the server
	// and the client. When set, the client IP is the last entry in
	// X-Forwarded-For that is not a trusted proxy.
	TrustedProxiesIP []string `mapstructure:"trusted_proxies_ip"`

	// TrustedHeader is a header carrying the client IP (e.g. X-Real-IP,
	// CF-Connecting-IP). Takes priority over everything else when set.
	TrustedHeader string `mapstructure:"trusted_proxies_header"`
}

// WithClientIP carries the client IP into the user context, with
// X-Forwarded-For spoofing prevention when trusted proxies are configured.
func WithClientIP(config WithClientIPConfig) Option {
	var trustedProxies trustedProxy
	if len(config.TrustedProxiesIP) > 0 {
		proxy, err := newTrustedProxy(config.TrustedProxiesIP)
		if err != nil {
			logger.Panic("Failed to parse trusted proxies", slogx.Error(err))
		}
		trustedProxies = proxy
	}

	return func(ctx context.Context, c *fiber.Ctx) (context.Context, error) {
		if config.TrustedHeader != "" {
			headerIP := c.Get(config.TrustedHeader)
			if ip := net.ParseIP(headerIP); ip != nil {
				return context.WithValue(ctx, clientIPKey{}, headerIP), nil
			}
		}

		rawIPs := c.IPs()
		if len(rawIPs) == 0 {
			// Direct connection, no proxies involved.
			return context.WithValue(ctx, clientIPKey{}, c.IP()), nil
		}

		if len(trustedProxies) > 0 {
			for i := len(rawIPs) - 1; i >= 0; i-- {
				if !trustedProxies.IsTrusted(net.ParseIP(rawIPs[i])) {
					return context.WithValue(ctx, clientIPKey{}, rawIPs[i]), nil
				}
			}
		}

		// Fall back to the first IP in the X-Forwarded-For header.
		return context.WithValue(ctx, clientIPKey{}, rawIPs[0]), nil
	}
}

// GetClientIP gets the client IP from the context. Returns an empty string
// if the request context middleware did not run.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

type trustedProxy []*net.IPNet

func newTrustedProxy(ranges []string) (trustedProxy, error) {
	nets := make([]*net.IPNet, 0, len(ranges))
	for _, r := range ranges {
		_, ipnet, err := net.ParseCIDR(r)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse CIDR for %q", r)
		}
		nets = append(nets, ipnet)
	}
	return trustedProxy(nets), nil
}

func (t trustedProxy) IsTrusted(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, r := range t {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}
