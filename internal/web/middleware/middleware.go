package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeySession   ctxKey = "session"
	ctxKeyClientIP  ctxKey = "client_ip"
)

// RequestIDHeader carries the request id back to the client
const RequestIDHeader = "X-Request-ID"

// Logger middleware logs HTTP requests
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id))

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration", time.Since(start),
				"ip", ClientIP(r),
				"request_id", id,
			)
		})
	}
}

// RequestID returns the id assigned by Logger
func RequestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyRequestID).(string)
	return id
}

// Recovery middleware recovers from panics
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// IPFilter middleware restricts access to allowed IPs
func IPFilter(allowedIPs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	// Parse allowed IPs/CIDRs
	var allowedNets []*net.IPNet
	var allowedAddrs []net.IP

	for _, ip := range allowedIPs {
		if strings.Contains(ip, "/") {
			_, ipNet, err := net.ParseCIDR(ip)
			if err != nil {
				logger.Warn("invalid CIDR in allowed_ips", "cidr", ip, "error", err)
				continue
			}
			allowedNets = append(allowedNets, ipNet)
		} else {
			parsed := net.ParseIP(ip)
			if parsed == nil {
				logger.Warn("invalid IP in allowed_ips", "ip", ip)
				continue
			}
			allowedAddrs = append(allowedAddrs, parsed)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// If no IPs configured, allow all
			if len(allowedNets) == 0 && len(allowedAddrs) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := ClientIP(r)
			ip := net.ParseIP(clientIP)
			if ip == nil {
				logger.Warn("could not parse client IP", "ip", clientIP)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			for _, allowed := range allowedAddrs {
				if allowed.Equal(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}
			for _, ipNet := range allowedNets {
				if ipNet.Contains(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("access denied by IP filter", "ip", clientIP, "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// RealIP resolves the client address once per request. Forwarding
// headers are believed only when the connection comes from one of the
// trusted proxies; otherwise the peer address is the client.
func RealIP(trustedProxies []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trustedProxies)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClientIP, ip)))
		})
	}
}

func resolveClientIP(r *http.Request, trustedProxies []*net.IPNet) string {
	peer := peerIP(r)
	if !inNets(peer, trustedProxies) {
		return peer
	}

	// Rightmost hop not added by one of our proxies
	if xff := strings.Join(r.Header.Values("X-Forwarded-For"), ","); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !inNets(hop, trustedProxies) {
				return hop
			}
		}
		if first := strings.TrimSpace(hops[0]); first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func inNets(ip string, nets []*net.IPNet) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP returns the address resolved by RealIP, or the peer address
// when RealIP is not installed.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ctxKeyClientIP).(string); ok {
		return ip
	}
	return peerIP(r)
}
