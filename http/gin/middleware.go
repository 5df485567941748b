// Package gin provides a Gin-compatible adapter for the delegated payment
// middleware. It is a thin translation layer; all verification logic lives in
// the facilitator package.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumex-labs/paygate/facilitator"
)

// PaymentContextKey is the gin context key holding the facilitator's
// verification result after a successful payment.
const PaymentContextKey = "paygate_payment"

// Middleware wraps facilitator.Middleware for gin. On payment failure the
// chain is aborted with the response already written; on success the verify
// result is stored under PaymentContextKey and the chain continues.
func Middleware(cfg facilitator.MiddlewareConfig) gin.HandlerFunc {
	gate := facilitator.Middleware(cfg)

	return func(c *gin.Context) {
		passed := false
		probe := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			if result, ok := facilitator.FromContext(r.Context()); ok {
				c.Set(PaymentContextKey, result)
			}
			c.Request = r
		}))

		probe.ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}
