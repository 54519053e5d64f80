package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// ErrorRenderer writes err as the response for c.
type ErrorRenderer func(c *gin.Context, err error)

// Recovery turns a panic in a handler into an internal error response.
func Recovery(render ErrorRenderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}

			err, ok := p.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", p)
			}

			if !c.Writer.Written() {
				render(c, err)
			}
			c.Abort()
		}()

		c.Next()
	}
}
