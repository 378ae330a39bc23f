package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/dapoalex/AjoPool/pkg/pool"
)

// Async runs the rest of the handler chain on the worker pool instead of the
// request goroutine, capping concurrent database work. The request goroutine
// blocks on done, so the gin context is only ever touched by one goroutine at
// a time.
func Async(wp *pool.WorkerPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if wp == nil {
			c.Next()
			return
		}

		done := make(chan struct{})
		wp.Submit(func() {
			defer close(done)
			c.Next()
		})
		<-done
	}
}
