package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/paygate/pkg/response"
)

const healthPingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// @Summary      Health check
// @Description  Returns service status; 503 when the database does not answer.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /healthz [get]
func ApiHealthz(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, response.ErrorT(response.APIResponseCodeError, map[string]string{"status": "degraded", "database": err.Error()}))
				return
			}
		}
		c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ok"}))
	}
}

func RegisterHealthRoutes(r gin.IRouter, db Pinger) {
	r.GET("/healthz", ApiHealthz(db))
}
