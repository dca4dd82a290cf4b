package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/response"
)

type TokenStore interface {
	ListActive(ctx context.Context, payerID string) ([]*models.PaymentToken, error)
	SetDefault(ctx context.Context, id, payerID string) (bool, error)
	Remove(ctx context.Context, id, payerID string) (bool, error)
}

// @Summary      List Tokens
// @Description  Returns the payer's active saved cards, default first.
// @Tags         Token
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Success      200  {object}  handlers.RespTokens
// @Router       /api/v1/tokens [get]
func ApiListTokens(store TokenStore, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokens, err := store.ListActive(c.Request.Context(), payerID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(tokens))
	}
}

// @Summary      Set Default Token
// @Tags         Token
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        id path string true "Token id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/tokens/{id}/default [put]
func ApiSetDefaultToken(store TokenStore, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := store.SetDefault(c.Request.Context(), c.Param("id"), payerID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		if !ok {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "token not found or expired"))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Remove Token
// @Tags         Token
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        id path string true "Token id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/tokens/{id} [delete]
func ApiRemoveToken(store TokenStore, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := store.Remove(c.Request.Context(), c.Param("id"), payerID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		if !ok {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "token not found"))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterTokenRoutes(r gin.IRouter, store TokenStore, log *zap.SugaredLogger) {
	r.GET("", ApiListTokens(store, log))
	r.PUT("/:id/default", ApiSetDefaultToken(store, log))
	r.DELETE("/:id", ApiRemoveToken(store, log))
}
