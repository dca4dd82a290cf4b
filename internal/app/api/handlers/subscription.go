package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/internal/app/service/billing"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/response"
)

type Subscriptions interface {
	CreateSubscription(ctx context.Context, req *billing.CreateSubscriptionRequest) (*billing.CreateSubscriptionResult, error)
	Cancel(ctx context.Context, id, payerID string) (*models.Transaction, error)
	List(ctx context.Context, payerID string) ([]*models.Transaction, error)
	UpdateSubscription(ctx context.Context, req *billing.UpdateSubscriptionRequest) (*models.Transaction, error)
	UpdatePaymentMethod(ctx context.Context, id, payerID, tokenID string) (*models.Transaction, error)
}

type UpdatePaymentMethodRequest struct {
	TokenID string `json:"token_id"`
}

// @Summary      Create Subscription
// @Description  Stores a recurring billing agreement, optionally charging the first period now.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        request body billing.CreateSubscriptionRequest true "Subscription"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions [post]
func ApiCreateSubscription(svc Subscriptions, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.CreateSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		req.PayerID = payerID(c)
		res, err := svc.CreateSubscription(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		if fc := res.FirstCharge; fc != nil && !fc.Success {
			c.JSON(http.StatusOK, response.ErrorT(fc.Kind.Code(), res))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List Subscriptions
// @Tags         Subscription
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Success      200  {object}  handlers.RespSubscriptions
// @Router       /api/v1/subscriptions [get]
func ApiListSubscriptions(svc Subscriptions, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := svc.List(c.Request.Context(), payerID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(subs))
	}
}

// @Summary      Cancel Subscription
// @Description  Stops future billing. Cancelling twice is not an error.
// @Tags         Subscription
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        id path string true "Subscription id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions/{id} [delete]
func ApiCancelSubscription(svc Subscriptions, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.Cancel(c.Request.Context(), c.Param("id"), payerID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Update Subscription
// @Description  Changes the amount, schedule, end date or token of an active subscription. Omitted fields are kept.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        id path string true "Subscription id"
// @Param        request body billing.UpdateSubscriptionRequest true "Fields to change"
// @Success      200  {object}  handlers.RespTransaction
// @Router       /api/v1/subscriptions/{id} [patch]
func ApiUpdateSubscription(svc Subscriptions, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.UpdateSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		req.ID = c.Param("id")
		req.PayerID = payerID(c)
		sub, err := svc.UpdateSubscription(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Update Subscription Payment Method
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        id path string true "Subscription id"
// @Param        request body UpdatePaymentMethodRequest true "New token"
// @Success      200  {object}  handlers.RespTransaction
// @Router       /api/v1/subscriptions/{id}/payment-method [put]
func ApiUpdateSubscriptionPaymentMethod(svc Subscriptions, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdatePaymentMethodRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		sub, err := svc.UpdatePaymentMethod(c.Request.Context(), c.Param("id"), payerID(c), req.TokenID)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc Subscriptions, log *zap.SugaredLogger) {
	r.POST("", ApiCreateSubscription(svc, log))
	r.GET("", ApiListSubscriptions(svc, log))
	r.DELETE("/:id", ApiCancelSubscription(svc, log))
	r.PATCH("/:id", ApiUpdateSubscription(svc, log))
	r.PUT("/:id/payment-method", ApiUpdateSubscriptionPaymentMethod(svc, log))
}
