package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	nh "github.com/fatflowers/paygate/internal/app/service/notification_handler"
	"github.com/fatflowers/paygate/pkg/config"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/response"
)

const (
	defaultSignatureHeader = "X-Signature"
	maxWebhookBody         = 1 << 20
)

type WebhookReconciler interface {
	VerifySignature(body []byte, sig string) bool
	Handle(ctx context.Context, n *nh.Notification) (*nh.Result, error)
}

// @Summary      Gateway Webhook
// @Description  Reconciles an asynchronous gateway notification. The signature covers the raw body. Answers 401 for a bad signature, 404 for an unknown transaction and 200 otherwise.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        X-Signature header string false "Hex HMAC-SHA256 of the body"
// @Param        payload body object true "Gateway notification"
// @Success      200  {object}  handlers.RespWebhook
// @Failure      401  {object}  handlers.RespWebhook
// @Failure      404  {object}  handlers.RespWebhook
// @Router       /api/v1/webhooks/gateway [post]
func ApiGatewayWebhook(h WebhookReconciler, cfg *config.Config, log *zap.SugaredLogger) gin.HandlerFunc {
	header := cfg.Webhook.SignatureHeader
	if header == "" {
		header = defaultSignatureHeader
	}
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, log)
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}
		verified := h.VerifySignature(body, c.GetHeader(header))

		n, err := nh.Parse(body, time.Now().UTC())
		if err != nil {
			lg.Warnw("webhook_gateway_malformed", "verified", verified, "error", err)
			if !verified {
				c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
				return
			}
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		n.Verified = verified
		n.TraceID = logctx.TraceID(c.Request.Context())

		res, err := h.Handle(c.Request.Context(), n)
		if err != nil {
			lg.Errorw("webhook_gateway_handle_error", "event_id", n.EventID, "error", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		lg.Infow("webhook_gateway_handled", "event_id", n.EventID, "event_type", n.EventType, "outcome", res.Outcome)

		status := res.HTTPStatus()
		switch status {
		case http.StatusUnauthorized:
			c.JSON(status, response.ErrorT(response.APIResponseCodeUnauthorized, res))
		case http.StatusNotFound:
			c.JSON(status, response.ErrorT(response.APIResponseCodeNotFound, res))
		default:
			c.JSON(status, response.OKT(res))
		}
	}
}

func RegisterPaymentWebhookRoutes(r gin.IRouter, h WebhookReconciler, cfg *config.Config, log *zap.SugaredLogger) {
	r.POST("/gateway", ApiGatewayWebhook(h, cfg, log))
}
