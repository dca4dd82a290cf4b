package handlers

import (
	"github.com/fatflowers/paygate/internal/app/service/billing"
	nh "github.com/fatflowers/paygate/internal/app/service/notification_handler"
	"github.com/fatflowers/paygate/internal/app/service/payment"
	"github.com/fatflowers/paygate/internal/app/service/statistics"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespPaymentResult carries the orchestrator result. A failed payment keeps
// the recorded transaction in data with a non-zero code.
type RespPaymentResult struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.Result           `json:"data"`
}

type RespListTransactions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListTransactionsResponse `json:"data"`
}

type RespTokens struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.PaymentToken    `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode         `json:"code"`
	Message string                           `json:"message"`
	Data    billing.CreateSubscriptionResult `json:"data"`
}

type RespSubscriptions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Transaction     `json:"data"`
}

type RespWebhook struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    nh.Result                `json:"data"`
}

type RespDailySummary struct {
	Code    response.APIResponseCode      `json:"code"`
	Message string                        `json:"message"`
	Data    []statistics.DailySummaryItem `json:"data"`
}

type RespStatistic struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    statistics.StatisticResponse `json:"data"`
}

type RespBatch struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    billing.BatchResult      `json:"data"`
}

type RespRefundDetails struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.RefundDetails    `json:"data"`
}

type RespTransaction struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Transaction       `json:"data"`
}

type RespTokenCleanup struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    TokenCleanupResponse     `json:"data"`
}
