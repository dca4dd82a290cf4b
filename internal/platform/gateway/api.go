package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

const (
	PathCharge           = "/billing/payments/charge/"
	PathRecurringCharge  = "/billing/recurring/charge/"
	PathCapture          = "/billing/payments/capture/"
	PathVoid             = "/billing/payments/cancel/"
	PathRefund           = "/billing/payments/refund/"
	PathGetPayment       = "/billing/payments/get/"
	PathCompanyDetails   = "/website/companies/getdetails/"
	defaultDeclineReason = "payment declined"
)

type Customer struct {
	ExternalIdentifier string `json:"ExternalIdentifier,omitempty"`
	Name               string `json:"Name,omitempty"`
	EmailAddress       string `json:"EmailAddress,omitempty"`
	Phone              string `json:"Phone,omitempty"`
	CitizenID          string `json:"CitizenID,omitempty"`
}

// PaymentMethod carries exactly one of a saved token, a single-use token or
// raw card data.
type PaymentMethod struct {
	CreditCardToken           string `json:"CreditCard_Token,omitempty"`
	SingleUseToken            string `json:"SingleUseToken,omitempty"`
	CreditCardNumber          string `json:"CreditCard_Number,omitempty"`
	CreditCardCVV             string `json:"CreditCard_CVV,omitempty"`
	CreditCardCitizenID       string `json:"CreditCard_CitizenID,omitempty"`
	CreditCardExpirationMonth int    `json:"CreditCard_ExpirationMonth,omitempty"`
	CreditCardExpirationYear  int    `json:"CreditCard_ExpirationYear,omitempty"`
}

type Item struct {
	Name        string          `json:"Name"`
	Description string          `json:"Description,omitempty"`
	Quantity    int             `json:"Quantity"`
	UnitPrice   decimal.Decimal `json:"UnitPrice"`
}

type DocumentOptions struct {
	Draft    bool   `json:"DraftDocument"`
	Email    bool   `json:"SendDocumentByEmail"`
	Language string `json:"DocumentLanguage,omitempty"`
}

type ChargeRequest struct {
	OrderRef        string           `json:"ExternalReference"`
	Currency        string           `json:"Currency"`
	Amount          decimal.Decimal  `json:"Amount"`
	AuthorizeOnly   bool             `json:"AuthoriseOnly,omitempty"`
	AuthorizeAmount *decimal.Decimal `json:"AuthorizeAmount,omitempty"`
	Installments    int              `json:"Payments_Count"`
	MerchantNumber  string           `json:"MerchantNumber,omitempty"`
	Customer        Customer         `json:"Customer"`
	PaymentMethod   PaymentMethod    `json:"PaymentMethod"`
	Items           []Item           `json:"Items,omitempty"`
	Description     string           `json:"Description,omitempty"`
	SaveToken       bool             `json:"UpdateCustomerPaymentMethod,omitempty"`
	Document        DocumentOptions  `json:"Document"`
	// Recurring routes the charge through the recurring billing endpoint.
	Recurring bool `json:"-"`
}

type CaptureRequest struct {
	GatewayTransactionID string          `json:"PaymentID"`
	Amount               decimal.Decimal `json:"Amount"`
	MerchantNumber       string          `json:"MerchantNumber,omitempty"`
}

type VoidRequest struct {
	GatewayTransactionID string `json:"PaymentID"`
	MerchantNumber       string `json:"MerchantNumber,omitempty"`
}

type RefundRequest struct {
	GatewayTransactionID string          `json:"PaymentID"`
	OrderRef             string          `json:"ExternalReference"`
	Amount               decimal.Decimal `json:"Amount"`
	Currency             string          `json:"Currency"`
	MerchantNumber       string          `json:"MerchantNumber,omitempty"`
	Reason               string          `json:"Description,omitempty"`
}

// CardToken is the reusable card data returned when tokenization succeeds.
type CardToken struct {
	Token       string
	Brand       string
	LastFour    string
	ExpiryMonth int
	ExpiryYear  int
	CitizenID   string
}

// Result is the normalized outcome of a money-moving call.
type Result struct {
	Success              bool
	Status               int
	GatewayTransactionID string
	AuthorizationCode    string
	DocumentID           string
	CustomerID           string
	Amount               decimal.Decimal
	ErrorMessage         string
	Token                *CardToken
}

type paymentData struct {
	Payment *struct {
		ID                string          `json:"ID"`
		ValidPayment      bool            `json:"ValidPayment"`
		StatusDescription string          `json:"StatusDescription"`
		AuthNumber        string          `json:"AuthNumber"`
		Amount            decimal.Decimal `json:"Amount"`
		PaymentMethod     *struct {
			Token           string `json:"CreditCard_Token"`
			LastDigits      string `json:"CreditCard_LastDigits"`
			ExpirationMonth int    `json:"CreditCard_ExpirationMonth"`
			ExpirationYear  int    `json:"CreditCard_ExpirationYear"`
			CitizenID       string `json:"CreditCard_CitizenID"`
			Brand           string `json:"CreditCard_CardType"`
		} `json:"PaymentMethod"`
	} `json:"Payment"`
	DocumentID string `json:"DocumentID"`
	CustomerID string `json:"CustomerID"`
}

// API maps payment operations onto gateway endpoints.
type API struct {
	client *Client
}

func NewAPI(client *Client) *API {
	return &API{client: client}
}

func (a *API) Charge(ctx context.Context, req *ChargeRequest) (*Result, error) {
	path := PathCharge
	if req.Recurring {
		path = PathRecurringCharge
	}
	// a lost charge response must not be retried into a second charge
	resp, err := a.client.Send(ctx, path, req, WithoutRetry())
	if err != nil {
		return nil, err
	}
	return parsePayment(resp)
}

func (a *API) Capture(ctx context.Context, req *CaptureRequest) (*Result, error) {
	resp, err := a.client.Send(ctx, PathCapture, req, WithoutRetry())
	if err != nil {
		return nil, err
	}
	return parsePayment(resp)
}

func (a *API) Void(ctx context.Context, req *VoidRequest) (*Result, error) {
	resp, err := a.client.Send(ctx, PathVoid, req)
	if err != nil {
		return nil, err
	}
	return parseStatus(resp), nil
}

func (a *API) Refund(ctx context.Context, req *RefundRequest) (*Result, error) {
	resp, err := a.client.Send(ctx, PathRefund, req, WithoutRetry())
	if err != nil {
		return nil, err
	}
	return parsePayment(resp)
}

// GetPayment fetches the gateway's view of a payment. Read-only, so the
// retry budget applies.
func (a *API) GetPayment(ctx context.Context, gatewayTransactionID string) (*Result, error) {
	resp, err := a.client.Send(ctx, PathGetPayment, map[string]any{"PaymentID": gatewayTransactionID})
	if err != nil {
		return nil, err
	}
	return parsePayment(resp)
}

// ValidateCredentials checks the configured company id and API key.
func (a *API) ValidateCredentials(ctx context.Context) error {
	resp, err := a.client.Send(ctx, PathCompanyDetails, nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("gateway rejected credentials: %s", errorMessage(resp, ""))
	}
	return nil
}

func parseStatus(resp *Response) *Result {
	if resp.OK() {
		return &Result{Success: true, Status: resp.Status}
	}
	return &Result{Status: resp.Status, ErrorMessage: errorMessage(resp, "")}
}

func parsePayment(resp *Response) (*Result, error) {
	var data paymentData
	if err := resp.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("decode gateway payment data: %w", err)
	}
	res := &Result{Status: resp.Status, DocumentID: data.DocumentID, CustomerID: data.CustomerID}
	p := data.Payment
	if p != nil {
		res.GatewayTransactionID = p.ID
		res.AuthorizationCode = p.AuthNumber
		res.Amount = p.Amount
	}
	if !resp.OK() || p == nil || !p.ValidPayment {
		desc := ""
		if p != nil {
			desc = p.StatusDescription
		}
		res.ErrorMessage = errorMessage(resp, desc)
		return res, nil
	}
	res.Success = true
	if pm := p.PaymentMethod; pm != nil && pm.Token != "" {
		res.Token = &CardToken{
			Token:       pm.Token,
			Brand:       pm.Brand,
			LastFour:    pm.LastDigits,
			ExpiryMonth: pm.ExpirationMonth,
			ExpiryYear:  pm.ExpirationYear,
			CitizenID:   pm.CitizenID,
		}
	}
	return res, nil
}

// errorMessage prefers the user-facing message, then the payment status
// description.
func errorMessage(resp *Response, statusDescription string) string {
	switch {
	case resp != nil && resp.UserErrorMessage != "":
		return resp.UserErrorMessage
	case statusDescription != "":
		return statusDescription
	}
	return defaultDeclineReason
}

var Module = fx.Options(
	fx.Provide(NewClient, NewAPI),
)
