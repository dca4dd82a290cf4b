package payment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/internal/app/service/ledger"
	"github.com/fatflowers/paygate/internal/app/service/token"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/internal/platform/gateway"
	"github.com/fatflowers/paygate/pkg/apperr"
	"github.com/fatflowers/paygate/pkg/config"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/tool"
	"github.com/fatflowers/paygate/pkg/types"
)

// Gateway is the subset of the gateway API the orchestrator drives.
type Gateway interface {
	Charge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.Result, error)
	Capture(ctx context.Context, req *gateway.CaptureRequest) (*gateway.Result, error)
	Void(ctx context.Context, req *gateway.VoidRequest) (*gateway.Result, error)
	Refund(ctx context.Context, req *gateway.RefundRequest) (*gateway.Result, error)
}

type Params struct {
	fx.In

	Cfg     *config.Config
	Log     *zap.SugaredLogger
	Ledger  *ledger.Ledger
	Tokens  *token.Service
	Gateway Gateway
	Hooks   []Hook `group:"payment_hooks"`
}

// Service turns payment intents into gateway calls and ledger transitions.
// No ledger lock is held while a gateway call is outstanding.
type Service struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	ledger  *ledger.Ledger
	tokens  *token.Service
	gateway Gateway
	hooks   []Hook
	now     func() time.Time
}

func New(p Params) *Service {
	return &Service{
		cfg:     p.Cfg,
		log:     p.Log,
		ledger:  p.Ledger,
		tokens:  p.Tokens,
		gateway: p.Gateway,
		hooks:   p.Hooks,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var cardNumberPattern = regexp.MustCompile(`^[0-9]{12,19}$`)

// ProcessPayment records a pending transaction, charges the gateway and
// applies the outcome. The returned error is reserved for contract
// violations and persistence failures.
func (s *Service) ProcessPayment(ctx context.Context, in *Intent) (*Result, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: nil intent", ErrInvalidIntent)
	}
	if in.PayerID == "" {
		return nil, fmt.Errorf("%w: payer is required", ErrInvalidIntent)
	}
	if in.Currency == "" {
		in.Currency = s.cfg.Payment.DefaultCurrency
	}
	if in.Currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrInvalidIntent)
	}
	in.Currency = strings.ToUpper(in.Currency)
	if in.Kind == "" {
		in.Kind = types.TransactionKindPayment
	}
	lg := logctx.FromCtx(ctx, s.log).With("payer_id", in.PayerID, "kind", in.Kind)

	if !in.Amount.IsPositive() {
		return failed(apperr.KindValidation, "amount must be greater than zero", nil), nil
	}
	if !s.cfg.Payment.SupportsCurrency(in.Currency) {
		return failed(apperr.KindValidation, fmt.Sprintf("currency %s is not supported", in.Currency), nil), nil
	}
	method, tok, res, err := s.resolveMethod(ctx, in)
	if err != nil || res != nil {
		return res, err
	}

	ceiling := s.InstallmentCeiling(in.Amount)
	for _, h := range s.hooks {
		ceiling = min(ceiling, max(1, h.MaxInstallments(ctx, in, ceiling)))
	}
	installments := in.Installments
	if installments <= 0 {
		installments = 1
	}
	if installments > ceiling {
		return failed(apperr.KindValidation, fmt.Sprintf("at most %d installments allowed for this amount", ceiling), nil), nil
	}

	txn := &models.Transaction{
		PayerID:        in.PayerID,
		OrderRef:       tool.GenerateOrderRef(orderPrefix(in.Kind)),
		Kind:           in.Kind,
		Amount:         in.Amount.Round(2),
		Currency:       in.Currency,
		Installments:   installments,
		MerchantNumber: s.MerchantFor(in.Kind),
		Description:    in.Description,
		Metadata:       lo.Assign(map[string]any{}, in.Metadata),
	}
	if tok != nil {
		txn.TokenID = lo.ToPtr(tok.ID)
	}
	if in.ParentID != "" {
		txn.ParentID = lo.ToPtr(in.ParentID)
	}
	if in.Recurring {
		txn.Metadata["recurring"] = true
	}
	if err := s.ledger.Create(ctx, txn); err != nil {
		return nil, err
	}

	req := &gateway.ChargeRequest{
		OrderRef:       txn.OrderRef,
		Currency:       txn.Currency,
		Amount:         txn.Amount,
		Installments:   installments,
		MerchantNumber: txn.MerchantNumber,
		Customer:       in.Customer,
		PaymentMethod:  method,
		Items:          in.Items,
		Description:    in.Description,
		SaveToken:      in.SaveToken && tok == nil,
		Recurring:      in.Recurring,
	}
	authorizeOnly := in.AuthorizeOnly || s.cfg.Payment.AuthorizeOnly
	if authorizeOnly {
		req.AuthorizeOnly = true
		req.AuthorizeAmount = lo.ToPtr(s.AuthorizeAmount(txn.Amount))
	}
	for _, h := range s.hooks {
		if err := h.BeforeCharge(ctx, in, req); err != nil {
			msg := fmt.Sprintf("payment rejected: %v", err)
			after, err := s.fail(ctx, txn.ID, msg)
			if err != nil {
				return nil, err
			}
			return failed(apperr.KindValidation, msg, after), nil
		}
	}

	resp, err := s.gateway.Charge(ctx, req)
	if err != nil {
		lg.Errorw("payment_gateway_unreachable", "transaction_id", txn.ID, "order_ref", txn.OrderRef, "err", err)
		after, err := s.fail(ctx, txn.ID, unreachableMessage)
		if err != nil {
			return nil, err
		}
		return s.outcome(ctx, after, failed(apperr.KindGatewayUnreachable, unreachableMessage, after)), nil
	}
	if !resp.Success {
		lg.Infow("payment_declined", "transaction_id", txn.ID, "status", resp.Status, "message", resp.ErrorMessage)
		after, err := s.fail(ctx, txn.ID, resp.ErrorMessage, withGatewayID(resp.GatewayTransactionID))
		if err != nil {
			return nil, err
		}
		return s.outcome(ctx, after, failed(apperr.KindGatewayDeclined, resp.ErrorMessage, after)), nil
	}

	ch := ledger.Change{
		To:                   types.TransactionStatusCompleted,
		Reason:               types.TransactionChangeReasonGateway,
		GatewayTransactionID: resp.GatewayTransactionID,
		DocumentID:           resp.DocumentID,
		AuthorizationCode:    resp.AuthorizationCode,
	}
	if authorizeOnly {
		ch.To = types.TransactionStatusAuthorized
		ch.AuthorizedAmount = req.AuthorizeAmount
	}
	after, _, err := s.ledger.Apply(ctx, txn.ID, ch)
	if err != nil {
		return nil, fmt.Errorf("failed to record gateway success for %s: %w", txn.ID, err)
	}
	if !charged(after.Status) {
		// a concurrent notification settled the transaction first
		lg.Warnw("payment_superseded", "transaction_id", after.ID, "status", after.Status)
		return failed(apperr.KindGatewayDeclined, supersededMessage(after), after), nil
	}
	lg.Infow("payment_succeeded", "transaction_id", after.ID, "status", after.Status, "amount", after.Amount.StringFixed(2), "installments", installments)

	result := succeeded(after)
	if in.SaveToken && tok == nil && resp.Token != nil {
		result.Token = s.saveToken(ctx, in, after, resp.Token)
		if result.Token != nil {
			after.TokenID = lo.ToPtr(result.Token.ID)
		}
	}

	// a configured authorize-only flow with auto capture captures right away;
	// an explicit authorize-only request always waits for a capture call
	if authorizeOnly && !in.AuthorizeOnly && s.cfg.Payment.AutoCapture && after.Status == types.TransactionStatusAuthorized {
		captured, err := s.capture(ctx, after)
		if err != nil {
			return nil, err
		}
		captured.Token = result.Token
		return captured, nil
	}
	return result, nil
}

// resolveMethod picks the payment method. A non-nil Result reports a
// caller-facing failure.
func (s *Service) resolveMethod(ctx context.Context, in *Intent) (gateway.PaymentMethod, *models.PaymentToken, *Result, error) {
	pc := s.cfg.Payment
	switch {
	case in.Card != nil:
		c := in.Card
		switch {
		case !pc.DirectCardEntry:
			return gateway.PaymentMethod{}, nil, failed(apperr.KindValidation, "direct card entry is disabled", nil), nil
		case !cardNumberPattern.MatchString(c.Number):
			return gateway.PaymentMethod{}, nil, failed(apperr.KindValidation, "invalid card number", nil), nil
		case c.ExpiryMonth < 1 || c.ExpiryMonth > 12 || c.ExpiryYear < 2000:
			return gateway.PaymentMethod{}, nil, failed(apperr.KindValidation, "invalid card expiry", nil), nil
		case pc.CVVRequired && c.CVV == "":
			return gateway.PaymentMethod{}, nil, failed(apperr.KindValidation, "cvv is required", nil), nil
		case pc.CitizenIDRequired && c.CitizenID == "":
			return gateway.PaymentMethod{}, nil, failed(apperr.KindValidation, "citizen id is required", nil), nil
		}
		if token.ExpiresAt(c.ExpiryMonth, c.ExpiryYear).Before(s.now()) {
			return gateway.PaymentMethod{}, nil, failed(apperr.KindValidation, "card has expired", nil), nil
		}
		return gateway.PaymentMethod{
			CreditCardNumber:          c.Number,
			CreditCardCVV:             c.CVV,
			CreditCardCitizenID:       c.CitizenID,
			CreditCardExpirationMonth: c.ExpiryMonth,
			CreditCardExpirationYear:  c.ExpiryYear,
		}, nil, nil, nil
	case in.SingleUseToken != "":
		return gateway.PaymentMethod{SingleUseToken: in.SingleUseToken}, nil, nil, nil
	}

	tok, err := s.tokens.Resolve(ctx, in.PayerID, in.TokenID)
	switch {
	case errors.Is(err, token.ErrTokenNotFound):
		return gateway.PaymentMethod{}, nil, failed(apperr.KindTokenNotFound, "payment token not found", nil), nil
	case errors.Is(err, token.ErrTokenExpired):
		return gateway.PaymentMethod{}, nil, failed(apperr.KindTokenExpired, "payment token has expired", nil), nil
	case err != nil:
		return gateway.PaymentMethod{}, nil, nil, err
	}
	return gateway.PaymentMethod{
		CreditCardToken:           tok.GatewayToken,
		CreditCardCitizenID:       tok.CitizenID,
		CreditCardExpirationMonth: tok.ExpiryMonth,
		CreditCardExpirationYear:  tok.ExpiryYear,
	}, tok, nil, nil
}

// saveToken stores the card returned by the gateway. Failures are logged;
// the payment already succeeded.
func (s *Service) saveToken(ctx context.Context, in *Intent, txn *models.Transaction, ct *gateway.CardToken) *models.PaymentToken {
	lg := logctx.FromCtx(ctx, s.log)
	card := token.Card{Brand: ct.Brand, LastFour: ct.LastFour, ExpiryMonth: ct.ExpiryMonth, ExpiryYear: ct.ExpiryYear, CitizenID: ct.CitizenID}
	if in.Card != nil {
		card.Brand = lo.CoalesceOrEmpty(card.Brand, in.Card.Brand)
		card.CitizenID = lo.CoalesceOrEmpty(card.CitizenID, in.Card.CitizenID)
		if card.ExpiryMonth == 0 {
			card.ExpiryMonth, card.ExpiryYear = in.Card.ExpiryMonth, in.Card.ExpiryYear
		}
		if card.LastFour == "" && len(in.Card.Number) >= 4 {
			card.LastFour = in.Card.Number[len(in.Card.Number)-4:]
		}
	}
	tok, err := s.tokens.Create(ctx, &token.CreateRequest{
		PayerID:      in.PayerID,
		Card:         card,
		GatewayToken: ct.Token,
		MakeDefault:  in.MakeDefault,
	})
	if err != nil {
		lg.Errorw("payment_token_save_failed", "transaction_id", txn.ID, "err", err)
		return nil
	}
	if err := s.ledger.AttachToken(ctx, txn.ID, tok.ID); err != nil {
		lg.Errorw("payment_token_attach_failed", "transaction_id", txn.ID, "token_id", tok.ID, "err", err)
	}
	return tok
}

type failOption func(*ledger.Change)

func withGatewayID(id string) failOption {
	return func(c *ledger.Change) { c.GatewayTransactionID = id }
}

func (s *Service) fail(ctx context.Context, id, msg string, opts ...failOption) (*models.Transaction, error) {
	ch := ledger.Change{To: types.TransactionStatusFailed, Reason: types.TransactionChangeReasonGateway, ErrorMessage: msg}
	for _, opt := range opts {
		opt(&ch)
	}
	after, _, err := s.ledger.Apply(ctx, id, ch)
	if errors.Is(err, ledger.ErrInvalidTransition) && after != nil {
		// settled by a notification in the meantime; callers report what
		// the ledger holds
		return after, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record payment failure for %s: %w", id, err)
	}
	return after, nil
}

// outcome reports the state the ledger actually holds after a failure was
// recorded. A notification that confirmed the charge first wins.
func (s *Service) outcome(ctx context.Context, after *models.Transaction, res *Result) *Result {
	if charged(after.Status) {
		logctx.FromCtx(ctx, s.log).Warnw("payment_confirmed_by_notification", "transaction_id", after.ID, "status", after.Status, "reported", res.Message)
		return succeeded(after)
	}
	return res
}

// charged reports whether status means the gateway took the money.
func charged(status types.TransactionStatus) bool {
	switch status {
	case types.TransactionStatusAuthorized, types.TransactionStatusCompleted,
		types.TransactionStatusPartiallyRefunded, types.TransactionStatusRefunded:
		return true
	}
	return false
}

func supersededMessage(t *models.Transaction) string {
	if t.ErrorMessage != nil && *t.ErrorMessage != "" {
		return *t.ErrorMessage
	}
	return fmt.Sprintf("transaction is %s", t.Status)
}

// Capture settles an authorized hold. Capturing an already completed
// transaction is a successful no-op.
func (s *Service) Capture(ctx context.Context, id, payerID string) (*Result, error) {
	txn, res, err := s.load(ctx, id, payerID)
	if err != nil || res != nil {
		return res, err
	}
	switch txn.Status {
	case types.TransactionStatusAuthorized:
		return s.capture(ctx, txn)
	case types.TransactionStatusCompleted:
		return succeeded(txn), nil
	}
	return failed(apperr.KindValidation, fmt.Sprintf("cannot capture a %s transaction", txn.Status), txn), nil
}

func (s *Service) capture(ctx context.Context, txn *models.Transaction) (*Result, error) {
	if txn.GatewayTransactionID == nil {
		return failed(apperr.KindValidation, "transaction has no gateway reference", txn), nil
	}
	resp, err := s.gateway.Capture(ctx, &gateway.CaptureRequest{
		GatewayTransactionID: *txn.GatewayTransactionID,
		Amount:               txn.Amount,
		MerchantNumber:       txn.MerchantNumber,
	})
	if err != nil {
		// the hold may or may not have been captured; leave it authorized
		logctx.FromCtx(ctx, s.log).Errorw("capture_gateway_unreachable", "transaction_id", txn.ID, "err", err)
		return failed(apperr.KindGatewayUnreachable, unreachableMessage, txn), nil
	}
	if !resp.Success {
		logctx.FromCtx(ctx, s.log).Infow("capture_declined", "transaction_id", txn.ID, "message", resp.ErrorMessage)
		after, _, err := s.ledger.Apply(ctx, txn.ID, ledger.Change{
			To:           types.TransactionStatusFailed,
			Reason:       types.TransactionChangeReasonCapture,
			ErrorMessage: resp.ErrorMessage,
		})
		if err != nil && !(errors.Is(err, ledger.ErrInvalidTransition) && after != nil) {
			return nil, fmt.Errorf("failed to record capture decline for %s: %w", txn.ID, err)
		}
		if after.Status == types.TransactionStatusCompleted {
			return succeeded(after), nil
		}
		return failed(apperr.KindGatewayDeclined, resp.ErrorMessage, after), nil
	}
	after, _, err := s.ledger.Apply(ctx, txn.ID, ledger.Change{
		To:                types.TransactionStatusCompleted,
		Reason:            types.TransactionChangeReasonCapture,
		DocumentID:        resp.DocumentID,
		AuthorizationCode: resp.AuthorizationCode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record capture for %s: %w", txn.ID, err)
	}
	if after.Status != types.TransactionStatusCompleted {
		return failed(apperr.KindValidation, fmt.Sprintf("transaction is %s", after.Status), after), nil
	}
	return succeeded(after), nil
}

// Void releases an authorized hold.
func (s *Service) Void(ctx context.Context, id, payerID string) (*Result, error) {
	txn, res, err := s.load(ctx, id, payerID)
	if err != nil || res != nil {
		return res, err
	}
	switch txn.Status {
	case types.TransactionStatusCancelled:
		return succeeded(txn), nil
	case types.TransactionStatusAuthorized:
	default:
		return failed(apperr.KindValidation, fmt.Sprintf("cannot void a %s transaction", txn.Status), txn), nil
	}
	if txn.GatewayTransactionID == nil {
		return failed(apperr.KindValidation, "transaction has no gateway reference", txn), nil
	}

	resp, err := s.gateway.Void(ctx, &gateway.VoidRequest{GatewayTransactionID: *txn.GatewayTransactionID, MerchantNumber: txn.MerchantNumber})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("void_gateway_unreachable", "transaction_id", txn.ID, "err", err)
		return failed(apperr.KindGatewayUnreachable, unreachableMessage, txn), nil
	}
	if !resp.Success {
		return failed(apperr.KindGatewayDeclined, resp.ErrorMessage, txn), nil
	}
	after, _, err := s.ledger.Apply(ctx, txn.ID, ledger.Change{To: types.TransactionStatusCancelled, Reason: types.TransactionChangeReasonVoid})
	if err != nil {
		return nil, fmt.Errorf("failed to record void for %s: %w", txn.ID, err)
	}
	if after.Status != types.TransactionStatusCancelled {
		return failed(apperr.KindValidation, fmt.Sprintf("transaction is %s", after.Status), after), nil
	}
	return succeeded(after), nil
}

// Refund reserves the amount against the payment's remaining balance,
// records a refund transaction, calls the gateway and applies the refund
// to the original payment. The reservation is taken under the ledger row
// lock before the gateway call, so concurrent refunds never exceed the
// payment. The result carries the updated original.
func (s *Service) Refund(ctx context.Context, req *RefundRequest) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil refund request", ErrInvalidIntent)
	}
	parent, res, err := s.load(ctx, req.TransactionID, req.PayerID)
	if err != nil || res != nil {
		return res, err
	}
	if parent.GatewayTransactionID == nil {
		return failed(apperr.KindValidation, "transaction has no gateway reference", parent), nil
	}
	amount := req.Amount
	if amount.IsZero() {
		amount = parent.RemainingRefundable()
	}
	held, err := s.ledger.ReserveRefund(ctx, parent.ID, amount)
	switch {
	case errors.Is(err, ledger.ErrRefundExceedsBalance),
		errors.Is(err, ledger.ErrInvalidRefundAmount),
		errors.Is(err, ledger.ErrInvalidTransition):
		return failed(apperr.KindValidation, err.Error(), lo.Ternary(held != nil, held, parent)), nil
	case err != nil:
		return nil, fmt.Errorf("failed to reserve refund on %s: %w", parent.ID, err)
	}

	lg := logctx.FromCtx(ctx, s.log).With("transaction_id", parent.ID)
	release := func() *models.Transaction {
		after, err := s.ledger.ReleaseRefund(ctx, parent.ID, amount)
		if err != nil {
			lg.Errorw("refund_release_failed", "amount", amount.StringFixed(2), "err", err)
			return held
		}
		return after
	}

	child := &models.Transaction{
		PayerID:        parent.PayerID,
		OrderRef:       tool.GenerateOrderRef("rfd"),
		ParentID:       lo.ToPtr(parent.ID),
		Kind:           types.TransactionKindRefund,
		Amount:         amount,
		Currency:       parent.Currency,
		MerchantNumber: parent.MerchantNumber,
		Description:    req.Reason,
	}
	if err := s.ledger.Create(ctx, child); err != nil {
		release()
		return nil, err
	}
	lg = lg.With("refund_id", child.ID)

	resp, err := s.gateway.Refund(ctx, &gateway.RefundRequest{
		GatewayTransactionID: *parent.GatewayTransactionID,
		OrderRef:             child.OrderRef,
		Amount:               amount,
		Currency:             parent.Currency,
		MerchantNumber:       parent.MerchantNumber,
		Reason:               req.Reason,
	})
	if err != nil {
		lg.Errorw("refund_gateway_unreachable", "err", err)
		after := release()
		if _, err := s.fail(ctx, child.ID, unreachableMessage); err != nil {
			return nil, err
		}
		return failed(apperr.KindGatewayUnreachable, unreachableMessage, after), nil
	}
	if !resp.Success {
		lg.Infow("refund_declined", "message", resp.ErrorMessage)
		after := release()
		if _, err := s.fail(ctx, child.ID, resp.ErrorMessage, withGatewayID(resp.GatewayTransactionID)); err != nil {
			return nil, err
		}
		return failed(apperr.KindGatewayDeclined, resp.ErrorMessage, after), nil
	}

	after, _, err := s.ledger.Apply(ctx, parent.ID, ledger.Change{
		To:           types.TransactionStatusPartiallyRefunded,
		Reason:       types.TransactionChangeReasonRefund,
		RefundAmount: amount,
		Reserved:     amount,
		RefundRef:    child.OrderRef,
		Extra:        map[string]any{"refund_id": child.ID},
	})
	if err != nil {
		// the gateway already moved the money; the reservation stays until
		// the refund notification or an operator settles it
		lg.Errorw("refund_ledger_mismatch", "amount", amount.StringFixed(2), "err", err)
		return nil, fmt.Errorf("refund %s succeeded at the gateway but could not be applied: %w", child.ID, err)
	}
	if _, _, err := s.ledger.Apply(ctx, child.ID, ledger.Change{
		To:                   types.TransactionStatusCompleted,
		Reason:               types.TransactionChangeReasonRefund,
		GatewayTransactionID: resp.GatewayTransactionID,
		DocumentID:           resp.DocumentID,
	}); err != nil {
		lg.Errorw("refund_complete_failed", "err", err)
	}
	lg.Infow("refund_succeeded", "amount", amount.StringFixed(2), "status", after.Status)
	return succeeded(after), nil
}

// RefundDetails reports a payment's refund balance and its refund history.
func (s *Service) RefundDetails(ctx context.Context, id, payerID string) (*RefundDetails, error) {
	txn, err := s.ledger.GetForPayer(ctx, id, payerID)
	if err != nil {
		return nil, ledger.AsAppError(err)
	}
	refunds, err := s.ledger.ListRefunds(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	remaining := txn.RemainingRefundable()
	return &RefundDetails{
		TransactionID:       txn.ID,
		Status:              txn.Status,
		Amount:              txn.Amount,
		RefundedAmount:      txn.RefundedAmount,
		PendingRefundAmount: txn.PendingRefundAmount,
		RemainingRefundable: remaining,
		CanRefund:           txn.Status.IsRefundable() && remaining.IsPositive() && txn.GatewayTransactionID != nil,
		Refunds:             refunds,
	}, nil
}

func (s *Service) load(ctx context.Context, id, payerID string) (*models.Transaction, *Result, error) {
	txn, err := s.ledger.GetForPayer(ctx, id, payerID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, failed(apperr.KindNotFound, "transaction not found", nil), nil
	}
	if err != nil {
		return nil, nil, err
	}
	return txn, nil, nil
}

// InstallmentCeiling is the largest installment count allowed for amount:
// the configured maximum, lowered to amount / min_amount_per_installment,
// and 1 below min_amount_for_installments.
func (s *Service) InstallmentCeiling(amount decimal.Decimal) int {
	pc := s.cfg.Payment
	ceiling := max(pc.MaxInstallments, 1)
	if minFor := decimal.NewFromFloat(pc.MinAmountForInstallments); minFor.IsPositive() && amount.LessThan(minFor) {
		return 1
	}
	if minPer := decimal.NewFromFloat(pc.MinAmountPerInstallment); minPer.IsPositive() {
		n := amount.Div(minPer).Floor().IntPart()
		if n < int64(ceiling) {
			ceiling = int(n)
		}
	}
	return max(ceiling, 1)
}

// AuthorizeAmount adds the larger of the percentage markup and the minimum
// absolute markup.
func (s *Service) AuthorizeAmount(amount decimal.Decimal) decimal.Decimal {
	pc := s.cfg.Payment
	added := amount.Mul(decimal.NewFromFloat(pc.AuthorizeAddedPercent)).Div(decimal.NewFromInt(100))
	if minAdd := decimal.NewFromFloat(pc.AuthorizeMinimumAddition); added.LessThan(minAdd) {
		added = minAdd
	}
	return amount.Add(added).Round(2)
}

// MerchantFor routes subscription charges to the subscription merchant
// profile when one is configured.
func (s *Service) MerchantFor(kind types.TransactionKind) string {
	if kind == types.TransactionKindSubscription && s.cfg.Payment.SubscriptionMerchantNumber != "" {
		return s.cfg.Payment.SubscriptionMerchantNumber
	}
	return s.cfg.Payment.MerchantNumber
}

func orderPrefix(kind types.TransactionKind) string {
	switch kind {
	case types.TransactionKindSubscription:
		return "sub"
	case types.TransactionKindRefund:
		return "rfd"
	}
	return "pay"
}

var Module = fx.Options(
	fx.Provide(
		New,
		func(api *gateway.API) Gateway { return api },
		fx.Annotate(NewDocumentHook, fx.As(new(Hook)), fx.ResultTags(`group:"payment_hooks"`)),
	),
)
