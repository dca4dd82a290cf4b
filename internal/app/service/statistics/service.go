package statistics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/apperr"
	"github.com/fatflowers/paygate/pkg/types"
)

type StatisticType string

const (
	StatisticTypeDailyTransactionCount StatisticType = "daily_transaction_count"
	StatisticTypeDailyFailedCount      StatisticType = "daily_failed_count"
	StatisticTypeDailyGmv              StatisticType = "daily_gmv"
	StatisticTypeDailyRefunded         StatisticType = "daily_refunded"
	StatisticTypeDailyNet              StatisticType = "daily_net"
	// StatisticTypeRenewalSuccessRate is basis points of scheduled charges
	// that succeeded.
	StatisticTypeRenewalSuccessRate StatisticType = "renewal_success_rate"
)

var statisticTypes = []StatisticType{
	StatisticTypeDailyTransactionCount,
	StatisticTypeDailyFailedCount,
	StatisticTypeDailyGmv,
	StatisticTypeDailyRefunded,
	StatisticTypeDailyNet,
	StatisticTypeRenewalSuccessRate,
}

// filterFields are the columns admin statistics may be narrowed by.
var filterFields = lo.Keyify([]string{"currency", "payer_id", "merchant_number"})

var settledStatuses = []types.TransactionStatus{
	types.TransactionStatusCompleted,
	types.TransactionStatusPartiallyRefunded,
	types.TransactionStatusRefunded,
}

// DailySummaryItem aggregates one day in one currency.
type DailySummaryItem struct {
	Date            string          `json:"date"`
	Currency        string          `json:"currency"`
	Completed       int64           `json:"completed"`
	Failed          int64           `json:"failed"`
	Refunds         int64           `json:"refunds"`
	Gross           decimal.Decimal `json:"gross"`
	Refunded        decimal.Decimal `json:"refunded"`
	Net             decimal.Decimal `json:"net"`
	RenewalsSettled int64           `json:"renewals_settled"`
	RenewalsFailed  int64           `json:"renewals_failed"`
}

type StatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type StatisticRequest struct {
	From      time.Time             `json:"from"`
	To        time.Time             `json:"to"`
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*StatisticDataItem  `json:"data_items"`
}

type StatisticResponseDataItem struct {
	Date  string          `json:"date"`
	Label string          `json:"label,omitempty"`
	Value decimal.Decimal `json:"value"`
}

type StatisticResponse struct {
	DataItems map[StatisticType][]StatisticResponseDataItem `json:"data_items"`
}

// Service provides admin reporting over the ledger.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

type row struct {
	Kind     types.TransactionKind
	Status   types.TransactionStatus
	ParentID *string
	Amount   decimal.Decimal
	Currency string
	Created  time.Time `gorm:"column:created_at"`
}

// DailySummary buckets transactions created in [from, to) by UTC day and
// currency. Subscription agreements are not payments and are left out.
func (s *Service) DailySummary(ctx context.Context, from, to time.Time, filters ...*types.CommonFilter) ([]DailySummaryItem, error) {
	if !to.After(from) {
		return nil, apperr.Validation("invalid range: to must be after from")
	}
	for _, f := range filters {
		if err := f.Validate(filterFields); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
		}
	}
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("kind, status, parent_id, amount, currency, created_at").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Where("NOT (kind = ? AND parent_id IS NULL)", types.TransactionKindSubscription)
	if len(filters) > 0 {
		q = q.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(filters)}})
	}
	var rows []row
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	groups := lo.GroupBy(rows, func(r row) lo.Tuple2[string, string] {
		return lo.T2(r.Created.UTC().Format(time.DateOnly), r.Currency)
	})
	out := make([]DailySummaryItem, 0, len(groups))
	for key, rs := range groups {
		item := DailySummaryItem{Date: key.A, Currency: key.B}
		for _, r := range rs {
			switch {
			case r.Kind == types.TransactionKindRefund:
				if r.Status == types.TransactionStatusCompleted {
					item.Refunds++
					item.Refunded = item.Refunded.Add(r.Amount)
				}
			case lo.Contains(settledStatuses, r.Status):
				item.Completed++
				item.Gross = item.Gross.Add(r.Amount)
				if r.Kind == types.TransactionKindSubscription {
					item.RenewalsSettled++
				}
			case r.Status == types.TransactionStatusFailed:
				item.Failed++
				if r.Kind == types.TransactionKindSubscription {
					item.RenewalsFailed++
				}
			}
		}
		item.Net = item.Gross.Sub(item.Refunded)
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Currency < out[j].Currency
	})
	return out, nil
}

// GetDailyStatistic projects the daily summary onto the requested series.
func (s *Service) GetDailyStatistic(ctx context.Context, request *StatisticRequest) (*StatisticResponse, error) {
	if request == nil || len(request.DataItems) == 0 {
		return nil, apperr.Validation("no data items requested")
	}
	for _, di := range request.DataItems {
		if !lo.Contains(statisticTypes, di.ID) {
			return nil, apperr.Validation("invalid data item id: %s", di.ID)
		}
	}
	summary, err := s.DailySummary(ctx, request.From, request.To, request.Filters...)
	if err != nil {
		return nil, err
	}
	results := make(map[StatisticType][]StatisticResponseDataItem, len(request.DataItems))
	for _, di := range request.DataItems {
		results[di.ID] = project(summary, di.ID)
	}
	return &StatisticResponse{DataItems: results}, nil
}

func project(summary []DailySummaryItem, id StatisticType) []StatisticResponseDataItem {
	switch id {
	case StatisticTypeDailyTransactionCount, StatisticTypeDailyFailedCount, StatisticTypeRenewalSuccessRate:
		// counts are currency independent
		byDate := lo.GroupBy(summary, func(it DailySummaryItem) string { return it.Date })
		dates := lo.Keys(byDate)
		sort.Strings(dates)
		out := make([]StatisticResponseDataItem, 0, len(dates))
		for _, d := range dates {
			var completed, failed, settled, renewFailed int64
			for _, it := range byDate[d] {
				completed += it.Completed
				failed += it.Failed
				settled += it.RenewalsSettled
				renewFailed += it.RenewalsFailed
			}
			var v decimal.Decimal
			switch id {
			case StatisticTypeDailyTransactionCount:
				v = decimal.NewFromInt(completed + failed)
			case StatisticTypeDailyFailedCount:
				v = decimal.NewFromInt(failed)
			default:
				if settled+renewFailed == 0 {
					continue
				}
				v = decimal.NewFromInt(settled * 10000).Div(decimal.NewFromInt(settled + renewFailed)).Round(0)
			}
			out = append(out, StatisticResponseDataItem{Date: d, Value: v})
		}
		return out
	}
	return lo.Map(summary, func(it DailySummaryItem, _ int) StatisticResponseDataItem {
		v := it.Gross
		switch id {
		case StatisticTypeDailyRefunded:
			v = it.Refunded
		case StatisticTypeDailyNet:
			v = it.Net
		}
		return StatisticResponseDataItem{Date: it.Date, Label: it.Currency, Value: v}
	})
}

var Module = fx.Options(
	fx.Provide(New),
)
