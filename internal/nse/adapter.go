package nse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/source"
	"github.com/Checker-Finance/sme-deals/internal/sme"
	"github.com/Checker-Finance/sme-deals/pkg/cache"
	"github.com/Checker-Finance/sme-deals/pkg/model"
)

const membersCacheKey = "nse_sme_members"

// Adapter is the NSE block/bulk deal source.
type Adapter struct {
	logger  *zap.Logger
	client  *Client
	mapper  *Mapper
	members *cache.Cache[sme.Members]
}

// NewAdapter constructs the NSE adapter. The SME membership set is cached
// with a TTL so daemon runs don't refetch the symbol master every cycle.
func NewAdapter(logger *zap.Logger, client *Client, membersTTL time.Duration) *Adapter {
	return &Adapter{
		logger:  logger,
		client:  client,
		mapper:  NewMapper(logger),
		members: cache.New[sme.Members](membersTTL),
	}
}

func (a *Adapter) Exchange() model.Exchange { return model.ExchangeNSE }

// Fetch retrieves block and bulk deals for the window and normalizes them.
// One deal type failing while the other succeeds degrades to the surviving
// type; both failing surfaces the block-deal error.
func (a *Adapter) Fetch(ctx context.Context, from, to time.Time) ([]model.DealRecord, error) {
	var records []model.DealRecord
	var errs []error

	for _, dealType := range []model.DealType{model.DealBlock, model.DealBulk} {
		env, err := a.client.FetchDeals(ctx, dealType, from, to)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: nse %s deals: %v", source.ErrUnavailable, dealType, err))
			a.logger.Warn("nse.fetch_failed",
				zap.String("deal_type", string(dealType)),
				zap.Error(err))
			continue
		}

		mapped, err := a.mapper.MapDeals(env, dealType)
		if err != nil {
			errs = append(errs, err)
			a.logger.Warn("nse.map_failed",
				zap.String("deal_type", string(dealType)),
				zap.Error(err))
			continue
		}
		records = append(records, mapped...)
	}

	if len(errs) == 2 {
		return nil, errs[0]
	}
	if len(errs) == 1 {
		a.logger.Warn("nse.partial_fetch", zap.Error(errs[0]))
	}

	a.logger.Info("nse.fetched",
		zap.Int("records", len(records)),
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", to.Format("2006-01-02")))
	return records, nil
}

// SMEMembers returns the SM/ST/SZ series symbols from the NSE symbol master,
// cached between runs. Any failure degrades to an empty set (shape heuristic
// takes over); membership never blocks a run.
func (a *Adapter) SMEMembers(ctx context.Context) sme.Members {
	if cached, ok := a.members.Get(membersCacheKey); ok {
		return cached
	}

	csvText, err := a.client.FetchSymbolMaster(ctx)
	if err != nil {
		a.logger.Warn("nse.symbol_master_unavailable", zap.Error(err))
		return nil
	}
	symbols, err := a.mapper.ParseSymbolMaster(csvText)
	if err != nil {
		a.logger.Warn("nse.symbol_master_unparseable", zap.Error(err))
		return nil
	}

	members := sme.NewMembers(symbols)
	a.members.Put(membersCacheKey, members)
	a.logger.Info("nse.sme_members_loaded", zap.Int("count", len(members)))
	return members
}

var _ source.Source = (*Adapter)(nil)
