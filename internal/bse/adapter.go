package bse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/sme"
	"github.com/Checker-Finance/sme-deals/internal/source"
	"github.com/Checker-Finance/sme-deals/pkg/cache"
	"github.com/Checker-Finance/sme-deals/pkg/model"
)

const membersCacheKey = "bse_sme_members"

// Adapter is the BSE block/bulk deal source. The upstream endpoint is
// day-wise, so a lookback window is fetched as one request per day per deal
// type.
type Adapter struct {
	logger  *zap.Logger
	client  *Client
	mapper  *Mapper
	members *cache.Cache[sme.Members]
}

// NewAdapter constructs the BSE adapter. The SME scrip list is cached with a
// TTL so daemon runs don't refetch it every cycle.
func NewAdapter(logger *zap.Logger, client *Client, membersTTL time.Duration) *Adapter {
	return &Adapter{
		logger:  logger,
		client:  client,
		mapper:  NewMapper(logger),
		members: cache.New[sme.Members](membersTTL),
	}
}

func (a *Adapter) Exchange() model.Exchange { return model.ExchangeBSE }

// Fetch iterates the window day by day for both deal types. Individual
// day/type failures are tolerated as long as at least one call succeeds;
// every call failing surfaces the first error.
func (a *Adapter) Fetch(ctx context.Context, from, to time.Time) ([]model.DealRecord, error) {
	var records []model.DealRecord
	var firstErr error
	attempts, failures := 0, 0

	for day := dateOnly(from); !day.After(dateOnly(to)); day = day.AddDate(0, 0, 1) {
		for _, dealType := range []model.DealType{model.DealBlock, model.DealBulk} {
			attempts++
			env, err := a.client.FetchDeals(ctx, dealType, day)
			if err != nil {
				failures++
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: bse %s deals on %s: %v",
						source.ErrUnavailable, dealType, day.Format("2006-01-02"), err)
				}
				a.logger.Warn("bse.fetch_failed",
					zap.String("deal_type", string(dealType)),
					zap.String("day", day.Format("2006-01-02")),
					zap.Error(err))
				continue
			}

			mapped, err := a.mapper.MapDeals(env, dealType, day)
			if err != nil {
				failures++
				if firstErr == nil {
					firstErr = err
				}
				a.logger.Warn("bse.map_failed",
					zap.String("deal_type", string(dealType)),
					zap.String("day", day.Format("2006-01-02")),
					zap.Error(err))
				continue
			}
			records = append(records, mapped...)
		}
	}

	if attempts > 0 && failures == attempts {
		return nil, firstErr
	}
	if failures > 0 {
		a.logger.Warn("bse.partial_fetch",
			zap.Int("failed", failures),
			zap.Int("attempted", attempts))
	}

	a.logger.Info("bse.fetched",
		zap.Int("records", len(records)),
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", to.Format("2006-01-02")))
	return records, nil
}

// SMEMembers returns the SME segment scrip list, cached between runs. Any
// failure degrades to an empty set (shape heuristic takes over).
func (a *Adapter) SMEMembers(ctx context.Context) sme.Members {
	if cached, ok := a.members.Get(membersCacheKey); ok {
		return cached
	}

	env, err := a.client.FetchSMEScrips(ctx)
	if err != nil {
		a.logger.Warn("bse.scrip_list_unavailable", zap.Error(err))
		return nil
	}
	symbols, err := a.mapper.ParseScripList(env)
	if err != nil {
		a.logger.Warn("bse.scrip_list_unparseable", zap.Error(err))
		return nil
	}

	members := sme.NewMembers(symbols)
	a.members.Put(membersCacheKey, members)
	a.logger.Info("bse.sme_members_loaded", zap.Int("count", len(members)))
	return members
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var _ source.Source = (*Adapter)(nil)
