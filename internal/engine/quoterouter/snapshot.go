package quoterouter

import (
	"context"

	"github.com/marketintel/analytics/internal/domain"
)

// snapshotField names one YahooSnapshot field the patch map can backfill.
type snapshotField struct {
	symbol string
	get    func(*domain.YahooSnapshot) float64
	set    func(*domain.YahooSnapshot, float64)
	setChg func(*domain.YahooSnapshot, float64)
}

// snapshotPatchMap names which snapshot field each symbol backfills: when a
// Yahoo-sourced snapshot field is zero/missing, the router resolves it
// directly through the quote chain instead.
var snapshotPatchMap = map[string]snapshotField{
	"dxy": {"DXY",
		func(s *domain.YahooSnapshot) float64 { return s.DXY },
		func(s *domain.YahooSnapshot, v float64) { s.DXY = v },
		func(s *domain.YahooSnapshot, v float64) { s.DXYChg24h = v }},
	"oil": {"OIL",
		func(s *domain.YahooSnapshot) float64 { return s.Oil },
		func(s *domain.YahooSnapshot, v float64) { s.Oil = v },
		func(s *domain.YahooSnapshot, v float64) { s.OilChg24h = v }},
	"gold": {"GOLD",
		func(s *domain.YahooSnapshot) float64 { return s.Gold },
		func(s *domain.YahooSnapshot, v float64) { s.Gold = v },
		func(s *domain.YahooSnapshot, v float64) { s.GoldChg24h = v }},
	"silver": {"SILVER",
		func(s *domain.YahooSnapshot) float64 { return s.Silver },
		func(s *domain.YahooSnapshot, v float64) { s.Silver = v },
		func(s *domain.YahooSnapshot, v float64) { s.SilverChg24h = v }},
	"copper": {"COPPER",
		func(s *domain.YahooSnapshot) float64 { return s.Copper },
		func(s *domain.YahooSnapshot, v float64) { s.Copper = v },
		func(s *domain.YahooSnapshot, v float64) { s.CopperChg24h = v }},
	"nasdaq": {"NASDAQ",
		func(s *domain.YahooSnapshot) float64 { return s.Nasdaq },
		func(s *domain.YahooSnapshot, v float64) { s.Nasdaq = v },
		func(s *domain.YahooSnapshot, v float64) { s.NasdaqChg24h = v }},
	"ftse": {"FTSE",
		func(s *domain.YahooSnapshot) float64 { return s.FTSE },
		func(s *domain.YahooSnapshot, v float64) { s.FTSE = v },
		func(s *domain.YahooSnapshot, v float64) { s.FTSEChg24h = v }},
	"eurostoxx": {"EUROSTOXX",
		func(s *domain.YahooSnapshot) float64 { return s.Eurostoxx },
		func(s *domain.YahooSnapshot, v float64) { s.Eurostoxx = v },
		func(s *domain.YahooSnapshot, v float64) { s.EurostoxxChg24h = v }},
	"bist": {"BIST",
		func(s *domain.YahooSnapshot) float64 { return s.BIST },
		func(s *domain.YahooSnapshot, v float64) { s.BIST = v },
		func(s *domain.YahooSnapshot, v float64) { s.BISTChg24h = v }},
	"btc": {"BTC",
		func(s *domain.YahooSnapshot) float64 { return s.BTC },
		func(s *domain.YahooSnapshot, v float64) { s.BTC = v },
		func(s *domain.YahooSnapshot, v float64) { s.BTCChg24h = v }},
	"eth": {"ETH",
		func(s *domain.YahooSnapshot) float64 { return s.ETH },
		func(s *domain.YahooSnapshot, v float64) { s.ETH = v },
		func(s *domain.YahooSnapshot, v float64) { s.ETHChg24h = v }},
}

// PatchSnapshotMeta records which fields were backfilled and from where.
type PatchSnapshotMeta struct {
	UsedFallback bool
	Providers    map[string]string // field -> provider name
}

// PatchSnapshot fills in zero/missing YahooSnapshot fields by resolving the
// corresponding symbol through the router, only ever overwriting a field that was zero to begin with.
func (r *Router) PatchSnapshot(ctx context.Context, snap *domain.YahooSnapshot) PatchSnapshotMeta {
	meta := PatchSnapshotMeta{Providers: map[string]string{}}
	for key, field := range snapshotPatchMap {
		if field.get(snap) != 0 {
			continue
		}
		res := r.GetQuote(ctx, field.symbol)
		if !res.OK {
			continue
		}
		field.set(snap, res.Data.Price)
		if res.Data.ChangePct != nil {
			field.setChg(snap, *res.Data.ChangePct)
		}
		meta.UsedFallback = true
		meta.Providers[key] = res.Data.Source
	}
	return meta
}
