package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marketintel/analytics/internal/provider"
	"github.com/stretchr/testify/require"
)

func TestAdapter_Snapshot_DeltasAccumulateAcrossCalls(t *testing.T) {
	btcDom := 52.0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/global"):
			fmt.Fprintf(w, `{"data":{"total_market_cap":{"usd":2000000000000},"total_volume":{"usd":100000000000},"market_cap_percentage":{"btc":%f,"eth":18,"usdt":5,"usdc":2}}}`, btcDom)
		default:
			w.Write([]byte(`{"bitcoin":{"usd":60000,"usd_24h_change":1.5},"ethereum":{"usd":3000,"usd_24h_change":2.1}}`))
		}
	}))
	defer srv.Close()

	a := New(srv.Client(), srv.URL, provider.NewRegistry())

	first, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0.0, first.Deltas["btc_d"])

	btcDom = 54.0
	second, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 2.0, second.Deltas["btc_d"], 1e-9)
	require.Equal(t, 60000.0, second.BTCPriceUSD)
}
