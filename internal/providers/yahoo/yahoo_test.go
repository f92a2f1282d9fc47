package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marketintel/analytics/internal/provider"
	"github.com/stretchr/testify/require"
)

func TestAdapter_GetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":105.0,"chartPreviousClose":100.0,"currency":"USD"}}],"error":null}}`))
	}))
	defer srv.Close()

	a := New(srv.Client(), srv.URL, provider.NewRegistry())
	qp := a.NewQuoteProvider()
	res := qp.GetQuote(context.Background(), "AAPL")

	require.True(t, res.OK)
	require.Equal(t, 105.0, res.Data.Price)
	require.NotNil(t, res.Data.ChangePct)
	require.InDelta(t, 5.0, *res.Data.ChangePct, 1e-9)
}

func TestAdapter_GetQuote_MissingPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":0}}]}}`))
	}))
	defer srv.Close()

	a := New(srv.Client(), srv.URL, provider.NewRegistry())
	qp := a.NewQuoteProvider()
	res := qp.GetQuote(context.Background(), "DXY")

	require.False(t, res.OK)
	require.Equal(t, provider.ErrMissingPrice, res.ErrorCode)
}

func TestAdapter_ResolveSymbol(t *testing.T) {
	a := New(http.DefaultClient, "", provider.NewRegistry())
	require.Equal(t, "CL=F", a.resolve("OIL"))
	require.Equal(t, "AAPL", a.resolve("AAPL"))
}
