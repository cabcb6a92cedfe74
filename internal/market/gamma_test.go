package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeai-booster/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(zerolog.Nop(), WithBaseURL(server.URL))
}

func TestClient_ListMarkets_Envelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "crypto", r.URL.Query().Get("category"))

		w.Write([]byte(`{"data": [
			{"slug": "small", "question": "Small?", "volume": 500,
			 "outcomes": [{"title": "Yes", "price": 0.5}, {"title": "No", "price": 0.5}]},
			{"slug": "btc-100k", "question": "Will BTC hit 100k?", "volume": 250000, "endDate": "2025-12-31",
			 "outcomes": [{"title": "Yes", "price": 0.3}, {"title": "No", "price": 0.6}]},
			{"slug": "eth-5k", "question": "Will ETH hit 5k?", "volume": "90000.5",
			 "outcomes": [{"title": "TRUE", "price": "0.2"}, {"title": "false", "price": "0.8"}]}
		]}`))
	})

	markets, err := client.ListMarkets(context.Background(), "crypto", 10)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, "btc-100k", markets[0].Slug)
	assert.Equal(t, 0.3333, markets[0].YesProbability)
	assert.Equal(t, 0.6667, markets[0].NoProbability)
	assert.Equal(t, 250000.0, markets[0].Volume)
	require.NotNil(t, markets[0].EndDate)
	assert.Equal(t, "2025-12-31", *markets[0].EndDate)

	assert.Equal(t, "eth-5k", markets[1].Slug)
	assert.Equal(t, 0.2, markets[1].YesProbability)
	assert.Equal(t, 90000.5, markets[1].Volume)
}

func TestClient_ListMarkets_BareArrayStringifiedOutcomes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"slug": "sol-500", "question": "Solana 500?", "volume": "5000",
			 "outcomes": "[\"Yes\", \"No\"]", "outcomePrices": "[\"0.25\", \"0.75\"]"},
			{"slug": "no-prices", "question": "?", "volume": 2000}
		]`))
	})

	markets, err := client.ListMarkets(context.Background(), "", 50)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, "sol-500", markets[0].Slug)
	assert.Equal(t, 0.25, markets[0].YesProbability)
	assert.Equal(t, 0.75, markets[0].NoProbability)

	// No outcome prices at all falls back to an even split.
	assert.Equal(t, "no-prices", markets[1].Slug)
	assert.Equal(t, 0.5, markets[1].YesProbability)
	assert.Equal(t, 0.5, markets[1].NoProbability)
}

func TestClient_ListMarkets_SortedAndTruncated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"slug": "a", "volume": 2000},
			{"slug": "b", "volume": 9000},
			{"slug": "c", "volume": 5000}
		]`))
	})

	markets, err := client.ListMarkets(context.Background(), "crypto", 2)
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, "b", markets[0].Slug)
	assert.Equal(t, "c", markets[1].Slug)
}

func TestClient_ListMarkets_UpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.ListMarkets(context.Background(), "crypto", 10)
	require.Error(t, err)
	assert.True(t, domain.IsTransport(err))
}

func TestClient_ListMarkets_MalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [`))
	})

	_, err := client.ListMarkets(context.Background(), "crypto", 10)
	assert.True(t, domain.IsTransport(err))
}

func TestClient_FindBySlug(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Write([]byte(`[{"slug": "btc-100k", "question": "BTC?", "volume": 5000,
			"outcomes": [{"title": "Yes", "price": 0.4}, {"title": "No", "price": 0.6}]}]`))
	})

	m, err := client.FindBySlug(context.Background(), "btc-100k")
	require.NoError(t, err)
	assert.Equal(t, "BTC?", m.Question)
	assert.Equal(t, 0.4, m.YesProbability)

	_, err = client.FindBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
