package execution

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Throwaway key, never funded.
const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&ClientConfig{
		BaseURL:    server.URL,
		APIKey:     "api-key",
		Secret:     base64.URLEncoding.EncodeToString([]byte("test-secret")),
		Passphrase: "passphrase",
		PrivateKey: testPrivateKey,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_BadPrivateKey(t *testing.T) {
	_, err := NewClient(&ClientConfig{
		PrivateKey: "not-hex",
		Logger:     zap.NewNop(),
	})
	assert.Error(t, err)
}

func TestPlaceLimitBuy(t *testing.T) {
	var captured struct {
		Order     json.RawMessage `json:"order"`
		Owner     string          `json:"owner"`
		OrderType string          `json:"orderType"`
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/order", r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("POLY_API_KEY"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		assert.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"orderID": "ord-123",
			"status":  "live",
			"success": true,
		})
	}))

	orderID, err := client.PlaceLimitBuy(context.Background(), "tok-up", 0.62, 10)
	require.NoError(t, err)
	assert.Equal(t, "ord-123", orderID)
	assert.Equal(t, "api-key", captured.Owner)
	assert.Equal(t, "GTC", captured.OrderType)

	var order signedOrderJSON
	require.NoError(t, json.Unmarshal(captured.Order, &order))
	assert.Equal(t, "BUY", order.Side)
	assert.Equal(t, "6200000", order.MakerAmount)  // 0.62 * 10 USDC, 6 decimals
	assert.Equal(t, "10000000", order.TakerAmount) // 10 shares, 6 decimals
	assert.NotEmpty(t, order.Signature)
}

func TestPlaceLimitBuy_APIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"INVALID_ORDER_NOT_ENOUGH_BALANCE"}`))
	}))

	_, err := client.PlaceLimitBuy(context.Background(), "tok-up", 0.62, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestGetOrderStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/data/order/ord-123", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "ord-123",
			"status": "LIVE",
			"price": "0.62",
			"original_size": "10",
			"size_matched": "4.5"
		}`))
	}))

	status, err := client.GetOrderStatus(context.Background(), "ord-123")
	require.NoError(t, err)
	assert.Equal(t, "ord-123", status.OrderID)
	assert.Equal(t, "LIVE", status.Status)
	assert.Equal(t, 0.62, status.Price)
	assert.Equal(t, 10.0, status.Size)
	assert.Equal(t, 4.5, status.SizeFilled)
	assert.False(t, status.Cancelled())
}

func TestGetOrderStatus_MalformedNumbers(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "ord-123", "status": "LIVE", "price": "bogus"}`))
	}))

	_, err := client.GetOrderStatus(context.Background(), "ord-123")
	assert.Error(t, err)
}

func TestCancelOrder(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/order", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ord-123", body["orderID"])

		_, _ = w.Write([]byte(`{"canceled": ["ord-123"], "not_canceled": {}}`))
	}))

	err := client.CancelOrder(context.Background(), "ord-123")
	assert.NoError(t, err)
}

func TestCancelOrder_AlreadyMatchedIsNotAnError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"canceled": [], "not_canceled": {"ord-123": "order already matched"}}`))
	}))

	err := client.CancelOrder(context.Background(), "ord-123")
	assert.NoError(t, err)
}

func TestCancelOrder_ServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.CancelOrder(context.Background(), "ord-123")
	assert.Error(t, err)
}
