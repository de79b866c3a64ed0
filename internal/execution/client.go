package execution

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"
)

// Client submits and manages orders on the Polymarket CLOB.
type Client struct {
	baseURL       string
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string // EOA address (signer)
	proxyAddress  string // Proxy address (maker/funder)
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	httpClient    *http.Client
	logger        *zap.Logger
}

// ClientConfig holds configuration for the exchange client.
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	Secret        string
	Passphrase    string
	PrivateKey    string
	Address       string
	ProxyAddress  string
	SignatureType int
	Logger        *zap.Logger
}

// NewClient creates a new exchange client. A bad private key is a startup
// error: live trading must not begin without a working signer.
func NewClient(cfg *ClientConfig) (*Client, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	// Derive EOA address if not provided
	address := cfg.Address
	if address == "" {
		publicKey := privateKey.Public()
		publicKeyECDSA, _ := publicKey.(*ecdsa.PublicKey)
		address = crypto.PubkeyToAddress(*publicKeyECDSA).Hex()
	}

	chainID := big.NewInt(137) // Polygon mainnet
	orderBuilder := builder.NewExchangeOrderBuilderImpl(chainID, nil)

	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  orderBuilder,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: cfg.Logger,
	}, nil
}

// signedOrderJSON is the wire format for a signed order.
type signedOrderJSON struct {
	Salt          int64  `json:"salt"` // Integer, not string
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"` // Integer, not string
	Signature     string `json:"signature"`
}

// OrderStatus is the current state of one order.
type OrderStatus struct {
	OrderID    string
	Status     string
	Price      float64
	Size       float64
	SizeFilled float64
}

// Terminal CLOB order statuses.
const (
	StatusMatched   = "MATCHED"
	StatusCancelled = "CANCELED"
)

// Cancelled reports whether the order was cancelled exchange-side.
func (s *OrderStatus) Cancelled() bool {
	return strings.EqualFold(s.Status, StatusCancelled)
}

// PlaceLimitBuy places a GTC limit buy for size shares of tokenID at the
// given price. Returns the exchange order id.
func (c *Client) PlaceLimitBuy(ctx context.Context, tokenID string, price, size float64) (string, error) {
	makerAddress := c.address
	signerAddress := c.address
	if c.proxyAddress != "" {
		makerAddress = c.proxyAddress
	}

	// Buying size shares costs price*size USDC.
	orderData := &model.OrderData{
		Maker:         makerAddress,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenId:       tokenID,
		MakerAmount:   usdToRawAmount(price * size),
		TakerAmount:   usdToRawAmount(size),
		Side:          model.BUY,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        signerAddress,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}

	signedOrder, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, model.CTFExchange)
	if err != nil {
		return "", fmt.Errorf("build order: %w", err)
	}

	sideStr := "BUY"
	if signedOrder.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	jsonOrder := signedOrderJSON{
		Salt:          signedOrder.Salt.Int64(),
		Maker:         signedOrder.Maker.Hex(),
		Signer:        signedOrder.Signer.Hex(),
		Taker:         signedOrder.Taker.Hex(),
		TokenID:       signedOrder.TokenId.String(),
		MakerAmount:   signedOrder.MakerAmount.String(),
		TakerAmount:   signedOrder.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    signedOrder.Expiration.String(),
		Nonce:         signedOrder.Nonce.String(),
		FeeRateBps:    signedOrder.FeeRateBps.String(),
		SignatureType: int(signedOrder.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(signedOrder.Signature),
	}

	// Note: "owner" is the API key, not the maker address.
	orderRequest := map[string]interface{}{
		"order":     jsonOrder,
		"owner":     c.apiKey,
		"orderType": "GTC",
	}

	body, status, err := c.signedRequest(ctx, http.MethodPost, "/order", orderRequest)
	if err != nil {
		return "", err
	}

	if status != http.StatusOK && status != http.StatusCreated {
		OrderErrorsTotal.WithLabelValues("place").Inc()
		return "", fmt.Errorf("place order: API error (status %d): %s", status, string(body))
	}

	var placed struct {
		OrderID string `json:"orderID"`
		Status  string `json:"status"`
		Success bool   `json:"success"`
	}
	if err := json.Unmarshal(body, &placed); err != nil {
		return "", fmt.Errorf("parse place response: %w", err)
	}

	if placed.OrderID == "" {
		OrderErrorsTotal.WithLabelValues("place").Inc()
		return "", fmt.Errorf("place order: empty order id in response: %s", string(body))
	}

	OrdersPlacedTotal.Inc()

	c.logger.Info("order-placed",
		zap.String("order-id", placed.OrderID),
		zap.String("token-id", tokenID),
		zap.Float64("price", price),
		zap.Float64("size", size))

	return placed.OrderID, nil
}

// GetOrderStatus queries the current fill state of an order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	body, status, err := c.signedRequest(ctx, http.MethodGet, "/data/order/"+orderID, nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("get order %s: API error (status %d): %s", orderID, status, string(body))
	}

	// CLOB returns numeric fields as strings.
	var raw struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		Price        string `json:"price"`
		OriginalSize string `json:"original_size"`
		SizeMatched  string `json:"size_matched"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse order response: %w", err)
	}

	orderStatus := &OrderStatus{
		OrderID: raw.ID,
		Status:  raw.Status,
	}

	if orderStatus.Price, err = parseOptionalFloat(raw.Price); err != nil {
		return nil, fmt.Errorf("parse order price %q: %w", raw.Price, err)
	}
	if orderStatus.Size, err = parseOptionalFloat(raw.OriginalSize); err != nil {
		return nil, fmt.Errorf("parse order size %q: %w", raw.OriginalSize, err)
	}
	if orderStatus.SizeFilled, err = parseOptionalFloat(raw.SizeMatched); err != nil {
		return nil, fmt.Errorf("parse size matched %q: %w", raw.SizeMatched, err)
	}

	return orderStatus, nil
}

// CancelOrder cancels an open order. Cancellation of an order that already
// transitioned to matched or cancelled is expected during a fill race and is
// not an error.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body, status, err := c.signedRequest(ctx, http.MethodDelete, "/order", map[string]string{
		"orderID": orderID,
	})
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		OrderErrorsTotal.WithLabelValues("cancel").Inc()
		return fmt.Errorf("cancel order %s: API error (status %d): %s", orderID, status, string(body))
	}

	var result struct {
		Canceled    []string          `json:"canceled"`
		NotCanceled map[string]string `json:"not_canceled"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse cancel response: %w", err)
	}

	if reason, ok := result.NotCanceled[orderID]; ok {
		// The order was already matched or cancelled by the time the
		// request landed. That is the normal end of a lost race leg.
		c.logger.Debug("cancel-noop",
			zap.String("order-id", orderID),
			zap.String("reason", reason))
		return nil
	}

	OrdersCancelledTotal.Inc()

	c.logger.Info("order-cancelled", zap.String("order-id", orderID))

	return nil
}

// OpenOrder is one resting order as returned by the data API.
type OpenOrder struct {
	OrderID      string
	TokenID      string
	Side         string
	Price        float64
	OriginalSize float64
	SizeMatched  float64
}

// GetOpenOrders lists every resting order for the authenticated account.
func (c *Client) GetOpenOrders(ctx context.Context) ([]OpenOrder, error) {
	body, status, err := c.signedRequest(ctx, http.MethodGet, "/data/orders", nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("get open orders: API error (status %d): %s", status, string(body))
	}

	var raw []struct {
		ID           string `json:"id"`
		AssetID      string `json:"asset_id"`
		Side         string `json:"side"`
		Price        string `json:"price"`
		OriginalSize string `json:"original_size"`
		SizeMatched  string `json:"size_matched"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse open orders response: %w", err)
	}

	orders := make([]OpenOrder, 0, len(raw))
	for _, entry := range raw {
		order := OpenOrder{
			OrderID: entry.ID,
			TokenID: entry.AssetID,
			Side:    entry.Side,
		}
		if order.Price, err = parseOptionalFloat(entry.Price); err != nil {
			return nil, fmt.Errorf("parse open order price %q: %w", entry.Price, err)
		}
		if order.OriginalSize, err = parseOptionalFloat(entry.OriginalSize); err != nil {
			return nil, fmt.Errorf("parse open order size %q: %w", entry.OriginalSize, err)
		}
		if order.SizeMatched, err = parseOptionalFloat(entry.SizeMatched); err != nil {
			return nil, fmt.Errorf("parse open order size matched %q: %w", entry.SizeMatched, err)
		}
		orders = append(orders, order)
	}

	return orders, nil
}

// CancelResult is the outcome of a bulk cancellation.
type CancelResult struct {
	Canceled    []string
	NotCanceled map[string]string
}

// CancelAllOrders cancels every resting order in a single request.
func (c *Client) CancelAllOrders(ctx context.Context) (*CancelResult, error) {
	body, status, err := c.signedRequest(ctx, http.MethodDelete, "/cancel-all", nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		OrderErrorsTotal.WithLabelValues("cancel-all").Inc()
		return nil, fmt.Errorf("cancel all orders: API error (status %d): %s", status, string(body))
	}

	var result struct {
		Canceled    []string          `json:"canceled"`
		NotCanceled map[string]string `json:"not_canceled"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse cancel-all response: %w", err)
	}

	OrdersCancelledTotal.Add(float64(len(result.Canceled)))

	c.logger.Info("orders-cancelled-all",
		zap.Int("cancelled", len(result.Canceled)),
		zap.Int("not-cancelled", len(result.NotCanceled)))

	return &CancelResult{
		Canceled:    result.Canceled,
		NotCanceled: result.NotCanceled,
	}, nil
}

// signedRequest performs an L2-authenticated request against the CLOB API.
func (c *Client) signedRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	var reqBody []byte
	var err error
	if payload != nil {
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signaturePayload := timestamp + method + path + string(reqBody)

	// The API secret is URL-safe base64, as is the signature.
	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return nil, 0, fmt.Errorf("decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(signaturePayload))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.address) // EOA address from private key

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

func parseOptionalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func usdToRawAmount(usd float64) string {
	rawAmount := int64(usd * 1000000)
	return fmt.Sprintf("%d", rawAmount)
}
