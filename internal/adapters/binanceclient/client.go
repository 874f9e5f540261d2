package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
	"github.com/gosensan/algo-trading/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Client implements the ports.VenueClient interface using the go-binance library.
//
// Strategy identity survives restarts through client order IDs: every
// protective order carries "sl-<magic>-<ticket>" or "tp-<magic>-<ticket>",
// so GetOpenPositions can recover which strategy owns a position even when
// the process that opened it is long gone.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger

	mu        sync.Mutex
	connected bool
	// ticket -> position details needed to close it later
	known map[int64]*trackedPosition
}

type trackedPosition struct {
	symbol string
	side   domain.Side
	volume float64
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance venue adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("API credentials are required: %w", ports.ErrConfigurationError)
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		known:         make(map[int64]*trackedPosition),
	}, nil
}

// handleError translates common Binance API errors into standardized ports
// errors and marks the client disconnected on transport failures.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific Binance error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Signature for this request is not valid
			mappedErr = ports.ErrAuthenticationFailed
		case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2010: // New order rejected
			mappedErr = ports.ErrOrderRejected
		case -2011: // Cancel order rejected
			mappedErr = ports.ErrOrderRejected
		case -2013: // Order does not exist
			mappedErr = ports.ErrOrderNotFound
		case -2014, -2015: // API-key format invalid / invalid key, IP, or permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -2019: // Margin is insufficient
			mappedErr = ports.ErrInsufficientFunds
		case -2022: // ReduceOnly Order is rejected
			mappedErr = ports.ErrOrderRejected
		case -3005: // Insufficient balance
			mappedErr = ports.ErrInsufficientFunds
		case -4003: // Qty not within permissible range
			mappedErr = ports.ErrInvalidRequest
		case -4014: // Price not within permissible range
			mappedErr = ports.ErrInvalidRequest
		case -4044: // Position not found
			mappedErr = ports.ErrPositionNotFound
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "no such host") {
		c.setConnected(false)
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Connect verifies API reachability and synchronizes local time offset with
// the server. Must succeed before the engine starts.
func (c *Client) Connect(ctx context.Context) error {
	op := "Connect"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	if _, err := c.futuresClient.NewSetServerTimeService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.setConnected(true)
	c.logger.Info(ctx, "Connected to venue")
	return nil
}

// Disconnect marks the session closed. The underlying HTTP client is
// stateless, so there is nothing to tear down.
func (c *Client) Disconnect() {
	c.setConnected(false)
	c.logger.Info(context.Background(), "Disconnected from venue")
}

// IsConnected reports whether the last venue interaction succeeded.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// GetAccountInfo retrieves the current account snapshot.
func (c *Client) GetAccountInfo(ctx context.Context) (*ports.AccountInfo, error) {
	op := "GetAccountInfo"
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.setConnected(true)

	balance, err := strconv.ParseFloat(account.TotalWalletBalance, 64)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("could not parse wallet balance '%s': %w", account.TotalWalletBalance, err), op)
	}
	equity, _ := strconv.ParseFloat(account.TotalMarginBalance, 64)
	margin, _ := strconv.ParseFloat(account.TotalInitialMargin, 64)
	free, _ := strconv.ParseFloat(account.AvailableBalance, 64)

	return &ports.AccountInfo{
		Balance:    balance,
		Equity:     equity,
		Margin:     margin,
		MarginFree: free,
		Currency:   "USDT",
	}, nil
}

// GetCandles retrieves up to count most recent bars, oldest first.
func (c *Client) GetCandles(ctx context.Context, symbol, timeframe string, count int) ([]*domain.Candle, error) {
	op := "GetCandles"
	klines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(timeframe).Limit(count).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.setConnected(true)

	candles := make([]*domain.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := translateKline(k, symbol, timeframe)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// GetQuote retrieves the current best bid/ask for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*ports.Quote, error) {
	op := "GetQuote"
	tickers, err := c.futuresClient.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.setConnected(true)
	if len(tickers) == 0 {
		return nil, c.handleError(ctx, fmt.Errorf("no book ticker returned for symbol %s", symbol), op)
	}

	bid, err := strconv.ParseFloat(tickers[0].BidPrice, 64)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("could not parse bid price '%s': %w", tickers[0].BidPrice, err), op)
	}
	ask, err := strconv.ParseFloat(tickers[0].AskPrice, 64)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("could not parse ask price '%s': %w", tickers[0].AskPrice, err), op)
	}

	return &ports.Quote{Bid: bid, Ask: ask, Time: time.Now()}, nil
}

// GetOpenPositions returns the authoritative open-position list for the
// given symbols. Strategy identity (magic, ticket) and protective levels
// are recovered from the open protective orders alongside each position.
func (c *Client) GetOpenPositions(ctx context.Context, symbols []string) ([]*domain.Position, error) {
	op := "GetOpenPositions"

	var positions []*domain.Position
	for _, symbol := range symbols {
		risks, err := c.futuresClient.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}

		for _, risk := range risks {
			amt, _ := strconv.ParseFloat(risk.PositionAmt, 64)
			if amt == 0 {
				continue
			}

			side := domain.Buy
			volume := amt
			if amt < 0 {
				side = domain.Sell
				volume = -amt
			}
			entryPrice, _ := strconv.ParseFloat(risk.EntryPrice, 64)

			pos := &domain.Position{
				Symbol:     symbol,
				Side:       side,
				EntryPrice: entryPrice,
				Volume:     volume,
			}

			if err := c.attachProtectiveOrders(ctx, pos); err != nil {
				return nil, err
			}
			if pos.Ticket == 0 {
				// No protective orders to recover identity from; synthesize a
				// stable negative ticket so the ledger can still track it.
				pos.Ticket = -hashTicket(symbol, side)
				c.logger.Warn(ctx, "Open position has no recoverable identity", map[string]interface{}{
					"symbol": symbol,
					"side":   string(side),
					"ticket": pos.Ticket,
				})
			}

			c.remember(pos.Ticket, symbol, side, volume)
			positions = append(positions, pos)
		}
	}
	c.setConnected(true)
	return positions, nil
}

// attachProtectiveOrders scans open orders for this position's symbol and
// recovers magic, ticket, stop loss, take profit and an entry time
// approximation from the protective order metadata.
func (c *Client) attachProtectiveOrders(ctx context.Context, pos *domain.Position) error {
	op := "GetOpenOrders"
	orders, err := c.futuresClient.NewListOpenOrdersService().Symbol(pos.Symbol).Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}

	for _, order := range orders {
		kind, magic, ticket, ok := parseProtectiveID(order.ClientOrderID)
		if !ok {
			continue
		}

		price, _ := strconv.ParseFloat(order.StopPrice, 64)
		pos.Magic = magic
		pos.Ticket = ticket
		switch kind {
		case "sl":
			pos.StopLoss = price
		case "tp":
			pos.TakeProfit = price
		}
		// Protective orders are placed immediately after the fill, so
		// their creation time is a close stand-in for the entry time.
		if pos.EntryTime.IsZero() && order.Time > 0 {
			pos.EntryTime = time.UnixMilli(order.Time)
		}
	}
	return nil
}

// SubmitMarketOrder places a market order and attaches the protective
// stop/target orders, tagged with the strategy identity.
func (c *Client) SubmitMarketOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResult, error) {
	op := "SubmitMarketOrder"
	qty := strconv.FormatFloat(req.Volume, 'f', -1, 64)

	order, err := c.futuresClient.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(sideType(req.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.setConnected(true)

	filled, _ := strconv.ParseFloat(order.AvgPrice, 64)
	result := &ports.OrderResult{
		Ticket:      order.OrderID,
		FilledPrice: filled,
		FilledAt:    time.UnixMilli(order.UpdateTime),
	}
	c.logger.Info(ctx, "Market order filled", map[string]interface{}{
		"symbol":   req.Symbol,
		"side":     string(req.Side),
		"quantity": qty,
		"ticket":   result.Ticket,
		"avgPrice": result.FilledPrice,
	})

	closeSide := sideType(req.Side.Opposite())
	if req.StopLoss > 0 {
		if err := c.placeProtective(ctx, req, closeSide, futures.OrderTypeStopMarket,
			req.StopLoss, protectiveID("sl", req.Magic, result.Ticket)); err != nil {
			return nil, err
		}
	}
	if req.TakeProfit > 0 {
		if err := c.placeProtective(ctx, req, closeSide, futures.OrderTypeTakeProfitMarket,
			req.TakeProfit, protectiveID("tp", req.Magic, result.Ticket)); err != nil {
			return nil, err
		}
	}

	c.remember(result.Ticket, req.Symbol, req.Side, req.Volume)
	return result, nil
}

func (c *Client) placeProtective(ctx context.Context, req ports.OrderRequest, side futures.SideType, orderType futures.OrderType, price float64, clientID string) error {
	op := "PlaceProtectiveOrder"
	_, err := c.futuresClient.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Type(orderType).
		StopPrice(strconv.FormatFloat(price, 'f', -1, 64)).
		ClosePosition(true).
		NewClientOrderID(clientID).
		Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, "Protective order placed", map[string]interface{}{
		"symbol":        req.Symbol,
		"type":          string(orderType),
		"stopPrice":     price,
		"clientOrderID": clientID,
	})
	return nil
}

// ClosePosition closes the full volume of a position with a reduce-only
// market order, cancels its leftover protective orders, and reports the
// realized result as the account balance delta across the close.
func (c *Client) ClosePosition(ctx context.Context, ticket int64) (*ports.CloseResult, error) {
	op := "ClosePosition"

	c.mu.Lock()
	tracked, ok := c.known[ticket]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: ticket %d: %w", op, ticket, ports.ErrPositionNotFound)
	}

	before, err := c.GetAccountInfo(ctx)
	if err != nil {
		return nil, err
	}

	qty := strconv.FormatFloat(tracked.volume, 'f', -1, 64)
	_, err = c.futuresClient.NewCreateOrderService().
		Symbol(tracked.symbol).
		Side(sideType(tracked.side.Opposite())).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	c.cancelProtectiveOrders(ctx, tracked.symbol, ticket)

	after, err := c.GetAccountInfo(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	delete(c.known, ticket)
	c.mu.Unlock()

	result := &ports.CloseResult{
		Profit:       after.Balance - before.Balance,
		BalanceAfter: after.Balance,
	}
	c.logger.Info(ctx, "Position closed", map[string]interface{}{
		"ticket":       ticket,
		"symbol":       tracked.symbol,
		"profit":       result.Profit,
		"balanceAfter": result.BalanceAfter,
	})
	return result, nil
}

// cancelProtectiveOrders removes stop/target orders left behind after a
// close. Failures are logged, not returned: the position is already flat
// and ClosePosition(true) orders expire on their own.
func (c *Client) cancelProtectiveOrders(ctx context.Context, symbol string, ticket int64) {
	orders, err := c.futuresClient.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		c.logger.Warn(ctx, "Could not list leftover protective orders", map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		})
		return
	}

	for _, order := range orders {
		_, _, orderTicket, ok := parseProtectiveID(order.ClientOrderID)
		if !ok || orderTicket != ticket {
			continue
		}
		if _, err := c.futuresClient.NewCancelOrderService().Symbol(symbol).OrderID(order.OrderID).Do(ctx); err != nil {
			c.logger.Warn(ctx, "Could not cancel leftover protective order", map[string]interface{}{
				"symbol":  symbol,
				"orderID": order.OrderID,
				"error":   err.Error(),
			})
			continue
		}
		c.logger.Debug(ctx, "Cancelled leftover protective order", map[string]interface{}{
			"symbol":  symbol,
			"orderID": order.OrderID,
		})
	}
}

func (c *Client) remember(ticket int64, symbol string, side domain.Side, volume float64) {
	c.mu.Lock()
	c.known[ticket] = &trackedPosition{symbol: symbol, side: side, volume: volume}
	c.mu.Unlock()
}

// --- Translation Helpers ---

func sideType(side domain.Side) futures.SideType {
	if side == domain.Buy {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

// protectiveID builds the client order ID carrying strategy identity.
func protectiveID(kind string, magic int, ticket int64) string {
	return fmt.Sprintf("%s-%d-%d", kind, magic, ticket)
}

// parseProtectiveID reverses protectiveID. Returns ok=false for order IDs
// this system did not generate.
func parseProtectiveID(clientOrderID string) (kind string, magic int, ticket int64, ok bool) {
	parts := strings.Split(clientOrderID, "-")
	if len(parts) != 3 || (parts[0] != "sl" && parts[0] != "tp") {
		return "", 0, 0, false
	}
	magic, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, false
	}
	ticket, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	return parts[0], magic, ticket, true
}

// hashTicket derives a stable synthetic ticket for positions without
// recoverable identity.
func hashTicket(symbol string, side domain.Side) int64 {
	h := int64(1469598103934665603)
	for _, b := range []byte(symbol + ":" + string(side)) {
		h ^= int64(b)
		h *= 1099511628211
	}
	if h < 0 {
		h = -h
	}
	return h%1000000000 + 1
}

func translateKline(k *futures.Kline, symbol, timeframe string) (*domain.Candle, error) {
	if k == nil {
		return nil, errors.New("received nil kline")
	}
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", k.Low, err)
	}
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", k.Close, err)
	}
	vol, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", k.Volume, err)
	}

	return &domain.Candle{
		OpenTime:  time.UnixMilli(k.OpenTime),
		Symbol:    symbol,
		Timeframe: timeframe,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
