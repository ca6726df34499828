package bybit

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/gorkemacar/signalbot/pkg/types"
)

func orderSide(side types.Side) string {
	if side == types.SideShort {
		return "Sell"
	}
	return "Buy"
}

func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// MarketOrder places a market order for qty contracts of symbol.
func (b *Broker) MarketOrder(ctx context.Context, symbol string, side types.Side, qty float64) error {
	params := map[string]interface{}{
		"category":  category,
		"symbol":    symbol,
		"side":      orderSide(side),
		"orderType": "Market",
		"qty":       formatQty(qty),
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return fmt.Errorf("failed to place market order for %s: %w", symbol, err)
	}
	if err := checkResponse(result); err != nil {
		return fmt.Errorf("market order rejected for %s: %w", symbol, err)
	}
	return nil
}

// PositionAmt returns the signed position size for symbol: positive for a
// long, negative for a short, zero when flat.
func (b *Broker) PositionAmt(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get position list for %s: %w", symbol, err)
	}

	var posResult struct {
		List []struct {
			Symbol string `json:"symbol"`
			Side   string `json:"side"`
			Size   string `json:"size"`
		} `json:"list"`
	}
	if err := unpackResult(result, &posResult); err != nil {
		return 0, fmt.Errorf("failed to parse position response: %w", err)
	}

	for _, p := range posResult.List {
		if p.Symbol != symbol {
			continue
		}
		size := parseFloat64(p.Size)
		if size == 0 {
			continue
		}
		if p.Side == "Sell" {
			return -size, nil
		}
		return size, nil
	}
	return 0, nil
}

// ClosePosition market-flattens whatever exposure exists on symbol.
// A flat position is not an error.
func (b *Broker) ClosePosition(ctx context.Context, symbol string) error {
	amt, err := b.PositionAmt(ctx, symbol)
	if err != nil {
		return err
	}
	if amt == 0 {
		return nil
	}

	side := types.SideShort // close a long by selling
	if amt < 0 {
		side = types.SideLong
	}

	params := map[string]interface{}{
		"category":   category,
		"symbol":     symbol,
		"side":       orderSide(side),
		"orderType":  "Market",
		"qty":        formatQty(math.Abs(amt)),
		"reduceOnly": true,
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return fmt.Errorf("failed to close position for %s: %w", symbol, err)
	}
	if err := checkResponse(result); err != nil {
		return fmt.Errorf("close order rejected for %s: %w", symbol, err)
	}
	return nil
}

// CancelAllOrders cancels every open order on symbol, including resting
// conditional SL/TP legs.
func (b *Broker) CancelAllOrders(ctx context.Context, symbol string) error {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).CancelAllOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel orders for %s: %w", symbol, err)
	}
	return checkResponse(result)
}

// PlaceStopMarket attaches an exchange-side stop-loss to the position on
// symbol, triggered by mark price. side is the closing direction of the
// protected position and is unused on Bybit, where the trading stop is
// bound to the position itself.
func (b *Broker) PlaceStopMarket(ctx context.Context, symbol string, side types.Side, stopPrice float64) error {
	return b.setTradingStop(ctx, symbol, map[string]interface{}{
		"stopLoss":    formatPrice(stopPrice),
		"slTriggerBy": "MarkPrice",
	}, "stop loss")
}

// PlaceTakeProfit attaches an exchange-side take-profit to the position on
// symbol, triggered by mark price.
func (b *Broker) PlaceTakeProfit(ctx context.Context, symbol string, side types.Side, price float64) error {
	return b.setTradingStop(ctx, symbol, map[string]interface{}{
		"takeProfit":  formatPrice(price),
		"tpTriggerBy": "MarkPrice",
	}, "take profit")
}

func (b *Broker) setTradingStop(ctx context.Context, symbol string, legs map[string]interface{}, kind string) error {
	params := map[string]interface{}{
		"category":    category,
		"symbol":      symbol,
		"positionIdx": 0, // one-way mode
	}
	for k, v := range legs {
		params[k] = v
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).SetPositionTradingStop(ctx)
	if err != nil {
		return fmt.Errorf("failed to set %s for %s: %w", kind, symbol, err)
	}
	if err := checkResponse(result); err != nil {
		return fmt.Errorf("%s rejected for %s: %w", kind, symbol, err)
	}
	return nil
}

// SetLeverage sets symbol leverage for both directions. "Leverage not
// modified" responses are treated as success.
func (b *Broker) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	params := map[string]interface{}{
		"category":     category,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).SetPositionLeverage(ctx)
	if err != nil {
		if isAlreadySet(err) {
			return nil
		}
		return fmt.Errorf("failed to set leverage for %s: %w", symbol, err)
	}
	if err := checkResponse(result); err != nil {
		if isAlreadySet(err) {
			return nil
		}
		return fmt.Errorf("set leverage rejected for %s: %w", symbol, err)
	}
	return nil
}

// EnsureIsolatedMargin switches symbol to isolated margin mode. "Margin
// mode not modified" responses are treated as success.
func (b *Broker) EnsureIsolatedMargin(ctx context.Context, symbol string) error {
	params := map[string]interface{}{
		"category":  category,
		"symbol":    symbol,
		"tradeMode": 1, // 0: cross, 1: isolated
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).SwitchPositionMargin(ctx)
	if err != nil {
		if isAlreadySet(err) {
			return nil
		}
		return fmt.Errorf("failed to switch margin mode for %s: %w", symbol, err)
	}
	if err := checkResponse(result); err != nil {
		if isAlreadySet(err) {
			return nil
		}
		return fmt.Errorf("switch margin mode rejected for %s: %w", symbol, err)
	}
	return nil
}
