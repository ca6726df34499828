package bybit

import (
	"context"
	"fmt"

	"github.com/gorkemacar/signalbot/internal/exchange"
)

type instrumentItem struct {
	Symbol      string `json:"symbol"`
	Status      string `json:"status"`
	QuoteCoin   string `json:"quoteCoin"`
	PriceFilter struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
	LotSizeFilter struct {
		MinOrderQty string `json:"minOrderQty"`
		QtyStep     string `json:"qtyStep"`
	} `json:"lotSizeFilter"`
}

// GetInstrument fetches the tick/lot constraints for one symbol.
func (b *Broker) GetInstrument(ctx context.Context, symbol string) (*exchange.Instrument, error) {
	items, err := b.instrumentsInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Symbol == symbol {
			return &exchange.Instrument{
				Symbol:    item.Symbol,
				Status:    item.Status,
				QuoteCoin: item.QuoteCoin,
				TickSize:  parseFloat64(item.PriceFilter.TickSize),
				QtyStep:   parseFloat64(item.LotSizeFilter.QtyStep),
				MinQty:    parseFloat64(item.LotSizeFilter.MinOrderQty),
			}, nil
		}
	}
	return nil, fmt.Errorf("instrument %s not found", symbol)
}

// ListSymbols returns all actively trading linear contracts quoted in quote
// (e.g. "USDT"). Used to resolve the ALL_USDT wildcard at startup.
func (b *Broker) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	items, err := b.instrumentsInfo(ctx, "")
	if err != nil {
		return nil, err
	}

	var symbols []string
	for _, item := range items {
		if item.Status == "Trading" && item.QuoteCoin == quote {
			symbols = append(symbols, item.Symbol)
		}
	}
	return symbols, nil
}

func (b *Broker) instrumentsInfo(ctx context.Context, symbol string) ([]instrumentItem, error) {
	params := map[string]interface{}{
		"category": category,
		"limit":    1000,
	}
	if symbol != "" {
		params["symbol"] = symbol
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get instruments info: %w", err)
	}

	var infoResult struct {
		List []instrumentItem `json:"list"`
	}
	if err := unpackResult(result, &infoResult); err != nil {
		return nil, fmt.Errorf("failed to parse instruments response: %w", err)
	}
	return infoResult.List, nil
}
