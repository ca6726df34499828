package bybit

import (
	"context"
	"fmt"
)

// Balance returns the tradable wallet balance for asset on the unified
// account.
func (b *Broker) Balance(ctx context.Context, asset string) (float64, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        asset,
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get account wallet: %w", err)
	}

	var walletResult struct {
		List []struct {
			AccountType string `json:"accountType"`
			Coin        []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := unpackResult(result, &walletResult); err != nil {
		return 0, fmt.Errorf("failed to parse wallet response: %w", err)
	}

	for _, account := range walletResult.List {
		for _, coin := range account.Coin {
			if coin.Coin == asset {
				return parseFloat64(coin.WalletBalance), nil
			}
		}
	}
	return 0, nil
}
