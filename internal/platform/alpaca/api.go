package alpaca

import (
	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/gyan21/heikenashi/internal/config"
)

type alpacaApi struct {
	trading *alpaca.Client
	data    *marketdata.Client
}

func newAlpacaApi(cfg config.Alpaca) *alpacaApi {
	return &alpacaApi{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			BaseURL:   cfg.BaseUrl,
			APIKey:    cfg.ApiKey,
			APISecret: cfg.Secret,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.ApiKey,
			APISecret: cfg.Secret,
		}),
	}
}

func (a *alpacaApi) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	return a.data.GetBars(symbol, req)
}

func (a *alpacaApi) GetLatestTrade(symbol string) (*marketdata.Trade, error) {
	return a.data.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
}

func (a *alpacaApi) GetOptionChain(symbol string, req marketdata.GetOptionChainRequest) (map[string]marketdata.OptionSnapshot, error) {
	return a.data.GetOptionChain(symbol, req)
}

func (a *alpacaApi) PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error) {
	return a.trading.PlaceOrder(req)
}

func (a *alpacaApi) GetOrder(id string) (*alpaca.Order, error) {
	return a.trading.GetOrder(id)
}
