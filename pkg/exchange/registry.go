package exchange

import "tidal/pkg/hook"

// DefaultRegistry binds the supported exchanges' hooks to their
// streaming hosts. Hosts absent from every table get a plain
// connection with no background activities.
//
// Auth and sign entries name the credential account they resolve, so
// mainnet and testnet hosts can carry distinct keys ("bybit" vs
// "bybit_testnet").
func DefaultRegistry() *hook.Registry {
	reg := hook.NewRegistry()

	reg.Heartbeat = map[string]hook.Heartbeat{
		"stream.bitbank.cc":         BitbankHeartbeat,
		"stream.bybit.com":          BybitHeartbeat,
		"stream.bytick.com":         BybitHeartbeat,
		"stream-testnet.bybit.com":  BybitHeartbeat,
		"stream.binance.com":        BinanceHeartbeat,
		"fstream.binance.com":       BinanceHeartbeat,
		"dstream.binance.com":       BinanceHeartbeat,
		"vstream.binance.com":       BinanceHeartbeat,
		"stream.binancefuture.com":  BinanceHeartbeat,
		"dstream.binancefuture.com": BinanceHeartbeat,
		"testnet.binanceops.com":    BinanceHeartbeat,
		"testnetws.binanceops.com":  BinanceHeartbeat,
		"phemex.com":                PhemexHeartbeat,
		"api.phemex.com":            PhemexHeartbeat,
		"vapi.phemex.com":           PhemexHeartbeat,
		"testnet.phemex.com":        PhemexHeartbeat,
		"testnet-api.phemex.com":    PhemexHeartbeat,
		"ws.okx.com":                OKXHeartbeat,
		"wsaws.okx.com":             OKXHeartbeat,
		"wspap.okx.com":             OKXHeartbeat,
		"ws.bitget.com":             BitgetHeartbeat,
		"contract.mexc.com":         MEXCHeartbeat,
		"ws-api.kucoin.com":         KuCoinHeartbeat,
	}

	reg.Auth = map[string]hook.AuthEntry{
		"stream.bybit.com":            {Account: "bybit", Func: BybitAuth},
		"stream.bytick.com":           {Account: "bybit", Func: BybitAuth},
		"stream-testnet.bybit.com":    {Account: "bybit_testnet", Func: BybitAuth},
		"ws.lightstream.bitflyer.com": {Account: "bitflyer", Func: BitflyerAuth},
		"phemex.com":                  {Account: "phemex", Func: PhemexAuth},
		"api.phemex.com":              {Account: "phemex", Func: PhemexAuth},
		"vapi.phemex.com":             {Account: "phemex", Func: PhemexAuth},
		"testnet.phemex.com":          {Account: "phemex_testnet", Func: PhemexAuth},
		"testnet-api.phemex.com":      {Account: "phemex_testnet", Func: PhemexAuth},
		"ws.okx.com":                  {Account: "okx", Func: OKXAuth},
		"wsaws.okx.com":               {Account: "okx", Func: OKXAuth},
		"wspap.okx.com":               {Account: "okx_demo", Func: OKXAuth},
		"ws.bitget.com":               {Account: "bitget", Func: BitgetAuth},
		"contract.mexc.com":           {Account: "mexc", Func: MEXCAuth},
	}

	reg.Sign = map[string]hook.SignEntry{
		"ws-api.binance.com":     {Account: "binance", Func: BinanceMessageSign},
		"testnet.binance.vision": {Account: "binance_testnet", Func: BinanceMessageSign},
	}

	reg.RateLimit = map[string]hook.RateLimit{
		"api.coin.z.com":     GMOCoinRateLimit,
		"stream.binance.com": BinanceRateLimit,
	}

	return reg
}
