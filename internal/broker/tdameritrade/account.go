package tdameritrade

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"earnings/internal/logger"
	"earnings/internal/types"
)

type accountResponse struct {
	SecuritiesAccount struct {
		AccountID       string        `json:"accountId"`
		CurrentBalances rawBalances   `json:"currentBalances"`
		OrderStrategies []rawOrder    `json:"orderStrategies"`
		Positions       []rawPosition `json:"positions"`
	} `json:"securitiesAccount"`
}

type rawBalances struct {
	LiquidationValue       float64 `json:"liquidationValue"`
	Equity                 float64 `json:"equity"`
	AvailableFunds         float64 `json:"availableFunds"`
	MaintenanceRequirement float64 `json:"maintenanceRequirement"`
}

type rawInstrument struct {
	AssetType        string `json:"assetType"`
	Symbol           string `json:"symbol"`
	PutCall          string `json:"putCall"`
	UnderlyingSymbol string `json:"underlyingSymbol"`
}

type rawOrderLeg struct {
	Instruction    string        `json:"instruction"`
	PositionEffect string        `json:"positionEffect"`
	Quantity       float64       `json:"quantity"`
	Instrument     rawInstrument `json:"instrument"`
}

// rawOrder omits orderStrategyType, requestedDestination,
// destinationLinkName, editable and accountId; they are not reported.
type rawOrder struct {
	OrderID                  int64         `json:"orderId"`
	Status                   string        `json:"status"`
	StatusDescription        string        `json:"statusDescription"`
	OrderType                string        `json:"orderType"`
	ComplexOrderStrategyType string        `json:"complexOrderStrategyType"`
	Session                  string        `json:"session"`
	Duration                 string        `json:"duration"`
	Price                    float64       `json:"price"`
	Quantity                 float64       `json:"quantity"`
	FilledQuantity           float64       `json:"filledQuantity"`
	RemainingQuantity        float64       `json:"remainingQuantity"`
	Cancelable               bool          `json:"cancelable"`
	EnteredTime              string        `json:"enteredTime"`
	CloseTime                string        `json:"closeTime"`
	Tag                      string        `json:"tag"`
	OrderLegCollection       []rawOrderLeg `json:"orderLegCollection"`

	StopPrice                float64         `json:"stopPrice"`
	StopType                 string          `json:"stopType"`
	StopPriceLinkBasis       string          `json:"stopPriceLinkBasis"`
	StopPriceLinkType        string          `json:"stopPriceLinkType"`
	StopPriceOffset          float64         `json:"stopPriceOffset"`
	ActivationPrice          float64         `json:"activationPrice"`
	PriceLinkBasis           string          `json:"priceLinkBasis"`
	PriceLinkType            string          `json:"priceLinkType"`
	TaxLotMethod             string          `json:"taxLotMethod"`
	SpecialInstruction       string          `json:"specialInstruction"`
	ReleaseTime              string          `json:"releaseTime"`
	CancelTime               string          `json:"cancelTime"`
	StatusTime               string          `json:"statusTime"`
	ChildOrderStrategies     json.RawMessage `json:"childOrderStrategies"`
	ReplacingOrderCollection json.RawMessage `json:"replacingOrderCollection"`
	OrderActivityCollection  json.RawMessage `json:"orderActivityCollection"`
}

type rawPosition struct {
	ShortQuantity          float64       `json:"shortQuantity"`
	LongQuantity           float64       `json:"longQuantity"`
	AveragePrice           float64       `json:"averagePrice"`
	MarketValue            float64       `json:"marketValue"`
	CurrentDayProfitLoss   float64       `json:"currentDayProfitLoss"`
	MaintenanceRequirement float64       `json:"maintenanceRequirement"`
	Instrument             rawInstrument `json:"instrument"`
}

func (td *TDAmeritrade) account(ctx context.Context, fields string) (*accountResponse, error) {
	path, err := td.accountPath("")
	if err != nil {
		return nil, err
	}
	var q url.Values
	if fields != "" {
		q = url.Values{"fields": {fields}}
	}

	resp, err := td.api.GET(ctx, path, q)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	var acct accountResponse
	if err := resp.ParseJSON(&acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (td *TDAmeritrade) GetBalances(ctx context.Context) (types.Balances, error) {
	acct, err := td.account(ctx, "")
	if err != nil {
		return types.Balances{}, err
	}
	b := acct.SecuritiesAccount.CurrentBalances
	return types.Balances{
		Balance:    b.LiquidationValue,
		Equity:     b.Equity,
		FreeMargin: b.AvailableFunds,
		UsedMargin: b.MaintenanceRequirement,
	}, nil
}

func (td *TDAmeritrade) GetOrders(ctx context.Context) ([]types.Order, error) {
	acct, err := td.account(ctx, "orders")
	if err != nil {
		return nil, err
	}

	orders := make([]types.Order, 0, len(acct.SecuritiesAccount.OrderStrategies))
	for _, o := range acct.SecuritiesAccount.OrderStrategies {
		legs := make([]types.OrderLeg, 0, len(o.OrderLegCollection))
		for _, l := range o.OrderLegCollection {
			legs = append(legs, types.OrderLeg{
				Instruction:    l.Instruction,
				Symbol:         l.Instrument.Symbol,
				AssetType:      l.Instrument.AssetType,
				Quantity:       l.Quantity,
				PositionEffect: l.PositionEffect,
			})
		}
		orders = append(orders, types.Order{
			OrderID:                  o.OrderID,
			Status:                   o.Status,
			StatusDescription:        o.StatusDescription,
			OrderType:                o.OrderType,
			ComplexOrderStrategyType: o.ComplexOrderStrategyType,
			Session:                  o.Session,
			Duration:                 o.Duration,
			Price:                    o.Price,
			Quantity:                 o.Quantity,
			FilledQuantity:           o.FilledQuantity,
			RemainingQuantity:        o.RemainingQuantity,
			Cancelable:               o.Cancelable,
			EnteredTime:              o.EnteredTime,
			CloseTime:                o.CloseTime,
			Tag:                      o.Tag,
			Legs:                     legs,

			StopPrice:                o.StopPrice,
			StopType:                 o.StopType,
			StopPriceLinkBasis:       o.StopPriceLinkBasis,
			StopPriceLinkType:        o.StopPriceLinkType,
			StopPriceOffset:          o.StopPriceOffset,
			ActivationPrice:          o.ActivationPrice,
			PriceLinkBasis:           o.PriceLinkBasis,
			PriceLinkType:            o.PriceLinkType,
			TaxLotMethod:             o.TaxLotMethod,
			SpecialInstruction:       o.SpecialInstruction,
			ReleaseTime:              o.ReleaseTime,
			CancelTime:               o.CancelTime,
			StatusTime:               o.StatusTime,
			ChildOrderStrategies:     o.ChildOrderStrategies,
			ReplacingOrderCollection: o.ReplacingOrderCollection,
			OrderActivityCollection:  o.OrderActivityCollection,
		})
	}
	return orders, nil
}

func (td *TDAmeritrade) GetPositions(ctx context.Context) ([]types.Position, error) {
	acct, err := td.account(ctx, "positions")
	if err != nil {
		return nil, err
	}

	positions := make([]types.Position, 0, len(acct.SecuritiesAccount.Positions))
	for _, rp := range acct.SecuritiesAccount.Positions {
		positions = append(positions, convertPosition(ctx, rp))
	}
	SortPositions(positions)
	return positions, nil
}

func convertPosition(ctx context.Context, rp rawPosition) types.Position {
	p := types.Position{
		Symbol:      rp.Instrument.Symbol,
		Underlying:  rp.Instrument.UnderlyingSymbol,
		AssetType:   rp.Instrument.AssetType,
		Qty:         rp.LongQuantity - rp.ShortQuantity,
		OptionType:  rp.Instrument.PutCall,
		Price:       rp.AveragePrice,
		Value:       rp.MarketValue,
		PnLDay:      rp.CurrentDayProfitLoss,
		BuyingPower: rp.MaintenanceRequirement,
	}

	if p.AssetType == "OPTION" {
		sym, err := ParseOptionSymbol(p.Symbol)
		if err != nil {
			logger.Warn(ctx, "Unparseable option position symbol", "symbol", p.Symbol, "error", err)
		} else {
			exp := sym.Expiration
			p.Expiration = &exp
			p.ExpirationDate = ExpirationLabel(exp)
			p.Strike = sym.Strike
			if p.Underlying == "" {
				p.Underlying = sym.Underlying
			}
			if p.OptionType == "" {
				p.OptionType = string(sym.Type)
			}
		}
	}
	if p.Underlying == "" {
		p.Underlying = p.Symbol
	}
	return p
}

// SortPositions orders by expiration (equities last), then underlying, then
// strike descending.
func SortPositions(ps []types.Position) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		switch {
		case a.Expiration == nil && b.Expiration != nil:
			return false
		case a.Expiration != nil && b.Expiration == nil:
			return true
		case a.Expiration != nil && !a.Expiration.Equal(*b.Expiration):
			return a.Expiration.Before(*b.Expiration)
		}
		if a.Underlying != b.Underlying {
			return a.Underlying < b.Underlying
		}
		return a.Strike > b.Strike
	})
}
