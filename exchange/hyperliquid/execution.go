package hyperliquid

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradebridge/exchange"
	"tradebridge/internal/decimal"
	"tradebridge/internal/symbols"
	"tradebridge/internal/wire"
	"tradebridge/models"
	"tradebridge/signer"
)

const (
	wsTypeAction = "action"
	wsTypeInfo   = "info"
	usdcAsset    = "USDC"
)

var orderParams = map[string]bool{
	models.FieldSide:          true,
	models.FieldQuantity:      true,
	models.FieldLimitPrice:    true,
	models.FieldClientOrderID: true,
	models.ParamTimeInForce:   true,
	models.ParamReduceOnly:    true,
	models.ParamOrderType:     true,
}

func (p *Protocol) EncodeRequest(req models.Request, _ signer.Credentials) (*exchange.Outbound, error) {
	switch req.Operation {
	case models.OperationCreateOrder:
		return p.encodeCreateOrder(req)
	case models.OperationCancelOrder:
		return p.encodeCancelOrder(req)
	case models.OperationGetOrder:
		body := infoBody("orderStatus")
		if oid := req.Param(models.FieldOrderID); oid != "" {
			n, err := strconv.ParseInt(oid, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q", models.FieldOrderID, oid)
			}
			body.Set("oid", n)
		} else if cloid := req.Param(models.FieldClientOrderID); cloid != "" {
			body.Set("oid", cloid)
		} else {
			return nil, fmt.Errorf("%s or %s is required", models.FieldOrderID, models.FieldClientOrderID)
		}
		return infoRequest(body), nil
	case models.OperationGetOpenOrders:
		return infoRequest(infoBody("openOrders")), nil
	case models.OperationGetAccountBalances, models.OperationGetAccountPositions:
		return infoRequest(infoBody("clearinghouseState")), nil
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedOperation, req.Operation)
}

// infoBody starts an info query. The user field is attached at signing.
func infoBody(typ string) wire.Object {
	return wire.Object{{Key: "type", Value: typ}}
}

func infoRequest(body wire.Object) *exchange.Outbound {
	return &exchange.Outbound{
		Method:        http.MethodPost,
		Path:          pathInfo,
		Body:          body,
		Signing:       exchange.SigningKeyed,
		Websocket:     true,
		WebsocketType: wsTypeInfo,
	}
}

func actionRequest(action wire.Object) *exchange.Outbound {
	return &exchange.Outbound{
		Method:        http.MethodPost,
		Path:          pathExchange,
		Action:        action,
		Signing:       exchange.SigningStructHash,
		Websocket:     true,
		WebsocketType: wsTypeAction,
	}
}

func isBuy(side string) (bool, error) {
	switch strings.ToUpper(side) {
	case models.SideBuy:
		return true, nil
	case models.SideSell:
		return false, nil
	}
	return false, fmt.Errorf("invalid %s %q", models.FieldSide, side)
}

func timeInForce(tif string) (string, error) {
	switch strings.ToUpper(tif) {
	case "", "GTC", "GOOD_TILL_CANCELED":
		return "Gtc", nil
	case "IOC", "IMMEDIATE_OR_CANCEL":
		return "Ioc", nil
	case "ALO", "POST_ONLY":
		return "Alo", nil
	}
	return "", fmt.Errorf("invalid %s %q", models.ParamTimeInForce, tif)
}

func (p *Protocol) encodeCreateOrder(req models.Request) (*exchange.Outbound, error) {
	asset, err := p.assets.Index(req.SymbolID)
	if err != nil {
		return nil, err
	}
	buy, err := isBuy(req.Param(models.FieldSide))
	if err != nil {
		return nil, err
	}
	if typ := strings.ToUpper(req.Param(models.ParamOrderType)); typ != "" && typ != "LIMIT" {
		return nil, fmt.Errorf("%w: order type %s", models.ErrUnsupportedOperation, typ)
	}
	price, err := decimal.Normalize(req.Param(models.FieldLimitPrice))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", models.FieldLimitPrice, err)
	}
	size, err := decimal.Normalize(req.Param(models.FieldQuantity))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", models.FieldQuantity, err)
	}
	tif, err := timeInForce(req.Param(models.ParamTimeInForce))
	if err != nil {
		return nil, err
	}
	cloid := req.Param(models.FieldClientOrderID)
	if cloid == "" {
		cloid = p.newCloid()
	}

	ord := wire.Object{
		{Key: "a", Value: asset},
		{Key: "b", Value: buy},
		{Key: "p", Value: price},
		{Key: "s", Value: size},
		{Key: "r", Value: strings.EqualFold(req.Param(models.ParamReduceOnly), "true")},
		{Key: "t", Value: wire.Object{{Key: "limit", Value: wire.Object{{Key: "tif", Value: tif}}}}},
		{Key: "c", Value: cloid},
	}
	extra := make([]string, 0, len(req.Params))
	for k := range req.Params {
		if !orderParams[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		ord.Set(k, req.Params[k])
	}

	return actionRequest(wire.Object{
		{Key: "type", Value: "order"},
		{Key: "orders", Value: []wire.Object{ord}},
		{Key: "grouping", Value: "na"},
	}), nil
}

func (p *Protocol) encodeCancelOrder(req models.Request) (*exchange.Outbound, error) {
	asset, err := p.assets.Index(req.SymbolID)
	if err != nil {
		return nil, err
	}
	if oid := req.Param(models.FieldOrderID); oid != "" {
		n, err := strconv.ParseInt(oid, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", models.FieldOrderID, oid)
		}
		return actionRequest(wire.Object{
			{Key: "type", Value: "cancel"},
			{Key: "cancels", Value: []wire.Object{{{Key: "a", Value: asset}, {Key: "o", Value: n}}}},
		}), nil
	}
	if cloid := req.Param(models.FieldClientOrderID); cloid != "" {
		return actionRequest(wire.Object{
			{Key: "type", Value: "cancelByCloid"},
			{Key: "cancels", Value: []wire.Object{{{Key: "asset", Value: asset}, {Key: "cloid", Value: cloid}}}},
		}), nil
	}
	return nil, fmt.Errorf("%s or %s is required", models.FieldOrderID, models.FieldClientOrderID)
}

func (p *Protocol) Sign(out *exchange.Outbound, creds signer.Credentials, nonce int64) error {
	switch out.Signing {
	case exchange.SigningNone:
		return nil
	case exchange.SigningKeyed:
		body := out.Body
		if err := p.keyed.AttachBody(&body, creds); err != nil {
			return err
		}
		out.Body = body
		return nil
	case exchange.SigningStructHash:
		sig, err := signer.SignL1Action(creds.Get(CredentialPrivateKey), out.Action, uint64(nonce), !p.testnet)
		if err != nil {
			return err
		}
		out.Body = wire.Object{
			{Key: "action", Value: out.Action},
			{Key: "nonce", Value: nonce},
			{Key: "signature", Value: sig.Object()},
		}
		return nil
	}
	return fmt.Errorf("%w: signing mode %d", models.ErrSigningFailed, out.Signing)
}

func (p *Protocol) WebsocketRequest(out *exchange.Outbound, id int64) ([]byte, error) {
	if out.Body == nil {
		return nil, fmt.Errorf("%w: request has no body", models.ErrSigningFailed)
	}
	frame := wire.Object{
		{Key: "method", Value: "post"},
		{Key: "id", Value: id},
		{Key: "request", Value: wire.Object{
			{Key: "type", Value: out.WebsocketType},
			{Key: "payload", Value: out.Body},
		}},
	}
	return frame.MarshalJSON()
}

func (p *Protocol) DecodeResponse(req models.Request, status int, body []byte, received time.Time) ([]models.Message, error) {
	if status >= http.StatusBadRequest {
		return []models.Message{httpError(req, status, body, received)}, nil
	}

	var (
		elems []models.Element
		err   error
	)
	switch req.Operation {
	case models.OperationCreateOrder, models.OperationCancelOrder:
		var resp exchangeResponse
		if err := exchange.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		if resp.Status != "ok" {
			text, _ := exchange.Text(resp.Response)
			return []models.Message{responseError(req, text, received)}, nil
		}
		elems, err = actionStatuses(resp)
		if err == nil && req.Operation == models.OperationCreateOrder {
			echoOrder(req, elems)
		}
	case models.OperationGetOrder:
		var info orderStatusInfo
		if err := exchange.Unmarshal(body, &info); err != nil {
			return nil, err
		}
		if info.Status != "order" || info.Order == nil {
			return []models.Message{responseError(req, info.Status, received)}, nil
		}
		var elem models.Element
		elem, err = orderElement(info.Order.Order, info.Order.Status)
		elems = []models.Element{elem}
	case models.OperationGetOpenOrders:
		elems, err = openOrders(req, body)
	case models.OperationGetAccountBalances:
		elems, err = balances(body)
	case models.OperationGetAccountPositions:
		elems, err = positions(body)
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedOperation, req.Operation)
	}
	if err != nil {
		return nil, err
	}

	msg := models.NewMessage(models.MessageType(req.Operation), received, correlationIDs(req))
	msg.Elements = elems
	return []models.Message{msg}, nil
}

func correlationIDs(req models.Request) []string {
	if req.CorrelationID == "" {
		return nil
	}
	return []string{req.CorrelationID}
}

func responseError(req models.Request, text string, received time.Time) models.Message {
	msg := models.NewMessage(models.MessageTypeResponseError, received, correlationIDs(req))
	msg.Elements = []models.Element{{models.FieldErrorMessage: text}}
	return msg
}

func httpError(req models.Request, status int, body []byte, received time.Time) models.Message {
	msg := responseError(req, string(body), received)
	msg.Elements[0][models.FieldHTTPStatusCode] = strconv.Itoa(status)
	return msg
}

func actionStatuses(resp exchangeResponse) ([]models.Element, error) {
	var data exchangeData
	if err := exchange.Unmarshal(resp.Response, &data); err != nil {
		return nil, err
	}
	elems := make([]models.Element, 0, len(data.Data.Statuses))
	for _, raw := range data.Data.Statuses {
		elem := models.Element{}
		if text, err := exchange.Text(raw); err == nil && len(raw) > 0 && raw[0] == '"' {
			elem.Insert(models.FieldStatus, text)
			elems = append(elems, elem)
			continue
		}
		var st orderStatus
		if err := exchange.Unmarshal(raw, &st); err != nil {
			return nil, err
		}
		switch {
		case st.Resting != nil:
			oid, err := exchange.Text(st.Resting.Oid)
			if err != nil {
				return nil, err
			}
			elem.Insert(models.FieldStatus, "resting")
			elem.Insert(models.FieldOrderID, oid)
			if st.Resting.Cloid != nil {
				elem.Insert(models.FieldClientOrderID, *st.Resting.Cloid)
			}
		case st.Filled != nil:
			oid, err := exchange.Text(st.Filled.Oid)
			if err != nil {
				return nil, err
			}
			total, err := exchange.Number(st.Filled.TotalSz)
			if err != nil {
				return nil, err
			}
			avg, err := exchange.Number(st.Filled.AvgPx)
			if err != nil {
				return nil, err
			}
			elem.Insert(models.FieldStatus, "filled")
			elem.Insert(models.FieldOrderID, oid)
			if st.Filled.Cloid != nil {
				elem.Insert(models.FieldClientOrderID, *st.Filled.Cloid)
			}
			elem.Insert(models.FieldCumulativeFilledQuantity, total)
			elem.Insert(models.FieldAverageFilledPrice, avg)
		case st.Error != nil:
			elem.Insert(models.FieldStatus, "error")
			elem.Insert(models.FieldErrorMessage, *st.Error)
		default:
			return nil, fmt.Errorf("%w: unknown order status %s", models.ErrMalformedWireMessage, raw)
		}
		elems = append(elems, elem)
	}
	return elems, nil
}

// echoOrder copies request fields the exchange does not return.
func echoOrder(req models.Request, elems []models.Element) {
	side := strings.ToUpper(req.Param(models.FieldSide))
	qty, _ := decimal.Normalize(req.Param(models.FieldQuantity))
	px, _ := decimal.Normalize(req.Param(models.FieldLimitPrice))
	for _, elem := range elems {
		if elem.Get(models.FieldStatus) == "error" {
			continue
		}
		elem.Insert(models.FieldInstrument, req.SymbolID)
		elem.Insert(models.FieldSide, side)
		elem.Insert(models.FieldQuantity, qty)
		elem.Insert(models.FieldLimitPrice, px)
		if !elem.Has(models.FieldClientOrderID) {
			elem.Insert(models.FieldClientOrderID, req.Param(models.FieldClientOrderID))
		}
	}
}

func openOrders(req models.Request, body []byte) ([]models.Element, error) {
	var orders []order
	if err := exchange.Unmarshal(body, &orders); err != nil {
		return nil, err
	}
	coin := ""
	if req.SymbolID != "" {
		coin = symbols.Native(exchangeName, req.SymbolID)
	}
	elems := make([]models.Element, 0, len(orders))
	for _, o := range orders {
		if coin != "" && !strings.EqualFold(o.Coin, coin) {
			continue
		}
		elem, err := orderElement(o, "open")
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	return elems, nil
}

func balances(body []byte) ([]models.Element, error) {
	var state clearinghouseState
	if err := exchange.Unmarshal(body, &state); err != nil {
		return nil, err
	}
	if state.MarginSummary == nil {
		return nil, fmt.Errorf("%w: missing marginSummary", models.ErrMalformedWireMessage)
	}
	available, err := exchange.Number(state.MarginSummary.AccountValue)
	if err != nil {
		return nil, err
	}
	total, err := exchange.Number(state.MarginSummary.TotalRawUsd)
	if err != nil {
		return nil, err
	}
	elem := models.Element{models.FieldAsset: usdcAsset}
	elem.Insert(models.FieldQuantityAvailable, available)
	elem.Insert(models.FieldQuantityTotal, total)
	return []models.Element{elem}, nil
}

func positions(body []byte) ([]models.Element, error) {
	var state clearinghouseState
	if err := exchange.Unmarshal(body, &state); err != nil {
		return nil, err
	}
	elems := make([]models.Element, 0, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		pos := ap.Position
		szi, err := exchange.Number(pos.Szi)
		if err != nil {
			return nil, err
		}
		if szi == "" {
			continue
		}
		qty, err := decimal.Parse(szi)
		if err != nil {
			return nil, err
		}
		elem := models.Element{models.FieldInstrument: pos.Coin}
		side := models.PositionSideLong
		if qty.Sign() < 0 {
			side = models.PositionSideShort
		}
		elem.Insert(models.FieldPositionSide, side)
		elem.Insert(models.FieldPositionQuantity, qty.Abs().String())
		for name, raw := range map[string][]byte{
			models.FieldPositionEntryPrice: pos.EntryPx,
			models.FieldPositionCost:       pos.PositionValue,
			models.FieldPositionLeverage:   pos.Leverage.Value,
		} {
			v, err := exchange.Number(raw)
			if err != nil {
				return nil, err
			}
			elem.Insert(name, v)
		}
		elems = append(elems, elem)
	}
	return elems, nil
}

func subtract(a, b string) (string, error) {
	x, err := decimal.Parse(a)
	if err != nil {
		return "", err
	}
	y, err := decimal.Parse(b)
	if err != nil {
		return "", err
	}
	return x.Sub(y).String(), nil
}
