package okx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
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
	pathPlaceOrder   = "/api/v5/trade/order"
	pathCancelOrder  = "/api/v5/trade/cancel-order"
	pathGetOrder     = "/api/v5/trade/order"
	pathOpenOrders   = "/api/v5/trade/orders-pending"
	pathBalance      = "/api/v5/account/balance"
	pathPositions    = "/api/v5/account/positions"
	paramTradeMode   = "tdMode"
	defaultTradeMode = "cash"
)

var orderParams = map[string]bool{
	models.FieldSide:          true,
	models.FieldQuantity:      true,
	models.FieldLimitPrice:    true,
	models.FieldClientOrderID: true,
	models.ParamTimeInForce:   true,
	models.ParamReduceOnly:    true,
	models.ParamOrderType:     true,
	paramTradeMode:           true,
}

func (p *Protocol) EncodeRequest(req models.Request, _ signer.Credentials) (*exchange.Outbound, error) {
	instID := symbols.Native(exchangeName, req.SymbolID)
	switch req.Operation {
	case models.OperationCreateOrder:
		return p.encodeCreateOrder(req, instID)
	case models.OperationCancelOrder:
		body := wire.Object{{Key: "instId", Value: instID}}
		if err := setOrderRef(req, func(k, v string) { body.Set(k, v) }); err != nil {
			return nil, err
		}
		return &exchange.Outbound{Method: http.MethodPost, Path: pathCancelOrder, Body: body, Signing: exchange.SigningKeyed}, nil
	case models.OperationGetOrder:
		q := url.Values{"instId": {instID}}
		if err := setOrderRef(req, q.Set); err != nil {
			return nil, err
		}
		return get(pathGetOrder, q), nil
	case models.OperationGetOpenOrders:
		return get(pathOpenOrders, instQuery(instID)), nil
	case models.OperationGetAccountBalances:
		return get(pathBalance, nil), nil
	case models.OperationGetAccountPositions:
		return get(pathPositions, instQuery(instID)), nil
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedOperation, req.Operation)
}

func get(path string, q url.Values) *exchange.Outbound {
	return &exchange.Outbound{Method: http.MethodGet, Path: path, Query: q, Signing: exchange.SigningKeyed}
}

func instQuery(instID string) url.Values {
	if instID == "" {
		return nil
	}
	return url.Values{"instId": {instID}}
}

func setOrderRef(req models.Request, set func(k, v string)) error {
	if id := req.Param(models.FieldOrderID); id != "" {
		set("ordId", id)
		return nil
	}
	if id := req.Param(models.FieldClientOrderID); id != "" {
		set("clOrdId", id)
		return nil
	}
	return fmt.Errorf("%s or %s is required", models.FieldOrderID, models.FieldClientOrderID)
}

func orderType(req models.Request) (string, error) {
	switch strings.ToUpper(req.Param(models.ParamTimeInForce)) {
	case "IOC", "IMMEDIATE_OR_CANCEL":
		return "ioc", nil
	case "FOK", "FILL_OR_KILL":
		return "fok", nil
	case "ALO", "POST_ONLY":
		return "post_only", nil
	case "", "GTC", "GOOD_TILL_CANCELED":
	default:
		return "", fmt.Errorf("invalid %s %q", models.ParamTimeInForce, req.Param(models.ParamTimeInForce))
	}
	switch typ := strings.ToLower(req.Param(models.ParamOrderType)); typ {
	case "limit", "market":
		return typ, nil
	case "":
		if req.Param(models.FieldLimitPrice) == "" {
			return "market", nil
		}
		return "limit", nil
	default:
		return "", fmt.Errorf("%w: order type %s", models.ErrUnsupportedOperation, typ)
	}
}

func (p *Protocol) encodeCreateOrder(req models.Request, instID string) (*exchange.Outbound, error) {
	if instID == "" {
		return nil, fmt.Errorf("%w: instrument is required", models.ErrUnknownInstrument)
	}
	side := strings.ToLower(req.Param(models.FieldSide))
	if side != "buy" && side != "sell" {
		return nil, fmt.Errorf("invalid %s %q", models.FieldSide, req.Param(models.FieldSide))
	}
	ordType, err := orderType(req)
	if err != nil {
		return nil, err
	}
	size, err := decimal.Normalize(req.Param(models.FieldQuantity))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", models.FieldQuantity, err)
	}
	tdMode := req.Param(paramTradeMode)
	if tdMode == "" {
		tdMode = defaultTradeMode
	}
	clOrdID := req.Param(models.FieldClientOrderID)
	if clOrdID == "" {
		clOrdID = p.newClOrdID()
	}

	body := wire.Object{
		{Key: "instId", Value: instID},
		{Key: "tdMode", Value: tdMode},
		{Key: "side", Value: side},
		{Key: "ordType", Value: ordType},
	}
	if ordType != "market" {
		price, err := decimal.Normalize(req.Param(models.FieldLimitPrice))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", models.FieldLimitPrice, err)
		}
		body.Set("px", price)
	}
	body.Set("sz", size)
	body.Set("clOrdId", clOrdID)
	if strings.EqualFold(req.Param(models.ParamReduceOnly), "true") {
		body.Set("reduceOnly", true)
	}

	extra := make([]string, 0, len(req.Params))
	for k := range req.Params {
		if !orderParams[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		body.Set(k, req.Params[k])
	}

	return &exchange.Outbound{Method: http.MethodPost, Path: pathPlaceOrder, Body: body, Signing: exchange.SigningKeyed}, nil
}

// Sign adds the OK-ACCESS-* headers. The prehash covers the path with its
// query string and the serialized body.
func (p *Protocol) Sign(out *exchange.Outbound, creds signer.Credentials, nonce int64) error {
	if out.Signing != exchange.SigningKeyed {
		return nil
	}
	payload, err := out.Payload()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrSigningFailed, err)
	}
	headers, err := p.keyed.Headers(creds, nonce, out.Method, out.RequestPath(), payload)
	if err != nil {
		return err
	}
	if out.Headers == nil {
		out.Headers = map[string]string{}
	}
	for k, v := range headers {
		out.Headers[k] = v
	}
	out.Headers["Content-Type"] = "application/json"
	return nil
}

func (p *Protocol) WebsocketRequest(*exchange.Outbound, int64) ([]byte, error) {
	return nil, fmt.Errorf("%w: okx requests are sent over rest", models.ErrUnsupportedOperation)
}

func (p *Protocol) DecodeResponse(req models.Request, status int, body []byte, received time.Time) ([]models.Message, error) {
	var resp response
	if err := exchange.Unmarshal(body, &resp); err != nil {
		if status >= http.StatusBadRequest {
			return []models.Message{errorMessage(req, string(body), status, received)}, nil
		}
		return nil, err
	}
	if status >= http.StatusBadRequest || resp.Code != "0" {
		text := resp.Msg
		if len(resp.Data) > 0 {
			var ack orderAck
			if err := exchange.Unmarshal(resp.Data[0], &ack); err == nil && ack.SMsg != "" {
				text = ack.SMsg
			}
		}
		if text == "" {
			text = "code " + resp.Code
		}
		return []models.Message{errorMessage(req, text, status, received)}, nil
	}

	var (
		elems []models.Element
		err   error
	)
	switch req.Operation {
	case models.OperationCreateOrder, models.OperationCancelOrder:
		elems, err = acks(req, resp.Data)
	case models.OperationGetOrder, models.OperationGetOpenOrders:
		elems, err = orders(resp.Data)
	case models.OperationGetAccountBalances:
		elems, err = balances(resp.Data)
	case models.OperationGetAccountPositions:
		elems, err = positions(resp.Data)
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

func errorMessage(req models.Request, text string, status int, received time.Time) models.Message {
	msg := models.NewMessage(models.MessageTypeResponseError, received, correlationIDs(req))
	elem := models.Element{models.FieldErrorMessage: text}
	if status >= http.StatusBadRequest {
		elem[models.FieldHTTPStatusCode] = strconv.Itoa(status)
	}
	msg.Elements = []models.Element{elem}
	return msg
}

func acks(req models.Request, data []json.RawMessage) ([]models.Element, error) {
	elems := make([]models.Element, 0, len(data))
	for _, raw := range data {
		var ack orderAck
		if err := exchange.Unmarshal(raw, &ack); err != nil {
			return nil, err
		}
		elem := models.Element{}
		elem.Insert(models.FieldOrderID, ack.OrdID)
		elem.Insert(models.FieldClientOrderID, ack.ClOrdID)
		if req.Operation == models.OperationCreateOrder {
			qty, _ := decimal.Normalize(req.Param(models.FieldQuantity))
			px, _ := decimal.Normalize(req.Param(models.FieldLimitPrice))
			elem.Insert(models.FieldInstrument, req.SymbolID)
			elem.Insert(models.FieldSide, strings.ToUpper(req.Param(models.FieldSide)))
			elem.Insert(models.FieldQuantity, qty)
			elem.Insert(models.FieldLimitPrice, px)
		}
		elems = append(elems, elem)
	}
	return elems, nil
}

func orders(data []json.RawMessage) ([]models.Element, error) {
	elems := make([]models.Element, 0, len(data))
	for _, raw := range data {
		var o orderDetail
		if err := exchange.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		elem := models.Element{}
		elem.Insert(models.FieldInstrument, o.InstID)
		elem.Insert(models.FieldOrderID, o.OrdID)
		elem.Insert(models.FieldClientOrderID, o.ClOrdID)
		elem.Insert(models.FieldSide, strings.ToUpper(o.Side))
		elem.Insert(models.FieldStatus, o.State)
		for name, v := range map[string][]byte{
			models.FieldLimitPrice:               o.Px,
			models.FieldQuantity:                 o.Sz,
			models.FieldCumulativeFilledQuantity: o.AccFillSz,
			models.FieldAverageFilledPrice:       o.AvgPx,
		} {
			n, err := exchange.Number(v)
			if err != nil {
				return nil, err
			}
			elem.Insert(name, n)
		}
		elems = append(elems, elem)
	}
	return elems, nil
}

func balances(data []json.RawMessage) ([]models.Element, error) {
	var elems []models.Element
	for _, raw := range data {
		var b balanceData
		if err := exchange.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		for _, d := range b.Details {
			avail, err := exchange.Number(d.AvailBal)
			if err != nil {
				return nil, err
			}
			total, err := exchange.Number(d.Eq)
			if err != nil {
				return nil, err
			}
			elem := models.Element{}
			elem.Insert(models.FieldAsset, d.Ccy)
			elem.Insert(models.FieldQuantityAvailable, avail)
			elem.Insert(models.FieldQuantityTotal, total)
			elems = append(elems, elem)
		}
	}
	return elems, nil
}

func positions(data []json.RawMessage) ([]models.Element, error) {
	elems := make([]models.Element, 0, len(data))
	for _, raw := range data {
		var pos positionData
		if err := exchange.Unmarshal(raw, &pos); err != nil {
			return nil, err
		}
		qtyText, err := exchange.Number(pos.Pos)
		if err != nil {
			return nil, err
		}
		if qtyText == "" {
			continue
		}
		qty, err := decimal.Parse(qtyText)
		if err != nil {
			return nil, err
		}

		elem := models.Element{}
		elem.Insert(models.FieldInstrument, pos.InstID)
		switch {
		case pos.PosSide == "long" || (pos.PosSide != "short" && qty.Sign() >= 0):
			elem.Insert(models.FieldPositionSide, models.PositionSideLong)
		default:
			elem.Insert(models.FieldPositionSide, models.PositionSideShort)
		}
		elem.Insert(models.FieldPositionQuantity, qty.Abs().String())
		for name, v := range map[string][]byte{
			models.FieldPositionEntryPrice: pos.AvgPx,
			models.FieldPositionCost:       pos.NotionalUsd,
			models.FieldPositionLeverage:   pos.Lever,
		} {
			n, err := exchange.Number(v)
			if err != nil {
				return nil, err
			}
			elem.Insert(name, n)
		}
		elems = append(elems, elem)
	}
	return elems, nil
}
