package hyperliquid

import (
	"encoding/json"
	"fmt"
	"time"

	"tradebridge/exchange"
	"tradebridge/internal/registry"
	"tradebridge/internal/symbols"
	"tradebridge/models"
	"tradebridge/signer"
)

type subscribeFrame struct {
	Method       string       `json:"method"`
	Subscription subscription `json:"subscription"`
}

type plannedSubscription struct {
	sub     models.Subscription
	channel string
	symbol  string
	wire    subscription
}

func (p *Protocol) plan(sub models.Subscription, creds signer.Credentials) (plannedSubscription, error) {
	ch, err := channelFor(sub.Field)
	if err != nil {
		return plannedSubscription{}, err
	}
	ps := plannedSubscription{sub: sub, channel: ch, wire: subscription{Type: ch}}
	switch ch {
	case channelBook, channelTrades:
		ps.symbol = symbols.Native(exchangeName, sub.SymbolID)
		ps.wire.Coin = ps.symbol
	default:
		if err := creds.Require(CredentialWalletAddress); err != nil {
			return plannedSubscription{}, err
		}
		ps.wire.User = creds.Get(CredentialWalletAddress)
	}
	return ps, nil
}

func (p *Protocol) CreateSubscribeMessages(conn registry.ConnectionID, subs []models.Subscription, reg *registry.Registry, creds signer.Credentials) ([][]byte, error) {
	plans := make([]plannedSubscription, 0, len(subs))
	for _, sub := range subs {
		ps, err := p.plan(sub, creds)
		if err != nil {
			return nil, err
		}
		plans = append(plans, ps)
	}

	var frames [][]byte
	for _, ps := range plans {
		ch, sym := registry.ChannelID(ps.channel), registry.SymbolID(ps.symbol)
		_, existed := reg.View(conn, ch, sym)
		reg.Register(conn, ch, sym, ps.sub.CorrelationID, registry.Options(ps.sub.Options))
		if ps.channel == channelBook {
			reg.SetReplace(conn, ch, sym, true)
		}
		reg.Route(conn, ps.channel+":"+ps.symbol, ch, sym)
		if existed {
			continue
		}
		frame, err := json.Marshal(subscribeFrame{Method: "subscribe", Subscription: ps.wire})
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (p *Protocol) CreateUnsubscribeMessages(conn registry.ConnectionID, sub models.Subscription, reg *registry.Registry, creds signer.Credentials) ([][]byte, error) {
	ps, err := p.plan(sub, creds)
	if err != nil {
		return nil, err
	}
	ch, sym := registry.ChannelID(ps.channel), registry.SymbolID(ps.symbol)
	if _, ok := reg.View(conn, ch, sym); !ok {
		return nil, nil
	}
	reg.Unregister(conn, ch, sym, sub.CorrelationID)
	if _, ok := reg.View(conn, ch, sym); ok {
		return nil, nil
	}
	frame, err := json.Marshal(subscribeFrame{Method: "unsubscribe", Subscription: ps.wire})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

func (p *Protocol) PingMessage() []byte {
	return []byte(`{"method":"ping"}`)
}

func (p *Protocol) DecodeMessage(conn registry.ConnectionID, raw []byte, view registry.Reader, received time.Time) ([]exchange.Decoded, error) {
	var env envelope
	if err := exchange.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	switch env.Channel {
	case channelPong:
		return nil, nil
	case channelAck:
		return decodeAck(conn, raw, env.Data, view, received)
	case channelError:
		return decodeError(env.Data, received)
	case channelBook:
		return decodeBook(conn, env.Data, view, received)
	case channelTrades:
		return decodeTrades(conn, env.Data, view, received)
	case channelOrderUpdates:
		return decodeOrderUpdates(conn, env.Data, view, received)
	case channelUserFills:
		return decodeUserFills(conn, env.Data, view, received)
	case channelPost:
		return decodePost(env.Data)
	case "":
		return nil, fmt.Errorf("%w: missing channel", models.ErrMalformedWireMessage)
	}
	return nil, fmt.Errorf("%w: channel %s", models.ErrUnroutableMessage, env.Channel)
}

func decodeAck(conn registry.ConnectionID, raw, data []byte, view registry.Reader, received time.Time) ([]exchange.Decoded, error) {
	var ack subscriptionAck
	if err := exchange.Unmarshal(data, &ack); err != nil {
		return nil, err
	}
	key := registry.StreamKey{Channel: registry.ChannelID(ack.Subscription.Type), Symbol: registry.SymbolID(ack.Subscription.Coin)}
	if ack.Method == "unsubscribe" {
		return exchange.EndedAck(conn, key, raw, view, received), nil
	}
	stream, ok := view.View(conn, key.Channel, key.Symbol)
	if !ok {
		return nil, fmt.Errorf("%w: ack for %s %s", models.ErrUnroutableMessage, ack.Subscription.Type, ack.Subscription.Coin)
	}

	msg := models.NewMessage(models.MessageTypeSubscriptionStarted, received, stream.CorrelationIDs)
	msg.Elements = []models.Element{{models.FieldInfoMessage: string(raw)}}
	return []exchange.Decoded{{EventType: models.EventTypeSubscriptionStatus, Message: msg}}, nil
}

func decodeError(data []byte, received time.Time) ([]exchange.Decoded, error) {
	text, err := exchange.Text(data)
	if err != nil {
		return nil, err
	}
	msg := models.NewMessage(models.MessageTypeSubscriptionFailure, received, nil)
	msg.Elements = []models.Element{{models.FieldErrorMessage: text}}
	return []exchange.Decoded{{EventType: models.EventTypeSubscriptionStatus, Message: msg}}, nil
}

func decodeBook(conn registry.ConnectionID, data []byte, view registry.Reader, received time.Time) ([]exchange.Decoded, error) {
	var b book
	if err := exchange.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	key := registry.StreamKey{Channel: channelBook, Symbol: registry.SymbolID(b.Coin)}
	stream, ok := view.View(conn, key.Channel, key.Symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", models.ErrUnroutableMessage, channelBook, b.Coin)
	}
	if len(b.Levels) != 2 {
		return nil, fmt.Errorf("%w: l2Book has %d sides", models.ErrMalformedWireMessage, len(b.Levels))
	}

	msg := models.NewMessage(models.MessageTypeMarketDepth, received, stream.CorrelationIDs)
	if ts, ok := exchange.Millis(b.Time); ok {
		msg.Time = ts
	}
	if !stream.SnapshotReceived {
		msg.RecapType = models.RecapTypeSolicited
	}
	msg.IsReplace = stream.IsReplace

	depth := stream.MaxDepth()
	sides := []struct {
		levels      []bookLevel
		price, size string
	}{
		{b.Levels[0], models.FieldBidPrice, models.FieldBidSize},
		{b.Levels[1], models.FieldAskPrice, models.FieldAskSize},
	}
	for _, side := range sides {
		for _, lvl := range exchange.Truncate(side.levels, depth) {
			px, err := exchange.Number(lvl.Px)
			if err != nil {
				return nil, err
			}
			sz, err := exchange.Number(lvl.Sz)
			if err != nil {
				return nil, err
			}
			msg.Elements = append(msg.Elements, models.Element{side.price: px, side.size: sz})
		}
	}

	return []exchange.Decoded{{EventType: models.EventTypeSubscriptionData, Message: msg, Stream: &key}}, nil
}

func decodeTrades(conn registry.ConnectionID, data []byte, view registry.Reader, received time.Time) ([]exchange.Decoded, error) {
	var trades []trade
	if err := exchange.Unmarshal(data, &trades); err != nil {
		return nil, err
	}

	out := make([]exchange.Decoded, 0, len(trades))
	for _, t := range trades {
		stream, ok := view.View(conn, channelTrades, registry.SymbolID(t.Coin))
		if !ok {
			return nil, fmt.Errorf("%w: %s %s", models.ErrUnroutableMessage, channelTrades, t.Coin)
		}
		px, err := exchange.Number(t.Px)
		if err != nil {
			return nil, err
		}
		sz, err := exchange.Number(t.Sz)
		if err != nil {
			return nil, err
		}
		tid, err := exchange.Text(t.Tid)
		if err != nil {
			return nil, err
		}

		msg := models.NewMessage(models.MessageTypeTrade, received, stream.CorrelationIDs)
		if ts, ok := exchange.Millis(t.Time); ok {
			msg.Time = ts
		}
		buyerMaker := "0"
		if t.Side == "B" {
			buyerMaker = "1"
		}
		msg.Elements = []models.Element{{
			models.FieldLastPrice:    px,
			models.FieldLastSize:     sz,
			models.FieldTradeID:      tid,
			models.FieldIsBuyerMaker: buyerMaker,
		}}
		out = append(out, exchange.Decoded{EventType: models.EventTypeSubscriptionData, Message: msg})
	}
	return out, nil
}

func decodeOrderUpdates(conn registry.ConnectionID, data []byte, view registry.Reader, received time.Time) ([]exchange.Decoded, error) {
	var updates []orderUpdate
	if err := exchange.Unmarshal(data, &updates); err != nil {
		return nil, err
	}
	stream, ok := view.View(conn, channelOrderUpdates, "")
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnroutableMessage, channelOrderUpdates)
	}

	out := make([]exchange.Decoded, 0, len(updates))
	for _, u := range updates {
		elem, err := orderElement(u.Order, u.Status)
		if err != nil {
			return nil, err
		}
		msg := models.NewMessage(models.MessageTypeOrderUpdate, received, stream.CorrelationIDs)
		if ts, ok := exchange.Millis(u.StatusTimestamp); ok {
			msg.Time = ts
		}
		msg.Elements = []models.Element{elem}
		out = append(out, exchange.Decoded{EventType: models.EventTypeSubscriptionData, Message: msg})
	}
	return out, nil
}

func decodeUserFills(conn registry.ConnectionID, data []byte, view registry.Reader, received time.Time) ([]exchange.Decoded, error) {
	var uf userFills
	if err := exchange.Unmarshal(data, &uf); err != nil {
		return nil, err
	}
	if uf.IsSnapshot {
		return nil, nil
	}
	stream, ok := view.View(conn, channelUserFills, "")
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnroutableMessage, channelUserFills)
	}

	out := make([]exchange.Decoded, 0, len(uf.Fills))
	for _, f := range uf.Fills {
		elem := models.Element{}
		fields := []struct {
			name    string
			raw     json.RawMessage
			numeric bool
		}{
			{models.FieldTradeID, f.Tid, false},
			{models.FieldLastExecutedPrice, f.Px, true},
			{models.FieldLastExecutedSize, f.Sz, true},
			{models.FieldOrderID, f.Oid, false},
			{models.FieldFeeQuantity, f.Fee, true},
		}
		for _, fd := range fields {
			v, err := value(fd.raw, fd.numeric)
			if err != nil {
				return nil, err
			}
			elem.Insert(fd.name, v)
		}
		elem.Insert(models.FieldSide, canonicalSide(f.Side))
		elem.Insert(models.FieldInstrument, f.Coin)
		elem.Insert(models.FieldFeeAsset, f.FeeToken)
		// dir is the venue's own wording, e.g. "Open Long" or "Close Short".
		elem.Insert(models.FieldPositionSide, f.Dir)
		if f.Cloid != nil {
			elem.Insert(models.FieldClientOrderID, *f.Cloid)
		}
		if f.Crossed {
			elem[models.FieldIsMaker] = "0"
		} else {
			elem[models.FieldIsMaker] = "1"
		}

		msg := models.NewMessage(models.MessageTypePrivateTrade, received, stream.CorrelationIDs)
		if ts, ok := exchange.Millis(f.Time); ok {
			msg.Time = ts
		}
		msg.Elements = []models.Element{elem}
		out = append(out, exchange.Decoded{EventType: models.EventTypeSubscriptionData, Message: msg})
	}
	return out, nil
}

func decodePost(data []byte) ([]exchange.Decoded, error) {
	var push postPush
	if err := exchange.Unmarshal(data, &push); err != nil {
		return nil, err
	}
	if push.ID == 0 {
		return nil, fmt.Errorf("%w: post without id", models.ErrMalformedWireMessage)
	}
	payload := push.Response.Payload
	if push.Response.Type == "info" {
		var info struct {
			Data json.RawMessage `json:"data"`
		}
		if err := exchange.Unmarshal(payload, &info); err == nil && len(info.Data) > 0 {
			payload = info.Data
		}
	}
	return []exchange.Decoded{{
		EventType:  models.EventTypeResponse,
		PostID:     push.ID,
		Payload:    payload,
		PostFailed: push.Response.Type == "error",
	}}, nil
}

func value(raw json.RawMessage, numeric bool) (string, error) {
	if numeric {
		return exchange.Number(raw)
	}
	return exchange.Text(raw)
}

// orderElement maps an order object. sz is the unfilled remainder, so the
// filled amount is origSz - sz.
func orderElement(o order, status string) (models.Element, error) {
	elem := models.Element{}
	oid, err := exchange.Text(o.Oid)
	if err != nil {
		return nil, err
	}
	elem.Insert(models.FieldOrderID, oid)
	if o.Cloid != nil {
		elem.Insert(models.FieldClientOrderID, *o.Cloid)
	}
	elem.Insert(models.FieldSide, canonicalSide(o.Side))
	elem.Insert(models.FieldInstrument, o.Coin)
	elem.Insert(models.FieldStatus, status)

	limitPx, err := exchange.Number(o.LimitPx)
	if err != nil {
		return nil, err
	}
	elem.Insert(models.FieldLimitPrice, limitPx)

	remaining, err := exchange.Number(o.Sz)
	if err != nil {
		return nil, err
	}
	elem.Insert(models.FieldRemainingQuantity, remaining)

	orig, err := exchange.Number(o.OrigSz)
	if err != nil {
		return nil, err
	}
	elem.Insert(models.FieldQuantity, orig)

	if orig != "" && remaining != "" {
		filled, err := subtract(orig, remaining)
		if err != nil {
			return nil, err
		}
		elem.Insert(models.FieldCumulativeFilledQuantity, filled)
	}
	return elem, nil
}
