package okx

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

func (p *Protocol) streamArg(sub models.Subscription) (arg, error) {
	depth := registry.Stream{Options: registry.Options(sub.Options)}.MaxDepth()
	ch, err := channelFor(sub, depth)
	if err != nil {
		return arg{}, err
	}
	return arg{Channel: ch, InstID: symbols.Native(exchangeName, sub.SymbolID)}, nil
}

// CreateSubscribeMessages batches every stream new to conn into one frame.
func (p *Protocol) CreateSubscribeMessages(conn registry.ConnectionID, subs []models.Subscription, reg *registry.Registry, _ signer.Credentials) ([][]byte, error) {
	args := make([]arg, 0, len(subs))
	for _, sub := range subs {
		a, err := p.streamArg(sub)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}

	frame := opFrame{Op: "subscribe"}
	for i, a := range args {
		ch, sym := registry.ChannelID(a.Channel), registry.SymbolID(a.InstID)
		_, existed := reg.View(conn, ch, sym)
		reg.Register(conn, ch, sym, subs[i].CorrelationID, registry.Options(subs[i].Options))
		if a.Channel == channelBooks5 {
			reg.SetReplace(conn, ch, sym, true)
		}
		reg.Route(conn, a.Channel+":"+a.InstID, ch, sym)
		if !existed {
			frame.Args = append(frame.Args, a)
		}
	}
	if len(frame.Args) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, err
	}
	return [][]byte{data}, nil
}

func (p *Protocol) CreateUnsubscribeMessages(conn registry.ConnectionID, sub models.Subscription, reg *registry.Registry, _ signer.Credentials) ([][]byte, error) {
	a, err := p.streamArg(sub)
	if err != nil {
		return nil, err
	}
	ch, sym := registry.ChannelID(a.Channel), registry.SymbolID(a.InstID)
	if _, ok := reg.View(conn, ch, sym); !ok {
		return nil, nil
	}
	reg.Unregister(conn, ch, sym, sub.CorrelationID)
	if _, ok := reg.View(conn, ch, sym); ok {
		return nil, nil
	}
	data, err := json.Marshal(opFrame{Op: "unsubscribe", Args: []arg{a}})
	if err != nil {
		return nil, err
	}
	return [][]byte{data}, nil
}

func (p *Protocol) PingMessage() []byte {
	return []byte("ping")
}

func (p *Protocol) DecodeMessage(conn registry.ConnectionID, raw []byte, view registry.Reader, received time.Time) ([]exchange.Decoded, error) {
	if string(raw) == "pong" {
		return nil, nil
	}
	var msg push
	if err := exchange.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}

	switch msg.Event {
	case "subscribe", "unsubscribe":
		return decodeAck(conn, raw, msg, view, received)
	case "error":
		out := models.NewMessage(models.MessageTypeSubscriptionFailure, received, nil)
		out.Elements = []models.Element{{models.FieldErrorMessage: msg.Code + ": " + msg.Msg}}
		return []exchange.Decoded{{EventType: models.EventTypeSubscriptionStatus, Message: out}}, nil
	case "":
	default:
		return nil, nil
	}

	if msg.Arg == nil || msg.Arg.Channel == "" {
		return nil, fmt.Errorf("%w: missing arg", models.ErrMalformedWireMessage)
	}
	switch msg.Arg.Channel {
	case channelBooks, channelBooks5:
		return decodeBooks(conn, *msg.Arg, msg.Data, view, received)
	case channelTrades:
		return decodeTrades(conn, *msg.Arg, msg.Data, view, received)
	}
	return nil, fmt.Errorf("%w: channel %s", models.ErrUnroutableMessage, msg.Arg.Channel)
}

func decodeAck(conn registry.ConnectionID, raw []byte, msg push, view registry.Reader, received time.Time) ([]exchange.Decoded, error) {
	if msg.Arg == nil {
		return nil, fmt.Errorf("%w: %s ack without arg", models.ErrMalformedWireMessage, msg.Event)
	}
	key := registry.StreamKey{Channel: registry.ChannelID(msg.Arg.Channel), Symbol: registry.SymbolID(msg.Arg.InstID)}
	if msg.Event != "subscribe" {
		return exchange.EndedAck(conn, key, raw, view, received), nil
	}
	stream, ok := view.View(conn, key.Channel, key.Symbol)
	if !ok {
		return nil, fmt.Errorf("%w: ack for %s %s", models.ErrUnroutableMessage, msg.Arg.Channel, msg.Arg.InstID)
	}
	out := models.NewMessage(models.MessageTypeSubscriptionStarted, received, stream.CorrelationIDs)
	out.Elements = []models.Element{{models.FieldInfoMessage: string(raw)}}
	return []exchange.Decoded{{EventType: models.EventTypeSubscriptionStatus, Message: out}}, nil
}

func decodeBooks(conn registry.ConnectionID, a arg, data []byte, view registry.Reader, received time.Time) ([]exchange.Decoded, error) {
	key := registry.StreamKey{Channel: registry.ChannelID(a.Channel), Symbol: registry.SymbolID(a.InstID)}
	stream, ok := view.View(conn, key.Channel, key.Symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", models.ErrUnroutableMessage, a.Channel, a.InstID)
	}
	var books []bookData
	if err := exchange.Unmarshal(data, &books); err != nil {
		return nil, err
	}

	depth := stream.MaxDepth()
	snapshot := stream.SnapshotReceived
	out := make([]exchange.Decoded, 0, len(books))
	for _, b := range books {
		msg := models.NewMessage(models.MessageTypeMarketDepth, received, stream.CorrelationIDs)
		if ts, ok := exchange.Millis(b.Ts); ok {
			msg.Time = ts
		}
		if !snapshot {
			msg.RecapType = models.RecapTypeSolicited
			snapshot = true
		}
		msg.IsReplace = stream.IsReplace

		for _, side := range []struct {
			levels      [][]json.RawMessage
			price, size string
		}{
			{b.Bids, models.FieldBidPrice, models.FieldBidSize},
			{b.Asks, models.FieldAskPrice, models.FieldAskSize},
		} {
			for _, lvl := range exchange.Truncate(side.levels, depth) {
				if len(lvl) < 2 {
					return nil, fmt.Errorf("%w: short book level", models.ErrMalformedWireMessage)
				}
				px, err := exchange.Number(lvl[0])
				if err != nil {
					return nil, err
				}
				sz, err := exchange.Number(lvl[1])
				if err != nil {
					return nil, err
				}
				msg.Elements = append(msg.Elements, models.Element{side.price: px, side.size: sz})
			}
		}
		k := key
		out = append(out, exchange.Decoded{EventType: models.EventTypeSubscriptionData, Message: msg, Stream: &k})
	}
	return out, nil
}

func decodeTrades(conn registry.ConnectionID, a arg, data []byte, view registry.Reader, received time.Time) ([]exchange.Decoded, error) {
	var trades []tradeData
	if err := exchange.Unmarshal(data, &trades); err != nil {
		return nil, err
	}

	out := make([]exchange.Decoded, 0, len(trades))
	for _, t := range trades {
		instID := t.InstID
		if instID == "" {
			instID = a.InstID
		}
		stream, ok := view.View(conn, channelTrades, registry.SymbolID(instID))
		if !ok {
			return nil, fmt.Errorf("%w: %s %s", models.ErrUnroutableMessage, channelTrades, instID)
		}
		px, err := exchange.Number(t.Px)
		if err != nil {
			return nil, err
		}
		sz, err := exchange.Number(t.Sz)
		if err != nil {
			return nil, err
		}
		tid, err := exchange.Text(t.TradeID)
		if err != nil {
			return nil, err
		}

		msg := models.NewMessage(models.MessageTypeTrade, received, stream.CorrelationIDs)
		if ts, ok := exchange.Millis(t.Ts); ok {
			msg.Time = ts
		}
		buyerMaker := "0"
		if t.Side == "sell" {
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
