package okx

import "encoding/json"

type arg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId,omitempty"`
}

type opFrame struct {
	Op   string `json:"op"`
	Args []arg  `json:"args"`
}

// push is every frame OKX sends on the public socket: either an event
// (subscribe, unsubscribe, error) or channel data.
type push struct {
	Event  string          `json:"event"`
	Arg    *arg            `json:"arg"`
	Code   string          `json:"code"`
	Msg    string          `json:"msg"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type bookData struct {
	Asks [][]json.RawMessage `json:"asks"`
	Bids [][]json.RawMessage `json:"bids"`
	Ts   json.RawMessage     `json:"ts"`
}

type tradeData struct {
	InstID  string          `json:"instId"`
	TradeID json.RawMessage `json:"tradeId"`
	Px      json.RawMessage `json:"px"`
	Sz      json.RawMessage `json:"sz"`
	Side    string          `json:"side"`
	Ts      json.RawMessage `json:"ts"`
}

// response is the REST envelope.
type response struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Data []json.RawMessage `json:"data"`
}

type orderAck struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

type orderDetail struct {
	InstID    string          `json:"instId"`
	OrdID     string          `json:"ordId"`
	ClOrdID   string          `json:"clOrdId"`
	Px        json.RawMessage `json:"px"`
	Sz        json.RawMessage `json:"sz"`
	Side      string          `json:"side"`
	State     string          `json:"state"`
	AccFillSz json.RawMessage `json:"accFillSz"`
	AvgPx     json.RawMessage `json:"avgPx"`
	UTime     json.RawMessage `json:"uTime"`
}

type balanceData struct {
	Details []struct {
		Ccy      string          `json:"ccy"`
		AvailBal json.RawMessage `json:"availBal"`
		Eq       json.RawMessage `json:"eq"`
	} `json:"details"`
}

type positionData struct {
	InstID      string          `json:"instId"`
	Pos         json.RawMessage `json:"pos"`
	PosSide     string          `json:"posSide"`
	AvgPx       json.RawMessage `json:"avgPx"`
	NotionalUsd json.RawMessage `json:"notionalUsd"`
	Lever       json.RawMessage `json:"lever"`
}
