package hyperliquid

import "encoding/json"

// envelope is the outer frame of every websocket push.
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type subscriptionAck struct {
	Method       string       `json:"method"`
	Subscription subscription `json:"subscription"`
}

type subscription struct {
	Type string `json:"type"`
	Coin string `json:"coin,omitempty"`
	User string `json:"user,omitempty"`
}

type bookLevel struct {
	Px json.RawMessage `json:"px"`
	Sz json.RawMessage `json:"sz"`
	N  int64           `json:"n"`
}

type book struct {
	Coin   string          `json:"coin"`
	Time   json.RawMessage `json:"time"`
	Levels [][]bookLevel   `json:"levels"`
}

type trade struct {
	Coin string          `json:"coin"`
	Side string          `json:"side"`
	Px   json.RawMessage `json:"px"`
	Sz   json.RawMessage `json:"sz"`
	Time json.RawMessage `json:"time"`
	Tid  json.RawMessage `json:"tid"`
	Hash string          `json:"hash"`
}

type order struct {
	Coin      string          `json:"coin"`
	Side      string          `json:"side"`
	LimitPx   json.RawMessage `json:"limitPx"`
	Sz        json.RawMessage `json:"sz"`
	OrigSz    json.RawMessage `json:"origSz"`
	Oid       json.RawMessage `json:"oid"`
	Cloid     *string         `json:"cloid"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type orderUpdate struct {
	Order           order           `json:"order"`
	Status          string          `json:"status"`
	StatusTimestamp json.RawMessage `json:"statusTimestamp"`
}

type userFills struct {
	IsSnapshot bool   `json:"isSnapshot"`
	User       string `json:"user"`
	Fills      []fill `json:"fills"`
}

type fill struct {
	Coin     string          `json:"coin"`
	Px       json.RawMessage `json:"px"`
	Sz       json.RawMessage `json:"sz"`
	Side     string          `json:"side"`
	Time     json.RawMessage `json:"time"`
	Dir      string          `json:"dir"`
	Oid      json.RawMessage `json:"oid"`
	Crossed  bool            `json:"crossed"`
	Fee      json.RawMessage `json:"fee"`
	FeeToken string          `json:"feeToken"`
	Tid      json.RawMessage `json:"tid"`
	Cloid    *string         `json:"cloid"`
}

type postPush struct {
	ID       int64 `json:"id"`
	Response struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	} `json:"response"`
}

// exchangeResponse is the body of /exchange replies.
type exchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type exchangeData struct {
	Type string `json:"type"`
	Data struct {
		Statuses []json.RawMessage `json:"statuses"`
	} `json:"data"`
}

type orderStatus struct {
	Resting *struct {
		Oid   json.RawMessage `json:"oid"`
		Cloid *string         `json:"cloid"`
	} `json:"resting"`
	Filled *struct {
		Oid     json.RawMessage `json:"oid"`
		Cloid   *string         `json:"cloid"`
		TotalSz json.RawMessage `json:"totalSz"`
		AvgPx   json.RawMessage `json:"avgPx"`
	} `json:"filled"`
	Error *string `json:"error"`
}

type orderStatusInfo struct {
	Status string `json:"status"`
	Order  *struct {
		Order           order           `json:"order"`
		Status          string          `json:"status"`
		StatusTimestamp json.RawMessage `json:"statusTimestamp"`
	} `json:"order"`
}

type clearinghouseState struct {
	MarginSummary *struct {
		AccountValue json.RawMessage `json:"accountValue"`
		TotalRawUsd  json.RawMessage `json:"totalRawUsd"`
	} `json:"marginSummary"`
	Withdrawable   json.RawMessage `json:"withdrawable"`
	AssetPositions []struct {
		Position struct {
			Coin          string          `json:"coin"`
			Szi           json.RawMessage `json:"szi"`
			EntryPx       json.RawMessage `json:"entryPx"`
			PositionValue json.RawMessage `json:"positionValue"`
			Leverage      struct {
				Type  string          `json:"type"`
				Value json.RawMessage `json:"value"`
			} `json:"leverage"`
		} `json:"position"`
	} `json:"assetPositions"`
}

type meta struct {
	Universe []struct {
		Name       string `json:"name"`
		SzDecimals int    `json:"szDecimals"`
	} `json:"universe"`
}
