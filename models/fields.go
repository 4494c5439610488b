package models

// Canonical element field names.
const (
	FieldBidPrice                 = "BID_PRICE"
	FieldBidSize                  = "BID_SIZE"
	FieldAskPrice                 = "ASK_PRICE"
	FieldAskSize                  = "ASK_SIZE"
	FieldLastPrice                = "LAST_PRICE"
	FieldLastSize                 = "LAST_SIZE"
	FieldTradeID                  = "TRADE_ID"
	FieldIsBuyerMaker             = "IS_BUYER_MAKER"
	FieldOrderID                  = "ORDER_ID"
	FieldClientOrderID            = "CLIENT_ORDER_ID"
	FieldSide                     = "SIDE"
	FieldQuantity                 = "QUANTITY"
	FieldLimitPrice               = "LIMIT_PRICE"
	FieldCumulativeFilledQuantity = "CUMULATIVE_FILLED_QUANTITY"
	FieldRemainingQuantity        = "REMAINING_QUANTITY"
	FieldAverageFilledPrice       = "AVERAGE_FILLED_PRICE"
	FieldStatus                   = "STATUS"
	FieldInstrument               = "INSTRUMENT"
	FieldLastExecutedPrice        = "LAST_EXECUTED_PRICE"
	FieldLastExecutedSize         = "LAST_EXECUTED_SIZE"
	FieldIsMaker                  = "IS_MAKER"
	FieldFeeQuantity              = "FEE_QUANTITY"
	FieldFeeAsset                 = "FEE_ASSET"
	FieldAsset                    = "ASSET"
	FieldQuantityAvailable        = "QUANTITY_AVAILABLE_FOR_TRADING"
	FieldQuantityTotal            = "QUANTITY_TOTAL"
	FieldPositionSide             = "POSITION_SIDE"
	FieldPositionQuantity         = "POSITION_QUANTITY"
	FieldPositionEntryPrice       = "POSITION_ENTRY_PRICE"
	FieldPositionCost             = "POSITION_COST"
	FieldPositionLeverage         = "POSITION_LEVERAGE"
	FieldErrorMessage             = "ERROR_MESSAGE"
	FieldInfoMessage              = "INFO_MESSAGE"
	FieldHTTPStatusCode           = "HTTP_STATUS_CODE"
	FieldExchange                 = "EXCHANGE"
)

// Canonical side and position side values.
const (
	SideBuy           = "BUY"
	SideSell          = "SELL"
	PositionSideLong  = "LONG"
	PositionSideShort = "SHORT"
)

// Subscription fields.
const (
	SubscriptionFieldMarketDepth  = "MARKET_DEPTH"
	SubscriptionFieldTrade        = "TRADE"
	SubscriptionFieldOrderUpdate  = "ORDER_UPDATE"
	SubscriptionFieldPrivateTrade = "PRIVATE_TRADE"
)

// Subscription and request option names.
const (
	OptionMarketDepthMax = "MARKET_DEPTH_MAX"
	ParamTimeInForce     = "timeInForce"
	ParamReduceOnly      = "reduceOnly"
	ParamOrderType       = "orderType"
)
