package gateway

import "encoding/json"

// WSRequest represents a WebSocket request message
type WSRequest struct {
	ReqIdentifier int32           `json:"req_identifier"` // Request type
	MsgIncr       string          `json:"msg_incr"`       // Client message counter/trace Id
	OperationId   string          `json:"operation_id"`   // Operation Id
	Data          json.RawMessage `json:"data"`           // Business data
}

// WSResponse represents a WebSocket response or push message
type WSResponse struct {
	ReqIdentifier int32           `json:"req_identifier"` // Request type (echo back)
	MsgIncr       string          `json:"msg_incr"`       // Message counter (echo back)
	OperationId   string          `json:"operation_id"`   // Operation Id (echo back)
	ErrCode       int             `json:"err_code"`       // Error code, 0 = success
	ErrMsg        string          `json:"err_msg"`        // Error message
	Data          json.RawMessage `json:"data,omitempty"` // Response data
}

// FilterClause matches rows whose column equals value
type FilterClause struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// SubscribeReq represents subscribe request data. Filter clauses are ORed,
// an empty filter matches every row the user may see.
type SubscribeReq struct {
	ChannelId string         `json:"channel_id"`
	Topic     string         `json:"topic"`
	Events    []string       `json:"events"`
	Filter    []FilterClause `json:"filter,omitempty"`
}

// SubscribeResp represents subscribe response data
type SubscribeResp struct {
	ChannelId string `json:"channel_id"`
}

// UnsubscribeReq represents unsubscribe request data
type UnsubscribeReq struct {
	ChannelId string `json:"channel_id"`
}

// ChangePush represents a row change pushed to one channel
type ChangePush struct {
	ChannelId string          `json:"channel_id"`
	Topic     string          `json:"topic"`
	Event     string          `json:"event"`
	Record    json.RawMessage `json:"record"`
	CommitAt  int64           `json:"commit_at"`
}

// Encode encodes data to JSON bytes
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes to struct
func Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
