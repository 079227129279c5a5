package models

import "encoding/json"

// ── Messaging Provider ──────────────────────────────────────

// RobotUserIdPrefix marks user ids that belong to robots.
const RobotUserIdPrefix = "@RBT#"

// Messaging provider result codes with special meaning.
const (
	SubCodeRobotAlreadyExists = 660700002
)

// Messaging conversation and message types.
const (
	ConvTypeSingleChat = 0
	ConvTypeRoom       = 1
	ConvTypeGroupChat  = 2

	MsgTypeText    = 1
	MsgTypeCommand = 2
	MsgTypeImage   = 11
	MsgTypeFile    = 12
	MsgTypeAudio   = 13
	MsgTypeVideo   = 14
	MsgTypeCustom  = 200

	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
)

// EventSendMessage is the webhook event for a delivered message.
const EventSendMessage = "send_msg"

// RobotRegistration is the outcome of ensuring a robot identity exists.
type RobotRegistration struct {
	RobotId           string `json:"robot_id"`
	IsNewRegistration bool   `json:"is_new_registration"`
}

// PeerMessageEvent is the inbound messaging webhook payload. AppID is kept
// raw because the provider has sent it both as a number and as a string.
type PeerMessageEvent struct {
	AppID      json.RawMessage `json:"appid,omitempty"`
	Event      string          `json:"event"`
	ConvType   int             `json:"conv_type"`
	MsgType    int             `json:"msg_type"`
	SendResult int             `json:"send_result"`
	ConvID     string          `json:"conv_id"`
	FromUserID string          `json:"from_user_id"`
	MsgBody    string          `json:"msg_body"`
}

// HistoryMessage is one stored peer message.
type HistoryMessage struct {
	Sender     string `json:"Sender"`
	MsgType    int    `json:"MsgType"`
	SubMsgType int    `json:"SubMsgType,omitempty"`
	MsgBody    string `json:"MsgBody"`
	MsgSeq     int64  `json:"MsgSeq"`
	MsgTime    int64  `json:"MsgTime"`
	Payload    string `json:"Payload,omitempty"`
	IsEmpty    int    `json:"IsEmpty,omitempty"`
}

// MessageBody is the body of an outgoing peer message.
type MessageBody struct {
	Message      string `json:"Message"`
	ExtendedData string `json:"ExtendedData"`
}
