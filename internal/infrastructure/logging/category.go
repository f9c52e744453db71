package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	Websocket       Category = "Websocket"
	Chat            Category = "Chat"
	MongoDB         Category = "MongoDB"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	Auth            Category = "Auth"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Chat
	Connect    SubCategory = "Connect"
	Disconnect SubCategory = "Disconnect"
	Join       SubCategory = "Join"
	Leave      SubCategory = "Leave"
	Send       SubCategory = "Send"
	Typing     SubCategory = "Typing"
	Rejected   SubCategory = "Rejected"

	// Infrastructure
	Read    SubCategory = "Read"
	Write   SubCategory = "Write"
	Publish SubCategory = "Publish"
	Cache   SubCategory = "Cache"
	Verify  SubCategory = "Verify"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"

	ConnectionID ExtraKey = "ConnectionId"
	IdentityID   ExtraKey = "IdentityId"
	TicketID     ExtraKey = "TicketId"
	MessageID    ExtraKey = "MessageId"
	EventType    ExtraKey = "EventType"
	Reason       ExtraKey = "Reason"
)
