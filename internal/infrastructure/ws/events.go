package ws

// Inbound event types.
const (
	Authenticate    = "authenticate"
	JoinTicket      = "joinTicket"
	LeaveTicket     = "leaveTicket"
	TypingSignal    = "typing"
	SendMessage     = "sendMessage"
	MessageSeen     = "messageSeen"
	CheckUserStatus = "checkUserStatus"
	Ping            = "ping"
)

// Outbound event types.
const (
	Authenticated   = "authenticated"
	Joined          = "joinedTicket"
	Left            = "leftTicket"
	NewMessage      = "newMessage"
	MessageReceived = "messageReceived"
	UserTyping      = "userTyping"
	UserStopTyping  = "userStopTyping"
	UserOnline      = "userOnline"
	UserStatus      = "userStatus"
	Pong            = "pong"
	ErrorEvent      = "error"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)
