package models

// ConnState 连接状态，由连接状态机独占维护，其他组件只读
type ConnState string

const (
	ConnStateDisconnected  ConnState = "disconnected"
	ConnStateConnecting    ConnState = "connecting"
	ConnStateConnected     ConnState = "connected"
	ConnStateDisconnecting ConnState = "disconnecting"
	ConnStateError         ConnState = "error"
)
