package ipc

import (
	"net"
	"sync"
)

type Command struct {
	ID      int      `json:"id"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

type Response struct {
	ID     int         `json:"id"`
	Error  string      `json:"error,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// SessionUpdate is pushed to every connected client whenever the wallet
// session changes (connect, disconnect, account or network switch).
type SessionUpdate struct {
	Account   string `json:"account,omitempty"`
	HasSigner bool   `json:"hasSigner"`
	Ready     bool   `json:"ready"`
}

type Server struct {
	listener    net.Listener
	commands    chan Command
	mutex       sync.Mutex
	connections map[int]net.Conn // Maps command ID to the client connection
	subscribers map[net.Conn]bool
}

type Client struct {
	conn net.Conn
}
