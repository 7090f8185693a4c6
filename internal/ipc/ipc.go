package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"runtime"

	"github.com/spf13/viper"
)

const windowsSocketPort = ":7074"

var commandID int
var osType = runtime.GOOS

func socketPath() string {
	path := viper.GetString("ipc_socket_path")
	if path == "" {
		path = "/tmp/securerent.sock"
	}
	return path
}

func generateCommandID() int {
	commandID++
	return commandID
}

func NewServer() (*Server, error) {
	var listener net.Listener
	var err error

	if osType == "windows" {
		// On Windows, use TCP socket
		listener, err = net.Listen("tcp", windowsSocketPort)
	} else {
		// On Unix-like systems, use Unix socket
		path := socketPath()
		if _, statErr := os.Stat(path); statErr == nil {
			// Remove stale socket file from a previous run
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("failed to remove existing socket file: %v", err)
			}
		}
		listener, err = net.Listen("unix", path)
	}

	if err != nil {
		return nil, err
	}

	server := &Server{
		listener:    listener,
		commands:    make(chan Command),
		connections: make(map[int]net.Conn),
		subscribers: make(map[net.Conn]bool),
	}

	go server.accept()

	return server, nil
}

func (s *Server) accept() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		s.RemoveSubscriber(conn)
		conn.Close()
	}()

	// Every connection receives session-change pushes until it issues a
	// command or disconnects.
	s.AddSubscriber(conn)

	buffer := make([]byte, 65536)

	for {
		n, err := conn.Read(buffer)
		if err != nil {
			if err != io.EOF {
				log.Printf("Failed to read from connection: %v", err)
			}
			return
		}

		var message struct {
			ID int `json:"id"`
		}

		if err := json.Unmarshal(buffer[:n], &message); err != nil {
			log.Printf("Failed to parse message: %v", err)
			continue
		}

		// Messages carrying an ID are commands awaiting a response.
		if message.ID > 0 {
			var cmd Command
			if err := json.Unmarshal(buffer[:n], &cmd); err != nil {
				log.Printf("Failed to unmarshal command: %v", err)
				continue
			}

			// The connection now awaits a response; stop pushing session
			// updates to it so the reply is the only thing it reads.
			s.mutex.Lock()
			delete(s.subscribers, conn)
			s.connections[cmd.ID] = conn
			s.mutex.Unlock()

			s.commands <- cmd
		}
	}
}

func (s *Server) Commands() <-chan Command {
	return s.commands
}

func (s *Server) SendResponse(id int, response Response) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	conn, exists := s.connections[id]
	if !exists {
		log.Printf("Connection for command ID %d not found", id)
		return
	}

	responseData, err := json.Marshal(response)
	if err != nil {
		log.Printf("Error marshaling response for command ID %d: %v", id, err)
		return
	}

	if _, err := conn.Write(responseData); err != nil {
		log.Printf("Error writing response for command ID %d: %v", id, err)
		return
	}

	// One command per connection; close after responding.
	conn.Close()
	delete(s.connections, id)
}

// BroadcastSession pushes a session snapshot to every subscribed connection.
func (s *Server) BroadcastSession(update SessionUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("Failed to marshal session update: %v", err)
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for conn := range s.subscribers {
		if _, err := conn.Write(data); err != nil {
			log.Printf("Failed to send session update: %v", err)
			delete(s.subscribers, conn)
		}
	}
}

func (s *Server) AddSubscriber(conn net.Conn) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.subscribers[conn] = true
}

func (s *Server) RemoveSubscriber(conn net.Conn) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.subscribers, conn)
}

func (s *Server) Close() error {
	return s.listener.Close()
}

func NewClient() (*Client, error) {
	var conn net.Conn
	var err error

	if osType == "windows" {
		conn, err = net.Dial("tcp", windowsSocketPort)
	} else {
		conn, err = net.Dial("unix", socketPath())
	}

	if err != nil {
		return nil, err
	}

	return &Client{conn: conn}, nil
}

func (c *Client) SendCommand(command string, args []string) (interface{}, error) {
	cmd := Command{
		ID:      generateCommandID(),
		Command: command,
		Args:    args,
	}

	cmdData, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("error marshaling command: %v", err)
	}

	if _, err := c.conn.Write(cmdData); err != nil {
		return nil, fmt.Errorf("error writing command to connection: %v", err)
	}

	responseData, err := io.ReadAll(c.conn)
	if err != nil {
		return nil, fmt.Errorf("error reading response from connection: %v", err)
	}

	var response Response
	if err := json.Unmarshal(responseData, &response); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %v", err)
	}

	if response.Error != "" {
		return nil, errors.New(response.Error)
	}

	return response.Result, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
