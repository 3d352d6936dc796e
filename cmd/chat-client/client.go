package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/netchat-io/netchat/internal/protocol"
)

// ErrAborted reports that the operator cancelled the credential prompt.
// Distinct from bad credentials, which the server answers with LOGIN_ERROR.
var ErrAborted = errors.New("login aborted by user")

// CredentialProvider supplies the username and password for the handshake.
type CredentialProvider interface {
	Username() (string, error)
	Password() (string, error)
}

// Client is the chat participant's side of the protocol: it answers the
// server's handshake requests and then tracks the online-user set while
// relaying chat lines.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	sendMu sync.Mutex

	usersMu sync.Mutex
	users   map[string]struct{}
}

// Dial connects to the chat server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		users:  make(map[string]struct{}),
	}, nil
}

func (c *Client) send(env protocol.Envelope) error {
	frame, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	_, err = c.conn.Write(append(frame, '\n'))
	return err
}

func (c *Client) receive() (protocol.Envelope, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return protocol.Envelope{}, err
	}
	return protocol.Decode([]byte(line))
}

// Login drives the handshake until the server accepts, the provider aborts,
// or the connection fails. On LOGIN_ERROR the server re-requests
// credentials, so the loop simply keeps answering.
func (c *Client) Login(creds CredentialProvider, onNotice func(string)) error {
	for {
		response, err := c.receive()
		if err != nil {
			return fmt.Errorf("receiving handshake message: %w", err)
		}

		switch response.Kind {
		case protocol.KindRequestUsername:
			username, err := creds.Username()
			if err != nil {
				c.abort()
				return err
			}
			if err := c.send(protocol.NewText(protocol.KindNewUsername, username)); err != nil {
				return err
			}

		case protocol.KindRequestPassword:
			password, err := creds.Password()
			if err != nil {
				c.abort()
				return err
			}
			if err := c.send(protocol.NewText(protocol.KindNewPassword, password)); err != nil {
				return err
			}

		case protocol.KindLoginError:
			onNotice("You entered an incorrect username or password, enter other ones...")

		case protocol.KindLoginAccepted:
			c.usersMu.Lock()
			c.users = make(map[string]struct{}, len(response.Usernames))
			for _, username := range response.Usernames {
				c.users[username] = struct{}{}
			}
			c.usersMu.Unlock()
			return nil
		}
	}
}

// abort tells the server this socket is giving up mid-handshake.
func (c *Client) abort() {
	_ = c.send(protocol.NewSignal(protocol.KindDisconnect))
	_ = c.conn.Close()
}

// Users returns a sorted copy of the known online usernames.
func (c *Client) Users() []string {
	c.usersMu.Lock()
	defer c.usersMu.Unlock()

	names := make([]string, 0, len(c.users))
	for username := range c.users {
		names = append(names, username)
	}
	sort.Strings(names)
	return names
}

// Run receives server messages until the connection ends, invoking
// onMessage for every transcript line and onUsers when the online set
// changes.
func (c *Client) Run(onMessage func(string), onUsers func([]string)) error {
	for {
		response, err := c.receive()
		if err != nil {
			return err
		}

		switch response.Kind {
		case protocol.KindTextMessage:
			onMessage(response.Text)

		case protocol.KindNewUserAdded:
			c.usersMu.Lock()
			c.users[response.Text] = struct{}{}
			c.usersMu.Unlock()
			onMessage(protocol.FormatServiceMessage("The user " + response.Text + " joined to the chat"))
			onUsers(c.Users())

		case protocol.KindUserDeleted:
			c.usersMu.Lock()
			delete(c.users, response.Text)
			c.usersMu.Unlock()
			onMessage(protocol.FormatServiceMessage("The user " + response.Text + " left from the chat"))
			onUsers(c.Users())
		}
	}
}

// SendText submits one chat line.
func (c *Client) SendText(text string) error {
	return c.send(protocol.NewText(protocol.KindTextMessage, text))
}

// Disconnect announces the departure and closes the socket.
func (c *Client) Disconnect() {
	_ = c.send(protocol.NewSignal(protocol.KindDisconnect))
	_ = c.conn.Close()
}
