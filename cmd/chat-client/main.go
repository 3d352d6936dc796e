package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/netchat-io/netchat/internal/protocol"
)

// promptCredentials reads whatever the flags did not supply from stdin. An
// empty reply means the operator gave up, which surfaces as ErrAborted
// rather than a failed login.
type promptCredentials struct {
	username string
	password string
	stdin    *bufio.Reader
}

func (p *promptCredentials) Username() (string, error) {
	return p.value(p.username, "Username: ")
}

func (p *promptCredentials) Password() (string, error) {
	return p.value(p.password, "Session password: ")
}

func (p *promptCredentials) value(preset, prompt string) (string, error) {
	if preset != "" {
		return preset, nil
	}

	fmt.Print(prompt)
	line, err := p.stdin.ReadString('\n')
	if err != nil {
		return "", ErrAborted
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ErrAborted
	}
	return line, nil
}

func main() {
	addr := flag.String("addr", "localhost:5000", "chat server address")
	username := flag.String("username", "", "username to join with (prompted if empty)")
	password := flag.String("password", "", "session password (prompted if empty)")
	flag.Parse()

	client, err := Dial(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}

	creds := &promptCredentials{
		username: *username,
		password: *password,
		stdin:    bufio.NewReader(os.Stdin),
	}
	if err := client.Login(creds, func(notice string) {
		fmt.Println(notice)
	}); err != nil {
		if errors.Is(err, ErrAborted) {
			fmt.Println("Login aborted.")
			return
		}
		log.Fatalf("Failed to log in: %v", err)
	}

	ui, err := NewChatUI(client, *addr)
	if err != nil {
		log.Fatalf("Failed to start UI: %v", err)
	}
	defer ui.Close()

	ui.AddMessage(protocol.FormatServiceMessage("Your name is accepted! Welcome to common chat!"))
	ui.UpdateUsers(client.Users())

	go func() {
		err := client.Run(ui.AddMessage, ui.UpdateUsers)
		if err != nil {
			ui.AddMessage(protocol.FormatServiceMessage("Connection to the server was lost"))
		}
		ui.Quit()
	}()

	if err := ui.Run(); err != nil {
		log.Fatalf("UI error: %v", err)
	}
}
