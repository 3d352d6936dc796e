package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/netchat-io/netchat/internal/protocol"
	"github.com/netchat-io/netchat/internal/server"
)

// consoleObserver mirrors presence changes onto the operator console.
type consoleObserver struct{}

func (consoleObserver) UserAdded(username string) {
	fmt.Println(protocol.FormatLogLine("The user " + username + " joined to the chat"))
}

func (consoleObserver) UserRemoved(username string) {
	fmt.Println(protocol.FormatLogLine("The user " + username + " left from the chat"))
}

func main() {
	fmt.Println("Starting chat server...")

	config := server.NewConfigFromEnv()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	srv := server.NewServer(config, logger)
	srv.Subscribe(consoleObserver{})

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := srv.Stop(); err != nil {
		log.Fatalf("Failed to stop server: %v", err)
	}
}
