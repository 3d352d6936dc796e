package protocol

import "time"

const timestampLayout = "2006-01-02 15:04:05 MST"

// FormatUserMessage renders a chat line with its sender attribution, the
// way both the server broadcast and the client transcript display it.
func FormatUserMessage(username, text string) string {
	return "[CLIENT] " + username + "\n" + text + "\n"
}

// FormatServiceMessage renders a server-originated notice for the chat
// transcript.
func FormatServiceMessage(text string) string {
	return "[SERVER] SERVICE MESSAGE\n" + text + "\n"
}

// FormatLogLine prefixes an operator console line with the current time.
func FormatLogLine(text string) string {
	return time.Now().Format(timestampLayout) + " | " + text
}
