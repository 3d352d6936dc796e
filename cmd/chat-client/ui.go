package main

import (
	"fmt"
	"strings"

	"github.com/jroimartin/gocui"
)

// ChatUI is the participant's terminal front end: a transcript pane, an
// online-users pane, a status bar, and an input line.
type ChatUI struct {
	gui    *gocui.Gui
	client *Client
	addr   string

	msgView    string
	userView   string
	statusView string
	inputView  string
}

func NewChatUI(client *Client, addr string) (*ChatUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	ui := &ChatUI{
		gui:        g,
		client:     client,
		addr:       addr,
		msgView:    "messages",
		userView:   "users",
		statusView: "status",
		inputView:  "input",
	}

	g.SetManagerFunc(ui.layout)
	return ui, nil
}

func (ui *ChatUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	sidebarWidth := 24
	msgWidth := maxX - sidebarWidth - 1
	msgHeight := maxY - 5

	if v, err := g.SetView(ui.msgView, 0, 0, msgWidth, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Messages"
		v.Wrap = true
		v.Autoscroll = true
	}

	if v, err := g.SetView(ui.userView, msgWidth+1, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Online Users"
		v.Wrap = true
		ui.UpdateUsers(ui.client.Users())
	}

	if v, err := g.SetView(ui.statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
		v.Wrap = true
		fmt.Fprintf(v, "Connected to %s | Ctrl-C: Quit | Enter: Send", ui.addr)
	}

	if v, err := g.SetView(ui.inputView, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Input"
		v.Editable = true
		v.Wrap = true

		if _, err := g.SetCurrentView(ui.inputView); err != nil {
			return err
		}
	}

	return nil
}

// AddMessage appends a line to the transcript pane.
func (ui *ChatUI) AddMessage(text string) {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(ui.msgView)
		if err != nil {
			return err
		}
		fmt.Fprintln(v, strings.TrimRight(text, "\n"))
		return nil
	})
}

// UpdateUsers redraws the online-users pane.
func (ui *ChatUI) UpdateUsers(usernames []string) {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(ui.userView)
		if err != nil {
			return err
		}
		v.Clear()
		for _, username := range usernames {
			fmt.Fprintln(v, username)
		}
		return nil
	})
}

func (ui *ChatUI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			ui.client.Disconnect()
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	return ui.gui.SetKeybinding(ui.inputView, gocui.KeyEnter, gocui.ModNone, ui.handleInput)
}

func (ui *ChatUI) handleInput(_ *gocui.Gui, v *gocui.View) error {
	input := strings.TrimSpace(v.Buffer())
	v.Clear()
	if err := v.SetCursor(0, 0); err != nil {
		return err
	}
	if input == "" {
		return nil
	}

	if err := ui.client.SendText(input); err != nil {
		ui.AddMessage("Error sending the message")
	}
	return nil
}

// Quit unblocks the main loop, for use from outside the UI goroutine.
func (ui *ChatUI) Quit() {
	ui.gui.Update(func(*gocui.Gui) error {
		return gocui.ErrQuit
	})
}

func (ui *ChatUI) Run() error {
	if err := ui.keybindings(); err != nil {
		return err
	}

	if err := ui.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

func (ui *ChatUI) Close() {
	ui.gui.Close()
}
