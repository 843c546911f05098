// Package tui is a terminal client for the bridge, built on the
// facade: a chat list, a conversation pane, a composer, and a pairing
// screen rendering the QR code as text.
package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/ssantosv/zapbridge/internal/facade"
)

// App is the TUI application shell.
type App struct {
	app    *tview.Application
	pages  *tview.Pages
	client facade.Client

	statusBar *tview.TextView
	pairView  *tview.TextView
	chatList  *tview.List
	msgView   *tview.TextView
	composer  *tview.InputField

	chatIDs []string
	done    chan struct{}
}

// NewApp creates the TUI application over a facade client.
func NewApp(client facade.Client) *App {
	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		client:    client,
		statusBar: tview.NewTextView().SetDynamicColors(true),
		pairView:  tview.NewTextView().SetTextAlign(tview.AlignCenter),
		chatList:  tview.NewList().ShowSecondaryText(true),
		msgView:   tview.NewTextView().SetDynamicColors(true).SetWordWrap(true),
		composer:  tview.NewInputField().SetLabel("> "),
		done:      make(chan struct{}),
	}

	a.setupLayout()
	a.setupHandlers()
	return a
}

func (a *App) setupLayout() {
	a.chatList.SetBorder(true).SetTitle(" Chats ")
	a.msgView.SetBorder(true).SetTitle(" Messages ")
	a.pairView.SetBorder(true).SetTitle(" Pair your device ")

	chat := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	main := tview.NewFlex().
		AddItem(a.chatList, 36, 0, true).
		AddItem(chat, 0, 1, false)

	a.pages.AddPage("pairing", a.pairView, true, true)
	a.pages.AddPage("main", main, true, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
}

func (a *App) setupHandlers() {
	a.chatList.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		if index >= 0 && index < len(a.chatIDs) {
			a.client.GetMessages(a.chatIDs[index])
			a.app.SetFocus(a.composer)
		}
	})

	a.composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := a.composer.GetText()
		snap := a.client.Snapshot()
		if text == "" || snap.ActiveChatID == "" {
			return
		}
		a.client.SendMessage(snap.ActiveChatID, text)
		a.composer.SetText("")
	})

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.app.GetFocus() == a.composer {
			return event
		}
		switch event.Rune() {
		case 'q':
			a.app.Stop()
			return nil
		case 'r':
			a.client.ReconnectSession()
			return nil
		case 'd':
			a.client.DisconnectSession()
			return nil
		case 'c':
			a.client.GetChats()
			return nil
		}
		if event.Key() == tcell.KeyTab {
			if a.app.GetFocus() == a.chatList {
				a.app.SetFocus(a.composer)
			} else {
				a.app.SetFocus(a.chatList)
			}
			return nil
		}
		return event
	})
}

// Run starts the update loop and blocks until the UI exits.
func (a *App) Run() error {
	go a.watch()
	defer close(a.done)

	a.render(a.client.Snapshot())
	return a.app.Run()
}

func (a *App) watch() {
	for {
		select {
		case <-a.done:
			return
		case <-a.client.Updates():
			snap := a.client.Snapshot()
			a.app.QueueUpdateDraw(func() {
				a.render(snap)
			})
		}
	}
}

// render repaints every pane from one snapshot.
func (a *App) render(snap facade.Snapshot) {
	a.statusBar.SetText(statusLine(snap))

	if !snap.Connected {
		a.pairView.SetText(pairingScreen(snap))
		a.pages.SwitchToPage("pairing")
		return
	}
	a.pages.SwitchToPage("main")

	a.renderChats(snap)
	a.msgView.SetText(conversationText(snap))
	a.msgView.ScrollToEnd()
}

func (a *App) renderChats(snap facade.Snapshot) {
	current := a.chatList.GetCurrentItem()
	a.chatList.Clear()
	a.chatIDs = a.chatIDs[:0]
	for _, chat := range snap.Chats {
		name := chat.Name
		if name == "" {
			name = chat.ID
		}
		if chat.UnreadCount > 0 {
			name = fmt.Sprintf("%s (%d)", name, chat.UnreadCount)
		}
		a.chatList.AddItem(name, chat.LastMessage, 0, nil)
		a.chatIDs = append(a.chatIDs, chat.ID)
	}
	if current >= 0 && current < a.chatList.GetItemCount() {
		a.chatList.SetCurrentItem(current)
	}
}
