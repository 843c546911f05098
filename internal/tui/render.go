package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/ssantosv/zapbridge/internal/chatnet"
	"github.com/ssantosv/zapbridge/internal/facade"
)

// statusLine summarizes the snapshot for the bottom bar.
func statusLine(snap facade.Snapshot) string {
	var b strings.Builder
	if snap.Connected {
		b.WriteString("[green]connected[-]")
	} else if snap.PairingCode != "" {
		b.WriteString("[yellow]awaiting pairing[-]")
	} else {
		b.WriteString("[red]disconnected[-]")
	}
	if snap.Err != "" {
		fmt.Fprintf(&b, "  [red]%s[-]", tview.Escape(snap.Err))
	}
	b.WriteString("  q:quit r:reconnect d:disconnect c:chats")
	return b.String()
}

// pairingScreen renders the pairing state, with the code as a terminal
// QR when one is pending.
func pairingScreen(snap facade.Snapshot) string {
	if snap.PairingCode == "" {
		return "\n\nSession disconnected.\n\nPress r to reconnect."
	}
	qr, err := qrcode.New(snap.PairingCode, qrcode.Medium)
	if err != nil {
		return "\n\nScan failed to render; code:\n\n" + snap.PairingCode
	}
	return "\nScan with your phone to pair:\n\n" + qr.ToSmallString(false)
}

// conversationText lays the active conversation out as aligned lines.
func conversationText(snap facade.Snapshot) string {
	if snap.ActiveChatID == "" {
		return "Select a chat to start."
	}
	var b strings.Builder
	for _, msg := range snap.Messages {
		ts := time.Unix(msg.Timestamp, 0).Format("15:04")
		if msg.Direction == chatnet.Outbound {
			fmt.Fprintf(&b, "[aqua]%s you:[-] %s\n", ts, tview.Escape(msg.Body))
		} else {
			fmt.Fprintf(&b, "[white]%s them:[-] %s\n", ts, tview.Escape(msg.Body))
		}
	}
	return b.String()
}
