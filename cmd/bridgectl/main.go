package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ssantosv/zapbridge/internal/chatnet"
	"github.com/ssantosv/zapbridge/internal/config"
	"github.com/ssantosv/zapbridge/internal/gateway"
	"github.com/ssantosv/zapbridge/internal/session"
)

func main() {
	addrFlag := flag.String("addr", "", "daemon address host:port (overrides config listen_addr)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	addr := *addrFlag
	if addr == "" {
		if cfg, err := config.Load(session.ConfigPath()); err == nil {
			addr = cfg.ListenAddr
		} else {
			addr = config.Default().ListenAddr
		}
	}
	baseURL := "http://" + addr

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "status":
		cmdStatus(baseURL, *jsonFlag)
	case "chats":
		cmdChats(baseURL, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: bridgectl messages <chatId>")
			os.Exit(1)
		}
		cmdMessages(baseURL, args[1], *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: bridgectl send <chatId> <text>")
			os.Exit(1)
		}
		cmdSend(baseURL, args[1], strings.Join(args[2:], " "), *jsonFlag)
	case "disconnect":
		cmdSession(addr, gateway.CmdDisconnect)
	case "reconnect":
		cmdSession(addr, gateway.CmdReconnect)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: bridgectl [--addr <host:port>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                Show session status")
	fmt.Fprintln(os.Stderr, "  chats                 List chats")
	fmt.Fprintln(os.Stderr, "  messages <chatId>     List recent messages for a chat")
	fmt.Fprintln(os.Stderr, "  send <chatId> <text>  Send a text message")
	fmt.Fprintln(os.Stderr, "  disconnect            Tear the chat session down")
	fmt.Fprintln(os.Stderr, "  reconnect             Restart the chat session")
}

func cmdStatus(baseURL string, jsonOut bool) {
	var p gateway.StatusPayload
	getJSON(baseURL+"/status", &p)
	if jsonOut {
		outputJSON(p)
		return
	}
	if p.IsConnected {
		fmt.Println("Status: connected")
		return
	}
	if p.PairingCode != "" {
		fmt.Println("Status: awaiting pairing")
		fmt.Printf("Code:   %s\n", p.PairingCode)
		return
	}
	fmt.Println("Status: disconnected")
}

func cmdChats(baseURL string, jsonOut bool) {
	var chats []chatnet.Chat
	getJSON(baseURL+"/chats", &chats)
	if jsonOut {
		outputJSON(chats)
		return
	}
	for _, chat := range chats {
		unread := ""
		if chat.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", chat.UnreadCount)
		}
		fmt.Printf("%-28s  %s%s\n", chat.ID, chat.Name, unread)
		if chat.LastMessage != "" {
			fmt.Printf("%-28s  > %s\n", "", chat.LastMessage)
		}
	}
}

func cmdMessages(baseURL, chatID string, jsonOut bool) {
	var msgs []chatnet.Message
	getJSON(baseURL+"/messages?chatId="+chatID, &msgs)
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, msg := range msgs {
		marker := "<-"
		if msg.Direction == chatnet.Outbound {
			marker = "->"
		}
		ts := time.Unix(msg.Timestamp, 0).Format("2006-01-02 15:04")
		fmt.Printf("%s %s  %s\n", ts, marker, msg.Body)
	}
}

func cmdSend(baseURL, chatID, text string, jsonOut bool) {
	body, _ := json.Marshal(gateway.SendMessagePayload{ChatID: chatID, Message: text})
	resp, err := http.Post(baseURL+"/send-message", "application/json", bytes.NewReader(body))
	if err != nil {
		fail("cannot reach daemon: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			fail("%s", e.Error)
		}
		fail("send failed with status %d", resp.StatusCode)
	}

	var result gateway.SendResultPayload
	if err := json.Unmarshal(raw, &result); err != nil {
		fail("decode response: %v", err)
	}
	if jsonOut {
		outputJSON(result)
		return
	}
	fmt.Printf("Sent: %s\n", result.MessageID)
}

// cmdSession issues a session command over a short-lived websocket; the
// disconnect/reconnect verbs have no HTTP form.
func cmdSession(addr, command string) {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		fail("cannot reach daemon: %v", err)
	}
	defer conn.Close()

	frame, _ := json.Marshal(gateway.Envelope{Type: command, Payload: json.RawMessage(`{}`)})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		fail("write command: %v", err)
	}

	// Wait for the resulting status broadcast so the command has landed
	// before we exit.
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	sawStatus := false
	for time.Now().Before(deadline) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var env gateway.Envelope
		if json.Unmarshal(raw, &env) != nil {
			continue
		}
		if env.Type == gateway.EventStatus {
			if sawStatus {
				var p gateway.StatusPayload
				_ = json.Unmarshal(env.Payload, &p)
				if p.IsConnected {
					fmt.Println("Status: connected")
				} else if p.PairingCode != "" {
					fmt.Println("Status: awaiting pairing")
					fmt.Printf("Code:   %s\n", p.PairingCode)
				} else {
					fmt.Println("Status: disconnected")
				}
				return
			}
			// The first status frame is the snapshot replayed on
			// connect, not the command's outcome.
			sawStatus = true
		}
	}
	fmt.Println("Command sent")
}

func getJSON(url string, out any) {
	resp, err := http.Get(url)
	if err != nil {
		fail("cannot reach daemon: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			fail("%s", e.Error)
		}
		fail("request failed with status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		fail("decode response: %v", err)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
