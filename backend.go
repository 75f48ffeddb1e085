package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Wire shapes for the chat backend. Writes are JSON point calls against the
// API URL; the subscription is a websocket per chat id on the WS URL.

// WireMessage is the message shape carried by create writes and
// subscription events.
type WireMessage struct {
	ID        string              `json:"id"`
	ChatID    string              `json:"chatId"`
	Sender    string              `json:"sender"`
	Text      string              `json:"text,omitempty"`
	Image     string              `json:"image,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"`
	Timestamp int64               `json:"timestamp"`
}

// Event is one inbound subscription event. Type selects which fields are set:
//
//	"message"  — Message
//	"delete"   — MessageID
//	"reaction" — MessageID + Reactions (full authoritative sets)
//	"session"  — Connected (wallet session signal, not chat-scoped)
type Event struct {
	Type      string              `json:"type"`
	ChatID    string              `json:"chatId,omitempty"`
	Message   *WireMessage        `json:"message,omitempty"`
	MessageID string              `json:"messageId,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"`
	Connected *bool               `json:"connected,omitempty"`
}

// Report is one moderation report, visible on the admin surface.
type Report struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Reporter  string `json:"reporter"`
	Text      string `json:"text,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// parseEvent decodes a single subscription frame.
func parseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("event missing type")
	}
	return ev, nil
}

// msgFromWire converts the wire shape into the store's Message.
func msgFromWire(w WireMessage) Message {
	m := Message{
		ID:        w.ID,
		ChatID:    w.ChatID,
		Sender:    w.Sender,
		Text:      w.Text,
		Image:     w.Image,
		Timestamp: w.Timestamp,
	}
	if len(w.Reactions) > 0 {
		m.Reactions = make(map[string]map[string]bool, len(w.Reactions))
		for kind, addrs := range w.Reactions {
			set := make(map[string]bool, len(addrs))
			for _, a := range addrs {
				set[a] = true
			}
			m.Reactions[kind] = set
		}
	}
	return m
}

// Client talks to the chat backend.
type Client struct {
	apiURL string
	wsURL  string
	httpc  *http.Client
	dialer *websocket.Dialer
}

func NewClient(apiURL, wsURL string) *Client {
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		wsURL:  strings.TrimRight(wsURL, "/"),
		httpc:  &http.Client{Timeout: 30 * time.Second},
		dialer: websocket.DefaultDialer,
	}
}

// Subscribe opens the chat's event stream. The returned channel is closed
// when the stream ends for any reason (server close, network error, context
// cancellation); the caller resubscribes with a fresh call. Exactly one
// subscription per chat may be active at a time.
func (c *Client) Subscribe(ctx context.Context, chatID string) (<-chan Event, error) {
	url := c.wsURL + "/ws/chats/" + chatID
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", chatID, err)
	}

	events := make(chan Event)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(events)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Printf("subscribe: stream for %s ended: %v", chatID, err)
				return
			}
			ev, err := parseEvent(data)
			if err != nil {
				log.Printf("subscribe: skipping bad frame on %s: %v", chatID, err)
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// doJSON performs one JSON request. A non-2xx status is a remote failure and
// includes a snippet of the response body.
func (c *Client) doJSON(method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: marshal: %w", method, path, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.apiURL+path, rdr)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > 120 {
			snippet = snippet[:120]
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

// ListChats fetches the conversations visible to the connected wallet.
func (c *Client) ListChats() ([]Chat, error) {
	var out []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		IsGroup bool   `json:"isGroup"`
	}
	if err := c.doJSON("GET", "/chats", nil, &out); err != nil {
		return nil, err
	}
	chats := make([]Chat, 0, len(out))
	for _, ch := range out {
		chats = append(chats, Chat{ID: ch.ID, Name: ch.Name, IsGroup: ch.IsGroup})
	}
	return chats, nil
}

// ListItems fetches a chat's shared items.
func (c *Client) ListItems(chatID string) ([]SharedItem, error) {
	var out []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := c.doJSON("GET", "/chats/"+chatID+"/items", nil, &out); err != nil {
		return nil, err
	}
	items := make([]SharedItem, 0, len(out))
	for _, it := range out {
		items = append(items, SharedItem{ID: it.ID, ChatID: chatID, Name: it.Name, URL: it.URL})
	}
	return items, nil
}

// CreateMessage posts a new message. The backend echoes the stored message
// (with its assigned id) back.
func (c *Client) CreateMessage(chatID string, msg WireMessage) (Message, error) {
	var out WireMessage
	if err := c.doJSON("POST", "/chats/"+chatID+"/messages", msg, &out); err != nil {
		return Message{}, err
	}
	if out.ChatID == "" {
		out.ChatID = chatID
	}
	return msgFromWire(out), nil
}

// DeleteMessage deletes a message. The backend enforces ownership again.
func (c *Client) DeleteMessage(chatID, messageID, sender string) error {
	return c.doJSON("DELETE", "/chats/"+chatID+"/messages/"+messageID+"?sender="+sender, nil, nil)
}

// SetReaction toggles the sender's reaction of the given kind on a message.
func (c *Client) SetReaction(chatID, messageID, sender, kind string) error {
	body := map[string]string{"sender": sender, "reaction": kind}
	return c.doJSON("POST", "/chats/"+chatID+"/messages/"+messageID+"/reactions", body, nil)
}

// CreateReport files a moderation report against a message.
func (c *Client) CreateReport(chatID, messageID, reporter string) error {
	body := map[string]string{"chatId": chatID, "messageId": messageID, "reporter": reporter}
	return c.doJSON("POST", "/reports", body, nil)
}

// CreateBlock blocks the target address for the blocker.
func (c *Client) CreateBlock(blocker, blocked string) error {
	body := map[string]string{"blocker": blocker, "blocked": blocked}
	return c.doJSON("POST", "/blocks", body, nil)
}

// RenameItem renames a shared item. The caller has already trimmed and
// validated the name.
func (c *Client) RenameItem(itemID, name string) error {
	body := map[string]string{"name": name}
	return c.doJSON("PATCH", "/items/"+itemID, body, nil)
}

// ListReports fetches reports for the admin overlay. The backend re-checks
// the admin address; the client-side gate only controls view access.
func (c *Client) ListReports(admin string) ([]Report, error) {
	var out []Report
	if err := c.doJSON("GET", "/reports?admin="+admin, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ItemURL returns the absolute URL of a shared item.
func (c *Client) ItemURL(item SharedItem) string {
	if strings.HasPrefix(item.URL, "/") {
		return c.apiURL + item.URL
	}
	return item.URL
}

// Download fetches a shared item's content into destDir and returns the
// written path.
func (c *Client) Download(item SharedItem, destDir string) (string, error) {
	url := item.URL
	if strings.HasPrefix(url, "/") {
		url = c.apiURL + url
	}
	resp, err := c.httpc.Get(url)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", item.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", item.Name, resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("download %s: %w", item.Name, err)
	}
	path := filepath.Join(destDir, filepath.Base(item.Name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", item.Name, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("download %s: %w", item.Name, err)
	}
	return path, nil
}
