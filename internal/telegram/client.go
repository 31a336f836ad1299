// Package telegram is a minimal Bot API client: plain sends, inline-keyboard
// sends and a long-poll listener. Credentials are injected at construction;
// nothing here reads the environment.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Button represents an inline keyboard button.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Client talks to the Telegram Bot API for one bot token.
type Client struct {
	token string
	http  *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		token: token,
		// Long-poll requests run up to 60s; leave headroom.
		http: &http.Client{Timeout: 75 * time.Second},
	}
}

func (c *Client) apiURL(method string) string {
	return fmt.Sprintf("https://api.telegram.org/bot%s/%s", c.token, method)
}

// Notify sends a Markdown message to a chat. Fire-and-report: failures are
// logged, never propagated, so a Telegram outage can't roll back a trade
// mutation.
func (c *Client) Notify(chatID, text string) {
	if c.token == "" || chatID == "" || text == "" {
		return
	}

	payload := map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, _ := json.Marshal(payload)
	resp, err := c.http.Post(c.apiURL("sendMessage"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Printf("Telegram Alert Failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Telegram API Error: Status %s", resp.Status)
	}
}

// SendInteractive sends a message with one row of inline buttons.
func (c *Client) SendInteractive(chatID, text string, buttons []Button) {
	if c.token == "" || chatID == "" {
		return
	}

	keyboardJSON, _ := json.Marshal(map[string]interface{}{
		"inline_keyboard": [][]Button{buttons},
	})

	data := map[string]string{
		"chat_id":      chatID,
		"text":         text,
		"parse_mode":   "Markdown",
		"reply_markup": string(keyboardJSON),
	}

	body, _ := json.Marshal(data)
	resp, err := c.http.Post(c.apiURL("sendMessage"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Printf("Telegram Error: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Telegram API Error: Status %s", resp.Status)
	}
}

// answerCallback acks a button press so the client stops its spinner.
func (c *Client) answerCallback(callbackID string) {
	payload := map[string]string{"callback_query_id": callbackID}
	body, _ := json.Marshal(payload)
	resp, err := c.http.Post(c.apiURL("answerCallbackQuery"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Printf("Telegram callback ack failed: %v", err)
		return
	}
	resp.Body.Close()
}
