package telegram

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// Update represents a Telegram Update object (partial schema)
type Update struct {
	UpdateID int `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"message"`
	CallbackQuery struct {
		ID      string `json:"id"`
		Data    string `json:"data"`
		Message struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
		From struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"from"`
	} `json:"callback_query"`
}

type updateResponse struct {
	Ok          bool     `json:"ok"`
	Result      []Update `json:"result"`
	Description string   `json:"description"`
	ErrorCode   int      `json:"error_code"`
}

// CommandHandler processes a slash command and returns the reply text.
type CommandHandler func(command string) string

// CallbackHandler processes an inline-button press and returns the reply text.
type CallbackHandler func(callbackID, data string) string

// StartListener begins long-polling for commands and button presses from the
// authorized admin chat. It runs blocking, so call it in a goroutine.
func (c *Client) StartListener(adminChatID int64, onCommand CommandHandler, onCallback CallbackHandler) {
	if c.token == "" || adminChatID == 0 {
		log.Println("Telegram Listener: Credentials missing, disabled.")
		return
	}

	adminChat := fmt.Sprintf("%d", adminChatID)
	offset := 0

	log.Println("Telegram Listener: Started")

	for {
		url := c.apiURL(fmt.Sprintf("getUpdates?offset=%d&timeout=60", offset))
		resp, err := c.http.Get(url)
		if err != nil {
			log.Printf("Telegram Listener Error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		var result updateResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			resp.Body.Close()
			log.Printf("Telegram Decode Error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}
		resp.Body.Close()

		if !result.Ok {
			log.Printf("Telegram API Error: %s (Code: %d)", result.Description, result.ErrorCode)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, update := range result.Result {
			offset = update.UpdateID + 1

			// Button presses carry their own chat context.
			if update.CallbackQuery.ID != "" {
				if update.CallbackQuery.From.ID != adminChatID {
					log.Printf("⚠️ UNAUTHORIZED CALLBACK: User %s (ID: %d) pressed: %s",
						update.CallbackQuery.From.Username, update.CallbackQuery.From.ID, update.CallbackQuery.Data)
					continue
				}
				c.answerCallback(update.CallbackQuery.ID)
				if response := onCallback(update.CallbackQuery.ID, update.CallbackQuery.Data); response != "" {
					c.Notify(adminChat, response)
				}
				continue
			}

			// Access Control
			if update.Message.Chat.ID != adminChatID {
				if update.Message.Text != "" {
					log.Printf("⚠️ UNAUTHORIZED ACCESS ATTEMPT: User %s (ID: %d) tried: %s",
						update.Message.From.Username, update.Message.Chat.ID, update.Message.Text)
				}
				// Do NOT reply to unauthorized users to avoid leaking bot existence
				continue
			}

			text := strings.TrimSpace(update.Message.Text)
			if strings.HasPrefix(text, "/") {
				log.Printf("Command received: %s", text)
				if response := onCommand(text); response != "" {
					c.Notify(adminChat, response)
				}
			}
		}
	}
}
