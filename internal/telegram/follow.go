package telegram

import (
	"context"
	"fmt"
	"io"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Follow consumes updates and writes one formatted line per inbound
// message until ctx is done. Operators use it to discover the chat IDs of
// target bots before configuring them.
func (c *Client) Follow(ctx context.Context, w io.Writer) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)
	defer c.bot.StopReceivingUpdates()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			if _, err := fmt.Fprintln(w, c.formatMessage(update.Message)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// formatMessage renders "account > sender: text (chatid = N, userid = M)".
func (c *Client) formatMessage(msg *tgbotapi.Message) string {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > 50 {
		text = text[:50] + "..."
	}

	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	return fmt.Sprintf("%s > %s: %s (chatid = %d, userid = %d)",
		c.account, c.senderName(msg.From), text, msg.Chat.ID, userID)
}

// senderName resolves a display name for the sender, caching it for the
// client's lifetime.
func (c *Client) senderName(from *tgbotapi.User) string {
	if from == nil {
		return "<unknown>"
	}
	c.nameMu.Lock()
	defer c.nameMu.Unlock()

	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if name == "" {
		if cached, ok := c.names[from.ID]; ok {
			return cached
		}
		return fmt.Sprintf("<Unknown User %d>", from.ID)
	}
	c.names[from.ID] = name
	return name
}
