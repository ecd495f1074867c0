package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/WangEdward/embykeeper/internal/bus"
)

// Client is the per-account transport. It converts platform updates into
// bus updates, serializes outbound sends for its account, and materializes
// media downloads into the media directory.
type Client struct {
	account  string
	bot      *tgbotapi.BotAPI
	hub      *bus.UpdateHub
	mediaDir string
	sendMu   sync.Mutex // one in-flight send per account
	stopCh   chan struct{}

	nameMu sync.Mutex
	names  map[int64]string // sender display names, lives with the client
}

// NewClient creates a Client for one account token.
func NewClient(account, token string, hub *bus.UpdateHub, mediaDir string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}
	return &Client{
		account:  account,
		bot:      bot,
		hub:      hub,
		mediaDir: mediaDir,
		stopCh:   make(chan struct{}),
		names:    make(map[int64]string),
	}, nil
}

// Account returns the account identifier this client serves.
func (c *Client) Account() string { return c.account }

// Start begins consuming platform updates and publishing them to the hub.
// Returns immediately; the receive loop runs until Stop or ctx expiry.
func (c *Client) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				c.hub.Publish(c.toBusUpdate(update.Message))
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case <-c.stopCh:
				c.bot.StopReceivingUpdates()
				return
			}
		}
	}()
	return nil
}

// Stop ends the receive loop.
func (c *Client) Stop() error {
	close(c.stopCh)
	return nil
}

// SendText sends a text message and returns its message ID. Sends for one
// account never overlap; different accounts send in parallel.
func (c *Client) SendText(ctx context.Context, chatID, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chatID %q: %w", chatID, err)
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	sent, err := c.bot.Send(tgbotapi.NewMessage(id, text))
	if err != nil {
		return 0, fmt.Errorf("telegram: send failed: %w", err)
	}
	return sent.MessageID, nil
}

// ClickOption selects an option presented by a bot. The Bot API cannot
// press another bot's inline button, so the selection is conveyed by
// sending the option's handle text; reply-keyboard targets accept this as
// a click. Best-effort by contract.
func (c *Client) ClickOption(ctx context.Context, chatID string, messageID int, handle string) error {
	_, err := c.SendText(ctx, chatID, handle)
	return err
}

// RequestDownload materializes a photo asynchronously. On completion the
// same message is re-published to the hub with Photo.LocalPath set;
// failures are logged and produce no re-publish.
func (c *Client) RequestDownload(ctx context.Context, chatID string, messageID int, photo bus.Photo) error {
	if photo.MediaRef == "" {
		return fmt.Errorf("telegram: empty media reference")
	}
	go func() {
		path, err := c.download(ctx, photo.MediaRef)
		if err != nil {
			slog.Warn("telegram: media download failed",
				"account", c.account, "media", photo.MediaRef, "error", err)
			return
		}
		photo.LocalPath = path
		c.hub.Publish(bus.Update{
			Account:   c.account,
			ChatID:    chatID,
			MessageID: messageID,
			Photo:     &photo,
		})
	}()
	return nil
}

func (c *Client) download(ctx context.Context, fileID string) (string, error) {
	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(c.mediaDir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	path := filepath.Join(c.mediaDir, safeFilename(fileID)+".jpg")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return path, nil
}

// toBusUpdate converts a platform message to the engine's update model.
func (c *Client) toBusUpdate(msg *tgbotapi.Message) bus.Update {
	u := bus.Update{
		Account:   c.account,
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}
	if msg.From != nil {
		u.SenderID = msg.From.ID
	}
	if len(msg.Photo) > 0 {
		// Largest size last.
		u.Photo = &bus.Photo{
			MediaRef: msg.Photo[len(msg.Photo)-1].FileID,
			Caption:  msg.Caption,
		}
	}
	if msg.ReplyMarkup != nil {
		for _, row := range msg.ReplyMarkup.InlineKeyboard {
			var busRow []bus.Option
			for _, btn := range row {
				opt := bus.Option{Label: btn.Text, Handle: btn.Text}
				if btn.CallbackData != nil {
					opt.Handle = *btn.CallbackData
				}
				busRow = append(busRow, opt)
			}
			u.Options = append(u.Options, busRow)
		}
	}
	return u
}

func safeFilename(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
