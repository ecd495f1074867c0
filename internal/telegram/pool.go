package telegram

import (
	"context"
	"fmt"
	"sync"

	"github.com/WangEdward/embykeeper/internal/bus"
)

// Pool routes transport calls to per-account clients. It satisfies the
// engine's transport contract: sends for one account are serialized by
// that account's client, different accounts proceed in parallel.
type Pool struct {
	clients map[string]*Client
	mu      sync.Mutex
}

// NewPool creates an empty Pool.
func NewPool() *Pool {
	return &Pool{clients: make(map[string]*Client)}
}

// Add registers a client under its account name.
func (p *Pool) Add(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[c.Account()] = c
}

// StartAll starts every client's receive loop.
func (p *Pool) StartAll(ctx context.Context) error {
	for _, c := range p.snapshot() {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("failed to start account %q: %w", c.Account(), err)
		}
	}
	return nil
}

// StopAll stops every client.
func (p *Pool) StopAll() {
	for _, c := range p.snapshot() {
		c.Stop()
	}
}

// Accounts returns the registered account names.
func (p *Pool) Accounts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.clients))
	for name := range p.clients {
		names = append(names, name)
	}
	return names
}

func (p *Pool) SendText(ctx context.Context, account, chatID, text string) (int, error) {
	c, err := p.client(account)
	if err != nil {
		return 0, err
	}
	return c.SendText(ctx, chatID, text)
}

func (p *Pool) ClickOption(ctx context.Context, account, chatID string, messageID int, handle string) error {
	c, err := p.client(account)
	if err != nil {
		return err
	}
	return c.ClickOption(ctx, chatID, messageID, handle)
}

func (p *Pool) RequestDownload(ctx context.Context, account, chatID string, messageID int, photo bus.Photo) error {
	c, err := p.client(account)
	if err != nil {
		return err
	}
	return c.RequestDownload(ctx, chatID, messageID, photo)
}

func (p *Pool) client(account string) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[account]
	if !ok {
		return nil, fmt.Errorf("telegram: unknown account %q", account)
	}
	return c, nil
}

func (p *Pool) snapshot() []*Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Client, 0, len(p.clients))
	for _, c := range p.clients {
		out = append(out, c)
	}
	return out
}
