package ledger

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/lanatus/internal/store"
)

// Client wires the repositories of one store.
type Client struct {
	Accounts  *AccountRepository
	Products  *ProductRepository
	Purchases *PurchaseRepository

	store  *store.Store
	logger *slog.Logger
	clock  Clock
	ids    IDGenerator
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Without it the client logs nothing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock sets the clock used for snapshots and purchase timestamps.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithIDGenerator sets the generator for purchase ids.
func WithIDGenerator(ids IDGenerator) Option {
	return func(c *Client) { c.ids = ids }
}

// NewClient creates a client over s.
func NewClient(s *store.Store, opts ...Option) *Client {
	c := &Client{
		store: s,
		clock: SystemClock{},
		ids:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = orDiscard(c.logger)

	c.Accounts = NewAccountRepository(s, c.logger, c.clock)
	c.Products = NewProductRepository(s, c.logger)
	c.Purchases = NewPurchaseRepository(s, c.logger, c.Products)
	return c
}

// Store returns the underlying store.
func (c *Client) Store() *store.Store { return c.store }

// StartPurchase begins a purchase by player.
func (c *Client) StartPurchase(player uuid.UUID) *PurchaseBuilder {
	return &PurchaseBuilder{
		client: c,
		player: player,
		id:     c.ids.NewID(),
	}
}

// ClearCaches drops every cached account, product and purchase.
func (c *Client) ClearCaches() {
	c.Accounts.ClearCache()
	c.Products.ClearCache()
	c.Purchases.ClearCache()
}
