package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/lanatus/internal/errs"
	"github.com/roach88/lanatus/internal/holder"
	"github.com/roach88/lanatus/internal/idcache"
	"github.com/roach88/lanatus/internal/registry"
	"github.com/roach88/lanatus/internal/store"
)

const purchaseTable = "lanatus_purchase"

var purchasesCreated = metrics.GetOrCreateCounter(`lanatus_purchases_total`)

// Purchase records that a player bought a product. Purchases are immutable.
type Purchase struct {
	id         *holder.Identifier[uuid.UUID]
	player     *holder.Value[uuid.UUID]
	productID  *holder.Value[uuid.UUID]
	created    *holder.Value[time.Time]
	data       *holder.Value[string]
	comment    *holder.Value[string]
	melonsCost *holder.Value[int64]

	product *Product
}

var purchaseSchema = mustValid(newPurchaseSchema())

func newPurchaseSchema() *registry.Schema[Purchase] {
	s := registry.NewSchema[Purchase](purchaseTable, "id")
	registry.Identifier(s, "id", holder.UUID, func(p *Purchase) **holder.Identifier[uuid.UUID] { return &p.id })
	registry.Value(s, "player_uuid", holder.UUID, func(p *Purchase) **holder.Value[uuid.UUID] { return &p.player })
	registry.Value(s, "product_id", holder.UUID, func(p *Purchase) **holder.Value[uuid.UUID] { return &p.productID })
	registry.Value(s, "created", holder.Time, func(p *Purchase) **holder.Value[time.Time] { return &p.created })
	registry.Value(s, "data", holder.String, func(p *Purchase) **holder.Value[string] { return &p.data })
	registry.Value(s, "comment", holder.String, func(p *Purchase) **holder.Value[string] { return &p.comment })
	registry.Value(s, "melonscost", holder.Int64, func(p *Purchase) **holder.Value[int64] { return &p.melonsCost })
	return s
}

func (p *Purchase) ID() uuid.UUID {
	id, _ := p.id.Value()
	return id
}

func (p *Purchase) PlayerID() uuid.UUID { return valueOf(p.player) }
func (p *Purchase) Product() *Product { return p.product }
func (p *Purchase) Created() time.Time { return valueOf(p.created) }
func (p *Purchase) MelonsCost() int64 { return valueOf(p.melonsCost) }

// Data returns the module-specific payload; ok is false if none was stored.
func (p *Purchase) Data() (data string, ok bool) { return p.data.Value() }

// Comment returns the free-form comment; ok is false if none was stored.
func (p *Purchase) Comment() (comment string, ok bool) { return p.comment.Value() }

// PurchaseRepository reads purchases. Single purchases are cached by id;
// per-player listings always hit the store.
type PurchaseRepository struct {
	store    *store.Store
	logger   *slog.Logger
	products *ProductRepository
	cache    *idcache.Cache[uuid.UUID, *Purchase]
}

// NewPurchaseRepository creates a purchase repository over s. Products of
// loaded purchases are resolved through products.
func NewPurchaseRepository(s *store.Store, logger *slog.Logger, products *ProductRepository) *PurchaseRepository {
	r := &PurchaseRepository{
		store:    s,
		logger:   orDiscard(logger).With("repository", "purchase"),
		products: products,
	}
	r.cache = idcache.New("purchases", (*Purchase).ID, r.load)
	return r
}

// FindByID returns the purchase with id, or NotFound.
func (r *PurchaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	return r.cache.Get(ctx, id)
}

// FindByPlayer returns every purchase of player, oldest first. A player
// without purchases gets an empty slice.
func (r *PurchaseRepository) FindByPlayer(ctx context.Context, player uuid.UUID) ([]*Purchase, error) {
	rows, err := r.selectWhere(ctx, "player_uuid = ?", player.String())
	if err != nil {
		r.logger.Error("purchase fetch failed", "player", player, "err", err)
		return nil, err
	}

	purchases := make([]*Purchase, 0, len(rows))
	for _, row := range rows {
		p, err := r.decode(ctx, row)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, nil
}

// ClearCache drops every cached purchase.
func (r *PurchaseRepository) ClearCache() {
	r.cache.Clear()
}

func (r *PurchaseRepository) load(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	rows, err := r.selectWhere(ctx, "id = ?", id.String())
	if err != nil {
		r.logger.Error("purchase fetch failed", "purchase", id, "err", err)
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.NotFound("purchase", id.String())
	}
	return r.decode(ctx, rows[0])
}

func (r *PurchaseRepository) selectWhere(ctx context.Context, where string, args ...any) ([]store.Row, error) {
	rows, err := r.store.Select(ctx, store.Query{
		Table:   purchaseTable,
		Columns: purchaseSchema.Columns(),
		Where:   where,
		Args:    args,
		OrderBy: "created, id",
	})
	if err != nil {
		fetchFailures.Inc()
		return nil, errs.StoreFailure("fetch purchases", err)
	}
	return rows, nil
}

// decode builds a purchase from row and resolves its product.
func (r *PurchaseRepository) decode(ctx context.Context, row store.Row) (*Purchase, error) {
	p := &Purchase{}
	if err := purchaseSchema.Decode(p, row, nil); err != nil {
		if errs.IsInvalidState(err) {
			return nil, err
		}
		fetchFailures.Inc()
		r.logger.Error("purchase decode failed", "err", err)
		return nil, errs.StoreFailure("decode purchase", err)
	}

	product, err := r.products.FindByID(ctx, valueOf(p.productID))
	if err != nil {
		r.logger.Error("purchase product lookup failed", "purchase", p.ID(), "product", valueOf(p.productID), "err", err)
		return nil, err
	}
	p.product = product
	return p, nil
}

// PurchaseBuilder collects the details of a new purchase. Build charges the
// buyer and records the purchase in one transaction.
type PurchaseBuilder struct {
	client *Client
	player uuid.UUID
	id     uuid.UUID

	product    *Product
	productID  uuid.UUID
	comment    *string
	data       *string
	melonsCost *int64
}

// WithProduct sets the product bought. A nil product clears it and Build
// fails with InvalidState.
func (b *PurchaseBuilder) WithProduct(p *Product) *PurchaseBuilder {
	b.product = p
	b.productID = uuid.Nil
	if p != nil {
		b.productID = p.ID()
	}
	return b
}

// WithProductID sets the product bought by id; Build resolves it.
func (b *PurchaseBuilder) WithProductID(id uuid.UUID) *PurchaseBuilder {
	b.product = nil
	b.productID = id
	return b
}

// WithComment attaches a free-form comment.
func (b *PurchaseBuilder) WithComment(comment string) *PurchaseBuilder {
	c := norm.NFC.String(comment)
	b.comment = &c
	return b
}

// WithData attaches a module-specific payload.
func (b *PurchaseBuilder) WithData(data string) *PurchaseBuilder {
	b.data = &data
	return b
}

// WithMelonsCost overrides the product's price.
func (b *PurchaseBuilder) WithMelonsCost(cost int64) *PurchaseBuilder {
	b.melonsCost = &cost
	return b
}

// PurchaseID returns the id the purchase will be stored under.
func (b *PurchaseBuilder) PurchaseID() uuid.UUID { return b.id }

// Build charges the buyer and stores the purchase. The charge is checked
// against the stored balance, not a cached one, and is rejected with
// NotEnoughMelons if the buyer cannot afford it; a concurrent spend that
// lands first rolls the whole purchase back with the same error. A product
// that does not exist yields NotFound.
func (b *PurchaseBuilder) Build(ctx context.Context) (*Purchase, error) {
	if b.productID == uuid.Nil {
		return nil, errs.InvalidState("purchase %s: no product set", b.id)
	}
	product := b.product
	if product == nil {
		p, err := b.client.Products.FindByID(ctx, b.productID)
		if err != nil {
			return nil, err
		}
		product = p
	}

	cost := product.MelonsCost()
	if b.melonsCost != nil {
		cost = *b.melonsCost
	}
	if cost < 0 {
		return nil, errs.InvalidState("purchase %s: melons cost %d is negative", b.id, cost)
	}

	account, err := b.client.Accounts.FindMutableFresh(ctx, b.player)
	if err != nil {
		return nil, err
	}
	if err := account.ModifyMelons(ctx, -cost); err != nil {
		return nil, err
	}

	created := b.client.clock.Now()
	values := []store.Assignment{
		{Column: "id", Value: holder.UUID.Encode(b.id)},
		{Column: "player_uuid", Value: holder.UUID.Encode(b.player)},
		{Column: "product_id", Value: holder.UUID.Encode(product.ID())},
		{Column: "created", Value: holder.Time.Encode(created)},
		{Column: "data", Value: optional(b.data)},
		{Column: "comment", Value: optional(b.comment)},
		{Column: "melonscost", Value: cost},
	}
	err = b.client.Accounts.save(ctx, account, func(ex store.Executor) error {
		_, err := ex.Insert(ctx, store.Insert{Table: purchaseTable, Values: values})
		return err
	})
	if err != nil {
		return nil, err
	}
	purchasesCreated.Inc()
	b.client.logger.Info("purchase created",
		"purchase", b.id, "player", b.player, "product", product.ID(), "melons", cost)

	return b.client.Purchases.FindByID(ctx, b.id)
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
