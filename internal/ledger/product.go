package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/lanatus/internal/errs"
	"github.com/roach88/lanatus/internal/holder"
	"github.com/roach88/lanatus/internal/idcache"
	"github.com/roach88/lanatus/internal/registry"
	"github.com/roach88/lanatus/internal/store"
)

const productTable = "lanatus_product"

// Product is something that can be bought with melons. Products are
// immutable once loaded.
type Product struct {
	id          *holder.Identifier[uuid.UUID]
	module      *holder.Value[string]
	name        *holder.Value[string]
	displayName *holder.Value[string]
	description *holder.Value[string]
	icon        *holder.Value[string]
	melonsCost  *holder.Value[int64]
	active      *holder.Value[bool]
	permanent   *holder.Value[bool]
}

var productSchema = mustValid(newProductSchema())

func newProductSchema() *registry.Schema[Product] {
	s := registry.NewSchema[Product](productTable, "id")
	registry.Identifier(s, "id", holder.UUID, func(p *Product) **holder.Identifier[uuid.UUID] { return &p.id })
	registry.Value(s, "module", holder.String, func(p *Product) **holder.Value[string] { return &p.module })
	registry.Value(s, "name", holder.String, func(p *Product) **holder.Value[string] { return &p.name })
	registry.Value(s, "display_name", holder.String, func(p *Product) **holder.Value[string] { return &p.displayName })
	registry.Value(s, "description", holder.String, func(p *Product) **holder.Value[string] { return &p.description })
	registry.Value(s, "icon", holder.String, func(p *Product) **holder.Value[string] { return &p.icon })
	registry.Value(s, "melonscost", holder.Int64, func(p *Product) **holder.Value[int64] { return &p.melonsCost })
	registry.Value(s, "active", holder.Bool, func(p *Product) **holder.Value[bool] { return &p.active })
	registry.Value(s, "permanent", holder.Bool, func(p *Product) **holder.Value[bool] { return &p.permanent })
	return s
}

func valueOf[T any](h *holder.Value[T]) T {
	v, _ := h.Value()
	return v
}

func (p *Product) ID() uuid.UUID {
	id, _ := p.id.Value()
	return id
}

// Module names the plugin module that owns the product.
func (p *Product) Module() string { return valueOf(p.module) }
func (p *Product) Name() string { return valueOf(p.name) }
func (p *Product) DisplayName() string { return valueOf(p.displayName) }
func (p *Product) Description() string { return valueOf(p.description) }
func (p *Product) Icon() string { return valueOf(p.icon) }
func (p *Product) MelonsCost() int64 { return valueOf(p.melonsCost) }
func (p *Product) Active() bool { return valueOf(p.active) }
func (p *Product) Permanent() bool { return valueOf(p.permanent) }

func (p *Product) String() string {
	return fmt.Sprintf("%s/%s (%s)", p.Module(), p.Name(), p.ID())
}

// ProductRegistration describes a product a module wants to exist.
type ProductRegistration struct {
	ID          uuid.UUID `yaml:"id" json:"id"`
	Module      string    `yaml:"module" json:"module"`
	Name        string    `yaml:"name" json:"name"`
	DisplayName string    `yaml:"display_name" json:"display_name"`
	Description string    `yaml:"description" json:"description"`
	Icon        string    `yaml:"icon" json:"icon"`
	MelonsCost  int64     `yaml:"melons_cost" json:"melons_cost"`
	Active      bool      `yaml:"active" json:"active"`
	Permanent   bool      `yaml:"permanent" json:"permanent"`
}

// Validate checks the fields every product needs.
func (r ProductRegistration) Validate() error {
	switch {
	case r.ID == uuid.Nil:
		return errs.InvalidState("product %q: id is required", r.Name)
	case r.Module == "":
		return errs.InvalidState("product %s: module is required", r.ID)
	case r.Name == "":
		return errs.InvalidState("product %s: name is required", r.ID)
	case r.MelonsCost < 0:
		return errs.InvalidState("product %s: melons cost %d is negative", r.ID, r.MelonsCost)
	}
	return nil
}

func (r ProductRegistration) values() []store.Assignment {
	return []store.Assignment{
		{Column: "id", Value: holder.UUID.Encode(r.ID)},
		{Column: "module", Value: r.Module},
		{Column: "name", Value: r.Name},
		{Column: "display_name", Value: norm.NFC.String(r.DisplayName)},
		{Column: "description", Value: norm.NFC.String(r.Description)},
		{Column: "icon", Value: r.Icon},
		{Column: "melonscost", Value: r.MelonsCost},
		{Column: "active", Value: holder.Bool.Encode(r.Active)},
		{Column: "permanent", Value: holder.Bool.Encode(r.Permanent)},
	}
}

// ProductRepository reads and registers products. Products are cached by
// id.
type ProductRepository struct {
	store  *store.Store
	logger *slog.Logger
	cache  *idcache.Cache[uuid.UUID, *Product]
}

// NewProductRepository creates a product repository over s.
func NewProductRepository(s *store.Store, logger *slog.Logger) *ProductRepository {
	r := &ProductRepository{
		store:  s,
		logger: orDiscard(logger).With("repository", "product"),
	}
	r.cache = idcache.New("products", (*Product).ID, r.load)
	return r
}

// FindByID returns the product with id, or NotFound.
func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return r.cache.Get(ctx, id)
}

// FindByModule returns every product of module, ordered by name.
func (r *ProductRepository) FindByModule(ctx context.Context, module string) ([]*Product, error) {
	return r.findWhere(ctx, "module = ?", module)
}

// FindActive returns every active product, ordered by module and name.
func (r *ProductRepository) FindActive(ctx context.Context) ([]*Product, error) {
	return r.findWhere(ctx, "active = ?", holder.Bool.Encode(true))
}

// FindAll returns every product, ordered by module and name.
func (r *ProductRepository) FindAll(ctx context.Context) ([]*Product, error) {
	return r.findWhere(ctx, "")
}

// Register creates the product described by reg unless a product with its
// id exists already, and returns the stored product. An existing product
// is returned unchanged.
func (r *ProductRepository) Register(ctx context.Context, reg ProductRegistration) (*Product, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	n, err := r.store.Insert(ctx, store.Insert{
		Table:          productTable,
		Values:         reg.values(),
		IgnoreConflict: true,
	})
	if err != nil {
		r.logger.Error("product register failed", "product", reg.ID, "err", err)
		return nil, errs.StoreFailure("register product", err)
	}
	if n > 0 {
		r.logger.Info("product registered", "product", reg.ID, "module", reg.Module, "name", reg.Name)
	}
	return r.FindByID(ctx, reg.ID)
}

// ClearCache drops every cached product.
func (r *ProductRepository) ClearCache() {
	r.cache.Clear()
}

// findWhere loads products matching where and seeds the cache with them.
// Products already cached are returned as cached.
func (r *ProductRepository) findWhere(ctx context.Context, where string, args ...any) ([]*Product, error) {
	rows, err := r.store.Select(ctx, store.Query{
		Table:   productTable,
		Columns: productSchema.Columns(),
		Where:   where,
		Args:    args,
		OrderBy: "module, name",
	})
	if err != nil {
		fetchFailures.Inc()
		r.logger.Error("product fetch failed", "where", where, "err", err)
		return nil, errs.StoreFailure("fetch products", err)
	}

	products := make([]*Product, 0, len(rows))
	for _, row := range rows {
		p, err := r.decode(row)
		if err != nil {
			return nil, err
		}
		cached, err := r.cache.GetOrCompute(ctx, p.ID(), func(context.Context, uuid.UUID) (*Product, error) {
			return p, nil
		})
		if err != nil {
			return nil, err
		}
		products = append(products, cached)
	}
	return products, nil
}

func (r *ProductRepository) load(ctx context.Context, id uuid.UUID) (*Product, error) {
	rows, err := r.store.Select(ctx, store.Query{
		Table:   productTable,
		Columns: productSchema.Columns(),
		Where:   "id = ?",
		Args:    []any{id.String()},
	})
	if err != nil {
		fetchFailures.Inc()
		r.logger.Error("product fetch failed", "product", id, "err", err)
		return nil, errs.StoreFailure("fetch product", err)
	}
	if len(rows) == 0 {
		return nil, errs.NotFound("product", id.String())
	}
	return r.decode(rows[0])
}

func (r *ProductRepository) decode(row store.Row) (*Product, error) {
	p := &Product{}
	if err := productSchema.Decode(p, row, nil); err != nil {
		if errs.IsInvalidState(err) {
			return nil, err
		}
		fetchFailures.Inc()
		r.logger.Error("product decode failed", "err", err)
		return nil, errs.StoreFailure("decode product", err)
	}
	return p, nil
}
