// Package cart holds the shopping cart aggregate. A cart is owned by a key, either a user
// id or an anonymous cart id, and writes its whole item list through to Storage after
// every mutation.
package cart

import (
	"context"

	"github.com/fjod/era_store/internal/domain"
	"github.com/rs/zerolog"
)

type Product struct {
	ID    string
	Name  string
	Price int64
}

type Options struct {
	Variant  string
	Quantity int64
}

type Cart struct {
	key     string
	items   []domain.LineItem
	storage Storage
	logger  zerolog.Logger
}

// Open loads the cart for key. A load failure yields an empty cart, the same as a first visit.
func Open(ctx context.Context, key string, storage Storage, logger zerolog.Logger) *Cart {
	c := &Cart{
		key:     key,
		storage: storage,
		logger:  logger.With().Str("cart_key", key).Logger(),
	}
	items, err := storage.Load(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to load cart, starting empty")
		return c
	}
	c.items = items
	return c
}

func (c *Cart) Key() string {
	return c.key
}

// AddItem merges on (product id, variant). Quantity below 1 counts as 1.
func (c *Cart) AddItem(ctx context.Context, p Product, opts Options) {
	qty := max(opts.Quantity, 1)

	for i := range c.items {
		if c.items[i].SameLine(p.ID, opts.Variant) {
			c.items[i].Quantity += qty
			c.persist(ctx)
			return
		}
	}

	c.items = append(c.items, domain.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     max(p.Price, 0),
		Quantity:  qty,
		Variant:   opts.Variant,
	})
	c.persist(ctx)
}

func (c *Cart) RemoveItem(ctx context.Context, productID, variant string) {
	for i, item := range c.items {
		if item.SameLine(productID, variant) {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			c.persist(ctx)
			return
		}
	}
}

// Clear empties the cart and drops its stored document.
func (c *Cart) Clear(ctx context.Context) {
	c.items = nil
	if err := c.storage.Delete(ctx, c.key); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear cart")
	}
}

// Items returns a copy of the current lines.
func (c *Cart) Items() []domain.LineItem {
	return append([]domain.LineItem(nil), c.items...)
}

func (c *Cart) Subtotal() int64 {
	return domain.Subtotal(c.items)
}

func (c *Cart) PointsToEarn() int64 {
	return domain.PointsForAmount(c.Subtotal())
}

func (c *Cart) persist(ctx context.Context) {
	if err := c.storage.Save(ctx, c.key, c.Items()); err != nil {
		c.logger.Warn().Err(err).Int("items", len(c.items)).Msg("failed to persist cart")
	}
}
