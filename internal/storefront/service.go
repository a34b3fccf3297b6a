// Package storefront serves the priced views of a shopper's cart: the cart
// itself, the order summary and single-product quotes. Cart state lives on
// the marketplace backend; this package mirrors it through a short-lived
// cache and prices it with the pricing engine.
package storefront

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/backend"
	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/pricing"
	"github.com/xenking/storefront/internal/session"
)

// Default cache lifetimes.
const (
	DefaultCartTTL     = 5 * time.Minute
	DefaultCategoryTTL = time.Hour
)

const categoriesKey = "all"

// Backend is the subset of the marketplace backend the storefront uses.
type Backend interface {
	Cart(ctx context.Context, s session.Session) ([]cart.RawItem, error)
	UpdateQuantity(ctx context.Context, s session.Session, itemID string, quantity int) error
	RemoveItem(ctx context.Context, s session.Session, itemID string) error
	Categories(ctx context.Context) ([]backend.Category, error)
	Product(ctx context.Context, productID string) (*cart.RawProduct, error)
}

// Config tunes a Service.
type Config struct {
	Policy      pricing.Policy
	CartTTL     time.Duration
	CategoryTTL time.Duration
}

// CartView is a cart together with its totals.
type CartView struct {
	Items  []cart.Item
	Totals pricing.Totals
}

// ProductQuote is the product details view: a product and the price of a
// quantity of it.
type ProductQuote struct {
	Product cart.Product
	Quote   pricing.LineQuote
}

// Service serves priced cart views.
type Service struct {
	backend Backend
	cache   cache.Cache
	cfg     Config

	cacheLookups metric.Int64Counter
	mutations    metric.Int64Counter
}

// NewService creates a Service. Zero TTLs fall back to the defaults.
func NewService(b Backend, c cache.Cache, cfg Config, meter metric.Meter) (*Service, error) {
	if cfg.CartTTL <= 0 {
		cfg.CartTTL = DefaultCartTTL
	}
	if cfg.CategoryTTL <= 0 {
		cfg.CategoryTTL = DefaultCategoryTTL
	}

	lookups, err := meter.Int64Counter("storefront.cache.lookups",
		metric.WithDescription("Cache lookups by kind and result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cache lookups counter")
	}
	mutations, err := meter.Int64Counter("storefront.cart.mutations",
		metric.WithDescription("Cart rows updated or removed on the backend"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cart mutations counter")
	}

	return &Service{
		backend:      b,
		cache:        c,
		cfg:          cfg,
		cacheLookups: lookups,
		mutations:    mutations,
	}, nil
}

// Policy returns the pricing policy in effect.
func (s *Service) Policy() pricing.Policy {
	return s.cfg.Policy
}

// Items returns the normalized cart of the session, from cache when fresh.
func (s *Service) Items(ctx context.Context, sess session.Session) ([]cart.Item, error) {
	key, cacheable := cartKey(sess)
	if cacheable {
		var items []cart.Item
		if s.lookup(ctx, "cart", key, &items) {
			return items, nil
		}
	}

	raw, err := s.backend.Cart(ctx, sess)
	if err != nil {
		return nil, errors.Wrap(err, "fetch cart")
	}
	items := cart.Normalize(raw)

	if cacheable {
		s.store(ctx, key, items, s.cfg.CartTTL)
	}
	return items, nil
}

// Invalidate drops the cached cart of the session.
func (s *Service) Invalidate(ctx context.Context, sess session.Session) {
	key, ok := cartKey(sess)
	if !ok {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		zctx.From(ctx).Warn("Invalidate cached cart", zap.String("key", key), zap.Error(err))
	}
}

// Cart returns the cart view.
func (s *Service) Cart(ctx context.Context, sess session.Session) (*CartView, error) {
	items, err := s.Items(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &CartView{
		Items:  items,
		Totals: pricing.Compute(items, s.cfg.Policy),
	}, nil
}

// Summary returns the totals of the order-summary view.
func (s *Service) Summary(ctx context.Context, sess session.Session) (pricing.Totals, error) {
	items, err := s.Items(ctx, sess)
	if err != nil {
		return pricing.Totals{}, err
	}
	return pricing.Compute(items, s.cfg.Policy), nil
}

// ChangeQuantity sets the quantity of a cart row. A quantity of zero or less
// removes the row. Rows not in the cart and unchanged quantities are left
// alone. The refreshed cart is returned.
func (s *Service) ChangeQuantity(ctx context.Context, sess session.Session, itemID string, quantity int) (*CartView, error) {
	items, err := s.Items(ctx, sess)
	if err != nil {
		return nil, err
	}

	current, ok := cart.Find(items, itemID)
	if !ok {
		zctx.From(ctx).Debug("Quantity change for unknown item", zap.String("item_id", itemID))
		return s.view(items), nil
	}

	next, intent := cart.ApplyQuantityChange(items, itemID, quantity)
	switch {
	case intent != nil:
		if err := s.backend.RemoveItem(ctx, sess, intent.ItemID); err != nil {
			return nil, err
		}
		s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "remove")))
	case current.Quantity == quantity:
		return s.view(next), nil
	default:
		if err := s.backend.UpdateQuantity(ctx, sess, itemID, quantity); err != nil {
			return nil, err
		}
		s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "update")))
	}

	s.Invalidate(ctx, sess)
	return s.Cart(ctx, sess)
}

// Remove deletes a cart row and returns the refreshed cart.
func (s *Service) Remove(ctx context.Context, sess session.Session, itemID string) (*CartView, error) {
	if err := s.backend.RemoveItem(ctx, sess, itemID); err != nil {
		return nil, err
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "remove")))

	s.Invalidate(ctx, sess)
	return s.Cart(ctx, sess)
}

// Categories lists catalog categories, from cache when fresh.
func (s *Service) Categories(ctx context.Context) ([]backend.Category, error) {
	key := cache.Key(cache.CategoryKeyPrefix, categoriesKey)

	var cats []backend.Category
	if s.lookup(ctx, "categories", key, &cats) {
		return cats, nil
	}

	cats, err := s.backend.Categories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch categories")
	}
	s.store(ctx, key, cats, s.cfg.CategoryTTL)
	return cats, nil
}

// Quote prices quantity units of a product for the product details view.
func (s *Service) Quote(ctx context.Context, productID string, quantity int) (*ProductQuote, error) {
	raw, err := s.backend.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	p := cart.NormalizeProduct(raw)
	return &ProductQuote{
		Product: p,
		Quote:   pricing.Quote(p.Price, p.DiscountPercent, quantity),
	}, nil
}

func (s *Service) view(items []cart.Item) *CartView {
	return &CartView{
		Items:  items,
		Totals: pricing.Compute(items, s.cfg.Policy),
	}
}

// lookup reads key into dst. Cache failures are logged and reported as a
// miss.
func (s *Service) lookup(ctx context.Context, kind, key string, dst any) bool {
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		zctx.From(ctx).Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		hit = false
	}

	result := "miss"
	if hit {
		result = "hit"
	}
	s.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
	return hit
}

func (s *Service) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		zctx.From(ctx).Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// cartKey returns the cache key of the session's cart. Sessions without a
// user id are never cached.
func cartKey(sess session.Session) (string, bool) {
	if sess.UserID == "" {
		return "", false
	}
	return cache.Key(cache.CartKeyPrefix, sess.Identity()), true
}
