package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/greenbasket/checkout-service/internal/domain"
	"github.com/greenbasket/checkout-service/internal/logger"
	"github.com/greenbasket/checkout-service/internal/repository"
)

// CartView is the cart resolved against live product data for display.
// Totals are derived from the stored snapshots, not the catalog.
type CartView struct {
	BuyerID     string         `json:"buyer_id"`
	Items       []CartLineView `json:"items"`
	TotalItems  int            `json:"total_items"`
	TotalAmount float64        `json:"total_amount"`
}

type CartLineView struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	SellerID    string    `json:"seller_id"`
	Stock       int       `json:"stock"`
	Subtotal    float64   `json:"subtotal"`
}

type CartService struct {
	carts    repository.CartRepo
	products repository.ProductRepo
	sfg      singleflight.Group // collapses concurrent reads of the same cart
}

func NewCartService(carts repository.CartRepo, products repository.ProductRepo) *CartService {
	return &CartService{carts: carts, products: products}
}

// GetCart returns the buyer's cart with resolved product data, creating an
// empty cart on first access. Lines whose product was deactivated are
// dropped from both the view and the stored cart.
func (s *CartService) GetCart(ctx context.Context, buyerID string) (*CartView, error) {
	v, err, _ := s.sfg.Do(buyerID, func() (interface{}, error) {
		cart, err := s.carts.GetOrCreate(ctx, buyerID)
		if err != nil {
			return nil, err
		}

		products, err := s.resolveProducts(ctx, cart)
		if err != nil {
			return nil, err
		}

		view := &CartView{BuyerID: buyerID, Items: []CartLineView{}}
		for _, item := range cart.Items {
			product, ok := products[item.ProductID]
			if !ok || !product.IsActive {
				// Silently prune lines referencing dead products.
				if err := s.carts.RemoveItem(ctx, cart.ID, item.ProductID); err != nil {
					logger.Warn("failed to prune inactive cart line", "product_id", item.ProductID, "err", err)
				}
				continue
			}
			view.Items = append(view.Items, CartLineView{
				ProductID:   item.ProductID,
				ProductName: product.Name,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				SellerID:    item.SellerID,
				Stock:       product.Stock,
				Subtotal:    item.UnitPrice * float64(item.Quantity),
			})
			view.TotalItems += item.Quantity
			view.TotalAmount += item.UnitPrice * float64(item.Quantity)
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CartView), nil
}

// Count returns the total item quantity; zero when the buyer has no cart yet.
func (s *CartService) Count(ctx context.Context, buyerID string) (int, error) {
	cart, err := s.carts.GetOrCreate(ctx, buyerID)
	if err != nil {
		return 0, err
	}
	return cart.TotalItems(), nil
}

// AddItem snapshots the product's current price into the cart, merging
// quantity when the product is already present.
func (s *CartService) AddItem(ctx context.Context, buyerID string, productID uuid.UUID, quantity int) (*CartView, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: product not found or unavailable", domain.ErrNotFound)
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%w: product not found or unavailable", domain.ErrNotFound)
	}
	if product.Stock < quantity {
		return nil, fmt.Errorf("%w: only %d items available in stock", domain.ErrValidation, product.Stock)
	}

	cart, err := s.carts.GetOrCreate(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	item, err := cart.AddItem(productID, quantity, product.Price, product.SellerID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.UpsertItem(ctx, cart.ID, item); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, buyerID)
}

// UpdateQuantity overwrites the line's quantity; zero removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, buyerID string, productID uuid.UUID, quantity int) (*CartView, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: product not found or unavailable", domain.ErrNotFound)
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%w: product not found or unavailable", domain.ErrNotFound)
	}
	if quantity > 0 && product.Stock < quantity {
		return nil, fmt.Errorf("%w: only %d items available in stock", domain.ErrValidation, product.Stock)
	}

	cart, err := s.carts.GetOrCreate(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	item, removed, err := cart.UpdateItemQuantity(productID, quantity)
	if err != nil {
		return nil, err
	}
	if removed {
		err = s.carts.RemoveItem(ctx, cart.ID, productID)
	} else {
		err = s.carts.UpsertItem(ctx, cart.ID, item)
	}
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, buyerID)
}

// RemoveItem is idempotent.
func (s *CartService) RemoveItem(ctx context.Context, buyerID string, productID uuid.UUID) (*CartView, error) {
	cart, err := s.carts.GetOrCreate(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	cart.RemoveItem(productID)
	if err := s.carts.RemoveItem(ctx, cart.ID, productID); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, buyerID)
}

func (s *CartService) Clear(ctx context.Context, buyerID string) error {
	cart, err := s.carts.GetOrCreate(ctx, buyerID)
	if err != nil {
		return err
	}
	cart.Clear()
	return s.carts.ClearItems(ctx, cart.ID)
}

// Validate produces the per-line availability report without mutating
// anything.
func (s *CartService) Validate(ctx context.Context, buyerID string) ([]LineReport, bool, error) {
	cart, err := s.carts.GetOrCreate(ctx, buyerID)
	if err != nil {
		return nil, false, err
	}
	if cart.IsEmpty() {
		return nil, false, domain.ErrEmptyCart
	}

	products, err := s.resolveProducts(ctx, cart)
	if err != nil {
		return nil, false, err
	}
	report, valid := buildReport(cart, products)
	return report, valid, nil
}

func (s *CartService) resolveProducts(ctx context.Context, cart *domain.Cart) (map[uuid.UUID]*domain.Product, error) {
	if cart.IsEmpty() {
		return map[uuid.UUID]*domain.Product{}, nil
	}
	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	return s.products.GetByIDs(ctx, ids)
}
