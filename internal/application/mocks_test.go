package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greenbasket/checkout-service/internal/domain"
	"github.com/greenbasket/checkout-service/internal/repository"
)

// In-memory repository doubles. The product store applies the same
// decrement-if-available rule as the real one, under a mutex, so the
// concurrency tests exercise the actual reservation contract.

type memProducts struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]*domain.Product
	failReserve map[uuid.UUID]error
}

func newMemProducts() *memProducts {
	return &memProducts{
		byID:        make(map[uuid.UUID]*domain.Product),
		failReserve: make(map[uuid.UUID]error),
	}
}

func (m *memProducts) add(p domain.Product) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := p
	m.byID[p.ID] = &cp
	return p.ID
}

func (m *memProducts) stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Stock
}

func (m *memProducts) setActive(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].IsActive = active
}

func (m *memProducts) setPrice(id uuid.UUID, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Price = price
}

func (m *memProducts) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[uuid.UUID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			cp := *p
			result[id] = &cp
		}
	}
	return result, nil
}

func (m *memProducts) ReserveStock(_ context.Context, id uuid.UUID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failReserve[id]; ok {
		return err
	}
	p, ok := m.byID[id]
	if !ok || p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

func (m *memProducts) RestoreStock(_ context.Context, id uuid.UUID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += quantity
	return nil
}

type memCarts struct {
	mu      sync.Mutex
	byBuyer map[string]*domain.Cart
	byID    map[uuid.UUID]*domain.Cart
}

func newMemCarts() *memCarts {
	return &memCarts{
		byBuyer: make(map[string]*domain.Cart),
		byID:    make(map[uuid.UUID]*domain.Cart),
	}
}

func (m *memCarts) seed(buyerID string, items ...domain.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.getOrCreateLocked(buyerID)
	cart.Items = append([]domain.CartItem{}, items...)
}

func (m *memCarts) lineCount(buyerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.byBuyer[buyerID]
	if !ok {
		return 0
	}
	return len(cart.Items)
}

func (m *memCarts) getOrCreateLocked(buyerID string) *domain.Cart {
	cart, ok := m.byBuyer[buyerID]
	if !ok {
		now := time.Now().UTC()
		cart = &domain.Cart{ID: uuid.New(), BuyerID: buyerID, CreatedAt: now, UpdatedAt: now}
		m.byBuyer[buyerID] = cart
		m.byID[cart.ID] = cart
	}
	return cart
}

func (m *memCarts) GetOrCreate(_ context.Context, buyerID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.getOrCreateLocked(buyerID)
	cp := *cart
	cp.Items = append([]domain.CartItem{}, cart.Items...)
	return &cp, nil
}

func (m *memCarts) UpsertItem(_ context.Context, cartID uuid.UUID, item domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.byID[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			cart.Items[i] = item
			return nil
		}
	}
	cart.Items = append(cart.Items, item)
	return nil
}

func (m *memCarts) RemoveItem(_ context.Context, cartID uuid.UUID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.byID[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memCarts) ClearItems(_ context.Context, cartID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.byID[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	cart.Items = nil
	return nil
}

type memOrders struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.Order
	seq  int64
}

func newMemOrders() *memOrders {
	return &memOrders{byID: make(map[uuid.UUID]*domain.Order)}
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem{}, o.Items...)
	if o.DeliveryDate != nil {
		d := *o.DeliveryDate
		cp.DeliveryDate = &d
	}
	return &cp
}

func (m *memOrders) Create(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	m.seq++
	o.OrderNumber = fmt.Sprintf("ORD%04d", m.seq)
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	m.byID[o.ID] = copyOrder(o)
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *memOrders) GetByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.OrderNumber == orderNumber {
			return copyOrder(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *memOrders) List(_ context.Context, f repository.ListFilter) ([]domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Order
	for _, o := range m.byID {
		if f.BuyerID != "" && o.BuyerID != f.BuyerID {
			continue
		}
		if f.SellerID != "" && !o.HasSeller(f.SellerID) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	var page []domain.Order
	for _, o := range matched[f.Offset:end] {
		page = append(page, *copyOrder(o))
	}
	return page, total, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[o.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	stored.Status = o.Status
	stored.TrackingNumber = o.TrackingNumber
	stored.UpdatedAt = o.UpdatedAt
	if o.DeliveryDate != nil {
		d := *o.DeliveryDate
		stored.DeliveryDate = &d
	}
	return nil
}

func (m *memOrders) UpdatePaymentStatus(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[o.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	stored.PaymentStatus = o.PaymentStatus
	stored.Status = o.Status
	stored.UpdatedAt = o.UpdatedAt
	return nil
}

func (m *memOrders) StatsSummary(_ context.Context, sellerID string) ([]repository.StatusStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStatus := make(map[domain.OrderStatus]*repository.StatusStat)
	for _, o := range m.byID {
		if sellerID != "" && !o.HasSeller(sellerID) {
			continue
		}
		st, ok := byStatus[o.Status]
		if !ok {
			st = &repository.StatusStat{Status: o.Status}
			byStatus[o.Status] = st
		}
		st.Count++
		st.Amount += o.TotalAmount
	}

	var stats []repository.StatusStat
	for _, st := range byStatus {
		stats = append(stats, *st)
	}
	return stats, nil
}

type recordNotifier struct {
	mu      sync.Mutex
	sellers []string
	err     error
}

func (n *recordNotifier) NotifyNewOrder(_ context.Context, sellerID string, _ *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sellers = append(n.sellers, sellerID)
	return nil
}

func (n *recordNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.sellers...)
}
