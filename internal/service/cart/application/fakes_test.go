package application

import (
	"context"
	"sync"
	"time"

	"bazaar/internal/service/cart/domain"
	"bazaar/internal/service/cart/domain/port"
)

// 内存版仓储实现，语义与 GORM 实现一致：
// 记录变更和库存变更在同一把锁下完成，删除行数裁决终态竞争。

type memLedger struct {
	mu    sync.Mutex
	stock map[string]int
}

func newMemLedger() *memLedger {
	return &memLedger{stock: make(map[string]int)}
}

func (l *memLedger) SetStock(productID string, qty int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[productID] = qty
}

func (l *memLedger) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserveLocked(productID, qty)
}

func (l *memLedger) reserveLocked(productID string, qty int) (int, error) {
	current, ok := l.stock[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	if current < qty {
		return 0, domain.ErrInsufficientStock
	}
	l.stock[productID] = current - qty
	return current - qty, nil
}

func (l *memLedger) Restore(ctx context.Context, productID string, qty int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.restoreLocked(productID, qty)
}

func (l *memLedger) restoreLocked(productID string, qty int) (int, error) {
	current, ok := l.stock[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	l.stock[productID] = current + qty
	return current + qty, nil
}

func (l *memLedger) Available(ctx context.Context, productID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.stock[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	return current, nil
}

type memStore struct {
	mu      sync.Mutex
	ledger  *memLedger
	records map[string]*domain.Reservation

	// failRelease 注入单条记录的释放失败，测试清扫的 continue-on-error
	failRelease map[string]bool
}

func newMemStore(ledger *memLedger) *memStore {
	return &memStore{
		ledger:      ledger,
		records:     make(map[string]*domain.Reservation),
		failRelease: make(map[string]bool),
	}
}

func (s *memStore) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *memStore) FindByShopperAndProduct(ctx context.Context, shopperID, productID string) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.ShopperID == shopperID && record.ProductID == productID {
			copied := *record
			return &copied, nil
		}
	}
	return nil, domain.ErrReservationNotFound
}

func (s *memStore) ListByShopper(ctx context.Context, shopperID string) ([]*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Reservation
	for _, record := range s.records {
		if record.ShopperID == shopperID {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStore) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Reservation
	for _, record := range s.records {
		if record.IsExpired(now) {
			copied := *record
			out = append(out, &copied)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) Reserve(ctx context.Context, shopperID, productID string, qty int, window time.Duration) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()

	for _, record := range s.records {
		if record.ShopperID == shopperID && record.ProductID == productID {
			if _, err := s.ledger.reserveLocked(productID, qty); err != nil {
				return nil, err
			}
			record.Quantity += qty
			record.Renew(window)
			copied := *record
			return &copied, nil
		}
	}

	record, err := domain.NewReservation(shopperID, productID, qty, window)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.reserveLocked(productID, qty); err != nil {
		return nil, err
	}
	s.records[record.ID] = record
	copied := *record
	return &copied, nil
}

func (s *memStore) Adjust(ctx context.Context, recordID string, newQty int, window time.Duration) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}

	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()

	delta := newQty - record.Quantity
	switch {
	case delta > 0:
		if _, err := s.ledger.reserveLocked(record.ProductID, delta); err != nil {
			return nil, err
		}
	case delta < 0:
		if _, err := s.ledger.restoreLocked(record.ProductID, -delta); err != nil {
			return nil, err
		}
	}

	if _, err := record.ChangeQuantity(newQty, window); err != nil {
		return nil, err
	}
	copied := *record
	return &copied, nil
}

func (s *memStore) Release(ctx context.Context, recordID string) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRelease[recordID] {
		return nil, domain.ErrReservationNotFound // 占位错误，测试里只关心失败
	}

	record, ok := s.records[recordID]
	if !ok {
		return nil, nil
	}
	delete(s.records, recordID)

	if _, err := s.ledger.Restore(ctx, record.ProductID, record.Quantity); err != nil {
		return nil, err
	}
	copied := *record
	return &copied, nil
}

func (s *memStore) ReleaseExpired(ctx context.Context, recordID string, now time.Time) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRelease[recordID] {
		return nil, domain.ErrReservationNotFound // 占位错误，测试里只关心失败
	}

	record, ok := s.records[recordID]
	if !ok || !record.IsExpired(now) {
		return nil, nil
	}
	delete(s.records, recordID)

	if _, err := s.ledger.Restore(ctx, record.ProductID, record.Quantity); err != nil {
		return nil, err
	}
	copied := *record
	return &copied, nil
}

// consume 模拟订单仓储的消费路径：删记录、不回补。
// 和 GORM 实现一样按 (id, shopper, quantity) 精确匹配，
// 任一条对不上整体失败。
func (s *memStore) consume(shopperID string, lines []domain.ConsumedReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range lines {
		record, ok := s.records[line.ID]
		if !ok || record.ShopperID != shopperID || record.Quantity != line.Quantity {
			return domain.ErrLineMismatch
		}
	}
	for _, line := range lines {
		delete(s.records, line.ID)
	}
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	store  *memStore
	ledger *memLedger
	orders map[string]*domain.Order

	failCreate bool
}

func newMemOrders(store *memStore, ledger *memLedger) *memOrders {
	return &memOrders{store: store, ledger: ledger, orders: make(map[string]*domain.Order)}
}

func (o *memOrders) CreateFromReservations(ctx context.Context, order *domain.Order, lines []domain.ConsumedReservation) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.failCreate {
		return domain.ErrOrderNotFound // 占位错误，模拟落单失败
	}
	if err := o.store.consume(order.ShopperID, lines); err != nil {
		return err
	}
	copied := *order
	o.orders[order.ID] = &copied
	return nil
}

func (o *memOrders) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (o *memOrders) ListByShopper(ctx context.Context, shopperID string) ([]*domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*domain.Order
	for _, order := range o.orders {
		if order.ShopperID == shopperID {
			copied := *order
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (o *memOrders) Cancel(ctx context.Context, orderID string) (*domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, ok := o.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if order.State == domain.StateCancelled {
		copied := *order
		return &copied, nil
	}
	if err := order.Cancel(); err != nil {
		return nil, err
	}
	for _, item := range order.Items {
		if _, err := o.ledger.Restore(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}
	copied := *order
	return &copied, nil
}

type memProducts struct {
	mu       sync.Mutex
	products map[string]*domain.Product
}

func newMemProducts() *memProducts {
	return &memProducts{products: make(map[string]*domain.Product)}
}

func (p *memProducts) Add(product *domain.Product) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.products[product.ID] = product
}

func (p *memProducts) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	product, ok := p.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	copied := *product
	return &copied, nil
}

type memPublisher struct {
	mu        sync.Mutex
	placed    []*domain.OrderPlaced
	cancelled []*domain.OrderCancelled
	expired   []*domain.ReservationExpired
}

func (p *memPublisher) PublishOrderPlaced(ctx context.Context, event *domain.OrderPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, event)
	return nil
}

func (p *memPublisher) PublishOrderCancelled(ctx context.Context, event *domain.OrderCancelled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, event)
	return nil
}

func (p *memPublisher) PublishReservationExpired(ctx context.Context, event *domain.ReservationExpired) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, event)
	return nil
}

func (p *memPublisher) expiredCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.expired)
}

// fixedPricing 按目录价定价。
type fixedPricing struct{}

func (fixedPricing) Quote(ctx context.Context, fact port.PricingFact) (float64, error) {
	return fact.BasePrice, nil
}

// heldLock 模拟锁被其他实例占用。
type heldLock struct{}

func (heldLock) TryLock() error { return ErrSweepLockHeld }
func (heldLock) Unlock() error  { return nil }
