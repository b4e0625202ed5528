package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductFixture represents test product data
type ProductFixture struct {
	ID       string
	Code     string
	Name     string
	Unit     string
	MinStock int
	IsActive bool
}

// WarehouseFixture represents test warehouse data
type WarehouseFixture struct {
	ID       string
	Name     string
	Address  string
	IsActive bool
}

// SupplierFixture represents test supplier data
type SupplierFixture struct {
	ID       string
	Name     string
	Phone    string
	Address  string
	IsActive bool
}

// BatchFixture represents test batch data
type BatchFixture struct {
	WarehouseID string
	ProductID   string
	LotCode     string
	ExpiryDate  time.Time
	Quantity    int
	UnitCost    decimal.Decimal
}

// CachedUserFixture represents test user cache data
type CachedUserFixture struct {
	UserID    string
	FirstName string
	LastName  string
	Email     string
	RoleName  string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Product creates a product fixture with defaults
func (f *FixtureFactory) Product(opts ...func(*ProductFixture)) ProductFixture {
	seq := f.nextSeq()

	product := ProductFixture{
		ID:       uuid.New().String(),
		Code:     fmt.Sprintf("SP%04d", seq),
		Name:     fmt.Sprintf("Paracetamol %d mg", 100*seq),
		Unit:     "box",
		MinStock: 0,
		IsActive: true,
	}

	for _, opt := range opts {
		opt(&product)
	}

	return product
}

// WithProductCode overrides the product code
func WithProductCode(code string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Code = code
	}
}

// WithProductName overrides the product name
func WithProductName(name string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Name = name
	}
}

// WithMinStock sets the low-stock alert threshold
func WithMinStock(min int) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.MinStock = min
	}
}

// Warehouse creates a warehouse fixture with defaults
func (f *FixtureFactory) Warehouse(opts ...func(*WarehouseFixture)) WarehouseFixture {
	seq := f.nextSeq()

	wh := WarehouseFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Warehouse %d", seq),
		Address:  fmt.Sprintf("%d Ly Thuong Kiet, Hanoi", seq),
		IsActive: true,
	}

	for _, opt := range opts {
		opt(&wh)
	}

	return wh
}

// WithWarehouseName overrides the warehouse name
func WithWarehouseName(name string) func(*WarehouseFixture) {
	return func(w *WarehouseFixture) {
		w.Name = name
	}
}

// Supplier creates a supplier fixture with defaults
func (f *FixtureFactory) Supplier(opts ...func(*SupplierFixture)) SupplierFixture {
	seq := f.nextSeq()

	s := SupplierFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Duoc Pham %d", seq),
		Phone:    fmt.Sprintf("+84 24 555 %04d", seq),
		Address:  fmt.Sprintf("%d Tran Hung Dao, Hanoi", seq),
		IsActive: true,
	}

	for _, opt := range opts {
		opt(&s)
	}

	return s
}

// Batch creates a batch fixture with defaults. Warehouse and product ids
// must come from rows that already exist.
func (f *FixtureFactory) Batch(warehouseID, productID string, opts ...func(*BatchFixture)) BatchFixture {
	seq := f.nextSeq()

	b := BatchFixture{
		WarehouseID: warehouseID,
		ProductID:   productID,
		LotCode:     fmt.Sprintf("LOT%04d", seq),
		ExpiryDate:  time.Now().AddDate(1, 0, 0).Truncate(24 * time.Hour),
		Quantity:    100,
		UnitCost:    decimal.NewFromInt(1000),
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

// WithLotCode overrides the lot code
func WithLotCode(code string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.LotCode = code
	}
}

// WithExpiry sets the expiry date
func WithExpiry(date time.Time) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ExpiryDate = date
	}
}

// WithQuantity sets the batch quantity
func WithQuantity(qty int) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.Quantity = qty
	}
}

// WithUnitCost sets the batch unit cost
func WithUnitCost(cost decimal.Decimal) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.UnitCost = cost
	}
}

// CachedUser creates a cached user fixture with defaults
func (f *FixtureFactory) CachedUser(opts ...func(*CachedUserFixture)) CachedUserFixture {
	seq := f.nextSeq()

	u := CachedUserFixture{
		UserID:    uuid.New().String(),
		FirstName: fmt.Sprintf("Test%d", seq),
		LastName:  "User",
		Email:     fmt.Sprintf("user%d@test.pharmstock.vn", seq),
		RoleName:  "pharmacist",
	}

	for _, opt := range opts {
		opt(&u)
	}

	return u
}
