package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avolkov/storefront-backend/internal/cart"
	"github.com/avolkov/storefront-backend/internal/products"
	"github.com/avolkov/storefront-backend/pkg/db/models"
	"github.com/avolkov/storefront-backend/pkg/enums"
	pkgerrors "github.com/avolkov/storefront-backend/pkg/errors"
	"github.com/avolkov/storefront-backend/pkg/logger"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:orders_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL DEFAULT '0',
  stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS delivery_types (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL UNIQUE,
  cost TEXT NOT NULL DEFAULT '0',
  is_active INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'accepted',
  delivery_type_id TEXT,
  payment_type TEXT NOT NULL DEFAULT 'own_online',
  city TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_one_accepted_per_buyer
  ON orders (buyer_id) WHERE status = 'accepted';
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price TEXT NOT NULL DEFAULT '0',
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedDeliveryTypes(t *testing.T, db *gorm.DB) (regular, express models.DeliveryType) {
	t.Helper()
	regular = models.DeliveryType{
		ID:       uuid.New(),
		Kind:     enums.DeliveryKindRegular,
		Cost:     decimal.NewFromInt(200),
		IsActive: true,
	}
	express = models.DeliveryType{
		ID:       uuid.New(),
		Kind:     enums.DeliveryKindExpress,
		Cost:     decimal.NewFromInt(700),
		IsActive: true,
	}
	require.NoError(t, db.Create(&regular).Error)
	require.NoError(t, db.Create(&express).Error)
	return regular, express
}

func seedOrderProduct(t *testing.T, db *gorm.DB, title string, price int64, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:       uuid.New(),
		Title:    title,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type memoryCartStore struct {
	carts map[string]cart.Contents
}

func newMemoryCartStore() *memoryCartStore {
	return &memoryCartStore{carts: map[string]cart.Contents{}}
}

func (m *memoryCartStore) Load(_ context.Context, sessionID string) (cart.Contents, error) {
	contents, ok := m.carts[sessionID]
	if !ok {
		return cart.Contents{}, nil
	}
	return contents, nil
}

func (m *memoryCartStore) Save(_ context.Context, sessionID string, contents cart.Contents) error {
	m.carts[sessionID] = contents
	return nil
}

func (m *memoryCartStore) Clear(_ context.Context, sessionID string) error {
	delete(m.carts, sessionID)
	return nil
}

func newOrdersTestService(t *testing.T, db *gorm.DB, carts cart.Store) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	svc, err := NewService(
		NewRepository(db),
		products.NewRepository(db),
		carts,
		gormTxRunner{db: db},
		logg,
		decimal.NewFromInt(2000),
	)
	require.NoError(t, err)
	return svc
}

func TestCreateDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("creates order with cart price snapshot and clears cart", func(t *testing.T) {
		db := setupOrdersTestDB(t)
		product := seedOrderProduct(t, db, "keyboard", 1500, 10)

		store := newMemoryCartStore()
		store.carts["sess-1"] = cart.Contents{
			product.ID.String(): {Count: 2, Price: decimal.NewFromInt(1200)},
		}
		svc := newOrdersTestService(t, db, store)
		buyerID := uuid.New()

		order, created, err := svc.CreateDraft(ctx, buyerID, "sess-1", []DraftLine{
			{ProductID: product.ID, Count: 2},
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, enums.OrderStatusAccepted, order.Status)
		require.Len(t, order.Items, 1)
		// Price comes from the cart entry, not the current product row.
		assert.True(t, order.Items[0].Price.Equal(decimal.NewFromInt(1200)))
		assert.Equal(t, 2, order.Items[0].Quantity)
		assert.NotContains(t, store.carts, "sess-1")
	})

	t.Run("falls back to product price when cart has no entry", func(t *testing.T) {
		db := setupOrdersTestDB(t)
		product := seedOrderProduct(t, db, "keyboard", 1500, 10)
		svc := newOrdersTestService(t, db, newMemoryCartStore())

		order, created, err := svc.CreateDraft(ctx, uuid.New(), "sess-1", []DraftLine{
			{ProductID: product.ID, Count: 1},
		})
		require.NoError(t, err)
		assert.True(t, created)
		require.Len(t, order.Items, 1)
		assert.True(t, order.Items[0].Price.Equal(decimal.NewFromInt(1500)))
	})

	t.Run("returns existing draft unchanged", func(t *testing.T) {
		db := setupOrdersTestDB(t)
		product := seedOrderProduct(t, db, "keyboard", 1500, 10)
		svc := newOrdersTestService(t, db, newMemoryCartStore())
		buyerID := uuid.New()

		first, created, err := svc.CreateDraft(ctx, buyerID, "sess-1", []DraftLine{
			{ProductID: product.ID, Count: 1},
		})
		require.NoError(t, err)
		require.True(t, created)

		second, created, err := svc.CreateDraft(ctx, buyerID, "sess-1", []DraftLine{
			{ProductID: product.ID, Count: 5},
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		require.Len(t, second.Items, 1)
		assert.Equal(t, 1, second.Items[0].Quantity)
	})

	t.Run("rejects unknown product", func(t *testing.T) {
		db := setupOrdersTestDB(t)
		svc := newOrdersTestService(t, db, newMemoryCartStore())

		_, _, err := svc.CreateDraft(ctx, uuid.New(), "sess-1", []DraftLine{
			{ProductID: uuid.New(), Count: 1},
		})
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	})

	t.Run("rejects empty line list", func(t *testing.T) {
		db := setupOrdersTestDB(t)
		svc := newOrdersTestService(t, db, newMemoryCartStore())

		_, _, err := svc.CreateDraft(ctx, uuid.New(), "sess-1", nil)
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})
}

// racingTxRunner inserts a rival accepted order for the buyer right
// before the transaction runs, so the unique index fires mid-create.
type racingTxRunner struct {
	db      *gorm.DB
	buyerID uuid.UUID
	rival   *models.Order
}

func (r *racingTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.rival == nil {
		rival := &models.Order{
			ID:       uuid.New(),
			BuyerID:  r.buyerID,
			Status:   enums.OrderStatusAccepted,
			IsActive: true,
		}
		if err := r.db.Create(rival).Error; err != nil {
			return err
		}
		r.rival = rival
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestCreateDraftConcurrentWinner(t *testing.T) {
	ctx := context.Background()
	db := setupOrdersTestDB(t)
	product := seedOrderProduct(t, db, "keyboard", 1500, 10)
	buyerID := uuid.New()

	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	runner := &racingTxRunner{db: db, buyerID: buyerID}
	svc, err := NewService(
		NewRepository(db),
		products.NewRepository(db),
		newMemoryCartStore(),
		runner,
		logg,
		decimal.NewFromInt(2000),
	)
	require.NoError(t, err)

	order, created, err := svc.CreateDraft(ctx, buyerID, "sess-1", []DraftLine{
		{ProductID: product.ID, Count: 2},
	})
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, runner.rival)
	assert.Equal(t, runner.rival.ID, order.ID)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Where("buyer_id = ?", buyerID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()

	t.Run("moves draft to awaiting_payment with checkout fields", func(t *testing.T) {
		db := setupOrdersTestDB(t)
		seedDeliveryTypes(t, db)
		product := seedOrderProduct(t, db, "keyboard", 1500, 10)
		svc := newOrdersTestService(t, db, newMemoryCartStore())
		buyerID := uuid.New()

		_, _, err := svc.CreateDraft(ctx, buyerID, "sess-1", []DraftLine{
			{ProductID: product.ID, Count: 1},
		})
		require.NoError(t, err)

		order, err := svc.Confirm(ctx, buyerID, ConfirmInput{
			Address:      "12 Main st",
			City:         "Springfield",
			DeliveryKind: enums.DeliveryKindExpress,
		})
		require.NoError(t, err)
		assert.Equal(t, enums.OrderStatusAwaitingPayment, order.Status)
		assert.Equal(t, "Springfield", order.City)
		assert.Equal(t, enums.PaymentTypeOwnOnline, order.PaymentType)
		require.NotNil(t, order.DeliveryType)
		assert.Equal(t, enums.DeliveryKindExpress, order.DeliveryType.Kind)

		// The draft slot frees up once the order leaves accepted.
		_, err = svc.GetActive(ctx, buyerID)
		require.Error(t, err)
	})

	t.Run("fails without an accepted order", func(t *testing.T) {
		db := setupOrdersTestDB(t)
		seedDeliveryTypes(t, db)
		svc := newOrdersTestService(t, db, newMemoryCartStore())

		_, err := svc.Confirm(ctx, uuid.New(), ConfirmInput{
			Address:      "12 Main st",
			City:         "Springfield",
			DeliveryKind: enums.DeliveryKindRegular,
		})
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	})

	t.Run("rejects unknown delivery kind", func(t *testing.T) {
		db := setupOrdersTestDB(t)
		svc := newOrdersTestService(t, db, newMemoryCartStore())

		_, err := svc.Confirm(ctx, uuid.New(), ConfirmInput{
			Address:      "12 Main st",
			City:         "Springfield",
			DeliveryKind: enums.DeliveryKind("drone"),
		})
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})
}

func TestTotalCost(t *testing.T) {
	db := setupOrdersTestDB(t)
	regular, express := seedDeliveryTypes(t, db)
	svc := newOrdersTestService(t, db, newMemoryCartStore())

	orderWith := func(deliveryType *models.DeliveryType, price int64, qty int) *models.Order {
		return &models.Order{
			DeliveryType: deliveryType,
			Items: []models.OrderItem{
				{Price: decimal.NewFromInt(price), Quantity: qty},
			},
		}
	}

	t.Run("regular delivery below threshold charges", func(t *testing.T) {
		total := svc.TotalCost(orderWith(&regular, 999, 2))
		assert.True(t, total.Equal(decimal.NewFromInt(2198)))
	})

	t.Run("regular delivery waived at threshold", func(t *testing.T) {
		total := svc.TotalCost(orderWith(&regular, 1000, 2))
		assert.True(t, total.Equal(decimal.NewFromInt(2000)))
	})

	t.Run("express always charges", func(t *testing.T) {
		total := svc.TotalCost(orderWith(&express, 3000, 1))
		assert.True(t, total.Equal(decimal.NewFromInt(3700)))
	})

	t.Run("no delivery type selected", func(t *testing.T) {
		total := svc.TotalCost(orderWith(nil, 100, 3))
		assert.True(t, total.Equal(decimal.NewFromInt(300)))
	})
}

func TestGetByIDAndList(t *testing.T) {
	ctx := context.Background()
	db := setupOrdersTestDB(t)
	product := seedOrderProduct(t, db, "keyboard", 1500, 10)
	svc := newOrdersTestService(t, db, newMemoryCartStore())
	buyerID := uuid.New()

	order, _, err := svc.CreateDraft(ctx, buyerID, "sess-1", []DraftLine{
		{ProductID: product.ID, Count: 1},
	})
	require.NoError(t, err)

	found, err := svc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	require.Len(t, found.Items, 1)

	_, err = svc.GetByID(ctx, uuid.New())
	require.Error(t, err)

	listed, err := svc.List(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	listed, err = svc.List(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, listed)
}
