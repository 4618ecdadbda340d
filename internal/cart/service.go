package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avolkov/storefront-backend/pkg/db/models"
	pkgerrors "github.com/avolkov/storefront-backend/pkg/errors"
)

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Line joins a cart entry with a fresh product record.
type Line struct {
	Product models.Product
	Count   int
	Price   decimal.Decimal
}

// Service owns session cart mutations. Stock is deliberately not
// checked here; availability is only enforced at payment time.
type Service interface {
	Add(ctx context.Context, sessionID string, productID uuid.UUID, quantity int) (Contents, error)
	Reduce(ctx context.Context, sessionID string, productID uuid.UUID, quantity int) (Contents, error)
	Clear(ctx context.Context, sessionID string) error
	Lines(ctx context.Context, sessionID string) ([]Line, error)
	TotalCost(ctx context.Context, sessionID string) (decimal.Decimal, error)
}

type service struct {
	store    Store
	products productFinder
}

// NewService builds the cart service.
func NewService(store Store, products productFinder) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	return &service{store: store, products: products}, nil
}

// Add inserts a new entry at the product's current price or increments
// an existing entry's count.
func (s *service) Add(ctx context.Context, sessionID string, productID uuid.UUID, quantity int) (Contents, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	contents, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	key := productID.String()
	if entry, ok := contents[key]; ok {
		entry.Count += quantity
		contents[key] = entry
	} else {
		contents[key] = Entry{Count: quantity, Price: product.Price}
	}

	if err := s.store.Save(ctx, sessionID, contents); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return contents, nil
}

// Reduce lowers an entry's count. A zero quantity or a reduction that
// would drop the count to zero or below removes the line entirely;
// reducing an absent product is a no-op.
func (s *service) Reduce(ctx context.Context, sessionID string, productID uuid.UUID, quantity int) (Contents, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
	}

	contents, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	key := productID.String()
	entry, ok := contents[key]
	if !ok {
		return contents, nil
	}

	if quantity == 0 || entry.Count <= quantity {
		delete(contents, key)
	} else {
		entry.Count -= quantity
		contents[key] = entry
	}

	if err := s.store.Save(ctx, sessionID, contents); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return contents, nil
}

// Clear drops the whole cart from the session store.
func (s *service) Clear(ctx context.Context, sessionID string) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Lines joins cart entries with freshly loaded product rows. Products
// deactivated since they were added are silently dropped.
func (s *service) Lines(ctx context.Context, sessionID string) ([]Line, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}

	contents, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(contents) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(contents))
	for key := range contents {
		id, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	found, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	lines := make([]Line, 0, len(found))
	for _, product := range found {
		entry := contents[product.ID.String()]
		lines = append(lines, Line{Product: product, Count: entry.Count, Price: entry.Price})
	}
	return lines, nil
}

// TotalCost sums price times count over the stored entries.
func (s *service) TotalCost(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	if err := validateSession(sessionID); err != nil {
		return decimal.Zero, err
	}
	contents, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return contents.TotalCost(), nil
}

func validateSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return nil
}
