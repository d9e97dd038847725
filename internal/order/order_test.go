package order

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loja/storefront/internal/middleware"
	"github.com/loja/storefront/internal/product"
)

const (
	varP = "11111111-1111-1111-1111-111111111111"
	varM = "22222222-2222-2222-2222-222222222222"
	varG = "33333333-3333-3333-3333-333333333333"
)

func strPtr(s string) *string { return &s }

func testStock() map[string]Stock {
	return map[string]Stock{
		varP: {Variation: product.Variation{ID: varP, ProductID: "p1", Name: strPtr("P"),
			Price: decimal.RequireFromString("59.90"), Stock: 5}, ProductName: "Camiseta", ImageURL: "https://cdn.test/c.png"},
		varM: {Variation: product.Variation{ID: varM, ProductID: "p1",
			Price: decimal.RequireFromString("59.90"), PromotionalPrice: decimal.RequireFromString("39.90"), Stock: 2},
			ProductName: "Camiseta"},
		varG: {Variation: product.Variation{ID: varG, ProductID: "p1", Name: strPtr("G"),
			Price: decimal.RequireFromString("59.90"), Stock: 0}, ProductName: "Camiseta"},
	}
}

func TestBuild(t *testing.T) {
	o := Build("u1", []CartItem{
		{VariationID: varP, Quantity: 1},
		{VariationID: varM, Quantity: 3},
		{VariationID: varG, Quantity: 1},
		{VariationID: varP, Quantity: 1},
	}, testStock())

	assert.Equal(t, StatusCreated, o.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, varP, o.Items[0].VariationID)
	assert.Equal(t, 2, o.Items[0].Quantity, "repeated lines are merged")
	assert.Equal(t, "P", o.Items[0].VariationName)
	assert.Equal(t, 2, o.Items[1].Quantity, "clamped to stock")
	assert.Equal(t, "Camiseta", o.Items[1].VariationName, "unnamed variation uses the product name")
	assert.Equal(t, 4, o.Quantity)
	assert.Equal(t, "199.6", o.Total.String(), "2 x 59.90 + 2 x 39.90")

	assert.Equal(t, []Adjustment{
		{VariationID: varM, Requested: 3, Granted: 2},
		{VariationID: varG, Requested: 1, Granted: 0},
	}, o.Adjustments)
}

func TestBuild_UnknownVariation(t *testing.T) {
	o := Build("u1", []CartItem{{VariationID: "44444444-4444-4444-4444-444444444444", Quantity: 2}}, testStock())
	assert.Empty(t, o.Items)
	assert.True(t, o.Total.IsZero())
	assert.Len(t, o.Adjustments, 1)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Created", StatusCreated.Label())
	assert.Equal(t, "Shipped", StatusShipped.Label())
	assert.Equal(t, "X", Status("X").Label())
}

// fakeStore builds orders in memory the way the repository does.
type fakeStore struct {
	stock  map[string]Stock
	orders map[string]*Order
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{stock: testStock(), orders: map[string]*Order{}}
}

func (f *fakeStore) Place(_ context.Context, userID string, cart []CartItem) (*Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	o := Build(userID, cart, f.stock)
	if len(o.Items) == 0 {
		return o, ErrEmptyCart
	}
	for _, it := range o.Items {
		s := f.stock[it.VariationID]
		s.Variation.Stock -= it.Quantity
		f.stock[it.VariationID] = s
	}
	o.ID = "99999999-9999-9999-9999-99999999999" + string(rune('0'+len(f.orders)))
	o.CreatedAt = time.Now()
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]Order, error) {
	var out []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) GetForUser(_ context.Context, id, userID string) (*Order, error) {
	o, ok := f.orders[id]
	if !ok || o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func TestService_Place(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, zap.NewNop())
	ctx := context.Background()

	o, err := svc.Place(ctx, "u1", []CartItem{{VariationID: varM, Quantity: 5}})
	require.NoError(t, err)
	assert.Equal(t, 2, o.Quantity)
	assert.Equal(t, 0, store.stock[varM].Variation.Stock)

	_, err = svc.Place(ctx, "u1", []CartItem{{VariationID: varM, Quantity: 1}})
	assert.ErrorIs(t, err, ErrEmptyCart, "stock was used up by the first order")

	_, err = svc.Place(ctx, "u1", nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
	_, err = svc.Place(ctx, "u1", []CartItem{{VariationID: "abc", Quantity: 1}})
	assert.ErrorIs(t, err, ErrInvalidCart)
	_, err = svc.Place(ctx, "u1", []CartItem{{VariationID: varP, Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidCart)

	store.err = errors.New("deadlock detected")
	_, err = svc.Place(ctx, "u1", []CartItem{{VariationID: varP, Quantity: 1}})
	assert.ErrorIs(t, err, store.err)
}

func TestService_GetOtherUsersOrder(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, zap.NewNop())
	ctx := context.Background()

	o, err := svc.Place(ctx, "u1", []CartItem{{VariationID: varP, Quantity: 1}})
	require.NoError(t, err)

	got, err := svc.Get(ctx, o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = svc.Get(ctx, o.ID, "u2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, "not-a-uuid", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, userID))
}

func TestHandler(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(NewService(store, zap.NewNop()))
	router := chi.NewRouter()
	router.Post("/orders", h.Place)
	router.Get("/orders", h.List)
	router.Get("/orders/{id}", h.Detail)

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withUser(req, "u1"))
		return rec
	}

	rec := serve(httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"items":[{"variationId":"`+varP+`","quantity":2}]}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"C"`)

	rec = serve(httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"items":[{"variationId":"`+varG+`","quantity":1}]}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"items":[{"variationId":"x","quantity":1}]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), varP)

	rec = serve(httptest.NewRequest(http.MethodGet, "/orders/"+varP, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
