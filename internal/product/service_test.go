package product

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loja/storefront/internal/media"
)

// --- Mock implementations ---

type mockStore struct {
	products   map[string]*Product
	variations map[string]*Variation
	created    []*Product
	updated    []*Product
	saveErr    error
	nextID     int
}

func newMockStore(products ...*Product) *mockStore {
	m := &mockStore{products: map[string]*Product{}, variations: map[string]*Variation{}}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockStore) Create(_ context.Context, p *Product) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.nextID++
	p.ID = "p" + string(rune('0'+m.nextID))
	m.products[p.ID] = p
	m.created = append(m.created, p)
	return nil
}

func (m *mockStore) Update(_ context.Context, p *Product) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.products[p.ID]; !ok {
		return ErrNotFound
	}
	m.products[p.ID] = p
	m.updated = append(m.updated, p)
	return nil
}

func (m *mockStore) Delete(_ context.Context, id string) (*string, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.products, id)
	return p.ImagePath, nil
}

func (m *mockStore) GetByID(_ context.Context, id string) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) GetBySlug(_ context.Context, slug string) (*Product, error) {
	for _, p := range m.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockStore) List(_ context.Context, limit, offset int) ([]Product, int, error) {
	all := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		all = append(all, *p)
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (m *mockStore) Search(ctx context.Context, term string, limit, offset int) ([]Product, int, error) {
	var hits []Product
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) {
			hits = append(hits, *p)
		}
	}
	return hits, len(hits), nil
}

func (m *mockStore) GetVariation(_ context.Context, id string) (*Variation, error) {
	v, ok := m.variations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *mockStore) CreateVariation(_ context.Context, v *Variation) error {
	if _, ok := m.products[v.ProductID]; !ok {
		return ErrNotFound
	}
	v.ID = "v" + v.ProductID
	m.variations[v.ID] = v
	return nil
}

func (m *mockStore) UpdateVariation(_ context.Context, v *Variation) error {
	if _, ok := m.variations[v.ID]; !ok {
		return ErrNotFound
	}
	m.variations[v.ID] = v
	return nil
}

func (m *mockStore) DeleteVariation(_ context.Context, id string) error {
	if _, ok := m.variations[id]; !ok {
		return ErrNotFound
	}
	delete(m.variations, id)
	return nil
}

type mockImages struct {
	processed []string
	discarded []string
	body      string
	err       error
}

func (m *mockImages) Process(_ context.Context, src io.Reader, filename string) (*media.Object, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, _ := io.ReadAll(src)
	m.body = string(b)
	m.processed = append(m.processed, filename)
	path := "produto_imagens/2024/03/" + filename
	return &media.Object{Path: path, URL: "https://cdn.test/object/public/products/" + path}, nil
}

func (m *mockImages) Discard(_ context.Context, objectPath string) bool {
	m.discarded = append(m.discarded, objectPath)
	return true
}

// --- Helpers ---

func newTestProduct() *Product {
	return &Product{
		Name:             "Camiseta Básica",
		ShortDescription: "Algodão",
		MarketingPrice:   decimal.RequireFromString("59.90"),
	}
}

func withImage(p *Product, name, body string) *Product {
	p.Image = &Upload{Filename: name, Size: int64(len(body)), Body: strings.NewReader(body)}
	return p
}

func strPtr(s string) *string { return &s }

// --- Save ---

func TestSave_DerivesSlugAndDefaults(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, &mockImages{}, false, zap.NewNop())

	p := newTestProduct()
	require.NoError(t, svc.Save(context.Background(), p))

	assert.Equal(t, "camiseta-basica", p.Slug)
	assert.Equal(t, TypeVariable, p.Type)
	assert.NotEmpty(t, p.ID)
	assert.Nil(t, p.ImageURL)
}

func TestSave_KeepsExplicitSlug(t *testing.T) {
	svc := NewService(newMockStore(), &mockImages{}, false, zap.NewNop())

	p := newTestProduct()
	p.Slug = "promo-verao"
	require.NoError(t, svc.Save(context.Background(), p))
	assert.Equal(t, "promo-verao", p.Slug)
}

func TestSave_UploadsImageAndClearsLocalFile(t *testing.T) {
	store := newMockStore()
	images := &mockImages{}
	svc := NewService(store, images, false, zap.NewNop())

	p := withImage(newTestProduct(), "foto.jpg", "jpeg-bytes")
	require.NoError(t, svc.Save(context.Background(), p))

	assert.Equal(t, []string{"foto.jpg"}, images.processed)
	assert.Equal(t, "jpeg-bytes", images.body)
	require.NotNil(t, p.ImageURL)
	assert.Equal(t, "https://cdn.test/object/public/products/produto_imagens/2024/03/foto.jpg", *p.ImageURL)
	assert.Equal(t, "produto_imagens/2024/03/foto.jpg", *p.ImagePath)
	assert.Nil(t, p.Image)
	assert.Equal(t, p.DisplayImageURL(), *p.ImageURL)
	assert.Len(t, store.created, 1)
}

func TestSave_EmptyAttachmentIsIgnored(t *testing.T) {
	images := &mockImages{}
	svc := NewService(newMockStore(), images, false, zap.NewNop())

	p := withImage(newTestProduct(), "empty.png", "")
	require.NoError(t, svc.Save(context.Background(), p))
	assert.Empty(t, images.processed)
	assert.Nil(t, p.ImageURL)
}

func TestSave_ImageFailureAbortsSave(t *testing.T) {
	boom := errors.New("decode image: unknown format")
	store := newMockStore()
	svc := NewService(store, &mockImages{err: boom}, true, zap.NewNop())

	p := withImage(newTestProduct(), "foto.jpg", "garbage")
	err := svc.Save(context.Background(), p)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImage)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.created)
	assert.Empty(t, p.ID)
	assert.Nil(t, p.ImageURL)
}

func TestSave_InvalidProductNeverUploads(t *testing.T) {
	images := &mockImages{}
	svc := NewService(newMockStore(), images, false, zap.NewNop())

	p := withImage(newTestProduct(), "foto.jpg", "x")
	p.MarketingPrice = decimal.NewFromInt(-1)

	assert.ErrorIs(t, svc.Save(context.Background(), p), ErrInvalid)
	assert.Empty(t, images.processed)
}

func TestSave_ReplacedImageCleanup(t *testing.T) {
	for _, cleanup := range []bool{false, true} {
		existing := newTestProduct()
		existing.ID = "p1"
		existing.Slug = "camiseta-basica"
		existing.ImagePath = strPtr("produto_imagens/2024/01/old.png")
		existing.ImageURL = strPtr("https://cdn.test/old.png")

		images := &mockImages{}
		svc := NewService(newMockStore(existing), images, cleanup, zap.NewNop())

		p, err := svc.GetByID(context.Background(), "p1")
		require.NoError(t, err)
		withImage(p, "new.png", "png")
		require.NoError(t, svc.Save(context.Background(), p))

		assert.Equal(t, "produto_imagens/2024/03/new.png", *p.ImagePath)
		if cleanup {
			assert.Equal(t, []string{"produto_imagens/2024/01/old.png"}, images.discarded)
		} else {
			assert.Empty(t, images.discarded)
		}
	}
}

func TestSave_StoreFailureDiscardsFreshUpload(t *testing.T) {
	store := newMockStore()
	store.saveErr = ErrSlugTaken
	images := &mockImages{}
	svc := NewService(store, images, true, zap.NewNop())

	err := svc.Save(context.Background(), withImage(newTestProduct(), "foto.png", "png"))
	assert.ErrorIs(t, err, ErrSlugTaken)
	assert.Equal(t, []string{"produto_imagens/2024/03/foto.png"}, images.discarded)
}

// --- Queries & deletion ---

func TestList_Pagination(t *testing.T) {
	store := newMockStore()
	for i := 0; i < 23; i++ {
		p := newTestProduct()
		p.ID = "id" + string(rune('A'+i))
		store.products[p.ID] = p
	}
	svc := NewService(store, &mockImages{}, false, zap.NewNop())

	page, err := svc.List(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, 23, page.Total)
	assert.Len(t, page.Products, 3)

	first, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Page)
	assert.Len(t, first.Products, PageSize)
}

func TestDelete_CleanupOnlyWhenEnabled(t *testing.T) {
	for _, cleanup := range []bool{false, true} {
		p := newTestProduct()
		p.ID = "p1"
		p.ImagePath = strPtr("produto_imagens/2024/03/x.png")

		images := &mockImages{}
		svc := NewService(newMockStore(p), images, cleanup, zap.NewNop())

		require.NoError(t, svc.Delete(context.Background(), "p1"))
		if cleanup {
			assert.Equal(t, []string{"produto_imagens/2024/03/x.png"}, images.discarded)
		} else {
			assert.Empty(t, images.discarded)
		}
		assert.True(t, svc.IsNotFound(svc.Delete(context.Background(), "p1")))
	}
}

func TestVariations(t *testing.T) {
	p := newTestProduct()
	p.ID = "p1"
	svc := NewService(newMockStore(p), &mockImages{}, false, zap.NewNop())
	ctx := context.Background()

	v := &Variation{ProductID: "p1", Price: decimal.NewFromInt(10), Stock: -1}
	assert.ErrorIs(t, svc.AddVariation(ctx, v), ErrInvalid)

	v.Stock = 3
	require.NoError(t, svc.AddVariation(ctx, v))
	assert.NotEmpty(t, v.ID)

	assert.ErrorIs(t, svc.AddVariation(ctx, &Variation{ProductID: "missing"}), ErrNotFound)

	v.PromotionalPrice = decimal.NewFromInt(8)
	require.NoError(t, svc.UpdateVariation(ctx, v))
	got, err := svc.GetVariation(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, got.UnitPrice().Equal(decimal.NewFromInt(8)))

	require.NoError(t, svc.DeleteVariation(ctx, v.ID))
	assert.ErrorIs(t, svc.DeleteVariation(ctx, v.ID), ErrNotFound)
}

// --- Model helpers ---

func TestVariation_DisplayName(t *testing.T) {
	v := Variation{}
	assert.Equal(t, "Camiseta", v.DisplayName("Camiseta"))
	v.Name = strPtr("")
	assert.Equal(t, "Camiseta", v.DisplayName("Camiseta"))
	v.Name = strPtr("Tamanho G")
	assert.Equal(t, "Tamanho G", v.DisplayName("Camiseta"))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "R$ 59,90", FormatPrice(decimal.RequireFromString("59.9")))
	assert.Equal(t, "R$ 0,00", FormatPrice(decimal.Zero))
	assert.Equal(t, "R$ 1234,57", FormatPrice(decimal.RequireFromString("1234.567")))
}

func TestProduct_Validate(t *testing.T) {
	ok := newTestProduct()
	ok.Slug = "x"
	ok.Type = TypeSimple
	require.NoError(t, ok.Validate())

	cases := map[string]func(p *Product){
		"no name":        func(p *Product) { p.Name = " " },
		"no short desc":  func(p *Product) { p.ShortDescription = "" },
		"no slug":        func(p *Product) { p.Slug = "" },
		"negative promo": func(p *Product) { p.PromotionalPrice = decimal.NewFromInt(-5) },
		"bad type":       func(p *Product) { p.Type = "X" },
	}
	for name, mutate := range cases {
		p := *ok
		mutate(&p)
		assert.ErrorIs(t, p.Validate(), ErrInvalid, name)
	}
}
