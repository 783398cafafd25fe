package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"storefront/internal/media"
	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recorder struct {
	mu            sync.Mutex
	stock         map[string]int
	deleted       []string
	purchases     []models.PurchaseRecord
	productEvents []string
	sessions      map[string]string
}

func newRecorder() *recorder {
	return &recorder{stock: map[string]int{}, sessions: map[string]string{}}
}

func (r *recorder) SetStock(_ context.Context, p models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[p.ID] = p.Stock
	return nil
}

func (r *recorder) DeleteStock(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stock, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *recorder) SyncStock(_ context.Context, products []models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock = map[string]int{}
	for _, p := range products {
		r.stock[p.ID] = p.Stock
	}
	return nil
}

func (r *recorder) SetSession(_ context.Context, username, id string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[username] = id
	return nil
}

func (r *recorder) ClearSession(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, username)
	return nil
}

func (r *recorder) PublishPurchaseCompleted(_ context.Context, rec models.PurchaseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purchases = append(r.purchases, rec)
	return nil
}

func (r *recorder) PublishProductChanged(_ context.Context, eventType string, _ models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.productEvents = append(r.productEvents, eventType)
	return nil
}

type testApp struct {
	dir      string
	state    *State
	store    *store.Store
	images   *media.Storage
	rec      *recorder
	auth     *AuthService
	catalog  *CatalogService
	cart     *CartService
	checkout *CheckoutService
	reports  *ReportService
}

// newTestApp wires every service over a temp directory. products seeds the products file;
// with none the default catalog is loaded.
func newTestApp(t *testing.T, products ...models.Product) *testApp {
	t.Helper()
	dir := t.TempDir()
	st := store.NewStore(store.Paths{
		Users:    filepath.Join(dir, "data.json"),
		Products: filepath.Join(dir, "productos.json"),
		History:  filepath.Join(dir, "historial_compras.json"),
	})
	require.NoError(t, st.EnsureLayout())
	if len(products) > 0 {
		require.NoError(t, st.SaveProducts(context.Background(), products))
	}

	rec := newRecorder()
	integrations := Integrations{Mirror: rec, Sessions: rec, Publisher: rec}
	images := media.NewStorage(filepath.Join(dir, "imagenes_productos"))
	state := NewState()

	app := &testApp{
		dir:      dir,
		state:    state,
		store:    st,
		images:   images,
		rec:      rec,
		auth:     NewAuthService(state, st, images, integrations, AuthOptions{MinPasswordLength: 6, BcryptCost: bcrypt.MinCost, SessionTTL: time.Hour}),
		catalog:  NewCatalogService(state, st, images, integrations),
		cart:     NewCartService(state, integrations),
		checkout: NewCheckoutService(state, st, integrations),
		reports:  NewReportService(st, 5),
	}
	_, err := app.catalog.Load(context.Background())
	require.NoError(t, err)
	return app
}

func (a *testApp) login(t *testing.T, username string) Session {
	t.Helper()
	ctx := context.Background()
	if _, err := a.auth.Register(ctx, username, "secret1"); err != nil {
		require.ErrorContains(t, err, "already taken")
	}
	_, session, err := a.auth.Login(ctx, username, "secret1")
	require.NoError(t, err)
	return session
}

func (a *testApp) persistedStock(t *testing.T) map[string]int {
	t.Helper()
	products, err := a.store.LoadProducts(context.Background())
	require.NoError(t, err)
	out := map[string]int{}
	for _, p := range products {
		out[p.ID] = p.Stock
	}
	return out
}

func pngUpload(t *testing.T, filename string) *Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 30))))
	return &Upload{Filename: filename, Reader: &buf}
}

func catDogCatalog() []models.Product {
	return []models.Product{
		{ID: "cat", Name: "cat food", Price: 15000, Image: "cat.png", Stock: 1},
		{ID: "dog", Name: "dog food", Price: 25000, Image: "dog.png", Stock: 5},
	}
}
