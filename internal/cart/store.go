package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/events"
	"github.com/sixstreet/storefront/internal/inventory"
)

var (
	ErrInvalidItem           = errors.New("cart: invalid item")
	ErrNotFound              = errors.New("cart: item not found")
	ErrPendingReconciliation = errors.New("cart: item not yet confirmed by backend")
	ErrClosed                = errors.New("cart: store closed")
)

// Backend is the Commerce Backend cart API.
type Backend interface {
	Cart(ctx context.Context, userID string) ([]commerce.CartRow, error)
	AddToCart(ctx context.Context, userID string, in commerce.CartAdd) error
	RemoveCartItem(ctx context.Context, userID, itemID string) error
}

var _ Backend = (*commerce.Client)(nil)

// MetaResolver resolves display metadata; it never fails.
type MetaResolver interface {
	ResolveProductGroup(ctx context.Context, groupID string) inventory.ProductMeta
}

type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoaded
)

type Options struct {
	Backend   Backend
	Meta      MetaResolver
	Notifier  events.Notifier
	Log       *zap.Logger
	SyncDelay time.Duration // delay between an add and its reconciliation
	BgTimeout time.Duration // bound for timer-driven sync and pruning
	Now       func() time.Time
}

func (o *Options) defaults() {
	if o.Notifier == nil {
		o.Notifier = events.Nop{}
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.SyncDelay <= 0 {
		o.SyncDelay = time.Second
	}
	if o.BgTimeout <= 0 {
		o.BgTimeout = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Store is the single writer of one user's cart. Mutations happen under mu;
// readers get copies. Backend calls are made without holding mu.
type Store struct {
	userID string
	opt    Options

	mu     sync.Mutex
	items  []LineItem
	phase  Phase
	gen    uint64 // bumped whenever Fetch replaces items with backend rows
	token  string // last backend token seen, for background work
	timer  *time.Timer
	closed bool
	bg     sync.WaitGroup
}

func NewStore(userID string, opt Options) *Store {
	opt.defaults()
	return &Store{userID: userID, opt: opt}
}

func (s *Store) UserID() string { return s.userID }

func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Store) Snapshot() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) indexLocked(k lineKey) int {
	for i, l := range s.items {
		if l.key() == k {
			return i
		}
	}
	return -1
}

func (s *Store) indexByIDLocked(id string) int {
	for i, l := range s.items {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) rememberToken(ctx context.Context) {
	if tok := commerce.TokenFrom(ctx); tok != "" {
		s.token = tok
	}
}

func (s *Store) notify(ctx context.Context, typ string, lvl events.Level, msg string, data map[string]any) {
	s.opt.Notifier.Notify(ctx, events.Notice{Type: typ, Level: lvl, UserID: s.userID, Message: msg, Data: data})
}

// Add merges into the (product, size) line or appends a temporary line, then
// posts the added quantity. A backend failure undoes the local change.
func (s *Store) Add(ctx context.Context, it Item) (LineItem, error) {
	if err := it.validate(); err != nil {
		return LineItem{}, err
	}
	k := lineKey{it.ProductID, it.Size}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return LineItem{}, ErrClosed
	}
	s.rememberToken(ctx)
	gen := s.gen
	var line LineItem
	created := ""
	if i := s.indexLocked(k); i >= 0 {
		s.items[i].Quantity += it.Quantity
		if it.DisplayName != "" {
			s.items[i].DisplayName = it.DisplayName
		}
		if it.DisplayImage != "" {
			s.items[i].DisplayImage = it.DisplayImage
		}
		line = s.items[i]
	} else {
		line = LineItem{
			ID:             s.newTempIDLocked(),
			ProductID:      it.ProductID,
			ProductGroupID: it.ProductGroupID,
			Size:           it.Size,
			Quantity:       it.Quantity,
			Price:          it.Price,
			DisplayName:    it.DisplayName,
			DisplayImage:   it.DisplayImage,
			ProductFound:   true,
		}
		s.items = append(s.items, line)
		created = line.ID
	}
	s.mu.Unlock()

	err := s.opt.Backend.AddToCart(ctx, s.userID, commerce.CartAdd{
		ProductID:      it.ProductID,
		ProductGroupID: it.ProductGroupID,
		Size:           it.Size,
		Quantity:       it.Quantity,
		Price:          it.Price,
	})
	if err != nil {
		s.revertAdd(k, it.Quantity, gen, created)
		s.opt.Log.Warn("cart add failed", zap.String("user_id", s.userID), zap.String("product_id", it.ProductID), zap.Error(err))
		s.notify(ctx, events.EventCartAddFailed, events.LevelError, "Gagal menambahkan produk ke keranjang",
			map[string]any{"product_id": it.ProductID, "size": it.Size})
		return LineItem{}, err
	}

	s.mu.Lock()
	s.scheduleSyncLocked()
	if i := s.indexLocked(k); i >= 0 {
		line = s.items[i]
	}
	s.mu.Unlock()
	return line, nil
}

// revertAdd subtracts qty from the line, dropping it when nothing is left.
// If a Fetch replaced the items since the add, the backend rows never held
// the failed quantity; only the temporary line the add created is dropped.
func (s *Store) revertAdd(k lineKey, qty int, gen uint64, created string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		if created != "" {
			if i := s.indexByIDLocked(created); i >= 0 {
				s.items = append(s.items[:i], s.items[i+1:]...)
			}
		}
		return
	}
	i := s.indexLocked(k)
	if i < 0 {
		return
	}
	s.items[i].Quantity -= qty
	if s.items[i].Quantity <= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
}

func (s *Store) newTempIDLocked() string {
	t := s.opt.Now()
	id := tempID(t)
	for s.indexByIDLocked(id) >= 0 {
		t = t.Add(time.Millisecond)
		id = tempID(t)
	}
	return id
}

func (s *Store) scheduleSyncLocked() {
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.opt.SyncDelay, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.bg.Add(1)
		tok := s.token
		s.mu.Unlock()
		defer s.bg.Done()

		ctx, cancel := context.WithTimeout(commerce.WithToken(context.Background(), tok), s.opt.BgTimeout)
		defer cancel()
		_ = s.Sync(ctx)
	})
}

// Remove deletes the line on the backend, then locally. A temporary id is
// reconciled first; the local line stays when the backend call fails.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	s.rememberToken(ctx)
	i := s.indexByIDLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	k := s.items[i].key()
	s.mu.Unlock()

	if IsTemporaryID(id) {
		if err := s.Sync(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		i = s.indexLocked(k)
		if i < 0 {
			s.mu.Unlock()
			return ErrNotFound
		}
		id = s.items[i].ID
		s.mu.Unlock()
		if IsTemporaryID(id) {
			return ErrPendingReconciliation
		}
	}

	if err := s.opt.Backend.RemoveCartItem(ctx, s.userID, id); err != nil {
		s.opt.Log.Warn("cart remove failed", zap.String("user_id", s.userID), zap.String("item_id", id), zap.Error(err))
		s.notify(ctx, events.EventCartRemoveFailed, events.LevelError, "Gagal menghapus produk dari keranjang",
			map[string]any{"item_id": id})
		return err
	}

	s.mu.Lock()
	if i := s.indexByIDLocked(id); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	s.mu.Unlock()
	return nil
}

// Sync swaps temporary ids for backend ids matched on (product, size).
// Quantity and price of the local line are kept.
func (s *Store) Sync(ctx context.Context) error {
	s.mu.Lock()
	s.rememberToken(ctx)
	pending := false
	for _, l := range s.items {
		if l.Temporary() {
			pending = true
			break
		}
	}
	s.mu.Unlock()
	if !pending {
		return nil
	}

	rows, err := s.opt.Backend.Cart(ctx, s.userID)
	if err != nil {
		s.opt.Log.Warn("cart sync failed", zap.String("user_id", s.userID), zap.Error(err))
		s.notify(ctx, events.EventCartSyncFailed, events.LevelWarning, "Sinkronisasi keranjang gagal", nil)
		return err
	}
	ids := make(map[lineKey]string, len(rows))
	for _, r := range rows {
		ids[lineKey{r.ProductID.String(), r.Size}] = r.ID.String()
	}

	s.mu.Lock()
	for i, l := range s.items {
		if !l.Temporary() {
			continue
		}
		if id, ok := ids[l.key()]; ok && id != "" {
			s.items[i].ID = id
		}
	}
	s.mu.Unlock()
	return nil
}

const enrichLimit = 4

// Fetch reloads the cart from the backend and enriches each row. Rows whose
// product cannot be resolved are left out; on the first load they are also
// deleted from the backend in the background. On error the local state is
// kept and returned alongside the error.
func (s *Store) Fetch(ctx context.Context) ([]LineItem, error) {
	s.mu.Lock()
	s.rememberToken(ctx)
	s.mu.Unlock()

	rows, err := s.opt.Backend.Cart(ctx, s.userID)
	if err != nil {
		s.opt.Log.Warn("cart fetch failed", zap.String("user_id", s.userID), zap.Error(err))
		s.notify(ctx, events.EventCartFetchFailed, events.LevelError, "Gagal memuat keranjang", nil)
		return s.Snapshot(), err
	}

	metas := make([]inventory.ProductMeta, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichLimit)
	for i, r := range rows {
		i, r := i, r
		g.Go(func() error {
			metas[i] = s.opt.Meta.ResolveProductGroup(gctx, r.ProductGroupID.String())
			return nil
		})
	}
	_ = g.Wait()

	lines := make([]LineItem, 0, len(rows))
	var invalid []commerce.CartRow
	seen := make(map[lineKey]bool, len(rows))
	for i, r := range rows {
		m := metas[i]
		if !m.Found {
			invalid = append(invalid, r)
			continue
		}
		l := LineItem{
			ID:             r.ID.String(),
			ProductID:      r.ProductID.String(),
			ProductGroupID: r.ProductGroupID.String(),
			Size:           r.Size,
			Quantity:       r.Quantity,
			Price:          r.Price,
			DisplayName:    m.DisplayName,
			DisplayImage:   m.Image,
			ProductFound:   true,
			Category:       m.Category,
			Brand:          m.Brand,
		}
		seen[l.key()] = true
		lines = append(lines, l)
	}

	s.mu.Lock()
	// optimistic lines the backend has not listed yet survive the refresh
	for _, l := range s.items {
		if l.Temporary() && !seen[l.key()] {
			lines = append(lines, l)
		}
	}
	s.items = lines
	s.gen++
	first := s.phase == PhaseUninitialized
	s.phase = PhaseLoaded
	prune := first && len(invalid) > 0 && !s.closed
	if prune {
		s.bg.Add(1)
	}
	out := s.snapshotLocked()
	s.mu.Unlock()

	if prune {
		go s.prune(context.WithoutCancel(ctx), invalid)
	}
	return out, nil
}

func (s *Store) prune(ctx context.Context, rows []commerce.CartRow) {
	defer s.bg.Done()
	ctx, cancel := context.WithTimeout(ctx, s.opt.BgTimeout)
	defer cancel()
	for _, r := range rows {
		err := s.opt.Backend.RemoveCartItem(ctx, s.userID, r.ID.String())
		if err != nil {
			s.opt.Log.Info("prune unresolved cart item failed", zap.String("item_id", r.ID.String()), zap.Error(err))
		}
		s.notify(ctx, events.EventCartItemPruned, events.LevelInfo, "Produk yang tidak tersedia dihapus dari keranjang",
			map[string]any{"item_id": r.ID.String(), "product_group_id": r.ProductGroupID.String(), "removed": err == nil})
	}
}

// Close stops the pending sync timer and waits for background work.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.bg.Wait()
}
