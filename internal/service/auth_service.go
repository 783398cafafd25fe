package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/shop"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthOptions configures account rules and session bookkeeping
type AuthOptions struct {
	MinPasswordLength int
	BcryptCost        int
	SessionTTL        time.Duration
}

// AuthService handles registration, login and the profile of the logged-in user
type AuthService struct {
	state    *State
	store    *store.Store
	images   ImageStore
	sessions SessionTracker
	mirror   StockMirror
	hasher   *PasswordHasher
	opts     AuthOptions
	logger   *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(state *State, store *store.Store, images ImageStore, integrations Integrations, opts AuthOptions) *AuthService {
	integrations = integrations.withDefaults()
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 6
	}
	return &AuthService{
		state:    state,
		store:    store,
		images:   images,
		sessions: integrations.Sessions,
		mirror:   integrations.Mirror,
		hasher:   NewPasswordHasher(opts.BcryptCost),
		opts:     opts,
		logger:   util.GetLogger(),
	}
}

// ProfileChange carries the optional fields of an edit. Empty means unchanged.
type ProfileChange struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account. It does not log in.
func (s *AuthService) Register(ctx context.Context, username, password string) (models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return models.User{}, shop.ErrEmptyField
	}
	if err := s.checkPassword(password); err != nil {
		return models.User{}, err
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return models.User{}, err
	}
	if i := findUser(users, username); i >= 0 {
		return models.User{}, fmt.Errorf("%w: %s", shop.ErrUserExists, users[i].Username)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{Username: username, PasswordHash: hash}
	if err := s.store.SaveUsers(ctx, append(users, user)); err != nil {
		s.recordStoreError("users", err)
		return models.User{}, fmt.Errorf("failed to save users: %w", err)
	}

	util.UsersRegisteredTotal.Inc()
	s.logger.Info("User registered", zap.String("username", username))
	return user, nil
}

// Login checks credentials and starts a new session, ending any previous one.
func (s *AuthService) Login(ctx context.Context, username, password string) (models.User, Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		util.LoginsTotal.WithLabelValues("rejected").Inc()
		return models.User{}, Session{}, shop.ErrEmptyField
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return models.User{}, Session{}, err
	}
	i := findUser(users, username)
	if i < 0 {
		util.LoginsTotal.WithLabelValues("rejected").Inc()
		return models.User{}, Session{}, shop.ErrInvalidCredentials
	}
	ok, upgrade := s.hasher.Verify(users[i].PasswordHash, password)
	if !ok {
		util.LoginsTotal.WithLabelValues("rejected").Inc()
		return models.User{}, Session{}, shop.ErrInvalidCredentials
	}

	if upgrade {
		s.upgradeHash(ctx, users, i, password)
	}

	if previous := s.state.endSession(); previous != "" {
		s.logger.Info("Previous session ended by new login", zap.String("username", previous))
		s.clearTracker(ctx, previous)
		s.mirrorStock(ctx)
		util.ActiveSessions.Dec()
	}

	session := &Session{
		ID:        uuid.New().String(),
		Username:  users[i].Username,
		StartedAt: s.state.now(),
	}
	s.state.session = session
	if err := s.sessions.SetSession(ctx, session.Username, session.ID, s.opts.SessionTTL); err != nil {
		s.logger.Warn("Failed to record session", zap.Error(err))
	}

	util.LoginsTotal.WithLabelValues("accepted").Inc()
	util.ActiveSessions.Inc()
	util.CartUnits.Set(0)
	s.logger.Info("User logged in", zap.String("username", session.Username))
	return users[i], *session, nil
}

// upgradeHash replaces a legacy digest with bcrypt. Failure only costs the upgrade.
func (s *AuthService) upgradeHash(ctx context.Context, users []models.User, i int, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("Failed to upgrade password hash", zap.Error(err))
		return
	}
	updated := append([]models.User(nil), users...)
	updated[i].PasswordHash = hash
	if err := s.store.SaveUsers(ctx, updated); err != nil {
		s.recordStoreError("users", err)
		s.logger.Warn("Failed to persist upgraded password hash", zap.Error(err))
		return
	}
	users[i].PasswordHash = hash
	s.logger.Info("Upgraded legacy password hash", zap.String("username", users[i].Username))
}

// Authenticate resolves a session id to the active session
func (s *AuthService) Authenticate(sessionID string) (Session, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if s.state.session == nil || s.state.session.ID != sessionID {
		return Session{}, shop.ErrNotLoggedIn
	}
	return *s.state.session, nil
}

// Logout returns the cart to stock and ends the session. It always succeeds.
func (s *AuthService) Logout(ctx context.Context) {
	ctx, span := util.StartSpan(ctx, "AuthService.Logout")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	username := s.state.endSession()
	if username == "" {
		return
	}
	s.clearTracker(ctx, username)
	s.mirrorStock(ctx)
	util.ActiveSessions.Dec()
	util.CartUnits.Set(0)
	s.logger.Info("User logged out", zap.String("username", username))
}

// CurrentUser returns the stored record of the logged-in user
func (s *AuthService) CurrentUser(ctx context.Context) (models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.CurrentUser")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	users, i, err := s.currentUser(ctx)
	if err != nil {
		return models.User{}, err
	}
	return users[i], nil
}

// EditProfile renames the user and/or changes the password. changed is false when
// both fields are empty or equal to the current values.
func (s *AuthService) EditProfile(ctx context.Context, change ProfileChange) (user models.User, changed bool, err error) {
	ctx, span := util.StartSpan(ctx, "AuthService.EditProfile")
	defer span.End()

	newName := strings.TrimSpace(change.Username)
	if change.Password != "" {
		if err := s.checkPassword(change.Password); err != nil {
			return models.User{}, false, err
		}
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	users, i, err := s.currentUser(ctx)
	if err != nil {
		return models.User{}, false, err
	}

	updated := append([]models.User(nil), users...)
	if newName != "" && newName != updated[i].Username {
		if j := findUser(users, newName); j >= 0 && j != i {
			return models.User{}, false, fmt.Errorf("%w: %s", shop.ErrUserExists, users[j].Username)
		}
		updated[i].Username = newName
		changed = true
	}
	if change.Password != "" {
		if ok, _ := s.hasher.Verify(updated[i].PasswordHash, change.Password); !ok {
			hash, err := s.hasher.Hash(change.Password)
			if err != nil {
				return models.User{}, false, err
			}
			updated[i].PasswordHash = hash
			changed = true
		}
	}
	if !changed {
		return users[i], false, nil
	}

	if err := s.store.SaveUsers(ctx, updated); err != nil {
		s.recordStoreError("users", err)
		return models.User{}, false, fmt.Errorf("failed to save users: %w", err)
	}

	if previous := s.state.session.Username; previous != updated[i].Username {
		s.state.session.Username = updated[i].Username
		s.clearTracker(ctx, previous)
		if err := s.sessions.SetSession(ctx, updated[i].Username, s.state.session.ID, s.opts.SessionTTL); err != nil {
			s.logger.Warn("Failed to record session", zap.Error(err))
		}
	}

	s.logger.Info("Profile updated", zap.String("username", updated[i].Username))
	return updated[i], true, nil
}

// DeleteAccount removes the logged-in user, releases the cart and ends the session.
func (s *AuthService) DeleteAccount(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "AuthService.DeleteAccount")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	users, i, err := s.currentUser(ctx)
	if err != nil {
		return err
	}
	removed := users[i]

	remaining := make([]models.User, 0, len(users)-1)
	remaining = append(remaining, users[:i]...)
	remaining = append(remaining, users[i+1:]...)
	if err := s.store.SaveUsers(ctx, remaining); err != nil {
		s.recordStoreError("users", err)
		return fmt.Errorf("failed to save users: %w", err)
	}

	if err := s.images.Delete(removed.Photo); err != nil {
		s.logger.Warn("Failed to delete profile photo", zap.String("photo", removed.Photo), zap.Error(err))
	}

	username := s.state.endSession()
	s.clearTracker(ctx, username)
	s.mirrorStock(ctx)
	util.ActiveSessions.Dec()
	util.CartUnits.Set(0)
	s.logger.Info("Account deleted", zap.String("username", removed.Username))
	return nil
}

// ChangePhoto stores a new profile photo and deletes the previous one
func (s *AuthService) ChangePhoto(ctx context.Context, upload Upload) (models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.ChangePhoto")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	users, i, err := s.currentUser(ctx)
	if err != nil {
		return models.User{}, err
	}

	name, err := s.images.Save("perfil "+users[i].Username, upload.Filename, upload.Reader)
	if err != nil {
		return models.User{}, err
	}

	updated := append([]models.User(nil), users...)
	previous := updated[i].Photo
	updated[i].Photo = name
	if err := s.store.SaveUsers(ctx, updated); err != nil {
		s.recordStoreError("users", err)
		if derr := s.images.Delete(name); derr != nil {
			s.logger.Warn("Failed to clean up photo", zap.String("photo", name), zap.Error(derr))
		}
		return models.User{}, fmt.Errorf("failed to save users: %w", err)
	}

	if err := s.images.Delete(previous); err != nil {
		s.logger.Warn("Failed to delete previous photo", zap.String("photo", previous), zap.Error(err))
	}
	return updated[i], nil
}

// currentUser must be called with mu held
func (s *AuthService) currentUser(ctx context.Context) ([]models.User, int, error) {
	session, err := s.state.requireSession()
	if err != nil {
		return nil, -1, err
	}
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, -1, err
	}
	i := findUser(users, session.Username)
	if i < 0 {
		return nil, -1, fmt.Errorf("%w: account %s no longer exists", shop.ErrNotLoggedIn, session.Username)
	}
	return users, i, nil
}

// loadUsers reads the users file. A corrupt file is reported and treated as empty.
func (s *AuthService) loadUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.LoadUsers(ctx)
	if err != nil {
		s.recordStoreError("users", err)
		if !errors.Is(err, shop.ErrDecode) {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		s.logger.Warn("Users file is corrupt, continuing with an empty list", zap.Error(err))
	}
	return users, nil
}

func (s *AuthService) checkPassword(password string) error {
	if len([]rune(password)) < s.opts.MinPasswordLength {
		return fmt.Errorf("%w: at least %d characters", shop.ErrWeakPassword, s.opts.MinPasswordLength)
	}
	return nil
}

func (s *AuthService) clearTracker(ctx context.Context, username string) {
	if err := s.sessions.ClearSession(ctx, username); err != nil {
		s.logger.Warn("Failed to clear session", zap.String("username", username), zap.Error(err))
	}
}

// mirrorStock publishes stock after cart units were released. Must be called with mu held.
func (s *AuthService) mirrorStock(ctx context.Context) {
	if err := s.mirror.SyncStock(ctx, s.state.catalog.List()); err != nil {
		s.logger.Warn("Failed to sync stock mirror", zap.Error(err))
	}
}

func (s *AuthService) recordStoreError(file string, err error) {
	util.StoreErrorsTotal.WithLabelValues(file, string(shop.KindOf(err))).Inc()
}

func findUser(users []models.User, username string) int {
	for i, u := range users {
		if strings.EqualFold(u.Username, strings.TrimSpace(username)) {
			return i
		}
	}
	return -1
}
