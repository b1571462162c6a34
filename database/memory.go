package database

import (
	"context"
	"sync"
	"time"

	"gametopup/models"
)

// MemoryStore implements Store with in-process maps. It exists for tests
// and local development; each method holds the mutex for the whole
// operation so the conditional-update semantics match MongoStore exactly.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[string]*models.User
	authorized  map[string]bool
	admins      []int64
	settings    models.Settings
	hasSettings bool
	prices      map[string]int
	deleteQueue []models.QueuedMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*models.User),
		authorized: make(map[string]bool),
		prices:     make(map[string]int),
	}
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

func (s *MemoryStore) GetAllUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *copyUser(u))
	}
	return users, nil
}

func (s *MemoryStore) CreateUserIfAbsent(_ context.Context, userID, name, username string, referrerID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; ok {
		return nil
	}
	user := &models.User{
		UserID:   userID,
		Name:     name,
		Username: username,
		JoinedAt: time.Now(),
	}
	if referrerID != nil {
		user.ReferredBy = *referrerID
	}
	s.users[userID] = user
	return nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, userID, name, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[userID]; ok {
		user.Name = name
		user.Username = username
	}
	return nil
}

func (s *MemoryStore) CreditBalance(_ context.Context, userID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Balance += amount
	return nil
}

func (s *MemoryStore) DebitBalance(_ context.Context, userID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if user.Balance < amount {
		return ErrInsufficientBalance
	}
	user.Balance -= amount
	return nil
}

func (s *MemoryStore) SetBalance(_ context.Context, userID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Balance = amount
	return nil
}

func (s *MemoryStore) CreditCommission(_ context.Context, userID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Balance += amount
	user.ReferralEarnings += amount
	return nil
}

func (s *MemoryStore) PlaceOrder(_ context.Context, userID string, order models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if user.Balance < order.Price {
		return ErrInsufficientBalance
	}
	user.Balance -= order.Price
	user.Orders = append(user.Orders, order)
	return nil
}

func (s *MemoryStore) SubmitTopup(_ context.Context, userID string, topup models.Topup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	for i := range user.Topups {
		if user.Topups[i].Status == models.TopupPending {
			return ErrPendingTopupExists
		}
	}
	user.Topups = append(user.Topups, topup)
	return nil
}

func (s *MemoryStore) ResolveOrder(_ context.Context, orderID, status, actor string, at time.Time) (*models.Order, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		for i := range user.Orders {
			if user.Orders[i].OrderID == orderID && user.Orders[i].Status == models.OrderPending {
				before := user.Orders[i]
				user.Orders[i].Status = status
				user.Orders[i].ResolvedBy = actor
				user.Orders[i].ResolvedAt = at
				return &before, user.UserID, nil
			}
		}
	}
	return nil, "", ErrAlreadyHandled
}

func (s *MemoryStore) ApproveTopup(_ context.Context, topupID, actor string, at time.Time) (*models.Topup, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		for i := range user.Topups {
			if user.Topups[i].TopupID == topupID && user.Topups[i].Status == models.TopupPending {
				user.Topups[i].Status = models.TopupApproved
				user.Topups[i].ResolvedBy = actor
				user.Topups[i].ResolvedAt = at
				user.Balance += user.Topups[i].Amount
				approved := user.Topups[i]
				return &approved, user.UserID, nil
			}
		}
	}
	return nil, "", ErrAlreadyHandled
}

func (s *MemoryStore) RejectTopup(_ context.Context, topupID, actor string, at time.Time) (*models.Topup, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		for i := range user.Topups {
			if user.Topups[i].TopupID == topupID && user.Topups[i].Status == models.TopupPending {
				user.Topups[i].Status = models.TopupRejected
				user.Topups[i].ResolvedBy = actor
				user.Topups[i].ResolvedAt = at
				rejected := user.Topups[i]
				return &rejected, user.UserID, nil
			}
		}
	}
	return nil, "", ErrAlreadyHandled
}

func (s *MemoryStore) GetOrderByID(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		for i := range user.Orders {
			if user.Orders[i].OrderID == orderID {
				order := user.Orders[i]
				return &order, nil
			}
		}
	}
	return nil, ErrAlreadyHandled
}

func (s *MemoryStore) GetTopupByID(_ context.Context, topupID string) (*models.Topup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		for i := range user.Topups {
			if user.Topups[i].TopupID == topupID {
				topup := user.Topups[i]
				return &topup, nil
			}
		}
	}
	return nil, ErrAlreadyHandled
}

func (s *MemoryStore) ClearHistory(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Orders = nil
	user.Topups = nil
	return nil
}

func (s *MemoryStore) LoadAuthorizedUsers(_ context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(map[string]bool, len(s.authorized))
	for id := range s.authorized {
		users[id] = true
	}
	return users, nil
}

func (s *MemoryStore) AddAuthorizedUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized[userID] = true
	return nil
}

func (s *MemoryStore) RemoveAuthorizedUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.authorized, userID)
	return nil
}

func (s *MemoryStore) LoadAdminIDs(_ context.Context, owner int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	admins := make([]int64, len(s.admins))
	copy(admins, s.admins)
	for _, id := range admins {
		if id == owner {
			return admins, nil
		}
	}
	return append(admins, owner), nil
}

func (s *MemoryStore) AddAdmin(_ context.Context, adminID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.admins {
		if id == adminID {
			return nil
		}
	}
	s.admins = append(s.admins, adminID)
	return nil
}

func (s *MemoryStore) RemoveAdmin(_ context.Context, adminID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range s.admins {
		if id == adminID {
			s.admins = append(s.admins[:i], s.admins[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) LoadSettings(_ context.Context) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasSettings {
		s.settings = models.DefaultSettings()
		s.hasSettings = true
	}
	return s.settings, nil
}

// UpdateSetting supports the dotted keys the service actually writes.
func (s *MemoryStore) UpdateSetting(_ context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasSettings {
		s.settings = models.DefaultSettings()
		s.hasSettings = true
	}

	switch key {
	case "affiliate.percentage":
		if v, ok := value.(float64); ok {
			s.settings.Affiliate.Percentage = v
		}
	case "maintenance.orders":
		if v, ok := value.(bool); ok {
			s.settings.Maintenance.Orders = v
		}
	case "maintenance.topups":
		if v, ok := value.(bool); ok {
			s.settings.Maintenance.Topups = v
		}
	case "maintenance.general":
		if v, ok := value.(bool); ok {
			s.settings.Maintenance.General = v
		}
	case "auto_delete.enabled":
		if v, ok := value.(bool); ok {
			s.settings.AutoDelete.Enabled = v
		}
	case "auto_delete.hours":
		if v, ok := value.(int); ok {
			s.settings.AutoDelete.Hours = v
		}
	case "payment_info.kpay_number":
		if v, ok := value.(string); ok {
			s.settings.Payment.KpayNumber = v
		}
	case "payment_info.kpay_name":
		if v, ok := value.(string); ok {
			s.settings.Payment.KpayName = v
		}
	case "payment_info.kpay_image":
		if v, ok := value.(string); ok {
			s.settings.Payment.KpayImage = v
		}
	case "payment_info.wave_number":
		if v, ok := value.(string); ok {
			s.settings.Payment.WaveNumber = v
		}
	case "payment_info.wave_name":
		if v, ok := value.(string); ok {
			s.settings.Payment.WaveName = v
		}
	case "payment_info.wave_image":
		if v, ok := value.(string); ok {
			s.settings.Payment.WaveImage = v
		}
	}
	return nil
}

func (s *MemoryStore) LoadPrices(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prices := make(map[string]int, len(s.prices))
	for k, v := range s.prices {
		prices[k] = v
	}
	return prices, nil
}

func (s *MemoryStore) SavePrices(_ context.Context, prices map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices = make(map[string]int, len(prices))
	for k, v := range prices {
		s.prices[k] = v
	}
	return nil
}

func (s *MemoryStore) QueueMessageForDelete(_ context.Context, msg models.QueuedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteQueue = append(s.deleteQueue, msg)
	return nil
}

func (s *MemoryStore) DueMessages(_ context.Context, before time.Time) ([]models.QueuedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.QueuedMessage
	for _, msg := range s.deleteQueue {
		if msg.Timestamp.Before(before) {
			due = append(due, msg)
		}
	}
	return due, nil
}

func (s *MemoryStore) DequeueMessage(_ context.Context, chatID int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, msg := range s.deleteQueue {
		if msg.ChatID == chatID && msg.MessageID == messageID {
			s.deleteQueue = append(s.deleteQueue[:i], s.deleteQueue[i+1:]...)
			return nil
		}
	}
	return nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Orders = make([]models.Order, len(u.Orders))
	copy(c.Orders, u.Orders)
	c.Topups = make([]models.Topup, len(u.Topups))
	copy(c.Topups, u.Topups)
	return &c
}
