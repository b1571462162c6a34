package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gametopup/models"
)

const opTimeout = 5 * time.Second

// MongoStore implements Store on a document-per-user layout: the users
// collection embeds the order and topup histories, so every state
// transition is a single conditional update on one document.
type MongoStore struct {
	client          *mongo.Client
	db              *mongo.Database
	users           *mongo.Collection
	prices          *mongo.Collection
	auth            *mongo.Collection
	admins          *mongo.Collection
	settings        *mongo.Collection
	deleteQueue     *mongo.Collection
	defaultSettings models.Settings
}

func NewMongoStore(mongoURL string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database("gametopup_bot_db")

	return &MongoStore{
		client:          client,
		db:              db,
		users:           db.Collection("users"),
		prices:          db.Collection("prices"),
		auth:            db.Collection("authorized_users"),
		admins:          db.Collection("admins"),
		settings:        db.Collection("settings"),
		deleteQueue:     db.Collection("auto_delete_messages"),
		defaultSettings: models.DefaultSettings(),
	}, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// User functions

func (s *MongoStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var user models.User
	err := s.users.FindOne(ctx, bson.M{"user_id": userID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) GetAllUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.users.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *MongoStore) CreateUserIfAbsent(ctx context.Context, userID, name, username string, referrerID *string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	userData := bson.M{
		"user_id":           userID,
		"name":              name,
		"username":          username,
		"balance":           0,
		"orders":            []bson.M{},
		"topups":            []bson.M{},
		"joined_at":         time.Now(),
		"referral_earnings": 0,
	}
	if referrerID != nil {
		userData["referred_by"] = *referrerID
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.users.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$setOnInsert": userData},
		opts,
	)
	return err
}

func (s *MongoStore) UpdateProfile(ctx context.Context, userID, name, username string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.users.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"name": name, "username": username}},
	)
	return err
}

// Balance functions. Every mutation is a single $inc or guarded $inc so
// concurrent callers cannot lose updates or overdraw.

func (s *MongoStore) CreditBalance(ctx context.Context, userID string, amount int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.users.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$inc": bson.M{"balance": amount}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoStore) DebitBalance(ctx context.Context, userID string, amount int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.users.UpdateOne(
		ctx,
		bson.M{"user_id": userID, "balance": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"balance": -amount}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, userID); err != nil {
			return err
		}
		return ErrInsufficientBalance
	}
	return nil
}

func (s *MongoStore) SetBalance(ctx context.Context, userID string, amount int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.users.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"balance": amount}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoStore) CreditCommission(ctx context.Context, userID string, amount int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.users.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$inc": bson.M{
			"balance":           amount,
			"referral_earnings": amount,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Order and topup functions

// PlaceOrder debits and appends in one update. The balance guard makes the
// whole operation a no-op when funds ran out between the caller's check and
// this write.
func (s *MongoStore) PlaceOrder(ctx context.Context, userID string, order models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.users.UpdateOne(
		ctx,
		bson.M{"user_id": userID, "balance": bson.M{"$gte": order.Price}},
		bson.M{
			"$inc":  bson.M{"balance": -order.Price},
			"$push": bson.M{"orders": order},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, userID); err != nil {
			return err
		}
		return ErrInsufficientBalance
	}
	return nil
}

// SubmitTopup enforces the single-flight rule at the storage layer: the
// append matches only while no embedded topup is pending.
func (s *MongoStore) SubmitTopup(ctx context.Context, userID string, topup models.Topup) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.users.UpdateOne(
		ctx,
		bson.M{
			"user_id": userID,
			"topups":  bson.M{"$not": bson.M{"$elemMatch": bson.M{"status": models.TopupPending}}},
		},
		bson.M{"$push": bson.M{"topups": topup}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, userID); err != nil {
			return err
		}
		return ErrPendingTopupExists
	}
	return nil
}

func (s *MongoStore) ResolveOrder(ctx context.Context, orderID, status, actor string, at time.Time) (*models.Order, string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc struct {
		UserID string         `bson:"user_id"`
		Orders []models.Order `bson:"orders"`
	}
	// $elemMatch pins both conditions to one element, so the positional $
	// update flips exactly the order it matched. Separate dotted conditions
	// may match across different elements and leave $ undefined.
	err := s.users.FindOneAndUpdate(
		ctx,
		bson.M{"orders": bson.M{"$elemMatch": bson.M{
			"order_id": orderID,
			"status":   models.OrderPending,
		}}},
		bson.M{"$set": bson.M{
			"orders.$.status":      status,
			"orders.$.resolved_by": actor,
			"orders.$.resolved_at": at,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, "", ErrAlreadyHandled
		}
		return nil, "", err
	}

	for i := range doc.Orders {
		if doc.Orders[i].OrderID == orderID {
			return &doc.Orders[i], doc.UserID, nil
		}
	}
	return nil, doc.UserID, nil
}

// ApproveTopup reads the pending topup for its amount (immutable while
// pending), then flips the status and credits the balance in one update
// keyed on status == pending. A losing concurrent approve matches nothing
// and applies zero side effects.
func (s *MongoStore) ApproveTopup(ctx context.Context, topupID, actor string, at time.Time) (*models.Topup, string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	topup, err := s.GetTopupByID(ctx, topupID)
	if err != nil {
		return nil, "", err
	}
	if topup.Status != models.TopupPending {
		return nil, "", ErrAlreadyHandled
	}

	var doc struct {
		UserID string `bson:"user_id"`
	}
	err = s.users.FindOneAndUpdate(
		ctx,
		bson.M{"topups": bson.M{"$elemMatch": bson.M{
			"topup_id": topupID,
			"status":   models.TopupPending,
		}}},
		bson.M{
			"$set": bson.M{
				"topups.$.status":      models.TopupApproved,
				"topups.$.resolved_by": actor,
				"topups.$.resolved_at": at,
			},
			"$inc": bson.M{"balance": topup.Amount},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, "", ErrAlreadyHandled
		}
		return nil, "", err
	}

	approved := *topup
	approved.Status = models.TopupApproved
	approved.ResolvedBy = actor
	approved.ResolvedAt = at
	return &approved, doc.UserID, nil
}

func (s *MongoStore) RejectTopup(ctx context.Context, topupID, actor string, at time.Time) (*models.Topup, string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc struct {
		UserID string         `bson:"user_id"`
		Topups []models.Topup `bson:"topups"`
	}
	err := s.users.FindOneAndUpdate(
		ctx,
		bson.M{"topups": bson.M{"$elemMatch": bson.M{
			"topup_id": topupID,
			"status":   models.TopupPending,
		}}},
		bson.M{"$set": bson.M{
			"topups.$.status":      models.TopupRejected,
			"topups.$.resolved_by": actor,
			"topups.$.resolved_at": at,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, "", ErrAlreadyHandled
		}
		return nil, "", err
	}

	for i := range doc.Topups {
		if doc.Topups[i].TopupID == topupID {
			rejected := doc.Topups[i]
			rejected.Status = models.TopupRejected
			rejected.ResolvedBy = actor
			rejected.ResolvedAt = at
			return &rejected, doc.UserID, nil
		}
	}
	return nil, doc.UserID, nil
}

func (s *MongoStore) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc struct {
		Orders []models.Order `bson:"orders"`
	}
	err := s.users.FindOne(
		ctx,
		bson.M{"orders.order_id": orderID},
		options.FindOne().SetProjection(bson.M{"orders.$": 1}),
	).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrAlreadyHandled
		}
		return nil, err
	}
	if len(doc.Orders) == 0 {
		return nil, ErrAlreadyHandled
	}
	return &doc.Orders[0], nil
}

func (s *MongoStore) GetTopupByID(ctx context.Context, topupID string) (*models.Topup, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc struct {
		Topups []models.Topup `bson:"topups"`
	}
	err := s.users.FindOne(
		ctx,
		bson.M{"topups.topup_id": topupID},
		options.FindOne().SetProjection(bson.M{"topups.$": 1}),
	).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrAlreadyHandled
		}
		return nil, err
	}
	if len(doc.Topups) == 0 {
		return nil, ErrAlreadyHandled
	}
	return &doc.Topups[0], nil
}

func (s *MongoStore) ClearHistory(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.users.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"orders": []bson.M{}, "topups": []bson.M{}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Authorization functions

func (s *MongoStore) LoadAuthorizedUsers(ctx context.Context) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var result struct {
		Users []string `bson:"users"`
	}
	err := s.auth.FindOne(ctx, bson.M{"_id": "auth_list"}).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return make(map[string]bool), nil
		}
		return nil, err
	}

	users := make(map[string]bool, len(result.Users))
	for _, user := range result.Users {
		users[user] = true
	}
	return users, nil
}

func (s *MongoStore) AddAuthorizedUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.auth.UpdateOne(
		ctx,
		bson.M{"_id": "auth_list"},
		bson.M{"$addToSet": bson.M{"users": userID}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) RemoveAuthorizedUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.auth.UpdateOne(
		ctx,
		bson.M{"_id": "auth_list"},
		bson.M{"$pull": bson.M{"users": userID}},
	)
	return err
}

func (s *MongoStore) LoadAdminIDs(ctx context.Context, owner int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var result struct {
		Admins []int64 `bson:"admins"`
	}
	err := s.admins.FindOne(ctx, bson.M{"_id": "admin_list"}).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			_, err = s.admins.InsertOne(ctx, bson.M{"_id": "admin_list", "admins": []int64{owner}})
			if err != nil {
				return nil, err
			}
			return []int64{owner}, nil
		}
		return nil, err
	}

	for _, id := range result.Admins {
		if id == owner {
			return result.Admins, nil
		}
	}
	return append(result.Admins, owner), nil
}

func (s *MongoStore) AddAdmin(ctx context.Context, adminID int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.admins.UpdateOne(
		ctx,
		bson.M{"_id": "admin_list"},
		bson.M{"$addToSet": bson.M{"admins": adminID}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) RemoveAdmin(ctx context.Context, adminID int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.admins.UpdateOne(
		ctx,
		bson.M{"_id": "admin_list"},
		bson.M{"$pull": bson.M{"admins": adminID}},
	)
	return err
}

// Settings functions

func (s *MongoStore) LoadSettings(ctx context.Context) (models.Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var cfg models.Settings
	err := s.settings.FindOne(ctx, bson.M{"_id": "global_config"}).Decode(&cfg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			cfg = s.defaultSettings
			doc := bson.M{
				"_id":          "global_config",
				"payment_info": cfg.Payment,
				"maintenance":  cfg.Maintenance,
				"affiliate":    cfg.Affiliate,
				"auto_delete":  cfg.AutoDelete,
			}
			if _, err := s.settings.InsertOne(ctx, doc); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return cfg, err
	}
	return cfg, nil
}

// UpdateSetting writes one dotted key, e.g. "payment_info.kpay_number".
func (s *MongoStore) UpdateSetting(ctx context.Context, key string, value interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.settings.UpdateOne(
		ctx,
		bson.M{"_id": "global_config"},
		bson.M{"$set": bson.M{key: value}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Price functions

func (s *MongoStore) LoadPrices(ctx context.Context) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var result struct {
		Prices map[string]int `bson:"prices"`
	}
	err := s.prices.FindOne(ctx, bson.M{"_id": "custom_prices"}).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return make(map[string]int), nil
		}
		return nil, err
	}
	return result.Prices, nil
}

func (s *MongoStore) SavePrices(ctx context.Context, prices map[string]int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.prices.UpdateOne(
		ctx,
		bson.M{"_id": "custom_prices"},
		bson.M{"$set": bson.M{"prices": prices}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Delete-queue functions

func (s *MongoStore) QueueMessageForDelete(ctx context.Context, msg models.QueuedMessage) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.deleteQueue.InsertOne(ctx, msg)
	return err
}

func (s *MongoStore) DueMessages(ctx context.Context, before time.Time) ([]models.QueuedMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.deleteQueue.Find(ctx, bson.M{"timestamp": bson.M{"$lt": before}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []models.QueuedMessage
	if err = cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *MongoStore) DequeueMessage(ctx context.Context, chatID int64, messageID int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.deleteQueue.DeleteOne(ctx, bson.M{"chat_id": chatID, "message_id": messageID})
	return err
}
