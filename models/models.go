package models

import (
	"time"
)

// Order statuses. An order leaves "pending" exactly once.
const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderCancelled = "cancelled"
)

// Topup statuses.
const (
	TopupPending  = "pending"
	TopupApproved = "approved"
	TopupRejected = "rejected"
)

type User struct {
	UserID           string    `bson:"user_id"`
	Name             string    `bson:"name"`
	Username         string    `bson:"username"`
	Balance          int       `bson:"balance"`
	Orders           []Order   `bson:"orders"`
	Topups           []Topup   `bson:"topups"`
	JoinedAt         time.Time `bson:"joined_at"`
	ReferredBy       string    `bson:"referred_by,omitempty"`
	ReferralEarnings int       `bson:"referral_earnings"`
}

// PendingTopup reports the user's in-flight topups without exposing the
// whole history.
func (u *User) PendingTopup() *Topup {
	for i := range u.Topups {
		if u.Topups[i].Status == TopupPending {
			return &u.Topups[i]
		}
	}
	return nil
}

type Order struct {
	OrderID    string    `bson:"order_id"`
	GameID     string    `bson:"game_id"`
	ServerID   string    `bson:"server_id"`
	Product    string    `bson:"product"`
	Price      int       `bson:"price"`
	Status     string    `bson:"status"`
	Timestamp  time.Time `bson:"timestamp"`
	UserID     string    `bson:"user_id"`
	ChatID     int64     `bson:"chat_id"`
	ResolvedBy string    `bson:"resolved_by,omitempty"`
	ResolvedAt time.Time `bson:"resolved_at,omitempty"`
}

type Topup struct {
	TopupID    string    `bson:"topup_id"`
	Amount     int       `bson:"amount"`
	Channel    string    `bson:"channel"`
	Status     string    `bson:"status"`
	Timestamp  time.Time `bson:"timestamp"`
	UserID     string    `bson:"user_id"`
	ChatID     int64     `bson:"chat_id"`
	ReceiptID  string    `bson:"receipt_id,omitempty"`
	ResolvedBy string    `bson:"resolved_by,omitempty"`
	ResolvedAt time.Time `bson:"resolved_at,omitempty"`
}

// Settings is the global configuration document. It is read as a snapshot;
// the core never mutates it outside UpdateSetting.
type Settings struct {
	Payment     PaymentInfo     `bson:"payment_info"`
	Maintenance Maintenance     `bson:"maintenance"`
	Affiliate   AffiliateConfig `bson:"affiliate"`
	AutoDelete  AutoDelete      `bson:"auto_delete"`
}

type PaymentInfo struct {
	KpayNumber string `bson:"kpay_number"`
	KpayName   string `bson:"kpay_name"`
	KpayImage  string `bson:"kpay_image,omitempty"`
	WaveNumber string `bson:"wave_number"`
	WaveName   string `bson:"wave_name"`
	WaveImage  string `bson:"wave_image,omitempty"`
}

// Maintenance flags: true means the feature is enabled.
type Maintenance struct {
	Orders  bool `bson:"orders"`
	Topups  bool `bson:"topups"`
	General bool `bson:"general"`
}

type AffiliateConfig struct {
	// Percentage is the commission rate as a fraction in [0,1].
	Percentage float64 `bson:"percentage"`
}

type AutoDelete struct {
	Enabled bool `bson:"enabled"`
	Hours   int  `bson:"hours"`
}

// QueuedMessage is a bot message scheduled for auto-deletion.
type QueuedMessage struct {
	MessageID int       `bson:"message_id"`
	ChatID    int64     `bson:"chat_id"`
	Timestamp time.Time `bson:"timestamp"`
}

func DefaultSettings() Settings {
	return Settings{
		Maintenance: Maintenance{Orders: true, Topups: true, General: true},
		Affiliate:   AffiliateConfig{Percentage: 0.01},
		AutoDelete:  AutoDelete{Enabled: false, Hours: 24},
	}
}
