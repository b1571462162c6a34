// Package cleaner deletes aged bot messages from admin chats on a schedule.
// Messages are queued at send time; the job removes the ones older than the
// configured horizon when auto-delete is enabled.
package cleaner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"gametopup/database"
	"gametopup/logging"
)

// Deleter removes one chat message. Implemented by the bot transport.
type Deleter interface {
	DeleteMessage(chatID int64, messageID int) error
}

type Cleaner struct {
	store   database.Store
	deleter Deleter
	log     *logging.Logger
	cron    *cron.Cron
}

func New(store database.Store, deleter Deleter, log *logging.Logger) *Cleaner {
	return &Cleaner{
		store:   store,
		deleter: deleter,
		log:     log,
		cron:    cron.New(),
	}
}

// Start schedules the sweep every 10 minutes.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc("*/10 * * * *", c.Sweep); err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

func (c *Cleaner) Stop() {
	c.cron.Stop()
}

// Sweep deletes every queued message older than the configured horizon.
// Messages that can no longer be deleted (Telegram's 48h limit, lost admin
// rights) are dropped from the queue anyway.
func (c *Cleaner) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	settings, err := c.store.LoadSettings(ctx)
	if err != nil {
		c.log.Errorf("auto-delete sweep: settings unavailable: %v", err)
		return
	}
	if !settings.AutoDelete.Enabled {
		return
	}

	hours := settings.AutoDelete.Hours
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	msgs, err := c.store.DueMessages(ctx, cutoff)
	if err != nil {
		c.log.Errorf("auto-delete sweep: queue read failed: %v", err)
		return
	}

	deleted, failed := 0, 0
	for _, msg := range msgs {
		if err := c.deleter.DeleteMessage(msg.ChatID, msg.MessageID); err != nil {
			c.log.Warnf("auto-delete: failed to delete message %d in chat %d: %v", msg.MessageID, msg.ChatID, err)
			failed++
		} else {
			deleted++
		}
		if err := c.store.DequeueMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
			c.log.Warnf("auto-delete: failed to dequeue message %d in chat %d: %v", msg.MessageID, msg.ChatID, err)
		}
	}

	if deleted > 0 || failed > 0 {
		c.log.Infof("auto-delete sweep finished: deleted %d, dropped %d", deleted, failed)
	}
}
