package bot

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gametopup/database"
	"gametopup/logging"
	"gametopup/models"
)

// Notifier sends out-of-band messages on behalf of the service layer and
// deletes messages for the auto-delete sweep. Admin and group sends are
// queued for cleanup so review chatter does not pile up.
type Notifier struct {
	api     *tgbotapi.BotAPI
	store   database.Store
	log     *logging.Logger
	owner   int64
	groupID int64
}

func NewNotifier(api *tgbotapi.BotAPI, store database.Store, log *logging.Logger, owner, groupID int64) *Notifier {
	return &Notifier{api: api, store: store, log: log, owner: owner, groupID: groupID}
}

func (n *Notifier) NotifyUser(userID string, text string) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		n.log.Warnf("notify user: bad user id %q: %v", userID, err)
		return
	}
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = "Markdown"
	if _, err := n.api.Send(m); err != nil {
		n.log.Warnf("notify user %s: %v", userID, err)
	}
}

func (n *Notifier) NotifyAdmins(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ids, err := n.store.LoadAdminIDs(ctx, n.owner)
	if err != nil {
		n.log.Warnf("notify admins: load list: %v", err)
		ids = []int64{n.owner}
	}
	for _, id := range ids {
		m := tgbotapi.NewMessage(id, text)
		m.ParseMode = "Markdown"
		sent, err := n.api.Send(m)
		if err != nil {
			n.log.Warnf("notify admin %d: %v", id, err)
			continue
		}
		n.queueForDelete(ctx, id, sent.MessageID)
	}
}

func (n *Notifier) NotifyGroup(text string) {
	if n.groupID == 0 {
		return
	}
	m := tgbotapi.NewMessage(n.groupID, text)
	m.ParseMode = "Markdown"
	sent, err := n.api.Send(m)
	if err != nil {
		n.log.Warnf("notify group %d: %v", n.groupID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n.queueForDelete(ctx, n.groupID, sent.MessageID)
}

// SendWithKeyboard posts a message with an inline keyboard and queues it for
// auto-delete. Used for the review cards pushed to admins.
func (n *Notifier) SendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = "Markdown"
	m.ReplyMarkup = keyboard
	sent, err := n.api.Send(m)
	if err != nil {
		n.log.Warnf("send to chat %d: %v", chatID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n.queueForDelete(ctx, chatID, sent.MessageID)
}

// ForwardPhoto relays a receipt photo to a review chat by file ID.
func (n *Notifier) ForwardPhoto(chatID int64, fileID, caption string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	p := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	p.Caption = caption
	p.ParseMode = "Markdown"
	if keyboard != nil {
		p.ReplyMarkup = keyboard
	}
	sent, err := n.api.Send(p)
	if err != nil {
		n.log.Warnf("forward photo to chat %d: %v", chatID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n.queueForDelete(ctx, chatID, sent.MessageID)
}

func (n *Notifier) DeleteMessage(chatID int64, messageID int) error {
	_, err := n.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (n *Notifier) queueForDelete(ctx context.Context, chatID int64, messageID int) {
	qm := models.QueuedMessage{
		ChatID:    chatID,
		MessageID: messageID,
		Timestamp: time.Now().UTC(),
	}
	if err := n.store.QueueMessageForDelete(ctx, qm); err != nil {
		n.log.Warnf("queue message %d/%d for delete: %v", chatID, messageID, err)
	}
}
