// Package bot is the Telegram transport: it parses updates, gates them by
// authorization and interaction locks, and maps service outcomes to chat
// replies. All ledger semantics live in the service package.
package bot

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gametopup/auth"
	"gametopup/config"
	"gametopup/logging"
	"gametopup/service"
)

const handlerTimeout = 30 * time.Second

type Bot struct {
	api      *tgbotapi.BotAPI
	svc      *service.Service
	auth     *auth.Checker
	notifier *Notifier
	log      *logging.Logger
	cfg      config.Config
}

func New(api *tgbotapi.BotAPI, svc *service.Service, checker *auth.Checker, notifier *Notifier, log *logging.Logger, cfg config.Config) *Bot {
	return &Bot{
		api:      api,
		svc:      svc,
		auth:     checker,
		notifier: notifier,
		log:      log,
		cfg:      cfg,
	}
}

// Run consumes the long-poll update stream until the channel closes. Each
// update runs in its own goroutine; handlers only serialize through the
// store's atomic contract.
func (b *Bot) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.log.Infof("bot running as @%s", b.api.Self.UserName)

	for update := range updates {
		go b.handleUpdate(update)
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("panic in update handler: %v", r)
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	// Free text while a submitted topup awaits review gets the lock notice.
	if b.svc.Locked(userID) && !b.auth.IsAdmin(ctx, userID) {
		if locked, _ := b.svc.HasPendingTopup(ctx, userID); locked {
			b.reply(msg.Chat.ID, lockNotice)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := msg.CommandArguments()

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg, args)
	case "mmb":
		b.handleOrder(ctx, msg, args)
	case "balance":
		b.handleBalance(ctx, msg)
	case "topup":
		b.handleTopup(ctx, msg, args)
	case "cancel":
		b.handleCancelDraft(ctx, msg)
	case "price":
		b.handlePrice(ctx, msg)
	case "history":
		b.handleHistory(ctx, msg)
	case "affiliate":
		b.handleAffiliate(ctx, msg)
	case "register":
		b.handleRegister(ctx, msg)

	case "approve":
		b.adminOnly(ctx, msg, func() { b.handleApprove(ctx, msg, args) })
	case "deduct":
		b.adminOnly(ctx, msg, func() { b.handleDeduct(ctx, msg, args) })
	case "ban":
		b.adminOnly(ctx, msg, func() { b.handleBan(ctx, msg, args) })
	case "unban":
		b.adminOnly(ctx, msg, func() { b.handleUnban(ctx, msg, args) })
	case "setprice":
		b.adminOnly(ctx, msg, func() { b.handleSetPrice(ctx, msg, args) })
	case "removeprice":
		b.adminOnly(ctx, msg, func() { b.handleRemovePrice(ctx, msg, args) })
	case "maintenance":
		b.adminOnly(ctx, msg, func() { b.handleMaintenance(ctx, msg, args) })
	case "check":
		b.adminOnly(ctx, msg, func() { b.handleCheckUser(ctx, msg, args) })

	case "addadm":
		b.ownerOnly(msg, func() { b.handleAddAdmin(ctx, msg, args) })
	case "unadm":
		b.ownerOnly(msg, func() { b.handleRemoveAdmin(ctx, msg, args) })
	case "setbalance":
		b.ownerOnly(msg, func() { b.handleSetBalance(ctx, msg, args) })
	case "clearhistory":
		b.ownerOnly(msg, func() { b.handleClearHistory(ctx, msg, args) })
	case "setpayment":
		b.ownerOnly(msg, func() { b.handleSetPayment(ctx, msg, args) })
	case "setpercentage":
		b.ownerOnly(msg, func() { b.handleSetPercentage(ctx, msg, args) })
	case "autodelete":
		b.ownerOnly(msg, func() { b.handleAutoDelete(ctx, msg, args) })
	case "d":
		b.ownerOnly(msg, func() { b.handleDailyReport(ctx, msg, args) })
	case "m":
		b.ownerOnly(msg, func() { b.handleMonthlyReport(ctx, msg, args) })

	default:
		b.reply(msg.Chat.ID, "Unknown command. Use /start to see what's available.")
	}
}

func (b *Bot) adminOnly(ctx context.Context, msg *tgbotapi.Message, fn func()) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	if !b.auth.IsAdmin(ctx, userID) {
		b.reply(msg.Chat.ID, "❌ You are not an admin.")
		return
	}
	fn()
}

func (b *Bot) ownerOnly(msg *tgbotapi.Message, fn func()) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	if !b.auth.IsOwner(userID) {
		b.reply(msg.Chat.ID, "❌ Owner only.")
		return
	}
	fn()
}

// guardUser runs the common gate for user commands: authorization first,
// then the awaiting-review lock. Returns false when the command must stop.
func (b *Bot) guardUser(ctx context.Context, msg *tgbotapi.Message) bool {
	userID := strconv.FormatInt(msg.From.ID, 10)

	if !b.auth.IsAuthorized(ctx, userID) {
		b.sendNotAuthorized(msg.Chat.ID)
		return false
	}

	if settings, err := b.svc.Settings(ctx); err == nil &&
		!settings.Maintenance.General && !b.auth.IsAdmin(ctx, userID) {
		b.reply(msg.Chat.ID, "🛠 The bot is under maintenance. Please try again later.")
		return false
	}

	if pending, _ := b.svc.HasPendingTopup(ctx, userID); pending {
		b.reply(msg.Chat.ID, lockNotice)
		return false
	}
	return true
}

func (b *Bot) reply(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = "Markdown"
	if _, err := b.api.Send(m); err != nil {
		b.log.Warnf("failed to send message to chat %d: %v", chatID, err)
	}
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = "Markdown"
	m.ReplyMarkup = keyboard
	if _, err := b.api.Send(m); err != nil {
		b.log.Warnf("failed to send message to chat %d: %v", chatID, err)
	}
}

func (b *Bot) sendNotAuthorized(chatID int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("👑 Contact Owner",
				"tg://user?id="+strconv.FormatInt(b.auth.Owner(), 10)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Request Access", "request_register"),
		),
	)
	b.replyWithKeyboard(chatID, "🚫 You are not authorized yet.\n\nAsk the owner for access or request it below.", keyboard)
}

const lockNotice = "⏳ Your topup is awaiting admin review.\n\n" +
	"❌ Orders and new topups are locked until it is approved or rejected."

func displayName(user *tgbotapi.User) string {
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	return name
}
