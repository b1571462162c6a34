package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gametopup/models"
	"gametopup/pricing"
	"gametopup/service"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, args string) {
	userID := strconv.FormatInt(msg.From.ID, 10)

	var referrer *string
	if ref := strings.TrimSpace(args); ref != "" && ref != userID {
		if _, err := strconv.ParseInt(ref, 10, 64); err == nil {
			referrer = &ref
		}
	}

	if err := b.svc.RegisterUser(ctx, userID, displayName(msg.From), msg.From.UserName, referrer); err != nil {
		b.log.Errorf("register user %s: %v", userID, err)
	}

	if !b.auth.IsAuthorized(ctx, userID) {
		b.sendNotAuthorized(msg.Chat.ID)
		return
	}

	b.reply(msg.Chat.ID, fmt.Sprintf(
		"👋 Welcome, %s!\n\n"+
			"🛒 /mmb `<game id> <server id> <product>` - place an order\n"+
			"💰 /topup `<amount>` - add funds\n"+
			"💳 /balance - check your balance\n"+
			"🏷 /price - price list\n"+
			"📜 /history - your recent activity\n"+
			"🤝 /affiliate - your referral link",
		displayName(msg.From)))
}

func (b *Bot) handleRegister(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	if b.auth.IsAuthorized(ctx, userID) {
		b.reply(msg.Chat.ID, "✅ You already have access.")
		return
	}
	b.sendAccessRequest(ctx, msg.From)
	b.reply(msg.Chat.ID, "📨 Your access request was sent. You will be notified once it is reviewed.")
}

func (b *Bot) sendAccessRequest(ctx context.Context, from *tgbotapi.User) {
	userID := strconv.FormatInt(from.ID, 10)
	if err := b.svc.RegisterUser(ctx, userID, displayName(from), from.UserName, nil); err != nil {
		b.log.Errorf("register user %s: %v", userID, err)
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "register_approve_"+userID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "register_reject_"+userID),
		),
	)
	text := fmt.Sprintf("📝 *Access Request*\n\n👤 %s (@%s)\n🆔 `%s`",
		displayName(from), from.UserName, userID)
	b.notifier.SendWithKeyboard(b.auth.Owner(), text, keyboard)
}

func (b *Bot) handleBalance(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	if !b.auth.IsAuthorized(ctx, userID) {
		b.sendNotAuthorized(msg.Chat.ID)
		return
	}

	user, err := b.svc.Store().GetUser(ctx, userID)
	if err != nil {
		b.reply(msg.Chat.ID, "⚠️ Could not load your account. Try /start first.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("💳 Balance: *%d MMK*", user.Balance))
}

func (b *Bot) handleOrder(ctx context.Context, msg *tgbotapi.Message, args string) {
	if !b.guardUser(ctx, msg) {
		return
	}
	userID := strconv.FormatInt(msg.From.ID, 10)

	fields := strings.Fields(args)
	if len(fields) != 3 {
		b.reply(msg.Chat.ID, "Usage: /mmb `<game id> <server id> <product>`\nExample: `/mmb 12345678 2345 86`")
		return
	}
	gameID, serverID, product := fields[0], fields[1], fields[2]

	order, newBalance, err := b.svc.CreateOrder(ctx, userID, msg.Chat.ID, gameID, serverID, product)
	if err != nil {
		b.replyOrderError(msg.Chat.ID, err)
		return
	}

	b.reply(msg.Chat.ID, fmt.Sprintf(
		"🛒 *Order placed!*\n\n"+
			"🧾 ID: `%s`\n🎮 Game ID: `%s` (%s)\n💎 Product: %s\n💵 Price: %d MMK\n"+
			"💳 Remaining balance: %d MMK\n\n⏳ Waiting for admin confirmation.",
		order.OrderID, order.GameID, order.ServerID, order.Product, order.Price, newBalance))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", "order_confirm_"+order.OrderID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "order_cancel_"+order.OrderID),
		),
	)
	card := fmt.Sprintf(
		"🛒 *New Order*\n\n🧾 `%s`\n👤 %s (`%s`)\n🎮 `%s` (%s)\n💎 %s\n💵 %d MMK",
		order.OrderID, displayName(msg.From), userID, order.GameID, order.ServerID, order.Product, order.Price)
	if b.cfg.AdminGroupID != 0 {
		b.notifier.SendWithKeyboard(b.cfg.AdminGroupID, card, keyboard)
	} else {
		b.notifier.SendWithKeyboard(b.auth.Owner(), card, keyboard)
	}
}

func (b *Bot) replyOrderError(chatID int64, err error) {
	var insufficient *service.InsufficientBalanceError
	switch {
	case errors.Is(err, service.ErrMaintenance):
		b.reply(chatID, "🛠 Ordering is under maintenance. Please try again later.")
	case errors.Is(err, service.ErrAwaitingReview):
		b.reply(chatID, lockNotice)
	case errors.Is(err, service.ErrUnknownProduct):
		b.reply(chatID, "❓ Unknown product code. See /price for the list.")
	case errors.Is(err, service.ErrUserNotFound):
		b.reply(chatID, "⚠️ Account not found. Send /start first.")
	case errors.As(err, &insufficient):
		b.reply(chatID, fmt.Sprintf(
			"💸 Insufficient balance.\n\nNeed: %d MMK\nHave: %d MMK\nShort by: *%d MMK*\n\nUse /topup to add funds.",
			insufficient.Need, insufficient.Have, insufficient.Shortfall()))
	default:
		b.log.Errorf("create order: %v", err)
		b.reply(chatID, "⚠️ Something went wrong. Please try again.")
	}
}

func (b *Bot) handleTopup(ctx context.Context, msg *tgbotapi.Message, args string) {
	if !b.guardUser(ctx, msg) {
		return
	}
	userID := strconv.FormatInt(msg.From.ID, 10)

	amount, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || amount <= 0 {
		b.reply(msg.Chat.ID, "Usage: /topup `<amount>`\nExample: `/topup 10000`")
		return
	}

	if err := b.svc.StartTopup(ctx, userID, amount); err != nil {
		var tooSmall *service.AmountTooSmallError
		switch {
		case errors.Is(err, service.ErrMaintenance):
			b.reply(msg.Chat.ID, "🛠 Topups are under maintenance. Please try again later.")
		case errors.Is(err, service.ErrAwaitingReview):
			b.reply(msg.Chat.ID, lockNotice)
		case errors.Is(err, service.ErrDraftInProgress):
			b.reply(msg.Chat.ID, "⏳ You already have a topup in progress. Finish it or /cancel first.")
		case errors.As(err, &tooSmall):
			b.reply(msg.Chat.ID, fmt.Sprintf("❌ Minimum topup is *%d MMK*.", tooSmall.Min))
		default:
			b.log.Errorf("start topup: %v", err)
			b.reply(msg.Chat.ID, "⚠️ Something went wrong. Please try again.")
		}
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📱 KPay", "topup_pay_KPay"),
			tgbotapi.NewInlineKeyboardButtonData("🌊 Wave", "topup_pay_Wave"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "topup_cancel"),
		),
	)
	b.replyWithKeyboard(msg.Chat.ID,
		fmt.Sprintf("💰 Topup *%d MMK*\n\nChoose a payment method:", amount), keyboard)
}

func (b *Bot) handleCancelDraft(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	if _, ok := b.svc.Draft(userID); !ok {
		b.reply(msg.Chat.ID, "Nothing to cancel.")
		return
	}
	b.svc.CancelDraft(userID)
	b.reply(msg.Chat.ID, "❌ Topup cancelled.")
}

// handlePhoto treats an incoming photo as a payment receipt when a topup
// draft is live. Photos outside a draft are ignored.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)

	if _, ok := b.svc.Draft(userID); !ok {
		return
	}

	// Largest resolution is last in the slice.
	receiptID := msg.Photo[len(msg.Photo)-1].FileID

	topup, err := b.svc.SubmitTopup(ctx, userID, msg.Chat.ID, receiptID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoChannel):
			b.reply(msg.Chat.ID, "⚠️ Choose a payment method first.")
		case errors.Is(err, service.ErrAwaitingReview):
			b.reply(msg.Chat.ID, lockNotice)
		case errors.Is(err, service.ErrNoDraft):
			// Draft expired between the gate and the submit. Nothing to do.
		default:
			b.log.Errorf("submit topup: %v", err)
			b.reply(msg.Chat.ID, "⚠️ Could not submit your topup. Please try again.")
		}
		return
	}

	b.reply(msg.Chat.ID, fmt.Sprintf(
		"📨 *Topup submitted!*\n\n💵 Amount: %d MMK\n💳 Method: %s\n🧾 ID: `%s`\n\n"+
			"⏳ An admin will review your receipt shortly. Orders are locked until then.",
		topup.Amount, topup.Channel, topup.TopupID))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "topup_approve_"+topup.TopupID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "topup_reject_"+topup.TopupID),
		),
	)
	caption := fmt.Sprintf(
		"💰 *New Topup*\n\n🧾 `%s`\n👤 %s (`%s`)\n💵 %d MMK via %s",
		topup.TopupID, displayName(msg.From), userID, topup.Amount, topup.Channel)

	reviewChat := b.cfg.AdminGroupID
	if reviewChat == 0 {
		reviewChat = b.auth.Owner()
	}
	b.notifier.ForwardPhoto(reviewChat, receiptID, caption, &keyboard)
}

func (b *Bot) handlePrice(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	if !b.auth.IsAuthorized(ctx, userID) {
		b.sendNotAuthorized(msg.Chat.ID)
		return
	}

	custom, err := b.svc.Store().LoadPrices(ctx)
	if err != nil {
		b.log.Warnf("load prices: %v", err)
		custom = map[string]int{}
	}

	var sb strings.Builder
	sb.WriteString("🏷 *Price List (MMK)*\n\n")

	var diamonds []string
	var passes []string
	for _, code := range pricing.Codes(custom) {
		if strings.HasPrefix(code, "wp") {
			passes = append(passes, code)
			continue
		}
		diamonds = append(diamonds, code)
	}
	sort.Slice(diamonds, func(i, j int) bool {
		di, _ := strconv.Atoi(diamonds[i])
		dj, _ := strconv.Atoi(diamonds[j])
		return di < dj
	})
	sort.Slice(passes, func(i, j int) bool {
		pi, _ := strconv.Atoi(strings.TrimPrefix(passes[i], "wp"))
		pj, _ := strconv.Atoi(strings.TrimPrefix(passes[j], "wp"))
		return pi < pj
	})

	sb.WriteString("💎 *Diamonds*\n")
	for _, code := range diamonds {
		sb.WriteString(fmt.Sprintf("`%s` - %d\n", code, pricing.PriceFor(code, custom)))
	}
	sb.WriteString("\n🎫 *Weekly Pass*\n")
	for _, code := range passes {
		sb.WriteString(fmt.Sprintf("`%s` - %d\n", code, pricing.PriceFor(code, custom)))
	}

	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	if !b.auth.IsAuthorized(ctx, userID) {
		b.sendNotAuthorized(msg.Chat.ID)
		return
	}

	user, err := b.svc.Store().GetUser(ctx, userID)
	if err != nil {
		b.reply(msg.Chat.ID, "⚠️ Could not load your account. Try /start first.")
		return
	}

	b.reply(msg.Chat.ID, formatHistory(user))
}

const historyLimit = 10

func formatHistory(user *models.User) string {
	var sb strings.Builder
	sb.WriteString("📜 *Recent Activity*\n")

	sb.WriteString("\n🛒 *Orders*\n")
	if len(user.Orders) == 0 {
		sb.WriteString("none yet\n")
	}
	orders := user.Orders
	if len(orders) > historyLimit {
		orders = orders[len(orders)-historyLimit:]
	}
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		sb.WriteString(fmt.Sprintf("%s `%s` %s for %d MMK (%s)\n",
			statusIcon(o.Status), o.OrderID, o.Product, o.Price, o.Timestamp.Format("Jan 2 15:04")))
	}

	sb.WriteString("\n💰 *Topups*\n")
	if len(user.Topups) == 0 {
		sb.WriteString("none yet\n")
	}
	topups := user.Topups
	if len(topups) > historyLimit {
		topups = topups[len(topups)-historyLimit:]
	}
	for i := len(topups) - 1; i >= 0; i-- {
		t := topups[i]
		sb.WriteString(fmt.Sprintf("%s `%s` %d MMK via %s (%s)\n",
			statusIcon(t.Status), t.TopupID, t.Amount, t.Channel, t.Timestamp.Format("Jan 2 15:04")))
	}

	sb.WriteString(fmt.Sprintf("\n💳 Balance: *%d MMK*", user.Balance))
	return sb.String()
}

func statusIcon(status string) string {
	switch status {
	case models.OrderConfirmed, models.TopupApproved:
		return "✅"
	case models.OrderCancelled, models.TopupRejected:
		return "❌"
	default:
		return "⏳"
	}
}

func (b *Bot) handleAffiliate(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	if !b.auth.IsAuthorized(ctx, userID) {
		b.sendNotAuthorized(msg.Chat.ID)
		return
	}

	user, err := b.svc.Store().GetUser(ctx, userID)
	if err != nil {
		b.reply(msg.Chat.ID, "⚠️ Could not load your account. Try /start first.")
		return
	}

	settings, err := b.svc.Settings(ctx)
	if err != nil {
		settings = models.DefaultSettings()
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s", b.api.Self.UserName, userID)
	b.reply(msg.Chat.ID, fmt.Sprintf(
		"🤝 *Affiliate Program*\n\n"+
			"Share your link and earn *%.0f%%* of every approved topup made by people you invite.\n\n"+
			"🔗 %s\n\n💰 Earned so far: *%d MMK*",
		settings.Affiliate.Percentage*100, link, user.ReferralEarnings))
}
