package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gametopup/database"
	"gametopup/pricing"
	"gametopup/report"
	"gametopup/service"
)

// handleApprove resolves a user's pending topup by user id and amount, for
// admins working from a payment screenshot instead of a review card.
func (b *Bot) handleApprove(ctx context.Context, msg *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.reply(msg.Chat.ID, "Usage: /approve `<user id> <amount>`")
		return
	}
	targetID := fields[0]
	amount, err := strconv.Atoi(fields[1])
	if err != nil || amount <= 0 {
		b.reply(msg.Chat.ID, "Amount must be a positive number.")
		return
	}

	topup, err := b.svc.FindPendingTopup(ctx, targetID, amount)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyHandled) {
			b.reply(msg.Chat.ID, fmt.Sprintf("No pending topup of %d MMK for user `%s`.", amount, targetID))
			return
		}
		if errors.Is(err, service.ErrUserNotFound) {
			b.reply(msg.Chat.ID, "User not found.")
			return
		}
		b.log.Errorf("find pending topup: %v", err)
		b.reply(msg.Chat.ID, "⚠️ Lookup failed.")
		return
	}

	actor := strconv.FormatInt(msg.From.ID, 10)
	approved, userID, err := b.svc.ApproveTopup(ctx, topup.TopupID, actor)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyHandled) {
			b.reply(msg.Chat.ID, "Already processed by another admin.")
			return
		}
		b.log.Errorf("approve topup %s: %v", topup.TopupID, err)
		b.reply(msg.Chat.ID, "⚠️ Approval failed.")
		return
	}

	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Approved `%s`: credited %d MMK to user `%s`.",
		approved.TopupID, approved.Amount, userID))
	b.notifier.NotifyUser(userID, fmt.Sprintf(
		"✅ *Topup approved!*\n\n💵 %d MMK has been added to your balance.", approved.Amount))
}

func (b *Bot) handleDeduct(ctx context.Context, msg *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.reply(msg.Chat.ID, "Usage: /deduct `<user id> <amount>`")
		return
	}
	targetID := fields[0]
	amount, err := strconv.Atoi(fields[1])
	if err != nil || amount <= 0 {
		b.reply(msg.Chat.ID, "Amount must be a positive number.")
		return
	}

	if err := b.svc.Store().DebitBalance(ctx, targetID, amount); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			b.reply(msg.Chat.ID, "User not found.")
		case errors.Is(err, database.ErrInsufficientBalance):
			b.reply(msg.Chat.ID, "User's balance does not cover that amount.")
		default:
			b.log.Errorf("deduct from %s: %v", targetID, err)
			b.reply(msg.Chat.ID, "⚠️ Deduction failed.")
		}
		return
	}

	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Deducted %d MMK from user `%s`.", amount, targetID))
	b.notifier.NotifyUser(targetID, fmt.Sprintf("ℹ️ %d MMK was deducted from your balance by an admin.", amount))
}

func (b *Bot) handleBan(ctx context.Context, msg *tgbotapi.Message, args string) {
	targetID := strings.TrimSpace(args)
	if targetID == "" {
		b.reply(msg.Chat.ID, "Usage: /ban `<user id>`")
		return
	}
	if b.auth.IsOwner(targetID) {
		b.reply(msg.Chat.ID, "Cannot ban the owner.")
		return
	}
	if err := b.svc.Store().RemoveAuthorizedUser(ctx, targetID); err != nil {
		b.log.Errorf("ban %s: %v", targetID, err)
		b.reply(msg.Chat.ID, "⚠️ Failed to remove access.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("🚫 User `%s` can no longer use the bot.", targetID))
}

func (b *Bot) handleUnban(ctx context.Context, msg *tgbotapi.Message, args string) {
	targetID := strings.TrimSpace(args)
	if targetID == "" {
		b.reply(msg.Chat.ID, "Usage: /unban `<user id>`")
		return
	}
	if err := b.svc.Store().AddAuthorizedUser(ctx, targetID); err != nil {
		b.log.Errorf("unban %s: %v", targetID, err)
		b.reply(msg.Chat.ID, "⚠️ Failed to grant access.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ User `%s` can use the bot now.", targetID))
	b.notifier.NotifyUser(targetID, "✅ You have been granted access. Send /start to begin.")
}

// handleSetPrice accepts either a single "code price" pair or a batch of
// "code=price" pairs. A weekly pass code expands into the whole wp1..wp10
// table scaled from the given price.
func (b *Bot) handleSetPrice(ctx context.Context, msg *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.reply(msg.Chat.ID, "Usage: /setprice `<code> <price>` or /setprice `<code>=<price> <code>=<price> ...`")
		return
	}

	updates := map[string]int{}
	if len(fields) == 2 && !strings.Contains(fields[0], "=") {
		price, err := strconv.Atoi(fields[1])
		if err != nil || price <= 0 {
			b.reply(msg.Chat.ID, "Price must be a positive number.")
			return
		}
		updates[fields[0]] = price
	} else {
		for _, pair := range fields {
			parts := strings.SplitN(pair, "=", 2)
			if len(parts) != 2 {
				b.reply(msg.Chat.ID, fmt.Sprintf("Bad pair `%s`, expected `code=price`.", pair))
				return
			}
			price, err := strconv.Atoi(parts[1])
			if err != nil || price <= 0 {
				b.reply(msg.Chat.ID, fmt.Sprintf("Bad price in `%s`.", pair))
				return
			}
			updates[parts[0]] = price
		}
	}

	custom, err := b.svc.Store().LoadPrices(ctx)
	if err != nil {
		b.log.Warnf("load prices: %v", err)
		custom = map[string]int{}
	}

	for code, price := range updates {
		if strings.HasPrefix(code, "wp") {
			weekNum, err := strconv.Atoi(code[2:])
			if err != nil || weekNum < 1 || weekNum > 10 {
				b.reply(msg.Chat.ID, fmt.Sprintf("Unknown weekly pass code `%s`.", code))
				return
			}
			for wp, wpPrice := range pricing.WeeklyPassTable(weekNum, price) {
				custom[wp] = wpPrice
			}
			continue
		}
		custom[code] = price
	}

	if err := b.svc.Store().SavePrices(ctx, custom); err != nil {
		b.log.Errorf("save prices: %v", err)
		b.reply(msg.Chat.ID, "⚠️ Failed to save prices.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Updated %d price(s). See /price.", len(updates)))
}

func (b *Bot) handleRemovePrice(ctx context.Context, msg *tgbotapi.Message, args string) {
	code := strings.TrimSpace(args)
	if code == "" {
		b.reply(msg.Chat.ID, "Usage: /removeprice `<code>`")
		return
	}

	custom, err := b.svc.Store().LoadPrices(ctx)
	if err != nil {
		b.log.Errorf("load prices: %v", err)
		b.reply(msg.Chat.ID, "⚠️ Failed to load prices.")
		return
	}
	if _, ok := custom[code]; !ok {
		b.reply(msg.Chat.ID, fmt.Sprintf("No custom price for `%s`.", code))
		return
	}
	delete(custom, code)

	if err := b.svc.Store().SavePrices(ctx, custom); err != nil {
		b.log.Errorf("save prices: %v", err)
		b.reply(msg.Chat.ID, "⚠️ Failed to save prices.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Custom price for `%s` removed, default applies.", code))
}

func (b *Bot) handleMaintenance(ctx context.Context, msg *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.reply(msg.Chat.ID, "Usage: /maintenance `<orders|topups|general> <on|off>`")
		return
	}
	feature, state := fields[0], fields[1]

	var key string
	switch feature {
	case "orders":
		key = "maintenance.orders"
	case "topups":
		key = "maintenance.topups"
	case "general":
		key = "maintenance.general"
	default:
		b.reply(msg.Chat.ID, "Feature must be one of: orders, topups, general.")
		return
	}

	var enabled bool
	switch state {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		b.reply(msg.Chat.ID, "State must be `on` or `off`.")
		return
	}

	if err := b.svc.Store().UpdateSetting(ctx, key, enabled); err != nil {
		b.log.Errorf("update setting %s: %v", key, err)
		b.reply(msg.Chat.ID, "⚠️ Failed to update setting.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ %s switched *%s*.", feature, state))
}

func (b *Bot) handleCheckUser(ctx context.Context, msg *tgbotapi.Message, args string) {
	targetID := strings.TrimSpace(args)
	if targetID == "" {
		b.reply(msg.Chat.ID, "Usage: /check `<user id>`")
		return
	}

	user, err := b.svc.Store().GetUser(ctx, targetID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			b.reply(msg.Chat.ID, "User not found.")
			return
		}
		b.log.Errorf("check user %s: %v", targetID, err)
		b.reply(msg.Chat.ID, "⚠️ Lookup failed.")
		return
	}

	pending := "none"
	if t := user.PendingTopup(); t != nil {
		pending = fmt.Sprintf("`%s` %d MMK via %s", t.TopupID, t.Amount, t.Channel)
	}
	referred := user.ReferredBy
	if referred == "" {
		referred = "nobody"
	}

	b.reply(msg.Chat.ID, fmt.Sprintf(
		"👤 *%s* (@%s)\n🆔 `%s`\n💳 Balance: %d MMK\n"+
			"🛒 Orders: %d\n💰 Topups: %d\n⏳ Pending topup: %s\n"+
			"🤝 Referred by: %s\n💵 Referral earnings: %d MMK\n📅 Joined: %s",
		user.Name, user.Username, user.UserID, user.Balance,
		len(user.Orders), len(user.Topups), pending,
		referred, user.ReferralEarnings, user.JoinedAt.Format("2006-01-02")))
}

func (b *Bot) handleAddAdmin(ctx context.Context, msg *tgbotapi.Message, args string) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Usage: /addadm `<user id>`")
		return
	}
	if err := b.svc.Store().AddAdmin(ctx, id); err != nil {
		b.log.Errorf("add admin %d: %v", id, err)
		b.reply(msg.Chat.ID, "⚠️ Failed to add admin.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ `%d` is now an admin.", id))
}

func (b *Bot) handleRemoveAdmin(ctx context.Context, msg *tgbotapi.Message, args string) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Usage: /unadm `<user id>`")
		return
	}
	if id == b.auth.Owner() {
		b.reply(msg.Chat.ID, "Cannot remove the owner.")
		return
	}
	if err := b.svc.Store().RemoveAdmin(ctx, id); err != nil {
		b.log.Errorf("remove admin %d: %v", id, err)
		b.reply(msg.Chat.ID, "⚠️ Failed to remove admin.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ `%d` is no longer an admin.", id))
}

func (b *Bot) handleSetBalance(ctx context.Context, msg *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.reply(msg.Chat.ID, "Usage: /setbalance `<user id> <amount>`")
		return
	}
	targetID := fields[0]
	amount, err := strconv.Atoi(fields[1])
	if err != nil || amount < 0 {
		b.reply(msg.Chat.ID, "Amount must be zero or a positive number.")
		return
	}

	if err := b.svc.Store().SetBalance(ctx, targetID, amount); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			b.reply(msg.Chat.ID, "User not found.")
			return
		}
		b.log.Errorf("set balance for %s: %v", targetID, err)
		b.reply(msg.Chat.ID, "⚠️ Failed to set balance.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Balance of `%s` set to %d MMK.", targetID, amount))
}

func (b *Bot) handleClearHistory(ctx context.Context, msg *tgbotapi.Message, args string) {
	targetID := strings.TrimSpace(args)
	if targetID == "" {
		b.reply(msg.Chat.ID, "Usage: /clearhistory `<user id>`")
		return
	}

	if err := b.svc.Store().ClearHistory(ctx, targetID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			b.reply(msg.Chat.ID, "User not found.")
			return
		}
		b.log.Errorf("clear history for %s: %v", targetID, err)
		b.reply(msg.Chat.ID, "⚠️ Failed to clear history.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("🧹 Order and topup history of `%s` cleared. Balance untouched.", targetID))
}

// handleSetPayment updates one payment channel field, e.g.
// "/setpayment kpay number 09123456789" or "/setpayment wave name Aung Aung".
func (b *Bot) handleSetPayment(ctx context.Context, msg *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		b.reply(msg.Chat.ID, "Usage: /setpayment `<kpay|wave> <number|name|image> <value>`")
		return
	}
	channel, field := fields[0], fields[1]
	value := strings.Join(fields[2:], " ")

	if channel != "kpay" && channel != "wave" {
		b.reply(msg.Chat.ID, "Channel must be `kpay` or `wave`.")
		return
	}
	if field != "number" && field != "name" && field != "image" {
		b.reply(msg.Chat.ID, "Field must be `number`, `name` or `image`.")
		return
	}

	key := fmt.Sprintf("payment_info.%s_%s", channel, field)
	if err := b.svc.Store().UpdateSetting(ctx, key, value); err != nil {
		b.log.Errorf("update setting %s: %v", key, err)
		b.reply(msg.Chat.ID, "⚠️ Failed to update payment info.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ %s %s updated.", channel, field))
}

// handleSetPercentage takes the rate in percent, e.g. "/setpercentage 3" for
// a 3% commission.
func (b *Bot) handleSetPercentage(ctx context.Context, msg *tgbotapi.Message, args string) {
	pct, err := strconv.ParseFloat(strings.TrimSpace(args), 64)
	if err != nil || pct < 0 || pct > 100 {
		b.reply(msg.Chat.ID, "Usage: /setpercentage `<0-100>`")
		return
	}

	if err := b.svc.Store().UpdateSetting(ctx, "affiliate.percentage", pct/100); err != nil {
		b.log.Errorf("update affiliate percentage: %v", err)
		b.reply(msg.Chat.ID, "⚠️ Failed to update percentage.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Commission rate set to %.2f%%.", pct))
}

func (b *Bot) handleAutoDelete(ctx context.Context, msg *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.reply(msg.Chat.ID, "Usage: /autodelete `<on|off> [hours]`")
		return
	}

	switch fields[0] {
	case "on":
		hours := 24
		if len(fields) > 1 {
			h, err := strconv.Atoi(fields[1])
			if err != nil || h < 1 {
				b.reply(msg.Chat.ID, "Hours must be a positive number.")
				return
			}
			hours = h
		}
		if err := b.svc.Store().UpdateSetting(ctx, "auto_delete.enabled", true); err != nil {
			b.log.Errorf("update auto_delete.enabled: %v", err)
			b.reply(msg.Chat.ID, "⚠️ Failed to update setting.")
			return
		}
		if err := b.svc.Store().UpdateSetting(ctx, "auto_delete.hours", hours); err != nil {
			b.log.Errorf("update auto_delete.hours: %v", err)
			b.reply(msg.Chat.ID, "⚠️ Failed to update setting.")
			return
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("🧹 Auto-delete enabled, review messages vanish after %d hours.", hours))
	case "off":
		if err := b.svc.Store().UpdateSetting(ctx, "auto_delete.enabled", false); err != nil {
			b.log.Errorf("update auto_delete.enabled: %v", err)
			b.reply(msg.Chat.ID, "⚠️ Failed to update setting.")
			return
		}
		b.reply(msg.Chat.ID, "🧹 Auto-delete disabled.")
	default:
		b.reply(msg.Chat.ID, "Usage: /autodelete `<on|off> [hours]`")
	}
}

func (b *Bot) handleDailyReport(ctx context.Context, msg *tgbotapi.Message, args string) {
	day := time.Now()
	if arg := strings.TrimSpace(args); arg != "" {
		parsed, err := time.Parse("2006-01-02", arg)
		if err != nil {
			b.reply(msg.Chat.ID, "Usage: /d `[YYYY-MM-DD]`")
			return
		}
		day = parsed
	}

	summary, err := report.Day(ctx, b.svc.Store(), day)
	if err != nil {
		b.log.Errorf("daily report: %v", err)
		b.reply(msg.Chat.ID, "⚠️ Report failed.")
		return
	}
	b.reply(msg.Chat.ID, formatSummary("📊 Daily Report "+day.Format("2006-01-02"), summary))
}

func (b *Bot) handleMonthlyReport(ctx context.Context, msg *tgbotapi.Message, args string) {
	day := time.Now()
	if arg := strings.TrimSpace(args); arg != "" {
		parsed, err := time.Parse("2006-01", arg)
		if err != nil {
			b.reply(msg.Chat.ID, "Usage: /m `[YYYY-MM]`")
			return
		}
		day = parsed
	}

	summary, err := report.Month(ctx, b.svc.Store(), day)
	if err != nil {
		b.log.Errorf("monthly report: %v", err)
		b.reply(msg.Chat.ID, "⚠️ Report failed.")
		return
	}
	b.reply(msg.Chat.ID, formatSummary("📊 Monthly Report "+day.Format("2006-01"), summary))
}

func formatSummary(title string, s report.Summary) string {
	return fmt.Sprintf(
		"*%s*\n\n🛒 Confirmed orders: %d (%d MMK)\n💰 Approved topups: %d (%d MMK)",
		title, s.OrderCount, s.OrderTotal, s.TopupCount, s.TopupTotal)
}
