package conversation

import (
	"fmt"
	"strings"

	"github.com/xaenox/rc-intel-bot/internal/models"
	"github.com/xaenox/rc-intel-bot/internal/quota"
)

const divider = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

const (
	msgGenericError   = "❌ Something went wrong while processing your request. Please try again."
	msgCancelled      = "❌ Operation cancelled.\n\nWhat would you like to do next?"
	msgAdminOnly      = "⛔ This command is for administrators only."
	msgBanned         = "⛔ Your account has been restricted. Contact an administrator."
	msgIdleHint       = "Send /lookup to search a vehicle or /batch to look up several at once."
	msgNoStats        = "📈 No statistics available yet. Start by looking up a vehicle!"
	msgBatchEmpty     = "❌ No valid RC numbers found. Please try again."
	msgFeedbackShort  = "⚠️ Feedback too short. Please provide more details (at least %d characters)."
	msgSendingReports = "📄 Sending detailed reports..."
)

const msgFeedbackThanks = "✅ *FEEDBACK RECEIVED!*\n\n" +
	"Thank you for your feedback! 🙏\n" +
	"We'll review it and get back to you if needed."

const msgFeedbackPrompt = "💬 *SEND FEEDBACK*\n\n" +
	"Please send your feedback, suggestions, or bug reports.\n\n" +
	"Send /cancel to exit."

const msgInvalidFormat = "❌ *Invalid RC Number Format*\n\n" +
	"Please enter a valid Indian vehicle RC number.\n\n" +
	"📋 Valid formats:\n" +
	"  • MH12DE1433\n" +
	"  • DL9CAB1234\n" +
	"  • KA01AB1234\n\n" +
	"Try again or send /cancel to exit."

// markdownEscaper removes characters that break legacy Markdown in
// user-controlled text.
var markdownEscaper = strings.NewReplacer("*", "", "_", "", "`", "", "[", "(", "]", ")")

func plain(s string) string {
	return markdownEscaper.Replace(s)
}

func remainingText(remaining int) string {
	if remaining == quota.Unlimited {
		return "Unlimited ♾️"
	}
	return fmt.Sprint(remaining)
}

func welcomeText(firstName string, dailyLimit int) string {
	return fmt.Sprintf(`🚗 *RC INFO BOT*

Welcome *%s*! 👋

🔍 *Comprehensive RC Lookup*
   • Owner and vehicle details
   • Insurance & PUC status
   • Tax & fitness validity
   • Blacklist checking

📊 *Batch processing*, smart caching and usage statistics.

%s
📋 *QUICK START:*
1️⃣ Tap "🔍 Lookup Vehicle" below
2️⃣ Send an RC number (e.g. MH12DE1433)
3️⃣ Get a detailed report

⚡ Daily Limit: %d free queries
%s

⚠️ This bot is for informational purposes only.`, plain(firstName), divider, dailyLimit, divider)
}

func helpText(dailyLimit, batchMax int) string {
	return fmt.Sprintf(`📚 *HOW TO USE RC INFO BOT*

🔍 *SINGLE LOOKUP*
1. Send /lookup or tap "🔍 Lookup Vehicle"
2. Enter an RC number (e.g. MH12DE1433)
3. Receive the report

📊 *BATCH PROCESSING*
1. Send /batch or tap "📊 Batch Process"
2. Enter up to %d RC numbers separated by commas or new lines
3. Get a summary and all reports

📈 /stats shows your usage and recent searches
💬 /feedback sends a message to the team
❌ /cancel stops the current operation

⚡ Free users: %d queries/day. Reports are cached for 24 hours.

👑 *ADMIN COMMANDS*
/admin - dashboard
/premium <user id> (add "off" to revoke) - unlimited queries
/ban <user id>, /unban <user id>
/broadcast <text> - message every user`, batchMax, dailyLimit)
}

func menuText(firstName string) string {
	return fmt.Sprintf("*RC INFO BOT*\n\nWelcome back, %s! 👋\n\nWhat would you like to do?", plain(firstName))
}

func quotaReachedText(dailyLimit int) string {
	return fmt.Sprintf("⚠️ *DAILY LIMIT REACHED*\n\n"+
		"You've used all %d free queries for today.\n\n"+
		"💎 Upgrade to Premium for unlimited queries!\n"+
		"Contact admin for more information.", dailyLimit)
}

func lookupPromptText(remaining int) string {
	return fmt.Sprintf("🎯 *SINGLE VEHICLE LOOKUP*\n\n"+
		"Enter the RC number to search:\n"+
		"📋 Examples:\n"+
		"  • MH12DE1433\n"+
		"  • DL9CAB1234\n"+
		"  • KA01AB1234\n\n"+
		"⚡ Remaining today: %s", remainingText(remaining))
}

func processingText(id string) string {
	return fmt.Sprintf("🔍 *PROCESSING REQUEST*\n\n"+
		"📍 Target: `%s`\n"+
		"⏳ Fetching data...\n"+
		"⚡ This may take 10-20 seconds", id)
}

func lookupFailedText(reason string) string {
	return fmt.Sprintf("❌ *QUERY FAILED*\n\n%s\n\n💡 _Tip: Make sure the RC number is correct_", plain(reason))
}

func batchPromptText(remaining, batchCap int) string {
	return fmt.Sprintf("📊 *BATCH PROCESSING MODE*\n\n"+
		"Send multiple RC numbers in one of these formats:\n\n"+
		"1️⃣ Comma-separated:\n"+
		"`MH12DE1433, DL9CAB1234, KA01AB1234`\n\n"+
		"2️⃣ Line-separated:\n"+
		"`MH12DE1433`\n"+
		"`DL9CAB1234`\n\n"+
		"⚡ Remaining quota: %s\n"+
		"📝 Max %d vehicles per batch", remainingText(remaining), batchCap)
}

func batchRejectedText(rejected *BatchRejectedError, remaining int) string {
	return fmt.Sprintf("⚠️ Too many RC numbers! You can process maximum %d at once.\n"+
		"Remaining quota: %s", rejected.Cap, remainingText(remaining))
}

func batchStartedText(n int) string {
	return fmt.Sprintf("📊 *BATCH PROCESSING*\n\nProcessing %d vehicle(s)...\n⏳ This may take a while...", n)
}

type batchOutcome int

const (
	batchComplete batchOutcome = iota
	batchCancelled
	batchAborted
)

func batchSummaryText(results []batchResult, total int, outcome batchOutcome) string {
	var b strings.Builder
	switch outcome {
	case batchCancelled:
		b.WriteString("📊 *BATCH PROCESSING CANCELLED*\n\n")
	case batchAborted:
		b.WriteString("📊 *BATCH PROCESSING STOPPED*\nAn internal error interrupted the batch.\n\n")
	default:
		b.WriteString("📊 *BATCH PROCESSING COMPLETE*\n\n")
	}
	for _, r := range results {
		if r.ok() {
			b.WriteString(fmt.Sprintf("✅ %s: %s\n", r.ID, plain(r.summary)))
		} else {
			b.WriteString(fmt.Sprintf("❌ %s: %s\n", plain(r.ID), plain(r.reason)))
		}
	}
	b.WriteString(fmt.Sprintf("\n✅ Processed: %d of %d vehicles", len(results), total))
	return b.String()
}

func statsText(identity models.Identity, stats *models.UserStats) string {
	status := "🆓 Free"
	if stats.User.IsPremium {
		status = "💎 Premium"
	}

	var b strings.Builder
	b.WriteString("📈 *YOUR STATISTICS*\n\n")
	b.WriteString(divider + "\n")
	b.WriteString(fmt.Sprintf("👤 User: %s\n🆔 ID: `%d`\n\n", plain(identity.FirstName), identity.ID))
	b.WriteString("📊 *USAGE STATS*\n")
	b.WriteString(fmt.Sprintf("• Total Queries: %d\n", stats.User.QueriesCount))
	b.WriteString(fmt.Sprintf("• Queries Today: %d\n", stats.User.QueriesToday))
	b.WriteString(fmt.Sprintf("• Remaining Today: %s\n\n", remainingText(stats.Remaining)))
	b.WriteString("📅 *ACCOUNT INFO*\n")
	b.WriteString(fmt.Sprintf("• Member Since: %s\n", stats.User.FirstSeen.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("• Last Active: %s\n", stats.User.LastSeen.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("• Status: %s\n\n", status))
	b.WriteString(divider + "\n\n")
	b.WriteString("📝 *RECENT SEARCHES*\n")
	for i, q := range stats.RecentQueries {
		mark := "✅"
		if !q.Success {
			mark = "❌"
		}
		b.WriteString(fmt.Sprintf("%d. %s %s - %s\n", i+1, mark, q.RCNumber, q.Timestamp.Format("2006-01-02 15:04")))
	}
	return b.String()
}

func adminText(stats *models.AdminStats, feedback []models.Feedback) string {
	var b strings.Builder
	b.WriteString("👑 *ADMIN DASHBOARD*\n\n")
	b.WriteString(divider + "\n")
	b.WriteString("📊 *SYSTEM STATISTICS*\n\n")
	b.WriteString(fmt.Sprintf("👥 Total Users: %d\n", stats.TotalUsers))
	b.WriteString(fmt.Sprintf("📈 Total Queries: %d\n", stats.TotalQueries))
	b.WriteString(fmt.Sprintf("✅ Successful: %d\n", stats.SuccessfulQueries))
	b.WriteString(fmt.Sprintf("❌ Failed: %d\n", stats.TotalQueries-stats.SuccessfulQueries))
	b.WriteString(fmt.Sprintf("📊 Success Rate: %.1f%%\n\n", stats.SuccessRate()))
	b.WriteString("📅 *TODAY'S ACTIVITY*\n")
	b.WriteString(fmt.Sprintf("• Queries Today: %d\n", stats.QueriesToday))
	b.WriteString(fmt.Sprintf("• Active Users: %d\n\n", stats.ActiveToday))
	b.WriteString("💾 *CACHE*\n")
	b.WriteString(fmt.Sprintf("• Cached Vehicles: %d\n\n", stats.CacheSize))
	b.WriteString(divider + "\n\n")

	b.WriteString("👥 *TOP 5 USERS*\n")
	for i, u := range stats.TopUsers {
		b.WriteString(fmt.Sprintf("%d. @%s - %d queries\n", i+1, plain(orUnknown(u.Username)), u.Queries))
	}
	b.WriteString("\n🚗 *MOST QUERIED VEHICLES*\n")
	for i, r := range stats.TopRCNumbers {
		b.WriteString(fmt.Sprintf("%d. %s - %d times\n", i+1, r.RCNumber, r.Count))
	}

	b.WriteString("\n" + divider + "\n")
	b.WriteString(fmt.Sprintf("💬 *RECENT FEEDBACK* (%d shown)\n", len(feedback)))
	for _, fb := range feedback {
		b.WriteString(fmt.Sprintf("\n• [%s] @%s: %s\n", fb.Category, plain(orUnknown(fb.Username)), plain(truncate(fb.Message, 50))))
	}
	return b.String()
}

func feedbackNoticeText(identity models.Identity, fb *models.Feedback) string {
	return fmt.Sprintf("📬 *NEW FEEDBACK* (%s)\n\n"+
		"From: %s (@%s)\n"+
		"ID: `%d`\n\n"+
		"Message:\n%s", fb.Category, plain(identity.FirstName), plain(orNA(identity.Username)), identity.ID, plain(fb.Message))
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return models.NotAvailable
	}
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
