package report

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

// MessageLimit is the largest chunk sent as one chat message.
const MessageLimit = 4000

const (
	rule      = "───────────────────────────────────"
	heavyRule = "═══════════════════════════════════"
)

// Markdown-sensitive characters are dropped from values that go inside code spans.
var valueEscaper = strings.NewReplacer("`", "", "*", "", "_", " ")

// Format renders the report as Telegram Markdown, skipping unavailable fields.
func Format(r *models.IntelReport) string {
	var b strings.Builder

	b.WriteString("🚗 *RC INFORMATION REPORT*\n\n")
	b.WriteString(fmt.Sprintf("🎯 *Target:* `%s`", valueEscaper.Replace(r.Meta.Target)))
	if r.Meta.FromCache {
		b.WriteString(" (Cached)")
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("🕐 *Generated:* %s\n", r.Meta.GeneratedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(heavyRule + "\n")

	section(&b, "🚗 *OWNERSHIP DETAILS*", r.Ownership.Fields(), "")
	if (models.Field{Value: r.RTO.RegisteredRTO}).Available() {
		section(&b, "🏢 *RTO INFORMATION*", r.RTO.Fields(), "")
	}
	section(&b, "🧰 *VEHICLE DETAILS*", r.Vehicle.Fields(), "")
	section(&b, "📄 *INSURANCE INFORMATION*", r.Insurance.Fields(), "⚠️ _No insurance information available_")
	if insuranceExpired(r.Insurance.ExpiryIn) {
		b.WriteString("\n⚠️ *WARNING:* Insurance has expired! Renew immediately.\n")
	}
	section(&b, "🗓 *IMPORTANT DATES & VALIDITY*", r.Dates.Fields(), "")
	section(&b, "🛍 *OTHER INFORMATION*", r.Other.Fields(), "_No additional information_")
	if (models.Field{Value: r.NOC.Details}).Available() {
		section(&b, "📁 *NOC DETAILS*", r.NOC.Fields(), "")
	}

	// The card owner repeats the ownership section.
	var card []models.Field
	for _, f := range r.CardInfo.Fields() {
		if f.Label != "Owner Name" {
			card = append(card, f)
		}
	}
	section(&b, "🪪 *BASIC CARD INFO*", card, "_No additional card information_")

	if blacklisted(r.Other.BlacklistStatus) {
		b.WriteString("\n🚨 *SECURITY ALERT*\n")
		b.WriteString(rule + "\n")
		b.WriteString(fmt.Sprintf("⚠️ *Blacklist Status:* `%s`\n", valueEscaper.Replace(r.Other.BlacklistStatus)))
	}

	b.WriteString("\n" + heavyRule + "\n")
	return b.String()
}

func section(b *strings.Builder, title string, fields []models.Field, empty string) {
	b.WriteString("\n" + title + "\n")
	b.WriteString(rule + "\n")

	written := 0
	for _, f := range fields {
		if !f.Available() {
			continue
		}
		b.WriteString(fmt.Sprintf("%s: `%s`\n", f.Label, valueEscaper.Replace(f.Value)))
		written++
	}
	if written == 0 && empty != "" {
		b.WriteString(empty + "\n")
	}
}

func insuranceExpired(expiryIn string) bool {
	v := strings.ToLower(expiryIn)
	return strings.Contains(v, "expired") || strings.Contains(v, "overdue")
}

func blacklisted(status string) bool {
	if !(models.Field{Value: status}).Available() {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(status), "no")
}

// Summary is the one-line batch result for a successful lookup.
func Summary(r *models.IntelReport) string {
	return fmt.Sprintf("%s - %s", r.Ownership.OwnerName, r.Vehicle.ModelName)
}

// Length is the size of s in UTF-16 code units, the unit Telegram counts
// message length in. Emoji outside the BMP count as two.
func Length(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Split breaks text into chunks of at most limit UTF-16 units, preferring
// line boundaries. Lines longer than limit are cut between runes.
func Split(text string, limit int) []string {
	if limit <= 0 || Length(text) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := Length(line)
		if size+n <= limit {
			current.WriteString(line)
			size += n
			continue
		}
		flush()
		for n > limit {
			var head string
			head, line = cut(line, limit)
			chunks = append(chunks, head)
			n = Length(line)
		}
		current.WriteString(line)
		size = n
	}
	flush()
	return chunks
}

// cut returns the longest prefix of s within limit units and the rest. The
// first rune is always taken so the caller makes progress.
func cut(s string, limit int) (string, string) {
	size := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if size+w > limit && i > 0 {
			return s[:i], s[i:]
		}
		size += w
	}
	return s, ""
}
