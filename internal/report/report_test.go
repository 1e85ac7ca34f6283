package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

var generatedAt = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func allFields(r *models.IntelReport) []models.Field {
	var fields []models.Field
	fields = append(fields, r.Ownership.Fields()...)
	fields = append(fields, r.RTO.Fields()...)
	fields = append(fields, r.Vehicle.Fields()...)
	fields = append(fields, r.Insurance.Fields()...)
	fields = append(fields, r.Dates.Fields()...)
	fields = append(fields, r.Other.Fields()...)
	fields = append(fields, r.NOC.Fields()...)
	fields = append(fields, r.CardInfo.Fields()...)
	return fields
}

func TestParse_EmptyObject(t *testing.T) {
	r, err := Parse(map[string]any{}, "MH12DE1433", generatedAt)
	require.NoError(t, err)

	for _, f := range allFields(r) {
		assert.Equal(t, models.NotAvailable, f.Value, f.Label)
	}
	assert.Equal(t, "MH12DE1433", r.Meta.Target)
	assert.Equal(t, generatedAt, r.Meta.GeneratedAt)
	assert.False(t, r.Meta.FromCache)
}

func TestParse_OnlyOwnerName(t *testing.T) {
	r, err := Parse(map[string]any{"Owner Name": "John"}, "MH12DE1433", generatedAt)
	require.NoError(t, err)

	assert.Equal(t, "John", r.Ownership.OwnerName)
	assert.Equal(t, models.NotAvailable, r.Ownership.FatherName)
	assert.Equal(t, models.NotAvailable, r.Ownership.OwnerSerialNo)
	assert.Equal(t, models.NotAvailable, r.Ownership.RegistrationNumber)
	assert.Equal(t, "John", r.CardInfo.OwnerName)
}

func TestParse_ValueKinds(t *testing.T) {
	var raw any
	require.NoError(t, json.Unmarshal([]byte(`{
		"Model Name": "SWIFT",
		"Cubic Capacity": 1197,
		"Seating Capacity": 5.5,
		"Financer Name": null,
		"Blacklist Status": false
	}`), &raw))

	r, err := Parse(raw, "MH12DE1433", generatedAt)
	require.NoError(t, err)
	assert.Equal(t, "SWIFT", r.Vehicle.ModelName)
	assert.Equal(t, "1197", r.Vehicle.CubicCapacity)
	assert.Equal(t, "5.5", r.Vehicle.SeatingCapacity)
	assert.Equal(t, models.NotAvailable, r.Other.FinancerName)
	assert.Equal(t, "false", r.Other.BlacklistStatus)
	assert.Equal(t, "SWIFT", r.Raw["Model Name"])
}

func TestParse_NotAnObject(t *testing.T) {
	for _, raw := range []any{nil, "text", []any{map[string]any{}}, 42.0} {
		_, err := Parse(raw, "MH12DE1433", generatedAt)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	}
}

func TestFormat_SkipsUnavailableFields(t *testing.T) {
	r, err := Parse(map[string]any{
		"Owner Name":          "RAHUL",
		"Model Name":          "SWIFT",
		"Insurance Expiry In": "Expired 20 days ago",
		"Blacklist Status":    "YES",
		"City Name":           "PUNE",
	}, "MH12DE1433", generatedAt)
	require.NoError(t, err)
	r.Meta.FromCache = true

	text := Format(r)
	assert.Contains(t, text, "`MH12DE1433` (Cached)")
	assert.Contains(t, text, "Owner Name: `RAHUL`")
	assert.Contains(t, text, "Model Name: `SWIFT`")
	assert.Contains(t, text, "City Name: `PUNE`")
	assert.Contains(t, text, "Insurance has expired")
	assert.Contains(t, text, "SECURITY ALERT")
	assert.NotContains(t, text, models.NotAvailable)
	assert.NotContains(t, text, "RTO INFORMATION")
	assert.NotContains(t, text, "NOC DETAILS")
	assert.Equal(t, 1, strings.Count(text, "RAHUL"))
}

func TestFormat_EmptyReport(t *testing.T) {
	r, err := Parse(map[string]any{"Blacklist Status": "No"}, "KA01AB1234", generatedAt)
	require.NoError(t, err)

	text := Format(r)
	assert.Contains(t, text, "No insurance information available")
	assert.Contains(t, text, "No additional card information")
	assert.NotContains(t, text, "SECURITY ALERT")
	assert.NotContains(t, text, "(Cached)")
}

func TestFormat_StripsMarkdownFromValues(t *testing.T) {
	r, err := Parse(map[string]any{"Owner Name": "A`B*C"}, "MH12DE1433", generatedAt)
	require.NoError(t, err)
	assert.Contains(t, Format(r), "Owner Name: `ABC`")
}

func TestSummary(t *testing.T) {
	r, err := Parse(map[string]any{"Owner Name": "RAHUL"}, "MH12DE1433", generatedAt)
	require.NoError(t, err)
	assert.Equal(t, "RAHUL - N/A", Summary(r))
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"short"}, Split("short", 10))

	text := "aaaa\nbbbb\ncccc\n"
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, Split(text, 10))

	long := strings.Repeat("é", 25)
	chunks := Split(long, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, long, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, Length(c), 10)
	}
}

func TestLength_CountsUTF16Units(t *testing.T) {
	assert.Equal(t, 5, Length("hello"))
	assert.Equal(t, 1, Length("é"))
	assert.Equal(t, 2, Length("🚗"))
	assert.Equal(t, 2, Length("ℹ️"))
}

func TestSplit_EmojiCountedAsTwoUnits(t *testing.T) {
	long := strings.Repeat("🚗", 25)
	chunks := Split(long, 10)
	require.Len(t, chunks, 5)
	assert.Equal(t, long, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.Equal(t, 10, Length(c))
	}

	line := strings.Repeat("🔍 A\n", 1000)
	for _, c := range Split(line, MessageLimit) {
		assert.LessOrEqual(t, Length(c), MessageLimit)
		assert.True(t, strings.HasSuffix(c, "\n"))
	}
}

func TestSplit_ReportAtMessageLimit(t *testing.T) {
	text := strings.Repeat("Owner Name: `RAHUL`\n", 500)
	chunks := Split(text, MessageLimit)
	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, Length(c), MessageLimit)
		assert.True(t, strings.HasSuffix(c, "\n"))
	}
}
