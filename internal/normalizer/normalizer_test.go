package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

func TestCleanPhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"+91 98765 43210", "+919876543210"},
		{"(044) 2345-6789", "0442345-6789"},
		{"call us!", ""},
		{"N/A", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanPhone(tc.in), "input %q", tc.in)
	}
}

func TestCleanPhoneIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"+91 98765 43210", "abc123", "++--", "", "987 654 3210 ext 4"}
	for _, in := range inputs {
		once := CleanPhone(in)
		assert.Equal(t, once, CleanPhone(once), "input %q", in)
	}
}

func TestCleanEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sales@abcmotors.in", CleanEmail(" sales@abcmotors.in "))
	assert.Empty(t, CleanEmail("sales-at-abcmotors.in"))
	assert.Empty(t, CleanEmail("sales@localhost"))
	assert.Empty(t, CleanEmail("NA"))
	// The domain is whatever follows the last '@'.
	assert.Equal(t, "odd@name@example.com", CleanEmail("odd@name@example.com"))
}

func TestCleanNameKeepsFirstLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ABC Motors", CleanName("ABC Motors\nAuthorized Dealer"))
	assert.Equal(t, "ABC Motors", CleanName("  ABC Motors  "))
	assert.Empty(t, CleanName("n/a"))
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	city, state, pincode := ParseAddress("12 MG Road, Bangalore, Karnataka 560001")
	assert.Equal(t, "Bangalore", city)
	assert.Equal(t, "Karnataka", state)
	assert.Equal(t, "560001", pincode)
}

func TestParseAddressNoMatchesLeavesEmpty(t *testing.T) {
	t.Parallel()

	city, state, pincode := ParseAddress("Plot 7, Industrial Estate, Smalltown 42")
	assert.Empty(t, city)
	assert.Empty(t, state)
	assert.Empty(t, pincode)

	// 7-digit runs are not pincodes.
	_, _, pincode = ParseAddress("warehouse 1234567 road")
	assert.Empty(t, pincode)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid, reasons := Validate(dealer.Record{DealerName: "", Address: "somewhere"})
	assert.False(t, valid)
	assert.NotEmpty(t, reasons)

	valid, _ = Validate(dealer.Record{DealerName: "ABC Motors", Address: "12 MG Road"})
	assert.True(t, valid)

	valid, reasons = Validate(dealer.Record{DealerName: "ABC Motors"})
	assert.False(t, valid)
	require.Len(t, reasons, 1)

	// Location alone satisfies the place requirement.
	valid, _ = Validate(dealer.Record{DealerName: "ABC Motors", Location: "Chennai"})
	assert.True(t, valid)
}

func TestNormalizeBuildsCompleteRecord(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	target := dealer.CrawlTarget{VehicleType: "cars", Brand: "bmw", City: "Bangalore"}
	raw := dealer.RawCandidate{
		Name:    "ABC Motors\nAuthorized BMW Dealer",
		Address: "12 MG Road, Bangalore, Karnataka 560001",
		Phone:   "+91 98765 43210",
		Email:   "sales@abcmotors.in",
	}

	rec, valid, reasons := New().Normalize(raw, target, "https://example.com/dealers/bmw/bangalore", now)
	require.True(t, valid, "reasons: %v", reasons)
	assert.Equal(t, "ABC Motors", rec.DealerName)
	assert.Equal(t, "cars", rec.VehicleType)
	assert.Equal(t, "bmw", rec.Brand)
	assert.Equal(t, "Bangalore", rec.Location)
	assert.Equal(t, "+919876543210", rec.Phone)
	assert.Equal(t, "sales@abcmotors.in", rec.Email)
	assert.Equal(t, "Bangalore", rec.City)
	assert.Equal(t, "Karnataka", rec.State)
	assert.Equal(t, "560001", rec.Pincode)
	assert.Equal(t, now, rec.DiscoveredAt)
}
