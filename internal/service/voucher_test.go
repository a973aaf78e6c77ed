package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"tictactoe-promo/internal/model"
	"tictactoe-promo/internal/settings"
)

var codePattern = regexp.MustCompile(`^[0-9]{5}$`)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// codeSequence returns the given codes in order, repeating the last one.
func codeSequence(codes ...string) (func() (string, error), *int) {
	calls := 0
	return func() (string, error) {
		i := calls
		if i >= len(codes) {
			i = len(codes) - 1
		}
		calls++
		return codes[i], nil
	}, &calls
}

func TestGenerateCodeFormatProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !codePattern.MatchString(code) {
			t.Fatalf("code %q is not five digits", code)
		}
	})
}

func TestVoucherService_IssueForSessionIsIdempotent(t *testing.T) {
	store := newMemVouchers()
	svc := NewVoucherService(store)
	ctx := context.Background()
	policy := settings.VoucherPolicy{TTL: 72 * time.Hour}

	session := &model.Session{ID: uuid.NewString(), Status: model.StatusWin}

	first, err := svc.IssueForSession(ctx, session, policy)
	require.NoError(t, err)
	assert.Regexp(t, codePattern, first.Code)
	require.NotNil(t, first.SessionID)
	assert.Equal(t, session.ID, *first.SessionID)

	// A fresh read of the session without the joined voucher still converges.
	second, err := svc.IssueForSession(ctx, &model.Session{ID: session.ID}, policy)
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.count())
}

func TestVoucherService_ReturnsAttachedVoucherWithoutStoreAccess(t *testing.T) {
	store := newMemVouchers()
	store.createErr = errors.New("must not be called")
	svc := NewVoucherService(store)

	attached := &model.Voucher{ID: 7, Code: "00042"}
	got, err := svc.IssueForSession(context.Background(), &model.Session{ID: uuid.NewString(), Voucher: attached}, settings.VoucherPolicy{})
	require.NoError(t, err)
	assert.Same(t, attached, got)
	assert.Zero(t, store.creates)
}

func TestVoucherService_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemVouchers()
	svc := NewVoucherService(store)
	svc.now = fixedClock(now)

	v, err := svc.IssueStandalone(context.Background(), settings.VoucherPolicy{TTL: 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), v.ExpiresAt)
	assert.Nil(t, v.SessionID)
	assert.Equal(t, model.VoucherIssued, v.Status)
}

func TestVoucherService_DailyQuota(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemVouchers()
	store.now = fixedClock(now)
	store.seed("99999", now.Add(-13*time.Hour)) // yesterday, not counted

	svc := NewVoucherService(store)
	svc.now = fixedClock(now)
	ctx := context.Background()
	policy := settings.VoucherPolicy{TTL: time.Hour, DailyLimit: 2}

	for i := 0; i < 2; i++ {
		_, err := svc.IssueStandalone(ctx, policy)
		require.NoError(t, err)
	}

	_, err := svc.IssueStandalone(ctx, policy)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	_, err = svc.IssueForSession(ctx, &model.Session{ID: uuid.NewString()}, policy)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	assert.Equal(t, 3, store.count(), "no voucher may be stored once the quota is reached")
}

func TestVoucherService_QuotaDoesNotBlockExistingSessionVoucher(t *testing.T) {
	store := newMemVouchers()
	svc := NewVoucherService(store)
	ctx := context.Background()

	session := &model.Session{ID: uuid.NewString()}
	first, err := svc.IssueForSession(ctx, session, settings.VoucherPolicy{TTL: time.Hour, DailyLimit: 1})
	require.NoError(t, err)

	again, err := svc.IssueForSession(ctx, &model.Session{ID: session.ID}, settings.VoucherPolicy{TTL: time.Hour, DailyLimit: 1})
	require.NoError(t, err)
	assert.Equal(t, first.Code, again.Code)
}

func TestVoucherService_UnlimitedQuota(t *testing.T) {
	store := newMemVouchers()
	svc := NewVoucherService(store)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := svc.IssueStandalone(ctx, settings.VoucherPolicy{TTL: time.Hour})
		require.NoError(t, err)
	}
	assert.Equal(t, 25, store.count())
}

func TestVoucherService_RetriesOnCollision(t *testing.T) {
	store := newMemVouchers()
	store.seed("11111", time.Now())

	svc := NewVoucherService(store)
	codes, calls := codeSequence("11111", "11111", "22222")
	svc.codes = codes

	v, err := svc.IssueStandalone(context.Background(), settings.VoucherPolicy{TTL: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, "22222", v.Code)
	assert.Equal(t, 3, *calls)
}

func TestVoucherService_CodeGenerationExhausted(t *testing.T) {
	store := newMemVouchers()
	store.seed("11111", time.Now())

	svc := NewVoucherService(store)
	codes, calls := codeSequence("11111")
	svc.codes = codes

	_, err := svc.IssueStandalone(context.Background(), settings.VoucherPolicy{TTL: time.Hour})
	assert.ErrorIs(t, err, ErrCodeGenerationExhausted)
	assert.Equal(t, MaxCodeAttempts, *calls)
	assert.Equal(t, 1, store.count())
}

func TestVoucherService_StoreErrorIsReturned(t *testing.T) {
	store := newMemVouchers()
	store.createErr = errors.New("disk full")
	svc := NewVoucherService(store)

	_, err := svc.IssueStandalone(context.Background(), settings.VoucherPolicy{TTL: time.Hour})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCodeGenerationExhausted)
	assert.Equal(t, 1, store.creates)
}

func TestVoucherService_ConcurrentIssuersConverge(t *testing.T) {
	store := newMemVouchers()
	svc := NewVoucherService(store)
	ctx := context.Background()
	sessionID := uuid.NewString()

	const workers = 16
	codes := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := svc.IssueForSession(ctx, &model.Session{ID: sessionID}, settings.VoucherPolicy{TTL: time.Hour})
			if assert.NoError(t, err) {
				codes[i] = v.Code
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.count())
	for _, c := range codes {
		assert.Equal(t, codes[0], c)
	}
}

// TestVoucherCodesUniqueProperty issues many vouchers over a tiny code space
// and checks that stored codes never repeat.
func TestVoucherCodesUniqueProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newMemVouchers()
		svc := NewVoucherService(store)
		space := rapid.IntRange(1, 20).Draw(t, "space")
		svc.codes = func() (string, error) {
			n := rapid.IntRange(0, space-1).Draw(t, "code")
			return fmtCode(n), nil
		}

		issues := rapid.IntRange(1, 20).Draw(t, "issues")
		seen := make(map[string]bool)
		for i := 0; i < issues; i++ {
			v, err := svc.IssueStandalone(context.Background(), settings.VoucherPolicy{TTL: time.Hour})
			if errors.Is(err, ErrCodeGenerationExhausted) {
				continue
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seen[v.Code] {
				t.Fatalf("code %s issued twice", v.Code)
			}
			seen[v.Code] = true
		}
		if len(seen) > space {
			t.Fatalf("issued %d codes from a space of %d", len(seen), space)
		}
	})
}

func fmtCode(n int) string {
	const digits = "0123456789"
	out := []byte("00000")
	for i := len(out) - 1; i >= 0 && n > 0; i-- {
		out[i] = digits[n%10]
		n /= 10
	}
	return string(out)
}

func TestStartOfDay(t *testing.T) {
	in := time.Date(2026, 3, 1, 23, 59, 0, 0, time.FixedZone("UTC+3", 3*3600))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), startOfDay(in))
}
