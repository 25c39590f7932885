package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/application"
	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

func TestRegisterLoginRefreshLogout(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	registerRes, err := f.service.Register(ctx, application.RegisterRequest{
		Email:     "user@example.edu",
		Password:  "SecurePass123!",
		Role:      "FACULTY",
		ProfileID: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if registerRes.AccountID == uuid.Nil {
		t.Fatalf("register returned empty account id")
	}
	if registerRes.Role != domain.RoleFaculty {
		t.Fatalf("expected FACULTY role, got %s", registerRes.Role)
	}

	loginRes, err := f.service.Login(ctx, application.LoginRequest{
		Email:    "user@example.edu",
		Password: "SecurePass123!",
		ClientMeta: application.ClientMeta{
			DeviceName: "test",
			IPAddress:  "127.0.0.1",
			UserAgent:  "unit-test",
		},
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loginRes.AccessToken == "" || loginRes.RefreshToken == "" {
		t.Fatalf("login tokens should not be empty")
	}

	claims, err := f.service.ValidateAccessToken(loginRes.AccessToken)
	if err != nil {
		t.Fatalf("validate access token failed: %v", err)
	}
	if claims.AccountID != registerRes.AccountID {
		t.Fatalf("access claims carry wrong account id")
	}
	if claims.SessionID != loginRes.SessionID {
		t.Fatalf("access claims carry wrong session id")
	}

	rotated, err := f.service.Rotate(ctx, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if rotated.RefreshToken == loginRes.RefreshToken {
		t.Fatalf("rotation should mint a new refresh token")
	}
	if rotated.SessionID != loginRes.SessionID {
		t.Fatalf("rotation must keep the session id stable")
	}

	if err := f.service.Revoke(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := f.service.Rotate(ctx, rotated.RefreshToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("expected revoked session after logout, got %v", err)
	}
}

func TestRotateReplayLosesPermanently(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	login := f.mustLogin(t, "replay@example.edu", "SecurePass123!")

	tokenA := login.RefreshToken
	pairB, err := f.service.Rotate(ctx, tokenA)
	if err != nil {
		t.Fatalf("first rotate failed: %v", err)
	}

	if _, err := f.service.Rotate(ctx, tokenA); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("expected replayed token to observe revoked session, got %v", err)
	}

	// The winner's token keeps working.
	if _, err := f.service.Rotate(ctx, pairB.RefreshToken); err != nil {
		t.Fatalf("winner token should still rotate: %v", err)
	}
}

func TestConcurrentRotateSingleWinner(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	login := f.mustLogin(t, "race@example.edu", "SecurePass123!")

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Rotate(ctx, login.RefreshToken)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !errors.Is(err, domain.ErrSessionRevoked) {
			t.Fatalf("loser observed unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one rotation winner, got %d", winners)
	}
}

func TestOtpLoginHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	f.mustRegister(t, "alice@example.edu", "SecurePass123!")

	if err := f.service.RequestOtp(ctx, "alice@example.edu"); err != nil {
		t.Fatalf("request otp failed: %v", err)
	}
	code := f.outbox.lastCode(t, "identity.otp.issued")

	loginRes, err := f.service.LoginWithOtp(ctx, application.OtpLoginRequest{
		Email: "alice@example.edu",
		Code:  code,
	})
	if err != nil {
		t.Fatalf("otp login failed: %v", err)
	}
	if loginRes.AccessToken == "" {
		t.Fatalf("otp login should issue an access token")
	}

	// The code is consumed: replaying it finds nothing outstanding.
	if _, err := f.service.LoginWithOtp(ctx, application.OtpLoginRequest{
		Email: "alice@example.edu",
		Code:  code,
	}); !errors.Is(err, domain.ErrNoOTPIssued) {
		t.Fatalf("expected no-otp-issued on replay, got %v", err)
	}
}

func TestOtpExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	f.mustRegister(t, "late@example.edu", "SecurePass123!")

	if err := f.service.RequestOtp(ctx, "late@example.edu"); err != nil {
		t.Fatalf("request otp failed: %v", err)
	}
	code := f.outbox.lastCode(t, "identity.otp.issued")

	f.clock.Advance(11 * time.Minute)

	if _, err := f.service.LoginWithOtp(ctx, application.OtpLoginRequest{
		Email: "late@example.edu",
		Code:  code,
	}); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected expired code, got %v", err)
	}

	// Expiry clears the stored code, so a retry with the right value now
	// reports nothing outstanding rather than a mismatch.
	if _, err := f.service.LoginWithOtp(ctx, application.OtpLoginRequest{
		Email: "late@example.edu",
		Code:  code,
	}); !errors.Is(err, domain.ErrNoOTPIssued) {
		t.Fatalf("expected no-otp-issued after expiry cleared the code, got %v", err)
	}
}

func TestOtpMismatchKeepsCodeOutstanding(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	f.mustRegister(t, "fumble@example.edu", "SecurePass123!")

	if err := f.service.RequestOtp(ctx, "fumble@example.edu"); err != nil {
		t.Fatalf("request otp failed: %v", err)
	}
	code := f.outbox.lastCode(t, "identity.otp.issued")

	if _, err := f.service.LoginWithOtp(ctx, application.OtpLoginRequest{
		Email: "fumble@example.edu",
		Code:  "000000",
	}); !errors.Is(err, domain.ErrOTPMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}

	// A wrong guess must not burn the real code.
	if _, err := f.service.LoginWithOtp(ctx, application.OtpLoginRequest{
		Email: "fumble@example.edu",
		Code:  code,
	}); err != nil {
		t.Fatalf("correct code should still work after a mismatch: %v", err)
	}
}

func TestRequestOtpDoesNotLeakAccountExistence(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if err := f.service.RequestOtp(ctx, "ghost@example.edu"); err != nil {
		t.Fatalf("expected silent success for unknown email, got %v", err)
	}
	if got := len(f.outbox.byType("identity.otp.issued")); got != 0 {
		t.Fatalf("no otp event should be enqueued for unknown email, got %d", got)
	}
}

func TestOtpDeliveryFailureKeepsCodeConsumable(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	f.mustRegister(t, "flaky@example.edu", "SecurePass123!")

	f.outbox.fail = true
	if err := f.service.RequestOtp(ctx, "flaky@example.edu"); !errors.Is(err, domain.ErrDeliveryFailure) {
		t.Fatalf("expected delivery failure, got %v", err)
	}
	f.outbox.fail = false

	// The stored code outlives the broken channel.
	code := f.outbox.lastCode(t, "identity.otp.issued")
	if _, err := f.service.LoginWithOtp(ctx, application.OtpLoginRequest{
		Email: "flaky@example.edu",
		Code:  code,
	}); err != nil {
		t.Fatalf("code issued before the delivery fault must stay consumable: %v", err)
	}
}

func TestStorageOutageIsNotCredentialFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	login := f.mustLogin(t, "outage@example.edu", "SecurePass123!")

	outage := errors.New("pq: connection refused")
	f.accounts.setFailure(outage)

	if _, err := f.service.Login(ctx, application.LoginRequest{
		Email:    "outage@example.edu",
		Password: "SecurePass123!",
	}); !errors.Is(err, outage) || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("login during storage outage must surface a server error, got %v", err)
	}

	if err := f.service.RequestOtp(ctx, "outage@example.edu"); !errors.Is(err, outage) {
		t.Fatalf("otp request during storage outage must not report success, got %v", err)
	}

	if err := f.service.RequestPasswordReset(ctx, "outage@example.edu"); !errors.Is(err, outage) {
		t.Fatalf("reset request during storage outage must not report success, got %v", err)
	}

	if _, err := f.service.Rotate(ctx, login.RefreshToken); !errors.Is(err, outage) || errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("rotate during storage outage must not report the session revoked, got %v", err)
	}

	// Storage recovery restores normal service; nothing was burned.
	f.accounts.setFailure(nil)
	if _, err := f.service.Rotate(ctx, login.RefreshToken); err != nil {
		t.Fatalf("rotate after recovery failed: %v", err)
	}
}

func TestPasswordResetRevokesAllSessions(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	login := f.mustLogin(t, "reset@example.edu", "SecurePass123!")
	second := f.mustLoginExisting(t, "reset@example.edu", "SecurePass123!")

	if err := f.service.RequestPasswordReset(ctx, "reset@example.edu"); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	token := f.outbox.lastToken(t, "identity.password_reset.requested")

	if err := f.service.ResetPassword(ctx, application.PasswordResetRequest{
		Token:       token,
		NewPassword: "EvenStronger456!",
	}); err != nil {
		t.Fatalf("reset password failed: %v", err)
	}

	// Every outstanding refresh token is dead.
	if _, err := f.service.Rotate(ctx, login.RefreshToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("expected first session revoked after reset, got %v", err)
	}
	if _, err := f.service.Rotate(ctx, second.RefreshToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("expected second session revoked after reset, got %v", err)
	}

	// Old password is gone, new one works.
	if _, err := f.service.Login(ctx, application.LoginRequest{
		Email: "reset@example.edu", Password: "SecurePass123!",
	}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password should be rejected, got %v", err)
	}
	if _, err := f.service.Login(ctx, application.LoginRequest{
		Email: "reset@example.edu", Password: "EvenStronger456!",
	}); err != nil {
		t.Fatalf("new password should work: %v", err)
	}

	// The token was single use.
	if err := f.service.ResetPassword(ctx, application.PasswordResetRequest{
		Token:       token,
		NewPassword: "Another789!pass",
	}); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected consumed token to be invalid, got %v", err)
	}
}

func TestRepeatedWrongPasswordNeverLocksOut(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	f.mustRegister(t, "bob@example.edu", "SecurePass123!")

	for i := 0; i < 3; i++ {
		if _, err := f.service.Login(ctx, application.LoginRequest{
			Email: "bob@example.edu", Password: "wrongpass" + fmt.Sprint(i),
		}); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}

	if _, err := f.service.Login(ctx, application.LoginRequest{
		Email: "bob@example.edu", Password: "SecurePass123!",
	}); err != nil {
		t.Fatalf("correct password must succeed immediately after failures: %v", err)
	}

	failures := 0
	for _, a := range f.attempts.items {
		if a.Status == "FAILED" {
			failures++
		}
	}
	if failures != 3 {
		t.Fatalf("expected 3 audited failures, got %d", failures)
	}
}

func TestLoginSoftDeletedAccount(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	reg := f.mustRegister(t, "gone@example.edu", "SecurePass123!")
	login := f.mustLoginExisting(t, "gone@example.edu", "SecurePass123!")

	if err := f.service.DeactivateAccount(ctx, reg.AccountID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	if _, err := f.service.Login(ctx, application.LoginRequest{
		Email: "gone@example.edu", Password: "SecurePass123!",
	}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("soft-deleted login must look like bad credentials, got %v", err)
	}
	if _, err := f.service.Rotate(ctx, login.RefreshToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("expected sessions revoked on deactivation, got %v", err)
	}

	if err := f.service.DeactivateAccount(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown account id should surface not found, got %v", err)
	}
}

func TestSessionCapEvictsOldest(t *testing.T) {
	t.Parallel()

	f := newFixtureWithConfig(func(cfg *application.Config) {
		cfg.SessionLimit = 2
	})
	ctx := context.Background()

	first := f.mustLogin(t, "cap@example.edu", "SecurePass123!")
	f.clock.Advance(time.Second)
	second := f.mustLoginExisting(t, "cap@example.edu", "SecurePass123!")
	f.clock.Advance(time.Second)
	third := f.mustLoginExisting(t, "cap@example.edu", "SecurePass123!")

	if _, err := f.service.Rotate(ctx, first.RefreshToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("oldest session should be evicted at the cap, got %v", err)
	}
	if _, err := f.service.Rotate(ctx, second.RefreshToken); err != nil {
		t.Fatalf("second session should survive: %v", err)
	}
	if _, err := f.service.Rotate(ctx, third.RefreshToken); err != nil {
		t.Fatalf("third session should survive: %v", err)
	}
}

func TestEmailVerificationFlow(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	reg := f.mustRegister(t, "fresh@example.edu", "SecurePass123!")

	// Registration issues the first verification token.
	token := f.outbox.lastToken(t, "identity.email_verification.requested")

	if err := f.service.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("verify email failed: %v", err)
	}
	account, err := f.accounts.GetByID(ctx, reg.AccountID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if !account.EmailVerified {
		t.Fatalf("expected account marked verified")
	}

	// Single use.
	if err := f.service.VerifyEmail(ctx, token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected consumed verification token to be invalid, got %v", err)
	}

	// Already-verified accounts do not get another token.
	events := len(f.outbox.byType("identity.email_verification.requested"))
	if err := f.service.RequestEmailVerification(ctx, reg.AccountID); err != nil {
		t.Fatalf("re-request verification failed: %v", err)
	}
	if got := len(f.outbox.byType("identity.email_verification.requested")); got != events {
		t.Fatalf("expected no new verification event for verified account")
	}
}

func TestChangePasswordKeepsSessions(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	login := f.mustLogin(t, "turnover@example.edu", "SecurePass123!")
	claims, err := f.service.ValidateAccessToken(login.AccessToken)
	if err != nil {
		t.Fatalf("validate access token failed: %v", err)
	}

	if err := f.service.ChangePassword(ctx, claims.AccountID, application.PasswordChangeRequest{
		CurrentPassword: "wrong-current",
		NewPassword:     "EvenStronger456!",
	}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong current password must be rejected, got %v", err)
	}

	if err := f.service.ChangePassword(ctx, claims.AccountID, application.PasswordChangeRequest{
		CurrentPassword: "SecurePass123!",
		NewPassword:     "EvenStronger456!",
	}); err != nil {
		t.Fatalf("change password failed: %v", err)
	}

	// Unlike reset, a routine change leaves the session set alone.
	if _, err := f.service.Rotate(ctx, login.RefreshToken); err != nil {
		t.Fatalf("session should survive a password change: %v", err)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	f.mustRegister(t, "dupe@example.edu", "SecurePass123!")
	if _, err := f.service.Register(ctx, application.RegisterRequest{
		Email:     "Dupe@Example.edu",
		Password:  "SecurePass123!",
		ProfileID: uuid.NewString(),
	}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}
}

func TestListSessionsMarksCurrent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	login := f.mustLogin(t, "devices@example.edu", "SecurePass123!")
	f.mustLoginExisting(t, "devices@example.edu", "SecurePass123!")

	claims, err := f.service.ValidateAccessToken(login.AccessToken)
	if err != nil {
		t.Fatalf("validate access token failed: %v", err)
	}

	items, err := f.service.ListSessions(ctx, claims.AccountID, claims.SessionID)
	if err != nil {
		t.Fatalf("list sessions failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(items))
	}
	current := 0
	for _, it := range items {
		if it.IsCurrent {
			current++
			if it.SessionID != login.SessionID {
				t.Fatalf("wrong session flagged as current")
			}
		}
	}
	if current != 1 {
		t.Fatalf("exactly one session should be current, got %d", current)
	}

	// The current flag follows the stable session id across rotations.
	rotated, err := f.service.Rotate(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	items, err = f.service.ListSessions(ctx, claims.AccountID, rotated.SessionID)
	if err != nil {
		t.Fatalf("list sessions after rotate failed: %v", err)
	}
	for _, it := range items {
		if it.SessionID == login.SessionID && !it.IsCurrent {
			t.Fatalf("rotated session should still be flagged current")
		}
	}
}

func newFixture() *fixture {
	return newFixtureWithConfig(nil)
}

func newFixtureWithConfig(mutate func(*application.Config)) *fixture {
	cfg := application.Config{
		DefaultRole:          domain.RoleStudent,
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      30 * 24 * time.Hour,
		OtpTTL:               10 * time.Minute,
		ResetTokenTTL:        time.Hour,
		VerificationTokenTTL: 24 * time.Hour,
		SessionLimit:         5,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	clock := &fakeClock{t: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	accounts := &fakeAccounts{
		byEmail: map[string]uuid.UUID{},
		byID:    map[uuid.UUID]domain.Account{},
	}
	sessions := &fakeSessions{byTokenID: map[uuid.UUID]domain.SessionRecord{}}
	attempts := &fakeLoginAttempts{}
	outbox := &fakeOutbox{}
	signer := &fakeSigner{
		now:     clock.Now,
		access:  map[string]ports.AccessClaims{},
		refresh: map[string]ports.RefreshClaims{},
	}

	svc := application.NewService(application.Dependencies{
		Config:        cfg,
		Accounts:      accounts,
		Sessions:      sessions,
		LoginAttempts: attempts,
		Outbox:        outbox,
		Hasher:        &fakeHasher{},
		TokenSigner:   signer,
		Now:           clock.Now,
	})

	return &fixture{
		service:  svc,
		accounts: accounts,
		sessions: sessions,
		attempts: attempts,
		outbox:   outbox,
		clock:    clock,
	}
}

type fixture struct {
	service  *application.Service
	accounts *fakeAccounts
	sessions *fakeSessions
	attempts *fakeLoginAttempts
	outbox   *fakeOutbox
	clock    *fakeClock
}

func (f *fixture) mustRegister(t *testing.T, email, password string) application.RegisterResponse {
	t.Helper()
	res, err := f.service.Register(context.Background(), application.RegisterRequest{
		Email:     email,
		Password:  password,
		ProfileID: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("register %s failed: %v", email, err)
	}
	return res
}

func (f *fixture) mustLogin(t *testing.T, email, password string) application.LoginResponse {
	t.Helper()
	f.mustRegister(t, email, password)
	return f.mustLoginExisting(t, email, password)
}

func (f *fixture) mustLoginExisting(t *testing.T, email, password string) application.LoginResponse {
	t.Helper()
	res, err := f.service.Login(context.Background(), application.LoginRequest{
		Email:    email,
		Password: password,
		ClientMeta: application.ClientMeta{
			DeviceName: "test",
			IPAddress:  "127.0.0.1",
			UserAgent:  "unit-test",
		},
	})
	if err != nil {
		t.Fatalf("login %s failed: %v", email, err)
	}
	return res
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeAccounts struct {
	mu       sync.Mutex
	byEmail  map[string]uuid.UUID
	byID     map[uuid.UUID]domain.Account
	failWith error
}

func (f *fakeAccounts) CreateWithOutboxTx(_ context.Context, params ports.CreateAccountTxParams, _ ports.OutboxEvent) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[params.Email]; ok {
		return domain.Account{}, domain.ErrConflict
	}
	a := domain.Account{
		AccountID:    uuid.New(),
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		ProfileID:    params.ProfileID,
		CreatedAt:    params.RegisteredAt,
		UpdatedAt:    params.RegisteredAt,
	}
	f.byEmail[a.Email] = a.AccountID
	f.byID[a.AccountID] = a
	return a, nil
}

func (f *fakeAccounts) setFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return domain.Account{}, f.failWith
	}
	id, ok := f.byEmail[email]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return f.byID[id], nil
}

func (f *fakeAccounts) GetByID(_ context.Context, accountID uuid.UUID) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return domain.Account{}, f.failWith
	}
	a, ok := f.byID[accountID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, accountID uuid.UUID, passwordHash string, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = updatedAt
	f.byID[accountID] = a
	return nil
}

func (f *fakeAccounts) SetEmailVerified(_ context.Context, accountID uuid.UUID, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	a.EmailVerified = true
	a.UpdatedAt = updatedAt
	f.byID[accountID] = a
	return nil
}

func (f *fakeAccounts) SoftDelete(_ context.Context, accountID uuid.UUID, deletedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsDeleted = true
	a.UpdatedAt = deletedAt
	f.byID[accountID] = a
	return nil
}

func (f *fakeAccounts) StoreOTP(_ context.Context, accountID uuid.UUID, codeHash string, expiresAt, _ time.Time) error {
	return f.storeArtifact(accountID, artifactOTP, codeHash, expiresAt)
}

func (f *fakeAccounts) ConsumeOTP(_ context.Context, accountID uuid.UUID, codeHash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	if a.OTP == nil || !a.OTP.Present() {
		return domain.ErrNoOTPIssued
	}
	if a.OTP.Expired(now) {
		a.OTP = nil
		f.byID[accountID] = a
		return domain.ErrTokenExpired
	}
	if a.OTP.Hash != codeHash {
		return domain.ErrOTPMismatch
	}
	a.OTP = nil
	f.byID[accountID] = a
	return nil
}

func (f *fakeAccounts) StoreResetToken(_ context.Context, accountID uuid.UUID, tokenHash string, expiresAt, _ time.Time) error {
	return f.storeArtifact(accountID, artifactReset, tokenHash, expiresAt)
}

func (f *fakeAccounts) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time) (uuid.UUID, error) {
	return f.consumeLookup(artifactReset, tokenHash, now)
}

func (f *fakeAccounts) StoreVerificationToken(_ context.Context, accountID uuid.UUID, tokenHash string, expiresAt, _ time.Time) error {
	return f.storeArtifact(accountID, artifactVerification, tokenHash, expiresAt)
}

func (f *fakeAccounts) ConsumeVerificationToken(_ context.Context, tokenHash string, now time.Time) (uuid.UUID, error) {
	return f.consumeLookup(artifactVerification, tokenHash, now)
}

type artifactKind int

const (
	artifactOTP artifactKind = iota
	artifactReset
	artifactVerification
)

func (f *fakeAccounts) storeArtifact(accountID uuid.UUID, kind artifactKind, hash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[accountID]
	if !ok || a.IsDeleted {
		return domain.ErrNotFound
	}
	artifact := &domain.OneTimeArtifact{Hash: hash, ExpiresAt: expiresAt}
	switch kind {
	case artifactOTP:
		a.OTP = artifact
	case artifactReset:
		a.ResetToken = artifact
	case artifactVerification:
		a.VerificationToken = artifact
	}
	f.byID[accountID] = a
	return nil
}

func (f *fakeAccounts) consumeLookup(kind artifactKind, hash string, now time.Time) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, a := range f.byID {
		var artifact *domain.OneTimeArtifact
		switch kind {
		case artifactReset:
			artifact = a.ResetToken
		case artifactVerification:
			artifact = a.VerificationToken
		}
		if artifact == nil || artifact.Hash != hash {
			continue
		}
		if artifact.Expired(now) {
			f.clearArtifact(id, kind)
			return uuid.Nil, domain.ErrTokenExpired
		}
		f.clearArtifact(id, kind)
		return id, nil
	}
	return uuid.Nil, domain.ErrNotFound
}

func (f *fakeAccounts) clearArtifact(accountID uuid.UUID, kind artifactKind) {
	a := f.byID[accountID]
	switch kind {
	case artifactOTP:
		a.OTP = nil
	case artifactReset:
		a.ResetToken = nil
	case artifactVerification:
		a.VerificationToken = nil
	}
	f.byID[accountID] = a
}

type fakeSessions struct {
	mu        sync.Mutex
	byTokenID map[uuid.UUID]domain.SessionRecord
}

func (f *fakeSessions) Create(_ context.Context, params ports.SessionCreateParams) (domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := domain.SessionRecord{
		SessionID:      uuid.New(),
		TokenID:        params.TokenID,
		AccountID:      params.AccountID,
		DeviceName:     params.DeviceName,
		IPAddress:      params.IPAddress,
		UserAgent:      params.UserAgent,
		CreatedAt:      params.LastActivityAt,
		LastActivityAt: params.LastActivityAt,
		ExpiresAt:      params.ExpiresAt,
	}
	f.byTokenID[s.TokenID] = s
	return s, nil
}

func (f *fakeSessions) GetByTokenID(_ context.Context, tokenID uuid.UUID) (domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byTokenID[tokenID]
	if !ok {
		return domain.SessionRecord{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) ListByAccount(_ context.Context, accountID uuid.UUID, _, _ int) ([]domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SessionRecord
	for _, s := range f.byTokenID {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessions) ListActiveByAccount(_ context.Context, accountID uuid.UUID, now time.Time) ([]domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SessionRecord
	for _, s := range f.byTokenID {
		if s.AccountID == accountID && s.Active(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessions) Rotate(_ context.Context, oldTokenID, newTokenID uuid.UUID, now time.Time) (domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byTokenID[oldTokenID]
	if !ok {
		return domain.SessionRecord{}, domain.ErrNotFound
	}
	if s.RevokedAt != nil {
		return domain.SessionRecord{}, domain.ErrSessionRevoked
	}
	if !s.ExpiresAt.After(now) {
		return domain.SessionRecord{}, domain.ErrSessionExpired
	}
	delete(f.byTokenID, oldTokenID)
	s.TokenID = newTokenID
	s.LastActivityAt = now
	f.byTokenID[newTokenID] = s
	return s, nil
}

func (f *fakeSessions) RevokeByTokenID(_ context.Context, tokenID uuid.UUID, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byTokenID[tokenID]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	s.RevokedAt = &revokedAt
	f.byTokenID[tokenID] = s
	return nil
}

func (f *fakeSessions) RevokeAllByAccount(_ context.Context, accountID uuid.UUID, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, s := range f.byTokenID {
		if s.AccountID == accountID && s.RevokedAt == nil {
			s.RevokedAt = &revokedAt
			f.byTokenID[k] = s
		}
	}
	return nil
}

type fakeLoginAttempts struct {
	mu    sync.Mutex
	items []domain.LoginAttempt
}

func (f *fakeLoginAttempts) Insert(_ context.Context, attempt domain.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, attempt)
	return nil
}

func (f *fakeLoginAttempts) ListByAccount(context.Context, uuid.UUID, int, int) ([]domain.LoginAttempt, error) {
	return nil, nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []ports.OutboxEvent
	fail   bool
}

func (f *fakeOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Record before failing so tests can read the artifact a caller was
	// promised despite the broken channel.
	f.events = append(f.events, event)
	if f.fail {
		return errors.New("outbox unavailable")
	}
	return nil
}

func (f *fakeOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }
func (f *fakeOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (f *fakeOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

func (f *fakeOutbox) byType(eventType string) []ports.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ports.OutboxEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeOutbox) lastCode(t *testing.T, eventType string) string {
	t.Helper()
	return f.lastPayloadField(t, eventType, "code")
}

func (f *fakeOutbox) lastToken(t *testing.T, eventType string) string {
	t.Helper()
	return f.lastPayloadField(t, eventType, "token")
}

func (f *fakeOutbox) lastPayloadField(t *testing.T, eventType, field string) string {
	t.Helper()
	events := f.byType(eventType)
	if len(events) == 0 {
		t.Fatalf("no %s event enqueued", eventType)
	}
	var payload map[string]any
	if err := json.Unmarshal(events[len(events)-1].Payload, &payload); err != nil {
		t.Fatalf("decode %s payload: %v", eventType, err)
	}
	value, _ := payload[field].(string)
	if value == "" {
		t.Fatalf("%s payload missing %q", eventType, field)
	}
	return value
}

type fakeHasher struct{}

func (fakeHasher) Hash(plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (fakeHasher) Compare(hash, plaintext string) error {
	if hash != "hashed:"+plaintext {
		return errors.New("hash mismatch")
	}
	return nil
}

type fakeSigner struct {
	mu      sync.Mutex
	now     func() time.Time
	seq     int
	access  map[string]ports.AccessClaims
	refresh map[string]ports.RefreshClaims
}

func (f *fakeSigner) SignAccess(claims ports.AccessClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	token := fmt.Sprintf("access-%d", f.seq)
	f.access[token] = claims
	return token, nil
}

func (f *fakeSigner) SignRefresh(claims ports.RefreshClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	token := fmt.Sprintf("refresh-%d", f.seq)
	f.refresh[token] = claims
	return token, nil
}

func (f *fakeSigner) ValidateAccess(token string) (ports.AccessClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.access[token]
	if !ok {
		return ports.AccessClaims{}, domain.ErrTokenInvalid
	}
	if !claims.ExpiresAt.After(f.now()) {
		return ports.AccessClaims{}, domain.ErrTokenExpired
	}
	return claims, nil
}

func (f *fakeSigner) ValidateRefresh(token string) (ports.RefreshClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.refresh[token]
	if !ok {
		return ports.RefreshClaims{}, domain.ErrTokenInvalid
	}
	if !claims.ExpiresAt.After(f.now()) {
		return ports.RefreshClaims{}, domain.ErrTokenExpired
	}
	return claims, nil
}

func (f *fakeSigner) PublicJWKs() []map[string]any {
	return []map[string]any{{"kty": "RSA", "kid": "test-key"}}
}
