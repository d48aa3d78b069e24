package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
)

func newTestStore(t *testing.T, autoTenant bool) (*Store, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(Options{Clock: clock, TenantAutoCreate: autoTenant}), clock
}

func rootScope(t *testing.T, s *Store) *Scope {
	t.Helper()
	sc, err := s.Scope("demo", "")
	require.NoError(t, err)
	return sc
}

func TestProject_LazyAndShared(t *testing.T) {
	s, _ := newTestStore(t, false)

	var wg sync.WaitGroup
	got := make([]*Project, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = s.Project("demo")
		}(i)
	}
	wg.Wait()
	for _, p := range got {
		require.Same(t, got[0], p)
	}
	require.Equal(t, []string{"demo"}, s.ProjectIDs())
}

func TestCreateAccount_Uniqueness(t *testing.T) {
	s, _ := newTestStore(t, false)
	sc := rootScope(t, s)

	a, err := sc.CreateAccount(&types.Account{Email: "alice@example.com", PasswordHash: "h"}, CreateOptions{})
	require.NoError(t, err)
	require.Len(t, a.LocalID, 28)
	require.NotZero(t, a.CreatedAt)
	require.Equal(t, []string{"password"}, a.ProviderIDs())

	_, err = sc.CreateAccount(&types.Account{Email: "ALICE@example.com"}, CreateOptions{})
	require.ErrorIs(t, err, errors.ErrEmailExists)

	_, err = sc.CreateAccount(&types.Account{LocalID: a.LocalID}, CreateOptions{})
	require.ErrorIs(t, err, errors.ErrDuplicateLocalID)
	require.Equal(t, "DUPLICATE_LOCAL_ID : "+a.LocalID, errors.FromError(err).Message())

	_, err = sc.CreateAccount(&types.Account{PhoneNumber: "+15555550100"}, CreateOptions{})
	require.NoError(t, err)
	_, err = sc.CreateAccount(&types.Account{PhoneNumber: "+15555550100"}, CreateOptions{})
	require.ErrorIs(t, err, errors.ErrPhoneNumberExists)

	g := types.ProviderUserInfo{ProviderID: "google.com", RawID: "X"}
	_, err = sc.CreateAccount(&types.Account{ProviderUserInfo: []types.ProviderUserInfo{g}}, CreateOptions{})
	require.NoError(t, err)
	_, err = sc.CreateAccount(&types.Account{ProviderUserInfo: []types.ProviderUserInfo{g}}, CreateOptions{})
	require.ErrorIs(t, err, errors.ErrFederatedAlreadyLinked)

	found, ok := sc.ByProvider("google.com", "X")
	require.True(t, ok)
	require.Equal(t, []string{"google.com"}, found.ProviderIDs())
}

func TestCreateAccount_DuplicateEmailsAllowed(t *testing.T) {
	s, _ := newTestStore(t, false)
	_, err := s.Project("demo").UpdateConfig(map[string]any{"signIn": map[string]any{"allowDuplicateEmails": true}}, []string{"signIn.allowDuplicateEmails"})
	require.NoError(t, err)
	sc := rootScope(t, s)

	_, err = sc.CreateAccount(&types.Account{Email: "dup@example.com"}, CreateOptions{})
	require.NoError(t, err)
	_, err = sc.CreateAccount(&types.Account{Email: "Dup@example.com"}, CreateOptions{})
	require.NoError(t, err)
	require.Len(t, sc.AllByEmail("dup@example.com"), 2)
}

func TestCreateAccount_Overwrite(t *testing.T) {
	s, _ := newTestStore(t, false)
	sc := rootScope(t, s)

	_, err := sc.CreateAccount(&types.Account{LocalID: "u1", Email: "old@example.com"}, CreateOptions{})
	require.NoError(t, err)
	_, err = sc.CreateAccount(&types.Account{LocalID: "u1", Email: "new@example.com"}, CreateOptions{AllowOverwrite: true})
	require.NoError(t, err)

	_, ok := sc.ByEmail("old@example.com")
	require.False(t, ok)
	acc, ok := sc.ByEmail("new@example.com")
	require.True(t, ok)
	require.Equal(t, "u1", acc.LocalID)
	require.Equal(t, 1, sc.Count())
}

func TestUpdateAccount_ReindexAndMfaRules(t *testing.T) {
	s, _ := newTestStore(t, false)
	sc := rootScope(t, s)

	a, _ := sc.CreateAccount(&types.Account{Email: "a@example.com"}, CreateOptions{})
	_, _ = sc.CreateAccount(&types.Account{Email: "b@example.com"}, CreateOptions{})

	a.Email = "b@example.com"
	_, err := sc.UpdateAccount(a)
	require.ErrorIs(t, err, errors.ErrEmailExists)

	a.Email = "c@example.com"
	_, err = sc.UpdateAccount(a)
	require.NoError(t, err)
	_, ok := sc.ByEmail("a@example.com")
	require.False(t, ok)

	a.MfaInfo = []types.MfaEnrollment{
		{MfaEnrollmentID: "e1", PhoneInfo: "+15555550100"},
		{MfaEnrollmentID: "e1", PhoneInfo: "+15555550101"},
	}
	_, err = sc.UpdateAccount(a)
	require.ErrorIs(t, err, errors.ErrDuplicateMfaEnrollment)

	a.MfaInfo[1].MfaEnrollmentID = "e2"
	a.MfaInfo[1].PhoneInfo = "+15555550100"
	_, err = sc.UpdateAccount(a)
	require.ErrorIs(t, err, errors.ErrSecondFactorExists)

	_, err = sc.UpdateAccount(&types.Account{LocalID: "missing"})
	require.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestDeleteAccount_Cascades(t *testing.T) {
	s, _ := newTestStore(t, false)
	sc := rootScope(t, s)

	a, _ := sc.CreateAccount(&types.Account{Email: "a@example.com", PhoneNumber: "+15555550100"}, CreateOptions{})
	oob := sc.PutOobCode(types.OobRecord{Email: a.Email, RequestType: types.OobVerifyEmail, LocalID: a.LocalID}, nil)
	vc := sc.PutVerificationCode(types.VerificationCode{PhoneNumber: "+15555550100", LocalID: a.LocalID})
	cred := sc.PutMfaPending(types.MfaPending{LocalID: a.LocalID})

	require.True(t, sc.DeleteAccount(a.LocalID))
	require.False(t, sc.DeleteAccount(a.LocalID))

	_, err := sc.PeekOobCode(oob.OobCode)
	require.ErrorIs(t, err, errors.ErrInvalidOobCode)
	_, err = sc.ConsumeVerificationCode(vc.SessionInfo, vc.Code)
	require.ErrorIs(t, err, errors.ErrInvalidSessionInfo)
	_, err = sc.PeekMfaPending(cred)
	require.ErrorIs(t, err, errors.ErrInvalidMfaPendingCred)

	_, err = sc.CreateAccount(&types.Account{Email: "a@example.com", PhoneNumber: "+15555550100"}, CreateOptions{})
	require.NoError(t, err, "indices released")
}

func TestOobCodes_OneTimeAndExpiry(t *testing.T) {
	s, clock := newTestStore(t, false)
	sc := rootScope(t, s)

	rec := sc.PutOobCode(types.OobRecord{Email: "a@example.com", RequestType: types.OobPasswordReset}, func(code string) string {
		return "http://localhost/emulator/action?oobCode=" + code
	})
	require.Contains(t, rec.OobLink, rec.OobCode)
	require.Len(t, sc.OobCodes(), 1)

	_, err := sc.ConsumeOobCode(rec.OobCode)
	require.NoError(t, err)
	_, err = sc.ConsumeOobCode(rec.OobCode)
	require.ErrorIs(t, err, errors.ErrInvalidOobCode)

	rec = sc.PutOobCode(types.OobRecord{Email: "a@example.com", RequestType: types.OobVerifyEmail}, nil)
	clock.Advance(2 * time.Hour)
	require.Empty(t, sc.OobCodes())
	_, err = sc.ConsumeOobCode(rec.OobCode)
	require.ErrorIs(t, err, errors.ErrExpiredOobCode)
}

func TestVerificationCodes_OneTime(t *testing.T) {
	s, clock := newTestStore(t, false)
	sc := rootScope(t, s)

	vc := sc.PutVerificationCode(types.VerificationCode{PhoneNumber: "+15555550100"})
	require.Regexp(t, `^\d{6}$`, vc.Code)

	_, err := sc.ConsumeVerificationCode(vc.SessionInfo, "000000x")
	require.ErrorIs(t, err, errors.ErrInvalidCode)

	// peek no cierra la sesión
	_, err = sc.PeekVerificationCode(vc.SessionInfo, vc.Code)
	require.NoError(t, err)

	got, err := sc.ConsumeVerificationCode(vc.SessionInfo, vc.Code)
	require.NoError(t, err)
	require.Equal(t, "+15555550100", got.PhoneNumber)

	_, err = sc.ConsumeVerificationCode(vc.SessionInfo, vc.Code)
	require.ErrorIs(t, err, errors.ErrInvalidCode)

	_, err = sc.ConsumeVerificationCode("nope", "123456")
	require.ErrorIs(t, err, errors.ErrInvalidSessionInfo)

	vc = sc.PutVerificationCode(types.VerificationCode{PhoneNumber: "+15555550100"})
	clock.Advance(time.Hour)
	_, err = sc.ConsumeVerificationCode(vc.SessionInfo, vc.Code)
	require.ErrorIs(t, err, errors.ErrSessionExpired)
}

func TestTemporaryProof(t *testing.T) {
	s, _ := newTestStore(t, false)
	sc := rootScope(t, s)

	p := sc.PutTemporaryProof("+15555550100")
	require.ErrorIs(t, sc.ConsumeTemporaryProof(p.Proof, "+15555550199"), errors.ErrInvalidTemporaryProof)
	require.NoError(t, sc.PeekTemporaryProof(p.Proof, "+15555550100"))
	require.NoError(t, sc.ConsumeTemporaryProof(p.Proof, "+15555550100"))
	require.ErrorIs(t, sc.ConsumeTemporaryProof(p.Proof, "+15555550100"), errors.ErrInvalidTemporaryProof)
}

func TestTenants_AutoCreateVersusExplicit(t *testing.T) {
	s, _ := newTestStore(t, true)

	_, err := s.Scope("demo", "auto-1")
	require.NoError(t, err)
	auto, err := s.Project("demo").Tenant("auto-1")
	require.NoError(t, err)
	require.True(t, auto.AllowPasswordSignup)
	require.True(t, auto.EnableAnonymousUser)
	require.True(t, auto.MfaConfig.SMSEnabled())

	explicit, err := s.Project("demo").CreateTenant(types.Tenant{DisplayName: "x"})
	require.NoError(t, err)
	require.NotEmpty(t, explicit.TenantID)
	require.False(t, explicit.AllowPasswordSignup)
	require.Equal(t, "projects/demo/tenants/"+explicit.TenantID, explicit.Name)

	pol := s.Project("demo").Policy(explicit.TenantID)
	require.False(t, pol.AllowPasswordSignup)

	strict, _ := newTestStore(t, false)
	_, err = strict.Scope("demo", "missing")
	require.ErrorIs(t, err, errors.ErrTenantNotFound)
}

func TestTenantScopesAreIsolated(t *testing.T) {
	s, _ := newTestStore(t, true)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, "demo", "t1", func(sc *Scope) error {
		_, err := sc.CreateAccount(&types.Account{Email: "a@example.com"}, CreateOptions{})
		return err
	}))
	require.NoError(t, s.Do(ctx, "demo", "t2", func(sc *Scope) error {
		acc, err := sc.CreateAccount(&types.Account{Email: "a@example.com"}, CreateOptions{})
		require.Equal(t, "t2", acc.TenantID)
		return err
	}))
	require.NoError(t, s.Do(ctx, "demo", "", func(sc *Scope) error {
		require.Zero(t, sc.Count())
		return nil
	}))
}

func TestUpdateConfig_MaskSemantics(t *testing.T) {
	s, _ := newTestStore(t, false)
	p := s.Project("demo")

	cfg, err := p.UpdateConfig(map[string]any{
		"signIn": map[string]any{"allowDuplicateEmails": true},
		"blockingFunctions": map[string]any{
			"triggers": map[string]any{
				"beforeCreate": map[string]any{"functionUri": "http://localhost:9999/bc"},
			},
		},
	}, []string{"blockingFunctions.triggers.beforeCreate.functionUri"})
	require.NoError(t, err)
	require.False(t, cfg.SignIn.AllowDuplicateEmails, "fuera del mask no cambia")
	require.Equal(t, "http://localhost:9999/bc", cfg.BlockingFunctions.Triggers["beforeCreate"].FunctionURI)

	// Ruta que atraviesa un array: no-op.
	cfg, err = p.UpdateConfig(map[string]any{"mfa": map[string]any{"enabledProviders": []any{"X"}}}, []string{"mfa.enabledProviders.0"})
	require.NoError(t, err)
	require.Equal(t, []string{types.MfaProviderSMS}, cfg.Mfa.EnabledProviders)

	// Sin mask: payload sobre defaults, se pierde el trigger anterior.
	cfg, err = p.UpdateConfig(map[string]any{"emailPrivacyConfig": map[string]any{"enableImprovedEmailPrivacy": true}}, nil)
	require.NoError(t, err)
	require.True(t, cfg.EmailPrivacyConfig.EnableImprovedEmailPrivacy)
	require.Empty(t, cfg.BlockingFunctions.Triggers)
	require.Equal(t, types.MfaStateEnabled, cfg.Mfa.State)

	_, err = p.UpdateConfig(map[string]any{"signIn": "nope"}, nil)
	require.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestApplyMask(t *testing.T) {
	dst := map[string]any{"a": map[string]any{"b": 1, "c": 2}, "p": "prim"}
	src := map[string]any{"a": map[string]any{"b": 10}, "p": map[string]any{"x": 1}}

	ApplyMask(dst, src, []string{"a.b", "a.c", "p.x"})
	require.Equal(t, map[string]any{"b": 10}, dst["a"])
	require.Equal(t, "prim", dst["p"])
}

func TestSeedImport(t *testing.T) {
	s, _ := newTestStore(t, true)
	seed, err := ParseSeed([]byte(`{
		// cuentas de prueba
		"projectId": "demo",
		"tenantId": "t1",
		"users": [
			{"localId": "u1", "email": "seed@example.com", "emailVerified": true, "createdAt": "1000"},
			{"localId": "u2", "phoneNumber": "+15555550100"},
		],
	}`))
	require.NoError(t, err)

	n, err := s.Import(seed)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, s.Do(context.Background(), "demo", "t1", func(sc *Scope) error {
		acc, ok := sc.ByEmail("seed@example.com")
		require.True(t, ok)
		require.EqualValues(t, 1000, acc.CreatedAt)
		_, ok = sc.ByPhone("+15555550100")
		require.True(t, ok)
		return nil
	}))

	_, err = ParseSeed([]byte(`{"users": []}`))
	require.Error(t, err)
}

func TestDo_SerializesCheckThenCreate(t *testing.T) {
	s, _ := newTestStore(t, false)
	ctx := context.Background()

	errs := make([]error, 32)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Do(ctx, "demo", "", func(sc *Scope) error {
				if _, ok := sc.ByEmail("race@example.com"); ok {
					return errors.ErrEmailExists
				}
				_, err := sc.CreateAccount(&types.Account{Email: "race@example.com", PasswordHash: "h"}, CreateOptions{})
				return err
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, errors.ErrEmailExists)
	}
	require.Equal(t, 1, created)
	require.Len(t, rootScope(t, s).AllByEmail("race@example.com"), 1)
}

func TestDoExisting_DoesNotCreate(t *testing.T) {
	s, _ := newTestStore(t, true)
	ctx := context.Background()
	noop := func(*Scope) error { return nil }

	require.ErrorIs(t, s.DoExisting(ctx, "demo", "", noop), errors.ErrProjectNotFound)
	require.Empty(t, s.ProjectIDs())

	s.Project("demo")
	require.NoError(t, s.DoExisting(ctx, "demo", "", noop))
	require.ErrorIs(t, s.DoExisting(ctx, "demo", "t1", noop), errors.ErrTenantNotFound)
	require.Empty(t, s.Project("demo").Tenants())

	_, err := s.Scope("demo", "t1")
	require.NoError(t, err)
	require.NoError(t, s.DoExisting(ctx, "demo", "t1", noop))
}
