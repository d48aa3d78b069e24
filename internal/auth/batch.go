package auth

import (
	"context"
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/security/password"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// BatchUser es una cuenta a importar. passwordHash y salt vienen en base64.
type BatchUser struct {
	LocalID          string                   `json:"localId"`
	Email            string                   `json:"email,omitempty"`
	EmailVerified    bool                     `json:"emailVerified,omitempty"`
	DisplayName      string                   `json:"displayName,omitempty"`
	PhotoURL         string                   `json:"photoUrl,omitempty"`
	PhoneNumber      string                   `json:"phoneNumber,omitempty"`
	Disabled         bool                     `json:"disabled,omitempty"`
	PasswordHash     string                   `json:"passwordHash,omitempty"`
	Salt             string                   `json:"salt,omitempty"`
	CustomAttributes string                   `json:"customAttributes,omitempty"`
	ProviderUserInfo []types.ProviderUserInfo `json:"providerUserInfo,omitempty"`
	MfaInfo          []MfaEnrollmentInput     `json:"mfaInfo,omitempty"`
	CreatedAt        string                   `json:"createdAt,omitempty"`
	LastLoginAt      string                   `json:"lastLoginAt,omitempty"`
	ValidSince       string                   `json:"validSince,omitempty"`
	TenantID         string                   `json:"tenantId,omitempty"`
	RawPassword      string                   `json:"rawPassword,omitempty"`
}

// BatchCreateRequest es el body de accounts:batchCreate.
type BatchCreateRequest struct {
	Users          []BatchUser `json:"users"`
	AllowOverwrite bool        `json:"allowOverwrite,omitempty"`
	SanityCheck    bool        `json:"sanityCheck,omitempty"`
	HashAlgorithm  string      `json:"hashAlgorithm,omitempty"`
	SignerKey      string      `json:"signerKey,omitempty"`
	SaltSeparator  string      `json:"saltSeparator,omitempty"`
	Rounds         int         `json:"rounds,omitempty"`
	MemoryCost     int         `json:"memoryCost,omitempty"`
	TenantID       string      `json:"tenantId,omitempty"`
}

// BatchError es el resultado fallido de un item.
type BatchError struct {
	Index   int    `json:"index"`
	LocalID string `json:"localId,omitempty"`
	Message string `json:"message"`
}

// BatchCreateResponse es la respuesta de accounts:batchCreate.
type BatchCreateResponse struct {
	Kind  string       `json:"kind"`
	Error []BatchError `json:"error,omitempty"`
}

// mensajes por item, por código del store
var batchCreateMessages = map[string]string{
	"EMAIL_EXISTS":                     "email exists in other account in database",
	"PHONE_NUMBER_EXISTS":              "phone number exists in other account in database",
	"FEDERATED_USER_ID_ALREADY_LINKED": "raw id exists in other account in database",
	"DUPLICATE_LOCAL_ID":               "localId belongs to an existing account - can not overwrite.",
}

// BatchCreate importa cuentas. Los errores por item no abortan el resto;
// los conflictos de localId sin allowOverwrite sí abortan la llamada entera.
func (s *Service) BatchCreate(ctx context.Context, c Caller, req BatchCreateRequest) (resp *BatchCreateResponse, err error) {
	defer observe("accounts:batchCreate", &err)
	log := s.log(ctx, "BatchCreate")

	created := 0
	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if !c.Privileged {
			return errors.ErrInsufficientPermission
		}
		if len(req.Users) == 0 {
			return errors.ErrMissingUserAccount
		}
		pol := sc.Policy()

		if req.SanityCheck {
			emails := map[string]bool{}
			rawIDs := map[string]bool{}
			for _, u := range req.Users {
				if u.Email != "" && !pol.AllowDuplicateEmails {
					e := validation.CanonicalizeEmail(u.Email)
					if emails[e] {
						return errors.ErrDuplicateEmail.WithDetail(u.Email)
					}
					emails[e] = true
				}
				for _, p := range u.ProviderUserInfo {
					key := p.ProviderID + "\x00" + p.RawID
					if rawIDs[key] {
						return errors.ErrDuplicateRawID.WithDetail("Provider id(" + p.ProviderID + "), Raw id(" + p.RawID + ")")
					}
					rawIDs[key] = true
				}
			}
		}
		if !req.AllowOverwrite {
			ids := map[string]bool{}
			for _, u := range req.Users {
				if u.LocalID == "" {
					continue
				}
				if ids[u.LocalID] || sc.Exists(u.LocalID) {
					return errors.ErrDuplicateLocalID.WithDetail(u.LocalID)
				}
				ids[u.LocalID] = true
			}
		}

		resp = &BatchCreateResponse{Kind: kindUpload}
		for i, u := range req.Users {
			acc, msg := s.batchAccount(sc, req, u)
			if msg == "" {
				_, err := sc.CreateAccount(acc, store.CreateOptions{AllowOverwrite: req.AllowOverwrite})
				if err != nil {
					code := errors.CodeOf(err)
					if m, ok := batchCreateMessages[code]; ok {
						msg = m
					} else {
						msg = errors.FromError(err).Message()
					}
				}
			}
			if msg != "" {
				resp.Error = append(resp.Error, BatchError{Index: i, Message: msg})
				continue
			}
			created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("batch import", logger.Count(created), logger.Int("failed", len(resp.Error)))
	return resp, nil
}

// batchAccount valida un item y arma la cuenta; msg != "" es error del item.
func (s *Service) batchAccount(sc *store.Scope, req BatchCreateRequest, u BatchUser) (*types.Account, string) {
	if u.LocalID == "" {
		return nil, "localId is missing"
	}
	if u.TenantID != "" && u.TenantID != sc.TenantID() {
		return nil, "Tenant id in userInfo does not match the tenant id in request."
	}
	acc := &types.Account{
		LocalID:       u.LocalID,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		Disabled:      u.Disabled,
	}
	if u.Email != "" {
		if !validation.ValidEmail(u.Email) {
			return nil, "email is invalid"
		}
		acc.Email = validation.CanonicalizeEmail(u.Email)
	}
	if u.PhoneNumber != "" {
		if !validation.ValidPhoneNumber(u.PhoneNumber) {
			return nil, "phone number format is invalid"
		}
		acc.PhoneNumber = u.PhoneNumber
	}
	if u.CustomAttributes != "" {
		if _, err := validation.ValidateCustomClaims(u.CustomAttributes); err != nil {
			return nil, "Invalid custom claims provided."
		}
		acc.CustomAttributes = u.CustomAttributes
	}
	for _, p := range u.ProviderUserInfo {
		if p.ProviderID == "" || p.RawID == "" {
			return nil, "providerId and rawId are required in providerUserInfo"
		}
		switch p.ProviderID {
		case types.ProviderPassword, types.ProviderPhone:
			continue
		}
		acc.UpsertProvider(p)
	}
	if len(u.MfaInfo) > 0 {
		enrollments, err := buildEnrollments(sc, u.MfaInfo)
		if err != nil {
			return nil, errors.FromError(err).Message()
		}
		acc.MfaInfo = enrollments
	}

	switch {
	case u.RawPassword != "":
		acc.Salt = password.NewSalt()
		acc.PasswordHash = password.Hash(u.RawPassword, acc.Salt)
	case u.PasswordHash != "":
		hash, err := base64.URLEncoding.DecodeString(u.PasswordHash)
		if err != nil {
			if hash, err = base64.StdEncoding.DecodeString(u.PasswordHash); err != nil {
				return nil, "passwordHash is not valid base64"
			}
		}
		switch {
		case strings.HasPrefix(string(hash), "fakeHash:"):
			acc.PasswordHash = string(hash)
			if salt, err := base64.StdEncoding.DecodeString(u.Salt); err == nil {
				acc.Salt = string(salt)
			}
		case strings.EqualFold(req.HashAlgorithm, "BCRYPT"):
			imported, err := password.ImportBcrypt(hash)
			if err != nil {
				return nil, "invalid BCRYPT hash"
			}
			acc.PasswordHash = imported
		default:
			return nil, "Unsupported hash algorithm: " + req.HashAlgorithm
		}
	}
	if acc.PasswordHash != "" {
		acc.PasswordUpdatedAt = sc.NowMillis()
	}

	parse := func(v string) int64 {
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	acc.CreatedAt = parse(u.CreatedAt)
	acc.LastLoginAt = parse(u.LastLoginAt)
	acc.ValidSince = parse(u.ValidSince)
	return acc, ""
}

// BatchDeleteRequest es el body de accounts:batchDelete.
type BatchDeleteRequest struct {
	LocalIDs []string `json:"localIds"`
	Force    bool     `json:"force,omitempty"`
	TenantID string   `json:"tenantId,omitempty"`
}

// BatchDeleteResponse es la respuesta de accounts:batchDelete.
type BatchDeleteResponse struct {
	Errors []BatchError `json:"errors,omitempty"`
}

// BatchDelete borra cuentas. Sin force solo borra las deshabilitadas.
func (s *Service) BatchDelete(ctx context.Context, c Caller, req BatchDeleteRequest) (resp *BatchDeleteResponse, err error) {
	defer observe("accounts:batchDelete", &err)

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if !c.Privileged {
			return errors.ErrInsufficientPermission
		}
		if len(req.LocalIDs) == 0 {
			return errors.ErrMissingLocalID
		}
		resp = &BatchDeleteResponse{}
		for i, id := range req.LocalIDs {
			acc, ok := sc.Get(id)
			if !ok {
				continue
			}
			if !req.Force && !acc.Disabled {
				resp.Errors = append(resp.Errors, BatchError{Index: i, LocalID: id, Message: errors.ErrNotDisabled.Message()})
				continue
			}
			sc.DeleteAccount(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// QueryExpression filtra por igualdad; los campos de una expresión se
// combinan con AND y las expresiones entre sí con OR.
type QueryExpression struct {
	Email       string `json:"email,omitempty"`
	UserID      string `json:"userId,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// QueryAccountsRequest es el body de accounts:query.
type QueryAccountsRequest struct {
	ReturnUserInfo *bool             `json:"returnUserInfo,omitempty"`
	Limit          string            `json:"limit,omitempty"`
	Offset         string            `json:"offset,omitempty"`
	SortBy         string            `json:"sortBy,omitempty"`
	Order          string            `json:"order,omitempty"`
	Expression     []QueryExpression `json:"expression,omitempty"`
	TenantID       string            `json:"tenantId,omitempty"`
}

// QueryAccountsResponse es la respuesta de accounts:query.
type QueryAccountsResponse struct {
	RecordsCount string      `json:"recordsCount"`
	UserInfo     []*UserInfo `json:"userInfo,omitempty"`
}

// QueryAccounts lista cuentas del scope con filtro, orden y paginado.
func (s *Service) QueryAccounts(ctx context.Context, c Caller, req QueryAccountsRequest) (resp *QueryAccountsResponse, err error) {
	defer observe("accounts:query", &err)

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if !c.Privileged {
			return errors.ErrInsufficientPermission
		}
		var matched []*types.Account
		for _, acc := range sc.List() {
			if matchesQuery(acc, req.Expression) {
				matched = append(matched, acc)
			}
		}
		if err := sortAccounts(matched, req.SortBy, req.Order); err != nil {
			return err
		}

		resp = &QueryAccountsResponse{RecordsCount: strconv.Itoa(len(matched))}
		if req.ReturnUserInfo != nil && !*req.ReturnUserInfo {
			return nil
		}
		offset, _ := strconv.Atoi(req.Offset)
		limit, _ := strconv.Atoi(req.Limit)
		if limit <= 0 {
			limit = 500
		}
		if offset < 0 || offset > len(matched) {
			offset = len(matched)
		}
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		for _, acc := range matched[offset:end] {
			resp.UserInfo = append(resp.UserInfo, userInfo(acc, true))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func matchesQuery(acc *types.Account, exprs []QueryExpression) bool {
	if len(exprs) == 0 {
		return true
	}
	for _, e := range exprs {
		if e.Email != "" && validation.CanonicalizeEmail(e.Email) != acc.Email {
			continue
		}
		if e.UserID != "" && e.UserID != acc.LocalID {
			continue
		}
		if e.PhoneNumber != "" && e.PhoneNumber != acc.PhoneNumber {
			continue
		}
		return true
	}
	return false
}

func sortAccounts(accs []*types.Account, sortBy, order string) error {
	var less func(a, b *types.Account) bool
	switch sortBy {
	case "", "USER_ID":
		less = func(a, b *types.Account) bool { return a.LocalID < b.LocalID }
	case "NAME":
		less = func(a, b *types.Account) bool { return a.DisplayName < b.DisplayName }
	case "CREATED_AT":
		less = func(a, b *types.Account) bool { return a.CreatedAt < b.CreatedAt }
	case "LAST_LOGIN_AT":
		less = func(a, b *types.Account) bool { return a.LastLoginAt < b.LastLoginAt }
	case "USER_EMAIL":
		less = func(a, b *types.Account) bool { return a.Email < b.Email }
	default:
		return errors.BadRequest("INVALID_SORT_BY", sortBy)
	}
	desc := strings.EqualFold(order, "DESC")
	sort.SliceStable(accs, func(i, j int) bool {
		if desc {
			return less(accs[j], accs[i])
		}
		return less(accs[i], accs[j])
	})
	return nil
}
