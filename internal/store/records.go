package store

import (
	"sort"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	tokens "github.com/dropDatabas3/authemu/internal/security/token"
)

// =================================================================================
// OOB CODES
// =================================================================================

// PutOobCode registra un código nuevo. linkFn arma el oobLink con el código
// ya generado.
func (sc *Scope) PutOobCode(rec types.OobRecord, linkFn func(code string) string) types.OobRecord {
	rec.OobCode = tokens.GenerateOpaqueToken(40)
	rec.ExpiresAt = sc.Now().Add(sc.opts.OobCodeTTL)
	if linkFn != nil {
		rec.OobLink = linkFn(rec.OobCode)
	}
	sc.seq++
	sc.oob[rec.OobCode] = &oobEntry{rec: rec, seq: sc.seq}
	return rec
}

// PeekOobCode valida el código sin consumirlo.
func (sc *Scope) PeekOobCode(code string) (types.OobRecord, error) {
	e, ok := sc.oob[code]
	if !ok {
		return types.OobRecord{}, errors.ErrInvalidOobCode
	}
	if sc.Now().After(e.rec.ExpiresAt) {
		delete(sc.oob, code)
		return types.OobRecord{}, errors.ErrExpiredOobCode
	}
	return e.rec, nil
}

// ConsumeOobCode valida y borra el código. Un segundo uso es INVALID_OOB_CODE.
func (sc *Scope) ConsumeOobCode(code string) (types.OobRecord, error) {
	rec, err := sc.PeekOobCode(code)
	if err != nil {
		return rec, err
	}
	delete(sc.oob, code)
	return rec, nil
}

// OobCodes lista los códigos vigentes en orden de emisión.
func (sc *Scope) OobCodes() []types.OobRecord {
	entries := make([]*oobEntry, 0, len(sc.oob))
	now := sc.Now()
	for _, e := range sc.oob {
		if now.After(e.rec.ExpiresAt) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]types.OobRecord, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

// =================================================================================
// VERIFICATION CODES (SMS)
// =================================================================================

// PutVerificationCode abre una sesión SMS con un código de 6 dígitos.
func (sc *Scope) PutVerificationCode(vc types.VerificationCode) types.VerificationCode {
	vc.SessionInfo = tokens.GenerateOpaqueToken(48)
	vc.Code = tokens.RandomDigits(6)
	vc.ExpiresAt = sc.Now().Add(sc.opts.VerificationCodeTTL)
	sc.seq++
	sc.sms[vc.SessionInfo] = &smsEntry{rec: vc, seq: sc.seq}
	return vc
}

// PeekVerificationCode valida code contra la sesión sin cerrarla. Las
// sesiones ya usadas devuelven INVALID_CODE.
func (sc *Scope) PeekVerificationCode(sessionInfo, code string) (types.VerificationCode, error) {
	if _, used := sc.smsUsed[sessionInfo]; used {
		return types.VerificationCode{}, errors.ErrInvalidCode
	}
	e, ok := sc.sms[sessionInfo]
	if !ok {
		return types.VerificationCode{}, errors.ErrInvalidSessionInfo
	}
	if sc.Now().After(e.rec.ExpiresAt) {
		delete(sc.sms, sessionInfo)
		return types.VerificationCode{}, errors.ErrSessionExpired
	}
	if e.rec.Code != code {
		return types.VerificationCode{}, errors.ErrInvalidCode
	}
	return e.rec, nil
}

// ConsumeVerificationCode valida code y cierra la sesión; un segundo uso
// es INVALID_CODE.
func (sc *Scope) ConsumeVerificationCode(sessionInfo, code string) (types.VerificationCode, error) {
	vc, err := sc.PeekVerificationCode(sessionInfo, code)
	if err != nil {
		return vc, err
	}
	delete(sc.sms, sessionInfo)
	sc.smsUsed[sessionInfo] = struct{}{}
	return vc, nil
}

// VerificationCodes lista las sesiones SMS vigentes en orden de emisión.
func (sc *Scope) VerificationCodes() []types.VerificationCode {
	entries := make([]*smsEntry, 0, len(sc.sms))
	now := sc.Now()
	for _, e := range sc.sms {
		if now.After(e.rec.ExpiresAt) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]types.VerificationCode, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

// =================================================================================
// MFA PENDING CREDENTIALS
// =================================================================================

// PutMfaPending registra el estado "falta segundo factor".
func (sc *Scope) PutMfaPending(p types.MfaPending) string {
	p.Credential = tokens.GenerateOpaqueToken(32)
	p.ExpiresAt = sc.Now().Add(sc.opts.MfaPendingTTL)
	sc.mfaPending[p.Credential] = &p
	return p.Credential
}

// PeekMfaPending valida la credencial sin consumirla (mfaSignIn:start).
func (sc *Scope) PeekMfaPending(cred string) (types.MfaPending, error) {
	p, ok := sc.mfaPending[cred]
	if !ok {
		return types.MfaPending{}, errors.ErrInvalidMfaPendingCred
	}
	if sc.Now().After(p.ExpiresAt) {
		delete(sc.mfaPending, cred)
		return types.MfaPending{}, errors.ErrInvalidMfaPendingCred.WithDetail("Pending credential expired.")
	}
	return *p, nil
}

// ConsumeMfaPending valida y borra la credencial (mfaSignIn:finalize).
func (sc *Scope) ConsumeMfaPending(cred string) (types.MfaPending, error) {
	p, err := sc.PeekMfaPending(cred)
	if err != nil {
		return p, err
	}
	delete(sc.mfaPending, cred)
	return p, nil
}

// =================================================================================
// TEMPORARY PROOFS
// =================================================================================

// PutTemporaryProof emite una prueba de posesión del teléfono.
func (sc *Scope) PutTemporaryProof(phone string) types.TemporaryProof {
	p := types.TemporaryProof{
		Proof:       tokens.GenerateOpaqueToken(32),
		PhoneNumber: phone,
		ExpiresAt:   sc.Now().Add(sc.opts.TemporaryProofTTL),
	}
	sc.proofs[p.Proof] = &p
	return p
}

// PeekTemporaryProof exige que la prueba exista, no haya vencido y sea del
// mismo teléfono.
func (sc *Scope) PeekTemporaryProof(proof, phone string) error {
	p, ok := sc.proofs[proof]
	if !ok || p.PhoneNumber != phone || sc.Now().After(p.ExpiresAt) {
		return errors.ErrInvalidTemporaryProof
	}
	return nil
}

// ConsumeTemporaryProof valida la prueba y la borra.
func (sc *Scope) ConsumeTemporaryProof(proof, phone string) error {
	if err := sc.PeekTemporaryProof(proof, phone); err != nil {
		return err
	}
	delete(sc.proofs, proof)
	return nil
}
