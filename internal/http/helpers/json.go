package helpers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authemu/internal/errors"
)

// MaxBodySize acota el body de cualquier request (batchCreate incluido).
const MaxBodySize = 8 << 20

const contentTypeJSON = "application/json; charset=utf-8"

// DecodeStrict decodifica el body en dst rechazando campos desconocidos.
// Un body vacío deja dst en su zero value.
func DecodeStrict(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		return jsonError(err)
	}
	if dec.More() {
		return errors.ErrInvalidJSON.WithDetail("Invalid JSON payload received. Unexpected data after the object.")
	}
	return nil
}

// DecodeMap decodifica un body de PATCH como objeto genérico.
func DecodeMap(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	out := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, jsonError(err)
	}
	return out, nil
}

func jsonError(err error) error {
	msg := err.Error()
	if name, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		return errors.ErrInvalidJSON.WithDetail(fmt.Sprintf("Invalid JSON payload received. Unknown name %s: Cannot find field.", name))
	}
	var tErr *json.UnmarshalTypeError
	if stderrors.As(err, &tErr) {
		return errors.ErrInvalidJSON.WithDetail(fmt.Sprintf("Invalid value at '%s' (%s)", tErr.Field, tErr.Value))
	}
	return errors.ErrInvalidJSON.WithDetail("Invalid JSON payload received.").WithCause(err)
}

// WriteJSON escribe v como JSON con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
