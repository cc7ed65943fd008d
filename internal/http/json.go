package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	apperrors "github.com/target/seclab-api/internal/errors"
)

// maxBodyBytes caps request bodies read by DecodeJSON and DecodeBody.
const maxBodyBytes = 64 << 10

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: errors.New("invalid request body")})
		return false
	}

	return true
}

// DecodeBody decodes a JSON or form-encoded body. Form values are mapped onto
// dst by their JSON field names.
func DecodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/x-www-form-urlencoded" && ct != "multipart/form-data" {
		return DecodeJSON(w, r, dst)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	parse := r.ParseForm
	if ct == "multipart/form-data" {
		parse = func() error { return r.ParseMultipartForm(maxBodyBytes) }
	}
	if err := parse(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: errors.New("invalid request body")})
		return false
	}
	if err := formInto(r.PostForm, dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: errors.New("invalid request body")})
		return false
	}
	return true
}

// formInto round-trips the first value of each form field through JSON so the
// same struct tags serve both encodings.
func formInto(values url.Values, dst any) error {
	flat := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// statusFor maps application error codes to HTTP statuses.
//
//nolint:gochecknoglobals // static read-only lookup
var statusFor = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeUnauthenticated: http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:       http.StatusForbidden,
	apperrors.ErrCodeNotFound:        http.StatusNotFound,
	apperrors.ErrCodeConflict:        http.StatusConflict,
	apperrors.ErrCodeValidation:      http.StatusBadRequest,
	apperrors.ErrCodeRateLimited:     http.StatusTooManyRequests,
	apperrors.ErrCodeTimeout:         http.StatusGatewayTimeout,
}

// WriteAppError translates err into a JSON error response. Application errors
// keep their message; anything else is logged and answered with a generic 500.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if code, ok := statusFor[appErr.Code]; ok {
			WriteError(w, ErrorParams{Code: code, ErrCode: string(appErr.Code), Err: errors.New(appErr.Message)})
			return
		}
	}

	LoggerFromContext(r.Context()).ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	WriteError(w, ErrorParams{
		Code:    http.StatusInternalServerError,
		ErrCode: string(apperrors.ErrCodeInternal),
		Err:     errors.New("internal error"),
	})
}

// writeText writes a plain-text body.
func writeText(w http.ResponseWriter, r *http.Request, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, body); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
