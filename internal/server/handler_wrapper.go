package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/goccy/go-json"

	apierrors "github.com/maruel/rowcache/internal/errors"
	"github.com/maruel/rowcache/internal/server/ratelimit"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
//
// Fields of In tagged `path:"name"` receive path parameters and fields tagged
// `query:"name"` receive query parameters. A map[string]string field tagged
// `query:"*"` receives every query parameter not bound to another field.
//
// Example:
//
//	type GetTableRequest struct {
//	    Name  string            `path:"name"`
//	    ID    string            `query:"id"`
//	    Where map[string]string `query:"*"`
//	}
func Wrap[In any, Out any](fn func(context.Context, In) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err2 := r.Body.Close(); err == nil {
			err = err2
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to read request body", "err", err, "request_id", RequestID(ctx))
			writeError(w, apierrors.BadRequest("failed to read request body"))
			return
		}
		var input In
		if len(body) > 0 {
			d := json.NewDecoder(bytes.NewReader(body))
			d.DisallowUnknownFields()
			if err := d.Decode(&input); err != nil {
				slog.ErrorContext(ctx, "Failed to decode request body", "err", err, "request_id", RequestID(ctx))
				writeError(w, apierrors.BadRequest("invalid request body").Wrap(err))
				return
			}
		}
		populatePathParams(r, &input)
		if err := populateQueryParams(r, &input); err != nil {
			writeError(w, apierrors.BadRequest("invalid query parameter").Wrap(err))
			return
		}

		output, err := fn(ctx, input)
		if err != nil {
			slog.ErrorContext(ctx, "Handler error", "err", err, "request_id", RequestID(ctx))
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(output); err != nil {
			slog.ErrorContext(ctx, "Failed to encode response", "err", err, "request_id", RequestID(ctx))
		}
	})
}

// populatePathParams sets the string fields of input tagged `path:"name"`.
func populatePathParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" || field.Type.Kind() != reflect.String {
			continue
		}
		if v := r.PathValue(tag); v != "" {
			elem.Field(i).SetString(v)
		}
	}
}

// populateQueryParams sets the fields of input tagged `query:"name"`. Only
// string, int and the `query:"*"` catch-all map are supported.
func populateQueryParams(r *http.Request, input any) error {
	elem, ok := structElem(input)
	if !ok {
		return nil
	}
	query := r.URL.Query()
	typ := elem.Type()
	rest := -1
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		if tag == "*" {
			rest = i
			continue
		}
		v := query.Get(tag)
		query.Del(tag)
		if v == "" {
			continue
		}
		//nolint:exhaustive // Only string and int are supported.
		switch field.Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(v)
		case reflect.Int:
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.New(tag + ": " + err.Error())
			}
			elem.Field(i).SetInt(int64(n))
		default:
		}
	}
	if rest >= 0 && len(query) > 0 {
		m := make(map[string]string, len(query))
		for k := range query {
			m[k] = query.Get(k)
		}
		elem.Field(rest).Set(reflect.ValueOf(m))
	}
	return nil
}

func structElem(input any) (reflect.Value, bool) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return reflect.Value{}, false
	}
	elem := val.Elem()
	return elem, elem.Kind() == reflect.Struct
}

// writeError writes err as a JSON error response. Errors that don't carry a
// status are reported as 500.
func writeError(w http.ResponseWriter, err error) {
	var ews apierrors.ErrorWithStatus
	if !errors.As(err, &ews) {
		ews = apierrors.InternalWithError("internal error", err)
	}
	writeErrorResponseWithCode(w, ews.StatusCode(), ews.Code(), err.Error(), ews.Details())
}

// writeErrorResponseWithCode writes a detailed error response as JSON with code and details.
func writeErrorResponseWithCode(w http.ResponseWriter, statusCode int, code apierrors.ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if len(details) > 0 {
		response["details"] = details
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}

// writeRateLimitError writes a 429 response.
func writeRateLimitError(w http.ResponseWriter, res ratelimit.Result) {
	writeError(w, apierrors.RateLimitExceeded(int(res.RetryAfter.Seconds())))
}
