/*
Package req provides helper functions for HTTP request parsing and data binding.

It encapsulates strict JSON body binding for the admin API and maps decoding failures
onto the application's error codes.
*/
package req

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"cloak/internal/pkg/errs"
)

// MaxBodySize caps admin API request bodies (1 MB).
const MaxBodySize int64 = 1 << 20

// BindJSON attempts to bind the JSON data from the HTTP request body to the destination struct dst.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
