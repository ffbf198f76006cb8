package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
)

// SuccessMarker stands in for a 2xx response without a readable JSON body.
var SuccessMarker = json.RawMessage(`{"success":true}`)

// Result is a normalized 2xx response.
type Result struct {
	StatusCode int
	Payload    json.RawMessage

	// Synthetic is set when Payload is SuccessMarker rather than upstream data.
	Synthetic bool

	// DecodeErr holds the parse failure that was masked in lenient mode.
	DecodeErr error
}

// Decode unmarshals the payload into v.
func (r *Result) Decode(v any) error {
	if r == nil {
		return &DecodeFailure{Err: errors.New("empty result")}
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return &DecodeFailure{Err: err, Details: truncate(string(r.Payload), maxDetailBytes)}
	}
	return nil
}

// Normalizer resolves what a successful response carries.
//
// The upstream answers several writes with an empty body, so a 2xx status is
// trusted as success even when the body is absent, non-JSON, or malformed.
// Strict turns the malformed case into a DecodeFailure.
type Normalizer struct {
	Strict bool
}

// Normalize interprets a 2xx response body.
func (n Normalizer) Normalize(statusCode int, header http.Header, contentLength int64, body []byte) (*Result, error) {
	if contentLength == 0 || !isJSONContentType(header.Get("Content-Type")) {
		return synthetic(statusCode, nil), nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return synthetic(statusCode, nil), nil
	}

	if !json.Valid(trimmed) {
		err := errors.New("response body is not valid JSON")
		if n.Strict {
			return nil, &DecodeFailure{Err: err, Details: truncate(string(trimmed), maxDetailBytes)}
		}
		return synthetic(statusCode, err), nil
	}

	return &Result{StatusCode: statusCode, Payload: json.RawMessage(trimmed)}, nil
}

func synthetic(statusCode int, decodeErr error) *Result {
	return &Result{
		StatusCode: statusCode,
		Payload:    SuccessMarker,
		Synthetic:  true,
		DecodeErr:  decodeErr,
	}
}

func isJSONContentType(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(value, ";", 2)[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
