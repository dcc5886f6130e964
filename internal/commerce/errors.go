package commerce

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the Medusa Store API, carrying the HTTP
// status and whatever message/code the server exposed, plus a static hint for
// the misconfigurations that produce the most opaque failures.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
	Hint    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	out := fmt.Sprintf("%s failed: %d %s", e.Op, e.Status, msg)
	if e.Hint != "" {
		out += " " + e.Hint
	}
	return out
}

const regionKeyHint = "Check the Medusa server logs for the real error. " +
	"Ensure MEDUSA_REGION_ID matches a region with product prices and " +
	"MEDUSA_PUBLISHABLE_KEY is linked to your sales channel."

// decodeError turns a non-2xx response into an *APIError. The Medusa error
// body is loosely shaped; message and code are picked up when present and the
// raw text is kept otherwise.
func decodeError(op string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{
		Op:      op,
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(string(body)),
	}

	var parsed struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Type    string `json:"type"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			apiErr.Message = parsed.Message
		}
		if parsed.Code != "" {
			apiErr.Code = parsed.Code
		}
	}

	// A 500 "unknown error" from line-items almost always means the region or
	// publishable key is wired to the wrong sales channel.
	if resp.StatusCode == http.StatusInternalServerError &&
		strings.Contains(strings.ToLower(apiErr.Message), "unknown") {
		apiErr.Hint = regionKeyHint
	}

	return apiErr
}
