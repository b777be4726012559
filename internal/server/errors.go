package server

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"example.com/hostwire/internal/logger"
)

// ErrorDetail is the inner structure of a JSON error response.
type ErrorDetail struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

// ErrorResponseJSON is the full JSON error response body.
type ErrorResponseJSON struct {
	Error ErrorDetail `json:"error"`
}

var defaultHTMLMessages = map[int]struct {
	Title   string
	Heading string
	Message string
}{
	http.StatusNotFound: {
		Title:   "404 Not Found",
		Heading: "Not Found",
		Message: "The requested resource was not found on this server.",
	},
	http.StatusInternalServerError: {
		Title:   "500 Internal Server Error",
		Heading: "Internal Server Error",
		Message: "The server encountered an internal error and was unable to complete your request.",
	},
	http.StatusBadRequest: {
		Title:   "400 Bad Request",
		Heading: "Bad Request",
		Message: "The server cannot or will not process the request due to an apparent client error.",
	},
	http.StatusMethodNotAllowed: {
		Title:   "405 Method Not Allowed",
		Heading: "Method Not Allowed",
		Message: "The method is not allowed for the requested resource.",
	},
}

// PrefersJSON reports whether an Accept header value prefers
// application/json over HTML. Media types are weighted by q-value,
// then specificity (a concrete type beats a wildcard), then their
// position in the header. An empty or fully rejected header defaults
// to HTML.
func PrefersJSON(acceptHeaderValue string) bool {
	if acceptHeaderValue == "" {
		return false
	}

	type offer struct {
		mediaType string
		q         float64
		specific  bool
		order     int
	}
	var offers []offer

	for i, part := range strings.Split(acceptHeaderValue, ",") {
		part = strings.TrimSpace(part)
		mediaType := part
		qValue := 1.0

		if idx := strings.Index(part, ";"); idx != -1 {
			mediaType = strings.TrimSpace(part[:idx])
			for _, param := range strings.Split(part[idx+1:], ";") {
				param = strings.TrimSpace(param)
				if !strings.HasPrefix(param, "q=") {
					continue
				}
				q, err := strconv.ParseFloat(param[2:], 64)
				if err != nil || q < 0 || q > 1 {
					qValue = 0
				} else {
					qValue = q
				}
				break
			}
		}

		// A media type with q=0 is rejected outright (RFC 7231 5.3.2).
		if qValue > 0 {
			offers = append(offers, offer{
				mediaType: strings.ToLower(mediaType),
				q:         qValue,
				specific:  !strings.HasSuffix(mediaType, "/*") && mediaType != "*/*",
				order:     i,
			})
		}
	}
	if len(offers) == 0 {
		return false
	}

	sort.Slice(offers, func(i, j int) bool {
		if offers[i].q != offers[j].q {
			return offers[i].q > offers[j].q
		}
		if offers[i].specific != offers[j].specific {
			return offers[i].specific
		}
		return offers[i].order < offers[j].order
	})
	return offers[0].mediaType == "application/json"
}

// WriteErrorResponse sends a uniform error response negotiated on the
// request's Accept header: JSON when the client prefers it, HTML
// otherwise. detail, when non-empty, is included in the body
// (HTML-escaped for the HTML form). r may be nil, in which case the
// response defaults to HTML.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, detail string, log *logger.Logger) {
	statusText := http.StatusText(statusCode)
	if statusText == "" {
		statusText = "Error"
	}

	accept := ""
	if r != nil {
		accept = r.Header.Get("Accept")
	}

	var body []byte
	contentType := "text/html; charset=utf-8"

	if PrefersJSON(accept) {
		payload := ErrorResponseJSON{Error: ErrorDetail{
			StatusCode: statusCode,
			Message:    statusText,
			Detail:     detail,
		}}
		if b, err := json.Marshal(payload); err == nil {
			body = b
			contentType = "application/json; charset=utf-8"
		} else if log != nil {
			log.Error("failed to marshal JSON error response, falling back to HTML", logger.LogFields{
				"error":       err,
				"status_code": statusCode,
			})
		}
	}

	if body == nil {
		var title, heading, message string
		if known, ok := defaultHTMLMessages[statusCode]; ok {
			title, heading, message = known.Title, known.Heading, known.Message
			if detail != "" {
				message = message + " " + html.EscapeString(detail)
			}
		} else {
			title = fmt.Sprintf("%d %s", statusCode, statusText)
			heading = statusText
			message = "The server encountered an error processing your request."
			if detail != "" {
				message = html.EscapeString(detail)
			}
		}
		body = generateHTMLErrorBody(title, heading, message)
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	// Error responses must not be cached.
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil && log != nil {
		log.Error("failed to write error response body", logger.LogFields{
			"error":       err,
			"status_code": statusCode,
		})
	}
}

func generateHTMLErrorBody(title, heading, message string) []byte {
	titleEsc := html.EscapeString(title)
	headingEsc := html.EscapeString(heading)
	return []byte(fmt.Sprintf(`<html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>`, titleEsc, headingEsc, message))
}
