package download

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

var httpStatusPattern = regexp.MustCompile(`(?i)http error (\d{3})`)

// Classify maps a raw extraction failure onto the error taxonomy. Errors
// that already carry a classification pass through unchanged.
func Classify(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	message := err.Error()
	lower := strings.ToLower(message)

	httpStatus := 0
	if m := httpStatusPattern.FindStringSubmatch(lower); m != nil {
		httpStatus, _ = strconv.Atoi(m[1])
	}

	errType := classifyMessage(err, lower, httpStatus)
	return &Error{Type: errType, HTTPStatus: httpStatus, Message: message}
}

func classifyMessage(err error, lower string, httpStatus int) models.ErrorType {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return models.ErrNetwork
	}

	switch {
	case httpStatus == 429 || strings.Contains(lower, "too many requests") || strings.Contains(lower, "rate limit"):
		return models.ErrRateLimit
	case httpStatus == 401 || httpStatus == 403:
		return models.ErrAuth
	case strings.Contains(lower, "login") || strings.Contains(lower, "sign in") || strings.Contains(lower, "cookie"):
		return models.ErrAuth
	case strings.Contains(lower, "geo") || strings.Contains(lower, "not available in your country"):
		return models.ErrGeoBlock
	case strings.Contains(lower, "drm") || strings.Contains(lower, "protected"):
		return models.ErrProtectedContent
	case strings.Contains(lower, "unsupported"):
		return models.ErrUnsupportedSource
	case strings.Contains(lower, "update") && strings.Contains(lower, "extractor"):
		return models.ErrExtractorUpdateRequired
	case strings.Contains(lower, "extractor"):
		return models.ErrExtractor
	case httpStatus >= 400:
		return models.ErrHTTP
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection") || strings.Contains(lower, "timeout"):
		return models.ErrNetwork
	}
	return models.ErrUnknown
}
