// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redaction replaces the value of a redacted field.
const Redaction = "***"

// DefaultRedactedKeys are attribute keys whose values never reach the log.
var DefaultRedactedKeys = []string{"email", "password", "session_id", "reset_token", "authorization"}

func redactAttr(keys []string) func(groups []string, a slog.Attr) slog.Attr {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return func(_ []string, a slog.Attr) slog.Attr {
		if _, ok := set[strings.ToLower(a.Key)]; ok {
			return slog.String(a.Key, Redaction)
		}
		return a
	}
}

// FilterDatum replaces the values of fields in a "key=value<sep>" formatted
// message with redaction. A value runs up to the next separator; a field
// without a trailing separator is left alone.
func FilterDatum(fields []string, redaction, message, separator string) string {
	if len(fields) == 0 || separator == "" {
		return message
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	sep := regexp.QuoteMeta(separator)
	re := regexp.MustCompile(`(` + strings.Join(quoted, "|") + `)=.*?` + sep)
	return re.ReplaceAllStringFunc(message, func(m string) string {
		key, _, _ := strings.Cut(m, "=")
		return key + "=" + redaction + separator
	})
}
