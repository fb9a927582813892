// Copyright 2024-2026 Aiku AI

package migrator

import (
	"strconv"
	"strings"

	"maunium.net/go/mautrix/id"
)

// NaturalKey identifies a Slack message within one room by its author and
// its raw Slack timestamp. Slack timestamps are unique per channel, so the
// pair is unique within a room's message stream.
type NaturalKey struct {
	Author    string
	Timestamp string
}

// MakeNaturalKey creates the natural key of a message.
func MakeNaturalKey(author, ts string) NaturalKey {
	return NaturalKey{Author: author, Timestamp: ts}
}

func (k NaturalKey) IsZero() bool {
	return k.Author == "" && k.Timestamp == ""
}

func (k NaturalKey) String() string {
	return k.Author + "@" + k.Timestamp
}

// MakeUserID creates a Matrix user ID from a Slack user name and the
// homeserver domain.
func MakeUserID(localpart, domain string) id.UserID {
	return id.NewUserID(strings.ToLower(localpart), domain)
}

// MakeTxnID creates a transaction ID from a per-room sequence token.
func MakeTxnID(token int64) string {
	return strconv.FormatInt(token, 10)
}

// ParseSlackTS converts a Slack timestamp ("1500000000.000100") to Unix
// milliseconds. Malformed timestamps yield 0.
func ParseSlackTS(ts string) int64 {
	secs, frac, _ := strings.Cut(ts, ".")
	s, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return 0
	}
	ms := s * 1000
	if len(frac) > 3 {
		frac = frac[:3]
	}
	if frac != "" {
		for len(frac) < 3 {
			frac += "0"
		}
		if f, err := strconv.ParseInt(frac, 10, 64); err == nil {
			ms += f
		}
	}
	return ms
}
