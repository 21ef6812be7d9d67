package reconcile

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"discovery-sync/core/database"
)

// hashSuffixLength is the number of hex digits appended to shortened names.
const hashSuffixLength = 8

// ShortenName maps an attribute name to a column name that fits the identifier limit.
// Names within the limit are returned unchanged. Longer names keep their leading
// bytes and gain "_" plus the first eight hex digits of the MD5 of the full name,
// so the result is always exactly MaxIdentifierLength bytes and stable across runs.
func ShortenName(name string) string {
	if len(name) <= database.MaxIdentifierLength {
		return name
	}
	sum := md5.Sum([]byte(name))
	suffix := hex.EncodeToString(sum[:])[:hashSuffixLength]
	prefix := truncateUTF8(name, database.MaxIdentifierLength-hashSuffixLength-1)
	return prefix + "_" + suffix
}

// TableName derives the table name for a node kind.
func TableName(kind string) string {
	return ShortenName(strings.ReplaceAll(strings.ToLower(kind), " ", "_"))
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
// The cut is padded with "_" so the prefix length never varies.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + strings.Repeat("_", n-cut)
}
