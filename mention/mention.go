// Package mention implements the chat's @name rules: deciding whether a message
// mentions a user, pulling @tokens out of message text, autocomplete candidates for a
// partially typed mention, and stamp detection.
package mention

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf16"

	log "github.com/sirupsen/logrus"

	"github.com/shiftChat/gateway"
)

var (
	tokenPattern   = regexp.MustCompile(`@([a-zA-Z0-9_\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}]+)`)
	partialPattern = regexp.MustCompile(`@([^@\s]*)$`)
)

// Matches reports whether content contains "@displayName" followed by a word
// boundary, ignoring case. When escape is false the display name is used as a raw
// pattern fragment; a name that does not compile never matches.
func Matches(content, displayName string, escape bool) bool {
	if displayName == "" {
		return false
	}
	name := displayName
	if escape {
		name = regexp.QuoteMeta(name)
	}
	re, err := regexp.Compile(`(?i)@` + name + `\b`)
	if err != nil {
		log.WithField("displayName", displayName).Warnf("unable to build mention pattern: %s", err)
		return false
	}
	return re.MatchString(content)
}

// Tokens returns the @tokens in content, in order, without the leading '@'.
func Tokens(content string) []string {
	var tokens []string
	for _, m := range tokenPattern.FindAllStringSubmatch(content, -1) {
		tokens = append(tokens, m[1])
	}
	return tokens
}

// Partial returns the text typed after the last '@' when the input ends inside a
// mention.
func Partial(input string) (string, bool) {
	m := partialPattern.FindStringSubmatch(input)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Candidates lists users whose display name contains the partial mention at the end
// of input, ignoring case.
func Candidates(input string, users []gateway.User) []gateway.User {
	term, ok := Partial(input)
	if !ok {
		return nil
	}
	term = strings.ToLower(term)

	var out []gateway.User
	for _, u := range users {
		if u.DisplayName == "" {
			continue
		}
		if strings.Contains(strings.ToLower(u.DisplayName), term) {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

// Complete replaces the partial mention at the end of input with "@displayName ".
func Complete(input, displayName string) string {
	i := strings.LastIndex(input, "@")
	if i < 0 {
		return input
	}
	return input[:i] + "@" + displayName + " "
}

// IsStamp reports whether content is a single pictograph sent as a stamp: two UTF-16
// code units containing a symbol.
func IsStamp(content string) bool {
	runes := []rune(content)
	if len(utf16.Encode(runes)) != 2 {
		return false
	}
	for _, r := range runes {
		if unicode.Is(unicode.So, r) {
			return true
		}
	}
	return false
}

// Classify picks the message type for trimmed input.
func Classify(content string) gateway.MessageType {
	if IsStamp(content) {
		return gateway.MessageTypeStamp
	}
	return gateway.MessageTypeText
}
