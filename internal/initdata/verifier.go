// Package initdata validates Telegram Mini App init data: a query string
// signed by the platform with a key derived from the bot token.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

const (
	hashField = "hash"
	userField = "user"

	// secretKeyLabel is the fixed message HMAC'd with the bot token to derive the signing key.
	secretKeyLabel = "WebAppData"
)

var (
	// ErrMissingSignature is returned when the payload carries no hash field.
	ErrMissingSignature = errors.New("init data: missing signature")

	// ErrSignatureMismatch is returned when the hash does not match the payload.
	ErrSignatureMismatch = errors.New("init data: signature mismatch")

	// ErrMalformedUserField is returned when the user field is not a JSON object.
	ErrMalformedUserField = errors.New("init data: malformed user field")

	// ErrNoIdentity accompanies a verified Identity that carries no user id.
	ErrNoIdentity = errors.New("init data: no user identity")
)

type pair struct {
	key   string
	value string
}

// Verifier checks payloads against a single bot token. The derived secret key
// is computed once; a Verifier is safe for concurrent use.
type Verifier struct {
	secret []byte
}

// NewVerifier derives the secret key for botToken.
func NewVerifier(botToken string) *Verifier {
	return &Verifier{secret: SecretKey(botToken)}
}

// SecretKey returns HMAC-SHA256(key=botToken, message="WebAppData").
func SecretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(botToken))
	mac.Write([]byte(secretKeyLabel))
	return mac.Sum(nil)
}

// Verify validates payload with a key derived from botToken.
func Verify(payload, botToken string) (Identity, error) {
	return NewVerifier(botToken).Verify(payload)
}

// Verify validates payload and returns its fields. When the signature holds
// but no user id is present the Identity is returned together with ErrNoIdentity.
func (v *Verifier) Verify(payload string) (Identity, error) {
	pairs := parse(payload)

	hash, found := "", false
	rest := pairs[:0:0]
	for _, p := range pairs {
		if p.key == hashField {
			if !found {
				hash, found = p.value, true
			}
			continue
		}
		rest = append(rest, p)
	}
	if !found || hash == "" {
		return Identity{}, ErrMissingSignature
	}

	expected := sign(rest, v.secret)
	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return Identity{}, ErrSignatureMismatch
	}

	fields := make(map[string]string, len(rest))
	for _, p := range rest {
		fields[p.key] = p.value
	}
	identity := Identity{Fields: fields}

	user, ok, err := decodeUser(fields)
	if err != nil {
		return Identity{}, err
	}
	if !ok || user.ID == "" {
		return identity, ErrNoIdentity
	}
	identity.User = &user
	identity.UserID = user.ID
	return identity, nil
}

// Sign produces the hash the platform would attach to fields and returns the
// complete payload. Keys are emitted in sorted order.
func Sign(fields map[string]string, botToken string) string {
	pairs := make([]pair, 0, len(fields))
	for k, v := range fields {
		if k == hashField {
			continue
		}
		pairs = append(pairs, pair{key: k, value: v})
	}
	sortPairs(pairs)

	values := url.Values{}
	for _, p := range pairs {
		values.Add(p.key, p.value)
	}
	values.Set(hashField, sign(pairs, SecretKey(botToken)))
	return values.Encode()
}

// CheckString builds the newline-joined, key-sorted representation of all
// fields except the hash.
func CheckString(payload string) string {
	pairs := parse(payload)
	rest := pairs[:0:0]
	for _, p := range pairs {
		if p.key != hashField {
			rest = append(rest, p)
		}
	}
	sortPairs(rest)
	return joinPairs(rest)
}

func sign(pairs []pair, secret []byte) string {
	sorted := make([]pair, len(pairs))
	copy(sorted, pairs)
	sortPairs(sorted)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(joinPairs(sorted)))
	return hex.EncodeToString(mac.Sum(nil))
}

func sortPairs(pairs []pair) {
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
}

func joinPairs(pairs []pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String()
}

// parse splits a query string into ordered pairs.
func parse(payload string) []pair {
	payload = strings.TrimPrefix(payload, "?")
	var pairs []pair
	for _, part := range strings.Split(payload, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		pairs = append(pairs, pair{key: unescape(key), value: unescape(value)})
	}
	return pairs
}

// unescape decodes '+' and each valid %XX escape. Malformed escapes are kept
// verbatim while the rest of the component is still decoded.
func unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}
