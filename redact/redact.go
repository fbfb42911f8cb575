// Package redact hides credentials in values that end up in logs, reports
// and printed configuration.
package redact

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Mask will mask a string by replacing the second half with asterisks.
func Mask(s string) string {
	l := len(s)
	if l == 0 {
		return s
	}
	if l == 1 {
		return "*"
	}
	h := int(l / 2)
	return s[0:h] + strings.Repeat("*", l-h)
}

// MaskURL returns a masked version of the URL string attempting to hide sensitive information.
func MaskURL(urlString string) (string, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse URL")
	}
	var str strings.Builder
	str.WriteString(u.Scheme)
	str.WriteString("://")
	if u.User != nil {
		str.WriteString(Mask(u.User.Username()))
		pass, ok := u.User.Password()
		if ok {
			str.WriteString(":")
			str.WriteString(Mask(pass))
		}
		str.WriteString("@")
	}
	str.WriteString(u.Host)
	p := u.Path
	if p != "/" && p != "" {
		str.WriteString("/")
		if len(p) > 1 && p[0] == '/' {
			str.WriteString(Mask(p[1:]))
		}
	}
	var qs []string
	for k, v := range u.Query() {
		qs = append(qs, fmt.Sprintf("%s=%s", k, Mask(strings.Join(v, ","))))
	}
	sort.Strings(qs)
	if len(qs) > 0 {
		str.WriteString("?")
		str.WriteString(strings.Join(qs, "&"))
	}
	return str.String(), nil
}

// URL is MaskURL for logging: a URL that does not parse is masked whole.
func URL(s string) string {
	if m, err := MaskURL(s); err == nil {
		return m
	}
	return Mask(s)
}

// Secret is a string that masks itself whenever it is printed or marshaled.
// Reveal returns the real value. Decoding from YAML or JSON reads the plain
// value, so a marshaled Secret does not round trip.
type Secret string

// Reveal returns the unmasked value.
func (s Secret) Reveal() string {
	return string(s)
}

// String implements fmt.Stringer to return a masked representation.
func (s Secret) String() string {
	return Mask(string(s))
}

// GoString implements fmt.GoStringer so %#v also prints masked.
func (s Secret) GoString() string {
	return s.String()
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Secret) MarshalYAML() (any, error) {
	return s.String(), nil
}
