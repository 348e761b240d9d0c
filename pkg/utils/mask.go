package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@/]+)(@)`)

// MaskDSN hides the password of a connection string for logging.
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); !ok {
			return dsn
		}
		userinfo := u.User.String() + "@"
		masked := url.User(u.User.Username()).String() + ":***@"
		return strings.Replace(dsn, userinfo, masked, 1)
	}
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}
