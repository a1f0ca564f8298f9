package normalize

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var nonDigitRe = regexp.MustCompile(`\D+`)

// PhoneHash returns the HMAC-SHA256 of the normalized phone digits under
// salt, hex-encoded; the raw number is never persisted (§4.3, §9 "Phone
// hash").
func PhoneHash(rawPhone string, salt []byte) string {
	digits := nonDigitRe.ReplaceAllString(rawPhone, "")
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(digits))
	return hex.EncodeToString(mac.Sum(nil))
}
