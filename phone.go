package membership

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse numbers written without a country code
var DefaultPhoneRegion = "US"

var errInvalidPhone = errors.New("must be a valid phone number")

// NormalizePhone parses raw in region and returns it in E.164 form. Empty
// input stays empty.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if region == "" {
		region = DefaultPhoneRegion
	}
	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", errInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// phoneRule is an ozzo rule accepting empty or parseable numbers.
func phoneRule(region string) func(value interface{}) error {
	return func(value interface{}) error {
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case *string:
			if v == nil {
				return nil
			}
			s = *v
		default:
			return nil
		}
		_, err := NormalizePhone(s, region)
		return err
	}
}
