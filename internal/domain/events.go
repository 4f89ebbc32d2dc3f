package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// NewOrderPrefix starts every work message: "NEW_ORDER:<id>".
const NewOrderPrefix = "NEW_ORDER:"

func EncodeNewOrder(id int64) []byte {
	return []byte(NewOrderPrefix + strconv.FormatInt(id, 10))
}

// ParseNewOrder extracts the order id from a work message body.
// Anything that is not exactly NEW_ORDER:<integer> yields ErrMalformedMessage.
func ParseNewOrder(body []byte) (int64, error) {
	if !utf8.Valid(body) {
		return 0, fmt.Errorf("%w: body is not utf-8", ErrMalformedMessage)
	}
	msg := string(body)
	raw, ok := strings.CutPrefix(msg, NewOrderPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected message %q", ErrMalformedMessage, msg)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: order id %q is not an integer", ErrMalformedMessage, raw)
	}
	return id, nil
}
