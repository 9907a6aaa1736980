package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var phoneDigits = regexp.MustCompile(`^\d{9,12}$`)

// NormalizePhone приводит кенийский номер к формату 2547XXXXXXXX,
// который требует STK push. Принимает формы 07..., +2547..., 2547..., 7...
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")

	if phone == "" {
		return "", fmt.Errorf("номер телефона обязателен")
	}
	if !phoneDigits.MatchString(phone) {
		return "", fmt.Errorf("номер телефона содержит недопустимые символы")
	}

	switch {
	case strings.HasPrefix(phone, "254") && len(phone) == 12:
		return phone, nil
	case strings.HasPrefix(phone, "0") && len(phone) == 10:
		return "254" + phone[1:], nil
	case (strings.HasPrefix(phone, "7") || strings.HasPrefix(phone, "1")) && len(phone) == 9:
		return "254" + phone, nil
	default:
		return "", fmt.Errorf("некорректный формат номера телефона")
	}
}
