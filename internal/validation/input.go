package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength        = 3
	MaxUsernameLength        = 30
	MinTaskTitleLength       = 3
	MaxTaskTitleLength       = 200
	MinTaskDescriptionLength = 10
	MaxTaskDescriptionLength = 5000
	MinProposalLength        = 10
	MaxProposalLength        = 2000
	MinBudget                = 1.0
	MaxBudget                = 100000000.0 // 100 миллионов
	MaxDestinationLength     = 100
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	emailRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !emailRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	usernameRegex := regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	if len(username) > 0 && unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateTaskTitle проверяет заголовок задачи.
func ValidateTaskTitle(title string) error {
	if title == "" {
		return fmt.Errorf("заголовок задачи обязателен")
	}

	title = strings.TrimSpace(title)

	return ValidateLength("заголовок задачи", title, MinTaskTitleLength, MaxTaskTitleLength)
}

// ValidateTaskDescription проверяет описание задачи.
func ValidateTaskDescription(description string) error {
	if description == "" {
		return fmt.Errorf("описание задачи обязательно")
	}

	description = strings.TrimSpace(description)

	return ValidateLength("описание задачи", description, MinTaskDescriptionLength, MaxTaskDescriptionLength)
}

// ValidateProposal проверяет текст отклика.
func ValidateProposal(proposal string) error {
	if proposal == "" {
		return fmt.Errorf("текст отклика обязателен")
	}

	proposal = strings.TrimSpace(proposal)

	return ValidateLength("текст отклика", proposal, MinProposalLength, MaxProposalLength)
}

// ValidateBudget проверяет бюджет задачи.
func ValidateBudget(budget float64) error {
	if budget < MinBudget {
		return fmt.Errorf("бюджет должен быть не менее %.0f", MinBudget)
	}
	if budget > MaxBudget {
		return fmt.Errorf("бюджет не может превышать %.0f", MaxBudget)
	}
	return nil
}

// ValidateAmount проверяет произвольную денежную сумму.
func ValidateAmount(fieldName string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%s должна быть положительной", fieldName)
	}
	if amount > MaxBudget {
		return fmt.Errorf("%s не может превышать %.0f", fieldName, MaxBudget)
	}
	return nil
}
