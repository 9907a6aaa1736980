package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden           ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest          ErrorCode = "BAD_REQUEST"
	ErrCodeConflict            ErrorCode = "CONFLICT"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation          ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError       ErrorCode = "DATABASE_ERROR"
	ErrCodeReferenceMismatch   ErrorCode = "REFERENCE_MISMATCH"
	ErrCodeNoHeldFunds         ErrorCode = "NO_HELD_FUNDS"
	ErrCodeGatewayError        ErrorCode = "GATEWAY_ERROR"
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeBelowMinimum        ErrorCode = "BELOW_MINIMUM"
	ErrCodeDuplicatePending    ErrorCode = "DUPLICATE_PENDING"
	ErrCodeFeeNotPaid          ErrorCode = "FEE_NOT_PAID"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound, ErrCodeNoHeldFunds:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeBelowMinimum:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeReferenceMismatch, ErrCodeDuplicatePending:
		return http.StatusConflict
	case ErrCodeFeeNotPaid, ErrCodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case ErrCodeGatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeConflict
}

func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

var (
	ErrTaskNotFound        = New(ErrCodeNotFound, "задача не найдена")
	ErrBidNotFound         = New(ErrCodeNotFound, "отклик не найден")
	ErrDepositNotFound     = New(ErrCodeNotFound, "депозит не найден")
	ErrWalletNotFound      = New(ErrCodeNotFound, "кошелёк не найден")
	ErrWithdrawalNotFound  = New(ErrCodeNotFound, "заявка на вывод не найдена")
	ErrUserNotFound        = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials  = New(ErrCodeUnauthorized, "неверные учетные данные")
	ErrNoHeldFunds         = New(ErrCodeNoHeldFunds, "по задаче нет удержанных средств")
	ErrReferenceMismatch   = New(ErrCodeReferenceMismatch, "ссылка платежа не совпадает с ожидаемой")
	ErrInsufficientBalance = New(ErrCodeInsufficientBalance, "недостаточно средств на балансе")
	ErrBelowMinimum        = New(ErrCodeBelowMinimum, "сумма меньше минимальной для вывода")
	ErrDuplicatePending    = New(ErrCodeDuplicatePending, "платёж по этой задаче уже ожидает подтверждения")
	ErrFeeNotPaid          = New(ErrCodeFeeNotPaid, "комиссия за отклик не оплачена")
)
