package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: запись (продукт, сопоставление) не найдена.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCatalog: справочник СВС пуст.
	ErrEmptyCatalog = errors.New("svs catalog is empty")
)

// ValidationError: некорректные входные данные, весь пакет отклоняется.
type ValidationError struct {
	Op  string
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("validation: %s: %s", e.Op, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidation(op, msg string, err error) error {
	return &ValidationError{Op: op, Msg: msg, Err: err}
}

// DBError: ошибка хранилища.
type DBError struct {
	Op  string
	Msg string
	Err error
}

func (e *DBError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("db: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("db: %s: %s", e.Op, e.Msg)
}

func (e *DBError) Unwrap() error { return e.Err }

func NewDB(op, msg string, err error) error {
	return &DBError{Op: op, Msg: msg, Err: err}
}

// IsValidation сообщает, является ли err ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
