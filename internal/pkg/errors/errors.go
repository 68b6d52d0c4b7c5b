package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalid   = errors.New("invalid")
	ErrInternal  = errors.New("internal")
	ErrIngestion = errors.New("ingestion failed")

	ErrEmptyQuestion = fmt.Errorf("%w: question is empty", ErrInvalid)
)

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsIngestion(err error) bool {
	return errors.Is(err, ErrIngestion)
}
