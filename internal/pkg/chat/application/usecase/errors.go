package usecase

import "errors"

// ErrPersistence indicates an infrastructure/repository failure inside a use case
var ErrPersistence = errors.New("chat use case persistence error")

// ErrInvalidInput flags requests missing required identifiers
var ErrInvalidInput = errors.New("chat use case invalid input")
