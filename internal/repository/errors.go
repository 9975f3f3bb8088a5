package repository

import "github.com/pkg/errors"

var ErrNotFound = errors.New("not found")
