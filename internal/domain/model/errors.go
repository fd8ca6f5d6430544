package model

import "errors"

var ErrInvalidInstruction = errors.New("invalid payment instruction")
