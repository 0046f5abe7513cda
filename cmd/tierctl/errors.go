package main

import "errors"

var (
	errInvalidConfig   = errors.New("configuration is invalid")
	errUnknownScenario = errors.New("unknown scenario")
)
