package models

import (
	fab "github.com/Goldziher/fabricator"
)

func NewFixture[T any](customData ...map[string]any) T {
	instance := fab.New(*new(T))

	if len(customData) > 0 {
		return instance.Build(customData...)
	}

	return instance.Build()
}
