package domain

import "errors"

var (
	ErrStoryNotFound = errors.New("story not found")
	ErrUserNotFound  = errors.New("user not found")
)
