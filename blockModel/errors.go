package blockModel

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed      = errors.New("malformed declarative data")
	ErrNoForm         = errors.New("neither variants nor multipart")
	ErrBothForms      = errors.New("both variants and multipart")
	ErrParentCycle    = errors.New("parent cycle")
	ErrParentDepth    = errors.New("parent chain too deep")
	ErrTextureCycle   = errors.New("texture variable cycle")
	ErrTextureChain   = errors.New("texture variable chain too long")
	ErrTextureUnbound = errors.New("texture variable not bound")
)

// FormatError is a structural problem in a pack resource. It always matches ErrMalformed.
type FormatError struct {
	Resource string
	Stage    string
	E        error
}

func (err FormatError) Error() string {
	return fmt.Sprintf("%s: %s: %s", err.Resource, err.Stage, err.E.Error())
}

func (err FormatError) Unwrap() error {
	return err.E
}

func (err FormatError) Is(target error) bool {
	return target == ErrMalformed
}
