package storage

import (
	"fmt"
	"regexp"

	"github.com/pixil98/go-errors"
)

var identifierPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidatingSpec is implemented by every asset type that can be stored.
type ValidatingSpec interface {
	Validate() error
}

// Identifier is the key under which an asset is stored.
type Identifier string

func (id Identifier) String() string {
	return string(id)
}

// Asset is the on-disk envelope wrapping a spec.
type Asset[T ValidatingSpec] struct {
	Version    uint       `json:"version"`
	Identifier Identifier `json:"id"`
	Spec       T          `json:"spec"`
}

func (a *Asset[T]) Id() Identifier {
	return a.Identifier
}

func (a *Asset[T]) Validate() error {
	el := errors.NewErrorList()

	if a.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if a.Identifier == "" {
		el.Add(fmt.Errorf("id must be set"))
	} else if !identifierPattern.MatchString(string(a.Identifier)) {
		el.Add(fmt.Errorf("id %q must be lowercase alphanumerics and dashes", a.Identifier))
	}

	el.Add(a.Spec.Validate())

	return el.Err()
}
