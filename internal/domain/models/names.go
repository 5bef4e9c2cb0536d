package models

import (
	"unicode"

	"github.com/pkg/errors"
)

const (
	// NameMinLength is the minimal length of peer and cluster names
	NameMinLength = 1
	// NameMaxLength is the maximal length of peer and cluster names
	NameMaxLength = 64
)

// Name validation errors
var (
	ErrNameTooShort         = errors.New("name is too short")
	ErrNameTooLong          = errors.New("name is too long")
	ErrNameInvalidStart     = errors.New("name must start with a letter or digit")
	ErrNameInvalidEnd       = errors.New("name must end with a letter or digit")
	ErrNameInvalidCharacter = errors.New("name contains an invalid character")
)

// PeerName is the human readable name of a peer
type PeerName string

// ClusterName is the human readable name of a cluster
type ClusterName string

// NewPeerName validates the given value as a peer name
func NewPeerName(value string) (PeerName, error) {
	if err := validateName(value); err != nil {
		return "", errors.WithMessagef(err, "invalid peer name '%s'", value)
	}
	return PeerName(value), nil
}

// NewClusterName validates the given value as a cluster name
func NewClusterName(value string) (ClusterName, error) {
	if err := validateName(value); err != nil {
		return "", errors.WithMessagef(err, "invalid cluster name '%s'", value)
	}
	return ClusterName(value), nil
}

// Validate checks the name rules
func (n PeerName) Validate() error {
	_, err := NewPeerName(string(n))
	return err
}

// Validate checks the name rules
func (n ClusterName) Validate() error {
	_, err := NewClusterName(string(n))
	return err
}

func validateName(value string) error {
	runes := []rune(value)
	switch {
	case len(runes) < NameMinLength:
		return ErrNameTooShort
	case len(runes) > NameMaxLength:
		return ErrNameTooLong
	case !isAlphanumeric(runes[0]):
		return ErrNameInvalidStart
	case !isAlphanumeric(runes[len(runes)-1]):
		return ErrNameInvalidEnd
	}
	for _, r := range runes {
		if !isAlphanumeric(r) && r != '-' && r != '_' {
			return errors.WithMessagef(ErrNameInvalidCharacter, "'%c'", r)
		}
	}
	return nil
}

func isAlphanumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
