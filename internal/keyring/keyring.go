// Package keyring keeps the postgres ledger connection string in the OS
// keyring so it never has to appear on a command line or in a config file.
package keyring

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/seatwise/internal/constants"
)

var (
	// ErrNotFound is returned when no connection string is stored
	ErrNotFound = errors.New("connection string not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring cannot be reached
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Source records where a resolved connection string came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceKeyring  Source = "keyring"
)

// GetConnectionString returns the stored ledger connection string.
func GetConnectionString() (string, error) {
	connStr, err := gokeyring.Get(constants.AppName, constants.DefaultKeyringUser)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return connStr, nil
}

// SetConnectionString stores connStr, replacing any previous value.
func SetConnectionString(connStr string) error {
	if connStr == "" {
		return errors.New("connection string cannot be empty")
	}
	if err := gokeyring.Set(constants.AppName, constants.DefaultKeyringUser, connStr); err != nil {
		return fmt.Errorf("failed to store connection string in keyring: %w", err)
	}
	return nil
}

// DeleteConnectionString removes the stored connection string.
func DeleteConnectionString() error {
	if err := gokeyring.Delete(constants.AppName, constants.DefaultKeyringUser); err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete connection string from keyring: %w", err)
	}
	return nil
}

// IsAvailable probes the keyring with a read. A not-found answer still means
// the keyring itself works.
func IsAvailable() bool {
	_, err := gokeyring.Get(constants.AppName, "availability-probe")
	return err == nil || errors.Is(err, gokeyring.ErrNotFound)
}

// Resolve picks the connection string to open. A non-empty explicit value
// wins; otherwise the keyring is consulted.
func Resolve(explicit string) (string, Source, error) {
	if explicit != "" {
		return explicit, SourceExplicit, nil
	}
	connStr, err := GetConnectionString()
	if err != nil {
		return "", "", err
	}
	return connStr, SourceKeyring, nil
}

var kvPassword = regexp.MustCompile(`(password\s*=\s*)('[^']*'|\S+)`)

// MaskPassword hides the password in a URL or key=value connection string.
func MaskPassword(connStr string) string {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" && u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.User(u.User.Username())
			rendered := u.String()
			head := u.Scheme + "://" + u.User.String()
			return head + ":****" + strings.TrimPrefix(rendered, head)
		}
		return connStr
	}
	return kvPassword.ReplaceAllString(connStr, "${1}****")
}
