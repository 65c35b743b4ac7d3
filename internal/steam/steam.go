// Package steam reads the local Steam installation: the persona name of a
// signed-in account and the location of the TF2 console log.
package steam

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// DefaultFolder is the standard Steam install location on Windows.
const DefaultFolder = `C:\Program Files (x86)\Steam`

var (
	// ErrUserIDEmpty indicates that no Steam user id was given.
	ErrUserIDEmpty = errors.New("steam user id cannot be empty")
	// ErrUserNotFound indicates that loginusers.vdf has no entry for the user id.
	ErrUserNotFound = errors.New("steam user id not found in loginusers.vdf")
)

// Account is a Steam user signed in on this machine.
type Account struct {
	UserID      string
	PersonaName string
}

// LoginUsersPath returns the path of loginusers.vdf under folder.
func LoginUsersPath(folder string) string {
	return filepath.Join(folder, "config", "loginusers.vdf")
}

// LogPath returns where TF2 writes its console log when launched with
// "-condebug" under the Steam install at folder.
func LogPath(folder string) string {
	return filepath.Join(folder, "steamapps", "common", "Team Fortress 2", "tf", "tf2consoleoutput.log")
}

// LookupAccount reads loginusers.vdf under folder and returns the account for userID.
func LookupAccount(folder, userID string) (Account, error) {
	if userID == "" {
		return Account{}, ErrUserIDEmpty
	}

	path := LoginUsersPath(folder)

	content, err := os.ReadFile(path)
	if err != nil {
		return Account{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	persona, err := PersonaName(string(content), userID)
	if err != nil {
		return Account{}, err
	}

	return Account{UserID: userID, PersonaName: persona}, nil
}

// PersonaName finds the PersonaName of userID's block in loginusers.vdf content.
func PersonaName(vdf, userID string) (string, error) {
	if userID == "" {
		return "", ErrUserIDEmpty
	}

	pattern, err := regexp.Compile(`"` + regexp.QuoteMeta(userID) + `"\s*\{[^}]*"PersonaName"\s*"([^"]*)"`)
	if err != nil {
		return "", fmt.Errorf("failed to build persona pattern: %w", err)
	}

	match := pattern.FindStringSubmatch(vdf)
	if match == nil {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	return match[1], nil
}
