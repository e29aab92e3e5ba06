package config

import zxcvbn "github.com/ccojocar/zxcvbn-go"

const weakPasswordScoreThreshold = 3

// IsWeakPassword returns whether a candidate password is considered too weak
// to accept at signup or reset. userInputs (e.g. username, email local part)
// are penalized when they appear inside the password.
func IsWeakPassword(password string, userInputs []string) bool {
	if password == "" {
		return true
	}
	result := zxcvbn.PasswordStrength(password, userInputs)
	return result.Score < weakPasswordScoreThreshold
}
