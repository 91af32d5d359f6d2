package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	usernameCharset = regexp.MustCompile(`^[a-zA-Z0-9._]{8,20}$`)
	passwordCharset = regexp.MustCompile(`^[A-Za-z\d@$!%*#?&]{8,}$`)
	namePattern     = regexp.MustCompile(`^[\p{L}\p{N}_'\-,.][^0-9_!¡?÷¿/\\+=@#$%ˆ&*(){}|~<>;:\[\]]{2,}$`)
)

const (
	passwordSymbols = "@$!%*#?&"
	maxNameLength   = 15
)

// ValidateEmail comprueba la forma local@dominio.tld; no hace chequeos de DNS.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateUsername acepta 8-20 caracteres [a-zA-Z0-9._] sin "." o "_" consecutivos ni en los extremos.
func ValidateUsername(username string) bool {
	if !usernameCharset.MatchString(username) {
		return false
	}
	if isUsernameSeparator(username[0]) || isUsernameSeparator(username[len(username)-1]) {
		return false
	}
	for i := 1; i < len(username); i++ {
		if isUsernameSeparator(username[i]) && isUsernameSeparator(username[i-1]) {
			return false
		}
	}
	return true
}

// ValidatePassword exige al menos 8 caracteres con una letra, un número y un símbolo de @$!%*#?&.
func ValidatePassword(password string) bool {
	if !passwordCharset.MatchString(password) {
		return false
	}
	var letter, digit, symbol bool
	for _, r := range password {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	return letter && digit && symbol
}

// ValidateName acepta nombres de 3 a 15 caracteres que empiezan por una letra de cualquier alfabeto o una comilla.
func ValidateName(name string) bool {
	if utf8.RuneCountInString(name) > maxNameLength {
		return false
	}
	return namePattern.MatchString(name)
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName recorta y capitaliza: primera letra en mayúscula, resto en minúscula.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func isUsernameSeparator(b byte) bool {
	return b == '.' || b == '_'
}
