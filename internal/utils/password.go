package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// StaffDomain is the mail domain of accounts created from the back office.
const StaffDomain = "gusto.com"

// HashPassword returns a bcrypt hash of plain using cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the bcrypt hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// StaffCredentials derives the login of a staff account: email
// nombre.apellido@gusto.com and password <first letter of nombre>.<carnet>.
func StaffCredentials(nombre, apellido, carnet string) (email, password string) {
	n := strings.ToLower(strings.TrimSpace(nombre))
	a := strings.ToLower(strings.TrimSpace(apellido))
	email = n + "." + a + "@" + StaffDomain
	if n != "" {
		password = string([]rune(n)[0]) + "." + strings.TrimSpace(carnet)
	}
	return email, password
}
