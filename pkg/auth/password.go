package auth

import (
	passwordvalidator "github.com/wagslane/go-password-validator"
)

// PasswordMinEntropyBits is the minimum accepted password entropy.
const PasswordMinEntropyBits = 30

// CheckPassword rejects passwords below the entropy floor with CodeWeakPassword.
func CheckPassword(password string) error {
	if err := passwordvalidator.Validate(password, PasswordMinEntropyBits); err != nil {
		return NewError(CodeWeakPassword, err)
	}
	return nil
}
