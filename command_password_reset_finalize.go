package membership

// FinalizePasswordResetMessage carries the reset token and the replacement password.
type FinalizePasswordResetMessage = SetPasswordMessage

// NewFinalizePasswordResetHandler creates a handler redeeming reset tokens.
// It shares the redemption rules of the setup flow: the password is
// validated first, then the token must match and be unexpired.
func NewFinalizePasswordResetHandler(accounts Accounts, hasher PasswordHasher) *RedeemTokenHandler {
	return newRedeemTokenHandler(TokenReset, accounts, hasher)
}
