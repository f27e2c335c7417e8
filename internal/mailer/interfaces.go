package mailer

// Service delivers signup verification email. The raw token only ever
// travels inside the verify URL; callers must not log it.
type Service interface {
	SendVerificationEmail(toEmail, companyDomain, verifyURL string) error
}
