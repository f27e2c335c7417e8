package mailer

import (
	"fmt"

	"github.com/gatehouse-io/gatehouse/pkg/logger"
)

// DevMailer prints the verification link to stdout instead of sending.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendVerificationEmail(toEmail, companyDomain, verifyURL string) error {
	logger.Info("[DEV MAIL] Verification Email",
		"to", toEmail,
		"domain", companyDomain,
		"verify_url", verifyURL,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"VERIFICATION EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s\n"+
		"Subject: Confirm your signup for %s\n"+
		"\n"+
		"Verification URL: %s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		toEmail, companyDomain, verifyURL)

	return nil
}
