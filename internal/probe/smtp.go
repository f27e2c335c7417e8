package probe

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"sort"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

// smtpCheck performs protocol negotiation up to recipient verification and
// quits before DATA. Only an explicit "mailbox does not exist" reply is a
// definitive FAIL; greylisting, timeouts, and refusals are INDETERMINATE.
// Err toward INDETERMINATE: rate-limited MX servers must not reject real
// users.
func smtpCheck(resolver Resolver, cfg Config) Check {
	return Check{
		Tier:    domain.TierCheap,
		Name:    "smtp",
		Cost:    domain.ProbeCostSMTP,
		Timeout: cfg.SMTPTimeout,
		Run: func(ctx context.Context, email domain.EmailCandidate) (domain.Verdict, string) {
			records, err := resolver.LookupMX(ctx, email.Domain)
			if err != nil || len(records) == 0 {
				return domain.VerdictIndeterminate, "no mx host reachable"
			}

			hosts := make([]*net.MX, len(records))
			copy(hosts, records)
			sort.Slice(hosts, func(i, j int) bool { return hosts[i].Pref < hosts[j].Pref })

			return rcptProbe(ctx, hosts[0].Host, email.Address, cfg)
		},
	}
}

func rcptProbe(ctx context.Context, host, address string, cfg Config) (domain.Verdict, string) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, "25"))
	if err != nil {
		return domain.VerdictIndeterminate, "connect failed: " + err.Error()
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return domain.VerdictIndeterminate, "greeting failed: " + err.Error()
	}
	defer client.Quit()

	if err := client.Hello(cfg.HeloDomain); err != nil {
		return domain.VerdictIndeterminate, "helo refused: " + err.Error()
	}
	if err := client.Mail(cfg.ProbeSender); err != nil {
		return domain.VerdictIndeterminate, "mail from refused: " + err.Error()
	}
	if err := client.Rcpt(address); err != nil {
		if mailboxMissing(err) {
			return domain.VerdictFail, "mailbox does not exist"
		}
		return domain.VerdictIndeterminate, "rcpt ambiguous: " + err.Error()
	}

	return domain.VerdictPass, ""
}

// mailboxMissing recognizes the permanent "no such user" reply codes.
// 550/551/553 are explicit; 552 (quota) and 554 (policy) are not proof the
// mailbox is absent.
func mailboxMissing(err error) bool {
	var protoErr *textproto.Error
	if !errors.As(err, &protoErr) {
		return false
	}
	switch protoErr.Code {
	case 550, 551, 553:
		return true
	}
	return false
}
