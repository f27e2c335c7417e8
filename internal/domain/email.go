package domain

import (
	"regexp"
	"strings"
)

// EmailCandidate is a submitted email address, normalized once and never
// mutated afterwards.
type EmailCandidate struct {
	Address string
	Domain  string
}

var (
	emailRegex  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	domainRegex = regexp.MustCompile(`@([^@\s]+)$`)
)

func NewEmailCandidate(raw string) EmailCandidate {
	address := strings.ToLower(strings.TrimSpace(raw))
	var dom string
	if m := domainRegex.FindStringSubmatch(address); m != nil {
		dom = m[1]
	}
	return EmailCandidate{Address: address, Domain: dom}
}

func (e EmailCandidate) IsWellFormed() bool {
	return e.Address != "" && emailRegex.MatchString(e.Address)
}

// DenyLists holds the provider-class policy for the deliverability probe.
// Injected rather than hardcoded so tenants can extend either list.
type DenyLists struct {
	Personal   map[string]struct{}
	Disposable map[string]struct{}
}

var defaultPersonalDomains = []string{
	"gmail.com", "yahoo.com", "hotmail.com", "outlook.com",
	"aol.com", "icloud.com", "mail.com", "protonmail.com",
	"yandex.com", "zoho.com", "gmx.com", "inbox.com",
	"googlemail.com", "ymail.com", "live.com", "msn.com",
	"me.com", "mac.com", "pm.me", "fastmail.com", "hey.com",
}

var defaultDisposableDomains = []string{
	"tempmail.com", "guerrillamail.com", "mailinator.com",
	"10minutemail.com", "throwaway.email",
}

// NewDenyLists builds the default deny-lists merged with tenant-specific
// extras (already lower-cased by config).
func NewDenyLists(extraPersonal, extraDisposable []string) DenyLists {
	d := DenyLists{
		Personal:   make(map[string]struct{}, len(defaultPersonalDomains)+len(extraPersonal)),
		Disposable: make(map[string]struct{}, len(defaultDisposableDomains)+len(extraDisposable)),
	}
	for _, dom := range defaultPersonalDomains {
		d.Personal[dom] = struct{}{}
	}
	for _, dom := range extraPersonal {
		d.Personal[dom] = struct{}{}
	}
	for _, dom := range defaultDisposableDomains {
		d.Disposable[dom] = struct{}{}
	}
	for _, dom := range extraDisposable {
		d.Disposable[dom] = struct{}{}
	}
	return d
}

func (d DenyLists) IsPersonalProvider(domain string) bool {
	_, ok := d.Personal[strings.ToLower(domain)]
	return ok
}

func (d DenyLists) IsDisposable(domain string) bool {
	_, ok := d.Disposable[strings.ToLower(domain)]
	return ok
}
