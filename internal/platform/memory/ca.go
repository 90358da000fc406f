package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"keel/internal/platform"
	"keel/internal/resource"
)

type challengeRecord struct {
	cert  resource.ID
	polls int
}

// CA simulates an ACME certificate authority.
type CA struct {
	Faults

	clock clock.PassiveClock

	mu         sync.Mutex
	accounts   map[resource.ID]string
	issued     map[resource.ID]platform.IssuedCertificate
	challenges map[string]*challengeRecord
	seq        int
	mutations  int

	pollsToValidate int
	validity        time.Duration
	stuck           bool
	rejectedDomains map[string]bool
	rejectedIssuers map[resource.ID]bool
}

// NewCA creates a CA that validates a challenge on the first poll and issues
// certificates valid for 90 days.
func NewCA(clk clock.PassiveClock) *CA {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &CA{
		clock:           clk,
		accounts:        make(map[resource.ID]string),
		issued:          make(map[resource.ID]platform.IssuedCertificate),
		challenges:      make(map[string]*challengeRecord),
		validity:        90 * 24 * time.Hour,
		rejectedDomains: make(map[string]bool),
		rejectedIssuers: make(map[resource.ID]bool),
	}
}

// SetPollsToValidate sets how many polls return pending before a challenge
// becomes valid.
func (c *CA) SetPollsToValidate(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollsToValidate = n
}

// SetValidity sets the lifetime of newly issued certificates.
func (c *CA) SetValidity(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validity = d
}

// SetChallengesStuck makes every challenge stay pending.
func (c *CA) SetChallengesStuck(stuck bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stuck = stuck
}

// RejectDomain makes requests containing domain fail permanently.
func (c *CA) RejectDomain(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectedDomains[domain] = true
}

// RejectIssuer makes account registration for issuer fail permanently.
func (c *CA) RejectIssuer(issuer resource.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectedIssuers[issuer] = true
}

// RevokeExternally marks an issued certificate revoked without going through
// the engine.
func (c *CA) RevokeExternally(cert resource.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ic, ok := c.issued[cert]
	if !ok {
		return false
	}
	ic.Revoked = true
	c.issued[cert] = ic
	return true
}

// Mutations counts state-changing calls made by the engine.
func (c *CA) Mutations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutations
}

func (c *CA) RegisterAccount(ctx context.Context, issuer resource.ID, spec resource.IssuerSpec) (platform.Account, error) {
	if err := c.check(ctx, "RegisterAccount"); err != nil {
		return platform.Account{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rejectedIssuers[issuer] {
		return platform.Account{}, platform.Permanent("account for %s rejected: invalid credentials", spec.Email)
	}
	if id, ok := c.accounts[issuer]; ok {
		return platform.Account{ID: id}, nil
	}

	c.seq++
	id := fmt.Sprintf("acct-%d", c.seq)
	c.accounts[issuer] = id
	c.mutations++
	return platform.Account{ID: id}, nil
}

func (c *CA) RequestCertificate(ctx context.Context, cert resource.ID, issuer resource.ID, spec resource.CertificateSpec) (platform.Challenge, error) {
	if err := c.check(ctx, "RequestCertificate"); err != nil {
		return platform.Challenge{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.accounts[issuer]; !ok {
		return platform.Challenge{}, fmt.Errorf("issuer %s has no registered account", issuer)
	}
	for _, d := range spec.Domains {
		if c.rejectedDomains[d] {
			return platform.Challenge{}, platform.Permanent("domain ownership for %q cannot be established", d)
		}
	}

	c.seq++
	id := fmt.Sprintf("chal-%d", c.seq)
	c.challenges[id] = &challengeRecord{cert: cert}
	c.mutations++
	return platform.Challenge{ID: id, Domains: append([]string(nil), spec.Domains...)}, nil
}

func (c *CA) ValidateChallenge(ctx context.Context, cert resource.ID, challengeID string) (platform.ChallengeResult, error) {
	if err := c.check(ctx, "ValidateChallenge"); err != nil {
		return platform.ChallengeResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.challenges[challengeID]
	if !ok || ch.cert != cert {
		return platform.ChallengeResult{Status: platform.ChallengeFailed, Message: "unknown challenge " + challengeID}, nil
	}
	if c.stuck {
		return platform.ChallengeResult{Status: platform.ChallengePending}, nil
	}

	ch.polls++
	if ch.polls <= c.pollsToValidate {
		return platform.ChallengeResult{Status: platform.ChallengePending}, nil
	}

	c.seq++
	ic := platform.IssuedCertificate{
		Serial:   fmt.Sprintf("%08x", c.seq),
		NotAfter: c.clock.Now().Add(c.validity),
	}
	c.issued[cert] = ic
	delete(c.challenges, challengeID)
	c.mutations++
	return platform.ChallengeResult{Status: platform.ChallengeValid, Certificate: &ic}, nil
}

func (c *CA) GetCertificate(ctx context.Context, cert resource.ID) (platform.IssuedCertificate, error) {
	if err := c.check(ctx, "GetCertificate"); err != nil {
		return platform.IssuedCertificate{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ic, ok := c.issued[cert]
	if !ok {
		return platform.IssuedCertificate{}, fmt.Errorf("certificate %s: %w", cert, platform.ErrNotFound)
	}
	return ic, nil
}

func (c *CA) RevokeCertificate(ctx context.Context, cert resource.ID) error {
	if err := c.check(ctx, "RevokeCertificate"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.issued[cert]; !ok {
		return nil
	}
	delete(c.issued, cert)
	c.mutations++
	return nil
}
