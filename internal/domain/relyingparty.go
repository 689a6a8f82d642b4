package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// RelyingParty is the immutable identity of this service as seen by
// authenticators: the RP ID every credential is scoped to, a display name,
// and the exact origin verified responses must carry.
type RelyingParty struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Origin string `json:"origin"`
}

// NewRelyingParty validates that id is a registrable suffix of the origin
// host. Credentials scoped to an RP ID unrelated to the serving origin
// would be unusable, so construction fails instead.
func NewRelyingParty(id, name, origin string) (RelyingParty, error) {
	if id == "" {
		return RelyingParty{}, fmt.Errorf("relying party id is required")
	}
	if origin == "" {
		return RelyingParty{}, fmt.Errorf("relying party origin is required")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return RelyingParty{}, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	host := u.Hostname()
	if host == "" {
		return RelyingParty{}, fmt.Errorf("origin %q has no host", origin)
	}
	if host != id && !strings.HasSuffix(host, "."+id) {
		return RelyingParty{}, fmt.Errorf("rp id %q is not a registrable suffix of origin host %q", id, host)
	}
	return RelyingParty{ID: id, Name: name, Origin: origin}, nil
}
