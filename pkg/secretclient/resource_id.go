package secretclient

import (
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	scerrors "github.com/systmms/secretclient/pkg/errors"
)

// ResourceID identifies a secret, and optionally one version of it.
type ResourceID struct {
	VaultURL string
	Name     string
	// Version is empty for an unversioned ID.
	Version string
}

// String formats the ID as a URL.
func (r ResourceID) String() string {
	s := r.VaultURL + "/secrets/" + r.Name
	if r.Version != "" {
		s += "/" + r.Version
	}
	return s
}

// ParseResourceID splits a secret URL such as
// https://myvault.vault.azure.net/secrets/db-password/0123abcd.
func ParseResourceID(id string) (ResourceID, error) {
	u, err := url.Parse(id)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ResourceID{}, invalidID(id, "not an absolute URL")
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || len(segments) > 3 || segments[0] != "secrets" || segments[1] == "" {
		return ResourceID{}, invalidID(id, "expected /secrets/{name}[/{version}]")
	}

	sid := azsecrets.ID(id)
	return ResourceID{
		VaultURL: u.Scheme + "://" + u.Host,
		Name:     sid.Name(),
		Version:  sid.Version(),
	}, nil
}

// IDOf returns the parsed ID of a secret or its properties. ok is false
// when the ID is missing or malformed.
func IDOf(id *azsecrets.ID) (ResourceID, bool) {
	if id == nil {
		return ResourceID{}, false
	}
	rid, err := ParseResourceID(string(*id))
	return rid, err == nil
}

func invalidID(id, message string) error {
	return scerrors.ConfigurationError{
		Field:   "id",
		Value:   id,
		Message: "invalid secret ID: " + message,
	}
}
