package profile

import (
	"fmt"
	"io"
	"strings"
)

// WriteList prints profiles as a table; the default profile is marked with "*".
func WriteList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	maxNameLen := 4    // "NAME"
	maxBackendLen := 7 // "BACKEND"
	maxAccountLen := 7 // "ACCOUNT"
	for i := range profiles {
		maxNameLen = max(maxNameLen, len(profiles[i].Name))
		maxBackendLen = max(maxBackendLen, len(profiles[i].Backend))
		maxAccountLen = max(maxAccountLen, len(profiles[i].AccountName))
	}
	maxNameLen = min(maxNameLen, 20)
	maxAccountLen = min(maxAccountLen, 30)

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %-*s  %s\n", maxNameLen, "NAME", maxBackendLen, "BACKEND", maxAccountLen, "ACCOUNT", "ACCOUNT KEY")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s  %s\n",
		strings.Repeat("-", maxNameLen), strings.Repeat("-", maxBackendLen), strings.Repeat("-", maxAccountLen), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %-*s  %s\n",
			marker,
			maxNameLen, truncate(p.Name, maxNameLen),
			maxBackendLen, p.Backend,
			maxAccountLen, truncate(p.AccountName, maxAccountLen),
			MaskSecret(p.AccountKey, showSecrets),
		)
	}

	return nil
}

// WriteShow prints the details of a single profile.
func WriteShow(w io.Writer, p Profile, isDefault, showSecrets bool) error {
	_, _ = fmt.Fprintf(w, "Name:        %s", p.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Backend:     %s\n", p.Backend)
	_, _ = fmt.Fprintf(w, "Account:     %s\n", p.AccountName)
	_, _ = fmt.Fprintf(w, "Account Key: %s\n", MaskSecret(p.AccountKey, showSecrets))
	if p.Endpoint != "" {
		_, _ = fmt.Fprintf(w, "Endpoint:    %s\n", p.Endpoint)
	}
	if p.Container != "" {
		_, _ = fmt.Fprintf(w, "Container:   %s\n", p.Container)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// MaskSecret shows only the first and last 4 characters of a secret.
// Short secrets are fully masked.
func MaskSecret(secret string, showSecrets bool) string {
	if showSecrets {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
