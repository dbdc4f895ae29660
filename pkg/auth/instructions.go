package auth

import (
	"fmt"
	"strings"

	"boorudl/pkg/booru"
)

// APIKeyGuide explains where a user finds the API key for an endpoint
func APIKeyGuide(ep booru.Endpoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Credentials for %s (%s)\n", ep.Name, ep.BaseURL)

	switch ep.Dialect {
	case booru.DialectDanbooru:
		fmt.Fprintf(&b, "  1. Log in at %s\n", ep.BaseURL)
		fmt.Fprintf(&b, "  2. Open %s/profile and choose \"API Key\"\n", ep.BaseURL)
		b.WriteString("  3. Create a key with read access to posts\n")
		b.WriteString("  Username is your login name.\n")
	case booru.DialectGelbooru:
		fmt.Fprintf(&b, "  1. Log in at %s\n", ep.BaseURL)
		fmt.Fprintf(&b, "  2. Open %s/index.php?page=account&s=options\n", ep.BaseURL)
		b.WriteString("  3. Copy the \"API Access Credentials\" block\n")
		b.WriteString("  Username is the user_id value, API key is the api_key value.\n")
	default:
		b.WriteString("  Look for an API key on your account settings page.\n")
	}

	fmt.Fprintf(&b, "Alternatively set %s_USERNAME and %s_API_KEY.\n", EnvKey(ep.Name), EnvKey(ep.Name))
	return b.String()
}
