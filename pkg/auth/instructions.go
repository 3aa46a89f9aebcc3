package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCredentialGuide explains where the four OAuth 1.0a values come from
func ShowCredentialGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "BOT CREDENTIALS")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The bot posts as a single account using OAuth 1.0a user credentials.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Open the developer portal and create (or select) an app")
	fmt.Fprintln(w, "   - Give the app Read and Write permissions")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Under 'Keys and tokens', copy:")
	fmt.Fprintln(w, "   - API key           -> consumer key")
	fmt.Fprintln(w, "   - API key secret    -> consumer secret")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Generate an access token and secret for the bot account")
	fmt.Fprintln(w, "   - Regenerate them after changing app permissions")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The values can also be supplied through the environment:")
	for _, name := range []string{EnvScreenName, EnvConsumerKey, EnvConsumerSecret, EnvAccessToken, EnvAccessSecret} {
		fmt.Fprintf(w, "   %s\n", name)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "These credentials let anyone post as the bot. They are stored in the")
	fmt.Fprintln(w, "system keychain when available, otherwise in an encrypted file.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
}

// ShowQuickGuide is the one-line reminder printed before prompting
func ShowQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "Need: screen name, consumer key/secret, access token/secret (type 'help' for details)")
}
