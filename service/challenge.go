package service

import (
	"bufio"
	"fmt"
	"strings"
	"time"
)

// ChallengeTimeLayout is the ISO-8601 layout of the Timestamp line
const ChallengeTimeLayout = "2006-01-02T15:04:05.000Z"

const noncePrefix = "Nonce: "

// BuildChallengeMessage renders the text a wallet signs. The result is stored
// and compared byte for byte at verification time.
func BuildChallengeMessage(appName, address string, issuedAt time.Time, nonce string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome to %s!\n\n", appName)
	b.WriteString("Please sign this message to verify ownership of your wallet.\n\n")
	fmt.Fprintf(&b, "Wallet: %s\n", address)
	fmt.Fprintf(&b, "Timestamp: %s\n", issuedAt.UTC().Format(ChallengeTimeLayout))
	fmt.Fprintf(&b, "%s%s\n\n", noncePrefix, nonce)
	b.WriteString("Signing is free: it will not trigger a blockchain transaction or cost any gas.")
	return b.String()
}

// ParseChallengeNonce extracts the nonce from a message built by BuildChallengeMessage
func ParseChallengeNonce(message string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(message))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, noncePrefix) {
			nonce := strings.TrimSpace(strings.TrimPrefix(line, noncePrefix))
			return nonce, nonce != ""
		}
	}
	return "", false
}
