package utils

import "regexp"

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@]+)(@)`)

// MaskDSN hides the password portion of a database connection string.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

var botTokenRegex = regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]+`)

// MaskBotToken hides a Telegram bot token embedded in a URL or log line.
func MaskBotToken(s string) string {
	return botTokenRegex.ReplaceAllString(s, "bot***")
}
