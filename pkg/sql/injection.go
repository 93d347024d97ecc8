package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a text fragment that libinjection recognised as SQL injection.
type InjectionCheckResult struct {
	Source      string // Where the text came from, e.g. "question"
	Fingerprint string // libinjection fingerprint of the detected pattern
	Text        string // The text that was checked
}

// CheckTextForInjection runs libinjection over free text supplied by a user,
// such as a question. Natural language passes; fragments like
// "x' OR '1'='1" do not. Returns nil when nothing is detected.
//
// The result is an audit signal only. Generated statements are full queries
// and are not checked here since libinjection targets input fragments.
func CheckTextForInjection(source, text string) *InjectionCheckResult {
	if text == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(text)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Source:      source,
		Fingerprint: string(fingerprint),
		Text:        text,
	}
}
