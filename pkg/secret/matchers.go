package secret

import "regexp"

// defaultMatchers is the fixed vocabulary of credential shapes this scanner
// looks for. Category names are drawn from the fixed vocabulary named in the
// spec (API_KEY, PRIVATE_KEY, JWT, GENERIC_SECRET, …).
func defaultMatchers() []matcher {
	return []matcher{
		{
			category: "AWS_ACCESS_KEY",
			pattern:  regexp.MustCompile(`\b(?:AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16}\b`),
		},
		{
			category: "AWS_SECRET_KEY",
			pattern:  regexp.MustCompile(`(?i)(?:aws[_-]?secret[_-]?(?:access[_-]?)?key|secret[_-]?key)[\s:='"]*[A-Za-z0-9/+=]{40}\b`),
			validate: func(m string) bool {
				key := regexp.MustCompile(`[A-Za-z0-9/+=]{40}$`).FindString(m)
				return key != "" && hasMixedCase(key)
			},
		},
		{
			category: "PRIVATE_KEY",
			pattern:  regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----[\s\S]*?-----END (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
		},
		{
			category: "JWT",
			pattern:  regexp.MustCompile(`\bey[A-Za-z0-9_-]+\.ey[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`),
		},
		{
			category: "API_KEY",
			pattern: regexp.MustCompile(
				`(?i)(?:api[_-]?key|apikey|access[_-]?token|auth[_-]?token|bearer|secret[_-]?key|private[_-]?key)` +
					`[\s:='"]+[A-Za-z0-9_\-]{20,64}` +
					`|` +
					`\bsk-[A-Za-z0-9]{32,}\b` + // OpenAI
					`|` +
					`\bsk-ant-[A-Za-z0-9_\-]{32,}\b` + // Anthropic
					`|` +
					`\bghp_[A-Za-z0-9]{36}\b` + // GitHub PAT
					`|` +
					`\bgho_[A-Za-z0-9]{36}\b` + // GitHub OAuth
					`|` +
					`\bglpat-[A-Za-z0-9\-_]{20,}\b` + // GitLab PAT
					`|` +
					`\bxox[baprs]-[A-Za-z0-9\-]+\b` + // Slack tokens
					`|` +
					`\bsk_(?:live|test)_[A-Za-z0-9]{3,}\b` + // Stripe secret / generic sk_live_ keys
					`|` +
					`\bSG\.[A-Za-z0-9_\-]{22}\.[A-Za-z0-9_\-]{43}\b`, // SendGrid
			),
		},
		{
			category: "GENERIC_SECRET",
			pattern:  regexp.MustCompile(`(?i)(?:password|passwd|pwd)[\s:='"]+\S{6,}`),
		},
		{
			// HIGH_ENTROPY_BLOB catches key-shaped runs with no recognizable
			// vendor prefix and no nearby "key"/"token"/"secret" label — a bare
			// base64 blob pasted inline. AWS_SECRET_KEY and API_KEY above are
			// both prefix- or label-gated; this is the only standalone entropy
			// scan, so it runs unanchored and relies entirely on validate to
			// reject ordinary text.
			category: "HIGH_ENTROPY_BLOB",
			pattern:  regexp.MustCompile(`\b[A-Za-z0-9+/]{32,}={0,2}\b`),
			validate: isHighEntropy,
		},
	}
}
