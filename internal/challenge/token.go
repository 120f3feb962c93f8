package challenge

import "github.com/atomlessAK/shuma-gorath/internal/envelope"

// MakeSeedToken mints a standard-base64 signed seed token.
func MakeSeedToken(secret string, seed *Seed) (string, error) {
	return envelope.MakeSeedToken(secret, seed)
}

// ParseSeedToken verifies and decodes a seed token.
func ParseSeedToken(secret, token string) (*Seed, error) {
	var seed Seed
	if err := envelope.ParseSeedToken(secret, token, &seed); err != nil {
		return nil, err
	}
	return &seed, nil
}
