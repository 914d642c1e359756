package findologic

import "encoding/base64"

// UsergroupHash obfuscates a customer group key with the shop key so the
// provider can scope prices and visibility without learning group names.
// It XORs the two keys over the shorter length and base64-encodes the result.
// The hash is symmetric in its arguments.
func UsergroupHash(shopKey, groupKey string) string {
	n := min(len(shopKey), len(groupKey))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = shopKey[i] ^ groupKey[i]
	}
	return base64.StdEncoding.EncodeToString(out)
}
