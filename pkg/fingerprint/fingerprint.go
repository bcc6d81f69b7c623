package fingerprint

const hexDigits = "0123456789abcdef"

// HexString computes the digest of data and renders it as a fixed-width
// 32-character lowercase hexadecimal string.
func HexString(data []byte) string {
	digest := Sum(data)

	buf := make([]byte, Size*2)
	for i, b := range digest {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0x0f]
	}
	return string(buf)
}

// ForRequest derives the cache key for a request.
//
// The digest input is the exact concatenation of the absolute request URL,
// the raw body bytes (nothing when absent), and the caller's locale
// identifier, with no separators between them. The concatenation order and
// the absence of delimiters are load-bearing: any externally persisted cache
// directory was written under keys built this way, so changing either would
// orphan every existing entry.
//
// Two requests that differ only in locale produce different keys and never
// share a cache entry.
func ForRequest(url string, body []byte, locale string) string {
	material := make([]byte, 0, len(url)+len(body)+len(locale))
	material = append(material, url...)
	material = append(material, body...)
	material = append(material, locale...)
	return HexString(material)
}
