package util

// MaskToken reduce un token a un prefijo corto para logs. Nunca loggear
// tokens completos.
func MaskToken(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "…" + s[len(s)-4:]
}
