package cryptoprim

// Zero overwrites a byte slice with zeros. Callers defer Zero on any
// buffer that held a master password, a derived key, or an SRP
// ephemeral secret, per the zeroization discipline spec.md §5 requires.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
