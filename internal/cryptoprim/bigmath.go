package cryptoprim

import "math/big"

// ModPow computes base^exp mod n for arbitrary-precision nonnegative
// integers. It wraps math/big's windowed exponentiation rather than
// hand-rolling big-integer arithmetic. math/big does not make this a
// constant-time operation.
func ModPow(base, exp, n *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, n)
}
